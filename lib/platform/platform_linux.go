// Copyright 2026 The Pelorus Authors
// SPDX-License-Identifier: Apache-2.0

// Package platform probes the host the collector runs on: OS name,
// kernel release, architecture, and the stable machine identifier.
// The result rides along in the vessel metadata document so the shore
// can tell which box a track came from.
package platform

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/pelorus-marine/pelorus/lib/schema"
)

// Probe collects the host description. It never returns an error:
// missing or unreadable files produce zero-valued fields. A stripped
// container without os-release or a machine id is still a valid host
// that should report its kernel and architecture.
func Probe() schema.PlatformInfo {
	return probeFrom("/etc")
}

// probeFrom is the testable implementation of Probe. It accepts the
// /etc root so tests can point at a synthetic filesystem.
func probeFrom(etcRoot string) schema.PlatformInfo {
	info := schema.PlatformInfo{
		OS:        runtime.GOOS,
		GoVersion: runtime.Version(),
	}

	var uts unix.Utsname
	if err := unix.Uname(&uts); err == nil {
		info.Kernel = utsString(uts.Release)
		info.Arch = utsString(uts.Machine)
	}

	if name := readOSRelease(filepath.Join(etcRoot, "os-release")); name != "" {
		info.OS = name
	}
	info.MachineID = readTrimmed(filepath.Join(etcRoot, "machine-id"))

	return info
}

// utsString converts a null-terminated uname field to a Go string.
func utsString(field [65]byte) string {
	end := bytes.IndexByte(field[:], 0)
	if end < 0 {
		end = len(field)
	}
	return string(field[:end])
}

// readOSRelease extracts the distribution name from an os-release
// file, preferring PRETTY_NAME over NAME. Returns "" when the file is
// missing or carries neither key.
func readOSRelease(path string) string {
	file, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer file.Close()

	var name string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		value = strings.Trim(value, `"`)
		switch key {
		case "PRETTY_NAME":
			if value != "" {
				return value
			}
		case "NAME":
			if name == "" {
				name = value
			}
		}
	}
	return name
}

// readTrimmed returns the file's contents with surrounding whitespace
// removed, or "" when unreadable.
func readTrimmed(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

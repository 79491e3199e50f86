// Copyright 2026 The Pelorus Authors
// SPDX-License-Identifier: Apache-2.0

package schema

// VesselInfo is the own-ship metadata document pushed to the shore's
// monitoring endpoint: static vessel identity plus a description of
// the host the collector runs on. The shore requests a fresh copy by
// setting refreshMetadata in a push response.
type VesselInfo struct {
	Name     string `json:"name,omitempty"`
	MMSI     string `json:"mmsi,omitempty"`
	Callsign string `json:"callsign,omitempty"`

	LengthM  float64 `json:"length,omitempty"`
	BeamM    float64 `json:"beam,omitempty"`
	DraughtM float64 `json:"draught,omitempty"`

	// CollectorVersion is the running collector's version string.
	CollectorVersion string `json:"collectorVersion,omitempty"`

	// Platform describes the host, best-effort.
	Platform PlatformInfo `json:"platform"`
}

// PlatformInfo is the probed host description. Every field is
// best-effort; unreadable values stay empty.
type PlatformInfo struct {
	// OS is the operating system name from os-release (for example
	// "Debian GNU/Linux 13"), falling back to GOOS.
	OS string `json:"os,omitempty"`

	// Kernel is the kernel release string from uname.
	Kernel string `json:"kernel,omitempty"`

	// Arch is the machine architecture from uname, for example
	// "aarch64".
	Arch string `json:"arch,omitempty"`

	// MachineID is the stable host identifier from /etc/machine-id.
	MachineID string `json:"machineId,omitempty"`

	// GoVersion is the toolchain that built the collector.
	GoVersion string `json:"goVersion,omitempty"`
}

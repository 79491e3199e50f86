// Copyright 2026 The Pelorus Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for Pelorus packages.
//
// [RequireReceive] and [RequireClosed] wrap channel operations with a
// wall-clock timeout safety valve. They are the only
// place the test suite touches real time; everything else drives a
// clock.FakeClock. A test that would otherwise hang on a stuck channel
// fails with a message instead.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
package testutil

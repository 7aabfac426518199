// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package engine

import "github.com/nilsen-re/memscan/internal/provider"

// Event is published on a Session's event channel after any command
// that changes engine state, per spec.md §4.8.
type Event interface{ isEvent() }

// ScanResultsUpdated fires after any scan pass that changes the result
// set, whether from Scan::New or a Scan::Element refinement.
type ScanResultsUpdated struct{ IsNewScan bool }

// ProcessOpened fires when Process::Open succeeds.
type ProcessOpened struct{ Process provider.Process }

// ProcessClosed fires when Process::Close succeeds. The session does
// not detect a target process exiting on its own, so it is never
// published implicitly.
type ProcessClosed struct{}

// SnapshotReset fires when Scan::Reset succeeds.
type SnapshotReset struct{}

func (ScanResultsUpdated) isEvent() {}
func (ProcessOpened) isEvent()      {}
func (ProcessClosed) isEvent()      {}
func (SnapshotReset) isEvent()      {}

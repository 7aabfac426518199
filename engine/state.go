// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package engine

// State is the engine session's lifecycle, per spec.md §4.7:
//
//	Closed --open-->          Opened
//	Opened --close-->         Closed
//	Opened --scan:new-->      HasSnapshot
//	HasSnapshot --scan:new--> HasSnapshot (discards prior)
//	HasSnapshot --scan:reset--> Opened
//	HasSnapshot --scan:element--> HasSnapshot (refinement)
//	HasSnapshot --results:*--> HasSnapshot
//	HasSnapshot --close-->    Closed (drops snapshot)
//
// A target process that exits on its own is not detected: the session
// keeps its state until Process::Close. Invalid-transition requests
// return InvalidState and never mutate.
type State uint8

const (
	StateClosed State = iota
	StateOpened
	StateHasSnapshot
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "Closed"
	case StateOpened:
		return "Opened"
	case StateHasSnapshot:
		return "HasSnapshot"
	default:
		return "Unknown"
	}
}

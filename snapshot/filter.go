// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package snapshot

import "github.com/nilsen-re/memscan/valuetype"

// Filter identifies a run of candidate elements of a single data type
// and alignment, all satisfying the same scan constraints, inside one
// SnapshotRegion.
type Filter struct {
	BaseAddress  uint64
	ElementCount uint64
}

// End returns the address just past the last element of the run.
func (f Filter) End(elementSize uint64) uint64 {
	return f.BaseAddress + f.ElementCount*elementSize
}

// FilterCollection groups filters that share a (DataType, Alignment).
type FilterCollection struct {
	DataType  valuetype.DataType
	Alignment uint64
	Filters   []Filter
}

// ElementCount is the total number of surviving elements across every
// filter in the collection.
func (c FilterCollection) ElementCount() uint64 {
	var n uint64
	for _, f := range c.Filters {
		n += f.ElementCount
	}
	return n
}

// ScanResults is the ordered list of filter collections that survived
// the most recently completed pass over one region, i.e. a
// SnapshotRegionScanResults.
type ScanResults []FilterCollection

// ElementCount sums ElementCount across every collection.
func (s ScanResults) ElementCount() uint64 {
	var n uint64
	for _, c := range s {
		n += c.ElementCount()
	}
	return n
}

// RemoveAddress removes the single candidate element at addr from
// whichever collection's filter run contains it, splitting that run
// into up to two runs around the removed element. It reports whether
// addr was found.
func (s ScanResults) RemoveAddress(addr uint64) bool {
	for ci := range s {
		coll := &s[ci]
		stride := coll.Alignment
		if stride == 0 {
			stride = 1
		}
		for fi, f := range coll.Filters {
			end := f.BaseAddress + f.ElementCount*stride
			if addr < f.BaseAddress || addr >= end {
				continue
			}
			if (addr-f.BaseAddress)%stride != 0 {
				continue
			}
			idx := (addr - f.BaseAddress) / stride
			var replacement []Filter
			if idx > 0 {
				replacement = append(replacement, Filter{BaseAddress: f.BaseAddress, ElementCount: idx})
			}
			if idx+1 < f.ElementCount {
				replacement = append(replacement, Filter{BaseAddress: addr + stride, ElementCount: f.ElementCount - idx - 1})
			}
			next := make([]Filter, 0, len(coll.Filters)-1+len(replacement))
			next = append(next, coll.Filters[:fi]...)
			next = append(next, replacement...)
			next = append(next, coll.Filters[fi+1:]...)
			coll.Filters = next
			return true
		}
	}
	return false
}

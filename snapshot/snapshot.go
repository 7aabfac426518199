// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package snapshot

import (
	"sort"

	"github.com/nilsen-re/memscan/internal/provider"
)

// SnapshotRegion owns one NormalizedRegion plus its double-buffered
// byte contents and the filter collections that survived the most
// recent scan pass over it.
type SnapshotRegion struct {
	Region   Region
	Current  []byte
	Previous []byte

	// Results holds the surviving filter collections from the last
	// completed pass. Nil means "unfiltered": the whole region is a
	// candidate, as is the case immediately after Scan::New.
	Results ScanResults

	// ReadFailed is set by BeginPass when the OS reader could not
	// refill Current this pass; the pipeline must skip such regions.
	ReadFailed bool
}

// Snapshot is the engine's materialized, double-buffered view of
// target memory at a point in time: an ordered list of SnapshotRegion.
type Snapshot struct {
	Regions []*SnapshotRegion
}

// New builds a Snapshot from normalized regions, allocating zero-filled
// current/previous buffers of region.Size for each.
func New(regions []Region) *Snapshot {
	sort.Slice(regions, func(i, j int) bool { return regions[i].BaseAddress < regions[j].BaseAddress })
	s := &Snapshot{Regions: make([]*SnapshotRegion, len(regions))}
	for i, r := range regions {
		s.Regions[i] = &SnapshotRegion{
			Region:   r,
			Current:  make([]byte, r.Size),
			Previous: make([]byte, r.Size),
		}
	}
	return s
}

// BeginPass moves Current into Previous (by buffer swap, not copy) and
// refills Current from prov for every region, per spec.md §4.2. It
// returns the number of regions whose read failed this pass; those
// regions' Current is left equal to Previous and their prior Results
// are cleared so the pipeline skips them.
func (s *Snapshot) BeginPass(prov provider.Provider, h provider.Handle) int {
	failures := 0
	for _, r := range s.Regions {
		r.Previous, r.Current = r.Current, r.Previous
		if prov.Read(h, r.Region.BaseAddress, r.Current) {
			r.ReadFailed = false
			continue
		}
		copy(r.Current, r.Previous)
		r.ReadFailed = true
		r.Results = nil
		failures++
	}
	return failures
}

// RegionAt returns the SnapshotRegion containing addr, or nil. It is
// modeled on the teacher's page-table findMapping: here a plain binary
// search suffices since Snapshot holds far fewer, merged regions than a
// raw OS page table would.
func (s *Snapshot) RegionAt(addr uint64) *SnapshotRegion {
	i := sort.Search(len(s.Regions), func(i int) bool {
		return s.Regions[i].Region.End() > addr
	})
	if i == len(s.Regions) {
		return nil
	}
	r := s.Regions[i]
	if addr < r.Region.BaseAddress {
		return nil
	}
	return r
}

// ElementCount sums ElementCount across every region's Results. Before
// the first scan (Results == nil everywhere) it reports 0.
func (s *Snapshot) ElementCount() uint64 {
	var n uint64
	for _, r := range s.Regions {
		n += r.Results.ElementCount()
	}
	return n
}

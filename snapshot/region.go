// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package snapshot holds the normalized-region and double-buffered
// snapshot representation of target memory (spec.md §3/§4.2). It is
// modeled on the teacher core package's Mapping/page-table reasoning,
// generalized from a static core-dump mapping table to a live,
// repeatedly re-snapshotted one.
package snapshot

import (
	"fmt"
	"sort"

	"github.com/nilsen-re/memscan/internal/provider"
)

// Region is a NormalizedRegion: a contiguous run of target address
// space built by merging adjacent OS pages, retaining each original
// page edge for diagnostics.
type Region struct {
	BaseAddress    uint64
	Size           uint64
	PageBoundaries []uint64
	Perm           provider.Perm
	MemoryType     provider.MemoryType
	ModuleName     string
}

// End returns the address just past the region.
func (r Region) End() uint64 { return r.BaseAddress + r.Size }

// Contains reports whether [addr, addr+size) lies entirely within r.
func (r Region) Contains(addr, size uint64) bool {
	return addr >= r.BaseAddress && addr+size <= r.End()
}

// validate checks the NormalizedRegion invariants from spec.md §3.
func (r Region) validate() error {
	if r.Size == 0 {
		return fmt.Errorf("snapshot: region at %#x has zero size", r.BaseAddress)
	}
	prev := r.BaseAddress
	for _, b := range r.PageBoundaries {
		if b <= prev || b >= r.End() {
			return fmt.Errorf("snapshot: region at %#x has out-of-order page boundary %#x", r.BaseAddress, b)
		}
		prev = b
	}
	return nil
}

// MergeOSPages merges adjacent OS pages into NormalizedRegions. Pages
// are adjacent when one's end address equals the next's base address
// and their permission/memory-type attributes agree; non-adjacent (or
// attribute-differing) pages never merge, even if contiguous in address
// space, so that the memory-settings filter (spec.md §6) can still be
// applied per original page before merging if desired by the caller.
func MergeOSPages(pages []provider.Page) []Region {
	sorted := make([]provider.Page, len(pages))
	copy(sorted, pages)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].BaseAddress < sorted[j].BaseAddress })

	var regions []Region
	for _, p := range sorted {
		if p.Size == 0 {
			continue
		}
		if n := len(regions); n > 0 {
			last := &regions[n-1]
			if last.End() == p.BaseAddress && last.Perm == p.Perm && last.MemoryType == p.MemoryType {
				last.PageBoundaries = append(last.PageBoundaries, p.BaseAddress)
				last.Size += p.Size
				continue
			}
		}
		regions = append(regions, Region{
			BaseAddress: p.BaseAddress,
			Size:        p.Size,
			Perm:        p.Perm,
			MemoryType:  p.MemoryType,
			ModuleName:  p.ModuleName,
		})
	}
	return regions
}

// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package results

import (
	"sort"

	"github.com/nilsen-re/memscan/internal/provider"
	"github.com/nilsen-re/memscan/snapshot"
	"github.com/nilsen-re/memscan/valuetype"
)

// FreezeLookup reports whether a given address currently holds a
// frozen value, without this package needing to import the freeze
// registry itself.
type FreezeLookup interface {
	IsFrozen(address uint64) bool
}

// Result is the materialized, on-demand view of one surviving
// element: spec.md's ScanResult.
type Result struct {
	Address       uint64
	DataType      valuetype.DataType
	CurrentBytes  []byte
	PreviousBytes []byte
	ModuleName    string
	ModuleOffset  uint64
	HasModule     bool
	IsFrozen      bool
}

// segment is one (region, collection, filter) run flattened into the
// global enumeration, with the element count needed for the
// prefix-sum search.
type segment struct {
	regionIndex     int
	collectionIndex int
	filterIndex     int
	baseAddress     uint64
	elementCount    uint64
	dataType        valuetype.DataType
	alignment       uint64
}

// Ref names one element by address, type, and the Index generation it
// was issued against; a later Build invalidates every older Ref.
type Ref struct {
	Address    uint64
	DataType   valuetype.DataType
	Generation uint64
}

// RefreshedResult is the outcome of refreshing one Ref.
type RefreshedResult struct {
	Ref     Ref
	Result  Result
	Missing bool
}

// Index is the stable, paged enumeration over one snapshot's
// surviving elements, rebuilt at the end of every scan pass.
type Index struct {
	snap       *snapshot.Snapshot
	segments   []segment
	prefix     []uint64 // prefix[i] = total element count before segments[i]
	total      uint64
	generation uint64
	modules    *ModuleTable
}

// Build flattens snap's per-region ScanResults into a stable global
// enumeration. generation should be a monotonically increasing counter
// the caller bumps on every Build, so stale Refs from a prior pass can
// be detected and rejected by Refresh.
func Build(snap *snapshot.Snapshot, modules *ModuleTable, generation uint64) *Index {
	idx := &Index{snap: snap, generation: generation, modules: modules}
	var total uint64
	for ri, region := range snap.Regions {
		for ci, collection := range region.Results {
			for fi, filter := range collection.Filters {
				idx.prefix = append(idx.prefix, total)
				idx.segments = append(idx.segments, segment{
					regionIndex:     ri,
					collectionIndex: ci,
					filterIndex:     fi,
					baseAddress:     filter.BaseAddress,
					elementCount:    filter.ElementCount,
					dataType:        collection.DataType,
					alignment:       collection.Alignment,
				})
				total += filter.ElementCount
			}
		}
	}
	idx.total = total
	return idx
}

// ElementCount returns the total number of surviving elements indexed.
func (idx *Index) ElementCount() uint64 { return idx.total }

// Generation returns the scan-pass generation this Index was built
// from; Refs it issues via MakeRef carry this value.
func (idx *Index) Generation() uint64 { return idx.generation }

// Query returns up to pageSize results starting at global index
// pageIndex*pageSize, with current/previous bytes, module resolution,
// and freeze state filled in. freezes may be nil.
func (idx *Index) Query(pageIndex, pageSize int, freezes FreezeLookup) []Result {
	if pageSize <= 0 {
		return nil
	}
	start := uint64(pageIndex) * uint64(pageSize)
	if start >= idx.total {
		return nil
	}
	end := start + uint64(pageSize)
	if end > idx.total {
		end = idx.total
	}

	results := make([]Result, 0, end-start)
	segIdx := idx.segmentAt(start)
	g := start
	for g < end {
		seg := idx.segments[segIdx]
		localStart := g - idx.prefix[segIdx]
		for ; localStart < seg.elementCount && g < end; localStart, g = localStart+1, g+1 {
			results = append(results, idx.materialize(seg, localStart, freezes))
		}
		segIdx++
	}
	return results
}

// segmentAt returns the index into idx.segments whose range contains
// global index g, via binary search over the prefix-sum table.
func (idx *Index) segmentAt(g uint64) int {
	return sort.Search(len(idx.segments), func(i int) bool {
		next := idx.total
		if i+1 < len(idx.prefix) {
			next = idx.prefix[i+1]
		}
		return next > g
	})
}

func (idx *Index) materialize(seg segment, localOffset uint64, freezes FreezeLookup) Result {
	region := idx.snap.Regions[seg.regionIndex]
	addr := seg.baseAddress + localOffset*seg.alignment
	elemSize := uint64(seg.dataType.SizeInBytes())
	off := addr - region.Region.BaseAddress

	r := Result{Address: addr, DataType: seg.dataType}
	if off+elemSize <= uint64(len(region.Current)) {
		r.CurrentBytes = append([]byte(nil), region.Current[off:off+elemSize]...)
	}
	if off+elemSize <= uint64(len(region.Previous)) {
		r.PreviousBytes = append([]byte(nil), region.Previous[off:off+elemSize]...)
	}
	if idx.modules != nil {
		if name, offset, ok := idx.modules.Resolve(addr); ok {
			r.ModuleName, r.ModuleOffset, r.HasModule = name, offset, true
		}
	}
	if freezes != nil {
		r.IsFrozen = freezes.IsFrozen(addr)
	}
	return r
}

// MakeRef returns the Ref a caller should hold to later Refresh the
// element at addr/dt, stamped with this Index's generation.
func (idx *Index) MakeRef(addr uint64, dt valuetype.DataType) Ref {
	return Ref{Address: addr, DataType: dt, Generation: idx.generation}
}

// Refresh re-reads current bytes directly from the OS for each ref,
// without running any comparator. Refs whose Generation doesn't match
// idx's (because a later scan pass superseded them) come back Missing;
// the caller is expected to drop those.
func (idx *Index) Refresh(prov provider.Provider, h provider.Handle, refs []Ref, freezes FreezeLookup) []RefreshedResult {
	out := make([]RefreshedResult, len(refs))
	for i, ref := range refs {
		if ref.Generation != idx.generation {
			out[i] = RefreshedResult{Ref: ref, Missing: true}
			continue
		}
		elemSize := uint64(ref.DataType.SizeInBytes())
		buf := make([]byte, elemSize)
		if !prov.Read(h, ref.Address, buf) {
			out[i] = RefreshedResult{Ref: ref, Missing: true}
			continue
		}
		r := Result{Address: ref.Address, DataType: ref.DataType, CurrentBytes: buf}
		if region := idx.snap.RegionAt(ref.Address); region != nil {
			off := ref.Address - region.Region.BaseAddress
			if off+elemSize <= uint64(len(region.Previous)) {
				r.PreviousBytes = append([]byte(nil), region.Previous[off:off+elemSize]...)
			}
		}
		if idx.modules != nil {
			if name, offset, ok := idx.modules.Resolve(ref.Address); ok {
				r.ModuleName, r.ModuleOffset, r.HasModule = name, offset, true
			}
		}
		if freezes != nil {
			r.IsFrozen = freezes.IsFrozen(ref.Address)
		}
		out[i] = RefreshedResult{Ref: ref, Result: r}
	}
	return out
}

// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scan

import (
	"context"
	"runtime"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/nilsen-re/memscan/compare"
	"github.com/nilsen-re/memscan/snapshot"
)

// Pipeline runs one Constraint across every region of a snapshot,
// partitioning work across a bounded worker pool the way the teacher
// partitions ptrace calls onto a dedicated goroutine: here each region
// gets its own goroutine, gated by a weighted semaphore instead of a
// single-goroutine serialization point, since region reads need no
// shared OS handle affinity.
type Pipeline struct {
	Table *compare.Table

	// Level is the batch width used for the vector scan path.
	// LevelNone forces every region through the scalar path.
	Level Level

	// MaxConcurrency bounds how many regions are scanned at once.
	// Zero means runtime.GOMAXPROCS(0).
	MaxConcurrency int

	// Validate re-runs every region through both the scalar and
	// vector paths and errors if they disagree, per the engine's
	// debug_perform_validation_scan mode.
	Validate bool
}

// NewPipeline builds a Pipeline that auto-detects the host's SIMD
// batch width.
func NewPipeline(table *compare.Table) *Pipeline {
	return &Pipeline{Table: table, Level: DetectLevel()}
}

// Run evaluates constraint across every non-failed region of snap,
// replacing each region's Results with the single FilterCollection of
// survivors. A nil (pre-scan) or matching (DataType, Alignment)
// Results collection is the input universe for refinement; a region
// whose prior Results holds a different (DataType, Alignment) is left
// with zero surviving elements, since its candidates were never typed
// as this constraint's DataType to begin with.
func (p *Pipeline) Run(ctx context.Context, snap *snapshot.Snapshot, constraint Constraint) error {
	pred, err := constraint.compile(p.Table)
	if err != nil {
		return errors.Wrap(err, "scan: compiling constraint")
	}

	maxConcurrency := p.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = runtime.GOMAXPROCS(0)
	}
	sem := semaphore.NewWeighted(int64(maxConcurrency))

	group, gctx := errgroup.WithContext(ctx)
	elemSize := uint64(constraint.DataType.SizeInBytes())

	for _, region := range snap.Regions {
		region := region
		if region.ReadFailed {
			continue
		}
		runs := inputRuns(region, constraint)
		if len(runs) == 0 {
			region.Results = snapshot.ScanResults{{DataType: constraint.DataType, Alignment: constraint.Alignment}}
			continue
		}
		if err := sem.Acquire(gctx, 1); err != nil {
			return err
		}
		group.Go(func() error {
			defer sem.Release(1)
			survivors, err := p.scanRegion(region, runs, elemSize, constraint.Alignment, pred)
			if err != nil {
				return err
			}
			region.Results = snapshot.ScanResults{{
				DataType:  constraint.DataType,
				Alignment: constraint.Alignment,
				Filters:   survivors,
			}}
			return nil
		})
	}
	return group.Wait()
}

// inputRuns resolves which byte ranges of region are candidates for
// constraint: the whole region on a fresh scan, the matching filter
// collection's runs on a refinement scan, or nothing when the region's
// existing results were typed differently.
func inputRuns(region *snapshot.SnapshotRegion, constraint Constraint) []snapshot.Filter {
	if region.Results == nil {
		elemSize := constraint.DataType.SizeInBytes()
		if elemSize == 0 || constraint.Alignment == 0 {
			return nil
		}
		count := region.Region.Size / constraint.Alignment
		if count == 0 {
			return nil
		}
		return []snapshot.Filter{{BaseAddress: region.Region.BaseAddress, ElementCount: count}}
	}
	for _, collection := range region.Results {
		if collection.DataType == constraint.DataType && collection.Alignment == constraint.Alignment {
			return collection.Filters
		}
	}
	return nil
}

// scanRegion scans every run of a region and concatenates the results.
// When p.Validate is set, it runs both the scalar and vector paths and
// errors on any disagreement between them.
func (p *Pipeline) scanRegion(region *snapshot.SnapshotRegion, runs []snapshot.Filter, elemSize, alignment uint64, pred elementPredicate) ([]snapshot.Filter, error) {
	var out []snapshot.Filter
	for _, run := range runs {
		localOffset := run.BaseAddress - region.Region.BaseAddress
		var result []snapshot.Filter
		if p.Validate {
			scalar := scanSpanScalar(region.Current, region.Previous, localOffset, run.BaseAddress, elemSize, alignment, run.ElementCount, pred)
			vector := scanSpan(region.Current, region.Previous, localOffset, run.BaseAddress, elemSize, alignment, run.ElementCount, pred, p.Level)
			if !filtersEqual(scalar, vector) {
				return nil, errors.Errorf("scan: scalar/vector mismatch in region 0x%x", region.Region.BaseAddress)
			}
			result = vector
		} else {
			result = scanSpan(region.Current, region.Previous, localOffset, run.BaseAddress, elemSize, alignment, run.ElementCount, pred, p.Level)
		}
		out = append(out, result...)
	}
	return out, nil
}

func filtersEqual(a, b []snapshot.Filter) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

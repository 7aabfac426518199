// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scan

import "github.com/nilsen-re/memscan/snapshot"

// vectorThresholdFactor sets the small-run cutoff: a run of fewer than
// vectorThresholdFactor*lanes elements, where batching overhead
// dominates, uses the scalar path instead.
const vectorThresholdFactor = 2

// scanSpan picks the scalar or batched-lane path for one run of count
// candidate elements, falling back to scalar whenever level is
// LevelNone or the run is too small to amortize batching.
func scanSpan(current, previous []byte, localOffset, absBase, elemSize, alignment, count uint64, pred elementPredicate, level Level) []snapshot.Filter {
	lanes := level.lanesPerBatch(elemSize)
	if level == LevelNone || count < uint64(vectorThresholdFactor*lanes) {
		return scanSpanScalar(current, previous, localOffset, absBase, elemSize, alignment, count, pred)
	}
	return scanSpanVector(current, previous, localOffset, absBase, elemSize, alignment, count, pred, lanes)
}

// scanSpanVector batches `lanes` elements at a time into a single
// occupancy mask word, then hands the mask to the bit-scanning
// coalescer. Each lane still calls the exact same elementPredicate the
// scalar path uses, so the two paths are bit-for-bit equivalent; this
// is the idiomatic substitute for true SIMD compare instructions,
// which Go exposes no portable intrinsic for.
func scanSpanVector(current, previous []byte, localOffset, absBase, elemSize, alignment, count uint64, pred elementPredicate, lanes int) []snapshot.Filter {
	c := newRunCoalescer(alignment)
	i := uint64(0)
	for i+uint64(lanes) <= count {
		var mask uint64
		batchAbs := absBase + i*alignment
		for l := 0; l < lanes; l++ {
			off := localOffset + (i+uint64(l))*alignment
			end := off + elemSize
			if end > uint64(len(current)) {
				lanes = l
				break
			}
			if pred(current[off:end], previous[off:end]) {
				mask |= 1 << uint(l)
			}
		}
		bitmaskRuns(c, batchAbs, alignment, mask, lanes)
		i += uint64(lanes)
	}
	// Tail: fewer than one full batch of elements remain.
	for ; i < count; i++ {
		off := localOffset + i*alignment
		end := off + elemSize
		if end > uint64(len(current)) {
			break
		}
		c.push(absBase+i*alignment, pred(current[off:end], previous[off:end]))
	}
	return c.filters()
}

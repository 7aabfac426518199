// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scan

import "github.com/nilsen-re/memscan/snapshot"

// scanSpanScalar walks count candidate elements of elemSize bytes,
// spaced alignment bytes apart, starting at localOffset bytes into
// current/previous (absBase being that offset's absolute address),
// calling pred once per element and coalescing survivors into runs.
func scanSpanScalar(current, previous []byte, localOffset, absBase, elemSize, alignment, count uint64, pred elementPredicate) []snapshot.Filter {
	c := newRunCoalescer(alignment)
	for i := uint64(0); i < count; i++ {
		off := localOffset + i*alignment
		end := off + elemSize
		if end > uint64(len(current)) {
			break
		}
		survived := pred(current[off:end], previous[off:end])
		c.push(absBase+i*alignment, survived)
	}
	return c.filters()
}

// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scan

import "github.com/nilsen-re/memscan/snapshot"

// runCoalescer accumulates a stream of per-element survive/reject
// bits at consecutive addresses (base, base+stride, base+2*stride...)
// into the smallest set of snapshot.Filter runs that describe them.
type runCoalescer struct {
	stride uint64
	out    []snapshot.Filter
	open   bool
	runBase uint64
	runLen  uint64
	next    uint64
}

func newRunCoalescer(stride uint64) *runCoalescer {
	return &runCoalescer{stride: stride}
}

// push records the verdict for the element at the given address. push
// must be called with strictly increasing addresses.
func (c *runCoalescer) push(addr uint64, survived bool) {
	if !survived {
		c.flush()
		return
	}
	if c.open && addr == c.next {
		c.runLen++
		c.next += c.stride
		return
	}
	c.flush()
	c.open = true
	c.runBase = addr
	c.runLen = 1
	c.next = addr + c.stride
}

func (c *runCoalescer) flush() {
	if !c.open {
		return
	}
	c.out = append(c.out, snapshot.Filter{BaseAddress: c.runBase, ElementCount: c.runLen})
	c.open = false
}

// filters finalizes and returns the accumulated runs.
func (c *runCoalescer) filters() []snapshot.Filter {
	c.flush()
	return c.out
}

// bitmaskRuns decodes a little-bit-0-is-first-lane occupancy mask
// covering n lanes starting at baseAddr with the given stride, and
// feeds each lane's verdict into c. This is the bit-scanning step of
// the vector path: consecutive set bits in the mask become (or
// extend) a run without a second pass over the lane data.
func bitmaskRuns(c *runCoalescer, baseAddr, stride uint64, mask uint64, n int) {
	for i := 0; i < n; i++ {
		c.push(baseAddr+uint64(i)*stride, mask&(1<<uint(i)) != 0)
	}
}

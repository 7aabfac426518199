// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scan

import "golang.org/x/sys/cpu"

// Level names the width of the bit-packed lane batch the vector scan
// path uses in place of real SIMD instructions: Go has no portable
// intrinsics surface, so a Level only controls how many elements are
// batched into one occupancy mask word before the bit-scanning
// coalescer runs over it. The predicate invoked per lane is always the
// same compare.Immediate/Relative/Delta closure the scalar path uses,
// so results are bit-for-bit identical regardless of Level.
type Level uint8

const (
	LevelNone Level = iota
	Level128
	Level256
	Level512
)

// widthBits returns the batch width in bits.
func (l Level) widthBits() int {
	switch l {
	case Level128:
		return 128
	case Level256:
		return 256
	case Level512:
		return 512
	default:
		return 0
	}
}

func (l Level) String() string {
	switch l {
	case Level128:
		return "128"
	case Level256:
		return "256"
	case Level512:
		return "512"
	default:
		return "none"
	}
}

// DetectLevel inspects the running CPU's feature bits via
// golang.org/x/sys/cpu and returns the widest batch Level it supports.
func DetectLevel() Level {
	switch {
	case cpu.X86.HasAVX512F:
		return Level512
	case cpu.X86.HasAVX2:
		return Level256
	case cpu.X86.HasAVX, cpu.ARM64.HasASIMD:
		return Level128
	default:
		return LevelNone
	}
}

// lanesPerBatch returns how many elements of elementSize bytes fit in
// one batch at this Level, at least 1.
func (l Level) lanesPerBatch(elementSize uint64) int {
	w := l.widthBits()
	if w == 0 || elementSize == 0 {
		return 1
	}
	n := w / 8 / int(elementSize)
	if n < 1 {
		return 1
	}
	if n > 64 {
		n = 64 // one mask word holds at most 64 lanes
	}
	return n
}

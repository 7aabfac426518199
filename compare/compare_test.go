// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package compare

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nilsen-re/memscan/valuetype"
)

func TestEqualImmediateU32LittleEndian(t *testing.T) {
	table := NewTable(0)
	fn, err := table.ResolveImmediate(Equal, valuetype.U32(valuetype.LittleEndian))
	require.NoError(t, err)

	cur := []byte{5, 0, 0, 0}
	con := []byte{5, 0, 0, 0}
	assert.True(t, fn(cur, con))

	con2 := []byte{7, 0, 0, 0}
	assert.False(t, fn(cur, con2))
}

func TestIncreasedRelativeU8(t *testing.T) {
	table := NewTable(0)
	fn, err := table.ResolveRelative(Increased, valuetype.U8())
	require.NoError(t, err)

	// previous [10, 20], current [11, 19]: only offset 0 survives.
	assert.True(t, fn([]byte{11}, []byte{10}))
	assert.False(t, fn([]byte{19}, []byte{20}))
}

func TestIncreasedByXWraparound(t *testing.T) {
	table := NewTable(0)
	fn, err := table.ResolveDelta(IncreasedByX, valuetype.U8())
	require.NoError(t, err)

	delta := []byte{5}
	// previous 0xFF, current 0x04: wrapping 0xFF+5 = 0x04.
	assert.True(t, fn([]byte{0x04}, []byte{0xFF}, delta))
}

func TestEndianMismatchOrdering(t *testing.T) {
	table := NewTable(0)
	fn, err := table.ResolveImmediate(LessThan, valuetype.U32(valuetype.BigEndian))
	require.NoError(t, err)

	// 00 00 00 FF big-endian is 255, which is < 256.
	constant := make([]byte, 4)
	valuetype.EncodeInto(constant, valuetype.U32(valuetype.BigEndian), 256, nil)
	assert.True(t, fn([]byte{0x00, 0x00, 0x00, 0xFF}, constant))

	// FF 00 00 00 big-endian is 0xFF000000, which is NOT < 256.
	assert.False(t, fn([]byte{0xFF, 0x00, 0x00, 0x00}, constant))
}

func TestUnsupportedCompareOnBytes(t *testing.T) {
	table := NewTable(0)
	_, err := table.ResolveImmediate(GreaterThan, valuetype.Bytes(4))
	assert.ErrorIs(t, err, ErrUnsupportedCompare)
}

func TestUnsupportedDeltaOnFloatBitwise(t *testing.T) {
	table := NewTable(0)
	_, err := table.ResolveDelta(AndByX, valuetype.F32(valuetype.LittleEndian))
	assert.ErrorIs(t, err, ErrUnsupportedCompare)
}

func TestFloatIncreasedByXWithTolerance(t *testing.T) {
	table := NewTable(0.01)
	fn, err := table.ResolveDelta(IncreasedByX, valuetype.F32(valuetype.LittleEndian))
	require.NoError(t, err)

	dt := valuetype.F32(valuetype.LittleEndian)
	prev := make([]byte, 4)
	valuetype.EncodeInto(prev, dt, uint64(math.Float32bits(1.0)), nil)
	delta := make([]byte, 4)
	valuetype.EncodeInto(delta, dt, uint64(math.Float32bits(0.5)), nil)
	cur := make([]byte, 4)
	// 1.0 + 0.5 = 1.5, but current is 1.505, within 0.01 tolerance.
	valuetype.EncodeInto(cur, dt, uint64(math.Float32bits(1.505)), nil)

	assert.True(t, fn(cur, prev, delta))
}

func TestFloatUnchangedIsStrictEquality(t *testing.T) {
	table := NewTable(0.5) // tolerance must not apply to Unchanged
	fn, err := table.ResolveRelative(Unchanged, valuetype.F64(valuetype.LittleEndian))
	require.NoError(t, err)

	dt := valuetype.F64(valuetype.LittleEndian)
	a := make([]byte, 8)
	valuetype.EncodeInto(a, dt, math.Float64bits(1.0), nil)
	b := make([]byte, 8)
	valuetype.EncodeInto(b, dt, math.Float64bits(1.2), nil)

	assert.False(t, fn(a, b))
}

func TestBitwiseDeltaXor(t *testing.T) {
	table := NewTable(0)
	fn, err := table.ResolveDelta(XorByX, valuetype.U8())
	require.NoError(t, err)
	assert.True(t, fn([]byte{0b0110}, []byte{0b0101}, []byte{0b0011}))
}

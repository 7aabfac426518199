// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scan

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nilsen-re/memscan/compare"
	"github.com/nilsen-re/memscan/snapshot"
	"github.com/nilsen-re/memscan/valuetype"
)

func newByteSnapshot(t *testing.T, base uint64, current []byte) *snapshot.Snapshot {
	t.Helper()
	snap := snapshot.New([]snapshot.Region{{BaseAddress: base, Size: uint64(len(current))}})
	copy(snap.Regions[0].Current, current)
	return snap
}

func TestPipelineFreshScanEqualImmediate(t *testing.T) {
	snap := newByteSnapshot(t, 0x1000, []byte{5, 0, 7, 0, 5, 0, 9, 0})
	p := &Pipeline{Table: compare.NewTable(0), Level: LevelNone}

	c := Constraint{
		DataType:  valuetype.U16(valuetype.LittleEndian),
		Alignment: 2,
		Compare:   compare.Equal,
		Operand:   OperandImmediate,
		Immediate: []byte{5, 0},
	}
	require.NoError(t, p.Run(context.Background(), snap, c))

	results := snap.Regions[0].Results
	require.Len(t, results, 1)
	assert.Equal(t, []snapshot.Filter{
		{BaseAddress: 0x1000, ElementCount: 1},
		{BaseAddress: 0x1004, ElementCount: 1},
	}, results[0].Filters)
}

func TestPipelineRefinementNarrowsPreviousResults(t *testing.T) {
	snap := newByteSnapshot(t, 0x1000, []byte{5, 0, 7, 0, 5, 0, 9, 0})
	p := &Pipeline{Table: compare.NewTable(0), Level: LevelNone}

	u16 := valuetype.U16(valuetype.LittleEndian)
	first := Constraint{DataType: u16, Alignment: 2, Compare: compare.Equal, Operand: OperandImmediate, Immediate: []byte{5, 0}}
	require.NoError(t, p.Run(context.Background(), snap, first))
	require.Equal(t, uint64(2), snap.ElementCount())

	// Refine: only the element at 0x1000 should now equal 5 after a value change.
	snap.Regions[0].Current[4] = 9 // second "5" becomes 9
	second := Constraint{DataType: u16, Alignment: 2, Compare: compare.Equal, Operand: OperandImmediate, Immediate: []byte{5, 0}}
	require.NoError(t, p.Run(context.Background(), snap, second))

	results := snap.Regions[0].Results
	require.Len(t, results, 1)
	assert.Equal(t, []snapshot.Filter{{BaseAddress: 0x1000, ElementCount: 1}}, results[0].Filters)
}

func TestPipelineMismatchedRefinementTypeYieldsEmpty(t *testing.T) {
	snap := newByteSnapshot(t, 0x1000, []byte{1, 2, 3, 4})
	p := &Pipeline{Table: compare.NewTable(0), Level: LevelNone}

	u8 := valuetype.U8()
	first := Constraint{DataType: u8, Alignment: 1, Compare: compare.Equal, Operand: OperandImmediate, Immediate: []byte{1}}
	require.NoError(t, p.Run(context.Background(), snap, first))

	u32 := valuetype.U32(valuetype.LittleEndian)
	second := Constraint{DataType: u32, Alignment: 4, Compare: compare.Equal, Operand: OperandImmediate, Immediate: []byte{1, 2, 3, 4}}
	require.NoError(t, p.Run(context.Background(), snap, second))

	assert.Equal(t, uint64(0), snap.ElementCount())
}

func TestPipelineReadFailedRegionSkipped(t *testing.T) {
	snap := newByteSnapshot(t, 0x1000, []byte{1, 1, 1, 1})
	snap.Regions[0].ReadFailed = true
	p := &Pipeline{Table: compare.NewTable(0), Level: LevelNone}

	c := Constraint{DataType: valuetype.U8(), Alignment: 1, Compare: compare.Equal, Operand: OperandImmediate, Immediate: []byte{1}}
	require.NoError(t, p.Run(context.Background(), snap, c))
	assert.Nil(t, snap.Regions[0].Results)
}

func TestPipelineScalarVectorEquivalence(t *testing.T) {
	data := make([]byte, 256)
	for i := range data {
		data[i] = byte(i % 7)
	}
	snapScalar := newByteSnapshot(t, 0x2000, data)
	snapVector := newByteSnapshot(t, 0x2000, data)

	c := Constraint{DataType: valuetype.U8(), Alignment: 1, Compare: compare.GreaterThan, Operand: OperandImmediate, Immediate: []byte{3}}

	pScalar := &Pipeline{Table: compare.NewTable(0), Level: LevelNone}
	require.NoError(t, pScalar.Run(context.Background(), snapScalar, c))

	pVector := &Pipeline{Table: compare.NewTable(0), Level: Level256}
	require.NoError(t, pVector.Run(context.Background(), snapVector, c))

	assert.Equal(t, snapScalar.Regions[0].Results[0].Filters, snapVector.Regions[0].Results[0].Filters)
}

func TestPipelineValidateDetectsNoMismatchOnAgreeingPaths(t *testing.T) {
	data := make([]byte, 128)
	for i := range data {
		data[i] = byte(i)
	}
	snap := newByteSnapshot(t, 0x3000, data)
	p := &Pipeline{Table: compare.NewTable(0), Level: Level128, Validate: true}

	c := Constraint{DataType: valuetype.U8(), Alignment: 1, Compare: compare.LessThan, Operand: OperandImmediate, Immediate: []byte{10}}
	assert.NoError(t, p.Run(context.Background(), snap, c))
}

// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package results

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nilsen-re/memscan/internal/provider"
	"github.com/nilsen-re/memscan/snapshot"
	"github.com/nilsen-re/memscan/valuetype"
)

type fakeFreezes map[uint64]bool

func (f fakeFreezes) IsFrozen(addr uint64) bool { return f[addr] }

type fakeProvider struct {
	data map[uint64][]byte
}

func (f *fakeProvider) ListProcesses(bool, string, bool) ([]provider.Process, error) { return nil, nil }
func (f *fakeProvider) OpenProcess(pid int) (provider.Handle, error)                  { return provider.Handle{PID: pid}, nil }
func (f *fakeProvider) CloseProcess(provider.Handle) error                           { return nil }
func (f *fakeProvider) EnumerateRegions(provider.Handle) ([]provider.Page, error)     { return nil, nil }
func (f *fakeProvider) EnumerateModules(provider.Handle) ([]provider.Module, error)   { return nil, nil }
func (f *fakeProvider) Write(provider.Handle, uint64, []byte) bool                    { return true }
func (f *fakeProvider) Read(h provider.Handle, addr uint64, buf []byte) bool {
	data, ok := f.data[addr]
	if !ok {
		return false
	}
	copy(buf, data)
	return true
}

func buildTestSnapshot() *snapshot.Snapshot {
	regions := []snapshot.Region{
		{BaseAddress: 0x1000, Size: 16},
		{BaseAddress: 0x3000, Size: 16},
	}
	snap := snapshot.New(regions)
	u32 := valuetype.U32(valuetype.LittleEndian)
	snap.Regions[0].Current = []byte{1, 0, 0, 0, 2, 0, 0, 0, 3, 0, 0, 0, 4, 0, 0, 0}
	snap.Regions[0].Previous = make([]byte, 16)
	snap.Regions[0].Results = snapshot.ScanResults{{
		DataType: u32, Alignment: 4,
		Filters: []snapshot.Filter{{BaseAddress: 0x1000, ElementCount: 2}, {BaseAddress: 0x1008, ElementCount: 2}},
	}}
	snap.Regions[1].Current = []byte{9, 0, 0, 0, 8, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}
	snap.Regions[1].Previous = make([]byte, 16)
	snap.Regions[1].Results = snapshot.ScanResults{{
		DataType: u32, Alignment: 4,
		Filters: []snapshot.Filter{{BaseAddress: 0x3000, ElementCount: 2}},
	}}
	return snap
}

func TestIndexElementCount(t *testing.T) {
	idx := Build(buildTestSnapshot(), nil, 1)
	assert.Equal(t, uint64(6), idx.ElementCount())
}

func TestIndexQueryPagingAcrossSegments(t *testing.T) {
	idx := Build(buildTestSnapshot(), nil, 1)

	page0 := idx.Query(0, 4, nil)
	require.Len(t, page0, 4)
	assert.Equal(t, uint64(0x1000), page0[0].Address)
	assert.Equal(t, uint64(0x1004), page0[1].Address)
	assert.Equal(t, uint64(0x1008), page0[2].Address)
	assert.Equal(t, uint64(0x100c), page0[3].Address)
	assert.Equal(t, []byte{1, 0, 0, 0}, page0[0].CurrentBytes)

	page1 := idx.Query(1, 4, nil)
	require.Len(t, page1, 2)
	assert.Equal(t, uint64(0x3000), page1[0].Address)
	assert.Equal(t, uint64(0x3004), page1[1].Address)
	assert.Equal(t, []byte{8, 0, 0, 0}, page1[1].CurrentBytes)
}

func TestIndexQueryBeyondEndIsEmpty(t *testing.T) {
	idx := Build(buildTestSnapshot(), nil, 1)
	assert.Empty(t, idx.Query(10, 4, nil))
}

func TestIndexQueryResolvesModuleAndFreeze(t *testing.T) {
	modules := NewModuleTable([]provider.Module{{Name: "game.exe", BaseAddress: 0x1000, Size: 0x10}})
	idx := Build(buildTestSnapshot(), modules, 1)
	freezes := fakeFreezes{0x1000: true}

	page := idx.Query(0, 1, freezes)
	require.Len(t, page, 1)
	assert.True(t, page[0].HasModule)
	assert.Equal(t, "game.exe", page[0].ModuleName)
	assert.Equal(t, uint64(0), page[0].ModuleOffset)
	assert.True(t, page[0].IsFrozen)
}

func TestRefreshRejectsStaleGeneration(t *testing.T) {
	idx := Build(buildTestSnapshot(), nil, 1)
	prov := &fakeProvider{data: map[uint64][]byte{0x1000: {7, 0, 0, 0}}}

	stale := Ref{Address: 0x1000, DataType: valuetype.U32(valuetype.LittleEndian), Generation: 0}
	out := idx.Refresh(prov, provider.Handle{}, []Ref{stale}, nil)
	require.Len(t, out, 1)
	assert.True(t, out[0].Missing)
}

func TestRefreshReadsFreshBytes(t *testing.T) {
	idx := Build(buildTestSnapshot(), nil, 1)
	prov := &fakeProvider{data: map[uint64][]byte{0x1000: {7, 0, 0, 0}}}

	ref := idx.MakeRef(0x1000, valuetype.U32(valuetype.LittleEndian))
	out := idx.Refresh(prov, provider.Handle{}, []Ref{ref}, nil)
	require.Len(t, out, 1)
	assert.False(t, out[0].Missing)
	assert.Equal(t, []byte{7, 0, 0, 0}, out[0].Result.CurrentBytes)
}

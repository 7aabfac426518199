// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rpc

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nilsen-re/memscan/compare"
	"github.com/nilsen-re/memscan/engine"
	"github.com/nilsen-re/memscan/internal/apierr"
	"github.com/nilsen-re/memscan/internal/config"
	"github.com/nilsen-re/memscan/internal/provider"
	"github.com/nilsen-re/memscan/results"
	"github.com/nilsen-re/memscan/scan"
	"github.com/nilsen-re/memscan/valuetype"
)

type fakeProvider struct {
	mu    sync.Mutex
	mem   map[uint64][]byte
	pages []provider.Page
	procs []provider.Process
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{mem: make(map[uint64][]byte)}
}

func (p *fakeProvider) ListProcesses(windowed bool, name string, matchCase bool) ([]provider.Process, error) {
	return p.procs, nil
}
func (p *fakeProvider) OpenProcess(pid int) (provider.Handle, error) {
	return provider.Handle{PID: pid, Name: "target"}, nil
}
func (p *fakeProvider) CloseProcess(provider.Handle) error { return nil }
func (p *fakeProvider) EnumerateRegions(provider.Handle) ([]provider.Page, error) {
	return p.pages, nil
}
func (p *fakeProvider) EnumerateModules(provider.Handle) ([]provider.Module, error) { return nil, nil }

func (p *fakeProvider) Read(h provider.Handle, addr uint64, buf []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	data, ok := p.mem[addr]
	if !ok {
		return false
	}
	copy(buf, data)
	return true
}

func (p *fakeProvider) Write(h provider.Handle, addr uint64, buf []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := make([]byte, len(buf))
	copy(cp, buf)
	p.mem[addr] = cp
	return true
}

func newTestHandler(t *testing.T) (*Handler, *fakeProvider) {
	t.Helper()
	prov := newFakeProvider()
	prov.procs = []provider.Process{{PID: 42, Name: "target"}}
	prov.pages = []provider.Page{{BaseAddress: 0x1000, Size: 16, Perm: provider.Read | provider.Write}}
	prov.mem[0x1000] = []byte{5, 0, 0, 0, 7, 0, 0, 0, 5, 0, 0, 0, 9, 0, 0, 0}

	session := engine.New(prov, config.DefaultSettings(), nil)
	return NewHandler(session), prov
}

func TestHandlerProcessListOpenClose(t *testing.T) {
	h, _ := newTestHandler(t)

	var listResp ProcessListResponse
	require.NoError(t, h.ProcessList(&ProcessListRequest{}, &listResp))
	require.Len(t, listResp.Processes, 1)
	assert.Equal(t, 42, listResp.Processes[0].PID)

	var openResp ProcessOpenResponse
	require.NoError(t, h.ProcessOpen(&ProcessOpenRequest{ProcessID: 42}, &openResp))
	assert.Equal(t, 42, openResp.OpenedProcess.PID)

	var closeResp ProcessCloseResponse
	require.NoError(t, h.ProcessClose(&ProcessCloseRequest{}, &closeResp))
}

func TestHandlerScanRoundTrip(t *testing.T) {
	h, _ := newTestHandler(t)

	var openResp ProcessOpenResponse
	require.NoError(t, h.ProcessOpen(&ProcessOpenRequest{ProcessID: 42}, &openResp))
	defer h.ProcessClose(&ProcessCloseRequest{}, &ProcessCloseResponse{})

	var newResp ScanNewResponse
	require.NoError(t, h.ScanNew(&ScanNewRequest{}, &newResp))
	assert.True(t, newResp.Success)

	u32 := valuetype.U32(valuetype.LittleEndian)
	equal5 := ElementConstraint{
		DataType:  u32,
		Alignment: 4,
		Compare:   compare.Equal,
		Operand:   uint8(scan.OperandImmediate),
		Immediate: []byte{5, 0, 0, 0},
	}
	var elemResp ScanElementResponse
	require.NoError(t, h.ScanElement(&ScanElementRequest{Constraints: []ElementConstraint{equal5}}, &elemResp))
	assert.Equal(t, uint64(2), elemResp.ResultCount)

	var queryResp ResultsQueryResponse
	require.NoError(t, h.ResultsQuery(&ResultsQueryRequest{PageIndex: 0, PageSize: 10}, &queryResp))
	require.Len(t, queryResp.Results, 2)
	assert.Equal(t, uint64(0x1000), queryResp.Results[0].Address)
}

func TestHandlerMemoryReadWrite(t *testing.T) {
	h, _ := newTestHandler(t)
	var openResp ProcessOpenResponse
	require.NoError(t, h.ProcessOpen(&ProcessOpenRequest{ProcessID: 42}, &openResp))
	defer h.ProcessClose(&ProcessCloseRequest{}, &ProcessCloseResponse{})

	u32 := valuetype.U32(valuetype.LittleEndian)
	var readResp MemoryReadResponse
	require.NoError(t, h.MemoryRead(&MemoryReadRequest{Address: 0x1000, DataType: u32}, &readResp))
	assert.Equal(t, []byte{5, 0, 0, 0}, readResp.Values)

	var writeResp MemoryWriteResponse
	require.NoError(t, h.MemoryWrite(&MemoryWriteRequest{Address: 0x1000, Value: []byte{9, 0, 0, 0}}, &writeResp))
	assert.True(t, writeResp.Success)

	require.NoError(t, h.MemoryRead(&MemoryReadRequest{Address: 0x1000, DataType: u32}, &readResp))
	assert.Equal(t, []byte{9, 0, 0, 0}, readResp.Values)
}

func TestHandlerResultsQueryInvalidStateBeforeOpen(t *testing.T) {
	h, _ := newTestHandler(t)
	var queryResp ResultsQueryResponse
	err := h.ResultsQuery(&ResultsQueryRequest{PageIndex: 0, PageSize: 10}, &queryResp)
	assert.True(t, apierr.Is(err, apierr.InvalidState))
}

func TestHandlerResultsQueryZeroResultsLastPageIndex(t *testing.T) {
	h, _ := newTestHandler(t)
	var openResp ProcessOpenResponse
	require.NoError(t, h.ProcessOpen(&ProcessOpenRequest{ProcessID: 42}, &openResp))
	defer h.ProcessClose(&ProcessCloseRequest{}, &ProcessCloseResponse{})

	var newResp ScanNewResponse
	require.NoError(t, h.ScanNew(&ScanNewRequest{}, &newResp))

	u32 := valuetype.U32(valuetype.LittleEndian)
	matchNothing := ElementConstraint{
		DataType:  u32,
		Alignment: 4,
		Compare:   compare.Equal,
		Operand:   uint8(scan.OperandImmediate),
		Immediate: []byte{0xff, 0xff, 0xff, 0xff},
	}
	var elemResp ScanElementResponse
	require.NoError(t, h.ScanElement(&ScanElementRequest{Constraints: []ElementConstraint{matchNothing}}, &elemResp))
	require.Equal(t, uint64(0), elemResp.ResultCount)

	var queryResp ResultsQueryResponse
	require.NoError(t, h.ResultsQuery(&ResultsQueryRequest{PageIndex: 0, PageSize: 10}, &queryResp))
	assert.Equal(t, uint64(0), queryResp.ResultCount)
	assert.Equal(t, 0, queryResp.LastPageIndex)
	assert.Empty(t, queryResp.Results)
}

func TestHandlerFreezeAndDelete(t *testing.T) {
	h, _ := newTestHandler(t)
	var openResp ProcessOpenResponse
	require.NoError(t, h.ProcessOpen(&ProcessOpenRequest{ProcessID: 42}, &openResp))
	defer h.ProcessClose(&ProcessCloseRequest{}, &ProcessCloseResponse{})

	var newResp ScanNewResponse
	require.NoError(t, h.ScanNew(&ScanNewRequest{}, &newResp))

	u32 := valuetype.U32(valuetype.LittleEndian)
	selectAll := ElementConstraint{
		DataType:  u32,
		Alignment: 4,
		Compare:   compare.GreaterThanOrEqual,
		Operand:   uint8(scan.OperandImmediate),
		Immediate: []byte{0, 0, 0, 0},
	}
	var elemResp ScanElementResponse
	require.NoError(t, h.ScanElement(&ScanElementRequest{Constraints: []ElementConstraint{selectAll}}, &elemResp))
	require.Equal(t, uint64(4), elemResp.ResultCount)

	ref, err := h.Session.MakeRef(0x1000, u32)
	require.NoError(t, err)

	var freezeResp ResultsFreezeResponse
	require.NoError(t, h.ResultsFreeze(&ResultsFreezeRequest{Refs: []results.Ref{ref}, IsFrozen: true}, &freezeResp))
	assert.Empty(t, freezeResp.FailedRefs)
	assert.True(t, h.Session.Freeze().IsFrozen(0x1000))

	var deleteResp ResultsDeleteResponse
	require.NoError(t, h.ResultsDelete(&ResultsDeleteRequest{Refs: []results.Ref{ref}}, &deleteResp))
	assert.True(t, deleteResp.Success)

	var collectResp ScanCollectValuesResponse
	require.NoError(t, h.ScanCollectValues(&ScanCollectValuesRequest{}, &collectResp))
	assert.Equal(t, uint64(3), collectResp.ResultCount)
}

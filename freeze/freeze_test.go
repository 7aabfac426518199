// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package freeze

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nilsen-re/memscan/internal/provider"
)

type recordingProvider struct {
	mu      sync.Mutex
	writes  map[uint64][]byte
	failing map[uint64]bool
}

func newRecordingProvider() *recordingProvider {
	return &recordingProvider{writes: make(map[uint64][]byte), failing: make(map[uint64]bool)}
}

func (p *recordingProvider) ListProcesses(bool, string, bool) ([]provider.Process, error) { return nil, nil }
func (p *recordingProvider) OpenProcess(pid int) (provider.Handle, error)                 { return provider.Handle{PID: pid}, nil }
func (p *recordingProvider) CloseProcess(provider.Handle) error                           { return nil }
func (p *recordingProvider) EnumerateRegions(provider.Handle) ([]provider.Page, error)    { return nil, nil }
func (p *recordingProvider) EnumerateModules(provider.Handle) ([]provider.Module, error)  { return nil, nil }
func (p *recordingProvider) Read(provider.Handle, uint64, []byte) bool                    { return true }

func (p *recordingProvider) Write(h provider.Handle, addr uint64, buf []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failing[addr] {
		return false
	}
	cp := make([]byte, len(buf))
	copy(cp, buf)
	p.writes[addr] = cp
	return true
}

func (p *recordingProvider) writeCountFor(addr uint64) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writes[addr]
}

// fakeModules is a minimal ModuleResolver fixture, standing in for
// results.ModuleTable without importing the results package.
type fakeModules map[string]uint64

func (m fakeModules) ResolveModule(name string) (uint64, bool) {
	base, ok := m[name]
	return base, ok
}

func TestFreezeAndUnfreezeDirectPointer(t *testing.T) {
	r := New(newRecordingProvider(), provider.Handle{}, nil, 0)
	ptr := Pointer{Offset: 0x1000}
	assert.False(t, r.IsFrozen(0x1000))
	r.Freeze(ptr, []byte{1, 2, 3, 4})
	assert.True(t, r.IsFrozen(0x1000))
	assert.Equal(t, 1, r.Count())

	r.Unfreeze(ptr)
	assert.False(t, r.IsFrozen(0x1000))
	assert.Equal(t, 0, r.Count())
}

func TestUnfreezeUnknownPointerIsNoop(t *testing.T) {
	r := New(newRecordingProvider(), provider.Handle{}, nil, 0)
	r.Unfreeze(Pointer{Offset: 0xdead})
	assert.Equal(t, 0, r.Count())
}

func TestTickerRewritesFrozenBytesDirectPointer(t *testing.T) {
	prov := newRecordingProvider()
	r := New(prov, provider.Handle{}, nil, 5*time.Millisecond)
	r.Freeze(Pointer{Offset: 0x2000}, []byte{9, 9})

	r.Start()
	defer r.Stop()

	require.Eventually(t, func() bool {
		return prov.writeCountFor(0x2000) != nil
	}, time.Second, 2*time.Millisecond)
	assert.Equal(t, []byte{9, 9}, prov.writeCountFor(0x2000))
}

// TestTickerResolvesModulePointerEachTick is the spec's "freeze round
// trip" property: freezing (module, offset) must resolve against the
// live module table on every tick, so a module reloaded at a new base
// is picked up without re-freezing.
func TestTickerResolvesModulePointerEachTick(t *testing.T) {
	prov := newRecordingProvider()
	r := New(prov, provider.Handle{}, nil, 5*time.Millisecond)
	modules := fakeModules{"game.exe": 0x10000}
	r.SetModuleResolver(modules)
	r.Freeze(Pointer{ModuleName: "game.exe", Offset: 0x24}, []byte{7, 0, 0, 0})

	r.Start()
	defer r.Stop()

	require.Eventually(t, func() bool {
		return prov.writeCountFor(0x10024) != nil
	}, time.Second, 2*time.Millisecond)
	assert.Equal(t, []byte{7, 0, 0, 0}, prov.writeCountFor(0x10024))

	// Relocate the module; the next tick must follow it to the new base.
	modules["game.exe"] = 0x20000
	require.Eventually(t, func() bool {
		return prov.writeCountFor(0x20024) != nil
	}, time.Second, 2*time.Millisecond)
}

func TestTickerSkipsUnresolvedModulePointer(t *testing.T) {
	prov := newRecordingProvider()
	r := New(prov, provider.Handle{}, nil, 5*time.Millisecond)
	r.Freeze(Pointer{ModuleName: "missing.dll", Offset: 0x10}, []byte{1})

	r.Start()
	defer r.Stop()

	time.Sleep(30 * time.Millisecond)
	assert.Nil(t, prov.writeCountFor(0x10))
}

func TestStartIsIdempotent(t *testing.T) {
	r := New(newRecordingProvider(), provider.Handle{}, nil, 0)
	r.Start()
	r.Start()
	r.Stop()
}

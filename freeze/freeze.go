// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package freeze implements the freeze registry: a thread-safe
// pointer→bytes map with a background ticker that periodically
// resolves each pointer against the current module table and
// re-writes frozen bytes through the OS provider, per spec.md §4.6.
// Grounded on program/server/ptrace.go's ptraceRun pattern: a single
// dedicated goroutine performs every freeze write. It does not
// coordinate with the engine's own scan-pass reads or with the
// engine's direct writes (Memory::Write, Results::SetProperty).
package freeze

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nilsen-re/memscan/internal/provider"
)

// Pointer is spec.md §4.6's FreezeEntry key: a module name plus a byte
// offset within it, re-resolved against the live module table on every
// tick rather than captured as a fixed address. ModuleName == "" is the
// direct/absolute form: a freeze on memory outside any loaded module
// (e.g. the heap), where Offset is itself the absolute address.
type Pointer struct {
	ModuleName string
	Offset     uint64
}

// ModuleResolver resolves a loaded module's name to its current base
// address, the way results.ModuleTable does. Declared locally so this
// package never needs to import results.
type ModuleResolver interface {
	ResolveModule(name string) (base uint64, ok bool)
}

// entry is one frozen pointer's bytes, keyed by Pointer in the registry
// map.
type entry struct {
	bytes []byte
}

// Registry holds the set of frozen pointers and, once Start is called,
// runs a background goroutine that periodically resolves and
// rewrites them.
type Registry struct {
	mu      sync.RWMutex
	entries map[Pointer]entry

	resolverMu sync.RWMutex
	resolver   ModuleResolver

	prov   provider.Provider
	handle provider.Handle
	logger *logrus.Logger

	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
	running  bool
}

// DefaultInterval is the tick period spec.md §4.6 names as the default
// freeze-rewrite cadence, used when a caller passes interval <= 0.
const DefaultInterval = 100 * time.Millisecond

// New builds a Registry bound to prov/handle, ticking every interval
// (config.ScanSettings.FreezeIntervalMs, or DefaultInterval if
// interval <= 0). The ticker is not started until Start is called.
func New(prov provider.Provider, handle provider.Handle, logger *logrus.Logger, interval time.Duration) *Registry {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Registry{
		entries:  make(map[Pointer]entry),
		prov:     prov,
		handle:   handle,
		logger:   logger,
		interval: interval,
	}
}

// SetModuleResolver installs the resolver used to turn each Pointer's
// module name into a current base address. The engine calls this again
// every time it rebuilds the module table (Process::Open, Scan::New),
// so a module reloaded at a new base is picked up on the next tick.
func (r *Registry) SetModuleResolver(resolver ModuleResolver) {
	r.resolverMu.Lock()
	r.resolver = resolver
	r.resolverMu.Unlock()
}

// resolve turns ptr into a current absolute address, or ok=false if
// its module is not currently loaded.
func (r *Registry) resolve(ptr Pointer) (address uint64, ok bool) {
	if ptr.ModuleName == "" {
		return ptr.Offset, true
	}
	r.resolverMu.RLock()
	resolver := r.resolver
	r.resolverMu.RUnlock()
	if resolver == nil {
		return 0, false
	}
	base, ok := resolver.ResolveModule(ptr.ModuleName)
	if !ok {
		return 0, false
	}
	return base + ptr.Offset, true
}

// Freeze registers ptr to be resolved and rewritten with value on
// every tick.
func (r *Registry) Freeze(ptr Pointer, value []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	buf := make([]byte, len(value))
	copy(buf, value)
	r.entries[ptr] = entry{bytes: buf}
}

// Unfreeze removes ptr from the registry. Unfreezing a pointer that
// was never frozen is a no-op.
func (r *Registry) Unfreeze(ptr Pointer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, ptr)
}

// IsFrozen reports whether address currently resolves to a frozen
// pointer, satisfying results.FreezeLookup. It re-resolves every
// entry's Pointer against the live module table, since the registry is
// keyed by Pointer, not by address.
func (r *Registry) IsFrozen(address uint64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for ptr := range r.entries {
		if addr, ok := r.resolve(ptr); ok && addr == address {
			return true
		}
	}
	return false
}

// Count returns the number of currently frozen pointers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Start launches the background rewrite ticker, if not already
// running. It is idempotent.
func (r *Registry) Start() {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.stop = make(chan struct{})
	r.done = make(chan struct{})
	r.mu.Unlock()

	go r.run()
}

// Stop halts the background ticker and waits for it to exit.
func (r *Registry) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	stop := r.stop
	done := r.done
	r.mu.Unlock()

	close(stop)
	<-done
}

// run is the dedicated goroutine that owns every freeze write. It
// never holds the engine's snapshot lock; it only ever calls the
// provider directly, per spec.md §9's concurrency note.
func (r *Registry) run() {
	defer close(r.done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.tick()
		}
	}
}

// tick resolves and rewrites every frozen pointer once. A pointer
// whose module is not currently loaded, or whose write fails, is
// logged and left in the registry for the next tick to retry —
// per spec.md §4.6, resolution failures are not propagated as errors.
func (r *Registry) tick() {
	r.mu.RLock()
	snapshot := make(map[Pointer][]byte, len(r.entries))
	for ptr, e := range r.entries {
		snapshot[ptr] = e.bytes
	}
	r.mu.RUnlock()

	for ptr, bytes := range snapshot {
		address, ok := r.resolve(ptr)
		if !ok {
			r.logger.WithField("module", ptr.ModuleName).Warn("freeze: pointer module not resolved")
			continue
		}
		if !r.prov.Write(r.handle, address, bytes) {
			r.logger.WithFields(logrus.Fields{
				"address": address,
				"bytes":   len(bytes),
			}).Warn("freeze: write failed")
		}
	}
}

// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package engine

import (
	"context"

	"github.com/nilsen-re/memscan/freeze"
	"github.com/nilsen-re/memscan/internal/apierr"
	"github.com/nilsen-re/memscan/internal/config"
	"github.com/nilsen-re/memscan/internal/provider"
	"github.com/nilsen-re/memscan/results"
	"github.com/nilsen-re/memscan/scan"
	"github.com/nilsen-re/memscan/snapshot"
	"github.com/nilsen-re/memscan/valuetype"
)

// ScanNew transitions Opened|HasSnapshot -> HasSnapshot, seeding a
// fresh snapshot from the OS region enumeration filtered by the
// session's memory settings, discarding any prior snapshot.
func (s *Session) ScanNew(ctx context.Context) error {
	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()
	if s.state == StateClosed {
		return apierr.New(apierr.InvalidState)
	}

	pages, err := s.prov.EnumerateRegions(s.handle)
	if err != nil {
		return apierr.Wrap(apierr.ProcessIOError, err)
	}
	filtered := filterPages(pages, s.memSettings)
	regions := snapshot.MergeOSPages(filtered)

	snap := snapshot.New(regions)
	snap.BeginPass(s.prov, s.handle)

	// Modules can load, unload, or relocate between scans; rebuild the
	// table on every Scan::New and hand the fresh copy to the freeze
	// registry so already-frozen pointers resolve against it too.
	modules, err := s.prov.EnumerateModules(s.handle)
	if err != nil {
		s.logger.WithField("process", s.handle.String()).Warn("engine: enumerate modules failed")
	}

	s.snapMu.Lock()
	s.snap = snap
	s.modules = results.NewModuleTable(modules)
	s.generation++
	s.index = results.Build(s.snap, s.modules, s.generation)
	s.snapMu.Unlock()
	if s.freezeReg != nil {
		s.freezeReg.SetModuleResolver(s.modules)
	}

	s.state = StateHasSnapshot
	s.publish(ScanResultsUpdated{IsNewScan: true})
	return nil
}

// ScanReset transitions HasSnapshot -> Opened, dropping the snapshot.
func (s *Session) ScanReset() error {
	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()
	if s.state != StateHasSnapshot {
		return apierr.New(apierr.InvalidState)
	}
	s.snapMu.Lock()
	s.snap = nil
	s.index = nil
	s.snapMu.Unlock()
	s.state = StateOpened
	s.publish(SnapshotReset{})
	return nil
}

// ScanElement runs each constraint in sequence as a refinement pass
// over the current snapshot (spec.md §9's sequential-refinement
// resolution for compound multi-constraint scans), re-reading memory
// via BeginPass according to the session's ReadMode: once before the
// first constraint (the default), before every constraint
// (ReadModeInterleaved), or not at all (ReadModeSkip).
func (s *Session) ScanElement(ctx context.Context, constraints []scan.Constraint) error {
	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()
	if s.state != StateHasSnapshot {
		return apierr.New(apierr.InvalidState)
	}
	if len(constraints) == 0 {
		return apierr.New(apierr.InvalidArgument)
	}

	s.snapMu.Lock()
	defer s.snapMu.Unlock()
	if s.scanSettings.ReadMode != config.ReadModeSkip {
		s.snap.BeginPass(s.prov, s.handle)
	}
	for i, c := range constraints {
		if i > 0 && s.scanSettings.ReadMode == config.ReadModeInterleaved {
			s.snap.BeginPass(s.prov, s.handle)
		}
		if err := s.pipeline.Run(ctx, s.snap, c); err != nil {
			return translatePipelineErr(err)
		}
	}
	s.generation++
	s.index = results.Build(s.snap, s.modules, s.generation)
	s.publish(ScanResultsUpdated{IsNewScan: false})
	return nil
}

func translatePipelineErr(err error) error {
	if err == context.Canceled {
		return apierr.Wrap(apierr.Cancelled, err)
	}
	return apierr.Wrap(apierr.UnsupportedCompare, err)
}

// CollectValues reports the current result count and the total byte
// size of every surviving element's current value.
func (s *Session) CollectValues() (resultCount uint64, totalSizeInBytes uint64, err error) {
	if s.State() != StateHasSnapshot {
		return 0, 0, apierr.New(apierr.InvalidState)
	}
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	resultCount = s.index.ElementCount()
	for _, region := range s.snap.Regions {
		for _, coll := range region.Results {
			totalSizeInBytes += coll.ElementCount() * uint64(coll.DataType.SizeInBytes())
		}
	}
	return resultCount, totalSizeInBytes, nil
}

// Query returns one page of materialized results.
func (s *Session) Query(pageIndex, pageSize int) ([]results.Result, error) {
	if s.State() != StateHasSnapshot {
		return nil, apierr.New(apierr.InvalidState)
	}
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	return s.index.Query(pageIndex, pageSize, s.freezeLookup()), nil
}

// freezeLookup returns s.freezeReg as a results.FreezeLookup, or a
// genuinely nil interface when no process is open: a nil *freeze.Registry
// boxed directly into the interface would panic on first use instead.
func (s *Session) freezeLookup() results.FreezeLookup {
	if s.freezeReg == nil {
		return nil
	}
	return s.freezeReg
}

// MakeRef returns the Ref a caller should hold to later refresh,
// freeze, delete, or set the value of the element at addr.
func (s *Session) MakeRef(addr uint64, dt valuetype.DataType) (results.Ref, error) {
	if s.State() != StateHasSnapshot {
		return results.Ref{}, apierr.New(apierr.InvalidState)
	}
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	return s.index.MakeRef(addr, dt), nil
}

// Refresh re-reads current bytes for refs without running a
// comparator.
func (s *Session) Refresh(refs []results.Ref) ([]results.RefreshedResult, error) {
	if s.State() != StateHasSnapshot {
		return nil, apierr.New(apierr.InvalidState)
	}
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	return s.index.Refresh(s.prov, s.handle, refs, s.freezeLookup()), nil
}

// SetFrozen freezes or unfreezes each ref, returning the refs that
// failed (a stale generation, or a failed read of the bytes to
// freeze). Freezing reads the element's current
// bytes and hands them to the freeze registry, keyed by the module
// (module_name, offset) Pointer the address currently resolves to —
// or the direct/absolute Pointer form if it falls outside every loaded
// module — so the registry can re-resolve the address every tick
// instead of freezing a fixed one.
func (s *Session) SetFrozen(refs []results.Ref, isFrozen bool) []results.Ref {
	var failed []results.Ref
	s.snapMu.RLock()
	gen := s.generation
	modules := s.modules
	s.snapMu.RUnlock()

	for _, ref := range refs {
		if ref.Generation != gen {
			failed = append(failed, ref)
			continue
		}
		ptr := pointerFor(modules, ref.Address)
		if !isFrozen {
			s.freezeReg.Unfreeze(ptr)
			continue
		}
		buf := make([]byte, ref.DataType.SizeInBytes())
		if !s.prov.Read(s.handle, ref.Address, buf) {
			failed = append(failed, ref)
			continue
		}
		s.freezeReg.Freeze(ptr, buf)
	}
	return failed
}

// pointerFor resolves addr to the freeze.Pointer the current module
// table says it belongs to, falling back to the direct/absolute form
// when addr is outside every loaded module (e.g. heap memory).
func pointerFor(modules *results.ModuleTable, addr uint64) freeze.Pointer {
	if modules != nil {
		if name, offset, ok := modules.Resolve(addr); ok {
			return freeze.Pointer{ModuleName: name, Offset: offset}
		}
	}
	return freeze.Pointer{Offset: addr}
}

// Delete removes refs from the current snapshot's candidate set.
func (s *Session) Delete(refs []results.Ref) error {
	if s.State() != StateHasSnapshot {
		return apierr.New(apierr.InvalidState)
	}
	s.snapMu.Lock()
	defer s.snapMu.Unlock()
	for _, ref := range refs {
		region := s.snap.RegionAt(ref.Address)
		if region == nil {
			continue
		}
		region.Results.RemoveAddress(ref.Address)
	}
	s.generation++
	s.index = results.Build(s.snap, s.modules, s.generation)
	return nil
}

// SetProperty parses anonymousValue against dt and writes it directly
// into the target process at each ref's address.
func (s *Session) SetProperty(refs []results.Ref, dt valuetype.DataType, anonymousValue string) error {
	if s.State() != StateHasSnapshot {
		return apierr.New(apierr.InvalidState)
	}
	anon, err := valuetype.ParseAnonymousString(anonymousValue)
	if err != nil {
		return apierr.Wrap(apierr.InvalidArgument, err)
	}
	value, err := anon.Decode(dt)
	if err != nil {
		return apierr.Wrap(apierr.InvalidArgument, err)
	}
	buf := make([]byte, dt.SizeInBytes())
	valuetype.EncodeInto(buf, dt, value.Uint64(), value.Bytes())

	for _, ref := range refs {
		if !s.prov.Write(s.handle, ref.Address, buf) {
			return apierr.Wrap(apierr.ProcessIOError, errWriteFailed)
		}
	}
	return nil
}

// filterPages keeps only the OS pages matching settings' allowed
// memory types, required/excluded protection flags, and address range.
func filterPages(pages []provider.Page, settings config.MemorySettings) []provider.Page {
	var out []provider.Page
	for _, p := range pages {
		if !memoryTypeAllowed(p.MemoryType, settings) {
			continue
		}
		if !permAllowed(p.Perm, settings) {
			continue
		}
		if p.BaseAddress < settings.StartAddress || p.BaseAddress > settings.EndAddress {
			continue
		}
		out = append(out, p)
	}
	return out
}

func memoryTypeAllowed(t provider.MemoryType, settings config.MemorySettings) bool {
	switch t {
	case provider.MemoryNone:
		return settings.AllowNoneType
	case provider.MemoryPrivate:
		return settings.AllowPrivate
	case provider.MemoryImage:
		return settings.AllowImage
	case provider.MemoryMapped:
		return settings.AllowMapped
	default:
		return false
	}
}

func permAllowed(p provider.Perm, settings config.MemorySettings) bool {
	if settings.RequireWrite && p&provider.Write == 0 {
		return false
	}
	if settings.RequireExecute && p&provider.Exec == 0 {
		return false
	}
	if settings.RequireCopyOnWrite && p&provider.CopyOnWrite == 0 {
		return false
	}
	if settings.ExcludeWrite && p&provider.Write != 0 {
		return false
	}
	if settings.ExcludeExecute && p&provider.Exec != 0 {
		return false
	}
	if settings.ExcludeCopyOnWrite && p&provider.CopyOnWrite != 0 {
		return false
	}
	return true
}

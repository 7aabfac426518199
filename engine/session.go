// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package engine implements the session state machine (spec.md §4.7):
// it owns the opened process handle, the current snapshot, the freeze
// registry, and serializes every state-transition command behind a
// single command mutex, the way the teacher's program/server.Server
// guards process lifecycle behind its own mutex and resets caches on
// re-Run.
package engine

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nilsen-re/memscan/compare"
	"github.com/nilsen-re/memscan/freeze"
	"github.com/nilsen-re/memscan/internal/apierr"
	"github.com/nilsen-re/memscan/internal/config"
	"github.com/nilsen-re/memscan/internal/provider"
	"github.com/nilsen-re/memscan/results"
	"github.com/nilsen-re/memscan/scan"
	"github.com/nilsen-re/memscan/snapshot"
)

// Session is one engine instance bound to a single OS memory provider.
type Session struct {
	prov   provider.Provider
	logger *logrus.Logger

	// cmdMu serializes every state-transition command (Open, Close,
	// Scan::*); it is the engine's single point of command ordering.
	cmdMu sync.Mutex
	state State
	handle provider.Handle
	process provider.Process

	memSettings  config.MemorySettings
	scanSettings config.ScanSettings
	table        *compare.Table
	pipeline     *scan.Pipeline

	// snapMu is the single-writer/multi-reader snapshot lock from
	// spec.md §5. Writers: Scan::New/Element/Reset and Results::Delete.
	// Readers: Scan::CollectValues, which counts the current results
	// without re-reading target memory, and the other Results::*.
	snapMu     sync.RWMutex
	snap       *snapshot.Snapshot
	modules    *results.ModuleTable
	index      *results.Index
	generation uint64

	freezeReg *freeze.Registry

	events chan Event
}

// New builds a closed Session bound to prov, using settings for memory
// filtering and scan tolerances.
func New(prov provider.Provider, settings config.Settings, logger *logrus.Logger) *Session {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	table := compare.NewTable(settings.Scan.FloatTolerance)
	pipeline := scan.NewPipeline(table)
	if settings.Scan.IsSingleThreadedScan {
		pipeline.MaxConcurrency = 1
	} else if settings.Scan.MaxConcurrency > 0 {
		pipeline.MaxConcurrency = settings.Scan.MaxConcurrency
	}
	pipeline.Validate = settings.Scan.ValidateSIMD
	return &Session{
		prov:         prov,
		logger:       logger,
		memSettings:  settings.Memory,
		scanSettings: settings.Scan,
		table:        table,
		pipeline:     pipeline,
		events:       make(chan Event, 64),
	}
}

// Events returns the channel ScanResultsUpdated/ProcessOpened/
// ProcessClosed/SnapshotReset events are published on.
func (s *Session) Events() <-chan Event { return s.events }

func (s *Session) publish(e Event) {
	select {
	case s.events <- e:
	default:
		s.logger.Warn("engine: event channel full, dropping event")
	}
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()
	return s.state
}

// ListProcesses enumerates candidate processes through the provider,
// independent of session state, for Process::List.
func (s *Session) ListProcesses(windowed bool, searchName string, matchCase bool, limit int) ([]provider.Process, error) {
	procs, err := s.prov.ListProcesses(windowed, searchName, matchCase)
	if err != nil {
		return nil, apierr.Wrap(apierr.ProcessIOError, err)
	}
	if limit > 0 && len(procs) > limit {
		procs = procs[:limit]
	}
	return procs, nil
}

// OpenProcess transitions Closed -> Opened by resolving and attaching
// to a target process.
func (s *Session) OpenProcess(pid int, searchName string, matchCase bool) (provider.Process, error) {
	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()
	if s.state != StateClosed {
		return provider.Process{}, apierr.New(apierr.InvalidState)
	}

	var target *provider.Process
	if pid != 0 {
		procs, err := s.prov.ListProcesses(false, "", false)
		if err != nil {
			return provider.Process{}, apierr.Wrap(apierr.ProcessIOError, err)
		}
		for i := range procs {
			if procs[i].PID == pid {
				target = &procs[i]
				break
			}
		}
	} else if searchName != "" {
		procs, err := s.prov.ListProcesses(false, searchName, matchCase)
		if err != nil {
			return provider.Process{}, apierr.Wrap(apierr.ProcessIOError, err)
		}
		if len(procs) > 0 {
			target = &procs[0]
		}
	} else {
		return provider.Process{}, apierr.New(apierr.InvalidArgument)
	}
	if target == nil {
		return provider.Process{}, apierr.Wrap(apierr.ProcessIOError, errProcessNotFound)
	}

	handle, err := s.prov.OpenProcess(target.PID)
	if err != nil {
		return provider.Process{}, apierr.Wrap(apierr.ProcessIOError, err)
	}

	s.handle = handle
	s.process = *target
	s.state = StateOpened
	interval := time.Duration(s.scanSettings.FreezeIntervalMs) * time.Millisecond
	s.freezeReg = freeze.New(s.prov, s.handle, s.logger, interval)

	modules, err := s.prov.EnumerateModules(s.handle)
	if err != nil {
		s.logger.WithField("process", handle.String()).Warn("engine: enumerate modules failed")
	}
	s.modules = results.NewModuleTable(modules)
	s.freezeReg.SetModuleResolver(s.modules)
	s.freezeReg.Start()

	s.publish(ProcessOpened{Process: *target})
	return *target, nil
}

// CloseProcess transitions Opened or HasSnapshot back to Closed,
// dropping the snapshot and stopping the freeze ticker.
func (s *Session) CloseProcess() error {
	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()
	if s.state == StateClosed {
		return apierr.New(apierr.InvalidState)
	}
	s.closeLocked()
	return nil
}

func (s *Session) closeLocked() {
	if s.freezeReg != nil {
		s.freezeReg.Stop()
	}
	_ = s.prov.CloseProcess(s.handle)
	s.snapMu.Lock()
	s.snap = nil
	s.index = nil
	s.snapMu.Unlock()
	s.handle = provider.Handle{}
	s.process = provider.Process{}
	s.freezeReg = nil
	s.modules = nil
	s.state = StateClosed
	s.publish(ProcessClosed{})
}

// ReadMemory reads len(buf) bytes at address from the opened process.
func (s *Session) ReadMemory(address uint64, buf []byte) error {
	if s.State() == StateClosed {
		return apierr.New(apierr.InvalidState)
	}
	if !s.prov.Read(s.handle, address, buf) {
		return apierr.Wrap(apierr.ProcessIOError, errReadFailed)
	}
	return nil
}

// WriteMemory writes value to address in the opened process.
func (s *Session) WriteMemory(address uint64, value []byte) error {
	if s.State() == StateClosed {
		return apierr.New(apierr.InvalidState)
	}
	if !s.prov.Write(s.handle, address, value) {
		return apierr.Wrap(apierr.ProcessIOError, errWriteFailed)
	}
	return nil
}

// Freeze returns the session's freeze registry, or nil if no process
// is open.
func (s *Session) Freeze() *freeze.Registry { return s.freezeReg }

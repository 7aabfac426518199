// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package linux is the Linux provider.Provider: it attaches with
// ptrace the way program/server/ptrace.go does, then serves bulk
// reads and writes through /proc/[pid]/mem and region enumeration
// through /proc/[pid]/maps, the Linux-native replacements for the
// teacher's PtracePeekText/PtracePokeText word-at-a-time calls.
package linux

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/nilsen-re/memscan/internal/provider"
)

// Provider implements provider.Provider over ptrace + procfs.
type Provider struct {
	// fc/ec are the teacher's ptraceRun channels: every ptrace syscall
	// is thread-affine on Linux, so all of them run on one dedicated,
	// locked OS thread.
	fc chan func() error
	ec chan error

	mu    sync.Mutex
	files map[int]*os.File // pid -> open /proc/pid/mem
}

// New starts the dedicated ptrace goroutine and returns a ready
// Provider.
func New() *Provider {
	p := &Provider{
		fc:    make(chan func() error),
		ec:    make(chan error),
		files: make(map[int]*os.File),
	}
	go p.run()
	return p
}

func (p *Provider) run() {
	runtime.LockOSThread()
	for f := range p.fc {
		p.ec <- f()
	}
}

func (p *Provider) ptrace(f func() error) error {
	p.fc <- f
	return <-p.ec
}

// ListProcesses walks /proc, reading each numeric entry's comm.
func (p *Provider) ListProcesses(requireWindowed bool, searchName string, matchCase bool) ([]provider.Process, error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil, fmt.Errorf("linux: read /proc: %w", err)
	}
	if !matchCase {
		searchName = strings.ToLower(searchName)
	}

	var out []provider.Process
	for _, e := range entries {
		pid, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		name, err := readComm(pid)
		if err != nil {
			continue
		}
		if searchName != "" {
			candidate := name
			if !matchCase {
				candidate = strings.ToLower(candidate)
			}
			if !strings.Contains(candidate, searchName) {
				continue
			}
		}
		// requireWindowed has no procfs-visible analogue on Linux
		// (no window manager registry to consult); every process
		// qualifies, matching spec.md §6's "best effort" framing.
		out = append(out, provider.Process{PID: pid, Name: name})
	}
	return out, nil
}

func readComm(pid int) (string, error) {
	b, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "comm"))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

// OpenProcess ptrace-attaches to pid, waits for it to stop, and opens
// its /proc/[pid]/mem file for bulk read/write.
func (p *Provider) OpenProcess(pid int) (provider.Handle, error) {
	name, err := readComm(pid)
	if err != nil {
		return provider.Handle{}, fmt.Errorf("linux: process %d not found: %w", pid, err)
	}

	if err := p.ptrace(func() error { return unix.PtraceAttach(pid) }); err != nil {
		return provider.Handle{}, fmt.Errorf("linux: ptrace attach %d: %w", pid, err)
	}
	if err := p.ptrace(func() error {
		var ws unix.WaitStatus
		_, err := unix.Wait4(pid, &ws, 0, nil)
		return err
	}); err != nil {
		return provider.Handle{}, fmt.Errorf("linux: wait for %d: %w", pid, err)
	}

	f, err := os.OpenFile(filepath.Join("/proc", strconv.Itoa(pid), "mem"), os.O_RDWR, 0)
	if err != nil {
		_ = p.ptrace(func() error { return unix.PtraceDetach(pid) })
		return provider.Handle{}, fmt.Errorf("linux: open mem file for %d: %w", pid, err)
	}

	p.mu.Lock()
	p.files[pid] = f
	p.mu.Unlock()

	return provider.Handle{PID: pid, Name: name}, nil
}

// CloseProcess detaches and closes the mem file; it is a no-op for an
// already-closed handle.
func (p *Provider) CloseProcess(h provider.Handle) error {
	p.mu.Lock()
	f, ok := p.files[h.PID]
	delete(p.files, h.PID)
	p.mu.Unlock()
	if !ok {
		return nil
	}
	f.Close()
	return p.ptrace(func() error { return unix.PtraceDetach(h.PID) })
}

func (p *Provider) memFile(pid int) (*os.File, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	f, ok := p.files[pid]
	return f, ok
}

// Read fills buf from address, reporting false on any failure
// (unmapped page, permission denied, process gone) rather than an
// error, per spec.md §4.2.
func (p *Provider) Read(h provider.Handle, address uint64, buf []byte) bool {
	f, ok := p.memFile(h.PID)
	if !ok {
		return false
	}
	n, err := f.ReadAt(buf, int64(address))
	return err == nil && n == len(buf)
}

// Write writes buf to address, reporting success.
func (p *Provider) Write(h provider.Handle, address uint64, buf []byte) bool {
	f, ok := p.memFile(h.PID)
	if !ok {
		return false
	}
	n, err := f.WriteAt(buf, int64(address))
	return err == nil && n == len(buf)
}

// EnumerateRegions parses /proc/[pid]/maps into provider.Page values.
func (p *Provider) EnumerateRegions(h provider.Handle) ([]provider.Page, error) {
	f, err := os.Open(filepath.Join("/proc", strconv.Itoa(h.PID), "maps"))
	if err != nil {
		return nil, fmt.Errorf("linux: open maps for %d: %w", h.PID, err)
	}
	defer f.Close()

	var pages []provider.Page
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		page, ok := parseMapsLine(scanner.Text())
		if ok {
			pages = append(pages, page)
		}
	}
	return pages, scanner.Err()
}

// parseMapsLine parses one /proc/[pid]/maps line, e.g.
// "7f1234000000-7f1234021000 rw-p 00000000 00:00 0  [heap]".
func parseMapsLine(line string) (provider.Page, bool) {
	fields := strings.Fields(line)
	if len(fields) < 5 {
		return provider.Page{}, false
	}
	addrs := strings.SplitN(fields[0], "-", 2)
	if len(addrs) != 2 {
		return provider.Page{}, false
	}
	start, err := strconv.ParseUint(addrs[0], 16, 64)
	if err != nil {
		return provider.Page{}, false
	}
	end, err := strconv.ParseUint(addrs[1], 16, 64)
	if err != nil || end <= start {
		return provider.Page{}, false
	}

	permField := fields[1]
	var perm provider.Perm
	if len(permField) >= 3 {
		if permField[0] == 'r' {
			perm |= provider.Read
		}
		if permField[1] == 'w' {
			perm |= provider.Write
		}
		if permField[2] == 'x' {
			perm |= provider.Exec
		}
	}
	// A private mapping of a file-backed region is copy-on-write.
	// Pseudo-paths such as "[heap]" or "[stack]" are not file-backed.
	isFileBacked := len(fields) >= 6
	if isFileBacked && !strings.HasPrefix(fields[5], "[") && len(permField) >= 4 && permField[3] == 'p' {
		perm |= provider.CopyOnWrite
	}

	memType := provider.MemoryPrivate
	var moduleName string
	if isFileBacked {
		pathField := fields[5]
		switch {
		case strings.HasPrefix(pathField, "["):
			memType = provider.MemoryPrivate
		default:
			memType = provider.MemoryImage
			moduleName = pathField
		}
	}

	return provider.Page{
		BaseAddress: start,
		Size:        end - start,
		Perm:        perm,
		MemoryType:  memType,
		ModuleName:  moduleName,
	}, true
}

// EnumerateModules groups image-backed maps lines by path, using each
// group's lowest address as the module base and the address span
// across every mapping for that path as its size.
func (p *Provider) EnumerateModules(h provider.Handle) ([]provider.Module, error) {
	pages, err := p.EnumerateRegions(h)
	if err != nil {
		return nil, err
	}
	return modulesFromPages(pages), nil
}

// modulesFromPages groups image-backed pages by path, using each
// group's lowest address as the module base and the address span
// across every mapping for that path as its size.
func modulesFromPages(pages []provider.Page) []provider.Module {
	type span struct {
		base, end uint64
	}
	spans := make(map[string]*span)
	var order []string
	for _, pg := range pages {
		if pg.MemoryType != provider.MemoryImage || pg.ModuleName == "" {
			continue
		}
		s, ok := spans[pg.ModuleName]
		if !ok {
			s = &span{base: pg.BaseAddress, end: pg.BaseAddress + pg.Size}
			spans[pg.ModuleName] = s
			order = append(order, pg.ModuleName)
			continue
		}
		if pg.BaseAddress < s.base {
			s.base = pg.BaseAddress
		}
		if end := pg.BaseAddress + pg.Size; end > s.end {
			s.end = end
		}
	}

	modules := make([]provider.Module, 0, len(order))
	for _, name := range order {
		s := spans[name]
		modules = append(modules, provider.Module{Name: name, BaseAddress: s.base, Size: s.end - s.base})
	}
	return modules
}

// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package results implements the scan-result index: a stable,
// paged enumeration over a snapshot's surviving elements plus
// address-to-module resolution and refresh-without-comparator
// support, per spec.md §4.5.
package results

import (
	"sort"

	"github.com/nilsen-re/memscan/internal/provider"
)

// ModuleTable resolves an address to the loaded module containing it,
// by binary search over a sorted (base, size) interval list. Grounded
// on internal/gocore's module/funcTab address-range lookups, minus the
// DWARF-derived function table: here the intervals come straight from
// the provider's module enumeration.
type ModuleTable struct {
	modules []provider.Module // sorted by BaseAddress
}

// NewModuleTable builds a ModuleTable from a provider's module list.
func NewModuleTable(modules []provider.Module) *ModuleTable {
	sorted := make([]provider.Module, len(modules))
	copy(sorted, modules)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].BaseAddress < sorted[j].BaseAddress })
	return &ModuleTable{modules: sorted}
}

// Resolve returns the name of the module containing addr and addr's
// offset within it, or ok=false if no loaded module covers addr.
func (t *ModuleTable) Resolve(addr uint64) (name string, offset uint64, ok bool) {
	i := sort.Search(len(t.modules), func(i int) bool {
		return t.modules[i].BaseAddress+t.modules[i].Size > addr
	})
	if i == len(t.modules) {
		return "", 0, false
	}
	m := t.modules[i]
	if addr < m.BaseAddress {
		return "", 0, false
	}
	return m.Name, addr - m.BaseAddress, true
}

// ResolveModule returns the base address of the loaded module named
// name, the inverse of Resolve, used to turn a Pointer back into an
// absolute address each freeze tick.
func (t *ModuleTable) ResolveModule(name string) (base uint64, ok bool) {
	for _, m := range t.modules {
		if m.Name == name {
			return m.BaseAddress, true
		}
	}
	return 0, false
}

// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

// These exercise the argument-validation paths that return before ever
// touching r.client, so a nil client is safe to embed in the repl.

func newTestRepl() (*repl, *bytes.Buffer) {
	var out bytes.Buffer
	return &repl{client: nil, out: &out}, &out
}

func TestDispatchUnknownCommand(t *testing.T) {
	r, _ := newTestRepl()
	err := r.dispatch([]string{"frobnicate"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")
}

func TestOpenRequiresExactlyOneArg(t *testing.T) {
	r, _ := newTestRepl()
	assert.Error(t, r.open(nil))
	assert.Error(t, r.open([]string{"1", "2"}))
}

func TestScanElementRequiresTypeAndCompare(t *testing.T) {
	r, _ := newTestRepl()
	assert.Error(t, r.scanElement([]string{"u32"}))
}

func TestScanElementRejectsUnknownType(t *testing.T) {
	r, _ := newTestRepl()
	err := r.scanElement([]string{"nope", "equal", "5"})
	assert.Error(t, err)
}

func TestScanElementRejectsUnknownCompare(t *testing.T) {
	r, _ := newTestRepl()
	err := r.scanElement([]string{"u32", "nope"})
	assert.Error(t, err)
}

func TestSetFrozenRequiresAddressAndType(t *testing.T) {
	r, _ := newTestRepl()
	assert.Error(t, r.setFrozen([]string{"0x1000"}, true))
}

func TestSetFrozenRejectsBadAddress(t *testing.T) {
	r, _ := newTestRepl()
	err := r.setFrozen([]string{"notahex", "u32"}, true)
	assert.Error(t, err)
}

func TestSetFrozenRejectsUnknownType(t *testing.T) {
	r, _ := newTestRepl()
	err := r.setFrozen([]string{"0x1000", "nope"}, true)
	assert.Error(t, err)
}

// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scan

import (
	"fmt"

	"github.com/nilsen-re/memscan/compare"
	"github.com/nilsen-re/memscan/valuetype"
)

// Operand selects which of the three predicate shapes a Constraint
// evaluates against: a fixed constant, the element's previous value,
// or the previous value plus/minus a fixed delta.
type Operand uint8

const (
	OperandImmediate Operand = iota
	OperandRelative
	OperandDelta
)

// Constraint is one scan step: a data type and alignment to read
// candidate elements at, a comparator, and whatever operand bytes the
// comparator's Operand needs.
type Constraint struct {
	DataType  valuetype.DataType
	Alignment uint64
	Compare   compare.Kind
	Operand   Operand

	// Immediate holds the constant bytes for OperandImmediate.
	Immediate []byte
	// Delta holds the constant delta bytes for OperandDelta.
	Delta []byte
}

// elementPredicate is the scan package's uniform inner-loop calling
// convention: every Constraint, regardless of Operand, compiles down
// to one func(current, previous []byte) bool. Immediate predicates
// simply ignore previous; the three distinct compare.Immediate/
// Relative/Delta signatures remain the ones actually stored in
// compare.Table and are only adapted here.
type elementPredicate func(current, previous []byte) bool

// compile resolves c against table and binds any constant operand
// bytes, producing a single elementPredicate for the scan loops.
func (c Constraint) compile(table *compare.Table) (elementPredicate, error) {
	switch c.Operand {
	case OperandImmediate:
		fn, err := table.ResolveImmediate(c.Compare, c.DataType)
		if err != nil {
			return nil, err
		}
		constant := c.Immediate
		return func(current, _ []byte) bool { return fn(current, constant) }, nil
	case OperandRelative:
		fn, err := table.ResolveRelative(c.Compare, c.DataType)
		if err != nil {
			return nil, err
		}
		return func(current, previous []byte) bool { return fn(current, previous) }, nil
	case OperandDelta:
		fn, err := table.ResolveDelta(c.Compare, c.DataType)
		if err != nil {
			return nil, err
		}
		delta := c.Delta
		return func(current, previous []byte) bool { return fn(current, previous, delta) }, nil
	default:
		return nil, fmt.Errorf("scan: unknown operand %d", c.Operand)
	}
}

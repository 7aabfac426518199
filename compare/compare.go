// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package compare implements the comparator dispatch table: for every
// (CompareKind, DataType) pair it builds a tight predicate over raw
// snapshot bytes, per spec.md §4.3. It is modeled directly on
// original_source's scanner_scalar_comparer.rs / scanner_vector_comparer.rs,
// generalized from one hand-written match arm per (CompareKind,
// DataType-variant, Endian) triple into a small set of generic,
// decode-then-compare builder functions driven by the valuetype package.
package compare

import (
	"bytes"
	"errors"
	"math"

	"github.com/nilsen-re/memscan/valuetype"
)

// Kind enumerates every compare kind the dispatch table knows about,
// including the delta-family members spec.md reserves but does not
// require (Multiplied/Divided/Modulo/Shift/And/Or/XorByX), which
// original_source's ScanCompareType implements and this repo carries
// forward as real, dispatched kinds.
type Kind uint8

const (
	Equal Kind = iota
	NotEqual
	GreaterThan
	GreaterThanOrEqual
	LessThan
	LessThanOrEqual

	Changed
	Unchanged
	Increased
	Decreased

	IncreasedByX
	DecreasedByX
	MultipliedByX
	DividedByX
	ModuloByX
	ShiftLeftByX
	ShiftRightByX
	AndByX
	OrByX
	XorByX
)

// Category identifies which of the three predicate signatures a Kind
// resolves to.
type Category uint8

const (
	CategoryImmediate Category = iota
	CategoryRelative
	CategoryDelta
)

func (k Kind) Category() Category {
	switch k {
	case Equal, NotEqual, GreaterThan, GreaterThanOrEqual, LessThan, LessThanOrEqual:
		return CategoryImmediate
	case Changed, Unchanged, Increased, Decreased:
		return CategoryRelative
	default:
		return CategoryDelta
	}
}

func (k Kind) String() string {
	switch k {
	case Equal:
		return "=="
	case NotEqual:
		return "!="
	case GreaterThan:
		return ">"
	case GreaterThanOrEqual:
		return ">="
	case LessThan:
		return "<"
	case LessThanOrEqual:
		return "<="
	case Changed:
		return "changed"
	case Unchanged:
		return "unchanged"
	case Increased:
		return "increased"
	case Decreased:
		return "decreased"
	case IncreasedByX:
		return "+x"
	case DecreasedByX:
		return "-x"
	case MultipliedByX:
		return "*x"
	case DividedByX:
		return "/x"
	case ModuloByX:
		return "%x"
	case ShiftLeftByX:
		return "<<x"
	case ShiftRightByX:
		return ">>x"
	case AndByX:
		return "&x"
	case OrByX:
		return "|x"
	case XorByX:
		return "^x"
	default:
		return "?"
	}
}

// ErrUnsupportedCompare is returned when a (CompareKind, DataType) pair
// has no predicate, e.g. GreaterThan on a Bytes data type.
var ErrUnsupportedCompare = errors.New("compare: unsupported (CompareKind, DataType) pair")

// ParseKindName parses a command-surface mnemonic (equal, notequal,
// greater, greaterequal, less, lessequal, changed, unchanged,
// increased, decreased) into a Kind. The delta-family kinds take an
// operand beyond a single mnemonic, so they are not parsed here.
func ParseKindName(name string) (Kind, error) {
	switch name {
	case "equal":
		return Equal, nil
	case "notequal":
		return NotEqual, nil
	case "greater":
		return GreaterThan, nil
	case "greaterequal":
		return GreaterThanOrEqual, nil
	case "less":
		return LessThan, nil
	case "lessequal":
		return LessThanOrEqual, nil
	case "changed":
		return Changed, nil
	case "unchanged":
		return Unchanged, nil
	case "increased":
		return Increased, nil
	case "decreased":
		return Decreased, nil
	default:
		return 0, errors.New("compare: unknown compare name " + name)
	}
}

// Immediate compares the current value against a constant operand.
type Immediate func(current, constant []byte) bool

// Relative compares the current value against the previous snapshot.
type Relative func(current, previous []byte) bool

// Delta compares the current value against previous ± a constant delta.
type Delta func(current, previous, delta []byte) bool

// Table is the immutable comparator dispatch table. It is built once,
// at engine start (spec.md §4.3/§9 "singleton lifecycle"), and shared
// by pointer, read-only, across every scan worker: it holds no mutable
// state, only the configured floating-point tolerance, so concurrent
// resolution from many goroutines is always safe.
type Table struct {
	// FloatTolerance is the epsilon used by IncreasedByX/DecreasedByX
	// equality tests on floats. Zero means exact equality.
	FloatTolerance float64
}

// NewTable constructs the dispatch table with the given floating point
// comparison tolerance (spec.md §6 floating_point_tolerance).
func NewTable(floatTolerance float64) *Table {
	return &Table{FloatTolerance: floatTolerance}
}

// ResolveImmediate returns the Immediate predicate for (kind, dt), or
// ErrUnsupportedCompare.
func (t *Table) ResolveImmediate(kind Kind, dt valuetype.DataType) (Immediate, error) {
	if kind.Category() != CategoryImmediate {
		return nil, ErrUnsupportedCompare
	}
	if dt.Kind == valuetype.KindBytes || dt.Kind == valuetype.KindString {
		if kind == Equal || kind == NotEqual {
			return byteImmediate(kind, dt), nil
		}
		return nil, ErrUnsupportedCompare
	}
	if kind == Equal || kind == NotEqual {
		if dt.IsInteger() {
			return intEqualityImmediate(kind, dt), nil
		}
		return floatEqualityImmediate(kind, dt), nil
	}
	return orderingImmediate(kind, dt), nil
}

// ResolveRelative returns the Relative predicate for (kind, dt), or
// ErrUnsupportedCompare.
func (t *Table) ResolveRelative(kind Kind, dt valuetype.DataType) (Relative, error) {
	if kind.Category() != CategoryRelative {
		return nil, ErrUnsupportedCompare
	}
	if dt.Kind == valuetype.KindBytes || dt.Kind == valuetype.KindString {
		if kind == Changed || kind == Unchanged {
			return byteRelative(kind, dt), nil
		}
		return nil, ErrUnsupportedCompare
	}
	switch kind {
	case Changed, Unchanged:
		if dt.IsInteger() {
			return intEqualityRelative(kind, dt), nil
		}
		return floatEqualityRelative(kind, dt), nil
	default: // Increased, Decreased
		return orderingRelative(kind, dt), nil
	}
}

// ResolveDelta returns the Delta predicate for (kind, dt), or
// ErrUnsupportedCompare.
func (t *Table) ResolveDelta(kind Kind, dt valuetype.DataType) (Delta, error) {
	if kind.Category() != CategoryDelta {
		return nil, ErrUnsupportedCompare
	}
	switch kind {
	case IncreasedByX, DecreasedByX:
		if dt.IsInteger() {
			return intArithmeticDelta(kind, dt), nil
		}
		if dt.IsFloat() {
			return floatArithmeticDelta(kind, dt, t.FloatTolerance), nil
		}
		return nil, ErrUnsupportedCompare
	default:
		if !dt.IsInteger() {
			return nil, ErrUnsupportedCompare
		}
		return intBitwiseDelta(kind, dt), nil
	}
}

// byteImmediate/byteRelative implement Equal/NotEqual/Changed/Unchanged
// on Bytes/String via plain byte-slice comparison; there is no endian
// concept for a byte run.
func byteImmediate(kind Kind, dt valuetype.DataType) Immediate {
	n := dt.SizeInBytes()
	if kind == Equal {
		return func(cur, con []byte) bool { return bytes.Equal(cur[:n], con[:n]) }
	}
	return func(cur, con []byte) bool { return !bytes.Equal(cur[:n], con[:n]) }
}

func byteRelative(kind Kind, dt valuetype.DataType) Relative {
	n := dt.SizeInBytes()
	if kind == Unchanged {
		return func(cur, prev []byte) bool { return bytes.Equal(cur[:n], prev[:n]) }
	}
	return func(cur, prev []byte) bool { return !bytes.Equal(cur[:n], prev[:n]) }
}

// intEqualityImmediate/Relative implement Equal/NotEqual/Changed/
// Unchanged on integers as raw byte comparison: the declared Endian is
// irrelevant because decoding both operands through the same byte order
// and comparing is equivalent to comparing the raw bytes directly
// (spec.md §4.3 "Integer Equal/NotEqual: endian-agnostic").
func intEqualityImmediate(kind Kind, dt valuetype.DataType) Immediate {
	n := dt.SizeInBytes()
	if kind == Equal {
		return func(cur, con []byte) bool { return bytes.Equal(cur[:n], con[:n]) }
	}
	return func(cur, con []byte) bool { return !bytes.Equal(cur[:n], con[:n]) }
}

func intEqualityRelative(kind Kind, dt valuetype.DataType) Relative {
	n := dt.SizeInBytes()
	if kind == Unchanged {
		return func(cur, prev []byte) bool { return bytes.Equal(cur[:n], prev[:n]) }
	}
	return func(cur, prev []byte) bool { return !bytes.Equal(cur[:n], prev[:n]) }
}

// floatEqualityImmediate/Relative decode through the declared endian and
// compare as IEEE floats (not raw bytes), so that e.g. two differently
// signed zero bit patterns, or NaN, compare per IEEE 754 rather than
// memcmp. This is "strict" equality: no tolerance is applied here (the
// Unchanged-on-floats open question, spec.md §9, resolved in favor of
// the source's strict-equality behavior).
func floatEqualityImmediate(kind Kind, dt valuetype.DataType) Immediate {
	eq := kind == Equal
	return func(cur, con []byte) bool {
		cv, _ := valuetype.ReadUnaligned(cur, dt)
		pv, _ := valuetype.ReadUnaligned(con, dt)
		same := cv.Float64() == pv.Float64()
		if eq {
			return same
		}
		return !same
	}
}

func floatEqualityRelative(kind Kind, dt valuetype.DataType) Relative {
	unchanged := kind == Unchanged
	return func(cur, prev []byte) bool {
		cv, _ := valuetype.ReadUnaligned(cur, dt)
		pv, _ := valuetype.ReadUnaligned(prev, dt)
		same := cv.Float64() == pv.Float64()
		if unchanged {
			return same
		}
		return !same
	}
}

// orderingImmediate/Relative implement GreaterThan/.../Increased/
// Decreased. They always decode through the declared endian (spec.md
// §4.3 "Integer ordering and float everything: interpret through the
// declared endian"), using signed comparison for signed integer kinds.
func orderingImmediate(kind Kind, dt valuetype.DataType) Immediate {
	return func(cur, con []byte) bool {
		cv, _ := valuetype.ReadUnaligned(cur, dt)
		pv, _ := valuetype.ReadUnaligned(con, dt)
		return orderingHolds(kind, compareOrdered(dt, cv, pv))
	}
}

func orderingRelative(kind Kind, dt valuetype.DataType) Relative {
	// Increased/Decreased map onto GreaterThan/LessThan.
	mapped := GreaterThan
	if kind == Decreased {
		mapped = LessThan
	}
	return func(cur, prev []byte) bool {
		cv, _ := valuetype.ReadUnaligned(cur, dt)
		pv, _ := valuetype.ReadUnaligned(prev, dt)
		return orderingHolds(mapped, compareOrdered(dt, cv, pv))
	}
}

func orderingHolds(kind Kind, cmp int) bool {
	switch kind {
	case GreaterThan:
		return cmp > 0
	case GreaterThanOrEqual:
		return cmp >= 0
	case LessThan:
		return cmp < 0
	case LessThanOrEqual:
		return cmp <= 0
	default:
		return false
	}
}

// compareOrdered returns -1/0/1 for a<b, a==b, a>b.
func compareOrdered(dt valuetype.DataType, a, b valuetype.Value) int {
	switch {
	case dt.IsFloat():
		af, bf := a.Float64(), b.Float64()
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	case dt.IsSigned():
		ai, bi := a.Int64(), b.Int64()
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		default:
			return 0
		}
	default:
		au, bu := a.Uint64(), b.Uint64()
		switch {
		case au < bu:
			return -1
		case au > bu:
			return 1
		default:
			return 0
		}
	}
}

// intArithmeticDelta implements IncreasedByX/DecreasedByX on integers:
// wrapping add/sub, testing only the equation current == previous ± x,
// never treating overflow itself as a comparison failure (spec.md
// §4.3).
func intArithmeticDelta(kind Kind, dt valuetype.DataType) Delta {
	mask := widthMask(dt)
	return func(cur, prev, delta []byte) bool {
		cv, _ := valuetype.ReadUnaligned(cur, dt)
		pv, _ := valuetype.ReadUnaligned(prev, dt)
		dv, _ := valuetype.ReadUnaligned(delta, dt)
		var want uint64
		if kind == IncreasedByX {
			want = (pv.Uint64() + dv.Uint64()) & mask
		} else {
			want = (pv.Uint64() - dv.Uint64()) & mask
		}
		return (cv.Uint64() & mask) == want
	}
}

// floatArithmeticDelta implements IncreasedByX/DecreasedByX on floats:
// IEEE add/sub, with equality under the configured tolerance
// (|a-b| <= epsilon when epsilon > 0, exact equality otherwise).
func floatArithmeticDelta(kind Kind, dt valuetype.DataType, tolerance float64) Delta {
	return func(cur, prev, delta []byte) bool {
		cv, _ := valuetype.ReadUnaligned(cur, dt)
		pv, _ := valuetype.ReadUnaligned(prev, dt)
		dv, _ := valuetype.ReadUnaligned(delta, dt)
		var want float64
		if kind == IncreasedByX {
			want = pv.Float64() + dv.Float64()
		} else {
			want = pv.Float64() - dv.Float64()
		}
		diff := cv.Float64() - want
		if diff < 0 {
			diff = -diff
		}
		if tolerance > 0 {
			return diff <= tolerance
		}
		return cv.Float64() == want
	}
}

// intBitwiseDelta implements the reserved delta family
// (Multiplied/Divided/Modulo/Shift/And/Or/XorByX), wrapping, integer
// only.
func intBitwiseDelta(kind Kind, dt valuetype.DataType) Delta {
	mask := widthMask(dt)
	bits := uint(dt.SizeInBytes() * 8)
	return func(cur, prev, delta []byte) bool {
		cv, _ := valuetype.ReadUnaligned(cur, dt)
		pv, _ := valuetype.ReadUnaligned(prev, dt)
		dv, _ := valuetype.ReadUnaligned(delta, dt)
		p, d := pv.Uint64(), dv.Uint64()
		var want uint64
		switch kind {
		case MultipliedByX:
			want = (p * d) & mask
		case DividedByX:
			if d == 0 {
				return false
			}
			want = (p / d) & mask
		case ModuloByX:
			if d == 0 {
				return false
			}
			want = (p % d) & mask
		case ShiftLeftByX:
			want = (p << (d % uint64(bits))) & mask
		case ShiftRightByX:
			want = (p >> (d % uint64(bits))) & mask
		case AndByX:
			want = p & d & mask
		case OrByX:
			want = (p | d) & mask
		case XorByX:
			want = (p ^ d) & mask
		default:
			return false
		}
		return (cv.Uint64() & mask) == want
	}
}

func widthMask(dt valuetype.DataType) uint64 {
	switch dt.SizeInBytes() {
	case 1:
		return 0xFF
	case 2:
		return 0xFFFF
	case 4:
		return 0xFFFFFFFF
	default:
		return math.MaxUint64
	}
}

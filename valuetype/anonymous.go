// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package valuetype

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Format is the textual encoding tag of an anonymous value literal.
type Format uint8

const (
	FormatDecimal Format = iota
	FormatHex
	FormatBinary
	FormatAddress
	FormatBool
)

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "dec":
		return FormatDecimal, nil
	case "hex":
		return FormatHex, nil
	case "bin":
		return FormatBinary, nil
	case "address", "addr":
		return FormatAddress, nil
	case "bool":
		return FormatBool, nil
	default:
		return 0, fmt.Errorf("valuetype: unrecognized format %q", s)
	}
}

func (f Format) String() string {
	switch f {
	case FormatHex:
		return "hex"
	case FormatBinary:
		return "bin"
	case FormatAddress:
		return "address"
	case FormatBool:
		return "bool"
	default:
		return "dec"
	}
}

// defaultFormat returns the format a data type uses when the anonymous
// value string carries no explicit format tag.
func defaultFormat(dt DataType) Format {
	switch dt.Kind {
	case KindBytes:
		return FormatHex
	default:
		return FormatDecimal
	}
}

// Anonymous is a textual literal plus an explicit format tag and an
// optional container (data type) tag, per the grammar
// "value[;format;][container;]".
type Anonymous struct {
	Literal   string
	Format    Format
	HasFormat bool
	Container string
}

// ParseAnonymousString splits the grammar's three ';'-separated fields.
// Only the literal is required.
func ParseAnonymousString(s string) (Anonymous, error) {
	parts := strings.Split(s, ";")
	a := Anonymous{Literal: parts[0]}
	if len(parts) > 1 && parts[1] != "" {
		f, err := ParseFormat(parts[1])
		if err != nil {
			return Anonymous{}, err
		}
		a.Format = f
		a.HasFormat = true
	}
	if len(parts) > 2 {
		a.Container = parts[2]
	}
	return a, nil
}

// Decode parses the anonymous literal into a typed Value for dt, using
// the explicit format if present or dt's default format otherwise.
func (a Anonymous) Decode(dt DataType) (Value, error) {
	format := a.Format
	if !a.HasFormat {
		format = defaultFormat(dt)
	}
	switch dt.Kind {
	case KindF32, KindF64:
		return decodeFloatLiteral(a.Literal, dt)
	case KindBytes, KindString:
		return decodeBytesLiteral(a.Literal, dt)
	default:
		return decodeIntegerLiteral(a.Literal, dt, format)
	}
}

func decodeIntegerLiteral(lit string, dt DataType, format Format) (Value, error) {
	lit = strings.TrimSpace(lit)
	var u uint64
	switch format {
	case FormatBool:
		b, err := parseBool(lit)
		if err != nil {
			return Value{}, err
		}
		if b {
			u = 1
		}
	case FormatHex:
		v, err := parseHex(lit)
		if err != nil {
			return Value{}, err
		}
		u = v
	case FormatBinary:
		v, err := parseBinary(lit)
		if err != nil {
			return Value{}, err
		}
		u = v
	case FormatAddress:
		v, err := parseAddress(lit)
		if err != nil {
			return Value{}, err
		}
		u = v
	default: // FormatDecimal
		v, err := parseDecimalInteger(lit, dt.IsSigned())
		if err != nil {
			return Value{}, err
		}
		u = v
	}
	u = maskToWidth(u, dt)
	return Value{Type: dt, u: u}, nil
}

func decodeFloatLiteral(lit string, dt DataType) (Value, error) {
	lit = strings.TrimSpace(lit)
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return Value{}, fmt.Errorf("valuetype: invalid float literal %q: %w", lit, err)
	}
	var u uint64
	if dt.Kind == KindF32 {
		u = uint64(math.Float32bits(float32(f)))
	} else {
		u = math.Float64bits(f)
	}
	return Value{Type: dt, u: u}, nil
}

func decodeBytesLiteral(lit string, dt DataType) (Value, error) {
	lit = strings.TrimSpace(lit)
	if dt.Kind == KindString {
		raw := make([]byte, dt.SizeInBytes())
		copy(raw, []byte(lit))
		return Value{Type: dt, raw: raw}, nil
	}
	// Bytes: space- or comma-separated hex octets, e.g. "07 00 00 00".
	fields := strings.FieldsFunc(lit, func(r rune) bool { return r == ' ' || r == ',' })
	raw := make([]byte, 0, len(fields))
	for _, f := range fields {
		b, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(f), "0x"), 16, 8)
		if err != nil {
			return Value{}, fmt.Errorf("valuetype: invalid byte literal %q: %w", f, err)
		}
		raw = append(raw, byte(b))
	}
	if dt.Length != 0 && len(raw) != dt.Length {
		return Value{}, fmt.Errorf("valuetype: expected %d bytes, got %d", dt.Length, len(raw))
	}
	return Value{Type: DataType{Kind: KindBytes, Length: len(raw)}, raw: raw}, nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "1":
		return true, nil
	case "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("valuetype: invalid bool literal %q", s)
	}
}

func parseHex(s string) (uint64, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if s == "" {
		return 0, fmt.Errorf("valuetype: empty hex literal")
	}
	return strconv.ParseUint(s, 16, 64)
}

func parseBinary(s string) (uint64, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0b"), "0B")
	if s == "" {
		return 0, fmt.Errorf("valuetype: empty binary literal")
	}
	return strconv.ParseUint(s, 2, 64)
}

// parseAddress accepts hex (with or without "0x"). A literal made only
// of decimal digits is read as hex too; the decimal fallback applies
// only to literals that fail to parse as hex.
func parseAddress(s string) (uint64, error) {
	if v, err := parseHex(s); err == nil {
		return v, nil
	}
	return strconv.ParseUint(s, 10, 64)
}

func parseDecimalInteger(s string, signed bool) (uint64, error) {
	if signed {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("valuetype: invalid decimal literal %q: %w", s, err)
		}
		return uint64(v), nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("valuetype: invalid decimal literal %q: %w", s, err)
	}
	return v, nil
}

func maskToWidth(u uint64, dt DataType) uint64 {
	switch dt.Kind {
	case KindU8, KindI8:
		return u & 0xFF
	case KindU16, KindI16:
		return u & 0xFFFF
	case KindU32, KindI32:
		return u & 0xFFFFFFFF
	default:
		return u
	}
}

// Anonymize renders v back into its canonical textual form for format.
// Anonymize(Decode(s, fmt), fmt) reproduces Canonicalize(s, fmt) for
// every well-formed s.
func Anonymize(v Value, format Format) string {
	switch format {
	case FormatHex:
		return fmt.Sprintf("0x%x", v.Uint64())
	case FormatBinary:
		return fmt.Sprintf("0b%b", v.Uint64())
	case FormatAddress:
		return fmt.Sprintf("0x%x", v.Uint64())
	case FormatBool:
		if v.Uint64() != 0 {
			return "true"
		}
		return "false"
	default:
		return v.String()
	}
}

// Canonicalize normalizes a literal the same way Decode+Anonymize would,
// without requiring a data type, for use in the round-trip property: a
// well-formed decimal/hex/binary integer literal canonicalizes to its
// minimal form.
func Canonicalize(s string, format Format) (string, error) {
	switch format {
	case FormatHex:
		v, err := parseHex(s)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("0x%x", v), nil
	case FormatBinary:
		v, err := parseBinary(s)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("0b%b", v), nil
	case FormatBool:
		b, err := parseBool(s)
		if err != nil {
			return "", err
		}
		if b {
			return "true", nil
		}
		return "false", nil
	default:
		v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(v, 10), nil
	}
}

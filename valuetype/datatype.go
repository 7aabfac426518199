// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package valuetype defines the primitive data types a scan can operate
// on, their unaligned byte decoders, and the anonymous-value textual
// grammar used by the command surface to carry literals.
package valuetype

import "fmt"

// Endian is the byte order a multi-byte primitive is declared to be
// encoded in within the target process. It is independent of the host's
// own endianness: decoding always normalizes through the declared
// Endian's encoding/binary.ByteOrder, so the result is host-native
// regardless of which architecture memscan itself runs on.
type Endian uint8

const (
	LittleEndian Endian = iota
	BigEndian
)

func (e Endian) String() string {
	if e == BigEndian {
		return "big"
	}
	return "little"
}

// Encoding is the text encoding of a String data type.
type Encoding uint8

const (
	ASCII Encoding = iota
	UTF8
	UTF16
)

// Kind identifies which primitive variant a DataType holds.
type Kind uint8

const (
	KindU8 Kind = iota
	KindI8
	KindU16
	KindI16
	KindU32
	KindI32
	KindU64
	KindI64
	KindF32
	KindF64
	KindBytes
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindU8:
		return "u8"
	case KindI8:
		return "i8"
	case KindU16:
		return "u16"
	case KindI16:
		return "i16"
	case KindU32:
		return "u32"
	case KindI32:
		return "i32"
	case KindU64:
		return "u64"
	case KindI64:
		return "i64"
	case KindF32:
		return "f32"
	case KindF64:
		return "f64"
	case KindBytes:
		return "bytes"
	case KindString:
		return "string"
	default:
		return "unknown"
	}
}

// DataType is a tagged primitive type: an integer width with endian, a
// float width with endian, a fixed-length byte run, or a fixed-length
// string. It has a pure, constant byte size.
type DataType struct {
	Kind     Kind
	Endian   Endian
	Length   int // meaningful for KindBytes, KindString
	Encoding Encoding // meaningful for KindString
}

func U8() DataType                        { return DataType{Kind: KindU8} }
func I8() DataType                        { return DataType{Kind: KindI8} }
func U16(e Endian) DataType               { return DataType{Kind: KindU16, Endian: e} }
func I16(e Endian) DataType               { return DataType{Kind: KindI16, Endian: e} }
func U32(e Endian) DataType               { return DataType{Kind: KindU32, Endian: e} }
func I32(e Endian) DataType               { return DataType{Kind: KindI32, Endian: e} }
func U64(e Endian) DataType               { return DataType{Kind: KindU64, Endian: e} }
func I64(e Endian) DataType               { return DataType{Kind: KindI64, Endian: e} }
func F32(e Endian) DataType               { return DataType{Kind: KindF32, Endian: e} }
func F64(e Endian) DataType               { return DataType{Kind: KindF64, Endian: e} }
func Bytes(length int) DataType           { return DataType{Kind: KindBytes, Length: length} }
func String(length int, enc Encoding) DataType {
	return DataType{Kind: KindString, Length: length, Encoding: enc}
}

// ParseKindName parses a short type name (u8, i8, u16, i16, u32, i32,
// u64, i64, f32, f64) into a little-endian DataType, the same mnemonic
// set the anonymous-value grammar's container name uses.
func ParseKindName(name string) (DataType, error) {
	switch name {
	case "u8":
		return U8(), nil
	case "i8":
		return I8(), nil
	case "u16":
		return U16(LittleEndian), nil
	case "i16":
		return I16(LittleEndian), nil
	case "u32":
		return U32(LittleEndian), nil
	case "i32":
		return I32(LittleEndian), nil
	case "u64":
		return U64(LittleEndian), nil
	case "i64":
		return I64(LittleEndian), nil
	case "f32":
		return F32(LittleEndian), nil
	case "f64":
		return F64(LittleEndian), nil
	default:
		return DataType{}, fmt.Errorf("valuetype: unknown type name %q", name)
	}
}

// SizeInBytes returns the fixed, pure byte size of the data type.
func (d DataType) SizeInBytes() int {
	switch d.Kind {
	case KindU8, KindI8:
		return 1
	case KindU16, KindI16:
		return 2
	case KindU32, KindI32, KindF32:
		return 4
	case KindU64, KindI64, KindF64:
		return 8
	case KindBytes:
		return d.Length
	case KindString:
		switch d.Encoding {
		case UTF16:
			return d.Length * 2
		default:
			return d.Length
		}
	default:
		return 0
	}
}

// IsInteger reports whether the data type is a fixed-width integer.
func (d DataType) IsInteger() bool {
	switch d.Kind {
	case KindU8, KindI8, KindU16, KindI16, KindU32, KindI32, KindU64, KindI64:
		return true
	default:
		return false
	}
}

// IsFloat reports whether the data type is a floating point width.
func (d DataType) IsFloat() bool {
	return d.Kind == KindF32 || d.Kind == KindF64
}

// IsSigned reports whether the data type is a signed integer.
func (d DataType) IsSigned() bool {
	switch d.Kind {
	case KindI8, KindI16, KindI32, KindI64:
		return true
	default:
		return false
	}
}

func (d DataType) String() string {
	switch d.Kind {
	case KindU16, KindI16, KindU32, KindI32, KindU64, KindI64, KindF32, KindF64:
		return fmt.Sprintf("%s(%s)", d.Kind, d.Endian)
	case KindBytes:
		return fmt.Sprintf("bytes(%d)", d.Length)
	case KindString:
		return fmt.Sprintf("string(%d)", d.Length)
	default:
		return d.Kind.String()
	}
}

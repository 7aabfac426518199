// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package valuetype

import (
	"encoding/binary"
	"fmt"
	"math"
)

func byteOrder(e Endian) binary.ByteOrder {
	if e == BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// Value is a decoded primitive, carrying enough of the original bytes
// and type to be reformatted or compared for display.
type Value struct {
	Type DataType
	u    uint64 // integer/float bit pattern, host-native after decode
	raw  []byte // KindBytes / KindString payload
}

// ReadUnaligned decodes b (which must be at least Type.SizeInBytes()
// long) at an arbitrary, possibly unaligned offset. It never assumes
// alignment: multi-byte integers and floats are decoded through
// encoding/binary, which performs a byte-wise load, never a typed
// pointer dereference.
func ReadUnaligned(b []byte, dt DataType) (Value, error) {
	n := dt.SizeInBytes()
	if len(b) < n {
		return Value{}, fmt.Errorf("valuetype: need %d bytes, got %d", n, len(b))
	}
	switch dt.Kind {
	case KindU8:
		return Value{Type: dt, u: uint64(b[0])}, nil
	case KindI8:
		return Value{Type: dt, u: uint64(uint8(int8(b[0])))}, nil
	case KindU16:
		return Value{Type: dt, u: uint64(byteOrder(dt.Endian).Uint16(b))}, nil
	case KindI16:
		return Value{Type: dt, u: uint64(uint16(int16(byteOrder(dt.Endian).Uint16(b))))}, nil
	case KindU32:
		return Value{Type: dt, u: uint64(byteOrder(dt.Endian).Uint32(b))}, nil
	case KindI32:
		return Value{Type: dt, u: uint64(uint32(int32(byteOrder(dt.Endian).Uint32(b))))}, nil
	case KindU64:
		return Value{Type: dt, u: byteOrder(dt.Endian).Uint64(b)}, nil
	case KindI64:
		return Value{Type: dt, u: byteOrder(dt.Endian).Uint64(b)}, nil
	case KindF32:
		return Value{Type: dt, u: uint64(byteOrder(dt.Endian).Uint32(b))}, nil
	case KindF64:
		return Value{Type: dt, u: byteOrder(dt.Endian).Uint64(b)}, nil
	case KindBytes, KindString:
		raw := make([]byte, n)
		copy(raw, b[:n])
		return Value{Type: dt, raw: raw}, nil
	default:
		return Value{}, fmt.Errorf("valuetype: unknown kind %v", dt.Kind)
	}
}

// Uint64 returns the decoded value reinterpreted as an unsigned 64 bit
// integer. Only meaningful for integer kinds.
func (v Value) Uint64() uint64 { return v.u }

// Int64 returns the decoded value as a signed 64 bit integer, sign
// extending from the original width. Only meaningful for integer kinds.
func (v Value) Int64() int64 {
	switch v.Type.Kind {
	case KindI8:
		return int64(int8(v.u))
	case KindI16:
		return int64(int16(v.u))
	case KindI32:
		return int64(int32(v.u))
	case KindI64:
		return int64(v.u)
	default:
		return int64(v.u)
	}
}

// Float64 returns the decoded value as a float64. Only meaningful for
// float kinds.
func (v Value) Float64() float64 {
	switch v.Type.Kind {
	case KindF32:
		return float64(math.Float32frombits(uint32(v.u)))
	case KindF64:
		return math.Float64frombits(v.u)
	default:
		return 0
	}
}

// Bytes returns the raw payload. Only meaningful for KindBytes /
// KindString.
func (v Value) Bytes() []byte { return v.raw }

func (v Value) String() string {
	switch v.Type.Kind {
	case KindU8, KindU16, KindU32, KindU64:
		return fmt.Sprintf("%d", v.Uint64())
	case KindI8, KindI16, KindI32, KindI64:
		return fmt.Sprintf("%d", v.Int64())
	case KindF32, KindF64:
		return fmt.Sprintf("%v", v.Float64())
	case KindBytes:
		return fmt.Sprintf("% x", v.raw)
	case KindString:
		return decodeString(v.raw, v.Type.Encoding)
	default:
		return ""
	}
}

func decodeString(raw []byte, enc Encoding) string {
	switch enc {
	case UTF16:
		u16 := make([]uint16, len(raw)/2)
		for i := range u16 {
			u16[i] = binary.LittleEndian.Uint16(raw[i*2:])
		}
		return string(utf16Decode(u16))
	default:
		// ASCII and UTF8 share a representation for our purposes: trim
		// the trailing NUL padding, if any.
		for i, c := range raw {
			if c == 0 {
				return string(raw[:i])
			}
		}
		return string(raw)
	}
}

func utf16Decode(u16 []uint16) []rune {
	runes := make([]rune, 0, len(u16))
	for i := 0; i < len(u16); i++ {
		r := rune(u16[i])
		if r >= 0xD800 && r < 0xDC00 && i+1 < len(u16) {
			r2 := rune(u16[i+1])
			if r2 >= 0xDC00 && r2 < 0xE000 {
				r = ((r - 0xD800) << 10) | (r2 - 0xDC00) + 0x10000
				i++
			}
		}
		if r == 0 {
			break
		}
		runes = append(runes, r)
	}
	return runes
}

// EncodeInto writes v's canonical bytes into dst, which must be at
// least dt.SizeInBytes() long. It is the inverse of ReadUnaligned and
// is used to materialize immediate/delta operands into raw bytes.
func EncodeInto(dst []byte, dt DataType, u uint64, raw []byte) {
	switch dt.Kind {
	case KindU8, KindI8:
		dst[0] = byte(u)
	case KindU16, KindI16:
		byteOrder(dt.Endian).PutUint16(dst, uint16(u))
	case KindU32, KindI32, KindF32:
		byteOrder(dt.Endian).PutUint32(dst, uint32(u))
	case KindU64, KindI64, KindF64:
		byteOrder(dt.Endian).PutUint64(dst, u)
	case KindBytes, KindString:
		copy(dst, raw)
	}
}

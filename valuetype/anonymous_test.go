// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package valuetype

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAnonymousStringGrammar(t *testing.T) {
	a, err := ParseAnonymousString("0x1F;hex;")
	require.NoError(t, err)
	assert.Equal(t, "0x1F", a.Literal)
	assert.True(t, a.HasFormat)
	assert.Equal(t, FormatHex, a.Format)
}

func TestAnonymousDecodeDecimal(t *testing.T) {
	a, err := ParseAnonymousString("42")
	require.NoError(t, err)
	v, err := a.Decode(I32(LittleEndian))
	require.NoError(t, err)
	assert.Equal(t, int64(42), v.Int64())
}

func TestAnonymousDecodeHex(t *testing.T) {
	a, err := ParseAnonymousString("0xFF;hex")
	require.NoError(t, err)
	v, err := a.Decode(U8())
	require.NoError(t, err)
	assert.Equal(t, uint64(0xFF), v.Uint64())
}

func TestAnonymousDecodeBool(t *testing.T) {
	a, err := ParseAnonymousString("TRUE;bool")
	require.NoError(t, err)
	v, err := a.Decode(U8())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v.Uint64())
}

func TestAnonymousRoundTripDecimal(t *testing.T) {
	for _, lit := range []string{"0", "42", "-7"} {
		canon, err := Canonicalize(lit, FormatDecimal)
		require.NoError(t, err)
		a, err := ParseAnonymousString(lit + ";dec")
		require.NoError(t, err)
		v, err := a.Decode(I32(LittleEndian))
		require.NoError(t, err)
		assert.Equal(t, canon, Anonymize(v, FormatDecimal))
	}
}

func TestAnonymousRoundTripHex(t *testing.T) {
	canon, err := Canonicalize("0x2a", FormatHex)
	require.NoError(t, err)
	a, _ := ParseAnonymousString("0x2a;hex")
	v, err := a.Decode(U32(LittleEndian))
	require.NoError(t, err)
	assert.Equal(t, canon, Anonymize(v, FormatHex))
}

/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: parser_test.go
Description: Unit and fuzz tests for the IMG! decoder. Covers rejection paths,
boundary dimensions, truncated and oversized payloads, and the clamped copy
property over arbitrary inputs.
*/

package imgparse_test

import (
	"bytes"
	"testing"

	"github.com/kleascm/imgfuzz/pkg/imgparse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func header(w, h uint8) imgparse.Header {
	return imgparse.Header{Width: w, Height: h}
}

func TestParseTooShort(t *testing.T) {
	inputs := [][]byte{
		nil,
		{},
		{'I'},
		[]byte("IMG!"),
		[]byte("IMG!\x01"),
	}
	for _, in := range inputs {
		out := imgparse.Parse(in)
		assert.False(t, out.IsAccepted())
		assert.Equal(t, imgparse.ReasonTooShort, out.Reason)
		assert.Equal(t, 0, out.CopiedBytes)
		assert.Nil(t, out.Data)
		assert.ErrorIs(t, out.Err(), imgparse.ErrTooShort)
	}
}

func TestParseBadMagic(t *testing.T) {
	testCases := []struct {
		name  string
		input []byte
	}{
		{"XYZ?", append([]byte("XYZ?"), 1, 1, 0xAA)},
		{"lowercase", []byte("img!\x01\x01A")},
		{"last byte off", []byte("IMG?\x01\x01A")},
		{"first byte off", []byte("JMG!\x00\x00")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out := imgparse.Parse(tc.input)
			assert.False(t, out.IsAccepted())
			assert.Equal(t, imgparse.ReasonBadMagic, out.Reason)
			assert.ErrorIs(t, out.Err(), imgparse.ErrBadMagic)
		})
	}
}

func TestParseExactPayload(t *testing.T) {
	payload := bytes.Repeat([]byte{0x42}, 6)
	out := imgparse.Parse(imgparse.Encode(header(2, 3), payload))

	require.True(t, out.IsAccepted())
	assert.NoError(t, out.Err())
	assert.Equal(t, 6, out.CopiedBytes)
	assert.Equal(t, payload, out.Data)
	assert.Equal(t, imgparse.Magic, out.Header.Magic)
	assert.Equal(t, uint8(2), out.Header.Width)
	assert.Equal(t, uint8(3), out.Header.Height)
}

func TestParseOversizedPayloadIsClamped(t *testing.T) {
	payload := make([]byte, 20000)
	for i := range payload {
		payload[i] = byte(i)
	}
	out := imgparse.Parse(imgparse.Encode(header(100, 100), payload))

	require.True(t, out.IsAccepted())
	assert.Equal(t, 10000, out.CopiedBytes)
	assert.Equal(t, 10000, cap(out.Data))
	assert.Equal(t, payload[:10000], out.Data)
	assert.Equal(t, 10000, out.Payload.Trailing())
}

func TestParseShortPayloadIsPartial(t *testing.T) {
	payload := bytes.Repeat([]byte{0x7F}, 500)
	out := imgparse.Parse(imgparse.Encode(header(100, 100), payload))

	require.True(t, out.IsAccepted())
	assert.Equal(t, 500, out.CopiedBytes)
	assert.Len(t, out.Data, 500)
	assert.Equal(t, 10000, cap(out.Data))
	assert.True(t, out.Payload.Truncated())
	assert.Equal(t, payload, out.Data)
}

func TestParseZeroDimension(t *testing.T) {
	for _, h := range []imgparse.Header{header(0, 0), header(0, 255), header(255, 0)} {
		out := imgparse.Parse(imgparse.Encode(h, []byte("trailing bytes")))
		require.True(t, out.IsAccepted())
		assert.Equal(t, 0, out.CopiedBytes)
		assert.Nil(t, out.Data, "no allocation for a zero dimension")
	}
}

func TestParseMaxDimensions(t *testing.T) {
	for _, extra := range []int{0, 1, 4096} {
		payload := make([]byte, imgparse.MaxDeclaredSize+extra)
		out := imgparse.Parse(imgparse.Encode(header(255, 255), payload))

		require.True(t, out.IsAccepted())
		assert.Equal(t, imgparse.MaxDeclaredSize, out.Payload.DeclaredSize)
		assert.Equal(t, 65025, out.CopiedBytes)
		assert.Equal(t, 65025, cap(out.Data))
	}
}

func TestParseIdempotent(t *testing.T) {
	input := imgparse.Encode(header(7, 9), bytes.Repeat([]byte{1, 2, 3}, 30))
	first := imgparse.Parse(input)
	second := imgparse.Parse(input)

	assert.Equal(t, first, second)
}

func TestParseDoesNotAliasInput(t *testing.T) {
	input := imgparse.Encode(header(1, 4), []byte{1, 2, 3, 4})
	out := imgparse.Parse(input)
	input[imgparse.HeaderSize] = 0xFF

	assert.Equal(t, byte(1), out.Data[0])
}

func TestDecodeHeader(t *testing.T) {
	h, err := imgparse.DecodeHeader([]byte("IMG!\x10\x20"))
	require.NoError(t, err)
	assert.Equal(t, 16*32, h.DeclaredSize())

	_, err = imgparse.DecodeHeader([]byte("IMG"))
	assert.ErrorIs(t, err, imgparse.ErrTooShort)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "Rejected(BadMagic)", imgparse.Rejected(imgparse.ReasonBadMagic).String())
	out := imgparse.Parse(imgparse.Encode(header(1, 1), []byte{9}))
	assert.Equal(t, "Accepted(copied_bytes=1)", out.String())

	text, err := imgparse.ReasonTooShort.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "TooShort", string(text))
}

func TestParseLegacyOverflowPanics(t *testing.T) {
	input := imgparse.Encode(header(100, 100), make([]byte, 10001))
	assert.Panics(t, func() { imgparse.ParseLegacy(input) })

	assert.Equal(t, -1, imgparse.ParseLegacy([]byte("IMG")))
	assert.Equal(t, 0, imgparse.ParseLegacy(imgparse.Encode(header(100, 100), make([]byte, 10000))))
	assert.Equal(t, 0, imgparse.ParseLegacy(imgparse.Encode(header(99, 100), make([]byte, 20000))))
}

func FuzzParse(f *testing.F) {
	f.Add([]byte{})
	f.Add([]byte("IMG!"))
	f.Add(imgparse.Encode(header(0, 0), nil))
	f.Add(imgparse.Encode(header(2, 2), []byte{1, 2, 3, 4, 5, 6}))
	f.Add(imgparse.Encode(header(100, 100), make([]byte, 10001)))
	f.Add(append([]byte("XYZ?"), 1, 2, 3))

	f.Fuzz(func(t *testing.T, data []byte) {
		out := imgparse.Parse(data)

		switch {
		case len(data) < imgparse.HeaderSize:
			require.Equal(t, imgparse.ReasonTooShort, out.Reason)
			return
		case !bytes.Equal(data[:4], imgparse.Magic[:]):
			require.Equal(t, imgparse.ReasonBadMagic, out.Reason)
			return
		}

		require.True(t, out.IsAccepted())
		declared := int(data[4]) * int(data[5])
		available := len(data) - imgparse.HeaderSize
		want := min(declared, available)

		require.Equal(t, want, out.CopiedBytes)
		require.LessOrEqual(t, out.CopiedBytes, declared)
		if declared == 0 {
			require.Nil(t, out.Data)
		} else {
			require.Equal(t, declared, cap(out.Data))
			require.Equal(t, data[imgparse.HeaderSize:imgparse.HeaderSize+want], out.Data)
		}
		require.Equal(t, out, imgparse.Parse(data))
	})
}

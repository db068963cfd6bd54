/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: parser.go
Description: Decoder for the IMG! binary format. A fixed 6-byte header (4 magic bytes,
1 byte width, 1 byte height) is followed by a payload whose declared size is
width*height. Parsing is a pure function of the input buffer: no I/O, no global
state, and the payload copy is always clamped to the declared capacity.
*/

package imgparse

import (
	"bytes"
	"errors"
	"fmt"
)

// HeaderSize is the number of bytes in the fixed header prefix
const HeaderSize = 6

// MaxDeclaredSize is the largest possible width*height product (255*255)
const MaxDeclaredSize = 255 * 255

// Magic identifies the format and must open every input
var Magic = [4]byte{'I', 'M', 'G', '!'}

var (
	// ErrTooShort is returned when the input cannot hold a full header
	ErrTooShort = errors.New("input shorter than header")
	// ErrBadMagic is returned when the first four bytes are not "IMG!"
	ErrBadMagic = errors.New("magic mismatch")
)

// Header is the decoded fixed-size prefix of an input buffer
type Header struct {
	Magic  [4]byte `json:"magic"`
	Width  uint8   `json:"width"`
	Height uint8   `json:"height"`
}

// DeclaredSize returns width*height. Both operands are widened to int
// before the multiplication so the product never wraps.
func (h Header) DeclaredSize() int {
	return int(h.Width) * int(h.Height)
}

// Payload describes the bytes that follow the header
type Payload struct {
	DeclaredSize  int `json:"declared_size"`
	AvailableSize int `json:"available_size"`
}

// CopyLength is min(DeclaredSize, AvailableSize)
func (p Payload) CopyLength() int {
	if p.AvailableSize < p.DeclaredSize {
		return p.AvailableSize
	}
	return p.DeclaredSize
}

// Truncated reports whether fewer bytes were present than declared
func (p Payload) Truncated() bool {
	return p.AvailableSize < p.DeclaredSize
}

// Trailing returns the number of ignored bytes past the declared size
func (p Payload) Trailing() int {
	if p.AvailableSize > p.DeclaredSize {
		return p.AvailableSize - p.DeclaredSize
	}
	return 0
}

// DecodeHeader validates the header prefix of input.
// Returns ErrTooShort or ErrBadMagic on rejection.
func DecodeHeader(input []byte) (Header, error) {
	if len(input) < HeaderSize {
		return Header{}, ErrTooShort
	}
	if !bytes.Equal(input[:4], Magic[:]) {
		return Header{}, ErrBadMagic
	}

	var h Header
	copy(h.Magic[:], input[:4])
	h.Width = input[4]
	h.Height = input[5]
	return h, nil
}

// Parse decodes input into an Outcome. Every input, however malformed,
// yields a value; nothing here terminates the process on bad data.
//
// The destination buffer is allocated with capacity exactly DeclaredSize
// and receives min(DeclaredSize, AvailableSize) bytes. A short payload is
// partially filled: len(Data) == CopiedBytes and the unfilled tail is not
// exposed. Bytes past DeclaredSize are ignored. A zero dimension skips the
// allocation entirely.
func Parse(input []byte) Outcome {
	h, err := DecodeHeader(input)
	if err != nil {
		if errors.Is(err, ErrTooShort) {
			return Rejected(ReasonTooShort)
		}
		return Rejected(ReasonBadMagic)
	}

	p := Payload{
		DeclaredSize:  h.DeclaredSize(),
		AvailableSize: len(input) - HeaderSize,
	}

	if p.DeclaredSize == 0 {
		return AcceptedWith(h, p, nil)
	}

	dst := make([]byte, p.DeclaredSize)
	n := copy(dst, input[HeaderSize:HeaderSize+p.CopyLength()])
	mustHoldClampedCopy(n, cap(dst), p)

	return AcceptedWith(h, p, dst[:n])
}

// mustHoldClampedCopy panics if a copy ever exceeded the destination
// capacity or the bytes actually present. Unreachable for any input;
// kept so instrumentation notices a regression.
func mustHoldClampedCopy(copied, capacity int, p Payload) {
	if copied > capacity || copied > p.AvailableSize || copied != p.CopyLength() {
		panic(fmt.Sprintf("imgparse: clamped copy invariant violated: copied=%d capacity=%d declared=%d available=%d",
			copied, capacity, p.DeclaredSize, p.AvailableSize))
	}
}

// Encode builds a wire buffer from a header and payload.
// The magic in h is ignored; Magic is always written.
func Encode(h Header, payload []byte) []byte {
	buf := make([]byte, 0, HeaderSize+len(payload))
	buf = append(buf, Magic[:]...)
	buf = append(buf, h.Width, h.Height)
	buf = append(buf, payload...)
	return buf
}

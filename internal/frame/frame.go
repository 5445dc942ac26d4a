// Package frame turns payload text into the watermark bitstream and back.
//
// A frame is the wire form of a truncated Reed-Solomon codeword followed by
// an all-ones synchronization marker:
//
//	data bytes (DataBytes) | parity bytes (ParityBytes) | marker (MarkerLength bits)
//
// Bytes are serialized MSB first. The message bytes between DataBytes and
// the code's K are never transmitted; both sides treat them as zero.
package frame

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/banshee-data/lumamark/internal/fec"
	"github.com/banshee-data/lumamark/internal/monitoring"
)

var (
	// ErrNoWatermark is returned when the marker window does not match.
	ErrNoWatermark = errors.New("no watermark detected")
	// ErrUncorrectable is returned when the data section could not be
	// repaired. The payload still carries the raw data bytes.
	ErrUncorrectable = errors.New("payload could not be error-corrected")
	// ErrPayloadTooLong is returned by Encode for text longer than
	// DataBytes.
	ErrPayloadTooLong = errors.New("payload exceeds frame capacity")
	// ErrMiscorrected is wrapped into ErrUncorrectable when the decoder
	// repaired a byte that was never transmitted and so is known to be zero.
	ErrMiscorrected = errors.New("correction touched untransmitted bytes")
)

// Layout is the truncation policy applied to each codeword.
type Layout struct {
	DataBytes   int
	ParityBytes int
}

// DefaultLayout keeps 8 message bytes and 32 parity bytes.
var DefaultLayout = Layout{DataBytes: 8, ParityBytes: 32}

// WireBytes returns the number of transmitted bytes.
func (l Layout) WireBytes() int {
	return l.DataBytes + l.ParityBytes
}

// Truncate selects the transmitted bytes of a full codeword.
func (l Layout) Truncate(codeword []byte) []byte {
	out := make([]byte, 0, l.WireBytes())
	out = append(out, codeword[:l.DataBytes]...)
	return append(out, codeword[len(codeword)-l.ParityBytes:]...)
}

// Expand rebuilds an n-byte codeword from wire bytes, filling the
// untransmitted message bytes with zeros.
func (l Layout) Expand(wire []byte, n int) []byte {
	cw := make([]byte, n)
	copy(cw, wire[:l.DataBytes])
	copy(cw[n-l.ParityBytes:], wire[l.DataBytes:l.WireBytes()])
	return cw
}

// Payload is the result of decoding a bitstream.
type Payload struct {
	Text string
	// Raw holds the data bytes as read from the bitstream, before error
	// correction.
	Raw          []byte
	Corrected    int
	MarkerErrors int
}

// Codec encodes and decodes frames.
type Codec struct {
	Code         fec.Code
	Layout       Layout
	MarkerLength int
	// Tolerance is the highest accepted fraction of wrong marker bits.
	Tolerance float64
}

// NewCodec returns the default codec: RS(255,223), 8+32 byte layout and a
// 41-bit marker with 0.2 tolerance.
func NewCodec() (*Codec, error) {
	rs, err := fec.NewDefault()
	if err != nil {
		return nil, err
	}
	return &Codec{
		Code:         rs,
		Layout:       DefaultLayout,
		MarkerLength: 41,
		Tolerance:    0.2,
	}, nil
}

// Validate checks that the layout fits the code.
func (c *Codec) Validate() error {
	if c.Code == nil {
		return errors.New("frame codec has no error correction code")
	}
	n, k := c.Code.N(), c.Code.K()
	if c.Layout.DataBytes <= 0 || c.Layout.DataBytes > k {
		return fmt.Errorf("data bytes must be in [1,%d], got %d", k, c.Layout.DataBytes)
	}
	if c.Layout.ParityBytes != n-k {
		return fmt.Errorf("parity bytes must equal the code's %d parity symbols, got %d", n-k, c.Layout.ParityBytes)
	}
	if c.MarkerLength <= 0 {
		return fmt.Errorf("marker length must be positive, got %d", c.MarkerLength)
	}
	if c.Tolerance < 0 || c.Tolerance >= 1 {
		return fmt.Errorf("marker tolerance must be in [0,1), got %v", c.Tolerance)
	}
	return nil
}

// BitLen returns the total bitstream length.
func (c *Codec) BitLen() int {
	return 8*c.Layout.WireBytes() + c.MarkerLength
}

// Encode builds the bitstream for text.
func (c *Codec) Encode(text string) ([]uint8, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if len(text) > c.Layout.DataBytes {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrPayloadTooLong, len(text), c.Layout.DataBytes)
	}
	cw, err := c.Code.Encode([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	bits := BytesToBits(c.Layout.Truncate(cw))
	for i := 0; i < c.MarkerLength; i++ {
		bits = append(bits, 1)
	}
	return bits, nil
}

// MarkerErrors counts the bits of the trailing marker window that are not
// 1. A bitstream shorter than the marker counts every missing bit as wrong.
func (c *Codec) MarkerErrors(bits []uint8) int {
	n := 0
	start := len(bits) - c.MarkerLength
	for i := 0; i < c.MarkerLength; i++ {
		if j := start + i; j < 0 || bits[j] != 1 {
			n++
		}
	}
	return n
}

// Synchronized reports whether the marker window is within tolerance.
func (c *Codec) Synchronized(bits []uint8) bool {
	if len(bits) < c.MarkerLength {
		return false
	}
	return float64(c.MarkerErrors(bits))/float64(c.MarkerLength) <= c.Tolerance
}

// Decode recovers the payload from a bitstream. On marker mismatch it
// returns ErrNoWatermark and an empty payload; when error correction fails
// it returns ErrUncorrectable with the raw data bytes as text.
func (c *Codec) Decode(bits []uint8) (*Payload, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	p := &Payload{MarkerErrors: c.MarkerErrors(bits)}
	if !c.Synchronized(bits) {
		return p, fmt.Errorf("%w: %d of %d marker bits wrong", ErrNoWatermark, p.MarkerErrors, c.MarkerLength)
	}
	if p.MarkerErrors > 0 {
		monitoring.Debugf("marker accepted with %d of %d wrong bits", p.MarkerErrors, c.MarkerLength)
	}

	data := make([]uint8, 8*c.Layout.WireBytes())
	copy(data, bits[:len(bits)-c.MarkerLength])
	wire := BitsToBytes(data)
	p.Raw = append([]byte(nil), wire[:c.Layout.DataBytes]...)

	msg, corrected, err := c.Code.Decode(c.Layout.Expand(wire, c.Code.N()))
	if err == nil && !isZero(msg[c.Layout.DataBytes:]) {
		err = ErrMiscorrected
	}
	if err != nil {
		p.Text = trimText(p.Raw)
		return p, fmt.Errorf("%w: %w", ErrUncorrectable, err)
	}
	p.Corrected = corrected
	p.Text = trimText(msg[:c.Layout.DataBytes])
	return p, nil
}

// BytesToBits expands b MSB first.
func BytesToBits(b []byte) []uint8 {
	bits := make([]uint8, 0, 8*len(b))
	for _, v := range b {
		for i := 7; i >= 0; i-- {
			bits = append(bits, (v>>uint(i))&1)
		}
	}
	return bits
}

// BitsToBytes packs bits MSB first. A trailing partial byte is padded with
// zero bits. Any non-zero value counts as 1.
func BitsToBytes(bits []uint8) []byte {
	out := make([]byte, (len(bits)+7)/8)
	for i, b := range bits {
		if b != 0 {
			out[i/8] |= 1 << uint(7-i%8)
		}
	}
	return out
}

func trimText(b []byte) string {
	return string(bytes.TrimRight(b, "\x00"))
}

func isZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

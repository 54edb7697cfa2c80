// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Lumenarc

package glint

// EncodeFrame wraps a payload in frame delimiters, escaping any delimiter or
// escape bytes that occur inside it.
func EncodeFrame(payload []byte) []byte {
	// Worst case every byte escapes, plus the two delimiters.
	out := make([]byte, 0, len(payload)*2+2)
	out = append(out, FrameDelim)
	for _, b := range payload {
		switch b {
		case FrameDelim:
			out = append(out, FrameEscape, EscDelim)
		case FrameEscape:
			out = append(out, FrameEscape, EscEscape)
		default:
			out = append(out, b)
		}
	}
	out = append(out, FrameDelim)
	return out
}

// Decoder is a streaming frame decoder. Bytes are fed one at a time; a
// completed frame payload is returned when its closing delimiter arrives.
//
// The decoder is lenient: an unrecognized byte after an escape is taken as a
// literal, and empty frames (consecutive delimiters) are discarded.
type Decoder struct {
	buf     []byte
	inFrame bool
	escaped bool
}

// NewDecoder creates a streaming frame decoder.
func NewDecoder() *Decoder {
	return &Decoder{buf: make([]byte, 0, 32)}
}

// Reset discards any partially accumulated frame.
func (d *Decoder) Reset() {
	d.buf = d.buf[:0]
	d.inFrame = false
	d.escaped = false
}

// Feed processes one byte. It returns a completed frame payload, or nil if no
// frame completed on this byte.
func (d *Decoder) Feed(b byte) []byte {
	// A delimiter always wins, even mid-escape.
	if b == FrameDelim {
		d.escaped = false
		d.inFrame = true
		if len(d.buf) == 0 {
			return nil
		}
		frame := make([]byte, len(d.buf))
		copy(frame, d.buf)
		d.buf = d.buf[:0]
		return frame
	}

	if !d.inFrame {
		// Noise before the first delimiter.
		return nil
	}

	if d.escaped {
		d.escaped = false
		switch b {
		case EscDelim:
			d.buf = append(d.buf, FrameDelim)
		case EscEscape:
			d.buf = append(d.buf, FrameEscape)
		default:
			d.buf = append(d.buf, b)
		}
		return nil
	}

	if b == FrameEscape {
		d.escaped = true
		return nil
	}

	d.buf = append(d.buf, b)
	return nil
}

// DecodeFrames runs a byte stream through a fresh Decoder and returns every
// completed frame payload, in order.
func DecodeFrames(stream []byte) [][]byte {
	d := NewDecoder()
	var frames [][]byte
	for _, b := range stream {
		if f := d.Feed(b); f != nil {
			frames = append(frames, f)
		}
	}
	return frames
}

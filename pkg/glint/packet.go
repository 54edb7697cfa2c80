// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Lumenarc

package glint

import (
	"errors"
	"fmt"
)

// Decode error kinds. Callers discriminate with errors.Is.
var (
	ErrBadChecksum = errors.New("glint: checksum mismatch")
	ErrTruncated   = errors.New("glint: truncated packet")
)

// Packet is one command before framing: target address, opcode and the
// opcode-specific argument bytes.
type Packet struct {
	Addr Address
	Op   Opcode
	Args []byte
}

// payload returns the pre-checksum byte sequence: addr hi, addr lo, opcode,
// args.
func (p *Packet) payload() []byte {
	out := make([]byte, 0, 3+len(p.Args))
	out = append(out, p.Addr.Hi(), p.Addr.Lo(), byte(p.Op))
	return append(out, p.Args...)
}

// Marshal encodes the packet to wire format: payload, XOR checksum, framing.
func (p *Packet) Marshal() []byte {
	payload := p.payload()
	payload = append(payload, Checksum(payload))
	return EncodeFrame(payload)
}

// Parse decodes an unframed frame payload into a Packet, verifying the
// trailing checksum.
func Parse(payload []byte) (*Packet, error) {
	return parse(payload, true)
}

// ParseLenient decodes like Parse but ignores a checksum mismatch. Used on
// diagnostic and simulation paths where a damaged frame is still worth
// inspecting.
func ParseLenient(payload []byte) (*Packet, error) {
	return parse(payload, false)
}

func parse(payload []byte, strict bool) (*Packet, error) {
	// addr(2) + opcode + checksum is the minimum wire payload.
	if len(payload) < 4 {
		return nil, fmt.Errorf("%w: %d bytes", ErrTruncated, len(payload))
	}

	body, sum := payload[:len(payload)-1], payload[len(payload)-1]
	if strict && Checksum(body) != sum {
		return nil, fmt.Errorf("%w: expected 0x%02X, got 0x%02X", ErrBadChecksum, Checksum(body), sum)
	}

	p := &Packet{
		Addr: AddressFrom(body[0], body[1]),
		Op:   Opcode(body[2]),
		Args: append([]byte(nil), body[3:]...),
	}

	if want, known := argLen(p.Op); known && len(p.Args) < want {
		return nil, fmt.Errorf("%w: %s needs %d argument bytes, got %d", ErrTruncated, p.Op, want, len(p.Args))
	}
	return p, nil
}

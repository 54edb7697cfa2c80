// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Lumenarc

package glint

import (
	"encoding/binary"
	"fmt"
)

// String returns the human-readable name for an opcode.
func (o Opcode) String() string {
	switch o {
	case OpOn:
		return "ON"
	case OpOff:
		return "OFF"
	case OpLevel:
		return "LEVEL"
	case OpFade:
		return "FADE"
	case OpPAddSet:
		return "PADDSET"
	case OpPAddErase:
		return "PADDERASE"
	case OpRGBLevel:
		return "RGB_LEVEL"
	case OpFlash:
		return "FLASH"
	case OpRGBFade:
		return "RGB_FADE"
	}
	return fmt.Sprintf("UNKNOWN(0x%02X)", byte(o))
}

// FormatPacket formats a packet into a one-line human-readable string for
// diagnostics and audit output.
func FormatPacket(p *Packet) string {
	head := fmt.Sprintf("%s addr=0x%04X", p.Op, uint16(p.Addr))
	switch p.Op {
	case OpOn, OpOff, OpPAddErase:
		return head
	case OpLevel:
		if len(p.Args) >= 1 {
			return fmt.Sprintf("%s level=%d", head, p.Args[0])
		}
	case OpFade:
		if len(p.Args) >= 3 {
			return fmt.Sprintf("%s level=%d interval=%d step=%d", head, p.Args[0], p.Args[1], p.Args[2])
		}
	case OpPAddSet:
		if len(p.Args) >= 2 {
			return fmt.Sprintf("%s pseudo=0x%04X", head, AddressFrom(p.Args[0], p.Args[1]))
		}
	case OpRGBLevel:
		if len(p.Args) >= 3 {
			return fmt.Sprintf("%s r=%d g=%d b=%d", head, p.Args[0], p.Args[1], p.Args[2])
		}
	case OpRGBFade:
		if len(p.Args) >= 9 {
			return fmt.Sprintf("%s r=%d/%d/%d g=%d/%d/%d b=%d/%d/%d", head,
				p.Args[0], p.Args[1], p.Args[2],
				p.Args[3], p.Args[4], p.Args[5],
				p.Args[6], p.Args[7], p.Args[8])
		}
	case OpFlash:
		if len(p.Args) >= 8 {
			return fmt.Sprintf("%s steps=%d interval_a=%d interval_b=%d level_a=%d level_b=%d", head,
				binary.BigEndian.Uint16(p.Args[0:2]),
				binary.BigEndian.Uint16(p.Args[2:4]),
				binary.BigEndian.Uint16(p.Args[4:6]),
				p.Args[6], p.Args[7])
		}
	}
	return fmt.Sprintf("%s args=% X", head, p.Args)
}

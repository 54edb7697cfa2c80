// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Lumenarc

package glint

import (
	"bytes"
	"testing"
)

func TestOn_WireFormat(t *testing.T) {
	// Worked example: ON for address 5.
	wire := On(5).Marshal()
	want := []byte{0xC0, 0x00, 0x05, 0x20, 0x25, 0xC0}
	if !bytes.Equal(wire, want) {
		t.Errorf("expected % X, got % X", want, wire)
	}
}

func TestRGBLevel_WireFormat(t *testing.T) {
	// RGB_LEVEL at address 100 with (255, 128, 64). XOR over
	// 00 64 2C FF 80 40 is 0x77.
	wire := RGBLevel(100, 255, 128, 64).Marshal()
	want := []byte{0xC0, 0x00, 0x64, 0x2C, 0xFF, 0x80, 0x40, 0x77, 0xC0}
	if !bytes.Equal(wire, want) {
		t.Errorf("expected % X, got % X", want, wire)
	}
}

func TestChecksum_MatchesTrailingByte(t *testing.T) {
	packets := []*Packet{
		On(5),
		Off(AddressBroadcast),
		Level(0x1234, 128),
		RGBLevel(100, 255, 128, 64),
		Flash(7, 10, 5, 5, 255, 0),
	}
	for _, p := range packets {
		frames := DecodeFrames(p.Marshal())
		if len(frames) != 1 {
			t.Fatalf("%s: expected 1 frame", p.Op)
		}
		payload := frames[0]
		body, sum := payload[:len(payload)-1], payload[len(payload)-1]
		if Checksum(body) != sum {
			t.Errorf("%s: checksum 0x%02X does not match trailing byte 0x%02X", p.Op, Checksum(body), sum)
		}
	}
}

func TestAddressPacking(t *testing.T) {
	for _, a := range []Address{0, 1, 255, 256, 0x1234, 0xFFFE, 0xFFFF} {
		hi, lo := a.Hi(), a.Lo()
		if int(hi) != int(a)/256 || int(lo) != int(a)%256 {
			t.Errorf("address %d: packed to (%d, %d)", a, hi, lo)
		}
		if AddressFrom(hi, lo) != a {
			t.Errorf("address %d: unpacked to %d", a, AddressFrom(hi, lo))
		}
	}
}

func TestBuilders_Clamping(t *testing.T) {
	tests := []struct {
		name string
		p    *Packet
		want []byte
	}{
		{"level above range", Level(1, 300), []byte{255}},
		{"level below range", Level(1, -5), []byte{0}},
		{"fade interval and step clamp", Fade(1, 128, FadePlan{Interval: 0, Step: 200}), []byte{128, 1, 127}},
		{"rgb level clamps per channel", RGBLevel(1, -1, 256, 64), []byte{0, 255, 64}},
		{"flash steps floor at 2", Flash(1, 0, 0, 70000, 300, -1), []byte{0x00, 0x02, 0x00, 0x01, 0xFF, 0xFF, 255, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !bytes.Equal(tt.p.Args, tt.want) {
				t.Errorf("expected args % X, got % X", tt.want, tt.p.Args)
			}
		})
	}
}

func TestRGBFade_Layout(t *testing.T) {
	p := RGBFade(100,
		Ramp{Level: 255, Plan: FadePlan{Interval: 1, Step: 6}},
		Ramp{Level: 128, Plan: FadePlan{Interval: 2, Step: 3}},
		Ramp{Level: 0, Plan: FadePlan{Interval: 1, Step: 1}},
	)
	want := []byte{255, 1, 6, 128, 2, 3, 0, 1, 1}
	if !bytes.Equal(p.Args, want) {
		t.Errorf("expected % X, got % X", want, p.Args)
	}
}

func TestPseudoSet_Layout(t *testing.T) {
	p := PseudoSet(0x0010, 0x0A0B)
	if !bytes.Equal(p.Args, []byte{0x0A, 0x0B}) {
		t.Errorf("expected 0A 0B, got % X", p.Args)
	}
}

func TestParse_RoundTrip(t *testing.T) {
	packets := []*Packet{
		On(5),
		Off(0xFFFF),
		Level(0x0102, 42),
		Fade(100, 255, FadePlan{Interval: 1, Step: 6}),
		RGBLevel(100, 255, 128, 64),
		Flash(3, 100, 50, 50, 255, 10),
		PseudoSet(1, 2),
		PseudoErase(1),
	}
	for _, p := range packets {
		frames := DecodeFrames(p.Marshal())
		got, err := Parse(frames[0])
		if err != nil {
			t.Fatalf("%s: parse error: %v", p.Op, err)
		}
		if got.Addr != p.Addr || got.Op != p.Op || !bytes.Equal(got.Args, p.Args) {
			t.Errorf("%s: round trip mismatch: %+v vs %+v", p.Op, got, p)
		}
	}
}

func TestParse_BadChecksum(t *testing.T) {
	frames := DecodeFrames(On(5).Marshal())
	payload := frames[0]
	payload[len(payload)-1] ^= 0xFF

	if _, err := Parse(payload); err == nil {
		t.Error("expected checksum error")
	}
	if _, err := ParseLenient(payload); err != nil {
		t.Errorf("lenient parse must tolerate a bad checksum, got %v", err)
	}
}

func TestParse_Truncated(t *testing.T) {
	if _, err := Parse([]byte{0x00, 0x05}); err == nil {
		t.Error("expected truncation error for short payload")
	}
	// LEVEL with its argument byte missing: addr, opcode, checksum only.
	body := []byte{0x00, 0x05, byte(OpLevel)}
	payload := append(body, Checksum(body))
	if _, err := Parse(payload); err == nil {
		t.Error("expected truncation error for missing argument")
	}
}

func TestFormatPacket(t *testing.T) {
	tests := []struct {
		p    *Packet
		want string
	}{
		{On(5), "ON addr=0x0005"},
		{Level(0x0102, 42), "LEVEL addr=0x0102 level=42"},
		{RGBLevel(100, 255, 128, 64), "RGB_LEVEL addr=0x0064 r=255 g=128 b=64"},
		{Flash(7, 4, 10, 20, 255, 0), "FLASH addr=0x0007 steps=4 interval_a=10 interval_b=20 level_a=255 level_b=0"},
	}
	for _, tt := range tests {
		if got := FormatPacket(tt.p); got != tt.want {
			t.Errorf("expected %q, got %q", tt.want, got)
		}
	}
}

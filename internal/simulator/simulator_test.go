// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Lumenarc

package simulator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenarc/maquette/pkg/glint"
)

func feed(s *Simulator, packets ...*glint.Packet) {
	for _, p := range packets {
		s.FrameEmitted(p.Marshal(), true)
	}
}

func TestApply_OnOffLevel(t *testing.T) {
	s := New([]glint.Address{5, 6}, nil)

	feed(s, glint.On(5))
	f, ok := s.Fixture(5)
	require.True(t, ok)
	assert.True(t, f.On)
	assert.Equal(t, uint8(255), f.Level)
	assert.Equal(t, uint8(255), f.R)

	feed(s, glint.Level(5, 40))
	f, _ = s.Fixture(5)
	assert.True(t, f.On)
	assert.Equal(t, uint8(40), f.Level)
	assert.Equal(t, uint8(40), f.G)

	feed(s, glint.Off(5))
	f, _ = s.Fixture(5)
	assert.False(t, f.On)
	assert.Equal(t, uint8(0), f.Level)

	// Untouched neighbour stays off.
	f, _ = s.Fixture(6)
	assert.False(t, f.On)
}

func TestApply_FadeCollapsesToFinalValue(t *testing.T) {
	s := New([]glint.Address{7}, nil)

	feed(s, glint.Fade(7, 200, glint.FadePlan{Interval: 10, Step: 2}))
	f, _ := s.Fixture(7)
	assert.True(t, f.On)
	assert.Equal(t, uint8(200), f.Level)

	feed(s, glint.Fade(7, 0, glint.FadePlan{Interval: 1, Step: 1}))
	f, _ = s.Fixture(7)
	assert.False(t, f.On)
	assert.Equal(t, uint8(0), f.Level)
}

func TestApply_RGB(t *testing.T) {
	s := New([]glint.Address{100}, nil)

	feed(s, glint.RGBLevel(100, 255, 128, 64))
	f, _ := s.Fixture(100)
	assert.True(t, f.On)
	assert.Equal(t, uint8(255), f.R)
	assert.Equal(t, uint8(128), f.G)
	assert.Equal(t, uint8(64), f.B)
	assert.Equal(t, uint8(255), f.Level)

	feed(s, glint.RGBFade(100,
		glint.Ramp{Level: 0, Plan: glint.FadePlan{Interval: 1, Step: 6}},
		glint.Ramp{Level: 80, Plan: glint.FadePlan{Interval: 1, Step: 6}},
		glint.Ramp{Level: 10, Plan: glint.FadePlan{Interval: 1, Step: 6}},
	))
	f, _ = s.Fixture(100)
	assert.True(t, f.On)
	assert.Equal(t, uint8(0), f.R)
	assert.Equal(t, uint8(80), f.G)
	assert.Equal(t, uint8(10), f.B)
	assert.Equal(t, uint8(80), f.Level)
}

func TestApply_Broadcast(t *testing.T) {
	s := New([]glint.Address{1, 2, 3}, nil)

	feed(s, glint.On(glint.AddressBroadcast))
	for _, f := range s.Snapshot() {
		assert.True(t, f.On, "fixture %d", f.Addr)
	}

	feed(s, glint.Off(glint.AddressBroadcast))
	for _, f := range s.Snapshot() {
		assert.False(t, f.On, "fixture %d", f.Addr)
	}
}

func TestApply_UnknownAddressIsCreated(t *testing.T) {
	s := New(nil, nil)
	feed(s, glint.Level(77, 10))
	f, ok := s.Fixture(77)
	require.True(t, ok)
	assert.Equal(t, uint8(10), f.Level)
}

func TestLenientChecksum(t *testing.T) {
	s := New([]glint.Address{5}, nil)

	wire := glint.On(5).Marshal()
	// Corrupt the checksum byte (second to last, inside the framing).
	wire[len(wire)-2] ^= 0xFF
	s.FrameEmitted(wire, true)

	f, _ := s.Fixture(5)
	assert.True(t, f.On, "checksum mismatches are ignored on the simulation path")
}

func TestFramesSplitAcrossWrites(t *testing.T) {
	s := New([]glint.Address{5}, nil)
	wire := glint.Level(5, 123).Marshal()

	// Deliver one byte per observer call.
	for _, b := range wire {
		s.FrameEmitted([]byte{b}, true)
	}

	f, _ := s.Fixture(5)
	assert.Equal(t, uint8(123), f.Level)
}

func TestFilterAndReset(t *testing.T) {
	s := New([]glint.Address{1, 2, 3}, nil)
	feed(s, glint.Level(2, 200))

	lit := s.Filter(func(f Fixture) bool { return f.On })
	require.Len(t, lit, 1)
	assert.Equal(t, glint.Address(2), lit[0].Addr)

	s.Reset()
	for _, f := range s.Snapshot() {
		assert.False(t, f.On)
		assert.Equal(t, uint8(0), f.Level)
	}
}

func TestMirror_ReplayEquivalence(t *testing.T) {
	// Applying a schedule through the observer equals replaying the same
	// decoded frames on a fresh table.
	schedule := []*glint.Packet{
		glint.On(1),
		glint.RGBLevel(2, 10, 20, 30),
		glint.Level(1, 99),
		glint.Off(glint.AddressBroadcast),
		glint.RGBLevel(3, 1, 2, 3),
	}

	a := New([]glint.Address{1, 2, 3}, nil)
	b := New([]glint.Address{1, 2, 3}, nil)

	var stream []byte
	for _, p := range schedule {
		stream = append(stream, p.Marshal()...)
	}
	// One big write vs packet-at-a-time.
	a.FrameEmitted(stream, true)
	feed(b, schedule...)

	sa, sb := a.Snapshot(), b.Snapshot()
	require.Equal(t, len(sa), len(sb))
	for i := range sa {
		sa[i].LastUpdated = sb[i].LastUpdated
	}
	assert.Equal(t, sb, sa)
}

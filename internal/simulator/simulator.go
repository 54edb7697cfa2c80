// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Lumenarc

// Package simulator mirrors emitted wire packets into a virtual fixture
// table, so clients can exercise the full pipeline without hardware.
package simulator

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lumenarc/maquette/pkg/glint"
)

// Fixture is the virtual state of one addressable unit.
type Fixture struct {
	Addr        glint.Address
	On          bool
	Level       uint8
	R, G, B     uint8
	LastUpdated time.Time
}

// Simulator decodes observed frames and replays them against the fixture
// table. It implements transport.Observer.
//
// Decoding is lenient: checksum mismatches are ignored and fades collapse to
// their final value; intermediate steps are not simulated.
type Simulator struct {
	mu       sync.RWMutex
	fixtures map[glint.Address]*Fixture
	dec      *glint.Decoder
	log      *zap.Logger
}

// New creates a simulator seeded with the given fixture addresses, all off.
func New(addrs []glint.Address, log *zap.Logger) *Simulator {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Simulator{
		fixtures: make(map[glint.Address]*Fixture, len(addrs)),
		dec:      glint.NewDecoder(),
		log:      log,
	}
	for _, a := range addrs {
		s.fixtures[a] = &Fixture{Addr: a}
	}
	return s
}

// FrameEmitted feeds observed wire bytes through the decoder and applies any
// completed commands.
func (s *Simulator) FrameEmitted(frame []byte, _ bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range frame {
		payload := s.dec.Feed(b)
		if payload == nil {
			continue
		}
		p, err := glint.ParseLenient(payload)
		if err != nil {
			s.log.Debug("simulator dropped frame", zap.Error(err))
			continue
		}
		s.apply(p)
	}
}

// apply updates fixture state for one decoded command. Caller holds the lock.
func (s *Simulator) apply(p *glint.Packet) {
	now := time.Now()
	for _, f := range s.targets(p.Addr) {
		s.applyTo(f, p)
		f.LastUpdated = now
	}
}

// targets resolves the address to the affected fixtures; broadcast expands to
// the whole table, a directly addressed unknown fixture is created on the
// fly.
func (s *Simulator) targets(addr glint.Address) []*Fixture {
	if addr.IsBroadcast() {
		out := make([]*Fixture, 0, len(s.fixtures))
		for _, f := range s.fixtures {
			out = append(out, f)
		}
		return out
	}
	if addr == glint.AddressMaster {
		return nil
	}
	f, ok := s.fixtures[addr]
	if !ok {
		f = &Fixture{Addr: addr}
		s.fixtures[addr] = f
	}
	return []*Fixture{f}
}

func (s *Simulator) applyTo(f *Fixture, p *glint.Packet) {
	switch p.Op {
	case glint.OpOn:
		f.On = true
		f.Level, f.R, f.G, f.B = 255, 255, 255, 255

	case glint.OpOff:
		f.On = false
		f.Level, f.R, f.G, f.B = 0, 0, 0, 0

	case glint.OpLevel:
		l := p.Args[0]
		f.Level, f.R, f.G, f.B = l, l, l, l
		f.On = l > 0

	case glint.OpFade:
		// Collapse to the final level.
		l := p.Args[0]
		f.Level, f.R, f.G, f.B = l, l, l, l
		f.On = l > 0

	case glint.OpRGBLevel:
		s.setRGB(f, p.Args[0], p.Args[1], p.Args[2])

	case glint.OpRGBFade:
		// Channel targets sit at offsets 0, 3 and 6.
		s.setRGB(f, p.Args[0], p.Args[3], p.Args[6])

	default:
		// FLASH and addressing commands have no stable final value to mirror.
	}
}

func (s *Simulator) setRGB(f *Fixture, r, g, b uint8) {
	f.R, f.G, f.B = r, g, b
	f.Level = maxByte(r, g, b)
	f.On = f.Level > 0
}

// Fixture returns a copy of one fixture's state.
func (s *Simulator) Fixture(addr glint.Address) (Fixture, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.fixtures[addr]
	if !ok {
		return Fixture{}, false
	}
	return *f, true
}

// Snapshot returns every fixture ordered by address.
func (s *Simulator) Snapshot() []Fixture {
	return s.Filter(nil)
}

// Filter returns the fixtures matching the predicate, ordered by address. A
// nil predicate matches everything.
func (s *Simulator) Filter(match func(Fixture) bool) []Fixture {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Fixture, 0, len(s.fixtures))
	for _, f := range s.fixtures {
		if match == nil || match(*f) {
			out = append(out, *f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Addr < out[j].Addr })
	return out
}

// Reset atomically returns every fixture to off and discards any partially
// decoded frame.
func (s *Simulator) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dec.Reset()
	for addr := range s.fixtures {
		s.fixtures[addr] = &Fixture{Addr: addr}
	}
}

func maxByte(vals ...uint8) uint8 {
	var m uint8
	for _, v := range vals {
		if v > m {
			m = v
		}
	}
	return m
}

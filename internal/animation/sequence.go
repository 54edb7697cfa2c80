// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Lumenarc

package animation

import (
	"fmt"
	"time"

	"github.com/lumenarc/maquette/internal/config"
	"github.com/lumenarc/maquette/internal/inventory"
)

// Kind enumerates the supported sequence kinds.
type Kind int

// Sequence kinds
const (
	KindStatic Kind = iota
	KindLoop
	KindWave
	KindChase
	KindBreathe
)

func (k Kind) String() string {
	switch k {
	case KindStatic:
		return "static"
	case KindLoop:
		return "loop"
	case KindWave:
		return "wave"
	case KindChase:
		return "chase"
	case KindBreathe:
		return "breathe"
	}
	return "unknown"
}

// Step is one emission of a static or loop sequence. Exactly one of
// Apartment, Group or Broadcast selects the target.
type Step struct {
	Apartment string
	Group     string
	Broadcast bool

	// State selects the color from the state table; RGB overrides it.
	State     inventory.State
	RGB       *[3]uint8
	Intensity int

	Duration time.Duration
}

// Sequence is a named ambient pattern.
type Sequence struct {
	ID   string
	Kind Kind

	// static / loop
	Steps        []Step
	StepDuration time.Duration

	// wave
	Up         bool
	Fade       time.Duration
	FloorDelay time.Duration
	Hold       time.Duration
	Pause      time.Duration
	Loop       bool

	// chase
	Tick time.Duration
	Tail int

	// breathe
	MinLevel int
	MaxLevel int
	Duration time.Duration

	// wave / chase color
	R, G, B uint8
}

// FromConfig builds a runnable sequence from its configuration.
func FromConfig(sc *config.SequenceConfig) (*Sequence, error) {
	s := &Sequence{
		ID:         sc.ID,
		Up:         sc.Direction != "down",
		Fade:       ms(sc.FadeMs, 1000),
		FloorDelay: ms(sc.FloorDelayMs, 150),
		Hold:       ms(sc.HoldMs, 2000),
		Pause:      ms(sc.PauseMs, 1000),
		Loop:       sc.Loop,
		Tick:       ms(sc.TickMs, 100),
		Tail:       sc.Tail,
		MinLevel:   sc.MinLevel,
		MaxLevel:   sc.MaxLevel,
		Duration:   ms(sc.DurationMs, 4000),
		R:          clampChannel(sc.R),
		G:          clampChannel(sc.G),
		B:          clampChannel(sc.B),
	}
	switch sc.Kind {
	case "static":
		s.Kind = KindStatic
	case "loop":
		s.Kind = KindLoop
	case "wave":
		s.Kind = KindWave
	case "chase":
		s.Kind = KindChase
		if s.Tail < 1 {
			s.Tail = 4
		}
	case "breathe":
		s.Kind = KindBreathe
		if s.MaxLevel == 0 {
			s.MaxLevel = 255
		}
	default:
		return nil, fmt.Errorf("animation: unknown sequence kind %q", sc.Kind)
	}

	s.StepDuration = ms(sc.StepDurationMs, 1000)
	for _, st := range sc.Steps {
		step := Step{
			Apartment: st.Apartment,
			Group:     st.Group,
			Broadcast: st.Broadcast,
			Intensity: st.Intensity,
			Duration:  ms(st.DurationMs, 0),
		}
		if step.Duration == 0 {
			step.Duration = s.StepDuration
		}
		if step.Intensity == 0 {
			step.Intensity = 255
		}
		if st.State != "" {
			parsed, err := inventory.ParseState(st.State)
			if err != nil {
				return nil, fmt.Errorf("animation: sequence %s: %w", sc.ID, err)
			}
			step.State = parsed
		} else {
			step.RGB = &[3]uint8{clampChannel(st.R), clampChannel(st.G), clampChannel(st.B)}
		}
		s.Steps = append(s.Steps, step)
	}
	return s, nil
}

func ms(v, def int) time.Duration {
	if v <= 0 {
		return time.Duration(def) * time.Millisecond
	}
	return time.Duration(v) * time.Millisecond
}

func clampChannel(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

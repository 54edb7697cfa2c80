// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Lumenarc

package glint

import (
	"math"
	"time"
)

// FadePlan holds on-device fade descriptors: the tick interval in units of
// 10ms and the PWM step applied per tick.
type FadePlan struct {
	Interval byte // 1..255
	Step     byte // 1..127
}

// PlanFade converts a fade intent (from level, to level, wall-clock duration)
// into device fade parameters such that |to-from|*10ms/step approximates the
// requested duration.
//
// A zero-length fade plans as (1,1). When the duration is too long for a
// one-step-per-interval fade, the interval clamps to 255 and the fade runs
// longer than requested.
func PlanFade(from, to int, duration time.Duration) FadePlan {
	delta := to - from
	if delta < 0 {
		delta = -delta
	}
	if delta == 0 {
		return FadePlan{Interval: 1, Step: 1}
	}

	// Hundredths of a second.
	u := int(math.Round(float64(duration.Milliseconds()) / 10))
	if u < 1 {
		u = 1
	}

	step := 1
	interval := int(math.Round(float64(u) / float64(delta)))
	if interval > MaxInterval {
		interval = MaxInterval
	} else if interval < MinInterval {
		interval = MinInterval
		step = (delta + u - 1) / u
		if step > MaxStep {
			step = MaxStep
		}
	}
	if step < MinStep {
		step = MinStep
	}
	return FadePlan{Interval: byte(interval), Step: byte(step)}
}

// Duration returns the wall-clock time the fade takes for the given level
// delta.
func (f FadePlan) Duration(delta int) time.Duration {
	if delta < 0 {
		delta = -delta
	}
	step := int(f.Step)
	if step < 1 {
		step = 1
	}
	ticks := (delta + step - 1) / step
	return time.Duration(ticks) * time.Duration(f.Interval) * 10 * time.Millisecond
}

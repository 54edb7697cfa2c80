// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Lumenarc

package glint

import (
	"testing"
	"time"
)

func TestPlanFade(t *testing.T) {
	tests := []struct {
		name         string
		from, to     int
		duration     time.Duration
		wantInterval byte
		wantStep     byte
	}{
		{
			// Worked example: full ramp in 500ms. u=50, interval rounds to
			// 0 and clamps to 1, step = ceil(255/50) = 6.
			name: "fast full ramp", from: 0, to: 255, duration: 500 * time.Millisecond,
			wantInterval: 1, wantStep: 6,
		},
		{
			name: "zero delta", from: 128, to: 128, duration: time.Second,
			wantInterval: 1, wantStep: 1,
		},
		{
			// 255 steps over 2550ms: one step every 10ms.
			name: "unit interval", from: 0, to: 255, duration: 2550 * time.Millisecond,
			wantInterval: 1, wantStep: 1,
		},
		{
			// Small delta over a long time: interval grows instead of step.
			name: "slow small delta", from: 0, to: 10, duration: 5 * time.Second,
			wantInterval: 50, wantStep: 1,
		},
		{
			// Longer than expressible: interval clamps at 255 and the fade
			// overshoots the requested duration.
			name: "duration clamps long", from: 0, to: 2, duration: 60 * time.Second,
			wantInterval: 255, wantStep: 1,
		},
		{
			// Instant fade: steepest legal step.
			name: "zero duration", from: 0, to: 255, duration: 0,
			wantInterval: 1, wantStep: 127,
		},
		{
			name: "downward fade plans like upward", from: 255, to: 0, duration: 500 * time.Millisecond,
			wantInterval: 1, wantStep: 6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := PlanFade(tt.from, tt.to, tt.duration)
			if plan.Interval != tt.wantInterval || plan.Step != tt.wantStep {
				t.Errorf("expected (%d, %d), got (%d, %d)",
					tt.wantInterval, tt.wantStep, plan.Interval, plan.Step)
			}
		})
	}
}

func TestPlanFade_AlwaysLegal(t *testing.T) {
	durations := []time.Duration{0, time.Millisecond, 100 * time.Millisecond,
		time.Second, 10 * time.Second, 10 * time.Minute}
	for from := 0; from <= 255; from += 51 {
		for to := 0; to <= 255; to += 51 {
			for _, d := range durations {
				plan := PlanFade(from, to, d)
				if plan.Interval < MinInterval {
					t.Fatalf("PlanFade(%d,%d,%v): interval %d below %d", from, to, d, plan.Interval, MinInterval)
				}
				if plan.Step < MinStep || plan.Step > MaxStep {
					t.Fatalf("PlanFade(%d,%d,%v): step %d outside [%d,%d]", from, to, d, plan.Step, MinStep, MaxStep)
				}
			}
		}
	}
}

func TestPlanFade_EncodedFadePayload(t *testing.T) {
	// FADE at address 100 to 255 over 500ms: 00 64 23 FF 01 06.
	plan := PlanFade(0, 255, 500*time.Millisecond)
	p := Fade(100, 255, plan)
	frames := DecodeFrames(p.Marshal())
	payload := frames[0]
	want := []byte{0x00, 0x64, 0x23, 0xFF, 0x01, 0x06}
	for i, b := range want {
		if payload[i] != b {
			t.Fatalf("payload byte %d: expected 0x%02X, got 0x%02X (payload % X)", i, b, payload[i], payload)
		}
	}
}

func TestFadePlanDuration(t *testing.T) {
	plan := FadePlan{Interval: 1, Step: 1}
	if got := plan.Duration(255); got != 2550*time.Millisecond {
		t.Errorf("expected 2.55s, got %v", got)
	}
	plan = FadePlan{Interval: 10, Step: 5}
	if got := plan.Duration(50); got != time.Second {
		t.Errorf("expected 1s, got %v", got)
	}
}

// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Lumenarc

// Package animation runs the ambient patterns shown when no client session
// is active. The engine is a cooperative loop: it checks its running flag at
// every suspension point and exits without emitting further packets once
// cancelled. Packets already committed to the transport FIFO may still be
// sent; the session fade-down masks that tail visually.
package animation

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/lumenarc/maquette/internal/inventory"
	"github.com/lumenarc/maquette/pkg/glint"
)

// Queue is the packet sink. Satisfied by transport.Transport.
type Queue interface {
	Enqueue(ctx context.Context, frame []byte) error
}

// Engine runs at most one named sequence at a time.
type Engine struct {
	inv   inventory.Reader
	queue Queue
	log   *zap.Logger

	// breatheTick is the breathe sample period, overridable in tests.
	breatheTick time.Duration

	suppressed atomic.Bool
	running    atomic.Bool

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	current string
}

// New creates a stopped engine.
func New(inv inventory.Reader, queue Queue, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		inv:         inv,
		queue:       queue,
		log:         log,
		breatheTick: 50 * time.Millisecond,
	}
}

// Suppress blocks Start until Resume. The session controller suppresses the
// engine while a client session is active.
func (e *Engine) Suppress() { e.suppressed.Store(true) }

// Resume lifts the suppression.
func (e *Engine) Resume() { e.suppressed.Store(false) }

// Running reports whether a sequence is currently running.
func (e *Engine) Running() bool { return e.running.Load() }

// Current returns the id of the running sequence, or "".
func (e *Engine) Current() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running.Load() {
		return ""
	}
	return e.current
}

// Start launches a sequence. It is a no-op while suppressed or while another
// sequence is running; stop first to switch sequences.
func (e *Engine) Start(seq *Sequence) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.suppressed.Load() || e.running.Load() {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.done = make(chan struct{})
	e.current = seq.ID
	e.running.Store(true)
	e.log.Info("animation started", zap.String("sequence", seq.ID), zap.Stringer("kind", seq.Kind))
	go e.run(ctx, seq)
}

// Stop cancels the running sequence and waits for the loop to observe it.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running.Load() {
		e.mu.Unlock()
		return
	}
	e.running.Store(false)
	e.cancel()
	done := e.done
	e.mu.Unlock()
	<-done
	e.log.Info("animation stopped")
}

func (e *Engine) run(ctx context.Context, seq *Sequence) {
	defer func() {
		e.mu.Lock()
		e.running.Store(false)
		e.cancel()
		close(e.done)
		e.mu.Unlock()
	}()

	switch seq.Kind {
	case KindStatic:
		e.runStatic(ctx, seq)
	case KindLoop:
		e.runLoop(ctx, seq)
	case KindWave:
		e.runWave(ctx, seq)
	case KindChase:
		e.runChase(ctx, seq)
	case KindBreathe:
		e.runBreathe(ctx, seq)
	}
}

// runStatic emits every step once and holds until cancelled.
func (e *Engine) runStatic(ctx context.Context, seq *Sequence) {
	for i := range seq.Steps {
		if !e.applyStep(ctx, &seq.Steps[i]) {
			return
		}
	}
	<-ctx.Done()
}

// runLoop cycles through the steps indefinitely.
func (e *Engine) runLoop(ctx context.Context, seq *Sequence) {
	for {
		for i := range seq.Steps {
			if !e.applyStep(ctx, &seq.Steps[i]) {
				return
			}
			if !e.sleep(ctx, seq.Steps[i].Duration) {
				return
			}
		}
	}
}

// runWave fades floor after floor up to the sequence color, holds, fades
// back down in reverse, pauses, and loops if configured.
func (e *Engine) runWave(ctx context.Context, seq *Sequence) {
	floors, err := e.inv.Floors()
	if err != nil || len(floors) == 0 {
		return
	}
	if !seq.Up {
		reverseInts(floors)
	}

	for {
		for _, floor := range floors {
			if !e.fadeFloor(ctx, floor, seq.R, seq.G, seq.B, seq.Fade) {
				return
			}
			if !e.sleep(ctx, seq.FloorDelay) {
				return
			}
		}
		if !e.sleep(ctx, seq.Hold) {
			return
		}
		for i := len(floors) - 1; i >= 0; i-- {
			if !e.fadeFloor(ctx, floors[i], 0, 0, 0, seq.Fade) {
				return
			}
			if !e.sleep(ctx, seq.FloorDelay) {
				return
			}
		}
		if !e.sleep(ctx, seq.Pause) {
			return
		}
		if !seq.Loop {
			return
		}
	}
}

// runChase advances a head over the flat apartment list; brightness decays
// linearly behind the head over the tail length.
func (e *Engine) runChase(ctx context.Context, seq *Sequence) {
	apartments, err := e.inv.Apartments()
	if err != nil || len(apartments) == 0 {
		return
	}
	n := len(apartments)
	head := 0
	// Avoid re-sending unchanged zero levels every tick.
	lit := make([]bool, n)

	for {
		for i, apt := range apartments {
			distance := (head - i + n) % n
			var factor float64
			if distance < seq.Tail {
				factor = float64(seq.Tail-distance) / float64(seq.Tail)
			}
			if factor == 0 && !lit[i] {
				continue
			}
			lit[i] = factor > 0
			r := uint8(float64(seq.R) * factor)
			g := uint8(float64(seq.G) * factor)
			b := uint8(float64(seq.B) * factor)
			for _, addr := range apt.Addresses() {
				if !e.emit(ctx, glint.RGBLevel(addr, int(r), int(g), int(b))) {
					return
				}
			}
		}
		head = (head + 1) % n
		if !e.sleep(ctx, seq.Tick) {
			return
		}
	}
}

// runBreathe ramps a global intensity between min and max, half the breathe
// duration in each direction, sampled at a fixed tick.
func (e *Engine) runBreathe(ctx context.Context, seq *Sequence) {
	half := seq.Duration / 2
	ticks := int(half / e.breatheTick)
	if ticks < 1 {
		ticks = 1
	}
	span := seq.MaxLevel - seq.MinLevel

	for {
		for i := 0; i <= ticks; i++ {
			level := seq.MinLevel + span*i/ticks
			if !e.emit(ctx, glint.Level(glint.AddressBroadcast, level)) {
				return
			}
			if !e.sleep(ctx, e.breatheTick) {
				return
			}
		}
		for i := ticks; i >= 0; i-- {
			level := seq.MinLevel + span*i/ticks
			if !e.emit(ctx, glint.Level(glint.AddressBroadcast, level)) {
				return
			}
			if !e.sleep(ctx, e.breatheTick) {
				return
			}
		}
	}
}

// fadeFloor fades every fixture on a floor to the given color.
func (e *Engine) fadeFloor(ctx context.Context, floor int, r, g, b uint8, fade time.Duration) bool {
	apartments, err := e.inv.ApartmentsByFloor(floor)
	if err != nil {
		return e.running.Load()
	}
	for _, apt := range apartments {
		for _, addr := range apt.Addresses() {
			p := glint.RGBFade(addr,
				glint.Ramp{Level: int(r), Plan: glint.PlanFade(0, int(r), fade)},
				glint.Ramp{Level: int(g), Plan: glint.PlanFade(0, int(g), fade)},
				glint.Ramp{Level: int(b), Plan: glint.PlanFade(0, int(b), fade)},
			)
			if !e.emit(ctx, p) {
				return false
			}
		}
	}
	return true
}

// applyStep emits one static/loop step.
func (e *Engine) applyStep(ctx context.Context, step *Step) bool {
	r, g, b, ok := e.stepColor(step)
	if !ok {
		return e.running.Load()
	}

	if step.Broadcast {
		return e.emit(ctx, glint.RGBLevel(glint.AddressBroadcast, r, g, b))
	}
	if step.Apartment != "" {
		apt, err := e.inv.Apartment(step.Apartment)
		if err != nil {
			e.log.Warn("step apartment missing", zap.String("apartment", step.Apartment))
			return e.running.Load()
		}
		for _, addr := range apt.Addresses() {
			if !e.emit(ctx, glint.RGBLevel(addr, r, g, b)) {
				return false
			}
		}
		return true
	}
	if step.Group != "" {
		apartments, err := e.inv.ApartmentsByGroup(step.Group)
		if err != nil {
			e.log.Warn("step group missing", zap.String("group", step.Group))
			return e.running.Load()
		}
		for _, apt := range apartments {
			for _, addr := range apt.Addresses() {
				if !e.emit(ctx, glint.RGBLevel(addr, r, g, b)) {
					return false
				}
			}
		}
	}
	return true
}

func (e *Engine) stepColor(step *Step) (r, g, b int, ok bool) {
	var base [3]uint8
	if step.RGB != nil {
		base = *step.RGB
	} else {
		info, err := e.inv.StateInfo(step.State)
		if err != nil {
			e.log.Warn("step state unknown", zap.String("state", string(step.State)))
			return 0, 0, 0, false
		}
		base = [3]uint8{info.Color.R, info.Color.G, info.Color.B}
	}
	return int(base[0]) * step.Intensity / 255,
		int(base[1]) * step.Intensity / 255,
		int(base[2]) * step.Intensity / 255,
		true
}

// emit is a suspension point: it checks the running flag, then enqueues.
func (e *Engine) emit(ctx context.Context, p *glint.Packet) bool {
	if !e.running.Load() || ctx.Err() != nil {
		return false
	}
	if err := e.queue.Enqueue(ctx, p.Marshal()); err != nil {
		if ctx.Err() == nil {
			e.log.Warn("animation enqueue failed", zap.Error(err))
		}
		return false
	}
	return true
}

// sleep is a suspension point: it waits unless cancelled first.
func (e *Engine) sleep(ctx context.Context, d time.Duration) bool {
	if !e.running.Load() {
		return false
	}
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return e.running.Load()
	}
}

func reverseInts(s []int) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

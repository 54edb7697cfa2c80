// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Lumenarc

package animation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenarc/maquette/internal/config"
	"github.com/lumenarc/maquette/internal/inventory"
	"github.com/lumenarc/maquette/pkg/glint"
)

type captureQueue struct {
	mu      sync.Mutex
	packets []*glint.Packet
}

func (q *captureQueue) Enqueue(_ context.Context, frame []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, payload := range glint.DecodeFrames(frame) {
		p, err := glint.Parse(payload)
		if err != nil {
			return err
		}
		q.packets = append(q.packets, p)
	}
	return nil
}

func (q *captureQueue) all() []*glint.Packet {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]*glint.Packet(nil), q.packets...)
}

func (q *captureQueue) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.packets)
}

func towerInventory(t *testing.T) *inventory.MemoryStore {
	t.Helper()
	inv := inventory.NewMemoryStore()
	for floor := 1; floor <= 3; floor++ {
		for pos := 1; pos <= 2; pos++ {
			addr := glint.Address(floor*100 + pos)
			require.NoError(t, inv.PutApartment(&inventory.Apartment{
				ID:       apartmentID(floor, pos),
				Floor:    floor,
				Position: pos,
				Primary:  addr,
				Lights:   []glint.Address{addr},
			}))
		}
	}
	return inv
}

func apartmentID(floor, pos int) string {
	return string(rune('A'+pos-1)) + "-" + string(rune('0'+floor))
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal(msg)
}

func TestEngine_LoopEmitsStepsInOrder(t *testing.T) {
	q := &captureQueue{}
	e := New(towerInventory(t), q, nil)

	seq := &Sequence{
		ID:   "ping-pong",
		Kind: KindLoop,
		Steps: []Step{
			{Apartment: apartmentID(1, 1), RGB: &[3]uint8{255, 0, 0}, Intensity: 255, Duration: time.Millisecond},
			{Apartment: apartmentID(2, 1), RGB: &[3]uint8{0, 0, 255}, Intensity: 255, Duration: time.Millisecond},
		},
	}
	e.Start(seq)
	assert.True(t, e.Running())
	assert.Equal(t, "ping-pong", e.Current())

	waitFor(t, func() bool { return q.count() >= 4 }, "loop never wrapped")
	e.Stop()
	assert.False(t, e.Running())

	packets := q.all()
	assert.Equal(t, glint.Address(101), packets[0].Addr)
	assert.Equal(t, []byte{255, 0, 0}, packets[0].Args)
	assert.Equal(t, glint.Address(201), packets[1].Addr)
	assert.Equal(t, []byte{0, 0, 255}, packets[1].Args)
	// Wrapped back to step 0.
	assert.Equal(t, glint.Address(101), packets[2].Addr)
}

func TestEngine_CooperativeCancellation(t *testing.T) {
	q := &captureQueue{}
	e := New(towerInventory(t), q, nil)

	seq := &Sequence{
		ID:   "slow",
		Kind: KindLoop,
		Steps: []Step{
			{Apartment: apartmentID(1, 1), RGB: &[3]uint8{10, 10, 10}, Intensity: 255, Duration: time.Hour},
		},
	}
	e.Start(seq)
	waitFor(t, func() bool { return q.count() >= 1 }, "first step never emitted")

	stopped := make(chan struct{})
	go func() { e.Stop(); close(stopped) }()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop blocked on a sleeping loop")
	}

	n := q.count()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, q.count(), "no packets after cancellation")
}

func TestEngine_StartWhileSuppressedIsNoOp(t *testing.T) {
	q := &captureQueue{}
	e := New(towerInventory(t), q, nil)
	e.Suppress()

	e.Start(&Sequence{ID: "x", Kind: KindStatic, Steps: []Step{
		{Broadcast: true, RGB: &[3]uint8{1, 1, 1}, Intensity: 255},
	}})
	assert.False(t, e.Running())
	assert.Zero(t, q.count())

	e.Resume()
	e.Start(&Sequence{ID: "x", Kind: KindStatic, Steps: []Step{
		{Broadcast: true, RGB: &[3]uint8{1, 1, 1}, Intensity: 255},
	}})
	waitFor(t, func() bool { return q.count() == 1 }, "static step not emitted after resume")
	e.Stop()
}

func TestEngine_StartWhileRunningIsNoOp(t *testing.T) {
	q := &captureQueue{}
	e := New(towerInventory(t), q, nil)

	seq := &Sequence{ID: "first", Kind: KindStatic, Steps: []Step{
		{Broadcast: true, RGB: &[3]uint8{1, 1, 1}, Intensity: 255},
	}}
	e.Start(seq)
	e.Start(&Sequence{ID: "second", Kind: KindStatic, Steps: []Step{
		{Broadcast: true, RGB: &[3]uint8{2, 2, 2}, Intensity: 255},
	}})

	assert.Equal(t, "first", e.Current())
	e.Stop()
}

func TestEngine_WaveSingleCycle(t *testing.T) {
	q := &captureQueue{}
	e := New(towerInventory(t), q, nil)

	seq := &Sequence{
		ID: "wave", Kind: KindWave,
		Up:         true,
		Fade:       10 * time.Millisecond,
		FloorDelay: time.Millisecond,
		Hold:       time.Millisecond,
		Pause:      time.Millisecond,
		R:          0, G: 80, B: 255,
		Loop: false,
	}
	e.Start(seq)
	waitFor(t, func() bool { return !e.Running() }, "single-cycle wave never finished")

	packets := q.all()
	// 6 fixtures up + 6 down.
	require.Len(t, packets, 12)
	for _, p := range packets {
		assert.Equal(t, glint.OpRGBFade, p.Op)
	}
	// Ascending floors on the way up: floor 1 first.
	assert.Equal(t, glint.Address(101), packets[0].Addr)
	assert.Equal(t, glint.Address(102), packets[1].Addr)
	assert.Equal(t, glint.Address(201), packets[2].Addr)
	// Reverse on the way down: floor 3 first, fading to 0.
	down := packets[6]
	assert.Equal(t, glint.Address(301), down.Addr)
	assert.Equal(t, byte(0), down.Args[0])
}

func TestEngine_ChaseBrightnessDecay(t *testing.T) {
	q := &captureQueue{}
	e := New(towerInventory(t), q, nil)

	seq := &Sequence{
		ID: "chase", Kind: KindChase,
		Tick: time.Millisecond, Tail: 2,
		R: 200, G: 0, B: 0,
	}
	e.Start(seq)
	waitFor(t, func() bool { return q.count() >= 1 }, "chase never ticked")
	e.Stop()

	// First tick, head at 0: apartment 0 at full brightness (200); the last
	// apartment is one behind the head (the distance wraps) and gets 100; the
	// rest are dark and not emitted.
	packets := q.all()
	require.NotEmpty(t, packets)
	assert.Equal(t, glint.Address(101), packets[0].Addr)
	assert.Equal(t, []byte{200, 0, 0}, packets[0].Args)
}

func TestEngine_BreatheBroadcastsLevels(t *testing.T) {
	q := &captureQueue{}
	e := New(towerInventory(t), q, nil)
	e.breatheTick = time.Millisecond

	seq := &Sequence{
		ID: "breathe", Kind: KindBreathe,
		MinLevel: 10, MaxLevel: 200,
		Duration: 20 * time.Millisecond,
	}
	e.Start(seq)
	waitFor(t, func() bool { return q.count() >= 5 }, "breathe never ramped")
	e.Stop()

	packets := q.all()
	for _, p := range packets {
		assert.Equal(t, glint.OpLevel, p.Op)
		assert.True(t, p.Addr.IsBroadcast())
		level := int(p.Args[0])
		assert.GreaterOrEqual(t, level, 10)
		assert.LessOrEqual(t, level, 200)
	}
	assert.Equal(t, byte(10), packets[0].Args[0], "ramp starts at min level")
}

func TestFromConfig(t *testing.T) {
	seq, err := FromConfig(&config.SequenceConfig{
		ID: "night-wave", Kind: "wave", Direction: "down",
		FadeMs: 800, FloorDelayMs: 150, Loop: true,
		G: 80, B: 255,
	})
	require.NoError(t, err)
	assert.Equal(t, KindWave, seq.Kind)
	assert.False(t, seq.Up)
	assert.Equal(t, 800*time.Millisecond, seq.Fade)
	assert.True(t, seq.Loop)

	_, err = FromConfig(&config.SequenceConfig{ID: "x", Kind: "sparkle"})
	assert.Error(t, err)

	_, err = FromConfig(&config.SequenceConfig{
		ID: "x", Kind: "loop",
		Steps: []config.StepConfig{{Apartment: "A-1", State: "PENDING"}},
	})
	assert.Error(t, err)
}

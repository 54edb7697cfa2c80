// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Lumenarc

package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenarc/maquette/internal/animation"
	"github.com/lumenarc/maquette/internal/audit"
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

// twoFloorInventory models a tower slice with floors 9 and 10, two fixtures
// each.
func twoFloorInventory(t *testing.T) *inventory.MemoryStore {
	t.Helper()
	inv := inventory.NewMemoryStore()
	require.NoError(t, inv.PutApartment(&inventory.Apartment{
		ID: "A-09-01", Floor: 9, Position: 1, Primary: 901, Lights: []glint.Address{901},
	}))
	require.NoError(t, inv.PutApartment(&inventory.Apartment{
		ID: "A-09-02", Floor: 9, Position: 2, Primary: 902, Lights: []glint.Address{902},
	}))
	require.NoError(t, inv.PutApartment(&inventory.Apartment{
		ID: "A-10-01", Floor: 10, Position: 1, Primary: 1001, Lights: []glint.Address{1001},
	}))
	require.NoError(t, inv.PutApartment(&inventory.Apartment{
		ID: "A-10-02", Floor: 10, Position: 2, Primary: 1002, Lights: []glint.Address{1002},
	}))
	return inv
}

func newController(t *testing.T, cfg *config.Config) (*Controller, *captureQueue, *animation.Engine, *audit.MemoryRecorder) {
	t.Helper()
	inv := twoFloorInventory(t)
	q := &captureQueue{}
	engine := animation.New(inv, q, nil)
	recorder := audit.NewMemoryRecorder(16)
	sequences := map[string]*animation.Sequence{
		"ambient": {
			ID: "ambient", Kind: animation.KindStatic,
			Steps: []animation.Step{
				{Broadcast: true, RGB: &[3]uint8{5, 5, 5}, Intensity: 255},
			},
		},
	}
	c := New(inv, q, engine, cfg, sequences, recorder, nil)
	return c, q, engine, recorder
}

func fastConfig() *config.Config {
	cfg := config.Default()
	cfg.SimulationMode = true
	cfg.LoginFadeDelayMs = 1
	cfg.AmbientEnabled = true
	cfg.AmbientSequenceID = "ambient"
	return cfg
}

func TestLogin_FadesTopFloorFirst(t *testing.T) {
	c, q, _, _ := newController(t, fastConfig())

	require.NoError(t, c.Login(context.Background(), "agent-7"))
	assert.True(t, c.Active())
	assert.Equal(t, "agent-7", c.Agent())

	packets := q.all()
	require.Len(t, packets, 4)
	for _, p := range packets {
		assert.Equal(t, glint.OpFade, p.Op)
		assert.Equal(t, byte(0), p.Args[0])
	}
	// Floor 10 before floor 9.
	assert.Equal(t, glint.Address(1001), packets[0].Addr)
	assert.Equal(t, glint.Address(1002), packets[1].Addr)
	assert.Equal(t, glint.Address(901), packets[2].Addr)
	assert.Equal(t, glint.Address(902), packets[3].Addr)
}

func TestLogin_StopsRunningAnimation(t *testing.T) {
	c, q, engine, _ := newController(t, fastConfig())

	engine.Start(&animation.Sequence{
		ID: "spin", Kind: animation.KindLoop,
		Steps: []animation.Step{
			{Broadcast: true, RGB: &[3]uint8{1, 1, 1}, Intensity: 255, Duration: time.Millisecond},
		},
	})
	require.True(t, engine.Running())

	require.NoError(t, c.Login(context.Background(), "agent-7"))
	assert.False(t, engine.Running(), "session active implies engine stopped")

	// Engine start attempts while a session is active are no-ops.
	engine.Start(&animation.Sequence{ID: "other", Kind: animation.KindStatic,
		Steps: []animation.Step{{Broadcast: true, RGB: &[3]uint8{1, 1, 1}, Intensity: 255}}})
	assert.False(t, engine.Running())
	_ = q
}

func TestRepeatLogin_ReplacesAgentWithoutRefade(t *testing.T) {
	c, q, _, _ := newController(t, fastConfig())

	require.NoError(t, c.Login(context.Background(), "agent-7"))
	n := len(q.all())

	require.NoError(t, c.Login(context.Background(), "agent-8"))
	assert.Equal(t, "agent-8", c.Agent())
	assert.Len(t, q.all(), n, "no second fade-down")
}

func TestLogout_RestartsAmbient(t *testing.T) {
	c, _, engine, recorder := newController(t, fastConfig())
	ctx := context.Background()

	require.NoError(t, c.Login(ctx, "agent-7"))
	require.NoError(t, c.Logout(ctx, "agent-7"))

	assert.False(t, c.Active())
	assert.True(t, engine.Running(), "ambient restarts after logout")
	engine.Stop()

	events := recorder.Sessions()
	require.Len(t, events, 2)
	assert.Equal(t, "login", events[0].Event)
	assert.Equal(t, "logout", events[1].Event)
}

func TestLogout_AmbientDisabledStaysIdle(t *testing.T) {
	cfg := fastConfig()
	cfg.AmbientEnabled = false
	c, _, engine, _ := newController(t, cfg)
	ctx := context.Background()

	require.NoError(t, c.Login(ctx, "agent-7"))
	require.NoError(t, c.Logout(ctx, "agent-7"))

	assert.False(t, engine.Running())
}

func TestLogout_WhenIdleIsNoOp(t *testing.T) {
	c, q, _, recorder := newController(t, fastConfig())

	require.NoError(t, c.Logout(context.Background(), "agent-7"))
	assert.Empty(t, q.all())
	assert.Empty(t, recorder.Sessions())
}

// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Lumenarc

// Package session owns the idle/active state machine toggled by client
// login and logout. While a session is active the ambient animation is
// suppressed; the controller is the only component that starts or stops the
// animation engine during normal operation.
package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lumenarc/maquette/internal/animation"
	"github.com/lumenarc/maquette/internal/audit"
	"github.com/lumenarc/maquette/internal/config"
	"github.com/lumenarc/maquette/internal/inventory"
	"github.com/lumenarc/maquette/pkg/glint"
)

// Queue is the packet sink. Satisfied by transport.Transport.
type Queue interface {
	Enqueue(ctx context.Context, frame []byte) error
}

// Controller is the two-state session machine.
type Controller struct {
	inv       inventory.Reader
	queue     Queue
	engine    *animation.Engine
	cfg       *config.Config
	sequences map[string]*animation.Sequence
	recorder  audit.Recorder
	log       *zap.Logger

	mu     sync.Mutex
	active bool
	agent  string
}

// New creates an idle controller. sequences is the named sequence library
// used to restart ambient on logout.
func New(inv inventory.Reader, queue Queue, engine *animation.Engine,
	cfg *config.Config, sequences map[string]*animation.Sequence,
	recorder audit.Recorder, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{
		inv:       inv,
		queue:     queue,
		engine:    engine,
		cfg:       cfg,
		sequences: sequences,
		recorder:  recorder,
		log:       log,
	}
}

// Active reports whether a client session is active.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Agent returns the opaque identifier of the controlling agent, or "".
func (c *Controller) Agent() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.agent
}

// Login transitions idle to active: the ambient animation is suppressed and
// stopped, then every fixture fades to dark, highest populated floor first.
// Login returns once the fade-down has been fully committed to the wire.
//
// A login while already active just records the new agent; the installation
// is already dark and under client control.
func (c *Controller) Login(ctx context.Context, agent string) error {
	c.mu.Lock()
	if c.active {
		c.agent = agent
		c.mu.Unlock()
		c.log.Info("session agent replaced", zap.String("agent", agent))
		return nil
	}
	c.active = true
	c.agent = agent
	c.mu.Unlock()

	c.engine.Suppress()
	c.engine.Stop()

	if err := c.fadeDown(ctx); err != nil {
		// The session is active regardless; the client takes over whatever
		// visual state remains.
		c.log.Warn("login fade-down incomplete", zap.Error(err))
		c.recordSession(ctx, agent, "login")
		return err
	}
	c.recordSession(ctx, agent, "login")
	c.log.Info("session active", zap.String("agent", agent))
	return nil
}

// Logout transitions active to idle and, when ambient is enabled, restarts
// the configured ambient sequence.
func (c *Controller) Logout(ctx context.Context, agent string) error {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return nil
	}
	c.active = false
	c.agent = ""
	c.mu.Unlock()

	c.recordSession(ctx, agent, "logout")
	c.engine.Resume()
	if c.cfg.AmbientEnabled {
		if seq, ok := c.sequences[c.cfg.AmbientSequenceID]; ok {
			c.engine.Start(seq)
		} else {
			c.log.Warn("ambient sequence missing",
				zap.String("sequence", c.cfg.AmbientSequenceID))
		}
	}
	c.log.Info("session idle", zap.String("agent", agent))
	return nil
}

// fadeDown fades every fixture to 0, floor by floor from the top, with the
// configured delay between floors.
func (c *Controller) fadeDown(ctx context.Context) error {
	floors, err := c.inv.Floors()
	if err != nil {
		return err
	}
	fade := time.Duration(c.cfg.DefaultFadeTimeMs) * time.Millisecond
	delay := time.Duration(c.cfg.LoginFadeDelayMs) * time.Millisecond
	plan := glint.PlanFade(255, 0, fade)

	for i := len(floors) - 1; i >= 0; i-- {
		apartments, err := c.inv.ApartmentsByFloor(floors[i])
		if err != nil {
			return err
		}
		for _, apt := range apartments {
			for _, addr := range apt.Addresses() {
				if err := c.queue.Enqueue(ctx, glint.Fade(addr, 0, plan).Marshal()); err != nil {
					return err
				}
			}
		}
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return nil
}

func (c *Controller) recordSession(ctx context.Context, agent, event string) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.RecordSession(ctx, audit.NewSessionEvent(agent, event)); err != nil {
		c.log.Warn("session log write failed", zap.Error(err))
	}
}

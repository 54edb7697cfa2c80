// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Lumenarc

// Package resolver translates high-level lighting intents into ordered wire
// packets on the transmit queue.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lumenarc/maquette/internal/config"
	"github.com/lumenarc/maquette/internal/inventory"
	"github.com/lumenarc/maquette/internal/statestore"
	"github.com/lumenarc/maquette/pkg/glint"
)

// Resolver error kinds.
var (
	ErrNoAddresses = errors.New("resolver: entity has no fixture addresses")
	ErrBadRange    = errors.New("resolver: parameter out of range")
)

// Queue is the packet sink. Satisfied by transport.Transport.
type Queue interface {
	Enqueue(ctx context.Context, frame []byte) error
}

// RGB is an explicit color override.
type RGB struct {
	R, G, B uint8
}

// Options carries the optional per-request overrides. Nil fields take the
// per-state or configured defaults.
type Options struct {
	Intensity *int
	FadeMs    *int
	RGB       *RGB
}

// BatchItem is one entry of a light_batch request.
type BatchItem struct {
	ID      string
	State   inventory.State
	Options Options
}

// BatchResult reports one batch item's outcome.
type BatchResult struct {
	ID  string
	Err error
}

// Resolver joins the inventory tables with state color rules and emits
// packets. Safe for concurrent use.
type Resolver struct {
	inv    inventory.Reader
	queue  Queue
	states statestore.Store
	cfg    *config.Config
	log    *zap.Logger

	// Last commanded channel levels, kept only when fade_from_last_level is
	// enabled. Otherwise fades up plan from an assumed level of 0, and fades
	// to dark from an assumed level of 255.
	mu   sync.Mutex
	last map[glint.Address]RGB
}

// New creates a resolver.
func New(inv inventory.Reader, queue Queue, states statestore.Store, cfg *config.Config, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{
		inv:    inv,
		queue:  queue,
		states: states,
		cfg:    cfg,
		log:    log,
		last:   make(map[glint.Address]RGB),
	}
}

// LightApartment lights every fixture of one apartment according to the
// state and overrides, then persists the apartment's state.
func (r *Resolver) LightApartment(ctx context.Context, id string, st inventory.State, o Options) error {
	if err := validate(st, o); err != nil {
		return err
	}
	apt, err := r.inv.Apartment(id)
	if err != nil {
		return err
	}
	addrs := apt.Addresses()
	if len(addrs) == 0 {
		return fmt.Errorf("%w: apartment %s", ErrNoAddresses, id)
	}
	if err := r.lightAddresses(ctx, addrs, st, o); err != nil {
		return err
	}
	r.persistState(ctx, id, st)
	return nil
}

// LightGroup expands a floor group to its apartments and lights each one.
// Packets stay per-fixture so addressing remains authoritative.
func (r *Resolver) LightGroup(ctx context.Context, groupID string, st inventory.State, o Options) error {
	if err := validate(st, o); err != nil {
		return err
	}
	apartments, err := r.inv.ApartmentsByGroup(groupID)
	if err != nil {
		return err
	}
	for _, apt := range apartments {
		addrs := apt.Addresses()
		if len(addrs) == 0 {
			r.log.Warn("skipping apartment without fixtures",
				zap.String("apartment", apt.ID), zap.String("group", groupID))
			continue
		}
		if err := r.lightAddresses(ctx, addrs, st, o); err != nil {
			return err
		}
		r.persistState(ctx, apt.ID, st)
	}
	return nil
}

// LightFixture lights a single fixture address directly.
func (r *Resolver) LightFixture(ctx context.Context, addr glint.Address, st inventory.State, o Options) error {
	if err := validate(st, o); err != nil {
		return err
	}
	return r.lightAddresses(ctx, []glint.Address{addr}, st, o)
}

// Batch runs each item independently; one item's failure does not abort its
// siblings.
func (r *Resolver) Batch(ctx context.Context, items []BatchItem) []BatchResult {
	out := make([]BatchResult, 0, len(items))
	for _, item := range items {
		err := r.LightApartment(ctx, item.ID, item.State, item.Options)
		if err != nil {
			r.log.Warn("batch item failed",
				zap.String("apartment", item.ID), zap.Error(err))
		}
		out = append(out, BatchResult{ID: item.ID, Err: err})
	}
	return out
}

// OffApartment fades every fixture of the apartment to 0.
func (r *Resolver) OffApartment(ctx context.Context, id string) error {
	apt, err := r.inv.Apartment(id)
	if err != nil {
		return err
	}
	addrs := apt.Addresses()
	if len(addrs) == 0 {
		return fmt.Errorf("%w: apartment %s", ErrNoAddresses, id)
	}
	fade := r.defaultFade()
	for _, addr := range addrs {
		plan := glint.PlanFade(r.fadeSource(addr), 0, fade)
		if err := r.queue.Enqueue(ctx, glint.Fade(addr, 0, plan).Marshal()); err != nil {
			return err
		}
		r.remember(addr, RGB{})
	}
	r.persistState(ctx, id, inventory.StateOff)
	return nil
}

// OffGroup fades every apartment of the group to 0.
func (r *Resolver) OffGroup(ctx context.Context, groupID string) error {
	apartments, err := r.inv.ApartmentsByGroup(groupID)
	if err != nil {
		return err
	}
	for _, apt := range apartments {
		if len(apt.Addresses()) == 0 {
			continue
		}
		if err := r.OffApartment(ctx, apt.ID); err != nil {
			return err
		}
	}
	return nil
}

// OffFixture fades one fixture to 0.
func (r *Resolver) OffFixture(ctx context.Context, addr glint.Address) error {
	plan := glint.PlanFade(r.fadeSource(addr), 0, r.defaultFade())
	if err := r.queue.Enqueue(ctx, glint.Fade(addr, 0, plan).Marshal()); err != nil {
		return err
	}
	r.remember(addr, RGB{})
	return nil
}

// OffAll emits a single broadcast OFF. Device-side fan-out order across
// fixtures is not defined; queue order against other packets is.
func (r *Resolver) OffAll(ctx context.Context) error {
	r.forgetAll()
	return r.queue.Enqueue(ctx, glint.Off(glint.AddressBroadcast).Marshal())
}

// OnAll emits a single broadcast LEVEL at the requested intensity.
func (r *Resolver) OnAll(ctx context.Context, intensity *int) error {
	level := r.cfg.DefaultIntensity
	if intensity != nil {
		if *intensity < 0 || *intensity > 255 {
			return fmt.Errorf("%w: intensity %d", ErrBadRange, *intensity)
		}
		level = *intensity
	}
	r.forgetAll()
	return r.queue.Enqueue(ctx, glint.Level(glint.AddressBroadcast, level).Marshal())
}

// lightAddresses resolves the color and emits one packet per fixture.
func (r *Resolver) lightAddresses(ctx context.Context, addrs []glint.Address, st inventory.State, o Options) error {
	info, err := r.inv.StateInfo(st)
	if err != nil {
		return err
	}

	base := RGB{info.Color.R, info.Color.G, info.Color.B}
	if o.RGB != nil {
		base = *o.RGB
	}
	intensity := int(info.Color.Intensity)
	if o.Intensity != nil {
		intensity = *o.Intensity
	}
	target := RGB{
		R: scale(base.R, intensity),
		G: scale(base.G, intensity),
		B: scale(base.B, intensity),
	}

	fade := r.defaultFade()
	if o.FadeMs != nil {
		fade = time.Duration(*o.FadeMs) * time.Millisecond
	}

	for _, addr := range addrs {
		var p *glint.Packet
		if fade > 0 {
			from := r.fadeSourceRGB(addr)
			p = glint.RGBFade(addr,
				glint.Ramp{Level: int(target.R), Plan: glint.PlanFade(int(from.R), int(target.R), fade)},
				glint.Ramp{Level: int(target.G), Plan: glint.PlanFade(int(from.G), int(target.G), fade)},
				glint.Ramp{Level: int(target.B), Plan: glint.PlanFade(int(from.B), int(target.B), fade)},
			)
		} else {
			p = glint.RGBLevel(addr, int(target.R), int(target.G), int(target.B))
		}
		if err := r.queue.Enqueue(ctx, p.Marshal()); err != nil {
			return err
		}
		r.remember(addr, target)
	}
	return nil
}

// persistState records the apartment's last commanded state. Storage
// problems must not fail a lighting command that already hit the wire.
func (r *Resolver) persistState(ctx context.Context, id string, st inventory.State) {
	if r.states == nil {
		return
	}
	if err := r.states.Set(ctx, id, st); err != nil {
		r.log.Warn("state persist failed", zap.String("apartment", id), zap.Error(err))
	}
}

func (r *Resolver) defaultFade() time.Duration {
	return time.Duration(r.cfg.DefaultFadeTimeMs) * time.Millisecond
}

// fadeSource returns the assumed current overall level for planning a fade
// on this address.
func (r *Resolver) fadeSource(addr glint.Address) int {
	rgb := r.fadeSourceRGB(addr)
	m := rgb.R
	if rgb.G > m {
		m = rgb.G
	}
	if rgb.B > m {
		m = rgb.B
	}
	if m == 0 {
		// Planning a fade to 0 from an unknown level assumes full output, so
		// the ramp duration is never degenerate.
		return 255
	}
	return int(m)
}

// fadeSourceRGB returns the assumed current channel levels. Without the
// last-level cache the documented behaviour is to plan from 0.
func (r *Resolver) fadeSourceRGB(addr glint.Address) RGB {
	if !r.cfg.FadeFromLastLevel {
		return RGB{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last[addr]
}

func (r *Resolver) remember(addr glint.Address, rgb RGB) {
	if !r.cfg.FadeFromLastLevel {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last[addr] = rgb
}

func (r *Resolver) forgetAll() {
	if !r.cfg.FadeFromLastLevel {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = make(map[glint.Address]RGB)
}

func validate(st inventory.State, o Options) error {
	if !st.Valid() {
		return inventory.ErrUnknownState
	}
	if o.Intensity != nil && (*o.Intensity < 0 || *o.Intensity > 255) {
		return fmt.Errorf("%w: intensity %d", ErrBadRange, *o.Intensity)
	}
	if o.FadeMs != nil && *o.FadeMs < 0 {
		return fmt.Errorf("%w: fade_ms %d", ErrBadRange, *o.FadeMs)
	}
	return nil
}

func scale(ch uint8, intensity int) uint8 {
	return uint8(int(ch) * intensity / 255)
}

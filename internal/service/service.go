// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Lumenarc

// Package service is the facade external collaborators (the HTTP surface,
// the CLI) consume: the request operations, error mapping and status
// reporting.
package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/lumenarc/maquette/internal/animation"
	"github.com/lumenarc/maquette/internal/audit"
	"github.com/lumenarc/maquette/internal/events"
	"github.com/lumenarc/maquette/internal/inventory"
	"github.com/lumenarc/maquette/internal/resolver"
	"github.com/lumenarc/maquette/internal/session"
	"github.com/lumenarc/maquette/internal/transport"
	"github.com/lumenarc/maquette/pkg/glint"
)

// Kind selects the entity type of a lighting request.
type Kind string

// Entity kinds
const (
	KindApartment  Kind = "apartment"
	KindFloorGroup Kind = "floor_group"
	KindFixture    Kind = "fixture"
)

// ErrBadKind is returned for entity kinds outside the closed set.
var ErrBadKind = errors.New("service: unknown entity kind")

// BatchItem is one entry of a light_batch request.
type BatchItem struct {
	ID        string
	State     string
	Intensity *int
	FadeMs    *int
	RGB       *resolver.RGB
}

// BatchResult reports one batch item's outcome.
type BatchResult struct {
	ID  string
	Err error
}

// Status is the query_status payload.
type Status struct {
	Transport     transport.Status
	SessionActive bool
	SessionAgent  string
	Animation     string
}

// Service wires the core components behind the external operations.
type Service struct {
	inv      inventory.Reader
	res      *resolver.Resolver
	sessions *session.Controller
	engine   *animation.Engine
	tx       *transport.Transport
	recorder audit.Recorder
	events   *events.Publisher
	log      *zap.Logger
}

// New assembles the facade.
func New(inv inventory.Reader, res *resolver.Resolver, sessions *session.Controller,
	engine *animation.Engine, tx *transport.Transport, recorder audit.Recorder,
	publisher *events.Publisher, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		inv:      inv,
		res:      res,
		sessions: sessions,
		engine:   engine,
		tx:       tx,
		recorder: recorder,
		events:   publisher,
		log:      log,
	}
}

// LightEntity lights one entity to the given state with optional overrides
// and persists the resulting state.
func (s *Service) LightEntity(ctx context.Context, kind Kind, id, state string, o resolver.Options) error {
	entry := audit.NewCommand("api", "light_entity", fmt.Sprintf("%s/%s", kind, id))
	err := s.lightEntity(ctx, kind, id, state, o)
	s.record(ctx, entry, err)
	return err
}

func (s *Service) lightEntity(ctx context.Context, kind Kind, id, state string, o resolver.Options) error {
	st, err := inventory.ParseState(state)
	if err != nil {
		return err
	}
	switch kind {
	case KindApartment:
		if err := s.res.LightApartment(ctx, id, st, o); err != nil {
			return err
		}
		s.events.StateChanged(id, st)
		return nil
	case KindFloorGroup:
		return s.res.LightGroup(ctx, id, st, o)
	case KindFixture:
		addr, err := parseAddress(id)
		if err != nil {
			return err
		}
		return s.res.LightFixture(ctx, addr, st, o)
	}
	return fmt.Errorf("%w: %q", ErrBadKind, kind)
}

// LightBatch applies the items independently; one failure does not abort
// the siblings.
func (s *Service) LightBatch(ctx context.Context, items []BatchItem) []BatchResult {
	out := make([]BatchResult, 0, len(items))
	for _, item := range items {
		err := s.LightEntity(ctx, KindApartment, item.ID, item.State, resolver.Options{
			Intensity: item.Intensity,
			FadeMs:    item.FadeMs,
			RGB:       item.RGB,
		})
		out = append(out, BatchResult{ID: item.ID, Err: err})
	}
	return out
}

// OffEntity fades every fixture of the entity to dark.
func (s *Service) OffEntity(ctx context.Context, kind Kind, id string) error {
	entry := audit.NewCommand("api", "off_entity", fmt.Sprintf("%s/%s", kind, id))
	err := s.offEntity(ctx, kind, id)
	s.record(ctx, entry, err)
	return err
}

func (s *Service) offEntity(ctx context.Context, kind Kind, id string) error {
	switch kind {
	case KindApartment:
		if err := s.res.OffApartment(ctx, id); err != nil {
			return err
		}
		s.events.StateChanged(id, inventory.StateOff)
		return nil
	case KindFloorGroup:
		return s.res.OffGroup(ctx, id)
	case KindFixture:
		addr, err := parseAddress(id)
		if err != nil {
			return err
		}
		return s.res.OffFixture(ctx, addr)
	}
	return fmt.Errorf("%w: %q", ErrBadKind, kind)
}

// OffAll darkens the whole installation with a single broadcast.
func (s *Service) OffAll(ctx context.Context) error {
	entry := audit.NewCommand("api", "off_all", "broadcast")
	err := s.res.OffAll(ctx)
	s.record(ctx, entry, err)
	return err
}

// OnAll lights the whole installation with a single broadcast at the
// requested intensity.
func (s *Service) OnAll(ctx context.Context, intensity *int) error {
	entry := audit.NewCommand("api", "on_all", "broadcast")
	err := s.res.OnAll(ctx, intensity)
	s.record(ctx, entry, err)
	return err
}

// Login activates a client session.
func (s *Service) Login(ctx context.Context, agent string) error {
	return s.sessions.Login(ctx, agent)
}

// Logout releases the session and restarts ambient when configured.
func (s *Service) Logout(ctx context.Context, agent string) error {
	return s.sessions.Logout(ctx, agent)
}

// SendRawFrame enqueues already-encoded wire bytes, for diagnostics.
func (s *Service) SendRawFrame(ctx context.Context, frame []byte) error {
	entry := audit.NewCommand("cli", "send_raw_frame", fmt.Sprintf("%d bytes", len(frame)))
	err := s.tx.Enqueue(ctx, frame)
	s.record(ctx, entry, err)
	return err
}

// Status reports transport state, queue depth and counters.
func (s *Service) Status() Status {
	return Status{
		Transport:     s.tx.Status(),
		SessionActive: s.sessions.Active(),
		SessionAgent:  s.sessions.Agent(),
		Animation:     s.engine.Current(),
	}
}

func (s *Service) record(ctx context.Context, entry audit.Command, err error) {
	entry.Duration = time.Since(entry.Time)
	entry.Success = err == nil
	if err != nil {
		entry.Error = err.Error()
	}
	if s.recorder == nil {
		return
	}
	if rerr := s.recorder.RecordCommand(ctx, entry); rerr != nil {
		s.log.Warn("command log write failed", zap.Error(rerr))
	}
}

func parseAddress(id string) (glint.Address, error) {
	n, err := strconv.ParseUint(id, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("%w: fixture address %q", inventory.ErrNotFound, id)
	}
	return glint.Address(n), nil
}

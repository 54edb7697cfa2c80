// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Lumenarc

// Package audit records what the middleware did: a rolling command log, a
// session event log and a binary log of every emitted frame.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Command is one entry of the rolling command log.
type Command struct {
	ID       string
	Time     time.Time
	Source   string // api, session, animation, cli
	Command  string
	Target   string
	Success  bool
	Error    string
	Duration time.Duration
}

// SessionEvent is one login or logout.
type SessionEvent struct {
	ID    string
	Time  time.Time
	Agent string
	Event string // login or logout
}

// Recorder persists command and session entries.
type Recorder interface {
	RecordCommand(ctx context.Context, c Command) error
	RecordSession(ctx context.Context, e SessionEvent) error
}

// NewCommand stamps a command entry with an ID and timestamp.
func NewCommand(source, command, target string) Command {
	return Command{
		ID:     uuid.NewString(),
		Time:   time.Now(),
		Source: source, Command: command, Target: target,
	}
}

// NewSessionEvent stamps a session entry.
func NewSessionEvent(agent, event string) SessionEvent {
	return SessionEvent{
		ID:    uuid.NewString(),
		Time:  time.Now(),
		Agent: agent, Event: event,
	}
}

// MemoryRecorder keeps the most recent entries in a ring. It is used when no
// database is configured, and in tests.
type MemoryRecorder struct {
	mu       sync.Mutex
	cap      int
	commands []Command
	sessions []SessionEvent
}

// NewMemoryRecorder creates a recorder holding up to capacity entries per
// log.
func NewMemoryRecorder(capacity int) *MemoryRecorder {
	if capacity <= 0 {
		capacity = 1024
	}
	return &MemoryRecorder{cap: capacity}
}

func (r *MemoryRecorder) RecordCommand(_ context.Context, c Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, c)
	if len(r.commands) > r.cap {
		r.commands = r.commands[len(r.commands)-r.cap:]
	}
	return nil
}

func (r *MemoryRecorder) RecordSession(_ context.Context, e SessionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = append(r.sessions, e)
	if len(r.sessions) > r.cap {
		r.sessions = r.sessions[len(r.sessions)-r.cap:]
	}
	return nil
}

// Commands returns a copy of the retained command log, oldest first.
func (r *MemoryRecorder) Commands() []Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Command(nil), r.commands...)
}

// Sessions returns a copy of the retained session log, oldest first.
func (r *MemoryRecorder) Sessions() []SessionEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]SessionEvent(nil), r.sessions...)
}

// PostgresRecorder writes entries to the command_log and session_log tables.
type PostgresRecorder struct {
	db *sql.DB
}

// NewPostgresRecorder wraps an open database handle.
func NewPostgresRecorder(db *sql.DB) *PostgresRecorder {
	return &PostgresRecorder{db: db}
}

func (r *PostgresRecorder) RecordCommand(ctx context.Context, c Command) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO command_log (id, ts, source, command, target, success, error, duration_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, c.Time, c.Source, c.Command, c.Target, c.Success,
		nullString(c.Error), c.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("record command: %w", err)
	}
	return nil
}

func (r *PostgresRecorder) RecordSession(ctx context.Context, e SessionEvent) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO session_log (id, ts, agent, event) VALUES ($1, $2, $3, $4)`,
		e.ID, e.Time, e.Agent, e.Event)
	if err != nil {
		return fmt.Errorf("record session: %w", err)
	}
	return nil
}

// Prune deletes log entries older than the retention window.
func (r *PostgresRecorder) Prune(ctx context.Context, retentionDays int) error {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	if _, err := r.db.ExecContext(ctx,
		"DELETE FROM command_log WHERE ts < $1", cutoff); err != nil {
		return fmt.Errorf("prune command log: %w", err)
	}
	if _, err := r.db.ExecContext(ctx,
		"DELETE FROM session_log WHERE ts < $1", cutoff); err != nil {
		return fmt.Errorf("prune session log: %w", err)
	}
	return nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Lumenarc

// Package transport owns the serial endpoint. Every producer funnels wire
// packets through a single bounded FIFO drained by one writer goroutine, so
// packets never interleave and complete in enqueue order.
package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ErrClosed is returned when a packet is enqueued on a transport that is
// shutting down or has abandoned reconnecting.
var ErrClosed = errors.New("transport: closed")

// ErrIo wraps an underlying write or open failure surfaced to a caller.
var ErrIo = errors.New("transport: io failure")

// State is the connection lifecycle state.
type State int32

// Connection states
const (
	StateClosed State = iota
	StateOpening
	StateOpen
	StateClosing
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpening:
		return "opening"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateReconnecting:
		return "reconnecting"
	}
	return "unknown"
}

// Observer receives a copy of every frame emitted on the wire.
type Observer interface {
	FrameEmitted(frame []byte, simulated bool)
}

// Status is a point-in-time snapshot for query_status.
type Status struct {
	State      State
	QueueDepth int
	FramesSent uint64
	BytesSent  uint64
	Failures   uint64
	Reconnects uint64
	Simulated  bool
}

// Options tunes a Transport. Zero values take the documented defaults.
type Options struct {
	// Gap is the pause between successive packets (default 10ms).
	Gap time.Duration
	// QueueSize bounds the FIFO (default 256 jobs).
	QueueSize int
	// ReconnectBase is the first reconnect delay (default 2s); each further
	// attempt doubles it.
	ReconnectBase time.Duration
	// ReconnectAttempts bounds one reconnect episode (default 10).
	ReconnectAttempts int
	// Simulated marks emitted frames as simulated for observers.
	Simulated bool
	Logger    *zap.Logger
}

type job struct {
	frame []byte
	done  chan error
}

// Transport is the single logical writer for the bus.
type Transport struct {
	dial      DialFunc
	gap       time.Duration
	base      time.Duration
	attempts  int
	simulated bool
	log       *zap.Logger

	jobs chan *job
	quit chan struct{}
	done chan struct{}

	mu        sync.Mutex
	observers []Observer
	ep        Endpoint

	state      atomic.Int32
	framesSent atomic.Uint64
	bytesSent  atomic.Uint64
	failures   atomic.Uint64
	reconnects atomic.Uint64
}

// New creates a transport over the given dialer. Call Start before enqueuing.
func New(dial DialFunc, opts Options) *Transport {
	if opts.Gap == 0 {
		opts.Gap = 10 * time.Millisecond
	}
	if opts.QueueSize == 0 {
		opts.QueueSize = 256
	}
	if opts.ReconnectBase == 0 {
		opts.ReconnectBase = 2 * time.Second
	}
	if opts.ReconnectAttempts == 0 {
		opts.ReconnectAttempts = 10
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Transport{
		dial:      dial,
		gap:       opts.Gap,
		base:      opts.ReconnectBase,
		attempts:  opts.ReconnectAttempts,
		simulated: opts.Simulated,
		log:       opts.Logger,
		jobs:      make(chan *job, opts.QueueSize),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// RegisterObserver adds a frame observer. Observers are invoked from the
// writer goroutine and must not block.
func (t *Transport) RegisterObserver(o Observer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observers = append(t.observers, o)
}

// Start opens the endpoint and launches the writer. An initial open failure
// is fatal; the reconnect schedule only covers a connection lost while open.
func (t *Transport) Start() error {
	t.state.Store(int32(StateOpening))
	ep, err := t.dial()
	if err != nil {
		t.state.Store(int32(StateClosed))
		return err
	}
	t.mu.Lock()
	t.ep = ep
	t.mu.Unlock()
	t.state.Store(int32(StateOpen))
	t.log.Info("transport open", zap.Bool("simulated", t.simulated))
	go t.run()
	return nil
}

// Enqueue commits a wire packet to the FIFO and blocks until the packet has
// been flushed and the inter-packet gap has elapsed, or the context is
// cancelled. A context cancellation does not withdraw a committed packet.
func (t *Transport) Enqueue(ctx context.Context, frame []byte) error {
	j := &job{frame: frame, done: make(chan error, 1)}
	select {
	case <-t.quit:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	case t.jobs <- j:
	}
	select {
	case err := <-j.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-t.done:
		// Writer exited between commit and service.
		select {
		case err := <-j.done:
			return err
		default:
			return ErrClosed
		}
	}
}

// State returns the current connection state.
func (t *Transport) State() State {
	return State(t.state.Load())
}

// Status returns a snapshot of the transport counters.
func (t *Transport) Status() Status {
	return Status{
		State:      t.State(),
		QueueDepth: len(t.jobs),
		FramesSent: t.framesSent.Load(),
		BytesSent:  t.bytesSent.Load(),
		Failures:   t.failures.Load(),
		Reconnects: t.reconnects.Load(),
		Simulated:  t.simulated,
	}
}

// Close shuts the transport down. Queued jobs fail with ErrClosed.
func (t *Transport) Close() error {
	t.state.Store(int32(StateClosing))
	close(t.quit)
	<-t.done
	t.mu.Lock()
	ep := t.ep
	t.ep = nil
	t.mu.Unlock()
	t.state.Store(int32(StateClosed))
	if ep != nil {
		return ep.Close()
	}
	return nil
}

// run is the writer loop: one job at a time, drain after write, gap between
// packets.
func (t *Transport) run() {
	defer close(t.done)
	for {
		select {
		case <-t.quit:
			t.failPending()
			return
		case j := <-t.jobs:
			err := t.write(j.frame)
			if err != nil {
				t.failures.Add(1)
				t.log.Warn("write failed", zap.Error(err))
				if !t.reconnect() {
					j.done <- fmt.Errorf("%w: %v", ErrIo, err)
					t.failPending()
					return
				}
				// One retry on the fresh connection; a second failure is the
				// caller's to see.
				if err = t.write(j.frame); err != nil {
					t.failures.Add(1)
					err = fmt.Errorf("%w: %v", ErrIo, err)
				}
			}
			if err == nil {
				t.framesSent.Add(1)
				t.bytesSent.Add(uint64(len(j.frame)))
				t.notify(j.frame)
			}
			t.pause(t.gap)
			j.done <- err
		}
	}
}

func (t *Transport) write(frame []byte) error {
	t.mu.Lock()
	ep := t.ep
	t.mu.Unlock()
	if ep == nil {
		return ErrClosed
	}
	if _, err := ep.Write(frame); err != nil {
		return err
	}
	return ep.Drain()
}

// reconnect runs the bounded exponential reopen schedule. It reports whether
// the transport reached open again; on false the transport is dead.
func (t *Transport) reconnect() bool {
	t.state.Store(int32(StateReconnecting))
	t.mu.Lock()
	if t.ep != nil {
		t.ep.Close()
		t.ep = nil
	}
	t.mu.Unlock()

	delay := t.base
	for attempt := 1; attempt <= t.attempts; attempt++ {
		t.log.Info("reconnecting",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay))
		if !t.pause(delay) {
			return false
		}
		ep, err := t.dial()
		if err == nil {
			t.mu.Lock()
			t.ep = ep
			t.mu.Unlock()
			t.state.Store(int32(StateOpen))
			t.reconnects.Add(1)
			t.log.Info("reconnected", zap.Int("attempts", attempt))
			return true
		}
		t.log.Warn("reconnect attempt failed", zap.Int("attempt", attempt), zap.Error(err))
		delay *= 2
	}
	t.log.Error("reconnect abandoned", zap.Int("attempts", t.attempts))
	t.state.Store(int32(StateClosed))
	return false
}

// pause sleeps unless the transport is shutting down. Reports false on
// shutdown.
func (t *Transport) pause(d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-t.quit:
		return false
	case <-timer.C:
		return true
	}
}

func (t *Transport) notify(frame []byte) {
	t.mu.Lock()
	observers := make([]Observer, len(t.observers))
	copy(observers, t.observers)
	t.mu.Unlock()
	for _, o := range observers {
		cp := make([]byte, len(frame))
		copy(cp, frame)
		o.FrameEmitted(cp, t.simulated)
	}
}

// failPending drains the FIFO, failing every queued job.
func (t *Transport) failPending() {
	for {
		select {
		case j := <-t.jobs:
			j.done <- ErrClosed
		default:
			return
		}
	}
}

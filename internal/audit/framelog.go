// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Lumenarc

package audit

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"go.uber.org/zap"
)

// FrameRecord is one emitted wire packet as stored in the frame log. Integer
// keys keep the record compact on disk.
type FrameRecord struct {
	Time      time.Time `cbor:"1,keyasint"`
	Bytes     []byte    `cbor:"2,keyasint"`
	Simulated bool      `cbor:"3,keyasint"`
}

// FrameLog appends a CBOR record per emitted frame to a daily rolling file.
// It implements transport.Observer.
type FrameLog struct {
	dir string
	log *zap.Logger

	mu      sync.Mutex
	file    *os.File
	enc     *cbor.Encoder
	curDay  string
	encMode cbor.EncMode
}

// NewFrameLog creates the log directory if needed.
func NewFrameLog(dir string, log *zap.Logger) (*FrameLog, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create frame log dir: %w", err)
	}
	mode, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return nil, err
	}
	return &FrameLog{dir: dir, log: log, encMode: mode}, nil
}

// FrameEmitted appends one record. Write errors are logged, never propagated;
// the audit trail must not stall the wire.
func (l *FrameLog) FrameEmitted(frame []byte, simulated bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if err := l.rollLocked(now); err != nil {
		l.log.Warn("frame log roll failed", zap.Error(err))
		return
	}
	rec := FrameRecord{Time: now, Bytes: frame, Simulated: simulated}
	if err := l.enc.Encode(rec); err != nil {
		l.log.Warn("frame log write failed", zap.Error(err))
	}
}

// rollLocked opens the file for the current day, swapping at midnight.
func (l *FrameLog) rollLocked(now time.Time) error {
	day := now.Format("2006-01-02")
	if l.file != nil && day == l.curDay {
		return nil
	}
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
	path := filepath.Join(l.dir, "frames-"+day+".cbor")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	l.file = f
	l.enc = l.encMode.NewEncoder(f)
	l.curDay = day
	return nil
}

// Prune removes daily files older than the retention window.
func (l *FrameLog) Prune(retentionDays int) error {
	cutoff := time.Now().AddDate(0, 0, -retentionDays).Format("2006-01-02")
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "frames-") || !strings.HasSuffix(name, ".cbor") {
			continue
		}
		day := strings.TrimSuffix(strings.TrimPrefix(name, "frames-"), ".cbor")
		if day < cutoff {
			if err := os.Remove(filepath.Join(l.dir, name)); err != nil {
				l.log.Warn("frame log prune failed", zap.String("file", name), zap.Error(err))
			}
		}
	}
	return nil
}

// Close flushes and closes the current file.
func (l *FrameLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// ReadFrameLog decodes every record from one log file, oldest first.
func ReadFrameLog(path string) ([]FrameRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := cbor.NewDecoder(f)
	var out []FrameRecord
	for {
		var rec FrameRecord
		if err := dec.Decode(&rec); err != nil {
			if err == io.EOF {
				return out, nil
			}
			return out, fmt.Errorf("decode frame record: %w", err)
		}
		out = append(out, rec)
	}
}

// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Lumenarc

package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lumenarc/maquette/internal/animation"
	"github.com/lumenarc/maquette/internal/audit"
	"github.com/lumenarc/maquette/internal/config"
	"github.com/lumenarc/maquette/internal/events"
	"github.com/lumenarc/maquette/internal/inventory"
	"github.com/lumenarc/maquette/internal/logging"
	"github.com/lumenarc/maquette/internal/resolver"
	"github.com/lumenarc/maquette/internal/service"
	"github.com/lumenarc/maquette/internal/session"
	"github.com/lumenarc/maquette/internal/simulator"
	"github.com/lumenarc/maquette/internal/statestore"
	"github.com/lumenarc/maquette/internal/transport"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the lighting middleware",
	Long: `Open the bus endpoint, start the transmit queue and run until
interrupted. When ambient animation is enabled, the configured sequence
starts immediately and is suppressed for the duration of client sessions.

The request surface (HTTP collaborator) attaches to the service facade;
this process owns the protocol and delivery engine.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer log.Sync()

	app, err := buildApp(cfg, log)
	if err != nil {
		return err
	}
	defer app.shutdown()

	if cfg.AmbientEnabled {
		if seq, ok := app.sequences[cfg.AmbientSequenceID]; ok {
			app.engine.Start(seq)
		}
	}

	log.Info("maquette running",
		zap.Bool("simulated", cfg.SimulationMode),
		zap.String("com_port", cfg.ComPort),
		zap.Bool("ambient", cfg.AmbientEnabled))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")
	return nil
}

// app bundles the assembled components for lifecycle management.
type app struct {
	cfg       *config.Config
	log       *zap.Logger
	tx        *transport.Transport
	engine    *animation.Engine
	sim       *simulator.Simulator
	svc       *service.Service
	sequences map[string]*animation.Sequence
	frameLog  *audit.FrameLog
	publisher *events.Publisher
	closers   []func()
}

// buildApp assembles the full pipeline from the configuration. Any backing
// service that fails to initialize aborts startup.
func buildApp(cfg *config.Config, log *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}

	var db *sql.DB
	if cfg.Database != nil {
		var err error
		db, err = sql.Open("postgres", cfg.Database.DSN())
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, fmt.Errorf("ping database: %w", err)
		}
		a.closers = append(a.closers, func() { db.Close() })
	}

	inv, err := buildInventory(cfg, a, db)
	if err != nil {
		return nil, err
	}

	dial, err := dialFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	a.tx = transport.New(dial, transport.Options{
		Simulated: cfg.SimulationMode,
		Logger:    log.Named("transport"),
	})

	if cfg.FrameLogDir != "" {
		fl, err := audit.NewFrameLog(cfg.FrameLogDir, log.Named("framelog"))
		if err != nil {
			return nil, err
		}
		if err := fl.Prune(cfg.LogRetentionDays); err != nil {
			log.Warn("frame log prune failed", zap.Error(err))
		}
		a.frameLog = fl
		a.tx.RegisterObserver(fl)
		a.closers = append(a.closers, func() { fl.Close() })
	}

	if cfg.SimulationMode {
		addrs, err := inv.Addresses()
		if err != nil {
			return nil, err
		}
		a.sim = simulator.New(addrs, log.Named("simulator"))
		a.tx.RegisterObserver(a.sim)
	}

	if err := a.tx.Start(); err != nil {
		return nil, fmt.Errorf("open transport: %w", err)
	}
	a.closers = append(a.closers, func() { a.tx.Close() })

	var states statestore.Store
	if cfg.Redis != nil {
		rs, err := statestore.Dial(context.Background(), cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, err
		}
		states = rs
		a.closers = append(a.closers, func() { rs.Close() })
	} else {
		states = statestore.NewMemoryStore()
	}

	var recorder audit.Recorder = audit.NewMemoryRecorder(1024)
	if db != nil {
		pg := audit.NewPostgresRecorder(db)
		if err := pg.Prune(context.Background(), cfg.LogRetentionDays); err != nil {
			log.Warn("command log prune failed", zap.Error(err))
		}
		recorder = pg
	}

	if cfg.MQTT != nil {
		pub, err := events.Connect(cfg.MQTT, log.Named("events"))
		if err != nil {
			return nil, err
		}
		a.publisher = pub
		a.closers = append(a.closers, pub.Close)
	}

	a.sequences = make(map[string]*animation.Sequence, len(cfg.Sequences))
	for i := range cfg.Sequences {
		seq, err := animation.FromConfig(&cfg.Sequences[i])
		if err != nil {
			return nil, err
		}
		a.sequences[seq.ID] = seq
	}

	res := resolver.New(inv, a.tx, states, cfg, log.Named("resolver"))
	a.engine = animation.New(inv, a.tx, log.Named("animation"))
	sessions := session.New(inv, a.tx, a.engine, cfg, a.sequences, recorder, log.Named("session"))
	a.svc = service.New(inv, res, sessions, a.engine, a.tx, recorder, a.publisher, log.Named("service"))
	return a, nil
}

// buildInventory selects the configured inventory backend.
func buildInventory(cfg *config.Config, a *app, db *sql.DB) (inventory.Reader, error) {
	if db != nil {
		return inventory.NewPostgresRepository(db), nil
	}
	if cfg.Inventory != nil {
		return inventory.FromConfig(cfg.Inventory)
	}
	a.log.Warn("no inventory configured; starting with an empty table")
	return inventory.NewMemoryStore(), nil
}

func (a *app) shutdown() {
	if a.engine != nil {
		a.engine.Stop()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

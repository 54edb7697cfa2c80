// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Lumenarc

package cmd

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lumenarc/maquette/internal/transport"
	"github.com/lumenarc/maquette/pkg/glint"
)

var (
	sendAddr   uint16
	sendLevel  int
	sendRGB    []int
	sendFadeMs int
	sendHex    string
)

var sendCmd = &cobra.Command{
	Use:   "send <on|off|level|rgb|fade|raw>",
	Short: "Build and transmit a single command",
	Long: `Frame one command and transmit it on the configured endpoint.

Examples:
  maquette send on --addr 5
  maquette send level --addr 100 --level 128
  maquette send rgb --addr 100 --rgb 255,128,64 --fade-ms 500
  maquette send fade --addr 100 --level 0 --fade-ms 2000
  maquette send raw --hex "C0 00 05 20 25 C0"`,
	Args: cobra.ExactArgs(1),
	RunE: runSend,
}

func init() {
	sendCmd.Flags().Uint16Var(&sendAddr, "addr", 0, "Target fixture address (65535 = broadcast)")
	sendCmd.Flags().IntVar(&sendLevel, "level", 255, "Level 0..255")
	sendCmd.Flags().IntSliceVar(&sendRGB, "rgb", nil, "Color as r,g,b")
	sendCmd.Flags().IntVar(&sendFadeMs, "fade-ms", 0, "Fade duration in milliseconds")
	sendCmd.Flags().StringVar(&sendHex, "hex", "", "Already-encoded wire bytes (raw)")
	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	frame, err := buildSendFrame(args[0])
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dial, err := dialFromConfig(cfg)
	if err != nil {
		return err
	}

	tx := transport.New(dial, transport.Options{
		Simulated: cfg.SimulationMode,
		Logger:    zap.NewNop(),
	})
	if err := tx.Start(); err != nil {
		return err
	}
	defer tx.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := tx.Enqueue(ctx, frame); err != nil {
		return err
	}
	fmt.Printf("sent % X\n", frame)
	return nil
}

func buildSendFrame(command string) ([]byte, error) {
	addr := glint.Address(sendAddr)
	fade := time.Duration(sendFadeMs) * time.Millisecond

	switch command {
	case "on":
		return glint.On(addr).Marshal(), nil
	case "off":
		return glint.Off(addr).Marshal(), nil
	case "level":
		return glint.Level(addr, sendLevel).Marshal(), nil
	case "fade":
		plan := glint.PlanFade(255, sendLevel, fade)
		return glint.Fade(addr, sendLevel, plan).Marshal(), nil
	case "rgb":
		if len(sendRGB) != 3 {
			return nil, fmt.Errorf("--rgb needs three values, got %d", len(sendRGB))
		}
		if sendFadeMs > 0 {
			return glint.RGBFade(addr,
				glint.Ramp{Level: sendRGB[0], Plan: glint.PlanFade(0, sendRGB[0], fade)},
				glint.Ramp{Level: sendRGB[1], Plan: glint.PlanFade(0, sendRGB[1], fade)},
				glint.Ramp{Level: sendRGB[2], Plan: glint.PlanFade(0, sendRGB[2], fade)},
			).Marshal(), nil
		}
		return glint.RGBLevel(addr, sendRGB[0], sendRGB[1], sendRGB[2]).Marshal(), nil
	case "raw":
		if sendHex == "" {
			return nil, fmt.Errorf("raw needs --hex")
		}
		return parseHexBytes(sendHex)
	}
	return nil, fmt.Errorf("unknown command %q", command)
}

func parseHexBytes(s string) ([]byte, error) {
	clean := strings.NewReplacer(" ", "", "\t", "", ":", "", ",", "").Replace(s)
	data, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	return data, nil
}

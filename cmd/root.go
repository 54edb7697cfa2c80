// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Lumenarc

// Package cmd implements the maquette command tree.
package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/lumenarc/maquette/internal/config"
	"github.com/lumenarc/maquette/internal/transport"
)

var (
	configPath string

	// Endpoint overrides; zero values defer to the configuration file.
	portName string
	baudRate int
	simulate bool
)

var rootCmd = &cobra.Command{
	Use:   "maquette",
	Short: "Scale-model lighting middleware",
	Long: `Maquette drives an architectural scale-model lighting installation of
addressable RGB fixtures over a serial bus.

It translates high-level apartment states into framed, checksummed Glint
packets, paces them onto a single serial endpoint, and runs ambient
animation when no client session is active.

Connection modes:
  Serial:    com_port in maquette.yml, or --port /dev/ttyUSB0 [--baud 38400]
  WebSocket: ws_url in maquette.yml (serial-over-WebSocket bridge)
  Simulated: simulation_mode in maquette.yml, or --simulate

For WebSocket authentication, the password is read from the
MAQUETTE_WS_PASSWORD environment variable, or prompted interactively if not
set.`,
	Version: "1.3.0",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "maquette.yml", "Configuration file")
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device (overrides config)")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 0, "Baud rate (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&simulate, "simulate", false, "Replace the hardware sink with the simulator")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads the configuration file and applies flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		// Flags alone are enough for simulation and quick serial sessions.
		if errors.Is(err, fs.ErrNotExist) && (portName != "" || simulate) {
			cfg = config.Default()
		} else {
			return nil, err
		}
	}
	if portName != "" {
		cfg.ComPort = portName
	}
	if baudRate > 0 {
		cfg.BaudRate = baudRate
	}
	if simulate {
		cfg.SimulationMode = true
	}
	return cfg, nil
}

// dialFromConfig picks the endpoint dialer for the configured connection
// mode.
func dialFromConfig(cfg *config.Config) (transport.DialFunc, error) {
	if cfg.SimulationMode {
		return transport.DialSimulated(5 * time.Millisecond), nil
	}
	if cfg.WSURL != "" {
		password := ""
		if cfg.WSUsername != "" {
			var err error
			password, err = getPassword()
			if err != nil {
				return nil, err
			}
		}
		return transport.DialWebSocket(cfg.WSURL, cfg.WSUsername, password, false), nil
	}
	if cfg.ComPort != "" {
		return transport.DialSerial(cfg.ComPort, cfg.BaudRate), nil
	}
	return nil, fmt.Errorf("no endpoint configured: set com_port, ws_url or simulation_mode")
}

// getPassword retrieves the bridge password from the environment or prompts
// for it without echo.
func getPassword() (string, error) {
	if pw := os.Getenv("MAQUETTE_WS_PASSWORD"); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fall back to echoed input when no terminal is attached.
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}
	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Lumenarc

package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/lumenarc/maquette/internal/audit"
	"github.com/lumenarc/maquette/pkg/glint"
)

var (
	decodeFile     string
	decodeFrameLog string
)

var decodeCmd = &cobra.Command{
	Use:   "decode [hex bytes...]",
	Short: "Decode captured wire bytes into readable commands",
	Long: `Decode Glint wire bytes into human-readable command listings.

Input sources:
  arguments:  maquette decode "C0 00 05 20 25 C0"
  raw capture: maquette decode --file capture.bin
  frame log:   maquette decode --framelog frames-2026-08-06.cbor

Decoding is lenient: frames with checksum mismatches are reported and still
shown.`,
	RunE: runDecode,
}

func init() {
	decodeCmd.Flags().StringVar(&decodeFile, "file", "", "Raw capture file")
	decodeCmd.Flags().StringVar(&decodeFrameLog, "framelog", "", "Frame audit log file")
	rootCmd.AddCommand(decodeCmd)
}

var (
	okColor   = color.New(color.FgGreen)
	warnColor = color.New(color.FgYellow)
	errColor  = color.New(color.FgRed)
)

func runDecode(cmd *cobra.Command, args []string) error {
	if decodeFrameLog != "" {
		return decodeFromFrameLog(decodeFrameLog)
	}

	var stream []byte
	switch {
	case decodeFile != "":
		data, err := os.ReadFile(decodeFile)
		if err != nil {
			return err
		}
		stream = data
	case len(args) > 0:
		data, err := parseHexBytes(strings.Join(args, " "))
		if err != nil {
			return err
		}
		stream = data
	default:
		return fmt.Errorf("nothing to decode: pass hex bytes, --file or --framelog")
	}

	count := 0
	for _, payload := range glint.DecodeFrames(stream) {
		count++
		printPayload(payload)
	}
	if count == 0 {
		warnColor.Println("no complete frames in input")
	}
	return nil
}

func decodeFromFrameLog(path string) error {
	records, err := audit.ReadFrameLog(path)
	if err != nil {
		return err
	}
	for _, rec := range records {
		origin := "live"
		if rec.Simulated {
			origin = "sim"
		}
		fmt.Printf("[%s] %s ", rec.Time.Format("15:04:05.000"), origin)
		payloads := glint.DecodeFrames(rec.Bytes)
		if len(payloads) == 0 {
			errColor.Printf("unframed bytes: % X\n", rec.Bytes)
			continue
		}
		for _, payload := range payloads {
			printPayload(payload)
		}
	}
	return nil
}

func printPayload(payload []byte) {
	p, err := glint.Parse(payload)
	if err == nil {
		okColor.Println(glint.FormatPacket(p))
		return
	}
	// Try again leniently so a damaged frame is still inspectable.
	if lp, lerr := glint.ParseLenient(payload); lerr == nil {
		warnColor.Printf("%s  (%v)\n", glint.FormatPacket(lp), err)
		return
	}
	errColor.Printf("undecodable payload: % X (%v)\n", payload, err)
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Lumenarc
//
// Maquette - scale-model lighting middleware
//
// Drives an architectural scale-model lighting installation of addressable
// RGB fixtures over a serial bus, speaking the Glint protocol.

package main

import (
	"os"

	"github.com/lumenarc/maquette/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

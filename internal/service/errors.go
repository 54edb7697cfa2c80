// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Lumenarc

package service

import (
	"errors"

	"github.com/lumenarc/maquette/internal/inventory"
	"github.com/lumenarc/maquette/internal/resolver"
	"github.com/lumenarc/maquette/internal/transport"
	"github.com/lumenarc/maquette/pkg/glint"
)

// Code is the machine-readable error kind handed to the request surface,
// which maps it onto HTTP status codes.
type Code string

// Error codes
const (
	CodeNotFound        Code = "not_found"
	CodeNoAddresses     Code = "no_addresses"
	CodeBadState        Code = "bad_state"
	CodeBadRange        Code = "bad_range"
	CodeTransportClosed Code = "transport_closed"
	CodeTransportIo     Code = "transport_io"
	CodeDecodeChecksum  Code = "decode_bad_checksum"
	CodeDecodeTruncated Code = "decode_truncated"
	CodeInternal        Code = "internal"
)

// ErrorCode classifies an operation error.
func ErrorCode(err error) Code {
	switch {
	case errors.Is(err, inventory.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, resolver.ErrNoAddresses):
		return CodeNoAddresses
	case errors.Is(err, inventory.ErrUnknownState):
		return CodeBadState
	case errors.Is(err, resolver.ErrBadRange), errors.Is(err, ErrBadKind):
		return CodeBadRange
	case errors.Is(err, transport.ErrClosed):
		return CodeTransportClosed
	case errors.Is(err, transport.ErrIo):
		return CodeTransportIo
	case errors.Is(err, glint.ErrBadChecksum):
		return CodeDecodeChecksum
	case errors.Is(err, glint.ErrTruncated):
		return CodeDecodeTruncated
	}
	return CodeInternal
}

// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Lumenarc

// Package inventory holds the read-mostly tables describing the installation:
// apartments, floor groups, fixture addresses and the state color table.
package inventory

import (
	"errors"

	"github.com/lumenarc/maquette/pkg/glint"
)

// ErrNotFound is returned for unknown apartment or group identifiers.
var ErrNotFound = errors.New("inventory: not found")

// Apartment is one sellable unit with zero or more fixtures. Lights are
// ordered by light index, starting at 1; the first entry is the primary
// address.
type Apartment struct {
	ID       string
	Floor    int
	GroupID  string
	Position int
	Primary  glint.Address // 0 when the apartment has no primary fixture
	Lights   []glint.Address
}

// Addresses returns the apartment's fixture addresses ordered by light index,
// falling back to the primary address when no associations exist. The result
// is empty for an unlightable apartment.
func (a *Apartment) Addresses() []glint.Address {
	if len(a.Lights) > 0 {
		out := make([]glint.Address, len(a.Lights))
		copy(out, a.Lights)
		return out
	}
	if a.Primary != 0 {
		return []glint.Address{a.Primary}
	}
	return nil
}

// FloorGroup aggregates the apartments sharing a floor within a tower.
type FloorGroup struct {
	ID    string
	Tower string
	Floor int
}

// Reader is the narrow read interface the core consumes. Implementations are
// safe for concurrent use.
type Reader interface {
	// Apartment returns the apartment with the given id, or ErrNotFound.
	Apartment(id string) (*Apartment, error)
	// Apartments returns every apartment ordered by floor, then position.
	Apartments() ([]*Apartment, error)
	// ApartmentsByGroup returns the apartments of a floor group, ordered by
	// position. ErrNotFound when the group does not exist.
	ApartmentsByGroup(groupID string) ([]*Apartment, error)
	// ApartmentsByFloor returns the apartments on a floor, ordered by
	// position.
	ApartmentsByFloor(floor int) ([]*Apartment, error)
	// Group returns the floor group with the given id, or ErrNotFound.
	Group(id string) (*FloorGroup, error)
	// Floors returns the populated floor numbers in ascending order.
	Floors() ([]int, error)
	// Addresses returns every fixture address in the installation.
	Addresses() ([]glint.Address, error)
	// StateInfo returns the color tuple and description for a state, or
	// ErrUnknownState.
	StateInfo(s State) (StateInfo, error)
}

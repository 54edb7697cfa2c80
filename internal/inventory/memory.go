// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Lumenarc

package inventory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/lumenarc/maquette/internal/config"
	"github.com/lumenarc/maquette/pkg/glint"
)

// MemoryStore is an in-memory Reader used for simulation, tests and
// installations configured without a database.
type MemoryStore struct {
	mu         sync.RWMutex
	apartments map[string]*Apartment
	groups     map[string]*FloorGroup
	states     map[State]StateInfo
}

// NewMemoryStore creates an empty store with the default state table.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		apartments: make(map[string]*Apartment),
		groups:     make(map[string]*FloorGroup),
		states:     defaultStates(),
	}
}

// FromConfig builds a memory store from the inline inventory block.
func FromConfig(inv *config.InventoryConfig) (*MemoryStore, error) {
	s := NewMemoryStore()
	for _, g := range inv.Groups {
		s.PutGroup(&FloorGroup{ID: g.ID, Tower: g.Tower, Floor: g.Floor})
	}
	for _, a := range inv.Apartments {
		lights := make([]glint.Address, len(a.Lights))
		for i, addr := range a.Lights {
			lights[i] = glint.Address(addr)
		}
		apt := &Apartment{
			ID:       a.ID,
			Floor:    a.Floor,
			GroupID:  a.Group,
			Position: a.Position,
			Lights:   lights,
		}
		if len(lights) > 0 {
			apt.Primary = lights[0]
		}
		if err := s.PutApartment(apt); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// PutApartment inserts or replaces an apartment. The group reference must
// resolve when groups are defined at all.
func (s *MemoryStore) PutApartment(a *Apartment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		return fmt.Errorf("inventory: apartment id is required")
	}
	if a.GroupID != "" && len(s.groups) > 0 {
		if _, ok := s.groups[a.GroupID]; !ok {
			return fmt.Errorf("inventory: apartment %s references unknown group %s", a.ID, a.GroupID)
		}
	}
	s.apartments[a.ID] = a
	return nil
}

// PutGroup inserts or replaces a floor group.
func (s *MemoryStore) PutGroup(g *FloorGroup) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[g.ID] = g
}

// SetStateColor overrides the color tuple for one state.
func (s *MemoryStore) SetStateColor(st State, c Color) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	info, ok := s.states[st]
	if !ok {
		return ErrUnknownState
	}
	info.Color = c
	s.states[st] = info
	return nil
}

func (s *MemoryStore) Apartment(id string) (*Apartment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.apartments[id]
	if !ok {
		return nil, fmt.Errorf("%w: apartment %s", ErrNotFound, id)
	}
	return a, nil
}

func (s *MemoryStore) Apartments() ([]*Apartment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Apartment, 0, len(s.apartments))
	for _, a := range s.apartments {
		out = append(out, a)
	}
	sortApartments(out)
	return out, nil
}

func (s *MemoryStore) ApartmentsByGroup(groupID string) ([]*Apartment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.groups[groupID]; !ok {
		return nil, fmt.Errorf("%w: group %s", ErrNotFound, groupID)
	}
	var out []*Apartment
	for _, a := range s.apartments {
		if a.GroupID == groupID {
			out = append(out, a)
		}
	}
	sortApartments(out)
	return out, nil
}

func (s *MemoryStore) ApartmentsByFloor(floor int) ([]*Apartment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Apartment
	for _, a := range s.apartments {
		if a.Floor == floor {
			out = append(out, a)
		}
	}
	sortApartments(out)
	return out, nil
}

func (s *MemoryStore) Group(id string) (*FloorGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[id]
	if !ok {
		return nil, fmt.Errorf("%w: group %s", ErrNotFound, id)
	}
	return g, nil
}

func (s *MemoryStore) Floors() ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := map[int]bool{}
	for _, a := range s.apartments {
		seen[a.Floor] = true
	}
	floors := make([]int, 0, len(seen))
	for f := range seen {
		floors = append(floors, f)
	}
	sort.Ints(floors)
	return floors, nil
}

func (s *MemoryStore) Addresses() ([]glint.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := map[glint.Address]bool{}
	var out []glint.Address
	for _, a := range s.apartments {
		for _, addr := range a.Addresses() {
			if !seen[addr] {
				seen[addr] = true
				out = append(out, addr)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (s *MemoryStore) StateInfo(st State) (StateInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info, ok := s.states[st]
	if !ok {
		return StateInfo{}, ErrUnknownState
	}
	return info, nil
}

func sortApartments(a []*Apartment) {
	sort.Slice(a, func(i, j int) bool {
		if a[i].Floor != a[j].Floor {
			return a[i].Floor < a[j].Floor
		}
		if a[i].Position != a[j].Position {
			return a[i].Position < a[j].Position
		}
		return a[i].ID < a[j].ID
	})
}

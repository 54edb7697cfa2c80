// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Lumenarc

package inventory

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/lumenarc/maquette/pkg/glint"
)

// PostgresRepository reads the inventory tables from Postgres. It implements
// Reader; mutations happen through administrative tooling outside this
// process.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository wraps an open database handle.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Open connects to Postgres and verifies the connection.
func Open(dsn string) (*PostgresRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresRepository{db: db}, nil
}

// Close releases the underlying handle.
func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

const apartmentColumns = "a.id, a.floor, a.group_id, a.position"

func (r *PostgresRepository) Apartment(id string) (*Apartment, error) {
	row := r.db.QueryRow(
		"SELECT "+apartmentColumns+" FROM apartments a WHERE a.id = $1", id)
	a, err := scanApartment(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: apartment %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query apartment: %w", err)
	}
	if err := r.loadLights(a); err != nil {
		return nil, err
	}
	return a, nil
}

func (r *PostgresRepository) Apartments() ([]*Apartment, error) {
	return r.queryApartments(
		"SELECT " + apartmentColumns + " FROM apartments a ORDER BY a.floor, a.position, a.id")
}

func (r *PostgresRepository) ApartmentsByGroup(groupID string) ([]*Apartment, error) {
	if _, err := r.Group(groupID); err != nil {
		return nil, err
	}
	return r.queryApartments(
		"SELECT "+apartmentColumns+" FROM apartments a WHERE a.group_id = $1 ORDER BY a.position, a.id",
		groupID)
}

func (r *PostgresRepository) ApartmentsByFloor(floor int) ([]*Apartment, error) {
	return r.queryApartments(
		"SELECT "+apartmentColumns+" FROM apartments a WHERE a.floor = $1 ORDER BY a.position, a.id",
		floor)
}

func (r *PostgresRepository) Group(id string) (*FloorGroup, error) {
	g := &FloorGroup{}
	err := r.db.QueryRow(
		"SELECT id, tower, floor FROM floor_groups WHERE id = $1", id).
		Scan(&g.ID, &g.Tower, &g.Floor)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: group %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query group: %w", err)
	}
	return g, nil
}

func (r *PostgresRepository) Floors() ([]int, error) {
	rows, err := r.db.Query("SELECT DISTINCT floor FROM apartments ORDER BY floor")
	if err != nil {
		return nil, fmt.Errorf("query floors: %w", err)
	}
	defer rows.Close()
	var floors []int
	for rows.Next() {
		var f int
		if err := rows.Scan(&f); err != nil {
			return nil, err
		}
		floors = append(floors, f)
	}
	return floors, rows.Err()
}

func (r *PostgresRepository) Addresses() ([]glint.Address, error) {
	rows, err := r.db.Query("SELECT DISTINCT address FROM apartment_lights ORDER BY address")
	if err != nil {
		return nil, fmt.Errorf("query addresses: %w", err)
	}
	defer rows.Close()
	var out []glint.Address
	for rows.Next() {
		var addr int
		if err := rows.Scan(&addr); err != nil {
			return nil, err
		}
		out = append(out, glint.Address(addr))
	}
	return out, rows.Err()
}

func (r *PostgresRepository) StateInfo(st State) (StateInfo, error) {
	if !st.Valid() {
		return StateInfo{}, ErrUnknownState
	}
	var info StateInfo
	err := r.db.QueryRow(
		"SELECT r, g, b, intensity, description FROM state_colors WHERE state = $1",
		string(st)).
		Scan(&info.Color.R, &info.Color.G, &info.Color.B, &info.Color.Intensity, &info.Description)
	if err == sql.ErrNoRows {
		// Not overridden in storage: fall back to the shipped tuple.
		return defaultStates()[st], nil
	}
	if err != nil {
		return StateInfo{}, fmt.Errorf("query state color: %w", err)
	}
	return info, nil
}

func (r *PostgresRepository) queryApartments(query string, args ...interface{}) ([]*Apartment, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query apartments: %w", err)
	}
	defer rows.Close()

	var out []*Apartment
	for rows.Next() {
		a, err := scanApartment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, a := range out {
		if err := r.loadLights(a); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// loadLights fills an apartment's fixture addresses ordered by light index.
func (r *PostgresRepository) loadLights(a *Apartment) error {
	rows, err := r.db.Query(
		"SELECT address FROM apartment_lights WHERE apartment_id = $1 ORDER BY light_index",
		a.ID)
	if err != nil {
		return fmt.Errorf("query lights: %w", err)
	}
	defer rows.Close()
	a.Lights = nil
	for rows.Next() {
		var addr int
		if err := rows.Scan(&addr); err != nil {
			return err
		}
		a.Lights = append(a.Lights, glint.Address(addr))
	}
	if len(a.Lights) > 0 {
		a.Primary = a.Lights[0]
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanApartment(row rowScanner) (*Apartment, error) {
	a := &Apartment{}
	var group sql.NullString
	if err := row.Scan(&a.ID, &a.Floor, &group, &a.Position); err != nil {
		return nil, err
	}
	a.GroupID = group.String
	return a, nil
}

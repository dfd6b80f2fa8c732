package sql

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/tmellor/forge/internal/profilestore"
)

// Store is a profilestore.Source backed by a SQL database via GORM.
type Store struct {
	db *gorm.DB
}

// OpenPostgres connects to a Postgres database at dsn and applies pending
// migrations before returning a ready Store.
func OpenPostgres(dsn string) (*Store, error) {
	if err := MigratePostgres(dsn); err != nil {
		return nil, err
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("profilestore/sql: connecting to postgres: %w", err)
	}
	return &Store{db: db}, nil
}

// OpenSQLite opens (creating if absent) a SQLite database at path and
// auto-migrates its schema. Intended for local development and tests,
// where spinning up Postgres via testcontainers is unnecessary.
func OpenSQLite(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("profilestore/sql: opening sqlite %q: %w", path, err)
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("profilestore/sql: auto-migrating: %w", err)
	}
	return &Store{db: db}, nil
}

func toRawProfile(row ProfileRow) *profilestore.RawProfile {
	deps := make([]profilestore.Dependency, 0, len(row.Dependencies))
	for _, d := range row.Dependencies {
		deps = append(deps, profilestore.Dependency{Type: d.DepType, Name: d.DepName})
	}
	return &profilestore.RawProfile{
		Name:             row.Name,
		Type:             row.Type,
		Fields:           row.Fields,
		SecureFieldNames: row.SecureFieldNames,
		Dependencies:     deps,
	}
}

// Load implements profilestore.Source.
func (s *Store) Load(profileType, name string) (*profilestore.RawProfile, error) {
	var row ProfileRow
	err := s.db.Preload("Dependencies").
		Where("type = ? AND name = ?", profileType, name).
		First(&row).Error
	if err != nil {
		return nil, fmt.Errorf("profilestore/sql: loading %s:%s: %w", profileType, name, err)
	}
	return toRawProfile(row), nil
}

// LoadDefault implements profilestore.Source.
func (s *Store) LoadDefault(profileType string) (*profilestore.RawProfile, error) {
	var row ProfileRow
	err := s.db.Preload("Dependencies").
		Where("type = ? AND is_default = ?", profileType, true).
		First(&row).Error
	if err != nil {
		return nil, fmt.Errorf("profilestore/sql: loading default of type %s: %w", profileType, err)
	}
	return toRawProfile(row), nil
}

// LoadAll implements profilestore.Source.
func (s *Store) LoadAll(profileType string) ([]*profilestore.RawProfile, error) {
	var rows []ProfileRow
	err := s.db.Preload("Dependencies").Where("type = ?", profileType).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("profilestore/sql: loading all of type %s: %w", profileType, err)
	}
	out := make([]*profilestore.RawProfile, 0, len(rows))
	for _, r := range rows {
		out = append(out, toRawProfile(r))
	}
	return out, nil
}

// Save persists a profile definition. Profiles are read-only during
// command invocation; Save exists for the host-side commands that manage
// them, so the Store is usable without a pre-seeded database.
func (s *Store) Save(raw *profilestore.RawProfile, isDefault bool) error {
	row := ProfileRow{
		Type:             raw.Type,
		Name:             raw.Name,
		IsDefault:        isDefault,
		Fields:           JSONMap(raw.Fields),
		SecureFieldNames: StringList(raw.SecureFieldNames),
	}
	for _, d := range raw.Dependencies {
		row.Dependencies = append(row.Dependencies, DependencyRow{DepType: d.Type, DepName: d.Name})
	}
	return s.db.Save(&row).Error
}

var _ profilestore.Source = (*Store)(nil)

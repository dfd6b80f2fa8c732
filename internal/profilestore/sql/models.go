// Package sql implements an alternative profile store backend persisting
// to SQLite or Postgres via GORM, for hosts running the processor from
// multiple short-lived invocations that need a shared profile set (e.g. a
// CI runner), where the default per-user YAML file would not be visible
// across processes.
package sql

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// JSONMap is a map[string]any persisted as a JSON text column.
type JSONMap map[string]any

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	return string(b), err
}

func (m *JSONMap) Scan(src any) error {
	if src == nil {
		*m = JSONMap{}
		return nil
	}
	var b []byte
	switch v := src.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	}
	if len(b) == 0 {
		*m = JSONMap{}
		return nil
	}
	return json.Unmarshal(b, m)
}

// StringList is a []string persisted as a JSON text column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	return string(b), err
}

func (l *StringList) Scan(src any) error {
	if src == nil {
		*l = nil
		return nil
	}
	var b []byte
	switch v := src.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	}
	if len(b) == 0 {
		*l = nil
		return nil
	}
	return json.Unmarshal(b, l)
}

// ProfileRow is the GORM model for one stored profile.
type ProfileRow struct {
	ID               uint            `gorm:"primaryKey"`
	Type             string          `gorm:"size:128;not null;uniqueIndex:idx_type_name"`
	Name             string          `gorm:"size:128;not null;uniqueIndex:idx_type_name"`
	IsDefault        bool            `gorm:"column:is_default;not null;default:false"`
	Fields           JSONMap         `gorm:"type:text;not null"`
	SecureFieldNames StringList      `gorm:"column:secure_field_names;type:text;not null"`
	Dependencies     []DependencyRow `gorm:"foreignKey:ProfileID"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (ProfileRow) TableName() string { return "profiles" }

// DependencyRow is one profile-to-profile dependency edge.
type DependencyRow struct {
	ID        uint   `gorm:"primaryKey"`
	ProfileID uint   `gorm:"not null;index"`
	DepType   string `gorm:"column:dep_type;size:128;not null"`
	DepName   string `gorm:"column:dep_name;size:128;not null"`
}

func (DependencyRow) TableName() string { return "profile_dependencies" }

// AutoMigrate is used by the SQLite driver path, which has no golang-migrate
// driver wired in this module; Postgres uses the embedded SQL migrations in
// migrate.go instead.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&ProfileRow{}, &DependencyRow{})
}

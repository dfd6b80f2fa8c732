package sql

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmellor/forge/internal/profilestore"
)

func TestSQLiteStoreSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenSQLite(filepath.Join(dir, "profiles.db"))
	require.NoError(t, err)

	raw := &profilestore.RawProfile{
		Type:   "aws",
		Name:   "prod",
		Fields: map[string]any{"region": "us-east-1"},
		Dependencies: []profilestore.Dependency{
			{Type: "network", Name: "vpc1"},
		},
	}
	require.NoError(t, store.Save(raw, true))

	got, err := store.Load("aws", "prod")
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", got.Fields["region"])
	require.Len(t, got.Dependencies, 1)
	assert.Equal(t, "vpc1", got.Dependencies[0].Name)

	def, err := store.LoadDefault("aws")
	require.NoError(t, err)
	assert.Equal(t, "prod", def.Name)
}

func TestSQLiteStoreLoadAll(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenSQLite(filepath.Join(dir, "profiles.db"))
	require.NoError(t, err)

	require.NoError(t, store.Save(&profilestore.RawProfile{Type: "aws", Name: "a"}, false))
	require.NoError(t, store.Save(&profilestore.RawProfile{Type: "aws", Name: "b"}, false))

	all, err := store.LoadAll("aws")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

package badgerstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tmellor/forge/internal/credential"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	var key [32]byte
	copy(key[:], "0123456789abcdef0123456789abcdef")

	b, err := Open(dir, key)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	ctx := context.Background()
	require.NoError(t, b.Initialize(ctx))
	require.NoError(t, b.Save(ctx, "aws_prod_secret", "top-secret"))

	got, err := b.Load(ctx, "aws_prod_secret")
	require.NoError(t, err)
	require.Equal(t, "top-secret", got)
}

func TestLoadMissingAccount(t *testing.T) {
	dir := t.TempDir()
	var key [32]byte
	b, err := Open(dir, key)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	_, err = b.Load(context.Background(), "nope")
	require.ErrorIs(t, err, credential.ErrNotFound)
}

func TestSaveRejectsEmptySecret(t *testing.T) {
	dir := t.TempDir()
	var key [32]byte
	b, err := Open(dir, key)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	err = b.Save(context.Background(), "x", "")
	require.ErrorIs(t, err, credential.ErrMissingSecureField)
}

func TestDeleteRemovesAccount(t *testing.T) {
	dir := t.TempDir()
	var key [32]byte
	b, err := Open(dir, key)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	ctx := context.Background()
	require.NoError(t, b.Save(ctx, "k", "v"))
	require.NoError(t, b.Delete(ctx, "k"))

	_, err = b.Load(ctx, "k")
	require.ErrorIs(t, err, credential.ErrNotFound)
}

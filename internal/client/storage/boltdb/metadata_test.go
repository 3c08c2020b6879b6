package boltdb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftsync/driftsync/internal/client/storage"
)

func setupStorage(t *testing.T) *Storage {
	t.Helper()

	s, err := New(filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStorage_Cursor(t *testing.T) {
	s := setupStorage(t)
	ctx := context.Background()

	// До первой синхронизации курсор нулевой
	cursor, err := s.GetCursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), cursor)

	require.NoError(t, s.SaveCursor(ctx, 42))

	cursor, err = s.GetCursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(42), cursor)

	// Перезапись
	require.NoError(t, s.SaveCursor(ctx, 100))
	cursor, err = s.GetCursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(100), cursor)
}

func TestStorage_CursorSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "client.db")
	ctx := context.Background()

	s, err := New(path)
	require.NoError(t, err)
	require.NoError(t, s.SaveCursor(ctx, 7))
	require.NoError(t, s.Close())

	s, err = New(path)
	require.NoError(t, err)
	defer s.Close()

	cursor, err := s.GetCursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), cursor)
}

func TestStorage_Credentials(t *testing.T) {
	s := setupStorage(t)
	ctx := context.Background()

	_, err := s.GetCredentials(ctx)
	require.ErrorIs(t, err, storage.ErrCredentialsNotFound)

	creds := storage.Credentials{DeviceID: "device-1", Secret: "s3cret"}
	require.NoError(t, s.SaveCredentials(ctx, creds))

	got, err := s.GetCredentials(ctx)
	require.NoError(t, err)
	assert.Equal(t, creds, got)
}

func TestStorage_Token(t *testing.T) {
	s := setupStorage(t)
	ctx := context.Background()

	_, err := s.GetToken(ctx)
	require.ErrorIs(t, err, storage.ErrTokenNotFound)

	require.NoError(t, s.SaveToken(ctx, "jwt-token"))

	token, err := s.GetToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "jwt-token", token)
}

func TestStorage_DeleteAuth(t *testing.T) {
	s := setupStorage(t)
	ctx := context.Background()

	require.NoError(t, s.SaveCredentials(ctx, storage.Credentials{DeviceID: "d1", Secret: "s"}))
	require.NoError(t, s.SaveToken(ctx, "jwt-token"))
	require.NoError(t, s.SaveCursor(ctx, 5))

	require.NoError(t, s.DeleteAuth(ctx))

	_, err := s.GetCredentials(ctx)
	assert.ErrorIs(t, err, storage.ErrCredentialsNotFound)
	_, err = s.GetToken(ctx)
	assert.ErrorIs(t, err, storage.ErrTokenNotFound)

	// Курсор не относится к auth-данным и переживает logout
	cursor, err := s.GetCursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), cursor)
}

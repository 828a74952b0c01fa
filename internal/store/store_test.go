package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]BlobStore {
	t.Helper()
	local, err := NewLocalStore(filepath.Join(t.TempDir(), "sub", "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { local.Close() })
	return map[string]BlobStore{
		"sqlite": local,
		"memory": NewMemoryStore(),
	}
}

func TestBlobStoreContract(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(ctx, "missing")
			assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)

			require.NoError(t, s.Put(ctx, "k", []byte("one")))
			got, err := s.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, []byte("one"), got)

			require.NoError(t, s.Put(ctx, "k", []byte("two")))
			got, err = s.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, []byte("two"), got)

			require.NoError(t, s.Delete(ctx, "k"))
			_, err = s.Get(ctx, "k")
			assert.ErrorIs(t, err, ErrNotFound)

			assert.NoError(t, s.Delete(ctx, "k"), "deleting a missing key is a no-op")
		})
	}
}

func TestLocalStorePersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")

	s, err := NewLocalStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, "alice-kernel-state", []byte(`{"tick":3}`)))
	require.NoError(t, s.Close())

	s, err = NewLocalStore(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(ctx, "alice-kernel-state")
	require.NoError(t, err)
	assert.JSONEq(t, `{"tick":3}`, string(got))
	assert.Equal(t, path, s.Path())
}

func TestMemoryStoreCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	buf := []byte("abc")
	require.NoError(t, m.Put(ctx, "k", buf))
	buf[0] = 'z'

	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestOpen(t *testing.T) {
	s, err := Open("memory", "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	_, err = Open("etcd", "")
	assert.Error(t, err)
}

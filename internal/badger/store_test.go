package badger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/stockpile/pkg/types"
)

func testConfig(dir string) types.Config {
	return types.Config{Backend: types.BackendBadger, DataDir: dir}
}

func sampleSnapshot(name string) types.Snapshot {
	return types.Snapshot{
		Name:        name,
		ContainerID: "c-1",
		SavedAt:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Entries: []types.EntrySnapshot{{
			Key:    100,
			Item:   json.RawMessage(`{"name":"arrow","limit":10}`),
			Limit:  10,
			Stacks: []types.KeyedStack{{Key: 100, Stack: 10}, {Key: 101, Stack: 3}},
		}},
		Extensions: map[string]json.RawMessage{"metadata": json.RawMessage(`{"100":["Inventory.Meta.CannotMove"]}`)},
	}
}

func attached(t *testing.T) *Store {
	t.Helper()
	s := NewInMemoryStore()
	require.NoError(t, s.Attach(testConfig("")))
	t.Cleanup(func() { s.Detach() })
	return s
}

func TestStore_Lifecycle(t *testing.T) {
	dir := t.TempDir()
	s := NewStore()
	require.NoError(t, s.Attach(testConfig(dir)))

	_, err := os.Stat(filepath.Join(dir, DirName))
	assert.NoError(t, err, "badger directory should exist")
	assert.ErrorIs(t, s.Attach(testConfig(dir)), types.ErrAlreadyAttached)

	require.NoError(t, s.Detach())
	assert.NoError(t, s.Detach(), "Detach is idempotent")

	assert.ErrorIs(t, s.Save(sampleSnapshot("a")), types.ErrStoreDetached)
	_, err = s.Load("a")
	assert.ErrorIs(t, err, types.ErrStoreDetached)
	_, err = s.List()
	assert.ErrorIs(t, err, types.ErrStoreDetached)
	assert.ErrorIs(t, s.Delete("a"), types.ErrStoreDetached)
}

func TestStore_AttachInvalidConfig(t *testing.T) {
	s := NewInMemoryStore()
	assert.ErrorIs(t, s.Attach(types.Config{Backend: "etcd"}), types.ErrBackendUnknown)
}

func TestStore_SaveLoad(t *testing.T) {
	s := attached(t)
	want := sampleSnapshot("camp")
	require.NoError(t, s.Save(want))

	got, err := s.Load("camp")
	require.NoError(t, err)
	assert.Equal(t, want.ContainerID, got.ContainerID)
	assert.True(t, want.SavedAt.Equal(got.SavedAt))
	assert.Equal(t, want.Entries, got.Entries)
	assert.JSONEq(t, string(want.Extensions["metadata"]), string(got.Extensions["metadata"]))
}

func TestStore_Errors(t *testing.T) {
	s := attached(t)

	tests := []struct {
		name string
		run  func() error
		want error
	}{
		{"load missing", func() error { _, err := s.Load("nope"); return err }, types.ErrSnapshotNotFound},
		{"delete missing", func() error { return s.Delete("nope") }, types.ErrSnapshotNotFound},
		{"invalid name", func() error { return s.Save(sampleSnapshot("../etc")) }, types.ErrInvalidName},
		{"invalid snapshot", func() error {
			snap := sampleSnapshot("broken")
			snap.Entries[0].Stacks[0].Stack = 0
			return s.Save(snap)
		}, types.ErrInvalidSnapshot},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.run(), tt.want)
		})
	}
}

func TestStore_ListDelete(t *testing.T) {
	s := attached(t)
	for _, name := range []string{"tent", "attic", "cellar"} {
		require.NoError(t, s.Save(sampleSnapshot(name)))
	}
	// Replacing keeps a single copy.
	require.NoError(t, s.Save(sampleSnapshot("tent")))

	names, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"attic", "cellar", "tent"}, names)

	require.NoError(t, s.Delete("attic"))
	names, err = s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"cellar", "tent"}, names)
}

func TestStore_PersistsAcrossAttach(t *testing.T) {
	dir := t.TempDir()
	s := NewStore()
	require.NoError(t, s.Attach(testConfig(dir)))
	require.NoError(t, s.Save(sampleSnapshot("keep")))
	require.NoError(t, s.Detach())

	require.NoError(t, s.Attach(testConfig(dir)))
	defer s.Detach()
	got, err := s.Load("keep")
	require.NoError(t, err)
	assert.Len(t, got.Entries, 1)
}

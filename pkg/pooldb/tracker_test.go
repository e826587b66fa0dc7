package pooldb

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerPersistsEachDownload(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "pools.json"), nil)
	tracker := NewTracker(store, New())
	meta := &PoolRecord{ID: 3, Name: "Pool", Artist: "fox", Folder: "Pool by fox"}

	require.NoError(t, tracker.RecordDownload(meta, 30, 1, "1.png"))

	loaded, err := store.Load()
	require.NoError(t, err)
	rec, ok := loaded.Get(3)
	require.True(t, ok)
	assert.Equal(t, "Pool by fox", rec.Folder)
	assert.True(t, rec.Has(30))

	require.NoError(t, tracker.RecordDownload(meta, 31, 2, "2.png"))
	loaded, err = store.Load()
	require.NoError(t, err)
	rec, _ = loaded.Get(3)
	assert.Len(t, rec.Downloaded, 2)
	assert.Same(t, tracker.Database(), tracker.db)
}

func TestTrackerUpdate(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "pools.json"), nil)
	tracker := NewTracker(store, New())

	err := tracker.Update(func(db *Database) error { return errors.New("abort") })
	assert.EqualError(t, err, "abort")
	_, statErr := os.Stat(store.Path())
	assert.True(t, os.IsNotExist(statErr), "failed update must not save")

	require.NoError(t, tracker.Update(func(db *Database) error {
		db.Upsert(1, &PoolRecord{Name: "x", Folder: "x"})
		return nil
	}))
	_, statErr = os.Stat(store.Path())
	assert.NoError(t, statErr)
}

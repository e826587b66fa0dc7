package pooldb

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "github.com/biscuitvixen/e6-dl/pkg/errors"
)

func writeLegacyDB(t *testing.T, path string, statements ...string) {
	t.Helper()
	conn, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer conn.Close()

	schema := []string{
		`CREATE TABLE pools (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			artist TEXT,
			folder_path TEXT NOT NULL,
			post_count INTEGER,
			last_updated TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE downloaded_posts (
			post_id INTEGER,
			pool_id INTEGER,
			file_path TEXT NOT NULL,
			position INTEGER,
			downloaded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (post_id, pool_id)
		)`,
	}
	for _, stmt := range append(schema, statements...) {
		_, err := conn.Exec(stmt)
		require.NoError(t, err, stmt)
	}
}

func TestImportLegacy(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, LegacyFileName)
	writeLegacyDB(t, path,
		`INSERT INTO pools (id, name, artist, folder_path, post_count, last_updated)
			VALUES (10, 'First Pool', 'fox', 'First Pool by fox', 3, '2024-05-01 10:00:00')`,
		`INSERT INTO pools (id, name, artist, folder_path, post_count) VALUES (20, 'Second', NULL, 'Second by Unknown Artist', 1)`,
		`INSERT INTO downloaded_posts (post_id, pool_id, file_path, position, downloaded_at)
			VALUES (100, 10, 'First Pool by fox/1.png', 0, '2024-05-01 10:00:01')`,
		`INSERT INTO downloaded_posts (post_id, pool_id, file_path, position) VALUES (101, 10, 'First Pool by fox\2.jpg', 1)`,
		`INSERT INTO downloaded_posts (post_id, pool_id, file_path, position) VALUES (300, 20, 'Second by Unknown Artist/cover.gif', 0)`,
	)

	db := New()
	db.Upsert(20, &PoolRecord{Name: "Second", Folder: "Second by Unknown Artist", Downloaded: map[int]DownloadedPost{
		301: {Page: 2, File: "2.png"},
	}})

	stats, err := ImportLegacy(context.Background(), db, path, root)
	require.NoError(t, err)
	assert.Equal(t, ImportStats{Pools: 2, Posts: 3}, stats)
	assert.Equal(t, "2 pools, 3 posts", stats.String())

	first, ok := db.Get(10)
	require.True(t, ok)
	assert.Equal(t, "First Pool", first.Name)
	assert.Equal(t, "fox", first.Artist)
	assert.Equal(t, "First Pool by fox", first.Folder)
	assert.Equal(t, 2024, first.CreatedAt.Year())
	assert.Equal(t, DownloadedPost{Page: 1, File: "1.png", DownloadedAt: first.Downloaded[100].DownloadedAt}, first.Downloaded[100])
	assert.Equal(t, 2, first.Downloaded[101].Page)
	assert.Equal(t, "2.jpg", first.Downloaded[101].File)

	second, _ := db.Get(20)
	assert.Equal(t, map[int]bool{300: true, 301: true}, second.DownloadedIDs())
	assert.Equal(t, 1, second.Downloaded[300].Page, "page falls back to position")
}

func TestImportLegacyMissingFile(t *testing.T) {
	_, err := ImportLegacy(context.Background(), New(), filepath.Join(t.TempDir(), "nope.db"), ".")
	assert.True(t, errs.IsFilesystem(err))
}

func TestImportLegacyWrongSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "other.db")
	conn, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = conn.Exec(`CREATE TABLE unrelated (x INTEGER)`)
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	_, err = ImportLegacy(context.Background(), New(), path, ".")
	assert.Equal(t, errs.ErrorTypeParsing, errs.TypeOf(err))
}

func TestRelativeTo(t *testing.T) {
	root := t.TempDir()
	assert.Equal(t, "Pool by A", relativeTo(root, filepath.Join(root, "Pool by A")))
	assert.Equal(t, filepath.Join("a", "b"), relativeTo(root, `a\b`))

	outside := filepath.Join(filepath.Dir(root), "elsewhere")
	assert.Equal(t, outside, relativeTo(root, outside))
}

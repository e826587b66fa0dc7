package pooldb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite" // SQLite driver

	errs "github.com/biscuitvixen/e6-dl/pkg/errors"
)

// LegacyFileName is the SQLite database the previous version kept in the
// download directory
const LegacyFileName = "e6dl_downloads.db"

// ImportStats summarizes a legacy import
type ImportStats struct {
	Pools int
	Posts int
}

type legacyPool struct {
	id          int
	name        string
	artist      sql.NullString
	folderPath  string
	lastUpdated sql.NullString
}

// ImportLegacy merges the pools and downloaded posts of a SQLite database
// written by the previous version into db. Paths stored in it are taken
// relative to root. The SQLite file is opened read-only.
func ImportLegacy(ctx context.Context, db *Database, sqlitePath, root string) (ImportStats, error) {
	var stats ImportStats

	if _, err := os.Stat(sqlitePath); err != nil {
		return stats, errs.Filesystem(err, "legacy database %s not found", sqlitePath)
	}

	conn, err := sql.Open("sqlite", "file:"+sqlitePath+"?mode=ro")
	if err != nil {
		return stats, errs.Filesystem(err, "failed to open legacy database %s", sqlitePath)
	}
	defer conn.Close()
	conn.SetMaxOpenConns(1)

	if err := conn.PingContext(ctx); err != nil {
		return stats, errs.Filesystem(err, "failed to open legacy database %s", sqlitePath)
	}

	pools, err := readLegacyPools(ctx, conn)
	if err != nil {
		return stats, err
	}

	for _, lp := range pools {
		rec := &PoolRecord{
			Name:       lp.name,
			Artist:     lp.artist.String,
			Folder:     relativeTo(root, lp.folderPath),
			Downloaded: make(map[int]DownloadedPost),
		}
		if t, ok := parseSQLiteTime(lp.lastUpdated.String); ok {
			rec.CreatedAt = t
		}

		posts, err := readLegacyPosts(ctx, conn, lp.id)
		if err != nil {
			return stats, err
		}
		for postID, post := range posts {
			rec.Downloaded[postID] = post
		}

		db.Upsert(lp.id, rec)
		stats.Pools++
		stats.Posts += len(posts)
	}

	return stats, nil
}

func readLegacyPools(ctx context.Context, conn *sql.DB) ([]legacyPool, error) {
	rows, err := sq.Select("id", "name", "artist", "folder_path", "last_updated").
		From("pools").
		OrderBy("id").
		RunWith(conn).
		QueryContext(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeParsing, err, "failed to query legacy pools")
	}
	defer rows.Close()

	var pools []legacyPool
	for rows.Next() {
		var lp legacyPool
		if err := rows.Scan(&lp.id, &lp.name, &lp.artist, &lp.folderPath, &lp.lastUpdated); err != nil {
			return nil, errs.Wrap(errs.ErrorTypeParsing, err, "failed to read legacy pool row")
		}
		pools = append(pools, lp)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeParsing, err, "failed to read legacy pools")
	}
	return pools, nil
}

func readLegacyPosts(ctx context.Context, conn *sql.DB, poolID int) (map[int]DownloadedPost, error) {
	rows, err := sq.Select("post_id", "file_path", "position", "downloaded_at").
		From("downloaded_posts").
		Where(sq.Eq{"pool_id": poolID}).
		OrderBy("position").
		RunWith(conn).
		QueryContext(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeParsing, err, "failed to query legacy posts of pool %d", poolID)
	}
	defer rows.Close()

	posts := make(map[int]DownloadedPost)
	for rows.Next() {
		var (
			postID       int
			filePath     string
			position     sql.NullInt64
			downloadedAt sql.NullString
		)
		if err := rows.Scan(&postID, &filePath, &position, &downloadedAt); err != nil {
			return nil, errs.Wrap(errs.ErrorTypeParsing, err, "failed to read legacy post row")
		}

		file := filepath.Base(filepath.FromSlash(strings.ReplaceAll(filePath, `\`, "/")))
		post := DownloadedPost{File: file, Page: pageFromFile(file, position)}
		if t, ok := parseSQLiteTime(downloadedAt.String); ok {
			post.DownloadedAt = t
		}
		posts[postID] = post
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeParsing, err, "failed to read legacy posts")
	}
	return posts, nil
}

// pageFromFile prefers the page encoded in the file name ("7.png") and
// falls back to the stored position
func pageFromFile(file string, position sql.NullInt64) int {
	stem := strings.TrimSuffix(file, filepath.Ext(file))
	if page, err := strconv.Atoi(stem); err == nil && page > 0 {
		return page
	}
	if position.Valid {
		return int(position.Int64) + 1
	}
	return 0
}

func relativeTo(root, path string) string {
	path = filepath.FromSlash(strings.ReplaceAll(path, `\`, "/"))
	if !filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return path
	}
	rel, err := filepath.Rel(absRoot, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}

func parseSQLiteTime(value string) (time.Time, bool) {
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339Nano, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// String implements fmt.Stringer
func (s ImportStats) String() string {
	return fmt.Sprintf("%d pools, %d posts", s.Pools, s.Posts)
}

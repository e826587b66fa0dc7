package pooldb

import (
	"path/filepath"
	"sort"
	"time"
)

// FormatVersion is the current on-disk format of the pool database
const FormatVersion = 1

// Database maps pool IDs to what has been downloaded of them. It is owned
// by a single goroutine at a time; callers serialize mutations.
type Database struct {
	Version int                 `json:"version"`
	Pools   map[int]*PoolRecord `json:"pools"`
}

// PoolRecord is the local state of one downloaded pool
type PoolRecord struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Artist string `json:"artist"`
	// Folder is relative to the download root unless it is absolute
	Folder     string                 `json:"folder"`
	Downloaded map[int]DownloadedPost `json:"downloaded"`
	CreatedAt  time.Time              `json:"created_at"`
	UpdatedAt  time.Time              `json:"updated_at"`
}

// DownloadedPost remembers where a post was written
type DownloadedPost struct {
	Page         int       `json:"page"`
	File         string    `json:"file"`
	DownloadedAt time.Time `json:"downloaded_at"`
}

// New returns an empty database
func New() *Database {
	return &Database{Version: FormatVersion, Pools: make(map[int]*PoolRecord)}
}

// Get returns the record of a pool
func (d *Database) Get(poolID int) (*PoolRecord, bool) {
	rec, ok := d.Pools[poolID]
	return rec, ok
}

// PoolIDs returns all pool IDs in ascending order
func (d *Database) PoolIDs() []int {
	ids := make([]int, 0, len(d.Pools))
	for id := range d.Pools {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Upsert inserts rec or merges it into the existing record of poolID.
// Name and artist follow the most recent fetch, the folder of an existing
// record is kept and downloaded posts are merged.
func (d *Database) Upsert(poolID int, rec *PoolRecord) *PoolRecord {
	now := time.Now().UTC()

	existing, ok := d.Pools[poolID]
	if !ok {
		created := &PoolRecord{
			ID:         poolID,
			Name:       rec.Name,
			Artist:     rec.Artist,
			Folder:     rec.Folder,
			Downloaded: make(map[int]DownloadedPost, len(rec.Downloaded)),
			CreatedAt:  rec.CreatedAt,
			UpdatedAt:  now,
		}
		if created.CreatedAt.IsZero() {
			created.CreatedAt = now
		}
		for id, post := range rec.Downloaded {
			created.Downloaded[id] = post
		}
		d.Pools[poolID] = created
		return created
	}

	if rec.Name != "" {
		existing.Name = rec.Name
	}
	if rec.Artist != "" {
		existing.Artist = rec.Artist
	}
	if existing.Folder == "" {
		existing.Folder = rec.Folder
	}
	if existing.Downloaded == nil {
		existing.Downloaded = make(map[int]DownloadedPost, len(rec.Downloaded))
	}
	for id, post := range rec.Downloaded {
		existing.Downloaded[id] = post
	}
	existing.UpdatedAt = now
	return existing
}

// RecordDownload marks a post of an existing pool as downloaded
func (d *Database) RecordDownload(poolID, postID, page int, file string) {
	rec, ok := d.Pools[poolID]
	if !ok {
		return
	}
	if rec.Downloaded == nil {
		rec.Downloaded = make(map[int]DownloadedPost)
	}
	now := time.Now().UTC()
	rec.Downloaded[postID] = DownloadedPost{Page: page, File: file, DownloadedAt: now}
	rec.UpdatedAt = now
}

// Has reports whether a post was downloaded
func (r *PoolRecord) Has(postID int) bool {
	_, ok := r.Downloaded[postID]
	return ok
}

// DownloadedIDs returns the set of downloaded post IDs
func (r *PoolRecord) DownloadedIDs() map[int]bool {
	ids := make(map[int]bool, len(r.Downloaded))
	for id := range r.Downloaded {
		ids[id] = true
	}
	return ids
}

// Dir resolves the record's folder against the download root
func (r *PoolRecord) Dir(root string) string {
	if filepath.IsAbs(r.Folder) {
		return r.Folder
	}
	return filepath.Join(root, r.Folder)
}

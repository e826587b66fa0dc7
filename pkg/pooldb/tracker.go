package pooldb

import (
	"sync"
)

// Tracker applies download events to a database and saves it after every
// change
type Tracker struct {
	mu    sync.Mutex
	store *Store
	db    *Database
}

// NewTracker creates a tracker persisting db through store
func NewTracker(store *Store, db *Database) *Tracker {
	return &Tracker{store: store, db: db}
}

// Database returns the tracked database
func (t *Tracker) Database() *Database {
	return t.db
}

// RecordDownload creates or refreshes the pool record described by meta,
// marks the post as downloaded and saves the database
func (t *Tracker) RecordDownload(meta *PoolRecord, postID, page int, file string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.db.Upsert(meta.ID, &PoolRecord{Name: meta.Name, Artist: meta.Artist, Folder: meta.Folder})
	t.db.RecordDownload(meta.ID, postID, page, file)
	return t.store.Save(t.db)
}

// Update runs fn against the database and saves it afterwards
func (t *Tracker) Update(fn func(db *Database) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := fn(t.db); err != nil {
		return err
	}
	return t.store.Save(t.db)
}

package pooldb

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	errs "github.com/biscuitvixen/e6-dl/pkg/errors"
	"github.com/biscuitvixen/e6-dl/pkg/logger"
)

// Store loads and saves the database as a JSON file
type Store struct {
	path   string
	logger logger.Logger
}

// NewStore creates a store for the database file at path
func NewStore(path string, log logger.Logger) *Store {
	if log == nil {
		log = logger.Nop()
	}
	return &Store{path: path, logger: log.WithField("database", path)}
}

// Path returns the database file location
func (s *Store) Path() string {
	return s.path
}

// Load reads the database. A missing file yields an empty database. An
// unreadable file also yields an empty, usable database together with a
// corrupt_database error the caller should report as a warning; the bad
// file is kept next to the original with a .corrupt suffix.
func (s *Store) Load() (*Database, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Debug("No pool database yet, starting empty")
			return New(), nil
		}
		return nil, errs.Filesystem(err, "failed to read pool database %s", s.path)
	}

	db, decodeErr := decode(data)
	if decodeErr == nil {
		s.logger.DebugWithFields("Pool database loaded", map[string]interface{}{
			"pools": len(db.Pools),
		})
		return db, nil
	}

	corruptErr := errs.CorruptDatabase(decodeErr, s.path)
	backup := s.path + ".corrupt"
	if err := os.Rename(s.path, backup); err != nil {
		s.logger.WithError(err).Warn("Failed to move corrupt pool database aside")
	} else {
		s.logger.WithField("backup", backup).Warn("Pool database is corrupt, starting empty")
	}
	return New(), corruptErr
}

func decode(data []byte) (*Database, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("file is empty")
	}

	var db Database
	if err := json.Unmarshal(data, &db); err != nil {
		return nil, err
	}
	if db.Version > FormatVersion {
		return nil, fmt.Errorf("unsupported database version %d", db.Version)
	}
	if db.Pools == nil {
		db.Pools = make(map[int]*PoolRecord)
	}
	for id, rec := range db.Pools {
		if rec == nil {
			delete(db.Pools, id)
			continue
		}
		rec.ID = id
		if rec.Downloaded == nil {
			rec.Downloaded = make(map[int]DownloadedPost)
		}
	}
	db.Version = FormatVersion
	return &db, nil
}

// Save writes the database atomically
func (s *Store) Save(db *Database) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errs.Filesystem(err, "failed to create database directory %s", dir)
	}

	data, err := json.MarshalIndent(db, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode pool database: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return errs.Filesystem(err, "failed to create temporary database file")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errs.Filesystem(err, "failed to write pool database")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errs.Filesystem(err, "failed to sync pool database")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errs.Filesystem(err, "failed to close pool database")
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return errs.Filesystem(err, "failed to replace pool database")
	}

	s.logger.DebugWithFields("Pool database saved", map[string]interface{}{
		"pools": len(db.Pools),
	})
	return nil
}

// Verify drops downloaded entries whose file is gone from disk so they are
// downloaded again. It returns the dropped post IDs per pool.
func Verify(db *Database, root string, log logger.Logger) map[int][]int {
	if log == nil {
		log = logger.Nop()
	}

	dropped := make(map[int][]int)
	for _, poolID := range db.PoolIDs() {
		rec := db.Pools[poolID]
		dir := rec.Dir(root)
		for postID, post := range rec.Downloaded {
			if _, err := os.Stat(filepath.Join(dir, post.File)); err == nil {
				continue
			}
			delete(rec.Downloaded, postID)
			dropped[poolID] = append(dropped[poolID], postID)
			log.WithFields(map[string]interface{}{
				"pool_id": poolID,
				"post_id": postID,
				"file":    post.File,
			}).Info("Removed record of missing file")
		}
		sort.Ints(dropped[poolID])
	}
	return dropped
}

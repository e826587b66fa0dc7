package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	errs "github.com/biscuitvixen/e6-dl/pkg/errors"
)

// forbiddenChars are removed from folder names so they are valid on Windows too
const forbiddenChars = `<>:"/\?*|`

// SanitizeFilename removes characters that are not allowed in file names
func SanitizeFilename(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		if strings.ContainsRune(forbiddenChars, r) || r < 0x20 {
			return -1
		}
		return r
	}, name)
	return strings.TrimSpace(cleaned)
}

// FolderName returns the folder a pool is stored in: "{Pool Name} by {Artist}"
func FolderName(poolName, artist string) string {
	name := SanitizeFilename(fmt.Sprintf("%s by %s", poolName, artist))
	if name == "" || name == "." || name == ".." {
		return "Untitled Pool"
	}
	return name
}

// Manager handles the files of a single pool folder
type Manager struct {
	root   string
	folder string
	dir    string
	mu     sync.Mutex
}

// NewManager creates the pool folder under root if it does not exist. An
// absolute folder is used as is.
func NewManager(root, folder string) (*Manager, error) {
	dir := filepath.Join(root, folder)
	if filepath.IsAbs(folder) {
		dir = folder
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errs.Filesystem(err, "failed to create pool folder %s", dir)
	}

	return &Manager{root: root, folder: folder, dir: dir}, nil
}

// Dir returns the absolute or root-relative path of the pool folder
func (m *Manager) Dir() string {
	return m.dir
}

// Folder returns the folder name relative to the download root
func (m *Manager) Folder() string {
	return m.folder
}

// Path returns the path of a file inside the pool folder
func (m *Manager) Path(filename string) string {
	return filepath.Join(m.dir, filename)
}

// Exists reports whether a file exists in the pool folder
func (m *Manager) Exists(filename string) bool {
	_, err := os.Stat(m.Path(filename))
	return err == nil
}

// ShortcutName returns the file name of the folder's internet shortcut
func (m *Manager) ShortcutName() string {
	return filepath.Base(m.folder) + ".url"
}

// WriteShortcut writes an internet shortcut pointing at url unless one
// already exists. It reports whether a file was written.
func (m *Manager) WriteShortcut(url string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	path := m.Path(m.ShortcutName())
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		return false, errs.Filesystem(err, "failed to create shortcut %s", path)
	}

	_, err = fmt.Fprintf(file, "[InternetShortcut]\nURL=%s\n", url)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return false, errs.Filesystem(err, "failed to write shortcut %s", path)
	}
	return true, nil
}

// SaveMedia streams r into filename inside the pool folder. The data is
// written to a temporary file first and renamed into place, so a partial
// download never shows up under its final name.
func (m *Manager) SaveMedia(r io.Reader, filename string) (int64, error) {
	path := m.Path(filename)

	tmp, err := os.CreateTemp(m.dir, ".e6dl-*.part")
	if err != nil {
		return 0, errs.Filesystem(err, "failed to create temporary file in %s", m.dir)
	}
	tmpName := tmp.Name()

	written, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		os.Remove(tmpName)
		// read errors come from the network side of the copy
		if _, ok := err.(*os.PathError); ok {
			return 0, errs.Filesystem(err, "failed to write %s", path)
		}
		return 0, errs.Network(err, "failed to download %s", filename)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return 0, errs.Filesystem(err, "failed to sync %s", path)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return 0, errs.Filesystem(err, "failed to close %s", path)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return 0, errs.Filesystem(err, "failed to move %s into place", path)
	}

	return written, nil
}

// Move renames one file inside the pool folder
type Move struct {
	From string
	To   string
}

// Renumber applies a set of renames that may overlap, such as swapping
// 2.png and 3.png. Files are first moved to temporary names and then to
// their targets. Sources that no longer exist are skipped. It returns the
// moves that were applied.
func (m *Manager) Renumber(moves []Move) ([]Move, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sources := make(map[string]bool, len(moves))
	var pending []Move
	for _, mv := range moves {
		if mv.From == mv.To {
			continue
		}
		if _, err := os.Stat(m.Path(mv.From)); err != nil {
			continue
		}
		sources[mv.From] = true
		pending = append(pending, mv)
	}

	targets := make(map[string]bool, len(pending))
	for _, mv := range pending {
		if targets[mv.To] {
			return nil, errs.New(errs.ErrorTypeFilesystem, fmt.Sprintf("renumber: two files would be moved to %s", mv.To))
		}
		targets[mv.To] = true
		if !sources[mv.To] && m.Exists(mv.To) {
			return nil, errs.New(errs.ErrorTypeFilesystem, fmt.Sprintf("renumber: %s already exists", m.Path(mv.To)))
		}
	}

	staged := make([]string, len(pending))
	for i, mv := range pending {
		staged[i] = fmt.Sprintf(".e6dl-renumber-%d-%s", i, mv.From)
		if err := os.Rename(m.Path(mv.From), m.Path(staged[i])); err != nil {
			for j := i - 1; j >= 0; j-- {
				os.Rename(m.Path(staged[j]), m.Path(pending[j].From))
			}
			return nil, errs.Filesystem(err, "renumber: failed to stage %s", mv.From)
		}
	}

	applied := make([]Move, 0, len(pending))
	for i, mv := range pending {
		if err := os.Rename(m.Path(staged[i]), m.Path(mv.To)); err != nil {
			return applied, errs.Filesystem(err, "renumber: failed to move %s to %s (staged as %s)", mv.From, mv.To, staged[i])
		}
		applied = append(applied, mv)
	}

	return applied, nil
}

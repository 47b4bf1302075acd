// Package session persists task tree snapshots so an interrupted
// assessment can resume where it stopped.
package session

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"specter/internal/logging"
	"specter/internal/tree"
)

const (
	snapshotPrefix = "ptt_state_"
	snapshotSuffix = ".json"
	timestampForm  = "20060102_150405"
)

// Store reads and writes snapshots under one directory, conventionally
// the reports directory so state and reports travel together.
type Store struct {
	dir string
}

// NewStore creates a snapshot store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the snapshot directory.
func (s *Store) Dir() string { return s.dir }

// Snapshot describes one saved state file.
type Snapshot struct {
	Path    string
	SavedAt time.Time
	Size    int64
}

// SaveSnapshot writes the tree to a timestamped file and returns its
// path. The write goes to a temp sibling first and is renamed into
// place, so a crash mid-write never leaves a truncated snapshot.
func (s *Store) SaveSnapshot(ptt *tree.TaskTree) (string, error) {
	data, err := ptt.Snapshot()
	if err != nil {
		return "", fmt.Errorf("failed to serialize task tree: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	path := s.nextPath(time.Now())
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to finalize snapshot: %w", err)
	}

	logging.SessionDebug("saved snapshot %s (%d bytes)", path, len(data))
	return path, nil
}

// nextPath picks an unused timestamped filename. Saves within the
// same second get a numeric suffix instead of clobbering each other.
func (s *Store) nextPath(now time.Time) string {
	base := snapshotPrefix + now.Format(timestampForm)
	path := filepath.Join(s.dir, base+snapshotSuffix)
	for i := 2; ; i++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path
		}
		path = filepath.Join(s.dir, fmt.Sprintf("%s_%d%s", base, i, snapshotSuffix))
	}
}

// List returns the saved snapshots, newest first.
func (s *Store) List() ([]Snapshot, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read snapshot directory: %w", err)
	}

	var snapshots []Snapshot
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, snapshotPrefix) || !strings.HasSuffix(name, snapshotSuffix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		snapshots = append(snapshots, Snapshot{
			Path:    filepath.Join(s.dir, name),
			SavedAt: info.ModTime(),
			Size:    info.Size(),
		})
	}

	sort.Slice(snapshots, func(i, j int) bool {
		if !snapshots[i].SavedAt.Equal(snapshots[j].SavedAt) {
			return snapshots[i].SavedAt.After(snapshots[j].SavedAt)
		}
		return snapshots[i].Path > snapshots[j].Path
	})
	return snapshots, nil
}

// Load reads one snapshot file back into a task tree.
func (s *Store) Load(path string) (*tree.TaskTree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	ptt, err := tree.Load(data)
	if err != nil {
		logging.SessionError("snapshot %s is unusable: %v", path, err)
		return nil, fmt.Errorf("snapshot %s: %w", path, err)
	}
	return ptt, nil
}

// LoadLatest restores the most recent snapshot.
func (s *Store) LoadLatest() (*tree.TaskTree, string, error) {
	snapshots, err := s.List()
	if err != nil {
		return nil, "", err
	}
	if len(snapshots) == 0 {
		return nil, "", fmt.Errorf("no snapshots found in %s", s.dir)
	}
	ptt, err := s.Load(snapshots[0].Path)
	if err != nil {
		return nil, "", err
	}
	return ptt, snapshots[0].Path, nil
}

// internal/metadata/log.go
package metadata

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"

	"codeharvest/internal/model"
)

// Store is the JSON metadata log on disk, the system of record for harvested
// files. Reads tolerate a missing or corrupt file by returning an empty log;
// writes go through a temp file and rename so a crash never truncates it.
type Store struct {
	path   string
	logger *slog.Logger
}

func NewStore(path string, logger *slog.Logger) *Store {
	return &Store{path: path, logger: logger}
}

func (s *Store) Path() string {
	return s.path
}

// Load reads the whole log. Any failure logs a warning and yields an empty
// slice, matching the semantics of a fresh data directory.
func (s *Store) Load() []model.FileRecord {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("metadata log unreadable", "path", s.path, "error", err)
		}
		return []model.FileRecord{}
	}
	var records []model.FileRecord
	if err := json.Unmarshal(data, &records); err != nil {
		s.logger.Warn("metadata log corrupt, starting empty", "path", s.path, "error", err)
		return []model.FileRecord{}
	}
	if records == nil {
		records = []model.FileRecord{}
	}
	return records
}

// Save writes the whole log atomically as indented JSON. A nil slice is
// written as [] so the file is always a JSON array.
func (s *Store) Save(records []model.FileRecord) error {
	if records == nil {
		records = []model.FileRecord{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Append loads the log, appends one record and saves it back.
func (s *Store) Append(rec model.FileRecord) error {
	records := s.Load()
	return s.Save(append(records, rec))
}

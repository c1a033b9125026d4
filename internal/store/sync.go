// internal/store/sync.go
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"codeharvest/internal/model"
)

// ConflictPolicy controls what happens when an imported record collides with
// an existing file row on (repo_id, path).
type ConflictPolicy int

const (
	// KeepExisting leaves the stored row untouched, preserving manual edits
	// such as tags metadata added through the API.
	KeepExisting ConflictPolicy = iota
	// Overwrite replaces the stored measurements with the log's.
	Overwrite
)

func ParseConflictPolicy(s string) (ConflictPolicy, error) {
	switch s {
	case "keep", "":
		return KeepExisting, nil
	case "overwrite":
		return Overwrite, nil
	}
	return KeepExisting, fmt.Errorf("unknown conflict policy %q, want keep or overwrite", s)
}

func (p ConflictPolicy) String() string {
	if p == Overwrite {
		return "overwrite"
	}
	return "keep"
}

func suitabilityToBool(s model.Suitability) *bool {
	switch s {
	case model.Suitable:
		b := true
		return &b
	case model.Unsuitable:
		b := false
		return &b
	}
	return nil
}

// ImportFromLog mirrors the metadata log into the relational store inside one
// transaction. Records without a repository full name are skipped. Returns the
// number of repository and file rows written.
func (s *Store) ImportFromLog(ctx context.Context, records []model.FileRecord, policy ConflictPolicy) (int64, int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	var repoRows, fileRows int64
	repoIDs := make(map[string]int64)

	for _, rec := range records {
		if rec.RepoFullName == "" {
			s.logger.Warn("skipping record without repository", "file", rec.FilePath)
			continue
		}

		repoID, ok := repoIDs[rec.RepoFullName]
		if !ok {
			res, err := tx.ExecContext(ctx, s.rebind(`
				INSERT INTO repositories (name, full_name, url, stars, license, added_at)
				VALUES (?, ?, ?, ?, ?, ?)
				ON CONFLICT (full_name) DO NOTHING`),
				rec.RepoName, rec.RepoFullName, rec.RepoURL, rec.RepoStars, rec.RepoLicense,
				time.Now().UTC().Format(time.RFC3339))
			if err != nil {
				return 0, 0, fmt.Errorf("insert repository %s: %w", rec.RepoFullName, err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				repoRows += n
			}
			if err := tx.QueryRowContext(ctx, s.rebind(
				`SELECT id FROM repositories WHERE full_name = ?`), rec.RepoFullName).Scan(&repoID); err != nil {
				return 0, 0, fmt.Errorf("lookup repository %s: %w", rec.RepoFullName, err)
			}
			repoIDs[rec.RepoFullName] = repoID
		}

		query := `
			INSERT INTO files (repo_id, name, path, url, local_path, quality_score, code_lines,
			                   is_suitable, unsuitable_reason, complexity_avg, complexity_max,
			                   function_count, downloaded_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (repo_id, path) DO NOTHING`
		if policy == Overwrite {
			query = `
			INSERT INTO files (repo_id, name, path, url, local_path, quality_score, code_lines,
			                   is_suitable, unsuitable_reason, complexity_avg, complexity_max,
			                   function_count, downloaded_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (repo_id, path) DO UPDATE SET
				name = excluded.name,
				url = excluded.url,
				local_path = excluded.local_path,
				quality_score = excluded.quality_score,
				code_lines = excluded.code_lines,
				is_suitable = excluded.is_suitable,
				unsuitable_reason = excluded.unsuitable_reason,
				complexity_avg = excluded.complexity_avg,
				complexity_max = excluded.complexity_max,
				function_count = excluded.function_count,
				downloaded_at = excluded.downloaded_at`
		}
		res, err := tx.ExecContext(ctx, s.rebind(query),
			repoID, rec.FileName, rec.FilePath, rec.FileURL, rec.LocalPath,
			rec.QualityScore, rec.CodeLines, suitabilityToBool(rec.IsSuitable),
			rec.UnsuitableReason, rec.Complexity.AvgComplexity, rec.Complexity.MaxComplexity,
			rec.Complexity.FunctionCount, rec.DownloadedAt)
		if err != nil {
			return 0, 0, fmt.Errorf("insert file %s/%s: %w", rec.RepoFullName, rec.FilePath, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			fileRows += n
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("commit import: %w", err)
	}
	return repoRows, fileRows, nil
}

// ExportToLog reads every file row joined with its repository back into the
// flat log shape, in insertion order.
func (s *Store) ExportToLog(ctx context.Context) ([]model.FileRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.name, r.full_name, r.url, r.stars, r.license,
		       f.name, f.path, f.url, f.local_path, f.quality_score, f.code_lines,
		       f.is_suitable, f.unsuitable_reason, f.complexity_avg, f.complexity_max,
		       f.function_count, f.downloaded_at
		FROM files f
		JOIN repositories r ON r.id = f.repo_id
		ORDER BY f.id`)
	if err != nil {
		return nil, fmt.Errorf("export files: %w", err)
	}
	defer rows.Close()

	records := []model.FileRecord{}
	for rows.Next() {
		var rec model.FileRecord
		var repoURL, fileURL, localPath, downloadedAt sql.NullString
		var suitable sql.NullBool
		var score sql.NullFloat64
		if err := rows.Scan(&rec.RepoName, &rec.RepoFullName, &repoURL, &rec.RepoStars,
			&rec.RepoLicense, &rec.FileName, &rec.FilePath, &fileURL, &localPath,
			&score, &rec.CodeLines, &suitable, &rec.UnsuitableReason,
			&rec.Complexity.AvgComplexity, &rec.Complexity.MaxComplexity,
			&rec.Complexity.FunctionCount, &downloadedAt); err != nil {
			return nil, fmt.Errorf("scan file row: %w", err)
		}
		rec.RepoURL = repoURL.String
		rec.FileURL = fileURL.String
		rec.LocalPath = localPath.String
		rec.DownloadedAt = downloadedAt.String
		if score.Valid {
			rec.QualityScore = &score.Float64
		}
		if suitable.Valid {
			rec.IsSuitable = model.SuitabilityFromBool(&suitable.Bool)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// internal/store/search.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"codeharvest/internal/apperr"
	"codeharvest/internal/model"
)

// Filter narrows a file search. Zero values mean "no constraint"; Query is a
// case-sensitive substring match against file name, file path or repository
// short/full name; Tags matches files carrying at least one of the given tags.
type Filter struct {
	Query        string
	Tags         []string
	MinQuality   *float64
	SuitableOnly bool
	Limit        int
}

const defaultSearchLimit = 50

// SearchFiles returns file summaries matching the filter, best quality first
// with unscored files last.
func (s *Store) SearchFiles(ctx context.Context, f Filter) ([]model.FileSummary, error) {
	var b strings.Builder
	var args []any

	b.WriteString(`
		SELECT f.id, f.name, f.path, f.local_path, f.quality_score, f.code_lines,
		       f.is_suitable, r.full_name
		FROM files f
		JOIN repositories r ON r.id = f.repo_id`)
	if len(f.Tags) > 0 {
		b.WriteString(`
		JOIN file_tags ft ON ft.file_id = f.id
		JOIN tags t ON t.id = ft.tag_id`)
	}

	var conds []string
	if f.Query != "" {
		conds = append(conds, "("+s.containsExpr("f.name")+" OR "+s.containsExpr("f.path")+
			" OR "+s.containsExpr("r.name")+" OR "+s.containsExpr("r.full_name")+")")
		args = append(args, f.Query, f.Query, f.Query, f.Query)
	}
	if len(f.Tags) > 0 {
		conds = append(conds, "t.name IN (?"+strings.Repeat(", ?", len(f.Tags)-1)+")")
		for _, tag := range f.Tags {
			args = append(args, tag)
		}
	}
	if f.MinQuality != nil {
		conds = append(conds, "f.quality_score >= ?")
		args = append(args, *f.MinQuality)
	}
	if f.SuitableOnly {
		conds = append(conds, "f.is_suitable = ?")
		args = append(args, true)
	}
	if len(conds) > 0 {
		b.WriteString("\n\t\tWHERE " + strings.Join(conds, " AND "))
	}

	b.WriteString(`
		GROUP BY f.id, f.name, f.path, f.local_path, f.quality_score, f.code_lines,
		         f.is_suitable, r.full_name
		ORDER BY (f.quality_score IS NULL), f.quality_score DESC
		LIMIT ?`)
	limit := f.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, s.rebind(b.String()), args...)
	if err != nil {
		return nil, fmt.Errorf("search files: %w", err)
	}
	defer rows.Close()

	results := []model.FileSummary{}
	for rows.Next() {
		var fs model.FileSummary
		var localPath sql.NullString
		var score sql.NullFloat64
		var suitable sql.NullBool
		if err := rows.Scan(&fs.ID, &fs.Name, &fs.Path, &localPath, &score,
			&fs.CodeLines, &suitable, &fs.RepoFullName); err != nil {
			return nil, fmt.Errorf("scan search row: %w", err)
		}
		fs.LocalPath = localPath.String
		if score.Valid {
			fs.QualityScore = &score.Float64
		}
		if suitable.Valid {
			fs.IsSuitable = model.SuitabilityFromBool(&suitable.Bool)
		}
		results = append(results, fs)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range results {
		tags, err := s.FileTags(ctx, results[i].ID)
		if err != nil {
			return nil, err
		}
		results[i].Tags = tags
	}
	return results, nil
}

// GetFile returns the full view of one file row.
func (s *Store) GetFile(ctx context.Context, id int64) (model.FileDetail, error) {
	var d model.FileDetail
	var url, localPath, downloadedAt, repoURL sql.NullString
	var score sql.NullFloat64
	var suitable sql.NullBool
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT f.id, f.name, f.path, f.url, f.local_path, f.quality_score, f.code_lines,
		       f.is_suitable, f.unsuitable_reason, f.complexity_avg, f.complexity_max,
		       f.function_count, f.downloaded_at, r.full_name, r.url, r.license
		FROM files f
		JOIN repositories r ON r.id = f.repo_id
		WHERE f.id = ?`), id).Scan(
		&d.ID, &d.Name, &d.Path, &url, &localPath, &score, &d.CodeLines,
		&suitable, &d.UnsuitableReason, &d.Complexity.AvgComplexity,
		&d.Complexity.MaxComplexity, &d.Complexity.FunctionCount, &downloadedAt,
		&d.RepoFullName, &repoURL, &d.RepoLicense)
	if errors.Is(err, sql.ErrNoRows) {
		return d, &apperr.ErrNotFound{Kind: "file", ID: id}
	}
	if err != nil {
		return d, fmt.Errorf("get file %d: %w", id, err)
	}
	d.URL = url.String
	d.LocalPath = localPath.String
	d.DownloadedAt = downloadedAt.String
	d.RepoURL = repoURL.String
	if score.Valid {
		d.QualityScore = &score.Float64
	}
	if suitable.Valid {
		d.IsSuitable = model.SuitabilityFromBool(&suitable.Bool)
	}
	d.Tags, err = s.FileTags(ctx, id)
	return d, err
}

// DeleteFile removes a file row and its tag links, returning the local path
// so callers can remove the file on disk as well.
func (s *Store) DeleteFile(ctx context.Context, id int64) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	var localPath sql.NullString
	err = tx.QueryRowContext(ctx, s.rebind(
		`SELECT local_path FROM files WHERE id = ?`), id).Scan(&localPath)
	if errors.Is(err, sql.ErrNoRows) {
		return "", &apperr.ErrNotFound{Kind: "file", ID: id}
	}
	if err != nil {
		return "", fmt.Errorf("delete file %d: %w", id, err)
	}

	if _, err := tx.ExecContext(ctx, s.rebind(
		`DELETE FROM file_tags WHERE file_id = ?`), id); err != nil {
		return "", fmt.Errorf("delete file tags %d: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, s.rebind(
		`DELETE FROM files WHERE id = ?`), id); err != nil {
		return "", fmt.Errorf("delete file %d: %w", id, err)
	}
	return localPath.String, tx.Commit()
}

// AddTag attaches a tag to a file, creating the tag row if needed. Adding a
// tag the file already has is a no-op.
func (s *Store) AddTag(ctx context.Context, fileID int64, tag string) error {
	var exists int
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT 1 FROM files WHERE id = ?`), fileID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return &apperr.ErrNotFound{Kind: "file", ID: fileID}
	}
	if err != nil {
		return fmt.Errorf("add tag: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO tags (name) VALUES (?) ON CONFLICT (name) DO NOTHING`), tag); err != nil {
		return fmt.Errorf("insert tag %q: %w", tag, err)
	}
	var tagID int64
	if err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT id FROM tags WHERE name = ?`), tag).Scan(&tagID); err != nil {
		return fmt.Errorf("lookup tag %q: %w", tag, err)
	}
	if _, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO file_tags (file_id, tag_id) VALUES (?, ?)
		 ON CONFLICT (file_id, tag_id) DO NOTHING`), fileID, tagID); err != nil {
		return fmt.Errorf("link tag %q to file %d: %w", tag, fileID, err)
	}
	return nil
}

// RemoveTag detaches a tag from a file. Removing a tag the file does not have
// is a no-op.
func (s *Store) RemoveTag(ctx context.Context, fileID int64, tag string) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		DELETE FROM file_tags
		WHERE file_id = ? AND tag_id IN (SELECT id FROM tags WHERE name = ?)`), fileID, tag)
	if err != nil {
		return fmt.Errorf("remove tag %q from file %d: %w", tag, fileID, err)
	}
	return nil
}

// FileTags lists a file's tags alphabetically.
func (s *Store) FileTags(ctx context.Context, fileID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT t.name FROM tags t
		JOIN file_tags ft ON ft.tag_id = t.id
		WHERE ft.file_id = ?
		ORDER BY t.name`), fileID)
	if err != nil {
		return nil, fmt.Errorf("list tags for file %d: %w", fileID, err)
	}
	defer rows.Close()

	tags := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tags = append(tags, name)
	}
	return tags, rows.Err()
}

// Statistics recomputes the aggregate view over the mirror.
func (s *Store) Statistics(ctx context.Context) (model.Statistics, error) {
	stats := model.Statistics{LicenseDistribution: map[string]int64{}}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM repositories),
			(SELECT COUNT(*) FROM files),
			(SELECT COUNT(*) FROM files WHERE is_suitable = TRUE),
			(SELECT COUNT(*) FROM tags),
			(SELECT COALESCE(AVG(quality_score), 0) FROM files WHERE quality_score IS NOT NULL),
			(SELECT COALESCE(AVG(code_lines), 0) FROM files)`).Scan(
		&stats.RepositoryCount, &stats.FileCount, &stats.SuitableFileCount,
		&stats.TagCount, &stats.AverageQualityScore, &stats.AverageCodeLines)
	if err != nil {
		return stats, fmt.Errorf("aggregate counts: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT COALESCE(license, 'Unknown'), COUNT(*)
		FROM repositories GROUP BY COALESCE(license, 'Unknown')`)
	if err != nil {
		return stats, fmt.Errorf("license distribution: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		var n int64
		if err := rows.Scan(&name, &n); err != nil {
			return stats, err
		}
		stats.LicenseDistribution[name] = n
	}
	if err := rows.Err(); err != nil {
		return stats, err
	}

	repoRows, err := s.db.QueryContext(ctx, `
		SELECT r.full_name, COUNT(f.id)
		FROM repositories r
		JOIN files f ON f.repo_id = r.id
		GROUP BY r.full_name
		ORDER BY COUNT(f.id) DESC, r.full_name
		LIMIT 10`)
	if err != nil {
		return stats, fmt.Errorf("top repositories: %w", err)
	}
	defer repoRows.Close()
	for repoRows.Next() {
		var rc model.RepoFileCount
		if err := repoRows.Scan(&rc.Name, &rc.FileCount); err != nil {
			return stats, err
		}
		stats.TopRepositories = append(stats.TopRepositories, rc)
	}
	if err := repoRows.Err(); err != nil {
		return stats, err
	}

	scoreRows, err := s.db.QueryContext(ctx,
		`SELECT quality_score FROM files WHERE quality_score IS NOT NULL`)
	if err != nil {
		return stats, fmt.Errorf("quality distribution: %w", err)
	}
	defer scoreRows.Close()
	for scoreRows.Next() {
		var score float64
		if err := scoreRows.Scan(&score); err != nil {
			return stats, err
		}
		bucket := int(score / 2)
		if bucket > 4 {
			bucket = 4
		}
		if bucket < 0 {
			bucket = 0
		}
		stats.QualityDistribution[bucket]++
	}
	if err := scoreRows.Err(); err != nil {
		return stats, err
	}

	tagRows, err := s.db.QueryContext(ctx, `
		SELECT t.name, COUNT(ft.file_id)
		FROM tags t
		JOIN file_tags ft ON ft.tag_id = t.id
		GROUP BY t.name
		ORDER BY COUNT(ft.file_id) DESC, t.name
		LIMIT 10`)
	if err != nil {
		return stats, fmt.Errorf("top tags: %w", err)
	}
	defer tagRows.Close()
	for tagRows.Next() {
		var tc model.TagCount
		if err := tagRows.Scan(&tc.Name, &tc.Count); err != nil {
			return stats, err
		}
		stats.TopTags = append(stats.TopTags, tc)
	}
	return stats, tagRows.Err()
}

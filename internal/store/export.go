// internal/store/export.go
package store

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

var csvHeader = []string{
	"repo_name", "repo_full_name", "repo_url", "repo_stars", "repo_license",
	"file_name", "file_path", "file_url", "local_path", "quality_score",
	"code_lines", "is_suitable", "unsuitable_reason", "avg_complexity",
	"max_complexity", "function_count", "downloaded_at",
}

// ExportCSV writes every file row as CSV, one line per file, and returns the
// number of rows written. Nullable fields serialize as empty cells.
func (s *Store) ExportCSV(ctx context.Context, w io.Writer) (int, error) {
	records, err := s.ExportToLog(ctx)
	if err != nil {
		return 0, err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return 0, fmt.Errorf("write csv header: %w", err)
	}
	for _, rec := range records {
		row := []string{
			rec.RepoName, rec.RepoFullName, rec.RepoURL, strconv.Itoa(rec.RepoStars),
			strDeref(rec.RepoLicense),
			rec.FileName, rec.FilePath, rec.FileURL, rec.LocalPath,
			floatDeref(rec.QualityScore),
			strconv.Itoa(rec.CodeLines),
			rec.IsSuitable.String(),
			strDeref(rec.UnsuitableReason),
			strconv.FormatFloat(rec.Complexity.AvgComplexity, 'f', -1, 64),
			strconv.Itoa(rec.Complexity.MaxComplexity),
			strconv.Itoa(rec.Complexity.FunctionCount),
			rec.DownloadedAt,
		}
		if err := cw.Write(row); err != nil {
			return 0, fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return len(records), cw.Error()
}

func strDeref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func floatDeref(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

// Backup copies the given files into a timestamped subdirectory of dir and
// returns its path. Missing sources are skipped; a typical call passes the
// sqlite database file and the metadata log.
func Backup(dir string, files ...string) (string, error) {
	dest := filepath.Join(dir, "backup_"+time.Now().UTC().Format("20060102_150405"))
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}
	for _, src := range files {
		if err := copyFile(src, filepath.Join(dest, filepath.Base(src))); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", fmt.Errorf("backup %s: %w", src, err)
		}
	}
	return dest, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}

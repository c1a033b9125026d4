// internal/model/models.go
package model

import (
	"bytes"
	"encoding/json"
)

// Suitability is the three-valued verdict of whether a harvested file meets
// the policy bar for downstream learning use. It serializes to the metadata
// log as true, false or null so the log stays compatible with earlier tooling.
type Suitability int

const (
	SuitabilityUnknown Suitability = iota
	Suitable
	Unsuitable
)

var jsonNull = []byte("null")

func (s Suitability) MarshalJSON() ([]byte, error) {
	switch s {
	case Suitable:
		return []byte("true"), nil
	case Unsuitable:
		return []byte("false"), nil
	default:
		return jsonNull, nil
	}
}

func (s *Suitability) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, jsonNull) {
		*s = SuitabilityUnknown
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err != nil {
		return err
	}
	if b {
		*s = Suitable
	} else {
		*s = Unsuitable
	}
	return nil
}

func (s Suitability) String() string {
	switch s {
	case Suitable:
		return "suitable"
	case Unsuitable:
		return "unsuitable"
	default:
		return "unknown"
	}
}

// SuitabilityFromBool converts a nullable boolean, as stored in the mirror,
// back to the ternary.
func SuitabilityFromBool(b *bool) Suitability {
	if b == nil {
		return SuitabilityUnknown
	}
	if *b {
		return Suitable
	}
	return Unsuitable
}

// Complexity summarizes the cyclomatic complexity of one source file.
type Complexity struct {
	AvgComplexity float64 `json:"avg_complexity"`
	MaxComplexity int     `json:"max_complexity"`
	FunctionCount int     `json:"function_count"`
}

// FileRecord is one entry of the JSON metadata log and the flat shape shared
// by both serialization paths (log and mirror). Identity is
// (RepoFullName, FilePath). Timestamps are ISO-8601 strings, matching the
// on-disk log format.
type FileRecord struct {
	RepoName         string      `json:"repo_name"`
	RepoFullName     string      `json:"repo_full_name"`
	RepoURL          string      `json:"repo_url"`
	RepoStars        int         `json:"repo_stars"`
	RepoLicense      *string     `json:"repo_license"`
	FileName         string      `json:"file_name"`
	FilePath         string      `json:"file_path"`
	FileURL          string      `json:"file_url"`
	LocalPath        string      `json:"local_path"`
	QualityScore     *float64    `json:"quality_score"`
	CodeLines        int         `json:"code_lines"`
	IsSuitable       Suitability `json:"is_suitable"`
	UnsuitableReason *string     `json:"unsuitable_reason"`
	Complexity       Complexity  `json:"complexity"`
	DownloadedAt     string      `json:"downloaded_at"`
}

// Repository is a repository listing as returned by the hosting service.
type Repository struct {
	Name        string  `json:"name"`
	FullName    string  `json:"full_name"`
	URL         string  `json:"url"`
	Description *string `json:"description"`
	Stars       int     `json:"stars"`
	Forks       int     `json:"forks"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
	License     *string `json:"license"`
}

// SourceFile is a source-file listing entry within a repository.
type SourceFile struct {
	Name string `json:"name"`
	Path string `json:"path"`
	URL  string `json:"url"`
	SHA  string `json:"sha"`
	Size int    `json:"size"`
}

// FileSummary is the search-result shape: a light view of a file row joined
// with its repository full name and annotated with its current tags.
type FileSummary struct {
	ID           int64       `json:"id"`
	Name         string      `json:"name"`
	Path         string      `json:"path"`
	LocalPath    string      `json:"local_path"`
	QualityScore *float64    `json:"quality_score"`
	CodeLines    int         `json:"code_lines"`
	IsSuitable   Suitability `json:"is_suitable"`
	RepoFullName string      `json:"repo_name"`
	Tags         []string    `json:"tags"`
}

// FileDetail is the full view of a single file row.
type FileDetail struct {
	FileSummary
	URL              string     `json:"url"`
	UnsuitableReason *string    `json:"unsuitable_reason"`
	Complexity       Complexity `json:"complexity"`
	DownloadedAt     string     `json:"downloaded_at"`
	RepoURL          string     `json:"repo_url"`
	RepoLicense      *string    `json:"repo_license"`
}

// RepoFileCount is a per-repository file count used by the statistics surface.
type RepoFileCount struct {
	Name      string `json:"name"`
	FileCount int64  `json:"file_count"`
}

// TagCount is a per-tag usage count used by the statistics surface.
type TagCount struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// Statistics is the aggregate view over the mirror, recomputed on demand.
type Statistics struct {
	RepositoryCount     int64            `json:"repository_count"`
	FileCount           int64            `json:"file_count"`
	SuitableFileCount   int64            `json:"suitable_file_count"`
	TagCount            int64            `json:"tag_count"`
	AverageQualityScore float64          `json:"average_quality_score"`
	AverageCodeLines    float64          `json:"average_code_lines"`
	LicenseDistribution map[string]int64 `json:"license_distribution"`
	TopRepositories     []RepoFileCount  `json:"repositories"`
	QualityDistribution [5]int64         `json:"quality_distribution"`
	TopTags             []TagCount       `json:"tags"`
}

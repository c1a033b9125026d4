// internal/crawler/crawler.go
package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"codeharvest/internal/apperr"
	"codeharvest/internal/metadata"
	"codeharvest/internal/model"
	"codeharvest/internal/quality"
)

// downloadConcurrency bounds parallel file downloads per crawl.
const downloadConcurrency = 5

// GitHubClient is the hosting-service surface the crawler needs.
type GitHubClient interface {
	SearchRepositories(ctx context.Context, query, sort, order string, maxResults int) ([]model.Repository, error)
	ListSourceFiles(ctx context.Context, fullName string, maxFiles int) ([]model.SourceFile, error)
	FetchFileContent(ctx context.Context, fullName, path string) ([]byte, error)
	GetRepository(ctx context.Context, owner, name string) (model.Repository, error)
}

// Result summarizes one crawl or filter run.
type Result struct {
	FilesDownloaded int
	SuitableFiles   int
	UnsuitableFiles int
}

// Crawler harvests source files from repositories, evaluates them and records
// each one in the metadata log.
type Crawler struct {
	gh         GitHubClient
	log        *metadata.Store
	classifier *quality.Classifier
	logger     *slog.Logger
	dataDir    string

	// Serializes metadata log appends across download workers.
	mu sync.Mutex
}

func New(gh GitHubClient, log *metadata.Store, classifier *quality.Classifier, dataDir string, logger *slog.Logger) *Crawler {
	return &Crawler{
		gh:         gh,
		log:        log,
		classifier: classifier,
		logger:     logger,
		dataDir:    dataDir,
	}
}

// Crawl searches for repositories matching query and harvests up to
// maxFilesPerRepo Python files from each of the top maxRepos results. A rate
// limit ends the crawl early with whatever was harvested so far.
func (c *Crawler) Crawl(ctx context.Context, query string, maxRepos, maxFilesPerRepo int) (Result, error) {
	var res Result

	repos, err := c.gh.SearchRepositories(ctx, query, "stars", "desc", maxRepos)
	if err != nil {
		var rateErr *apperr.ErrRateLimited
		if errors.As(err, &rateErr) {
			c.logger.Warn("repository search rate limited, stopping", "retry_after", rateErr.RetryAfter)
			return res, nil
		}
		return res, fmt.Errorf("search repositories: %w", err)
	}
	c.logger.Info("repositories found", "query", query, "count", len(repos))

	for _, repo := range repos {
		n, s, u, err := c.harvestRepository(ctx, repo, maxFilesPerRepo)
		res.FilesDownloaded += n
		res.SuitableFiles += s
		res.UnsuitableFiles += u
		if err != nil {
			var rateErr *apperr.ErrRateLimited
			if errors.As(err, &rateErr) {
				c.logger.Warn("crawl rate limited, stopping", "retry_after", rateErr.RetryAfter)
				return res, nil
			}
			return res, err
		}
	}
	return res, nil
}

// CrawlRepository harvests one repository given as owner/name or a full
// GitHub URL.
func (c *Crawler) CrawlRepository(ctx context.Context, target string, maxFiles int) (Result, error) {
	var res Result
	owner, name, err := ParseRepoURL(target)
	if err != nil {
		return res, err
	}

	repo, err := c.gh.GetRepository(ctx, owner, name)
	if err != nil {
		return res, fmt.Errorf("get repository %s/%s: %w", owner, name, err)
	}

	n, s, u, err := c.harvestRepository(ctx, repo, maxFiles)
	res.FilesDownloaded, res.SuitableFiles, res.UnsuitableFiles = n, s, u
	return res, err
}

func (c *Crawler) harvestRepository(ctx context.Context, repo model.Repository, maxFiles int) (downloaded, suitable, unsuitable int, err error) {
	files, err := c.gh.ListSourceFiles(ctx, repo.FullName, maxFiles)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("list files of %s: %w", repo.FullName, err)
	}
	c.logger.Info("harvesting repository", "repo", repo.FullName, "files", len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(downloadConcurrency)
	for _, file := range files {
		g.Go(func() error {
			rec, err := c.downloadAndEvaluate(gctx, repo, file)
			if err != nil {
				// A rate limit ends the harvest; anything else is one bad
				// file and the rest keep downloading.
				var rateErr *apperr.ErrRateLimited
				if errors.As(err, &rateErr) {
					return err
				}
				c.logger.Warn("skipping file", "repo", repo.FullName, "path", file.Path, "error", err)
				return nil
			}

			c.mu.Lock()
			defer c.mu.Unlock()
			if err := c.log.Append(rec); err != nil {
				return fmt.Errorf("record %s: %w", file.Path, err)
			}
			downloaded++
			switch rec.IsSuitable {
			case model.Suitable:
				suitable++
			case model.Unsuitable:
				unsuitable++
			}
			return nil
		})
	}
	err = g.Wait()
	return downloaded, suitable, unsuitable, err
}

func (c *Crawler) downloadAndEvaluate(ctx context.Context, repo model.Repository, file model.SourceFile) (model.FileRecord, error) {
	var rec model.FileRecord

	content, err := c.gh.FetchFileContent(ctx, repo.FullName, file.Path)
	if err != nil {
		return rec, fmt.Errorf("fetch %s/%s: %w", repo.FullName, file.Path, err)
	}

	localPath := c.localPath(repo.FullName, file.Path)
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return rec, err
	}
	if err := os.WriteFile(localPath, content, 0o644); err != nil {
		return rec, fmt.Errorf("save %s: %w", localPath, err)
	}

	verdict, reason, score, lines, cpx := c.classifier.Classify(ctx, localPath, repo.License)

	rec = model.FileRecord{
		RepoName:     repo.Name,
		RepoFullName: repo.FullName,
		RepoURL:      repo.URL,
		RepoStars:    repo.Stars,
		RepoLicense:  repo.License,
		FileName:     file.Name,
		FilePath:     file.Path,
		FileURL:      file.URL,
		LocalPath:    localPath,
		QualityScore: &score,
		CodeLines:    lines,
		IsSuitable:   verdict,
		Complexity:   cpx,
		DownloadedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if verdict != model.Suitable {
		rec.UnsuitableReason = &reason
	}
	if verdict == model.SuitabilityUnknown {
		rec.QualityScore = nil
	}
	return rec, nil
}

// localPath keeps one flat directory per repository; file base names that
// collide within a repository keep their path as a prefix.
func (c *Crawler) localPath(fullName, path string) string {
	dir := strings.ReplaceAll(fullName, "/", "_")
	base := strings.ReplaceAll(path, "/", "_")
	return filepath.Join(c.dataDir, dir, base)
}

// Filter re-runs classification over every record in the metadata log against
// the current thresholds and rewrites the log.
func (c *Crawler) Filter(ctx context.Context) (Result, error) {
	records := c.log.Load()
	var res Result

	for i := range records {
		verdict, reason, score, lines, cpx := c.classifier.Classify(ctx, records[i].LocalPath, records[i].RepoLicense)
		records[i].IsSuitable = verdict
		records[i].CodeLines = lines
		records[i].Complexity = cpx
		if verdict == model.SuitabilityUnknown {
			records[i].QualityScore = nil
		} else {
			records[i].QualityScore = &score
		}
		if verdict == model.Suitable {
			records[i].UnsuitableReason = nil
			res.SuitableFiles++
		} else {
			records[i].UnsuitableReason = &reason
			if verdict == model.Unsuitable {
				res.UnsuitableFiles++
			}
		}
	}

	if err := c.log.Save(records); err != nil {
		return res, fmt.Errorf("save metadata log: %w", err)
	}
	res.FilesDownloaded = len(records)
	return res, nil
}

// ParseRepoURL accepts either owner/name or a github.com repository URL.
func ParseRepoURL(raw string) (owner, name string, err error) {
	target := raw
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil || !strings.HasSuffix(u.Host, "github.com") {
			return "", "", &apperr.ErrInvalidRepoURL{URL: raw}
		}
		target = strings.Trim(u.Path, "/")
	}
	parts := strings.Split(target, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", &apperr.ErrInvalidRepoURL{URL: raw}
	}
	return parts[0], strings.TrimSuffix(parts[1], ".git"), nil
}

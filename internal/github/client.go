// internal/github/client.go
package github

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"

	"codeharvest/internal/apperr"
	"codeharvest/internal/model"
)

// maxRetries bounds attempts per API call, including the first one.
const maxRetries = 3

// Client is a wrapper around the go-github client.
type Client struct {
	gh     *github.Client
	logger *slog.Logger
}

// NewClient creates and configures a new Client instance. An empty token
// yields an unauthenticated client with the lower anonymous rate limit.
func NewClient(token string, logger *slog.Logger) *Client {
	if token == "" {
		return &Client{gh: github.NewClient(nil), logger: logger}
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(context.Background(), ts)
	return &Client{gh: github.NewClient(tc), logger: logger}
}

// withRetry runs call, retrying transient server errors and waiting out at
// most one rate-limit reset before giving up with ErrRateLimited.
func (c *Client) withRetry(ctx context.Context, call func() error) error {
	var waited bool
	for attempt := 1; ; attempt++ {
		err := call()
		if err == nil {
			return nil
		}

		if rle, ok := err.(*github.RateLimitError); ok {
			wait := time.Until(rle.Rate.Reset.Time)
			if wait < 0 {
				wait = 0
			}
			if waited {
				return &apperr.ErrRateLimited{RetryAfter: wait}
			}
			c.logger.Warn("rate limit hit, waiting for reset", "wait", wait)
			select {
			case <-time.After(wait + time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
			waited = true
			continue
		}

		if resp, ok := err.(*github.ErrorResponse); ok &&
			resp.Response != nil && resp.Response.StatusCode >= 500 && attempt < maxRetries {
			c.logger.Warn("transient API error, retrying", "attempt", attempt, "error", err)
			select {
			case <-time.After(time.Duration(attempt) * time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		return err
	}
}

// SearchRepositories runs a repository search and returns up to maxResults
// repositories, handling pagination transparently.
func (c *Client) SearchRepositories(ctx context.Context, query, sort, order string, maxResults int) ([]model.Repository, error) {
	var all []model.Repository

	opts := &github.SearchOptions{
		Sort:        sort,
		Order:       order,
		ListOptions: github.ListOptions{PerPage: 100},
	}
	if maxResults > 0 && maxResults < 100 {
		opts.PerPage = maxResults
	}

	for {
		c.logger.Debug("searching repositories", "query", query, "page", opts.Page)

		var result *github.RepositoriesSearchResult
		var resp *github.Response
		err := c.withRetry(ctx, func() error {
			var err error
			result, resp, err = c.gh.Search.Repositories(ctx, query, opts)
			return err
		})
		if err != nil {
			return nil, err
		}

		for _, repo := range result.Repositories {
			all = append(all, toInternalRepository(repo))
			if maxResults > 0 && len(all) >= maxResults {
				return all, nil
			}
		}

		if resp.NextPage == 0 {
			return all, nil
		}
		opts.Page = resp.NextPage
	}
}

// ListSourceFiles walks a repository's tree breadth-first and returns up to
// maxFiles Python files.
func (c *Client) ListSourceFiles(ctx context.Context, fullName string, maxFiles int) ([]model.SourceFile, error) {
	owner, name, err := SplitFullName(fullName)
	if err != nil {
		return nil, err
	}

	var files []model.SourceFile
	queue := []string{""}

	for len(queue) > 0 {
		dir := queue[0]
		queue = queue[1:]

		var contents []*github.RepositoryContent
		err := c.withRetry(ctx, func() error {
			var err error
			_, contents, _, err = c.gh.Repositories.GetContents(ctx, owner, name, dir, nil)
			return err
		})
		if err != nil {
			return nil, err
		}

		for _, entry := range contents {
			switch entry.GetType() {
			case "dir":
				queue = append(queue, entry.GetPath())
			case "file":
				if !strings.HasSuffix(entry.GetName(), ".py") {
					continue
				}
				files = append(files, model.SourceFile{
					Name: entry.GetName(),
					Path: entry.GetPath(),
					URL:  entry.GetHTMLURL(),
					SHA:  entry.GetSHA(),
					Size: entry.GetSize(),
				})
				if maxFiles > 0 && len(files) >= maxFiles {
					return files, nil
				}
			}
		}
	}
	return files, nil
}

// FetchFileContent downloads one file's decoded content.
func (c *Client) FetchFileContent(ctx context.Context, fullName, path string) ([]byte, error) {
	owner, name, err := SplitFullName(fullName)
	if err != nil {
		return nil, err
	}

	var file *github.RepositoryContent
	err = c.withRetry(ctx, func() error {
		var err error
		file, _, _, err = c.gh.Repositories.GetContents(ctx, owner, name, path, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	if file == nil {
		return nil, fmt.Errorf("%s/%s is a directory, not a file", fullName, path)
	}

	content, err := file.GetContent()
	if err != nil {
		return nil, err
	}
	return []byte(content), nil
}

// GetRepository fetches one repository's details.
func (c *Client) GetRepository(ctx context.Context, owner, name string) (model.Repository, error) {
	var repo *github.Repository
	err := c.withRetry(ctx, func() error {
		var err error
		repo, _, err = c.gh.Repositories.Get(ctx, owner, name)
		return err
	})
	if err != nil {
		return model.Repository{}, err
	}
	return toInternalRepository(repo), nil
}

// SplitFullName splits "owner/name" into its parts.
func SplitFullName(fullName string) (string, string, error) {
	owner, name, ok := strings.Cut(fullName, "/")
	if !ok || owner == "" || name == "" {
		return "", "", &apperr.ErrInvalidRepoURL{URL: fullName}
	}
	return owner, name, nil
}

// toInternalRepository translates a github.Repository object to our internal
// model.Repository.
func toInternalRepository(r *github.Repository) model.Repository {
	repo := model.Repository{
		Name:        r.GetName(),
		FullName:    r.GetFullName(),
		URL:         r.GetHTMLURL(),
		Description: r.Description,
		Stars:       r.GetStargazersCount(),
		Forks:       r.GetForksCount(),
		CreatedAt:   r.GetCreatedAt().Format(time.RFC3339),
		UpdatedAt:   r.GetUpdatedAt().Format(time.RFC3339),
	}
	if r.License != nil {
		name := r.GetLicense().GetName()
		repo.License = &name
	}
	return repo
}

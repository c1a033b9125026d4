// internal/github/client_test.go
package github

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeharvest/internal/apperr"
)

// setupTestClient creates a httptest server and a github client pointing to it.
func setupTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := NewClient("", logger)

	// Override the client's internal http client to point to our test server.
	testClient, err := github.NewClient(server.Client()).WithEnterpriseURLs(server.URL, server.URL)
	require.NoError(t, err)
	client.gh = testClient

	return client, server
}

func rateLimitResponse(w http.ResponseWriter, reset time.Time) {
	w.Header().Set("X-RateLimit-Remaining", "0")
	w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", reset.Unix()))
	w.WriteHeader(http.StatusForbidden)
	fmt.Fprintln(w, `{"message": "API rate limit exceeded"}`)
}

func TestClient_Retry(t *testing.T) {
	t.Run("succeeds on first try", func(t *testing.T) {
		var requestCount int32
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&requestCount, 1)
			assert.Equal(t, "/api/v3/repos/test/repo", r.URL.Path)
			fmt.Fprintln(w, `{"id": 1, "name": "repo", "full_name": "test/repo", "owner": {"login": "test"}}`)
		})
		client, server := setupTestClient(t, handler)
		defer server.Close()

		repo, err := client.GetRepository(context.Background(), "test", "repo")

		require.NoError(t, err)
		assert.Equal(t, int32(1), atomic.LoadInt32(&requestCount))
		assert.Equal(t, "repo", repo.Name)
	})

	t.Run("retries on 503 server error and succeeds", func(t *testing.T) {
		var requestCount int32
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&requestCount, 1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			fmt.Fprintln(w, `{"id": 1, "name": "repo", "owner": {"login": "test"}}`)
		})
		client, server := setupTestClient(t, handler)
		defer server.Close()

		_, err := client.GetRepository(context.Background(), "test", "repo")

		require.NoError(t, err)
		assert.Equal(t, int32(2), atomic.LoadInt32(&requestCount), "should have made two requests")
	})

	t.Run("waits out one rate limit reset", func(t *testing.T) {
		var requestCount int32
		reset := time.Now().Add(50 * time.Millisecond)
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&requestCount, 1) == 1 {
				rateLimitResponse(w, reset)
				return
			}
			fmt.Fprintln(w, `{"id": 1, "name": "repo", "owner": {"login": "test"}}`)
		})
		client, server := setupTestClient(t, handler)
		defer server.Close()

		_, err := client.GetRepository(context.Background(), "test", "repo")

		require.NoError(t, err)
		assert.Equal(t, int32(2), atomic.LoadInt32(&requestCount))
	})

	t.Run("gives up after second rate limit", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rateLimitResponse(w, time.Now().Add(10*time.Millisecond))
		})
		client, server := setupTestClient(t, handler)
		defer server.Close()

		_, err := client.GetRepository(context.Background(), "test", "repo")

		var rateErr *apperr.ErrRateLimited
		assert.ErrorAs(t, err, &rateErr)
	})

	t.Run("fails after max retries on persistent server error", func(t *testing.T) {
		var requestCount int32
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&requestCount, 1)
			w.WriteHeader(http.StatusInternalServerError)
		})
		client, server := setupTestClient(t, handler)
		defer server.Close()

		_, err := client.GetRepository(context.Background(), "test", "repo")

		require.Error(t, err)
		var ghErr *github.ErrorResponse
		assert.ErrorAs(t, err, &ghErr)
		assert.Equal(t, int32(maxRetries), atomic.LoadInt32(&requestCount))
	})
}

func TestSearchRepositories(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/search/repositories", r.URL.Path)
		assert.Equal(t, "language:python stars:>100", r.URL.Query().Get("q"))
		fmt.Fprintln(w, `{
			"total_count": 2,
			"items": [
				{"name": "webapp", "full_name": "alice/webapp", "html_url": "https://github.com/alice/webapp",
				 "stargazers_count": 500, "license": {"name": "MIT License"}},
				{"name": "mltools", "full_name": "bob/mltools", "stargazers_count": 200}
			]
		}`)
	})
	client, server := setupTestClient(t, handler)
	defer server.Close()

	repos, err := client.SearchRepositories(context.Background(), "language:python stars:>100", "stars", "desc", 10)

	require.NoError(t, err)
	require.Len(t, repos, 2)
	assert.Equal(t, "alice/webapp", repos[0].FullName)
	require.NotNil(t, repos[0].License)
	assert.Equal(t, "MIT License", *repos[0].License)
	assert.Nil(t, repos[1].License)
}

func TestSearchRepositoriesHonorsMaxResults(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{
			"total_count": 3,
			"items": [
				{"name": "a", "full_name": "x/a"},
				{"name": "b", "full_name": "x/b"},
				{"name": "c", "full_name": "x/c"}
			]
		}`)
	})
	client, server := setupTestClient(t, handler)
	defer server.Close()

	repos, err := client.SearchRepositories(context.Background(), "q", "stars", "desc", 2)

	require.NoError(t, err)
	assert.Len(t, repos, 2)
}

func TestListSourceFiles(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v3/repos/alice/webapp/contents/":
			fmt.Fprintln(w, `[
				{"type": "file", "name": "main.py", "path": "main.py", "html_url": "u1", "sha": "s1", "size": 10},
				{"type": "file", "name": "README.md", "path": "README.md"},
				{"type": "dir", "name": "src", "path": "src"}
			]`)
		case "/api/v3/repos/alice/webapp/contents/src":
			fmt.Fprintln(w, `[
				{"type": "file", "name": "util.py", "path": "src/util.py", "html_url": "u2", "sha": "s2", "size": 20}
			]`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})
	client, server := setupTestClient(t, handler)
	defer server.Close()

	files, err := client.ListSourceFiles(context.Background(), "alice/webapp", 0)

	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "main.py", files[0].Name)
	assert.Equal(t, "src/util.py", files[1].Path)
}

func TestListSourceFilesLimit(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `[
			{"type": "file", "name": "a.py", "path": "a.py"},
			{"type": "file", "name": "b.py", "path": "b.py"}
		]`)
	})
	client, server := setupTestClient(t, handler)
	defer server.Close()

	files, err := client.ListSourceFiles(context.Background(), "alice/webapp", 1)

	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestFetchFileContent(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte("print('hello')\n"))
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"type": "file", "name": "main.py", "path": "main.py", "encoding": "base64", "content": %q}`, encoded)
	})
	client, server := setupTestClient(t, handler)
	defer server.Close()

	content, err := client.FetchFileContent(context.Background(), "alice/webapp", "main.py")

	require.NoError(t, err)
	assert.Equal(t, "print('hello')\n", string(content))
}

func TestSplitFullName(t *testing.T) {
	owner, name, err := SplitFullName("alice/webapp")
	require.NoError(t, err)
	assert.Equal(t, "alice", owner)
	assert.Equal(t, "webapp", name)

	for _, bad := range []string{"", "alice", "/webapp", "alice/"} {
		_, _, err := SplitFullName(bad)
		var invalid *apperr.ErrInvalidRepoURL
		assert.ErrorAs(t, err, &invalid, bad)
	}
}

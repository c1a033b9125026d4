// internal/api/handler_test.go
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeharvest/internal/crawler"
	"codeharvest/internal/jobs"
	"codeharvest/internal/metadata"
	"codeharvest/internal/model"
	"codeharvest/internal/quality"
	"codeharvest/internal/store"
)

// stubGitHub serves one repository with one file for crawl tests.
type stubGitHub struct{}

func (stubGitHub) SearchRepositories(ctx context.Context, query, sort, order string, maxResults int) ([]model.Repository, error) {
	return []model.Repository{{Name: "webapp", FullName: "alice/webapp", Stars: 10}}, nil
}

func (stubGitHub) ListSourceFiles(ctx context.Context, fullName string, maxFiles int) ([]model.SourceFile, error) {
	return []model.SourceFile{{Name: "app.py", Path: "app.py"}}, nil
}

func (stubGitHub) FetchFileContent(ctx context.Context, fullName, path string) ([]byte, error) {
	return []byte("x = 1\ny = 2\n"), nil
}

func (stubGitHub) GetRepository(ctx context.Context, owner, name string) (model.Repository, error) {
	return model.Repository{Name: name, FullName: owner + "/" + name}, nil
}

type stubRunner struct{}

func (stubRunner) LookPath(name string) (string, error) { return "/usr/bin/" + name, nil }

func (stubRunner) Run(_ context.Context, name string, _ ...string) ([]byte, error) {
	if name == "pylint" {
		return []byte("Your code has been rated at 8.00/10\n"), nil
	}
	return []byte(`{"f.py": [{"complexity": 1}]}`), nil
}

type testEnv struct {
	server  *httptest.Server
	store   *store.Store
	meta    *metadata.Store
	dataDir string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dataDir := t.TempDir()

	st, err := store.Open(store.SQLiteBackend, filepath.Join(dataDir, "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	meta := metadata.NewStore(filepath.Join(dataDir, "metadata.json"), logger)
	eval := quality.NewEvaluator(stubRunner{}, logger)
	cls := quality.NewClassifier(eval, quality.Thresholds{
		MinQualityScore: 6.0, MinCodeLines: 1, MaxCodeLines: 1000,
	})
	cr := crawler.New(stubGitHub{}, meta, cls, dataDir, logger)
	registry := jobs.NewRegistry(logger)

	router := NewRouter(st, meta, cr, registry, store.KeepExisting, logger)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return &testEnv{server: server, store: st, meta: meta, dataDir: dataDir}
}

// seedFile loads one file row through the import path and returns its id.
func (e *testEnv) seedFile(t *testing.T, path string, score float64, content string) int64 {
	t.Helper()
	localPath := filepath.Join(e.dataDir, strings.ReplaceAll(path, "/", "_"))
	require.NoError(t, os.WriteFile(localPath, []byte(content), 0o644))

	rec := model.FileRecord{
		RepoName:     "webapp",
		RepoFullName: "alice/webapp",
		RepoURL:      "https://github.com/alice/webapp",
		FileName:     filepath.Base(path),
		FilePath:     path,
		LocalPath:    localPath,
		QualityScore: &score,
		CodeLines:    10,
		IsSuitable:   model.Suitable,
		DownloadedAt: "2024-03-01T10:00:00Z",
	}
	_, _, err := e.store.ImportFromLog(context.Background(), []model.FileRecord{rec}, store.KeepExisting)
	require.NoError(t, err)

	results := e.search(t, "q="+path)
	require.Len(t, results, 1)
	return results[0].ID
}

func (e *testEnv) search(t *testing.T, query string) []model.FileSummary {
	t.Helper()
	resp, err := http.Get(e.server.URL + "/v1/search?" + query)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var results []model.FileSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&results))
	return results
}

func (e *testEnv) do(t *testing.T, method, path string, body string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t)
	resp, err := http.Get(e.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSearchEndpoint(t *testing.T) {
	e := newTestEnv(t)
	e.seedFile(t, "src/app.py", 8.0, "x = 1\n")
	e.seedFile(t, "src/db.py", 4.0, "y = 2\n")

	results := e.search(t, "")
	assert.Len(t, results, 2)
	assert.Equal(t, 8.0, *results[0].QualityScore)

	results = e.search(t, "min_quality=6")
	assert.Len(t, results, 1)

	resp, err := http.Get(e.server.URL + "/v1/search?min_quality=eleven")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetFileEndpoint(t *testing.T) {
	e := newTestEnv(t)
	id := e.seedFile(t, "src/app.py", 8.0, "x = 1\n")

	resp := e.do(t, http.MethodGet, fmt.Sprintf("/v1/files/%d", id), "")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var detail model.FileDetail
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&detail))
	assert.Equal(t, "app.py", detail.Name)
	assert.Equal(t, "alice/webapp", detail.RepoFullName)

	missing := e.do(t, http.MethodGet, "/v1/files/9999", "")
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestFileContentRoundTrip(t *testing.T) {
	e := newTestEnv(t)
	id := e.seedFile(t, "src/app.py", 8.0, "x = 1\n")

	resp := e.do(t, http.MethodGet, fmt.Sprintf("/v1/files/%d/content", id), "")
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "x = 1\n", string(body))

	put := e.do(t, http.MethodPut, fmt.Sprintf("/v1/files/%d/content", id), "x = 42\n")
	put.Body.Close()
	require.Equal(t, http.StatusOK, put.StatusCode)

	resp = e.do(t, http.MethodGet, fmt.Sprintf("/v1/files/%d/content", id), "")
	body, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, "x = 42\n", string(body))
}

func TestDeleteFileEndpoint(t *testing.T) {
	e := newTestEnv(t)
	id := e.seedFile(t, "src/app.py", 8.0, "x = 1\n")
	localPath := filepath.Join(e.dataDir, "src_app.py")
	require.FileExists(t, localPath)

	resp := e.do(t, http.MethodDelete, fmt.Sprintf("/v1/files/%d", id), "")
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.NoFileExists(t, localPath)

	again := e.do(t, http.MethodDelete, fmt.Sprintf("/v1/files/%d", id), "")
	again.Body.Close()
	assert.Equal(t, http.StatusNotFound, again.StatusCode)
}

func TestTagEndpoints(t *testing.T) {
	e := newTestEnv(t)
	id := e.seedFile(t, "src/app.py", 8.0, "x = 1\n")

	resp := e.do(t, http.MethodPost, fmt.Sprintf("/v1/files/%d/tags", id), `{"tag": "web"}`)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var payload struct {
		Tags []string `json:"tags"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Equal(t, []string{"web"}, payload.Tags)

	results := e.search(t, "tags=web")
	assert.Len(t, results, 1)

	del := e.do(t, http.MethodDelete, fmt.Sprintf("/v1/files/%d/tags/web", id), "")
	del.Body.Close()
	require.Equal(t, http.StatusNoContent, del.StatusCode)

	assert.Empty(t, e.search(t, "tags=web"))

	bad := e.do(t, http.MethodPost, fmt.Sprintf("/v1/files/%d/tags", id), `{"tag": ""}`)
	bad.Body.Close()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestStatsEndpoint(t *testing.T) {
	e := newTestEnv(t)
	e.seedFile(t, "src/app.py", 8.0, "x = 1\n")

	resp, err := http.Get(e.server.URL + "/v1/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats model.Statistics
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, int64(1), stats.RepositoryCount)
	assert.Equal(t, int64(1), stats.FileCount)
}

func TestSyncEndpoint(t *testing.T) {
	e := newTestEnv(t)
	score := 7.0
	require.NoError(t, e.meta.Save([]model.FileRecord{{
		RepoName:     "webapp",
		RepoFullName: "alice/webapp",
		FileName:     "app.py",
		FilePath:     "app.py",
		QualityScore: &score,
		IsSuitable:   model.Suitable,
	}}))

	resp := e.do(t, http.MethodPost, "/v1/sync", "")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, float64(1), result["files_imported"])
	assert.Equal(t, "keep", result["conflict_policy"])

	// The log now reflects the merged store view.
	records := e.meta.Load()
	require.Len(t, records, 1)
	assert.Equal(t, "alice/webapp", records[0].RepoFullName)
}

func TestExportEndpoint(t *testing.T) {
	e := newTestEnv(t)
	e.seedFile(t, "src/app.py", 8.0, "x = 1\n")

	resp, err := http.Get(e.server.URL + "/v1/export?format=csv")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv", resp.Header.Get("Content-Type"))
	assert.Contains(t, string(body), "alice/webapp")

	resp, err = http.Get(e.server.URL + "/v1/export?format=json")
	require.NoError(t, err)
	defer resp.Body.Close()
	var records []model.FileRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&records))
	assert.Len(t, records, 1)

	bad, err := http.Get(e.server.URL + "/v1/export?format=xml")
	require.NoError(t, err)
	bad.Body.Close()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestCrawlEndpoint(t *testing.T) {
	e := newTestEnv(t)

	resp := e.do(t, http.MethodPost, "/v1/crawl", `{"query": "language:python", "max_repos": 1, "max_files": 1}`)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var job jobs.Job
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&job))
	assert.Equal(t, "language:python", job.Query)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		r := e.do(t, http.MethodGet, fmt.Sprintf("/v1/jobs/%d", job.ID), "")
		var current jobs.Job
		require.NoError(t, json.NewDecoder(r.Body).Decode(&current))
		r.Body.Close()
		if current.State == jobs.StateCompleted {
			assert.Equal(t, 1, current.FilesDownloaded)
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("crawl job never completed")
}

func TestCrawlEndpointRejectsBadRequests(t *testing.T) {
	e := newTestEnv(t)

	resp := e.do(t, http.MethodPost, "/v1/crawl", `{}`)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = e.do(t, http.MethodPost, "/v1/crawl", `{"query": "a", "repo": "b/c"}`)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = e.do(t, http.MethodPost, "/v1/crawl", `{"repo": "not-a-repo"}`)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestJobsEndpointUnknownJob(t *testing.T) {
	e := newTestEnv(t)
	resp := e.do(t, http.MethodGet, "/v1/jobs/99", "")
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

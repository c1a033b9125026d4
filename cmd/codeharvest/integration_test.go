//go:build integration

// cmd/codeharvest/integration_test.go
package main

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"codeharvest/internal/model"
	"codeharvest/internal/store"
)

func setupPostgresStore(ctx context.Context, t *testing.T) *store.Store {
	t.Helper()

	pgContainer, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("test-db"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, pgContainer.Terminate(ctx)) })

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	st, err := store.Open(store.PostgreSQLBackend, connStr,
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestPostgresStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	st := setupPostgresStore(ctx, t)

	score := 8.5
	license := "MIT License"
	rec := model.FileRecord{
		RepoName:     "webapp",
		RepoFullName: "alice/webapp",
		RepoURL:      "https://github.com/alice/webapp",
		RepoStars:    100,
		RepoLicense:  &license,
		FileName:     "app.py",
		FilePath:     "src/app.py",
		FileURL:      "https://github.com/alice/webapp/blob/main/src/app.py",
		LocalPath:    "collected_code/alice_webapp/src_app.py",
		QualityScore: &score,
		CodeLines:    40,
		IsSuitable:   model.Suitable,
		Complexity:   model.Complexity{AvgComplexity: 2.5, MaxComplexity: 5, FunctionCount: 4},
		DownloadedAt: "2024-03-01T10:00:00Z",
	}

	repos, files, err := st.ImportFromLog(ctx, []model.FileRecord{rec}, store.KeepExisting)
	require.NoError(t, err)
	assert.Equal(t, int64(1), repos)
	assert.Equal(t, int64(1), files)

	// Round trip preserves every field.
	out, err := st.ExportToLog(ctx)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, rec, out[0])

	// Conflict policies behave the same as on sqlite.
	updated := rec
	newScore := 2.0
	updated.QualityScore = &newScore
	_, n, err := st.ImportFromLog(ctx, []model.FileRecord{updated}, store.KeepExisting)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, _, err = st.ImportFromLog(ctx, []model.FileRecord{updated}, store.Overwrite)
	require.NoError(t, err)
	out, err = st.ExportToLog(ctx)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 2.0, *out[0].QualityScore)

	// Search, tags and statistics run on the postgres SQL variants.
	results, err := st.SearchFiles(ctx, store.Filter{Query: "app"})
	require.NoError(t, err)
	require.Len(t, results, 1)

	require.NoError(t, st.AddTag(ctx, results[0].ID, "web"))
	tagged, err := st.SearchFiles(ctx, store.Filter{Tags: []string{"web"}})
	require.NoError(t, err)
	require.Len(t, tagged, 1)
	assert.Equal(t, []string{"web"}, tagged[0].Tags)

	stats, err := st.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.RepositoryCount)
	assert.Equal(t, int64(1), stats.FileCount)
	assert.Equal(t, int64(1), stats.TagCount)
}

// internal/api/handler.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"codeharvest/internal/apperr"
	"codeharvest/internal/crawler"
	"codeharvest/internal/jobs"
	"codeharvest/internal/metadata"
	"codeharvest/internal/store"
)

// maxContentSize bounds PUT file content bodies.
const maxContentSize = 4 << 20

// Handler is the container for API dependencies.
type Handler struct {
	store    *store.Store
	meta     *metadata.Store
	crawler  *crawler.Crawler
	jobs     *jobs.Registry
	logger   *slog.Logger
	conflict store.ConflictPolicy
}

// NewRouter creates and configures a new chi router with all API routes.
func NewRouter(st *store.Store, meta *metadata.Store, cr *crawler.Crawler, registry *jobs.Registry, conflict store.ConflictPolicy, logger *slog.Logger) http.Handler {
	h := &Handler{
		store:    st,
		meta:     meta,
		crawler:  cr,
		jobs:     registry,
		logger:   logger,
		conflict: conflict,
	}

	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// API Routes
	r.Get("/health", h.healthCheck)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/search", h.searchFiles)
		r.Get("/stats", h.getStatistics)
		r.Get("/export", h.exportFiles)

		r.Route("/files/{id}", func(r chi.Router) {
			r.Get("/", h.getFile)
			r.Delete("/", h.deleteFile)
			r.Get("/content", h.getFileContent)
			r.Put("/content", h.updateFileContent)
			r.Post("/tags", h.addTag)
			r.Delete("/tags/{tag}", h.removeTag)
		})

		r.Post("/crawl", h.startCrawl)
		r.Get("/jobs", h.listJobs)
		r.Get("/jobs/{id}", h.getJob)
		r.Post("/sync", h.syncStore)
	})

	return r
}

// healthCheck is a simple health endpoint.
func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// searchFiles handles file search.
// GET /v1/search?q=&tags=&min_quality=&suitable_only=&limit=
func (h *Handler) searchFiles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.Filter{Query: q.Get("q")}

	if tags := q.Get("tags"); tags != "" {
		for _, tag := range strings.Split(tags, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				filter.Tags = append(filter.Tags, tag)
			}
		}
	}
	if raw := q.Get("min_quality"); raw != "" {
		min, err := strconv.ParseFloat(raw, 64)
		if err != nil || min < 0 || min > 10 {
			respondWithError(w, http.StatusBadRequest, "Invalid 'min_quality' parameter. Must be a number between 0 and 10.")
			return
		}
		filter.MinQuality = &min
	}
	if raw := q.Get("suitable_only"); raw != "" {
		suitable, err := strconv.ParseBool(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid 'suitable_only' parameter.")
			return
		}
		filter.SuitableOnly = suitable
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 || limit > 500 {
			respondWithError(w, http.StatusBadRequest, "Invalid 'limit' parameter. Must be an integer between 1 and 500.")
			return
		}
		filter.Limit = limit
	}

	results, err := h.store.SearchFiles(r.Context(), filter)
	if err != nil {
		h.logger.Error("search failed", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondWithJSON(w, http.StatusOK, results)
}

// getStatistics handles GET /v1/stats.
func (h *Handler) getStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Statistics(r.Context())
	if err != nil {
		h.logger.Error("statistics failed", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondWithJSON(w, http.StatusOK, stats)
}

func (h *Handler) fileID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondWithError(w, http.StatusBadRequest, "Invalid file id")
		return 0, false
	}
	return id, true
}

// getFile handles GET /v1/files/{id}.
func (h *Handler) getFile(w http.ResponseWriter, r *http.Request) {
	id, ok := h.fileID(w, r)
	if !ok {
		return
	}
	detail, err := h.store.GetFile(r.Context(), id)
	if err != nil {
		h.respondStoreError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, detail)
}

// getFileContent handles GET /v1/files/{id}/content, serving the local copy.
func (h *Handler) getFileContent(w http.ResponseWriter, r *http.Request) {
	id, ok := h.fileID(w, r)
	if !ok {
		return
	}
	detail, err := h.store.GetFile(r.Context(), id)
	if err != nil {
		h.respondStoreError(w, err)
		return
	}
	content, err := os.ReadFile(detail.LocalPath)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "File content not available on disk")
		return
	}
	w.Header().Set("Content-Type", "text/x-python")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content)
}

// updateFileContent handles PUT /v1/files/{id}/content, replacing the local
// copy. Measurements in the store are untouched until the next filter run.
func (h *Handler) updateFileContent(w http.ResponseWriter, r *http.Request) {
	id, ok := h.fileID(w, r)
	if !ok {
		return
	}
	detail, err := h.store.GetFile(r.Context(), id)
	if err != nil {
		h.respondStoreError(w, err)
		return
	}
	if detail.LocalPath == "" {
		respondWithError(w, http.StatusConflict, "File has no local copy")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxContentSize+1))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}
	if len(body) > maxContentSize {
		respondWithError(w, http.StatusRequestEntityTooLarge, "Content too large")
		return
	}
	if err := os.WriteFile(detail.LocalPath, body, 0o644); err != nil {
		h.logger.Error("write file content failed", "path", detail.LocalPath, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"id": id, "bytes": len(body)})
}

// deleteFile handles DELETE /v1/files/{id}, removing the row, its tag links
// and the local copy.
func (h *Handler) deleteFile(w http.ResponseWriter, r *http.Request) {
	id, ok := h.fileID(w, r)
	if !ok {
		return
	}
	localPath, err := h.store.DeleteFile(r.Context(), id)
	if err != nil {
		h.respondStoreError(w, err)
		return
	}
	if localPath != "" {
		if err := os.Remove(localPath); err != nil && !os.IsNotExist(err) {
			h.logger.Warn("local copy not removed", "path", localPath, "error", err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// addTag handles POST /v1/files/{id}/tags with body {"tag": "..."}.
func (h *Handler) addTag(w http.ResponseWriter, r *http.Request) {
	id, ok := h.fileID(w, r)
	if !ok {
		return
	}
	var payload struct {
		Tag string `json:"tag"`
	}
	if err := decodeJSON(r, &payload); err != nil || strings.TrimSpace(payload.Tag) == "" {
		respondWithError(w, http.StatusBadRequest, "Request body must be {\"tag\": \"name\"}")
		return
	}
	if err := h.store.AddTag(r.Context(), id, strings.TrimSpace(payload.Tag)); err != nil {
		h.respondStoreError(w, err)
		return
	}
	tags, err := h.store.FileTags(r.Context(), id)
	if err != nil {
		h.respondStoreError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"id": id, "tags": tags})
}

// removeTag handles DELETE /v1/files/{id}/tags/{tag}.
func (h *Handler) removeTag(w http.ResponseWriter, r *http.Request) {
	id, ok := h.fileID(w, r)
	if !ok {
		return
	}
	if err := h.store.RemoveTag(r.Context(), id, chi.URLParam(r, "tag")); err != nil {
		h.respondStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// startCrawl handles POST /v1/crawl with body
// {"query": "...", "max_repos": N, "max_files": N} or {"repo": "owner/name"}.
// It answers 202 with the tracking job, or 409 while a crawl is running.
func (h *Handler) startCrawl(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Query    string `json:"query"`
		Repo     string `json:"repo"`
		MaxRepos int    `json:"max_repos"`
		MaxFiles int    `json:"max_files"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if (payload.Query == "") == (payload.Repo == "") {
		respondWithError(w, http.StatusBadRequest, "Provide exactly one of 'query' or 'repo'")
		return
	}
	if payload.MaxRepos <= 0 {
		payload.MaxRepos = 5
	}
	if payload.MaxFiles <= 0 {
		payload.MaxFiles = 10
	}

	var run jobs.Runner
	label := payload.Query
	if payload.Repo != "" {
		label = payload.Repo
		if _, _, err := crawler.ParseRepoURL(payload.Repo); err != nil {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		run = func(ctx context.Context) (crawler.Result, error) {
			return h.crawler.CrawlRepository(ctx, payload.Repo, payload.MaxFiles)
		}
	} else {
		run = func(ctx context.Context) (crawler.Result, error) {
			return h.crawler.Crawl(ctx, payload.Query, payload.MaxRepos, payload.MaxFiles)
		}
	}

	// The job outlives this request.
	job, err := h.jobs.Enqueue(context.Background(), label, run)
	if errors.Is(err, jobs.ErrJobActive) {
		respondWithError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("enqueue crawl failed", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondWithJSON(w, http.StatusAccepted, job)
}

// listJobs handles GET /v1/jobs.
func (h *Handler) listJobs(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.jobs.List())
}

// getJob handles GET /v1/jobs/{id}.
func (h *Handler) getJob(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid job id")
		return
	}
	job, ok := h.jobs.Get(id)
	if !ok {
		respondWithError(w, http.StatusNotFound, "Job not found")
		return
	}
	respondWithJSON(w, http.StatusOK, job)
}

// syncStore handles POST /v1/sync: mirror the metadata log into the store,
// then write the merged view back to the log.
func (h *Handler) syncStore(w http.ResponseWriter, r *http.Request) {
	records := h.meta.Load()
	repos, files, err := h.store.ImportFromLog(r.Context(), records, h.conflict)
	if err != nil {
		h.logger.Error("import failed", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	merged, err := h.store.ExportToLog(r.Context())
	if err != nil {
		h.logger.Error("export failed", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if err := h.meta.Save(merged); err != nil {
		h.logger.Error("save metadata log failed", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{
		"repositories_imported": repos,
		"files_imported":        files,
		"log_records":           len(merged),
		"conflict_policy":       h.conflict.String(),
	})
}

// exportFiles handles GET /v1/export?format=csv|json.
func (h *Handler) exportFiles(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	switch format {
	case "", "json":
		records, err := h.store.ExportToLog(r.Context())
		if err != nil {
			h.logger.Error("export failed", "error", err)
			respondWithError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		respondWithJSON(w, http.StatusOK, records)
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="files.csv"`)
		if _, err := h.store.ExportCSV(r.Context(), w); err != nil {
			h.logger.Error("csv export failed", "error", err)
		}
	default:
		respondWithError(w, http.StatusBadRequest, "Invalid 'format' parameter. Must be csv or json.")
	}
}

func (h *Handler) respondStoreError(w http.ResponseWriter, err error) {
	var notFound *apperr.ErrNotFound
	if errors.As(err, &notFound) {
		respondWithError(w, http.StatusNotFound, err.Error())
		return
	}
	h.logger.Error("store operation failed", "error", err)
	respondWithError(w, http.StatusInternalServerError, "Internal server error")
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

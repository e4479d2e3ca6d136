package web

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/daana-health/daana-ingestion-backend/internal/core"
	"github.com/daana-health/daana-ingestion-backend/internal/schema"
	"github.com/daana-health/daana-ingestion-backend/internal/web/templates"
)

// handleRoot serves the upload page to browsers and a service banner to
// everything else.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if wantsHTML(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		page := templates.UploadPage(templates.UploadPageData{
			Service:     s.cfg.App.Name,
			Version:     s.cfg.App.Version,
			Tables:      s.service.Catalog().TableNames(),
			MaxFileSize: s.cfg.Convert.MaxFileSize,
			AIProvider:  s.cfg.AI.Provider,
		})
		if err := page.Render(r.Context(), w); err != nil {
			s.respondError(w, r, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"service": s.cfg.App.Name,
		"version": s.cfg.App.Version,
		"status":  "running",
		"endpoints": map[string]string{
			"convert": "POST /convert",
			"ingest":  "POST /ingest",
			"schema":  "GET /schema",
			"table":   "GET /schema/{table}",
			"health":  "GET /health",
		},
	})
}

// HealthResponse is the body of /health.
type HealthResponse struct {
	Status             string              `json:"status"`
	Service            string              `json:"service"`
	Version            string              `json:"version"`
	AIProvider         string              `json:"ai_provider"`
	AIConfigured       bool                `json:"ai_configured"`
	DatabaseConfigured bool                `json:"database_configured"`
	CacheConfigured    bool                `json:"cache_configured"`
	Conversions        *core.LimiterStatus `json:"conversions,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:             "healthy",
		Service:            s.cfg.App.Name,
		Version:            s.cfg.App.Version,
		AIProvider:         s.cfg.AI.Provider,
		AIConfigured:       s.cfg.AI.Configured(),
		DatabaseConfigured: s.service.IngestEnabled(),
		CacheConfigured:    s.cfg.Cache.RedisURL != "",
	}
	if l := s.service.Limiter(); l != nil {
		status := l.Status()
		resp.Conversions = &status
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSchema lists every table with its columns.
func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	catalog := s.service.Catalog()
	tables := make(map[string]*schema.Table)
	for _, t := range catalog.Tables() {
		tables[t.Name] = t
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"schema":  tables,
		"tables":  catalog.TableNames(),
		"context": catalog.Context,
	})
}

// handleSchemaTable returns one table, or 404 listing the known tables.
func (s *Server) handleSchemaTable(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "table")
	catalog := s.service.Catalog()

	t, err := catalog.Table(name)
	if errors.Is(err, schema.ErrUnknownTable) {
		msg := core.MapError(err)
		msg.Message = fmt.Sprintf("Table '%s' not found in schema. Available tables: %s",
			name, strings.Join(catalog.TableNames(), ", "))
		respondErrorJSON(w, msg, http.StatusNotFound)
		return
	}
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"table":  t.Name,
		"schema": t,
	})
}

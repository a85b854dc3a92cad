// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package handlers contains the HTTP handlers for the mockup studio API.
// Handlers are grouped by concern (templates, editor, uploads, customer)
// and receive their dependencies through the handler struct.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"mockupstudio/internal/models"
	"mockupstudio/internal/store"
)

// maxJSONBody bounds JSON request bodies. Template states are the largest.
const maxJSONBody = maxTemplateStateLen + 64<<10

// TemplateRepo is the template persistence the handlers need.
// *store.TemplateStore implements it.
type TemplateRepo interface {
	List(f store.TemplateFilter) ([]models.Template, error)
	FindByID(id uuid.UUID) (*models.Template, error)
	FindPublished(id uuid.UUID) (*models.Template, error)
	Create(t *models.Template) (*models.Template, error)
	Update(t *models.Template) (*models.Template, error)
	SaveState(id uuid.UUID, state []byte, width, height float64, publish bool) (*models.Template, error)
	SetPreview(id uuid.UUID, url string) error
	Delete(id uuid.UUID) (bool, error)
}

// RevisionRepo lists template revisions. *store.TemplateRevisionStore
// implements it.
type RevisionRepo interface {
	ListByTemplateID(templateID uuid.UUID) ([]*models.TemplateRevision, error)
	FindByVersion(templateID uuid.UUID, version int) (*models.TemplateRevision, error)
}

// MediaRepo records uploaded files. *store.MediaStore implements it.
type MediaRepo interface {
	Create(m *models.Media) (*models.Media, error)
}

// ObjectStore uploads public files. *storage.Client implements it.
type ObjectStore interface {
	UploadBytes(ctx context.Context, key, contentType string, data []byte) (string, error)
	PublicBucket() string
}

// Health reports liveness, and the database when a pinger is given.
func Health(db interface{ PingContext(context.Context) error }) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				slog.Error("health check: database unreachable", "error", err)
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("write json response failed", "error", err)
	}
}

// errorResponse is the body of every error reply.
type errorResponse struct {
	Error string `json:"error"`

	// Recoverable marks errors the client should show as a warning and
	// keep going, such as a full draft quota.
	Recoverable bool `json:"recoverable,omitempty"`
}

// writeError writes a JSON error body.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// decodeJSON reads a size-limited JSON body into dst and validates it.
// On failure it writes a 400 and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		case errors.Is(err, io.EOF):
			writeError(w, http.StatusBadRequest, "request body is empty")
		default:
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		}
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

// parseID reads a uuid URL parameter, writing a 400 when it is malformed.
func parseID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+param)
		return uuid.Nil, false
	}
	return id, true
}

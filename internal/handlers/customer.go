// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"mockupstudio/internal/composite"
	"mockupstudio/internal/drafts"
	"mockupstudio/internal/engine"
	"mockupstudio/internal/hydrate"
	"mockupstudio/internal/middleware"
	"mockupstudio/internal/slots"
)

// Customer serves published templates to customers, renders their
// personalized mockups and keeps their drafts.
type Customer struct {
	engine *engine.Engine
	drafts *drafts.Store
}

// NewCustomer creates the customer handler group.
func NewCustomer(eng *engine.Engine, draftStore *drafts.Store) *Customer {
	return &Customer{engine: eng, drafts: draftStore}
}

// customerTemplate is the published view of a template.
type customerTemplate struct {
	ID              uuid.UUID       `json:"id"`
	Name            string          `json:"name"`
	Type            string          `json:"type"`
	BaseImageURL    string          `json:"baseImageUrl,omitempty"`
	Width           float64         `json:"width"`
	Height          float64         `json:"height"`
	Version         int             `json:"version"`
	PreviewImageURL *string         `json:"previewImageUrl,omitempty"`
	FabricJSONState json.RawMessage `json:"fabricJsonState"`
	Slots           slots.Set       `json:"slots"`
}

// Template returns a published template and its slots.
func (h *Customer) Template(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	t, doc, err := h.engine.Published(id)
	if err != nil {
		h.renderError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, customerTemplate{
		ID:              t.ID,
		Name:            t.Name,
		Type:            string(t.Type),
		BaseImageURL:    t.BaseImageURL,
		Width:           t.Width,
		Height:          t.Height,
		Version:         t.Version,
		PreviewImageURL: t.PreviewImageURL,
		FabricJSONState: t.FabricJSONState,
		Slots:           slots.Classify(doc),
	})
}

type renderRequest struct {
	hydrate.Values
	Quality string `json:"quality" validate:"omitempty,oneof=standard high"`
	Format  string `json:"format" validate:"omitempty,oneof=png jpeg jpg"`
}

// Render hydrates a published template with the customer's values and
// answers the encoded image. quality=high produces the print export.
func (h *Customer) Render(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	var req renderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	rr := engine.RenderRequest{
		Quality: composite.ParseQuality(req.Quality),
		Format:  composite.ParseFormat(req.Format),
	}
	res, err := h.engine.Render(r.Context(), id, req.Values, rr)
	if err != nil {
		h.renderError(w, id, err)
		return
	}

	hdr := w.Header()
	hdr.Set("Content-Type", res.ContentType)
	hdr.Set("Content-Length", strconv.Itoa(len(res.Data)))
	hdr.Set("X-Template-Version", strconv.Itoa(res.Version))
	if res.Cached {
		hdr.Set("X-Render-Cache", "hit")
	} else {
		hdr.Set("X-Render-Cache", "miss")
	}
	for _, warning := range res.Warnings {
		hdr.Add("X-Render-Warning", strings.ReplaceAll(warning, "\n", " "))
	}
	if rr.Quality == composite.QualityHigh {
		hdr.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-print.%s"`, id, rr.Format.Extension()))
	}
	w.WriteHeader(http.StatusOK)
	w.Write(res.Data)
}

// renderError maps engine errors to responses.
func (h *Customer) renderError(w http.ResponseWriter, id uuid.UUID, err error) {
	switch {
	case errors.Is(err, engine.ErrNotFound):
		writeError(w, http.StatusNotFound, "template not found")
	case errors.Is(err, engine.ErrInvalidValues):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, composite.ErrTooLarge):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		slog.Error("customer render failed", "template_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to render template")
	}
}

// draftRequest is the body of a draft save. The template id comes from
// the path and the timestamp from the server.
type draftRequest struct {
	TextValues  map[string]string `json:"textValues"`
	ImageValues map[string]string `json:"imageValues"`
	ColorValues map[string]string `json:"colorValues"`
	CanvasState string            `json:"canvasState"`
}

// draftTemplateID reads {templateID} in the form stored by the draft
// store.
func draftTemplateID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := parseID(w, r, "templateID")
	if !ok {
		return "", false
	}
	return id.String(), true
}

// GetDraft returns the customer's draft for a template.
func (h *Customer) GetDraft(w http.ResponseWriter, r *http.Request) {
	tid, ok := draftTemplateID(w, r)
	if !ok {
		return
	}
	owner := middleware.CustomerFromCtx(r.Context())
	d, err := h.drafts.Load(r.Context(), owner, tid)
	if err != nil {
		slog.Error("load draft failed", "template_id", tid, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load draft")
		return
	}
	if d == nil {
		writeError(w, http.StatusNotFound, "no draft")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// PutDraft saves the customer's draft. A full quota is a recoverable
// warning: the customer keeps editing and may retry.
func (h *Customer) PutDraft(w http.ResponseWriter, r *http.Request) {
	tid, ok := draftTemplateID(w, r)
	if !ok {
		return
	}
	var req draftRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	owner := middleware.CustomerFromCtx(r.Context())
	d := drafts.Draft{
		TemplateID:  tid,
		TextValues:  req.TextValues,
		ImageValues: req.ImageValues,
		ColorValues: req.ColorValues,
		CanvasState: req.CanvasState,
	}

	err := h.drafts.Save(r.Context(), owner, d)
	switch {
	case err == nil:
	case errors.Is(err, drafts.ErrEmbeddedImage):
		writeError(w, http.StatusBadRequest, drafts.ErrEmbeddedImage.Error())
		return
	case errors.Is(err, drafts.ErrQuotaExceeded):
		slog.Info("draft quota exceeded", "template_id", tid, "error", err)
		writeJSON(w, http.StatusInsufficientStorage, errorResponse{
			Error:       "Your draft could not be saved because local draft storage is full. Your changes are still on screen.",
			Recoverable: true,
		})
		return
	default:
		slog.Error("save draft failed", "template_id", tid, "error", err)
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{
			Error:       "Your draft could not be saved right now.",
			Recoverable: true,
		})
		return
	}

	saved, err := h.drafts.Load(r.Context(), owner, tid)
	if err != nil || saved == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// DeleteDraft discards the customer's draft for a template.
func (h *Customer) DeleteDraft(w http.ResponseWriter, r *http.Request) {
	tid, ok := draftTemplateID(w, r)
	if !ok {
		return
	}
	owner := middleware.CustomerFromCtx(r.Context())
	if err := h.drafts.Delete(r.Context(), owner, tid); err != nil {
		slog.Error("delete draft failed", "template_id", tid, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete draft")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Usage reports the customer's draft storage use against the quota.
func (h *Customer) Usage(w http.ResponseWriter, r *http.Request) {
	owner := middleware.CustomerFromCtx(r.Context())
	used, err := h.drafts.Usage(r.Context(), owner)
	if err != nil {
		slog.Error("draft usage failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read draft usage")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"usedBytes": used, "quotaBytes": h.drafts.Policy().Quota})
}

// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"mockupstudio/internal/engine"
	"mockupstudio/internal/models"
	"mockupstudio/internal/scene"
	"mockupstudio/internal/slots"
	"mockupstudio/internal/store"
)

// Templates groups the operator template CRUD handlers.
type Templates struct {
	templates TemplateRepo
	revisions RevisionRepo
	engine    *engine.Engine
}

// NewTemplates creates the template handler group.
func NewTemplates(templates TemplateRepo, revisions RevisionRepo, eng *engine.Engine) *Templates {
	return &Templates{templates: templates, revisions: revisions, engine: eng}
}

type createTemplateRequest struct {
	Name            string          `json:"name" validate:"required"`
	Type            string          `json:"type" validate:"omitempty,templatetype"`
	BaseImageURL    string          `json:"baseImageUrl" validate:"omitempty,url"`
	FabricJSONState json.RawMessage `json:"fabricJsonState"`
	Width           float64         `json:"width" validate:"gt=0,lte=10000"`
	Height          float64         `json:"height" validate:"gt=0,lte=10000"`
	Tags            []string        `json:"tags"`
}

// updateTemplateRequest is a partial update; nil fields are unchanged.
type updateTemplateRequest struct {
	Name            *string         `json:"name"`
	FabricJSONState json.RawMessage `json:"fabricJsonState"`
	PreviewImageURL *string         `json:"previewImageUrl" validate:"omitempty,url"`
	Tags            *[]string       `json:"tags"`
	IsPublished     *bool           `json:"isPublished"`
	Width           *float64        `json:"width" validate:"omitempty,gt=0,lte=10000"`
	Height          *float64        `json:"height" validate:"omitempty,gt=0,lte=10000"`
}

// canonicalState parses raw (or starts a blank document when raw is
// empty), applies the given size and returns the document with its
// canonical serialization. Re-serializing keeps stored states restricted
// to the known property set.
func canonicalState(raw json.RawMessage, name string, width, height float64) (*scene.Document, []byte, error) {
	var (
		doc *scene.Document
		err error
	)
	if len(raw) == 0 || string(raw) == "null" {
		doc, err = scene.New(name, width, height)
	} else {
		if len(raw) > maxTemplateStateLen {
			return nil, nil, fmt.Errorf("fabricJsonState is too large (max 2 MB)")
		}
		doc, err = scene.Parse(raw)
	}
	if err != nil {
		return nil, nil, err
	}
	if width > 0 {
		doc.Width = width
	}
	if height > 0 {
		doc.Height = height
	}
	if doc.Name == "" {
		doc.Name = name
	}
	data, err := scene.Marshal(doc)
	if err != nil {
		return nil, nil, err
	}
	return doc, data, nil
}

// List returns templates, filtered by the published, type and tag query
// parameters.
func (h *Templates) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.TemplateFilter{
		PublishedOnly: q.Get("published") == "true",
		Type:          models.TemplateType(q.Get("type")),
		Tag:           strings.TrimSpace(q.Get("tag")),
	}
	if f.Type != "" && !f.Type.Valid() {
		writeError(w, http.StatusBadRequest, "unknown template type")
		return
	}
	for param, dst := range map[string]*int{"limit": &f.Limit, "offset": &f.Offset} {
		if v := q.Get(param); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				writeError(w, http.StatusBadRequest, "invalid "+param)
				return
			}
			*dst = n
		}
	}

	items, err := h.templates.List(f)
	if err != nil {
		slog.Error("list templates failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list templates")
		return
	}
	if items == nil {
		items = []models.Template{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// Create stores a new template and returns it with its assigned id.
func (h *Templates) Create(w http.ResponseWriter, r *http.Request) {
	var req createTemplateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if msg := validateTemplateName(req.Name); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if msg := validateTags(req.Tags); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	name := strings.TrimSpace(req.Name)
	_, state, err := canonicalState(req.FabricJSONState, name, req.Width, req.Height)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.templates.Create(&models.Template{
		Name:            name,
		Type:            models.TemplateType(req.Type),
		BaseImageURL:    req.BaseImageURL,
		FabricJSONState: state,
		Width:           req.Width,
		Height:          req.Height,
		Tags:            req.Tags,
	})
	if err != nil {
		slog.Error("create template failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create template")
		return
	}
	slog.Info("template created", "template_id", created.ID, "name", created.Name)
	writeJSON(w, http.StatusCreated, created)
}

// Get returns one template including its serialized document.
func (h *Templates) Get(w http.ResponseWriter, r *http.Request) {
	t, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// Update applies a partial update. A changed state or size is parsed and
// re-serialized before it is stored.
func (h *Templates) Update(w http.ResponseWriter, r *http.Request) {
	t, ok := h.load(w, r)
	if !ok {
		return
	}
	var req updateTemplateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.Name != nil {
		if msg := validateTemplateName(*req.Name); msg != "" {
			writeError(w, http.StatusBadRequest, msg)
			return
		}
		t.Name = strings.TrimSpace(*req.Name)
	}
	if req.Tags != nil {
		if msg := validateTags(*req.Tags); msg != "" {
			writeError(w, http.StatusBadRequest, msg)
			return
		}
		t.Tags = *req.Tags
	}
	if req.PreviewImageURL != nil {
		t.PreviewImageURL = req.PreviewImageURL
	}
	if req.IsPublished != nil {
		t.IsPublished = *req.IsPublished
	}

	if req.FabricJSONState != nil || req.Width != nil || req.Height != nil {
		raw := req.FabricJSONState
		if raw == nil {
			raw = t.FabricJSONState
		}
		var width, height float64
		if req.Width != nil {
			width = *req.Width
		}
		if req.Height != nil {
			height = *req.Height
		}
		doc, state, err := canonicalState(raw, t.Name, width, height)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		t.FabricJSONState, t.Width, t.Height = state, doc.Width, doc.Height
	}

	updated, err := h.templates.Update(t)
	if err != nil {
		slog.Error("update template failed", "template_id", t.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update template")
		return
	}
	if updated == nil {
		writeError(w, http.StatusNotFound, "template not found")
		return
	}
	h.engine.InvalidateTemplate(r.Context(), updated.ID.String())
	slog.Info("template updated", "template_id", updated.ID, "version", updated.Version)
	writeJSON(w, http.StatusOK, updated)
}

// Delete removes a template and its revisions.
func (h *Templates) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	deleted, err := h.templates.Delete(id)
	if err != nil {
		slog.Error("delete template failed", "template_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete template")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "template not found")
		return
	}
	h.engine.InvalidateTemplate(r.Context(), id.String())
	slog.Info("template deleted", "template_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// Slots returns the customer-editable slots of any template, published or
// not, so operators can check a design before publishing it.
func (h *Templates) Slots(w http.ResponseWriter, r *http.Request) {
	t, ok := h.load(w, r)
	if !ok {
		return
	}
	doc, err := h.engine.Document(t)
	if err != nil {
		slog.Error("template state is corrupt", "template_id", t.ID, "error", err)
		writeError(w, http.StatusUnprocessableEntity, "template state cannot be loaded")
		return
	}
	writeJSON(w, http.StatusOK, slots.Classify(doc))
}

// Revisions lists the published revisions of a template, newest first.
func (h *Templates) Revisions(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	revs, err := h.revisions.ListByTemplateID(id)
	if err != nil {
		slog.Error("list template revisions failed", "template_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list revisions")
		return
	}
	if revs == nil {
		revs = []*models.TemplateRevision{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": revs})
}

// Revision returns one published revision, including its state, so an
// operator can inspect or restore it.
func (h *Templates) Revision(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	version, err := strconv.Atoi(chi.URLParam(r, "version"))
	if err != nil || version < 1 {
		writeError(w, http.StatusBadRequest, "invalid version")
		return
	}
	rev, err := h.revisions.FindByVersion(id, version)
	if err != nil {
		slog.Error("find template revision failed", "template_id", id, "version", version, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load revision")
		return
	}
	if rev == nil {
		writeError(w, http.StatusNotFound, "revision not found")
		return
	}
	writeJSON(w, http.StatusOK, rev)
}

// load fetches the {id} template, writing 400/404/500 as appropriate.
func (h *Templates) load(w http.ResponseWriter, r *http.Request) (*models.Template, bool) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return nil, false
	}
	t, err := h.templates.FindByID(id)
	if err != nil {
		slog.Error("find template failed", "template_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load template")
		return nil, false
	}
	if t == nil {
		writeError(w, http.StatusNotFound, "template not found")
		return nil, false
	}
	return t, true
}

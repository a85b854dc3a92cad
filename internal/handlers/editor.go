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
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"mockupstudio/internal/composite"
	"mockupstudio/internal/editor"
	"mockupstudio/internal/engine"
	"mockupstudio/internal/scene"
)

// Editor exposes designer editing sessions over HTTP. Each session lives
// in the registry; requests address it by session id.
type Editor struct {
	registry      *editor.Registry
	templates     TemplateRepo
	saver         editor.Saver
	engine        *engine.Engine
	autoSaveDelay time.Duration
}

// NewEditor creates the editor handler group. saver persists both
// autosaves and explicit saves.
func NewEditor(registry *editor.Registry, templates TemplateRepo, saver editor.Saver, eng *engine.Engine, autoSaveDelay time.Duration) *Editor {
	return &Editor{
		registry:      registry,
		templates:     templates,
		saver:         saver,
		engine:        eng,
		autoSaveDelay: autoSaveDelay,
	}
}

// sessionResponse describes a session and its live document.
type sessionResponse struct {
	SessionID string          `json:"sessionId"`
	State     editor.State    `json:"state"`
	Document  json.RawMessage `json:"document"`
	Created   []string        `json:"created,omitempty"`
}

func respondSession(w http.ResponseWriter, status int, id string, s *editor.Session, created []string) {
	snap, err := s.Snapshot()
	if err != nil {
		slog.Error("snapshot editor session failed", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read session")
		return
	}
	writeJSON(w, status, sessionResponse{
		SessionID: id,
		State:     s.State(),
		Document:  json.RawMessage(snap),
		Created:   created,
	})
}

type openSessionRequest struct {
	TemplateID string `json:"templateId" validate:"required,uuid"`
}

// Open starts an editing session on a template. A template whose stored
// state cannot be parsed is refused, so editing never starts on it.
func (h *Editor) Open(w http.ResponseWriter, r *http.Request) {
	var req openSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	id := uuid.MustParse(req.TemplateID)
	t, err := h.templates.FindByID(id)
	if err != nil {
		slog.Error("find template failed", "template_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load template")
		return
	}
	if t == nil {
		writeError(w, http.StatusNotFound, "template not found")
		return
	}

	sid, s, err := h.registry.Open(editor.Options{
		TemplateID:    t.ID.String(),
		InitialState:  t.State(),
		Saver:         h.saver,
		AutoSaveDelay: h.autoSaveDelay,
		FlushOnClose:  true,
	})
	if err != nil {
		slog.Warn("template state cannot be edited", "template_id", t.ID, "error", err)
		writeError(w, http.StatusUnprocessableEntity, "template state cannot be loaded")
		return
	}
	respondSession(w, http.StatusCreated, sid, s, nil)
}

// session resolves {sid}, writing a 404 for unknown sessions.
func (h *Editor) session(w http.ResponseWriter, r *http.Request) (string, *editor.Session, bool) {
	sid := chi.URLParam(r, "sid")
	s, err := h.registry.Get(sid)
	if err != nil {
		writeError(w, http.StatusNotFound, "editing session not found")
		return "", nil, false
	}
	return sid, s, true
}

// Get returns the session state and live document.
func (h *Editor) Get(w http.ResponseWriter, r *http.Request) {
	sid, s, ok := h.session(w, r)
	if !ok {
		return
	}
	respondSession(w, http.StatusOK, sid, s, nil)
}

// editorOp is one toolbar operation. Which fields apply depends on Op.
type editorOp struct {
	Op         string        `json:"op" validate:"required,oneof=addText addShape addImage update remove duplicate bringForward sendBackward bringToFront sendToBack setCustomizable setFrame setBackground"`
	ID         string        `json:"id"`
	Text       string        `json:"text"`
	Shape      string        `json:"shape" validate:"omitempty,oneof=rect circle triangle"`
	Src        string        `json:"src"`
	Width      float64       `json:"width"`
	Height     float64       `json:"height"`
	Patch      *editor.Patch `json:"patch"`
	On         bool          `json:"on"`
	Background string        `json:"background"`
}

type opsRequest struct {
	Ops []editorOp `json:"ops" validate:"required,min=1,max=50,dive"`
}

var shapeKinds = map[string]scene.Kind{
	"rect":     scene.KindRect,
	"circle":   scene.KindCircle,
	"triangle": scene.KindTriangle,
}

// apply runs op on c and returns the id of any object it created.
func (op editorOp) apply(c *editor.DocumentCanvas) (string, error) {
	switch op.Op {
	case "addText":
		return c.AddText(op.Text).ID, nil
	case "addShape":
		kind, ok := shapeKinds[op.Shape]
		if !ok {
			return "", fmt.Errorf("addShape: shape is required")
		}
		o, err := c.AddShape(kind, op.Width, op.Height)
		if err != nil {
			return "", err
		}
		return o.ID, nil
	case "addImage":
		o, err := c.AddImage(op.Src, op.Width, op.Height)
		if err != nil {
			return "", err
		}
		return o.ID, nil
	case "update":
		if op.Patch == nil {
			return "", fmt.Errorf("update %q: patch is required", op.ID)
		}
		return "", c.Update(op.ID, *op.Patch)
	case "remove":
		return "", c.Remove(op.ID)
	case "duplicate":
		o, err := c.Duplicate(op.ID)
		if err != nil {
			return "", err
		}
		return o.ID, nil
	case "bringForward":
		return "", c.BringForward(op.ID)
	case "sendBackward":
		return "", c.SendBackward(op.ID)
	case "bringToFront":
		return "", c.BringToFront(op.ID)
	case "sendToBack":
		return "", c.SendToBack(op.ID)
	case "setCustomizable":
		return "", c.SetCustomizable(op.ID, op.On)
	case "setFrame":
		return "", c.SetFrame(op.ID, op.On)
	case "setBackground":
		if op.Background == "" || op.Background == "transparent" {
			return "", c.SetBackground(scene.TransparentBackground())
		}
		return "", c.SetBackground(scene.ColorBackground(op.Background))
	}
	return "", fmt.Errorf("unknown op %q", op.Op)
}

// Ops applies a batch of toolbar operations as a single history entry.
// The batch stops at the first failing operation; what ran before it is
// kept so history matches the canvas.
func (h *Editor) Ops(w http.ResponseWriter, r *http.Request) {
	sid, s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req opsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var created []string
	err := s.Do(func(c *editor.DocumentCanvas) error {
		for i, op := range req.Ops {
			id, err := op.apply(c)
			if err != nil {
				return fmt.Errorf("op %d: %w", i, err)
			}
			if id != "" {
				created = append(created, id)
			}
		}
		return nil
	})
	switch {
	case errors.Is(err, editor.ErrSessionClosed):
		writeError(w, http.StatusGone, err.Error())
		return
	case errors.Is(err, editor.ErrObjectNotFound):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondSession(w, http.StatusOK, sid, s, created)
}

// Undo steps the session back one history entry.
func (h *Editor) Undo(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, (*editor.Session).Undo)
}

// Redo steps the session forward one history entry.
func (h *Editor) Redo(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, (*editor.Session).Redo)
}

func (h *Editor) step(w http.ResponseWriter, r *http.Request, fn func(*editor.Session) error) {
	sid, s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := fn(s); err != nil {
		switch {
		case errors.Is(err, editor.ErrSessionClosed):
			writeError(w, http.StatusGone, err.Error())
		case errors.Is(err, editor.ErrSnapshotCorrupt):
			// The session is unchanged; the client keeps editing.
			slog.Warn("history step aborted", "session_id", sid, "error", err)
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	respondSession(w, http.StatusOK, sid, s, nil)
}

type selectRequest struct {
	ID string `json:"id"`
}

// Select sets the toolbar selection, or clears it for an empty id.
func (h *Editor) Select(w http.ResponseWriter, r *http.Request) {
	_, s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req selectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	var err error
	if req.ID == "" {
		err = s.Deselect()
	} else {
		err = s.Select(req.ID)
	}
	switch {
	case errors.Is(err, editor.ErrSessionClosed):
		writeError(w, http.StatusGone, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.State())
}

type saveRequest struct {
	Publish bool `json:"publish"`
}

// Save persists the live state now. Unlike autosave, a failure is
// reported to the designer.
func (h *Editor) Save(w http.ResponseWriter, r *http.Request) {
	sid, s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req saveRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	if err := s.Save(r.Context(), req.Publish); err != nil {
		if errors.Is(err, editor.ErrSessionClosed) {
			writeError(w, http.StatusGone, err.Error())
			return
		}
		slog.Error("explicit save failed", "session_id", sid, "template_id", s.TemplateID(), "error", err)
		writeError(w, http.StatusBadGateway, "save failed, your changes are still in the editor")
		return
	}
	slog.Info("template saved", "session_id", sid, "template_id", s.TemplateID(), "publish", req.Publish)
	writeJSON(w, http.StatusOK, s.State())
}

// Preview renders the live document as the designer sees it.
func (h *Editor) Preview(w http.ResponseWriter, r *http.Request) {
	sid, s, ok := h.session(w, r)
	if !ok {
		return
	}
	req := engine.RenderRequest{
		Quality: composite.ParseQuality(r.URL.Query().Get("quality")),
		Format:  composite.ParseFormat(r.URL.Query().Get("format")),
	}
	data, err := h.engine.RenderDocument(r.Context(), s.Document(), req)
	if err != nil {
		slog.Error("editor preview failed", "session_id", sid, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to render preview")
		return
	}
	w.Header().Set("Content-Type", req.Format.ContentType())
	w.Write(data)
}

// Close ends the session, flushing unsaved edits.
func (h *Editor) Close(w http.ResponseWriter, r *http.Request) {
	sid := chi.URLParam(r, "sid")
	if err := h.registry.Close(r.Context(), sid); err != nil {
		if errors.Is(err, editor.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "editing session not found")
			return
		}
		slog.Error("close session flush failed", "session_id", sid, "error", err)
		writeError(w, http.StatusBadGateway, "session closed but unsaved edits could not be written")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

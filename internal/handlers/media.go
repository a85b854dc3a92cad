// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"mockupstudio/internal/models"
)

// MediaLibrary lists and removes stored files. *store.MediaStore
// implements it.
type MediaLibrary interface {
	List(limit, offset int) ([]models.Media, error)
	Count() (int, error)
	Delete(id uuid.UUID) (*models.Media, error)
}

// ObjectRemover deletes public objects. *storage.Client implements it.
type ObjectRemover interface {
	Delete(ctx context.Context, key string) error
	FileURL(key string) string
}

// Media serves the operator's view of uploads and rendered previews.
type Media struct {
	library MediaLibrary
	objects ObjectRemover
}

// NewMedia creates a Media handler. A nil objects store lists records
// without URLs and deletes records only.
func NewMedia(library MediaLibrary, objects ObjectRemover) *Media {
	return &Media{library: library, objects: objects}
}

const defaultMediaPage = 50

type mediaItem struct {
	models.Media
	URL       string `json:"url,omitempty"`
	ThumbURL  string `json:"thumbUrl,omitempty"`
	HumanSize string `json:"humanSize"`
}

// List returns one page of media, newest first.
func (h *Media) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := defaultMediaPage, 0
	q := r.URL.Query()
	for param, dst := range map[string]*int{"limit": &limit, "offset": &offset} {
		if v := q.Get(param); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				writeError(w, http.StatusBadRequest, "invalid "+param)
				return
			}
			*dst = n
		}
	}
	if limit == 0 || limit > 500 {
		limit = defaultMediaPage
	}

	items, err := h.library.List(limit, offset)
	if err != nil {
		slog.Error("list media failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list media")
		return
	}
	total, err := h.library.Count()
	if err != nil {
		slog.Error("count media failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list media")
		return
	}

	out := make([]mediaItem, 0, len(items))
	for _, m := range items {
		item := mediaItem{Media: m, HumanSize: m.HumanSize()}
		if h.objects != nil && m.IsImage() {
			item.URL = h.objects.FileURL(m.S3Key)
			if m.ThumbS3Key != nil {
				item.ThumbURL = h.objects.FileURL(*m.ThumbS3Key)
			}
		}
		out = append(out, item)
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out, "total": total})
}

// Delete removes a media record and its stored objects. Object removal is
// best effort: the record is gone either way.
func (h *Media) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	m, err := h.library.Delete(id)
	if err != nil {
		slog.Error("delete media failed", "media_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete media")
		return
	}
	if m == nil {
		writeError(w, http.StatusNotFound, "media not found")
		return
	}

	if h.objects != nil {
		keys := []string{m.S3Key}
		if m.ThumbS3Key != nil {
			keys = append(keys, *m.ThumbS3Key)
		}
		for _, key := range keys {
			if err := h.objects.Delete(r.Context(), key); err != nil {
				slog.Warn("delete media object failed", "media_id", id, "key", key, "error", err)
			}
		}
	}
	slog.Info("media deleted", "media_id", id, "key", m.S3Key)
	w.WriteHeader(http.StatusNoContent)
}

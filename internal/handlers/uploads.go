// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"mockupstudio/internal/imaging"
	"mockupstudio/internal/models"
	"mockupstudio/internal/slug"
)

// Uploads accepts customer and designer photos. The image is normalized,
// stored in the public bucket and answered with its URL, which callers use
// as a frame's image value.
type Uploads struct {
	objects  ObjectStore
	media    MediaRepo
	maxBytes int64
	now      func() time.Time
}

// NewUploads creates the upload handler. objects may be nil when storage
// is not configured; uploads then answer 503.
func NewUploads(objects ObjectStore, media MediaRepo, maxBytes int64) *Uploads {
	return &Uploads{objects: objects, media: media, maxBytes: maxBytes, now: time.Now}
}

// uploadResponse is returned for a stored upload.
type uploadResponse struct {
	ID       uuid.UUID `json:"id"`
	URL      string    `json:"url"`
	ThumbURL string    `json:"thumbUrl,omitempty"`
	Width    int       `json:"width"`
	Height   int       `json:"height"`
}

// Upload handles a multipart upload with a single "file" part.
func (h *Uploads) Upload(w http.ResponseWriter, r *http.Request) {
	if h.objects == nil {
		writeError(w, http.StatusServiceUnavailable, "object storage is not configured")
		return
	}

	limit := h.maxBytes + 1024
	tooLargeMsg := fmt.Sprintf("file too large, maximum size is %d KB", h.maxBytes>>10)
	if r.ContentLength > limit {
		writeError(w, http.StatusRequestEntityTooLarge, tooLargeMsg)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, tooLargeMsg)
			return
		}
		writeError(w, http.StatusBadRequest, "expected a multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read file")
		return
	}

	variants, err := imaging.GenerateVariants(data, imaging.DefaultVariants)
	if err != nil {
		slog.Info("upload rejected", "filename", header.Filename, "error", err)
		writeError(w, http.StatusUnsupportedMediaType, "file is not a supported image (JPEG, PNG, GIF or WebP)")
		return
	}

	now := h.now().UTC()
	base := fmt.Sprintf("uploads/%d/%02d/%s-%s", now.Year(), now.Month(), uuid.New().String(), slug.FileName(header.Filename))

	var (
		resp     uploadResponse
		original imaging.ProcessedImage
		thumbKey *string
	)
	for _, v := range variants {
		key := base + v.Extension
		if v.Name != "original" {
			key = base + "-" + v.Name + v.Extension
		}
		url, err := h.objects.UploadBytes(r.Context(), key, v.ContentType, v.Data)
		if err != nil {
			slog.Error("upload to storage failed", "key", key, "error", err)
			writeError(w, http.StatusBadGateway, "failed to store file")
			return
		}
		switch v.Name {
		case "original":
			original = v
			resp.URL, resp.Width, resp.Height = url, v.Width, v.Height
		case "thumb":
			k := key
			thumbKey = &k
			resp.ThumbURL = url
		}
	}

	m := &models.Media{
		Filename:     slug.FileName(header.Filename) + original.Extension,
		OriginalName: header.Filename,
		ContentType:  original.ContentType,
		SizeBytes:    int64(len(original.Data)),
		Width:        &original.Width,
		Height:       &original.Height,
		Bucket:       h.objects.PublicBucket(),
		S3Key:        base + original.Extension,
		ThumbS3Key:   thumbKey,
		Purpose:      models.MediaPurposeUpload,
	}
	if h.media != nil {
		created, err := h.media.Create(m)
		if err != nil {
			// The file is stored and reachable; the record is bookkeeping.
			slog.Error("record upload failed", "key", m.S3Key, "error", err)
		} else {
			resp.ID = created.ID
		}
	}

	slog.Info("image uploaded", "key", m.S3Key, "bytes", m.SizeBytes, "width", resp.Width, "height", resp.Height)
	writeJSON(w, http.StatusCreated, resp)
}

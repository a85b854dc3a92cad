// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"mockupstudio/internal/engine"
	"mockupstudio/internal/models"
	"mockupstudio/internal/scene"
)

// ErrTemplateGone is returned when an editing session saves a template
// that was deleted meanwhile.
var ErrTemplateGone = errors.New("template no longer exists")

// TemplateSaver persists editor sessions to the template store. On a
// publishing save it also renders the catalog preview and uploads it.
type TemplateSaver struct {
	templates TemplateRepo
	engine    *engine.Engine
	objects   ObjectStore
	media     MediaRepo
}

// NewTemplateSaver creates the saver. objects and media may be nil, in
// which case no preview images are produced.
func NewTemplateSaver(templates TemplateRepo, eng *engine.Engine, objects ObjectStore, media MediaRepo) *TemplateSaver {
	return &TemplateSaver{templates: templates, engine: eng, objects: objects, media: media}
}

// SaveState implements editor.Saver.
func (s *TemplateSaver) SaveState(ctx context.Context, templateID, state string, publish bool) error {
	id, err := uuid.Parse(templateID)
	if err != nil {
		return fmt.Errorf("save state: template id: %w", err)
	}
	doc, err := scene.ParseString(state)
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	t, err := s.templates.SaveState(id, []byte(state), doc.Width, doc.Height, publish)
	if err != nil {
		return err
	}
	if t == nil {
		return ErrTemplateGone
	}
	s.engine.InvalidateTemplate(ctx, templateID)

	if publish {
		if err := s.publishPreview(ctx, t, doc); err != nil {
			// The template itself is saved; a missing preview is cosmetic.
			slog.Warn("template preview failed", "template_id", t.ID, "version", t.Version, "error", err)
		}
	}
	return nil
}

// publishPreview renders doc with placeholders, uploads it under a
// versioned key and records it as the template's preview.
func (s *TemplateSaver) publishPreview(ctx context.Context, t *models.Template, doc *scene.Document) error {
	if s.objects == nil {
		return nil
	}
	data, err := s.engine.RenderPreview(ctx, doc)
	if err != nil {
		return fmt.Errorf("render preview: %w", err)
	}
	key := fmt.Sprintf("previews/%s/v%d.png", t.ID, t.Version)
	url, err := s.objects.UploadBytes(ctx, key, "image/png", data)
	if err != nil {
		return fmt.Errorf("upload preview: %w", err)
	}
	if s.media != nil {
		if _, err := s.media.Create(&models.Media{
			Filename:     fmt.Sprintf("v%d.png", t.Version),
			OriginalName: t.Name + " preview",
			ContentType:  "image/png",
			SizeBytes:    int64(len(data)),
			Bucket:       s.objects.PublicBucket(),
			S3Key:        key,
			Purpose:      models.MediaPurposePreview,
		}); err != nil {
			slog.Warn("record preview media failed", "template_id", t.ID, "error", err)
		}
	}
	if err := s.templates.SetPreview(t.ID, url); err != nil {
		return err
	}
	slog.Info("template preview published", "template_id", t.ID, "version", t.Version, "url", url)
	return nil
}

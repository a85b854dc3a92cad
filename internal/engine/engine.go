// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package engine renders published templates for customers. It loads
// templates from the database, keeps their parsed documents in an L1
// cache, hydrates a private copy with the customer's values and hands the
// result to the compositor. Encoded renders are optionally kept in a
// Valkey preview cache.
package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"mockupstudio/internal/composite"
	"mockupstudio/internal/hydrate"
	"mockupstudio/internal/models"
	"mockupstudio/internal/scene"
	"mockupstudio/internal/slots"
)

var (
	// ErrNotFound is returned for unknown or unpublished templates.
	ErrNotFound = errors.New("template not found")

	// ErrInvalidValues wraps customer values that cannot be applied.
	ErrInvalidValues = errors.New("invalid customer values")
)

// TemplateSource loads templates. *store.TemplateStore implements it.
type TemplateSource interface {
	FindByID(id uuid.UUID) (*models.Template, error)
	FindPublished(id uuid.UUID) (*models.Template, error)
}

// PreviewCache stores encoded renders. *cache.PreviewCache implements it.
type PreviewCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, data []byte)
	InvalidateTemplate(ctx context.Context, templateID string)
}

// KeyFunc builds a preview cache key. cache.PreviewKey is the production
// implementation.
type KeyFunc func(templateID string, version int, variant string, values any) (string, error)

// Options configure an Engine.
type Options struct {
	// Concurrency bounds simultaneous renders. Defaults to 2.
	Concurrency int

	// Previews, when set together with PreviewKey, caches standard quality
	// renders.
	Previews   PreviewCache
	PreviewKey KeyFunc

	Hydrate hydrate.Options
}

// Engine renders templates. It is safe for concurrent use.
type Engine struct {
	templates TemplateSource
	renderer  *composite.Renderer
	images    hydrate.ImageLoader
	cache     *documentCache
	sem       *semaphore.Weighted

	previews   PreviewCache
	previewKey KeyFunc
	hydrate    hydrate.Options
}

// New creates an engine with an empty L1 cache.
func New(templates TemplateSource, renderer *composite.Renderer, images hydrate.ImageLoader, opts Options) *Engine {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 2
	}
	e := &Engine{
		templates: templates,
		renderer:  renderer,
		images:    images,
		cache:     newDocumentCache(),
		sem:       semaphore.NewWeighted(int64(opts.Concurrency)),
		hydrate:   opts.Hydrate,
	}
	if opts.Previews != nil && opts.PreviewKey != nil {
		e.previews, e.previewKey = opts.Previews, opts.PreviewKey
	}
	return e
}

// RenderRequest selects the output of a render.
type RenderRequest struct {
	Quality composite.Quality
	Format  composite.Format
}

// variant names the request inside cache keys and log lines.
func (r RenderRequest) variant() string {
	return string(r.Quality) + "." + r.Format.Extension()
}

// Result is an encoded render.
type Result struct {
	Data        []byte
	ContentType string
	Version     int
	Cached      bool

	// Warnings lists values that could not be applied without failing the
	// render, such as photos that failed to load.
	Warnings []string
}

// InvalidateTemplate drops a template's cached document and renders.
// Called by operator handlers after a template is saved or deleted.
func (e *Engine) InvalidateTemplate(ctx context.Context, id string) {
	e.cache.invalidate(id)
	if e.previews != nil {
		e.previews.InvalidateTemplate(ctx, id)
	}
}

// Document returns the parsed document of t from the L1 cache, parsing
// it on a miss. The returned document is shared: clone it before changing
// it.
func (e *Engine) Document(t *models.Template) (*scene.Document, error) {
	id := t.ID.String()
	if doc := e.cache.get(id, t.Version); doc != nil {
		return doc, nil
	}
	doc, err := scene.Parse(t.FabricJSONState)
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", id, err)
	}
	if doc.ID == "" {
		doc.ID = id
	}
	e.cache.put(id, t.Version, doc)
	return doc, nil
}

// Published loads a published template and its document.
func (e *Engine) Published(id uuid.UUID) (*models.Template, *scene.Document, error) {
	t, err := e.templates.FindPublished(id)
	if err != nil {
		return nil, nil, fmt.Errorf("load template: %w", err)
	}
	if t == nil {
		return nil, nil, ErrNotFound
	}
	doc, err := e.Document(t)
	if err != nil {
		return nil, nil, err
	}
	return t, doc, nil
}

// Slots classifies the slots of a published template.
func (e *Engine) Slots(id uuid.UUID) (slots.Set, error) {
	_, doc, err := e.Published(id)
	if err != nil {
		return slots.Set{}, err
	}
	return slots.Classify(doc), nil
}

// Render hydrates a published template with values and encodes it.
// Values that name unknown slots or fail to load are reported as warnings;
// malformed values fail the render with ErrInvalidValues.
func (e *Engine) Render(ctx context.Context, id uuid.UUID, values hydrate.Values, req RenderRequest) (*Result, error) {
	t, doc, err := e.Published(id)
	if err != nil {
		return nil, err
	}

	var key string
	if e.previews != nil && req.Quality != composite.QualityHigh {
		if key, err = e.previewKey(t.ID.String(), t.Version, req.variant(), values); err != nil {
			slog.Warn("preview key failed", "template_id", t.ID, "error", err)
			key = ""
		} else if data, ok := e.previews.Get(ctx, key); ok {
			return &Result{Data: data, ContentType: req.Format.ContentType(), Version: t.Version, Cached: true}, nil
		}
	}

	h := hydrate.New(doc, e.images, e.hydrate)
	warnings, err := splitApplyErrors(h.Apply(ctx, values))
	if err != nil {
		return nil, err
	}

	data, err := e.export(ctx, h.Document(), req)
	if err != nil {
		return nil, err
	}
	if key != "" && len(warnings) == 0 {
		e.previews.Set(ctx, key, data)
	}
	return &Result{Data: data, ContentType: req.Format.ContentType(), Version: t.Version, Warnings: warnings}, nil
}

// RenderDocument encodes doc as is. Used for editor previews, where doc is
// the live editing state and frames must keep their designer look.
func (e *Engine) RenderDocument(ctx context.Context, doc *scene.Document, req RenderRequest) ([]byte, error) {
	return e.export(ctx, doc, req)
}

// RenderPreview renders the catalog preview of a document: a standard PNG
// with placeholders drawn into every frame.
func (e *Engine) RenderPreview(ctx context.Context, doc *scene.Document) ([]byte, error) {
	h := hydrate.New(doc, e.images, e.hydrate)
	return e.export(ctx, h.Document(), RenderRequest{Quality: composite.QualityStandard, Format: composite.FormatPNG})
}

// export runs the compositor under the concurrency limit.
func (e *Engine) export(ctx context.Context, doc *scene.Document, req RenderRequest) ([]byte, error) {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("wait for render slot: %w", err)
	}
	defer e.sem.Release(1)

	start := time.Now()
	var buf bytes.Buffer
	if err := e.renderer.Export(ctx, doc, composite.ExportOptions{Quality: req.Quality, Format: req.Format}, &buf); err != nil {
		return nil, err
	}
	slog.Info("template rendered",
		"document", doc.Name,
		"variant", req.variant(),
		"bytes", buf.Len(),
		"duration", time.Since(start),
	)
	return buf.Bytes(), nil
}

// splitApplyErrors separates soft hydration failures, returned as
// warnings, from malformed values, returned as an ErrInvalidValues error.
func splitApplyErrors(err error) ([]string, error) {
	if err == nil {
		return nil, nil
	}
	errs := []error{err}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs = joined.Unwrap()
	}

	var (
		warnings []string
		hard     []error
	)
	for _, e := range errs {
		switch {
		case errors.Is(e, hydrate.ErrAsset), errors.Is(e, hydrate.ErrUnknownSlot):
			warnings = append(warnings, e.Error())
		default:
			hard = append(hard, e)
		}
	}
	if len(hard) > 0 {
		return warnings, fmt.Errorf("%w: %w", ErrInvalidValues, errors.Join(hard...))
	}
	return warnings, nil
}

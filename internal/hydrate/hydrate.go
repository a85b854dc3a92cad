// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package hydrate applies a customer's slot values to a locked copy of a
// template. The hydrator owns its own document instance; the template it
// was built from is never touched. Only slot content changes: objects can
// not be moved, resized or deleted through a hydrator.
package hydrate

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"maps"
	"slices"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"

	"mockupstudio/internal/scene"
	"mockupstudio/internal/slots"
)

var (
	// ErrUnknownSlot is returned for a value addressed to no slot.
	ErrUnknownSlot = errors.New("unknown slot")

	// ErrInvalidValue is returned for a value a slot cannot take.
	ErrInvalidValue = errors.New("invalid slot value")

	// ErrAsset reports an image that failed to load. It is a soft error:
	// the frame falls back to its placeholder and hydration continues.
	ErrAsset = errors.New("asset unavailable")
)

// Markers stored in customData on objects the hydrator inserts.
const (
	RolePlaceholder = "placeholder"
	RoleFrameImage  = "frame-image"

	keyRole  = "role"
	keySlot  = "slot"
	keyFrame = "frame"
)

// ImageLoader fetches and decodes the image behind a URL.
type ImageLoader interface {
	Load(ctx context.Context, src string) (image.Image, error)
}

// Values are a customer's inputs keyed by slot key.
type Values struct {
	Text  map[string]string `json:"textValues,omitempty"`
	Image map[string]string `json:"imageValues,omitempty"`
	Color map[string]string `json:"colorValues,omitempty"`
}

// Options tune the placeholder drawn into empty frames.
type Options struct {
	PlaceholderFill  string
	PlaceholderInk   string
	PlaceholderIcon  string
	PlaceholderLabel string

	// FetchConcurrency bounds parallel image loads in Apply.
	FetchConcurrency int
}

func (o *Options) defaults() {
	if o.PlaceholderFill == "" {
		o.PlaceholderFill = "#e5e7eb"
	}
	if o.PlaceholderInk == "" {
		o.PlaceholderInk = "#6b7280"
	}
	if o.PlaceholderIcon == "" {
		o.PlaceholderIcon = "+"
	}
	if o.PlaceholderLabel == "" {
		o.PlaceholderLabel = "Tap to add your photo"
	}
	if o.FetchConcurrency <= 0 {
		o.FetchConcurrency = 4
	}
}

// Hydrator is one customer's personalized rendering of a template.
type Hydrator struct {
	doc    *scene.Document
	slots  slots.Set
	images ImageLoader
	opts   Options

	values       Values
	frameOpacity map[string]float64
}

// New deep-copies tmpl, locks every object against interaction and draws a
// placeholder into every frame.
func New(tmpl *scene.Document, images ImageLoader, opts Options) *Hydrator {
	opts.defaults()
	h := &Hydrator{
		doc:          tmpl.Clone(),
		images:       images,
		opts:         opts,
		values:       Values{Text: map[string]string{}, Image: map[string]string{}, Color: map[string]string{}},
		frameOpacity: map[string]float64{},
	}
	h.slots = slots.Classify(h.doc)
	for _, o := range h.doc.Objects {
		lock(o)
	}
	for _, s := range h.slots.Frame {
		frame, _ := h.doc.Find(s.ObjectID)
		h.frameOpacity[frame.ID] = frame.Opacity
		h.placeholder(frame, s.Key)
	}
	return h
}

// Load is New over a serialized template state.
func Load(state string, images ImageLoader, opts Options) (*Hydrator, error) {
	doc, err := scene.ParseString(state)
	if err != nil {
		return nil, fmt.Errorf("hydrate: %w", err)
	}
	return New(doc, images, opts), nil
}

func lock(o *scene.Object) {
	o.Selectable = false
	o.Evented = false
}

// Slots returns the template's slots.
func (h *Hydrator) Slots() slots.Set {
	return h.slots
}

// Document returns a copy of the hydrated document for rendering.
func (h *Hydrator) Document() *scene.Document {
	return h.doc.Clone()
}

// Values returns the values currently applied, after truncation.
func (h *Hydrator) Values() Values {
	return Values{
		Text:  maps.Clone(h.values.Text),
		Image: maps.Clone(h.values.Image),
		Color: maps.Clone(h.values.Color),
	}
}

// SetText sets every text slot addressed by key, normalized to NFC and
// truncated to the slot's character limit.
func (h *Hydrator) SetText(key, value string) error {
	targets := h.slots.ByKey(slots.KindText, key)
	if len(targets) == 0 {
		return fmt.Errorf("text %q: %w", key, ErrUnknownSlot)
	}
	value = norm.NFC.String(value)
	applied := value
	for _, s := range targets {
		o, _ := h.doc.Find(s.ObjectID)
		v := Truncate(value, o.Text.MaxChars)
		o.Text.Text = v
		if utf8.RuneCountInString(v) < utf8.RuneCountInString(applied) {
			applied = v
		}
	}
	h.values.Text[key] = applied
	return nil
}

// Truncate cuts s to at most limit runes.
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}

// SetColor sets the fill of every color slot addressed by key.
func (h *Hydrator) SetColor(key, hex string) error {
	targets := h.slots.ByKey(slots.KindColor, key)
	if len(targets) == 0 {
		return fmt.Errorf("color %q: %w", key, ErrUnknownSlot)
	}
	if !scene.IsHexColor(hex) {
		return fmt.Errorf("color %q: %w: %q is not a hex color", key, ErrInvalidValue, hex)
	}
	for _, s := range targets {
		o, _ := h.doc.Find(s.ObjectID)
		o.Fill = hex
	}
	h.values.Color[key] = hex
	return nil
}

// SetImage loads src and masks it into every frame addressed by key,
// replacing any image inserted earlier. On a load failure the frames show
// their placeholder and the returned error wraps ErrAsset.
func (h *Hydrator) SetImage(ctx context.Context, key, src string) error {
	targets, err := h.frameTargets(key, src)
	if err != nil {
		return err
	}
	img, err := h.images.Load(ctx, src)
	return h.setLoadedImage(key, src, targets, img, err)
}

func (h *Hydrator) frameTargets(key, src string) ([]slots.Slot, error) {
	targets := h.slots.ByKey(slots.KindFrame, key)
	if len(targets) == 0 {
		return nil, fmt.Errorf("image %q: %w", key, ErrUnknownSlot)
	}
	if src == "" || scene.IsDataURL(src) {
		return nil, fmt.Errorf("image %q: %w: an uploaded image URL is required", key, ErrInvalidValue)
	}
	return targets, nil
}

func (h *Hydrator) setLoadedImage(key, src string, targets []slots.Slot, img image.Image, loadErr error) error {
	if loadErr != nil {
		for _, s := range targets {
			frame, _ := h.doc.Find(s.ObjectID)
			h.clearFrame(frame)
			h.placeholder(frame, key)
		}
		delete(h.values.Image, key)
		slog.Warn("frame image failed to load", "slot", key, "src", src, "error", loadErr)
		return fmt.Errorf("image %q: %w: %v", key, ErrAsset, loadErr)
	}

	b := img.Bounds()
	iw, ih := float64(b.Dx()), float64(b.Dy())
	if iw <= 0 || ih <= 0 {
		return fmt.Errorf("image %q: %w: empty image", key, ErrInvalidValue)
	}
	for _, s := range targets {
		frame, _ := h.doc.Find(s.ObjectID)
		h.clearFrame(frame)
		h.insertImage(frame, key, src, iw, ih)
	}
	h.values.Image[key] = src
	return nil
}

// ClearImage removes the customer image from the frames addressed by key
// and restores their placeholder.
func (h *Hydrator) ClearImage(key string) error {
	targets := h.slots.ByKey(slots.KindFrame, key)
	if len(targets) == 0 {
		return fmt.Errorf("image %q: %w", key, ErrUnknownSlot)
	}
	for _, s := range targets {
		frame, _ := h.doc.Find(s.ObjectID)
		h.clearFrame(frame)
		h.placeholder(frame, key)
	}
	delete(h.values.Image, key)
	return nil
}

// Apply sets every value in v. Images are fetched concurrently, then all
// values are applied in a fixed order. The returned error joins every
// failure; asset failures wrap ErrAsset and leave the placeholder in place.
func (h *Hydrator) Apply(ctx context.Context, v Values) error {
	var errs []error
	for _, k := range slices.Sorted(maps.Keys(v.Text)) {
		if err := h.SetText(k, v.Text[k]); err != nil {
			errs = append(errs, err)
		}
	}
	for _, k := range slices.Sorted(maps.Keys(v.Color)) {
		if err := h.SetColor(k, v.Color[k]); err != nil {
			errs = append(errs, err)
		}
	}

	type fetched struct {
		targets []slots.Slot
		img     image.Image
		err     error
	}
	keys := slices.Sorted(maps.Keys(v.Image))
	results := make([]fetched, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.opts.FetchConcurrency)
	for i, k := range keys {
		targets, err := h.frameTargets(k, v.Image[k])
		if err != nil {
			results[i].err = err
			continue
		}
		results[i].targets = targets
		g.Go(func() error {
			results[i].img, results[i].err = h.images.Load(gctx, v.Image[k])
			return nil
		})
	}
	_ = g.Wait()

	for i, k := range keys {
		r := results[i]
		if r.targets == nil {
			errs = append(errs, r.err)
			continue
		}
		if err := h.setLoadedImage(k, v.Image[k], r.targets, r.img, r.err); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// clearFrame removes everything previously inserted for frame and makes
// the frame itself visible again.
func (h *Hydrator) clearFrame(frame *scene.Object) {
	kept := h.doc.Objects[:0]
	for _, o := range h.doc.Objects {
		if o.CustomValue(keyFrame) == frame.ID && o.CustomValue(keyRole) != "" {
			continue
		}
		kept = append(kept, o)
	}
	clear(h.doc.Objects[len(kept):])
	h.doc.Objects = kept
	frame.Opacity = h.frameOpacity[frame.ID]
}

// insertAbove places objs directly above frame in z-order.
func (h *Hydrator) insertAbove(frame *scene.Object, objs ...*scene.Object) {
	_, i := h.doc.Find(frame.ID)
	for n, o := range objs {
		lock(o)
		_ = o.SetCustomValue(keyFrame, frame.ID)
		h.doc.Insert(i+1+n, o)
	}
}

// placeholder draws the empty-frame state: the frame gets a neutral fill
// and an icon and a short label are centered on it.
func (h *Hydrator) placeholder(frame *scene.Object, key string) {
	frame.Fill = h.opts.PlaceholderFill
	fw, fh := frame.ScaledSize()
	c := frame.CenterPoint()
	side := min(fw, fh)

	icon := centeredText(frame.ID+"-placeholder-icon", h.opts.PlaceholderIcon, side*0.35, c, h.opts.PlaceholderInk)
	labelSize := max(10, side*0.07)
	label := centeredText(frame.ID+"-placeholder-label", h.opts.PlaceholderLabel, labelSize,
		scene.Point{X: c.X, Y: c.Y + side*0.25}, h.opts.PlaceholderInk)
	for _, o := range []*scene.Object{icon, label} {
		_ = o.SetCustomValue(keyRole, RolePlaceholder)
		_ = o.SetCustomValue(keySlot, key)
	}
	h.insertAbove(frame, icon, label)
}

func centeredText(id, text string, size float64, at scene.Point, ink string) *scene.Object {
	o := scene.NewText(id, text)
	o.Fill = ink
	o.Text.FontSize = size
	o.Text.TextAlign = "center"
	o.Text.MaxChars = max(o.Text.MaxChars, utf8.RuneCountInString(text))
	o.Width = float64(utf8.RuneCountInString(text)) * size * 0.6
	o.Height = size * o.Text.LineHeight
	o.OriginX, o.OriginY = scene.OriginCenter, scene.OriginMiddle
	o.Left, o.Top = at.X, at.Y
	return o
}

// insertImage masks an iw×ih image into frame with cover scaling, centered
// on the frame, and hides the frame itself.
func (h *Hydrator) insertImage(frame *scene.Object, key, src string, iw, ih float64) {
	fw, fh := frame.ScaledSize()
	s := CoverScale(fw, fh, iw, ih)

	img := scene.NewImage(frame.ID+"-image", src, iw, ih)
	img.ScaleX, img.ScaleY = s, s
	img.Angle = frame.Angle
	img.OriginX, img.OriginY = scene.OriginCenter, scene.OriginMiddle
	c := frame.CenterPoint()
	img.Left, img.Top = c.X, c.Y

	mask := frame.Clone()
	mask.CustomData = nil
	mask.ClipPath = nil
	mask.Opacity = 1
	mask.Visible = true
	mask.IsFrame = false
	mask.IsCustomizable = false
	img.ClipPath = mask

	_ = img.SetCustomValue(keyRole, RoleFrameImage)
	_ = img.SetCustomValue(keySlot, key)
	h.insertAbove(frame, img)
	frame.Opacity = 0
}

// CoverScale is the uniform scale that makes an iw×ih image fully cover a
// fw×fh frame with no letterboxing.
func CoverScale(fw, fh, iw, ih float64) float64 {
	return max(fw/iw, fh/ih)
}

// Inserted returns the objects the hydrator added for the frame slot key
// with the given role.
func (h *Hydrator) Inserted(key, role string) []*scene.Object {
	var out []*scene.Object
	for _, o := range h.doc.Objects {
		if o.CustomValue(keyRole) == role && o.CustomValue(keySlot) == key {
			out = append(out, o)
		}
	}
	return out
}

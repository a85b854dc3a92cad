// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package composite rasterizes scene documents into images. Shapes are
// filled through x/image/vector coverage masks, images and text are placed
// with affine transforms from x/image/draw, and objects with a clip path or
// partial opacity are drawn into a layer that is masked onto the canvas.
package composite

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"mockupstudio/internal/fonts"
	"mockupstudio/internal/scene"
)

// DefaultHighMultiplier is the resolution multiplier for high quality
// exports when none is configured.
const DefaultHighMultiplier = 4

// maxPixels bounds the size of a single render.
const maxPixels = 80 << 20

// imageMargin pads source images with transparent pixels so transformed
// edges are antialiased instead of clamped.
const imageMargin = 4

// ErrTooLarge is returned when the requested output exceeds maxPixels.
var ErrTooLarge = errors.New("render size too large")

// Quality selects the resampling filter and export multiplier.
type Quality string

const (
	QualityStandard Quality = "standard"
	QualityHigh     Quality = "high"
)

// ParseQuality maps a request value to a Quality. Unknown values fall back
// to standard.
func ParseQuality(s string) Quality {
	if Quality(s) == QualityHigh {
		return QualityHigh
	}
	return QualityStandard
}

func (q Quality) interpolator() draw.Interpolator {
	if q == QualityHigh {
		return draw.CatmullRom
	}
	return draw.ApproxBiLinear
}

// ImageLoader resolves an image URL into decoded pixels.
type ImageLoader interface {
	Load(ctx context.Context, src string) (image.Image, error)
}

// Renderer draws documents. It is safe for concurrent use when its font
// registry and image loader are.
type Renderer struct {
	Fonts          *fonts.Registry
	Images         ImageLoader
	HighMultiplier float64
}

// NewRenderer creates a renderer. A nil font registry serves only the
// bundled fonts.
func NewRenderer(reg *fonts.Registry, images ImageLoader) *Renderer {
	if reg == nil {
		reg = fonts.NewRegistry(nil)
	}
	return &Renderer{
		Fonts:          reg,
		Images:         images,
		HighMultiplier: DefaultHighMultiplier,
	}
}

// RenderOptions control a single render.
type RenderOptions struct {
	Multiplier float64
	Quality    Quality
}

// Render draws doc at the given multiplier. The result is
// ceil(width·m) × ceil(height·m) pixels. A transparent background leaves
// the canvas fully transparent.
func (r *Renderer) Render(ctx context.Context, doc *scene.Document, opts RenderOptions) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m := opts.Multiplier
	if m <= 0 {
		m = 1
	}
	w, h := scene.DisplaySize(doc, m)
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("render: empty canvas %dx%d", w, h)
	}
	if int64(w)*int64(h) > maxPixels {
		return nil, fmt.Errorf("render %dx%d: %w", w, h, ErrTooLarge)
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if bg := doc.Background; !bg.Transparent && bg.Color != "" {
		c, err := scene.ParseColor(bg.Color)
		if err != nil {
			return nil, fmt.Errorf("render background: %w", err)
		}
		draw.Draw(dst, dst.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	}

	base := scene.Identity.Scale(m, m)
	for _, o := range doc.Objects {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r.drawObject(ctx, dst, base, o, opts.Quality)
	}
	return dst, nil
}

func (r *Renderer) drawObject(ctx context.Context, dst *image.RGBA, base scene.Matrix, o *scene.Object, q Quality) {
	if o == nil || !o.Visible || o.Opacity <= 0 {
		return
	}
	m := base.Mul(o.Matrix())
	area := objectArea(dst.Bounds(), m, o)
	if area.Empty() {
		return
	}

	target := draw.Image(dst)
	var layer *image.RGBA
	if o.ClipPath != nil || o.Opacity < 1 {
		layer = image.NewRGBA(area)
		target = layer
	}

	switch {
	case o.Kind == scene.KindText:
		r.drawText(ctx, target, m, o, q)
	case o.Kind == scene.KindImage:
		r.drawImage(ctx, target, m, o, q)
		drawStroke(target, area, m, o)
	case o.Kind.IsShape():
		if c, ok := paint(o.Fill); ok {
			outline(o, 0).transform(m).fill(target, area, image.NewUniform(c))
		}
		drawStroke(target, area, m, o)
	}

	if layer != nil {
		mask := layerMask(area, base, o)
		draw.DrawMask(dst, area, layer, area.Min, mask, area.Min, draw.Over)
	}
}

// objectArea is the device rectangle an object can touch. Text uses the
// whole canvas because its measured extent may exceed its box.
func objectArea(bounds image.Rectangle, m scene.Matrix, o *scene.Object) image.Rectangle {
	if o.Kind == scene.KindText {
		return bounds
	}
	g := 1.0
	if o.Stroke != "" && o.StrokeWidth > 0 {
		g += o.StrokeWidth / 2
	}
	corners := [4]scene.Point{
		m.Apply(scene.Point{X: -g, Y: -g}),
		m.Apply(scene.Point{X: o.Width + g, Y: -g}),
		m.Apply(scene.Point{X: o.Width + g, Y: o.Height + g}),
		m.Apply(scene.Point{X: -g, Y: o.Height + g}),
	}
	minX, minY := corners[0].X, corners[0].Y
	maxX, maxY := minX, minY
	for _, p := range corners[1:] {
		minX, minY = math.Min(minX, p.X), math.Min(minY, p.Y)
		maxX, maxY = math.Max(maxX, p.X), math.Max(maxY, p.Y)
	}
	r := image.Rect(int(math.Floor(minX)), int(math.Floor(minY)), int(math.Ceil(maxX)), int(math.Ceil(maxY)))
	return r.Intersect(bounds)
}

// layerMask combines the object's opacity with its clip path.
func layerMask(area image.Rectangle, base scene.Matrix, o *scene.Object) *image.Alpha {
	mask := image.NewAlpha(area)
	a := image.NewUniform(color.Alpha{A: uint8(math.Round(o.Opacity * 255))})
	if clip := o.ClipPath; clip != nil {
		cm := base.Mul(clip.Matrix())
		outline(clip, 0).transform(cm).fill(mask, area, a)
		return mask
	}
	draw.Draw(mask, area, a, image.Point{}, draw.Src)
	return mask
}

func drawStroke(dst draw.Image, area image.Rectangle, m scene.Matrix, o *scene.Object) {
	if o.StrokeWidth <= 0 {
		return
	}
	c, ok := paint(o.Stroke)
	if !ok {
		return
	}
	strokePath(o).transform(m).fill(dst, area, image.NewUniform(c))
}

// paint parses a fill or stroke value. Empty, transparent and malformed
// values paint nothing.
func paint(v string) (color.NRGBA, bool) {
	if v == "" {
		return color.NRGBA{}, false
	}
	c, err := scene.ParseColor(v)
	if err != nil {
		slog.Debug("ignoring unparseable color", "value", v, "error", err)
		return color.NRGBA{}, false
	}
	return c, c.A > 0
}

func (r *Renderer) drawImage(ctx context.Context, dst draw.Image, m scene.Matrix, o *scene.Object, q Quality) {
	if r.Images == nil || o.Image == nil || o.Image.Src == "" {
		return
	}
	img, err := r.Images.Load(ctx, o.Image.Src)
	if err != nil {
		slog.Warn("image unavailable, skipping object", "object_id", o.ID, "src", o.Image.Src, "error", err)
		return
	}
	b := img.Bounds()
	iw, ih := float64(b.Dx()), float64(b.Dy())
	if iw == 0 || ih == 0 {
		return
	}
	w, h := o.Width, o.Height
	if w <= 0 || h <= 0 {
		w, h = iw, ih
	}

	padded := image.NewRGBA(image.Rect(0, 0, b.Dx()+2*imageMargin, b.Dy()+2*imageMargin))
	draw.Draw(padded, image.Rect(imageMargin, imageMargin, imageMargin+b.Dx(), imageMargin+b.Dy()), img, b.Min, draw.Src)

	s2d := m.Scale(w/iw, h/ih).Translate(-imageMargin, -imageMargin)
	q.interpolator().Transform(dst, aff3(s2d), padded, padded.Bounds(), draw.Over, nil)
}

// aff3 converts m to the row-major form x/image/draw expects.
func aff3(m scene.Matrix) f64.Aff3 {
	return f64.Aff3{m.A, m.C, m.E, m.B, m.D, m.F}
}

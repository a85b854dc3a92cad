// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package composite

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"time"

	"golang.org/x/image/draw"

	"mockupstudio/internal/scene"
)

// PrintBackground replaces a transparent background for high quality
// exports.
const PrintBackground = "#ffffff"

// Format is an output encoding.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
)

// ParseFormat maps a request value to a Format. "jpg" is accepted; anything
// else is PNG.
func ParseFormat(s string) Format {
	switch s {
	case "jpeg", "jpg":
		return FormatJPEG
	}
	return FormatPNG
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	if f == FormatJPEG {
		return "image/jpeg"
	}
	return "image/png"
}

// Extension returns the file extension for f, without the dot.
func (f Format) Extension() string {
	if f == FormatJPEG {
		return "jpg"
	}
	return "png"
}

// ExportOptions control an export. Multiplier overrides the quality's
// default when positive.
type ExportOptions struct {
	Quality     Quality
	Format      Format
	Multiplier  float64
	JPEGQuality int
}

// Export renders doc and encodes it to w.
//
// Standard quality renders at the native size. High quality forces an
// opaque background when the document's is transparent and renders at
// HighMultiplier; the document's background is restored before Export
// returns, including when rendering fails or panics.
func (r *Renderer) Export(ctx context.Context, doc *scene.Document, opts ExportOptions, w io.Writer) error {
	m := 1.0
	if opts.Quality == QualityHigh {
		m = r.HighMultiplier
		if m <= 0 {
			m = DefaultHighMultiplier
		}
		saved := doc.Background
		if saved.Transparent || saved.Color == "" {
			doc.Background = scene.ColorBackground(PrintBackground)
		}
		defer func() { doc.Background = saved }()
	}
	if opts.Multiplier > 0 {
		m = opts.Multiplier
	}

	start := time.Now()
	img, err := r.Render(ctx, doc, RenderOptions{Multiplier: m, Quality: opts.Quality})
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if err := Encode(w, img, opts.Format, opts.JPEGQuality); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	slog.Debug("export rendered",
		"document", doc.Name,
		"quality", opts.Quality,
		"multiplier", m,
		"size", img.Bounds().Size(),
		"duration", time.Since(start),
	)
	return nil
}

// Encode writes img in the given format. JPEG output is flattened onto
// white since the format has no alpha channel.
func Encode(w io.Writer, img image.Image, f Format, jpegQuality int) error {
	switch f {
	case FormatJPEG:
		if jpegQuality <= 0 || jpegQuality > 100 {
			jpegQuality = 92
		}
		flat := image.NewRGBA(img.Bounds())
		draw.Draw(flat, flat.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
		draw.Draw(flat, flat.Bounds(), img, img.Bounds().Min, draw.Over)
		if err := jpeg.Encode(w, flat, &jpeg.Options{Quality: jpegQuality}); err != nil {
			return fmt.Errorf("encode jpeg: %w", err)
		}
	default:
		if err := png.Encode(w, img); err != nil {
			return fmt.Errorf("encode png: %w", err)
		}
	}
	return nil
}

// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package composite

import (
	"context"
	"image"
	"log/slog"
	"math"
	"strings"
	"unicode/utf8"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"mockupstudio/internal/fonts"
	"mockupstudio/internal/scene"
)

// Glyphs are rasterized at the device scale of the object, clamped to this
// range so very small or very large transforms stay bounded.
const (
	minTextScale = 0.25
	maxTextScale = 12
)

// textLine is one laid-out line in glyph raster pixels.
type textLine struct {
	text  string
	width float64
}

// drawText lays the text out in a temporary raster at the object's device
// scale k, then transforms that raster onto dst with m·S(1/k).
func (r *Renderer) drawText(ctx context.Context, dst draw.Image, m scene.Matrix, o *scene.Object, q Quality) {
	t := o.Text
	if t == nil || t.Text == "" {
		return
	}
	fill, ok := paint(o.Fill)
	if !ok {
		return
	}

	k := math.Max(math.Hypot(m.A, m.B), math.Hypot(m.C, m.D))
	k = math.Min(math.Max(k, minTextScale), maxTextScale)
	size := t.FontSize * k

	face, err := r.Fonts.Face(ctx, t.FontFamily, fonts.VariantFor(t.FontWeight, t.FontStyle), size)
	if err != nil {
		slog.Warn("text face unavailable, skipping object", "object_id", o.ID, "family", t.FontFamily, "error", err)
		return
	}
	defer face.Close()

	spacing := t.CharSpacing / 1000 * size
	lineH := t.FontSize * t.LineHeight * k

	var lines []textLine
	boxW := o.Width * k
	for _, s := range strings.Split(t.Text, "\n") {
		w := float64(font.MeasureString(face, s)) / 64
		if n := utf8.RuneCountInString(s); n > 1 {
			w += spacing * float64(n-1)
		}
		lines = append(lines, textLine{text: s, width: w})
		boxW = math.Max(boxW, w)
	}
	boxH := math.Max(o.Height*k, lineH*float64(len(lines)))

	tmp := image.NewRGBA(image.Rect(0, 0, int(math.Ceil(boxW))+2, int(math.Ceil(boxH))+2))
	src := image.NewUniform(fill)
	d := &font.Drawer{Dst: tmp, Src: src, Face: face}
	ascent := float64(face.Metrics().Ascent) / 64
	// Center the glyph box vertically in each line, matching how the editor
	// distributes extra line height.
	lead := (lineH - size) / 2

	for i, line := range lines {
		x := 0.0
		switch t.TextAlign {
		case "center":
			x = (boxW - line.width) / 2
		case "right":
			x = boxW - line.width
		}
		baseline := float64(i)*lineH + math.Max(lead, 0) + ascent
		d.Dot = fixed.Point26_6{X: toFixed(x), Y: toFixed(baseline)}

		prev := rune(-1)
		for _, c := range line.text {
			if prev >= 0 {
				d.Dot.X += face.Kern(prev, c)
			}
			d.DrawString(string(c))
			d.Dot.X += toFixed(spacing)
			prev = c
		}

		if t.Underline && line.width > 0 {
			y := baseline + size*0.1
			thick := math.Max(1, size/15)
			ul := image.Rect(int(x), int(y), int(math.Ceil(x+line.width)), int(math.Ceil(y+thick)))
			draw.Draw(tmp, ul, src, image.Point{}, draw.Over)
		}
	}

	s2d := m.Scale(1/k, 1/k)
	q.interpolator().Transform(dst, aff3(s2d), tmp, tmp.Bounds(), draw.Over, nil)
}

func toFixed(v float64) fixed.Int26_6 {
	return fixed.Int26_6(math.Round(v * 64))
}

// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package composite

import (
	"math"

	"mockupstudio/internal/scene"
)

// strokePath returns the area covered by the object's stroke in local
// coordinates. Solid strokes are a ring between the outline grown and shrunk
// by half the stroke width. Dashed strokes are one quad per dash segment.
func strokePath(o *scene.Object) path {
	half := o.StrokeWidth / 2
	if dashes := dashPattern(o.StrokeDashArray); dashes != nil {
		return dashPath(outline(o, 0).flatten(), dashes, half)
	}
	ring := outline(o, half)
	return append(ring, outline(o, -half).reverse()...)
}

// dashPattern normalizes a dash array the way SVG does: odd-length arrays
// repeat once. It returns nil for a solid stroke.
func dashPattern(d []float64) []float64 {
	sum := 0.0
	for _, v := range d {
		if v < 0 {
			return nil
		}
		sum += v
	}
	if sum <= 0 {
		return nil
	}
	if len(d)%2 == 1 {
		return append(append([]float64{}, d...), d...)
	}
	return d
}

// dashPath walks each closed polyline, emitting the "on" intervals of the
// pattern as quads of the given half width. The pattern restarts on every
// subpath.
func dashPath(polys [][]scene.Point, dashes []float64, half float64) path {
	var out path
	for _, poly := range polys {
		idx, remaining, on := 0, dashes[0], true
		run := []scene.Point{poly[0]}
		for i := 1; i < len(poly); i++ {
			a, b := poly[i-1], poly[i]
			l := math.Hypot(b.X-a.X, b.Y-a.Y)
			t := 0.0
			for l-t > remaining {
				t += remaining
				p := lerp(a, b, t/l)
				if on {
					run = append(run, p)
					out = appendRun(out, run, half)
					run = nil
				} else {
					run = []scene.Point{p}
				}
				on = !on
				idx = (idx + 1) % len(dashes)
				remaining = dashes[idx]
			}
			remaining -= l - t
			if on {
				run = append(run, b)
			}
		}
		if on {
			out = appendRun(out, run, half)
		}
	}
	return out
}

func lerp(a, b scene.Point, t float64) scene.Point {
	return scene.Point{X: a.X + (b.X-a.X)*t, Y: a.Y + (b.Y-a.Y)*t}
}

// appendRun adds a quad for every segment of run. All quads share one
// winding so overlapping corners union instead of cancelling.
func appendRun(p path, run []scene.Point, half float64) path {
	for i := 1; i < len(run); i++ {
		a, b := run[i-1], run[i]
		dx, dy := b.X-a.X, b.Y-a.Y
		l := math.Hypot(dx, dy)
		if l == 0 {
			continue
		}
		nx, ny := -dy/l*half, dx/l*half
		q := []scene.Point{
			{X: a.X + nx, Y: a.Y + ny},
			{X: b.X + nx, Y: b.Y + ny},
			{X: b.X - nx, Y: b.Y - ny},
			{X: a.X - nx, Y: a.Y - ny},
		}
		if signedArea(q) < 0 {
			q[1], q[3] = q[3], q[1]
		}
		p = append(p, polygonPath(q)...)
	}
	return p
}

func signedArea(pts []scene.Point) float64 {
	a := 0.0
	for i := range pts {
		p, q := pts[i], pts[(i+1)%len(pts)]
		a += p.X*q.Y - q.X*p.Y
	}
	return a / 2
}

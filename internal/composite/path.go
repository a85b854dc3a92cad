// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package composite

import (
	"image"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/vector"

	"mockupstudio/internal/scene"
)

// kappa places cubic control points for a quarter ellipse.
const kappa = 0.5522847498307936

// flattenSteps is the number of line segments per cubic when a path is
// flattened for dashing.
const flattenSteps = 16

type segOp uint8

const (
	opMove segOp = iota
	opLine
	opCube
	opClose
)

// segment is one path command. Move and line use p[0]; cubes use p[0] and
// p[1] as control points and p[2] as the end point.
type segment struct {
	op segOp
	p  [3]scene.Point
}

func (s segment) end() scene.Point {
	if s.op == opCube {
		return s.p[2]
	}
	return s.p[0]
}

// path is a sequence of closed subpaths in some coordinate space.
type path []segment

func (p *path) moveTo(x, y float64) { *p = append(*p, segment{op: opMove, p: [3]scene.Point{{X: x, Y: y}}}) }
func (p *path) lineTo(x, y float64) { *p = append(*p, segment{op: opLine, p: [3]scene.Point{{X: x, Y: y}}}) }
func (p *path) close()              { *p = append(*p, segment{op: opClose}) }

func (p *path) cubeTo(c1x, c1y, c2x, c2y, x, y float64) {
	*p = append(*p, segment{op: opCube, p: [3]scene.Point{{X: c1x, Y: c1y}, {X: c2x, Y: c2y}, {X: x, Y: y}}})
}

// transform maps every point through m.
func (p path) transform(m scene.Matrix) path {
	out := make(path, len(p))
	for i, s := range p {
		out[i].op = s.op
		for j := range s.p {
			out[i].p[j] = m.Apply(s.p[j])
		}
	}
	return out
}

// reverse returns p with every subpath traversed in the opposite direction,
// which flips its winding.
func (p path) reverse() path {
	out := make(path, 0, len(p))
	start := 0
	for start < len(p) {
		end := start + 1
		for end < len(p) && p[end].op != opMove {
			end++
		}
		sub := p[start:end]
		pts := make([]scene.Point, 0, len(sub))
		for _, s := range sub {
			if s.op != opClose {
				pts = append(pts, s.end())
			}
		}
		if len(pts) > 0 {
			last := pts[len(pts)-1]
			out.moveTo(last.X, last.Y)
			for i := len(sub) - 1; i > 0; i-- {
				s := sub[i]
				if s.op == opClose {
					continue
				}
				prev := sub[i-1].end()
				if sub[i-1].op == opClose {
					prev = sub[0].end()
				}
				switch s.op {
				case opLine:
					out.lineTo(prev.X, prev.Y)
				case opCube:
					out.cubeTo(s.p[1].X, s.p[1].Y, s.p[0].X, s.p[0].Y, prev.X, prev.Y)
				}
			}
			out.close()
		}
		start = end
	}
	return out
}

// flatten converts each subpath into a closed polyline. The first point is
// repeated at the end.
func (p path) flatten() [][]scene.Point {
	var polys [][]scene.Point
	var cur []scene.Point
	flush := func() {
		if len(cur) > 1 {
			if cur[len(cur)-1] != cur[0] {
				cur = append(cur, cur[0])
			}
			polys = append(polys, cur)
		}
		cur = nil
	}
	for _, s := range p {
		switch s.op {
		case opMove:
			flush()
			cur = append(cur, s.p[0])
		case opLine:
			cur = append(cur, s.p[0])
		case opCube:
			p0 := cur[len(cur)-1]
			for i := 1; i <= flattenSteps; i++ {
				cur = append(cur, cubicAt(p0, s.p[0], s.p[1], s.p[2], float64(i)/flattenSteps))
			}
		case opClose:
			flush()
		}
	}
	flush()
	return polys
}

func cubicAt(p0, p1, p2, p3 scene.Point, t float64) scene.Point {
	u := 1 - t
	a, b, c, d := u*u*u, 3*u*u*t, 3*u*t*t, t*t*t
	return scene.Point{
		X: a*p0.X + b*p1.X + c*p2.X + d*p3.X,
		Y: a*p0.Y + b*p1.Y + c*p2.Y + d*p3.Y,
	}
}

// fill rasterizes p (in dst pixel coordinates) into the area r of dst,
// painting src through the coverage mask.
func (p path) fill(dst draw.Image, r image.Rectangle, src image.Image) {
	if r.Empty() || len(p) == 0 {
		return
	}
	ras := vector.NewRasterizer(r.Dx(), r.Dy())
	ox, oy := float64(r.Min.X), float64(r.Min.Y)
	for _, s := range p {
		switch s.op {
		case opMove:
			ras.MoveTo(float32(s.p[0].X-ox), float32(s.p[0].Y-oy))
		case opLine:
			ras.LineTo(float32(s.p[0].X-ox), float32(s.p[0].Y-oy))
		case opCube:
			ras.CubeTo(
				float32(s.p[0].X-ox), float32(s.p[0].Y-oy),
				float32(s.p[1].X-ox), float32(s.p[1].Y-oy),
				float32(s.p[2].X-ox), float32(s.p[2].Y-oy),
			)
		case opClose:
			ras.ClosePath()
		}
	}
	ras.Draw(dst, r, src, image.Point{})
}

// rectPath builds a rectangle, with elliptical corners when both radii are
// positive. Radii are clamped to half the side lengths.
func rectPath(x, y, w, h, rx, ry float64) path {
	var p path
	if w <= 0 || h <= 0 {
		return p
	}
	rx, ry = math.Min(rx, w/2), math.Min(ry, h/2)
	if rx <= 0 || ry <= 0 {
		return polygonPath([]scene.Point{{X: x, Y: y}, {X: x + w, Y: y}, {X: x + w, Y: y + h}, {X: x, Y: y + h}})
	}
	kx, ky := kappa*rx, kappa*ry
	p.moveTo(x+rx, y)
	p.lineTo(x+w-rx, y)
	p.cubeTo(x+w-rx+kx, y, x+w, y+ry-ky, x+w, y+ry)
	p.lineTo(x+w, y+h-ry)
	p.cubeTo(x+w, y+h-ry+ky, x+w-rx+kx, y+h, x+w-rx, y+h)
	p.lineTo(x+rx, y+h)
	p.cubeTo(x+rx-kx, y+h, x, y+h-ry+ky, x, y+h-ry)
	p.lineTo(x, y+ry)
	p.cubeTo(x, y+ry-ky, x+rx-kx, y, x+rx, y)
	p.close()
	return p
}

// ellipsePath builds an ellipse centered on (cx, cy) from four cubics.
func ellipsePath(cx, cy, rx, ry float64) path {
	var p path
	if rx <= 0 || ry <= 0 {
		return p
	}
	kx, ky := kappa*rx, kappa*ry
	p.moveTo(cx+rx, cy)
	p.cubeTo(cx+rx, cy+ky, cx+kx, cy+ry, cx, cy+ry)
	p.cubeTo(cx-kx, cy+ry, cx-rx, cy+ky, cx-rx, cy)
	p.cubeTo(cx-rx, cy-ky, cx-kx, cy-ry, cx, cy-ry)
	p.cubeTo(cx+kx, cy-ry, cx+rx, cy-ky, cx+rx, cy)
	p.close()
	return p
}

func polygonPath(pts []scene.Point) path {
	var p path
	if len(pts) < 3 {
		return p
	}
	p.moveTo(pts[0].X, pts[0].Y)
	for _, pt := range pts[1:] {
		p.lineTo(pt.X, pt.Y)
	}
	p.lineTo(pts[0].X, pts[0].Y)
	p.close()
	return p
}

func trianglePoints(w, h float64) []scene.Point {
	return []scene.Point{{X: w / 2, Y: 0}, {X: w, Y: h}, {X: 0, Y: h}}
}

// offsetPolygon moves every edge of a convex polygon outward by d (inward
// when d is negative) with mitered corners. It returns nil when an inward
// offset collapses the polygon.
func offsetPolygon(pts []scene.Point, d float64) []scene.Point {
	n := len(pts)
	if n < 3 {
		return nil
	}
	area, perim := 0.0, 0.0
	for i := range pts {
		a, b := pts[i], pts[(i+1)%n]
		area += a.X*b.Y - b.X*a.Y
		perim += math.Hypot(b.X-a.X, b.Y-a.Y)
	}
	if area == 0 || perim == 0 {
		return nil
	}
	if d < 0 && -d >= math.Abs(area)/perim {
		return nil
	}
	sign := 1.0
	if area < 0 {
		sign = -1
	}
	normals := make([]scene.Point, n)
	for i := range pts {
		a, b := pts[i], pts[(i+1)%n]
		l := math.Hypot(b.X-a.X, b.Y-a.Y)
		if l == 0 {
			return nil
		}
		normals[i] = scene.Point{X: sign * (b.Y - a.Y) / l, Y: -sign * (b.X - a.X) / l}
	}
	out := make([]scene.Point, n)
	for i := range pts {
		n1, n2 := normals[(i+n-1)%n], normals[i]
		denom := 1 + n1.X*n2.X + n1.Y*n2.Y
		if denom < 1e-6 {
			denom = 1e-6
		}
		out[i] = scene.Point{
			X: pts[i].X + d*(n1.X+n2.X)/denom,
			Y: pts[i].Y + d*(n1.Y+n2.Y)/denom,
		}
	}
	return out
}

// outline returns the object's shape in local coordinates, grown outward by
// grow (shrunk when negative). Non-shape objects use their box.
func outline(o *scene.Object, grow float64) path {
	w, h := o.Width, o.Height
	switch o.Kind {
	case scene.KindCircle:
		return ellipsePath(w/2, h/2, w/2+grow, h/2+grow)
	case scene.KindTriangle:
		return polygonPath(offsetPolygon(trianglePoints(w, h), grow))
	case scene.KindRect:
		rx, ry := 0.0, 0.0
		if o.Shape != nil && o.Shape.Rx > 0 && o.Shape.Ry > 0 {
			rx, ry = math.Max(o.Shape.Rx+grow, 0), math.Max(o.Shape.Ry+grow, 0)
		}
		return rectPath(-grow, -grow, w+2*grow, h+2*grow, rx, ry)
	}
	return rectPath(-grow, -grow, w+2*grow, h+2*grow, 0, 0)
}

// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package scene

import "math"

// Point is a 2D point in canvas pixel units.
type Point struct {
	X, Y float64
}

// Rect is an axis-aligned rectangle. Min is the top-left corner.
type Rect struct {
	Min, Max Point
}

// Dx returns the rectangle's width.
func (r Rect) Dx() float64 { return r.Max.X - r.Min.X }

// Dy returns the rectangle's height.
func (r Rect) Dy() float64 { return r.Max.Y - r.Min.Y }

// Center returns the midpoint of the rectangle.
func (r Rect) Center() Point {
	return Point{(r.Min.X + r.Max.X) / 2, (r.Min.Y + r.Max.Y) / 2}
}

// Matrix is a 2D affine transform mapping (x, y) to
// (A*x + C*y + E, B*x + D*y + F).
type Matrix struct {
	A, B, C, D, E, F float64
}

// Identity is the identity transform.
var Identity = Matrix{A: 1, D: 1}

// Mul returns m·n, the transform that applies n first and then m.
func (m Matrix) Mul(n Matrix) Matrix {
	return Matrix{
		A: m.A*n.A + m.C*n.B,
		B: m.B*n.A + m.D*n.B,
		C: m.A*n.C + m.C*n.D,
		D: m.B*n.C + m.D*n.D,
		E: m.A*n.E + m.C*n.F + m.E,
		F: m.B*n.E + m.D*n.F + m.F,
	}
}

// Translate applies a translation in local coordinates, so
// m.Translate(x, y).Apply(p) == m.Apply(p + (x, y)).
func (m Matrix) Translate(x, y float64) Matrix {
	return m.Mul(Matrix{A: 1, D: 1, E: x, F: y})
}

// Rotate applies a clockwise rotation of deg degrees in local coordinates.
func (m Matrix) Rotate(deg float64) Matrix {
	if deg == 0 {
		return m
	}
	s, c := math.Sincos(deg * math.Pi / 180)
	return m.Mul(Matrix{A: c, B: s, C: -s, D: c})
}

// Scale applies a scale in local coordinates.
func (m Matrix) Scale(sx, sy float64) Matrix {
	return m.Mul(Matrix{A: sx, D: sy})
}

// Apply transforms p.
func (m Matrix) Apply(p Point) Point {
	return Point{
		X: m.A*p.X + m.C*p.Y + m.E,
		Y: m.B*p.X + m.D*p.Y + m.F,
	}
}

// Det returns the determinant of the linear part.
func (m Matrix) Det() float64 {
	return m.A*m.D - m.B*m.C
}

// Invert returns the inverse transform. ok is false for singular matrices.
func (m Matrix) Invert() (inv Matrix, ok bool) {
	det := m.Det()
	if det == 0 || math.IsNaN(det) {
		return Matrix{}, false
	}
	inv = Matrix{
		A: m.D / det,
		B: -m.B / det,
		C: -m.C / det,
		D: m.A / det,
	}
	inv.E = -(inv.A*m.E + inv.C*m.F)
	inv.F = -(inv.B*m.E + inv.D*m.F)
	return inv, true
}

// originFactor maps an origin keyword to its fraction of the box size.
func originFactorX(o OriginX) float64 {
	switch o {
	case OriginCenter:
		return 0.5
	case OriginRight:
		return 1
	}
	return 0
}

func originFactorY(o OriginY) float64 {
	switch o {
	case OriginMiddle:
		return 0.5
	case OriginBottom:
		return 1
	}
	return 0
}

// Matrix returns the transform from the object's local box
// (0,0)-(Width,Height) into canvas coordinates:
// T(left,top)·R(angle)·S(scaleX,scaleY)·T(-origin).
func (g *Geometry) Matrix() Matrix {
	sx, sy := g.ScaleX, g.ScaleY
	if g.FlipX {
		sx = -sx
	}
	if g.FlipY {
		sy = -sy
	}
	return Identity.
		Translate(g.Left, g.Top).
		Rotate(g.Angle).
		Scale(sx, sy).
		Translate(-originFactorX(g.OriginX)*g.Width, -originFactorY(g.OriginY)*g.Height)
}

// CenterPoint returns the canvas position of the local box's center.
func (g *Geometry) CenterPoint() Point {
	return g.Matrix().Apply(Point{g.Width / 2, g.Height / 2})
}

// ScaledSize returns the box size after scaling, before rotation.
func (g *Geometry) ScaledSize() (w, h float64) {
	return g.Width * math.Abs(g.ScaleX), g.Height * math.Abs(g.ScaleY)
}

// Bounds returns the axis-aligned bounding box of the transformed local box.
func (g *Geometry) Bounds() Rect {
	m := g.Matrix()
	corners := [4]Point{
		m.Apply(Point{0, 0}),
		m.Apply(Point{g.Width, 0}),
		m.Apply(Point{g.Width, g.Height}),
		m.Apply(Point{0, g.Height}),
	}
	r := Rect{Min: corners[0], Max: corners[0]}
	for _, p := range corners[1:] {
		r.Min.X = math.Min(r.Min.X, p.X)
		r.Min.Y = math.Min(r.Min.Y, p.Y)
		r.Max.X = math.Max(r.Max.X, p.X)
		r.Max.Y = math.Max(r.Max.Y, p.Y)
	}
	return r
}

// SetCenter moves the object so that its local box center lands on p,
// keeping scale, rotation and origin unchanged.
func (g *Geometry) SetCenter(p Point) {
	c := g.CenterPoint()
	g.Left += p.X - c.X
	g.Top += p.Y - c.Y
}

// Package geometry provides the shape primitives shared by the vector
// drawing pipeline: points, bounding boxes, and the tagged shape variants
// (circle, rectangle, polygon) with containment and distance queries.
//
// All coordinates are PDF points unless a function name says otherwise.
package geometry

import "math"

// PointsPerMM converts between PDF points and millimeters (1 pt = 1/2.834645 mm).
const PointsPerMM = 2.834645

// PtToMM converts a length in PDF points to millimeters.
func PtToMM(pt float64) float64 {
	return pt / PointsPerMM
}

// MMToPt converts a length in millimeters to PDF points.
func MMToPt(mm float64) float64 {
	return mm * PointsPerMM
}

// Point is a 2D point in page coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Distance returns the euclidean distance to q.
func (p Point) Distance(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// BBox is an axis-aligned bounding box with X0 <= X1 and Y0 <= Y1.
type BBox struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

// NormalizedBBox returns a BBox with corners ordered so X0 <= X1 and Y0 <= Y1.
func NormalizedBBox(x0, y0, x1, y1 float64) BBox {
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	return BBox{X0: x0, Y0: y0, X1: x1, Y1: y1}
}

// Width returns the box width.
func (b BBox) Width() float64 { return b.X1 - b.X0 }

// Height returns the box height.
func (b BBox) Height() float64 { return b.Y1 - b.Y0 }

// Center returns the box center.
func (b BBox) Center() Point {
	return Point{X: (b.X0 + b.X1) / 2, Y: (b.Y0 + b.Y1) / 2}
}

// Area returns the box area.
func (b BBox) Area() float64 { return b.Width() * b.Height() }

// Contains reports whether p lies inside the box (inclusive).
func (b BBox) Contains(p Point) bool {
	return p.X >= b.X0 && p.X <= b.X1 && p.Y >= b.Y0 && p.Y <= b.Y1
}

// Union returns the smallest box covering both b and o.
func (b BBox) Union(o BBox) BBox {
	return BBox{
		X0: math.Min(b.X0, o.X0),
		Y0: math.Min(b.Y0, o.Y0),
		X1: math.Max(b.X1, o.X1),
		Y1: math.Max(b.Y1, o.Y1),
	}
}

// DistanceToPoint returns the signed distance from p to the box boundary.
// Negative means p is inside.
func (b BBox) DistanceToPoint(p Point) float64 {
	dx := math.Max(math.Max(b.X0-p.X, 0), p.X-b.X1)
	dy := math.Max(math.Max(b.Y0-p.Y, 0), p.Y-b.Y1)
	if dx > 0 || dy > 0 {
		return math.Hypot(dx, dy)
	}
	// Inside: negative distance to the nearest edge.
	inner := math.Min(
		math.Min(p.X-b.X0, b.X1-p.X),
		math.Min(p.Y-b.Y0, b.Y1-p.Y),
	)
	return -inner
}

// PointSegmentDistance returns the distance from p to the segment a-b.
func PointSegmentDistance(p, a, b Point) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return p.Distance(a)
	}
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / lenSq
	t = math.Max(0, math.Min(1, t))
	return p.Distance(Point{X: a.X + t*dx, Y: a.Y + t*dy})
}

// Centroid returns the arithmetic mean of the points.
// Returns the zero point for an empty slice.
func Centroid(pts []Point) Point {
	if len(pts) == 0 {
		return Point{}
	}
	var sx, sy float64
	for _, p := range pts {
		sx += p.X
		sy += p.Y
	}
	n := float64(len(pts))
	return Point{X: sx / n, Y: sy / n}
}

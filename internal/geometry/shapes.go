package geometry

import (
	"math"
	"strconv"

	"github.com/steeltrace/steeltrace/internal/errors"
)

// ShapeKind tags the shape variants.
type ShapeKind string

const (
	KindCircle    ShapeKind = "circle"
	KindRectangle ShapeKind = "rectangle"
	KindPolygon   ShapeKind = "polygon"
)

// LineStyle describes the stroke dash pattern.
type LineStyle string

const (
	LineSolid  LineStyle = "solid"
	LineDashed LineStyle = "dashed"
	LineDotted LineStyle = "dotted"
)

// Style carries the rendering attributes a shape was drawn with.
type Style struct {
	StrokeWidth float64   `json:"stroke_width"`
	StrokeColor [3]float64 `json:"stroke_color"`
	Fill        bool      `json:"fill"`
	LineStyle   LineStyle `json:"line_style"`
}

// Shape is the tagged variant over circle, rectangle, and polygon.
// All operations are pure.
type Shape interface {
	Kind() ShapeKind
	Bounds() BBox
	// ContainsPoint reports whether p lies inside the shape.
	ContainsPoint(p Point) bool
	// DistanceToPoint returns the signed distance from p to the shape
	// boundary: negative inside, positive outside, zero on the boundary.
	DistanceToPoint(p Point) float64
	PageNumber() int
	ShapeStyle() Style
}

// Circle is a circle in page coordinates.
type Circle struct {
	Center Point   `json:"center"`
	Radius float64 `json:"radius"`
	Page   int     `json:"page"`
	Style  Style   `json:"style"`
}

var _ Shape = (*Circle)(nil)

// NewCircle constructs a circle, rejecting non-positive radii.
func NewCircle(center Point, radius float64, page int, style Style) (*Circle, error) {
	if radius <= 0 || math.IsNaN(radius) || math.IsInf(radius, 0) {
		return nil, errors.New(errors.ErrCodeInvalidShape, "circle radius must be positive", nil).
			WithDetail("radius", strconv.FormatFloat(radius, 'g', -1, 64))
	}
	return &Circle{Center: center, Radius: radius, Page: page, Style: style}, nil
}

func (c *Circle) Kind() ShapeKind { return KindCircle }

func (c *Circle) Bounds() BBox {
	return BBox{
		X0: c.Center.X - c.Radius,
		Y0: c.Center.Y - c.Radius,
		X1: c.Center.X + c.Radius,
		Y1: c.Center.Y + c.Radius,
	}
}

func (c *Circle) ContainsPoint(p Point) bool {
	return c.Center.Distance(p) <= c.Radius
}

func (c *Circle) DistanceToPoint(p Point) float64 {
	return c.Center.Distance(p) - c.Radius
}

func (c *Circle) PageNumber() int  { return c.Page }
func (c *Circle) ShapeStyle() Style { return c.Style }

// Rectangle is an axis-aligned rectangle.
type Rectangle struct {
	Box   BBox  `json:"bbox"`
	Page  int   `json:"page"`
	Style Style `json:"style"`
}

var _ Shape = (*Rectangle)(nil)

// NewRectangle constructs a rectangle, rejecting degenerate boxes.
func NewRectangle(box BBox, page int, style Style) (*Rectangle, error) {
	if box.X0 > box.X1 || box.Y0 > box.Y1 {
		return nil, errors.New(errors.ErrCodeInvalidShape, "bounding box corners out of order", nil)
	}
	if box.Width() <= 0 && box.Height() <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidShape, "rectangle has zero extent", nil)
	}
	return &Rectangle{Box: box, Page: page, Style: style}, nil
}

func (r *Rectangle) Kind() ShapeKind { return KindRectangle }
func (r *Rectangle) Bounds() BBox    { return r.Box }

func (r *Rectangle) ContainsPoint(p Point) bool {
	return r.Box.Contains(p)
}

func (r *Rectangle) DistanceToPoint(p Point) float64 {
	return r.Box.DistanceToPoint(p)
}

func (r *Rectangle) PageNumber() int  { return r.Page }
func (r *Rectangle) ShapeStyle() Style { return r.Style }

// Polygon is a closed polygon over ordered vertices.
type Polygon struct {
	Vertices []Point `json:"vertices"`
	Page     int     `json:"page"`
	Style    Style   `json:"style"`
}

var _ Shape = (*Polygon)(nil)

// NewPolygon constructs a polygon. It requires at least 3 vertices and
// rejects zero-length edges.
func NewPolygon(vertices []Point, page int, style Style) (*Polygon, error) {
	if len(vertices) < 3 {
		return nil, errors.New(errors.ErrCodeInvalidShape, "polygon requires at least 3 vertices", nil).
			WithDetail("vertices", strconv.Itoa(len(vertices)))
	}
	for i := range vertices {
		next := vertices[(i+1)%len(vertices)]
		if vertices[i].Distance(next) == 0 {
			return nil, errors.New(errors.ErrCodeInvalidShape, "polygon has a zero-length edge", nil).
				WithDetail("edge_index", strconv.Itoa(i))
		}
	}
	return &Polygon{Vertices: vertices, Page: page, Style: style}, nil
}

func (pg *Polygon) Kind() ShapeKind { return KindPolygon }

func (pg *Polygon) Bounds() BBox {
	b := BBox{X0: math.Inf(1), Y0: math.Inf(1), X1: math.Inf(-1), Y1: math.Inf(-1)}
	for _, v := range pg.Vertices {
		b.X0 = math.Min(b.X0, v.X)
		b.Y0 = math.Min(b.Y0, v.Y)
		b.X1 = math.Max(b.X1, v.X)
		b.Y1 = math.Max(b.Y1, v.Y)
	}
	return b
}

// ContainsPoint uses the even-odd ray cast rule.
func (pg *Polygon) ContainsPoint(p Point) bool {
	inside := false
	n := len(pg.Vertices)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		vi, vj := pg.Vertices[i], pg.Vertices[j]
		if (vi.Y > p.Y) != (vj.Y > p.Y) &&
			p.X < (vj.X-vi.X)*(p.Y-vi.Y)/(vj.Y-vi.Y)+vi.X {
			inside = !inside
		}
	}
	return inside
}

// DistanceToPoint returns the minimum distance to any edge, negated when
// the point is inside.
func (pg *Polygon) DistanceToPoint(p Point) float64 {
	minDist := math.Inf(1)
	n := len(pg.Vertices)
	for i := 0; i < n; i++ {
		d := PointSegmentDistance(p, pg.Vertices[i], pg.Vertices[(i+1)%n])
		if d < minDist {
			minDist = d
		}
	}
	if pg.ContainsPoint(p) {
		return -minDist
	}
	return minDist
}

func (pg *Polygon) PageNumber() int  { return pg.Page }
func (pg *Polygon) ShapeStyle() Style { return pg.Style }

// Encode renders a shape as a tagged map suitable for JSON serialization.
func Encode(s Shape) map[string]any {
	m := map[string]any{
		"kind":  string(s.Kind()),
		"page":  s.PageNumber(),
		"style": s.ShapeStyle(),
	}
	switch v := s.(type) {
	case *Circle:
		m["center"] = v.Center
		m["radius"] = v.Radius
	case *Rectangle:
		m["bbox"] = v.Box
	case *Polygon:
		m["vertices"] = v.Vertices
	}
	return m
}

// Package drawing implements the vector-geometric pipeline: it recovers
// text, line segments, and arcs from a PDF's drawing operators, clusters
// them into shapes with auto-tuned parameters, and associates shapes with
// nearby text labels to produce element occurrences.
package drawing

import (
	"math"

	"github.com/steeltrace/steeltrace/internal/geometry"
)

// CoordinateOrigin selects the coordinate convention of extracted geometry.
type CoordinateOrigin string

const (
	// OriginPDF is PDF-native: origin at the bottom-left, Y grows up.
	OriginPDF CoordinateOrigin = "pdf"
	// OriginImage is raster convention: origin at the top-left, Y grows down.
	OriginImage CoordinateOrigin = "image"
)

// PageInfo carries page-level metadata in PDF points.
type PageInfo struct {
	Number   int     `json:"number"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Rotation int     `json:"rotation"`
}

// TextInstance is a positioned word recovered from the page.
type TextInstance struct {
	Text       string        `json:"text"`
	Box        geometry.BBox `json:"bbox"`
	Center     geometry.Point `json:"center"`
	Font       string        `json:"font"`
	FontSize   float64       `json:"font_size"`
	Page       int           `json:"page"`
	Confidence float64       `json:"confidence"`
}

// LineSegment is a stroked line in page coordinates (points).
type LineSegment struct {
	X0, Y0, X1, Y1 float64
	Width          float64
	Color          [3]float64
	Page           int
}

// Length returns the segment length in points.
func (l LineSegment) Length() float64 {
	return math.Hypot(l.X1-l.X0, l.Y1-l.Y0)
}

// LengthMM returns the segment length in millimeters.
func (l LineSegment) LengthMM() float64 {
	return geometry.PtToMM(l.Length())
}

// Midpoint returns the segment midpoint.
func (l LineSegment) Midpoint() geometry.Point {
	return geometry.Point{X: (l.X0 + l.X1) / 2, Y: (l.Y0 + l.Y1) / 2}
}

// AngleDegrees returns the segment angle in [0, 180).
func (l LineSegment) AngleDegrees() float64 {
	deg := math.Atan2(l.Y1-l.Y0, l.X1-l.X0) * 180 / math.Pi
	if deg < 0 {
		deg += 180
	}
	return deg
}

// Arc is a bezier subpath summarized by its bounding box.
// A subpath of exactly 4 curves with a near-square aspect is pre-tagged
// as a circle.
type Arc struct {
	Bounds     geometry.BBox
	CurveCount int
	Center     geometry.Point
	Aspect     float64
	IsCircle   bool
	Width      float64
	Color      [3]float64
	Page       int
}

// PageVectors is the raw vector content of one page.
type PageVectors struct {
	Info  PageInfo
	Lines []LineSegment
	Arcs  []Arc
}

// AssociationPosition classifies how a text relates to a shape.
type AssociationPosition string

const (
	PositionInside AssociationPosition = "inside"
	PositionNear   AssociationPosition = "near"
)

// Association is one text-to-shape link with its confidence.
type Association struct {
	Text       TextInstance        `json:"text"`
	Position   AssociationPosition `json:"position"`
	DistanceMM float64             `json:"distance_mm"`
	Confidence float64             `json:"confidence"`
}

// DetectedElement is an engineering element located on a drawing: an ID
// token anchored to a backing shape. The first association is always the
// highest-confidence one.
type DetectedElement struct {
	ID           string         `json:"id"`
	Type         string         `json:"type"`
	Anchor       geometry.Point `json:"anchor"`
	Shape        geometry.Shape `json:"-"`
	ShapeKind    string         `json:"shape_kind"`
	Page         int            `json:"page"`
	Associations []Association  `json:"associations"`
	Confidence   float64        `json:"confidence"`
}

// DetectionSummary aggregates element counts for a detection run.
type DetectionSummary struct {
	Total        int            `json:"total"`
	CountsByID   map[string]int `json:"counts_by_id"`
	CountsByType map[string]int `json:"counts_by_type"`
}

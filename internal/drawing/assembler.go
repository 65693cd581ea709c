package drawing

import (
	"log/slog"
	"math"
	"sort"

	"github.com/steeltrace/steeltrace/internal/geometry"
)

// DrawingStyle classifies how a page's linework was exported. CAD
// exporters that emit thousands of sub-millimeter strokes need very
// different clustering parameters than clean medium-length linework.
type DrawingStyle string

const (
	StyleTinySegments DrawingStyle = "tiny_segments"
	StyleNormal       DrawingStyle = "normal"
	StyleMixed        DrawingStyle = "mixed"
)

// LineAnalysis summarizes line lengths on a page and the resulting style.
type LineAnalysis struct {
	Total  int
	Tiny   int // < 5 mm
	Small  int // 5-10 mm
	Medium int // 10-50 mm
	Large  int // >= 50 mm
	MeanMM   float64
	MedianMM float64
	Style    DrawingStyle
}

// AnalyzeLines buckets lines by length and classifies the page style.
// The tiny_segments branch requires a strictly greater than 70% tiny share.
func AnalyzeLines(lines []LineSegment) LineAnalysis {
	a := LineAnalysis{Total: len(lines), Style: StyleMixed}
	if len(lines) == 0 {
		return a
	}

	lengths := make([]float64, len(lines))
	var sum float64
	for i, l := range lines {
		mm := l.LengthMM()
		lengths[i] = mm
		sum += mm
		switch {
		case mm < 5:
			a.Tiny++
		case mm < 10:
			a.Small++
		case mm < 50:
			a.Medium++
		default:
			a.Large++
		}
	}
	a.MeanMM = sum / float64(len(lines))
	sort.Float64s(lengths)
	a.MedianMM = lengths[len(lengths)/2]

	total := float64(len(lines))
	switch {
	case float64(a.Tiny)/total > 0.70:
		a.Style = StyleTinySegments
	case float64(a.Medium)/total > 0.30:
		a.Style = StyleNormal
	default:
		a.Style = StyleMixed
	}
	return a
}

// AssemblerParams are the tuned clustering parameters for one page.
type AssemblerParams struct {
	ClusterDistanceMM  float64
	CircleTolerance    float64
	MinLinesPerCluster int
	MinLengthMM        float64
	MaxLengthMM        float64
}

// ParamsForStyle selects parameters from the page style, then fine-tunes
// the cluster distance by mean line length.
func ParamsForStyle(a LineAnalysis) AssemblerParams {
	var p AssemblerParams
	switch a.Style {
	case StyleTinySegments:
		p = AssemblerParams{ClusterDistanceMM: 20, CircleTolerance: 0.35, MinLinesPerCluster: 2, MinLengthMM: 0.5, MaxLengthMM: 100}
	case StyleNormal:
		p = AssemblerParams{ClusterDistanceMM: 10, CircleTolerance: 0.25, MinLinesPerCluster: 2, MinLengthMM: 3, MaxLengthMM: 150}
	default:
		p = AssemblerParams{ClusterDistanceMM: 15, CircleTolerance: 0.30, MinLinesPerCluster: 2, MinLengthMM: 1, MaxLengthMM: 120}
	}

	if a.MeanMM > 0 && a.MeanMM < 3 {
		p.ClusterDistanceMM *= 1.5
	} else if a.MeanMM > 20 {
		p.ClusterDistanceMM *= 0.7
	}
	return p
}

// AssemblerConfig bounds the shapes the assembler will accept.
type AssemblerConfig struct {
	MinCircleDiameterMM float64
	MaxCircleDiameterMM float64
	MinRectSizeMM       float64
	MaxRectSizeMM       float64
}

// DefaultAssemblerConfig returns the standard shape size bounds.
func DefaultAssemblerConfig() AssemblerConfig {
	return AssemblerConfig{
		MinCircleDiameterMM: 2,
		MaxCircleDiameterMM: 100,
		MinRectSizeMM:       2,
		MaxRectSizeMM:       500,
	}
}

// Assembler clusters a page's lines and arcs into shapes.
type Assembler struct {
	cfg    AssemblerConfig
	logger *slog.Logger
}

// NewAssembler creates an assembler.
func NewAssembler(cfg AssemblerConfig, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{cfg: cfg, logger: logger}
}

const (
	maxClusterIterations = 15
	vertexDedupTolerance = 7.0 // pt
	maxPolygonLines      = 20
	maxPolygonVertices   = 12
)

// Assemble auto-tunes parameters from the page's lines, clusters them,
// and classifies each cluster. Circles recovered directly as 4-bezier
// arcs bypass clustering.
func (as *Assembler) Assemble(pv PageVectors) ([]geometry.Shape, LineAnalysis) {
	analysis := AnalyzeLines(pv.Lines)
	params := ParamsForStyle(analysis)
	shapes := as.AssembleWithParams(pv, params)
	as.logger.Debug("shape assembly complete",
		slog.Int("page", pv.Info.Number),
		slog.String("style", string(analysis.Style)),
		slog.Float64("cluster_distance_mm", params.ClusterDistanceMM),
		slog.Int("shapes", len(shapes)))
	return shapes, analysis
}

// AssembleWithParams clusters with explicit parameters. Exposed so a
// caller can compare tuning regimes on the same page.
func (as *Assembler) AssembleWithParams(pv PageVectors, params AssemblerParams) []geometry.Shape {
	var shapes []geometry.Shape

	// Direct circles from bezier subpaths.
	for _, arc := range pv.Arcs {
		if !arc.IsCircle {
			continue
		}
		diaMM := geometry.PtToMM((arc.Bounds.Width() + arc.Bounds.Height()) / 2)
		if diaMM < as.cfg.MinCircleDiameterMM || diaMM > as.cfg.MaxCircleDiameterMM {
			continue
		}
		radius := (arc.Bounds.Width() + arc.Bounds.Height()) / 4
		c, err := geometry.NewCircle(arc.Center, radius, arc.Page, geometry.Style{
			StrokeWidth: arc.Width,
			StrokeColor: arc.Color,
			LineStyle:   geometry.LineSolid,
		})
		if err == nil {
			shapes = append(shapes, c)
		}
	}

	// Band filter before clustering.
	var lines []LineSegment
	for _, l := range pv.Lines {
		mm := l.LengthMM()
		if mm >= params.MinLengthMM && mm <= params.MaxLengthMM {
			lines = append(lines, l)
		}
	}
	if len(lines) == 0 {
		return shapes
	}

	for _, cluster := range clusterLines(lines, params) {
		if len(cluster) < params.MinLinesPerCluster {
			continue
		}
		if s := as.classify(cluster, params); s != nil {
			shapes = append(shapes, s)
		}
	}
	return shapes
}

// clusterLines groups lines by proximity. Midpoints go into a spatial
// grid used for neighbor lookup; clusters grow iteratively until no line
// joins or the iteration bound is hit. Seed order is line order, so
// output is deterministic.
func clusterLines(lines []LineSegment, params AssemblerParams) [][]LineSegment {
	distPt := geometry.MMToPt(params.ClusterDistanceMM)
	cell := math.Max(50, distPt/2)

	type cellKey struct{ cx, cy int }
	keyOf := func(p geometry.Point) cellKey {
		return cellKey{cx: int(math.Floor(p.X / cell)), cy: int(math.Floor(p.Y / cell))}
	}
	grid := make(map[cellKey][]int)
	var maxHalfLen float64
	for i, l := range lines {
		grid[keyOf(l.Midpoint())] = append(grid[keyOf(l.Midpoint())], i)
		maxHalfLen = math.Max(maxHalfLen, l.Length()/2)
	}
	// Endpoints can sit half a line length away from the indexed midpoint.
	reach := int(math.Ceil((distPt+maxHalfLen)/cell)) + 1

	assigned := make([]bool, len(lines))
	var clusters [][]LineSegment
	for seed := range lines {
		if assigned[seed] {
			continue
		}
		cluster := []int{seed}
		assigned[seed] = true

		for iter := 0; iter < maxClusterIterations; iter++ {
			grew := false
			tested := make(map[int]bool)
			for ci := 0; ci < len(cluster); ci++ {
				k := keyOf(lines[cluster[ci]].Midpoint())
				for dx := -reach; dx <= reach; dx++ {
					for dy := -reach; dy <= reach; dy++ {
						for _, j := range grid[cellKey{cx: k.cx + dx, cy: k.cy + dy}] {
							if assigned[j] || tested[j] {
								continue
							}
							tested[j] = true
							if lineNearCluster(lines, j, cluster, distPt) {
								cluster = append(cluster, j)
								assigned[j] = true
								grew = true
							}
						}
					}
				}
			}
			if !grew {
				break
			}
		}

		members := make([]LineSegment, len(cluster))
		for i, li := range cluster {
			members[i] = lines[li]
		}
		clusters = append(clusters, members)
	}
	return clusters
}

// lineNearCluster reports whether the candidate's endpoints or midpoint
// come within distPt of any cluster member's endpoints or midpoint.
func lineNearCluster(lines []LineSegment, candidate int, cluster []int, distPt float64) bool {
	cp := probePoints(lines[candidate])
	for _, ci := range cluster {
		mp := probePoints(lines[ci])
		for _, a := range cp {
			for _, b := range mp {
				if a.Distance(b) <= distPt {
					return true
				}
			}
		}
	}
	return false
}

func probePoints(l LineSegment) [3]geometry.Point {
	return [3]geometry.Point{
		{X: l.X0, Y: l.Y0},
		{X: l.X1, Y: l.Y1},
		l.Midpoint(),
	}
}

// classify tries circle, then rectangle, then polygon; first match wins.
func (as *Assembler) classify(cluster []LineSegment, params AssemblerParams) geometry.Shape {
	box := clusterBounds(cluster)
	style := geometry.Style{
		StrokeWidth: cluster[0].Width,
		StrokeColor: cluster[0].Color,
		LineStyle:   geometry.LineSolid,
	}
	page := cluster[0].Page

	if c := as.classifyCircle(cluster, box, params, page, style); c != nil {
		return c
	}
	if r := as.classifyRectangle(cluster, box, page, style); r != nil {
		return r
	}
	return as.classifyPolygon(cluster, page, style)
}

func clusterBounds(cluster []LineSegment) geometry.BBox {
	box := geometry.BBox{X0: math.Inf(1), Y0: math.Inf(1), X1: math.Inf(-1), Y1: math.Inf(-1)}
	for _, l := range cluster {
		box.X0 = math.Min(box.X0, math.Min(l.X0, l.X1))
		box.Y0 = math.Min(box.Y0, math.Min(l.Y0, l.Y1))
		box.X1 = math.Max(box.X1, math.Max(l.X0, l.X1))
		box.Y1 = math.Max(box.Y1, math.Max(l.Y0, l.Y1))
	}
	return box
}

func (as *Assembler) classifyCircle(cluster []LineSegment, box geometry.BBox, params AssemblerParams, page int, style geometry.Style) geometry.Shape {
	wMM := geometry.PtToMM(box.Width())
	hMM := geometry.PtToMM(box.Height())
	if wMM < as.cfg.MinCircleDiameterMM || wMM > as.cfg.MaxCircleDiameterMM ||
		hMM < as.cfg.MinCircleDiameterMM || hMM > as.cfg.MaxCircleDiameterMM {
		return nil
	}
	if box.Height() == 0 {
		return nil
	}
	aspect := box.Width() / box.Height()
	if aspect < 0.65 || aspect > 1.35 {
		return nil
	}

	var totalLen float64
	for _, l := range cluster {
		totalLen += l.Length()
	}
	expectedPerimeter := math.Pi * (box.Width() + box.Height()) / 2
	if expectedPerimeter == 0 {
		return nil
	}
	ratio := totalLen / expectedPerimeter
	tol := params.CircleTolerance
	lo := math.Max(0.2, 1-tol)
	hi := math.Min(3.0, 1+2*tol)
	if ratio < lo || ratio > hi {
		return nil
	}

	radius := (box.Width() + box.Height()) / 4
	c, err := geometry.NewCircle(box.Center(), radius, page, style)
	if err != nil {
		return nil
	}
	return c
}

func (as *Assembler) classifyRectangle(cluster []LineSegment, box geometry.BBox, page int, style geometry.Style) geometry.Shape {
	var horizontal, vertical bool
	for _, l := range cluster {
		a := l.AngleDegrees()
		if a < 25 || a > 155 {
			horizontal = true
		}
		if a > 65 && a < 115 {
			vertical = true
		}
	}
	if !horizontal || !vertical {
		return nil
	}

	wMM := geometry.PtToMM(box.Width())
	hMM := geometry.PtToMM(box.Height())
	if wMM < as.cfg.MinRectSizeMM || wMM > as.cfg.MaxRectSizeMM ||
		hMM < as.cfg.MinRectSizeMM || hMM > as.cfg.MaxRectSizeMM {
		return nil
	}

	r, err := geometry.NewRectangle(box, page, style)
	if err != nil {
		return nil
	}
	return r
}

func (as *Assembler) classifyPolygon(cluster []LineSegment, page int, style geometry.Style) geometry.Shape {
	if len(cluster) < 3 || len(cluster) > maxPolygonLines {
		return nil
	}

	var endpoints []geometry.Point
	for _, l := range cluster {
		endpoints = append(endpoints, geometry.Point{X: l.X0, Y: l.Y0}, geometry.Point{X: l.X1, Y: l.Y1})
	}
	vertices := dedupPoints(endpoints, vertexDedupTolerance)
	if len(vertices) < 3 || len(vertices) > maxPolygonVertices {
		return nil
	}

	center := geometry.Centroid(vertices)
	sort.Slice(vertices, func(i, j int) bool {
		return math.Atan2(vertices[i].Y-center.Y, vertices[i].X-center.X) <
			math.Atan2(vertices[j].Y-center.Y, vertices[j].X-center.X)
	})

	p, err := geometry.NewPolygon(vertices, page, style)
	if err != nil {
		return nil
	}
	return p
}

// dedupPoints merges points closer than tolerance, keeping first-seen.
func dedupPoints(pts []geometry.Point, tolerance float64) []geometry.Point {
	var out []geometry.Point
	for _, p := range pts {
		dup := false
		for _, q := range out {
			if p.Distance(q) <= tolerance {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, p)
		}
	}
	return out
}

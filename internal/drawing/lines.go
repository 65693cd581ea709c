package drawing

import (
	"log/slog"
	"math"

	"github.com/dslipak/pdf"

	"github.com/steeltrace/steeltrace/internal/errors"
	"github.com/steeltrace/steeltrace/internal/geometry"
)

// LineDetectorConfig filters which strokes become line segments and arcs.
type LineDetectorConfig struct {
	MinLengthMM    float64
	MaxLengthMM    float64
	MinStrokeWidth float64
	MaxStrokeWidth float64
	// IncludeDashed keeps non-solid strokes. Dashed lines are usually
	// dimension or hidden-edge linework, not element outlines.
	IncludeDashed bool
	// MaxLightness rejects strokes lighter than this average RGB value.
	MaxLightness float64
}

// DefaultLineDetectorConfig returns the standard stroke filters.
func DefaultLineDetectorConfig() LineDetectorConfig {
	return LineDetectorConfig{
		MinLengthMM:    0.5,
		MaxLengthMM:    500,
		MinStrokeWidth: 0.5,
		MaxStrokeWidth: 6,
		MaxLightness:   0.5,
	}
}

// LineDetector recovers line segments and bezier arcs from PDF drawing
// operators.
type LineDetector struct {
	cfg    LineDetectorConfig
	logger *slog.Logger
}

// NewLineDetector creates a line detector.
func NewLineDetector(cfg LineDetectorConfig, logger *slog.Logger) *LineDetector {
	if logger == nil {
		logger = slog.Default()
	}
	return &LineDetector{cfg: cfg, logger: logger}
}

// Detect walks every page's content stream and returns the filtered
// vector content per page.
func (d *LineDetector) Detect(path string) ([]PageVectors, error) {
	r, err := pdf.Open(path)
	if err != nil {
		return nil, errors.InputNotFound(path, err)
	}

	out := make([]PageVectors, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		pv := PageVectors{Info: PageInfo{Number: i}}
		if !page.V.IsNull() {
			pv.Info = pageInfo(page, i)
			pv.Lines, pv.Arcs = d.walkPage(page, i)
		}
		out = append(out, pv)
	}

	d.logger.Debug("vector detection complete", slog.String("path", path), slog.Int("pages", len(out)))
	return out, nil
}

// affine is a PDF transformation matrix [a b c d e f].
type affine [6]float64

func identity() affine { return affine{1, 0, 0, 1, 0, 0} }

func (m affine) apply(x, y float64) (float64, float64) {
	return m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]
}

// mul returns n composed with m (n applied first).
func (m affine) mul(n affine) affine {
	return affine{
		n[0]*m[0] + n[1]*m[2],
		n[0]*m[1] + n[1]*m[3],
		n[2]*m[0] + n[3]*m[2],
		n[2]*m[1] + n[3]*m[3],
		n[4]*m[0] + n[5]*m[2] + m[4],
		n[4]*m[1] + n[5]*m[3] + m[5],
	}
}

func (m affine) scale() float64 {
	return math.Sqrt(math.Abs(m[0]*m[3] - m[1]*m[2]))
}

type gstate struct {
	ctm       affine
	lineWidth float64
	stroke    [3]float64
	dashed    bool
}

// subpath accumulates one m-to-m run of path operators in device space.
type subpath struct {
	startX, startY float64
	curX, curY     float64
	lines          []LineSegment
	curveCount     int
	box            geometry.BBox
	hasBox         bool
	page           int
}

func (sp *subpath) extend(x, y float64) {
	if !sp.hasBox {
		sp.box = geometry.BBox{X0: x, Y0: y, X1: x, Y1: y}
		sp.hasBox = true
		return
	}
	sp.box.X0 = math.Min(sp.box.X0, x)
	sp.box.Y0 = math.Min(sp.box.Y0, y)
	sp.box.X1 = math.Max(sp.box.X1, x)
	sp.box.Y1 = math.Max(sp.box.Y1, y)
}

// walkPage interprets the page content stream, tracking graphics state
// and emitting filtered segments on stroke operators.
func (d *LineDetector) walkPage(page pdf.Page, pageNum int) (lines []LineSegment, arcs []Arc) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Warn("content stream walk panicked", slog.Int("page", pageNum), slog.Any("cause", r))
		}
	}()

	gs := gstate{ctm: identity(), lineWidth: 1}
	var gsStack []gstate
	var pending []*subpath
	var cur *subpath

	moveTo := func(x, y float64) {
		dx, dy := gs.ctm.apply(x, y)
		cur = &subpath{startX: dx, startY: dy, curX: dx, curY: dy, page: pageNum}
		cur.extend(dx, dy)
		pending = append(pending, cur)
	}
	lineTo := func(x, y float64) {
		if cur == nil {
			return
		}
		dx, dy := gs.ctm.apply(x, y)
		cur.lines = append(cur.lines, LineSegment{
			X0: cur.curX, Y0: cur.curY, X1: dx, Y1: dy,
			Width: gs.lineWidth * gs.ctm.scale(), Color: gs.stroke, Page: pageNum,
		})
		cur.curX, cur.curY = dx, dy
		cur.extend(dx, dy)
	}
	curveTo := func(pts ...float64) {
		if cur == nil || len(pts)%2 != 0 {
			return
		}
		cur.curveCount++
		for i := 0; i < len(pts); i += 2 {
			dx, dy := gs.ctm.apply(pts[i], pts[i+1])
			cur.extend(dx, dy)
			cur.curX, cur.curY = dx, dy
		}
	}
	closePath := func() {
		if cur != nil {
			seg := LineSegment{
				X0: cur.curX, Y0: cur.curY, X1: cur.startX, Y1: cur.startY,
				Width: gs.lineWidth * gs.ctm.scale(), Color: gs.stroke, Page: pageNum,
			}
			if seg.Length() > 0 {
				cur.lines = append(cur.lines, seg)
			}
			cur.curX, cur.curY = cur.startX, cur.startY
		}
	}
	flush := func(stroked bool) {
		if stroked {
			for _, sp := range pending {
				l, a := d.emit(sp, gs)
				lines = append(lines, l...)
				if a != nil {
					arcs = append(arcs, *a)
				}
			}
		}
		pending = nil
		cur = nil
	}

	do := func(stk *pdf.Stack, op string) {
		switch op {
		case "q":
			gsStack = append(gsStack, gs)
		case "Q":
			if n := len(gsStack); n > 0 {
				gs = gsStack[n-1]
				gsStack = gsStack[:n-1]
			}
		case "cm":
			f := stk.Pop().Float64()
			e := stk.Pop().Float64()
			dd := stk.Pop().Float64()
			c := stk.Pop().Float64()
			b := stk.Pop().Float64()
			a := stk.Pop().Float64()
			gs.ctm = gs.ctm.mul(affine{a, b, c, dd, e, f})
		case "w":
			gs.lineWidth = stk.Pop().Float64()
		case "d":
			stk.Pop() // phase
			arr := stk.Pop()
			gs.dashed = arr.Len() > 0
		case "RG":
			b := stk.Pop().Float64()
			g := stk.Pop().Float64()
			r := stk.Pop().Float64()
			gs.stroke = [3]float64{r, g, b}
		case "G":
			v := stk.Pop().Float64()
			gs.stroke = [3]float64{v, v, v}
		case "K":
			k := stk.Pop().Float64()
			y := stk.Pop().Float64()
			mAmt := stk.Pop().Float64()
			c := stk.Pop().Float64()
			gs.stroke = [3]float64{(1 - c) * (1 - k), (1 - mAmt) * (1 - k), (1 - y) * (1 - k)}
		case "m":
			y := stk.Pop().Float64()
			x := stk.Pop().Float64()
			moveTo(x, y)
		case "l":
			y := stk.Pop().Float64()
			x := stk.Pop().Float64()
			lineTo(x, y)
		case "c":
			y3 := stk.Pop().Float64()
			x3 := stk.Pop().Float64()
			y2 := stk.Pop().Float64()
			x2 := stk.Pop().Float64()
			y1 := stk.Pop().Float64()
			x1 := stk.Pop().Float64()
			curveTo(x1, y1, x2, y2, x3, y3)
		case "v", "y":
			y3 := stk.Pop().Float64()
			x3 := stk.Pop().Float64()
			y1 := stk.Pop().Float64()
			x1 := stk.Pop().Float64()
			curveTo(x1, y1, x3, y3)
		case "re":
			h := stk.Pop().Float64()
			w := stk.Pop().Float64()
			y := stk.Pop().Float64()
			x := stk.Pop().Float64()
			moveTo(x, y)
			lineTo(x+w, y)
			lineTo(x+w, y+h)
			lineTo(x, y+h)
			closePath()
		case "h":
			closePath()
		case "s":
			closePath()
			flush(true)
		case "S", "B", "B*":
			flush(true)
		case "b", "b*":
			closePath()
			flush(true)
		case "n", "f", "f*", "F":
			flush(false)
		}
	}

	contents := page.V.Key("Contents")
	if contents.Kind() == pdf.Array {
		for i := 0; i < contents.Len(); i++ {
			pdf.Interpret(contents.Index(i), do)
		}
	} else if !contents.IsNull() {
		pdf.Interpret(contents, do)
	}
	return lines, arcs
}

// emit applies the stroke filters to one subpath and converts it to
// segments or an arc summary.
func (d *LineDetector) emit(sp *subpath, gs gstate) ([]LineSegment, *Arc) {
	if gs.dashed && !d.cfg.IncludeDashed {
		return nil, nil
	}
	lightness := (gs.stroke[0] + gs.stroke[1] + gs.stroke[2]) / 3
	if lightness > d.cfg.MaxLightness {
		return nil, nil
	}
	width := gs.lineWidth * gs.ctm.scale()
	if width < d.cfg.MinStrokeWidth || width > d.cfg.MaxStrokeWidth {
		return nil, nil
	}

	var lines []LineSegment
	for _, l := range sp.lines {
		mm := l.LengthMM()
		if mm >= d.cfg.MinLengthMM && mm <= d.cfg.MaxLengthMM {
			lines = append(lines, l)
		}
	}

	var arc *Arc
	if sp.curveCount > 0 && sp.hasBox {
		w, h := sp.box.Width(), sp.box.Height()
		aspect := math.Inf(1)
		if h > 0 {
			aspect = w / h
		}
		arc = &Arc{
			Bounds:     sp.box,
			CurveCount: sp.curveCount,
			Center:     sp.box.Center(),
			Aspect:     aspect,
			IsCircle:   sp.curveCount == 4 && aspect >= 0.75 && aspect <= 1.35,
			Width:      width,
			Color:      gs.stroke,
			Page:       sp.page,
		}
	}
	return lines, arc
}

package goicon

import (
	"image"
	"math"

	"golang.org/x/image/vector"
)

// PathBuilder receives clip-path construction commands. Angles are in
// radians and, as on a screen with y pointing down, increase clockwise.
type PathBuilder interface {
	MoveTo(x, y float64)
	LineTo(x, y float64)
	// Arc appends a circular arc. When a subpath is open, a straight line
	// joins the current point to the arc start.
	Arc(cx, cy, r, startAngle, endAngle float64)
	ClosePath()
}

// BuildShapeClipPath describes shape inscribed in a square canvas of
// canvasSize using the default 10% corner radius.
func BuildShapeClipPath(b PathBuilder, shape Shape, canvasSize int) {
	BuildShapeClipPathWithRadius(b, shape, canvasSize, DefaultCornerRadiusFraction)
}

// BuildShapeClipPathWithRadius is BuildShapeClipPath with an explicit corner
// fraction for the rounded square.
func BuildShapeClipPathWithRadius(b PathBuilder, shape Shape, canvasSize int, cornerFraction float64) {
	s := float64(canvasSize)
	switch shape {
	case ShapeRoundedSquare:
		r := CornerRadius(canvasSize, cornerFraction)
		if r > s/2 {
			r = s / 2
		}
		b.MoveTo(r, 0)
		b.LineTo(s-r, 0)
		b.Arc(s-r, r, r, -math.Pi/2, 0)
		b.LineTo(s, s-r)
		b.Arc(s-r, s-r, r, 0, math.Pi/2)
		b.LineTo(r, s)
		b.Arc(r, s-r, r, math.Pi/2, math.Pi)
		b.LineTo(0, r)
		b.Arc(r, r, r, math.Pi, 3*math.Pi/2)
		b.ClosePath()
	default:
		c := s / 2
		b.Arc(c, c, c, 0, 2*math.Pi)
		b.ClosePath()
	}
}

// PathOp identifies a recorded path command.
type PathOp int

const (
	OpMoveTo PathOp = iota
	OpLineTo
	OpArc
	OpClose
)

// PathCmd is one recorded command. X and Y hold the target point for
// MoveTo/LineTo and the center for Arc.
type PathCmd struct {
	Op         PathOp
	X, Y       float64
	R          float64
	StartAngle float64
	EndAngle   float64
}

// Path records commands from a PathBuilder and rasterizes them into an
// anti-aliased coverage mask.
type Path struct {
	cmds []PathCmd
}

// NewShapePath returns the clip path for shape on a canvasSize canvas.
func NewShapePath(shape Shape, canvasSize int, cornerFraction float64) *Path {
	p := &Path{}
	BuildShapeClipPathWithRadius(p, shape, canvasSize, cornerFraction)
	return p
}

func (p *Path) MoveTo(x, y float64) { p.cmds = append(p.cmds, PathCmd{Op: OpMoveTo, X: x, Y: y}) }
func (p *Path) LineTo(x, y float64) { p.cmds = append(p.cmds, PathCmd{Op: OpLineTo, X: x, Y: y}) }
func (p *Path) ClosePath()          { p.cmds = append(p.cmds, PathCmd{Op: OpClose}) }

func (p *Path) Arc(cx, cy, r, startAngle, endAngle float64) {
	p.cmds = append(p.cmds, PathCmd{Op: OpArc, X: cx, Y: cy, R: r, StartAngle: startAngle, EndAngle: endAngle})
}

// Commands returns a copy of the recorded commands.
func (p *Path) Commands() []PathCmd {
	out := make([]PathCmd, len(p.cmds))
	copy(out, p.cmds)
	return out
}

// Arcs returns only the arc commands.
func (p *Path) Arcs() []PathCmd {
	var arcs []PathCmd
	for _, c := range p.cmds {
		if c.Op == OpArc {
			arcs = append(arcs, c)
		}
	}
	return arcs
}

// Closed reports whether the final subpath was closed.
func (p *Path) Closed() bool {
	return len(p.cmds) > 0 && p.cmds[len(p.cmds)-1].Op == OpClose
}

// Points flattens the path into one polyline per subpath.
func (p *Path) Points() [][][2]float64 {
	var (
		subpaths [][][2]float64
		cur      [][2]float64
	)
	flush := func() {
		if len(cur) > 0 {
			subpaths = append(subpaths, cur)
		}
		cur = nil
	}
	for _, c := range p.cmds {
		switch c.Op {
		case OpMoveTo:
			flush()
			cur = append(cur, [2]float64{c.X, c.Y})
		case OpLineTo:
			cur = append(cur, [2]float64{c.X, c.Y})
		case OpArc:
			cur = append(cur, flattenArc(c)...)
		case OpClose:
			if len(cur) > 0 {
				cur = append(cur, cur[0])
			}
			flush()
		}
	}
	flush()
	return subpaths
}

// Bounds returns the axis-aligned extent of the flattened path.
func (p *Path) Bounds() (minX, minY, maxX, maxY float64) {
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	for _, sp := range p.Points() {
		for _, pt := range sp {
			minX = math.Min(minX, pt[0])
			minY = math.Min(minY, pt[1])
			maxX = math.Max(maxX, pt[0])
			maxY = math.Max(maxY, pt[1])
		}
	}
	return minX, minY, maxX, maxY
}

// Mask rasterizes the path into a w×h coverage mask using the non-zero
// winding rule. Unclosed subpaths are closed implicitly.
func (p *Path) Mask(w, h int) *image.Alpha {
	mask := image.NewAlpha(image.Rect(0, 0, w, h))
	if w <= 0 || h <= 0 {
		return mask
	}
	z := vector.NewRasterizer(w, h)
	for _, sp := range p.Points() {
		if len(sp) < 2 {
			continue
		}
		z.MoveTo(float32(sp[0][0]), float32(sp[0][1]))
		for _, pt := range sp[1:] {
			z.LineTo(float32(pt[0]), float32(pt[1]))
		}
		z.ClosePath()
	}
	z.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})
	return mask
}

// arcTolerance is the maximum distance, in pixels, between a flattened arc
// chord and the true circle.
const arcTolerance = 0.1

func flattenArc(c PathCmd) [][2]float64 {
	sweep := c.EndAngle - c.StartAngle
	if c.R <= 0 || sweep == 0 {
		return [][2]float64{{c.X, c.Y}}
	}
	n := 4
	if c.R > arcTolerance {
		step := 2 * math.Acos(1-arcTolerance/c.R)
		if k := int(math.Ceil(math.Abs(sweep) / step)); k > n {
			n = k
		}
	}
	pts := make([][2]float64, 0, n+1)
	for i := 0; i <= n; i++ {
		a := c.StartAngle + sweep*float64(i)/float64(n)
		pts = append(pts, [2]float64{c.X + c.R*math.Cos(a), c.Y + c.R*math.Sin(a)})
	}
	return pts
}

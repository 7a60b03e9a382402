package spatial

// Shape is a set of cell offsets relative to a placement origin.
// Point order carries no meaning.
type Shape struct {
	Points []Point `json:"points" yaml:"points"`
}

// Shaped is implemented by items that occupy more than a single cell.
type Shaped interface {
	Shape() Shape
}

// Cell returns the single-cell shape at the origin.
func Cell() Shape {
	return Shape{Points: []Point{{}}}
}

// Rect returns a w by h rectangle anchored at the origin.
func Rect(w, h int) Shape {
	s := Shape{Points: make([]Point, 0, w*h)}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			s.Points = append(s.Points, Point{X: x, Y: y})
		}
	}
	return s
}

// Square returns an n by n square anchored at the origin.
func Square(n int) Shape {
	return Rect(n, n)
}

// Clone returns a copy that shares no memory with s.
func (s Shape) Clone() Shape {
	return Shape{Points: append([]Point(nil), s.Points...)}
}

// Empty reports whether the shape has no points.
func (s Shape) Empty() bool {
	return len(s.Points) == 0
}

// Size returns the bounding extent measured from the origin, i.e. the
// largest coordinate on each axis plus one.
func (s Shape) Size() Point {
	if s.Empty() {
		return Point{}
	}
	size := s.Points[0]
	for _, p := range s.Points[1:] {
		size.X = max(size.X, p.X)
		size.Y = max(size.Y, p.Y)
	}
	return Point{X: size.X + 1, Y: size.Y + 1}
}

// Center returns the centroid of the points rounded to the nearest cell.
// Halves round toward positive infinity.
func (s Shape) Center() Point {
	if s.Empty() {
		return Point{}
	}
	var sum Point
	for _, p := range s.Points {
		sum = sum.Add(p)
	}
	n := len(s.Points)
	return Point{X: roundDiv(sum.X, n), Y: roundDiv(sum.Y, n)}
}

// Rotate turns the shape clockwise by r quarter turns about its rounded
// centroid. The result is not normalized and may contain negative offsets.
func (s Shape) Rotate(r Rotation) Shape {
	if r == RotationNone || s.Empty() {
		return s.Clone()
	}
	return s.RotateAround(r, s.Center())
}

// RotateAround turns the shape clockwise by r quarter turns about pivot.
func (s Shape) RotateAround(r Rotation, pivot Point) Shape {
	out := Shape{Points: make([]Point, len(s.Points))}
	for i, p := range s.Points {
		d := p.Sub(pivot)
		switch r % 4 {
		case Rotation90:
			d = Point{X: -d.Y, Y: d.X}
		case Rotation180:
			d = Point{X: -d.X, Y: -d.Y}
		case Rotation270:
			d = Point{X: d.Y, Y: -d.X}
		}
		out.Points[i] = d.Add(pivot)
	}
	return out
}

// Translate returns the shape shifted by offset.
func (s Shape) Translate(offset Point) Shape {
	out := Shape{Points: make([]Point, len(s.Points))}
	for i, p := range s.Points {
		out.Points[i] = p.Add(offset)
	}
	return out
}

// Normalize shifts the shape so its smallest X and Y are zero.
func (s Shape) Normalize() Shape {
	if s.Empty() {
		return s.Clone()
	}
	low := s.Points[0]
	for _, p := range s.Points[1:] {
		low.X = min(low.X, p.X)
		low.Y = min(low.Y, p.Y)
	}
	return s.Translate(Point{X: -low.X, Y: -low.Y})
}

// Contains reports whether p is one of the shape's points.
func (s Shape) Contains(p Point) bool {
	for _, q := range s.Points {
		if q == p {
			return true
		}
	}
	return false
}

// Overlaps reports whether the two shapes share at least one point.
func (s Shape) Overlaps(o Shape) bool {
	set := s.set()
	for _, p := range o.Points {
		if _, ok := set[p]; ok {
			return true
		}
	}
	return false
}

// Equal reports whether both shapes hold the same set of points.
func (s Shape) Equal(o Shape) bool {
	a, b := s.set(), o.set()
	if len(a) != len(b) {
		return false
	}
	for p := range a {
		if _, ok := b[p]; !ok {
			return false
		}
	}
	return true
}

// IsSymmetrical reports whether a quarter turn leaves the normalized shape
// unchanged.
func (s Shape) IsSymmetrical() bool {
	return s.Normalize().Equal(s.Rotate(Rotation90).Normalize())
}

func (s Shape) set() map[Point]struct{} {
	set := make(map[Point]struct{}, len(s.Points))
	for _, p := range s.Points {
		set[p] = struct{}{}
	}
	return set
}

// roundDiv divides a by n (n > 0), rounding half up.
func roundDiv(a, n int) int {
	return floorDiv(2*a+n, 2*n)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

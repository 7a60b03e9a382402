// Package spatial provides integer grid geometry for item placement:
// points, point-set shapes, and quarter-turn rotations.
package spatial

import "fmt"

// Point is a cell coordinate. X grows to the right and Y grows downward.
type Point struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

// Add returns p translated by o.
func (p Point) Add(o Point) Point {
	return Point{X: p.X + o.X, Y: p.Y + o.Y}
}

// Sub returns p minus o.
func (p Point) Sub(o Point) Point {
	return Point{X: p.X - o.X, Y: p.Y - o.Y}
}

// In reports whether p lies within [0,w)x[0,h).
func (p Point) In(w, h int) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < w && p.Y < h
}

func (p Point) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// Ravel flattens p into a row-major index for a grid of the given width.
func Ravel(p Point, width int) int {
	return p.Y*width + p.X
}

// Unravel is the inverse of Ravel.
func Unravel(index, width int) Point {
	return Point{X: index % width, Y: index / width}
}

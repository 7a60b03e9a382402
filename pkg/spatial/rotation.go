package spatial

import "fmt"

// Rotation is a clockwise quarter-turn count.
type Rotation uint8

// Rotation values.
const (
	RotationNone Rotation = iota
	Rotation90
	Rotation180
	Rotation270
)

var rotationNames = map[Rotation]string{
	RotationNone: "none",
	Rotation90:   "90",
	Rotation180:  "180",
	Rotation270:  "270",
}

// Next returns the rotation one quarter turn clockwise.
func (r Rotation) Next() Rotation {
	return (r + 1) % 4
}

// Previous returns the rotation one quarter turn counter-clockwise.
func (r Rotation) Previous() Rotation {
	return (r + 3) % 4
}

// Valid reports whether r is one of the four defined rotations.
func (r Rotation) Valid() bool {
	return r <= Rotation270
}

func (r Rotation) String() string {
	if name, ok := rotationNames[r]; ok {
		return name
	}
	return fmt.Sprintf("Rotation(%d)", uint8(r))
}

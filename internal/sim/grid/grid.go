// Package grid holds the integer 3-axis coordinate every spatial map keys on.
// X and Y are horizontal, Z is the vertical layer.
package grid

type Pos struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

func (p Pos) Add(o Pos) Pos { return Pos{X: p.X + o.X, Y: p.Y + o.Y, Z: p.Z + o.Z} }
func (p Pos) Sub(o Pos) Pos { return Pos{X: p.X - o.X, Y: p.Y - o.Y, Z: p.Z - o.Z} }

func (p Pos) IsZero() bool { return p == Pos{} }

func (p Pos) ToArray() [3]int { return [3]int{p.X, p.Y, p.Z} }

// Neighbors6 are the axis-aligned unit offsets in the fixed order used for
// every neighbour scan (+x, -x, +y, -y, +z, -z).
var Neighbors6 = [6]Pos{
	{X: 1}, {X: -1},
	{Y: 1}, {Y: -1},
	{Z: 1}, {Z: -1},
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func Manhattan(a, b Pos) int {
	d := a.Sub(b)
	return abs(d.X) + abs(d.Y) + abs(d.Z)
}

// WithinBox reports whether every axis difference between a and b is <= r.
func WithinBox(a, b Pos, r int) bool {
	d := a.Sub(b)
	return abs(d.X) <= r && abs(d.Y) <= r && abs(d.Z) <= r
}

// Lerp interpolates from a to b at parameter t. Components are truncated
// toward zero.
func Lerp(a, b Pos, t float64) Pos {
	f := func(s, e int) int {
		return int((1-t)*float64(s) + t*float64(e))
	}
	return Pos{X: f(a.X, b.X), Y: f(a.Y, b.Y), Z: f(a.Z, b.Z)}
}

// Less orders positions by z, then y, then x. All deterministic tie-breaks use it.
func Less(a, b Pos) bool {
	if a.Z != b.Z {
		return a.Z < b.Z
	}
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.X < b.X
}

func floorDiv(a, b int) int {
	// b > 0
	q := a / b
	r := a % b
	if r < 0 {
		q--
	}
	return q
}

func mod(a, b int) int {
	// b > 0
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

// Split breaks p into the key of its size^3 cell block and the local offset
// inside that block. Negative coordinates floor correctly.
func Split(p Pos, size int) (block Pos, local Pos) {
	block = Pos{X: floorDiv(p.X, size), Y: floorDiv(p.Y, size), Z: floorDiv(p.Z, size)}
	local = Pos{X: mod(p.X, size), Y: mod(p.Y, size), Z: mod(p.Z, size)}
	return block, local
}

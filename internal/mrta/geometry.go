package mrta

import "math"

// ─── 2-D Geometry ───────────────────────────────────────────────────────────

// Position is a point in metres within the warehouse topology.
type Position struct {
	X float64
	Y float64
}

// Velocity and Acceleration share Position's vector shape and arithmetic.
type Velocity = Position
type Acceleration = Position

// Add returns the component-wise sum.
func (p Position) Add(o Position) Position { return Position{p.X + o.X, p.Y + o.Y} }

// Sub returns the component-wise difference.
func (p Position) Sub(o Position) Position { return Position{p.X - o.X, p.Y - o.Y} }

// Scale returns p scaled by s.
func (p Position) Scale(s float64) Position { return Position{p.X * s, p.Y * s} }

// Length returns the Euclidean norm.
func (p Position) Length() float64 { return math.Hypot(p.X, p.Y) }

// Unit returns the unit vector in the direction of p. Callers must ensure
// p.Length() != 0.
func (p Position) Unit() Position { return p.Scale(1 / p.Length()) }

// Distance is a non-negative scalar in metres.
type Distance = float64

// Pose is a position plus orientation (radians, unused by the kinematics
// model beyond carrying it through).
type Pose struct {
	Position    Position
	Orientation float64
}

// Topology is the rectangular region [0,W] x [0,H] the fleet operates in.
type Topology struct {
	Width  float64
	Height float64
}

// Contains reports whether p lies within the closed rectangle. Negative
// coordinates are always invalid.
func (t Topology) Contains(p Position) bool {
	return p.X >= 0 && p.X <= t.Width && p.Y >= 0 && p.Y <= t.Height
}

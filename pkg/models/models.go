package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// Vec3 represents a point in scene space
type Vec3 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// R3 converts the point to a gonum vector
func (v Vec3) R3() r3.Vec {
	return r3.Vec{X: v.X, Y: v.Y, Z: v.Z}
}

// FromR3 converts a gonum vector back to a Vec3
func FromR3(v r3.Vec) Vec3 {
	return Vec3{X: v.X, Y: v.Y, Z: v.Z}
}

// Add returns v+o
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

// DistanceTo returns the euclidean distance between v and o
func (v Vec3) DistanceTo(o Vec3) float64 {
	return r3.Norm(r3.Sub(v.R3(), o.R3()))
}

// ApproxEqual reports whether every component of v and o differs by at most eps
func (v Vec3) ApproxEqual(o Vec3, eps float64) bool {
	return math.Abs(v.X-o.X) <= eps && math.Abs(v.Y-o.Y) <= eps && math.Abs(v.Z-o.Z) <= eps
}

func (v Vec3) String() string {
	return fmt.Sprintf("(%.3f, %.3f, %.3f)", v.X, v.Y, v.Z)
}

// ParseVec3 parses "x,y,z"
func ParseVec3(s string) (Vec3, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return Vec3{}, fmt.Errorf("invalid vector %q: want x,y,z", s)
	}
	var out [3]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Vec3{}, fmt.Errorf("invalid vector %q: %w", s, err)
		}
		out[i] = f
	}
	return Vec3{X: out[0], Y: out[1], Z: out[2]}, nil
}

// ScanSession tracks an open scan
type ScanSession struct {
	Scanning    bool   `json:"scanning"`
	LastDecoded string `json:"last_decoded,omitempty"`
}

// DestinationQuery is one settled edit of the search field
type DestinationQuery struct {
	RawInput string `json:"raw_input"`
}

// LineState is the drawn navigation line.
// Corners are stale while Visible is false.
type LineState struct {
	Visible bool   `json:"visible"`
	Corners []Vec3 `json:"corners"`
	Target  Vec3   `json:"target"`
	// HasTarget is false until the first presentation
	HasTarget bool `json:"has_target"`
}

// Renderable returns the corners to draw, nil when the line is hidden
func (l LineState) Renderable() []Vec3 {
	if !l.Visible {
		return nil
	}
	return l.Corners
}

// Pose positions and orients the overview camera
type Pose struct {
	Position Vec3    `json:"position"`
	Forward  Vec3    `json:"forward"`
	Yaw      float64 `json:"yaw"`
	Pitch    float64 `json:"pitch"`
}

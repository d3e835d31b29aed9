// Package presenter turns a target coordinate into the navigation line shown
// to the user and the overview camera pose that frames it.
package presenter

import (
	"fmt"
	"math"
	"strings"

	"github.com/1F47E/qr-navigator/pkg/models"
	"gonum.org/v1/gonum/spatial/r3"
)

// Navigator computes walkable routes
type Navigator interface {
	CalculatePath(start, end models.Vec3, areaMask uint32) []models.Vec3
}

// Straight routes directly from start to end. Used when no mesh is loaded.
type Straight struct{}

func (Straight) CalculatePath(start, end models.Vec3, _ uint32) []models.Vec3 {
	return []models.Vec3{start, end}
}

// Policy decides the visibility of the line after a presentation
type Policy int

const (
	// ToggleOnReselect shows the line for a new target and hides it when the
	// shown target is selected again
	ToggleOnReselect Policy = iota
	// ToggleAlways flips visibility on every presentation regardless of target
	ToggleAlways
)

func (p Policy) String() string {
	switch p {
	case ToggleOnReselect:
		return "reselect"
	case ToggleAlways:
		return "always"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy parses "reselect" or "always"
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "reselect":
		return ToggleOnReselect, nil
	case "always":
		return ToggleAlways, nil
	default:
		return 0, fmt.Errorf("unknown toggle policy %q", s)
	}
}

// DefaultOverviewOffset places the overview camera above and behind the target
var DefaultOverviewOffset = models.Vec3{X: 0, Y: 10, Z: -10}

const targetEps = 1e-6

// Presenter computes line states. It holds no per-session state.
type Presenter struct {
	nav      Navigator
	policy   Policy
	offset   models.Vec3
	areaMask uint32
}

// New creates a presenter
func New(nav Navigator, policy Policy, overviewOffset models.Vec3, areaMask uint32) *Presenter {
	return &Presenter{
		nav:      nav,
		policy:   policy,
		offset:   overviewOffset,
		areaMask: areaMask,
	}
}

// Present returns the line state that follows prev after selecting target.
// The pose is nil when the line ends up hidden.
func (p *Presenter) Present(prev models.LineState, target, start models.Vec3) (models.LineState, *models.Pose) {
	next := models.LineState{
		Target:    target,
		HasTarget: true,
		Corners:   p.nav.CalculatePath(start, target, p.areaMask),
	}

	switch p.policy {
	case ToggleAlways:
		next.Visible = !prev.Visible
	default:
		sameTarget := prev.HasTarget && prev.Target.ApproxEqual(target, targetEps)
		next.Visible = !(sameTarget && prev.Visible)
	}

	if !next.Visible {
		return next, nil
	}
	pose := LookAt(target.Add(p.offset), target)
	return next, &pose
}

// LookAt returns a pose at eye oriented toward target.
// Yaw is measured from +Z toward +X, pitch is positive upward, both in degrees.
func LookAt(eye, target models.Vec3) models.Pose {
	dir := r3.Sub(target.R3(), eye.R3())
	pose := models.Pose{Position: eye}
	if r3.Norm(dir) == 0 {
		pose.Forward = models.Vec3{Z: 1}
		return pose
	}

	fwd := r3.Unit(dir)
	pose.Forward = models.FromR3(fwd)
	pose.Yaw = math.Atan2(fwd.X, fwd.Z) * 180 / math.Pi
	pose.Pitch = math.Asin(fwd.Y) * 180 / math.Pi
	return pose
}

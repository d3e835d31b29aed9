// Package navmesh implements a waypoint navigation mesh: walkable space is a
// graph of waypoints, start/end points snap to the nearest allowed waypoint
// through an R-Tree and routes are found with A*.
package navmesh

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/1F47E/qr-navigator/pkg/models"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/spatial/r3"
)

// AllAreas allows every area in a query
const AllAreas uint32 = math.MaxUint32

// DefaultSnapTolerance is the maximum distance between a query point and its waypoint
const DefaultSnapTolerance = 2.0

const collinearEps = 1e-9

var (
	// ErrUnreachable is returned when no walkable route joins two points
	ErrUnreachable = errors.New("navmesh: target unreachable")
	// ErrOffMesh is returned when a point is farther than the snap tolerance from any allowed waypoint
	ErrOffMesh = errors.New("navmesh: point off mesh")
)

// Node is a walkable waypoint
type Node struct {
	ID       string      `json:"id" yaml:"id"`
	Position models.Vec3 `json:"position" yaml:"position"`
	// Area is the area index (0-31) used for mask filtering
	Area int `json:"area" yaml:"area"`

	idx int64
}

func (n *Node) inMask(mask uint32) bool {
	if n.Area < 0 || n.Area > 31 {
		return false
	}
	return mask&(1<<uint(n.Area)) != 0
}

// Edge joins two waypoints by ID
type Edge struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// Mesh is a thread-safe navigation mesh
type Mesh struct {
	snapTolerance float64
	nodes         []*Node
	byID          map[string]*Node
	edges         []Edge
	index         *nodeIndex

	mu     sync.Mutex
	graphs map[uint32]*simple.WeightedUndirectedGraph
}

// New builds a mesh. snapTolerance <= 0 selects DefaultSnapTolerance.
func New(nodes []Node, edges []Edge, snapTolerance float64) (*Mesh, error) {
	if snapTolerance <= 0 {
		snapTolerance = DefaultSnapTolerance
	}

	m := &Mesh{
		snapTolerance: snapTolerance,
		byID:          make(map[string]*Node, len(nodes)),
		index:         newNodeIndex(),
		graphs:        make(map[uint32]*simple.WeightedUndirectedGraph),
	}

	for i := range nodes {
		n := nodes[i]
		if n.ID == "" {
			return nil, fmt.Errorf("node %d has no id", i)
		}
		if _, dup := m.byID[n.ID]; dup {
			return nil, fmt.Errorf("duplicate node id %q", n.ID)
		}
		if n.Area < 0 || n.Area > 31 {
			return nil, fmt.Errorf("node %q: area %d out of range 0-31", n.ID, n.Area)
		}
		n.idx = int64(len(m.nodes))
		m.nodes = append(m.nodes, &n)
		m.byID[n.ID] = &n
	}

	for _, e := range edges {
		if _, ok := m.byID[e.From]; !ok {
			return nil, fmt.Errorf("edge %s-%s: unknown node %q", e.From, e.To, e.From)
		}
		if _, ok := m.byID[e.To]; !ok {
			return nil, fmt.Errorf("edge %s-%s: unknown node %q", e.From, e.To, e.To)
		}
		if e.From == e.To {
			continue
		}
		m.edges = append(m.edges, e)
	}

	m.index.insert(m.nodes)
	return m, nil
}

// Count returns the number of waypoints
func (m *Mesh) Count() int64 {
	return m.index.count()
}

// SnapTolerance returns the start/end snapping distance
func (m *Mesh) SnapTolerance() float64 {
	return m.snapTolerance
}

// Nodes returns a copy of the waypoints
func (m *Mesh) Nodes() []Node {
	out := make([]Node, len(m.nodes))
	for i, n := range m.nodes {
		out[i] = *n
	}
	return out
}

// NodesWithin returns the waypoints inside the box [lo, hi]
func (m *Mesh) NodesWithin(lo, hi models.Vec3) []Node {
	found := m.index.within(lo, hi)
	out := make([]Node, len(found))
	for i, n := range found {
		out[i] = *n
	}
	return out
}

// Bounds returns the axis-aligned bounds of all waypoints
func (m *Mesh) Bounds() (lo, hi models.Vec3) {
	if len(m.nodes) == 0 {
		return lo, hi
	}
	lo, hi = m.nodes[0].Position, m.nodes[0].Position
	for _, n := range m.nodes[1:] {
		p := n.Position
		lo = models.Vec3{X: math.Min(lo.X, p.X), Y: math.Min(lo.Y, p.Y), Z: math.Min(lo.Z, p.Z)}
		hi = models.Vec3{X: math.Max(hi.X, p.X), Y: math.Max(hi.Y, p.Y), Z: math.Max(hi.Z, p.Z)}
	}
	return lo, hi
}

// CalculatePath returns the corners of the walkable route from start to end.
// The result is empty when the route does not exist.
func (m *Mesh) CalculatePath(start, end models.Vec3, areaMask uint32) []models.Vec3 {
	corners, err := m.FindPath(start, end, areaMask)
	if err != nil {
		return nil
	}
	return corners
}

// FindPath is CalculatePath with the reason for an empty result
func (m *Mesh) FindPath(start, end models.Vec3, areaMask uint32) ([]models.Vec3, error) {
	from, err := m.snap(start, areaMask)
	if err != nil {
		return nil, fmt.Errorf("start %v: %w", start, err)
	}
	to, err := m.snap(end, areaMask)
	if err != nil {
		return nil, fmt.Errorf("end %v: %w", end, err)
	}

	if from == to {
		return []models.Vec3{from.Position}, nil
	}

	g := m.graphFor(areaMask)
	heuristic := func(x, y graph.Node) float64 {
		return m.nodes[x.ID()].Position.DistanceTo(m.nodes[y.ID()].Position)
	}

	shortest, _ := path.AStar(simple.Node(from.idx), simple.Node(to.idx), g, heuristic)
	route, weight := shortest.To(to.idx)
	if len(route) == 0 || math.IsInf(weight, 1) {
		return nil, fmt.Errorf("%s to %s: %w", from.ID, to.ID, ErrUnreachable)
	}

	points := make([]models.Vec3, len(route))
	for i, n := range route {
		points[i] = m.nodes[n.ID()].Position
	}
	return simplify(points), nil
}

// Nearest returns the waypoint p snaps to under mask
func (m *Mesh) Nearest(p models.Vec3, mask uint32) (Node, error) {
	n, err := m.snap(p, mask)
	if err != nil {
		return Node{}, err
	}
	return *n, nil
}

func (m *Mesh) snap(p models.Vec3, mask uint32) (*Node, error) {
	n := m.index.nearest(p, mask)
	if n == nil {
		return nil, ErrOffMesh
	}
	if d := n.Position.DistanceTo(p); d > m.snapTolerance {
		return nil, fmt.Errorf("nearest waypoint %s is %.2f away: %w", n.ID, d, ErrOffMesh)
	}
	return n, nil
}

// graphFor returns the walkable graph restricted to the areas in mask
func (m *Mesh) graphFor(mask uint32) *simple.WeightedUndirectedGraph {
	m.mu.Lock()
	defer m.mu.Unlock()

	if g, ok := m.graphs[mask]; ok {
		return g
	}

	g := simple.NewWeightedUndirectedGraph(0, math.Inf(1))
	for _, n := range m.nodes {
		if n.inMask(mask) {
			g.AddNode(simple.Node(n.idx))
		}
	}
	for _, e := range m.edges {
		a, b := m.byID[e.From], m.byID[e.To]
		if !a.inMask(mask) || !b.inMask(mask) {
			continue
		}
		g.SetWeightedEdge(simple.WeightedEdge{
			F: simple.Node(a.idx),
			T: simple.Node(b.idx),
			W: a.Position.DistanceTo(b.Position),
		})
	}
	m.graphs[mask] = g
	return g
}

// simplify drops interior points that lie on a straight segment
func simplify(points []models.Vec3) []models.Vec3 {
	if len(points) < 3 {
		return points
	}
	out := []models.Vec3{points[0]}
	for i := 1; i < len(points)-1; i++ {
		a := out[len(out)-1].R3()
		b := points[i].R3()
		c := points[i+1].R3()
		ab, bc := r3.Sub(b, a), r3.Sub(c, b)
		scale := r3.Norm(ab) * r3.Norm(bc)
		if scale == 0 {
			continue
		}
		if r3.Norm(r3.Cross(ab, bc)) <= collinearEps*scale && r3.Dot(ab, bc) > 0 {
			continue
		}
		out = append(out, points[i])
	}
	return append(out, points[len(points)-1])
}

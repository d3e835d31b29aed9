package navmesh

import (
	"sync"
	"sync/atomic"

	"github.com/1F47E/qr-navigator/pkg/models"
	"github.com/dhconnelly/rtreego"
)

const (
	tolerance   = 0.01
	minChildren = 25
	maxChildren = 50
	dimensions  = 3
)

var _ rtreego.Spatial = (*spatialNode)(nil)

// spatialNode wraps a node to implement rtreego.Spatial interface
type spatialNode struct {
	*Node
	rect *rtreego.Rect
}

func (sn *spatialNode) Bounds() *rtreego.Rect {
	return sn.rect
}

// nodeIndex is a thread-safe R-Tree over waypoint positions
type nodeIndex struct {
	tree      *rtreego.Rtree
	mu        sync.RWMutex
	itemCount atomic.Int64
}

func newNodeIndex() *nodeIndex {
	return &nodeIndex{
		tree: rtreego.NewTree(dimensions, minChildren, maxChildren),
	}
}

// insert indexes a batch of nodes
func (ix *nodeIndex) insert(nodes []*Node) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	count := int64(0)
	for _, n := range nodes {
		if n == nil {
			continue
		}
		p := rtreego.Point{n.Position.X, n.Position.Y, n.Position.Z}
		ix.tree.Insert(&spatialNode{Node: n, rect: p.ToRect(tolerance)})
		count++
	}
	ix.itemCount.Add(count)
}

// nearest returns the closest node whose area is allowed by mask, or nil
func (ix *nodeIndex) nearest(p models.Vec3, mask uint32) *Node {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if ix.itemCount.Load() == 0 {
		return nil
	}

	allowed := func(results []rtreego.Spatial, object rtreego.Spatial) (refuse, abort bool) {
		sn, ok := object.(*spatialNode)
		if !ok || sn.Node == nil {
			return true, false
		}
		return !sn.Node.inMask(mask), false
	}

	results := ix.tree.NearestNeighbors(1, rtreego.Point{p.X, p.Y, p.Z}, allowed)
	for _, r := range results {
		if sn, ok := r.(*spatialNode); ok && sn != nil && sn.Node != nil {
			return sn.Node
		}
	}
	return nil
}

// within returns all nodes whose positions lie inside the axis-aligned box [lo, hi]
func (ix *nodeIndex) within(lo, hi models.Vec3) []*Node {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	bounds, err := rtreego.NewRect(
		rtreego.Point{lo.X, lo.Y, lo.Z},
		[]float64{hi.X - lo.X + tolerance, hi.Y - lo.Y + tolerance, hi.Z - lo.Z + tolerance},
	)
	if err != nil {
		return nil
	}

	var nodes []*Node
	for _, r := range ix.tree.SearchIntersect(bounds) {
		sn, ok := r.(*spatialNode)
		if !ok || sn.Node == nil {
			continue
		}
		pos := sn.Node.Position
		if pos.X >= lo.X && pos.X <= hi.X && pos.Y >= lo.Y && pos.Y <= hi.Y && pos.Z >= lo.Z && pos.Z <= hi.Z {
			nodes = append(nodes, sn.Node)
		}
	}
	return nodes
}

func (ix *nodeIndex) count() int64 {
	return ix.itemCount.Load()
}

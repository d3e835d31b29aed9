package navmesh

import (
	"fmt"

	"github.com/1F47E/qr-navigator/pkg/models"
)

// GridNodeID names the waypoint at a grid cell
func GridNodeID(col, row int) string {
	return fmt.Sprintf("g_%d_%d", col, row)
}

// Grid builds a cols x rows floor on the XZ plane with 4-connected
// waypoints at the given spacing. Cells where blocked returns true are left
// out. The snap tolerance equals the spacing.
func Grid(cols, rows int, spacing float64, blocked func(col, row int) bool) (*Mesh, error) {
	if cols <= 0 || rows <= 0 {
		return nil, fmt.Errorf("invalid grid size %dx%d", cols, rows)
	}
	if spacing <= 0 {
		return nil, fmt.Errorf("invalid grid spacing %v", spacing)
	}
	open := func(c, r int) bool {
		return c >= 0 && r >= 0 && c < cols && r < rows && (blocked == nil || !blocked(c, r))
	}

	nodes := make([]Node, 0, cols*rows)
	edges := make([]Edge, 0, 2*cols*rows)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if !open(c, r) {
				continue
			}
			nodes = append(nodes, Node{
				ID:       GridNodeID(c, r),
				Position: models.Vec3{X: float64(c) * spacing, Z: float64(r) * spacing},
			})
			if open(c+1, r) {
				edges = append(edges, Edge{From: GridNodeID(c, r), To: GridNodeID(c+1, r)})
			}
			if open(c, r+1) {
				edges = append(edges, Edge{From: GridNodeID(c, r), To: GridNodeID(c, r+1)})
			}
		}
	}
	return New(nodes, edges, spacing)
}

package main

import (
	"fmt"
	"log"

	"github.com/1F47E/qr-navigator/pkg/models"
	"github.com/1F47E/qr-navigator/pkg/navmesh"
	"github.com/1F47E/qr-navigator/pkg/presenter"
)

func main() {
	// A 10x6 floor with a wall along column 4, open at the top row
	mesh, err := navmesh.Grid(10, 6, 1.0, func(col, row int) bool {
		return col == 4 && row < 5
	})
	if err != nil {
		log.Fatal(err)
	}
	lo, hi := mesh.Bounds()
	fmt.Printf("Built mesh with %d waypoints, bounds %s to %s\n\n", mesh.Count(), lo, hi)

	// Example 1: Route around the wall
	fmt.Println("=== Path around the wall ===")
	start := models.Vec3{X: 1, Z: 1}
	target := models.Vec3{X: 8, Z: 1}

	corners, err := mesh.FindPath(start, target, navmesh.AllAreas)
	if err != nil {
		log.Fatal(err)
	}
	for i, c := range corners {
		fmt.Printf("  %d: %s\n", i, c)
	}

	// Example 2: Snap an arbitrary point to the closest waypoint
	fmt.Println("\n=== Nearest waypoint ===")
	node, err := mesh.Nearest(models.Vec3{X: 3.4, Y: 0.2, Z: 2.6}, navmesh.AllAreas)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("  %s at %s\n", node.ID, node.Position)

	// Example 3: Waypoints inside a box
	fmt.Println("\n=== Waypoints in box ===")
	inBox := mesh.NodesWithin(models.Vec3{X: 0, Y: -1, Z: 0}, models.Vec3{X: 2, Y: 1, Z: 2})
	fmt.Printf("Found %d waypoints:\n", len(inBox))
	for _, n := range inBox {
		fmt.Printf("  - %s\n", n.ID)
	}

	// Example 4: Selecting the same destination twice hides the line
	fmt.Println("\n=== Presenter toggle ===")
	p := presenter.New(mesh, presenter.ToggleOnReselect, presenter.DefaultOverviewOffset, navmesh.AllAreas)

	var line models.LineState
	for i := 0; i < 2; i++ {
		var pose *models.Pose
		line, pose = p.Present(line, target, start)
		fmt.Printf("  select %d: visible=%v corners=%d", i+1, line.Visible, len(line.Corners))
		if pose != nil {
			fmt.Printf(" overview=%s", pose.Position)
		}
		fmt.Println()
	}

	// Example 5: Areas excluded by the mask are unreachable
	fmt.Println("\n=== Masked out areas ===")
	if _, err := mesh.FindPath(start, target, 0); err != nil {
		fmt.Printf("  %v\n", err)
	}
}

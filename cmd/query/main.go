package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/1F47E/qr-navigator/pkg/models"
	"github.com/1F47E/qr-navigator/pkg/navmesh"
)

type pathResult struct {
	From    models.Vec3   `json:"from"`
	To      models.Vec3   `json:"to"`
	Corners []models.Vec3 `json:"corners"`
	Length  float64       `json:"length"`
	Error   string        `json:"error,omitempty"`
}

func main() {
	var (
		meshFile  = flag.String("i", "data/mesh.gob", "Mesh file path (.gob or YAML)")
		queryType = flag.String("t", "path", "Query type: path, box, nearest")
		from      = flag.String("from", "0,0,0", "Start point x,y,z (path, nearest)")
		to        = flag.String("to", "", "End point x,y,z (path)")
		lo        = flag.String("min", "", "Lower corner x,y,z (box)")
		hi        = flag.String("max", "", "Upper corner x,y,z (box)")
		mask      = flag.Uint("mask", uint(navmesh.AllAreas), "Area mask")
		// Output format
		outputJSON = flag.Bool("json", false, "Output results as JSON")
		limit      = flag.Int("limit", 100, "Maximum number of waypoints to display (box)")
	)
	flag.Parse()

	log.Printf("Loading mesh from %s...\n", *meshFile)
	mesh, err := navmesh.Load(*meshFile)
	if err != nil {
		log.Fatalf("Failed to load mesh: %v", err)
	}
	log.Printf("Mesh loaded with %d waypoints\n", mesh.Count())

	start := mustVec(*from, "from")
	areaMask := uint32(*mask)

	var out interface{}
	switch *queryType {
	case "path":
		if *to == "" {
			log.Fatal("Path query requires --to")
		}
		end := mustVec(*to, "to")
		res := pathResult{From: start, To: end}
		corners, err := mesh.FindPath(start, end, areaMask)
		if err != nil {
			res.Error = err.Error()
		}
		res.Corners = corners
		for i := 1; i < len(corners); i++ {
			res.Length += corners[i-1].DistanceTo(corners[i])
		}
		log.Printf("Path query found %d corners\n", len(corners))
		out = res

	case "box":
		if *lo == "" || *hi == "" {
			log.Fatal("Box query requires --min and --max")
		}
		nodes := mesh.NodesWithin(mustVec(*lo, "min"), mustVec(*hi, "max"))
		log.Printf("Box query found %d waypoints\n", len(nodes))
		if len(nodes) > *limit {
			log.Printf("Showing first %d results (use --limit to see more)\n", *limit)
			nodes = nodes[:*limit]
		}
		out = nodes

	case "nearest":
		n, err := mesh.Nearest(start, areaMask)
		if err != nil {
			log.Fatalf("Nearest query failed: %v", err)
		}
		out = n

	default:
		log.Fatalf("Unknown query type: %s", *queryType)
	}

	if *outputJSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(out); err != nil {
			log.Fatalf("Failed to encode results: %v", err)
		}
		return
	}

	switch v := out.(type) {
	case pathResult:
		if v.Error != "" {
			fmt.Printf("No path: %s\n", v.Error)
			return
		}
		for i, c := range v.Corners {
			fmt.Printf("%d. %s\n", i+1, c)
		}
		fmt.Printf("Length: %.2f\n", v.Length)
	case []navmesh.Node:
		for i, n := range v {
			fmt.Printf("%d. %s: %s (area %d)\n", i+1, n.ID, n.Position, n.Area)
		}
	case navmesh.Node:
		fmt.Printf("%s: %s (area %d) - %.2f away\n", v.ID, v.Position, v.Area, v.Position.DistanceTo(start))
	}
}

func mustVec(s, name string) models.Vec3 {
	v, err := models.ParseVec3(s)
	if err != nil {
		log.Fatalf("Invalid --%s: %v", name, err)
	}
	return v
}

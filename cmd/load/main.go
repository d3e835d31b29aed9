package main

import (
	"flag"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/1F47E/qr-navigator/pkg/navmesh"
)

func main() {
	var (
		inputFile  = flag.String("i", "", "YAML mesh to bake (empty generates a grid)")
		outputFile = flag.String("o", "data/mesh.gob", "Output file path")
		cols       = flag.Int("cols", 200, "Grid columns when generating")
		rows       = flag.Int("rows", 200, "Grid rows when generating")
		spacing    = flag.Float64("spacing", 1.0, "Grid spacing in metres")
		blocked    = flag.Float64("blocked", 0.1, "Fraction of grid cells left unwalkable")
		seed       = flag.Int64("seed", time.Now().UnixNano(), "Random seed")
	)
	flag.Parse()

	if err := os.MkdirAll(filepath.Dir(*outputFile), 0755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	startTime := time.Now()
	var mesh *navmesh.Mesh
	var err error
	if *inputFile != "" {
		log.Printf("Loading mesh from %s...", *inputFile)
		mesh, err = navmesh.LoadYAML(*inputFile)
	} else {
		log.Printf("Generating %dx%d grid (spacing %.2f, %.0f%% blocked)...", *cols, *rows, *spacing, *blocked*100)
		r := rand.New(rand.NewSource(*seed))
		mesh, err = navmesh.Grid(*cols, *rows, *spacing, func(c, row int) bool {
			// keep the origin walkable so paths from the default start exist
			if c == 0 && row == 0 {
				return false
			}
			return r.Float64() < *blocked
		})
	}
	if err != nil {
		log.Fatalf("Failed to build mesh: %v", err)
	}
	log.Printf("Mesh built in %v with %d waypoints", time.Since(startTime), mesh.Count())

	// Warm the full-mask graph so obviously broken meshes fail here
	lo, hi := mesh.Bounds()
	if _, err := mesh.FindPath(lo, hi, navmesh.AllAreas); err != nil {
		log.Printf("Warning: no path across mesh bounds: %v", err)
	}

	log.Printf("Saving mesh to %s...", *outputFile)
	startTime = time.Now()
	if err := mesh.SaveToFile(*outputFile); err != nil {
		log.Fatalf("Failed to save mesh: %v", err)
	}
	log.Printf("Mesh saved in %v", time.Since(startTime))

	if fileInfo, err := os.Stat(*outputFile); err == nil {
		log.Printf("Mesh file size: %.2f MB", float64(fileInfo.Size())/(1024*1024))
	}
}

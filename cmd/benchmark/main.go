package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/1F47E/qr-navigator/pkg/directory"
	"github.com/1F47E/qr-navigator/pkg/models"
	"github.com/1F47E/qr-navigator/pkg/navmesh"
)

type BenchmarkResult struct {
	QueryType     string
	TotalQueries  int
	Failed        int64
	TotalDuration time.Duration
	AvgDuration   time.Duration
	P99Duration   time.Duration
	QueriesPerSec float64
	MinDuration   time.Duration
	MaxDuration   time.Duration
	TotalResults  int64
	AvgResults    float64
}

// queryFunc runs one random query and returns the number of results
type queryFunc func(r *rand.Rand) (int, error)

func main() {
	var (
		meshFile   = flag.String("i", "data/mesh.gob", "Mesh file path (.gob or YAML)")
		queryType  = flag.String("t", "path", "Query type: path, nearest, box, directory, mixed")
		numQueries = flag.Int("n", 1000, "Number of queries to run")
		workers    = flag.Int("w", runtime.NumCPU(), "Number of concurrent workers")
		boxSize    = flag.Float64("box-size", 5.0, "Box edge length (box queries)")
		baseURL    = flag.String("url", "http://localhost:8080"+directory.DefaultPath, "Directory URL (directory queries)")
		terms      = flag.String("terms", "a,e,Room,Lib,Caf", "Comma separated search terms (directory queries)")
	)
	flag.Parse()

	queries := map[string]queryFunc{}
	needMesh := *queryType != "directory"
	if needMesh {
		log.Printf("Loading mesh from %s...\n", *meshFile)
		mesh, err := navmesh.Load(*meshFile)
		if err != nil {
			log.Fatalf("Failed to load mesh: %v", err)
		}
		log.Printf("Mesh loaded with %d waypoints\n", mesh.Count())
		lo, hi := mesh.Bounds()
		randomPoint := func(r *rand.Rand) models.Vec3 {
			return models.Vec3{
				X: lo.X + r.Float64()*(hi.X-lo.X),
				Y: lo.Y + r.Float64()*(hi.Y-lo.Y),
				Z: lo.Z + r.Float64()*(hi.Z-lo.Z),
			}
		}

		queries["path"] = func(r *rand.Rand) (int, error) {
			corners, err := mesh.FindPath(randomPoint(r), randomPoint(r), navmesh.AllAreas)
			return len(corners), err
		}
		queries["nearest"] = func(r *rand.Rand) (int, error) {
			if _, err := mesh.Nearest(randomPoint(r), navmesh.AllAreas); err != nil {
				return 0, err
			}
			return 1, nil
		}
		queries["box"] = func(r *rand.Rand) (int, error) {
			p := randomPoint(r)
			edge := models.Vec3{X: *boxSize, Y: *boxSize, Z: *boxSize}
			return len(mesh.NodesWithin(p, p.Add(edge))), nil
		}
	}

	if *queryType == "directory" || *queryType == "mixed" {
		client, err := directory.NewClient(*baseURL, directory.WithTimeout(5*time.Second))
		if err != nil {
			log.Fatalf("Invalid directory URL: %v", err)
		}
		words := splitTerms(*terms)
		queries["directory"] = func(r *rand.Rand) (int, error) {
			names, err := client.Search(context.Background(), words[r.Intn(len(words))])
			return len(names), err
		}
	}

	log.Printf("Running %d %s queries with %d workers...\n", *numQueries, *queryType, *workers)

	var results []BenchmarkResult
	switch *queryType {
	case "mixed":
		log.Println("Running mixed benchmark (equal share per type)...")
		names := make([]string, 0, len(queries))
		for name := range queries {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			results = append(results, benchmark(name, queries[name], *numQueries/len(names), *workers))
		}
	default:
		q, ok := queries[*queryType]
		if !ok {
			log.Fatalf("Unknown query type: %s", *queryType)
		}
		results = append(results, benchmark(*queryType, q, *numQueries, *workers))
	}

	for _, result := range results {
		printResult(result)
	}
	fmt.Printf("Workers Used: %d\n", *workers)
	fmt.Printf("CPU Cores: %d\n", runtime.NumCPU())
}

func benchmark(name string, query queryFunc, numQueries, workers int) BenchmarkResult {
	var (
		totalResults int64
		failed       atomic.Int64
		durations    = make([]time.Duration, 0, numQueries)
		mu           sync.Mutex
	)

	startTime := time.Now()

	// Worker pool
	queryCh := make(chan int, numQueries)
	var wg sync.WaitGroup

	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			r := rand.New(rand.NewSource(rand.Int63()))

			for range queryCh {
				queryStart := time.Now()
				n, err := query(r)
				queryDuration := time.Since(queryStart)

				if err != nil {
					failed.Add(1)
				}
				atomic.AddInt64(&totalResults, int64(n))

				mu.Lock()
				durations = append(durations, queryDuration)
				mu.Unlock()
			}
		}()
	}

	for i := 0; i < numQueries; i++ {
		queryCh <- i
	}
	close(queryCh)

	wg.Wait()
	totalDuration := time.Since(startTime)

	result := BenchmarkResult{
		QueryType:     name,
		TotalQueries:  numQueries,
		Failed:        failed.Load(),
		TotalDuration: totalDuration,
		TotalResults:  totalResults,
	}
	if len(durations) == 0 {
		return result
	}

	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })
	var totalDur time.Duration
	for _, d := range durations {
		totalDur += d
	}
	result.AvgDuration = totalDur / time.Duration(len(durations))
	result.MinDuration = durations[0]
	result.MaxDuration = durations[len(durations)-1]
	result.P99Duration = durations[len(durations)*99/100]
	result.QueriesPerSec = float64(numQueries) / totalDuration.Seconds()
	result.AvgResults = float64(totalResults) / float64(numQueries)
	return result
}

func printResult(result BenchmarkResult) {
	fmt.Println("\n=== Benchmark Results ===")
	fmt.Printf("Query Type: %s\n", result.QueryType)
	fmt.Printf("Total Queries: %d\n", result.TotalQueries)
	fmt.Printf("Failed Queries: %d\n", result.Failed)
	fmt.Printf("Total Duration: %v\n", result.TotalDuration)
	fmt.Printf("Average Duration: %v\n", result.AvgDuration)
	fmt.Printf("P99 Duration: %v\n", result.P99Duration)
	fmt.Printf("Queries/Second: %.2f\n", result.QueriesPerSec)
	fmt.Printf("Min Duration: %v\n", result.MinDuration)
	fmt.Printf("Max Duration: %v\n", result.MaxDuration)
	fmt.Printf("Total Results: %d\n", result.TotalResults)
	fmt.Printf("Avg Results/Query: %.2f\n", result.AvgResults)
}

func splitTerms(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		out = []string{"a"}
	}
	return out
}

// Command bhtsne runs the Barnes-Hut t-SNE engine on a CSV data file.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"

	"github.com/nozzle/bhtsne"
	"github.com/nozzle/bhtsne/knn"
)

func main() {
	inputFile := flag.String("input", "", "Input CSV file (required)")
	outputFile := flag.String("output", "embedding.csv", "Output CSV file")
	nNeighbors := flag.Int("neighbors", 30, "Number of neighbors for k-NN")
	dim := flag.Int("dim", 2, "Embedding dimensionality (2 or 3)")
	perplexity := flag.Float64("perplexity", 30, "Target perplexity")
	epsilon := flag.Float64("epsilon", 10, "Learning rate")
	steps := flag.Int("steps", 1000, "Number of optimizer steps")
	seed := flag.Int64("seed", 42, "Random seed")
	verbose := flag.Bool("verbose", false, "Verbose output")
	flag.Parse()

	if *inputFile == "" {
		fmt.Fprintln(os.Stderr, "Error: -input flag is required")
		flag.Usage()
		os.Exit(1)
	}

	data, err := loadCSV(*inputFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading data: %v\n", err)
		os.Exit(1)
	}

	if *verbose {
		fmt.Printf("Loaded %d samples with %d features\n", len(data), len(data[0]))
	}

	cfg := bhtsne.DefaultConfig()
	cfg.Dim = *dim
	cfg.Perplexity = *perplexity
	cfg.Epsilon = *epsilon
	cfg.Seed = *seed
	cfg.Verbose = *verbose
	if *verbose {
		cfg.ProgressCallback = func(t int) {
			if t%50 == 0 || t == *steps {
				fmt.Printf("step %d/%d\n", t, *steps)
			}
		}
	}

	eng, err := bhtsne.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating engine: %v\n", err)
		os.Exit(1)
	}

	table := bruteForceKNN(data, *nNeighbors)
	if err := eng.InitDataDist(table); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing: %v\n", err)
		os.Exit(1)
	}

	for i := 0; i < *steps; i++ {
		if err := eng.Step(); err != nil {
			fmt.Fprintf(os.Stderr, "Error during step %d: %v\n", i, err)
			os.Exit(1)
		}
	}

	if err := saveCSV(*outputFile, eng.GetSolution(), len(data), cfg.Dim); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving output: %v\n", err)
		os.Exit(1)
	}

	if *verbose {
		fmt.Printf("Saved embedding to %s\n", *outputFile)
	}
}

// bruteForceKNN computes an exact k-NN table over Euclidean distance in
// the original feature space. O(N^2 log N); fine for the CLI's scale,
// the caller is responsible for supplying a faster graph for large N.
func bruteForceKNN(data [][]float64, k int) knn.Table {
	n := len(data)
	if k > n-1 {
		k = n - 1
	}
	table := make(knn.Table, n)
	for i := 0; i < n; i++ {
		type cand struct {
			idx int
			d   float64
		}
		cands := make([]cand, 0, n-1)
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			cands = append(cands, cand{j, euclidean(data[i], data[j])})
		}
		sort.Slice(cands, func(a, b int) bool { return cands[a].d < cands[b].d })

		idx := make([]int32, k)
		dist := make([]float64, k)
		for t := 0; t < k; t++ {
			idx[t] = int32(cands[t].idx)
			dist[t] = cands[t].d
		}
		table[i] = knn.Row{Index: idx, Dist: dist}
	}
	return table
}

func euclidean(a, b []float64) float64 {
	d2 := 0.0
	for i := range a {
		diff := a[i] - b[i]
		d2 += diff * diff
	}
	return math.Sqrt(d2)
}

// loadCSV loads data from a CSV file (no header, numeric values only).
func loadCSV(filename string) ([][]float64, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("empty file")
	}

	data := make([][]float64, len(records))
	for i, record := range records {
		data[i] = make([]float64, len(record))
		for j, val := range record {
			f, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d, col %d: %v", i, j, err)
			}
			data[i][j] = f
		}
	}
	return data, nil
}

// saveCSV saves an N*dim row-major embedding to a CSV file.
func saveCSV(filename string, y []float64, n, dim int) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	for i := 0; i < n; i++ {
		record := make([]string, dim)
		for d := 0; d < dim; d++ {
			record[d] = strconv.FormatFloat(y[i*dim+d], 'f', 6, 64)
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	return nil
}

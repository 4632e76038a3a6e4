// Package cluster provides k-means clustering, used to check how well class
// structure survives a projection to lower dimension.
package cluster

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
)

// ErrInvalidInput is returned for empty data or an infeasible cluster count.
var ErrInvalidInput = errors.New("cluster: invalid input")

// Config holds k-means parameters.
type Config struct {
	// MaxIter bounds the Lloyd iterations. Default 100.
	MaxIter int

	// Tolerance stops iteration when inertia improves by less than
	// Tolerance per sample. Default 1e-4.
	Tolerance float64

	// Seed drives centroid seeding. Same seed, same clustering.
	Seed int64

	// Workers bounds the parallel assignment step. Default 4.
	Workers int
}

// DefaultConfig returns the defaults used throughout the demos.
func DefaultConfig() Config {
	return Config{MaxIter: 100, Tolerance: 1e-4, Seed: 42, Workers: 4}
}

func (c *Config) applyDefaults() {
	if c.MaxIter <= 0 {
		c.MaxIter = 100
	}
	if c.Tolerance <= 0 {
		c.Tolerance = 1e-4
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
}

// Result is a finished clustering.
type Result struct {
	Centroids  [][]float64
	Labels     []int
	Inertia    float64
	Iterations int
}

// Run clusters data into k groups with k-means++ seeding and Lloyd
// iterations. Assignment is parallelized across Config.Workers.
func Run(data [][]float64, k int, cfg Config) (*Result, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: no samples", ErrInvalidInput)
	}
	if k <= 0 || k > len(data) {
		return nil, fmt.Errorf("%w: k=%d with %d samples", ErrInvalidInput, k, len(data))
	}
	cfg.applyDefaults()

	dim := len(data[0])
	for i, row := range data {
		if len(row) != dim {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d", ErrInvalidInput, i, len(row), dim)
		}
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	res := &Result{
		Centroids: seedCentroids(data, k, rng),
		Labels:    make([]int, len(data)),
	}

	prev := math.MaxFloat64
	for iter := 0; iter < cfg.MaxIter; iter++ {
		inertia := assign(data, res, cfg.Workers)
		res.Iterations = iter + 1
		res.Inertia = inertia

		if math.Abs(prev-inertia) < cfg.Tolerance*float64(len(data)) {
			break
		}
		prev = inertia
		updateCentroids(data, res, k, dim)
	}

	return res, nil
}

// seedCentroids picks starting centroids with k-means++: each next centroid
// is drawn with probability proportional to squared distance from the
// nearest already-chosen one.
func seedCentroids(data [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(data)
	dim := len(data[0])

	centroids := make([][]float64, k)
	centroids[0] = make([]float64, dim)
	copy(centroids[0], data[rng.Intn(n)])

	distances := make([]float64, n)
	for i := range distances {
		distances[i] = math.MaxFloat64
	}

	for c := 1; c < k; c++ {
		var total float64
		for i, vec := range data {
			if d := SquaredDistance(vec, centroids[c-1]); d < distances[i] {
				distances[i] = d
			}
			total += distances[i]
		}

		threshold := rng.Float64() * total
		var cumulative float64
		chosen := 0
		for i, d := range distances {
			cumulative += d
			if cumulative >= threshold {
				chosen = i
				break
			}
		}

		centroids[c] = make([]float64, dim)
		copy(centroids[c], data[chosen])
	}

	return centroids
}

// assign labels every sample with its nearest centroid and returns the
// total inertia.
func assign(data [][]float64, res *Result, workers int) float64 {
	var total float64
	var mu sync.Mutex

	chunk := (len(data) + workers - 1) / workers
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := min(start+chunk, len(data))
		if start >= end {
			continue
		}

		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			var local float64
			for i := start; i < end; i++ {
				best := math.MaxFloat64
				bestIdx := 0
				for c, centroid := range res.Centroids {
					if d := SquaredDistance(data[i], centroid); d < best {
						best = d
						bestIdx = c
					}
				}
				res.Labels[i] = bestIdx
				local += best
			}
			mu.Lock()
			total += local
			mu.Unlock()
		}(start, end)
	}
	wg.Wait()

	return total
}

func updateCentroids(data [][]float64, res *Result, k, dim int) {
	counts := make([]int, k)
	sums := make([][]float64, k)
	for c := range sums {
		sums[c] = make([]float64, dim)
	}

	for i, vec := range data {
		c := res.Labels[i]
		counts[c]++
		for j, v := range vec {
			sums[c][j] += v
		}
	}

	for c := 0; c < k; c++ {
		// An empty cluster keeps its previous centroid.
		if counts[c] == 0 {
			continue
		}
		for j := range sums[c] {
			sums[c][j] /= float64(counts[c])
		}
		res.Centroids[c] = sums[c]
	}
}

// Nearest returns the index of the centroid closest to the query.
func (r *Result) Nearest(query []float64) int {
	best := math.MaxFloat64
	bestIdx := 0
	for c, centroid := range r.Centroids {
		if d := SquaredDistance(query, centroid); d < best {
			best = d
			bestIdx = c
		}
	}
	return bestIdx
}

// Sizes returns the number of samples assigned to each cluster.
func (r *Result) Sizes() []int {
	sizes := make([]int, len(r.Centroids))
	for _, label := range r.Labels {
		sizes[label]++
	}
	return sizes
}

// Agreement scores the clustering against reference class labels as purity:
// each cluster votes for its majority class, and the score is the fraction
// of samples matching their cluster's vote. 1.0 means classes and clusters
// coincide.
func (r *Result) Agreement(classes []int) (float64, error) {
	if len(classes) != len(r.Labels) {
		return 0, fmt.Errorf("%w: %d class labels for %d samples", ErrInvalidInput, len(classes), len(r.Labels))
	}

	votes := make([]map[int]int, len(r.Centroids))
	for i := range votes {
		votes[i] = make(map[int]int)
	}
	for i, cluster := range r.Labels {
		votes[cluster][classes[i]]++
	}

	var matched int
	for _, v := range votes {
		best := 0
		for _, count := range v {
			if count > best {
				best = count
			}
		}
		matched += best
	}
	return float64(matched) / float64(len(classes)), nil
}

// SquaredDistance computes the squared Euclidean distance between vectors
// of equal length.
func SquaredDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// Normalize returns a unit-length copy of v. The zero vector is returned
// as an all-zero copy.
func Normalize(v []float64) []float64 {
	var norm float64
	for _, val := range v {
		norm += val * val
	}
	norm = math.Sqrt(norm)

	out := make([]float64, len(v))
	if norm > 0 {
		for i, val := range v {
			out[i] = val / norm
		}
	}
	return out
}

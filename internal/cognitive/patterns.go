package cognitive

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Pattern is a reasoning-pattern cluster centroid discovered across
// completed trajectories (spec.md §4.6).
type Pattern struct {
	Centroid  []float64
	Size      int
	AvgReward float64
}

// Match pairs a query's nearest pattern with its distance, returned by
// findPatterns.
type Match struct {
	Pattern  Pattern
	Distance float64
}

// PatternBank clusters completed-trajectory mean-step-vectors with
// K-means++ seeding. No pack example ships a clustering library beyond
// gonum's descriptive-statistics primitives (stat.Mean/stat.Variance),
// so the seeding/iterate-until-convergence loop itself is hand-written
// here; gonum/stat backs the per-trajectory reward mean and variance in
// TrajectoryVector, while Lloyd's centroid means are computed by hand.
type PatternBank struct {
	k        int
	maxIters int
	patterns []Pattern
}

// NewPatternBank constructs an empty bank targeting k clusters.
func NewPatternBank(k int) *PatternBank {
	if k < 1 {
		k = 1
	}
	return &PatternBank{k: k, maxIters: 100}
}

// TrajectoryVector reduces a trajectory's steps to a single feature
// vector: the reward trajectory is interpreted as a fixed-length
// series by its step-reward mean, step-reward variance, and overall quality --
// enough signal to separate "good focused answers" from "long
// meandering ones" without embedding the step text itself.
func TrajectoryVector(t Trajectory) []float64 {
	if len(t.Steps) == 0 {
		return []float64{0, 0, t.Quality}
	}
	rewards := make([]float64, len(t.Steps))
	for i, s := range t.Steps {
		rewards[i] = s.Reward
	}
	mean := stat.Mean(rewards, nil)
	variance := stat.Variance(rewards, nil)
	return []float64{mean, variance, t.Quality}
}

// Fit runs K-means++ over the supplied trajectories' feature vectors.
func (b *PatternBank) Fit(trajectories []Trajectory) error {
	if len(trajectories) == 0 {
		b.patterns = nil
		return nil
	}
	vectors := make([][]float64, len(trajectories))
	rewards := make([]float64, len(trajectories))
	for i, t := range trajectories {
		vectors[i] = TrajectoryVector(t)
		rewards[i] = t.Quality
	}

	k := b.k
	if k > len(vectors) {
		k = len(vectors)
	}
	centroids := seedPlusPlus(vectors, k)

	var assignments []int
	for iter := 0; iter < b.maxIters; iter++ {
		assignments = assign(vectors, centroids)
		next := recompute(vectors, assignments, k, len(vectors[0]))
		if converged(centroids, next) {
			centroids = next
			break
		}
		centroids = next
	}

	patterns := make([]Pattern, k)
	counts := make([]int, k)
	rewardSums := make([]float64, k)
	for i, a := range assignments {
		counts[a]++
		rewardSums[a] += rewards[i]
	}
	for i := 0; i < k; i++ {
		avg := 0.0
		if counts[i] > 0 {
			avg = rewardSums[i] / float64(counts[i])
		}
		patterns[i] = Pattern{Centroid: centroids[i], Size: counts[i], AvgReward: avg}
	}
	b.patterns = patterns
	return nil
}

// Count reports how many pattern clusters the bank currently holds,
// 0 before the first successful Fit.
func (b *PatternBank) Count() int {
	return len(b.patterns)
}

// FindPatterns returns the n nearest centroids to query, sorted by
// ascending distance, each with cluster size and average quality.
func (b *PatternBank) FindPatterns(query []float64, n int) ([]Match, error) {
	if len(b.patterns) == 0 {
		return nil, fmt.Errorf("pattern bank: not fit")
	}
	matches := make([]Match, len(b.patterns))
	for i, p := range b.patterns {
		matches[i] = Match{Pattern: p, Distance: euclidean(query, p.Centroid)}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Distance < matches[j].Distance })
	if n > 0 && n < len(matches) {
		matches = matches[:n]
	}
	return matches, nil
}

func seedPlusPlus(vectors [][]float64, k int) [][]float64 {
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, cloneVec(vectors[deterministicPick(len(vectors), 0)]))

	for len(centroids) < k {
		distances := make([]float64, len(vectors))
		var total float64
		for i, v := range vectors {
			d := nearestDistSq(v, centroids)
			distances[i] = d
			total += d
		}
		if total == 0 {
			centroids = append(centroids, cloneVec(vectors[deterministicPick(len(vectors), len(centroids))]))
			continue
		}
		target := total * weightedFraction(len(centroids))
		var cum float64
		chosen := len(vectors) - 1
		for i, d := range distances {
			cum += d
			if cum >= target {
				chosen = i
				break
			}
		}
		centroids = append(centroids, cloneVec(vectors[chosen]))
	}
	return centroids
}

// deterministicPick and weightedFraction replace the RNG a stock
// K-means++ implementation would use: Date.now/math.Rand-free
// determinism matters more here than seeding variance, since the same
// trajectory set must always fit to the same patterns.
func deterministicPick(n, salt int) int {
	return salt % n
}

func weightedFraction(salt int) float64 {
	return float64((salt*2654435761)%1000) / 1000.0
}

func nearestDistSq(v []float64, centroids [][]float64) float64 {
	best := math.Inf(1)
	for _, c := range centroids {
		d := euclideanSq(v, c)
		if d < best {
			best = d
		}
	}
	return best
}

func assign(vectors [][]float64, centroids [][]float64) []int {
	out := make([]int, len(vectors))
	for i, v := range vectors {
		best, bestDist := 0, math.Inf(1)
		for c, centroid := range centroids {
			d := euclideanSq(v, centroid)
			if d < bestDist {
				bestDist, best = d, c
			}
		}
		out[i] = best
	}
	return out
}

func recompute(vectors [][]float64, assignments []int, k, dim int) [][]float64 {
	sums := make([][]float64, k)
	counts := make([]int, k)
	for i := range sums {
		sums[i] = make([]float64, dim)
	}
	for i, v := range vectors {
		a := assignments[i]
		counts[a]++
		for d := 0; d < dim; d++ {
			sums[a][d] += v[d]
		}
	}
	out := make([][]float64, k)
	for i := 0; i < k; i++ {
		if counts[i] == 0 {
			out[i] = cloneVec(vectors[i%len(vectors)])
			continue
		}
		out[i] = make([]float64, dim)
		for d := 0; d < dim; d++ {
			out[i][d] = sums[i][d] / float64(counts[i])
		}
	}
	return out
}

func converged(a, b [][]float64) bool {
	const eps = 1e-9
	for i := range a {
		if euclideanSq(a[i], b[i]) > eps {
			return false
		}
	}
	return true
}

func euclideanSq(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func euclidean(a, b []float64) float64 {
	return math.Sqrt(euclideanSq(a, b))
}

func cloneVec(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}

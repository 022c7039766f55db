// Package cluster partitions delivery packages into geographic route
// groups sized near a configured target. The partition is deterministic:
// identical input order yields identical clusters.
package cluster

import (
	"errors"
	"math"

	"github.com/fairfleet/engine/core/model"
)

// ErrInsufficientData is returned when there are no packages to cluster.
var ErrInsufficientData = errors.New("insufficient data: no packages supplied")

// DefaultTargetSize is the default number of packages per route.
const DefaultTargetSize = 20

// Difficulty score constants. Diameter and urgent-package count drive the
// score; the fragility multiplier matches the effort model used for
// workload scoring.
const (
	difficultyBase      = 1.0
	difficultyPerKm     = 0.5
	difficultyPerUrgent = 0.3
)

// lloydSweeps bounds the centroid refinement passes. Fixed so the builder
// stays a pure function of its input.
const lloydSweeps = 8

// Builder groups packages into clusters of roughly TargetSize packages.
type Builder struct {
	TargetSize int
}

// NewBuilder returns a Builder, applying the default target size when the
// argument is not positive.
func NewBuilder(target int) Builder {
	if target < 1 {
		target = DefaultTargetSize
	}
	return Builder{TargetSize: target}
}

// Build partitions packages into at most ceil(n/target) clusters seeded
// by a farthest-point sweep from the warehouse, refined with a bounded
// number of Lloyd passes. Duplicate coordinates can starve a centroid of
// members; such empty clusters are dropped and IDs renumbered, so every
// returned cluster carries at least one package. Pure function of its
// input.
func (b Builder) Build(packages []model.Package, warehouse model.Coordinate) ([]model.Cluster, error) {
	n := len(packages)
	if n == 0 {
		return nil, ErrInsufficientData
	}
	target := b.TargetSize
	if target < 1 {
		target = DefaultTargetSize
	}
	k := (n + target - 1) / target

	centroids := seedCentroids(packages, warehouse, k)
	labels := make([]int, n)
	for sweep := 0; sweep < lloydSweeps; sweep++ {
		changed := assignNearest(packages, centroids, labels)
		recomputeCentroids(packages, labels, centroids)
		if !changed && sweep > 0 {
			break
		}
	}

	grouped := make([]model.Cluster, k)
	for i := range grouped {
		grouped[i] = model.Cluster{Centroid: centroids[i]}
	}
	for i, p := range packages {
		c := &grouped[labels[i]]
		c.Packages = append(c.Packages, p)
		c.TotalWeightKg += p.WeightKg
	}
	clusters := make([]model.Cluster, 0, k)
	for _, c := range grouped {
		if len(c.Packages) == 0 {
			continue
		}
		c.ID = len(clusters)
		c.Stops = len(c.Packages)
		c.Difficulty = difficulty(c)
		clusters = append(clusters, c)
	}
	return clusters, nil
}

// seedCentroids picks k starting centroids: the package farthest from the
// warehouse first, then repeatedly the package maximising the minimum
// distance to already chosen seeds. Ties go to the lower index.
func seedCentroids(packages []model.Package, warehouse model.Coordinate, k int) []model.Coordinate {
	seeds := make([]model.Coordinate, 0, k)
	first, best := 0, -1.0
	for i, p := range packages {
		if d := warehouse.DistanceKm(p.Location); d > best {
			first, best = i, d
		}
	}
	seeds = append(seeds, packages[first].Location)

	for len(seeds) < k {
		next, nextDist := 0, -1.0
		for i, p := range packages {
			minDist := math.Inf(1)
			for _, s := range seeds {
				if d := s.DistanceKm(p.Location); d < minDist {
					minDist = d
				}
			}
			if minDist > nextDist {
				next, nextDist = i, minDist
			}
		}
		seeds = append(seeds, packages[next].Location)
	}
	return seeds
}

func assignNearest(packages []model.Package, centroids []model.Coordinate, labels []int) bool {
	changed := false
	for i, p := range packages {
		bestIdx, bestDist := 0, math.Inf(1)
		for j, c := range centroids {
			if d := c.DistanceKm(p.Location); d < bestDist {
				bestIdx, bestDist = j, d
			}
		}
		if labels[i] != bestIdx {
			labels[i] = bestIdx
			changed = true
		}
	}
	return changed
}

func recomputeCentroids(packages []model.Package, labels []int, centroids []model.Coordinate) {
	sums := make([]model.Coordinate, len(centroids))
	counts := make([]int, len(centroids))
	for i, p := range packages {
		sums[labels[i]].Lat += p.Location.Lat
		sums[labels[i]].Lng += p.Location.Lng
		counts[labels[i]]++
	}
	for j := range centroids {
		// Empty clusters keep their previous centroid.
		if counts[j] > 0 {
			centroids[j] = model.Coordinate{
				Lat: sums[j].Lat / float64(counts[j]),
				Lng: sums[j].Lng / float64(counts[j]),
			}
		}
	}
}

// difficulty scores a cluster from its geographic spread and priority mix,
// scaled by a fragility multiplier (fragility 1 = 1.0x, fragility 5 = 1.4x).
func difficulty(c model.Cluster) float64 {
	d := difficultyBase +
		difficultyPerKm*Diameter(c) +
		difficultyPerUrgent*float64(c.UrgentCount())
	return d * (1 + (c.AvgFragility()-1)*0.1)
}

// Diameter returns the largest pairwise distance between stops in km.
func Diameter(c model.Cluster) float64 {
	max := 0.0
	for i := 0; i < len(c.Packages); i++ {
		for j := i + 1; j < len(c.Packages); j++ {
			if d := c.Packages[i].Location.DistanceKm(c.Packages[j].Location); d > max {
				max = d
			}
		}
	}
	return max
}

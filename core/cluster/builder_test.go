package cluster

import (
	"math"
	"reflect"
	"testing"

	"github.com/fairfleet/engine/core/model"
)

var warehouse = model.Coordinate{Lat: 48.85, Lng: 2.35}

func pkg(id string, lat, lng float64) model.Package {
	return model.Package{ID: id, WeightKg: 2, Fragility: 1, Location: model.Coordinate{Lat: lat, Lng: lng}}
}

func scatter(n int) []model.Package {
	pkgs := make([]model.Package, 0, n)
	for i := 0; i < n; i++ {
		// The grid repeats every 35 indices; the tiny per-index nudge keeps
		// every location distinct.
		lat := warehouse.Lat + 0.01*float64(i%7) - 0.03 + 0.0001*float64(i)
		lng := warehouse.Lng + 0.015*float64(i%5) - 0.03
		pkgs = append(pkgs, pkg(string(rune('a'+i%26))+string(rune('0'+i/26)), lat, lng))
	}
	return pkgs
}

func TestBuildPartitionsEveryPackageOnce(t *testing.T) {
	pkgs := scatter(23)
	clusters, err := NewBuilder(5).Build(pkgs, warehouse)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if want := 5; len(clusters) != want { // ceil(23/5)
		t.Fatalf("got %d clusters, want %d", len(clusters), want)
	}
	seen := make(map[string]int)
	for _, c := range clusters {
		weight := 0.0
		for _, p := range c.Packages {
			seen[p.ID]++
			weight += p.WeightKg
		}
		if math.Abs(weight-c.TotalWeightKg) > 1e-9 {
			t.Errorf("cluster %d: TotalWeightKg %v, sum of packages %v", c.ID, c.TotalWeightKg, weight)
		}
		if c.Stops != len(c.Packages) {
			t.Errorf("cluster %d: Stops %d != %d packages", c.ID, c.Stops, len(c.Packages))
		}
	}
	for _, p := range pkgs {
		if seen[p.ID] != 1 {
			t.Fatalf("package %s appears %d times", p.ID, seen[p.ID])
		}
	}
}

func TestBuildClusterCount(t *testing.T) {
	cases := []struct{ n, target, want int }{
		{1, 20, 1},
		{20, 20, 1},
		{21, 20, 2},
		{100, 20, 5},
		{7, 3, 3},
	}
	for _, tc := range cases {
		clusters, err := NewBuilder(tc.target).Build(scatter(tc.n), warehouse)
		if err != nil {
			t.Fatalf("Build(n=%d): %v", tc.n, err)
		}
		if len(clusters) != tc.want {
			t.Errorf("n=%d target=%d: got %d clusters, want %d", tc.n, tc.target, len(clusters), tc.want)
		}
	}
}

func TestBuildDropsEmptyClusters(t *testing.T) {
	// Forty packages at one coordinate leave the second seed with no
	// members. The starved cluster must not surface as a phantom route.
	pkgs := make([]model.Package, 0, 40)
	for i := 0; i < 40; i++ {
		pkgs = append(pkgs, pkg(string(rune('a'+i%26))+string(rune('0'+i/26)), 48.86, 2.36))
	}
	clusters, err := NewBuilder(20).Build(pkgs, warehouse)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(clusters) != 1 {
		t.Fatalf("got %d clusters, want 1 (no empty clusters)", len(clusters))
	}
	c := clusters[0]
	if c.ID != 0 {
		t.Fatalf("cluster ID = %d, want renumbered 0", c.ID)
	}
	if len(c.Packages) != 40 || c.Stops != 40 {
		t.Fatalf("cluster holds %d packages / %d stops, want 40/40", len(c.Packages), c.Stops)
	}
}

func TestBuildDeterministic(t *testing.T) {
	pkgs := scatter(40)
	a, err := NewBuilder(10).Build(pkgs, warehouse)
	if err != nil {
		t.Fatalf("first build: %v", err)
	}
	b, err := NewBuilder(10).Build(pkgs, warehouse)
	if err != nil {
		t.Fatalf("second build: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatal("identical input produced different clusterings")
	}
}

func TestBuildNoPackages(t *testing.T) {
	if _, err := NewBuilder(20).Build(nil, warehouse); err != ErrInsufficientData {
		t.Fatalf("err = %v, want ErrInsufficientData", err)
	}
}

func TestDifficultySinglePlainPackage(t *testing.T) {
	clusters, err := NewBuilder(20).Build([]model.Package{pkg("p1", 48.86, 2.36)}, warehouse)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	// Zero diameter, no urgent packages, fragility 1: base score only.
	if d := clusters[0].Difficulty; math.Abs(d-1.0) > 1e-9 {
		t.Fatalf("difficulty = %v, want 1.0", d)
	}
}

func TestDifficultyGrowsWithUrgencyAndFragility(t *testing.T) {
	plain, _ := NewBuilder(20).Build([]model.Package{pkg("p1", 48.86, 2.36), pkg("p2", 48.87, 2.37)}, warehouse)
	urgent := []model.Package{pkg("p1", 48.86, 2.36), pkg("p2", 48.87, 2.37)}
	urgent[0].Priority = model.PriorityExpress
	urgent[1].Fragility = 5
	hard, _ := NewBuilder(20).Build(urgent, warehouse)
	if hard[0].Difficulty <= plain[0].Difficulty {
		t.Fatalf("urgent fragile cluster difficulty %v not above plain %v", hard[0].Difficulty, plain[0].Difficulty)
	}
}

func TestOrderStopsNearestNeighbor(t *testing.T) {
	pkgs := []model.Package{
		pkg("far", 48.85, 2.65),
		pkg("near", 48.85, 2.45),
		pkg("mid", 48.85, 2.55),
	}
	stops := OrderStops(pkgs, warehouse)
	got := []string{stops[0].PackageID, stops[1].PackageID, stops[2].PackageID}
	want := []string{"near", "mid", "far"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("stop order = %v, want %v", got, want)
	}
}

func TestRouteDistanceIncludesReturnLeg(t *testing.T) {
	stops := []model.Stop{{PackageID: "p1", Location: model.Coordinate{Lat: warehouse.Lat + 1, Lng: warehouse.Lng}}}
	d := RouteDistanceKm(stops, warehouse)
	oneWay := warehouse.DistanceKm(stops[0].Location)
	if math.Abs(d-2*oneWay) > 1e-9 {
		t.Fatalf("distance = %v, want out-and-back %v", d, 2*oneWay)
	}
	if d := RouteDistanceKm(nil, warehouse); d != 0 {
		t.Fatalf("empty route distance = %v, want 0", d)
	}
}

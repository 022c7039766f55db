package allocator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fairfleet/engine/core/metrics"
	"github.com/fairfleet/engine/core/model"
)

type nopLog struct{}

func (nopLog) Debugf(string, ...any)         {}
func (nopLog) Debugw(string, map[string]any) {}
func (nopLog) Infof(string, ...any)          {}
func (nopLog) Warnf(string, ...any)          {}
func (nopLog) Errorf(string, ...any)         {}

// captureSink records every event the engine emits.
type captureSink struct {
	mu         sync.Mutex
	runs       []metrics.RunResult
	reopts     []metrics.ReoptimizationEvent
	recoveries []metrics.EVRecoveryEvent
}

func (s *captureSink) RecordRunResult(res metrics.RunResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, res)
	return nil
}

func (s *captureSink) RecordReoptimization(ev metrics.ReoptimizationEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reopts = append(s.reopts, ev)
	return nil
}

func (s *captureSink) RecordEVRecovery(ev metrics.EVRecoveryEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recoveries = append(s.recoveries, ev)
	return nil
}

func newTestEngine(t *testing.T, cfg Config, sink metrics.MetricsSink) *Engine {
	t.Helper()
	e, err := New(cfg, nopLog{}, sink)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func day() time.Time { return time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC) }

func TestAllocateSingleClusterTwoDrivers(t *testing.T) {
	// Two nearby packages fit one cluster: only one driver receives work
	// and the single-assignment distribution is trivially fair.
	sink := &captureSink{}
	e := newTestEngine(t, Config{}, sink)
	req := Request{
		Date:      day(),
		Warehouse: model.Coordinate{Lat: 48.85, Lng: 2.35},
		Packages: []model.Package{
			{ID: "p1", WeightKg: 2, Fragility: 1, Location: model.Coordinate{Lat: 48.86, Lng: 2.36}},
			{ID: "p2", WeightKg: 3, Fragility: 1, Location: model.Coordinate{Lat: 48.861, Lng: 2.362}},
		},
		Drivers: []model.Driver{
			{ID: "d1", CapacityKg: 100},
			{ID: "d2", CapacityKg: 100},
		},
	}

	run, err := e.Allocate(context.Background(), req)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if run.Status != model.RunSuccess {
		t.Fatalf("status = %s, want SUCCESS (notes: %v)", run.Status, run.Notes)
	}
	if run.Iterations != 1 {
		t.Fatalf("iterations = %d, want 1", run.Iterations)
	}
	if len(run.Clusters) != 1 || len(run.Assignments) != 1 {
		t.Fatalf("got %d clusters / %d assignments, want 1/1", len(run.Clusters), len(run.Assignments))
	}
	if !run.Frozen() {
		t.Fatal("finalized run not frozen")
	}
	a := run.Assignments[0]
	if a.ID == "" {
		t.Fatal("assignment has no id")
	}
	if len(a.Route.Stops) != 2 {
		t.Fatalf("route has %d stops, want 2", len(a.Route.Stops))
	}
	if run.Report == nil || run.Report.Gini != 0 {
		t.Fatalf("report = %+v, want gini 0", run.Report)
	}
	if len(sink.runs) != 1 || sink.runs[0].Status != model.RunSuccess {
		t.Fatalf("run result not recorded: %+v", sink.runs)
	}
}

func TestAllocateBalancedBlobs(t *testing.T) {
	// Five tight package blobs around the warehouse, five identical
	// drivers: the partition is near-symmetric and accepted first pass.
	warehouse := model.Coordinate{Lat: 48.85, Lng: 2.35}
	offsets := [][2]float64{{0.1, 0}, {-0.1, 0}, {0, 0.14}, {0, -0.14}, {0.07, 0.1}}
	var pkgs []model.Package
	for b, off := range offsets {
		for i := 0; i < 20; i++ {
			pkgs = append(pkgs, model.Package{
				ID:        fmt.Sprintf("b%dp%d", b, i),
				WeightKg:  1,
				Fragility: 1,
				Location: model.Coordinate{
					Lat: warehouse.Lat + off[0] + 0.001*float64(i%5),
					Lng: warehouse.Lng + off[1] + 0.001*float64(i/5),
				},
			})
		}
	}
	drivers := make([]model.Driver, 5)
	for i := range drivers {
		drivers[i] = model.Driver{ID: fmt.Sprintf("d%d", i), CapacityKg: 200}
	}

	e := newTestEngine(t, Config{}, nil)
	run, err := e.Allocate(context.Background(), Request{Date: day(), Warehouse: warehouse, Packages: pkgs, Drivers: drivers})
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if run.Status != model.RunSuccess {
		t.Fatalf("status = %s (gini %v, stddev %v)", run.Status, run.Report.Gini, run.Report.StdDev)
	}
	if len(run.Clusters) != 5 {
		t.Fatalf("got %d clusters, want 5", len(run.Clusters))
	}

	// Every package delivered exactly once, every cluster owned once.
	pkgSeen := make(map[string]int)
	clusterSeen := make(map[int]int)
	for _, a := range run.Assignments {
		for _, s := range a.Route.Stops {
			pkgSeen[s.PackageID]++
		}
		for _, ci := range a.ClusterIDs {
			clusterSeen[ci]++
		}
	}
	for _, p := range pkgs {
		if pkgSeen[p.ID] != 1 {
			t.Fatalf("package %s delivered %d times", p.ID, pkgSeen[p.ID])
		}
	}
	for _, c := range run.Clusters {
		if clusterSeen[c.ID] != 1 {
			t.Fatalf("cluster %d owned by %d drivers", c.ID, clusterSeen[c.ID])
		}
	}
}

func TestAllocateReturnsAcceptingIteration(t *testing.T) {
	// The first iteration splits three blobs across two clusters: its Gini
	// (0.083) is lower than the second iteration's (0.111), but its
	// workload std-dev (4.0) breaks the 3.5 threshold. The second
	// iteration gives each blob its own cluster and passes both
	// thresholds. A SUCCESS run must carry the accepting iteration, never
	// an earlier rejected one that happened to score a lower Gini.
	warehouse := model.Coordinate{Lat: 0, Lng: 0}
	var pkgs []model.Package
	add := func(prefix string, n, cols int, lat, lng float64) {
		for i := 0; i < n; i++ {
			pkgs = append(pkgs, model.Package{
				ID:        fmt.Sprintf("%s%d", prefix, i),
				WeightKg:  1,
				Fragility: 1,
				Location: model.Coordinate{
					Lat: lat + 0.001*float64(i%cols),
					Lng: lng + 0.001*float64(i/cols),
				},
			})
		}
	}
	add("a", 20, 5, 1.05, 0)
	add("b", 16, 4, -1, 0.05)
	add("c", 12, 4, -1, -0.05)
	drivers := []model.Driver{
		{ID: "d1", CapacityKg: 100},
		{ID: "d2", CapacityKg: 100},
		{ID: "d3", CapacityKg: 100},
	}

	cfg := Config{
		WorkloadWeightA:        1, // workload = package count, everything else zeroed
		TargetPackagesPerRoute: 25,
		GiniThreshold:          fptr(0.2),
		StdDevThreshold:        fptr(3.5),
	}
	e := newTestEngine(t, cfg, nil)
	run, err := e.Allocate(context.Background(), Request{Date: day(), Warehouse: warehouse, Packages: pkgs, Drivers: drivers})
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if run.Status != model.RunSuccess {
		t.Fatalf("status = %s, want SUCCESS (notes: %v)", run.Status, run.Notes)
	}
	if run.Iterations != 2 {
		t.Fatalf("iterations = %d, want 2", run.Iterations)
	}
	if len(run.Clusters) != 3 || len(run.Assignments) != 3 {
		t.Fatalf("got %d clusters / %d assignments, want the accepting iteration's 3/3",
			len(run.Clusters), len(run.Assignments))
	}
	if run.Report.Verdict != model.VerdictAccept {
		t.Fatalf("verdict = %v, want ACCEPT", run.Report.Verdict)
	}
	if run.Report.StdDev > 3.5 {
		t.Fatalf("std-dev %v above the 3.5 threshold on a SUCCESS run", run.Report.StdDev)
	}
	if run.Report.Gini > 0.2 {
		t.Fatalf("gini %v above the 0.2 threshold on a SUCCESS run", run.Report.Gini)
	}
}

func TestAllocateEVRangeViolation(t *testing.T) {
	// The centroid round trip passes the pre-filter, but the full stop
	// sequence exceeds the effective range and no station exists.
	warehouse := model.Coordinate{Lat: 0, Lng: 0}
	sink := &captureSink{}
	e := newTestEngine(t, Config{}, sink)
	req := Request{
		Date:      day(),
		Warehouse: warehouse,
		Packages: []model.Package{
			{ID: "p1", WeightKg: 1, Fragility: 1, Location: model.Coordinate{Lat: 0.1, Lng: 0}},
			{ID: "p2", WeightKg: 1, Fragility: 1, Location: model.Coordinate{Lat: 0.1, Lng: 0.1}},
			{ID: "p3", WeightKg: 1, Fragility: 1, Location: model.Coordinate{Lat: 0.1, Lng: 0.2}},
		},
		Drivers: []model.Driver{
			{ID: "ev1", CapacityKg: 50, Vehicle: model.VehicleElectric, RangeKm: 40},
		},
	}

	run, err := e.Allocate(context.Background(), req)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if run.Status != model.RunAcceptedWithWarning {
		t.Fatalf("status = %s, want ACCEPTED_WITH_WARNING", run.Status)
	}
	if len(run.Assignments) != 1 || !run.Assignments[0].RangeViolation {
		t.Fatalf("assignment not flagged: %+v", run.Assignments)
	}
	found := false
	for _, n := range run.Notes {
		if strings.Contains(n, "EV_RANGE_VIOLATION") {
			found = true
		}
	}
	if !found {
		t.Fatalf("no violation note in %v", run.Notes)
	}
	if len(sink.recoveries) != 1 || !sink.recoveries[0].Violation {
		t.Fatalf("recovery event not recorded: %+v", sink.recoveries)
	}
}

func TestAllocateInfeasible(t *testing.T) {
	sink := &captureSink{}
	e := newTestEngine(t, Config{}, sink)
	req := Request{
		Date:      day(),
		Warehouse: model.Coordinate{Lat: 48.85, Lng: 2.35},
		Packages: []model.Package{
			{ID: "p1", WeightKg: 50, Fragility: 1, Location: model.Coordinate{Lat: 48.86, Lng: 2.36}},
		},
		Drivers: []model.Driver{
			{ID: "d1", CapacityKg: 10}, // cannot carry the package at any cluster size
		},
	}

	run, err := e.Allocate(context.Background(), req)
	if !errors.Is(err, ErrInfeasible) {
		t.Fatalf("err = %v, want ErrInfeasible", err)
	}
	if run == nil || run.Status != model.RunFailed {
		t.Fatalf("run = %+v, want FAILED", run)
	}
	if !run.Frozen() {
		t.Fatal("failed run not frozen")
	}
	if len(sink.reopts) == 0 || !sink.reopts[0].Unsolvable {
		t.Fatalf("unsolvable iterations not recorded: %+v", sink.reopts)
	}
	if len(sink.runs) != 1 || sink.runs[0].Status != model.RunFailed {
		t.Fatalf("failed run result not recorded: %+v", sink.runs)
	}
}

func TestAllocateRejectsInvalidRequest(t *testing.T) {
	e := newTestEngine(t, Config{}, nil)
	run, err := e.Allocate(context.Background(), Request{Date: day()})
	if err == nil {
		t.Fatal("invalid request accepted")
	}
	if run != nil {
		t.Fatal("run created for an invalid request")
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err type %T, want *ValidationError", err)
	}
}

func TestAllocateCancelledContext(t *testing.T) {
	e := newTestEngine(t, Config{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	run, err := e.Allocate(ctx, validRequest())
	if !errors.Is(err, ErrInfeasible) {
		t.Fatalf("err = %v, want ErrInfeasible for a run with no completed iteration", err)
	}
	if run.Status != model.RunFailed {
		t.Fatalf("status = %s, want FAILED", run.Status)
	}
}

func TestConfigValidation(t *testing.T) {
	cfg := DefaultConfig()
	*cfg.GiniThreshold = 2
	if _, err := New(cfg, nopLog{}, nil); err == nil {
		t.Fatal("gini threshold 2 accepted")
	}
	cfg = DefaultConfig()
	cfg.WorkloadWeightA = -1
	if _, err := New(cfg, nopLog{}, nil); err == nil {
		t.Fatal("negative weight accepted")
	}
}

func TestConfigKeepsExplicitZeroThresholds(t *testing.T) {
	zero := 0.0
	cfg := Config{GiniThreshold: &zero, StdDevThreshold: &zero}
	cfg.SetDefaults()
	if g, s := cfg.Thresholds(); g != 0 || s != 0 {
		t.Fatalf("explicit zero thresholds replaced: gini %v, stddev %v", g, s)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("zero thresholds rejected: %v", err)
	}

	cfg = Config{}
	cfg.SetDefaults()
	if g, s := cfg.Thresholds(); g == 0 || s == 0 {
		t.Fatalf("unset thresholds not defaulted: gini %v, stddev %v", g, s)
	}
}

func TestSummaries(t *testing.T) {
	run := &model.AllocationRun{
		Clusters: []model.Cluster{
			{ID: 0, TotalWeightKg: 12, Difficulty: 2},
			{ID: 1, TotalWeightKg: 8, Difficulty: 1.5},
		},
		Assignments: []model.Assignment{
			{DriverID: "d1", ClusterIDs: []int{0, 1}, Workload: 90, FairnessScore: 0.95,
				Route: model.Route{Stops: []model.Stop{{PackageID: "p1"}, {PackageID: "p2"}, {PackageID: "p3"}}}},
		},
	}
	drivers := []model.Driver{{ID: "d1", Name: "Ana", CapacityKg: 100, Language: "es"}}

	out := Summaries(run, drivers)
	if len(out) != 1 {
		t.Fatalf("got %d summaries, want 1", len(out))
	}
	s := out[0]
	if s.DriverName != "Ana" || s.Language != "es" {
		t.Fatalf("driver record not joined: %+v", s)
	}
	if s.Stops != 3 || s.WeightKg != 20 || s.Difficulty != 3.5 {
		t.Fatalf("aggregates wrong: %+v", s)
	}
}

package allocator

import (
	"strings"
	"testing"
	"time"

	"github.com/fairfleet/engine/core/model"
)

func validRequest() Request {
	return Request{
		Date:      time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC),
		Warehouse: model.Coordinate{Lat: 48.85, Lng: 2.35},
		Packages: []model.Package{
			{ID: "p1", WeightKg: 2, Fragility: 1, Location: model.Coordinate{Lat: 48.86, Lng: 2.36}},
		},
		Drivers: []model.Driver{
			{ID: "d1", Name: "Ana", CapacityKg: 100},
		},
	}
}

func TestRequestValidateOK(t *testing.T) {
	if err := validRequest().Validate(); err != nil {
		t.Fatalf("valid request rejected: %v", err)
	}
}

func TestRequestValidateAggregatesViolations(t *testing.T) {
	req := validRequest()
	req.Warehouse.Lat = 200
	req.Drivers = nil
	req.Packages = append(req.Packages, model.Package{ID: "p2", WeightKg: -1, Fragility: 1, Location: model.Coordinate{}})

	err := req.Validate()
	if err == nil {
		t.Fatal("invalid request accepted")
	}
	msg := err.Error()
	for _, want := range []string{"warehouse", "driver", "p2"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q does not mention %q", msg, want)
		}
	}
}

func TestRequestValidateDuplicateIDs(t *testing.T) {
	req := validRequest()
	req.Packages = append(req.Packages, req.Packages[0])
	req.Drivers = append(req.Drivers, req.Drivers[0])

	err := req.Validate()
	if err == nil {
		t.Fatal("duplicate ids accepted")
	}
	msg := err.Error()
	if !strings.Contains(msg, "duplicate") {
		t.Fatalf("error %q does not mention duplicates", msg)
	}
}

func TestRequestValidateChargingStations(t *testing.T) {
	req := validRequest()
	req.ChargingStations = []model.ChargingStation{
		{ID: "s1", Location: model.Coordinate{Lat: 200}},
	}
	if err := req.Validate(); err == nil {
		t.Fatal("invalid charging station accepted")
	}
}

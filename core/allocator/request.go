package allocator

import (
	"time"

	"github.com/fairfleet/engine/core/model"
)

// Request is the structured inbound allocation request: one planning day,
// a warehouse, the packages to deliver and the available drivers.
// Charging stations are optional and only consulted by EV range recovery.
type Request struct {
	Date             time.Time               `json:"date"`
	Warehouse        model.Coordinate        `json:"warehouse"`
	Packages         []model.Package         `json:"packages"`
	Drivers          []model.Driver          `json:"drivers"`
	ChargingStations []model.ChargingStation `json:"charging_stations,omitempty"`
}

// Validate checks the whole request and returns a single aggregated error
// listing every violated field, or nil.
func (r Request) Validate() error {
	verr := &ValidationError{}
	if err := r.Warehouse.Validate(); err != nil {
		verr.add("warehouse: %v", err)
	}
	if len(r.Packages) == 0 {
		verr.add("packages: at least one package is required")
	}
	if len(r.Drivers) == 0 {
		verr.add("drivers: at least one driver is required")
	}
	seenPkg := make(map[string]bool, len(r.Packages))
	for _, p := range r.Packages {
		if err := p.Validate(); err != nil {
			verr.add("%v", err)
		} else if seenPkg[p.ID] {
			verr.add("package %s: duplicate id", p.ID)
		}
		seenPkg[p.ID] = true
	}
	seenDrv := make(map[string]bool, len(r.Drivers))
	for _, d := range r.Drivers {
		if err := d.Validate(); err != nil {
			verr.add("%v", err)
		} else if seenDrv[d.ID] {
			verr.add("driver %s: duplicate id", d.ID)
		}
		seenDrv[d.ID] = true
	}
	for _, s := range r.ChargingStations {
		if err := s.Location.Validate(); err != nil {
			verr.add("charging station %s: %v", s.ID, err)
		}
	}
	return verr.errOrNil()
}

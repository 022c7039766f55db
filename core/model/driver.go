package model

import (
	"encoding/json"
	"fmt"
)

// VehicleClass distinguishes combustion vehicles from electric ones.
type VehicleClass int

const (
	VehicleCombustion VehicleClass = iota
	VehicleElectric
)

// String implements fmt.Stringer.
func (v VehicleClass) String() string {
	if v == VehicleElectric {
		return "ELECTRIC"
	}
	return "COMBUSTION"
}

// ParseVehicleClass converts a wire string into a VehicleClass.
func ParseVehicleClass(s string) (VehicleClass, error) {
	switch s {
	case "COMBUSTION", "":
		return VehicleCombustion, nil
	case "ELECTRIC":
		return VehicleElectric, nil
	default:
		return VehicleCombustion, fmt.Errorf("unknown vehicle class %q", s)
	}
}

// MarshalJSON encodes the class as its wire string.
func (v VehicleClass) MarshalJSON() ([]byte, error) { return json.Marshal(v.String()) }

// UnmarshalJSON decodes the class from its wire string.
func (v *VehicleClass) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	c, err := ParseVehicleClass(s)
	if err != nil {
		return err
	}
	*v = c
	return nil
}

// Driver represents a delivery driver available for one planning day.
// Immutable within a run.
type Driver struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	CapacityKg float64      `json:"capacity_kg"`
	Vehicle    VehicleClass `json:"vehicle"`
	RangeKm    float64      `json:"range_km"` // meaningful only for ELECTRIC
	Language   string       `json:"language"` // opaque to the engine
}

// Validate checks that the driver record is sound. Electric drivers must
// declare a positive range.
func (d Driver) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("driver id is required")
	}
	if d.CapacityKg <= 0 {
		return fmt.Errorf("driver %s: capacity must be positive", d.ID)
	}
	if d.Vehicle == VehicleElectric && d.RangeKm <= 0 {
		return fmt.Errorf("driver %s: electric vehicle requires positive range", d.ID)
	}
	return nil
}

// Electric reports whether the driver operates an electric vehicle.
func (d Driver) Electric() bool { return d.Vehicle == VehicleElectric }

package model

import (
	"encoding/json"
	"fmt"
)

// Priority classifies how urgent a package delivery is.
type Priority int

const (
	PriorityNormal Priority = iota
	PriorityHigh
	PriorityExpress
)

// String implements fmt.Stringer.
func (p Priority) String() string {
	switch p {
	case PriorityNormal:
		return "NORMAL"
	case PriorityHigh:
		return "HIGH"
	case PriorityExpress:
		return "EXPRESS"
	default:
		return "UNKNOWN"
	}
}

// ParsePriority converts a wire string into a Priority.
func ParsePriority(s string) (Priority, error) {
	switch s {
	case "NORMAL", "":
		return PriorityNormal, nil
	case "HIGH":
		return PriorityHigh, nil
	case "EXPRESS":
		return PriorityExpress, nil
	default:
		return PriorityNormal, fmt.Errorf("unknown priority %q", s)
	}
}

// MarshalJSON encodes the priority as its wire string.
func (p Priority) MarshalJSON() ([]byte, error) { return json.Marshal(p.String()) }

// UnmarshalJSON decodes the priority from its wire string.
func (p *Priority) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParsePriority(s)
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Urgent reports whether the package counts toward cluster difficulty.
func (p Priority) Urgent() bool { return p == PriorityHigh || p == PriorityExpress }

// Package is a single delivery item submitted for an allocation run.
// Immutable once the run starts.
type Package struct {
	ID        string     `json:"id"`
	WeightKg  float64    `json:"weight_kg"`
	Fragility int        `json:"fragility"` // ordinal 1 (robust) to 5 (fragile)
	Location  Coordinate `json:"location"`
	Priority  Priority   `json:"priority"`
}

// Validate checks that the package record is sound.
func (p Package) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("package id is required")
	}
	if p.WeightKg <= 0 {
		return fmt.Errorf("package %s: weight must be positive", p.ID)
	}
	if p.Fragility < 1 || p.Fragility > 5 {
		return fmt.Errorf("package %s: fragility %d out of range [1,5]", p.ID, p.Fragility)
	}
	if err := p.Location.Validate(); err != nil {
		return fmt.Errorf("package %s: %w", p.ID, err)
	}
	return nil
}

package costmatrix

import "fmt"

// Weights parameterise the workload formula
// a*numPackages + b*totalWeightKg + c*difficulty + d*estimatedMinutes.
type Weights struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
	C float64 `json:"c"`
	D float64 `json:"d"`
}

// DefaultWeights returns the documented default effort weights.
func DefaultWeights() Weights {
	return Weights{A: 1.0, B: 0.5, C: 10.0, D: 0.2}
}

// Validate rejects negative weights. Validated once at startup.
func (w Weights) Validate() error {
	if w.A < 0 || w.B < 0 || w.C < 0 || w.D < 0 {
		return fmt.Errorf("workload weights must be non-negative, got a=%v b=%v c=%v d=%v", w.A, w.B, w.C, w.D)
	}
	return nil
}

// EVParams tune the electric-vehicle feasibility pre-filter and the
// charging overhead added to EV workload scores.
type EVParams struct {
	SafetyMarginPct       float64 `json:"safety_margin_pct"`
	ChargingTimeMinutes   float64 `json:"charging_time_minutes"`
	ChargingPenaltyWeight float64 `json:"charging_penalty_weight"`
}

// DefaultEVParams returns the documented EV defaults.
func DefaultEVParams() EVParams {
	return EVParams{SafetyMarginPct: 10, ChargingTimeMinutes: 30, ChargingPenaltyWeight: 0.3}
}

// EffectiveRangeKm applies the safety margin to a declared EV range.
func (p EVParams) EffectiveRangeKm(rangeKm float64) float64 {
	return rangeKm * (1 - p.SafetyMarginPct/100)
}

// ChargingOverhead estimates the extra effort of range management. Routes
// using at most 70% of the range carry no overhead; beyond that the
// overhead grows with the usage ratio.
func (p EVParams) ChargingOverhead(routeKm, rangeKm float64) float64 {
	if rangeKm <= 0 || routeKm <= 0 {
		return 0
	}
	usage := routeKm / rangeKm
	if usage <= 0.7 {
		return 0
	}
	return (usage - 0.7) * p.ChargingTimeMinutes * p.ChargingPenaltyWeight
}

package allocator

import (
	"fmt"

	"github.com/fairfleet/engine/core/cluster"
	"github.com/fairfleet/engine/core/costmatrix"
	"github.com/fairfleet/engine/core/fairness"
)

// Config is the engine's recognized configuration surface.
type Config struct {
	WorkloadWeightA        float64 `json:"workload_weight_a"`
	WorkloadWeightB        float64 `json:"workload_weight_b"`
	WorkloadWeightC        float64 `json:"workload_weight_c"`
	WorkloadWeightD        float64 `json:"workload_weight_d"`
	TargetPackagesPerRoute int     `json:"target_packages_per_route"`
	// GiniThreshold and StdDevThreshold are pointers because zero is a
	// valid, strictest setting: only an absent key falls back to the
	// defaults.
	GiniThreshold      *float64 `json:"gini_threshold"`
	StdDevThreshold    *float64 `json:"std_dev_threshold"`
	MaxReoptIterations int      `json:"max_reopt_iterations"`
	// ReoptShrinkStep is how many packages the target cluster size shrinks
	// by on each REOPTIMIZE verdict, floored at 1.
	ReoptShrinkStep         int     `json:"reopt_shrink_step"`
	EVSafetyMarginPct       float64 `json:"ev_safety_margin_pct"`
	EVChargingTimeMinutes   float64 `json:"ev_charging_time_minutes"`
	EVChargingPenaltyWeight float64 `json:"ev_charging_penalty_weight"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	w := costmatrix.DefaultWeights()
	ev := costmatrix.DefaultEVParams()
	return Config{
		WorkloadWeightA:         w.A,
		WorkloadWeightB:         w.B,
		WorkloadWeightC:         w.C,
		WorkloadWeightD:         w.D,
		TargetPackagesPerRoute:  cluster.DefaultTargetSize,
		GiniThreshold:           fptr(fairness.DefaultGiniThreshold),
		StdDevThreshold:         fptr(fairness.DefaultStdDevThreshold),
		MaxReoptIterations:      5,
		ReoptShrinkStep:         2,
		EVSafetyMarginPct:       ev.SafetyMarginPct,
		EVChargingTimeMinutes:   ev.ChargingTimeMinutes,
		EVChargingPenaltyWeight: ev.ChargingPenaltyWeight,
	}
}

// SetDefaults fills unset fields with the documented defaults.
func (c *Config) SetDefaults() {
	def := DefaultConfig()
	if c.WorkloadWeightA == 0 && c.WorkloadWeightB == 0 && c.WorkloadWeightC == 0 && c.WorkloadWeightD == 0 {
		c.WorkloadWeightA = def.WorkloadWeightA
		c.WorkloadWeightB = def.WorkloadWeightB
		c.WorkloadWeightC = def.WorkloadWeightC
		c.WorkloadWeightD = def.WorkloadWeightD
	}
	if c.TargetPackagesPerRoute == 0 {
		c.TargetPackagesPerRoute = def.TargetPackagesPerRoute
	}
	if c.GiniThreshold == nil {
		c.GiniThreshold = def.GiniThreshold
	}
	if c.StdDevThreshold == nil {
		c.StdDevThreshold = def.StdDevThreshold
	}
	if c.MaxReoptIterations == 0 {
		c.MaxReoptIterations = def.MaxReoptIterations
	}
	if c.ReoptShrinkStep == 0 {
		c.ReoptShrinkStep = def.ReoptShrinkStep
	}
	if c.EVSafetyMarginPct == 0 {
		c.EVSafetyMarginPct = def.EVSafetyMarginPct
	}
	if c.EVChargingTimeMinutes == 0 {
		c.EVChargingTimeMinutes = def.EVChargingTimeMinutes
	}
	if c.EVChargingPenaltyWeight == 0 {
		c.EVChargingPenaltyWeight = def.EVChargingPenaltyWeight
	}
}

// Validate checks the configuration once at startup.
func (c Config) Validate() error {
	if err := c.Weights().Validate(); err != nil {
		return err
	}
	if c.TargetPackagesPerRoute < 1 {
		return fmt.Errorf("target_packages_per_route must be at least 1, got %d", c.TargetPackagesPerRoute)
	}
	gini, stdDev := c.Thresholds()
	if gini < 0 || gini > 1 {
		return fmt.Errorf("gini_threshold must be within [0,1], got %v", gini)
	}
	if stdDev < 0 {
		return fmt.Errorf("std_dev_threshold must be non-negative, got %v", stdDev)
	}
	if c.MaxReoptIterations < 1 {
		return fmt.Errorf("max_reopt_iterations must be at least 1, got %d", c.MaxReoptIterations)
	}
	if c.ReoptShrinkStep < 1 {
		return fmt.Errorf("reopt_shrink_step must be at least 1, got %d", c.ReoptShrinkStep)
	}
	return nil
}

// Thresholds returns the fairness acceptance thresholds, falling back to
// the documented defaults when a threshold is unset.
func (c Config) Thresholds() (gini, stdDev float64) {
	gini, stdDev = fairness.DefaultGiniThreshold, fairness.DefaultStdDevThreshold
	if c.GiniThreshold != nil {
		gini = *c.GiniThreshold
	}
	if c.StdDevThreshold != nil {
		stdDev = *c.StdDevThreshold
	}
	return gini, stdDev
}

func fptr(v float64) *float64 { return &v }

// MatrixBuilder returns the cost matrix builder configured by c, shared
// with collaborators like the appeal resolver.
func MatrixBuilder(c Config) costmatrix.Builder {
	return costmatrix.NewBuilder(c.Weights(), c.EVParams())
}

// Weights returns the effort formula weights.
func (c Config) Weights() costmatrix.Weights {
	return costmatrix.Weights{A: c.WorkloadWeightA, B: c.WorkloadWeightB, C: c.WorkloadWeightC, D: c.WorkloadWeightD}
}

// EVParams returns the EV feasibility and overhead parameters.
func (c Config) EVParams() costmatrix.EVParams {
	return costmatrix.EVParams{
		SafetyMarginPct:       c.EVSafetyMarginPct,
		ChargingTimeMinutes:   c.EVChargingTimeMinutes,
		ChargingPenaltyWeight: c.EVChargingPenaltyWeight,
	}
}

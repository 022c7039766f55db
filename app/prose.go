package app

import (
	"fmt"

	"github.com/fairfleet/engine/core/allocator"
)

// ProseGenerator is a local stand-in for the external natural-language
// service. Allocation never depends on it: if generation fails the caller
// logs and moves on.
type ProseGenerator struct{}

// Generate renders a one-line driver-facing summary.
func (ProseGenerator) Generate(s allocator.AssignmentSummary) (string, error) {
	name := s.DriverName
	if name == "" {
		name = s.DriverID
	}
	line := fmt.Sprintf("%s: %d stops, %.1f kg, workload %.1f (fairness %.2f)",
		name, s.Stops, s.WeightKg, s.Workload, s.FairnessScore)
	if s.RangeViolation {
		line += " - WARNING: route exceeds vehicle range"
	}
	return line, nil
}

var _ allocator.SummaryGenerator = ProseGenerator{}

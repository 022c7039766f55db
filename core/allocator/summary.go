package allocator

import "github.com/fairfleet/engine/core/model"

// AssignmentSummary is the structured per-assignment view exposed to the
// external natural-language generator. The engine does not depend on that
// generator: summaries are plain data and generation failure never fails
// an allocation.
type AssignmentSummary struct {
	DriverID       string  `json:"driver_id"`
	DriverName     string  `json:"driver_name"`
	Language       string  `json:"language"`
	Stops          int     `json:"stops"`
	WeightKg       float64 `json:"weight_kg"`
	Difficulty     float64 `json:"difficulty"`
	Workload       float64 `json:"workload"`
	FairnessScore  float64 `json:"fairness_score"`
	RangeViolation bool    `json:"range_violation,omitempty"`
}

// SummaryGenerator turns a structured summary into driver-facing prose.
// Implemented outside the engine.
type SummaryGenerator interface {
	Generate(s AssignmentSummary) (string, error)
}

// Summaries builds one structured summary per finalized assignment.
func Summaries(run *model.AllocationRun, drivers []model.Driver) []AssignmentSummary {
	byID := make(map[string]model.Driver, len(drivers))
	for _, d := range drivers {
		byID[d.ID] = d
	}
	clusters := make(map[int]model.Cluster, len(run.Clusters))
	for _, c := range run.Clusters {
		clusters[c.ID] = c
	}

	out := make([]AssignmentSummary, 0, len(run.Assignments))
	for _, a := range run.Assignments {
		s := AssignmentSummary{
			DriverID:       a.DriverID,
			Stops:          len(a.Route.Stops),
			Workload:       a.Workload,
			FairnessScore:  a.FairnessScore,
			RangeViolation: a.RangeViolation,
		}
		if d, ok := byID[a.DriverID]; ok {
			s.DriverName = d.Name
			s.Language = d.Language
		}
		for _, ci := range a.ClusterIDs {
			if c, ok := clusters[ci]; ok {
				s.WeightKg += c.TotalWeightKg
				s.Difficulty += c.Difficulty
			}
		}
		out = append(out, s)
	}
	return out
}

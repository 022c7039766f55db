// Package export serializes finalized allocation runs for the
// surrounding storage layer. The engine itself never performs I/O; the
// CLI and service wiring call into this package.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"

	"github.com/fairfleet/engine/core/allocator"
	"github.com/fairfleet/engine/core/model"
)

// WriteRunJSON writes the immutable run record to w in JSON format.
func WriteRunJSON(w io.Writer, run *model.AllocationRun) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(run)
}

// WriteSummariesCSV writes per-assignment summaries to w in CSV format.
func WriteSummariesCSV(w io.Writer, summaries []allocator.AssignmentSummary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"driver_id", "driver_name", "stops", "weight_kg", "difficulty", "workload", "fairness_score", "range_violation"}); err != nil {
		return err
	}
	for _, s := range summaries {
		rec := []string{
			s.DriverID,
			s.DriverName,
			strconv.Itoa(s.Stops),
			strconv.FormatFloat(s.WeightKg, 'f', 2, 64),
			strconv.FormatFloat(s.Difficulty, 'f', 2, 64),
			strconv.FormatFloat(s.Workload, 'f', 2, 64),
			strconv.FormatFloat(s.FairnessScore, 'f', 4, 64),
			strconv.FormatBool(s.RangeViolation),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

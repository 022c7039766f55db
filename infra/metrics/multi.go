package metrics

import coremetrics "github.com/fairfleet/engine/core/metrics"

// MultiSink fans allocation events out to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordRunResult forwards the record to all sinks, returning the first
// error encountered.
func (m *MultiSink) RecordRunResult(res coremetrics.RunResult) error {
	for _, s := range m.Sinks {
		if err := s.RecordRunResult(res); err != nil {
			return err
		}
	}
	return nil
}

// RecordReoptimization forwards reoptimization events.
func (m *MultiSink) RecordReoptimization(ev coremetrics.ReoptimizationEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.ReoptimizationRecorder); ok {
			if err := rec.RecordReoptimization(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordEVRecovery forwards EV recovery events.
func (m *MultiSink) RecordEVRecovery(ev coremetrics.EVRecoveryEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.EVRecoveryRecorder); ok {
			if err := rec.RecordEVRecovery(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordAppeal forwards appeal events.
func (m *MultiSink) RecordAppeal(ev coremetrics.AppealEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.AppealRecorder); ok {
			if err := rec.RecordAppeal(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

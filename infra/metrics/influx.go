package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/fairfleet/engine/core/metrics"
	"github.com/fairfleet/engine/infra/logger"
)

// InfluxSink writes allocation events to an InfluxDB instance using the
// official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB
// endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordRunResult writes the run outcome as a line protocol event.
func (s *InfluxSink) RecordRunResult(res coremetrics.RunResult) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("allocation_run").
		AddTag("run_id", res.RunID).
		AddTag("status", string(res.Status)).
		AddTag("component", "allocator").
		AddField("gini_index", round4(res.Gini)).
		AddField("std_dev", round4(res.StdDev)).
		AddField("iterations", res.Iterations).
		AddField("drivers", res.Drivers).
		AddField("packages", res.Packages).
		AddField("clusters", res.Clusters).
		AddField("duration_ms", round4(res.Duration.Seconds()*1000)).
		SetTime(res.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordReoptimization persists one reoptimization iteration.
func (s *InfluxSink) RecordReoptimization(ev coremetrics.ReoptimizationEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("allocation_reoptimization").
		AddTag("run_id", ev.RunID).
		AddTag("unsolvable", strconv.FormatBool(ev.Unsolvable)).
		AddTag("component", "allocator").
		AddField("iteration", ev.Iteration).
		AddField("target_size", ev.TargetSize).
		AddField("gini_index", round4(ev.Gini)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordEVRecovery persists the EV range pass outcome for one route.
func (s *InfluxSink) RecordEVRecovery(ev coremetrics.EVRecoveryEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("ev_range_recovery").
		AddTag("run_id", ev.RunID).
		AddTag("driver_id", ev.DriverID).
		AddTag("violation", strconv.FormatBool(ev.Violation)).
		AddTag("component", "ev_recovery").
		AddField("stations_inserted", ev.StationsInserted).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordAppeal persists an appeal outcome.
func (s *InfluxSink) RecordAppeal(ev coremetrics.AppealEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("allocation_appeal").
		AddTag("run_id", ev.RunID).
		AddTag("driver_id", ev.DriverID).
		AddTag("resolved", strconv.FormatBool(ev.Resolved)).
		AddTag("component", "appeal_resolver").
		AddField("resolved_value", ev.Resolved).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

func round4(f float64) float64 {
	return math.Round(f*10000) / 10000
}

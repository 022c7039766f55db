package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fairfleet/engine/app"
	"github.com/fairfleet/engine/core/allocator"
	"github.com/fairfleet/engine/infra/logger"
	"github.com/fairfleet/engine/pkg/export"
)

var (
	requestPath   string
	runOutPath    string
	summariesPath string
)

var allocateCmd = &cobra.Command{
	Use:   "allocate",
	Short: "Run one allocation for a request file",
	RunE:  runAllocate,
}

func init() {
	allocateCmd.Flags().StringVarP(&requestPath, "request", "r", "", "allocation request JSON file")
	allocateCmd.Flags().StringVarP(&runOutPath, "out", "o", "", "write the finalized run JSON here (default stdout)")
	allocateCmd.Flags().StringVar(&summariesPath, "summaries", "", "write per-driver summaries CSV here")
	_ = allocateCmd.MarkFlagRequired("request")
	rootCmd.AddCommand(allocateCmd)
}

func runAllocate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()

	req, err := readRequest(requestPath)
	if err != nil {
		return err
	}

	logg := logger.New("allocate-command")
	run, err := svc.Allocate(ctx, req)
	if err != nil && run == nil {
		// Validation or cluster failure: nothing was allocated.
		return err
	}
	if err != nil && errors.Is(err, allocator.ErrInfeasible) {
		logg.Errorf("run %s failed: %v", run.ID, err)
	}

	out := os.Stdout
	if runOutPath != "" {
		f, ferr := os.Create(runOutPath)
		if ferr != nil {
			return fmt.Errorf("create %s: %w", runOutPath, ferr)
		}
		defer f.Close()
		out = f
	}
	if werr := export.WriteRunJSON(out, run); werr != nil {
		return fmt.Errorf("write run: %w", werr)
	}

	summaries := allocator.Summaries(run, req.Drivers)
	if summariesPath != "" {
		f, ferr := os.Create(summariesPath)
		if ferr != nil {
			return fmt.Errorf("create %s: %w", summariesPath, ferr)
		}
		defer f.Close()
		if werr := export.WriteSummariesCSV(f, summaries); werr != nil {
			return fmt.Errorf("write summaries: %w", werr)
		}
	}
	gen := app.ProseGenerator{}
	for _, s := range summaries {
		line, gerr := gen.Generate(s)
		if gerr != nil {
			// Prose generation is best-effort and never fails the run.
			logg.Warnf("summary for %s: %v", s.DriverID, gerr)
			continue
		}
		logg.Infof("%s", line)
	}
	return err
}

func readRequest(path string) (allocator.Request, error) {
	var req allocator.Request
	data, err := os.ReadFile(path)
	if err != nil {
		return req, fmt.Errorf("read request: %w", err)
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return req, fmt.Errorf("decode request: %w", err)
	}
	return req, nil
}

package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fairfleet/engine/app"
	"github.com/fairfleet/engine/core/appeal"
	"github.com/fairfleet/engine/core/model"
	"github.com/fairfleet/engine/infra/logger"
)

var (
	appealRunPath string
	appealDriver  string
	appealReason  string
)

var appealCmd = &cobra.Command{
	Use:   "appeal",
	Short: "Resolve a driver objection against a finalized run",
	RunE:  runAppeal,
}

func init() {
	appealCmd.Flags().StringVar(&appealRunPath, "run", "", "finalized run JSON file")
	appealCmd.Flags().StringVar(&requestPath, "request", "", "original request JSON file (for driver records)")
	appealCmd.Flags().StringVar(&appealDriver, "driver", "", "objecting driver id")
	appealCmd.Flags().StringVar(&appealReason, "reason", "", "objection reason")
	_ = appealCmd.MarkFlagRequired("run")
	_ = appealCmd.MarkFlagRequired("request")
	_ = appealCmd.MarkFlagRequired("driver")
	rootCmd.AddCommand(appealCmd)
}

func runAppeal(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	data, err := os.ReadFile(appealRunPath)
	if err != nil {
		return fmt.Errorf("read run: %w", err)
	}
	var run model.AllocationRun
	if err := json.Unmarshal(data, &run); err != nil {
		return fmt.Errorf("decode run: %w", err)
	}
	req, err := readRequest(requestPath)
	if err != nil {
		return err
	}

	logg := logger.New("appeal-command")
	proposal, err := svc.Appeal(&run, appeal.Objection{DriverID: appealDriver, Reason: appealReason}, req.Drivers)
	if errors.Is(err, appeal.ErrNoImprovement) {
		// Non-fatal outcome: the run stands as communicated.
		logg.Infof("no improving move found for driver %s", appealDriver)
		return nil
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(proposal)
}

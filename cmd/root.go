package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/fairfleet/engine/config"
	"github.com/fairfleet/engine/infra/logger"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "fairfleet",
	Short: "Fair delivery allocation engine",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

// loadConfig reads the configured file, falling back to the documented
// defaults when it does not exist.
func loadConfig() (*config.Config, error) {
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		logger.New("config").Warnf("config file %s not found, using defaults", cfgPath)
		return config.Default(), nil
	}
	return config.Load(cfgPath)
}

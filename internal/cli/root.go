package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marcelsud/zoom-relay/config"
)

var (
	Version = "dev"
)

var configDir string

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:     "relayctl",
	Version: Version,
	Short:   "Operate the Zoom to Apps Script relay",
	Long: `relayctl inspects and exercises a zoom-relay deployment.

It reads the same .env file and environment variables as the api and
worker binaries.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() error {
	return RootCmd.Execute()
}

func init() {
	RootCmd.PersistentFlags().StringVar(&configDir, "config-dir", ".", "Directory holding the .env file")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.GetConfig(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

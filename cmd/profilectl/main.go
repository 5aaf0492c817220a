// Command profilectl is the operator CLI for the profile service: render a
// profile offline, replay a saved webhook payload, or check configuration.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/studentdocs/profile-service/internal/config"
	"github.com/studentdocs/profile-service/pkg/logger"
)

var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile, logLevel string

	rootCmd := &cobra.Command{
		Use:           "profilectl",
		Short:         "Operate the student profile service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if envFile != "" {
				_ = os.Setenv("ENV_FILE", envFile)
			}
			if logLevel == "" {
				logLevel = os.Getenv("LOG_LEVEL")
			}
			logger.Init(logLevel)
		},
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load (default .env)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug|info|warn|error")

	rootCmd.AddCommand(renderCmd())
	rootCmd.AddCommand(replayCmd())
	rootCmd.AddCommand(checkConfigCmd())

	return rootCmd
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kris-hansen/analyst/utils/config"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "analyst",
	Short: "A persona-driven data analysis assistant",
	Long: `analyst walks a data analysis project through a team of AI personas:
a Manager who plans, an Analyst who profiles the data and writes code, an
Associate who proposes tasks and reviews results, and a Reviewer on call.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		config.Verbose = verbose
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// loadConfig reads the configuration with environment overrides and sets up logging
func loadConfig() (*config.EnvConfig, error) {
	envConfig, err := config.Load(config.GetEnvPath())
	if err != nil {
		return nil, fmt.Errorf("error loading configuration: %w", err)
	}
	if err := config.InitLogger(envConfig.Logging); err != nil {
		return nil, err
	}
	return envConfig, nil
}

// loadFileConfig reads only the configuration file, for commands that write it back
func loadFileConfig() (string, *config.EnvConfig, error) {
	configPath := config.GetEnvPath()
	envConfig, err := config.LoadEnvConfig(configPath)
	if err != nil {
		return "", nil, fmt.Errorf("error loading configuration: %w", err)
	}
	return configPath, envConfig, nil
}

func Execute() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

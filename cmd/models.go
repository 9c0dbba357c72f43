package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kris-hansen/analyst/utils/config"
	"github.com/kris-hansen/analyst/utils/discovery"
	"github.com/kris-hansen/analyst/utils/models"
)

var modelsCmd = &cobra.Command{
	Use:   "models [provider]",
	Short: "List the models each provider offers",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		envConfig, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		only := ""
		if len(args) == 1 {
			only = args[0]
		}
		return listModels(ctx, os.Stdout, envConfig, models.DefaultRegistry(), discovery.New(discovery.Endpoints{}), only)
	},
}

func listModels(ctx context.Context, w io.Writer, envConfig *config.EnvConfig, registry *models.ProviderRegistry, d *discovery.Discoverer, only string) error {
	fmt.Fprintf(w, "Default model: %s\n", envConfig.Workflow.DefaultModel)

	found := false
	for _, meta := range registry.GetAvailableProviders() {
		if only != "" && meta.Name != only {
			continue
		}
		found = true
		apiKey := envConfig.APIKey(meta.Name)
		fmt.Fprintf(w, "\n%s (%s):\n", meta.Name, meta.Description)
		if meta.NeedsAPIKey && apiKey == "" {
			fmt.Fprintln(w, "  not configured")
			continue
		}
		names, err := d.AvailableModels(ctx, meta.Name, apiKey)
		if err != nil {
			fmt.Fprintf(w, "  error: %v\n", err)
			continue
		}
		for _, name := range names {
			fmt.Fprintf(w, "  - %s\n", name)
		}
	}
	if !found {
		return fmt.Errorf("unknown provider '%s'", only)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}

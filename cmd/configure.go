package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/kris-hansen/analyst/utils/config"
	"github.com/kris-hansen/analyst/utils/models"
)

var (
	listFlag    bool
	defaultFlag string
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Configure providers and the default model",
	Long:  `Configure a model provider's API key and the model new sessions use by default`,
	Run: func(cmd *cobra.Command, args []string) {
		configPath, envConfig, err := loadFileConfig()
		if err != nil {
			fmt.Printf("%v\n", err)
			return
		}

		if listFlag {
			listConfiguration(os.Stdout, envConfig)
			return
		}

		if defaultFlag != "" {
			if err := setDefaultModel(envConfig, models.DefaultRegistry(), defaultFlag); err != nil {
				fmt.Printf("Error: %v\n", err)
				return
			}
		} else {
			reader := bufio.NewReader(os.Stdin)
			if err := configureProvider(reader, readSecret(reader), envConfig, models.DefaultRegistry()); err != nil {
				fmt.Printf("Error: %v\n", err)
				return
			}
		}

		if err := config.SaveEnvConfig(configPath, envConfig); err != nil {
			fmt.Printf("Error saving configuration: %v\n", err)
			return
		}
		fmt.Printf("Configuration saved successfully to %s!\n", configPath)
	},
}

// readSecret reads a line without echo when stdin is a terminal
func readSecret(reader *bufio.Reader) func() (string, error) {
	return func() (string, error) {
		fd := int(os.Stdin.Fd())
		if term.IsTerminal(fd) {
			b, err := term.ReadPassword(fd)
			fmt.Println()
			if err != nil {
				return "", fmt.Errorf("error reading API key: %w", err)
			}
			return strings.TrimSpace(string(b)), nil
		}
		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return "", fmt.Errorf("error reading API key: %w", err)
		}
		return strings.TrimSpace(line), nil
	}
}

// configureProvider prompts for a provider, its key and optionally a new default model
func configureProvider(reader *bufio.Reader, readKey func() (string, error), envConfig *config.EnvConfig, registry *models.ProviderRegistry) error {
	var names []string
	needsKey := make(map[string]bool)
	for _, meta := range registry.GetAvailableProviders() {
		names = append(names, meta.Name)
		needsKey[meta.Name] = meta.NeedsAPIKey
	}

	fmt.Printf("Enter provider (%s): ", strings.Join(names, "/"))
	provider, _ := reader.ReadString('\n')
	provider = strings.ToLower(strings.TrimSpace(provider))
	if _, ok := needsKey[provider]; !ok {
		return fmt.Errorf("unknown provider '%s'", provider)
	}

	existing, err := envConfig.GetProviderConfig(provider)
	if err != nil {
		existing = &config.Provider{}
	}
	updated := *existing

	if needsKey[provider] {
		if updated.APIKey != "" {
			fmt.Print("Enter API key (leave empty to keep the current key): ")
		} else {
			fmt.Print("Enter API key: ")
		}
		key, err := readKey()
		if err != nil {
			return err
		}
		if key != "" {
			updated.APIKey = key
		}
		if updated.APIKey == "" {
			return fmt.Errorf("provider %s requires an API key", provider)
		}
	} else {
		fmt.Print("Enter base URL (leave empty for the default): ")
		baseURL, _ := reader.ReadString('\n')
		if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
			updated.BaseURL = baseURL
		}
	}
	envConfig.AddProvider(provider, updated)

	fmt.Printf("Enter default model (current: %s, leave empty to keep): ", envConfig.Workflow.DefaultModel)
	model, _ := reader.ReadString('\n')
	if model = strings.TrimSpace(model); model != "" {
		return setDefaultModel(envConfig, registry, model)
	}
	return nil
}

// setDefaultModel records model as the default after checking a provider serves it
func setDefaultModel(envConfig *config.EnvConfig, registry *models.ProviderRegistry, model string) error {
	if registry.ProviderNameForModel(model) == "" {
		return fmt.Errorf("no provider serves model '%s'", model)
	}
	envConfig.Workflow.DefaultModel = model
	return nil
}

func listConfiguration(w io.Writer, envConfig *config.EnvConfig) {
	fmt.Fprintf(w, "Default model: %s\n", envConfig.Workflow.DefaultModel)

	names := envConfig.ProviderNames()
	if len(names) == 0 {
		fmt.Fprintln(w, "No providers configured.")
		return
	}

	fmt.Fprintln(w, "\nConfigured Providers:")
	for _, name := range names {
		p := envConfig.Providers[name]
		key := "no key"
		if p.APIKey != "" {
			key = "key " + maskKey(p.APIKey)
		}
		fmt.Fprintf(w, "  %s (%s)\n", name, key)
		if p.BaseURL != "" {
			fmt.Fprintf(w, "    base URL: %s\n", p.BaseURL)
		}
		for _, model := range p.Models {
			fmt.Fprintf(w, "    - %s (%s)\n", model.Name, model.Type)
		}
	}
}

func maskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}

func init() {
	configureCmd.Flags().BoolVar(&listFlag, "list", false, "List configured providers and the default model")
	configureCmd.Flags().StringVar(&defaultFlag, "default", "", "Set the default model without prompting")
	rootCmd.AddCommand(configureCmd)
}

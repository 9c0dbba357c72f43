package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kris-hansen/analyst/utils/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long:  `Start an HTTP server that runs analysis sessions over a JSON API.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		envConfig, err := loadConfig()
		if err != nil {
			return err
		}
		if servePort > 0 {
			envConfig.GetServerConfig().Port = servePort
		}
		return server.Run(envConfig)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "port to listen on (overrides configuration)")
	rootCmd.AddCommand(serveCmd)
}

package cmd

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stackaudit/stackaudit/analyzer"
	"github.com/stackaudit/stackaudit/oracle"
	"github.com/stackaudit/stackaudit/parser"
	"github.com/stackaudit/stackaudit/scan"
	"github.com/stackaudit/stackaudit/server"
	"github.com/stackaudit/stackaudit/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scan and differential HTTP API",
	Long: `The serve command runs the HTTP API. Scans are submitted as file
uploads, stored in memory, and can be compared through the differentials
endpoint. The server shuts down gracefully on SIGINT/SIGTERM.

Examples:
  stackaudit serve --addr :8080`,
	Run: func(cmd *cobra.Command, args []string) {
		_ = viper.BindPFlags(cmd.Flags())
		setupLogger()

		scanStore := store.NewMemoryStore()
		scanClient := scan.NewScanClient(
			parser.NewParserClient(log),
			oracle.NewRuleOracle(log),
			scanStore,
			viper.GetString("framework"),
			log,
		)

		api := server.NewWebAPI(log, server.Config{
			Addr:            viper.GetString("addr"),
			ShutdownTimeout: viper.GetDuration("shutdownTimeout"),
			Dependencies: server.Dependencies{
				Scanner:      scanClient,
				Differential: analyzer.NewDifferentialClient(log),
				Store:        scanStore,
			},
		})

		if err := api.Start(); err != nil {
			log.Fatalf("Server stopped: %v", err)
		}
	},
}

func init() {
	serveCmd.Flags().String("addr", ":8080", "Listen address")
	serveCmd.Flags().String("framework", "well-architected", "Compliance framework name")
	serveCmd.Flags().Duration("shutdownTimeout", 10*time.Second, "Graceful shutdown timeout")

	rootCmd.AddCommand(serveCmd)
}

package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var log = logrus.New()

var rootCmd = &cobra.Command{
	Use:   "stackaudit",
	Short: "Analyze infrastructure definitions against compliance frameworks",
	Long: `stackaudit parses CloudFormation, Terraform and CDK sources (or live
AWS accounts) into a normalized resource graph, analyzes the resources
against a compliance framework, and compares scan snapshots over time.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().String("verbosity", "info", "Log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().Bool("structuredLogs", false, "Emit JSON formatted logs")
	rootCmd.PersistentFlags().String("workingFolderPath", ".", "Folder for snapshots and reports")

	_ = viper.BindPFlag("verbosity", rootCmd.PersistentFlags().Lookup("verbosity"))
	_ = viper.BindPFlag("structuredLogs", rootCmd.PersistentFlags().Lookup("structuredLogs"))
	_ = viper.BindPFlag("workingFolderPath", rootCmd.PersistentFlags().Lookup("workingFolderPath"))
}

func initConfig() {
	configFile, _ := rootCmd.PersistentFlags().GetString("config")
	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			log.Fatalf("Error reading config file %s: %v", configFile, err)
		}
	}
	viper.AutomaticEnv()
}

func setupLogger() {
	logLevel, err := logrus.ParseLevel(viper.GetString("verbosity"))
	if err != nil {
		log.Fatalf("Invalid log level: %s", viper.GetString("verbosity"))
	}
	log.SetLevel(logLevel)
	log.SetFormatter(&logrus.TextFormatter{})
	if viper.GetBool("structuredLogs") {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
}

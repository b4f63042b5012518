package cmd

import (
	"context"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stackaudit/stackaudit/accountscan"
	"github.com/stackaudit/stackaudit/filepathparser"
	"github.com/stackaudit/stackaudit/oracle"
	"github.com/stackaudit/stackaudit/parser"
	"github.com/stackaudit/stackaudit/scan"
	"github.com/stackaudit/stackaudit/snapshot"
	"github.com/stackaudit/stackaudit/store"
	"github.com/stackaudit/stackaudit/types"
)

var accountScanCmd = &cobra.Command{
	Use:   "account-scan",
	Short: "Inventory a live AWS account and analyze it",
	Long: `The account-scan command inventories a live AWS account (S3, EC2, RDS)
into the same resource graph shape the file parser produces, analyzes it
against the compliance rules, and writes a scan snapshot.

Credentials are resolved through the default AWS credential chain.

Examples:
  stackaudit account-scan --accountId 123456789012 --regions us-east-1,eu-west-1`,
	Run: func(cmd *cobra.Command, args []string) {
		_ = viper.BindPFlags(cmd.Flags())
		setupLogger()
		ctx := context.Background()

		workingFolderPath, err := filepathparser.EnsureFolder(viper.GetString("workingFolderPath"))
		if err != nil {
			log.Fatalf("Error resolving working folder: %v", err)
		}

		cfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			log.Fatalf("Error loading AWS configuration: %v", err)
		}

		accountID := viper.GetString("accountId")
		framework := viper.GetString("framework")
		accountScanClient := accountscan.NewAccountScanClient(
			cfg,
			accountID,
			viper.GetStringSlice("regions"),
			viper.GetStringSlice("ignoreResourceIdPatterns"),
			log,
		)

		graph, err := accountScanClient.ScanAccount(ctx)
		if err != nil {
			log.Fatalf("Account scan failed: %v", err)
		}

		ruleOracle := oracle.NewRuleOracle(log)
		findings := []types.Finding{}
		for _, resource := range graph.Resources {
			resourceFindings, err := ruleOracle.Analyze(ctx, resource, framework)
			if err != nil {
				log.Warnf("Analysis skipped for resource %s: %v", resource.Name, err)
				continue
			}
			findings = append(findings, resourceFindings...)
		}

		scanClient := scan.NewScanClient(
			parser.NewParserClient(log),
			ruleOracle,
			store.NewMemoryStore(),
			framework,
			log,
		)
		result := scanClient.Summarize(accountID, graph, findings)

		snapshotClient := snapshot.NewSnapshotClient(workingFolderPath, log)
		if err := snapshotClient.ExportScan(result, viper.GetString("output")); err != nil {
			log.Fatalf("Error writing snapshot: %v", err)
		}
		log.Infof("Account scan snapshot %s written with %d resources", result.ScanID, result.TotalResources)
	},
}

func init() {
	accountScanCmd.Flags().String("accountId", "", "AWS account ID being scanned")
	accountScanCmd.Flags().StringSlice("regions", []string{"us-east-1"}, "Regions to inventory")
	accountScanCmd.Flags().StringSlice("ignoreResourceIdPatterns", []string{}, "Regex patterns for resources to skip")
	accountScanCmd.Flags().String("framework", "well-architected", "Compliance framework name")
	accountScanCmd.Flags().String("output", "account-scan.json", "Snapshot file name in the working folder")
	_ = accountScanCmd.MarkFlagRequired("accountId")

	rootCmd.AddCommand(accountScanCmd)
}

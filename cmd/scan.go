package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stackaudit/stackaudit/filepathparser"
	"github.com/stackaudit/stackaudit/oracle"
	"github.com/stackaudit/stackaudit/parser"
	"github.com/stackaudit/stackaudit/report"
	"github.com/stackaudit/stackaudit/scan"
	"github.com/stackaudit/stackaudit/snapshot"
	"github.com/stackaudit/stackaudit/store"
	"github.com/stackaudit/stackaudit/types"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Parse and analyze an infrastructure file or ZIP bundle",
	Long: `The scan command parses an infrastructure source file (CloudFormation,
Terraform, CDK, or a ZIP bundle of them), analyzes every resource against
the compliance rules, and writes a scan snapshot plus a findings report
into the working folder.

Examples:
  stackaudit scan --file ./template.yaml --accountId 123456789012
  stackaudit scan --file ./stacks.zip --accountId 123456789012 --format ZIP`,
	Run: func(cmd *cobra.Command, args []string) {
		_ = viper.BindPFlags(cmd.Flags())
		setupLogger()

		workingFolderPath, err := filepathparser.EnsureFolder(viper.GetString("workingFolderPath"))
		if err != nil {
			log.Fatalf("Error resolving working folder: %v", err)
		}

		filePath, err := filepathparser.ParsePath(viper.GetString("file"))
		if err != nil {
			log.Fatalf("Error resolving file path: %v", err)
		}
		content, err := os.ReadFile(filePath)
		if err != nil {
			log.Fatalf("Error reading %s: %v", filePath, err)
		}

		hint := types.Format(viper.GetString("format"))
		if hint == "" {
			hint = types.FormatAuto
		}
		accountID := viper.GetString("accountId")

		if uploadBucket := viper.GetString("uploadBucket"); uploadBucket != "" {
			ctx := context.Background()
			cfg, err := awsconfig.LoadDefaultConfig(ctx)
			if err != nil {
				log.Fatalf("Error loading AWS configuration: %v", err)
			}
			blobClient := store.NewS3BlobClient(cfg, uploadBucket, log)
			key := fmt.Sprintf("uploads/%s/%s", accountID, filepath.Base(filePath))
			if err := blobClient.Upload(ctx, key, content); err != nil {
				log.Fatalf("Error archiving upload: %v", err)
			}
		}

		scanClient := scan.NewScanClient(
			parser.NewParserClient(log),
			oracle.NewRuleOracle(log),
			store.NewMemoryStore(),
			viper.GetString("framework"),
			log,
		)

		result, err := scanClient.Scan(context.Background(), content, filepath.Base(filePath), accountID, hint)
		if err != nil {
			log.Fatalf("Scan failed: %v", err)
		}

		snapshotClient := snapshot.NewSnapshotClient(workingFolderPath, log)
		outputFileName := viper.GetString("output")
		if err := snapshotClient.ExportScan(result, outputFileName); err != nil {
			log.Fatalf("Error writing snapshot: %v", err)
		}
		log.Infof("Scan snapshot written to %s", filepath.Join(workingFolderPath, outputFileName))

		if findingsCsv := viper.GetString("findingsCsv"); findingsCsv != "" {
			csvClient := report.NewReportCsvClient(workingFolderPath, log)
			if err := csvClient.ExportFindings(result, findingsCsv); err != nil {
				log.Fatalf("Error writing findings report: %v", err)
			}
		}
	},
}

func init() {
	scanCmd.Flags().String("file", "", "Infrastructure file or ZIP bundle to scan")
	scanCmd.Flags().String("accountId", "local", "Account the scan belongs to")
	scanCmd.Flags().String("format", "", "Format hint: CLOUDFORMATION, TERRAFORM, CDK, ZIP (default autodetect)")
	scanCmd.Flags().String("framework", "well-architected", "Compliance framework name")
	scanCmd.Flags().String("output", "scan.json", "Snapshot file name in the working folder")
	scanCmd.Flags().String("findingsCsv", "", "Optional findings CSV file name")
	scanCmd.Flags().String("uploadBucket", "", "Optional S3 bucket for archiving the scanned file")
	_ = scanCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(scanCmd)
}

package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stackaudit/stackaudit/analyzer"
	"github.com/stackaudit/stackaudit/filepathparser"
	"github.com/stackaudit/stackaudit/report"
	"github.com/stackaudit/stackaudit/snapshot"
	"github.com/stackaudit/stackaudit/types"
)

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Compare two scan snapshots",
	Long: `The diff command loads two scan snapshots from the working folder,
computes what changed between them (resource deltas, compliance
regressions and fixes, risk direction), and writes the differential
result as JSON plus an optional CSV report.

Examples:
  stackaudit diff --baseline monday.json --comparison friday.json
  stackaudit diff --baseline a.json --comparison b.json --threshold high --csv changes.csv`,
	Run: func(cmd *cobra.Command, args []string) {
		_ = viper.BindPFlags(cmd.Flags())
		setupLogger()

		workingFolderPath, err := filepathparser.EnsureFolder(viper.GetString("workingFolderPath"))
		if err != nil {
			log.Fatalf("Error resolving working folder: %v", err)
		}

		snapshotClient := snapshot.NewSnapshotClient(workingFolderPath, log)
		baseline, err := snapshotClient.ImportScan(viper.GetString("baseline"))
		if err != nil {
			log.Fatalf("Error loading baseline snapshot: %v", err)
		}
		comparison, err := snapshotClient.ImportScan(viper.GetString("comparison"))
		if err != nil {
			log.Fatalf("Error loading comparison snapshot: %v", err)
		}

		analysisType := types.AnalysisType(viper.GetString("analysisType"))
		options := types.DifferentialOptions{
			IncludeDetails: viper.GetBool("includeDetails"),
			Threshold:      types.Threshold(viper.GetString("threshold")),
		}

		differentialClient := analyzer.NewDifferentialClient(log)
		result, err := differentialClient.Compare(baseline, comparison, analysisType, options)
		if err != nil {
			log.Fatalf("Differential analysis failed: %v", err)
		}

		log.Infof("Risk level %s: %d resource differences, %d compliance differences",
			result.SecurityImpact.RiskLevel,
			len(result.ResourceChanges.Differences),
			len(result.ComplianceChanges.Differences))
		for _, recommendation := range result.Recommendations {
			log.Infof("Recommendation: %s", recommendation)
		}

		if err := snapshotClient.ExportDifferential(result, viper.GetString("output")); err != nil {
			log.Fatalf("Error writing differential result: %v", err)
		}

		if csvFileName := viper.GetString("csv"); csvFileName != "" {
			csvClient := report.NewReportCsvClient(workingFolderPath, log)
			if err := csvClient.ExportDifferential(result, csvFileName); err != nil {
				log.Fatalf("Error writing differential report: %v", err)
			}
		}
	},
}

func init() {
	diffCmd.Flags().String("baseline", "", "Baseline snapshot file name")
	diffCmd.Flags().String("comparison", "", "Comparison snapshot file name")
	diffCmd.Flags().String("analysisType", string(types.AnalysisTypeFull), "Analysis type: full, security, compliance, resources")
	diffCmd.Flags().Bool("includeDetails", true, "Include per-difference details")
	diffCmd.Flags().String("threshold", string(types.ThresholdAll), "Difference filter: all, medium, high")
	diffCmd.Flags().String("output", "differential.json", "Differential result file name")
	diffCmd.Flags().String("csv", "", "Optional differential CSV file name")
	_ = diffCmd.MarkFlagRequired("baseline")
	_ = diffCmd.MarkFlagRequired("comparison")

	rootCmd.AddCommand(diffCmd)
}

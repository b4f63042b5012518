package report

import (
	csvwriter "encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/stackaudit/stackaudit/types"
)

type IReportCsvClient interface {
	ExportDifferential(result *types.DifferentialAnalysisResult, fileName string) error
	ExportFindings(scan *types.ScanResult, fileName string) error
}

// ReportCsvClient writes human-reviewable CSV reports into the working
// folder. Binary report formats (PDF, Excel) are rendered by the
// surrounding platform, not here.
type ReportCsvClient struct {
	WorkingFolderPath string
	Logger            *logrus.Logger
}

func NewReportCsvClient(workingFolderPath string, logger *logrus.Logger) *ReportCsvClient {
	return &ReportCsvClient{
		WorkingFolderPath: workingFolderPath,
		Logger:            logger,
	}
}

var differentialHeader = []string{"Section", "Key", "Change Type", "Impact", "Baseline", "Comparison", "Delta", "Old Status", "New Status"}
var findingsHeader = []string{"Rule ID", "Severity", "Pillar", "Resource", "Title", "Recommendation"}

func (csvClient *ReportCsvClient) ExportDifferential(result *types.DifferentialAnalysisResult, fileName string) error {
	rows := [][]string{}

	for _, difference := range result.ResourceChanges.Differences {
		rows = append(rows, []string{
			fmt.Sprintf("resource/%s", difference.Dimension),
			difference.Key,
			string(difference.ChangeType),
			string(difference.Impact),
			strconv.Itoa(difference.Baseline),
			strconv.Itoa(difference.Comparison),
			strconv.Itoa(difference.Delta),
			"",
			"",
		})
	}

	for _, difference := range result.ComplianceChanges.Differences {
		rows = append(rows, []string{
			"compliance",
			difference.RuleID,
			string(difference.ChangeType),
			string(difference.Severity),
			"",
			"",
			"",
			string(difference.OldStatus),
			string(difference.NewStatus),
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i][0] != rows[j][0] {
			return rows[i][0] < rows[j][0]
		}
		return rows[i][1] < rows[j][1]
	})

	return csvClient.write(fileName, differentialHeader, rows)
}

func (csvClient *ReportCsvClient) ExportFindings(scan *types.ScanResult, fileName string) error {
	rows := [][]string{}
	for _, finding := range scan.Findings {
		rows = append(rows, []string{
			finding.RuleID,
			string(finding.Severity),
			string(finding.Pillar),
			finding.Resource,
			finding.Title,
			finding.Recommendation,
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i][0] != rows[j][0] {
			return rows[i][0] < rows[j][0]
		}
		return rows[i][3] < rows[j][3]
	})

	return csvClient.write(fileName, findingsHeader, rows)
}

func (csvClient *ReportCsvClient) write(fileName string, header []string, rows [][]string) error {
	filePath := filepath.Join(csvClient.WorkingFolderPath, fileName)
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", filePath, err)
	}
	defer file.Close()

	writer := csvwriter.NewWriter(file)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("writing header to %s: %w", filePath, err)
	}
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("writing row to %s: %w", filePath, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flushing %s: %w", filePath, err)
	}

	csvClient.Logger.Infof("CSV report written to %s", filePath)
	return nil
}

package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/stackaudit/stackaudit/types"
)

type ISnapshotClient interface {
	ExportScan(scan *types.ScanResult, fileName string) error
	ImportScan(fileName string) (*types.ScanResult, error)
	ExportDifferential(result *types.DifferentialAnalysisResult, fileName string) error
	ImportDifferential(fileName string) (*types.DifferentialAnalysisResult, error)
}

// SnapshotClient reads and writes scan snapshots as JSON files in the
// working folder, the CLI's stand-in for the platform's scan store.
type SnapshotClient struct {
	WorkingFolderPath string
	Logger            *logrus.Logger
}

func NewSnapshotClient(workingFolderPath string, logger *logrus.Logger) *SnapshotClient {
	return &SnapshotClient{
		WorkingFolderPath: workingFolderPath,
		Logger:            logger,
	}
}

func (snapshotClient *SnapshotClient) ExportScan(scan *types.ScanResult, fileName string) error {
	return snapshotClient.write(scan, fileName)
}

func (snapshotClient *SnapshotClient) ImportScan(fileName string) (*types.ScanResult, error) {
	scan := &types.ScanResult{}
	if err := snapshotClient.read(fileName, scan); err != nil {
		return nil, err
	}
	return scan, nil
}

func (snapshotClient *SnapshotClient) ExportDifferential(result *types.DifferentialAnalysisResult, fileName string) error {
	return snapshotClient.write(result, fileName)
}

func (snapshotClient *SnapshotClient) ImportDifferential(fileName string) (*types.DifferentialAnalysisResult, error) {
	result := &types.DifferentialAnalysisResult{}
	if err := snapshotClient.read(fileName, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (snapshotClient *SnapshotClient) write(record any, fileName string) error {
	content, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", fileName, err)
	}

	filePath := filepath.Join(snapshotClient.WorkingFolderPath, fileName)
	if err := os.WriteFile(filePath, content, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", filePath, err)
	}
	snapshotClient.Logger.Debugf("Snapshot written to %s", filePath)
	return nil
}

func (snapshotClient *SnapshotClient) read(fileName string, record any) error {
	filePath := filepath.Join(snapshotClient.WorkingFolderPath, fileName)
	content, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", filePath, err)
	}
	if err := json.Unmarshal(content, record); err != nil {
		return fmt.Errorf("unmarshaling %s: %w", filePath, err)
	}
	return nil
}

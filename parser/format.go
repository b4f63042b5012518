package parser

import (
	"path/filepath"
	"strings"

	"github.com/stackaudit/stackaudit/types"
)

var cdkImportMarkers = []string{
	"aws-cdk-lib",
	"@aws-cdk/",
}

// DetectFormat resolves the source format of a file. Precedence is fixed:
// an explicit non-AUTO hint wins, then the file extension, then content
// sniffing, then CloudFormation as the default.
func DetectFormat(fileName string, content []byte, hint types.Format) types.Format {
	if hint != "" && hint != types.FormatAuto && hint.IsValidFormat() {
		return hint
	}

	text := string(content)

	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".tf", ".tfvars":
		return types.FormatTerraform
	case ".ts", ".js":
		if containsCDKImport(text) {
			return types.FormatCDK
		}
	case ".yaml", ".yml", ".json":
		if hasCloudFormationMarker(text) {
			return types.FormatCloudFormation
		}
	}

	if strings.Contains(text, `resource "aws_`) || strings.Contains(text, `provider "aws"`) {
		return types.FormatTerraform
	}
	if hasCloudFormationMarker(text) {
		return types.FormatCloudFormation
	}
	if containsCDKImport(text) {
		return types.FormatCDK
	}

	return types.FormatCloudFormation
}

func containsCDKImport(text string) bool {
	for _, marker := range cdkImportMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

func hasCloudFormationMarker(text string) bool {
	if strings.Contains(text, "AWSTemplateFormatVersion") {
		return true
	}
	// A Resources block whose entries carry Type: keys, in either YAML or
	// JSON spelling.
	if strings.Contains(text, "Resources") &&
		(strings.Contains(text, "Type:") || strings.Contains(text, `"Type"`)) {
		return true
	}
	return false
}

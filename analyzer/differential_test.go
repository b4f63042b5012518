package analyzer

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/stackaudit/stackaudit/types"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func scanFixture(scanID string, mutate func(*types.ScanResult)) *types.ScanResult {
	result := &types.ScanResult{
		ScanID:         scanID,
		AccountID:      "123456789012",
		ScanDate:       time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		TotalResources: 20,
		ResourcesByService: map[string]int{
			"s3":  10,
			"ec2": 10,
		},
		ResourcesByRegion: map[string]int{
			"us-east-1": 20,
		},
		ComplianceScore:  90,
		SecurityFindings: 2,
		CriticalFindings: 0,
		Findings: []types.Finding{
			{RuleID: "R1", Title: "Bucket unencrypted", Severity: types.SeverityMedium, Pillar: types.PillarSecurity},
		},
	}
	if mutate != nil {
		mutate(result)
	}
	return result
}

func TestCompare_SelfComparisonIsUnchanged(t *testing.T) {
	differentialClient := NewDifferentialClient(newTestLogger())
	baseline := scanFixture("scan-a", nil)
	comparison := scanFixture("scan-b", nil)

	result, err := differentialClient.Compare(baseline, comparison, types.AnalysisTypeFull, types.DifferentialOptions{IncludeDetails: true})

	assert.NoError(t, err)
	assert.Equal(t, 0, result.TotalChanges())
	assert.Equal(t, types.RiskUnchanged, result.SecurityImpact.RiskLevel)
	assert.Equal(t, 0, result.ResourceChanges.Added)
	assert.Equal(t, 0, result.ResourceChanges.Removed)
	assert.Equal(t, []string{"No significant changes detected between the two scans."}, result.Recommendations)
}

func TestCompare_NilScansRejected(t *testing.T) {
	differentialClient := NewDifferentialClient(newTestLogger())

	result, err := differentialClient.Compare(nil, scanFixture("scan-b", nil), types.AnalysisTypeFull, types.DifferentialOptions{})

	assert.Nil(t, result)
	var validationError *ValidationError
	assert.ErrorAs(t, err, &validationError)
}

func TestCompare_AccountMismatchRejected(t *testing.T) {
	differentialClient := NewDifferentialClient(newTestLogger())
	baseline := scanFixture("scan-a", nil)
	comparison := scanFixture("scan-b", func(result *types.ScanResult) {
		result.AccountID = "999999999999"
	})

	result, err := differentialClient.Compare(baseline, comparison, types.AnalysisTypeFull, types.DifferentialOptions{})

	assert.Nil(t, result)
	var validationError *ValidationError
	assert.ErrorAs(t, err, &validationError)
}

func TestCompare_InvalidAnalysisTypeRejected(t *testing.T) {
	differentialClient := NewDifferentialClient(newTestLogger())

	result, err := differentialClient.Compare(scanFixture("a", nil), scanFixture("b", nil), types.AnalysisType("bogus"), types.DifferentialOptions{})

	assert.Nil(t, result)
	var validationError *ValidationError
	assert.ErrorAs(t, err, &validationError)
}

func TestCompare_InvalidThresholdRejected(t *testing.T) {
	differentialClient := NewDifferentialClient(newTestLogger())

	result, err := differentialClient.Compare(scanFixture("a", nil), scanFixture("b", nil), types.AnalysisTypeFull, types.DifferentialOptions{Threshold: "extreme"})

	assert.Nil(t, result)
	var validationError *ValidationError
	assert.ErrorAs(t, err, &validationError)
}

func TestCompare_ServiceDeltasAndImpacts(t *testing.T) {
	differentialClient := NewDifferentialClient(newTestLogger())
	baseline := scanFixture("scan-a", nil)
	comparison := scanFixture("scan-b", func(result *types.ScanResult) {
		result.ResourcesByService = map[string]int{
			"s3":     25, // +15, HIGH
			"ec2":    17, // +7, MEDIUM
			"lambda": 2,  // +2, LOW
		}
	})

	result, err := differentialClient.Compare(baseline, comparison, types.AnalysisTypeFull, types.DifferentialOptions{IncludeDetails: true})

	assert.NoError(t, err)
	assert.Equal(t, 24, result.ResourceChanges.Added)
	assert.Equal(t, 0, result.ResourceChanges.Removed)
	assert.Equal(t, 0, result.ResourceChanges.Modified)

	byKey := map[string]types.ResourceDifference{}
	for _, difference := range result.ResourceChanges.Differences {
		if difference.Dimension == "service" {
			byKey[difference.Key] = difference
		}
	}
	assert.Equal(t, types.ImpactHigh, byKey["s3"].Impact)
	assert.Equal(t, types.ImpactMedium, byKey["ec2"].Impact)
	assert.Equal(t, types.ImpactLow, byKey["lambda"].Impact)
	assert.Equal(t, types.ChangeTypeAdded, byKey["s3"].ChangeType)
	assert.Equal(t, 15, byKey["s3"].Delta)
}

func TestCompare_RemovedServicesCounted(t *testing.T) {
	differentialClient := NewDifferentialClient(newTestLogger())
	baseline := scanFixture("scan-a", nil)
	comparison := scanFixture("scan-b", func(result *types.ScanResult) {
		result.ResourcesByService = map[string]int{"s3": 10}
	})

	result, err := differentialClient.Compare(baseline, comparison, types.AnalysisTypeFull, types.DifferentialOptions{IncludeDetails: true})

	assert.NoError(t, err)
	assert.Equal(t, 10, result.ResourceChanges.Removed)
	assert.Len(t, result.ResourceChanges.Differences, 1)
	assert.Equal(t, types.ChangeTypeRemoved, result.ResourceChanges.Differences[0].ChangeType)
}

func TestCompare_RegionNoiseSuppressed(t *testing.T) {
	differentialClient := NewDifferentialClient(newTestLogger())
	baseline := scanFixture("scan-a", nil)
	comparison := scanFixture("scan-b", func(result *types.ScanResult) {
		result.ResourcesByRegion = map[string]int{
			"us-east-1": 24, // +4, below the noise threshold
			"eu-west-1": 15, // +15, MEDIUM
		}
	})

	result, err := differentialClient.Compare(baseline, comparison, types.AnalysisTypeFull, types.DifferentialOptions{IncludeDetails: true})

	assert.NoError(t, err)
	regionDifferences := []types.ResourceDifference{}
	for _, difference := range result.ResourceChanges.Differences {
		if difference.Dimension == "region" {
			regionDifferences = append(regionDifferences, difference)
		}
	}
	assert.Len(t, regionDifferences, 1)
	assert.Equal(t, "eu-west-1", regionDifferences[0].Key)
	assert.Equal(t, types.ImpactMedium, regionDifferences[0].Impact)
}

func TestCompare_ThresholdFiltersDifferences(t *testing.T) {
	differentialClient := NewDifferentialClient(newTestLogger())
	baseline := scanFixture("scan-a", nil)
	comparison := scanFixture("scan-b", func(result *types.ScanResult) {
		result.ResourcesByService = map[string]int{
			"s3":     25, // HIGH
			"ec2":    17, // MEDIUM
			"lambda": 2,  // LOW
		}
	})
	options := types.DifferentialOptions{IncludeDetails: true, Threshold: types.ThresholdHigh}

	result, err := differentialClient.Compare(baseline, comparison, types.AnalysisTypeFull, options)

	assert.NoError(t, err)
	assert.Len(t, result.ResourceChanges.Differences, 1)
	assert.Equal(t, "s3", result.ResourceChanges.Differences[0].Key)
	// The aggregate counters are computed before filtering.
	assert.Equal(t, 24, result.ResourceChanges.Added)
}

func TestCompare_ComplianceClassification(t *testing.T) {
	differentialClient := NewDifferentialClient(newTestLogger())
	baseline := scanFixture("scan-a", func(result *types.ScanResult) {
		result.Findings = []types.Finding{
			{RuleID: "R1", Title: "Bucket unencrypted", Severity: types.SeverityMedium, Pillar: types.PillarSecurity},
			{RuleID: "R2", Title: "Old finding", Severity: types.SeverityLow, Pillar: types.PillarSecurity},
		}
	})
	comparison := scanFixture("scan-b", func(result *types.ScanResult) {
		result.Findings = []types.Finding{
			{RuleID: "R1", Title: "Bucket unencrypted", Severity: types.SeverityHigh, Pillar: types.PillarSecurity},
			{RuleID: "R3", Title: "New finding", Severity: types.SeverityCritical, Pillar: types.PillarSecurity},
		}
	})

	result, err := differentialClient.Compare(baseline, comparison, types.AnalysisTypeFull, types.DifferentialOptions{IncludeDetails: true})

	assert.NoError(t, err)
	assert.Equal(t, 1, result.ComplianceChanges.NewViolations)
	assert.Equal(t, 1, result.ComplianceChanges.ResolvedViolations)
	assert.Equal(t, 1, result.ComplianceChanges.StatusChanges)
	assert.Len(t, result.ComplianceChanges.Differences, 3)

	// Differences arrive sorted by rule ID.
	assert.Equal(t, "R1", result.ComplianceChanges.Differences[0].RuleID)
	assert.Equal(t, types.ComplianceChangeStatusChanged, result.ComplianceChanges.Differences[0].ChangeType)
	assert.Equal(t, types.SeverityMedium, result.ComplianceChanges.Differences[0].OldStatus)
	assert.Equal(t, types.SeverityHigh, result.ComplianceChanges.Differences[0].NewStatus)
	assert.Equal(t, types.ComplianceChangeResolved, result.ComplianceChanges.Differences[1].ChangeType)
	assert.Equal(t, types.ComplianceChangeNewViolation, result.ComplianceChanges.Differences[2].ChangeType)
}

func TestCompare_DuplicateRuleLastFindingWins(t *testing.T) {
	differentialClient := NewDifferentialClient(newTestLogger())
	baseline := scanFixture("scan-a", func(result *types.ScanResult) {
		result.Findings = []types.Finding{
			{RuleID: "R1", Severity: types.SeverityLow, Pillar: types.PillarSecurity},
			{RuleID: "R1", Severity: types.SeverityMedium, Pillar: types.PillarSecurity},
		}
	})
	comparison := scanFixture("scan-b", func(result *types.ScanResult) {
		result.Findings = []types.Finding{
			{RuleID: "R1", Severity: types.SeverityMedium, Pillar: types.PillarSecurity},
		}
	})

	result, err := differentialClient.Compare(baseline, comparison, types.AnalysisTypeFull, types.DifferentialOptions{IncludeDetails: true})

	assert.NoError(t, err)
	assert.Equal(t, 0, result.ComplianceChanges.StatusChanges)
	assert.Empty(t, result.ComplianceChanges.Differences)
}

func TestCompare_RiskPrecedence(t *testing.T) {
	cases := []struct {
		name             string
		criticalBaseline int
		criticalNew      int
		findingsBaseline []types.Finding
		findingsNew      []types.Finding
		expected         types.RiskLevel
	}{
		{
			name:        "critical increase wins over resolved violations",
			criticalNew: 2,
			findingsBaseline: []types.Finding{
				{RuleID: "R1", Severity: types.SeverityLow},
				{RuleID: "R2", Severity: types.SeverityLow},
			},
			findingsNew: []types.Finding{},
			expected:    types.RiskIncreased,
		},
		{
			name: "more new than resolved violations increases risk",
			findingsNew: []types.Finding{
				{RuleID: "R1", Severity: types.SeverityLow},
			},
			expected: types.RiskIncreased,
		},
		{
			name:             "critical decrease lowers risk",
			criticalBaseline: 3,
			expected:         types.RiskDecreased,
		},
		{
			name: "more resolved than new violations lowers risk",
			findingsBaseline: []types.Finding{
				{RuleID: "R1", Severity: types.SeverityLow},
			},
			expected: types.RiskDecreased,
		},
		{
			name:     "no movement is unchanged",
			expected: types.RiskUnchanged,
		},
	}

	for _, testCase := range cases {
		t.Run(testCase.name, func(t *testing.T) {
			differentialClient := NewDifferentialClient(newTestLogger())
			baseline := scanFixture("scan-a", func(result *types.ScanResult) {
				result.CriticalFindings = testCase.criticalBaseline
				result.Findings = testCase.findingsBaseline
			})
			comparison := scanFixture("scan-b", func(result *types.ScanResult) {
				result.CriticalFindings = testCase.criticalNew
				result.Findings = testCase.findingsNew
			})

			result, err := differentialClient.Compare(baseline, comparison, types.AnalysisTypeFull, types.DifferentialOptions{})

			assert.NoError(t, err)
			assert.Equal(t, testCase.expected, result.SecurityImpact.RiskLevel)
		})
	}
}

func TestCompare_AnalysisTypeGatesSections(t *testing.T) {
	differentialClient := NewDifferentialClient(newTestLogger())
	baseline := scanFixture("scan-a", nil)
	comparison := scanFixture("scan-b", func(result *types.ScanResult) {
		result.ResourcesByService = map[string]int{"s3": 30}
		result.CriticalFindings = 1
		result.Findings = []types.Finding{
			{RuleID: "R9", Severity: types.SeverityHigh, Pillar: types.PillarSecurity},
		}
	})
	options := types.DifferentialOptions{IncludeDetails: true}

	resources, err := differentialClient.Compare(baseline, comparison, types.AnalysisTypeResources, options)
	assert.NoError(t, err)
	assert.NotEmpty(t, resources.ResourceChanges.Differences)
	assert.Empty(t, resources.ComplianceChanges.Differences)
	assert.Equal(t, types.RiskLevel(""), resources.SecurityImpact.RiskLevel)

	compliance, err := differentialClient.Compare(baseline, comparison, types.AnalysisTypeCompliance, options)
	assert.NoError(t, err)
	assert.Empty(t, compliance.ResourceChanges.Differences)
	assert.NotEmpty(t, compliance.ComplianceChanges.Differences)

	security, err := differentialClient.Compare(baseline, comparison, types.AnalysisTypeSecurity, options)
	assert.NoError(t, err)
	assert.Empty(t, security.ResourceChanges.Differences)
	assert.NotEmpty(t, security.ComplianceChanges.Differences)
	assert.Equal(t, types.RiskIncreased, security.SecurityImpact.RiskLevel)
}

func TestCompare_IncludeDetailsFalseStripsDifferences(t *testing.T) {
	differentialClient := NewDifferentialClient(newTestLogger())
	baseline := scanFixture("scan-a", nil)
	comparison := scanFixture("scan-b", func(result *types.ScanResult) {
		result.ResourcesByService = map[string]int{"s3": 30}
		result.Findings = []types.Finding{
			{RuleID: "R9", Severity: types.SeverityHigh, Pillar: types.PillarSecurity},
		}
	})

	result, err := differentialClient.Compare(baseline, comparison, types.AnalysisTypeFull, types.DifferentialOptions{IncludeDetails: false})

	assert.NoError(t, err)
	assert.Empty(t, result.ResourceChanges.Differences)
	assert.Empty(t, result.ComplianceChanges.Differences)
	// The aggregate counters survive the stripping.
	assert.NotZero(t, result.ResourceChanges.Added+result.ResourceChanges.Removed)
	assert.Equal(t, 1, result.ComplianceChanges.NewViolations)
}

func TestCompare_ResultEnvelopeStamped(t *testing.T) {
	differentialClient := NewDifferentialClient(newTestLogger())
	baseline := scanFixture("scan-a", nil)
	comparison := scanFixture("scan-b", nil)

	before := time.Now().UTC()
	result, err := differentialClient.Compare(baseline, comparison, types.AnalysisTypeFull, types.DifferentialOptions{})
	after := time.Now().UTC()

	assert.NoError(t, err)
	assert.NotEmpty(t, result.ID)
	assert.Equal(t, "scan-a", result.BaselineScanID)
	assert.Equal(t, "scan-b", result.ComparisonScanID)
	assert.Equal(t, "123456789012", result.AccountID)
	assert.False(t, result.CreatedAt.Before(before))
	assert.False(t, result.CreatedAt.After(after))
	assert.Equal(t, result.CreatedAt.Add(types.DifferentialTTL), result.ExpiresAt)
}

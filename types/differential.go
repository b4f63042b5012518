package types

import "time"

// DifferentialTTL is the retention stamped on every differential record.
// Expiry itself is enforced by the storage layer.
const DifferentialTTL = 90 * 24 * time.Hour

type ChangeType string

const (
	ChangeTypeAdded   ChangeType = "ADDED"
	ChangeTypeRemoved ChangeType = "REMOVED"
)

type ComplianceChangeType string

const (
	ComplianceChangeNewViolation  ComplianceChangeType = "NEW_VIOLATION"
	ComplianceChangeResolved      ComplianceChangeType = "RESOLVED"
	ComplianceChangeStatusChanged ComplianceChangeType = "STATUS_CHANGED"
)

type ImpactLevel string

const (
	ImpactHigh   ImpactLevel = "HIGH"
	ImpactMedium ImpactLevel = "MEDIUM"
	ImpactLow    ImpactLevel = "LOW"
)

type RiskLevel string

const (
	RiskIncreased RiskLevel = "INCREASED"
	RiskDecreased RiskLevel = "DECREASED"
	RiskUnchanged RiskLevel = "UNCHANGED"
)

type Threshold string

const (
	ThresholdAll    Threshold = "all"
	ThresholdMedium Threshold = "medium"
	ThresholdHigh   Threshold = "high"
)

func (threshold Threshold) IsValidThreshold() bool {
	switch threshold {
	case ThresholdAll, ThresholdMedium, ThresholdHigh:
		return true
	default:
		return false
	}
}

type DifferentialOptions struct {
	IncludeDetails bool      `json:"includeDetails"`
	Threshold      Threshold `json:"threshold"`
}

// ResourceDifference is one aggregate-count delta between two scans. The
// comparison is count-level only: scan summaries do not retain per-resource
// identity across time.
type ResourceDifference struct {
	Dimension  string      `json:"dimension"`
	Key        string      `json:"key"`
	ChangeType ChangeType  `json:"changeType"`
	Baseline   int         `json:"baseline"`
	Comparison int         `json:"comparison"`
	Delta      int         `json:"delta"`
	Impact     ImpactLevel `json:"impact"`
}

type ResourceChanges struct {
	Added       int                  `json:"added"`
	Removed     int                  `json:"removed"`
	Modified    int                  `json:"modified"`
	Differences []ResourceDifference `json:"differences"`
}

type ComplianceDifference struct {
	RuleID     string               `json:"ruleId"`
	ChangeType ComplianceChangeType `json:"changeType"`
	Severity   Severity             `json:"severity"`
	OldStatus  Severity             `json:"oldStatus,omitempty"`
	NewStatus  Severity             `json:"newStatus,omitempty"`
	Title      string               `json:"title,omitempty"`
}

type ComplianceChanges struct {
	NewViolations      int                    `json:"newViolations"`
	ResolvedViolations int                    `json:"resolvedViolations"`
	StatusChanges      int                    `json:"statusChanges"`
	Differences        []ComplianceDifference `json:"differences"`
}

type SecurityImpact struct {
	ScoreChange     float64   `json:"scoreChange"`
	RiskLevel       RiskLevel `json:"riskLevel"`
	CriticalChanges int       `json:"criticalChanges"`
	FindingsChange  int       `json:"findingsChange"`
}

// DifferentialAnalysisResult describes what changed between two scans of the
// same account. Immutable once created; persisted with a 90 day TTL.
type DifferentialAnalysisResult struct {
	ID                string            `json:"id"`
	AnalysisType      AnalysisType      `json:"analysisType"`
	BaselineScanID    string            `json:"baselineScanId"`
	ComparisonScanID  string            `json:"comparisonScanId"`
	AccountID         string            `json:"accountId"`
	CreatedAt         time.Time         `json:"createdAt"`
	ExpiresAt         time.Time         `json:"expiresAt"`
	ResourceChanges   ResourceChanges   `json:"resourceChanges"`
	ComplianceChanges ComplianceChanges `json:"complianceChanges"`
	SecurityImpact    SecurityImpact    `json:"securityImpact"`
	Recommendations   []string          `json:"recommendations"`
}

func (result *DifferentialAnalysisResult) TotalChanges() int {
	return len(result.ResourceChanges.Differences) +
		len(result.ComplianceChanges.Differences)
}

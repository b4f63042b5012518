package types

import "time"

type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityInfo     Severity = "INFO"
)

func (severity Severity) IsValidSeverity() bool {
	switch severity {
	case SeverityCritical,
		SeverityHigh,
		SeverityMedium,
		SeverityLow,
		SeverityInfo:
		return true
	default:
		return false
	}
}

type Pillar string

const (
	PillarOperationalExcellence Pillar = "OPERATIONAL_EXCELLENCE"
	PillarSecurity              Pillar = "SECURITY"
	PillarReliability           Pillar = "RELIABILITY"
	PillarPerformanceEfficiency Pillar = "PERFORMANCE_EFFICIENCY"
	PillarCostOptimization      Pillar = "COST_OPTIMIZATION"
	PillarSustainability        Pillar = "SUSTAINABILITY"
)

// AllPillars is the fixed Well-Architected pillar set used for scoring.
var AllPillars = []Pillar{
	PillarOperationalExcellence,
	PillarSecurity,
	PillarReliability,
	PillarPerformanceEfficiency,
	PillarCostOptimization,
	PillarSustainability,
}

func (pillar Pillar) IsValidPillar() bool {
	for _, known := range AllPillars {
		if pillar == known {
			return true
		}
	}
	return false
}

// Finding is one compliance observation produced by the analysis oracle.
// The core aggregates findings but never mutates their fields.
type Finding struct {
	ID             string   `json:"id"`
	RuleID         string   `json:"ruleId"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Severity       Severity `json:"severity"`
	Pillar         Pillar   `json:"pillar"`
	Resource       string   `json:"resource"`
	Recommendation string   `json:"recommendation"`
}

// ScanResult is the persisted snapshot of one completed analysis run.
// Append-only: a new scan writes a new ScanResult.
type ScanResult struct {
	ScanID             string         `json:"scanId"`
	AccountID          string         `json:"accountId"`
	ScanDate           time.Time      `json:"scanDate"`
	TotalResources     int            `json:"totalResources"`
	ResourcesByService map[string]int `json:"resourcesByService"`
	ResourcesByRegion  map[string]int `json:"resourcesByRegion"`
	ComplianceScore    float64        `json:"complianceScore"`
	SecurityFindings   int            `json:"securityFindings"`
	CriticalFindings   int            `json:"criticalFindings"`
	Findings           []Finding      `json:"findings"`
}

type AnalysisType string

const (
	AnalysisTypeFull       AnalysisType = "full"
	AnalysisTypeSecurity   AnalysisType = "security"
	AnalysisTypeCompliance AnalysisType = "compliance"
	AnalysisTypeResources  AnalysisType = "resources"
)

func (analysisType AnalysisType) IsValidAnalysisType() bool {
	switch analysisType {
	case AnalysisTypeFull,
		AnalysisTypeSecurity,
		AnalysisTypeCompliance,
		AnalysisTypeResources:
		return true
	default:
		return false
	}
}

package analyzer

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/stackaudit/stackaudit/types"
)

type IDifferentialClient interface {
	Compare(baseline *types.ScanResult, comparison *types.ScanResult, analysisType types.AnalysisType, options types.DifferentialOptions) (*types.DifferentialAnalysisResult, error)
}

// DifferentialClient computes what changed between two scans of the same
// account. Pure computation over the two summaries; safe for concurrent
// use.
type DifferentialClient struct {
	Logger *logrus.Logger
}

func NewDifferentialClient(logger *logrus.Logger) *DifferentialClient {
	return &DifferentialClient{
		Logger: logger,
	}
}

const regionNoiseThreshold = 5

func (differentialClient *DifferentialClient) Compare(baseline *types.ScanResult, comparison *types.ScanResult, analysisType types.AnalysisType, options types.DifferentialOptions) (*types.DifferentialAnalysisResult, error) {
	if baseline == nil || comparison == nil {
		return nil, &ValidationError{Reason: "both baseline and comparison scans are required"}
	}
	if baseline.AccountID != comparison.AccountID {
		return nil, &ValidationError{Reason: fmt.Sprintf("account mismatch: baseline %s vs comparison %s", baseline.AccountID, comparison.AccountID)}
	}
	if !analysisType.IsValidAnalysisType() {
		return nil, &ValidationError{Reason: fmt.Sprintf("unknown analysis type %q", analysisType)}
	}
	if options.Threshold == "" {
		options.Threshold = types.ThresholdAll
	}
	if !options.Threshold.IsValidThreshold() {
		return nil, &ValidationError{Reason: fmt.Sprintf("unknown threshold %q", options.Threshold)}
	}

	differentialClient.Logger.Infof("Comparing scan %s against baseline %s for account %s",
		comparison.ScanID, baseline.ScanID, baseline.AccountID)

	resourceChanges := differentialClient.compareResources(baseline, comparison, options)
	complianceChanges := compareCompliance(baseline, comparison)
	securityImpact := scoreSecurityImpact(baseline, comparison, complianceChanges)

	now := time.Now().UTC()
	result := &types.DifferentialAnalysisResult{
		ID:               uuid.NewString(),
		AnalysisType:     analysisType,
		BaselineScanID:   baseline.ScanID,
		ComparisonScanID: comparison.ScanID,
		AccountID:        baseline.AccountID,
		CreatedAt:        now,
		ExpiresAt:        now.Add(types.DifferentialTTL),
		Recommendations:  buildRecommendations(resourceChanges, complianceChanges, securityImpact),
	}

	switch analysisType {
	case types.AnalysisTypeResources:
		result.ResourceChanges = resourceChanges
	case types.AnalysisTypeCompliance:
		result.ComplianceChanges = complianceChanges
	case types.AnalysisTypeSecurity:
		result.ComplianceChanges = complianceChanges
		result.SecurityImpact = securityImpact
	default:
		result.ResourceChanges = resourceChanges
		result.ComplianceChanges = complianceChanges
		result.SecurityImpact = securityImpact
	}

	if !options.IncludeDetails {
		result.ResourceChanges.Differences = []types.ResourceDifference{}
		result.ComplianceChanges.Differences = []types.ComplianceDifference{}
	}

	return result, nil
}

// compareResources diffs the aggregate count maps of the two scans. This is
// a magnitude-of-count heuristic: the summaries do not retain per-resource
// identity, so individual resources are never matched up. Modified stays
// zero for the same reason.
func (differentialClient *DifferentialClient) compareResources(baseline *types.ScanResult, comparison *types.ScanResult, options types.DifferentialOptions) types.ResourceChanges {
	changes := types.ResourceChanges{Differences: []types.ResourceDifference{}}

	for _, key := range unionKeys(baseline.ResourcesByService, comparison.ResourcesByService) {
		before := baseline.ResourcesByService[key]
		after := comparison.ResourcesByService[key]
		if before == after {
			continue
		}

		delta := after - before
		if delta > 0 {
			changes.Added += delta
		} else {
			changes.Removed += -delta
		}

		changes.Differences = append(changes.Differences, types.ResourceDifference{
			Dimension:  "service",
			Key:        key,
			ChangeType: changeTypeForDelta(delta),
			Baseline:   before,
			Comparison: after,
			Delta:      delta,
			Impact:     serviceImpact(delta),
		})
	}

	for _, key := range unionKeys(baseline.ResourcesByRegion, comparison.ResourcesByRegion) {
		before := baseline.ResourcesByRegion[key]
		after := comparison.ResourcesByRegion[key]
		delta := after - before
		if delta == 0 || abs(delta) < regionNoiseThreshold {
			continue
		}

		changes.Differences = append(changes.Differences, types.ResourceDifference{
			Dimension:  "region",
			Key:        key,
			ChangeType: changeTypeForDelta(delta),
			Baseline:   before,
			Comparison: after,
			Delta:      delta,
			Impact:     regionImpact(delta),
		})
	}

	changes.Differences = filterByThreshold(changes.Differences, options.Threshold)
	return changes
}

// compareCompliance indexes each scan's findings by rule and classifies
// every rule present in either index. When a rule repeats within one scan
// the last finding wins. Severity is the only field compared for a status
// change.
func compareCompliance(baseline *types.ScanResult, comparison *types.ScanResult) types.ComplianceChanges {
	changes := types.ComplianceChanges{Differences: []types.ComplianceDifference{}}

	baselineRules := indexByRule(baseline.Findings)
	comparisonRules := indexByRule(comparison.Findings)

	ruleIDs := map[string]bool{}
	for ruleID := range baselineRules {
		ruleIDs[ruleID] = true
	}
	for ruleID := range comparisonRules {
		ruleIDs[ruleID] = true
	}

	sorted := make([]string, 0, len(ruleIDs))
	for ruleID := range ruleIDs {
		sorted = append(sorted, ruleID)
	}
	sort.Strings(sorted)

	for _, ruleID := range sorted {
		before, inBaseline := baselineRules[ruleID]
		after, inComparison := comparisonRules[ruleID]

		switch {
		case !inBaseline:
			changes.NewViolations++
			changes.Differences = append(changes.Differences, types.ComplianceDifference{
				RuleID:     ruleID,
				ChangeType: types.ComplianceChangeNewViolation,
				Severity:   after.Severity,
				Title:      after.Title,
			})
		case !inComparison:
			changes.ResolvedViolations++
			changes.Differences = append(changes.Differences, types.ComplianceDifference{
				RuleID:     ruleID,
				ChangeType: types.ComplianceChangeResolved,
				Severity:   before.Severity,
				Title:      before.Title,
			})
		case before.Severity != after.Severity:
			changes.StatusChanges++
			changes.Differences = append(changes.Differences, types.ComplianceDifference{
				RuleID:     ruleID,
				ChangeType: types.ComplianceChangeStatusChanged,
				Severity:   after.Severity,
				OldStatus:  before.Severity,
				NewStatus:  after.Severity,
				Title:      after.Title,
			})
		}
	}

	return changes
}

// scoreSecurityImpact derives the aggregate risk direction. The decision
// order is fixed: the critical-count sign is checked before the
// violation-count comparison, and ties fall through to UNCHANGED.
func scoreSecurityImpact(baseline *types.ScanResult, comparison *types.ScanResult, compliance types.ComplianceChanges) types.SecurityImpact {
	impact := types.SecurityImpact{
		ScoreChange:     comparison.ComplianceScore - baseline.ComplianceScore,
		CriticalChanges: comparison.CriticalFindings - baseline.CriticalFindings,
		FindingsChange:  comparison.SecurityFindings - baseline.SecurityFindings,
	}

	switch {
	case impact.CriticalChanges > 0 || compliance.NewViolations > compliance.ResolvedViolations:
		impact.RiskLevel = types.RiskIncreased
	case impact.CriticalChanges < 0 || compliance.ResolvedViolations > compliance.NewViolations:
		impact.RiskLevel = types.RiskDecreased
	default:
		impact.RiskLevel = types.RiskUnchanged
	}

	return impact
}

func indexByRule(findings []types.Finding) map[string]types.Finding {
	index := map[string]types.Finding{}
	for _, finding := range findings {
		index[finding.RuleID] = finding
	}
	return index
}

func unionKeys(baseline map[string]int, comparison map[string]int) []string {
	keys := map[string]bool{}
	for key := range baseline {
		keys[key] = true
	}
	for key := range comparison {
		keys[key] = true
	}

	sorted := make([]string, 0, len(keys))
	for key := range keys {
		sorted = append(sorted, key)
	}
	sort.Strings(sorted)
	return sorted
}

func changeTypeForDelta(delta int) types.ChangeType {
	if delta > 0 {
		return types.ChangeTypeAdded
	}
	return types.ChangeTypeRemoved
}

func serviceImpact(delta int) types.ImpactLevel {
	switch {
	case abs(delta) > 10:
		return types.ImpactHigh
	case abs(delta) > 5:
		return types.ImpactMedium
	default:
		return types.ImpactLow
	}
}

// Regional thresholds are double the service thresholds: regional shifts
// are usually more consequential.
func regionImpact(delta int) types.ImpactLevel {
	switch {
	case abs(delta) > 20:
		return types.ImpactHigh
	case abs(delta) > 10:
		return types.ImpactMedium
	default:
		return types.ImpactLow
	}
}

func filterByThreshold(differences []types.ResourceDifference, threshold types.Threshold) []types.ResourceDifference {
	if threshold == types.ThresholdAll {
		return differences
	}

	filtered := []types.ResourceDifference{}
	for _, difference := range differences {
		switch threshold {
		case types.ThresholdHigh:
			if difference.Impact == types.ImpactHigh {
				filtered = append(filtered, difference)
			}
		case types.ThresholdMedium:
			if difference.Impact == types.ImpactHigh || difference.Impact == types.ImpactMedium {
				filtered = append(filtered, difference)
			}
		}
	}
	return filtered
}

func abs(value int) int {
	if value < 0 {
		return -value
	}
	return value
}

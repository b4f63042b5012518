package analyzer

import "github.com/stackaudit/stackaudit/types"

// severityPenalties are the per-finding penalty points subtracted from a
// pillar's 100-point baseline.
var severityPenalties = map[types.Severity]float64{
	types.SeverityCritical: 10,
	types.SeverityHigh:     7,
	types.SeverityMedium:   4,
	types.SeverityLow:      2,
	types.SeverityInfo:     0,
}

// PillarScores computes the per-pillar compliance scores: 100 minus the
// severity penalties of that pillar's findings, floored at 0.
func PillarScores(findings []types.Finding) map[types.Pillar]float64 {
	scores := map[types.Pillar]float64{}
	for _, pillar := range types.AllPillars {
		scores[pillar] = 100
	}

	for _, finding := range findings {
		if _, known := scores[finding.Pillar]; !known {
			continue
		}
		scores[finding.Pillar] -= severityPenalties[finding.Severity]
	}

	for pillar, score := range scores {
		if score < 0 {
			scores[pillar] = 0
		}
	}
	return scores
}

// ComplianceScore is the unweighted mean of the six pillar scores.
func ComplianceScore(findings []types.Finding) float64 {
	scores := PillarScores(findings)
	var total float64
	for _, score := range scores {
		total += score
	}
	return total / float64(len(types.AllPillars))
}

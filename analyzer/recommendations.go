package analyzer

import (
	"fmt"

	"github.com/stackaudit/stackaudit/types"
)

// buildRecommendations is a fixed rule table keyed off thresholds. The
// output is deterministic template text, not generated prose.
func buildRecommendations(resources types.ResourceChanges, compliance types.ComplianceChanges, impact types.SecurityImpact) []string {
	recommendations := []string{}

	if resources.Added > 10 {
		recommendations = append(recommendations,
			fmt.Sprintf("Significant resource growth detected (%d added). Review new resources for compliance with your tagging and security baselines.", resources.Added))
	}
	if resources.Removed > 5 {
		recommendations = append(recommendations,
			fmt.Sprintf("%d resources were removed since the baseline scan. Verify the removals were intentional and that no dependent workloads remain.", resources.Removed))
	}
	if compliance.NewViolations > 0 {
		recommendations = append(recommendations,
			fmt.Sprintf("%d new compliance violations were introduced. Prioritize remediation before the next scheduled scan.", compliance.NewViolations))
	}
	if compliance.ResolvedViolations > compliance.NewViolations {
		recommendations = append(recommendations,
			fmt.Sprintf("Compliance posture improved: %d violations resolved against %d new. Keep the current remediation cadence.", compliance.ResolvedViolations, compliance.NewViolations))
	}
	if impact.RiskLevel == types.RiskIncreased {
		recommendations = append(recommendations,
			"Overall security risk has increased since the baseline scan. Schedule a review of the highest-severity findings.")
	}
	if impact.CriticalChanges > 0 {
		recommendations = append(recommendations,
			fmt.Sprintf("%d additional critical findings were detected. Address critical findings immediately.", impact.CriticalChanges))
	}

	if len(recommendations) == 0 {
		recommendations = append(recommendations,
			"No significant changes detected between the two scans.")
	}
	return recommendations
}

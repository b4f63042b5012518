package oracle

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/stackaudit/stackaudit/types"
)

// RuleOracle is a deterministic stand-in for the hosted model: a small set
// of static checks producing the same Finding shape. It backs the CLI and
// tests so the scan pipeline works without the external service.
type RuleOracle struct {
	Logger *logrus.Logger
}

func NewRuleOracle(logger *logrus.Logger) *RuleOracle {
	return &RuleOracle{
		Logger: logger,
	}
}

func (ruleOracle *RuleOracle) Analyze(ctx context.Context, resource *types.Resource, framework string) ([]types.Finding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	findings := []types.Finding{}
	loweredType := strings.ToLower(resource.Type)

	if strings.Contains(loweredType, "s3") && !hasAnyProperty(resource, "BucketEncryption", "server_side_encryption_configuration") {
		findings = append(findings, newFinding("SA-S3-001", "S3 bucket without server-side encryption",
			"The bucket does not configure server-side encryption at rest.",
			types.SeverityHigh, types.PillarSecurity, resource.Name,
			"Enable default server-side encryption on the bucket."))
	}

	if strings.Contains(loweredType, "security_group") || strings.Contains(loweredType, "securitygroup") {
		if strings.Contains(fmt.Sprint(resource.Properties), "0.0.0.0/0") {
			findings = append(findings, newFinding("SA-NET-001", "Security group open to the world",
				"An ingress rule allows traffic from 0.0.0.0/0.",
				types.SeverityCritical, types.PillarSecurity, resource.Name,
				"Restrict the ingress CIDR to known networks."))
		}
	}

	if strings.Contains(loweredType, "db") || strings.Contains(loweredType, "rds") {
		if !hasAnyProperty(resource, "StorageEncrypted", "storage_encrypted") {
			findings = append(findings, newFinding("SA-RDS-001", "Database without storage encryption",
				"The database instance does not enable storage encryption.",
				types.SeverityHigh, types.PillarSecurity, resource.Name,
				"Enable storage encryption for the database instance."))
		}
	}

	if len(resource.Tags) == 0 {
		findings = append(findings, newFinding("SA-OPS-001", "Resource without tags",
			"The resource carries no tags, which prevents cost and ownership attribution.",
			types.SeverityLow, types.PillarOperationalExcellence, resource.Name,
			"Apply the standard tagging policy to the resource."))
	}

	ruleOracle.Logger.Debugf("Rule oracle produced %d findings for %s under %s", len(findings), resource.Name, framework)
	return findings, nil
}

func hasAnyProperty(resource *types.Resource, keys ...string) bool {
	for _, key := range keys {
		if _, ok := resource.Properties[key]; ok {
			return true
		}
	}
	return false
}

func newFinding(ruleID string, title string, description string, severity types.Severity, pillar types.Pillar, resourceName string, recommendation string) types.Finding {
	return types.Finding{
		ID:             uuid.NewString(),
		RuleID:         ruleID,
		Title:          title,
		Description:    description,
		Severity:       severity,
		Pillar:         pillar,
		Resource:       resourceName,
		Recommendation: recommendation,
	}
}

package scan

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/stackaudit/stackaudit/analyzer"
	"github.com/stackaudit/stackaudit/cache"
	"github.com/stackaudit/stackaudit/oracle"
	"github.com/stackaudit/stackaudit/parser"
	"github.com/stackaudit/stackaudit/store"
	"github.com/stackaudit/stackaudit/types"
)

type IScanClient interface {
	Scan(ctx context.Context, content []byte, fileName string, accountID string, hint types.Format) (*types.ScanResult, error)
	Summarize(accountID string, graph *types.ResourceGraph, findings []types.Finding) *types.ScanResult
}

// ScanClient runs the full pipeline for one uploaded file: parse, analyze
// each resource through the oracle, aggregate into a ScanResult, persist.
type ScanClient struct {
	Parser     parser.IParserClient
	Oracle     oracle.IAnalysisOracle
	Store      store.IScanStore
	Framework  string
	Parameters *cache.ParameterCache
	Logger     *logrus.Logger
}

func NewScanClient(parserClient parser.IParserClient, analysisOracle oracle.IAnalysisOracle, scanStore store.IScanStore, framework string, logger *logrus.Logger) *ScanClient {
	return &ScanClient{
		Parser:     parserClient,
		Oracle:     analysisOracle,
		Store:      scanStore,
		Framework:  framework,
		Parameters: cache.NewParameterCache(5 * time.Minute),
		Logger:     logger,
	}
}

func (scanClient *ScanClient) Scan(ctx context.Context, content []byte, fileName string, accountID string, hint types.Format) (*types.ScanResult, error) {
	graph, err := scanClient.Parser.Parse(content, fileName, hint)
	if err != nil {
		return nil, err
	}

	framework := scanClient.frameworkName()
	findings := []types.Finding{}
	for _, resource := range graph.Resources {
		resourceFindings, err := scanClient.Oracle.Analyze(ctx, resource, framework)
		if err != nil {
			// The oracle is rate limited and unreliable; a failed
			// resource is skipped, not a failed scan.
			scanClient.Logger.Warnf("Analysis skipped for resource %s: %v", resource.Name, err)
			continue
		}
		findings = append(findings, resourceFindings...)
	}

	result := scanClient.Summarize(accountID, graph, findings)
	if scanClient.Store != nil {
		if err := scanClient.Store.PutScan(ctx, result); err != nil {
			return nil, err
		}
	}

	scanClient.Logger.Infof("Scan %s for account %s: %d resources, %d findings, score %.1f",
		result.ScanID, accountID, result.TotalResources, len(findings), result.ComplianceScore)
	return result, nil
}

// Summarize folds a parsed graph and its findings into the persisted
// snapshot shape consumed by the differential analyzer.
func (scanClient *ScanClient) Summarize(accountID string, graph *types.ResourceGraph, findings []types.Finding) *types.ScanResult {
	byService := map[string]int{}
	byRegion := map[string]int{}
	for _, resource := range graph.Resources {
		byService[serviceOf(resource.Type)]++
		byRegion[regionOf(resource)]++
	}

	securityFindings := 0
	criticalFindings := 0
	for _, finding := range findings {
		if finding.Pillar == types.PillarSecurity {
			securityFindings++
		}
		if finding.Severity == types.SeverityCritical {
			criticalFindings++
		}
	}

	return &types.ScanResult{
		ScanID:             uuid.NewString(),
		AccountID:          accountID,
		ScanDate:           time.Now().UTC(),
		TotalResources:     len(graph.Resources),
		ResourcesByService: byService,
		ResourcesByRegion:  byRegion,
		ComplianceScore:    analyzer.ComplianceScore(findings),
		SecurityFindings:   securityFindings,
		CriticalFindings:   criticalFindings,
		Findings:           findings,
	}
}

// frameworkName resolves the active framework, caching the lookup. The
// cached value stands in for the platform's parameter-store call.
func (scanClient *ScanClient) frameworkName() string {
	if cached, ok := scanClient.Parameters.Get("framework"); ok {
		return cached.(string)
	}
	framework := scanClient.Framework
	if framework == "" {
		framework = "well-architected"
	}
	scanClient.Parameters.Put("framework", framework)
	return framework
}

// serviceOf extracts a service bucket from a resource type:
// AWS::S3::Bucket -> S3, aws_s3_bucket -> s3, CDK::Widget -> CDK.
func serviceOf(resourceType string) string {
	if parts := strings.Split(resourceType, "::"); len(parts) == 3 {
		return parts[1]
	}
	if strings.HasPrefix(resourceType, "CDK::") {
		return "CDK"
	}
	if strings.HasPrefix(resourceType, "aws_") {
		rest := strings.TrimPrefix(resourceType, "aws_")
		if underscore := strings.Index(rest, "_"); underscore > 0 {
			return rest[:underscore]
		}
		return rest
	}
	return resourceType
}

func regionOf(resource *types.Resource) string {
	for _, key := range []string{"region", "Region"} {
		if region, ok := resource.Properties[key].(string); ok && region != "" {
			return region
		}
	}
	return "global"
}

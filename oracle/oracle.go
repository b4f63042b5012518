package oracle

import (
	"context"

	"github.com/stackaudit/stackaudit/types"
)

// IAnalysisOracle is the boundary to the hosted analysis backend that turns
// a resource into compliance findings. The real backend is asynchronous,
// unreliable and rate limited; callers treat a failed Analyze call as a
// skipped resource, not a failed scan.
type IAnalysisOracle interface {
	Analyze(ctx context.Context, resource *types.Resource, framework string) ([]types.Finding, error)
}

package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/stackaudit/stackaudit/types"
)

var ErrNotFound = errors.New("record not found")

// IScanStore is the persistence contract for scan snapshots and
// differential records. ScanResults are append-only; differential records
// carry an expiry stamp that the store honors on read.
type IScanStore interface {
	PutScan(ctx context.Context, scan *types.ScanResult) error
	GetScan(ctx context.Context, scanID string) (*types.ScanResult, error)
	ListScans(ctx context.Context, accountID string) ([]*types.ScanResult, error)
	PutDifferential(ctx context.Context, result *types.DifferentialAnalysisResult) error
	GetDifferential(ctx context.Context, id string) (*types.DifferentialAnalysisResult, error)
}

// MemoryStore is the in-process store used by the CLI and tests. The
// production deployment substitutes the platform's storage service behind
// the same interface.
type MemoryStore struct {
	mutex         sync.RWMutex
	scans         map[string]*types.ScanResult
	differentials map[string]*types.DifferentialAnalysisResult
	now           func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		scans:         map[string]*types.ScanResult{},
		differentials: map[string]*types.DifferentialAnalysisResult{},
		now:           time.Now,
	}
}

func (memoryStore *MemoryStore) PutScan(ctx context.Context, scan *types.ScanResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	memoryStore.mutex.Lock()
	defer memoryStore.mutex.Unlock()
	memoryStore.scans[scan.ScanID] = scan
	return nil
}

func (memoryStore *MemoryStore) GetScan(ctx context.Context, scanID string) (*types.ScanResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	memoryStore.mutex.RLock()
	defer memoryStore.mutex.RUnlock()
	scan, ok := memoryStore.scans[scanID]
	if !ok {
		return nil, ErrNotFound
	}
	return scan, nil
}

func (memoryStore *MemoryStore) ListScans(ctx context.Context, accountID string) ([]*types.ScanResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	memoryStore.mutex.RLock()
	defer memoryStore.mutex.RUnlock()

	scans := []*types.ScanResult{}
	for _, scan := range memoryStore.scans {
		if scan.AccountID == accountID {
			scans = append(scans, scan)
		}
	}
	sort.Slice(scans, func(i, j int) bool {
		return scans[i].ScanDate.Before(scans[j].ScanDate)
	})
	return scans, nil
}

func (memoryStore *MemoryStore) PutDifferential(ctx context.Context, result *types.DifferentialAnalysisResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	memoryStore.mutex.Lock()
	defer memoryStore.mutex.Unlock()
	memoryStore.differentials[result.ID] = result
	return nil
}

func (memoryStore *MemoryStore) GetDifferential(ctx context.Context, id string) (*types.DifferentialAnalysisResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	memoryStore.mutex.RLock()
	result, ok := memoryStore.differentials[id]
	memoryStore.mutex.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	if memoryStore.now().After(result.ExpiresAt) {
		memoryStore.mutex.Lock()
		delete(memoryStore.differentials, id)
		memoryStore.mutex.Unlock()
		return nil, ErrNotFound
	}
	return result, nil
}

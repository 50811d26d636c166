package service

import (
	"context"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/unsubstantiated-Script/chonker-chopper/internal/app/repository"
)

// CodeFilter is an in-process bloom filter over issued short codes. A negative answer
// means the code was never stored by this process or the startup scan; a positive
// answer must be confirmed against the store. A nil filter answers "maybe" to everything.
type CodeFilter struct {
	mu sync.RWMutex
	bf *bloom.BloomFilter
}

// NewCodeFilter sizes the filter for capacity codes at the given false positive rate.
func NewCodeFilter(capacity uint, fpRate float64) *CodeFilter {
	if capacity == 0 {
		capacity = 1_000_000
	}
	if fpRate <= 0 || fpRate >= 1 {
		fpRate = 0.01
	}
	return &CodeFilter{bf: bloom.NewWithEstimates(capacity, fpRate)}
}

func (f *CodeFilter) Add(code string) {
	if f == nil {
		return
	}
	f.mu.Lock()
	f.bf.AddString(code)
	f.mu.Unlock()
}

func (f *CodeFilter) MayContain(code string) bool {
	if f == nil {
		return true
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.bf.TestString(code)
}

// Seed loads every stored code into the filter and returns how many were added.
func (f *CodeFilter) Seed(ctx context.Context, repo repository.URLRepository, batchSize int) (int, error) {
	if f == nil {
		return 0, nil
	}

	var n int
	err := repo.ScanCodes(ctx, batchSize, func(codes []string) error {
		f.mu.Lock()
		for _, c := range codes {
			f.bf.AddString(c)
		}
		f.mu.Unlock()
		n += len(codes)
		return ctx.Err()
	})
	return n, err
}

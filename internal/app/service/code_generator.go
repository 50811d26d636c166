package service

import (
	"context"
	"errors"
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/unsubstantiated-Script/chonker-chopper/internal/app/model"
	"github.com/unsubstantiated-Script/chonker-chopper/internal/app/repository"
	"go.uber.org/zap"
)

// ErrCodeSpaceExhausted is returned when every sampled code in the attempt budget was taken.
var ErrCodeSpaceExhausted = errors.New("short code space exhausted")

const defaultMaxCodeAttempts = 20

// CodeChecker answers whether a short code is already stored.
type CodeChecker interface {
	ExistsCode(ctx context.Context, code string) (bool, error)
}

// CodeGenerator samples uniformly random short codes and retries on collision.
type CodeGenerator struct {
	checker     CodeChecker
	filter      *CodeFilter
	maxAttempts int
	sample      func() (string, error)
	metrics     *Metrics
	logger      *zap.Logger
}

// NewCodeGenerator returns a generator checking codes against checker. filter may be nil.
func NewCodeGenerator(checker CodeChecker, filter *CodeFilter, maxAttempts int, metrics *Metrics, logger *zap.Logger) *CodeGenerator {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxCodeAttempts
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CodeGenerator{
		checker:     checker,
		filter:      filter,
		maxAttempts: maxAttempts,
		sample:      sampleCode,
		metrics:     metricsOrDefault(metrics),
		logger:      logger,
	}
}

func sampleCode() (string, error) {
	return gonanoid.Generate(model.CodeAlphabet, model.CodeLength)
}

// Generate returns a code that was free when checked. Nothing is reserved, so callers
// that persist the code should use Assign instead.
func (g *CodeGenerator) Generate(ctx context.Context) (string, error) {
	return g.issue(ctx, nil)
}

// Assign samples codes and hands each free one to insert until insert succeeds.
// An insert failing with repository.ErrDuplicateCode counts as a collision; any other
// insert error is returned as is.
func (g *CodeGenerator) Assign(ctx context.Context, insert func(code string) error) (string, error) {
	return g.issue(ctx, insert)
}

func (g *CodeGenerator) issue(ctx context.Context, insert func(code string) error) (string, error) {
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		code, err := g.sample()
		if err != nil {
			return "", fmt.Errorf("sample code: %w", err)
		}

		// Without an insert there is no unique index behind the answer, so the store is
		// always asked.
		if insert == nil || g.filter.MayContain(code) {
			taken, err := g.checker.ExistsCode(ctx, code)
			if err != nil {
				return "", fmt.Errorf("check code: %w", err)
			}
			if taken {
				g.collided(code, attempt)
				continue
			}
		}

		if insert != nil {
			if err := insert(code); err != nil {
				if errors.Is(err, repository.ErrDuplicateCode) {
					g.collided(code, attempt)
					continue
				}
				return "", err
			}
			g.filter.Add(code)
		}

		g.metrics.CodesIssued.Inc()
		return code, nil
	}

	g.logger.Error("short code attempts exhausted", zap.Int("attempts", g.maxAttempts))
	return "", fmt.Errorf("%w after %d attempts", ErrCodeSpaceExhausted, g.maxAttempts)
}

func (g *CodeGenerator) collided(code string, attempt int) {
	g.metrics.CodeCollisions.Inc()
	g.filter.Add(code)
	g.logger.Debug("short code collision", zap.String("code", code), zap.Int("attempt", attempt))
}

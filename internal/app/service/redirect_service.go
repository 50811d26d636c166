package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/unsubstantiated-Script/chonker-chopper/internal/app/model"
	"github.com/unsubstantiated-Script/chonker-chopper/internal/app/repository"
	"go.uber.org/zap"
)

// ClickSink records a click for a resolved URL.
type ClickSink interface {
	Record(ctx context.Context, urlID uint64, meta RequestMetadata) (*model.ClickEvent, error)
}

// RedirectService resolves short codes and records the visit.
type RedirectService struct {
	urls    repository.URLRepository
	clicks  ClickSink
	metrics *Metrics
	logger  *zap.Logger
}

func NewRedirectService(urls repository.URLRepository, clicks ClickSink, metrics *Metrics, logger *zap.Logger) *RedirectService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedirectService{urls: urls, clicks: clicks, metrics: metricsOrDefault(metrics), logger: logger}
}

// Resolve returns the original URL for code. The click is recorded before returning;
// a recording failure is logged and does not block the redirect.
func (s *RedirectService) Resolve(ctx context.Context, code string, meta RequestMetadata) (string, error) {
	if !model.IsValidCode(code) {
		return "", repository.ErrURLNotFound
	}

	u, err := s.urls.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrURLNotFound) {
			s.logger.Debug("short code not found", zap.String("code", code))
			return "", err
		}
		return "", fmt.Errorf("resolve %s: %w", code, err)
	}

	if _, err := s.clicks.Record(ctx, u.ID, meta); err != nil {
		s.metrics.ClickRecordFailures.Inc()
		s.logger.Warn("failed to record click",
			zap.String("code", code),
			zap.Uint64("url_id", u.ID),
			zap.Error(err))
	}

	return u.OriginalURL, nil
}

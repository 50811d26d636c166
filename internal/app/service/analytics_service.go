package service

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/unsubstantiated-Script/chonker-chopper/internal/app/model"
	"github.com/unsubstantiated-Script/chonker-chopper/internal/app/repository"
)

// URLAnalytics is one URL with its clicks, newest first.
type URLAnalytics struct {
	URL         model.ShortenedURL
	Clicks      []model.ClickEvent
	TotalClicks int
}

// BatchAnalytics aggregates the clicks of every URL in a batch.
type BatchAnalytics struct {
	BatchID     string
	CreatedAt   time.Time
	URLs        []URLAnalytics
	TotalURLs   int
	TotalClicks int
}

// AnalyticsService is read-only and recomputes every report from storage.
type AnalyticsService struct {
	urls repository.URLRepository
}

func NewAnalyticsService(urls repository.URLRepository) *AnalyticsService {
	return &AnalyticsService{urls: urls}
}

// Batches returns every batch, newest first, with per-URL and per-batch click totals.
func (s *AnalyticsService) Batches(ctx context.Context) ([]BatchAnalytics, error) {
	urls, err := s.urls.ListAllWithClicks(ctx)
	if err != nil {
		return nil, fmt.Errorf("batch analytics: %w", err)
	}

	return lo.Map(groupBatches(urls), func(b BatchSummary, _ int) BatchAnalytics {
		members := lo.Map(b.URLs, func(u model.ShortenedURL, _ int) URLAnalytics {
			return toURLAnalytics(u)
		})
		return BatchAnalytics{
			BatchID:   b.BatchID,
			CreatedAt: b.CreatedAt,
			URLs:      members,
			TotalURLs: len(members),
			TotalClicks: lo.SumBy(members, func(m URLAnalytics) int {
				return m.TotalClicks
			}),
		}
	}), nil
}

// URL returns the analytics for one short code.
func (s *AnalyticsService) URL(ctx context.Context, code string) (*URLAnalytics, error) {
	if !model.IsValidCode(code) {
		return nil, repository.ErrURLNotFound
	}

	u, err := s.urls.GetByCodeWithClicks(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("url analytics: %w", err)
	}

	a := toURLAnalytics(*u)
	return &a, nil
}

func toURLAnalytics(u model.ShortenedURL) URLAnalytics {
	clicks := u.ClickEvents
	if clicks == nil {
		clicks = []model.ClickEvent{}
	}
	u.ClickEvents = nil
	return URLAnalytics{URL: u, Clicks: clicks, TotalClicks: len(clicks)}
}

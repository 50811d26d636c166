package service

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/unsubstantiated-Script/chonker-chopper/internal/app/enrichment"
	"github.com/unsubstantiated-Script/chonker-chopper/internal/app/model"
	"github.com/unsubstantiated-Script/chonker-chopper/internal/app/repository"
	"go.uber.org/zap"
)

// RequestMetadata is the raw client information captured at redirect time.
type RequestMetadata struct {
	IP        string
	UserAgent string
	Referrer  string
}

// ClickRecorder persists one ClickEvent per redirect.
type ClickRecorder struct {
	repo    repository.ClickEventRepository
	locator enrichment.Locator
	events  *EventDispatcher
	now     func() time.Time
	metrics *Metrics
	logger  *zap.Logger
}

func NewClickRecorder(repo repository.ClickEventRepository, locator enrichment.Locator, events *EventDispatcher, metrics *Metrics, logger *zap.Logger) *ClickRecorder {
	if locator == nil {
		locator = enrichment.StubLocator{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClickRecorder{
		repo:    repo,
		locator: locator,
		events:  events,
		now:     time.Now,
		metrics: metricsOrDefault(metrics),
		logger:  logger,
	}
}

// Record stores a click for urlID. Metadata longer than its column is truncated and
// empty values are stored as NULL.
func (r *ClickRecorder) Record(ctx context.Context, urlID uint64, meta RequestMetadata) (*model.ClickEvent, error) {
	var browser string
	if meta.UserAgent != "" {
		browser = string(enrichment.ClassifyBrowser(meta.UserAgent))
	}

	event := &model.ClickEvent{
		URLID:              urlID,
		GeographicLocation: clamp(r.locator.Locate(meta.IP), model.MaxLocationLength),
		Browser:            clamp(browser, model.MaxBrowserLength),
		UserAgent:          clamp(meta.UserAgent, model.MaxUserAgentLength),
		IPAddress:          clamp(meta.IP, model.MaxIPLength),
		Referrer:           clamp(meta.Referrer, model.MaxReferrerLength),
		ClickedAt:          r.now(),
	}

	if err := r.repo.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("record click: %w", err)
	}
	r.metrics.ClicksRecorded.Inc()

	eventID := uuid.NewString()
	r.events.Dispatch(ctx, model.SubjectClickRecorded, eventID, model.ClickRecorded{
		EventID:   eventID,
		ClickID:   event.ID,
		URLID:     urlID,
		Browser:   browser,
		Location:  deref(event.GeographicLocation),
		ClickedAt: event.ClickedAt,
	})

	return event, nil
}

// clamp truncates s to at most limit runes. The empty string maps to nil.
func clamp(s string, limit int) *string {
	if s == "" {
		return nil
	}
	if utf8.RuneCountInString(s) > limit {
		s = string([]rune(s)[:limit])
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

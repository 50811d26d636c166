package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/unsubstantiated-Script/chonker-chopper/internal/app/model"
	"github.com/unsubstantiated-Script/chonker-chopper/internal/app/repository"
	"github.com/unsubstantiated-Script/chonker-chopper/internal/testutil"
	"gorm.io/gorm"
)

type mockURLRepository struct {
	repository.URLRepository

	createFn    func(ctx context.Context, u *model.ShortenedURL) error
	getFn       func(ctx context.Context, code string) (*model.ShortenedURL, error)
	existsFn    func(ctx context.Context, code string) (bool, error)
	listAllFn   func(ctx context.Context) ([]model.ShortenedURL, error)
	withClickFn func(ctx context.Context) ([]model.ShortenedURL, error)
}

func (m *mockURLRepository) Create(ctx context.Context, u *model.ShortenedURL) error {
	if m.createFn != nil {
		return m.createFn(ctx, u)
	}
	return nil
}

func (m *mockURLRepository) GetByCode(ctx context.Context, code string) (*model.ShortenedURL, error) {
	if m.getFn != nil {
		return m.getFn(ctx, code)
	}
	return nil, repository.ErrURLNotFound
}

func (m *mockURLRepository) ExistsCode(ctx context.Context, code string) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, code)
	}
	return false, nil
}

func (m *mockURLRepository) ListAll(ctx context.Context) ([]model.ShortenedURL, error) {
	if m.listAllFn != nil {
		return m.listAllFn(ctx)
	}
	return nil, nil
}

func (m *mockURLRepository) ListAllWithClicks(ctx context.Context) ([]model.ShortenedURL, error) {
	if m.withClickFn != nil {
		return m.withClickFn(ctx)
	}
	return nil, nil
}

type mockClickSink struct {
	recordFn func(ctx context.Context, urlID uint64, meta RequestMetadata) (*model.ClickEvent, error)
	calls    int
}

func (m *mockClickSink) Record(ctx context.Context, urlID uint64, meta RequestMetadata) (*model.ClickEvent, error) {
	m.calls++
	if m.recordFn != nil {
		return m.recordFn(ctx, urlID, meta)
	}
	return &model.ClickEvent{URLID: urlID}, nil
}

type publishedEvent struct {
	subject string
	msgID   string
	payload any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, subject, msgID string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, publishedEvent{subject: subject, msgID: msgID, payload: payload})
	return nil
}

func (p *fakePublisher) bySubject(subject string) []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []publishedEvent
	for _, e := range p.events {
		if e.subject == subject {
			out = append(out, e)
		}
	}
	return out
}

// tickingClock returns start, start+step, start+2*step, ... on successive calls.
func tickingClock(start time.Time, step time.Duration) func() time.Time {
	var mu sync.Mutex
	next := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := next
		next = next.Add(step)
		return t
	}
}

// sequenceSampler hands out codes in order and then repeats the last one.
func sequenceSampler(codes ...string) func() (string, error) {
	var mu sync.Mutex
	i := 0
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		c := codes[i]
		if i < len(codes)-1 {
			i++
		}
		return c, nil
	}
}

var epoch = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

type stack struct {
	db        *gorm.DB
	urls      repository.URLRepository
	clicks    repository.ClickEventRepository
	metrics   *Metrics
	publisher *fakePublisher
	events    *EventDispatcher
	codes     *CodeGenerator
	svc       *urlService
	recorder  *ClickRecorder
	redirect  *RedirectService
	analytics *AnalyticsService
}

func newStack(t *testing.T, limits IngestLimits) *stack {
	t.Helper()

	db := testutil.NewDB(t)
	s := &stack{
		db:        db,
		urls:      repository.NewURLRepository(db),
		clicks:    repository.NewClickEventRepository(db),
		metrics:   NewMetrics(nil),
		publisher: &fakePublisher{},
	}
	s.events = NewEventDispatcher(s.publisher, s.metrics, nil)
	s.codes = NewCodeGenerator(s.urls, NewCodeFilter(1000, 0.01), 20, s.metrics, nil)

	s.svc = NewURLService(s.urls, s.codes, s.events, limits, s.metrics, nil).(*urlService)
	s.svc.now = tickingClock(epoch, time.Millisecond)

	s.recorder = NewClickRecorder(s.clicks, nil, s.events, s.metrics, nil)
	s.recorder.now = tickingClock(epoch.Add(time.Hour), time.Millisecond)

	s.redirect = NewRedirectService(s.urls, s.recorder, s.metrics, nil)
	s.analytics = NewAnalyticsService(s.urls)
	return s
}

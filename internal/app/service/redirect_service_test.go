package service

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unsubstantiated-Script/chonker-chopper/internal/app/model"
	"github.com/unsubstantiated-Script/chonker-chopper/internal/app/repository"
)

func TestRedirectService_Resolve(t *testing.T) {
	ctx := context.Background()
	s := newStack(t, IngestLimits{})

	u, err := s.svc.Shorten(ctx, "b", "https://example.com/landing")
	require.NoError(t, err)

	target, err := s.redirect.Resolve(ctx, u.ShortCode, RequestMetadata{IP: "192.0.2.1", UserAgent: chromeUA})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/landing", target)

	count, err := s.clicks.CountByURL(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestRedirectService_NotFoundCreatesNoClick(t *testing.T) {
	ctx := context.Background()
	s := newStack(t, IngestLimits{})

	u, err := s.svc.Shorten(ctx, "b", "https://example.com")
	require.NoError(t, err)

	_, err = s.redirect.Resolve(ctx, "Nope00", RequestMetadata{IP: "192.0.2.1"})
	assert.ErrorIs(t, err, repository.ErrURLNotFound)

	var total int64
	require.NoError(t, s.db.Model(&model.ClickEvent{}).Count(&total).Error)
	assert.Zero(t, total)

	count, err := s.clicks.CountByURL(ctx, u.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRedirectService_MalformedCodeSkipsLookup(t *testing.T) {
	repo := &mockURLRepository{
		getFn: func(context.Context, string) (*model.ShortenedURL, error) {
			t.Fatal("lookup should not run for malformed codes")
			return nil, nil
		},
	}
	sink := &mockClickSink{}
	svc := NewRedirectService(repo, sink, nil, nil)

	for _, code := range []string{"", "abc", "abcdefg", "ab/cde", "favicon.ico"} {
		_, err := svc.Resolve(context.Background(), code, RequestMetadata{})
		assert.ErrorIs(t, err, repository.ErrURLNotFound, "code %q", code)
	}
	assert.Zero(t, sink.calls)
}

func TestRedirectService_RecordingFailureStillRedirects(t *testing.T) {
	repo := &mockURLRepository{
		getFn: func(_ context.Context, code string) (*model.ShortenedURL, error) {
			return &model.ShortenedURL{ID: 3, ShortCode: code, OriginalURL: "https://example.com/ok"}, nil
		},
	}
	sink := &mockClickSink{
		recordFn: func(context.Context, uint64, RequestMetadata) (*model.ClickEvent, error) {
			return nil, errors.New("click table locked")
		},
	}
	metrics := NewMetrics(nil)
	svc := NewRedirectService(repo, sink, metrics, nil)

	target, err := svc.Resolve(context.Background(), "abc123", RequestMetadata{})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/ok", target)
	assert.Equal(t, 1, sink.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ClickRecordFailures))
}

func TestRedirectService_LookupErrorPropagates(t *testing.T) {
	boom := errors.New("db down")
	repo := &mockURLRepository{
		getFn: func(context.Context, string) (*model.ShortenedURL, error) { return nil, boom },
	}
	sink := &mockClickSink{}
	svc := NewRedirectService(repo, sink, nil, nil)

	_, err := svc.Resolve(context.Background(), "abc123", RequestMetadata{})
	assert.ErrorIs(t, err, boom)
	assert.False(t, errors.Is(err, repository.ErrURLNotFound))
	assert.Zero(t, sink.calls)
}

func TestRedirectService_ClicksAccumulate(t *testing.T) {
	ctx := context.Background()
	s := newStack(t, IngestLimits{})

	u, err := s.svc.Shorten(ctx, "b", "https://example.com")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := s.redirect.Resolve(ctx, u.ShortCode, RequestMetadata{UserAgent: chromeUA})
		require.NoError(t, err)
	}

	clicks, err := s.clicks.ListByURL(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, clicks, 5)

	seen := make(map[int64]struct{})
	for _, c := range clicks {
		seen[c.ClickedAt.UnixNano()] = struct{}{}
	}
	assert.Len(t, seen, 5)
}

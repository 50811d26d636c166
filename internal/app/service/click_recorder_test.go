package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unsubstantiated-Script/chonker-chopper/internal/app/enrichment"
	"github.com/unsubstantiated-Script/chonker-chopper/internal/app/model"
	"github.com/unsubstantiated-Script/chonker-chopper/internal/app/repository"
)

const chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

type mockClickRepository struct {
	repository.ClickEventRepository
	createFn func(ctx context.Context, event *model.ClickEvent) error
}

func (m *mockClickRepository) Create(ctx context.Context, event *model.ClickEvent) error {
	if m.createFn != nil {
		return m.createFn(ctx, event)
	}
	return nil
}

func TestClickRecorder_Record(t *testing.T) {
	ctx := context.Background()
	s := newStack(t, IngestLimits{})

	u, err := s.svc.Shorten(ctx, "b", "https://example.com")
	require.NoError(t, err)

	ev, err := s.recorder.Record(ctx, u.ID, RequestMetadata{
		IP:        "203.0.113.9",
		UserAgent: chromeUA,
		Referrer:  "https://news.example.org/item?id=1",
	})
	require.NoError(t, err)
	assert.NotZero(t, ev.ID)

	stored, err := s.clicks.ListByURL(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	got := stored[0]
	assert.Equal(t, "Chrome", *got.Browser)
	assert.Equal(t, enrichment.StubLocation, *got.GeographicLocation)
	assert.Equal(t, "203.0.113.9", *got.IPAddress)
	assert.Equal(t, chromeUA, *got.UserAgent)
	assert.Equal(t, "https://news.example.org/item?id=1", *got.Referrer)
	assert.False(t, got.ClickedAt.IsZero())

	s.events.Wait()
	published := s.publisher.bySubject(model.SubjectClickRecorded)
	require.Len(t, published, 1)
	payload := published[0].payload.(model.ClickRecorded)
	assert.Equal(t, u.ID, payload.URLID)
	assert.Equal(t, ev.ID, payload.ClickID)
	assert.Equal(t, "Chrome", payload.Browser)
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.ClicksRecorded))
}

func TestClickRecorder_EmptyMetadataIsNull(t *testing.T) {
	ctx := context.Background()
	s := newStack(t, IngestLimits{})

	u, err := s.svc.Shorten(ctx, "b", "https://example.com")
	require.NoError(t, err)

	_, err = s.recorder.Record(ctx, u.ID, RequestMetadata{})
	require.NoError(t, err)

	stored, err := s.clicks.ListByURL(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Nil(t, stored[0].Browser)
	assert.Nil(t, stored[0].GeographicLocation)
	assert.Nil(t, stored[0].IPAddress)
	assert.Nil(t, stored[0].UserAgent)
	assert.Nil(t, stored[0].Referrer)
}

func TestClickRecorder_ClampsToColumnLimits(t *testing.T) {
	var captured *model.ClickEvent
	repo := &mockClickRepository{
		createFn: func(_ context.Context, event *model.ClickEvent) error {
			captured = event
			return nil
		},
	}
	rec := NewClickRecorder(repo, fixedLocator(strings.Repeat("L", 150)), nil, nil, nil)

	_, err := rec.Record(context.Background(), 1, RequestMetadata{
		IP:        strings.Repeat("1", 60),
		UserAgent: "Firefox/" + strings.Repeat("é", 600),
		Referrer:  "https://r.example/" + strings.Repeat("r", 600),
	})
	require.NoError(t, err)
	require.NotNil(t, captured)

	assert.Len(t, []rune(*captured.UserAgent), model.MaxUserAgentLength)
	assert.Len(t, []rune(*captured.Referrer), model.MaxReferrerLength)
	assert.Len(t, *captured.IPAddress, model.MaxIPLength)
	assert.Len(t, *captured.GeographicLocation, model.MaxLocationLength)
	assert.True(t, strings.HasPrefix(*captured.UserAgent, "Firefox/"))
}

func TestClickRecorder_StoreFailure(t *testing.T) {
	boom := errors.New("insert failed")
	repo := &mockClickRepository{
		createFn: func(context.Context, *model.ClickEvent) error { return boom },
	}
	pub := &fakePublisher{}
	metrics := NewMetrics(nil)
	events := NewEventDispatcher(pub, metrics, nil)
	rec := NewClickRecorder(repo, nil, events, metrics, nil)

	_, err := rec.Record(context.Background(), 7, RequestMetadata{IP: "198.51.100.1"})
	assert.ErrorIs(t, err, boom)

	events.Wait()
	assert.Empty(t, pub.events)
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.ClicksRecorded))
}

type fixedLocator string

func (l fixedLocator) Locate(string) string { return string(l) }

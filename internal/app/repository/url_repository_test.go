package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unsubstantiated-Script/chonker-chopper/internal/app/model"
	"github.com/unsubstantiated-Script/chonker-chopper/internal/testutil"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newURL(batch, code string, at time.Time) *model.ShortenedURL {
	return &model.ShortenedURL{
		BatchID:     batch,
		OriginalURL: "https://example.com/" + code,
		ShortCode:   code,
		CreatedAt:   at,
	}
}

func TestURLRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewURLRepository(testutil.NewDB(t))

	u := newURL("batch-1", "abc123", base)
	require.NoError(t, repo.Create(ctx, u))
	assert.NotZero(t, u.ID)

	got, err := repo.GetByCode(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "https://example.com/abc123", got.OriginalURL)
	assert.Equal(t, "batch-1", got.BatchID)
	assert.True(t, base.Equal(got.CreatedAt))

	exists, err := repo.ExistsCode(ctx, "abc123")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.ExistsCode(ctx, "zzz999")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestURLRepository_GetByCode_NotFound(t *testing.T) {
	repo := NewURLRepository(testutil.NewDB(t))

	_, err := repo.GetByCode(context.Background(), "nope00")
	assert.ErrorIs(t, err, ErrURLNotFound)

	_, err = repo.GetByCodeWithClicks(context.Background(), "nope00")
	assert.ErrorIs(t, err, ErrURLNotFound)
}

func TestURLRepository_Create_DuplicateCode(t *testing.T) {
	ctx := context.Background()
	repo := NewURLRepository(testutil.NewDB(t))

	require.NoError(t, repo.Create(ctx, newURL("b1", "dupdup", base)))
	err := repo.Create(ctx, newURL("b2", "dupdup", base))
	assert.ErrorIs(t, err, ErrDuplicateCode)

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestURLRepository_Create_RejectsInvalid(t *testing.T) {
	repo := NewURLRepository(testutil.NewDB(t))

	err := repo.Create(context.Background(), newURL("", "abc123", base))
	assert.True(t, model.IsValidationError(err))

	all, err := repo.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestURLRepository_ListByBatch(t *testing.T) {
	ctx := context.Background()
	repo := NewURLRepository(testutil.NewDB(t))

	require.NoError(t, repo.Create(ctx, newURL("a", "aaaaa2", base.Add(time.Second))))
	require.NoError(t, repo.Create(ctx, newURL("b", "bbbbb1", base)))
	require.NoError(t, repo.Create(ctx, newURL("a", "aaaaa1", base)))

	got, err := repo.ListByBatch(ctx, "a")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "aaaaa1", got[0].ShortCode)
	assert.Equal(t, "aaaaa2", got[1].ShortCode)

	got, err = repo.ListByBatch(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestURLRepository_WithClicks(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repo := NewURLRepository(db)
	clicks := NewClickEventRepository(db)

	u := newURL("a", "click1", base)
	require.NoError(t, repo.Create(ctx, u))
	require.NoError(t, repo.Create(ctx, newURL("a", "click2", base)))

	for i := 0; i < 3; i++ {
		require.NoError(t, clicks.Create(ctx, &model.ClickEvent{URLID: u.ID, ClickedAt: base.Add(time.Duration(i) * time.Minute)}))
	}

	got, err := repo.GetByCodeWithClicks(ctx, "click1")
	require.NoError(t, err)
	require.Len(t, got.ClickEvents, 3)
	assert.True(t, got.ClickEvents[0].ClickedAt.After(got.ClickEvents[2].ClickedAt))

	all, err := repo.ListAllWithClicks(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Len(t, all[0].ClickEvents, 3)
	assert.Empty(t, all[1].ClickEvents)
}

func TestURLRepository_ScanCodes(t *testing.T) {
	ctx := context.Background()
	repo := NewURLRepository(testutil.NewDB(t))

	codes := []string{"scan01", "scan02", "scan03", "scan04", "scan05"}
	for _, c := range codes {
		require.NoError(t, repo.Create(ctx, newURL("s", c, base)))
	}

	var seen []string
	var calls int
	err := repo.ScanCodes(ctx, 2, func(batch []string) error {
		calls++
		assert.LessOrEqual(t, len(batch), 2)
		seen = append(seen, batch...)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, codes, seen)
}

package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/unsubstantiated-Script/chonker-chopper/internal/app/model"
	"go.uber.org/zap"
)

const (
	urlCachePrefix     = "chonker:url:"
	defaultURLCacheTTL = 10 * time.Minute
)

var _ URLRepository = (*CachedURLRepository)(nil)

// CachedURLRepository serves GetByCode from Redis before falling back to the wrapped
// repository. Stored URLs never change, so entries are only ever added.
// Cache failures are logged and never surface to callers.
type CachedURLRepository struct {
	URLRepository
	rdb    redis.UniversalClient
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedURLRepository wraps repo. A nil client returns repo unchanged.
func NewCachedURLRepository(repo URLRepository, rdb redis.UniversalClient, ttl time.Duration, logger *zap.Logger) URLRepository {
	if rdb == nil {
		return repo
	}
	if ttl <= 0 {
		ttl = defaultURLCacheTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedURLRepository{
		URLRepository: repo,
		rdb:           rdb,
		ttl:           ttl,
		logger:        logger,
	}
}

// cachedURL is the serialization format for cached rows.
type cachedURL struct {
	ID          uint64    `json:"id"`
	BatchID     string    `json:"batch_id"`
	OriginalURL string    `json:"original_url"`
	ShortCode   string    `json:"short_code"`
	CreatedAt   time.Time `json:"created_at"`
}

func (r *CachedURLRepository) Create(ctx context.Context, u *model.ShortenedURL) error {
	if err := r.URLRepository.Create(ctx, u); err != nil {
		return err
	}
	r.set(ctx, u)
	return nil
}

func (r *CachedURLRepository) GetByCode(ctx context.Context, code string) (*model.ShortenedURL, error) {
	if u := r.get(ctx, code); u != nil {
		return u, nil
	}

	u, err := r.URLRepository.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	r.set(ctx, u)
	return u, nil
}

func (r *CachedURLRepository) get(ctx context.Context, code string) *model.ShortenedURL {
	data, err := r.rdb.Get(ctx, urlCachePrefix+code).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("url cache get failed", zap.String("code", code), zap.Error(err))
		}
		return nil
	}

	var cached cachedURL
	if err := json.Unmarshal(data, &cached); err != nil {
		r.logger.Warn("url cache entry corrupt", zap.String("code", code), zap.Error(err))
		return nil
	}

	return &model.ShortenedURL{
		ID:          cached.ID,
		BatchID:     cached.BatchID,
		OriginalURL: cached.OriginalURL,
		ShortCode:   cached.ShortCode,
		CreatedAt:   cached.CreatedAt,
	}
}

func (r *CachedURLRepository) set(ctx context.Context, u *model.ShortenedURL) {
	data, err := json.Marshal(cachedURL{
		ID:          u.ID,
		BatchID:     u.BatchID,
		OriginalURL: u.OriginalURL,
		ShortCode:   u.ShortCode,
		CreatedAt:   u.CreatedAt,
	})
	if err != nil {
		return
	}

	if err := r.rdb.Set(ctx, urlCachePrefix+u.ShortCode, data, r.ttl).Err(); err != nil {
		r.logger.Warn("url cache set failed", zap.String("code", u.ShortCode), zap.Error(err))
	}
}

package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"
	"github.com/unsubstantiated-Script/chonker-chopper/internal/app/model"
	"gorm.io/gorm"
)

var (
	// ErrURLNotFound signals that no URL is stored under the requested short code.
	ErrURLNotFound = errors.New("url not found")
	// ErrDuplicateCode signals that the unique index on short codes rejected an insert.
	ErrDuplicateCode = errors.New("short code already taken")
)

// URLRepository defines the data access contract for shortened URLs.
type URLRepository interface {
	Create(ctx context.Context, u *model.ShortenedURL) error
	GetByCode(ctx context.Context, code string) (*model.ShortenedURL, error)
	GetByCodeWithClicks(ctx context.Context, code string) (*model.ShortenedURL, error)
	ExistsCode(ctx context.Context, code string) (bool, error)
	ListByBatch(ctx context.Context, batchID string) ([]model.ShortenedURL, error)
	ListAll(ctx context.Context) ([]model.ShortenedURL, error)
	ListAllWithClicks(ctx context.Context) ([]model.ShortenedURL, error)
	ScanCodes(ctx context.Context, size int, fn func(codes []string) error) error
}

type urlRepository struct {
	db *gorm.DB
}

// NewURLRepository returns a GORM-backed URLRepository.
func NewURLRepository(db *gorm.DB) URLRepository {
	return &urlRepository{db: db}
}

func (r *urlRepository) Create(ctx context.Context, u *model.ShortenedURL) error {
	if err := u.Validate(); err != nil {
		return err
	}

	if err := r.db.WithContext(ctx).Create(u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: %s", ErrDuplicateCode, u.ShortCode)
		}
		return fmt.Errorf("create url: %w", err)
	}
	return nil
}

func (r *urlRepository) GetByCode(ctx context.Context, code string) (*model.ShortenedURL, error) {
	var u model.ShortenedURL
	if err := r.db.WithContext(ctx).Where("short_url = ?", code).First(&u).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (r *urlRepository) GetByCodeWithClicks(ctx context.Context, code string) (*model.ShortenedURL, error) {
	var u model.ShortenedURL
	if err := r.withClicks(ctx).Where("short_url = ?", code).First(&u).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (r *urlRepository) ExistsCode(ctx context.Context, code string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&model.ShortenedURL{}).
		Where("short_url = ?", code).
		Limit(1).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("exists code: %w", err)
	}
	return count > 0, nil
}

// ListByBatch returns the batch members in creation order.
func (r *urlRepository) ListByBatch(ctx context.Context, batchID string) ([]model.ShortenedURL, error) {
	var result []model.ShortenedURL
	if err := r.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("created_at ASC, id ASC").
		Find(&result).Error; err != nil {
		return nil, fmt.Errorf("list batch %s: %w", batchID, err)
	}
	return result, nil
}

func (r *urlRepository) ListAll(ctx context.Context) ([]model.ShortenedURL, error) {
	var result []model.ShortenedURL
	if err := r.db.WithContext(ctx).
		Order("created_at ASC, id ASC").
		Find(&result).Error; err != nil {
		return nil, fmt.Errorf("list urls: %w", err)
	}
	return result, nil
}

// ListAllWithClicks is ListAll with each URL's click events attached, newest first.
func (r *urlRepository) ListAllWithClicks(ctx context.Context) ([]model.ShortenedURL, error) {
	var result []model.ShortenedURL
	if err := r.withClicks(ctx).
		Order("created_at ASC, id ASC").
		Find(&result).Error; err != nil {
		return nil, fmt.Errorf("list urls with clicks: %w", err)
	}
	return result, nil
}

// ScanCodes walks every stored code in primary key order, size rows at a time.
func (r *urlRepository) ScanCodes(ctx context.Context, size int, fn func(codes []string) error) error {
	if size <= 0 {
		size = 1000
	}

	var rows []model.ShortenedURL
	res := r.db.WithContext(ctx).
		Select("id", "short_url").
		FindInBatches(&rows, size, func(tx *gorm.DB, _ int) error {
			return fn(lo.Map(rows, func(u model.ShortenedURL, _ int) string { return u.ShortCode }))
		})
	if res.Error != nil {
		return fmt.Errorf("scan codes: %w", res.Error)
	}
	return nil
}

func (r *urlRepository) withClicks(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("ClickEvents", func(db *gorm.DB) *gorm.DB {
		return db.Order("clicked_at DESC, id DESC")
	})
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrURLNotFound
	}
	return err
}

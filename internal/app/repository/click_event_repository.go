package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/unsubstantiated-Script/chonker-chopper/internal/app/model"
	"gorm.io/gorm"
)

// ClickEventRepository defines the data access contract for click events.
type ClickEventRepository interface {
	Create(ctx context.Context, event *model.ClickEvent) error
	CountByURL(ctx context.Context, urlID uint64) (int64, error)
	ListByURL(ctx context.Context, urlID uint64) ([]model.ClickEvent, error)
}

type clickEventRepository struct {
	db *gorm.DB
}

// NewClickEventRepository returns a GORM-backed ClickEventRepository.
func NewClickEventRepository(db *gorm.DB) ClickEventRepository {
	return &clickEventRepository{db: db}
}

// Create inserts one click. A dangling url id is reported as ErrURLNotFound.
func (r *clickEventRepository) Create(ctx context.Context, event *model.ClickEvent) error {
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		if errors.Is(err, gorm.ErrForeignKeyViolated) {
			return fmt.Errorf("record click for url %d: %w", event.URLID, ErrURLNotFound)
		}
		return fmt.Errorf("record click: %w", err)
	}
	return nil
}

func (r *clickEventRepository) CountByURL(ctx context.Context, urlID uint64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.ClickEvent{}).Where("url_id = ?", urlID).Count(&count).Error
	return count, err
}

// ListByURL returns the clicks for urlID, newest first.
func (r *clickEventRepository) ListByURL(ctx context.Context, urlID uint64) ([]model.ClickEvent, error) {
	var result []model.ClickEvent
	if err := r.db.WithContext(ctx).
		Where("url_id = ?", urlID).
		Order("clicked_at DESC, id DESC").
		Find(&result).Error; err != nil {
		return nil, err
	}
	return result, nil
}

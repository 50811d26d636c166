package model

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const MaxBatchIDLength = 64

// ShortenedURL is one original URL mapped to a short code. Rows are written once and never updated.
type ShortenedURL struct {
	ID          uint64       `gorm:"primaryKey" json:"id"`
	BatchID     string       `gorm:"column:batch_id;size:64;not null;index" json:"batch_id"`
	OriginalURL string       `gorm:"column:original_url;type:text;not null" json:"original_url"`
	ShortCode   string       `gorm:"column:short_url;size:6;not null;uniqueIndex" json:"short_url"`
	CreatedAt   time.Time    `gorm:"column:created_at;not null;index" json:"created_at"`
	ClickEvents []ClickEvent `gorm:"foreignKey:URLID;constraint:OnDelete:CASCADE" json:"-"`
}

func (ShortenedURL) TableName() string {
	return "urls"
}

// Validate checks the fields a caller controls before the row is inserted.
func (u ShortenedURL) Validate() error {
	err := validation.ValidateStruct(&u,
		validation.Field(&u.BatchID, validation.Required, validation.RuneLength(1, MaxBatchIDLength)),
		validation.Field(&u.OriginalURL, OriginalURLRules()...),
		validation.Field(&u.ShortCode, validation.Required, validation.Match(codePattern).Error("must be 6 alphanumeric characters")),
	)
	if err != nil {
		return &ValidationError{Err: err}
	}
	return nil
}

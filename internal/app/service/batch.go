package service

import (
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/unsubstantiated-Script/chonker-chopper/internal/app/model"
)

// BatchSummary is every URL created under one batch id.
type BatchSummary struct {
	BatchID   string
	CreatedAt time.Time
	URLs      []model.ShortenedURL
}

// groupBatches groups urls by batch id alone. A batch is dated by its earliest member;
// batches come back newest first with ties broken by id. Member order is preserved.
func groupBatches(urls []model.ShortenedURL) []BatchSummary {
	groups := lo.GroupBy(urls, func(u model.ShortenedURL) string { return u.BatchID })

	out := make([]BatchSummary, 0, len(groups))
	for id, members := range groups {
		first := lo.MinBy(members, func(a, b model.ShortenedURL) bool {
			return a.CreatedAt.Before(b.CreatedAt)
		})
		out = append(out, BatchSummary{BatchID: id, CreatedAt: first.CreatedAt, URLs: members})
	}

	slices.SortFunc(out, func(a, b BatchSummary) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.BatchID, b.BatchID)
	})
	return out
}

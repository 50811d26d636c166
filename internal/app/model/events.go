package model

import "time"

const (
	EventStreamName     = "CHONKER"
	EventStreamSubjects = "chonker.>"
	EventStreamMaxBytes = 1024 * 1024 * 100 // 100MB
	EventConsumerName   = "chonker-event-tap"

	SubjectClickRecorded = "chonker.clicks.recorded"
	SubjectBatchIngested = "chonker.batches.ingested"
)

// Batch sources reported on BatchIngested and in metrics.
const (
	SourceSingle = "single"
	SourceCSV    = "csv"
)

// ClickRecorded is published after a click row is committed.
type ClickRecorded struct {
	EventID   string    `json:"event_id"`
	ClickID   uint64    `json:"click_id"`
	URLID     uint64    `json:"url_id"`
	Browser   string    `json:"browser,omitempty"`
	Location  string    `json:"geographic_location,omitempty"`
	ClickedAt time.Time `json:"clicked_at"`
}

// BatchIngested is published once per submission that created at least one URL.
type BatchIngested struct {
	EventID     string    `json:"event_id"`
	BatchID     string    `json:"batch_id"`
	Source      string    `json:"source"`
	URLsCreated int       `json:"urls_created"`
	IngestedAt  time.Time `json:"ingested_at"`
}

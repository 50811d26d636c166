package service

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/unsubstantiated-Script/chonker-chopper/internal/app/model"
	"github.com/unsubstantiated-Script/chonker-chopper/internal/app/repository"
	"go.uber.org/zap"
)

// URLService creates shortened URLs and lists them by batch.
type URLService interface {
	Shorten(ctx context.Context, batchID, originalURL string) (*model.ShortenedURL, error)
	IngestCSV(ctx context.Context, batchID string, r io.Reader, size int64) (int, error)
	GetURL(ctx context.Context, code string) (*model.ShortenedURL, error)
	ListByBatch(ctx context.Context, batchID string) ([]model.ShortenedURL, error)
	ListBatches(ctx context.Context) ([]BatchSummary, error)
}

// IngestLimits bound a CSV upload before any row is processed.
type IngestLimits struct {
	MaxFileBytes int64
	MaxRows      int
}

const (
	csvHeader = "url"

	skipEmpty       = "empty"
	skipHeader      = "header"
	skipUnparseable = "unparseable"
	skipInvalid     = "invalid"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

type urlService struct {
	repo    repository.URLRepository
	codes   *CodeGenerator
	events  *EventDispatcher
	limits  IngestLimits
	now     func() time.Time
	metrics *Metrics
	logger  *zap.Logger
}

// NewURLService wires URL creation to the given repository and code generator.
func NewURLService(repo repository.URLRepository, codes *CodeGenerator, events *EventDispatcher, limits IngestLimits, metrics *Metrics, logger *zap.Logger) URLService {
	if limits.MaxFileBytes <= 0 {
		limits.MaxFileBytes = 2048 * 1024
	}
	if limits.MaxRows <= 0 {
		limits.MaxRows = 10_000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &urlService{
		repo:    repo,
		codes:   codes,
		events:  events,
		limits:  limits,
		now:     time.Now,
		metrics: metricsOrDefault(metrics),
		logger:  logger,
	}
}

func (s *urlService) Shorten(ctx context.Context, batchID, originalURL string) (*model.ShortenedURL, error) {
	if err := model.ValidateBatchID(batchID); err != nil {
		return nil, err
	}
	originalURL = strings.TrimSpace(originalURL)
	if err := model.ValidateOriginalURL(originalURL); err != nil {
		return nil, err
	}

	u, err := s.create(ctx, batchID, originalURL)
	if err != nil {
		return nil, fmt.Errorf("shorten: %w", err)
	}

	s.batchDone(ctx, batchID, model.SourceSingle, 1)
	return u, nil
}

// IngestCSV creates one URL per valid line of r under batchID. Blank lines, the "url"
// header and invalid URLs are skipped. On failure the rows already created stay and
// their count is returned with the error.
func (s *urlService) IngestCSV(ctx context.Context, batchID string, r io.Reader, size int64) (created int, err error) {
	if r == nil {
		return 0, model.Invalidf("csv file is required")
	}
	if err := model.ValidateBatchID(batchID); err != nil {
		return 0, err
	}

	lines, err := s.readLines(r, size)
	if err != nil {
		return 0, err
	}

	defer func() {
		s.batchDone(ctx, batchID, model.SourceCSV, created)
	}()

	for i, line := range lines {
		if err := ctx.Err(); err != nil {
			return created, err
		}

		raw, reason := firstColumn(line)
		if reason == "" && model.ValidateOriginalURL(raw) != nil {
			reason = skipInvalid
		}
		if reason != "" {
			s.metrics.CSVRowsSkipped.WithLabelValues(reason).Inc()
			continue
		}

		if _, err := s.create(ctx, batchID, raw); err != nil {
			return created, fmt.Errorf("ingest csv line %d: %w", i+1, err)
		}
		created++
	}

	s.logger.Info("csv ingested",
		zap.String("batch_id", batchID),
		zap.Int("lines", len(lines)),
		zap.Int("urls_created", created))
	return created, nil
}

func (s *urlService) GetURL(ctx context.Context, code string) (*model.ShortenedURL, error) {
	if !model.IsValidCode(code) {
		return nil, repository.ErrURLNotFound
	}
	u, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("get url: %w", err)
	}
	return u, nil
}

func (s *urlService) ListByBatch(ctx context.Context, batchID string) ([]model.ShortenedURL, error) {
	return s.repo.ListByBatch(ctx, batchID)
}

func (s *urlService) ListBatches(ctx context.Context) ([]BatchSummary, error) {
	urls, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	return groupBatches(urls), nil
}

// create assigns a fresh code and inserts the row, retrying on code collisions.
func (s *urlService) create(ctx context.Context, batchID, originalURL string) (*model.ShortenedURL, error) {
	var created *model.ShortenedURL
	_, err := s.codes.Assign(ctx, func(code string) error {
		u := &model.ShortenedURL{
			BatchID:     batchID,
			OriginalURL: originalURL,
			ShortCode:   code,
			CreatedAt:   s.now(),
		}
		if err := s.repo.Create(ctx, u); err != nil {
			return err
		}
		created = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *urlService) batchDone(ctx context.Context, batchID, source string, n int) {
	if n == 0 {
		return
	}
	s.metrics.URLsCreated.WithLabelValues(source).Add(float64(n))

	eventID := uuid.NewString()
	s.events.Dispatch(ctx, model.SubjectBatchIngested, eventID, model.BatchIngested{
		EventID:     eventID,
		BatchID:     batchID,
		Source:      source,
		URLsCreated: n,
		IngestedAt:  s.now(),
	})
}

// readLines applies the file-level checks and splits the upload into lines.
func (s *urlService) readLines(r io.Reader, size int64) ([]string, error) {
	limit := s.limits.MaxFileBytes
	if size > limit {
		return nil, model.Invalidf("csv file must not exceed %d KB", limit/1024)
	}

	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, model.Invalidf("csv file must not exceed %d KB", limit/1024)
	}
	if len(data) == 0 {
		return nil, model.Invalidf("csv file is empty")
	}
	if bytes.IndexByte(data, 0) >= 0 {
		return nil, model.Invalidf("csv file must be text")
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), len(data)+1)

	var lines []string
	for sc.Scan() {
		lines = append(lines, sc.Text())
		if len(lines) > s.limits.MaxRows {
			return nil, model.Invalidf("csv file must not exceed %d rows", s.limits.MaxRows)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return lines, nil
}

// firstColumn returns the trimmed first field of line, or the reason it should be skipped.
func firstColumn(line string) (string, string) {
	rd := csv.NewReader(strings.NewReader(line))
	rd.LazyQuotes = true
	rd.FieldsPerRecord = -1

	rec, err := rd.Read()
	if errors.Is(err, io.EOF) {
		return "", skipEmpty
	}
	if err != nil {
		return "", skipUnparseable
	}

	first := strings.TrimSpace(rec[0])
	if !utf8.ValidString(first) {
		return "", skipUnparseable
	}
	switch first {
	case "":
		return "", skipEmpty
	case csvHeader:
		return "", skipHeader
	}
	return first, ""
}

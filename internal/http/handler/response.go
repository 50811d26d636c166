package handler

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"
	"github.com/unsubstantiated-Script/chonker-chopper/internal/app/model"
	"github.com/unsubstantiated-Script/chonker-chopper/internal/app/repository"
	"github.com/unsubstantiated-Script/chonker-chopper/internal/app/service"
)

// URLResponse is a shortened URL as returned by the API.
type URLResponse struct {
	ID          uint64    `json:"id"`
	BatchID     string    `json:"batch_id"`
	OriginalURL string    `json:"original_url"`
	ShortURL    string    `json:"short_url"`
	ShortLink   string    `json:"short_link"`
	CreatedAt   time.Time `json:"created_at"`
}

// URLWithAnalytics adds the click list to a URLResponse.
type URLWithAnalytics struct {
	URLResponse
	Analytics   []model.ClickEvent `json:"analytics"`
	TotalClicks int               `json:"total_clicks"`
}

type BatchResponse struct {
	BatchID   string        `json:"batch_id"`
	CreatedAt time.Time     `json:"created_at"`
	URLs      []URLResponse `json:"urls"`
	TotalURLs int           `json:"total_urls"`
}

type BatchAnalyticsResponse struct {
	BatchID     string             `json:"batch_id"`
	CreatedAt   time.Time          `json:"created_at"`
	URLs        []URLWithAnalytics `json:"urls"`
	TotalURLs   int                `json:"total_urls"`
	TotalClicks int                `json:"total_clicks"`
}

type urlRef struct {
	ShortURL    string `json:"short_url"`
	OriginalURL string `json:"original_url"`
}

type URLAnalyticsResponse struct {
	URL         urlRef             `json:"url"`
	TotalClicks int                `json:"total_clicks"`
	Analytics   []model.ClickEvent `json:"analytics"`
}

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func toURLResponse(baseURL string, u model.ShortenedURL) URLResponse {
	return URLResponse{
		ID:          u.ID,
		BatchID:     u.BatchID,
		OriginalURL: u.OriginalURL,
		ShortURL:    u.ShortCode,
		ShortLink:   shortLink(baseURL, u.ShortCode),
		CreatedAt:   u.CreatedAt,
	}
}

func toBatchResponse(baseURL string, b service.BatchSummary) BatchResponse {
	return BatchResponse{
		BatchID:   b.BatchID,
		CreatedAt: b.CreatedAt,
		URLs: lo.Map(b.URLs, func(u model.ShortenedURL, _ int) URLResponse {
			return toURLResponse(baseURL, u)
		}),
		TotalURLs: len(b.URLs),
	}
}

func toBatchAnalyticsResponse(baseURL string, b service.BatchAnalytics) BatchAnalyticsResponse {
	return BatchAnalyticsResponse{
		BatchID:   b.BatchID,
		CreatedAt: b.CreatedAt,
		URLs: lo.Map(b.URLs, func(a service.URLAnalytics, _ int) URLWithAnalytics {
			return URLWithAnalytics{
				URLResponse: toURLResponse(baseURL, a.URL),
				Analytics:   a.Clicks,
				TotalClicks: a.TotalClicks,
			}
		}),
		TotalURLs:   b.TotalURLs,
		TotalClicks: b.TotalClicks,
	}
}

func shortLink(baseURL, code string) string {
	return baseURL + "/" + code
}

// statusFor maps a service error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case err == nil:
		return fiber.StatusOK
	case model.IsValidationError(err):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, repository.ErrURLNotFound):
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

// validationFailed writes the 422 body for a ValidationError.
func validationFailed(c *fiber.Ctx, err error) error {
	body := fiber.Map{
		"success": false,
		"message": err.Error(),
	}
	var ve *model.ValidationError
	if errors.As(err, &ve) {
		if fields := ve.Fields(); len(fields) > 0 {
			body["errors"] = fields
		}
	}
	return c.Status(fiber.StatusUnprocessableEntity).JSON(body)
}

// ErrorHandler renders errors that escaped a handler as JSON.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	}
	return c.Status(code).JSON(envelope{Success: false, Message: message})
}

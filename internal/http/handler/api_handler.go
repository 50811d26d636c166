package handler

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/unsubstantiated-Script/chonker-chopper/internal/app/service"
	"go.uber.org/zap"
)

const csvFormField = "csv_file"

var csvExtensions = []string{".csv", ".txt"}

// APIDeps groups dependencies required by API handlers.
type APIDeps struct {
	Logger    *zap.Logger
	URLs      service.URLService
	Analytics *service.AnalyticsService
	BaseURL   string
}

// APIHandler implements the /v1/urls management API.
type APIHandler struct {
	logger    *zap.Logger
	urls      service.URLService
	analytics *service.AnalyticsService
	baseURL   string
}

// NewAPIHandler creates an API handler with the provided dependencies.
func NewAPIHandler(deps APIDeps) *APIHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIHandler{
		logger:    logger,
		urls:      deps.URLs,
		analytics: deps.Analytics,
		baseURL:   strings.TrimRight(deps.BaseURL, "/"),
	}
}

// Register wires API routes onto the provided router. Static segments go before /:code.
func (h *APIHandler) Register(router fiber.Router) {
	urls := router.Group("/v1/urls")
	{
		urls.Post("/", h.CreateURL)
		urls.Post("/upload", h.UploadCSV)
		urls.Get("/", h.ListBatches)
		urls.Get("/analytics", h.BatchAnalytics)
		urls.Get("/:code/analytics", h.URLAnalytics)
		urls.Get("/:code", h.GetURL)
	}
}

// CreateURLRequest is the body of POST /v1/urls, as form fields or JSON.
type CreateURLRequest struct {
	OriginalURL string `json:"original_url" form:"original_url"`
	BatchID     string `json:"batch_id" form:"batch_id"`
}

// CreateURL handles POST /v1/urls
func (h *APIHandler) CreateURL(c *fiber.Ctx) error {
	var req CreateURLRequest
	if err := c.BodyParser(&req); err != nil {
		h.logger.Debug("unreadable create request", zap.Error(err))
		// Shorten rejects the empty URL with the usual field errors.
		req = CreateURLRequest{}
	}

	batchID := lo.Ternary(req.BatchID == "", uuid.NewString(), req.BatchID)

	u, err := h.urls.Shorten(userContext(c), batchID, req.OriginalURL)
	if err != nil {
		if statusFor(err) == fiber.StatusUnprocessableEntity {
			return validationFailed(c, err)
		}
		h.logger.Error("failed to shorten url", zap.String("batch_id", batchID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(envelope{
			Success: false,
			Message: "Failed to shorten URL",
		})
	}

	resp := toURLResponse(h.baseURL, *u)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":      true,
		"id":           resp.ID,
		"batch_id":     resp.BatchID,
		"original_url": resp.OriginalURL,
		"short_url":    resp.ShortURL,
		"short_link":   resp.ShortLink,
		"created_at":   resp.CreatedAt,
	})
}

// UploadCSV handles POST /v1/urls/upload
func (h *APIHandler) UploadCSV(c *fiber.Ctx) error {
	fh, err := c.FormFile(csvFormField)
	if err != nil || fh == nil {
		return c.Status(fiber.StatusBadRequest).JSON(envelope{
			Success: false,
			Message: "Please upload a CSV file.",
		})
	}

	if !lo.Contains(csvExtensions, strings.ToLower(filepath.Ext(fh.Filename))) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"success": false,
			"message": "The csv file must be a file of type: csv, txt.",
			"errors":  fiber.Map{csvFormField: "must be a csv or txt file"},
		})
	}

	batchID := c.FormValue("batch_id")
	if batchID == "" {
		batchID = uuid.NewString()
	}

	f, err := fh.Open()
	if err != nil {
		h.logger.Error("failed to open uploaded csv", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(envelope{
			Success: false,
			Message: "Failed to process CSV file",
		})
	}
	defer f.Close()

	created, err := h.urls.IngestCSV(userContext(c), batchID, f, fh.Size)
	if err != nil {
		if statusFor(err) == fiber.StatusUnprocessableEntity {
			return validationFailed(c, err)
		}
		h.logger.Error("failed to ingest csv",
			zap.String("batch_id", batchID),
			zap.Int("urls_created", created),
			zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success":      false,
			"message":      "Failed to process CSV file",
			"urls_created": created,
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":      true,
		"message":      fmt.Sprintf("Successfully shortened %d URLs from CSV!", created),
		"urls_created": created,
		"batch_id":     batchID,
	})
}

// ListBatches handles GET /v1/urls
func (h *APIHandler) ListBatches(c *fiber.Ctx) error {
	batches, err := h.urls.ListBatches(userContext(c))
	if err != nil {
		h.logger.Error("failed to list batches", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(envelope{
			Success: false,
			Message: "Failed to list URLs",
		})
	}

	return c.JSON(envelope{
		Success: true,
		Data: lo.Map(batches, func(b service.BatchSummary, _ int) BatchResponse {
			return toBatchResponse(h.baseURL, b)
		}),
	})
}

// BatchAnalytics handles GET /v1/urls/analytics
func (h *APIHandler) BatchAnalytics(c *fiber.Ctx) error {
	batches, err := h.analytics.Batches(userContext(c))
	if err != nil {
		h.logger.Error("failed to build batch analytics", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(envelope{
			Success: false,
			Message: "Failed to load analytics",
		})
	}

	return c.JSON(envelope{
		Success: true,
		Data: lo.Map(batches, func(b service.BatchAnalytics, _ int) BatchAnalyticsResponse {
			return toBatchAnalyticsResponse(h.baseURL, b)
		}),
	})
}

// GetURL handles GET /v1/urls/:code
func (h *APIHandler) GetURL(c *fiber.Ctx) error {
	code := c.Params("code")

	u, err := h.urls.GetURL(userContext(c), code)
	if err != nil {
		if statusFor(err) == fiber.StatusNotFound {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "URL not found"})
		}
		h.logger.Error("failed to get url", zap.String("code", code), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Failed to load URL"})
	}

	return c.JSON(fiber.Map{
		"data":   toURLResponse(h.baseURL, *u),
		"status": "success",
	})
}

// URLAnalytics handles GET /v1/urls/:code/analytics
func (h *APIHandler) URLAnalytics(c *fiber.Ctx) error {
	code := c.Params("code")

	a, err := h.analytics.URL(userContext(c), code)
	if err != nil {
		if statusFor(err) == fiber.StatusNotFound {
			return c.Status(fiber.StatusNotFound).JSON(envelope{
				Success: false,
				Message: "Short URL not found",
			})
		}
		h.logger.Error("failed to build url analytics", zap.String("code", code), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(envelope{
			Success: false,
			Message: "Failed to load analytics",
		})
	}

	return c.JSON(envelope{
		Success: true,
		Data: URLAnalyticsResponse{
			URL: urlRef{
				ShortURL:    a.URL.ShortCode,
				OriginalURL: a.URL.OriginalURL,
			},
			TotalClicks: a.TotalClicks,
			Analytics:   a.Clicks,
		},
	})
}

func userContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return ctx
}

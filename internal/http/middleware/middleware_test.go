package middleware

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRequestID_GeneratesAndEchoes(t *testing.T) {
	app := fiber.New()
	app.Use(RequestID())
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(RequestIDFrom(c))
	})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)

	rid := resp.Header.Get(RequestIDHeader)
	assert.Len(t, rid, 36)
	assert.Equal(t, rid, string(body))

	req := httptest.NewRequest(fiber.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "abc-123", resp.Header.Get(RequestIDHeader))
}

func TestRecovery_ReturnsJSON500(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	app := fiber.New()
	app.Use(RequestID())
	app.Use(Recovery(zap.New(core)))
	app.Get("/boom", func(c *fiber.Ctx) error {
		panic("kaboom")
	})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/boom", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"success":false,"message":"Internal Server Error"}`, string(body))

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "panic recovered", logs.All()[0].Message)
}

func TestLogger_SkipsProbes(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	app := fiber.New()
	app.Use(Logger(zap.New(core), "/healthz"))
	app.Get("/healthz", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	app.Get("/x", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusTeapot) })

	_, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/healthz", nil))
	require.NoError(t, err)
	assert.Equal(t, 0, logs.Len())

	_, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/x", nil))
	require.NoError(t, err)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, int64(fiber.StatusTeapot), logs.All()[0].ContextMap()["status"])
}

func TestLogger_StatusFromFiberError(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	reg := prometheus.NewRegistry()
	app := fiber.New()
	app.Use(Logger(zap.New(core)))
	app.Use(Metrics(reg))
	app.Get("/gone", func(c *fiber.Ctx) error { return fiber.ErrGone })
	app.Get("/broken", func(c *fiber.Ctx) error { return errors.New("db down") })

	_, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/gone", nil))
	require.NoError(t, err)
	_, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/broken", nil))
	require.NoError(t, err)

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, int64(fiber.StatusGone), logs.All()[0].ContextMap()["status"])
	assert.Equal(t, zap.InfoLevel, logs.All()[0].Level)
	assert.Equal(t, int64(fiber.StatusInternalServerError), logs.All()[1].ContextMap()["status"])
	assert.Equal(t, zap.ErrorLevel, logs.All()[1].Level)

	assert.Equal(t, 2, testutil.CollectAndCount(reg, "chonker_http_requests_total"))
}

func TestCORS(t *testing.T) {
	app := fiber.New()
	app.Use(CORS("https://a.example, https://b.example"))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	req := httptest.NewRequest(fiber.MethodGet, "/", nil)
	req.Header.Set(fiber.HeaderOrigin, "https://b.example")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "https://b.example", resp.Header.Get(fiber.HeaderAccessControlAllowOrigin))

	req = httptest.NewRequest(fiber.MethodGet, "/", nil)
	req.Header.Set(fiber.HeaderOrigin, "https://evil.example")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Empty(t, resp.Header.Get(fiber.HeaderAccessControlAllowOrigin))

	req = httptest.NewRequest(fiber.MethodOptions, "/", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}

func TestMetrics_LabelsByRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	app := fiber.New()
	app.Use(Metrics(reg))
	app.Get("/:code", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusFound) })

	for _, code := range []string{"/aaaaaa", "/bbbbbb"} {
		_, err := app.Test(httptest.NewRequest(fiber.MethodGet, code, nil))
		require.NoError(t, err)
	}

	assert.Equal(t, 1, testutil.CollectAndCount(reg, "chonker_http_requests_total"))
}

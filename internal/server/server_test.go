package server

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPErrorHandler_WithStackTrace(t *testing.T) {
	e := echo.New()

	// Redirect slog to a buffer for the duration of the test.
	var logBuffer bytes.Buffer
	handler := slog.NewTextHandler(&logBuffer, &slog.HandlerOptions{
		AddSource: true,
	})
	originalLogger := slog.Default()
	slog.SetDefault(slog.New(handler))
	defer slog.SetDefault(originalLogger)

	setupErrorHandling(e)

	e.GET("/test-unhandled-error", func(c echo.Context) error {
		return errors.New("a deliberate unhandled error occurred")
	})
	e.GET("/test-http-error", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusTeapot, "short and stout")
	})

	t.Run("unhandled errors are logged with a stack", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test-unhandled-error", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		require.Equal(t, http.StatusInternalServerError, rec.Code)

		logOutput := logBuffer.String()
		assert.Contains(t, logOutput, "Internal Server Error (Unhandled)")
		assert.Contains(t, logOutput, "error=\"a deliberate unhandled error occurred\"")
		assert.Contains(t, logOutput, "stack_trace=")
		assert.Contains(t, logOutput, "runtime/debug/stack.go")
		assert.Contains(t, logOutput, "internal/server/server_test.go")
	})

	t.Run("http errors keep their status", func(t *testing.T) {
		logBuffer.Reset()
		req := httptest.NewRequest(http.MethodGet, "/test-http-error", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusTeapot, rec.Code)
		assert.Contains(t, rec.Body.String(), "short and stout")
		assert.NotContains(t, logBuffer.String(), "stack_trace=")
	})
}

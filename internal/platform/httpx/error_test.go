package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shelia5K/FAPI-order-service/internal/platform/requestctx"
)

func TestWriteErrorEnvelope(t *testing.T) {
	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-1")
	ctx = requestctx.WithTrace(ctx, requestctx.TraceInfo{TraceID: "trace-1"})

	rec := httptest.NewRecorder()
	WriteError(ctx, rec, NewError("insufficient_stock", "only 2\nleft", http.StatusConflict).
		WithDetails(map[string]any{"available": 2}))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "insufficient_stock", body["error"])
	assert.Equal(t, "only 2 left", body["message"])
	assert.EqualValues(t, 409, body["status"])
	assert.Equal(t, "req-1", body["request_id"])
	assert.Equal(t, "trace-1", body["trace_id"])
	assert.EqualValues(t, 2, body["available"])
}

func TestNewErrorDefaultsStatus(t *testing.T) {
	err := NewError("boom", "boom", 0)
	assert.Equal(t, http.StatusInternalServerError, err.Status)

	rec := httptest.NewRecorder()
	WriteError(context.Background(), rec, Error{Code: "x"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotContains(t, body, "request_id")
	assert.NotContains(t, body, "trace_id")
}

package server

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(logs *bytes.Buffer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewJSONHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	r := gin.New()
	r.Use(RequestIDMiddleware(), LoggingMiddleware(logger), RecoveryMiddleware(logger))
	r.GET("/ok", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
	r.GET("/boom", func(*gin.Context) { panic("records dir vanished") })
	return r
}

func TestRequestIDGenerated(t *testing.T) {
	var logs bytes.Buffer
	w := httptest.NewRecorder()
	newTestRouter(&logs).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))

	id := w.Header().Get(requestIDHeader)
	require.NotEmpty(t, id)
	assert.Contains(t, logs.String(), `"request_id":"`+id+`"`)
	assert.Contains(t, logs.String(), `"level":"DEBUG"`)
}

func TestRequestIDKept(t *testing.T) {
	var logs bytes.Buffer
	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set(requestIDHeader, "run-7")

	w := httptest.NewRecorder()
	newTestRouter(&logs).ServeHTTP(w, req)

	assert.Equal(t, "run-7", w.Header().Get(requestIDHeader))
}

func TestRecoveryReportsRequestID(t *testing.T) {
	var logs bytes.Buffer
	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	req.Header.Set(requestIDHeader, "run-9")

	w := httptest.NewRecorder()
	newTestRouter(&logs).ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, "run-9", body["request_id"])

	assert.Contains(t, logs.String(), "records dir vanished")
	assert.Contains(t, logs.String(), `"level":"WARN"`)
}

package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/lendman/internal/model"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestLoggingMiddleware_RecordsRequest(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	handler := NewLoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/books/missing", nil)
	req.RemoteAddr = "192.0.2.1:12345"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log entry: %v", err)
	}
	if entry["method"] != "GET" {
		t.Errorf("expected method GET, got %v", entry["method"])
	}
	if entry["path"] != "/api/books/missing" {
		t.Errorf("expected path, got %v", entry["path"])
	}
	if entry["status"] != float64(http.StatusNotFound) {
		t.Errorf("expected status 404, got %v", entry["status"])
	}
	if entry["remote_addr"] != "192.0.2.1" {
		t.Errorf("expected remote_addr 192.0.2.1, got %v", entry["remote_addr"])
	}
	// 4xxはwarnレベル
	if entry["level"] != "WARN" {
		t.Errorf("expected WARN level for 4xx, got %v", entry["level"])
	}
}

func TestRecoveryMiddleware_PanicReturns500(t *testing.T) {
	handler := NewRecoveryMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}

	var body ErrorResponseBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse body: %v", err)
	}
	if body.Code != "INTERNAL_ERROR" {
		t.Errorf("expected INTERNAL_ERROR, got %s", body.Code)
	}
}

func TestCORSMiddleware_PreflightAndHeaders(t *testing.T) {
	handler := NewCORSMiddleware("http://localhost:3000")(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/api/books", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204 for preflight, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("unexpected allowed origin: %s", got)
	}
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	handler := NewSecurityHeadersMiddleware()(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("expected nosniff, got %s", got)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("expected DENY, got %s", got)
	}
}

func TestRateLimiter_GeneralBurstExhaustion(t *testing.T) {
	config := NewRateLimiterConfig(3, 1)
	config.CleanupInterval = time.Hour
	rl := NewRateLimiter(config)
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/books", nil)
		req.RemoteAddr = "192.0.2.1:100"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/books", nil)
	req.RemoteAddr = "192.0.2.1:100"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429 after burst, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

// 別IPのクライアントは独立したリミッターを持つ。
func TestRateLimiter_PerClientIsolation(t *testing.T) {
	config := NewRateLimiterConfig(1, 1)
	config.CleanupInterval = time.Hour
	rl := NewRateLimiter(config)
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())

	first := httptest.NewRequest(http.MethodGet, "/api/books", nil)
	first.RemoteAddr = "192.0.2.1:100"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, first)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	// 同じIPの2回目は拒否される
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, first)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429 for same client, got %d", rec.Code)
	}

	// 別IPは許可される
	second := httptest.NewRequest(http.MethodGet, "/api/books", nil)
	second.RemoteAddr = "192.0.2.2:100"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, second)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for different client, got %d", rec.Code)
	}

	if rl.GeneralLimiterCount() != 2 {
		t.Errorf("expected 2 limiter entries, got %d", rl.GeneralLimiterCount())
	}
}

// 貸出・返却のレート制限はAPI全般とは独立に動作する。
func TestRateLimiter_CirculationIndependent(t *testing.T) {
	config := NewRateLimiterConfig(100, 1)
	config.CleanupInterval = time.Hour
	rl := NewRateLimiter(config)
	defer rl.Stop()

	general := rl.GeneralMiddleware()(okHandler())
	circulation := rl.CirculationMiddleware()(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/borrow", nil)
	req.RemoteAddr = "192.0.2.1:100"

	rec := httptest.NewRecorder()
	circulation.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	circulation.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429 on circulation limit, got %d", rec.Code)
	}

	// 貸出側が枯渇してもAPI全般は通る
	rec = httptest.NewRecorder()
	general.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected general tier unaffected, got %d", rec.Code)
	}
}

func TestClientIP_ForwardedForTakesPrecedence(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:8080"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")

	if got := clientIP(req); got != "203.0.113.7" {
		t.Errorf("expected first forwarded address, got %s", got)
	}
}

type recordingCollector struct {
	mu        sync.Mutex
	statuses  []int
	latencies int
}

func (c *recordingCollector) RecordBorrowSuccess()               {}
func (c *recordingCollector) RecordBorrowRejected(reason string) {}
func (c *recordingCollector) RecordReturnSuccess()               {}
func (c *recordingCollector) RecordReturnRejected(reason string) {}
func (c *recordingCollector) SetOverdueLoans(count int)          {}

func (c *recordingCollector) RecordHTTPStatus(statusCode int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses = append(c.statuses, statusCode)
}

func (c *recordingCollector) RecordRequestLatency(duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latencies++
}

func TestMetricsMiddleware_RecordsStatusAndLatency(t *testing.T) {
	collector := &recordingCollector{}
	handler := NewMetricsMiddleware(collector)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/return", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if len(collector.statuses) != 1 || collector.statuses[0] != http.StatusConflict {
		t.Errorf("expected status 409 recorded, got %v", collector.statuses)
	}
	if collector.latencies != 1 {
		t.Errorf("expected 1 latency observation, got %d", collector.latencies)
	}
}

func TestWriteErrorResponse_Format(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteErrorResponse(rec, http.StatusNotFound, model.NewBookNotFoundError("b1"))

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected JSON content type, got %s", ct)
	}

	var body ErrorResponseBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse body: %v", err)
	}
	if body.Code != model.ErrCodeBookNotFound {
		t.Errorf("expected BOOK_NOT_FOUND, got %s", body.Code)
	}
	if body.Category != "not_found" {
		t.Errorf("expected not_found category, got %s", body.Category)
	}
}

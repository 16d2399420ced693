package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/lendman/internal/catalog"
	"github.com/hitoshi/lendman/internal/circulation"
	"github.com/hitoshi/lendman/internal/membership"
	"github.com/hitoshi/lendman/internal/metrics"
	"github.com/hitoshi/lendman/internal/middleware"
	"github.com/hitoshi/lendman/internal/report"
	"github.com/hitoshi/lendman/internal/repository"
)

// stubHealthChecker は疎通確認のスタブ。
type stubHealthChecker struct {
	err error
}

func (s *stubHealthChecker) PingContext(ctx context.Context) error {
	return s.err
}

// newTestRouter はインメモリストアと実サービスで構成したルーターを返す。
func newTestRouter(t *testing.T, checker HealthChecker) http.Handler {
	t.Helper()

	store := repository.NewMemoryStore()
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	rl := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(10000, 10000))
	t.Cleanup(rl.Stop)

	return NewRouter(&RouterDeps{
		CORSAllowedOrigin:  "http://localhost:3000",
		RateLimiter:        rl,
		Collector:          collector,
		Gatherer:           registry,
		Logger:             slog.New(slog.NewJSONHandler(io.Discard, nil)),
		BookService:        catalog.NewService(store),
		MemberService:      membership.NewService(store.Members()),
		CirculationService: circulation.NewService(store, store.Members(), store.Borrows(), store, collector),
		ReportService:      report.NewService(store.Borrows(), 5, 14),
		HealthChecker:      checker,
	})
}

func doJSON(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "192.0.2.1:500"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

// 登録から貸出、在庫枯渇、返却、再貸出までの一連のフロー。
func TestRouter_CirculationFlow(t *testing.T) {
	router := newTestRouter(t, &stubHealthChecker{})

	rec := doJSON(t, router, http.MethodPost, "/api/books",
		`{"title":"Dune","author":"Frank Herbert","isbn":"9780441013593","published_year":1965,"initial_copies":1}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add book: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var book map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &book); err != nil {
		t.Fatalf("failed to parse book: %v", err)
	}
	bookID := book["id"].(string)

	rec = doJSON(t, router, http.MethodPost, "/api/members",
		`{"name":"Alice","email":"alice@example.com"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add member: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var member map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &member); err != nil {
		t.Fatalf("failed to parse member: %v", err)
	}
	memberID := member["id"].(string)

	rec = doJSON(t, router, http.MethodPost, "/api/borrow",
		`{"book_id":"`+bookID+`","member_id":"`+memberID+`"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("borrow: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var record map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &record); err != nil {
		t.Fatalf("failed to parse record: %v", err)
	}
	borrowID := record["id"].(string)

	// 在庫枯渇
	rec = doJSON(t, router, http.MethodPost, "/api/borrow",
		`{"book_id":"`+bookID+`","member_id":"`+memberID+`"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("second borrow: expected 409, got %d", rec.Code)
	}

	// 貸出中一覧に現れる
	rec = doJSON(t, router, http.MethodGet, "/api/borrow/member/"+memberID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list outstanding: expected 200, got %d", rec.Code)
	}
	var loans []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &loans); err != nil {
		t.Fatalf("failed to parse loans: %v", err)
	}
	if len(loans) != 1 || loans[0]["book_title"] != "Dune" {
		t.Fatalf("unexpected outstanding loans: %v", loans)
	}

	// 返却
	rec = doJSON(t, router, http.MethodPost, "/api/return", `{"borrow_id":"`+borrowID+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("return: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	// 二重返却は拒否
	rec = doJSON(t, router, http.MethodPost, "/api/return", `{"borrow_id":"`+borrowID+`"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("double return: expected 409, got %d", rec.Code)
	}

	// 返却後は再び貸出できる
	rec = doJSON(t, router, http.MethodPost, "/api/borrow",
		`{"book_id":"`+bookID+`","member_id":"`+memberID+`"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("borrow after return: expected 201, got %d", rec.Code)
	}

	// レポートに累計2回の貸出が現れる
	rec = doJSON(t, router, http.MethodGet, "/api/reports/top-borrowed", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("top borrowed: expected 200, got %d", rec.Code)
	}
	var counts []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &counts); err != nil {
		t.Fatalf("failed to parse counts: %v", err)
	}
	if len(counts) != 1 || counts[0]["borrow_count"] != float64(2) {
		t.Fatalf("unexpected top borrowed report: %v", counts)
	}
}

func TestRouter_OverdueReportEmptyForFreshLoans(t *testing.T) {
	router := newTestRouter(t, &stubHealthChecker{})

	rec := doJSON(t, router, http.MethodGet, "/api/reports/overdue", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var loans []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &loans); err != nil {
		t.Fatalf("failed to parse loans: %v", err)
	}
	if len(loans) != 0 {
		t.Errorf("expected empty overdue report, got %v", loans)
	}
}

func TestRouter_Health(t *testing.T) {
	router := newTestRouter(t, &stubHealthChecker{})

	rec := doJSON(t, router, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("unexpected health body: %s", rec.Body.String())
	}
}

func TestRouter_HealthUnavailableWhenPingFails(t *testing.T) {
	router := newTestRouter(t, &stubHealthChecker{err: errors.New("connection refused")})

	rec := doJSON(t, router, http.MethodGet, "/health", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestRouter_MetricsExposed(t *testing.T) {
	router := newTestRouter(t, &stubHealthChecker{})

	// メトリクスに何か記録させる
	doJSON(t, router, http.MethodGet, "/api/books", "")

	rec := doJSON(t, router, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "lendman_http_status_total") {
		t.Errorf("expected http status metric in exposition, got: %.200s", rec.Body.String())
	}
}

func TestRouter_UnknownBookReturns404(t *testing.T) {
	router := newTestRouter(t, &stubHealthChecker{})

	rec := doJSON(t, router, http.MethodGet, "/api/books/no-such-book", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var errResp apiErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("failed to parse error response: %v", err)
	}
	if errResp.Category != "not_found" {
		t.Errorf("expected not_found category, got %s", errResp.Category)
	}
}

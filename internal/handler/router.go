package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/lendman/internal/metrics"
	"github.com/hitoshi/lendman/internal/middleware"
)

// HealthChecker はヘルスチェックで利用するデータベース疎通確認のインターフェース。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Collector         metrics.MetricsCollector
	Gatherer          prometheus.Gatherer
	Logger            *slog.Logger

	// サービス
	BookService        BookServiceInterface
	MemberService      MemberServiceInterface
	CirculationService CirculationServiceInterface
	ReportService      ReportServiceInterface

	// ヘルスチェック
	HealthChecker HealthChecker
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORS → SecurityHeaders → Recovery → Logging → Metrics → RateLimit(General)
//
// /health と /metrics はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// 全ルートに効くミドルウェア
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewMetricsMiddleware(deps.Collector))

	bookHandler := NewBookHandler(deps.BookService)
	memberHandler := NewMemberHandler(deps.MemberService)
	circulationHandler := NewCirculationHandler(deps.CirculationService)
	reportHandler := NewReportHandler(deps.ReportService)

	// --- 運用ルート（レート制限の外） ---

	r.Get("/health", healthHandler(deps.HealthChecker))
	r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))

	// --- APIルート ---
	// ミドルウェアスタック: RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 蔵書管理
		r.Route("/api/books", func(r chi.Router) {
			r.Post("/", bookHandler.AddBook)
			r.Get("/", bookHandler.ListBooks)
			r.Get("/{id}", bookHandler.GetBook)
		})

		// 会員管理
		r.Route("/api/members", func(r chi.Router) {
			r.Post("/", memberHandler.AddMember)
			r.Get("/{id}", memberHandler.GetMember)
		})

		// 貸出・返却（専用レート制限を追加）
		r.With(deps.RateLimiter.CirculationMiddleware()).Post("/api/borrow", circulationHandler.Borrow)
		r.With(deps.RateLimiter.CirculationMiddleware()).Post("/api/return", circulationHandler.Return)
		r.Get("/api/borrow/member/{memberId}", circulationHandler.ListOutstanding)

		// レポート
		r.Route("/api/reports", func(r chi.Router) {
			r.Get("/top-borrowed", reportHandler.TopBorrowed)
			r.Get("/overdue", reportHandler.Overdue)
		})
	})

	return r
}

// healthHandler はデータベース疎通を確認するヘルスチェックハンドラーを返す。
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")

		if err := checker.PingContext(ctx); err != nil {
			slog.Error("health check failed", slog.String("error", err.Error()))
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "unhealthy"})
			return
		}

		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

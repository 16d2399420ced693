package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/hitoshi/lendman/internal/model"
	"github.com/hitoshi/lendman/internal/repository"
)

// ReportServiceInterface はレポートハンドラーが必要とするサービスインターフェース。
type ReportServiceInterface interface {
	// TopBorrowed は累計貸出回数の上位書籍を返す。
	TopBorrowed(ctx context.Context, limit int) ([]repository.BorrowCount, error)
	// Overdue は延滞中の貸出レコードを返す。
	Overdue(ctx context.Context, days int) ([]repository.OverdueLoan, error)
}

// ReportHandler はレポートのHTTPハンドラー。
type ReportHandler struct {
	service ReportServiceInterface
}

// NewReportHandler はReportHandlerを生成する。
func NewReportHandler(service ReportServiceInterface) *ReportHandler {
	return &ReportHandler{service: service}
}

// borrowCountResponse は貸出回数集計のAPIレスポンス。
type borrowCountResponse struct {
	BookID      string `json:"book_id"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	BorrowCount int    `json:"borrow_count"`
}

// overdueLoanResponse は延滞レコードのAPIレスポンス。会員・書籍情報を含む。
type overdueLoanResponse struct {
	ID          string `json:"id"`
	BookID      string `json:"book_id"`
	BookTitle   string `json:"book_title"`
	MemberID    string `json:"member_id"`
	MemberName  string `json:"member_name"`
	MemberEmail string `json:"member_email"`
	BorrowedAt  string `json:"borrowed_at"`
}

// TopBorrowed は貸出回数上位レポートを取得する。
// GET /api/reports/top-borrowed?limit=N
func (h *ReportHandler) TopBorrowed(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseOptionalPositiveInt(r.URL.Query().Get("limit"))
	if !ok {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidArgumentError("limitは正の整数を指定してください"))
		return
	}

	counts, err := h.service.TopBorrowed(r.Context(), limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]borrowCountResponse, 0, len(counts))
	for _, c := range counts {
		resp = append(resp, borrowCountResponse{
			BookID:      c.BookID,
			Title:       c.Title,
			Author:      c.Author,
			BorrowCount: c.BorrowCount,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// Overdue は延滞レポートを取得する。
// GET /api/reports/overdue?days=N
func (h *ReportHandler) Overdue(w http.ResponseWriter, r *http.Request) {
	days, ok := parseOptionalPositiveInt(r.URL.Query().Get("days"))
	if !ok {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidArgumentError("daysは正の整数を指定してください"))
		return
	}

	loans, err := h.service.Overdue(r.Context(), days)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]overdueLoanResponse, 0, len(loans))
	for i := range loans {
		resp = append(resp, overdueLoanResponse{
			ID:          loans[i].ID,
			BookID:      loans[i].BookID,
			BookTitle:   loans[i].BookTitle,
			MemberID:    loans[i].MemberID,
			MemberName:  loans[i].MemberName,
			MemberEmail: loans[i].MemberEmail,
			BorrowedAt:  loans[i].BorrowedAt.UTC().Format(time.RFC3339),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// parseOptionalPositiveInt はクエリパラメータを解析する。
// 未指定は0（サービス側で既定値に置き換え）、正の整数以外はエラー。
func parseOptionalPositiveInt(raw string) (int, bool) {
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/lendman/internal/model"
	"github.com/hitoshi/lendman/internal/repository"
)

// CirculationServiceInterface は貸出・返却ハンドラーが必要とするサービスインターフェース。
type CirculationServiceInterface interface {
	// Borrow は書籍を会員に貸し出す。
	Borrow(ctx context.Context, bookID, memberID string) (*model.BorrowRecord, error)
	// Return は貸出レコードを返却済みにする。
	Return(ctx context.Context, recordID string) (*model.BorrowRecord, error)
	// ListOutstandingByMember は会員の貸出中レコードを返す。
	ListOutstandingByMember(ctx context.Context, memberID string) ([]repository.OutstandingLoan, error)
}

// CirculationHandler は貸出・返却のHTTPハンドラー。
type CirculationHandler struct {
	service CirculationServiceInterface
}

// NewCirculationHandler はCirculationHandlerを生成する。
func NewCirculationHandler(service CirculationServiceInterface) *CirculationHandler {
	return &CirculationHandler{service: service}
}

// borrowRequest は貸出リクエストのボディ。
type borrowRequest struct {
	BookID   string `json:"book_id"`
	MemberID string `json:"member_id"`
}

// returnRequest は返却リクエストのボディ。
type returnRequest struct {
	BorrowID string `json:"borrow_id"`
}

// borrowRecordResponse は貸出レコードのAPIレスポンス。
type borrowRecordResponse struct {
	ID         string  `json:"id"`
	BookID     string  `json:"book_id"`
	MemberID   string  `json:"member_id"`
	BorrowedAt string  `json:"borrowed_at"`
	ReturnedAt *string `json:"returned_at,omitempty"`
	IsReturned bool    `json:"is_returned"`
}

// outstandingLoanResponse は貸出中レコードのAPIレスポンス。書籍情報を含む。
type outstandingLoanResponse struct {
	borrowRecordResponse
	BookTitle  string `json:"book_title"`
	BookAuthor string `json:"book_author"`
}

// Borrow は貸出を処理する。
// POST /api/borrow
func (h *CirculationHandler) Borrow(w http.ResponseWriter, r *http.Request) {
	var req borrowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBodyResponse(w)
		return
	}

	if strings.TrimSpace(req.BookID) == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidArgumentError("book_idが空です"))
		return
	}
	if strings.TrimSpace(req.MemberID) == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidArgumentError("member_idが空です"))
		return
	}

	record, err := h.service.Borrow(r.Context(), req.BookID, req.MemberID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toBorrowRecordResponse(record))
}

// Return は返却を処理する。
// POST /api/return
func (h *CirculationHandler) Return(w http.ResponseWriter, r *http.Request) {
	var req returnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBodyResponse(w)
		return
	}

	if strings.TrimSpace(req.BorrowID) == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidArgumentError("borrow_idが空です"))
		return
	}

	record, err := h.service.Return(r.Context(), req.BorrowID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toBorrowRecordResponse(record))
}

// ListOutstanding は会員の貸出中一覧を取得する。
// GET /api/borrow/member/:memberId
func (h *CirculationHandler) ListOutstanding(w http.ResponseWriter, r *http.Request) {
	memberID := chi.URLParam(r, "memberId")

	loans, err := h.service.ListOutstandingByMember(r.Context(), memberID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]outstandingLoanResponse, 0, len(loans))
	for i := range loans {
		resp = append(resp, outstandingLoanResponse{
			borrowRecordResponse: toBorrowRecordResponse(&loans[i].BorrowRecord),
			BookTitle:            loans[i].BookTitle,
			BookAuthor:           loans[i].BookAuthor,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// toBorrowRecordResponse はモデルをAPIレスポンスに変換する。
func toBorrowRecordResponse(record *model.BorrowRecord) borrowRecordResponse {
	resp := borrowRecordResponse{
		ID:         record.ID,
		BookID:     record.BookID,
		MemberID:   record.MemberID,
		BorrowedAt: record.BorrowedAt.UTC().Format(time.RFC3339),
		IsReturned: record.IsReturned,
	}
	if record.ReturnedAt != nil {
		returnedAt := record.ReturnedAt.UTC().Format(time.RFC3339)
		resp.ReturnedAt = &returnedAt
	}
	return resp
}

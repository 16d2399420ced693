package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/lendman/internal/catalog"
	"github.com/hitoshi/lendman/internal/model"
)

// BookServiceInterface は書籍ハンドラーが必要とするサービスインターフェース。
type BookServiceInterface interface {
	// AddBook は書籍を登録する。
	AddBook(ctx context.Context, in catalog.AddBookInput) (*model.Book, error)
	// GetBook は書籍情報を取得する。
	GetBook(ctx context.Context, id string) (*model.Book, error)
	// ListBooks は全書籍を貸出可否付きで返す。
	ListBooks(ctx context.Context) ([]catalog.BookListing, error)
}

// BookHandler は蔵書管理のHTTPハンドラー。
type BookHandler struct {
	service BookServiceInterface
}

// NewBookHandler はBookHandlerを生成する。
func NewBookHandler(service BookServiceInterface) *BookHandler {
	return &BookHandler{service: service}
}

// addBookRequest は書籍登録リクエストのボディ。
type addBookRequest struct {
	Title         string `json:"title"`
	Author        string `json:"author"`
	ISBN          string `json:"isbn"`
	PublishedYear int    `json:"published_year"`
	InitialCopies int    `json:"initial_copies"`
}

// bookResponse は書籍情報のAPIレスポンス。
type bookResponse struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Author          string `json:"author"`
	ISBN            string `json:"isbn"`
	PublishedYear   int    `json:"published_year"`
	AvailableCopies int    `json:"available_copies"`
	IsAvailable     bool   `json:"is_available"`
	CreatedAt       string `json:"created_at"`
}

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// AddBook は書籍登録を処理する。
// POST /api/books
func (h *BookHandler) AddBook(w http.ResponseWriter, r *http.Request) {
	var req addBookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBodyResponse(w)
		return
	}

	if strings.TrimSpace(req.Title) == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidArgumentError("タイトルが空です"))
		return
	}
	if strings.TrimSpace(req.Author) == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidArgumentError("著者が空です"))
		return
	}
	if strings.TrimSpace(req.ISBN) == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidArgumentError("ISBNが空です"))
		return
	}

	book, err := h.service.AddBook(r.Context(), catalog.AddBookInput{
		Title:         strings.TrimSpace(req.Title),
		Author:        strings.TrimSpace(req.Author),
		ISBN:          strings.TrimSpace(req.ISBN),
		PublishedYear: req.PublishedYear,
		InitialCopies: req.InitialCopies,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toBookResponse(book))
}

// GetBook は書籍詳細を取得する。
// GET /api/books/:id
func (h *BookHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	bookID := chi.URLParam(r, "id")

	book, err := h.service.GetBook(r.Context(), bookID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toBookResponse(book))
}

// ListBooks は全書籍の一覧を取得する。
// GET /api/books
func (h *BookHandler) ListBooks(w http.ResponseWriter, r *http.Request) {
	listings, err := h.service.ListBooks(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]bookResponse, 0, len(listings))
	for i := range listings {
		item := toBookResponse(&listings[i].Book)
		item.IsAvailable = listings[i].IsAvailable
		resp = append(resp, item)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// toBookResponse はモデルをAPIレスポンスに変換する。
func toBookResponse(book *model.Book) bookResponse {
	return bookResponse{
		ID:              book.ID,
		Title:           book.Title,
		Author:          book.Author,
		ISBN:            book.ISBN,
		PublishedYear:   book.PublishedYear,
		AvailableCopies: book.AvailableCopies,
		IsAvailable:     book.IsAvailable(),
		CreatedAt:       book.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// writeAPIErrorResponse は統一エラーフォーマットでレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// writeInvalidBodyResponse はリクエストボディ解析失敗のレスポンスを書き込む。
func writeInvalidBodyResponse(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
		Code:     "INVALID_REQUEST",
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	})
}

// handleServiceError はサービス層のエラーをHTTPレスポンスに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIエラーコードをHTTPステータスコードに対応付ける。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeBookNotFound, model.ErrCodeMemberNotFound, model.ErrCodeRecordNotFound:
		return http.StatusNotFound
	case model.ErrCodeDuplicateISBN, model.ErrCodeDuplicateEmail:
		return http.StatusConflict
	case model.ErrCodeInvalidArgument:
		return http.StatusBadRequest
	case model.ErrCodeNoCopiesAvailable, model.ErrCodeAlreadyReturned:
		return http.StatusConflict
	case model.ErrCodeTransactionFailed:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/lendman/internal/membership"
	"github.com/hitoshi/lendman/internal/model"
)

// MemberServiceInterface は会員ハンドラーが必要とするサービスインターフェース。
type MemberServiceInterface interface {
	// AddMember は会員を登録する。
	AddMember(ctx context.Context, in membership.AddMemberInput) (*model.Member, error)
	// GetMember は会員情報を取得する。
	GetMember(ctx context.Context, id string) (*model.Member, error)
}

// MemberHandler は会員管理のHTTPハンドラー。
type MemberHandler struct {
	service MemberServiceInterface
}

// NewMemberHandler はMemberHandlerを生成する。
func NewMemberHandler(service MemberServiceInterface) *MemberHandler {
	return &MemberHandler{service: service}
}

// addMemberRequest は会員登録リクエストのボディ。
type addMemberRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// memberResponse は会員情報のAPIレスポンス。
type memberResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	JoinedAt string `json:"joined_at"`
}

// AddMember は会員登録を処理する。
// POST /api/members
func (h *MemberHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	var req addMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBodyResponse(w)
		return
	}

	if strings.TrimSpace(req.Name) == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidArgumentError("氏名が空です"))
		return
	}
	email := strings.TrimSpace(req.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidArgumentError("メールアドレスの形式が不正です"))
		return
	}

	member, err := h.service.AddMember(r.Context(), membership.AddMemberInput{
		Name:  strings.TrimSpace(req.Name),
		Email: email,
		Phone: strings.TrimSpace(req.Phone),
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toMemberResponse(member))
}

// GetMember は会員詳細を取得する。
// GET /api/members/:id
func (h *MemberHandler) GetMember(w http.ResponseWriter, r *http.Request) {
	memberID := chi.URLParam(r, "id")

	member, err := h.service.GetMember(r.Context(), memberID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toMemberResponse(member))
}

// toMemberResponse はモデルをAPIレスポンスに変換する。
func toMemberResponse(member *model.Member) memberResponse {
	return memberResponse{
		ID:       member.ID,
		Name:     member.Name,
		Email:    member.Email,
		Phone:    member.Phone,
		JoinedAt: member.JoinedAt.UTC().Format(time.RFC3339),
	}
}

// Package membership は会員管理のドメインロジックを提供する。
package membership

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/lendman/internal/model"
	"github.com/hitoshi/lendman/internal/repository"
)

// AddMemberInput は会員登録の入力。
type AddMemberInput struct {
	Name  string
	Email string
	Phone string
}

// Service は会員管理のサービス層。
type Service struct {
	memberRepo repository.MemberRepository
	now        func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(memberRepo repository.MemberRepository) *Service {
	return &Service{
		memberRepo: memberRepo,
		now:        time.Now,
	}
}

// AddMember は会員を登録する。入会日時は登録時刻で固定される。
// メールアドレスが登録済みの場合は登録しない。
// 一意インデックスが並行登録の最終防壁になる。
func (s *Service) AddMember(ctx context.Context, in AddMemberInput) (*model.Member, error) {
	existing, err := s.memberRepo.FindByEmail(ctx, in.Email)
	if err != nil {
		return nil, fmt.Errorf("会員の検索に失敗しました: %w", err)
	}
	if existing != nil {
		return nil, model.NewDuplicateEmailError(in.Email)
	}

	member := &model.Member{
		ID:       uuid.New().String(),
		Name:     in.Name,
		Email:    in.Email,
		Phone:    in.Phone,
		JoinedAt: s.now().UTC(),
	}

	if err := s.memberRepo.Create(ctx, member); err != nil {
		return nil, fmt.Errorf("会員の登録に失敗しました: %w", err)
	}

	return member, nil
}

// GetMember は指定IDの会員を取得する。
func (s *Service) GetMember(ctx context.Context, id string) (*model.Member, error) {
	member, err := s.memberRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("会員の取得に失敗しました: %w", err)
	}
	if member == nil {
		return nil, model.NewMemberNotFoundError(id)
	}
	return member, nil
}

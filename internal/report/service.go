// Package report は貸出実績と延滞状況の集計レポートを提供する。
package report

import (
	"context"
	"fmt"
	"time"

	"github.com/hitoshi/lendman/internal/repository"
)

// Service はレポート生成のサービス層。
// いずれのレポートも読み取り専用の単一クエリで、書き込み経路には触れない。
type Service struct {
	borrowRepo           repository.BorrowRepository
	defaultLimit         int
	defaultThresholdDays int
	now                  func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// defaultLimitとdefaultThresholdDaysは呼び出し側が値を指定しなかった
// 場合の既定値として使われる。
func NewService(borrowRepo repository.BorrowRepository, defaultLimit, defaultThresholdDays int) *Service {
	return &Service{
		borrowRepo:           borrowRepo,
		defaultLimit:         defaultLimit,
		defaultThresholdDays: defaultThresholdDays,
		now:                  time.Now,
	}
}

// TopBorrowed は累計貸出回数の多い書籍を上位limit件返す。
// 返却済みのレコードも集計に含まれる。limitが0以下の場合は既定値を使う。
// 同数の書籍は書籍IDの昇順で並び、結果は決定的。
func (s *Service) TopBorrowed(ctx context.Context, limit int) ([]repository.BorrowCount, error) {
	if limit <= 0 {
		limit = s.defaultLimit
	}
	counts, err := s.borrowRepo.TopBorrowed(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to build top borrowed report: %w", err)
	}
	return counts, nil
}

// Overdue は貸出からdays日を超えて未返却のレコードを会員・書籍情報付きで返す。
// daysが0以下の場合は既定の延滞しきい値を使う。返却済みのレコードは
// 貸出期間の長さに関係なく含まれない。
func (s *Service) Overdue(ctx context.Context, days int) ([]repository.OverdueLoan, error) {
	if days <= 0 {
		days = s.defaultThresholdDays
	}
	cutoff := s.now().UTC().Add(-time.Duration(days) * 24 * time.Hour)
	loans, err := s.borrowRepo.ListOverdue(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to build overdue report: %w", err)
	}
	return loans, nil
}

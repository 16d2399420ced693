// Package circulation は貸出・返却の状態機械を提供する。
// 在庫カウンタの変更とレコードのライフサイクルを単一の書き込み経路として
// 調停する、このシステムの中核。
package circulation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/lendman/internal/metrics"
	"github.com/hitoshi/lendman/internal/model"
	"github.com/hitoshi/lendman/internal/repository"
)

// Service は貸出・返却のサービス層。
// 在庫カウンタを変更する唯一のコンポーネントであり、
// カウンタ更新とレコード書き込みは常に同一の単位作業で適用する。
type Service struct {
	bookRepo   repository.BookRepository
	memberRepo repository.MemberRepository
	borrowRepo repository.BorrowRepository
	uow        repository.CirculationUnitOfWork
	collector  metrics.MetricsCollector
	now        func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	bookRepo repository.BookRepository,
	memberRepo repository.MemberRepository,
	borrowRepo repository.BorrowRepository,
	uow repository.CirculationUnitOfWork,
	collector metrics.MetricsCollector,
) *Service {
	return &Service{
		bookRepo:   bookRepo,
		memberRepo: memberRepo,
		borrowRepo: borrowRepo,
		uow:        uow,
		collector:  collector,
		now:        time.Now,
	}
}

// Borrow は書籍を会員に貸し出す。
//
// 書籍・会員の解決後、1トランザクションで条件付き在庫減算と
// 貸出レコード作成を行う。在庫の最終判定はトランザクション内の
// 条件付きUPDATEであり、残り1冊を並行して取り合った場合も
// 成功するのはちょうど1件。失敗時は全変更がロールバックされる。
func (s *Service) Borrow(ctx context.Context, bookID, memberID string) (*model.BorrowRecord, error) {
	book, err := s.bookRepo.FindByID(ctx, bookID)
	if err != nil {
		return nil, s.rejectBorrow(s.asTransactionFailed("書籍の解決", err))
	}
	if book == nil {
		return nil, s.rejectBorrow(model.NewBookNotFoundError(bookID))
	}

	member, err := s.memberRepo.FindByID(ctx, memberID)
	if err != nil {
		return nil, s.rejectBorrow(s.asTransactionFailed("会員の解決", err))
	}
	if member == nil {
		return nil, s.rejectBorrow(model.NewMemberNotFoundError(memberID))
	}

	// 早期チェック。正確な判定はトランザクション内の条件付き更新で行う。
	if book.AvailableCopies <= 0 {
		return nil, s.rejectBorrow(model.NewNoCopiesAvailableError(bookID))
	}

	var record *model.BorrowRecord
	err = s.uow.WithinTx(ctx, func(tx repository.CirculationTx) error {
		ok, err := tx.DecrementAvailableCopies(ctx, bookID)
		if err != nil {
			return err
		}
		if !ok {
			return model.NewNoCopiesAvailableError(bookID)
		}

		record = &model.BorrowRecord{
			ID:         uuid.New().String(),
			BookID:     bookID,
			MemberID:   memberID,
			BorrowedAt: s.now().UTC(),
			IsReturned: false,
		}
		return tx.InsertBorrowRecord(ctx, record)
	})
	if err != nil {
		return nil, s.rejectBorrow(s.coerce("貸出トランザクション", err))
	}

	s.collector.RecordBorrowSuccess()
	slog.Info("borrow accepted",
		slog.String("record_id", record.ID),
		slog.String("book_id", bookID),
		slog.String("member_id", memberID),
	)
	return record, nil
}

// Return は貸出レコードを返却済みに遷移させる。
//
// 1トランザクションで行ロック付きの状態確認、条件付き遷移、
// 在庫加算を行う。返却済みレコードへの再適用は拒否され、
// 在庫が二重に加算されることはない。
func (s *Service) Return(ctx context.Context, recordID string) (*model.BorrowRecord, error) {
	var record *model.BorrowRecord
	err := s.uow.WithinTx(ctx, func(tx repository.CirculationTx) error {
		found, err := tx.FindBorrowRecordForUpdate(ctx, recordID)
		if err != nil {
			return err
		}
		if found == nil {
			return model.NewRecordNotFoundError(recordID)
		}
		if found.IsReturned {
			return model.NewAlreadyReturnedError(recordID)
		}

		returnedAt := s.now().UTC()
		ok, err := tx.MarkReturned(ctx, recordID, returnedAt)
		if err != nil {
			return err
		}
		if !ok {
			// 行ロック取得後のため通常到達しないが、遷移できなければ返却済み扱い
			return model.NewAlreadyReturnedError(recordID)
		}

		if err := tx.IncrementAvailableCopies(ctx, found.BookID); err != nil {
			return err
		}

		found.IsReturned = true
		found.ReturnedAt = &returnedAt
		record = found
		return nil
	})
	if err != nil {
		coerced := s.coerce("返却トランザクション", err)
		var apiErr *model.APIError
		if errors.As(coerced, &apiErr) {
			s.collector.RecordReturnRejected(apiErr.Code)
		}
		return nil, coerced
	}

	s.collector.RecordReturnSuccess()
	slog.Info("return accepted",
		slog.String("record_id", record.ID),
		slog.String("book_id", record.BookID),
	)
	return record, nil
}

// ListOutstandingByMember は指定会員の貸出中レコードを書籍情報付きで返す。
// 単一クエリのスナップショットであり、適用途中の貸出・返却を観測しない。
func (s *Service) ListOutstandingByMember(ctx context.Context, memberID string) ([]repository.OutstandingLoan, error) {
	loans, err := s.borrowRepo.ListOutstandingByMember(ctx, memberID)
	if err != nil {
		return nil, s.asTransactionFailed("貸出中一覧の取得", err)
	}
	return loans, nil
}

// rejectBorrow は貸出拒否をメトリクスに記録してエラーをそのまま返す。
func (s *Service) rejectBorrow(err error) error {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		s.collector.RecordBorrowRejected(apiErr.Code)
	}
	return err
}

// coerce はトランザクションから返されたエラーを呼び出し側向けに整える。
// APIError（在庫なし・返却済み等のドメイン上の拒否）はそのまま通し、
// それ以外の予期しない永続化エラーはログに記録してTRANSACTION_FAILEDに変換する。
// いずれの場合もロールバック済みで、状態は呼び出し前のまま。
func (s *Service) coerce(op string, err error) error {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	slog.Error("circulation transaction failed",
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
	return model.NewTransactionFailedError()
}

// asTransactionFailed はトランザクション外の予期しない永続化エラーを
// ログに記録してTRANSACTION_FAILEDに変換する。
func (s *Service) asTransactionFailed(op string, err error) error {
	slog.Error("circulation lookup failed",
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
	return model.NewTransactionFailedError()
}

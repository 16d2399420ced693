package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/lendman/internal/model"
)

// PostgresCirculationUnitOfWork はPostgreSQLトランザクションによる単位作業の実装。
// 貸出のチェック・減算・レコード作成、返却のチェック・加算・状態遷移は
// それぞれ1トランザクションで実行され、全適用または全破棄となる。
type PostgresCirculationUnitOfWork struct {
	db *sql.DB
}

// NewPostgresCirculationUnitOfWork はPostgresCirculationUnitOfWorkを生成する。
func NewPostgresCirculationUnitOfWork(db *sql.DB) *PostgresCirculationUnitOfWork {
	return &PostgresCirculationUnitOfWork{db: db}
}

// WithinTx はトランザクションを開始してfnを実行する。
// fnがエラーを返した場合はロールバックし、そのエラーをそのまま返す。
// コミット失敗時も状態は変更されない。
func (u *PostgresCirculationUnitOfWork) WithinTx(ctx context.Context, fn func(tx CirculationTx) error) error {
	tx, err := u.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&postgresCirculationTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// postgresCirculationTx は進行中トランザクションに対する操作群。
type postgresCirculationTx struct {
	tx *sql.Tx
}

// DecrementAvailableCopies は在庫がある場合に限りavailable_copiesを1減らす。
// 条件付きUPDATEの行ロックにより、並行する貸出は直列化され、
// 最後の1冊を取り合った場合もちょうど1件だけが成功する。
func (t *postgresCirculationTx) DecrementAvailableCopies(ctx context.Context, bookID string) (bool, error) {
	result, err := t.tx.ExecContext(ctx,
		`UPDATE books
		 SET available_copies = available_copies - 1, updated_at = now()
		 WHERE id = $1 AND available_copies > 0`,
		bookID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to decrement available copies: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return affected > 0, nil
}

// IncrementAvailableCopies はavailable_copiesを1増やす。
func (t *postgresCirculationTx) IncrementAvailableCopies(ctx context.Context, bookID string) error {
	result, err := t.tx.ExecContext(ctx,
		`UPDATE books
		 SET available_copies = available_copies + 1, updated_at = now()
		 WHERE id = $1`,
		bookID,
	)
	if err != nil {
		return fmt.Errorf("failed to increment available copies: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("book not found: %s", bookID)
	}

	return nil
}

// InsertBorrowRecord は貸出レコードを作成する。
func (t *postgresCirculationTx) InsertBorrowRecord(ctx context.Context, record *model.BorrowRecord) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO borrow_records (id, book_id, member_id, borrowed_at, returned_at, is_returned)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		record.ID, record.BookID, record.MemberID,
		record.BorrowedAt, record.ReturnedAt, record.IsReturned,
	)
	if err != nil {
		return fmt.Errorf("failed to insert borrow record: %w", err)
	}
	return nil
}

// FindBorrowRecordForUpdate は貸出レコードを行ロック付きで取得する。
// 見つからない場合はnilを返す。
func (t *postgresCirculationTx) FindBorrowRecordForUpdate(ctx context.Context, id string) (*model.BorrowRecord, error) {
	record := &model.BorrowRecord{}
	err := t.tx.QueryRowContext(ctx,
		`SELECT id, book_id, member_id, borrowed_at, returned_at, is_returned
		 FROM borrow_records WHERE id = $1
		 FOR UPDATE`,
		id,
	).Scan(&record.ID, &record.BookID, &record.MemberID,
		&record.BorrowedAt, &record.ReturnedAt, &record.IsReturned)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find borrow record for update: %w", err)
	}

	return record, nil
}

// MarkReturned は未返却の場合に限りレコードを返却済みに遷移させる。
// is_returned = FALSE を条件に含めることで二重返却を排除する。
func (t *postgresCirculationTx) MarkReturned(ctx context.Context, id string, returnedAt time.Time) (bool, error) {
	result, err := t.tx.ExecContext(ctx,
		`UPDATE borrow_records
		 SET is_returned = TRUE, returned_at = $2
		 WHERE id = $1 AND is_returned = FALSE`,
		id, returnedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark record returned: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return affected > 0, nil
}

// compile-time interface checks
var (
	_ CirculationUnitOfWork = (*PostgresCirculationUnitOfWork)(nil)
	_ CirculationTx         = (*postgresCirculationTx)(nil)
)

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/lendman/internal/model"
)

// PostgresBorrowRepo はPostgreSQLを使用した貸出レコードの読み取りリポジトリ。
// 集計・結合クエリはいずれも単一ステートメントで実行し、
// ステートメントスナップショットにより一貫した読み取りを得る。
type PostgresBorrowRepo struct {
	db *sql.DB
}

// NewPostgresBorrowRepo はPostgresBorrowRepoを生成する。
func NewPostgresBorrowRepo(db *sql.DB) *PostgresBorrowRepo {
	return &PostgresBorrowRepo{db: db}
}

// FindByID は指定IDの貸出レコードを取得する。見つからない場合はnilを返す。
func (r *PostgresBorrowRepo) FindByID(ctx context.Context, id string) (*model.BorrowRecord, error) {
	record := &model.BorrowRecord{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, book_id, member_id, borrowed_at, returned_at, is_returned
		 FROM borrow_records WHERE id = $1`,
		id,
	).Scan(&record.ID, &record.BookID, &record.MemberID,
		&record.BorrowedAt, &record.ReturnedAt, &record.IsReturned)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find borrow record by ID: %w", err)
	}

	return record, nil
}

// ListOutstandingByMember は指定会員の貸出中レコードを書籍情報付きで返す。
func (r *PostgresBorrowRepo) ListOutstandingByMember(ctx context.Context, memberID string) ([]OutstandingLoan, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT r.id, r.book_id, r.member_id, r.borrowed_at, r.returned_at, r.is_returned,
		        b.title, b.author
		 FROM borrow_records r
		 JOIN books b ON b.id = r.book_id
		 WHERE r.member_id = $1 AND r.is_returned = FALSE
		 ORDER BY r.borrowed_at ASC, r.id ASC`,
		memberID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list outstanding loans: %w", err)
	}
	defer rows.Close()

	var loans []OutstandingLoan
	for rows.Next() {
		var loan OutstandingLoan
		if err := rows.Scan(&loan.ID, &loan.BookID, &loan.MemberID,
			&loan.BorrowedAt, &loan.ReturnedAt, &loan.IsReturned,
			&loan.BookTitle, &loan.BookAuthor); err != nil {
			return nil, fmt.Errorf("failed to scan outstanding loan row: %w", err)
		}
		loans = append(loans, loan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate outstanding loan rows: %w", err)
	}

	return loans, nil
}

// TopBorrowed は累計貸出回数の上位limit冊を返す。
// 回数降順、同数の場合は書籍ID昇順。一度も貸し出されていない書籍は含まれない。
func (r *PostgresBorrowRepo) TopBorrowed(ctx context.Context, limit int) ([]BorrowCount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT b.id, b.title, b.author, COUNT(*) AS borrow_count
		 FROM borrow_records r
		 JOIN books b ON b.id = r.book_id
		 GROUP BY b.id, b.title, b.author
		 ORDER BY borrow_count DESC, b.id ASC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query top borrowed books: %w", err)
	}
	defer rows.Close()

	var counts []BorrowCount
	for rows.Next() {
		var c BorrowCount
		if err := rows.Scan(&c.BookID, &c.Title, &c.Author, &c.BorrowCount); err != nil {
			return nil, fmt.Errorf("failed to scan top borrowed row: %w", err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate top borrowed rows: %w", err)
	}

	return counts, nil
}

// ListOverdue は貸出中かつborrowed_atがcutoff以前のレコードを
// 会員・書籍情報付きで返す。返却済みレコードは経過日数にかかわらず含まれない。
func (r *PostgresBorrowRepo) ListOverdue(ctx context.Context, cutoff time.Time) ([]OverdueLoan, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT r.id, r.book_id, r.member_id, r.borrowed_at, r.returned_at, r.is_returned,
		        m.name, m.email, b.title
		 FROM borrow_records r
		 JOIN members m ON m.id = r.member_id
		 JOIN books b ON b.id = r.book_id
		 WHERE r.is_returned = FALSE AND r.borrowed_at <= $1
		 ORDER BY r.borrowed_at ASC, r.id ASC`,
		cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue loans: %w", err)
	}
	defer rows.Close()

	var loans []OverdueLoan
	for rows.Next() {
		var loan OverdueLoan
		if err := rows.Scan(&loan.ID, &loan.BookID, &loan.MemberID,
			&loan.BorrowedAt, &loan.ReturnedAt, &loan.IsReturned,
			&loan.MemberName, &loan.MemberEmail, &loan.BookTitle); err != nil {
			return nil, fmt.Errorf("failed to scan overdue loan row: %w", err)
		}
		loans = append(loans, loan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate overdue loan rows: %w", err)
	}

	return loans, nil
}

// compile-time interface check
var _ BorrowRepository = (*PostgresBorrowRepo)(nil)

// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/lendman/internal/model"
)

// BookRepository は蔵書データの永続化インターフェース。
type BookRepository interface {
	// FindByID は指定IDの書籍を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Book, error)

	// FindByISBN はISBNで書籍を検索する。見つからない場合はnilを返す。
	FindByISBN(ctx context.Context, isbn string) (*model.Book, error)

	// Create は書籍を作成する。ISBNの一意制約に違反した場合はエラーを返す。
	Create(ctx context.Context, book *model.Book) error

	// List は全書籍をID昇順で返す。
	List(ctx context.Context) ([]*model.Book, error)
}

// MemberRepository は会員データの永続化インターフェース。
type MemberRepository interface {
	// FindByID は指定IDの会員を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Member, error)

	// FindByEmail はメールアドレスで会員を検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.Member, error)

	// Create は会員を作成する。メールアドレスの一意制約に違反した場合はエラーを返す。
	Create(ctx context.Context, member *model.Member) error
}

// OutstandingLoan は貸出中レコードに書籍情報を結合した読み取り専用の行。
type OutstandingLoan struct {
	model.BorrowRecord
	BookTitle  string
	BookAuthor string
}

// BorrowCount は書籍ごとの累計貸出回数。
type BorrowCount struct {
	BookID      string
	Title       string
	Author      string
	BorrowCount int
}

// OverdueLoan は延滞中レコードに会員・書籍情報を結合した読み取り専用の行。
type OverdueLoan struct {
	model.BorrowRecord
	MemberName  string
	MemberEmail string
	BookTitle   string
}

// BorrowRepository は貸出レコードの読み取りインターフェース。
// いずれの操作も単一スナップショットを観測し、状態を変更しない。
// 貸出・返却による書き込みはCirculationUnitOfWorkを通してのみ行う。
type BorrowRepository interface {
	// FindByID は指定IDの貸出レコードを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.BorrowRecord, error)

	// ListOutstandingByMember は指定会員の貸出中レコードを
	// 書籍タイトル・著者付きで貸出日時昇順に返す。
	ListOutstandingByMember(ctx context.Context, memberID string) ([]OutstandingLoan, error)

	// TopBorrowed は累計貸出回数（返却済みを含む）の上位limit冊を返す。
	// 回数降順、同数の場合は書籍ID昇順で順序は決定的。
	TopBorrowed(ctx context.Context, limit int) ([]BorrowCount, error)

	// ListOverdue は貸出中かつ borrowed_at <= cutoff のレコードを
	// 会員名・メールアドレス・書籍タイトル付きで貸出日時昇順に返す。
	ListOverdue(ctx context.Context, cutoff time.Time) ([]OverdueLoan, error)
}

// CirculationTx は貸出・返却トランザクション内で使用できる操作群。
// WithinTxに渡された関数の中でのみ有効。
type CirculationTx interface {
	// DecrementAvailableCopies は在庫が1冊以上ある場合に限り
	// available_copiesを1減らす。減らせた場合はtrueを返す。
	// 条件付き更新のため、並行する貸出があってもカウンタが負になることはない。
	DecrementAvailableCopies(ctx context.Context, bookID string) (bool, error)

	// IncrementAvailableCopies はavailable_copiesを1増やす。
	IncrementAvailableCopies(ctx context.Context, bookID string) error

	// InsertBorrowRecord は貸出レコードを作成する。
	InsertBorrowRecord(ctx context.Context, record *model.BorrowRecord) error

	// FindBorrowRecordForUpdate は貸出レコードを行ロック付きで取得する。
	// 見つからない場合はnilを返す。
	FindBorrowRecordForUpdate(ctx context.Context, id string) (*model.BorrowRecord, error)

	// MarkReturned は未返却の場合に限りレコードを返却済みに遷移させる。
	// 遷移できた場合はtrueを返す。返却済みレコードには作用しない。
	MarkReturned(ctx context.Context, id string, returnedAt time.Time) (bool, error)
}

// CirculationUnitOfWork は貸出・返却の単位作業（トランザクション）を提供する。
// fnがエラーを返した場合は全変更をロールバックし、そのエラーをそのまま返す。
// fnが成功した場合のみコミットする。カウンタ更新とレコード書き込みは
// 常に同一トランザクションで両方適用されるか、両方適用されないかのいずれか。
type CirculationUnitOfWork interface {
	WithinTx(ctx context.Context, fn func(tx CirculationTx) error) error
}

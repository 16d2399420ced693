package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hitoshi/lendman/internal/model"
)

// MemoryStore は全リポジトリインターフェースと単位作業のインメモリ実装。
// ストア全体を単一のミューテックスで保護し、WithinTx内の書き込みは
// コミットまでステージングされるため、PostgreSQL実装と同じ
// 原子性・スナップショット一貫性の保証を提供する。
// ユニットテストおよびDBなしでの動作確認に使用する。
type MemoryStore struct {
	mu      sync.Mutex
	books   map[string]*model.Book
	members map[string]*model.Member
	records map[string]*model.BorrowRecord
}

// NewMemoryStore は空のMemoryStoreを生成する。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		books:   make(map[string]*model.Book),
		members: make(map[string]*model.Member),
		records: make(map[string]*model.BorrowRecord),
	}
}

// --- BookRepository ---

// FindByID は指定IDの書籍を取得する。見つからない場合はnilを返す。
func (s *MemoryStore) FindByID(ctx context.Context, id string) (*model.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	book, ok := s.books[id]
	if !ok {
		return nil, nil
	}
	copied := *book
	return &copied, nil
}

// FindByISBN はISBNで書籍を検索する。見つからない場合はnilを返す。
func (s *MemoryStore) FindByISBN(ctx context.Context, isbn string) (*model.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, book := range s.books {
		if book.ISBN == isbn {
			copied := *book
			return &copied, nil
		}
	}
	return nil, nil
}

// Create は書籍を作成する。ISBN重複時は一意制約と同様にエラーを返す。
func (s *MemoryStore) Create(ctx context.Context, book *model.Book) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.books {
		if existing.ISBN == book.ISBN {
			return fmt.Errorf("duplicate key value violates unique constraint: isbn %s", book.ISBN)
		}
	}

	copied := *book
	s.books[book.ID] = &copied
	return nil
}

// List は全書籍をID昇順で返す。
func (s *MemoryStore) List(ctx context.Context) ([]*model.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	books := make([]*model.Book, 0, len(s.books))
	for _, book := range s.books {
		copied := *book
		books = append(books, &copied)
	}
	sort.Slice(books, func(i, j int) bool { return books[i].ID < books[j].ID })
	return books, nil
}

// --- MemberRepository ---

// Members はMemberRepositoryのビューを返す。
// MemoryStoreのFindByID/Createは書籍用のため、会員操作は別の型で公開する。
func (s *MemoryStore) Members() *MemoryMemberRepo {
	return &MemoryMemberRepo{store: s}
}

// MemoryMemberRepo はMemoryStoreに対する会員リポジトリのビュー。
type MemoryMemberRepo struct {
	store *MemoryStore
}

// FindByID は指定IDの会員を取得する。見つからない場合はnilを返す。
func (r *MemoryMemberRepo) FindByID(ctx context.Context, id string) (*model.Member, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	member, ok := r.store.members[id]
	if !ok {
		return nil, nil
	}
	copied := *member
	return &copied, nil
}

// FindByEmail はメールアドレスで会員を検索する。見つからない場合はnilを返す。
func (r *MemoryMemberRepo) FindByEmail(ctx context.Context, email string) (*model.Member, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, member := range r.store.members {
		if member.Email == email {
			copied := *member
			return &copied, nil
		}
	}
	return nil, nil
}

// Create は会員を作成する。メールアドレス重複時は一意制約と同様にエラーを返す。
func (r *MemoryMemberRepo) Create(ctx context.Context, member *model.Member) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, existing := range r.store.members {
		if existing.Email == member.Email {
			return fmt.Errorf("duplicate key value violates unique constraint: email %s", member.Email)
		}
	}

	copied := *member
	r.store.members[member.ID] = &copied
	return nil
}

// --- BorrowRepository ---

// Borrows はBorrowRepositoryのビューを返す。
func (s *MemoryStore) Borrows() *MemoryBorrowRepo {
	return &MemoryBorrowRepo{store: s}
}

// MemoryBorrowRepo はMemoryStoreに対する貸出レコードリポジトリのビュー。
type MemoryBorrowRepo struct {
	store *MemoryStore
}

// FindByID は指定IDの貸出レコードを取得する。見つからない場合はnilを返す。
func (r *MemoryBorrowRepo) FindByID(ctx context.Context, id string) (*model.BorrowRecord, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	record, ok := r.store.records[id]
	if !ok {
		return nil, nil
	}
	copied := copyRecord(record)
	return &copied, nil
}

// ListOutstandingByMember は指定会員の貸出中レコードを書籍情報付きで返す。
func (r *MemoryBorrowRepo) ListOutstandingByMember(ctx context.Context, memberID string) ([]OutstandingLoan, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var loans []OutstandingLoan
	for _, record := range r.store.records {
		if record.MemberID != memberID || record.IsReturned {
			continue
		}
		loan := OutstandingLoan{BorrowRecord: copyRecord(record)}
		if book, ok := r.store.books[record.BookID]; ok {
			loan.BookTitle = book.Title
			loan.BookAuthor = book.Author
		}
		loans = append(loans, loan)
	}
	sortLoansByBorrowedAt(loans)
	return loans, nil
}

// TopBorrowed は累計貸出回数の上位limit冊を返す。
// 回数降順、同数の場合は書籍ID昇順。
func (r *MemoryBorrowRepo) TopBorrowed(ctx context.Context, limit int) ([]BorrowCount, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	countByBook := make(map[string]int)
	for _, record := range r.store.records {
		countByBook[record.BookID]++
	}

	counts := make([]BorrowCount, 0, len(countByBook))
	for bookID, n := range countByBook {
		c := BorrowCount{BookID: bookID, BorrowCount: n}
		if book, ok := r.store.books[bookID]; ok {
			c.Title = book.Title
			c.Author = book.Author
		}
		counts = append(counts, c)
	}

	sort.Slice(counts, func(i, j int) bool {
		if counts[i].BorrowCount != counts[j].BorrowCount {
			return counts[i].BorrowCount > counts[j].BorrowCount
		}
		return counts[i].BookID < counts[j].BookID
	})

	if limit < len(counts) {
		counts = counts[:limit]
	}
	return counts, nil
}

// ListOverdue は貸出中かつborrowed_atがcutoff以前のレコードを返す。
func (r *MemoryBorrowRepo) ListOverdue(ctx context.Context, cutoff time.Time) ([]OverdueLoan, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var loans []OverdueLoan
	for _, record := range r.store.records {
		if record.IsReturned || record.BorrowedAt.After(cutoff) {
			continue
		}
		loan := OverdueLoan{BorrowRecord: copyRecord(record)}
		if member, ok := r.store.members[record.MemberID]; ok {
			loan.MemberName = member.Name
			loan.MemberEmail = member.Email
		}
		if book, ok := r.store.books[record.BookID]; ok {
			loan.BookTitle = book.Title
		}
		loans = append(loans, loan)
	}
	sort.Slice(loans, func(i, j int) bool {
		if !loans[i].BorrowedAt.Equal(loans[j].BorrowedAt) {
			return loans[i].BorrowedAt.Before(loans[j].BorrowedAt)
		}
		return loans[i].ID < loans[j].ID
	})
	return loans, nil
}

// --- CirculationUnitOfWork ---

// WithinTx はストア全体をロックしてfnを実行する。
// fn内の書き込みはステージングされ、fnがエラーを返した場合は破棄される。
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(tx CirculationTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryCirculationTx{
		store:    s,
		copies:   make(map[string]int),
		returned: make(map[string]time.Time),
	}

	if err := fn(tx); err != nil {
		return err
	}

	// コミット: ステージされた変更を適用する
	for bookID, n := range tx.copies {
		s.books[bookID].AvailableCopies = n
	}
	for _, record := range tx.inserted {
		copied := copyRecord(record)
		s.records[record.ID] = &copied
	}
	for recordID, at := range tx.returned {
		record := s.records[recordID]
		returnedAt := at
		record.IsReturned = true
		record.ReturnedAt = &returnedAt
	}

	return nil
}

// memoryCirculationTx はMemoryStoreに対するステージング付きトランザクション。
// 呼び出し中はストアのミューテックスを保持しているため、ロックは取らない。
type memoryCirculationTx struct {
	store    *MemoryStore
	copies   map[string]int // 書籍ID → ステージ済みの在庫数
	inserted []*model.BorrowRecord
	returned map[string]time.Time // レコードID → ステージ済みの返却日時
}

// DecrementAvailableCopies は在庫がある場合に限り在庫数を1減らす。
func (t *memoryCirculationTx) DecrementAvailableCopies(ctx context.Context, bookID string) (bool, error) {
	book, ok := t.store.books[bookID]
	if !ok {
		return false, fmt.Errorf("book not found: %s", bookID)
	}

	n := book.AvailableCopies
	if staged, ok := t.copies[bookID]; ok {
		n = staged
	}
	if n <= 0 {
		return false, nil
	}

	t.copies[bookID] = n - 1
	return true, nil
}

// IncrementAvailableCopies は在庫数を1増やす。
func (t *memoryCirculationTx) IncrementAvailableCopies(ctx context.Context, bookID string) error {
	book, ok := t.store.books[bookID]
	if !ok {
		return fmt.Errorf("book not found: %s", bookID)
	}

	n := book.AvailableCopies
	if staged, ok := t.copies[bookID]; ok {
		n = staged
	}
	t.copies[bookID] = n + 1
	return nil
}

// InsertBorrowRecord は貸出レコードの作成をステージする。
func (t *memoryCirculationTx) InsertBorrowRecord(ctx context.Context, record *model.BorrowRecord) error {
	if _, exists := t.store.records[record.ID]; exists {
		return fmt.Errorf("duplicate borrow record: %s", record.ID)
	}
	copied := copyRecord(record)
	t.inserted = append(t.inserted, &copied)
	return nil
}

// FindBorrowRecordForUpdate は貸出レコードを取得する。見つからない場合はnilを返す。
func (t *memoryCirculationTx) FindBorrowRecordForUpdate(ctx context.Context, id string) (*model.BorrowRecord, error) {
	record, ok := t.store.records[id]
	if !ok {
		return nil, nil
	}
	copied := copyRecord(record)
	if at, staged := t.returned[id]; staged {
		returnedAt := at
		copied.IsReturned = true
		copied.ReturnedAt = &returnedAt
	}
	return &copied, nil
}

// MarkReturned は未返却の場合に限り返却済みへの遷移をステージする。
func (t *memoryCirculationTx) MarkReturned(ctx context.Context, id string, returnedAt time.Time) (bool, error) {
	record, ok := t.store.records[id]
	if !ok {
		return false, nil
	}
	if record.IsReturned {
		return false, nil
	}
	if _, staged := t.returned[id]; staged {
		return false, nil
	}

	t.returned[id] = returnedAt
	return true, nil
}

// copyRecord はBorrowRecordの独立したコピーを返す。
// ReturnedAtのポインタも複製し、呼び出し側との共有を避ける。
func copyRecord(record *model.BorrowRecord) model.BorrowRecord {
	copied := *record
	if record.ReturnedAt != nil {
		at := *record.ReturnedAt
		copied.ReturnedAt = &at
	}
	return copied
}

// sortLoansByBorrowedAt は貸出日時昇順（同時刻はID昇順）でソートする。
func sortLoansByBorrowedAt(loans []OutstandingLoan) {
	sort.Slice(loans, func(i, j int) bool {
		if !loans[i].BorrowedAt.Equal(loans[j].BorrowedAt) {
			return loans[i].BorrowedAt.Before(loans[j].BorrowedAt)
		}
		return loans[i].ID < loans[j].ID
	})
}

// compile-time interface checks
var (
	_ BookRepository        = (*MemoryStore)(nil)
	_ MemberRepository      = (*MemoryMemberRepo)(nil)
	_ BorrowRepository      = (*MemoryBorrowRepo)(nil)
	_ CirculationUnitOfWork = (*MemoryStore)(nil)
	_ CirculationTx         = (*memoryCirculationTx)(nil)
)

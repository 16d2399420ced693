// Package catalog は蔵書管理のドメインロジックを提供する。
package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/lendman/internal/model"
	"github.com/hitoshi/lendman/internal/repository"
)

// BookListing は蔵書一覧の1行。貸出可否を導出フィールドとして付与する。
type BookListing struct {
	model.Book
	IsAvailable bool
}

// AddBookInput は書籍登録の入力。
type AddBookInput struct {
	Title         string
	Author        string
	ISBN          string
	PublishedYear int
	InitialCopies int
}

// Service は蔵書管理のサービス層。
// 書籍登録、取得、一覧のビジネスロジックを提供する。
type Service struct {
	bookRepo repository.BookRepository
	now      func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(bookRepo repository.BookRepository) *Service {
	return &Service{
		bookRepo: bookRepo,
		now:      time.Now,
	}
}

// AddBook は書籍を登録する。
// 初期在庫が負の場合、ISBNが登録済みの場合は登録しない。
// ISBNの一意インデックスが並行登録の最終防壁になる。
func (s *Service) AddBook(ctx context.Context, in AddBookInput) (*model.Book, error) {
	if in.InitialCopies < 0 {
		return nil, model.NewInvalidArgumentError(fmt.Sprintf("初期在庫数は0以上を指定してください（指定値: %d）", in.InitialCopies))
	}

	existing, err := s.bookRepo.FindByISBN(ctx, in.ISBN)
	if err != nil {
		return nil, fmt.Errorf("書籍の検索に失敗しました: %w", err)
	}
	if existing != nil {
		return nil, model.NewDuplicateISBNError(in.ISBN)
	}

	now := s.now().UTC()
	book := &model.Book{
		ID:              uuid.New().String(),
		Title:           in.Title,
		Author:          in.Author,
		ISBN:            in.ISBN,
		PublishedYear:   in.PublishedYear,
		AvailableCopies: in.InitialCopies,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.bookRepo.Create(ctx, book); err != nil {
		return nil, fmt.Errorf("書籍の登録に失敗しました: %w", err)
	}

	return book, nil
}

// GetBook は指定IDの書籍を取得する。
func (s *Service) GetBook(ctx context.Context, id string) (*model.Book, error) {
	book, err := s.bookRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("書籍の取得に失敗しました: %w", err)
	}
	if book == nil {
		return nil, model.NewBookNotFoundError(id)
	}
	return book, nil
}

// ListBooks は全書籍を貸出可否付きで返す。状態は変更しない。
func (s *Service) ListBooks(ctx context.Context) ([]BookListing, error) {
	books, err := s.bookRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("蔵書一覧の取得に失敗しました: %w", err)
	}

	listings := make([]BookListing, len(books))
	for i, book := range books {
		listings[i] = BookListing{
			Book:        *book,
			IsAvailable: book.IsAvailable(),
		}
	}
	return listings, nil
}

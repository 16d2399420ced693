package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/lendman/internal/model"
)

// PostgresBookRepo はPostgreSQLを使用した蔵書リポジトリ。
type PostgresBookRepo struct {
	db *sql.DB
}

// NewPostgresBookRepo はPostgresBookRepoを生成する。
func NewPostgresBookRepo(db *sql.DB) *PostgresBookRepo {
	return &PostgresBookRepo{db: db}
}

// FindByID は指定IDの書籍を取得する。見つからない場合はnilを返す。
func (r *PostgresBookRepo) FindByID(ctx context.Context, id string) (*model.Book, error) {
	book := &model.Book{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, title, author, isbn, published_year, available_copies, created_at, updated_at
		 FROM books WHERE id = $1`,
		id,
	).Scan(&book.ID, &book.Title, &book.Author, &book.ISBN, &book.PublishedYear,
		&book.AvailableCopies, &book.CreatedAt, &book.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find book by ID: %w", err)
	}

	return book, nil
}

// FindByISBN はISBNで書籍を検索する。見つからない場合はnilを返す。
func (r *PostgresBookRepo) FindByISBN(ctx context.Context, isbn string) (*model.Book, error) {
	book := &model.Book{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, title, author, isbn, published_year, available_copies, created_at, updated_at
		 FROM books WHERE isbn = $1`,
		isbn,
	).Scan(&book.ID, &book.Title, &book.Author, &book.ISBN, &book.PublishedYear,
		&book.AvailableCopies, &book.CreatedAt, &book.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find book by ISBN: %w", err)
	}

	return book, nil
}

// Create は書籍を作成する。ISBNの一意インデックスが重複登録の最終防壁になる。
func (r *PostgresBookRepo) Create(ctx context.Context, book *model.Book) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO books (id, title, author, isbn, published_year, available_copies, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		book.ID, book.Title, book.Author, book.ISBN, book.PublishedYear,
		book.AvailableCopies, book.CreatedAt, book.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert book: %w", err)
	}
	return nil
}

// List は全書籍をID昇順で返す。
func (r *PostgresBookRepo) List(ctx context.Context) ([]*model.Book, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title, author, isbn, published_year, available_copies, created_at, updated_at
		 FROM books ORDER BY id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	defer rows.Close()

	var books []*model.Book
	for rows.Next() {
		book := &model.Book{}
		if err := rows.Scan(&book.ID, &book.Title, &book.Author, &book.ISBN, &book.PublishedYear,
			&book.AvailableCopies, &book.CreatedAt, &book.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan book row: %w", err)
		}
		books = append(books, book)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate book rows: %w", err)
	}

	return books, nil
}

// compile-time interface check
var _ BookRepository = (*PostgresBookRepo)(nil)

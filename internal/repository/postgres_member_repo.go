package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/lendman/internal/model"
)

// PostgresMemberRepo はPostgreSQLを使用した会員リポジトリ。
type PostgresMemberRepo struct {
	db *sql.DB
}

// NewPostgresMemberRepo はPostgresMemberRepoを生成する。
func NewPostgresMemberRepo(db *sql.DB) *PostgresMemberRepo {
	return &PostgresMemberRepo{db: db}
}

// FindByID は指定IDの会員を取得する。見つからない場合はnilを返す。
func (r *PostgresMemberRepo) FindByID(ctx context.Context, id string) (*model.Member, error) {
	member := &model.Member{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, email, phone, joined_at FROM members WHERE id = $1`,
		id,
	).Scan(&member.ID, &member.Name, &member.Email, &member.Phone, &member.JoinedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find member by ID: %w", err)
	}

	return member, nil
}

// FindByEmail はメールアドレスで会員を検索する。見つからない場合はnilを返す。
func (r *PostgresMemberRepo) FindByEmail(ctx context.Context, email string) (*model.Member, error) {
	member := &model.Member{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, email, phone, joined_at FROM members WHERE email = $1`,
		email,
	).Scan(&member.ID, &member.Name, &member.Email, &member.Phone, &member.JoinedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find member by email: %w", err)
	}

	return member, nil
}

// Create は会員を作成する。メールアドレスの一意インデックスが重複登録の最終防壁になる。
func (r *PostgresMemberRepo) Create(ctx context.Context, member *model.Member) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO members (id, name, email, phone, joined_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		member.ID, member.Name, member.Email, member.Phone, member.JoinedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert member: %w", err)
	}
	return nil
}

// compile-time interface check
var _ MemberRepository = (*PostgresMemberRepo)(nil)

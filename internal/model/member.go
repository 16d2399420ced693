// Package model はドメインモデルを定義する。
package model

import "time"

// Member は図書館の利用会員を表す。
// JoinedAtは登録時に設定され、以後変更されない。
type Member struct {
	ID       string
	Name     string
	Email    string
	Phone    string
	JoinedAt time.Time
}

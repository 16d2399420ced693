// Package model はドメインモデルを定義する。
package model

import "time"

// Book は蔵書タイトルを表す。
// AvailableCopiesは現在貸出可能な冊数で、常に0以上。
// 減算は貸出成立時、加算は返却成立時のみ行われる。
type Book struct {
	ID              string
	Title           string
	Author          string
	ISBN            string
	PublishedYear   int
	AvailableCopies int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsAvailable は貸出可能な在庫があるかどうかを返す。
func (b *Book) IsAvailable() bool {
	return b.AvailableCopies > 0
}

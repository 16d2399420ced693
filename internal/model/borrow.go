// Package model はドメインモデルを定義する。
package model

import "time"

// BorrowRecord は1冊の貸出を表す。
// 貸出中（IsReturned=false, ReturnedAt=nil）で作成され、
// 返却（IsReturned=true, ReturnedAt設定）へ一度だけ遷移する。
// 返却済みレコードは以後不変。
// BookID/MemberIDは参照IDのみを保持し、結合は利用側が行う。
type BorrowRecord struct {
	ID         string
	BookID     string
	MemberID   string
	BorrowedAt time.Time
	ReturnedAt *time.Time
	IsReturned bool
}

// IsOutstanding は貸出中（未返却）かどうかを返す。
func (r *BorrowRecord) IsOutstanding() bool {
	return !r.IsReturned
}

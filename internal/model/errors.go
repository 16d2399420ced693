// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// 呼び出し側が分岐できる安定したコードとカテゴリ、
// ユーザー向けの対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, not_found, conflict, state, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeBookNotFound      = "BOOK_NOT_FOUND"
	ErrCodeMemberNotFound    = "MEMBER_NOT_FOUND"
	ErrCodeRecordNotFound    = "RECORD_NOT_FOUND"
	ErrCodeDuplicateISBN     = "DUPLICATE_ISBN"
	ErrCodeDuplicateEmail    = "DUPLICATE_EMAIL"
	ErrCodeInvalidArgument   = "INVALID_ARGUMENT"
	ErrCodeNoCopiesAvailable = "NO_COPIES_AVAILABLE"
	ErrCodeAlreadyReturned   = "ALREADY_RETURNED"
	ErrCodeTransactionFailed = "TRANSACTION_FAILED"
)

// NewBookNotFoundError は書籍未検出エラーを生成する。
func NewBookNotFoundError(bookID string) *APIError {
	return &APIError{
		Code:     ErrCodeBookNotFound,
		Message:  fmt.Sprintf("指定された書籍が見つかりません: %s", bookID),
		Category: "not_found",
		Action:   "書籍IDを確認してください。",
	}
}

// NewMemberNotFoundError は会員未検出エラーを生成する。
func NewMemberNotFoundError(memberID string) *APIError {
	return &APIError{
		Code:     ErrCodeMemberNotFound,
		Message:  fmt.Sprintf("指定された会員が見つかりません: %s", memberID),
		Category: "not_found",
		Action:   "会員IDを確認してください。",
	}
}

// NewRecordNotFoundError は貸出レコード未検出エラーを生成する。
func NewRecordNotFoundError(recordID string) *APIError {
	return &APIError{
		Code:     ErrCodeRecordNotFound,
		Message:  fmt.Sprintf("指定された貸出レコードが見つかりません: %s", recordID),
		Category: "not_found",
		Action:   "貸出レコードIDを確認してください。",
	}
}

// NewDuplicateISBNError はISBN重複エラーを生成する。
func NewDuplicateISBNError(isbn string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateISBN,
		Message:  fmt.Sprintf("このISBNは既に登録されています: %s", isbn),
		Category: "conflict",
		Action:   "蔵書一覧から該当書籍を確認してください。",
	}
}

// NewDuplicateEmailError はメールアドレス重複エラーを生成する。
func NewDuplicateEmailError(email string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateEmail,
		Message:  fmt.Sprintf("このメールアドレスは既に登録されています: %s", email),
		Category: "conflict",
		Action:   "別のメールアドレスを使用するか、既存の会員情報を確認してください。",
	}
}

// NewInvalidArgumentError は入力値不正エラーを生成する。
func NewInvalidArgumentError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidArgument,
		Message:  fmt.Sprintf("入力値が不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewNoCopiesAvailableError は在庫なしエラーを生成する。
func NewNoCopiesAvailableError(bookID string) *APIError {
	return &APIError{
		Code:     ErrCodeNoCopiesAvailable,
		Message:  fmt.Sprintf("この書籍に貸出可能な在庫がありません: %s", bookID),
		Category: "state",
		Action:   "返却され次第貸出可能になります。しばらく待ってから再度お試しください。",
	}
}

// NewAlreadyReturnedError は返却済みエラーを生成する。
func NewAlreadyReturnedError(recordID string) *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyReturned,
		Message:  fmt.Sprintf("この貸出レコードは既に返却済みです: %s", recordID),
		Category: "state",
		Action:   "貸出レコードIDを確認してください。",
	}
}

// NewTransactionFailedError はトランザクション失敗エラーを生成する。
// 貸出・返却処理中の予期しない永続化エラーはロールバック後にこのエラーとして返す。
func NewTransactionFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeTransactionFailed,
		Message:  "処理中にエラーが発生したため、変更は適用されませんでした。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

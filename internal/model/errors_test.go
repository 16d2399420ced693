package model

import (
	"errors"
	"strings"
	"testing"
)

// APIErrorがerrorインターフェースを満たし、コードを含むメッセージを返すことを検証
func TestAPIError_Error_ContainsCode(t *testing.T) {
	err := NewNoCopiesAvailableError("book-1")

	if !strings.Contains(err.Error(), ErrCodeNoCopiesAvailable) {
		t.Errorf("Error() = %q, want to contain %q", err.Error(), ErrCodeNoCopiesAvailable)
	}
	if !strings.Contains(err.Error(), "book-1") {
		t.Errorf("Error() = %q, want to contain book ID", err.Error())
	}
}

// errors.AsでAPIErrorを取り出せることを検証
func TestAPIError_ErrorsAs(t *testing.T) {
	var err error = NewDuplicateISBNError("978-4-00-310101-8")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatal("errors.As should extract *APIError")
	}
	if apiErr.Code != ErrCodeDuplicateISBN {
		t.Errorf("Code = %q, want %q", apiErr.Code, ErrCodeDuplicateISBN)
	}
	if apiErr.Category != "conflict" {
		t.Errorf("Category = %q, want %q", apiErr.Category, "conflict")
	}
}

// 各コンストラクタが仕様どおりのカテゴリを設定することを検証
func TestAPIError_Categories(t *testing.T) {
	tests := []struct {
		name     string
		err      *APIError
		code     string
		category string
	}{
		{"book not found", NewBookNotFoundError("b1"), ErrCodeBookNotFound, "not_found"},
		{"member not found", NewMemberNotFoundError("m1"), ErrCodeMemberNotFound, "not_found"},
		{"record not found", NewRecordNotFoundError("r1"), ErrCodeRecordNotFound, "not_found"},
		{"duplicate isbn", NewDuplicateISBNError("isbn"), ErrCodeDuplicateISBN, "conflict"},
		{"duplicate email", NewDuplicateEmailError("a@b.jp"), ErrCodeDuplicateEmail, "conflict"},
		{"invalid argument", NewInvalidArgumentError("負の冊数"), ErrCodeInvalidArgument, "validation"},
		{"no copies", NewNoCopiesAvailableError("b1"), ErrCodeNoCopiesAvailable, "state"},
		{"already returned", NewAlreadyReturnedError("r1"), ErrCodeAlreadyReturned, "state"},
		{"transaction failed", NewTransactionFailedError(), ErrCodeTransactionFailed, "system"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("Code = %q, want %q", tt.err.Code, tt.code)
			}
			if tt.err.Category != tt.category {
				t.Errorf("Category = %q, want %q", tt.err.Category, tt.category)
			}
			if tt.err.Action == "" {
				t.Error("Action should not be empty")
			}
		})
	}
}

// Bookの貸出可否が在庫数から導出されることを検証
func TestBook_IsAvailable(t *testing.T) {
	b := &Book{AvailableCopies: 1}
	if !b.IsAvailable() {
		t.Error("book with 1 copy should be available")
	}

	b.AvailableCopies = 0
	if b.IsAvailable() {
		t.Error("book with 0 copies should not be available")
	}
}

// BorrowRecordの貸出中判定を検証
func TestBorrowRecord_IsOutstanding(t *testing.T) {
	r := &BorrowRecord{IsReturned: false}
	if !r.IsOutstanding() {
		t.Error("unreturned record should be outstanding")
	}

	r.IsReturned = true
	if r.IsOutstanding() {
		t.Error("returned record should not be outstanding")
	}
}

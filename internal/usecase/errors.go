package usecase

import (
	"errors"
	"fmt"
	"net/http"
)

// 項目ごとの入力エラー
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// usecaseが返すエラー。handlerはStatusとMessageをそのまま返す
type HTTPError struct {
	Status  int
	Message string
	Details []FieldError
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func NewHTTPError(status int, message string) error {
	return &HTTPError{
		Status:  status,
		Message: message,
	}
}

// 400 validation failed + 項目ごとの内容
func NewValidationError(details ...FieldError) error {
	return &HTTPError{
		Status:  http.StatusBadRequest,
		Message: "validation failed",
		Details: details,
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}

// 500は中身を出さない
var errInternal = NewHTTPError(http.StatusInternalServerError, "internal error")

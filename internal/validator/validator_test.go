package validator_test

import (
	"testing"

	"ccmart/internal/usecase"
	"ccmart/internal/validator"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signupRequest struct {
	Name     string `json:"name" validate:"required,trimmed_len=2:100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Phone    string `json:"phone" validate:"omitempty,phone"`
}

func TestIsPhone(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"09012345678", true},
		{"+81 90-1234-5678", true},
		{"1234567", true},
		{"123456", false},
		{"1234567890123456", false},
		{"090-abcd-5678", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, validator.IsPhone(tt.in), tt.in)
	}
}

func TestValidate_FieldErrorsUseJSONNames(t *testing.T) {
	v := validator.New()

	err := v.Validate(&signupRequest{Name: " a ", Email: "nope", Password: "short", Phone: "12"})
	require.Error(t, err)

	he, ok := usecase.AsHTTPError(err)
	require.True(t, ok)
	assert.Equal(t, 400, he.Status)
	assert.Equal(t, "validation failed", he.Message)
	assert.Equal(t, []usecase.FieldError{
		{Field: "name", Message: "must be between 2 and 100 characters"},
		{Field: "email", Message: "must be a valid email"},
		{Field: "password", Message: "must be at least 8 characters"},
		{Field: "phone", Message: "must be a valid phone number"},
	}, he.Details)
}

func TestValidate_OK(t *testing.T) {
	v := validator.New()
	assert.NoError(t, v.Validate(&signupRequest{Name: "Hanako", Email: "h@example.com", Password: "longenough"}))
}

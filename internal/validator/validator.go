package validator

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"ccmart/internal/usecase"

	playground "github.com/go-playground/validator/v10"
)

// 先頭の+は任意、数字7〜15桁（空白とハイフンは無視）
var phonePattern = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

// echo.Validatorの実装。エラーは項目ごとの400にする
type RequestValidator struct {
	v *playground.Validate
}

func New() *RequestValidator {
	v := playground.New(playground.WithRequiredStructEnabled())

	//エラーの項目名はjsonタグの名前
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})

	_ = v.RegisterValidation("phone", func(fl playground.FieldLevel) bool {
		return IsPhone(fl.Field().String())
	})
	_ = v.RegisterValidation("trimmed_len", validateTrimmedLen)

	return &RequestValidator{v: v}
}

func (rv *RequestValidator) Validate(i interface{}) error {
	err := rv.v.Struct(i)
	if err == nil {
		return nil
	}

	var verrs playground.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	details := make([]usecase.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, usecase.FieldError{
			Field:   fieldPath(fe),
			Message: message(fe),
		})
	}
	return usecase.NewValidationError(details...)
}

func IsPhone(s string) bool {
	s = strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(s))
	return phonePattern.MatchString(s)
}

// trimmed_len=10:500 前後の空白を除いた長さ
func validateTrimmedLen(fl playground.FieldLevel) bool {
	var lo, hi int
	if _, err := fmt.Sscanf(fl.Param(), "%d:%d", &lo, &hi); err != nil {
		return false
	}
	n := len([]rune(strings.TrimSpace(fl.Field().String())))
	return n >= lo && n <= hi
}

// "PlaceOrderRequest.items[0].quantity" → "items[0].quantity"
func fieldPath(fe playground.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

// 注文明細は決まった文言
func message(fe playground.FieldError) string {
	path := fieldPath(fe)
	switch {
	case path == "items":
		return "order must contain at least one item"
	case strings.HasPrefix(path, "items[") && fe.Field() == "product_id":
		return "each item must have a valid product ID"
	case strings.HasPrefix(path, "items[") && fe.Field() == "quantity" && fe.Tag() == "max":
		return "total quantity per product must not exceed 10000"
	case strings.HasPrefix(path, "items[") && fe.Field() == "quantity":
		return "each item must have a quantity of at least 1"
	}

	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at least %s item(s)", fe.Param())
		}
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must not exceed %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be >= %s", fe.Param())
	case "email":
		return "must be a valid email"
	case "phone":
		return "must be a valid phone number"
	case "datetime":
		return "must be a date (YYYY-MM-DD)"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "trimmed_len":
		lo, hi, _ := strings.Cut(fe.Param(), ":")
		return fmt.Sprintf("must be between %s and %s characters", lo, hi)
	default:
		return "is invalid"
	}
}

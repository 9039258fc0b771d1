package repository

import "errors"

var (
	// 見つからない（gorm.ErrRecordNotFound をここに寄せる）
	ErrNotFound = errors.New("not found")

	// 一意制約違反（order_number / idempotency_key / email など）
	ErrDuplicateKey = errors.New("duplicate key")

	// 在庫の増減量が1未満
	ErrInvalidQuantity = errors.New("invalid quantity")
)

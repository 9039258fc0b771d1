package usecase

import (
	"context"
	"time"

	"ccmart/internal/domain/model"
)

// 操作している人（JWTから）
type Actor struct {
	UserID int64
	Role   model.Role
}

func (a Actor) IsAdmin() bool { return a.Role == model.RoleAdmin }

type OrderEventType string

const (
	OrderEventPlaced         OrderEventType = "order.placed"
	OrderEventCancelled      OrderEventType = "order.cancelled"
	OrderEventStatusChanged  OrderEventType = "order.status_changed"
	OrderEventPaymentChanged OrderEventType = "order.payment_changed"
)

// コミット後に流す注文イベント
type OrderEvent struct {
	Type                  OrderEventType      `json:"type"`
	OrderID               int64               `json:"order_id"`
	OrderNumber           string              `json:"order_number"`
	UserID                int64               `json:"user_id"`
	Status                model.OrderStatus   `json:"status"`
	PreviousStatus        model.OrderStatus   `json:"previous_status,omitempty"`
	PaymentStatus         model.PaymentStatus `json:"payment_status"`
	PreviousPaymentStatus model.PaymentStatus `json:"previous_payment_status,omitempty"`
	TotalAmount           model.Money         `json:"total_amount"`
	OccurredAt            time.Time           `json:"occurred_at"`
}

// Kafka or DB直書き。失敗しても注文は失敗させない
type OrderEventPublisher interface {
	Publish(ctx context.Context, e OrderEvent) error
}

// 同じキーの同時実行を止める（Redis）
type IdempotencyLock interface {
	// 取れたら true。既に誰かが持っていれば false
	Acquire(ctx context.Context, userID int64, key string) (bool, error)
	Release(ctx context.Context, userID int64, key string) error
}

type OrderNumberGenerator interface {
	Next(now time.Time) string
}

// 平文パスワードからハッシュへ。
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Compare(hash string, plain string) error
}

// アクセストークン発行
type TokenIssuer interface {
	Issue(user model.User, now time.Time) (token string, expiresAt time.Time, err error)
}

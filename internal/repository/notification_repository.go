package repository

import (
	"context"

	"ccmart/internal/domain/model"
)

type NotificationRepository interface {
	Create(ctx context.Context, n *model.Notification) error
	ListByUserID(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]model.Notification, error)
	// 自分の通知だけ既読にできる。該当なしは ErrNotFound
	MarkRead(ctx context.Context, userID int64, notificationID int64) error
}

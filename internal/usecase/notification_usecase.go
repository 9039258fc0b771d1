package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"ccmart/internal/domain/model"
	"ccmart/internal/repository"

	"go.uber.org/zap"
)

const defaultNotificationLimit = 50

type NotificationUsecase struct {
	repo repository.NotificationRepository
	log  *zap.Logger
}

func NewNotificationUsecase(repo repository.NotificationRepository, log *zap.Logger) *NotificationUsecase {
	if log == nil {
		log = zap.NewNop()
	}
	return &NotificationUsecase{repo: repo, log: log}
}

func (u *NotificationUsecase) List(ctx context.Context, userID int64, unreadOnly bool) ([]model.Notification, error) {
	if userID <= 0 {
		return nil, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	items, err := u.repo.ListByUserID(ctx, userID, unreadOnly, defaultNotificationLimit)
	if err != nil {
		u.log.Error("list notifications", zap.Int64("user_id", userID), zap.Error(err))
		return nil, errInternal
	}
	if items == nil {
		items = []model.Notification{}
	}
	return items, nil
}

func (u *NotificationUsecase) MarkRead(ctx context.Context, userID, notificationID int64) error {
	if userID <= 0 {
		return NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if notificationID <= 0 {
		return NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	err := u.repo.MarkRead(ctx, userID, notificationID)
	if errors.Is(err, repository.ErrNotFound) {
		return NewHTTPError(http.StatusNotFound, "notification not found")
	}
	if err != nil {
		u.log.Error("mark notification read", zap.Int64("notification_id", notificationID), zap.Error(err))
		return errInternal
	}
	return nil
}

// Kafkaが無いときはAPIプロセスから直接書く
func (u *NotificationUsecase) Publish(ctx context.Context, e OrderEvent) error {
	return u.HandleOrderEvent(ctx, e)
}

// イベント1件を通知1件にする。対象外のイベントは無視
func (u *NotificationUsecase) HandleOrderEvent(ctx context.Context, e OrderEvent) error {
	n, ok := notificationFor(e)
	if !ok {
		return nil
	}
	if err := u.repo.Create(ctx, &n); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	u.log.Debug("notification created",
		zap.Int64("user_id", n.UserID),
		zap.Int64("order_id", n.OrderID),
		zap.String("type", string(n.Type)),
	)
	return nil
}

func notificationFor(e OrderEvent) (model.Notification, bool) {
	n := model.Notification{UserID: e.UserID, OrderID: e.OrderID}

	switch e.Type {
	case OrderEventPlaced:
		n.Type = model.NotificationOrderPlaced
		n.Title = "Order placed"
		n.Message = fmt.Sprintf("Your order %s has been placed. Total: %s", e.OrderNumber, e.TotalAmount)
	case OrderEventCancelled:
		n.Type = model.NotificationOrderCancelled
		n.Title = "Order cancelled"
		n.Message = fmt.Sprintf("Your order %s has been cancelled and your payment refunded.", e.OrderNumber)
	case OrderEventStatusChanged:
		t, ok := statusNotificationTypes[e.Status]
		if !ok {
			return model.Notification{}, false
		}
		n.Type = t
		n.Title = "Order " + string(e.Status)
		n.Message = fmt.Sprintf("Your order %s is now %s.", e.OrderNumber, e.Status)
	case OrderEventPaymentChanged:
		n.Type = model.NotificationPaymentUpdated
		n.Title = "Payment " + string(e.PaymentStatus)
		n.Message = fmt.Sprintf("Payment for order %s is now %s.", e.OrderNumber, e.PaymentStatus)
	default:
		return model.Notification{}, false
	}
	if n.UserID <= 0 {
		return model.Notification{}, false
	}
	return n, true
}

// pendingに戻った場合は通知しない
var statusNotificationTypes = map[model.OrderStatus]model.NotificationType{
	model.OrderStatusConfirmed: model.NotificationOrderConfirmed,
	model.OrderStatusPreparing: model.NotificationOrderPreparing,
	model.OrderStatusReady:     model.NotificationOrderReady,
	model.OrderStatusDelivered: model.NotificationOrderDelivered,
	model.OrderStatusCancelled: model.NotificationOrderCancelled,
}

package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"ccmart/internal/domain/model"
	repo "ccmart/internal/repository"

	"go.uber.org/zap"
)

type AdminOrderUsecase struct {
	tx     repo.TransactionManager
	events OrderEventPublisher
	log    *zap.Logger
	now    func() time.Time
}

func NewAdminOrderUsecase(tx repo.TransactionManager, events OrderEventPublisher, log *zap.Logger) *AdminOrderUsecase {
	if log == nil {
		log = zap.NewNop()
	}
	return &AdminOrderUsecase{tx: tx, events: events, log: log, now: time.Now}
}

// どちらも省略可。両方nilは400
type AdminUpdateOrderStatusInput struct {
	Status        *string
	PaymentStatus *string
}

// ステータス / 支払いステータス更新（cancelled なら在庫戻し）
func (u *AdminOrderUsecase) UpdateStatus(ctx context.Context, actorAdminUserID int64, orderID int64, in AdminUpdateOrderStatusInput) (OrderOutput, error) {
	if actorAdminUserID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if in.Status == nil && in.PaymentStatus == nil {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "no valid fields to update")
	}

	var newStatus *model.OrderStatus
	if in.Status != nil {
		s := model.OrderStatus(strings.TrimSpace(*in.Status))
		if !s.Valid() {
			return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid order status")
		}
		newStatus = &s
	}
	var newPayment *model.PaymentStatus
	if in.PaymentStatus != nil {
		ps := model.PaymentStatus(strings.TrimSpace(*in.PaymentStatus))
		if !ps.Valid() {
			return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid payment status")
		}
		newPayment = &ps
	}

	var (
		out    OrderOutput
		before model.Order
	)
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByIDForUpdate(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "order not found")
		}
		if err != nil {
			return fmt.Errorf("find order: %w", err)
		}
		before = o

		// 同じ値は変更なし扱い
		if newStatus != nil && *newStatus == o.Status {
			newStatus = nil
		}
		if newPayment != nil && *newPayment == o.PaymentStatus {
			newPayment = nil
		}

		// 終端ガード（支払いステータスだけなら更新できる）
		if newStatus != nil && o.Status.IsTerminal() {
			return NewHTTPError(http.StatusBadRequest, "order status cannot be changed")
		}

		current := o
		var items []model.OrderItem
		if newStatus != nil && *newStatus == model.OrderStatusCancelled {
			current, items, err = cancelOrderTx(ctx, r, actorAdminUserID, o, u.now())
			if err != nil {
				return err
			}
			newStatus = nil
			if newPayment != nil && *newPayment == current.PaymentStatus {
				newPayment = nil
			}
		}

		if newStatus != nil || newPayment != nil {
			ok, err := r.Orders().UpdateStatusIf(ctx, orderID, current.Status, repo.OrderStatusUpdate{
				Status:        newStatus,
				PaymentStatus: newPayment,
			})
			if err != nil {
				return fmt.Errorf("update order status: %w", err)
			}
			if !ok {
				return NewHTTPError(http.StatusBadRequest, "order status cannot be changed")
			}

			after := current
			if newStatus != nil {
				after.Status = *newStatus
			}
			if newPayment != nil {
				after.PaymentStatus = *newPayment
			}

			// 監査ログ（UPDATE_ORDER_STATUS）
			if err := r.AuditLogs().Create(ctx, model.AuditLog{
				ActorUserID:  actorAdminUserID,
				Action:       model.AuditActionUpdateOrderStatus,
				ResourceType: model.AuditResourceOrder,
				ResourceID:   orderID,
				BeforeJSON:   statusJSON(current.Status, current.PaymentStatus),
				AfterJSON:    statusJSON(after.Status, after.PaymentStatus),
				CreatedAt:    u.now(),
			}); err != nil {
				return fmt.Errorf("create audit log: %w", err)
			}
			after.UpdatedAt = u.now()
			current = after
		}

		if items == nil {
			items, err = r.OrderItems().ListByOrderID(ctx, orderID)
			if err != nil {
				return fmt.Errorf("list order items: %w", err)
			}
		}
		out = toOrderOutput(current, items)
		return nil
	})
	if err != nil {
		if he, ok := AsHTTPError(err); ok {
			return OrderOutput{}, he
		}
		u.log.Error("update order status", zap.Int64("order_id", orderID), zap.Error(err))
		return OrderOutput{}, errInternal
	}

	u.log.Info("order status updated",
		zap.Int64("order_id", orderID),
		zap.Int64("actor_user_id", actorAdminUserID),
		zap.String("status", out.Status),
		zap.String("payment_status", out.PaymentStatus),
	)
	for _, e := range statusEvents(before, out, u.now()) {
		publishOrderEvent(ctx, u.events, u.log, e)
	}
	return out, nil
}

// 変わった内容ごとにイベントを作る
func statusEvents(before model.Order, after OrderOutput, now time.Time) []OrderEvent {
	base := OrderEvent{
		OrderID:               after.ID,
		OrderNumber:           after.OrderNumber,
		UserID:                after.UserID,
		Status:                model.OrderStatus(after.Status),
		PreviousStatus:        before.Status,
		PaymentStatus:         model.PaymentStatus(after.PaymentStatus),
		PreviousPaymentStatus: before.PaymentStatus,
		TotalAmount:           after.TotalAmount,
		OccurredAt:            now,
	}

	var events []OrderEvent
	if base.Status != before.Status {
		e := base
		e.Type = OrderEventStatusChanged
		if base.Status == model.OrderStatusCancelled {
			e.Type = OrderEventCancelled
		}
		events = append(events, e)
	}
	// キャンセル時のrefundedはcancelledの通知に含める
	cancelledNow := base.Status == model.OrderStatusCancelled && before.Status != model.OrderStatusCancelled
	if base.PaymentStatus != before.PaymentStatus && !cancelledNow {
		e := base
		e.Type = OrderEventPaymentChanged
		events = append(events, e)
	}
	return events
}

package usecase_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"ccmart/internal/domain/model"
	repo "ccmart/internal/repository"
	"ccmart/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type NotificationRepoMock struct{ mock.Mock }

func (m *NotificationRepoMock) Create(ctx context.Context, n *model.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func (m *NotificationRepoMock) ListByUserID(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]model.Notification, error) {
	args := m.Called(ctx, userID, unreadOnly, limit)
	items, _ := args.Get(0).([]model.Notification)
	return items, args.Error(1)
}

func (m *NotificationRepoMock) MarkRead(ctx context.Context, userID int64, notificationID int64) error {
	args := m.Called(ctx, userID, notificationID)
	return args.Error(0)
}

var _ repo.NotificationRepository = (*NotificationRepoMock)(nil)

func TestHandleOrderEvent_WritesNotification(t *testing.T) {
	tests := []struct {
		name     string
		event    usecase.OrderEvent
		wantType model.NotificationType
		wantMsg  string
	}{
		{
			name:     "placed",
			event:    usecase.OrderEvent{Type: usecase.OrderEventPlaced, OrderID: 1, OrderNumber: "CC1", UserID: 7, TotalAmount: 1250},
			wantType: model.NotificationOrderPlaced,
			wantMsg:  "Your order CC1 has been placed. Total: 12.50",
		},
		{
			name:     "cancelled",
			event:    usecase.OrderEvent{Type: usecase.OrderEventCancelled, OrderID: 1, OrderNumber: "CC1", UserID: 7},
			wantType: model.NotificationOrderCancelled,
			wantMsg:  "Your order CC1 has been cancelled and your payment refunded.",
		},
		{
			name:     "ready",
			event:    usecase.OrderEvent{Type: usecase.OrderEventStatusChanged, OrderID: 1, OrderNumber: "CC1", UserID: 7, Status: model.OrderStatusReady},
			wantType: model.NotificationOrderReady,
			wantMsg:  "Your order CC1 is now ready.",
		},
		{
			name:     "payment",
			event:    usecase.OrderEvent{Type: usecase.OrderEventPaymentChanged, OrderID: 1, OrderNumber: "CC1", UserID: 7, PaymentStatus: model.PaymentStatusPaid},
			wantType: model.NotificationPaymentUpdated,
			wantMsg:  "Payment for order CC1 is now paid.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := new(NotificationRepoMock)
			r.On("Create", mock.Anything, mock.MatchedBy(func(n *model.Notification) bool {
				return n.UserID == 7 && n.OrderID == 1 && n.Type == tt.wantType && n.Message == tt.wantMsg
			})).Return(nil)

			err := usecase.NewNotificationUsecase(r, nil).HandleOrderEvent(context.Background(), tt.event)
			require.NoError(t, err)
			r.AssertExpectations(t)
		})
	}
}

func TestHandleOrderEvent_IgnoresUnmappedEvents(t *testing.T) {
	r := new(NotificationRepoMock)
	uc := usecase.NewNotificationUsecase(r, nil)

	require.NoError(t, uc.HandleOrderEvent(context.Background(), usecase.OrderEvent{
		Type: usecase.OrderEventStatusChanged, OrderID: 1, UserID: 7, Status: model.OrderStatusPending,
	}))
	require.NoError(t, uc.HandleOrderEvent(context.Background(), usecase.OrderEvent{Type: "order.unknown", OrderID: 1, UserID: 7}))
	r.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestHandleOrderEvent_RepoErrorIsReturned(t *testing.T) {
	r := new(NotificationRepoMock)
	r.On("Create", mock.Anything, mock.Anything).Return(errors.New("db down"))

	err := usecase.NewNotificationUsecase(r, nil).Publish(context.Background(), usecase.OrderEvent{
		Type: usecase.OrderEventPlaced, OrderID: 1, UserID: 7,
	})
	assert.Error(t, err)
}

func TestMarkRead_NotFound(t *testing.T) {
	r := new(NotificationRepoMock)
	r.On("MarkRead", mock.Anything, int64(7), int64(3)).Return(repo.ErrNotFound)

	err := usecase.NewNotificationUsecase(r, nil).MarkRead(context.Background(), 7, 3)
	requireHTTPError(t, err, http.StatusNotFound, "notification not found")
}

func TestListNotifications_EmptyIsNotNil(t *testing.T) {
	r := new(NotificationRepoMock)
	r.On("ListByUserID", mock.Anything, int64(7), true, 50).Return(nil, nil)

	items, err := usecase.NewNotificationUsecase(r, nil).List(context.Background(), 7, true)
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

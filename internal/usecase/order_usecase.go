package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"ccmart/internal/domain/model"
	repo "ccmart/internal/repository"

	"go.uber.org/zap"
)

const (
	// order_number / idempotency_key の一意制約違反でやり直す回数
	maxPlaceOrderAttempts = 3
	maxIdempotencyKeyLen  = 255

	msgProductsUnavailable = "one or more products not found or inactive"
	msgCannotCancel        = "order cannot be cancelled"
	msgQuantityTooLarge    = "total quantity per product must not exceed 10000"
)

type OrderUsecase struct {
	tx      repo.TransactionManager
	numbers OrderNumberGenerator
	events  OrderEventPublisher
	idem    IdempotencyLock
	log     *zap.Logger
	now     func() time.Time
}

// events / idem は nil でもよい
func NewOrderUsecase(
	tx repo.TransactionManager,
	numbers OrderNumberGenerator,
	events OrderEventPublisher,
	idem IdempotencyLock,
	log *zap.Logger,
) *OrderUsecase {
	if log == nil {
		log = zap.NewNop()
	}
	return &OrderUsecase{
		tx:      tx,
		numbers: numbers,
		events:  events,
		idem:    idem,
		log:     log,
		now:     time.Now,
	}
}

type PlaceOrderItemInput struct {
	ProductID int64
	Quantity  int64
}

type PlaceOrderInput struct {
	Items           []PlaceOrderItemInput
	DeliveryAddress string
	DeliveryPhone   string
	DeliveryNotes   string
	DeliveryDate    *time.Time
	DeliveryTime    string
	PaymentMethod   string
	IdempotencyKey  string
}

type OrderItemOutput struct {
	ID          int64       `json:"id"`
	ProductID   int64       `json:"product_id"`
	ProductName string      `json:"product_name"`
	Price       model.Money `json:"price"`
	Quantity    int64       `json:"quantity"`
	Subtotal    model.Money `json:"subtotal"`
}

type OrderOutput struct {
	ID              int64             `json:"id"`
	UserID          int64             `json:"user_id"`
	OrderNumber     string            `json:"order_number"`
	TotalAmount     model.Money       `json:"total_amount"`
	Status          string            `json:"status"`
	PaymentStatus   string            `json:"payment_status"`
	PaymentMethod   string            `json:"payment_method"`
	DeliveryAddress string            `json:"delivery_address"`
	DeliveryPhone   string            `json:"delivery_phone"`
	DeliveryNotes   string            `json:"delivery_notes,omitempty"`
	DeliveryDate    string            `json:"delivery_date,omitempty"`
	DeliveryTime    string            `json:"delivery_time,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
	Items           []OrderItemOutput `json:"items"`
}

type PlaceOrderResult struct {
	Order OrderOutput
	// 同じidempotency keyの既存注文を返した
	Replayed bool
}

type OrderListOutput struct {
	Items []OrderOutput `json:"items"`
	Total int64         `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
	Pages int           `json:"pages"`
}

type orderLine struct {
	ProductID int64
	Quantity  int64
}

// 注文確定。全部成功するか、何も残らないか
func (u *OrderUsecase) PlaceOrder(ctx context.Context, userID int64, in PlaceOrderInput) (PlaceOrderResult, error) {
	if userID <= 0 {
		return PlaceOrderResult{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	lines, err := mergeOrderLines(in.Items)
	if err != nil {
		return PlaceOrderResult{}, err
	}

	method := model.PaymentMethod(strings.TrimSpace(in.PaymentMethod))
	if method == "" {
		method = model.PaymentMethodCashOnDelivery
	}
	if !method.Valid() {
		return PlaceOrderResult{}, NewValidationError(FieldError{Field: "payment_method", Message: "invalid payment method"})
	}

	key := strings.TrimSpace(in.IdempotencyKey)
	if len(key) > maxIdempotencyKeyLen {
		return PlaceOrderResult{}, NewValidationError(FieldError{Field: "Idempotency-Key", Message: "must not exceed 255 characters"})
	}

	// Redisで同時実行を止める（落ちていればDBの一意制約だけで守る）
	placed := false
	if key != "" && u.idem != nil {
		acquired, err := u.idem.Acquire(ctx, userID, key)
		switch {
		case err != nil:
			u.log.Warn("idempotency lock unavailable", zap.Int64("user_id", userID), zap.Error(err))
		case !acquired:
			existing, found, err := u.findByIdempotencyKey(ctx, userID, key)
			if err != nil {
				return PlaceOrderResult{}, u.internal("find order by idempotency key", err)
			}
			if found {
				return PlaceOrderResult{Order: existing, Replayed: true}, nil
			}
			return PlaceOrderResult{}, NewHTTPError(http.StatusConflict, "duplicate request in progress")
		default:
			defer func() {
				if placed {
					return
				}
				// 失敗したらキーを解放して再送できるようにする
				if err := u.idem.Release(context.WithoutCancel(ctx), userID, key); err != nil {
					u.log.Warn("idempotency lock release failed", zap.Int64("user_id", userID), zap.Error(err))
				}
			}()
		}
	}

	draft := model.Order{
		UserID:          userID,
		Status:          model.OrderStatusPending,
		PaymentStatus:   model.PaymentStatusPending,
		PaymentMethod:   method,
		DeliveryAddress: strings.TrimSpace(in.DeliveryAddress),
		DeliveryPhone:   strings.TrimSpace(in.DeliveryPhone),
		DeliveryNotes:   strings.TrimSpace(in.DeliveryNotes),
		DeliveryDate:    in.DeliveryDate,
		DeliveryTime:    strings.TrimSpace(in.DeliveryTime),
	}
	if key != "" {
		draft.IdempotencyKey = &key
	}

	var res PlaceOrderResult
	for attempt := 1; ; attempt++ {
		res, err = u.placeOnce(ctx, draft, lines)
		if !errors.Is(err, repo.ErrDuplicateKey) || attempt >= maxPlaceOrderAttempts {
			break
		}
		u.log.Warn("order insert conflict, retrying", zap.Int64("user_id", userID), zap.Int("attempt", attempt))
	}
	if err != nil {
		if he, ok := AsHTTPError(err); ok {
			return PlaceOrderResult{}, he
		}
		return PlaceOrderResult{}, u.internal("place order", err)
	}

	placed = true
	if !res.Replayed {
		u.log.Info("order placed",
			zap.Int64("order_id", res.Order.ID),
			zap.String("order_number", res.Order.OrderNumber),
			zap.Int64("user_id", userID),
			zap.String("total_amount", res.Order.TotalAmount.String()),
		)
		u.publish(ctx, OrderEvent{
			Type:          OrderEventPlaced,
			OrderID:       res.Order.ID,
			OrderNumber:   res.Order.OrderNumber,
			UserID:        userID,
			Status:        model.OrderStatusPending,
			PaymentStatus: model.PaymentStatusPending,
			TotalAmount:   res.Order.TotalAmount,
			OccurredAt:    u.now(),
		})
	}
	return res, nil
}

// 1回分のトランザクション。ErrDuplicateKeyなら呼び出し側でやり直す
func (u *OrderUsecase) placeOnce(ctx context.Context, draft model.Order, lines []orderLine) (PlaceOrderResult, error) {
	var out PlaceOrderResult

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		// 同じキーなら同じ結果
		if draft.IdempotencyKey != nil {
			existing, found, err := r.Orders().FindByIdempotencyKey(ctx, draft.UserID, *draft.IdempotencyKey)
			if err != nil {
				return fmt.Errorf("find by idempotency key: %w", err)
			}
			if found {
				items, err := r.OrderItems().ListByOrderID(ctx, existing.ID)
				if err != nil {
					return fmt.Errorf("list order items: %w", err)
				}
				out = PlaceOrderResult{Order: toOrderOutput(existing, items), Replayed: true}
				return nil
			}
		}

		ids := make([]int64, 0, len(lines))
		for _, l := range lines {
			ids = append(ids, l.ProductID)
		}

		//有効な商品だけ1クエリで取る
		products, err := r.Products().FindActiveByIDs(ctx, ids)
		if err != nil {
			return fmt.Errorf("find products: %w", err)
		}
		if len(products) < len(ids) {
			return NewHTTPError(http.StatusBadRequest, msgProductsUnavailable)
		}
		byID := make(map[int64]model.Product, len(products))
		for _, p := range products {
			byID[p.ID] = p
		}

		//書き込む前に全件チェック
		for _, l := range lines {
			p := byID[l.ProductID]
			if l.Quantity > p.StockQuantity {
				return insufficientStock(p.Name, p.StockQuantity)
			}
		}

		//金額はDBの価格で計算（クライアントの値は使わない）
		var total model.Money
		items := make([]model.OrderItem, 0, len(lines))
		for _, l := range lines {
			p := byID[l.ProductID]
			total += p.Price.Mul(l.Quantity)
			items = append(items, model.OrderItem{
				ProductID:   p.ID,
				ProductName: p.Name,
				Quantity:    l.Quantity,
				Price:       p.Price,
			})
		}

		order := draft
		order.OrderNumber = u.numbers.Next(u.now())
		order.TotalAmount = total
		if err := r.Orders().Create(ctx, &order); err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		if err := r.OrderItems().CreateBulk(ctx, order.ID, items); err != nil {
			return fmt.Errorf("create order items: %w", err)
		}

		//条件付きUPDATEで減算（同時注文でもマイナスにならない）
		for _, l := range lines {
			ok, err := r.Inventory().DecreaseStockIfEnough(ctx, l.ProductID, l.Quantity)
			if err != nil {
				return fmt.Errorf("decrease stock: %w", err)
			}
			if !ok {
				available, err := r.Inventory().GetStockForUpdate(ctx, l.ProductID)
				if err != nil {
					return fmt.Errorf("read stock: %w", err)
				}
				return insufficientStock(byID[l.ProductID].Name, available)
			}
		}

		out = PlaceOrderResult{Order: toOrderOutput(order, items)}
		return nil
	})

	if err != nil {
		return PlaceOrderResult{}, err
	}
	return out, nil
}

// 本人 or 管理者。在庫を戻して cancelled / refunded にする
func (u *OrderUsecase) CancelOrder(ctx context.Context, actor Actor, orderID int64) (OrderOutput, error) {
	if actor.UserID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
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
		if !actor.IsAdmin() && o.UserID != actor.UserID {
			return NewHTTPError(http.StatusForbidden, "not authorized to cancel this order")
		}

		before = o
		cancelled, items, err := cancelOrderTx(ctx, r, actor.UserID, o, u.now())
		if err != nil {
			return err
		}
		out = toOrderOutput(cancelled, items)
		return nil
	})
	if err != nil {
		if he, ok := AsHTTPError(err); ok {
			return OrderOutput{}, he
		}
		return OrderOutput{}, u.internal("cancel order", err)
	}

	u.log.Info("order cancelled", zap.Int64("order_id", orderID), zap.Int64("actor_user_id", actor.UserID))
	u.publish(ctx, OrderEvent{
		Type:                  OrderEventCancelled,
		OrderID:               out.ID,
		OrderNumber:           out.OrderNumber,
		UserID:                out.UserID,
		Status:                model.OrderStatusCancelled,
		PreviousStatus:        before.Status,
		PaymentStatus:         model.PaymentStatusRefunded,
		PreviousPaymentStatus: before.PaymentStatus,
		TotalAmount:           out.TotalAmount,
		OccurredAt:            u.now(),
	})
	return out, nil
}

// 補償トランザクション本体（ロック済みの注文を渡す）。管理者のステータス更新からも使う
func cancelOrderTx(ctx context.Context, r repo.TxRepos, actorUserID int64, o model.Order, now time.Time) (model.Order, []model.OrderItem, error) {
	if o.Status.IsTerminal() {
		return model.Order{}, nil, NewHTTPError(http.StatusBadRequest, msgCannotCancel)
	}

	items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
	if err != nil {
		return model.Order{}, nil, fmt.Errorf("list order items: %w", err)
	}

	//相対加算で戻す（絶対値で上書きしない）
	for _, it := range items {
		if err := r.Inventory().IncreaseStock(ctx, it.ProductID, it.Quantity); err != nil {
			return model.Order{}, nil, fmt.Errorf("restore stock: %w", err)
		}
	}

	status := model.OrderStatusCancelled
	payment := model.PaymentStatusRefunded
	ok, err := r.Orders().UpdateStatusIf(ctx, o.ID, o.Status, repo.OrderStatusUpdate{Status: &status, PaymentStatus: &payment})
	if err != nil {
		return model.Order{}, nil, fmt.Errorf("update order status: %w", err)
	}
	if !ok {
		return model.Order{}, nil, NewHTTPError(http.StatusBadRequest, msgCannotCancel)
	}

	if err := r.AuditLogs().Create(ctx, model.AuditLog{
		ActorUserID:  actorUserID,
		Action:       model.AuditActionCancelOrder,
		ResourceType: model.AuditResourceOrder,
		ResourceID:   o.ID,
		BeforeJSON:   statusJSON(o.Status, o.PaymentStatus),
		AfterJSON:    statusJSON(status, payment),
		CreatedAt:    now,
	}); err != nil {
		return model.Order{}, nil, fmt.Errorf("create audit log: %w", err)
	}

	o.Status = status
	o.PaymentStatus = payment
	o.UpdatedAt = now
	return o, items, nil
}

type ListOrdersInput struct {
	Page          int
	Limit         int
	Status        string
	PaymentStatus string
}

// 管理者は全件、それ以外は自分の注文だけ
func (u *OrderUsecase) ListOrders(ctx context.Context, actor Actor, in ListOrdersInput) (OrderListOutput, error) {
	if actor.UserID <= 0 {
		return OrderListOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if in.Page < 1 {
		return OrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid page")
	}
	if in.Limit < 1 || in.Limit > 100 {
		return OrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}

	f := repo.OrderListFilter{Page: in.Page, Limit: in.Limit}
	if in.Status != "" {
		s := model.OrderStatus(in.Status)
		if !s.Valid() {
			return OrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid order status")
		}
		f.Status = s
	}
	if in.PaymentStatus != "" {
		ps := model.PaymentStatus(in.PaymentStatus)
		if !ps.Valid() {
			return OrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid payment status")
		}
		f.PaymentStatus = ps
	}
	if !actor.IsAdmin() {
		uid := actor.UserID
		f.UserID = &uid
	}

	var out OrderListOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, total, err := r.Orders().List(ctx, f)
		if err != nil {
			return err
		}

		ids := make([]int64, 0, len(orders))
		for _, o := range orders {
			ids = append(ids, o.ID)
		}
		itemsByOrder, err := r.OrderItems().ListByOrderIDs(ctx, ids)
		if err != nil {
			return err
		}

		out = OrderListOutput{
			Items: make([]OrderOutput, 0, len(orders)),
			Total: total,
			Page:  in.Page,
			Limit: in.Limit,
			Pages: pageCount(total, in.Limit),
		}
		for _, o := range orders {
			out.Items = append(out.Items, toOrderOutput(o, itemsByOrder[o.ID]))
		}
		return nil
	})
	if err != nil {
		return OrderListOutput{}, u.internal("list orders", err)
	}
	return out, nil
}

func (u *OrderUsecase) GetOrder(ctx context.Context, actor Actor, orderID int64) (OrderOutput, error) {
	if actor.UserID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var out OrderOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "order not found")
		}
		if err != nil {
			return err
		}
		if !actor.IsAdmin() && o.UserID != actor.UserID {
			return NewHTTPError(http.StatusForbidden, "not authorized to view this order")
		}

		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return err
		}
		out = toOrderOutput(o, items)
		return nil
	})
	if err != nil {
		if he, ok := AsHTTPError(err); ok {
			return OrderOutput{}, he
		}
		return OrderOutput{}, u.internal("get order", err)
	}
	return out, nil
}

func (u *OrderUsecase) findByIdempotencyKey(ctx context.Context, userID int64, key string) (OrderOutput, bool, error) {
	var (
		out   OrderOutput
		found bool
	)
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, ok, err := r.Orders().FindByIdempotencyKey(ctx, userID, key)
		if err != nil || !ok {
			return err
		}
		items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
		if err != nil {
			return err
		}
		out, found = toOrderOutput(o, items), true
		return nil
	})
	return out, found, err
}

func (u *OrderUsecase) publish(ctx context.Context, e OrderEvent) {
	publishOrderEvent(ctx, u.events, u.log, e)
}

func (u *OrderUsecase) internal(op string, err error) error {
	u.log.Error(op, zap.Error(err))
	return errInternal
}

func publishOrderEvent(ctx context.Context, events OrderEventPublisher, log *zap.Logger, e OrderEvent) {
	if events == nil {
		return
	}
	// リクエストがキャンセルされても送る
	if err := events.Publish(context.WithoutCancel(ctx), e); err != nil {
		log.Warn("publish order event failed",
			zap.String("type", string(e.Type)),
			zap.Int64("order_id", e.OrderID),
			zap.Error(err),
		)
	}
}

// 同じ商品の行はまとめる（数量は合計）
func mergeOrderLines(items []PlaceOrderItemInput) ([]orderLine, error) {
	if len(items) == 0 {
		return nil, NewValidationError(FieldError{Field: "items", Message: "order must contain at least one item"})
	}

	var details []FieldError
	lines := make([]orderLine, 0, len(items))
	index := make(map[int64]int, len(items))
	for i, it := range items {
		if it.ProductID < 1 {
			details = append(details, FieldError{Field: fmt.Sprintf("items[%d].product_id", i), Message: "each item must have a valid product ID"})
			continue
		}
		if it.Quantity < 1 {
			details = append(details, FieldError{Field: fmt.Sprintf("items[%d].quantity", i), Message: "each item must have a quantity of at least 1"})
			continue
		}
		if it.Quantity > model.MaxLineQuantity {
			details = append(details, FieldError{Field: fmt.Sprintf("items[%d].quantity", i), Message: msgQuantityTooLarge})
			continue
		}
		if at, ok := index[it.ProductID]; ok {
			//加算前に上限と比べる（オーバーフローさせない）
			if it.Quantity > model.MaxLineQuantity-lines[at].Quantity {
				details = append(details, FieldError{Field: fmt.Sprintf("items[%d].quantity", i), Message: msgQuantityTooLarge})
				continue
			}
			lines[at].Quantity += it.Quantity
			continue
		}
		index[it.ProductID] = len(lines)
		lines = append(lines, orderLine{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	if len(details) > 0 {
		return nil, NewValidationError(details...)
	}
	return lines, nil
}

func insufficientStock(name string, available int64) error {
	return NewHTTPError(http.StatusBadRequest, fmt.Sprintf("insufficient stock for %s. Available: %d", name, available))
}

func statusJSON(s model.OrderStatus, ps model.PaymentStatus) string {
	b, _ := json.Marshal(struct {
		Status        model.OrderStatus   `json:"status"`
		PaymentStatus model.PaymentStatus `json:"payment_status"`
	}{s, ps})
	return string(b)
}

func pageCount(total int64, limit int) int {
	if limit <= 0 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}

func toOrderOutput(o model.Order, items []model.OrderItem) OrderOutput {
	outItems := make([]OrderItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, OrderItemOutput{
			ID:          it.ID,
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Price:       it.Price,
			Quantity:    it.Quantity,
			Subtotal:    it.Subtotal(),
		})
	}

	out := OrderOutput{
		ID:              o.ID,
		UserID:          o.UserID,
		OrderNumber:     o.OrderNumber,
		TotalAmount:     o.TotalAmount,
		Status:          string(o.Status),
		PaymentStatus:   string(o.PaymentStatus),
		PaymentMethod:   string(o.PaymentMethod),
		DeliveryAddress: o.DeliveryAddress,
		DeliveryPhone:   o.DeliveryPhone,
		DeliveryNotes:   o.DeliveryNotes,
		DeliveryTime:    o.DeliveryTime,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
		Items:           outItems,
	}
	if o.DeliveryDate != nil {
		out.DeliveryDate = o.DeliveryDate.Format(time.DateOnly)
	}
	return out
}

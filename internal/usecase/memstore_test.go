package usecase_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"ccmart/internal/domain/model"
	repo "ccmart/internal/repository"
	"ccmart/internal/usecase"
)

// =====================
// インメモリのTxManager（fnがerrorならスナップショットに戻す）
// =====================

type memState struct {
	products    map[int64]model.Product
	orders      map[int64]model.Order
	items       map[int64][]model.OrderItem
	audits      []model.AuditLog
	adjustments []model.InventoryAdjustment
	nextOrderID int64
	nextItemID  int64
}

func (s memState) clone() memState {
	c := memState{
		products:    make(map[int64]model.Product, len(s.products)),
		orders:      make(map[int64]model.Order, len(s.orders)),
		items:       make(map[int64][]model.OrderItem, len(s.items)),
		audits:      append([]model.AuditLog(nil), s.audits...),
		adjustments: append([]model.InventoryAdjustment(nil), s.adjustments...),
		nextOrderID: s.nextOrderID,
		nextItemID:  s.nextItemID,
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.items {
		c.items[k] = append([]model.OrderItem(nil), v...)
	}
	return c
}

type memStore struct {
	mu    sync.Mutex
	state memState

	// 故障注入
	duplicateCreates int                                  // Orders().Create をこの回数だけ ErrDuplicateKey にする
	beforeDecrease   func(st *memState, productID int64) // 減算の直前に在庫を横取りする
	auditErr         error
	txCount          int
}

func newMemStore(products ...model.Product) *memStore {
	s := &memStore{state: memState{
		products: map[int64]model.Product{},
		orders:   map[int64]model.Order{},
		items:    map[int64][]model.OrderItem{},
	}}
	for _, p := range products {
		s.state.products[p.ID] = p
	}
	return s
}

func (s *memStore) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txCount++

	work := s.state.clone()
	if err := fn(&memTx{store: s, st: &work}); err != nil {
		return err
	}
	s.state = work
	return nil
}

func (s *memStore) stock(id int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.products[id].StockQuantity
}

func (s *memStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.orders)
}

func (s *memStore) itemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, it := range s.state.items {
		n += len(it)
	}
	return n
}

func (s *memStore) order(id int64) model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.orders[id]
}

func (s *memStore) auditLogs() []model.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.AuditLog(nil), s.state.audits...)
}

// 既存注文を直接入れる
func (s *memStore) seedOrder(o model.Order, items ...model.OrderItem) model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.nextOrderID++
	o.ID = s.state.nextOrderID
	for i := range items {
		s.state.nextItemID++
		items[i].ID = s.state.nextItemID
		items[i].OrderID = o.ID
	}
	s.state.orders[o.ID] = o
	s.state.items[o.ID] = items
	return o
}

type memTx struct {
	store *memStore
	st    *memState
}

func (t *memTx) Orders() repo.OrderRepository         { return memOrders{t} }
func (t *memTx) OrderItems() repo.OrderItemRepository { return memOrderItems{t} }
func (t *memTx) Inventory() repo.InventoryRepository  { return memInventory{t} }
func (t *memTx) Products() repo.ProductRepository     { return memProducts{t} }
func (t *memTx) AuditLogs() repo.AuditLogRepository   { return memAudit{t} }

type memOrders struct{ t *memTx }

func (r memOrders) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	o, ok := r.t.st.orders[orderID]
	if !ok {
		return model.Order{}, repo.ErrNotFound
	}
	return o, nil
}

func (r memOrders) FindByIDForUpdate(ctx context.Context, orderID int64) (model.Order, error) {
	return r.FindByID(ctx, orderID)
}

func (r memOrders) List(ctx context.Context, f repo.OrderListFilter) ([]model.Order, int64, error) {
	var all []model.Order
	for _, o := range r.t.st.orders {
		if f.UserID != nil && o.UserID != *f.UserID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if f.PaymentStatus != "" && o.PaymentStatus != f.PaymentStatus {
			continue
		}
		all = append(all, o)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })

	total := int64(len(all))
	start := (f.Page - 1) * f.Limit
	if start > len(all) {
		start = len(all)
	}
	end := start + f.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (r memOrders) Create(ctx context.Context, order *model.Order) error {
	if r.t.store.duplicateCreates > 0 {
		r.t.store.duplicateCreates--
		return fmt.Errorf("insert order: %w", repo.ErrDuplicateKey)
	}
	for _, o := range r.t.st.orders {
		if o.OrderNumber == order.OrderNumber {
			return repo.ErrDuplicateKey
		}
		if order.IdempotencyKey != nil && o.IdempotencyKey != nil &&
			o.UserID == order.UserID && *o.IdempotencyKey == *order.IdempotencyKey {
			return repo.ErrDuplicateKey
		}
	}
	r.t.st.nextOrderID++
	order.ID = r.t.st.nextOrderID
	r.t.st.orders[order.ID] = *order
	return nil
}

func (r memOrders) UpdateStatusIf(ctx context.Context, orderID int64, from model.OrderStatus, upd repo.OrderStatusUpdate) (bool, error) {
	o, ok := r.t.st.orders[orderID]
	if !ok || o.Status != from {
		return false, nil
	}
	if upd.Status != nil {
		o.Status = *upd.Status
	}
	if upd.PaymentStatus != nil {
		o.PaymentStatus = *upd.PaymentStatus
	}
	r.t.st.orders[orderID] = o
	return true, nil
}

func (r memOrders) FindByIdempotencyKey(ctx context.Context, userID int64, key string) (model.Order, bool, error) {
	for _, o := range r.t.st.orders {
		if o.UserID == userID && o.IdempotencyKey != nil && *o.IdempotencyKey == key {
			return o, true, nil
		}
	}
	return model.Order{}, false, nil
}

type memOrderItems struct{ t *memTx }

func (r memOrderItems) CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error {
	for _, it := range items {
		r.t.st.nextItemID++
		it.ID = r.t.st.nextItemID
		it.OrderID = orderID
		r.t.st.items[orderID] = append(r.t.st.items[orderID], it)
	}
	return nil
}

func (r memOrderItems) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	return append([]model.OrderItem(nil), r.t.st.items[orderID]...), nil
}

func (r memOrderItems) ListByOrderIDs(ctx context.Context, orderIDs []int64) (map[int64][]model.OrderItem, error) {
	out := make(map[int64][]model.OrderItem, len(orderIDs))
	for _, id := range orderIDs {
		out[id] = append([]model.OrderItem(nil), r.t.st.items[id]...)
	}
	return out, nil
}

type memInventory struct{ t *memTx }

func (r memInventory) GetStockForUpdate(ctx context.Context, productID int64) (int64, error) {
	p, ok := r.t.st.products[productID]
	if !ok {
		return 0, repo.ErrNotFound
	}
	return p.StockQuantity, nil
}

func (r memInventory) SetStock(ctx context.Context, productID int64, newStock int64) error {
	p, ok := r.t.st.products[productID]
	if !ok {
		return repo.ErrNotFound
	}
	p.StockQuantity = newStock
	r.t.st.products[productID] = p
	return nil
}

func (r memInventory) DecreaseStockIfEnough(ctx context.Context, productID int64, qty int64) (bool, error) {
	if qty <= 0 {
		return false, repo.ErrInvalidQuantity
	}
	if r.t.store.beforeDecrease != nil {
		r.t.store.beforeDecrease(r.t.st, productID)
	}
	p, ok := r.t.st.products[productID]
	if !ok || p.StockQuantity < qty {
		return false, nil
	}
	p.StockQuantity -= qty
	r.t.st.products[productID] = p
	return true, nil
}

func (r memInventory) IncreaseStock(ctx context.Context, productID int64, qty int64) error {
	if qty <= 0 {
		return repo.ErrInvalidQuantity
	}
	p, ok := r.t.st.products[productID]
	if !ok {
		return repo.ErrNotFound
	}
	p.StockQuantity += qty
	r.t.st.products[productID] = p
	return nil
}

func (r memInventory) CreateAdjustment(ctx context.Context, adjustment model.InventoryAdjustment) error {
	r.t.st.adjustments = append(r.t.st.adjustments, adjustment)
	return nil
}

type memProducts struct{ t *memTx }

func (r memProducts) ListPublic(ctx context.Context, q repo.ProductListQuery) ([]model.Product, int64, error) {
	panic("not used in order tests")
}

func (r memProducts) ListFeatured(ctx context.Context, limit int) ([]model.Product, error) {
	panic("not used in order tests")
}

func (r memProducts) FindByID(ctx context.Context, id int64) (model.Product, error) {
	p, ok := r.t.st.products[id]
	if !ok {
		return model.Product{}, repo.ErrNotFound
	}
	return p, nil
}

func (r memProducts) FindActiveByIDs(ctx context.Context, ids []int64) ([]model.Product, error) {
	var out []model.Product
	for _, id := range ids {
		if p, ok := r.t.st.products[id]; ok && p.IsActive {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r memProducts) Create(ctx context.Context, p model.Product) (model.Product, error) {
	panic("not used in order tests")
}

func (r memProducts) Update(ctx context.Context, p model.Product) error {
	panic("not used in order tests")
}

func (r memProducts) Deactivate(ctx context.Context, id int64) error {
	panic("not used in order tests")
}

type memAudit struct{ t *memTx }

func (r memAudit) Create(ctx context.Context, log model.AuditLog) error {
	if r.t.store.auditErr != nil {
		return r.t.store.auditErr
	}
	r.t.st.audits = append(r.t.st.audits, log)
	return nil
}

func (r memAudit) List(ctx context.Context, filter repo.AuditLogFilter) ([]model.AuditLog, error) {
	return append([]model.AuditLog(nil), r.t.st.audits...), nil
}

var _ repo.TransactionManager = (*memStore)(nil)

// =====================
// 周辺の差し替え
// =====================

// 連番の注文番号
type seqOrderNumbers struct {
	mu sync.Mutex
	n  int
}

func (g *seqOrderNumbers) Next(now time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("CC%09d", g.n)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []usecase.OrderEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, e usecase.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) types() []usecase.OrderEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]usecase.OrderEventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

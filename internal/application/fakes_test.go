package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sanosuguru/go-seat-checkout/internal/domain/discount"
	"github.com/sanosuguru/go-seat-checkout/internal/domain/notification"
	"github.com/sanosuguru/go-seat-checkout/internal/domain/order"
	"github.com/sanosuguru/go-seat-checkout/internal/domain/payment"
	"github.com/sanosuguru/go-seat-checkout/internal/domain/sale"
	"github.com/sanosuguru/go-seat-checkout/internal/domain/seat"
	"github.com/sanosuguru/go-seat-checkout/internal/domain/transaction"
)

// === Mock implementations ===

// MockGateway implements payment.Gateway
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Capture(ctx context.Context, req payment.CaptureRequest) (payment.Outcome, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(payment.Outcome), args.Error(1)
}

func (m *MockGateway) Refund(ctx context.Context, req payment.RefundRequest) (payment.Outcome, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(payment.Outcome), args.Error(1)
}

// MockDispatcher implements notification.Dispatcher
type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) OrderCaptured(ctx context.Context, ev notification.OrderCaptured) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

// === In-memory fakes ===

type fakeTx struct {
	committed bool
}

func (t *fakeTx) Commit() error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback() error { return nil }

type fakeTxManager struct {
	mu      sync.Mutex
	commits int
}

func (m *fakeTxManager) Begin(context.Context) (transaction.Tx, error) {
	return &txCounter{fakeTx: &fakeTx{}, m: m}, nil
}

type txCounter struct {
	*fakeTx
	m *fakeTxManager
}

func (t *txCounter) Commit() error {
	t.m.mu.Lock()
	t.m.commits++
	t.m.mu.Unlock()
	return t.fakeTx.Commit()
}

// fakeSeatRepo は座席マスタと座席状態をメモリ上で保持する
// トランザクションはロールバックされない点に注意
type fakeSeatRepo struct {
	mu        sync.Mutex
	seats     map[string]*seat.Seat
	seatTypes map[string]*seat.SeatType
	options   map[string]*seat.Option
	areas     map[string]*seat.Area
	sellErr   error
}

func newFakeSeatRepo() *fakeSeatRepo {
	return &fakeSeatRepo{
		seats:     make(map[string]*seat.Seat),
		seatTypes: make(map[string]*seat.SeatType),
		options:   make(map[string]*seat.Option),
		areas:     make(map[string]*seat.Area),
	}
}

func (r *fakeSeatRepo) GetByIDs(_ context.Context, ids []string) ([]*seat.Seat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*seat.Seat
	for _, id := range ids {
		if s, ok := r.seats[id]; ok {
			copied := *s
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (r *fakeSeatRepo) GetSeatTypesByIDs(_ context.Context, ids []string) ([]*seat.SeatType, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*seat.SeatType
	for _, id := range ids {
		if st, ok := r.seatTypes[id]; ok {
			result = append(result, st)
		}
	}
	return result, nil
}

func (r *fakeSeatRepo) GetOptionsByIDs(_ context.Context, ids []string) ([]*seat.Option, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*seat.Option
	for _, id := range ids {
		if o, ok := r.options[id]; ok {
			result = append(result, o)
		}
	}
	return result, nil
}

func (r *fakeSeatRepo) GetAreasByIDs(_ context.Context, ids []string) ([]*seat.Area, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*seat.Area
	for _, id := range ids {
		if a, ok := r.areas[id]; ok {
			result = append(result, a)
		}
	}
	return result, nil
}

func (r *fakeSeatRepo) CountByUnitGroups(_ context.Context, groupIDs []string) (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[string]int)
	for _, s := range r.seats {
		if s.UnitGroupID == nil || s.Status == seat.StatusWithdrawn {
			continue
		}
		for _, g := range groupIDs {
			if *s.UnitGroupID == g {
				counts[g]++
			}
		}
	}
	return counts, nil
}

func (r *fakeSeatRepo) HoldSeats(_ context.Context, _ transaction.Tx, ids []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		s, ok := r.seats[id]
		if !ok || s.Status != seat.StatusAvailable {
			return seat.ErrSeatNotAvailable
		}
	}
	for _, id := range ids {
		r.seats[id].Status = seat.StatusTemporarilyHeld
	}
	return nil
}

func (r *fakeSeatRepo) SellSeats(_ context.Context, _ transaction.Tx, ids []string, ownerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sellErr != nil {
		return r.sellErr
	}
	for _, id := range ids {
		s, ok := r.seats[id]
		if !ok || s.Status != seat.StatusTemporarilyHeld {
			return seat.ErrSeatNotHeld
		}
	}
	for _, id := range ids {
		owner := ownerID
		r.seats[id].Status = seat.StatusSold
		r.seats[id].OwnerID = &owner
	}
	return nil
}

func (r *fakeSeatRepo) ReleaseSeats(_ context.Context, _ transaction.Tx, ids []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		if s, ok := r.seats[id]; ok && s.Status != seat.StatusWithdrawn {
			s.Status = seat.StatusAvailable
			s.OwnerID = nil
		}
	}
	return nil
}

func (r *fakeSeatRepo) status(id string) seat.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seats[id].Status
}

type fakeSaleRepo struct {
	sales map[string]*sale.Sale
}

func (r *fakeSaleRepo) GetByID(_ context.Context, id string) (*sale.Sale, error) {
	if s, ok := r.sales[id]; ok {
		return s, nil
	}
	return nil, sale.ErrSaleNotFound
}

func (r *fakeSaleRepo) GetByIDs(_ context.Context, ids []string) ([]*sale.Sale, error) {
	var result []*sale.Sale
	for _, id := range ids {
		if s, ok := r.sales[id]; ok {
			result = append(result, s)
		}
	}
	return result, nil
}

type fakeDiscountRepo struct {
	mu        sync.Mutex
	coupons   map[string]*discount.Coupon // key: couponID
	campaigns map[string]*discount.Campaign
}

func newFakeDiscountRepo() *fakeDiscountRepo {
	return &fakeDiscountRepo{
		coupons:   make(map[string]*discount.Coupon),
		campaigns: make(map[string]*discount.Campaign),
	}
}

func (r *fakeDiscountRepo) GetUserCoupon(_ context.Context, couponID, userID string) (*discount.Coupon, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.coupons[couponID]
	if !ok || c.UserID != userID {
		return nil, discount.ErrCouponNotFound
	}
	copied := *c
	return &copied, nil
}

func (r *fakeDiscountRepo) GetCampaignByCode(_ context.Context, code string) (*discount.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[code]
	if !ok {
		return nil, discount.ErrCampaignNotFound
	}
	copied := *c
	return &copied, nil
}

func (r *fakeDiscountRepo) MarkCouponUsed(_ context.Context, _ transaction.Tx, couponID, userID string, usedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.coupons[couponID]
	if !ok || c.UserID != userID {
		return discount.ErrCouponNotFound
	}
	if c.UsedAt != nil {
		return discount.ErrCouponAlreadyUsed
	}
	c.UsedAt = &usedAt
	return nil
}

func (r *fakeDiscountRepo) IncrementCampaignUsage(_ context.Context, _ transaction.Tx, campaignID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.campaigns {
		if c.ID != campaignID {
			continue
		}
		if c.IsUsageLimitReached() {
			return discount.ErrCampaignUsageLimitReached
		}
		c.UsageCount++
		return nil
	}
	return discount.ErrCampaignNotFound
}

type fakeOrderRepo struct {
	mu       sync.Mutex
	seq      int
	orders   map[string]*order.Order
	payments map[string]*order.Payment
	tickets  map[string][]order.Ticket
	// beforeUpdate は Update の直前に保存済みの注文を書き換える
	beforeUpdate func(stored *order.Order)
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{
		orders:   make(map[string]*order.Order),
		payments: make(map[string]*order.Payment),
		tickets:  make(map[string][]order.Ticket),
	}
}

func (r *fakeOrderRepo) Create(_ context.Context, _ transaction.Tx, o *order.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	o.ID = fmt.Sprintf("order-%d", r.seq)
	copied := *o
	r.orders[o.ID] = &copied
	return nil
}

func (r *fakeOrderRepo) GetByID(_ context.Context, id string) (*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	copied := *o
	return &copied, nil
}

func (r *fakeOrderRepo) GetByIDTx(ctx context.Context, _ transaction.Tx, id string) (*order.Order, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeOrderRepo) Update(_ context.Context, _ transaction.Tx, o *order.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.orders[o.ID]
	if !ok {
		return order.ErrOrderStatusConflict
	}
	if r.beforeUpdate != nil {
		r.beforeUpdate(stored)
	}
	allowed := false
	for _, st := range order.PreviousStatuses(o.Status) {
		if stored.Status == st {
			allowed = true
		}
	}
	if !allowed {
		return order.ErrOrderStatusConflict
	}
	copied := *o
	r.orders[o.ID] = &copied
	return nil
}

func (r *fakeOrderRepo) CreatePayment(_ context.Context, _ transaction.Tx, p *order.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *p
	r.payments[p.OrderID] = &copied
	return nil
}

func (r *fakeOrderRepo) MarkPaymentRefunded(_ context.Context, _ transaction.Tx, orderID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[orderID]
	if !ok {
		return order.ErrOrderNotFound
	}
	p.Status = order.PaymentStatusRefunded
	p.RefundedAt = &at
	return nil
}

func (r *fakeOrderRepo) CreateTickets(_ context.Context, _ transaction.Tx, tickets []order.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range tickets {
		r.tickets[t.OrderID] = append(r.tickets[t.OrderID], t)
	}
	return nil
}

func (r *fakeOrderRepo) GetStalePending(_ context.Context, olderThan time.Duration) ([]*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	threshold := time.Now().Add(-olderThan)
	var result []*order.Order
	for _, o := range r.orders {
		if o.Status == order.StatusPending && o.CreatedAt.Before(threshold) {
			copied := *o
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (r *fakeOrderRepo) get(id string) *order.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.orders[id]
}

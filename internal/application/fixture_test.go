package application

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sanosuguru/go-seat-checkout/internal/domain/cart"
	"github.com/sanosuguru/go-seat-checkout/internal/domain/discount"
	"github.com/sanosuguru/go-seat-checkout/internal/domain/sale"
	"github.com/sanosuguru/go-seat-checkout/internal/domain/seat"
	"github.com/sanosuguru/go-seat-checkout/internal/infrastructure/kv"
	"github.com/sanosuguru/go-seat-checkout/internal/infrastructure/memory"
)

const holdTTL = 15 * time.Minute

var baseTime = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	clock      *testClock
	seats      *fakeSeatRepo
	sales      *fakeSaleRepo
	discounts  *fakeDiscountRepo
	orders     *fakeOrderRepo
	txManager  *fakeTxManager
	locker     *kv.SeatLock
	carts      *kv.CartStore
	gateway    *MockGateway
	dispatcher *MockDispatcher
	validator  *OrderValidator
	cart       *CartService
	checkout   *CheckoutService
}

// newTestEnv は次の在庫を持つテスト環境を作成する
//   - 販売中の販売枠 sale-1（開催回 schedule-1）
//   - 1席販売の座席 A〜D（席種 st-a, 1000円, オプション opt-child -300円）
//   - ユニット販売の座席 box-1-1〜box-1-5（席種 st-box, 5000円）
//   - user-1 に配布された30%クーポン coupon-1、20%キャンペーン SPRING
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	clk := &testClock{now: baseTime}
	seats := newFakeSeatRepo()
	seats.areas["area-1"] = &seat.Area{ID: "area-1", Name: "1階", Displayable: true}
	seats.seatTypes["st-a"] = &seat.SeatType{ID: "st-a", SaleID: "sale-1", Name: "S席", Price: 1000}
	seats.seatTypes["st-box"] = &seat.SeatType{ID: "st-box", SaleID: "sale-1", Name: "ボックス席", Price: 5000}
	seats.options["opt-child"] = &seat.Option{ID: "opt-child", SeatTypeID: "st-a", Name: "子供", PriceDelta: -300}
	for _, id := range []string{"A", "B", "C", "D"} {
		seats.seats[id] = &seat.Seat{
			ID:         id,
			SeatTypeID: "st-a",
			AreaID:     "area-1",
			SalesMode:  seat.SalesModeSingle,
			Status:     seat.StatusAvailable,
		}
	}
	for i := 1; i <= 5; i++ {
		id := fmt.Sprintf("box-1-%d", i)
		seats.seats[id] = &seat.Seat{
			ID:          id,
			SeatTypeID:  "st-box",
			AreaID:      "area-1",
			SalesMode:   seat.SalesModeUnit,
			UnitGroupID: strPtr("box-1"),
			Status:      seat.StatusAvailable,
		}
	}

	sales := &fakeSaleRepo{sales: map[string]*sale.Sale{
		"sale-1": {
			ID:         "sale-1",
			ScheduleID: "schedule-1",
			Name:       "一般販売",
			Status:     sale.StatusOnSale,
			StartAt:    baseTime.Add(-24 * time.Hour),
			EndAt:      baseTime.Add(24 * time.Hour),
		},
	}}

	discounts := newFakeDiscountRepo()
	discounts.coupons["coupon-1"] = &discount.Coupon{
		ID:      "coupon-1",
		Title:   "30%オフ",
		Rate:    30,
		StartAt: baseTime.Add(-time.Hour),
		EndAt:   baseTime.Add(time.Hour),
		UserID:  "user-1",
	}
	discounts.campaigns["SPRING"] = &discount.Campaign{
		ID:       "campaign-1",
		Code:     "SPRING",
		Title:    "春のキャンペーン",
		Rate:     20,
		Approved: true,
		StartAt:  baseTime.Add(-time.Hour),
		EndAt:    baseTime.Add(time.Hour),
	}

	store := memory.NewStore(memory.WithClock(clk.Now))
	locker := kv.NewSeatLock(store, nil)
	carts := kv.NewCartStore(store)

	validator := NewOrderValidator(seats, sales, discounts, 0)
	validator.now = clk.Now
	cartService := NewCartService(validator, locker, carts, holdTTL, nil)

	env := &testEnv{
		clock:      clk,
		seats:      seats,
		sales:      sales,
		discounts:  discounts,
		orders:     newFakeOrderRepo(),
		txManager:  &fakeTxManager{},
		locker:     locker,
		carts:      carts,
		gateway:    new(MockGateway),
		dispatcher: new(MockDispatcher),
		validator:  validator,
		cart:       cartService,
	}
	env.checkout = NewCheckoutService(env.txManager, env.orders, seats, discounts, validator, cartService, env.gateway, env.dispatcher, nil)
	env.checkout.now = clk.Now
	return env
}

func lines(seatIDs ...string) []cart.Line {
	result := make([]cart.Line, len(seatIDs))
	for i, id := range seatIDs {
		result[i] = cart.Line{SeatID: id}
	}
	return result
}

func boxLines() []cart.Line {
	return lines("box-1-1", "box-1-2", "box-1-3", "box-1-4", "box-1-5")
}

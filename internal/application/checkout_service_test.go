package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-seat-checkout/internal/domain/cart"
	"github.com/sanosuguru/go-seat-checkout/internal/domain/checkout"
	"github.com/sanosuguru/go-seat-checkout/internal/domain/notification"
	"github.com/sanosuguru/go-seat-checkout/internal/domain/order"
	"github.com/sanosuguru/go-seat-checkout/internal/domain/payment"
	"github.com/sanosuguru/go-seat-checkout/internal/domain/seat"
)

// prepareCart はカートを作成して決済参照を設定する
func prepareCart(t *testing.T, env *testEnv, userID string, in SelectionInput) {
	t.Helper()
	ctx := context.Background()
	result, err := env.cart.ReplaceSelection(ctx, userID, in)
	require.NoError(t, err)
	require.True(t, result.OK(), "error_code=%s lost=%s", result.ErrorCode, result.LostSeatID)
	_, err = env.cart.SetPaymentReference(ctx, userID, "pi_123")
	require.NoError(t, err)
}

func TestCheckoutService_Checkout(t *testing.T) {
	ctx := context.Background()

	t.Run("決済を確定して座席を販売済みにする", func(t *testing.T) {
		env := newTestEnv(t)
		prepareCart(t, env, "user-1", SelectionInput{Lines: lines("A", "B", "C"), CouponID: strPtr("coupon-1")})
		env.gateway.On("Capture", mock.Anything, mock.MatchedBy(func(req payment.CaptureRequest) bool {
			return req.Reference == "pi_123" && req.Amount == 2100 &&
				len(req.LineItems) == 1 && req.LineItems[0].Quantity == 3
		})).Return(payment.OutcomeSucceeded, nil)
		env.dispatcher.On("OrderCaptured", mock.Anything, mock.MatchedBy(func(ev notification.OrderCaptured) bool {
			return ev.UserID == "user-1" && ev.Total == 2100 && len(ev.SeatIDs) == 3
		})).Return(nil)

		o, err := env.checkout.Checkout(ctx, CheckoutInput{UserID: "user-1"})

		require.NoError(t, err)
		assert.Equal(t, order.StatusCaptured, o.Status)
		assert.Equal(t, 3000, o.Subtotal)
		assert.Equal(t, 900, o.CouponDiscount)
		assert.Equal(t, 2100, o.Total)
		assert.Equal(t, "sale-1", o.SaleID)
		require.NotNil(t, o.CapturedAt)
		assert.Equal(t, baseTime, *o.CapturedAt)

		stored := env.orders.get(o.ID)
		assert.Equal(t, order.StatusCaptured, stored.Status)
		assert.Equal(t, 2100, env.orders.payments[o.ID].Amount)
		assert.Len(t, env.orders.tickets[o.ID], 3)

		for _, id := range []string{"A", "B", "C"} {
			assert.Equal(t, seat.StatusSold, env.seats.status(id))
			assertHeldBy(t, env, id, "user-1", false)
		}
		assert.NotNil(t, env.discounts.coupons["coupon-1"].UsedAt)

		_, err = env.cart.GetCart(ctx, "user-1")
		assert.ErrorIs(t, err, cart.ErrCartNotFound)

		env.gateway.AssertExpectations(t)
		env.dispatcher.AssertExpectations(t)
	})

	t.Run("キャンペーンの利用回数を増やす", func(t *testing.T) {
		env := newTestEnv(t)
		prepareCart(t, env, "user-1", SelectionInput{Lines: lines("A"), CampaignCode: strPtr("SPRING")})
		env.gateway.On("Capture", mock.Anything, mock.Anything).Return(payment.OutcomeSucceeded, nil)
		env.dispatcher.On("OrderCaptured", mock.Anything, mock.Anything).Return(nil)

		o, err := env.checkout.Checkout(ctx, CheckoutInput{UserID: "user-1"})

		require.NoError(t, err)
		assert.Equal(t, 200, o.CampaignDiscount)
		assert.Equal(t, 800, o.Total)
		assert.Equal(t, 1, env.discounts.campaigns["SPRING"].UsageCount)
	})

	t.Run("売上確定済みは成功として扱う", func(t *testing.T) {
		env := newTestEnv(t)
		prepareCart(t, env, "user-1", SelectionInput{Lines: lines("A")})
		env.gateway.On("Capture", mock.Anything, mock.Anything).Return(payment.OutcomeAlreadyCaptured, nil)
		env.dispatcher.On("OrderCaptured", mock.Anything, mock.Anything).Return(nil)

		o, err := env.checkout.Checkout(ctx, CheckoutInput{UserID: "user-1"})

		require.NoError(t, err)
		assert.Equal(t, order.StatusCaptured, o.Status)
		assert.Equal(t, seat.StatusSold, env.seats.status("A"))
	})

	t.Run("通知に失敗しても購入は成功する", func(t *testing.T) {
		env := newTestEnv(t)
		prepareCart(t, env, "user-1", SelectionInput{Lines: lines("A")})
		env.gateway.On("Capture", mock.Anything, mock.Anything).Return(payment.OutcomeSucceeded, nil)
		env.dispatcher.On("OrderCaptured", mock.Anything, mock.Anything).Return(errors.New("broker unavailable"))

		o, err := env.checkout.Checkout(ctx, CheckoutInput{UserID: "user-1"})

		require.NoError(t, err)
		assert.Equal(t, order.StatusCaptured, o.Status)
	})

	t.Run("0円の注文は決済ゲートウェイを呼ばない", func(t *testing.T) {
		env := newTestEnv(t)
		env.seats.options["opt-invite"] = &seat.Option{ID: "opt-invite", SeatTypeID: "st-a", Name: "招待", PriceDelta: -1000}
		prepareCart(t, env, "user-1", SelectionInput{Lines: []cart.Line{{SeatID: "A", OptionID: strPtr("opt-invite")}}})
		env.dispatcher.On("OrderCaptured", mock.Anything, mock.Anything).Return(nil)

		o, err := env.checkout.Checkout(ctx, CheckoutInput{UserID: "user-1"})

		require.NoError(t, err)
		assert.Equal(t, 0, o.Total)
		env.gateway.AssertNotCalled(t, "Capture", mock.Anything, mock.Anything)
	})

	t.Run("決済が拒否された場合は座席を販売可能に戻す", func(t *testing.T) {
		env := newTestEnv(t)
		prepareCart(t, env, "user-1", SelectionInput{Lines: lines("A", "B")})
		env.gateway.On("Capture", mock.Anything, mock.Anything).Return(payment.OutcomeDeclined, nil)

		o, err := env.checkout.Checkout(ctx, CheckoutInput{UserID: "user-1"})

		assert.Nil(t, o)
		var gwErr *GatewayError
		require.ErrorAs(t, err, &gwErr)
		assert.Equal(t, payment.OutcomeDeclined, gwErr.Outcome)

		stored := env.orders.get("order-1")
		assert.Equal(t, order.StatusFailed, stored.Status)
		assert.Equal(t, seat.StatusAvailable, env.seats.status("A"))
		assert.Equal(t, seat.StatusAvailable, env.seats.status("B"))
		assertHeldBy(t, env, "A", "user-1", false)
		env.dispatcher.AssertNotCalled(t, "OrderCaptured", mock.Anything, mock.Anything)
	})

	t.Run("売上確定後に整合性が保てない場合は返金して閉じる", func(t *testing.T) {
		env := newTestEnv(t)
		prepareCart(t, env, "user-1", SelectionInput{Lines: lines("A")})
		env.seats.sellErr = seat.ErrSeatNotHeld
		env.gateway.On("Capture", mock.Anything, mock.Anything).Return(payment.OutcomeSucceeded, nil)
		env.gateway.On("Refund", mock.Anything, mock.MatchedBy(func(req payment.RefundRequest) bool {
			return req.OrderID == "order-1" && req.Amount == 1000
		})).Return(payment.OutcomeSucceeded, nil)

		o, err := env.checkout.Checkout(ctx, CheckoutInput{UserID: "user-1"})

		assert.Nil(t, o)
		var integrityErr *IntegrityError
		require.ErrorAs(t, err, &integrityErr)
		assert.Equal(t, "order-1", integrityErr.OrderID)
		assert.ErrorIs(t, err, seat.ErrSeatNotHeld)

		stored := env.orders.get("order-1")
		assert.Equal(t, order.StatusRefunded, stored.Status)
		assert.NotNil(t, stored.ReturnedAt)
		assert.Equal(t, seat.StatusAvailable, env.seats.status("A"))
		assertHeldBy(t, env, "A", "user-1", false)
		env.gateway.AssertExpectations(t)
	})

	t.Run("仮押さえの期限が切れていればエラー", func(t *testing.T) {
		env := newTestEnv(t)
		prepareCart(t, env, "user-1", SelectionInput{Lines: lines("A")})
		// カートは残したまま座席ロックだけを失わせる
		require.NoError(t, env.locker.Release(ctx, "A", "user-1"))

		_, err := env.checkout.Checkout(ctx, CheckoutInput{UserID: "user-1"})

		assert.ErrorIs(t, err, ErrSeatHoldLost)
		env.gateway.AssertNotCalled(t, "Capture", mock.Anything, mock.Anything)
	})

	t.Run("カート更新後にクーポンが期限切れになった場合は検証エラー", func(t *testing.T) {
		env := newTestEnv(t)
		prepareCart(t, env, "user-1", SelectionInput{Lines: lines("A"), CouponID: strPtr("coupon-1")})
		env.discounts.coupons["coupon-1"].EndAt = baseTime.Add(-time.Minute)

		_, err := env.checkout.Checkout(ctx, CheckoutInput{UserID: "user-1"})

		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, checkout.CodeCouponExpired, vErr.Code)
		assert.Equal(t, seat.StatusAvailable, env.seats.status("A"))
	})

	t.Run("決済参照がなければエラー", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.cart.ReplaceSelection(ctx, "user-1", SelectionInput{Lines: lines("A")})
		require.NoError(t, err)

		_, err = env.checkout.Checkout(ctx, CheckoutInput{UserID: "user-1"})

		assert.ErrorIs(t, err, cart.ErrPaymentReferenceRequired)
	})

	t.Run("入力の決済参照はカートより優先される", func(t *testing.T) {
		env := newTestEnv(t)
		prepareCart(t, env, "user-1", SelectionInput{Lines: lines("A")})
		env.gateway.On("Capture", mock.Anything, mock.MatchedBy(func(req payment.CaptureRequest) bool {
			return req.Reference == "pi_override"
		})).Return(payment.OutcomeSucceeded, nil)
		env.dispatcher.On("OrderCaptured", mock.Anything, mock.Anything).Return(nil)

		o, err := env.checkout.Checkout(ctx, CheckoutInput{UserID: "user-1", PaymentReference: "pi_override"})

		require.NoError(t, err)
		assert.Equal(t, "pi_override", o.PaymentReference)
	})

	t.Run("カートがなければエラー", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.checkout.Checkout(ctx, CheckoutInput{UserID: "user-1", PaymentReference: "pi_123"})

		assert.ErrorIs(t, err, cart.ErrCartNotFound)
	})
}

func TestCheckoutService_Refund(t *testing.T) {
	ctx := context.Background()

	purchase := func(t *testing.T, env *testEnv) *order.Order {
		t.Helper()
		prepareCart(t, env, "user-1", SelectionInput{Lines: lines("A", "B"), CouponID: strPtr("coupon-1")})
		env.gateway.On("Capture", mock.Anything, mock.Anything).Return(payment.OutcomeSucceeded, nil)
		env.dispatcher.On("OrderCaptured", mock.Anything, mock.Anything).Return(nil)
		o, err := env.checkout.Checkout(ctx, CheckoutInput{UserID: "user-1"})
		require.NoError(t, err)
		return o
	}

	t.Run("返金して座席を販売可能に戻す", func(t *testing.T) {
		env := newTestEnv(t)
		o := purchase(t, env)
		env.gateway.On("Refund", mock.Anything, payment.RefundRequest{OrderID: o.ID, Reference: "pi_123", Amount: 1400}).
			Return(payment.OutcomeSucceeded, nil)

		refunded, err := env.checkout.Refund(ctx, o.ID, "user-1")

		require.NoError(t, err)
		assert.Equal(t, order.StatusRefunded, refunded.Status)
		require.NotNil(t, refunded.ReturnedAt)
		assert.Equal(t, seat.StatusAvailable, env.seats.status("A"))
		assert.Nil(t, env.seats.seats["A"].OwnerID)
		assert.Equal(t, order.PaymentStatusRefunded, env.orders.payments[o.ID].Status)
		// クーポンの使用記録は戻さない
		assert.NotNil(t, env.discounts.coupons["coupon-1"].UsedAt)
	})

	t.Run("他のユーザーの注文は見つからない", func(t *testing.T) {
		env := newTestEnv(t)
		o := purchase(t, env)

		_, err := env.checkout.Refund(ctx, o.ID, "user-2")

		assert.ErrorIs(t, err, order.ErrOrderNotFound)
	})

	t.Run("返金済みの注文はエラー", func(t *testing.T) {
		env := newTestEnv(t)
		o := purchase(t, env)
		env.gateway.On("Refund", mock.Anything, mock.Anything).Return(payment.OutcomeSucceeded, nil)
		_, err := env.checkout.Refund(ctx, o.ID, "user-1")
		require.NoError(t, err)

		_, err = env.checkout.Refund(ctx, o.ID, "user-1")

		assert.ErrorIs(t, err, order.ErrOrderAlreadyRefunded)
	})

	t.Run("決済ゲートウェイのエラーは GatewayError", func(t *testing.T) {
		env := newTestEnv(t)
		o := purchase(t, env)
		env.gateway.On("Refund", mock.Anything, mock.Anything).Return(payment.OutcomeGatewayError, errors.New("timeout"))

		_, err := env.checkout.Refund(ctx, o.ID, "user-1")

		var gwErr *GatewayError
		require.ErrorAs(t, err, &gwErr)
		assert.Equal(t, payment.OutcomeGatewayError, gwErr.Outcome)
		assert.Equal(t, order.StatusCaptured, env.orders.get(o.ID).Status)
	})
}

func TestCheckoutService_ReleaseStalePendingOrders(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	stale := order.NewOrder("user-1", "sale-1", "pi_stale", []order.Line{{SeatID: "A", UnitPrice: 1000}, {SeatID: "B", UnitPrice: 1000}})
	stale.CreatedAt = time.Now().Add(-time.Hour)
	require.NoError(t, env.orders.Create(ctx, nil, stale))
	require.NoError(t, env.seats.HoldSeats(ctx, nil, []string{"A", "B"}))

	fresh := order.NewOrder("user-2", "sale-1", "pi_fresh", []order.Line{{SeatID: "C", UnitPrice: 1000}})
	require.NoError(t, env.orders.Create(ctx, nil, fresh))
	require.NoError(t, env.seats.HoldSeats(ctx, nil, []string{"C"}))

	count, err := env.checkout.ReleaseStalePendingOrders(ctx, 10*time.Minute)

	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, order.StatusFailed, env.orders.get(stale.ID).Status)
	assert.Equal(t, seat.StatusAvailable, env.seats.status("A"))
	assert.Equal(t, seat.StatusAvailable, env.seats.status("B"))
	assert.Equal(t, order.StatusPending, env.orders.get(fresh.ID).Status)
	assert.Equal(t, seat.StatusTemporarilyHeld, env.seats.status("C"))
}

func TestCheckoutService_ReleaseStalePendingOrders_ConcurrentCapture(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	stale := order.NewOrder("user-1", "sale-1", "pi_stale", []order.Line{{SeatID: "A", UnitPrice: 1000}})
	stale.CreatedAt = time.Now().Add(-time.Hour)
	require.NoError(t, env.orders.Create(ctx, nil, stale))
	require.NoError(t, env.seats.HoldSeats(ctx, nil, []string{"A"}))

	// 取得後、失敗への更新までの間に決済処理が売上確定する
	capturedAt := time.Now()
	env.orders.beforeUpdate = func(stored *order.Order) {
		if stored.Status == order.StatusPending {
			stored.Status = order.StatusCaptured
			stored.CapturedAt = &capturedAt
		}
	}

	count, err := env.checkout.ReleaseStalePendingOrders(ctx, 10*time.Minute)

	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.Equal(t, order.StatusCaptured, env.orders.get(stale.ID).Status, "売上確定済みの注文は失敗に上書きされない")
}

package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-seat-checkout/internal/domain/cart"
	"github.com/sanosuguru/go-seat-checkout/internal/domain/checkout"
	"github.com/sanosuguru/go-seat-checkout/internal/domain/discount"
	"github.com/sanosuguru/go-seat-checkout/internal/domain/notification"
	"github.com/sanosuguru/go-seat-checkout/internal/domain/order"
	"github.com/sanosuguru/go-seat-checkout/internal/domain/payment"
	"github.com/sanosuguru/go-seat-checkout/internal/domain/seat"
	"github.com/sanosuguru/go-seat-checkout/internal/domain/transaction"
	"github.com/sanosuguru/go-seat-checkout/internal/pkg/logger"
	"github.com/sanosuguru/go-seat-checkout/internal/pkg/metrics"
)

// CheckoutService はカートから注文を作成し、決済の確定と返金を行う
type CheckoutService struct {
	txManager    transaction.Manager
	orderRepo    order.Repository
	seatRepo     seat.Repository
	discountRepo discount.Repository
	validator    *OrderValidator
	carts        *CartService
	gateway      payment.Gateway
	dispatcher   notification.Dispatcher
	metrics      *metrics.Metrics
	now          func() time.Time
}

func NewCheckoutService(
	txm transaction.Manager,
	or order.Repository,
	sr seat.Repository,
	dr discount.Repository,
	v *OrderValidator,
	cs *CartService,
	gw payment.Gateway,
	d notification.Dispatcher,
	m *metrics.Metrics,
) *CheckoutService {
	if d == nil {
		d = notification.Nop{}
	}
	return &CheckoutService{
		txManager:    txm,
		orderRepo:    or,
		seatRepo:     sr,
		discountRepo: dr,
		validator:    v,
		carts:        cs,
		gateway:      gw,
		dispatcher:   d,
		metrics:      m,
		now:          time.Now,
	}
}

// CheckoutInput は購入手続きの入力
// PaymentReference が空の場合はカートに保存された決済参照を使う
type CheckoutInput struct {
	UserID           string
	PaymentReference string
}

// Checkout はカートの内容で注文を作成し、決済を確定する
func (s *CheckoutService) Checkout(ctx context.Context, in CheckoutInput) (*order.Order, error) {
	log := logger.ForUser(in.UserID)

	c, err := s.carts.GetCart(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if c.IsEmpty() {
		return nil, checkout.ErrEmptyCart
	}
	ref := in.PaymentReference
	if ref == "" && c.PaymentReference != nil {
		ref = *c.PaymentReference
	}
	if ref == "" {
		return nil, cart.ErrPaymentReferenceRequired
	}

	// 仮押さえの確認と延長
	held, err := s.carts.RecheckOwnership(ctx, in.UserID)
	if err != nil {
		s.metrics.ObserveCheckout("error")
		return nil, err
	}
	if !held {
		s.metrics.ObserveCheckout("hold_lost")
		return nil, ErrSeatHoldLost
	}

	// カート更新後にクーポンやキャンペーンが失効している可能性があるため再検証する
	req := checkout.Request{UserID: in.UserID, Lines: c.Lines, CouponID: c.CouponID, CampaignCode: c.CampaignCode}
	inv, disc, err := s.validator.Snapshot(ctx, req)
	if err != nil {
		s.metrics.ObserveCheckout("error")
		return nil, err
	}
	if code := s.validator.Check(req, inv, disc); code != checkout.CodeNone {
		log.Info("購入手続き時の検証に失敗", zap.String("error_code", string(code)))
		s.metrics.ObserveCheckout("invalid")
		return nil, &ValidationError{Code: code}
	}

	lines, err := checkout.ResolveLines(c.Lines, inv)
	if err != nil {
		return nil, err
	}
	breakdown, err := checkout.Calculate(lines, appliedDiscount(disc))
	if err != nil {
		return nil, err
	}

	o := buildOrder(c, ref, inv, breakdown)
	if err := o.Validate(); err != nil {
		return nil, err
	}

	// 注文作成と座席の確保
	if err := s.reserve(ctx, o); err != nil {
		s.metrics.ObserveCheckout("error")
		return nil, err
	}
	log = logger.ForOrder(o.ID, in.UserID)

	outcome, gwErr := s.capture(ctx, o, breakdown)
	if !outcome.IsSuccess() {
		log.Warn("決済に失敗", zap.String("outcome", string(outcome)), zap.Error(gwErr))
		s.fail(ctx, o)
		s.metrics.ObserveCheckout(string(outcome))
		return nil, &GatewayError{Outcome: outcome, Err: gwErr}
	}

	if err := s.finalize(ctx, o, disc); err != nil {
		log.Error("売上確定後の整合性エラー", zap.Error(err))
		s.abandon(ctx, o)
		s.metrics.ObserveCheckout("integrity_error")
		return nil, &IntegrityError{OrderID: o.ID, Err: err}
	}

	s.carts.releaseHolds(ctx, o.UserID, o.SeatIDs())
	if err := s.carts.carts.Clear(ctx, o.UserID); err != nil {
		log.Warn("カートの削除に失敗", zap.Error(err))
	}

	if err := s.dispatcher.OrderCaptured(ctx, notification.OrderCaptured{
		OrderID:    o.ID,
		UserID:     o.UserID,
		SeatIDs:    o.SeatIDs(),
		Total:      o.Total,
		CapturedAt: *o.CapturedAt,
	}); err != nil {
		log.Warn("購入完了通知に失敗", zap.Error(err))
	}

	log.Info("購入が完了", zap.Int("total", o.Total), zap.Int("seats", len(o.SeatIDs())))
	s.metrics.ObserveCheckout("captured")
	return o, nil
}

// buildOrder は料金内訳から決済待ちの注文を組み立てる
func buildOrder(c *cart.Cart, ref string, inv checkout.Inventory, b *checkout.Breakdown) *order.Order {
	lines := make([]order.Line, len(b.Lines))
	for i, pl := range b.Lines {
		lines[i] = order.Line{SeatID: pl.SeatID, OptionID: pl.OptionID, UnitPrice: pl.FinalPrice}
	}

	saleID := ""
	if s, ok := inv.Seats[c.Lines[0].SeatID]; ok {
		if sl := inv.SaleOf(s); sl != nil {
			saleID = sl.ID
		}
	}

	o := order.NewOrder(c.UserID, saleID, ref, lines)
	o.Subtotal = b.Subtotal
	o.OptionDiscount = b.OptionDiscountAmount
	o.CouponDiscount = b.CouponDiscountAmount
	o.CampaignDiscount = b.CampaignDiscountAmount
	o.Total = b.Total
	o.CouponID = c.CouponID
	o.CampaignCode = c.CampaignCode
	return o
}

// reserve は注文を作成し、座席を決済処理中にする
func (s *CheckoutService) reserve(ctx context.Context, o *order.Order) error {
	tx, err := s.txManager.Begin(ctx)
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	if err := s.orderRepo.Create(ctx, tx, o); err != nil {
		return fmt.Errorf("注文作成に失敗: %w", err)
	}
	if err := s.seatRepo.HoldSeats(ctx, tx, o.SeatIDs()); err != nil {
		return fmt.Errorf("座席の確保に失敗: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("コミットに失敗: %w", err)
	}
	return nil
}

// capture は決済を確定する。0円の注文は決済ゲートウェイを呼ばない
func (s *CheckoutService) capture(ctx context.Context, o *order.Order, b *checkout.Breakdown) (payment.Outcome, error) {
	if o.Total == 0 {
		return payment.OutcomeSucceeded, nil
	}
	return s.gateway.Capture(ctx, payment.CaptureRequest{
		OrderID:   o.ID,
		Reference: o.PaymentReference,
		Amount:    o.Total,
		LineItems: b.LineItems(),
	})
}

// finalize は売上確定後の記録を1トランザクションで行う
func (s *CheckoutService) finalize(ctx context.Context, o *order.Order, disc checkout.Discounts) error {
	now := s.now()

	tx, err := s.txManager.Begin(ctx)
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	if err := o.Capture(now); err != nil {
		return err
	}
	if err := s.orderRepo.Update(ctx, tx, o); err != nil {
		return fmt.Errorf("注文更新に失敗: %w", err)
	}
	if err := s.orderRepo.CreatePayment(ctx, tx, &order.Payment{
		OrderID:    o.ID,
		Reference:  o.PaymentReference,
		Amount:     o.Total,
		Status:     order.PaymentStatusCaptured,
		CapturedAt: now,
	}); err != nil {
		return fmt.Errorf("決済記録の作成に失敗: %w", err)
	}

	tickets := make([]order.Ticket, 0, len(o.Lines))
	for _, l := range o.Lines {
		tickets = append(tickets, order.Ticket{OrderID: o.ID, SeatID: l.SeatID, UserID: o.UserID, OptionID: l.OptionID})
	}
	if err := s.orderRepo.CreateTickets(ctx, tx, tickets); err != nil {
		return fmt.Errorf("チケットの作成に失敗: %w", err)
	}
	if err := s.seatRepo.SellSeats(ctx, tx, o.SeatIDs(), o.UserID); err != nil {
		return fmt.Errorf("座席の販売確定に失敗: %w", err)
	}

	if disc.Coupon != nil {
		if err := s.discountRepo.MarkCouponUsed(ctx, tx, disc.Coupon.ID, o.UserID, now); err != nil {
			return fmt.Errorf("クーポンの使用記録に失敗: %w", err)
		}
	} else if disc.Campaign != nil {
		if err := s.discountRepo.IncrementCampaignUsage(ctx, tx, disc.Campaign.ID); err != nil {
			return fmt.Errorf("キャンペーン利用回数の更新に失敗: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("コミットに失敗: %w", err)
	}
	return nil
}

// fail は決済失敗時に座席を販売可能に戻し、注文を失敗として閉じる
func (s *CheckoutService) fail(ctx context.Context, o *order.Order) {
	log := logger.ForOrder(o.ID, o.UserID)

	if err := s.closeOrder(ctx, o, func() error { return o.Fail() }); err != nil {
		log.Error("決済失敗時の注文クローズに失敗", zap.Error(err))
	}
	s.carts.releaseHolds(ctx, o.UserID, o.SeatIDs())
	if err := s.carts.carts.Clear(ctx, o.UserID); err != nil {
		log.Warn("カートの削除に失敗", zap.Error(err))
	}
}

// abandon は売上確定後に整合性が保てなかった注文を返金して閉じる
func (s *CheckoutService) abandon(ctx context.Context, o *order.Order) {
	log := logger.ForOrder(o.ID, o.UserID)

	now := s.now()
	if err := s.closeOrder(ctx, o, func() error { return o.MarkReturned(now) }); err != nil {
		log.Error("整合性エラー時の注文クローズに失敗", zap.Error(err))
	}
	s.carts.releaseHolds(ctx, o.UserID, o.SeatIDs())
	if err := s.carts.carts.Clear(ctx, o.UserID); err != nil {
		log.Warn("カートの削除に失敗", zap.Error(err))
	}

	if o.Total > 0 {
		outcome, err := s.gateway.Refund(ctx, payment.RefundRequest{OrderID: o.ID, Reference: o.PaymentReference, Amount: o.Total})
		if outcome != payment.OutcomeSucceeded && outcome != payment.OutcomeAlreadyRefunded {
			log.Error("整合性エラー時の返金に失敗", zap.String("outcome", string(outcome)), zap.Error(err))
		}
	}
}

// closeOrder は座席を販売可能に戻し、注文の状態を transition で更新する
func (s *CheckoutService) closeOrder(ctx context.Context, o *order.Order, transition func() error) error {
	tx, err := s.txManager.Begin(ctx)
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	if err := s.seatRepo.ReleaseSeats(ctx, tx, o.SeatIDs()); err != nil {
		return err
	}
	if err := transition(); err != nil {
		return err
	}
	if err := s.orderRepo.Update(ctx, tx, o); err != nil {
		return err
	}
	return tx.Commit()
}

// Refund は売上確定済みの注文を返金し、座席を販売可能に戻す
// クーポンとキャンペーンの利用記録は戻さない
func (s *CheckoutService) Refund(ctx context.Context, orderID, userID string) (*order.Order, error) {
	tx, err := s.txManager.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	o, err := s.orderRepo.GetByIDTx(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, order.ErrOrderNotFound
	}
	switch o.Status {
	case order.StatusCaptured:
	case order.StatusRefunded:
		return nil, order.ErrOrderAlreadyRefunded
	default:
		return nil, order.ErrOrderNotCaptured
	}

	if err := s.seatRepo.ReleaseSeats(ctx, tx, o.SeatIDs()); err != nil {
		return nil, fmt.Errorf("座席の解放に失敗: %w", err)
	}

	if o.Total > 0 {
		outcome, err := s.gateway.Refund(ctx, payment.RefundRequest{OrderID: o.ID, Reference: o.PaymentReference, Amount: o.Total})
		if outcome != payment.OutcomeSucceeded && outcome != payment.OutcomeAlreadyRefunded {
			return nil, &GatewayError{Outcome: outcome, Err: err}
		}
	}

	now := s.now()
	if err := o.MarkReturned(now); err != nil {
		return nil, err
	}
	if err := s.orderRepo.Update(ctx, tx, o); err != nil {
		return nil, fmt.Errorf("注文更新に失敗: %w", err)
	}
	if err := s.orderRepo.MarkPaymentRefunded(ctx, tx, o.ID, now); err != nil {
		return nil, fmt.Errorf("決済記録の更新に失敗: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("コミットに失敗: %w", err)
	}

	logger.ForOrder(o.ID, o.UserID).Info("返金が完了", zap.Int("total", o.Total))
	return o, nil
}

// GetOrder は注文を返す。他のユーザーの注文は見つからないものとして扱う
func (s *CheckoutService) GetOrder(ctx context.Context, orderID, userID string) (*order.Order, error) {
	o, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, order.ErrOrderNotFound
	}
	return o, nil
}

// ReleaseStalePendingOrders は一定時間以上決済待ちのまま残った注文を失敗として閉じ、座席を販売可能に戻す
func (s *CheckoutService) ReleaseStalePendingOrders(ctx context.Context, olderThan time.Duration) (int, error) {
	orders, err := s.orderRepo.GetStalePending(ctx, olderThan)
	if err != nil {
		return 0, fmt.Errorf("決済待ち注文の取得に失敗: %w", err)
	}

	count := 0
	for _, stale := range orders {
		released, err := s.releaseStale(ctx, stale.ID)
		if err != nil {
			logger.Error("決済待ち注文の解放に失敗", zap.String("order_id", stale.ID), zap.Error(err))
			continue
		}
		// 座席ロックは有効期限切れに任せる。同じユーザーが再度カートに入れている場合がある
		if released {
			count++
		}
	}
	s.metrics.AddStaleOrdersReclaimed(count)
	return count, nil
}

func (s *CheckoutService) releaseStale(ctx context.Context, orderID string) (bool, error) {
	tx, err := s.txManager.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	o, err := s.orderRepo.GetByIDTx(ctx, tx, orderID)
	if err != nil {
		return false, err
	}
	// 取得後に確定・失敗済みになった注文は対象外
	if !o.IsPending() {
		return false, nil
	}
	if err := s.seatRepo.ReleaseSeats(ctx, tx, o.SeatIDs()); err != nil {
		return false, err
	}
	if err := o.Fail(); err != nil {
		return false, err
	}
	if err := s.orderRepo.Update(ctx, tx, o); err != nil {
		// 並行する決済処理が先に状態を変えた
		if errors.Is(err, order.ErrOrderStatusConflict) {
			return false, nil
		}
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("コミットに失敗: %w", err)
	}
	return true, nil
}

package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-seat-checkout/internal/domain/cart"
	"github.com/sanosuguru/go-seat-checkout/internal/domain/checkout"
	"github.com/sanosuguru/go-seat-checkout/internal/domain/seatlock"
	"github.com/sanosuguru/go-seat-checkout/internal/pkg/logger"
	"github.com/sanosuguru/go-seat-checkout/internal/pkg/metrics"
)

// SelectionInput はカートを置き換える購入候補
type SelectionInput struct {
	Lines        []cart.Line
	CouponID     *string
	CampaignCode *string
}

// ReplaceResult はカート更新の結果
// ErrorCode と LostSeatID がともに空の場合のみ更新に成功している
type ReplaceResult struct {
	Cart       *cart.Cart
	ErrorCode  checkout.ErrorCode
	LostSeatID string
}

// OK はカートが更新されたかを返す
func (r *ReplaceResult) OK() bool {
	return r.ErrorCode == checkout.CodeNone && r.LostSeatID == ""
}

// CartService は座席の仮押さえとカートの更新を調整する
type CartService struct {
	validator *OrderValidator
	locker    seatlock.Locker
	carts     cart.Store
	holdTTL   time.Duration
	metrics   *metrics.Metrics
}

func NewCartService(v *OrderValidator, l seatlock.Locker, cs cart.Store, holdTTL time.Duration, m *metrics.Metrics) *CartService {
	return &CartService{validator: v, locker: l, carts: cs, holdTTL: holdTTL, metrics: m}
}

// ReplaceSelection はユーザーのカートを新しい購入候補で置き換える
// 検証エラーと他ユーザーとの競合は error ではなく結果の値として返す
func (s *CartService) ReplaceSelection(ctx context.Context, userID string, in SelectionInput) (*ReplaceResult, error) {
	log := logger.ForUser(userID)

	req := checkout.Request{UserID: userID, Lines: in.Lines, CouponID: in.CouponID, CampaignCode: in.CampaignCode}
	code, err := s.validator.Validate(ctx, req)
	if err != nil {
		s.metrics.ObserveCartUpdate("error")
		return nil, err
	}

	previous, err := s.GetCart(ctx, userID)
	if err != nil && !errors.Is(err, cart.ErrCartNotFound) {
		s.metrics.ObserveCartUpdate("error")
		return nil, err
	}

	if code != checkout.CodeNone {
		log.Info("購入候補の検証に失敗", zap.String("error_code", string(code)))
		s.metrics.ObserveCartUpdate("invalid")
		return &ReplaceResult{Cart: previous, ErrorCode: code}, nil
	}

	seatIDs := cart.UniqueSeatIDs(in.Lines)
	claimed := make([]string, 0, len(seatIDs))
	for _, seatID := range seatIDs {
		held, err := s.locker.IsHeldBy(ctx, seatID, userID)
		if err != nil {
			s.rollbackClaims(ctx, userID, claimed)
			s.metrics.ObserveCartUpdate("error")
			return nil, fmt.Errorf("座席ロックの確認に失敗: %w", err)
		}
		ok, err := s.locker.TryClaim(ctx, seatID, userID, s.holdTTL)
		if err != nil {
			s.rollbackClaims(ctx, userID, claimed)
			s.metrics.ObserveCartUpdate("error")
			return nil, fmt.Errorf("座席の仮押さえに失敗: %w", err)
		}
		if !ok {
			s.rollbackClaims(ctx, userID, claimed)
			log.Info("他のユーザーが仮押さえ中の座席", zap.String("seat_id", seatID))
			s.metrics.ObserveCartUpdate("conflict")
			return &ReplaceResult{Cart: previous, LostSeatID: seatID}, nil
		}
		if !held {
			claimed = append(claimed, seatID)
		}
	}

	next := cart.NewCart(userID, in.Lines, in.CouponID, in.CampaignCode)
	if err := s.carts.Set(ctx, userID, next, s.holdTTL); err != nil {
		s.rollbackClaims(ctx, userID, claimed)
		s.metrics.ObserveCartUpdate("error")
		return nil, fmt.Errorf("カートの保存に失敗: %w", err)
	}

	// 新しい選択に含まれない座席は手放す
	if previous != nil {
		for _, seatID := range previous.SeatIDs() {
			if next.Contains(seatID) {
				continue
			}
			if err := s.locker.Release(ctx, seatID, userID); err != nil {
				log.Warn("座席の解放に失敗", zap.String("seat_id", seatID), zap.Error(err))
			}
		}
	}

	log.Info("カートを更新", zap.Int("seats", len(seatIDs)))
	s.metrics.ObserveCartUpdate("ok")
	return &ReplaceResult{Cart: next}, nil
}

// rollbackClaims はこの呼び出しで新たに確保した座席を逆順に解放する
func (s *CartService) rollbackClaims(ctx context.Context, userID string, claimed []string) {
	for i := len(claimed) - 1; i >= 0; i-- {
		if err := s.locker.Release(ctx, claimed[i], userID); err != nil {
			logger.Warn("座席のロールバックに失敗",
				zap.String("user_id", userID),
				zap.String("seat_id", claimed[i]),
				zap.Error(err),
			)
		}
	}
}

// GetCart はユーザーのカートを返す
func (s *CartService) GetCart(ctx context.Context, userID string) (*cart.Cart, error) {
	return s.carts.Get(ctx, userID)
}

// SetPaymentReference はカートの決済参照のみを更新する
// カートの残り有効期間は維持する
func (s *CartService) SetPaymentReference(ctx context.Context, userID, ref string) (*cart.Cart, error) {
	c, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := c.SetPaymentReference(ref); err != nil {
		return nil, err
	}
	ttl, err := s.carts.TTL(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("カートの有効期間の取得に失敗: %w", err)
	}
	if ttl <= 0 {
		ttl = s.holdTTL
	}
	if err := s.carts.Set(ctx, userID, c, ttl); err != nil {
		return nil, fmt.Errorf("カートの保存に失敗: %w", err)
	}
	return c, nil
}

// RecheckOwnership はカートの全座席がまだユーザーに仮押さえされているかを確認する
// 確認できた座席とカートの有効期限は延長する
func (s *CartService) RecheckOwnership(ctx context.Context, userID string) (bool, error) {
	c, err := s.carts.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, cart.ErrCartNotFound) {
			return false, nil
		}
		return false, err
	}
	for _, seatID := range c.SeatIDs() {
		ok, err := s.locker.Renew(ctx, seatID, userID, s.holdTTL)
		if err != nil {
			return false, fmt.Errorf("座席ロックの延長に失敗: %w", err)
		}
		if !ok {
			logger.ForUser(userID).Info("仮押さえが失われた座席", zap.String("seat_id", seatID))
			return false, nil
		}
	}
	if err := s.carts.Set(ctx, userID, c, s.holdTTL); err != nil {
		return false, fmt.Errorf("カートの保存に失敗: %w", err)
	}
	return true, nil
}

// ClearCart はカートの座席をすべて解放してカートを削除する
func (s *CartService) ClearCart(ctx context.Context, userID string) error {
	c, err := s.carts.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, cart.ErrCartNotFound) {
			return nil
		}
		return err
	}
	s.releaseHolds(ctx, userID, c.SeatIDs())
	if err := s.carts.Clear(ctx, userID); err != nil {
		return fmt.Errorf("カートの削除に失敗: %w", err)
	}
	return nil
}

// releaseHolds は座席の仮押さえを解放する。失敗はログに残して続行する
func (s *CartService) releaseHolds(ctx context.Context, userID string, seatIDs []string) {
	for _, seatID := range seatIDs {
		if err := s.locker.Release(ctx, seatID, userID); err != nil {
			logger.Warn("座席の解放に失敗",
				zap.String("user_id", userID),
				zap.String("seat_id", seatID),
				zap.Error(err),
			)
		}
	}
}

// Price はカートの料金内訳を計算する
func (s *CartService) Price(ctx context.Context, userID string) (*checkout.Breakdown, error) {
	c, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	b, _, err := s.price(ctx, c)
	return b, err
}

func (s *CartService) price(ctx context.Context, c *cart.Cart) (*checkout.Breakdown, checkout.Inventory, error) {
	req := checkout.Request{UserID: c.UserID, Lines: c.Lines, CouponID: c.CouponID, CampaignCode: c.CampaignCode}
	inv, disc, err := s.validator.Snapshot(ctx, req)
	if err != nil {
		return nil, inv, err
	}
	lines, err := checkout.ResolveLines(c.Lines, inv)
	if err != nil {
		return nil, inv, err
	}
	b, err := checkout.Calculate(lines, appliedDiscount(disc))
	if err != nil {
		return nil, inv, err
	}
	return b, inv, nil
}

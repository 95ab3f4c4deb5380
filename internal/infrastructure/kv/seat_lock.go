package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sanosuguru/go-seat-checkout/internal/domain/kvstore"
	"github.com/sanosuguru/go-seat-checkout/internal/pkg/metrics"
)

var ErrHolderRequired = errors.New("確保するユーザーIDが指定されていません")

// 座席ロックの取得結果（メトリクスのラベル）
const (
	claimClaimed = "claimed"
	claimRenewed = "renewed"
	claimLost    = "lost"
	claimError   = "error"
)

// SeatLock はキーバリューストア上に構築した座席単位の仮押さえ
// キーは seat_lock:<座席ID>、値は保持しているユーザーID
type SeatLock struct {
	store   kvstore.Store
	metrics *metrics.Metrics
}

// NewSeatLock は新しい SeatLock を作成する。m は nil でもよい
func NewSeatLock(store kvstore.Store, m *metrics.Metrics) *SeatLock {
	return &SeatLock{store: store, metrics: m}
}

func seatLockKey(seatID string) string {
	return fmt.Sprintf("seat_lock:%s", seatID)
}

// TryClaim は座席を確保する。自分が確保済みの場合は有効期限を延長して成功とする
func (l *SeatLock) TryClaim(ctx context.Context, seatID, userID string, ttl time.Duration) (bool, error) {
	if userID == "" {
		return false, ErrHolderRequired
	}
	start := time.Now()
	key := seatLockKey(seatID)

	result, err := l.store.ClaimOrRenew(ctx, key, userID, ttl)
	l.metrics.ObserveSeatLock("claim", start, err)
	if err != nil {
		l.metrics.ObserveSeatClaim(claimError)
		return false, fmt.Errorf("座席の確保に失敗: %w", err)
	}

	switch result {
	case kvstore.ClaimAcquired:
		l.metrics.ObserveSeatClaim(claimClaimed)
	case kvstore.ClaimRenewed:
		l.metrics.ObserveSeatClaim(claimRenewed)
	default:
		l.metrics.ObserveSeatClaim(claimLost)
		return false, nil
	}
	return true, nil
}

// Release は userID が保持している場合のみ確保を解除する
// 他のユーザーが保持している、または既に解除済みの場合は何もしない
func (l *SeatLock) Release(ctx context.Context, seatID, userID string) error {
	start := time.Now()
	_, err := l.store.CompareAndDelete(ctx, seatLockKey(seatID), userID)
	l.metrics.ObserveSeatLock("release", start, err)
	if err != nil {
		return fmt.Errorf("座席の確保解除に失敗: %w", err)
	}
	return nil
}

// Renew は userID が保持している場合のみ有効期限を延長する
func (l *SeatLock) Renew(ctx context.Context, seatID, userID string, ttl time.Duration) (bool, error) {
	if userID == "" {
		return false, ErrHolderRequired
	}
	start := time.Now()
	ok, err := l.store.CompareAndSet(ctx, seatLockKey(seatID), userID, userID, ttl)
	l.metrics.ObserveSeatLock("renew", start, err)
	if err != nil {
		return false, fmt.Errorf("座席の確保延長に失敗: %w", err)
	}
	return ok, nil
}

// IsHeldBy は座席が userID によって確保されているかを返す
func (l *SeatLock) IsHeldBy(ctx context.Context, seatID, userID string) (bool, error) {
	holder, ok, err := l.store.Get(ctx, seatLockKey(seatID))
	if err != nil {
		return false, fmt.Errorf("座席の確保状態の取得に失敗: %w", err)
	}
	return ok && holder == userID, nil
}

package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-seat-checkout/internal/pkg/logger"
)

// OrderReclaimer は決済待ちのまま残った注文を閉じるインターフェース
type OrderReclaimer interface {
	ReleaseStalePendingOrders(ctx context.Context, olderThan time.Duration) (int, error)
}

// StaleOrderReclaimer は決済待ちのまま残った注文の座席を定期的に販売可能に戻すワーカー
// 決済処理中にプロセスが落ちた場合、座席が決済処理中のまま残るのを防ぐ
type StaleOrderReclaimer struct {
	orders    OrderReclaimer
	interval  time.Duration
	olderThan time.Duration
	stopCh    chan struct{}
	doneCh    chan struct{}
	stopOnce  sync.Once
}

// NewStaleOrderReclaimer は新しいワーカーを作成
func NewStaleOrderReclaimer(o OrderReclaimer, interval, olderThan time.Duration) *StaleOrderReclaimer {
	return &StaleOrderReclaimer{
		orders:    o,
		interval:  interval,
		olderThan: olderThan,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start はワーカーを開始
func (r *StaleOrderReclaimer) Start(ctx context.Context) {
	logger.Info("滞留注文リクレイマー開始",
		zap.Duration("interval", r.interval),
		zap.Duration("older_than", r.olderThan),
	)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	defer close(r.doneCh)

	for {
		select {
		case <-ctx.Done():
			logger.Info("滞留注文リクレイマー停止（コンテキストキャンセル）")
			return
		case <-r.stopCh:
			logger.Info("滞留注文リクレイマー停止（シグナル受信）")
			return
		case <-ticker.C:
			r.reclaim(ctx)
		}
	}
}

// Stop はワーカーを停止
func (r *StaleOrderReclaimer) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	<-r.doneCh
}

func (r *StaleOrderReclaimer) reclaim(ctx context.Context) {
	log := logger.Get()
	log.Debug("滞留注文の確認開始")

	count, err := r.orders.ReleaseStalePendingOrders(ctx, r.olderThan)
	if err != nil {
		log.Error("滞留注文の解放失敗", zap.Error(err))
		return
	}

	if count > 0 {
		log.Info("滞留注文を失敗として閉じました", zap.Int("count", count))
	} else {
		log.Debug("滞留注文なし")
	}
}

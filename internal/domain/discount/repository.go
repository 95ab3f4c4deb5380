package discount

import (
	"context"
	"time"

	"github.com/sanosuguru/go-seat-checkout/internal/domain/transaction"
)

// Repository はクーポン・キャンペーンのリポジトリインターフェース
type Repository interface {
	// GetUserCoupon はユーザーに配布されたクーポンを取得する
	// 配布されていない場合は ErrCouponNotFound
	GetUserCoupon(ctx context.Context, couponID, userID string) (*Coupon, error)

	// GetCampaignByCode はコードからキャンペーンを取得する
	GetCampaignByCode(ctx context.Context, code string) (*Campaign, error)

	// MarkCouponUsed はクーポンを使用済みにする（トランザクション必須）
	MarkCouponUsed(ctx context.Context, tx transaction.Tx, couponID, userID string, usedAt time.Time) error

	// IncrementCampaignUsage はキャンペーンの利用回数を1増やす（トランザクション必須）
	// 上限に達している場合は ErrCampaignUsageLimitReached
	IncrementCampaignUsage(ctx context.Context, tx transaction.Tx, campaignID string) error
}

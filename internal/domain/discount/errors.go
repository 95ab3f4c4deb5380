package discount

import "errors"

// Discount ドメインのエラー定義
var (
	ErrCouponNotFound            = errors.New("クーポンが見つかりません")
	ErrCouponAlreadyUsed         = errors.New("クーポンは使用済みです")
	ErrCampaignNotFound          = errors.New("キャンペーンが見つかりません")
	ErrCampaignUsageLimitReached = errors.New("キャンペーンの利用上限に達しています")
)

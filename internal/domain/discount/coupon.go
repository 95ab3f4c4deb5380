package discount

import "time"

// Coupon はユーザーに配布された割引率クーポンを表す
// 1ユーザー1回限り使用でき、UsedAt が入っていれば使用済み
type Coupon struct {
	ID          string
	Title       string
	Rate        int // 割引率（%）
	StartAt     time.Time
	EndAt       time.Time
	UserID      string
	UsedAt      *time.Time
	ScheduleIDs AllowList
	SeatTypeIDs AllowList
}

// IsAssignedTo はクーポンがユーザーに配布されているかを返す
func (c *Coupon) IsAssignedTo(userID string) bool {
	return c.UserID != "" && c.UserID == userID
}

// IsUsed は使用済みかを返す
func (c *Coupon) IsUsed() bool {
	return c.UsedAt != nil
}

// IsStarted は利用開始日時を過ぎているかを返す
func (c *Coupon) IsStarted(now time.Time) bool {
	return !now.Before(c.StartAt)
}

// IsExpired は利用期限を過ぎているかを返す
func (c *Coupon) IsExpired(now time.Time) bool {
	return now.After(c.EndAt)
}

// Applied は料金計算に使う適用内容を返す
func (c *Coupon) Applied() *Applied {
	return &Applied{Kind: KindCoupon, Rate: c.Rate, ScheduleIDs: c.ScheduleIDs, SeatTypeIDs: c.SeatTypeIDs}
}

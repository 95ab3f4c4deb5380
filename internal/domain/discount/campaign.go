package discount

import "time"

// Campaign はユーザーを問わず適用できる割引率キャンペーンを表す
type Campaign struct {
	ID           string
	Code         string
	Title        string
	Rate         int // 割引率（%）
	Approved     bool
	StartAt      time.Time
	EndAt        time.Time
	TerminatedAt *time.Time
	UsageLimit   int // 0 は上限なし
	UsageCount   int
	ScheduleIDs  AllowList
	SeatTypeIDs  AllowList
}

// IsStarted は開始日時を過ぎているかを返す
func (c *Campaign) IsStarted(now time.Time) bool {
	return !now.Before(c.StartAt)
}

// IsEnded は終了日時を過ぎているかを返す
func (c *Campaign) IsEnded(now time.Time) bool {
	return now.After(c.EndAt)
}

// IsTerminated は途中終了されているかを返す
func (c *Campaign) IsTerminated(now time.Time) bool {
	return c.TerminatedAt != nil && !now.Before(*c.TerminatedAt)
}

// IsUsageLimitReached は利用回数が上限に達しているかを返す
func (c *Campaign) IsUsageLimitReached() bool {
	return c.UsageLimit > 0 && c.UsageCount >= c.UsageLimit
}

// Applied は料金計算に使う適用内容を返す
func (c *Campaign) Applied() *Applied {
	return &Applied{Kind: KindCampaign, Rate: c.Rate, ScheduleIDs: c.ScheduleIDs, SeatTypeIDs: c.SeatTypeIDs}
}

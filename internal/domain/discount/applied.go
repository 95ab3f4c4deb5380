package discount

// Kind は割引の種類を表す
type Kind string

const (
	KindCoupon   Kind = "coupon"
	KindCampaign Kind = "campaign"
)

// Applied はカートに適用される割引（クーポンまたはキャンペーン）
type Applied struct {
	Kind        Kind
	Rate        int
	ScheduleIDs AllowList
	SeatTypeIDs AllowList
}

// Covers は開催回と席種が割引対象かを返す
func (a *Applied) Covers(scheduleID, seatTypeID string) bool {
	return a.ScheduleIDs.Allows(scheduleID) && a.SeatTypeIDs.Allows(seatTypeID)
}

// AmountOf は金額に対する割引額を返す（1円未満切り捨て）
func (a *Applied) AmountOf(price int) int {
	if price <= 0 || a.Rate <= 0 {
		return 0
	}
	return price * a.Rate / 100
}

// DiscountedPrice は割引後の金額を返す
func (a *Applied) DiscountedPrice(price int) int {
	return price - a.AmountOf(price)
}

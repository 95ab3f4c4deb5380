package cart

// Line はカート内の1行（座席とオプションの組）を表す
type Line struct {
	SeatID   string  `json:"seat_id"`
	OptionID *string `json:"option_id,omitempty"`
}

// HasOption はオプションが付与されているかを返す
func (l Line) HasOption() bool {
	return l.OptionID != nil && *l.OptionID != ""
}

// Cart はユーザーごとの一時的な購入候補を表す
// カートに載っている座席はすべて UserID によって仮押さえされている
type Cart struct {
	UserID           string  `json:"user_id"`
	Lines            []Line  `json:"lines"`
	CouponID         *string `json:"coupon_id,omitempty"`
	CampaignCode     *string `json:"campaign_code,omitempty"`
	PaymentReference *string `json:"payment_reference,omitempty"`
}

// NewCart は新しいカートを作成する（決済参照は常に空）
func NewCart(userID string, lines []Line, couponID, campaignCode *string) *Cart {
	copied := make([]Line, len(lines))
	copy(copied, lines)
	return &Cart{
		UserID:       userID,
		Lines:        copied,
		CouponID:     couponID,
		CampaignCode: campaignCode,
	}
}

// IsEmpty はカートが空かを返す
func (c *Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

// SeatIDs はカート内の座席IDを選択順に返す（重複は除く）
func (c *Cart) SeatIDs() []string {
	return UniqueSeatIDs(c.Lines)
}

// Contains は座席がカートに含まれるかを返す
func (c *Cart) Contains(seatID string) bool {
	for _, l := range c.Lines {
		if l.SeatID == seatID {
			return true
		}
	}
	return false
}

// SetPaymentReference は決済参照のみを更新する
func (c *Cart) SetPaymentReference(ref string) error {
	if ref == "" {
		return ErrPaymentReferenceRequired
	}
	c.PaymentReference = &ref
	return nil
}

// UniqueSeatIDs は行から座席IDを出現順に重複なく取り出す
func UniqueSeatIDs(lines []Line) []string {
	seen := make(map[string]struct{}, len(lines))
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		if _, ok := seen[l.SeatID]; ok {
			continue
		}
		seen[l.SeatID] = struct{}{}
		ids = append(ids, l.SeatID)
	}
	return ids
}

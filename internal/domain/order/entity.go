package order

import (
	"sort"
	"strings"
	"time"
)

// Status は注文の状態を表す
type Status string

const (
	StatusPending  Status = "pending"
	StatusCaptured Status = "captured"
	StatusFailed   Status = "failed"
	StatusRefunded Status = "refunded"
)

// Line は注文明細（座席1席分）を表す
type Line struct {
	SeatID    string
	OptionID  *string
	UnitPrice int
}

// Order は注文エンティティを表す
// 売上確定後は返金に関する項目以外変更されない
type Order struct {
	ID               string
	UserID           string
	SaleID           string
	Status           Status
	Lines            []Line
	Subtotal         int
	OptionDiscount   int
	CouponDiscount   int
	CampaignDiscount int
	Total            int
	CouponID         *string
	CampaignCode     *string
	PaymentReference string
	CapturedAt       *time.Time
	ReturnedAt       *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewOrder は新しい注文を作成する
func NewOrder(userID, saleID, paymentReference string, lines []Line) *Order {
	now := time.Now()
	return &Order{
		UserID:           userID,
		SaleID:           saleID,
		Status:           StatusPending,
		Lines:            lines,
		PaymentReference: paymentReference,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// IsPending は決済結果待ちかを返す
func (o *Order) IsPending() bool {
	return o.Status == StatusPending
}

// SeatIDs は明細の座席IDを明細順に返す（重複は除く）
func (o *Order) SeatIDs() []string {
	seen := make(map[string]struct{}, len(o.Lines))
	ids := make([]string, 0, len(o.Lines))
	for _, l := range o.Lines {
		if _, ok := seen[l.SeatID]; ok {
			continue
		}
		seen[l.SeatID] = struct{}{}
		ids = append(ids, l.SeatID)
	}
	return ids
}

// PreviousStatuses は to へ遷移できる保存済みの状態を返す
// 返金記録は整合性エラーで決済待ちのまま閉じる場合があるため pending からも許可する
func PreviousStatuses(to Status) []Status {
	switch to {
	case StatusCaptured, StatusFailed:
		return []Status{StatusPending}
	case StatusRefunded:
		return []Status{StatusPending, StatusCaptured}
	default:
		return nil
	}
}

// Capture は注文を売上確定済みにする
func (o *Order) Capture(at time.Time) error {
	if o.Status != StatusPending {
		return ErrOrderNotPending
	}
	o.Status = StatusCaptured
	o.CapturedAt = &at
	o.UpdatedAt = at
	return nil
}

// Fail は決済失敗として注文を閉じる
func (o *Order) Fail() error {
	if o.Status != StatusPending {
		return ErrOrderNotPending
	}
	o.Status = StatusFailed
	o.UpdatedAt = time.Now()
	return nil
}

// MarkReturned は返金済みとして記録する
// 売上確定済みの注文のほか、整合性エラーで保留中のまま閉じる注文にも使う
func (o *Order) MarkReturned(at time.Time) error {
	if o.Status == StatusRefunded {
		return ErrOrderAlreadyRefunded
	}
	if o.Status == StatusFailed {
		return ErrOrderNotRefundable
	}
	o.Status = StatusRefunded
	o.ReturnedAt = &at
	o.UpdatedAt = at
	return nil
}

// Validate は注文の検証を行う
func (o *Order) Validate() error {
	if o.UserID == "" {
		return ErrUserIDRequired
	}
	if len(o.Lines) == 0 {
		return ErrLinesRequired
	}
	if o.PaymentReference == "" {
		return ErrPaymentReferenceRequired
	}
	if o.Total < 0 {
		return ErrInvalidTotal
	}
	return nil
}

// Signature は座席・オプション・割引の組み合わせを比較用の文字列にする
func Signature(lines []Line, couponID, campaignCode *string) string {
	parts := make([]string, 0, len(lines)+2)
	for _, l := range lines {
		opt := ""
		if l.OptionID != nil {
			opt = *l.OptionID
		}
		parts = append(parts, l.SeatID+"/"+opt)
	}
	sort.Strings(parts)
	if couponID != nil {
		parts = append(parts, "coupon:"+*couponID)
	}
	if campaignCode != nil {
		parts = append(parts, "campaign:"+*campaignCode)
	}
	return strings.Join(parts, ",")
}

// PaymentStatus は決済記録の状態を表す
type PaymentStatus string

const (
	PaymentStatusCaptured PaymentStatus = "captured"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// Payment は決済記録を表す
type Payment struct {
	ID         string
	OrderID    string
	Reference  string
	Amount     int
	Status     PaymentStatus
	CapturedAt time.Time
	RefundedAt *time.Time
}

// Ticket は座席ごとの購入記録を表す
type Ticket struct {
	OrderID  string
	SeatID   string
	UserID   string
	OptionID *string
}

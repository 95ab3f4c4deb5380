package checkout

import (
	"time"

	"github.com/sanosuguru/go-seat-checkout/internal/domain/cart"
	"github.com/sanosuguru/go-seat-checkout/internal/domain/discount"
	"github.com/sanosuguru/go-seat-checkout/internal/domain/sale"
	"github.com/sanosuguru/go-seat-checkout/internal/domain/seat"
)

// ErrorCode は購入候補の検証結果を表すコード
// 空文字は検証成功を意味する。エンドユーザーにそのまま返してよい
type ErrorCode string

const (
	CodeNone                      ErrorCode = ""
	CodeSeatNotSelected           ErrorCode = "seat_not_selected"
	CodeSeatNotFound              ErrorCode = "seat_not_found"
	CodeDuplicateSeatSelected     ErrorCode = "duplicate_seat_selected"
	CodeSaleNotAvailable          ErrorCode = "sale_not_available"
	CodeOutOfSalePeriod           ErrorCode = "out_of_sale_period"
	CodeSeatNotAvailable          ErrorCode = "seat_not_available"
	CodeMultipleAreasSelected     ErrorCode = "multiple_areas_selected"
	CodeMultipleSalesSelected     ErrorCode = "multiple_sales_selected"
	CodeMixedSalesMode            ErrorCode = "mixed_sales_mode"
	CodeTooManySeats              ErrorCode = "too_many_seats"
	CodeExcessOrDeficiencyUnit    ErrorCode = "excess_or_deficiency_unit_ticket"
	CodeInvalidSeatOption         ErrorCode = "invalid_seat_option"
	CodeOptionWithCoupon          ErrorCode = "option_with_coupon"
	CodeOptionWithCampaign        ErrorCode = "option_with_campaign"
	CodeCouponAndCampaignConflict ErrorCode = "coupon_and_campaign_conflict"
	CodeCouponNotFound            ErrorCode = "coupon_not_found"
	CodeCouponExpired             ErrorCode = "coupon_expired"
	CodeCouponScheduleMismatch    ErrorCode = "coupon_schedule_mismatch"
	CodeCampaignNotFound          ErrorCode = "campaign_not_found"
	CodeCampaignNotStarted        ErrorCode = "campaign_not_started"
	CodeCampaignEnded             ErrorCode = "campaign_ended"
	CodeCampaignTerminated        ErrorCode = "campaign_terminated"
	CodeCampaignScheduleMismatch  ErrorCode = "campaign_schedule_mismatch"
	CodeCampaignUsageLimitReached ErrorCode = "campaign_usage_limit_reached"
)

// MaxSingleSeats は1回の購入で選択できる1席販売の座席数の上限
const MaxSingleSeats = 8

// Request は検証対象の購入候補
type Request struct {
	UserID       string
	Lines        []cart.Line
	CouponID     *string
	CampaignCode *string
}

// Inventory は検証と料金計算に必要な在庫情報のスナップショット
type Inventory struct {
	Seats          map[string]*seat.Seat
	SeatTypes      map[string]*seat.SeatType
	Options        map[string]*seat.Option
	Areas          map[string]*seat.Area
	Sales          map[string]*sale.Sale
	UnitGroupSizes map[string]int
}

// SaleOf は座席が属する販売枠を返す
func (inv Inventory) SaleOf(s *seat.Seat) *sale.Sale {
	st, ok := inv.SeatTypes[s.SeatTypeID]
	if !ok {
		return nil
	}
	return inv.Sales[st.SaleID]
}

// Discounts は購入候補に指定されたクーポン・キャンペーンの取得結果
// 見つからなかった場合は nil
type Discounts struct {
	Coupon   *discount.Coupon
	Campaign *discount.Campaign
}

// Validator は購入候補の組み合わせを検証する
type Validator struct {
	maxSingleSeats int
}

// NewValidator は Validator を作成する。maxSingleSeats が0以下の場合は既定値を使う
func NewValidator(maxSingleSeats int) *Validator {
	if maxSingleSeats <= 0 {
		maxSingleSeats = MaxSingleSeats
	}
	return &Validator{maxSingleSeats: maxSingleSeats}
}

// Validate は既定の設定で購入候補を検証する
func Validate(req Request, inv Inventory, disc Discounts, now time.Time) ErrorCode {
	return NewValidator(MaxSingleSeats).Validate(req, inv, disc, now)
}

// Validate は購入候補を検証し、最初に違反したルールのコードを返す
func (v *Validator) Validate(req Request, inv Inventory, disc Discounts, now time.Time) ErrorCode {
	if len(req.Lines) == 0 {
		return CodeSeatNotSelected
	}

	seats := make([]*seat.Seat, 0, len(req.Lines))
	selected := make(map[string]struct{}, len(req.Lines))
	for _, l := range req.Lines {
		s, ok := inv.Seats[l.SeatID]
		if !ok {
			return CodeSeatNotFound
		}
		if _, ok := inv.SeatTypes[s.SeatTypeID]; !ok {
			return CodeSeatNotFound
		}
		// ユニットに属さないユニット販売の座席は在庫として扱えない
		if s.IsUnit() && (s.UnitGroupID == nil || *s.UnitGroupID == "") {
			return CodeSeatNotFound
		}
		if _, dup := selected[s.ID]; dup {
			return CodeDuplicateSeatSelected
		}
		selected[s.ID] = struct{}{}
		seats = append(seats, s)
	}

	for _, s := range seats {
		sl := inv.SaleOf(s)
		if sl == nil || !sl.IsOnSale() {
			return CodeSaleNotAvailable
		}
		if area, ok := inv.Areas[s.AreaID]; !ok || !area.Displayable {
			return CodeSaleNotAvailable
		}
	}

	for _, s := range seats {
		if !inv.SaleOf(s).InPeriod(now) {
			return CodeOutOfSalePeriod
		}
	}

	for _, s := range seats {
		if !s.IsAvailable() || s.IsOwned() {
			return CodeSeatNotAvailable
		}
	}

	if code := v.checkComposition(seats, inv); code != CodeNone {
		return code
	}

	if code := v.checkOptions(req.Lines, inv); code != CodeNone {
		return code
	}

	if code := checkOptionDiscountConflict(req); code != CodeNone {
		return code
	}

	if req.CouponID != nil && req.CampaignCode != nil {
		return CodeCouponAndCampaignConflict
	}

	targetSale := inv.SaleOf(seats[0])
	seatTypeIDs := selectedSeatTypeIDs(seats)

	if req.CouponID != nil {
		if code := checkCoupon(disc.Coupon, req.UserID, targetSale.ScheduleID, seatTypeIDs, now); code != CodeNone {
			return code
		}
	}

	if req.CampaignCode != nil {
		if code := checkCampaign(disc.Campaign, targetSale.ScheduleID, seatTypeIDs, now); code != CodeNone {
			return code
		}
	}

	return CodeNone
}

// checkComposition はエリア・販売枠・販売単位・枚数・ユニットの組み合わせを検証する
func (v *Validator) checkComposition(seats []*seat.Seat, inv Inventory) ErrorCode {
	areas := make(map[string]struct{})
	for _, s := range seats {
		areas[s.AreaID] = struct{}{}
	}
	if len(areas) > 1 {
		return CodeMultipleAreasSelected
	}

	sales := make(map[string]struct{})
	for _, s := range seats {
		sales[inv.SaleOf(s).ID] = struct{}{}
	}
	if len(sales) > 1 {
		return CodeMultipleSalesSelected
	}

	var hasSingle, hasUnit bool
	for _, s := range seats {
		if s.IsUnit() {
			hasUnit = true
		} else {
			hasSingle = true
		}
	}
	if hasSingle && hasUnit {
		return CodeMixedSalesMode
	}

	singleCount := 0
	unitCounts := make(map[string]int)
	for _, s := range seats {
		if s.IsUnit() {
			unitCounts[*s.UnitGroupID]++
		} else {
			singleCount++
		}
	}
	if singleCount > v.maxSingleSeats {
		return CodeTooManySeats
	}

	for groupID, selected := range unitCounts {
		if selected != inv.UnitGroupSizes[groupID] {
			return CodeExcessOrDeficiencyUnit
		}
	}
	return CodeNone
}

// checkOptions はオプションが座席の席種に属し、価格が負にならないことを検証する
func (v *Validator) checkOptions(lines []cart.Line, inv Inventory) ErrorCode {
	groupDelta := make(map[string]int)
	groupPrice := make(map[string]int)
	for _, l := range lines {
		s := inv.Seats[l.SeatID]
		st := inv.SeatTypes[s.SeatTypeID]
		delta := 0
		if l.HasOption() {
			opt, ok := inv.Options[*l.OptionID]
			if !ok || opt.SeatTypeID != s.SeatTypeID {
				return CodeInvalidSeatOption
			}
			delta = opt.PriceDelta
		}
		if s.IsUnit() {
			groupDelta[*s.UnitGroupID] += delta
			groupPrice[*s.UnitGroupID] = st.Price
			continue
		}
		if st.Price+delta < 0 {
			return CodeInvalidSeatOption
		}
	}
	for groupID, delta := range groupDelta {
		if groupPrice[groupID]+delta < 0 {
			return CodeInvalidSeatOption
		}
	}
	return CodeNone
}

// checkOptionDiscountConflict はオプションと割引の併用を検証する
// クーポンはオプション付きの行が1つでもあれば不可、
// キャンペーンはすべての行にオプションが付いている場合のみ不可とする
func checkOptionDiscountConflict(req Request) ErrorCode {
	optionLines := 0
	for _, l := range req.Lines {
		if l.HasOption() {
			optionLines++
		}
	}
	if req.CouponID != nil && optionLines > 0 {
		return CodeOptionWithCoupon
	}
	if req.CampaignCode != nil && optionLines == len(req.Lines) {
		return CodeOptionWithCampaign
	}
	return CodeNone
}

func checkCoupon(c *discount.Coupon, userID, scheduleID string, seatTypeIDs []string, now time.Time) ErrorCode {
	if c == nil || !c.IsAssignedTo(userID) || c.IsUsed() || !c.IsStarted(now) {
		return CodeCouponNotFound
	}
	if c.IsExpired(now) {
		return CodeCouponExpired
	}
	if !c.ScheduleIDs.Allows(scheduleID) {
		return CodeCouponScheduleMismatch
	}
	if !c.SeatTypeIDs.AllowsAny(seatTypeIDs) {
		return CodeMultipleSalesSelected
	}
	return CodeNone
}

func checkCampaign(c *discount.Campaign, scheduleID string, seatTypeIDs []string, now time.Time) ErrorCode {
	if c == nil || !c.Approved {
		return CodeCampaignNotFound
	}
	if !c.IsStarted(now) {
		return CodeCampaignNotStarted
	}
	if c.IsEnded(now) {
		return CodeCampaignEnded
	}
	if c.IsTerminated(now) {
		return CodeCampaignTerminated
	}
	if !c.ScheduleIDs.Allows(scheduleID) {
		return CodeCampaignScheduleMismatch
	}
	if !c.SeatTypeIDs.AllowsAny(seatTypeIDs) {
		return CodeMultipleSalesSelected
	}
	if c.IsUsageLimitReached() {
		return CodeCampaignUsageLimitReached
	}
	return CodeNone
}

func selectedSeatTypeIDs(seats []*seat.Seat) []string {
	seen := make(map[string]struct{})
	ids := make([]string, 0, len(seats))
	for _, s := range seats {
		if _, ok := seen[s.SeatTypeID]; ok {
			continue
		}
		seen[s.SeatTypeID] = struct{}{}
		ids = append(ids, s.SeatTypeID)
	}
	return ids
}

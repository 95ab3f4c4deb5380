package checkout

import (
	"fmt"

	"github.com/sanosuguru/go-seat-checkout/internal/domain/cart"
	"github.com/sanosuguru/go-seat-checkout/internal/domain/discount"
	"github.com/sanosuguru/go-seat-checkout/internal/domain/payment"
)

// PricingLine は料金計算用に解決済みのカート行
type PricingLine struct {
	SeatID        string
	OptionID      *string
	SeatTypeID    string
	ScheduleID    string
	UnitGroupID   *string
	SeatTypePrice int
	OptionDelta   int
}

// HasOption はオプションが指定されているかを返す
func (l PricingLine) HasOption() bool {
	return l.OptionID != nil
}

// PricedLine は料金計算後の明細行
type PricedLine struct {
	SeatID     string
	OptionID   *string
	SeatTypeID string
	UnitPrice  int  // 割引前の単価。ユニットの代表行以外は0
	FinalPrice int  // 割引後の単価
	Chargeable bool // ユニットの同伴行は false
	Discounted bool
}

// Breakdown は料金の内訳
type Breakdown struct {
	Lines                  []PricedLine
	Subtotal               int
	OptionDiscountAmount   int
	CouponDiscountAmount   int
	CampaignDiscountAmount int
	Total                  int
}

// ResolveLines はカート行を在庫スナップショットで解決する
func ResolveLines(lines []cart.Line, inv Inventory) ([]PricingLine, error) {
	resolved := make([]PricingLine, 0, len(lines))
	seen := make(map[string]struct{}, len(lines))
	for _, l := range lines {
		if _, dup := seen[l.SeatID]; dup {
			return nil, fmt.Errorf("%w: seat=%s", ErrDuplicateLine, l.SeatID)
		}
		seen[l.SeatID] = struct{}{}
		s, ok := inv.Seats[l.SeatID]
		if !ok {
			return nil, fmt.Errorf("%w: seat=%s", ErrUnresolvedLine, l.SeatID)
		}
		st, ok := inv.SeatTypes[s.SeatTypeID]
		if !ok {
			return nil, fmt.Errorf("%w: seat_type=%s", ErrUnresolvedLine, s.SeatTypeID)
		}
		pl := PricingLine{
			SeatID:        s.ID,
			SeatTypeID:    st.ID,
			SeatTypePrice: st.Price,
		}
		if sl := inv.Sales[st.SaleID]; sl != nil {
			pl.ScheduleID = sl.ScheduleID
		}
		if s.IsUnit() {
			if s.UnitGroupID == nil || *s.UnitGroupID == "" {
				return nil, fmt.Errorf("%w: unit_group seat=%s", ErrUnresolvedLine, s.ID)
			}
			pl.UnitGroupID = s.UnitGroupID
		}
		if l.HasOption() {
			opt, ok := inv.Options[*l.OptionID]
			if !ok {
				return nil, fmt.Errorf("%w: option=%s", ErrUnresolvedOption, *l.OptionID)
			}
			pl.OptionID = l.OptionID
			pl.OptionDelta = opt.PriceDelta
		}
		resolved = append(resolved, pl)
	}
	return resolved, nil
}

// Calculate はカート行と割引から料金の内訳を計算する
// disc が nil の場合は割引なし
func Calculate(lines []PricingLine, disc *discount.Applied) (*Breakdown, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	// ユニットごとのオプション差額合計とオプション有無
	groupDelta := make(map[string]int)
	groupHasOption := make(map[string]bool)
	for _, l := range lines {
		if l.UnitGroupID == nil {
			continue
		}
		groupDelta[*l.UnitGroupID] += l.OptionDelta
		if l.HasOption() {
			groupHasOption[*l.UnitGroupID] = true
		}
	}

	b := &Breakdown{Lines: make([]PricedLine, 0, len(lines))}
	represented := make(map[string]bool)
	eligibleSubtotal := 0

	for _, l := range lines {
		pl := PricedLine{SeatID: l.SeatID, OptionID: l.OptionID, SeatTypeID: l.SeatTypeID}
		hasOption := l.HasOption()

		if l.UnitGroupID != nil {
			groupID := *l.UnitGroupID
			if !represented[groupID] {
				represented[groupID] = true
				pl.UnitPrice = l.SeatTypePrice + groupDelta[groupID]
				pl.Chargeable = true
			}
			hasOption = groupHasOption[groupID]
		} else {
			pl.UnitPrice = l.SeatTypePrice + l.OptionDelta
			pl.Chargeable = true
		}

		if l.OptionDelta < 0 {
			b.OptionDiscountAmount += -l.OptionDelta
		}

		pl.Discounted = disc != nil && pl.Chargeable && !hasOption && disc.Covers(l.ScheduleID, l.SeatTypeID)
		pl.FinalPrice = pl.UnitPrice
		if pl.Discounted {
			pl.FinalPrice = disc.DiscountedPrice(pl.UnitPrice)
			eligibleSubtotal += pl.UnitPrice
		}

		b.Subtotal += pl.UnitPrice
		b.Total += pl.FinalPrice
		b.Lines = append(b.Lines, pl)
	}

	if disc != nil {
		amount := disc.AmountOf(eligibleSubtotal)
		switch disc.Kind {
		case discount.KindCoupon:
			b.CouponDiscountAmount = amount
		case discount.KindCampaign:
			b.CampaignDiscountAmount = amount
		}
	}

	return b, nil
}

// DiscountAmount はクーポン・キャンペーンの割引額を返す
func (b *Breakdown) DiscountAmount() int {
	return b.CouponDiscountAmount + b.CampaignDiscountAmount
}

// LineItems は決済代行に渡す明細を返す
// 課金対象の行を割引後の単価ごとにまとめ、最初に現れた順に並べる
func (b *Breakdown) LineItems() []payment.LineItem {
	items := make([]payment.LineItem, 0)
	index := make(map[int]int)
	for _, l := range b.Lines {
		if !l.Chargeable || l.FinalPrice <= 0 {
			continue
		}
		if i, ok := index[l.FinalPrice]; ok {
			items[i].Quantity++
			items[i].Amount += l.FinalPrice
			continue
		}
		index[l.FinalPrice] = len(items)
		items = append(items, payment.LineItem{
			Name:      LineItemName(l.FinalPrice),
			UnitPrice: l.FinalPrice,
			Quantity:  1,
			Amount:    l.FinalPrice,
		})
	}
	return items
}

// LineItemName は単価ごとの明細名を返す
func LineItemName(unitPrice int) string {
	return fmt.Sprintf("チケット (%d円)", unitPrice)
}

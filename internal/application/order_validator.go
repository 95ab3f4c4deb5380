package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sanosuguru/go-seat-checkout/internal/domain/cart"
	"github.com/sanosuguru/go-seat-checkout/internal/domain/checkout"
	"github.com/sanosuguru/go-seat-checkout/internal/domain/discount"
	"github.com/sanosuguru/go-seat-checkout/internal/domain/sale"
	"github.com/sanosuguru/go-seat-checkout/internal/domain/seat"
)

// OrderValidator はリポジトリから在庫と割引を読み込み、購入候補を検証する
type OrderValidator struct {
	seatRepo     seat.Repository
	saleRepo     sale.Repository
	discountRepo discount.Repository
	validator    *checkout.Validator
	now          func() time.Time
}

func NewOrderValidator(sr seat.Repository, slr sale.Repository, dr discount.Repository, maxSingleSeats int) *OrderValidator {
	return &OrderValidator{
		seatRepo:     sr,
		saleRepo:     slr,
		discountRepo: dr,
		validator:    checkout.NewValidator(maxSingleSeats),
		now:          time.Now,
	}
}

// Validate は購入候補を検証してエラーコードを返す
// 読み込みに失敗した場合のみ error を返す
func (v *OrderValidator) Validate(ctx context.Context, req checkout.Request) (checkout.ErrorCode, error) {
	inv, disc, err := v.Snapshot(ctx, req)
	if err != nil {
		return checkout.CodeNone, err
	}
	return v.Check(req, inv, disc), nil
}

// Check は読み込み済みのスナップショットで購入候補を検証する
func (v *OrderValidator) Check(req checkout.Request, inv checkout.Inventory, disc checkout.Discounts) checkout.ErrorCode {
	return v.validator.Validate(req, inv, disc, v.now())
}

// Snapshot は購入候補の検証と料金計算に必要な情報をまとめて読み込む
func (v *OrderValidator) Snapshot(ctx context.Context, req checkout.Request) (checkout.Inventory, checkout.Discounts, error) {
	inv, err := v.loadInventory(ctx, req.Lines)
	if err != nil {
		return checkout.Inventory{}, checkout.Discounts{}, err
	}
	disc, err := v.loadDiscounts(ctx, req)
	if err != nil {
		return checkout.Inventory{}, checkout.Discounts{}, err
	}
	return inv, disc, nil
}

func (v *OrderValidator) loadInventory(ctx context.Context, lines []cart.Line) (checkout.Inventory, error) {
	inv := checkout.Inventory{
		Seats:          make(map[string]*seat.Seat),
		SeatTypes:      make(map[string]*seat.SeatType),
		Options:        make(map[string]*seat.Option),
		Areas:          make(map[string]*seat.Area),
		Sales:          make(map[string]*sale.Sale),
		UnitGroupSizes: make(map[string]int),
	}
	if len(lines) == 0 {
		return inv, nil
	}

	seats, err := v.seatRepo.GetByIDs(ctx, cart.UniqueSeatIDs(lines))
	if err != nil {
		return inv, fmt.Errorf("座席取得に失敗: %w", err)
	}

	var seatTypeIDs, areaIDs, groupIDs []string
	for _, s := range seats {
		inv.Seats[s.ID] = s
		seatTypeIDs = appendUnique(seatTypeIDs, s.SeatTypeID)
		areaIDs = appendUnique(areaIDs, s.AreaID)
		if s.UnitGroupID != nil {
			groupIDs = appendUnique(groupIDs, *s.UnitGroupID)
		}
	}

	if len(seatTypeIDs) > 0 {
		seatTypes, err := v.seatRepo.GetSeatTypesByIDs(ctx, seatTypeIDs)
		if err != nil {
			return inv, fmt.Errorf("席種取得に失敗: %w", err)
		}
		var saleIDs []string
		for _, st := range seatTypes {
			inv.SeatTypes[st.ID] = st
			saleIDs = appendUnique(saleIDs, st.SaleID)
		}
		if len(saleIDs) > 0 {
			sales, err := v.saleRepo.GetByIDs(ctx, saleIDs)
			if err != nil {
				return inv, fmt.Errorf("販売枠取得に失敗: %w", err)
			}
			for _, sl := range sales {
				inv.Sales[sl.ID] = sl
			}
		}
	}

	var optionIDs []string
	for _, l := range lines {
		if l.HasOption() {
			optionIDs = appendUnique(optionIDs, *l.OptionID)
		}
	}
	if len(optionIDs) > 0 {
		options, err := v.seatRepo.GetOptionsByIDs(ctx, optionIDs)
		if err != nil {
			return inv, fmt.Errorf("オプション取得に失敗: %w", err)
		}
		for _, o := range options {
			inv.Options[o.ID] = o
		}
	}

	if len(areaIDs) > 0 {
		areas, err := v.seatRepo.GetAreasByIDs(ctx, areaIDs)
		if err != nil {
			return inv, fmt.Errorf("エリア取得に失敗: %w", err)
		}
		for _, a := range areas {
			inv.Areas[a.ID] = a
		}
	}

	if len(groupIDs) > 0 {
		sizes, err := v.seatRepo.CountByUnitGroups(ctx, groupIDs)
		if err != nil {
			return inv, fmt.Errorf("ユニット座席数の取得に失敗: %w", err)
		}
		inv.UnitGroupSizes = sizes
	}

	return inv, nil
}

// loadDiscounts はクーポンとキャンペーンを読み込む。見つからない場合は nil のまま返す
func (v *OrderValidator) loadDiscounts(ctx context.Context, req checkout.Request) (checkout.Discounts, error) {
	var disc checkout.Discounts

	if req.CouponID != nil && *req.CouponID != "" {
		c, err := v.discountRepo.GetUserCoupon(ctx, *req.CouponID, req.UserID)
		switch {
		case err == nil:
			disc.Coupon = c
		case !errors.Is(err, discount.ErrCouponNotFound):
			return disc, fmt.Errorf("クーポン取得に失敗: %w", err)
		}
	}

	if req.CampaignCode != nil && *req.CampaignCode != "" {
		c, err := v.discountRepo.GetCampaignByCode(ctx, *req.CampaignCode)
		switch {
		case err == nil:
			disc.Campaign = c
		case !errors.Is(err, discount.ErrCampaignNotFound):
			return disc, fmt.Errorf("キャンペーン取得に失敗: %w", err)
		}
	}

	return disc, nil
}

// appliedDiscount は料金計算に使う割引を返す。クーポンを優先する
func appliedDiscount(disc checkout.Discounts) *discount.Applied {
	switch {
	case disc.Coupon != nil:
		return disc.Coupon.Applied()
	case disc.Campaign != nil:
		return disc.Campaign.Applied()
	}
	return nil
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}

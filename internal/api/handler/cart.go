package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-seat-checkout/internal/api/middleware"
	"github.com/sanosuguru/go-seat-checkout/internal/application"
	"github.com/sanosuguru/go-seat-checkout/internal/domain/cart"
	"github.com/sanosuguru/go-seat-checkout/internal/domain/checkout"
	"github.com/sanosuguru/go-seat-checkout/internal/domain/payment"
)

type CartHandler struct {
	service CartServiceInterface
}

func NewCartHandler(s CartServiceInterface) *CartHandler {
	return &CartHandler{service: s}
}

type CartLineRequest struct {
	SeatID   string  `json:"seat_id" validate:"required" example:"seat-A1"`
	OptionID *string `json:"option_id,omitempty" example:"opt-child"`
}

type UpdateCartRequest struct {
	Lines        []CartLineRequest `json:"lines" validate:"dive"`
	CouponID     *string           `json:"coupon_id,omitempty"`
	CampaignCode *string           `json:"campaign_code,omitempty" example:"SPRING"`
}

type PaymentReferenceRequest struct {
	PaymentReference string `json:"payment_reference" validate:"required" example:"pi_3Mtw"`
}

type CartLineResponse struct {
	SeatID   string  `json:"seat_id"`
	OptionID *string `json:"option_id,omitempty"`
}

type CartResponse struct {
	UserID           string             `json:"user_id"`
	Lines            []CartLineResponse `json:"lines"`
	CouponID         *string            `json:"coupon_id,omitempty"`
	CampaignCode     *string            `json:"campaign_code,omitempty"`
	PaymentReference *string            `json:"payment_reference,omitempty"`
}

type PricedLineResponse struct {
	SeatID     string  `json:"seat_id"`
	OptionID   *string `json:"option_id,omitempty"`
	UnitPrice  int     `json:"unit_price"`
	FinalPrice int     `json:"final_price"`
	Discounted bool    `json:"discounted"`
}

type PriceResponse struct {
	Lines            []PricedLineResponse `json:"lines"`
	LineItems        []payment.LineItem   `json:"line_items"`
	Subtotal         int                  `json:"subtotal"`
	OptionDiscount   int                  `json:"option_discount"`
	CouponDiscount   int                  `json:"coupon_discount"`
	CampaignDiscount int                  `json:"campaign_discount"`
	Total            int                  `json:"total"`
}

func toCartResponse(c *cart.Cart) *CartResponse {
	if c == nil {
		return nil
	}
	lines := make([]CartLineResponse, len(c.Lines))
	for i, l := range c.Lines {
		lines[i] = CartLineResponse{SeatID: l.SeatID, OptionID: l.OptionID}
	}
	return &CartResponse{
		UserID: c.UserID, Lines: lines,
		CouponID: c.CouponID, CampaignCode: c.CampaignCode,
		PaymentReference: c.PaymentReference,
	}
}

func toPriceResponse(b *checkout.Breakdown) PriceResponse {
	lines := make([]PricedLineResponse, len(b.Lines))
	for i, l := range b.Lines {
		lines[i] = PricedLineResponse{
			SeatID: l.SeatID, OptionID: l.OptionID,
			UnitPrice: l.UnitPrice, FinalPrice: l.FinalPrice, Discounted: l.Discounted,
		}
	}
	return PriceResponse{
		Lines:            lines,
		LineItems:        b.LineItems(),
		Subtotal:         b.Subtotal,
		OptionDiscount:   b.OptionDiscountAmount,
		CouponDiscount:   b.CouponDiscountAmount,
		CampaignDiscount: b.CampaignDiscountAmount,
		Total:            b.Total,
	}
}

// Update godoc
// @Summary カートを更新
// @Description 購入候補を検証し、座席を仮押さえしてカートを置き換えます
// @Tags cart
// @Accept json
// @Produce json
// @Param request body UpdateCartRequest true "購入候補"
// @Success 200 {object} CartResponse
// @Failure 409 {object} CodeErrorResponse "他ユーザーが仮押さえ中"
// @Failure 422 {object} CodeErrorResponse "購入候補が無効"
// @Router /cart [put]
func (h *CartHandler) Update(c echo.Context) error {
	userID := middleware.UserID(c)
	var req UpdateCartRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	lines := make([]cart.Line, len(req.Lines))
	for i, l := range req.Lines {
		lines[i] = cart.Line{SeatID: l.SeatID, OptionID: l.OptionID}
	}
	res, err := h.service.ReplaceSelection(c.Request().Context(), userID, application.SelectionInput{
		Lines: lines, CouponID: req.CouponID, CampaignCode: req.CampaignCode,
	})
	if err != nil {
		return respondError(c, err)
	}

	switch {
	case res.ErrorCode != checkout.CodeNone:
		return c.JSON(http.StatusUnprocessableEntity, CodeErrorResponse{
			Error:     "購入候補が無効です",
			ErrorCode: string(res.ErrorCode),
		})
	case res.LostSeatID != "":
		return c.JSON(http.StatusConflict, CodeErrorResponse{
			Error:     "座席は他のユーザーが仮押さえ中です",
			ErrorCode: CodeSeatTemporarilyHeld,
			SeatID:    res.LostSeatID,
			Cart:      toCartResponse(res.Cart),
		})
	}
	return c.JSON(http.StatusOK, toCartResponse(res.Cart))
}

// Get godoc
// @Summary カートを取得
// @Tags cart
// @Produce json
// @Success 200 {object} CartResponse
// @Failure 404 {object} map[string]string
// @Router /cart [get]
func (h *CartHandler) Get(c echo.Context) error {
	ct, err := h.service.GetCart(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toCartResponse(ct))
}

// Clear godoc
// @Summary カートを破棄
// @Description カートを削除し、座席の仮押さえを解放します
// @Tags cart
// @Success 204
// @Router /cart [delete]
func (h *CartHandler) Clear(c echo.Context) error {
	if err := h.service.ClearCart(c.Request().Context(), middleware.UserID(c)); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// SetPaymentReference godoc
// @Summary 決済参照を設定
// @Tags cart
// @Accept json
// @Produce json
// @Param request body PaymentReferenceRequest true "決済参照"
// @Success 200 {object} CartResponse
// @Failure 404 {object} map[string]string
// @Router /cart/payment-reference [put]
func (h *CartHandler) SetPaymentReference(c echo.Context) error {
	var req PaymentReferenceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	ct, err := h.service.SetPaymentReference(c.Request().Context(), middleware.UserID(c), req.PaymentReference)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toCartResponse(ct))
}

// Price godoc
// @Summary 料金を試算
// @Description カートの現在の内容で料金の内訳を計算します
// @Tags cart
// @Produce json
// @Success 200 {object} PriceResponse
// @Failure 404 {object} map[string]string
// @Router /cart/price [get]
func (h *CartHandler) Price(c echo.Context) error {
	b, err := h.service.Price(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toPriceResponse(b))
}

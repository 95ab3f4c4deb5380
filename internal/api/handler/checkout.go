package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-seat-checkout/internal/api/middleware"
	"github.com/sanosuguru/go-seat-checkout/internal/application"
	"github.com/sanosuguru/go-seat-checkout/internal/domain/order"
)

type CheckoutHandler struct {
	service CheckoutServiceInterface
}

func NewCheckoutHandler(s CheckoutServiceInterface) *CheckoutHandler {
	return &CheckoutHandler{service: s}
}

// CheckoutRequest の payment_reference は省略するとカートの決済参照を使う
type CheckoutRequest struct {
	PaymentReference string `json:"payment_reference" example:"pi_3Mtw"`
}

type OrderLineResponse struct {
	SeatID    string  `json:"seat_id"`
	OptionID  *string `json:"option_id,omitempty"`
	UnitPrice int     `json:"unit_price"`
}

type OrderResponse struct {
	ID               string              `json:"id"`
	UserID           string              `json:"user_id"`
	SaleID           string              `json:"sale_id"`
	Status           string              `json:"status" example:"captured"`
	Lines            []OrderLineResponse `json:"lines"`
	Subtotal         int                 `json:"subtotal"`
	OptionDiscount   int                 `json:"option_discount"`
	CouponDiscount   int                 `json:"coupon_discount"`
	CampaignDiscount int                 `json:"campaign_discount"`
	Total            int                 `json:"total"`
	CouponID         *string             `json:"coupon_id,omitempty"`
	CampaignCode     *string             `json:"campaign_code,omitempty"`
	PaymentReference string              `json:"payment_reference"`
	CapturedAt       *time.Time          `json:"captured_at,omitempty"`
	ReturnedAt       *time.Time          `json:"returned_at,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
}

func toOrderResponse(o *order.Order) OrderResponse {
	lines := make([]OrderLineResponse, len(o.Lines))
	for i, l := range o.Lines {
		lines[i] = OrderLineResponse{SeatID: l.SeatID, OptionID: l.OptionID, UnitPrice: l.UnitPrice}
	}
	return OrderResponse{
		ID: o.ID, UserID: o.UserID, SaleID: o.SaleID, Status: string(o.Status),
		Lines: lines, Subtotal: o.Subtotal, OptionDiscount: o.OptionDiscount,
		CouponDiscount: o.CouponDiscount, CampaignDiscount: o.CampaignDiscount, Total: o.Total,
		CouponID: o.CouponID, CampaignCode: o.CampaignCode, PaymentReference: o.PaymentReference,
		CapturedAt: o.CapturedAt, ReturnedAt: o.ReturnedAt, CreatedAt: o.CreatedAt,
	}
}

// Checkout godoc
// @Summary 購入を確定
// @Description カートの内容で注文を作成し、決済を売上確定します
// @Tags checkout
// @Accept json
// @Produce json
// @Param request body CheckoutRequest false "決済参照"
// @Success 201 {object} OrderResponse
// @Failure 402 {object} CodeErrorResponse "決済失敗"
// @Failure 409 {object} map[string]string "仮押さえの期限切れ"
// @Failure 422 {object} CodeErrorResponse "購入候補が無効"
// @Router /checkout [post]
func (h *CheckoutHandler) Checkout(c echo.Context) error {
	var req CheckoutRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	o, err := h.service.Checkout(c.Request().Context(), application.CheckoutInput{
		UserID:           middleware.UserID(c),
		PaymentReference: req.PaymentReference,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, toOrderResponse(o))
}

// Get godoc
// @Summary 注文を取得
// @Tags orders
// @Produce json
// @Param id path string true "注文ID"
// @Success 200 {object} OrderResponse
// @Failure 404 {object} map[string]string
// @Router /orders/{id} [get]
func (h *CheckoutHandler) Get(c echo.Context) error {
	o, err := h.service.GetOrder(c.Request().Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toOrderResponse(o))
}

// Refund godoc
// @Summary 注文を返金
// @Description 座席を解放し、決済を返金します
// @Tags orders
// @Produce json
// @Param id path string true "注文ID"
// @Success 200 {object} OrderResponse
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string "返金済み・未確定"
// @Router /orders/{id}/refund [post]
func (h *CheckoutHandler) Refund(c echo.Context) error {
	o, err := h.service.Refund(c.Request().Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toOrderResponse(o))
}

package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-seat-checkout/internal/application"
	"github.com/sanosuguru/go-seat-checkout/internal/domain/cart"
	"github.com/sanosuguru/go-seat-checkout/internal/domain/checkout"
	"github.com/sanosuguru/go-seat-checkout/internal/domain/order"
	"github.com/sanosuguru/go-seat-checkout/internal/domain/payment"
	"github.com/sanosuguru/go-seat-checkout/internal/domain/seat"
	"github.com/sanosuguru/go-seat-checkout/internal/pkg/logger"
)

// CodeSeatTemporarilyHeld は他ユーザーが仮押さえ中の座席を選択した場合のエラーコード
const CodeSeatTemporarilyHeld = "seat_temporarily_held"

// CodeIntegrityError は売上確定後に注文を確定できなかった場合のエラーコード
const CodeIntegrityError = "integrity_error"

// CodeErrorResponse はエラーコード付きのエラーレスポンス
type CodeErrorResponse struct {
	Error     string        `json:"error"`
	ErrorCode string        `json:"error_code"`
	SeatID    string        `json:"seat_id,omitempty"`
	OrderID   string        `json:"order_id,omitempty"`
	Cart      *CartResponse `json:"cart,omitempty"`
}

// respondError はサービスのエラーをHTTPレスポンスに変換する
func respondError(c echo.Context, err error) error {
	var (
		verr *application.ValidationError
		gerr *application.GatewayError
		ierr *application.IntegrityError
	)

	switch {
	case errors.As(err, &verr):
		return c.JSON(http.StatusUnprocessableEntity, CodeErrorResponse{
			Error:     "購入候補が無効です",
			ErrorCode: string(verr.Code),
		})
	case errors.As(err, &gerr):
		status := http.StatusPaymentRequired
		if gerr.Outcome == payment.OutcomeGatewayError {
			status = http.StatusBadGateway
		}
		return c.JSON(status, CodeErrorResponse{
			Error:     "決済に失敗しました",
			ErrorCode: string(gerr.Outcome),
		})
	case errors.As(err, &ierr):
		logger.Error("注文の確定に失敗",
			zap.String("order_id", ierr.OrderID),
			zap.Error(err),
		)
		return c.JSON(http.StatusInternalServerError, CodeErrorResponse{
			Error:     "注文を確定できませんでした。決済は返金されます",
			ErrorCode: CodeIntegrityError,
			OrderID:   ierr.OrderID,
		})
	case errors.Is(err, cart.ErrCartNotFound),
		errors.Is(err, order.ErrOrderNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, checkout.ErrEmptyCart),
		errors.Is(err, cart.ErrPaymentReferenceRequired):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, application.ErrSeatHoldLost),
		errors.Is(err, seat.ErrSeatNotAvailable),
		errors.Is(err, seat.ErrSeatNotHeld),
		errors.Is(err, order.ErrOrderAlreadyRefunded),
		errors.Is(err, order.ErrOrderNotCaptured),
		errors.Is(err, order.ErrOrderStatusConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return err
}

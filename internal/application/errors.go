package application

import (
	"errors"
	"fmt"

	"github.com/sanosuguru/go-seat-checkout/internal/domain/checkout"
	"github.com/sanosuguru/go-seat-checkout/internal/domain/payment"
)

// ErrSeatHoldLost は購入手続き時にカートの座席の仮押さえが失われていた場合のエラー
var ErrSeatHoldLost = errors.New("座席の仮押さえの有効期限が切れています")

// ValidationError は購入候補の検証に失敗した場合のエラー
type ValidationError struct {
	Code checkout.ErrorCode
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("購入候補の検証に失敗: %s", e.Code)
}

// GatewayError は決済ゲートウェイが成功以外の結果を返した場合のエラー
type GatewayError struct {
	Outcome payment.Outcome
	Err     error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("決済に失敗: %s: %v", e.Outcome, e.Err)
	}
	return fmt.Sprintf("決済に失敗: %s", e.Outcome)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// IntegrityError は売上確定後に在庫・注文の整合性が保てなかった場合のエラー
// 返却時点で座席の解放と返金は実施済み。再試行してはならない
type IntegrityError struct {
	OrderID string
	Err     error
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("注文 %s の整合性エラー: %v", e.OrderID, e.Err)
}

func (e *IntegrityError) Unwrap() error { return e.Err }

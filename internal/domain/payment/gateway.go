package payment

import "context"

// Outcome は決済ゲートウェイの処理結果を表すローカルコード
type Outcome string

const (
	OutcomeSucceeded            Outcome = "succeeded"
	OutcomeAlreadyCaptured      Outcome = "already_captured"
	OutcomeDeclined             Outcome = "declined"
	OutcomeAuthorizationExpired Outcome = "authorization_expired"
	OutcomeNotFound             Outcome = "not_found"
	OutcomeAlreadyRefunded      Outcome = "already_refunded"
	OutcomeGatewayError         Outcome = "gateway_error"
)

// IsSuccess は売上確定として扱える結果かを返す
// 既に売上確定済み（already_captured）は冪等な成功とみなす
func (o Outcome) IsSuccess() bool {
	return o == OutcomeSucceeded || o == OutcomeAlreadyCaptured
}

// LineItem は決済ゲートウェイへ送る明細行
type LineItem struct {
	Name      string `json:"name"`
	UnitPrice int    `json:"unit_price"`
	Quantity  int    `json:"quantity"`
	Amount    int    `json:"amount"`
}

// CaptureRequest は売上確定の要求
type CaptureRequest struct {
	OrderID   string
	Reference string
	Amount    int
	LineItems []LineItem
}

// RefundRequest は返金の要求
type RefundRequest struct {
	OrderID   string
	Reference string
	Amount    int
}

// Gateway は決済ゲートウェイのインターフェース
type Gateway interface {
	// Capture はオーソリ済みの決済を売上確定する
	Capture(ctx context.Context, req CaptureRequest) (Outcome, error)

	// Refund は売上確定済みの決済を返金する
	Refund(ctx context.Context, req RefundRequest) (Outcome, error)
}

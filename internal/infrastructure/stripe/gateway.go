package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-seat-checkout/internal/domain/payment"
	"github.com/sanosuguru/go-seat-checkout/internal/pkg/logger"
)

var ErrSecretKeyRequired = errors.New("STRIPE_SECRET_KEY が設定されていません")

// メタデータのキーは最大50個
const maxLineItemMetadata = 40

type paymentIntents interface {
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Capture(id string, params *stripe.PaymentIntentCaptureParams) (*stripe.PaymentIntent, error)
}

type refunds interface {
	New(params *stripe.RefundParams) (*stripe.Refund, error)
}

// Gateway は Stripe の PaymentIntent を使用した payment.Gateway 実装
// 決済参照は PaymentIntent ID（pi_...）。金額は円（ゼロ小数通貨）のまま送る
type Gateway struct {
	intents  paymentIntents
	refunds  refunds
	currency string
}

// NewGateway は Stripe クライアントを初期化して Gateway を作成する
func NewGateway(secretKey, currency string) (*Gateway, error) {
	if secretKey == "" {
		return nil, ErrSecretKeyRequired
	}
	sc := client.New(secretKey, nil)
	logger.Info("Stripe クライアントを初期化しました", zap.String("currency", currency))
	return &Gateway{intents: sc.PaymentIntents, refunds: sc.Refunds, currency: currency}, nil
}

// Capture はオーソリ済みの PaymentIntent を売上確定する
func (g *Gateway) Capture(ctx context.Context, req payment.CaptureRequest) (payment.Outcome, error) {
	log := logger.With(zap.String("order_id", req.OrderID), zap.String("payment_intent", req.Reference))

	pi, err := g.intents.Get(req.Reference, &stripe.PaymentIntentParams{Params: stripe.Params{Context: ctx}})
	if err != nil {
		outcome := outcomeFromError(err)
		log.Warn("PaymentIntent の取得に失敗", zap.String("outcome", string(outcome)), zap.Error(err))
		return outcome, wrapUnexpected(outcome, err)
	}

	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		return payment.OutcomeAlreadyCaptured, nil
	case stripe.PaymentIntentStatusCanceled:
		return payment.OutcomeAuthorizationExpired, nil
	case stripe.PaymentIntentStatusRequiresCapture:
	default:
		log.Info("売上確定できない状態の PaymentIntent", zap.String("status", string(pi.Status)))
		return payment.OutcomeDeclined, nil
	}

	if g.currency != "" && pi.Currency != "" && string(pi.Currency) != g.currency {
		log.Warn("通貨が一致しません", zap.String("currency", string(pi.Currency)))
		return payment.OutcomeDeclined, nil
	}
	if pi.Amount < int64(req.Amount) {
		log.Warn("オーソリ金額が不足しています", zap.Int64("authorized", pi.Amount), zap.Int("amount", req.Amount))
		return payment.OutcomeDeclined, nil
	}

	params := &stripe.PaymentIntentCaptureParams{
		Params:          stripe.Params{Context: ctx},
		AmountToCapture: stripe.Int64(int64(req.Amount)),
	}
	for k, v := range captureMetadata(req) {
		params.AddMetadata(k, v)
	}

	captured, err := g.intents.Capture(req.Reference, params)
	if err != nil {
		outcome := outcomeFromError(err)
		log.Warn("売上確定に失敗", zap.String("outcome", string(outcome)), zap.Error(err))
		return outcome, wrapUnexpected(outcome, err)
	}
	if captured.Status != stripe.PaymentIntentStatusSucceeded {
		return payment.OutcomeDeclined, nil
	}
	return payment.OutcomeSucceeded, nil
}

// Refund は PaymentIntent に紐づく決済を返金する
func (g *Gateway) Refund(ctx context.Context, req payment.RefundRequest) (payment.Outcome, error) {
	params := &stripe.RefundParams{
		Params:        stripe.Params{Context: ctx},
		PaymentIntent: stripe.String(req.Reference),
		Reason:        stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	if req.Amount > 0 {
		params.Amount = stripe.Int64(int64(req.Amount))
	}
	params.AddMetadata("order_id", req.OrderID)

	if _, err := g.refunds.New(params); err != nil {
		outcome := outcomeFromError(err)
		logger.Warn("返金に失敗",
			zap.String("order_id", req.OrderID),
			zap.String("outcome", string(outcome)),
			zap.Error(err),
		)
		return outcome, wrapUnexpected(outcome, err)
	}
	return payment.OutcomeSucceeded, nil
}

// captureMetadata は売上確定時に PaymentIntent へ記録するメタデータを返す
func captureMetadata(req payment.CaptureRequest) map[string]string {
	md := map[string]string{
		"order_id":        req.OrderID,
		"line_item_count": fmt.Sprintf("%d", len(req.LineItems)),
	}
	for i, item := range req.LineItems {
		if i >= maxLineItemMetadata {
			break
		}
		md[fmt.Sprintf("line_item_%d", i+1)] = fmt.Sprintf("%s x %d = %d", item.Name, item.Quantity, item.Amount)
	}
	return md
}

// outcomeFromError は Stripe のエラーをローカルの結果コードに変換する
func outcomeFromError(err error) payment.Outcome {
	var se *stripe.Error
	if !errors.As(err, &se) {
		return payment.OutcomeGatewayError
	}
	switch {
	case se.Code == stripe.ErrorCodeChargeAlreadyCaptured:
		return payment.OutcomeAlreadyCaptured
	case se.Code == stripe.ErrorCodeChargeAlreadyRefunded:
		return payment.OutcomeAlreadyRefunded
	case se.Code == stripe.ErrorCodeChargeExpiredForCapture:
		return payment.OutcomeAuthorizationExpired
	case se.Code == stripe.ErrorCodeResourceMissing || se.HTTPStatusCode == http.StatusNotFound:
		return payment.OutcomeNotFound
	case se.Type == stripe.ErrorTypeCard:
		return payment.OutcomeDeclined
	}
	return payment.OutcomeGatewayError
}

// wrapUnexpected は業務上の結果として扱えないエラーのみ返す
func wrapUnexpected(outcome payment.Outcome, err error) error {
	if outcome != payment.OutcomeGatewayError {
		return nil
	}
	return fmt.Errorf("Stripe API エラー: %w", err)
}

package stripe

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"

	"github.com/sanosuguru/go-seat-checkout/internal/domain/payment"
)

type fakeIntents struct {
	intent     *stripe.PaymentIntent
	getErr     error
	captured   *stripe.PaymentIntent
	captureErr error

	captureCalls  int
	captureParams *stripe.PaymentIntentCaptureParams
}

func (f *fakeIntents) Get(id string, _ *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.intent, nil
}

func (f *fakeIntents) Capture(id string, params *stripe.PaymentIntentCaptureParams) (*stripe.PaymentIntent, error) {
	f.captureCalls++
	f.captureParams = params
	if f.captureErr != nil {
		return nil, f.captureErr
	}
	return f.captured, nil
}

type fakeRefunds struct {
	err    error
	params *stripe.RefundParams
}

func (f *fakeRefunds) New(params *stripe.RefundParams) (*stripe.Refund, error) {
	f.params = params
	if f.err != nil {
		return nil, f.err
	}
	return &stripe.Refund{ID: "re_1", Status: stripe.RefundStatusSucceeded}, nil
}

func captureRequest() payment.CaptureRequest {
	return payment.CaptureRequest{
		OrderID:   "order-1",
		Reference: "pi_1",
		Amount:    2100,
		LineItems: []payment.LineItem{{Name: "チケット (700円)", UnitPrice: 700, Quantity: 3, Amount: 2100}},
	}
}

func TestNewGateway(t *testing.T) {
	t.Run("シークレットキーが空の場合はエラー", func(t *testing.T) {
		g, err := NewGateway("", "jpy")

		assert.ErrorIs(t, err, ErrSecretKeyRequired)
		assert.Nil(t, g)
	})
}

func TestGateway_Capture(t *testing.T) {
	t.Run("オーソリ済みの決済を売上確定する", func(t *testing.T) {
		intents := &fakeIntents{
			intent:   &stripe.PaymentIntent{ID: "pi_1", Amount: 3000, Status: stripe.PaymentIntentStatusRequiresCapture},
			captured: &stripe.PaymentIntent{ID: "pi_1", Status: stripe.PaymentIntentStatusSucceeded},
		}
		g := &Gateway{intents: intents, currency: "jpy"}

		outcome, err := g.Capture(context.Background(), captureRequest())

		require.NoError(t, err)
		assert.Equal(t, payment.OutcomeSucceeded, outcome)
		assert.Equal(t, 1, intents.captureCalls)
		assert.Equal(t, int64(2100), *intents.captureParams.AmountToCapture)
		assert.Equal(t, "order-1", intents.captureParams.Metadata["order_id"])
		assert.Equal(t, "チケット (700円) x 3 = 2100", intents.captureParams.Metadata["line_item_1"])
	})

	tests := []struct {
		name     string
		intent   *stripe.PaymentIntent
		expected payment.Outcome
	}{
		{
			name:     "売上確定済みは already_captured",
			intent:   &stripe.PaymentIntent{Amount: 2100, Status: stripe.PaymentIntentStatusSucceeded},
			expected: payment.OutcomeAlreadyCaptured,
		},
		{
			name:     "キャンセル済みは authorization_expired",
			intent:   &stripe.PaymentIntent{Amount: 2100, Status: stripe.PaymentIntentStatusCanceled},
			expected: payment.OutcomeAuthorizationExpired,
		},
		{
			name:     "支払い方法未設定は declined",
			intent:   &stripe.PaymentIntent{Amount: 2100, Status: stripe.PaymentIntentStatusRequiresPaymentMethod},
			expected: payment.OutcomeDeclined,
		},
		{
			name:     "オーソリ金額不足は declined",
			intent:   &stripe.PaymentIntent{Amount: 2000, Status: stripe.PaymentIntentStatusRequiresCapture},
			expected: payment.OutcomeDeclined,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intents := &fakeIntents{intent: tt.intent}
			g := &Gateway{intents: intents}

			outcome, err := g.Capture(context.Background(), captureRequest())

			require.NoError(t, err)
			assert.Equal(t, tt.expected, outcome)
			assert.Equal(t, 0, intents.captureCalls)
		})
	}

	t.Run("存在しない PaymentIntent は not_found", func(t *testing.T) {
		intents := &fakeIntents{getErr: &stripe.Error{Code: stripe.ErrorCodeResourceMissing, HTTPStatusCode: http.StatusNotFound}}
		g := &Gateway{intents: intents}

		outcome, err := g.Capture(context.Background(), captureRequest())

		require.NoError(t, err)
		assert.Equal(t, payment.OutcomeNotFound, outcome)
	})

	t.Run("通信エラーは gateway_error としてエラーを返す", func(t *testing.T) {
		intents := &fakeIntents{getErr: errors.New("connection reset")}
		g := &Gateway{intents: intents}

		outcome, err := g.Capture(context.Background(), captureRequest())

		assert.Error(t, err)
		assert.Equal(t, payment.OutcomeGatewayError, outcome)
	})
}

func TestGateway_Refund(t *testing.T) {
	t.Run("返金に成功する", func(t *testing.T) {
		refunds := &fakeRefunds{}
		g := &Gateway{refunds: refunds}

		outcome, err := g.Refund(context.Background(), payment.RefundRequest{OrderID: "order-1", Reference: "pi_1", Amount: 2100})

		require.NoError(t, err)
		assert.Equal(t, payment.OutcomeSucceeded, outcome)
		assert.Equal(t, "pi_1", *refunds.params.PaymentIntent)
		assert.Equal(t, int64(2100), *refunds.params.Amount)
	})

	t.Run("返金済みは already_refunded", func(t *testing.T) {
		refunds := &fakeRefunds{err: &stripe.Error{Code: stripe.ErrorCodeChargeAlreadyRefunded, HTTPStatusCode: http.StatusBadRequest}}
		g := &Gateway{refunds: refunds}

		outcome, err := g.Refund(context.Background(), payment.RefundRequest{OrderID: "order-1", Reference: "pi_1"})

		require.NoError(t, err)
		assert.Equal(t, payment.OutcomeAlreadyRefunded, outcome)
		assert.Nil(t, refunds.params.Amount)
	})
}

func TestOutcomeFromError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected payment.Outcome
	}{
		{"カードエラー", &stripe.Error{Type: stripe.ErrorTypeCard, HTTPStatusCode: http.StatusPaymentRequired}, payment.OutcomeDeclined},
		{"売上確定済み", &stripe.Error{Code: stripe.ErrorCodeChargeAlreadyCaptured}, payment.OutcomeAlreadyCaptured},
		{"オーソリ期限切れ", &stripe.Error{Code: stripe.ErrorCodeChargeExpiredForCapture}, payment.OutcomeAuthorizationExpired},
		{"404", &stripe.Error{HTTPStatusCode: http.StatusNotFound}, payment.OutcomeNotFound},
		{"APIエラー", &stripe.Error{Type: stripe.ErrorTypeAPI, HTTPStatusCode: http.StatusInternalServerError}, payment.OutcomeGatewayError},
		{"その他", errors.New("timeout"), payment.OutcomeGatewayError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, outcomeFromError(tt.err))
		})
	}
}

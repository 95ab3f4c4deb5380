package handler

import (
	"context"
	"net/http/httptest"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/mock"

	"github.com/sanosuguru/go-seat-checkout/internal/api/middleware"
	"github.com/sanosuguru/go-seat-checkout/internal/application"
	"github.com/sanosuguru/go-seat-checkout/internal/domain/cart"
	"github.com/sanosuguru/go-seat-checkout/internal/domain/checkout"
	"github.com/sanosuguru/go-seat-checkout/internal/domain/order"
)

// MockCartService はCartServiceInterfaceのモック
type MockCartService struct {
	mock.Mock
}

func (m *MockCartService) ReplaceSelection(ctx context.Context, userID string, in application.SelectionInput) (*application.ReplaceResult, error) {
	args := m.Called(ctx, userID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*application.ReplaceResult), args.Error(1)
}

func (m *MockCartService) GetCart(ctx context.Context, userID string) (*cart.Cart, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cart.Cart), args.Error(1)
}

func (m *MockCartService) SetPaymentReference(ctx context.Context, userID, ref string) (*cart.Cart, error) {
	args := m.Called(ctx, userID, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cart.Cart), args.Error(1)
}

func (m *MockCartService) ClearCart(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockCartService) Price(ctx context.Context, userID string) (*checkout.Breakdown, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*checkout.Breakdown), args.Error(1)
}

// MockCheckoutService はCheckoutServiceInterfaceのモック
type MockCheckoutService struct {
	mock.Mock
}

func (m *MockCheckoutService) Checkout(ctx context.Context, in application.CheckoutInput) (*order.Order, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockCheckoutService) Refund(ctx context.Context, orderID, userID string) (*order.Order, error) {
	args := m.Called(ctx, orderID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockCheckoutService) GetOrder(ctx context.Context, orderID, userID string) (*order.Order, error) {
	args := m.Called(ctx, orderID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

// newUserContext はユーザー識別済みのリクエストコンテキストを作成する
func newUserContext(e *echo.Echo, method, path, body, userID string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(middleware.UserIDKey, userID)
	return c, rec
}

func strPtr(s string) *string { return &s }

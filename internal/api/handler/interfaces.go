package handler

import (
	"context"

	"github.com/sanosuguru/go-seat-checkout/internal/application"
	"github.com/sanosuguru/go-seat-checkout/internal/domain/cart"
	"github.com/sanosuguru/go-seat-checkout/internal/domain/checkout"
	"github.com/sanosuguru/go-seat-checkout/internal/domain/order"
)

// CartServiceInterface はカートサービスのインターフェース
type CartServiceInterface interface {
	ReplaceSelection(ctx context.Context, userID string, in application.SelectionInput) (*application.ReplaceResult, error)
	GetCart(ctx context.Context, userID string) (*cart.Cart, error)
	SetPaymentReference(ctx context.Context, userID, ref string) (*cart.Cart, error)
	ClearCart(ctx context.Context, userID string) error
	Price(ctx context.Context, userID string) (*checkout.Breakdown, error)
}

// CheckoutServiceInterface は購入サービスのインターフェース
type CheckoutServiceInterface interface {
	Checkout(ctx context.Context, in application.CheckoutInput) (*order.Order, error)
	Refund(ctx context.Context, orderID, userID string) (*order.Order, error)
	GetOrder(ctx context.Context, orderID, userID string) (*order.Order, error)
}

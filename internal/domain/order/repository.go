package order

import (
	"context"
	"time"

	"github.com/sanosuguru/go-seat-checkout/internal/domain/transaction"
)

// Repository は注文リポジトリのインターフェース
type Repository interface {
	// Create は注文と明細を作成する（トランザクション必須）
	Create(ctx context.Context, tx transaction.Tx, o *Order) error

	// GetByID はIDから注文を取得する
	GetByID(ctx context.Context, id string) (*Order, error)

	// GetByIDTx はトランザクション内で注文を取得する
	GetByIDTx(ctx context.Context, tx transaction.Tx, id string) (*Order, error)

	// Update は注文の状態を更新する（トランザクション必須）
	Update(ctx context.Context, tx transaction.Tx, o *Order) error

	// CreatePayment は決済記録を作成する（トランザクション必須）
	CreatePayment(ctx context.Context, tx transaction.Tx, p *Payment) error

	// MarkPaymentRefunded は注文の決済記録を返金済みにする（トランザクション必須）
	MarkPaymentRefunded(ctx context.Context, tx transaction.Tx, orderID string, at time.Time) error

	// CreateTickets は座席ごとの購入記録を作成する（トランザクション必須）
	CreateTickets(ctx context.Context, tx transaction.Tx, tickets []Ticket) error

	// GetStalePending は一定時間以上決済待ちのままの注文を取得する
	GetStalePending(ctx context.Context, olderThan time.Duration) ([]*Order, error)
}

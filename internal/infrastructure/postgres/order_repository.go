package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sanosuguru/go-seat-checkout/internal/domain/order"
	"github.com/sanosuguru/go-seat-checkout/internal/domain/transaction"
)

type orderRow struct {
	ID               string     `db:"id"`
	UserID           string     `db:"user_id"`
	SaleID           string     `db:"sale_id"`
	Status           string     `db:"status"`
	Subtotal         int        `db:"subtotal"`
	OptionDiscount   int        `db:"option_discount"`
	CouponDiscount   int        `db:"coupon_discount"`
	CampaignDiscount int        `db:"campaign_discount"`
	Total            int        `db:"total"`
	CouponID         *string    `db:"coupon_id"`
	CampaignCode     *string    `db:"campaign_code"`
	PaymentReference string     `db:"payment_reference"`
	CapturedAt       *time.Time `db:"captured_at"`
	ReturnedAt       *time.Time `db:"returned_at"`
	CreatedAt        time.Time  `db:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
}

type orderLineRow struct {
	SeatID    string  `db:"seat_id"`
	OptionID  *string `db:"option_id"`
	UnitPrice int     `db:"unit_price"`
}

const orderColumns = `id, user_id, sale_id, status, subtotal, option_discount, coupon_discount, campaign_discount, total,
	coupon_id, campaign_code, payment_reference, captured_at, returned_at, created_at, updated_at`

type OrderRepository struct{ db *sqlx.DB }

func NewOrderRepository(db *sqlx.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Create(ctx context.Context, tx transaction.Tx, o *order.Order) error {
	sqlTx, err := unwrapTx(tx)
	if err != nil {
		return err
	}
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	query := `INSERT INTO orders (id, user_id, sale_id, status, subtotal, option_discount, coupon_discount, campaign_discount, total,
		coupon_id, campaign_code, payment_reference, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	if _, err := sqlTx.ExecContext(ctx, query, o.ID, o.UserID, o.SaleID, string(o.Status),
		o.Subtotal, o.OptionDiscount, o.CouponDiscount, o.CampaignDiscount, o.Total,
		o.CouponID, o.CampaignCode, o.PaymentReference, o.CreatedAt, o.UpdatedAt); err != nil {
		return fmt.Errorf("注文作成に失敗: %w", err)
	}
	for i, l := range o.Lines {
		if _, err := sqlTx.ExecContext(ctx, `INSERT INTO order_lines (order_id, position, seat_id, option_id, unit_price) VALUES ($1, $2, $3, $4, $5)`,
			o.ID, i, l.SeatID, l.OptionID, l.UnitPrice); err != nil {
			return fmt.Errorf("注文明細作成に失敗: %w", err)
		}
	}
	return nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	return r.get(ctx, r.db, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

// GetByIDTx はトランザクション内で行ロックを取って注文を取得する
func (r *OrderRepository) GetByIDTx(ctx context.Context, tx transaction.Tx, id string) (*order.Order, error) {
	sqlTx, err := unwrapTx(tx)
	if err != nil {
		return nil, err
	}
	return r.get(ctx, sqlTx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
}

func (r *OrderRepository) get(ctx context.Context, q sqlx.QueryerContext, query, id string) (*order.Order, error) {
	var row orderRow
	if err := sqlx.GetContext(ctx, q, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, order.ErrOrderNotFound
		}
		return nil, fmt.Errorf("注文取得に失敗: %w", err)
	}
	lines, err := r.getLines(ctx, q, row.ID)
	if err != nil {
		return nil, err
	}
	return toOrderEntity(&row, lines), nil
}

func (r *OrderRepository) getLines(ctx context.Context, q sqlx.QueryerContext, orderID string) ([]order.Line, error) {
	var rows []orderLineRow
	if err := sqlx.SelectContext(ctx, q, &rows, `SELECT seat_id, option_id, unit_price FROM order_lines WHERE order_id = $1 ORDER BY position`, orderID); err != nil {
		return nil, fmt.Errorf("注文明細取得に失敗: %w", err)
	}
	lines := make([]order.Line, len(rows))
	for i, row := range rows {
		lines[i] = order.Line{SeatID: row.SeatID, OptionID: row.OptionID, UnitPrice: row.UnitPrice}
	}
	return lines, nil
}

// Update は注文の状態を更新する。保存済みの状態が遷移元でなければ ErrOrderStatusConflict
func (r *OrderRepository) Update(ctx context.Context, tx transaction.Tx, o *order.Order) error {
	sqlTx, err := unwrapTx(tx)
	if err != nil {
		return err
	}
	prev := order.PreviousStatuses(o.Status)
	from := make([]string, len(prev))
	for i, st := range prev {
		from[i] = string(st)
	}
	// 保存済みの状態が遷移元でない行は更新しない
	query := `UPDATE orders SET status = $1, captured_at = $2, returned_at = $3, updated_at = $4 WHERE id = $5 AND status = ANY($6)`
	result, err := sqlTx.ExecContext(ctx, query, string(o.Status), o.CapturedAt, o.ReturnedAt, o.UpdatedAt, o.ID, pq.Array(from))
	if err != nil {
		return fmt.Errorf("注文更新に失敗: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return order.ErrOrderStatusConflict
	}
	return nil
}

func (r *OrderRepository) CreatePayment(ctx context.Context, tx transaction.Tx, p *order.Payment) error {
	sqlTx, err := unwrapTx(tx)
	if err != nil {
		return err
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	query := `INSERT INTO payments (id, order_id, reference, amount, status, captured_at) VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := sqlTx.ExecContext(ctx, query, p.ID, p.OrderID, p.Reference, p.Amount, string(p.Status), p.CapturedAt); err != nil {
		return fmt.Errorf("決済記録作成に失敗: %w", err)
	}
	return nil
}

func (r *OrderRepository) MarkPaymentRefunded(ctx context.Context, tx transaction.Tx, orderID string, at time.Time) error {
	sqlTx, err := unwrapTx(tx)
	if err != nil {
		return err
	}
	query := `UPDATE payments SET status = 'refunded', refunded_at = $1 WHERE order_id = $2 AND status = 'captured'`
	if _, err := sqlTx.ExecContext(ctx, query, at, orderID); err != nil {
		return fmt.Errorf("決済記録の返金更新に失敗: %w", err)
	}
	return nil
}

func (r *OrderRepository) CreateTickets(ctx context.Context, tx transaction.Tx, tickets []order.Ticket) error {
	sqlTx, err := unwrapTx(tx)
	if err != nil {
		return err
	}
	for _, t := range tickets {
		if _, err := sqlTx.ExecContext(ctx, `INSERT INTO tickets (order_id, seat_id, user_id, option_id) VALUES ($1, $2, $3, $4)`,
			t.OrderID, t.SeatID, t.UserID, t.OptionID); err != nil {
			return fmt.Errorf("チケット作成に失敗: %w", err)
		}
	}
	return nil
}

func (r *OrderRepository) GetStalePending(ctx context.Context, olderThan time.Duration) ([]*order.Order, error) {
	var rows []orderRow
	threshold := time.Now().Add(-olderThan)
	if err := r.db.SelectContext(ctx, &rows, `SELECT `+orderColumns+` FROM orders WHERE status = 'pending' AND created_at < $1 ORDER BY created_at`, threshold); err != nil {
		return nil, fmt.Errorf("滞留注文取得に失敗: %w", err)
	}
	result := make([]*order.Order, len(rows))
	for i := range rows {
		lines, err := r.getLines(ctx, r.db, rows[i].ID)
		if err != nil {
			return nil, err
		}
		result[i] = toOrderEntity(&rows[i], lines)
	}
	return result, nil
}

func toOrderEntity(row *orderRow, lines []order.Line) *order.Order {
	return &order.Order{
		ID:               row.ID,
		UserID:           row.UserID,
		SaleID:           row.SaleID,
		Status:           order.Status(row.Status),
		Lines:            lines,
		Subtotal:         row.Subtotal,
		OptionDiscount:   row.OptionDiscount,
		CouponDiscount:   row.CouponDiscount,
		CampaignDiscount: row.CampaignDiscount,
		Total:            row.Total,
		CouponID:         row.CouponID,
		CampaignCode:     row.CampaignCode,
		PaymentReference: row.PaymentReference,
		CapturedAt:       row.CapturedAt,
		ReturnedAt:       row.ReturnedAt,
		CreatedAt:        row.CreatedAt,
		UpdatedAt:        row.UpdatedAt,
	}
}

var _ order.Repository = (*OrderRepository)(nil)

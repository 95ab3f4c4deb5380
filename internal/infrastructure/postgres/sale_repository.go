package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sanosuguru/go-seat-checkout/internal/domain/sale"
)

// saleRow はDBの行を表す構造体
type saleRow struct {
	ID         string    `db:"id"`
	ScheduleID string    `db:"schedule_id"`
	Name       string    `db:"name"`
	Status     string    `db:"status"`
	StartAt    time.Time `db:"start_at"`
	EndAt      time.Time `db:"end_at"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

func (r *saleRow) toEntity() *sale.Sale {
	return &sale.Sale{
		ID:         r.ID,
		ScheduleID: r.ScheduleID,
		Name:       r.Name,
		Status:     sale.Status(r.Status),
		StartAt:    r.StartAt,
		EndAt:      r.EndAt,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

const saleColumns = `id, schedule_id, name, status, start_at, end_at, created_at, updated_at`

// SaleRepository は販売枠リポジトリのPostgreSQL実装
type SaleRepository struct {
	db *sqlx.DB
}

// NewSaleRepository はSaleRepositoryを作成する
func NewSaleRepository(db *sqlx.DB) *SaleRepository {
	return &SaleRepository{db: db}
}

// GetByID はIDから販売枠を取得する
func (r *SaleRepository) GetByID(ctx context.Context, id string) (*sale.Sale, error) {
	var row saleRow
	query := `SELECT ` + saleColumns + ` FROM sales WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sale.ErrSaleNotFound
		}
		return nil, fmt.Errorf("販売枠取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

// GetByIDs は複数IDの販売枠を取得する
func (r *SaleRepository) GetByIDs(ctx context.Context, ids []string) ([]*sale.Sale, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []saleRow
	query := `SELECT ` + saleColumns + ` FROM sales WHERE id = ANY($1)`
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("販売枠取得に失敗: %w", err)
	}
	sales := make([]*sale.Sale, len(rows))
	for i := range rows {
		sales[i] = rows[i].toEntity()
	}
	return sales, nil
}

var _ sale.Repository = (*SaleRepository)(nil)

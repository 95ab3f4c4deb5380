package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sanosuguru/go-seat-checkout/internal/domain/seat"
	"github.com/sanosuguru/go-seat-checkout/internal/domain/transaction"
)

type seatRow struct {
	ID          string    `db:"id"`
	SeatTypeID  string    `db:"seat_type_id"`
	AreaID      string    `db:"area_id"`
	Row         string    `db:"row_label"`
	Number      string    `db:"seat_number"`
	SalesMode   string    `db:"sales_mode"`
	UnitGroupID *string   `db:"unit_group_id"`
	Status      string    `db:"status"`
	OwnerID     *string   `db:"owner_id"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
	Version     int       `db:"version"`
}

func (r *seatRow) toEntity() *seat.Seat {
	return &seat.Seat{
		ID: r.ID, SeatTypeID: r.SeatTypeID, AreaID: r.AreaID,
		Row: r.Row, Number: r.Number,
		SalesMode: seat.SalesMode(r.SalesMode), UnitGroupID: r.UnitGroupID,
		Status: seat.Status(r.Status), OwnerID: r.OwnerID,
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt, Version: r.Version,
	}
}

type seatTypeRow struct {
	ID     string `db:"id"`
	SaleID string `db:"sale_id"`
	Name   string `db:"name"`
	Price  int    `db:"price"`
}

type optionRow struct {
	ID         string `db:"id"`
	SeatTypeID string `db:"seat_type_id"`
	Name       string `db:"name"`
	PriceDelta int    `db:"price_delta"`
}

type areaRow struct {
	ID          string `db:"id"`
	Name        string `db:"name"`
	Displayable bool   `db:"displayable"`
}

const seatColumns = `id, seat_type_id, area_id, row_label, seat_number, sales_mode, unit_group_id, status, owner_id, created_at, updated_at, version`

type SeatRepository struct{ db *sqlx.DB }

func NewSeatRepository(db *sqlx.DB) *SeatRepository { return &SeatRepository{db: db} }

func (r *SeatRepository) GetByIDs(ctx context.Context, ids []string) ([]*seat.Seat, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + seatColumns + ` FROM seats WHERE id = ANY($1)`
	var rows []seatRow
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("座席取得に失敗: %w", err)
	}
	seats := make([]*seat.Seat, len(rows))
	for i := range rows {
		seats[i] = rows[i].toEntity()
	}
	return seats, nil
}

func (r *SeatRepository) GetSeatTypesByIDs(ctx context.Context, ids []string) ([]*seat.SeatType, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []seatTypeRow
	query := `SELECT id, sale_id, name, price FROM seat_types WHERE id = ANY($1)`
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("席種取得に失敗: %w", err)
	}
	types := make([]*seat.SeatType, len(rows))
	for i, row := range rows {
		types[i] = &seat.SeatType{ID: row.ID, SaleID: row.SaleID, Name: row.Name, Price: row.Price}
	}
	return types, nil
}

func (r *SeatRepository) GetOptionsByIDs(ctx context.Context, ids []string) ([]*seat.Option, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []optionRow
	query := `SELECT id, seat_type_id, name, price_delta FROM seat_options WHERE id = ANY($1)`
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("オプション取得に失敗: %w", err)
	}
	options := make([]*seat.Option, len(rows))
	for i, row := range rows {
		options[i] = &seat.Option{ID: row.ID, SeatTypeID: row.SeatTypeID, Name: row.Name, PriceDelta: row.PriceDelta}
	}
	return options, nil
}

func (r *SeatRepository) GetAreasByIDs(ctx context.Context, ids []string) ([]*seat.Area, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []areaRow
	query := `SELECT id, name, displayable FROM areas WHERE id = ANY($1)`
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("エリア取得に失敗: %w", err)
	}
	areas := make([]*seat.Area, len(rows))
	for i, row := range rows {
		areas[i] = &seat.Area{ID: row.ID, Name: row.Name, Displayable: row.Displayable}
	}
	return areas, nil
}

func (r *SeatRepository) CountByUnitGroups(ctx context.Context, unitGroupIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(unitGroupIDs))
	if len(unitGroupIDs) == 0 {
		return counts, nil
	}
	var rows []struct {
		UnitGroupID string `db:"unit_group_id"`
		Count       int    `db:"count"`
	}
	query := `SELECT unit_group_id, COUNT(*) AS count FROM seats WHERE unit_group_id = ANY($1) AND status <> 'withdrawn' GROUP BY unit_group_id`
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(unitGroupIDs)); err != nil {
		return nil, fmt.Errorf("ユニット座席数の取得に失敗: %w", err)
	}
	for _, row := range rows {
		counts[row.UnitGroupID] = row.Count
	}
	return counts, nil
}

// HoldSeats は販売可能な座席のみを決済処理中にする。1席でも更新できなければエラー
func (r *SeatRepository) HoldSeats(ctx context.Context, tx transaction.Tx, seatIDs []string) error {
	if len(seatIDs) == 0 {
		return nil
	}
	sqlTx, err := unwrapTx(tx)
	if err != nil {
		return err
	}
	query := `UPDATE seats SET status = 'temporarily_held', updated_at = NOW(), version = version + 1 WHERE id = ANY($1) AND status = 'available' AND owner_id IS NULL`
	result, err := sqlTx.ExecContext(ctx, query, pq.Array(seatIDs))
	if err != nil {
		return fmt.Errorf("座席の確保に失敗: %w", err)
	}
	rows, _ := result.RowsAffected()
	if int(rows) != len(seatIDs) {
		return seat.ErrSeatNotAvailable
	}
	return nil
}

// SellSeats は決済処理中の座席を販売済みにする
func (r *SeatRepository) SellSeats(ctx context.Context, tx transaction.Tx, seatIDs []string, ownerID string) error {
	if len(seatIDs) == 0 {
		return nil
	}
	sqlTx, err := unwrapTx(tx)
	if err != nil {
		return err
	}
	query := `UPDATE seats SET status = 'sold', owner_id = $1, updated_at = NOW(), version = version + 1 WHERE id = ANY($2) AND status = 'temporarily_held'`
	result, err := sqlTx.ExecContext(ctx, query, ownerID, pq.Array(seatIDs))
	if err != nil {
		return fmt.Errorf("座席の販売確定に失敗: %w", err)
	}
	rows, _ := result.RowsAffected()
	if int(rows) != len(seatIDs) {
		return seat.ErrSeatNotHeld
	}
	return nil
}

// ReleaseSeats は座席を販売可能に戻す。取り下げ済みの座席は対象外
func (r *SeatRepository) ReleaseSeats(ctx context.Context, tx transaction.Tx, seatIDs []string) error {
	if len(seatIDs) == 0 {
		return nil
	}
	sqlTx, err := unwrapTx(tx)
	if err != nil {
		return err
	}
	query := `UPDATE seats SET status = 'available', owner_id = NULL, updated_at = NOW(), version = version + 1 WHERE id = ANY($1) AND status IN ('temporarily_held', 'sold')`
	if _, err := sqlTx.ExecContext(ctx, query, pq.Array(seatIDs)); err != nil {
		return fmt.Errorf("座席の解放に失敗: %w", err)
	}
	return nil
}

var _ seat.Repository = (*SeatRepository)(nil)

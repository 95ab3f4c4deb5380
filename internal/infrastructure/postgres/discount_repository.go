package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sanosuguru/go-seat-checkout/internal/domain/discount"
	"github.com/sanosuguru/go-seat-checkout/internal/domain/transaction"
)

type couponRow struct {
	ID          string         `db:"id"`
	Title       string         `db:"title"`
	Rate        int            `db:"rate"`
	StartAt     time.Time      `db:"start_at"`
	EndAt       time.Time      `db:"end_at"`
	UserID      string         `db:"user_id"`
	UsedAt      *time.Time     `db:"used_at"`
	ScheduleIDs pq.StringArray `db:"schedule_ids"`
	SeatTypeIDs pq.StringArray `db:"seat_type_ids"`
}

func (r *couponRow) toEntity() *discount.Coupon {
	return &discount.Coupon{
		ID:          r.ID,
		Title:       r.Title,
		Rate:        r.Rate,
		StartAt:     r.StartAt,
		EndAt:       r.EndAt,
		UserID:      r.UserID,
		UsedAt:      r.UsedAt,
		ScheduleIDs: discount.AllowList(r.ScheduleIDs),
		SeatTypeIDs: discount.AllowList(r.SeatTypeIDs),
	}
}

type campaignRow struct {
	ID           string         `db:"id"`
	Code         string         `db:"code"`
	Title        string         `db:"title"`
	Rate         int            `db:"rate"`
	Approved     bool           `db:"approved"`
	StartAt      time.Time      `db:"start_at"`
	EndAt        time.Time      `db:"end_at"`
	TerminatedAt *time.Time     `db:"terminated_at"`
	UsageLimit   int            `db:"usage_limit"`
	UsageCount   int            `db:"usage_count"`
	ScheduleIDs  pq.StringArray `db:"schedule_ids"`
	SeatTypeIDs  pq.StringArray `db:"seat_type_ids"`
}

func (r *campaignRow) toEntity() *discount.Campaign {
	return &discount.Campaign{
		ID:           r.ID,
		Code:         r.Code,
		Title:        r.Title,
		Rate:         r.Rate,
		Approved:     r.Approved,
		StartAt:      r.StartAt,
		EndAt:        r.EndAt,
		TerminatedAt: r.TerminatedAt,
		UsageLimit:   r.UsageLimit,
		UsageCount:   r.UsageCount,
		ScheduleIDs:  discount.AllowList(r.ScheduleIDs),
		SeatTypeIDs:  discount.AllowList(r.SeatTypeIDs),
	}
}

// DiscountRepository はクーポン・キャンペーンリポジトリのPostgreSQL実装
type DiscountRepository struct {
	db *sqlx.DB
}

// NewDiscountRepository はDiscountRepositoryを作成する
func NewDiscountRepository(db *sqlx.DB) *DiscountRepository {
	return &DiscountRepository{db: db}
}

// GetUserCoupon はユーザーに配布されたクーポンを取得する
func (r *DiscountRepository) GetUserCoupon(ctx context.Context, couponID, userID string) (*discount.Coupon, error) {
	var row couponRow
	query := `SELECT c.id, c.title, c.rate, c.start_at, c.end_at, uc.user_id, uc.used_at, c.schedule_ids, c.seat_type_ids
		FROM coupons c JOIN user_coupons uc ON uc.coupon_id = c.id
		WHERE c.id = $1 AND uc.user_id = $2`
	if err := r.db.GetContext(ctx, &row, query, couponID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, discount.ErrCouponNotFound
		}
		return nil, fmt.Errorf("クーポン取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

// GetCampaignByCode はコードからキャンペーンを取得する
func (r *DiscountRepository) GetCampaignByCode(ctx context.Context, code string) (*discount.Campaign, error) {
	var row campaignRow
	query := `SELECT id, code, title, rate, approved, start_at, end_at, terminated_at, usage_limit, usage_count, schedule_ids, seat_type_ids
		FROM campaigns WHERE code = $1`
	if err := r.db.GetContext(ctx, &row, query, code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, discount.ErrCampaignNotFound
		}
		return nil, fmt.Errorf("キャンペーン取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

// MarkCouponUsed はクーポンを使用済みにする。既に使用済みの場合は ErrCouponAlreadyUsed
func (r *DiscountRepository) MarkCouponUsed(ctx context.Context, tx transaction.Tx, couponID, userID string, usedAt time.Time) error {
	sqlTx, err := unwrapTx(tx)
	if err != nil {
		return err
	}
	query := `UPDATE user_coupons SET used_at = $1 WHERE coupon_id = $2 AND user_id = $3 AND used_at IS NULL`
	result, err := sqlTx.ExecContext(ctx, query, usedAt, couponID, userID)
	if err != nil {
		return fmt.Errorf("クーポン使用記録に失敗: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return discount.ErrCouponAlreadyUsed
	}
	return nil
}

// IncrementCampaignUsage は上限の範囲内でキャンペーンの利用回数を1増やす
func (r *DiscountRepository) IncrementCampaignUsage(ctx context.Context, tx transaction.Tx, campaignID string) error {
	sqlTx, err := unwrapTx(tx)
	if err != nil {
		return err
	}
	query := `UPDATE campaigns SET usage_count = usage_count + 1 WHERE id = $1 AND (usage_limit = 0 OR usage_count < usage_limit)`
	result, err := sqlTx.ExecContext(ctx, query, campaignID)
	if err != nil {
		return fmt.Errorf("キャンペーン利用回数の更新に失敗: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return discount.ErrCampaignUsageLimitReached
	}
	return nil
}

var _ discount.Repository = (*DiscountRepository)(nil)

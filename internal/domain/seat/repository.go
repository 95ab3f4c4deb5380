package seat

import (
	"context"

	"github.com/sanosuguru/go-seat-checkout/internal/domain/transaction"
)

// Repository は座席および座席マスタのリポジトリインターフェース
type Repository interface {
	// GetByIDs は複数IDの座席を取得する（存在しないIDは結果に含まれない）
	GetByIDs(ctx context.Context, ids []string) ([]*Seat, error)

	// GetSeatTypesByIDs は複数IDの席種を取得する
	GetSeatTypesByIDs(ctx context.Context, ids []string) ([]*SeatType, error)

	// GetOptionsByIDs は複数IDのオプションを取得する
	GetOptionsByIDs(ctx context.Context, ids []string) ([]*Option, error)

	// GetAreasByIDs は複数IDのエリアを取得する
	GetAreasByIDs(ctx context.Context, ids []string) ([]*Area, error)

	// CountByUnitGroups はユニットIDごとの座席数を返す
	CountByUnitGroups(ctx context.Context, unitGroupIDs []string) (map[string]int, error)

	// HoldSeats は座席を決済処理中に更新する（トランザクション必須）
	HoldSeats(ctx context.Context, tx transaction.Tx, seatIDs []string) error

	// SellSeats は座席を販売済みにして所有者を記録する（トランザクション必須）
	SellSeats(ctx context.Context, tx transaction.Tx, seatIDs []string, ownerID string) error

	// ReleaseSeats は座席を販売可能に戻し所有者をクリアする（トランザクション必須）
	ReleaseSeats(ctx context.Context, tx transaction.Tx, seatIDs []string) error
}

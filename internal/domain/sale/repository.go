package sale

import "context"

// Repository は販売枠リポジトリのインターフェース
type Repository interface {
	// GetByID はIDから販売枠を取得する
	GetByID(ctx context.Context, id string) (*Sale, error)

	// GetByIDs は複数IDの販売枠を取得する（存在しないIDは結果に含まれない）
	GetByIDs(ctx context.Context, ids []string) ([]*Sale, error)
}

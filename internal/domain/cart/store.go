package cart

import (
	"context"
	"time"
)

// Store はユーザーごとに1つのカートを保持するストア
type Store interface {
	// Get はユーザーのカートを取得する。存在しない場合は ErrCartNotFound
	Get(ctx context.Context, userID string) (*Cart, error)

	// Set はカートを保存する（既存のカートは丸ごと上書き）
	Set(ctx context.Context, userID string, c *Cart, ttl time.Duration) error

	// Clear はユーザーのカートを削除する
	Clear(ctx context.Context, userID string) error

	// TTL はカートの残り有効期間を返す
	TTL(ctx context.Context, userID string) (time.Duration, error)
}

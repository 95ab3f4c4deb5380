package kvstore

import (
	"context"
	"time"
)

// ClaimResult は ClaimOrRenew の結果
type ClaimResult int

const (
	// ClaimLost は他の値が保存されていて確保できなかったことを表す
	ClaimLost ClaimResult = iota
	// ClaimAcquired はキーが存在せず新たに保存したことを表す
	ClaimAcquired
	// ClaimRenewed は同じ値が保存済みで有効期限を延長したことを表す
	ClaimRenewed
)

// Store はTTL付きのキーバリューストアを表すインターフェース
// 座席ロックとカートはこのストア上に構築される（本番は Redis、テストはメモリ実装）
type Store interface {
	// Get はキーの値を取得する。キーが存在しない場合は ok=false を返す
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set は値を無条件に保存する（既存の値は上書き）
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// CompareAndSet は現在値が old と一致する場合のみ new を保存する
	// old が空文字の場合は「キーが存在しないこと」を条件とする
	CompareAndSet(ctx context.Context, key, old, new string, ttl time.Duration) (bool, error)

	// ClaimOrRenew はキーが存在しないか現在値が value と一致する場合に value を保存する
	// 判定と保存は1回の操作で行い、途中で期限切れになっても取りこぼさない
	ClaimOrRenew(ctx context.Context, key, value string, ttl time.Duration) (ClaimResult, error)

	// CompareAndDelete は現在値が old と一致する場合のみキーを削除する
	CompareAndDelete(ctx context.Context, key, old string) (bool, error)

	// Delete はキーを削除する
	Delete(ctx context.Context, key string) error

	// TTL はキーの残り有効期間を返す。キーが存在しない場合は 0
	TTL(ctx context.Context, key string) (time.Duration, error)
}

package seatlock

import (
	"context"
	"time"
)

// Locker は座席単位の排他的な仮押さえを表す
// 取得に失敗した呼び出し元は待たされず、即座に false を受け取る
type Locker interface {
	// TryClaim は座席が未確保、または userID 自身が確保済みの場合に成功する
	TryClaim(ctx context.Context, seatID, userID string, ttl time.Duration) (bool, error)

	// Release は userID が保持している場合のみ確保を解除する
	Release(ctx context.Context, seatID, userID string) error

	// Renew は userID が保持している場合のみ有効期限を延長する
	Renew(ctx context.Context, seatID, userID string, ttl time.Duration) (bool, error)

	// IsHeldBy は座席が userID によって確保されているかを返す
	IsHeldBy(ctx context.Context, seatID, userID string) (bool, error)
}

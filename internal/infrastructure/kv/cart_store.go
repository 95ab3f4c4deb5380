package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sanosuguru/go-seat-checkout/internal/domain/cart"
	"github.com/sanosuguru/go-seat-checkout/internal/domain/kvstore"
)

// CartStore はキーバリューストア上に JSON でカートを保存する
type CartStore struct {
	store kvstore.Store
}

// NewCartStore は新しい CartStore を作成する
func NewCartStore(store kvstore.Store) *CartStore {
	return &CartStore{store: store}
}

func cartKey(userID string) string {
	return fmt.Sprintf("cart:%s", userID)
}

// Get はユーザーのカートを返す。存在しない場合は cart.ErrCartNotFound
func (s *CartStore) Get(ctx context.Context, userID string) (*cart.Cart, error) {
	raw, ok, err := s.store.Get(ctx, cartKey(userID))
	if err != nil {
		return nil, fmt.Errorf("カートの取得に失敗: %w", err)
	}
	if !ok {
		return nil, cart.ErrCartNotFound
	}
	var c cart.Cart
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return nil, fmt.Errorf("カートの復元に失敗: %w", err)
	}
	return &c, nil
}

// Set はカートを有効期限付きで保存する
func (s *CartStore) Set(ctx context.Context, userID string, c *cart.Cart, ttl time.Duration) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("カートの変換に失敗: %w", err)
	}
	if err := s.store.Set(ctx, cartKey(userID), string(raw), ttl); err != nil {
		return fmt.Errorf("カートの保存に失敗: %w", err)
	}
	return nil
}

// Clear はカートを削除する
func (s *CartStore) Clear(ctx context.Context, userID string) error {
	if err := s.store.Delete(ctx, cartKey(userID)); err != nil {
		return fmt.Errorf("カートの削除に失敗: %w", err)
	}
	return nil
}

// TTL はカートの残り有効期間を返す
func (s *CartStore) TTL(ctx context.Context, userID string) (time.Duration, error) {
	return s.store.TTL(ctx, cartKey(userID))
}

package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sanosuguru/go-seat-checkout/internal/domain/kvstore"
)

// 現在値が ARGV[1] と一致する場合のみ ARGV[2] を保存する（ARGV[3] はミリ秒、0 は無期限）
var compareAndSetScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		if tonumber(ARGV[3]) > 0 then
			redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
		else
			redis.call("SET", KEYS[1], ARGV[2])
		end
		return 1
	else
		return 0
	end
`)

// キーが存在しなければ 1、現在値が ARGV[1] と一致すれば 2 を返して保存する（ARGV[2] はミリ秒）
var claimOrRenewScript = redis.NewScript(`
	local current = redis.call("GET", KEYS[1])
	local result = 0
	if current == false then
		result = 1
	elseif current == ARGV[1] then
		result = 2
	else
		return 0
	end
	if tonumber(ARGV[2]) > 0 then
		redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
	else
		redis.call("SET", KEYS[1], ARGV[1])
	end
	return result
`)

// 現在値が ARGV[1] と一致する場合のみ削除する
var compareAndDeleteScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

// Store は Redis を使用した kvstore.Store 実装
// 比較と更新は Lua スクリプトでアトミックに実行する
type Store struct {
	client *redis.Client
}

// NewStore は新しい Store を作成する
func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// Get はキーの値を取得する
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("値の取得に失敗: %w", err)
	}
	return val, true, nil
}

// Set は値を無条件に保存する
func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("値の保存に失敗: %w", err)
	}
	return nil
}

// CompareAndSet は現在値が old と一致する場合のみ new を保存する
func (s *Store) CompareAndSet(ctx context.Context, key, old, new string, ttl time.Duration) (bool, error) {
	if old == "" {
		// SetNX を使用して取得（キーが存在しない場合のみ設定）
		ok, err := s.client.SetNX(ctx, key, new, ttl).Result()
		if err != nil {
			return false, fmt.Errorf("値の確保に失敗: %w", err)
		}
		return ok, nil
	}

	result, err := compareAndSetScript.Run(ctx, s.client, []string{key}, old, new, ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("値の比較更新に失敗: %w", err)
	}
	return result == 1, nil
}

// ClaimOrRenew は未保存または同じ値の場合のみ value を保存する
func (s *Store) ClaimOrRenew(ctx context.Context, key, value string, ttl time.Duration) (kvstore.ClaimResult, error) {
	result, err := claimOrRenewScript.Run(ctx, s.client, []string{key}, value, ttl.Milliseconds()).Int()
	if err != nil {
		return kvstore.ClaimLost, fmt.Errorf("値の確保に失敗: %w", err)
	}
	switch result {
	case 1:
		return kvstore.ClaimAcquired, nil
	case 2:
		return kvstore.ClaimRenewed, nil
	}
	return kvstore.ClaimLost, nil
}

// CompareAndDelete は現在値が old と一致する場合のみキーを削除する
func (s *Store) CompareAndDelete(ctx context.Context, key, old string) (bool, error) {
	result, err := compareAndDeleteScript.Run(ctx, s.client, []string{key}, old).Int()
	if err != nil {
		return false, fmt.Errorf("値の比較削除に失敗: %w", err)
	}
	return result == 1, nil
}

// Delete はキーを削除する
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("値の削除に失敗: %w", err)
	}
	return nil
}

// TTL はキーの残り有効期間を返す
func (s *Store) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := s.client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("有効期間の取得に失敗: %w", err)
	}
	// キーが存在しない（-2）、または無期限（-1）
	if d < 0 {
		return 0, nil
	}
	return d, nil
}

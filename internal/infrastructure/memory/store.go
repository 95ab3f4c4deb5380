package memory

import (
	"context"
	"sync"
	"time"

	"github.com/sanosuguru/go-seat-checkout/internal/domain/kvstore"
)

type entry struct {
	value     string
	expiresAt time.Time // ゼロ値は無期限
}

// Store はプロセス内で完結する kvstore.Store 実装
// 単一プロセスでの開発・テスト用。期限切れのキーは参照時に削除する
type Store struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

// Option は Store の設定を変更する
type Option func(*Store)

// WithClock は現在時刻の取得方法を差し替える
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore は新しい Store を作成する
func NewStore(opts ...Option) *Store {
	s := &Store{
		entries: make(map[string]entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// lookup はロック取得済みの状態で呼び出すこと
func (s *Store) lookup(key string) (entry, bool) {
	e, ok := s.entries[key]
	if !ok {
		return entry{}, false
	}
	if !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
		delete(s.entries, key)
		return entry{}, false
	}
	return e, true
}

func (s *Store) put(key, value string, ttl time.Duration) {
	e := entry{value: value}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.entries[key] = e
}

// Get はキーの値を取得する
func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(key)
	return e.value, ok, nil
}

// Set は値を無条件に保存する
func (s *Store) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.put(key, value, ttl)
	return nil
}

// CompareAndSet は現在値が old と一致する場合のみ new を保存する
func (s *Store) CompareAndSet(_ context.Context, key, old, new string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(key)
	if old == "" {
		if ok {
			return false, nil
		}
	} else if !ok || e.value != old {
		return false, nil
	}
	s.put(key, new, ttl)
	return true, nil
}

// ClaimOrRenew は未保存または同じ値の場合のみ value を保存する
func (s *Store) ClaimOrRenew(_ context.Context, key, value string, ttl time.Duration) (kvstore.ClaimResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := kvstore.ClaimAcquired
	if e, ok := s.lookup(key); ok {
		if e.value != value {
			return kvstore.ClaimLost, nil
		}
		result = kvstore.ClaimRenewed
	}
	s.put(key, value, ttl)
	return result, nil
}

// CompareAndDelete は現在値が old と一致する場合のみキーを削除する
func (s *Store) CompareAndDelete(_ context.Context, key, old string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(key)
	if !ok || e.value != old {
		return false, nil
	}
	delete(s.entries, key)
	return true, nil
}

// Delete はキーを削除する
func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

// TTL はキーの残り有効期間を返す。無期限のキーは 0
func (s *Store) TTL(_ context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(key)
	if !ok || e.expiresAt.IsZero() {
		return 0, nil
	}
	return e.expiresAt.Sub(s.now()), nil
}

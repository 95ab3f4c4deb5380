package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// minLimiterIdle はリミッターを破棄するまでのアクセスのない期間の下限
const minLimiterIdle = 10 * time.Minute

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type userLimiters struct {
	mu        sync.Mutex
	entries   map[string]*limiterEntry
	limit     rate.Limit
	burst     int
	idle      time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// newUserLimiters はユーザーごとのリミッターを作成する
// 破棄までの期間はバケットが満杯に戻る時間以上とし、破棄しても制限が緩まないようにする
func newUserLimiters(perSecond float64, burst int, now func() time.Time) *userLimiters {
	idle := time.Duration(float64(burst) / perSecond * float64(time.Second))
	if idle < minLimiterIdle {
		idle = minLimiterIdle
	}
	return &userLimiters{
		entries:   make(map[string]*limiterEntry),
		limit:     rate.Limit(perSecond),
		burst:     burst,
		idle:      idle,
		lastSweep: now(),
		now:       now,
	}
}

func (u *userLimiters) get(userID string) *rate.Limiter {
	u.mu.Lock()
	defer u.mu.Unlock()

	now := u.now()
	if now.Sub(u.lastSweep) >= u.idle {
		u.sweep(now)
	}
	e, ok := u.entries[userID]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(u.limit, u.burst)}
		u.entries[userID] = e
	}
	e.lastSeen = now
	return e.limiter
}

// sweep はロック取得済みの状態で呼び出すこと
func (u *userLimiters) sweep(now time.Time) {
	for id, e := range u.entries {
		if now.Sub(e.lastSeen) >= u.idle {
			delete(u.entries, id)
		}
	}
	u.lastSweep = now
}

func (u *userLimiters) size() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.entries)
}

// UserRateLimit はユーザーごとにリクエスト頻度を制限するミドルウェア
// Identity の後段に置くこと。perSecond が0以下の場合は制限しない
// 長時間アクセスのないユーザーのリミッターは破棄する
func UserRateLimit(perSecond float64, burst int) echo.MiddlewareFunc {
	if perSecond <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	if burst <= 0 {
		burst = 1
	}
	limiters := newUserLimiters(perSecond, burst, time.Now)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := UserID(c)
			if key == "" {
				key = c.RealIP()
			}
			if !limiters.get(key).Allow() {
				return echo.NewHTTPError(http.StatusTooManyRequests, "リクエストが多すぎます")
			}
			return next(c)
		}
	}
}

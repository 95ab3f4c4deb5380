package notification

import (
	"context"
	"time"
)

// OrderCaptured は売上確定後に通知する内容
type OrderCaptured struct {
	OrderID    string    `json:"order_id"`
	UserID     string    `json:"user_id"`
	SeatIDs    []string  `json:"seat_ids"`
	Total      int       `json:"total"`
	CapturedAt time.Time `json:"captured_at"`
}

// Dispatcher は通知の送出先を表すインターフェース
// 売上確定に成功した後にのみ呼び出される
type Dispatcher interface {
	OrderCaptured(ctx context.Context, ev OrderCaptured) error
}

// Nop は何もしない Dispatcher
type Nop struct{}

func (Nop) OrderCaptured(context.Context, OrderCaptured) error { return nil }

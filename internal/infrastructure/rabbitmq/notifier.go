package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-seat-checkout/internal/domain/notification"
	"github.com/sanosuguru/go-seat-checkout/internal/pkg/logger"
)

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Notifier は購入完了通知を RabbitMQ のキューへ送る
type Notifier struct {
	mu    sync.Mutex
	conn  *amqp.Connection
	ch    channel
	queue string
}

// NewNotifier は接続を確立し、永続キューを宣言する
func NewNotifier(url, queue string) (*Notifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("RabbitMQへの接続に失敗: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("チャネルのオープンに失敗: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("キューの宣言に失敗: %w", err)
	}

	logger.Info("RabbitMQに接続しました", zap.String("queue", queue))
	return &Notifier{conn: conn, ch: ch, queue: queue}, nil
}

// OrderCaptured は売上確定の通知をデフォルトエクスチェンジ経由でキューへ送る
func (n *Notifier) OrderCaptured(ctx context.Context, ev notification.OrderCaptured) error {
	msg, err := publishing(ev)
	if err != nil {
		return err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if err := n.ch.PublishWithContext(ctx, "", n.queue, false, false, msg); err != nil {
		logger.Error("通知の送信に失敗",
			zap.String("order_id", ev.OrderID),
			zap.String("queue", n.queue),
			zap.Error(err),
		)
		return fmt.Errorf("通知の送信に失敗: %w", err)
	}
	return nil
}

// Close はチャネルと接続を閉じる
func (n *Notifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.ch != nil {
		_ = n.ch.Close()
	}
	if n.conn != nil {
		return n.conn.Close()
	}
	return nil
}

func publishing(ev notification.OrderCaptured) (amqp.Publishing, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("通知のシリアライズに失敗: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.OrderID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}, nil
}

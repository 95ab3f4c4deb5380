package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-seat-checkout/internal/domain/notification"
	"github.com/sanosuguru/go-seat-checkout/internal/pkg/logger"
)

// Notifier は購入完了通知を Kafka トピックへ送る
type Notifier struct {
	producer sarama.SyncProducer
	topic    string
}

// NewConfig は通知用の Producer 設定を返す
func NewConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Return.Successes = true
	return cfg
}

// NewNotifier はブローカーに接続して Notifier を作成する
func NewNotifier(brokers []string, topic string) (*Notifier, error) {
	producer, err := sarama.NewSyncProducer(brokers, NewConfig())
	if err != nil {
		return nil, fmt.Errorf("Kafka Producer の作成に失敗: %w", err)
	}
	logger.Info("Kafkaに接続しました", zap.Strings("brokers", brokers), zap.String("topic", topic))
	return NewNotifierWithProducer(producer, topic), nil
}

// NewNotifierWithProducer は既存の Producer から Notifier を作成する
func NewNotifierWithProducer(producer sarama.SyncProducer, topic string) *Notifier {
	return &Notifier{producer: producer, topic: topic}
}

// OrderCaptured は注文IDをキーとして通知を送る
// 同じ注文の通知は同じパーティションに入る
func (n *Notifier) OrderCaptured(ctx context.Context, ev notification.OrderCaptured) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("通知のシリアライズに失敗: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: n.topic,
		Key:   sarama.StringEncoder(ev.OrderID),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte("order.captured")},
		},
	}

	partition, offset, err := n.producer.SendMessage(msg)
	if err != nil {
		logger.Error("通知の送信に失敗",
			zap.String("order_id", ev.OrderID),
			zap.String("topic", n.topic),
			zap.Error(err),
		)
		return fmt.Errorf("通知の送信に失敗: %w", err)
	}

	logger.Debug("通知を送信しました",
		zap.String("order_id", ev.OrderID),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	)
	return nil
}

// Close は Producer を閉じる
func (n *Notifier) Close() error {
	return n.producer.Close()
}

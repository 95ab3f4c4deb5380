package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ServiceName は全ログに付与されるサービス名
const ServiceName = "seat-checkout"

var log *zap.Logger

func init() {
	log = NewLogger("development")
}

// NewLogger は環境に応じたロガーを作成する
// production では JSON、それ以外では色付きのコンソール出力
func NewLogger(env string, fields ...zap.Field) *zap.Logger {
	var config zap.Config
	if env == "production" {
		config = zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		var level zapcore.Level
		if err := level.UnmarshalText([]byte(lvl)); err == nil {
			config.Level = zap.NewAtomicLevelAt(level)
		}
	}

	logger, err := config.Build(zap.Fields(fields...))
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// Init は APP_ENV に応じたロガーをパッケージのロガーとして設定する
func Init(env string) *zap.Logger {
	log = NewLogger(env, zap.String("service", ServiceName), zap.String("env", env))
	return log
}

func Get() *zap.Logger {
	return log
}

func Set(l *zap.Logger) {
	log = l
}

// ForUser はユーザーIDを付与したロガーを返す
func ForUser(userID string) *zap.Logger {
	return log.With(zap.String("user_id", userID))
}

// ForOrder は注文IDとユーザーIDを付与したロガーを返す
func ForOrder(orderID, userID string) *zap.Logger {
	return log.With(zap.String("order_id", orderID), zap.String("user_id", userID))
}

func Info(msg string, fields ...zap.Field) {
	log.Info(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	log.Error(msg, fields...)
}

func Debug(msg string, fields ...zap.Field) {
	log.Debug(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	log.Warn(msg, fields...)
}

func Fatal(msg string, fields ...zap.Field) {
	log.Fatal(msg, fields...)
}

func With(fields ...zap.Field) *zap.Logger {
	return log.With(fields...)
}

func Sync() error {
	return log.Sync()
}

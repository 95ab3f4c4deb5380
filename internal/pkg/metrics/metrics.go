package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics はアプリケーションのメトリクスを管理する
type Metrics struct {
	// HTTPリクエストの総数（method, path, status_code）
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPリクエストのレイテンシ（method, path）
	HTTPRequestDuration *prometheus.HistogramVec

	// 座席ロックの取得試行数（result: claimed, renewed, lost, error）
	SeatClaimsTotal *prometheus.CounterVec

	// カート更新の結果（result: success, invalid, held, error）
	CartUpdatesTotal *prometheus.CounterVec

	// 購入処理の結果（status: captured, declined, integrity_error, error, refunded）
	CheckoutsTotal *prometheus.CounterVec

	// 座席ロックの操作時間（operation: claim/release/renew, status: success/failed）
	SeatLockDuration *prometheus.HistogramVec

	// ワーカーが解放した決済待ち注文の数
	StaleOrdersReclaimedTotal prometheus.Counter
}

// New は新しいMetricsインスタンスを作成し、デフォルトレジストリに登録する
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry は指定したレジストリにメトリクスを登録する
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		SeatClaimsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seat_claims_total",
				Help: "Total number of seat claim attempts",
			},
			[]string{"result"},
		),
		CartUpdatesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cart_updates_total",
				Help: "Total number of cart selection updates",
			},
			[]string{"result"},
		),
		CheckoutsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "checkouts_total",
				Help: "Total number of checkout and refund outcomes",
			},
			[]string{"status"},
		),
		SeatLockDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "seat_lock_duration_seconds",
				Help:    "Time spent on seat lock operations",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"operation", "status"},
		),
		StaleOrdersReclaimedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "stale_orders_reclaimed_total",
				Help: "Total number of stale pending orders released by the reclaimer",
			},
		),
	}

	// レジストリに登録
	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.SeatClaimsTotal,
		m.CartUpdatesTotal,
		m.CheckoutsTotal,
		m.SeatLockDuration,
		m.StaleOrdersReclaimedTotal,
	)

	return m
}

// ObserveSeatClaim は座席ロックの取得結果を記録する。m が nil の場合は何もしない
func (m *Metrics) ObserveSeatClaim(result string) {
	if m == nil {
		return
	}
	m.SeatClaimsTotal.WithLabelValues(result).Inc()
}

// ObserveCartUpdate はカート更新の結果を記録する
func (m *Metrics) ObserveCartUpdate(result string) {
	if m == nil {
		return
	}
	m.CartUpdatesTotal.WithLabelValues(result).Inc()
}

// ObserveCheckout は購入処理の結果を記録する
func (m *Metrics) ObserveCheckout(status string) {
	if m == nil {
		return
	}
	m.CheckoutsTotal.WithLabelValues(status).Inc()
}

// ObserveSeatLock は座席ロック操作の所要時間を記録する
func (m *Metrics) ObserveSeatLock(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failed"
	}
	m.SeatLockDuration.WithLabelValues(operation, status).Observe(time.Since(start).Seconds())
}

// AddStaleOrdersReclaimed は解放した決済待ち注文の数を加算する
func (m *Metrics) AddStaleOrdersReclaimed(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.StaleOrdersReclaimedTotal.Add(float64(n))
}

// デフォルトのメトリクスインスタンス
var defaultMetrics *Metrics

// Init はデフォルトのメトリクスインスタンスを初期化する
func Init() *Metrics {
	defaultMetrics = New()
	return defaultMetrics
}

// Get はデフォルトのメトリクスインスタンスを返す
func Get() *Metrics {
	return defaultMetrics
}

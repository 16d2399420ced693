// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 貸出・返却サービスとミドルウェア、ワーカーから利用する。
type MetricsCollector interface {
	RecordBorrowSuccess()
	RecordBorrowRejected(reason string)
	RecordReturnSuccess()
	RecordReturnRejected(reason string)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	SetOverdueLoans(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	borrowSuccess  prometheus.Counter
	borrowRejected *prometheus.CounterVec
	returnSuccess  prometheus.Counter
	returnRejected *prometheus.CounterVec
	httpStatus     *prometheus.CounterVec
	requestLatency prometheus.Histogram
	overdueLoans   prometheus.Gauge
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		borrowSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lendman_borrow_success_total",
			Help: "貸出成立の合計数",
		}),
		borrowRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lendman_borrow_rejected_total",
			Help: "貸出拒否の理由別合計数",
		}, []string{"reason"}),
		returnSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lendman_return_success_total",
			Help: "返却成立の合計数",
		}),
		returnRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lendman_return_rejected_total",
			Help: "返却拒否の理由別合計数",
		}, []string{"reason"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lendman_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "lendman_request_duration_seconds",
			Help:    "HTTPリクエスト処理のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		overdueLoans: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lendman_overdue_loans",
			Help: "現在延滞中の貸出数（ワーカーが定期更新）",
		}),
	}

	reg.MustRegister(
		c.borrowSuccess,
		c.borrowRejected,
		c.returnSuccess,
		c.returnRejected,
		c.httpStatus,
		c.requestLatency,
		c.overdueLoans,
	)

	return c
}

// RecordBorrowSuccess は貸出成立を記録する。
func (c *Collector) RecordBorrowSuccess() {
	c.borrowSuccess.Inc()
}

// RecordBorrowRejected は貸出拒否を理由付きで記録する。
// reasonにはAPIErrorのコード（NO_COPIES_AVAILABLE等）を渡す。
func (c *Collector) RecordBorrowRejected(reason string) {
	c.borrowRejected.WithLabelValues(reason).Inc()
}

// RecordReturnSuccess は返却成立を記録する。
func (c *Collector) RecordReturnSuccess() {
	c.returnSuccess.Inc()
}

// RecordReturnRejected は返却拒否を理由付きで記録する。
func (c *Collector) RecordReturnRejected(reason string) {
	c.returnRejected.WithLabelValues(reason).Inc()
}

// RecordHTTPStatus はレスポンスのステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエスト処理のレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// SetOverdueLoans は現在の延滞貸出数を設定する。
func (c *Collector) SetOverdueLoans(count int) {
	c.overdueLoans.Set(float64(count))
}

// Handler はメトリクス公開用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)

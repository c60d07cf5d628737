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
// ハンドラーやサービス層から利用する。
type MetricsCollector interface {
	RecordLogin(provider string)
	RecordProgressSave()
	RecordStreakComputation(duration time.Duration)
	RecordLinkConflictReconciled()
	RecordBackendStatus(statusCode int)
	RecordBackendLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	logins         *prometheus.CounterVec
	progressSaves  prometheus.Counter
	streakLatency  prometheus.Histogram
	linkConflicts  prometheus.Counter
	backendStatus  *prometheus.CounterVec
	backendLatency prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "biolog_logins_total",
			Help: "OAuthログイン成功の合計数（プロバイダー別）",
		}, []string{"provider"}),
		progressSaves: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "biolog_progress_saves_total",
			Help: "進捗エントリ保存成功の合計数",
		}),
		streakLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "biolog_streak_computation_seconds",
			Help:    "ストリーク集計のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		linkConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "biolog_link_conflicts_reconciled_total",
			Help: "重複検出によりreconcileされた関連作成の合計数",
		}),
		backendStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "biolog_backend_status_total",
			Help: "永続化サービスのHTTPステータスコード別レスポンス数",
		}, []string{"status_code"}),
		backendLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "biolog_backend_latency_seconds",
			Help:    "永続化サービス呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.logins,
		c.progressSaves,
		c.streakLatency,
		c.linkConflicts,
		c.backendStatus,
		c.backendLatency,
	)

	return c
}

// RecordLogin はOAuthログイン成功を記録する。
func (c *Collector) RecordLogin(provider string) {
	c.logins.WithLabelValues(provider).Inc()
}

// RecordProgressSave は進捗エントリの保存成功を記録する。
func (c *Collector) RecordProgressSave() {
	c.progressSaves.Inc()
}

// RecordStreakComputation はストリーク集計のレイテンシを記録する。
func (c *Collector) RecordStreakComputation(duration time.Duration) {
	c.streakLatency.Observe(duration.Seconds())
}

// RecordLinkConflictReconciled は重複検出によるreconciliationを記録する。
func (c *Collector) RecordLinkConflictReconciled() {
	c.linkConflicts.Inc()
}

// RecordBackendStatus は永続化サービスのHTTPステータスコードを記録する。
func (c *Collector) RecordBackendStatus(statusCode int) {
	c.backendStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordBackendLatency は永続化サービス呼び出しのレイテンシを記録する。
func (c *Collector) RecordBackendLatency(duration time.Duration) {
	c.backendLatency.Observe(duration.Seconds())
}

// InstrumentTransport は永続化サービス呼び出しのステータスとレイテンシを
// 記録するhttp.RoundTripperを返す。backend.Clientに渡すhttp.Clientの
// Transportとして使用する。
func (c *Collector) InstrumentTransport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &instrumentedTransport{base: base, collector: c}
}

// instrumentedTransport は永続化サービス呼び出しを計測するRoundTripper。
type instrumentedTransport struct {
	base      http.RoundTripper
	collector *Collector
}

func (t *instrumentedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	t.collector.RecordBackendLatency(time.Since(start))
	if err == nil {
		t.collector.RecordBackendStatus(resp.StatusCode)
	}
	return resp, err
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

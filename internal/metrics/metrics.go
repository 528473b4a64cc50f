// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "assigndesk"

// MetricsCollector はメトリクス収集のインターフェース。
// リポジトリ・フィード取り込み・デスク操作・HTTPミドルウェアから利用する。
type MetricsCollector interface {
	RecordBlobOperation(op, outcome string, duration time.Duration)
	RecordDegradedWrite(op string)
	RecordFeedFetch(outcome string, duration time.Duration)
	RecordFeedItems(outcome string, count int)
	RecordMutation(action, outcome string)
	RecordHTTPRequest(method, route string, status int, duration time.Duration)
	RecordRateLimited(limitType string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	blobOps        *prometheus.CounterVec
	blobLatency    *prometheus.HistogramVec
	degradedWrites *prometheus.CounterVec
	feedFetches    *prometheus.CounterVec
	feedLatency    prometheus.Histogram
	feedItems      *prometheus.CounterVec
	mutations      *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
	httpLatency    *prometheus.HistogramVec
	rateLimited    *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		blobOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blob_operations_total",
			Help:      "ブロブストア操作の合計数（操作種別・結果別）",
		}, []string{"op", "outcome"}),
		blobLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "blob_operation_duration_seconds",
			Help:      "ブロブストア操作のレイテンシ（秒）",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		degradedWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "degraded_writes_total",
			Help:      "寛容モードで保存できずに続行した回数",
		}, []string{"op"}),
		feedFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_fetch_total",
			Help:      "外部フィード取得の合計数（結果別）",
		}, []string{"outcome"}),
		feedLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "feed_fetch_duration_seconds",
			Help:      "外部フィード取得のレイテンシ（秒）",
			Buckets:   prometheus.DefBuckets,
		}),
		feedItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_items_total",
			Help:      "フィード記事の判定結果別の合計数",
		}, []string{"outcome"}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_mutations_total",
			Help:      "イベント変更操作の合計数（操作・結果別）",
		}, []string{"action", "outcome"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTPリクエスト数（メソッド・ルート・ステータスコード別）",
		}, []string{"method", "route", "status_code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTPリクエストの処理時間（秒）",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "レート制限で拒否したリクエスト数",
		}, []string{"limit_type"}),
	}

	reg.MustRegister(
		c.blobOps,
		c.blobLatency,
		c.degradedWrites,
		c.feedFetches,
		c.feedLatency,
		c.feedItems,
		c.mutations,
		c.httpRequests,
		c.httpLatency,
		c.rateLimited,
	)

	return c
}

// RecordBlobOperation はブロブストア操作の結果とレイテンシを記録する。
func (c *Collector) RecordBlobOperation(op, outcome string, duration time.Duration) {
	c.blobOps.WithLabelValues(op, outcome).Inc()
	c.blobLatency.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordDegradedWrite は寛容モードでの保存失敗を記録する。
func (c *Collector) RecordDegradedWrite(op string) {
	c.degradedWrites.WithLabelValues(op).Inc()
}

// RecordFeedFetch はフィード取得の結果とレイテンシを記録する。
func (c *Collector) RecordFeedFetch(outcome string, duration time.Duration) {
	c.feedFetches.WithLabelValues(outcome).Inc()
	c.feedLatency.Observe(duration.Seconds())
}

// RecordFeedItems は判定結果ごとの記事数を記録する。
func (c *Collector) RecordFeedItems(outcome string, count int) {
	if count <= 0 {
		return
	}
	c.feedItems.WithLabelValues(outcome).Add(float64(count))
}

// RecordMutation はイベント変更操作の結果を記録する。
func (c *Collector) RecordMutation(action, outcome string) {
	c.mutations.WithLabelValues(action, outcome).Inc()
}

// RecordHTTPRequest はHTTPリクエストのステータスコードと処理時間を記録する。
func (c *Collector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpLatency.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordRateLimited はレート制限による拒否を記録する。
func (c *Collector) RecordRateLimited(limitType string) {
	c.rateLimited.WithLabelValues(limitType).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

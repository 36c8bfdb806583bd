// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 結果ラベルの値
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultHit     = "hit"
	ResultMiss    = "miss"
	ResultError   = "error"
)

// 連携操作ラベルの値
const (
	ActionConnect    = "connect"
	ActionDisconnect = "disconnect"
)

// Collector はPrometheusメトリクスを収集する実装。
// 各サービスは自パッケージで定義した狭いRecorderインターフェース経由で利用する。
type Collector struct {
	login         *prometheus.CounterVec
	registration  *prometheus.CounterVec
	socialLink    *prometheus.CounterVec
	sync          *prometheus.CounterVec
	syncLatency   prometheus.Histogram
	mediaUpserted prometheus.Counter
	cacheRequests *prometheus.CounterVec
	httpStatus    *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		login: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "socialsynchub_login_total",
			Help: "ログイン試行の結果別件数",
		}, []string{"result"}),
		registration: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "socialsynchub_registration_total",
			Help: "ユーザー登録の結果別件数",
		}, []string{"result"}),
		socialLink: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "socialsynchub_social_link_total",
			Help: "ネットワーク別の連携・連携解除の件数",
		}, []string{"network", "action"}),
		sync: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "socialsynchub_sync_total",
			Help: "メディア同期の結果別件数",
		}, []string{"result"}),
		syncLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "socialsynchub_sync_latency_seconds",
			Help:    "メディア同期1回あたりの所要時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		mediaUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "socialsynchub_media_upserted_total",
			Help: "アップサートされたメディアの合計数",
		}),
		cacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "socialsynchub_cache_requests_total",
			Help: "キャッシュ参照の結果別件数",
		}, []string{"result"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "socialsynchub_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.login,
		c.registration,
		c.socialLink,
		c.sync,
		c.syncLatency,
		c.mediaUpserted,
		c.cacheRequests,
		c.httpStatus,
	)

	return c
}

// RecordLogin はログイン試行の結果を記録する。
func (c *Collector) RecordLogin(result string) {
	c.login.WithLabelValues(result).Inc()
}

// RecordRegistration はユーザー登録の結果を記録する。
func (c *Collector) RecordRegistration(result string) {
	c.registration.WithLabelValues(result).Inc()
}

// RecordSocialLink は連携状態の遷移を記録する。
func (c *Collector) RecordSocialLink(network, action string) {
	c.socialLink.WithLabelValues(network, action).Inc()
}

// RecordSync はメディア同期の結果と所要時間を記録する。
func (c *Collector) RecordSync(result string, duration time.Duration) {
	c.sync.WithLabelValues(result).Inc()
	c.syncLatency.Observe(duration.Seconds())
}

// RecordMediaUpserted はアップサートされたメディア数を記録する。
func (c *Collector) RecordMediaUpserted(count int) {
	c.mediaUpserted.Add(float64(count))
}

// RecordCacheRequest はキャッシュ参照の結果を記録する。
func (c *Collector) RecordCacheRequest(result string) {
	c.cacheRequests.WithLabelValues(result).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hitoshi/wordsync/internal/model"
)

// Recorder は同期処理のメトリクス記録のインターフェース。
// syncerから利用し、テスト時はモックに差し替える。
type Recorder interface {
	RecordSubmission(platform model.PlatformID, kind model.ErrorKind)
	RecordProbe(platform model.PlatformID, authenticated bool)
	RecordAttachment(status model.AttachStatus)
	ObserveRemoteCall(platform model.PlatformID, op string, statusCode int, duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
// platform.CallObserverも満たし、各プラットフォームクライアントから呼び出し結果を受け取る。
type Collector struct {
	submissions   *prometheus.CounterVec
	probes        *prometheus.CounterVec
	attachments   *prometheus.CounterVec
	remoteCalls   *prometheus.CounterVec
	remoteLatency *prometheus.HistogramVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wordsync_submissions_total",
			Help: "プラットフォーム別・結果別の単語送信数",
		}, []string{"platform", "result"}),
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wordsync_auth_probes_total",
			Help: "プラットフォーム別の認証確認数",
		}, []string{"platform", "authenticated"}),
		attachments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wordsync_sentence_attachments_total",
			Help: "結果別の例文追加数（単語単位）",
		}, []string{"status"}),
		remoteCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wordsync_remote_calls_total",
			Help: "プラットフォームAPI呼び出し数（ステータスコード別、0は通信失敗）",
		}, []string{"platform", "op", "status_code"}),
		remoteLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wordsync_remote_call_latency_seconds",
			Help:    "プラットフォームAPI呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"platform", "op"}),
	}

	reg.MustRegister(
		c.submissions,
		c.probes,
		c.attachments,
		c.remoteCalls,
		c.remoteLatency,
	)

	return c
}

// RecordSubmission は単語送信の結果を記録する。kindがKindNoneなら成功。
func (c *Collector) RecordSubmission(platform model.PlatformID, kind model.ErrorKind) {
	result := "success"
	if kind != model.KindNone {
		result = string(kind)
	}
	c.submissions.WithLabelValues(string(platform), result).Inc()
}

// RecordProbe は認証確認の結果を記録する。
func (c *Collector) RecordProbe(platform model.PlatformID, authenticated bool) {
	c.probes.WithLabelValues(string(platform), strconv.FormatBool(authenticated)).Inc()
}

// RecordAttachment は例文追加の単語ごとの結果を記録する。
func (c *Collector) RecordAttachment(status model.AttachStatus) {
	c.attachments.WithLabelValues(string(status)).Inc()
}

// ObserveRemoteCall はプラットフォームAPI呼び出しのステータスとレイテンシを記録する。
func (c *Collector) ObserveRemoteCall(platform model.PlatformID, op string, statusCode int, duration time.Duration) {
	c.remoteCalls.WithLabelValues(string(platform), op, strconv.Itoa(statusCode)).Inc()
	c.remoteLatency.WithLabelValues(string(platform), op).Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

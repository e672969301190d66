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
// ミドルウェア、サービス層、ワーカーから利用する。
type MetricsCollector interface {
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	RecordMutation(entity, op string)
	RecordGrade(quality int)
	RecordMemberCountChange(direction string)
	RecordOrphansRemoved(count int64)
	SetActiveStudySessions(n int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpStatus     *prometheus.CounterVec
	requestLatency prometheus.Histogram
	mutations      *prometheus.CounterVec
	grades         *prometheus.CounterVec
	memberCount    *prometheus.CounterVec
	orphansRemoved prometheus.Counter
	studySessions  prometheus.Gauge
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blossom_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "blossom_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blossom_mutations_total",
			Help: "デッキ・カードの作成/更新/削除の合計数",
		}, []string{"entity", "op"}),
		grades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blossom_study_grades_total",
			Help: "自己評価値別の採点数",
		}, []string{"quality"}),
		memberCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blossom_team_member_changes_total",
			Help: "公開チームのメンバー数増減の合計数",
		}, []string{"direction"}),
		orphansRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blossom_orphan_cards_removed_total",
			Help: "掃除ジョブが削除した孤立カードの合計数",
		}),
		studySessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "blossom_study_sessions_active",
			Help: "進行中の学習セッション数",
		}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.requestLatency,
		c.mutations,
		c.grades,
		c.memberCount,
		c.orphansRemoved,
		c.studySessions,
	)

	return c
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストの処理時間を記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// RecordMutation はエンティティ（deck/card）の変更操作を記録する。
func (c *Collector) RecordMutation(entity, op string) {
	c.mutations.WithLabelValues(entity, op).Inc()
}

// RecordGrade は採点を記録する。
func (c *Collector) RecordGrade(quality int) {
	c.grades.WithLabelValues(strconv.Itoa(quality)).Inc()
}

// RecordMemberCountChange はメンバー数の増減（up/down）を記録する。
func (c *Collector) RecordMemberCountChange(direction string) {
	c.memberCount.WithLabelValues(direction).Inc()
}

// RecordOrphansRemoved は削除した孤立カード数を記録する。
func (c *Collector) RecordOrphansRemoved(count int64) {
	c.orphansRemoved.Add(float64(count))
}

// SetActiveStudySessions は進行中の学習セッション数を設定する。
func (c *Collector) SetActiveStudySessions(n int) {
	c.studySessions.Set(float64(n))
}

// NopCollector は何も記録しないMetricsCollector。
// メトリクス不要なサブコマンドとテストで使用する。
type NopCollector struct{}

func (NopCollector) RecordHTTPStatus(int)               {}
func (NopCollector) RecordRequestLatency(time.Duration) {}
func (NopCollector) RecordMutation(string, string)      {}
func (NopCollector) RecordGrade(int)                    {}
func (NopCollector) RecordMemberCountChange(string)     {}
func (NopCollector) RecordOrphansRemoved(int64)         {}
func (NopCollector) SetActiveStudySessions(int)         {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = NopCollector{}
)

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Package metrics Prometheus 指标导出
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"agents-workflow/internal/shared/storage"
)

// Metrics 包含所有 API Server 指标
type Metrics struct {
	// 文档存储指标
	DocumentOpsTotal  *prometheus.CounterVec
	DocumentOpLatency *prometheus.HistogramVec

	// 输出重建指标
	OutputReconstructions *prometheus.CounterVec

	// 任务响应指标
	TaskResponsesTotal *prometheus.CounterVec

	// 渲染缓存指标
	RenderCacheTotal *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

var _ storage.OpObserver = (*Metrics)(nil)

// NewMetrics 在 reg 上注册指标；reg 为 nil 时使用新的独立 Registry
func NewMetrics(namespace string, reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		DocumentOpsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "documents_ops_total",
				Help:      "Total document store operations",
			},
			[]string{"backend", "collection", "op", "status"},
		),
		DocumentOpLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "documents_op_duration_seconds",
				Help:      "Document store operation latency in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"backend", "op"},
		),
		OutputReconstructions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "output_reconstructions_total",
				Help:      "Stored task content reconstructions by kind and result",
			},
			[]string{"kind", "result"},
		),
		TaskResponsesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "task_responses_total",
				Help:      "Task responses saved by status",
			},
			[]string{"status"},
		),
		RenderCacheTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "render_cache_total",
				Help:      "Render cache lookups by result",
			},
			[]string{"result"},
		),
		gatherer: reg,
	}
}

// ObserveDocumentOp 记录一次文档存储操作
func (m *Metrics) ObserveDocumentOp(backend, collection, op string, d time.Duration, err error) {
	status := "ok"
	switch {
	case errors.Is(err, storage.ErrNotFound):
		status = "not_found"
	case err != nil:
		status = "error"
	}
	m.DocumentOpsTotal.WithLabelValues(backend, collection, op, status).Inc()
	m.DocumentOpLatency.WithLabelValues(backend, op).Observe(d.Seconds())
}

// RecordReconstruction 记录输出重建结果（result: ok / fallback）
func (m *Metrics) RecordReconstruction(kind string, fallback bool) {
	result := "ok"
	if fallback {
		result = "fallback"
	}
	if kind == "" {
		kind = "none"
	}
	m.OutputReconstructions.WithLabelValues(kind, result).Inc()
}

// RecordTaskResponse 记录保存的任务响应
func (m *Metrics) RecordTaskResponse(status string) {
	m.TaskResponsesTotal.WithLabelValues(status).Inc()
}

// RecordRenderCache 记录渲染缓存查询（result: hit / miss / error）
func (m *Metrics) RecordRenderCache(result string) {
	m.RenderCacheTotal.WithLabelValues(result).Inc()
}

// Handler 返回 Prometheus 指标 HTTP Handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

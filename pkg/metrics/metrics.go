// Package metrics 提供基于Prometheus的指标收集
//
// 可观测性三支柱之一（Tracing、Metrics、Logging）：
// - **Tracing（追踪）**: 回答"为什么慢？"（pkg/tracing）
// - **Metrics（指标）**: 回答"有多少？多快？"（本模块）
// - **Logging（日志）**: 回答"发生了什么？"（pkg/logger）
//
// 指标类型选择：
// - 计数用Counter：消息数、分配数、失败数（只增不减，以_total结尾）
// - 分布用Histogram：消息处理耗时（自动计算P50、P90、P99）
// - 瞬时值用Gauge：正在处理的请求数
//
// 使用方式：
// 1. 指标通过promauto在包加载时自动注册到默认Registry
// 2. HTTP服务挂载 /metrics 端点（promhttp.Handler()）供Prometheus抓取
// 3. 标签只用低基数维度（消息类型、状态），不要用order_id这类高基数值
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// 消息总线指标

	// MessagesHandledTotal 处理过的消息总数
	// 标签：type（消息类型名）、kind（command/event）、status（ok/error）
	MessagesHandledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "allocation_messages_handled_total",
		Help: "消息总线处理过的消息总数",
	}, []string{"type", "kind", "status"})

	// EventHandlerFailures 被隔离的事件处理失败次数
	// 事件处理失败不会中断调度循环，只计数并记日志
	EventHandlerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "allocation_event_handler_failures_total",
		Help: "事件处理器失败次数(已隔离,不影响调度)",
	}, []string{"type"})

	// DispatchDuration 一次外部调用的完整调度耗时（含级联事件）
	DispatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "allocation_dispatch_duration_seconds",
		Help:    "消息总线一次完整调度的耗时",
		Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5},
	})

	// 业务指标

	// AllocationsTotal 成功分配的订单行总数
	AllocationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "allocation_lines_allocated_total",
		Help: "成功分配的订单行总数",
	})

	// OutOfStockTotal 缺货事件总数
	OutOfStockTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "allocation_out_of_stock_total",
		Help: "缺货事件总数",
	})

	// HTTP指标

	// HTTPRequestsTotal HTTP请求总数
	// 标签：method（GET/POST）、path（注册的路由模板）、status（HTTP状态码）
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "allocation_http_requests_total",
		Help: "HTTP请求总数",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration HTTP请求耗时
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "allocation_http_request_duration_seconds",
		Help:    "HTTP请求耗时",
		Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10},
	}, []string{"method", "path"})

	// HTTPRequestsInProgress 正在处理的HTTP请求数
	HTTPRequestsInProgress = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "allocation_http_requests_in_progress",
		Help: "正在处理的HTTP请求数",
	})
)

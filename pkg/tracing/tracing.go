// Package tracing 提供基于OpenTelemetry的分布式追踪
//
// 核心概念：
// 1. **Trace（追踪）**：一次外部请求的完整链路，包含多个Span
// 2. **Span（跨度）**：一个操作单元（如"处理一条消息"），记录耗时与状态
// 3. **SpanContext**：跨服务传递的TraceID/SpanID，用于把链路串起来
//
// 本服务的埋点位置：
// - HTTP层：gin中间件为每个请求开根Span（otelgin可做，这里手工最简）
// - 消息总线：每投递一条消息开一个子Span，级联事件天然形成调用树
//   (一次Allocate请求的Span树能直接看出触发了哪些级联事件)
//
// 导出：OTLP gRPC协议发送到collector（如Jaeger、Tempo）
package tracing

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// InitTracer 初始化全局TracerProvider
//
// 参数：
//
//	serviceName: 服务名（显示在追踪系统的服务列表中）
//	collectorURL: OTLP collector地址（如 localhost:4317）
//
// 返回关闭函数，进程退出前调用以刷出未导出的Span
func InitTracer(serviceName, collectorURL string) (func(context.Context) error, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 1. 创建OTLP gRPC导出器
	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(collectorURL),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("创建OTLP导出器失败: %w", err)
	}

	// 2. 描述本服务的resource属性
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("创建resource失败: %w", err)
	}

	// 3. 创建TracerProvider（批量导出，降低开销）
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	// 4. 设置为全局Provider，并配置W3C TraceContext传播
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp.Shutdown, nil
}

// StartSpan 开启一个Span
// 用法：
//
//	ctx, span := tracing.StartSpan(ctx, "messagebus", "handle Allocate")
//	defer span.End()
func StartSpan(ctx context.Context, tracerName, spanName string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, spanName)
}

// ExtractTraceID 从context提取TraceID（没有有效Span时返回空串）
// 用途：写进日志字段，实现日志与追踪的关联查询
func ExtractTraceID(ctx context.Context) string {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return ""
	}
	return spanCtx.TraceID().String()
}

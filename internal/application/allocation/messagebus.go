package allocation

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"go.uber.org/zap"

	"github.com/xiebiao/allocation/internal/domain/allocation"
	apperrors "github.com/xiebiao/allocation/pkg/errors"
	"github.com/xiebiao/allocation/pkg/metrics"
	"github.com/xiebiao/allocation/pkg/tracing"
)

// CommandHandler 命令处理函数(类型擦除后的统一签名)
type CommandHandler func(ctx context.Context, cmd allocation.Command, uow UnitOfWork) (interface{}, error)

// EventHandler 事件处理函数(类型擦除后的统一签名)
type EventHandler func(ctx context.Context, event allocation.Event, uow UnitOfWork) error

// Bus 消息总线
// 教学要点:
// 1. 命令→唯一处理器:处理失败立即中止循环,error抛给外部调用方("硬失败")
// 2. 事件→0..n个处理器,按注册顺序调用:单个失败被捕获记日志,
//    既不影响同一事件的后续处理器,也不影响队列里剩余的消息("尽力而为")
// 3. FIFO队列:每次处理器调用后,从工作单元收集到的新事件追加到队尾,
//    级联按广度优先推进,直到队列清空
// 4. 单线程协作式调度:一次Handle调用内没有并发,顺序完全确定
// 5. 路由表在NewBus构造时一次建好,之后只读——扩展靠加注册行,不改调度逻辑
type Bus struct {
	commandHandlers map[reflect.Type]CommandHandler
	eventHandlers   map[reflect.Type][]EventHandler
	logger          *zap.Logger
}

// NewBus 创建消息总线并注册全部处理器
// 注册顺序即事件处理器的调用顺序,勿随意调整
func NewBus(h *Handlers, logger *zap.Logger) *Bus {
	b := &Bus{
		commandHandlers: make(map[reflect.Type]CommandHandler),
		eventHandlers:   make(map[reflect.Type][]EventHandler),
		logger:          logger,
	}

	// 命令:每种类型恰好一个处理器
	registerCommand(b, h.AddBatch)
	registerCommand(b, h.Allocate)
	registerCommand(b, h.ChangeBatchQuantity)

	// 事件:0..n个处理器,按注册顺序调用
	registerEvent(b, h.PublishAllocated)
	registerEvent(b, h.AddAllocationToReadModel)
	registerEvent(b, h.RemoveAllocationFromReadModel)
	registerEvent(b, h.Reallocate)
	registerEvent(b, h.SendOutOfStockNotification)

	return b
}

// Handle 消息总线入口:投递一条消息并排空由此产生的全部级联消息
//
// 返回值是本次调用中所有命令处理器产出的非nil结果
// (如Allocate命令返回选中的批次引用号);事件处理器的结果一律丢弃
func (b *Bus) Handle(ctx context.Context, msg allocation.Message, uow UnitOfWork) ([]interface{}, error) {
	start := time.Now()
	defer func() {
		metrics.DispatchDuration.Observe(time.Since(start).Seconds())
	}()

	queue := []allocation.Message{msg}
	var results []interface{}

	for len(queue) > 0 {
		m := queue[0]
		queue = queue[1:]

		switch m := m.(type) {
		case allocation.Command:
			result, err := b.handleCommand(ctx, m, uow)
			if err != nil {
				// 命令失败是"硬失败":中止整个循环,error原样抛给调用方
				return results, err
			}
			if result != nil {
				results = append(results, result)
			}
			queue = append(queue, uow.CollectNewEvents()...)

		case allocation.Event:
			queue = b.handleEvent(ctx, m, uow, queue)

		default:
			return results, apperrors.Newf(apperrors.ErrCodeInternal, "未知的消息类型: %T", m)
		}
	}

	return results, nil
}

// handleCommand 调度单个命令到它唯一的处理器
func (b *Bus) handleCommand(ctx context.Context, cmd allocation.Command, uow UnitOfWork) (interface{}, error) {
	typeName := messageTypeName(cmd)
	ctx, span := tracing.StartSpan(ctx, "messagebus", "command "+typeName)
	defer span.End()

	handler, ok := b.commandHandlers[reflect.TypeOf(cmd)]
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrCodeInternal, "命令没有注册处理器: %s", typeName)
	}

	b.logger.Debug("处理命令", zap.String("command", typeName))
	result, err := handler(ctx, cmd, uow)
	if err != nil {
		metrics.MessagesHandledTotal.WithLabelValues(typeName, "command", "error").Inc()
		b.logger.Error("命令处理失败",
			zap.String("command", typeName),
			zap.String("trace_id", tracing.ExtractTraceID(ctx)),
			zap.Error(err),
		)
		return nil, err
	}

	metrics.MessagesHandledTotal.WithLabelValues(typeName, "command", "ok").Inc()
	return result, nil
}

// handleEvent 把事件扇出给全部处理器,返回追加了新事件的队列
// 每个处理器成功后立刻收集它产生的新事件(失败的处理器不可能留下新事件)
func (b *Bus) handleEvent(ctx context.Context, event allocation.Event, uow UnitOfWork, queue []allocation.Message) []allocation.Message {
	typeName := messageTypeName(event)
	ctx, span := tracing.StartSpan(ctx, "messagebus", "event "+typeName)
	defer span.End()

	for _, handler := range b.eventHandlers[reflect.TypeOf(event)] {
		b.logger.Debug("处理事件", zap.String("event", typeName))
		if err := handler(ctx, event, uow); err != nil {
			// 事件处理失败被隔离:记日志、计数,继续处理
			metrics.EventHandlerFailures.WithLabelValues(typeName).Inc()
			b.logger.Error("事件处理失败(已隔离)",
				zap.String("event", typeName),
				zap.String("trace_id", tracing.ExtractTraceID(ctx)),
				zap.Error(err),
			)
			continue
		}
		queue = append(queue, uow.CollectNewEvents()...)
	}

	metrics.MessagesHandledTotal.WithLabelValues(typeName, "event", "ok").Inc()
	b.recordBusinessMetrics(event)
	return queue
}

// recordBusinessMetrics 按事件类型记录业务指标
func (b *Bus) recordBusinessMetrics(event allocation.Event) {
	switch event.(type) {
	case allocation.Allocated:
		metrics.AllocationsTotal.Inc()
	case allocation.OutOfStock:
		metrics.OutOfStockTotal.Inc()
	}
}

// messageTypeName 消息类型的短名(去掉包路径,用于日志与指标标签)
func messageTypeName(m allocation.Message) string {
	t := reflect.TypeOf(m)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// registerCommand 注册命令处理器(每种命令类型只允许一个)
// 教学要点:泛型适配器把强类型的处理方法适配成统一签名,
// 调度时再按具体类型断言回来,省掉每个处理器手写switch
func registerCommand[C allocation.Command](b *Bus, fn func(context.Context, C, UnitOfWork) (interface{}, error)) {
	var zero C
	t := reflect.TypeOf(zero)
	if _, exists := b.commandHandlers[t]; exists {
		panic(fmt.Sprintf("命令 %s 重复注册处理器", t.Name()))
	}
	b.commandHandlers[t] = func(ctx context.Context, cmd allocation.Command, uow UnitOfWork) (interface{}, error) {
		return fn(ctx, cmd.(C), uow)
	}
}

// registerEvent 追加事件处理器(同一事件可注册多个)
func registerEvent[E allocation.Event](b *Bus, fn func(context.Context, E, UnitOfWork) error) {
	var zero E
	t := reflect.TypeOf(zero)
	b.eventHandlers[t] = append(b.eventHandlers[t], func(ctx context.Context, event allocation.Event, uow UnitOfWork) error {
		return fn(ctx, event.(E), uow)
	})
}

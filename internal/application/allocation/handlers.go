package allocation

import (
	"context"
	"errors"
	"fmt"

	"github.com/xiebiao/allocation/internal/domain/allocation"
	apperrors "github.com/xiebiao/allocation/pkg/errors"
)

// Redis Pub/Sub频道名(与外部服务的约定,勿改动)
const (
	// ChannelLineAllocated 分配事件的对外发布频道
	ChannelLineAllocated = "line_allocated"

	// ChannelChangeBatchQuantity 批次数量调整指令的订阅频道
	// 采购系统在供应商短缺时向这个频道发消息
	ChannelChangeBatchQuantity = "change_batch_quantity"
)

// =========================================
// 外部协作方接口
// =========================================
// 教学要点:
// 核心只依赖这些接口,具体实现(RabbitMQ邮件通知、Redis发布与读模型)
// 放在infrastructure层,测试时用内存Fake替换

// NotificationSender 通知发送方
type NotificationSender interface {
	// Send 向destination发送一条文本通知
	Send(ctx context.Context, destination, message string) error
}

// EventPublisher 对外事件发布方
type EventPublisher interface {
	// Publish 把事件发布到指定频道,供其他服务订阅
	Publish(ctx context.Context, channel string, event allocation.Event) error
}

// ViewStore 分配读模型存储
// 读写分离:写路径经过聚合,查询路径直接读这个视图
type ViewStore interface {
	// AddAllocation 记录订单行的分配结果(sku -> batchref)
	AddAllocation(ctx context.Context, orderID, sku, batchRef string) error

	// RemoveAllocation 移除订单行的分配记录
	RemoveAllocation(ctx context.Context, orderID, sku string) error

	// Allocations 查询某订单的全部分配结果
	Allocations(ctx context.Context, orderID string) (map[string]string, error)
}

// =========================================
// 处理器
// =========================================

// Handlers 命令/事件处理器集合
// 教学要点:
// 1. 命令处理器:打开工作单元→取出聚合→调用领域行为→保存→提交,
//    任何error都会经由消息总线原样抛给外部调用方
// 2. 事件处理器:尽力而为,失败由消息总线捕获并记日志,不影响其他处理
// 3. 处理器持有的协作方都是接口,在启动时注入
type Handlers struct {
	notifier   NotificationSender
	publisher  EventPublisher
	views      ViewStore
	notifyAddr string // 缺货通知收件地址
}

// NewHandlers 创建处理器集合
func NewHandlers(notifier NotificationSender, publisher EventPublisher, views ViewStore, notifyAddr string) *Handlers {
	return &Handlers{
		notifier:   notifier,
		publisher:  publisher,
		views:      views,
		notifyAddr: notifyAddr,
	}
}

// AddBatch 处理CreateBatch命令:为SKU建立(或取出)产品聚合并追加批次
func (h *Handlers) AddBatch(ctx context.Context, cmd allocation.CreateBatch, uow UnitOfWork) (interface{}, error) {
	if cmd.Qty <= 0 {
		return nil, allocation.ErrInvalidQuantity
	}

	err := uow.Transaction(ctx, func(txCtx context.Context) error {
		product, err := uow.Products().Get(txCtx, cmd.SKU)
		if errors.Is(err, allocation.ErrProductNotFound) {
			// 该SKU首个批次:先建立聚合
			product = allocation.NewProduct(cmd.SKU)
			if err := uow.Products().Add(txCtx, product); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		if product.BatchByRef(cmd.Ref) != nil {
			return allocation.ErrDuplicateRef
		}

		product.AddBatch(allocation.NewBatch(cmd.Ref, cmd.SKU, cmd.Qty, cmd.ETA))
		return uow.Products().Save(txCtx, product)
	})
	return nil, err
}

// Allocate 处理Allocate命令:把订单行分配到最优批次
// 返回选中的批次引用号;缺货时返回空串(不报错,通知走OutOfStock事件)
// SKU没有对应产品时返回"无效SKU"错误,直接抛给调用方
func (h *Handlers) Allocate(ctx context.Context, cmd allocation.Allocate, uow UnitOfWork) (interface{}, error) {
	if cmd.Qty <= 0 {
		return nil, allocation.ErrInvalidQuantity
	}

	line := allocation.OrderLine{OrderID: cmd.OrderID, SKU: cmd.SKU, Qty: cmd.Qty}

	var batchRef string
	err := uow.Transaction(ctx, func(txCtx context.Context) error {
		product, err := uow.Products().Get(txCtx, cmd.SKU)
		if errors.Is(err, allocation.ErrProductNotFound) {
			return apperrors.Newf(apperrors.ErrCodeInvalidSKU, "无效的SKU: %s", cmd.SKU)
		}
		if err != nil {
			return err
		}

		batchRef = product.Allocate(line)
		return uow.Products().Save(txCtx, product)
	})
	if err != nil {
		return nil, err
	}
	return batchRef, nil
}

// ChangeBatchQuantity 处理ChangeBatchQuantity命令:调整批次采购数量
// 数量下调导致的解除分配由聚合发布Deallocated事件,
// 再由Reallocate事件处理器在同一轮消息循环内补单
func (h *Handlers) ChangeBatchQuantity(ctx context.Context, cmd allocation.ChangeBatchQuantity, uow UnitOfWork) (interface{}, error) {
	err := uow.Transaction(ctx, func(txCtx context.Context) error {
		product, err := uow.Products().GetByBatchRef(txCtx, cmd.BatchRef)
		if errors.Is(err, allocation.ErrProductNotFound) {
			return apperrors.Newf(apperrors.ErrCodeBatchNotFound, "无效的批次引用号: %s", cmd.BatchRef)
		}
		if err != nil {
			return err
		}

		product.ChangeBatchQuantity(cmd.BatchRef, cmd.Qty)
		return uow.Products().Save(txCtx, product)
	})
	return nil, err
}

// =========================================
// 事件处理器(尽力而为)
// =========================================

// SendOutOfStockNotification 处理OutOfStock事件:发送缺货通知
// 通知文案是与下游邮件服务约定的固定格式,勿改动
func (h *Handlers) SendOutOfStockNotification(ctx context.Context, e allocation.OutOfStock, _ UnitOfWork) error {
	return h.notifier.Send(ctx, h.notifyAddr, fmt.Sprintf("Out of stock for %s", e.SKU))
}

// PublishAllocated 处理Allocated事件:向外部发布分配结果
func (h *Handlers) PublishAllocated(ctx context.Context, e allocation.Allocated, _ UnitOfWork) error {
	return h.publisher.Publish(ctx, ChannelLineAllocated, e)
}

// AddAllocationToReadModel 处理Allocated事件:维护分配读模型
func (h *Handlers) AddAllocationToReadModel(ctx context.Context, e allocation.Allocated, _ UnitOfWork) error {
	return h.views.AddAllocation(ctx, e.OrderID, e.SKU, e.BatchRef)
}

// RemoveAllocationFromReadModel 处理Deallocated事件:清理分配读模型
func (h *Handlers) RemoveAllocationFromReadModel(ctx context.Context, e allocation.Deallocated, _ UnitOfWork) error {
	return h.views.RemoveAllocation(ctx, e.OrderID, e.SKU)
}

// Reallocate 处理Deallocated事件:为被挤出的订单行重新分配
// 教学要点:直接复用Allocate用例;它发布的Allocated事件
// 会被总线继续收集投递,所以补单发生在同一次外部调用之内
func (h *Handlers) Reallocate(ctx context.Context, e allocation.Deallocated, uow UnitOfWork) error {
	_, err := h.Allocate(ctx, allocation.Allocate{
		OrderID: e.OrderID,
		SKU:     e.SKU,
		Qty:     e.Qty,
	}, uow)
	return err
}

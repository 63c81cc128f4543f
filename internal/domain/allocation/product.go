package allocation

import (
	"sort"
)

// Product 产品聚合根
// 教学要点:
// 1. 聚合根是一致性边界:同一SKU的全部批次只能经由Product修改,
//    并发修改同一SKU的请求在持久化层串行化到这一个锁点上
// 2. VersionNumber用于持久化层的乐观并发控制,每次成功分配时递增
//    (跨实例的冲突重试策略由持久化层协作方负责,不在聚合内实现)
// 3. 聚合持有自己的"待发布事件"队列:领域行为只往队列里追加事件,
//    由工作单元在提交后统一取走(移出而非复制),避免共享的全局事件状态
type Product struct {
	SKU           string   // 库存单位(聚合标识)
	Batches       []*Batch // 该SKU的全部批次
	VersionNumber int      // 版本号(乐观锁)

	events []Message // 待发布事件队列
}

// NewProduct 创建产品聚合
func NewProduct(sku string, batches ...*Batch) *Product {
	return &Product{
		SKU:     sku,
		Batches: batches,
	}
}

// AddBatch 追加批次
func (p *Product) AddBatch(b *Batch) {
	p.Batches = append(p.Batches, b)
}

// BatchByRef 按引用号查找批次
func (p *Product) BatchByRef(ref string) *Batch {
	for _, b := range p.Batches {
		if b.Reference == ref {
			return b
		}
	}
	return nil
}

// Allocate 把订单行分配到最优批次
// 教学要点:
// 1. 分配偏好由显式比较器决定(现货优先,其次按ETA升序),
//    而不是依赖批次的插入顺序,保证确定性:同样的状态总是选同一个批次
// 2. 选中批次后发布Allocated事件并递增版本号,返回批次引用号
// 3. 全部批次都分配不了时发布OutOfStock事件并返回空串——
//    缺货不是错误,调用方不会收到error,通知走事件处理器异步完成
func (p *Product) Allocate(line OrderLine) string {
	p.sortBatches()
	for _, b := range p.Batches {
		if !b.CanAllocate(line) {
			continue
		}
		b.Allocate(line)
		p.VersionNumber++
		p.raise(Allocated{
			OrderID:  line.OrderID,
			SKU:      line.SKU,
			Qty:      line.Qty,
			BatchRef: b.Reference,
		})
		return b.Reference
	}

	p.raise(OutOfStock{SKU: p.SKU})
	return ""
}

// ChangeBatchQuantity 调整批次采购数量
// 教学要点:
// 1. 下调后可用数量可能为负,此时按"先分配先解除"的顺序逐行释放订单行,
//    直到可用数量恢复 >= 0,每释放一行发布一个Deallocated事件
// 2. Deallocated事件会触发下游为该订单行重新分配(同一轮消息循环内完成),
//    所以被挤出去的订单行会自动落到下一个可用批次上
// 3. 批次不存在时不做任何事,存在性校验由命令处理器负责
func (p *Product) ChangeBatchQuantity(ref string, qty int) {
	b := p.BatchByRef(ref)
	if b == nil {
		return
	}

	b.PurchasedQuantity = qty
	for b.AvailableQuantity() < 0 {
		line, ok := b.DeallocateOne()
		if !ok {
			break
		}
		p.raise(Deallocated{
			OrderID: line.OrderID,
			SKU:     line.SKU,
			Qty:     line.Qty,
		})
	}
}

// PullEvents 取走全部待发布事件(队列随之清空)
// 教学要点:事件是"移出"而不是"复制",保证同一事件绝不会被重复投递
func (p *Product) PullEvents() []Message {
	events := p.events
	p.events = nil
	return events
}

// HasPendingEvents 是否有待发布事件
func (p *Product) HasPendingEvents() bool {
	return len(p.events) > 0
}

// raise 往聚合的事件队列追加一个事件
func (p *Product) raise(e Event) {
	p.events = append(p.events, e)
}

// sortBatches 按分配偏好排序批次
// 使用稳定排序:偏好相同的批次保持既有相对顺序
func (p *Product) sortBatches() {
	sort.SliceStable(p.Batches, func(i, j int) bool {
		return p.Batches[i].EarlierThan(p.Batches[j])
	})
}

package allocation

import (
	"time"
)

// OrderLine 订单行(值对象)
// 教学要点:
// 1. 值对象没有生命周期,等价性由全部字段决定(order_id, sku, qty)
// 2. 构造后不再修改,可安全地用作比较和去重的依据
// 3. "分配"指把一个订单行的全部数量指派给恰好一个批次,不做拆分
type OrderLine struct {
	OrderID string // 订单号
	SKU     string // 库存单位
	Qty     int    // 需求数量
}

// Batch 库存批次(实体)
// 教学要点:
// 1. 批次的身份由Reference决定(业务主键,全局唯一)
// 2. ETA为nil表示现货(已在仓库),非nil表示在途,排序时现货优先
// 3. 已分配订单行用切片保存并保持分配顺序
//    (数量下调时按"先分配先解除"的确定性顺序逐行解除)
type Batch struct {
	Reference         string     // 批次引用号
	SKU               string     // 库存单位
	PurchasedQuantity int        // 采购数量
	ETA               *time.Time // 预计到货日期(nil=现货)

	allocations []OrderLine // 已分配订单行(按分配顺序)
}

// NewBatch 创建批次(工厂方法)
func NewBatch(ref, sku string, qty int, eta *time.Time) *Batch {
	return &Batch{
		Reference:         ref,
		SKU:               sku,
		PurchasedQuantity: qty,
		ETA:               eta,
	}
}

// AllocatedQuantity 已分配数量
func (b *Batch) AllocatedQuantity() int {
	var total int
	for _, line := range b.allocations {
		total += line.Qty
	}
	return total
}

// AvailableQuantity 可用数量 = 采购数量 - 已分配数量
// 不变量:通过CanAllocate的前置检查保证该值永远 >= 0
// (数量下调导致的临时负值由Product.ChangeBatchQuantity立即修复)
func (b *Batch) AvailableQuantity() int {
	return b.PurchasedQuantity - b.AllocatedQuantity()
}

// CanAllocate 判断能否分配订单行
// 条件:SKU一致 且 可用数量足够
func (b *Batch) CanAllocate(line OrderLine) bool {
	return b.SKU == line.SKU && b.AvailableQuantity() >= line.Qty
}

// Allocate 分配订单行
// 教学要点:
// 1. 幂等:同一订单行重复分配不产生额外扣减
// 2. 无法分配时静默跳过,"分不了"是正常的业务结果而不是错误
func (b *Batch) Allocate(line OrderLine) {
	if !b.CanAllocate(line) {
		return
	}
	if b.contains(line) {
		return
	}
	b.allocations = append(b.allocations, line)
}

// Deallocate 解除订单行的分配
// 未分配过的订单行直接跳过(no-op)
func (b *Batch) Deallocate(line OrderLine) {
	for i, l := range b.allocations {
		if l == line {
			b.allocations = append(b.allocations[:i], b.allocations[i+1:]...)
			return
		}
	}
}

// DeallocateOne 解除最早分配的一个订单行并返回
// 用途:批次数量下调后可用数量为负时,按分配顺序逐行释放
func (b *Batch) DeallocateOne() (OrderLine, bool) {
	if len(b.allocations) == 0 {
		return OrderLine{}, false
	}
	line := b.allocations[0]
	b.allocations = b.allocations[1:]
	return line, true
}

// Allocations 返回已分配订单行的副本(按分配顺序)
// 返回副本防止外部绕过聚合直接修改内部状态
func (b *Batch) Allocations() []OrderLine {
	out := make([]OrderLine, len(b.allocations))
	copy(out, b.allocations)
	return out
}

// RestoreAllocations 恢复已分配订单行(仅供仓储层重建聚合使用)
func (b *Batch) RestoreAllocations(lines []OrderLine) {
	b.allocations = make([]OrderLine, len(lines))
	copy(b.allocations, lines)
}

// EarlierThan 批次排序比较器
// 规则:现货(ETA=nil)排在在途批次之前;在途批次按ETA升序
// 这个全序决定了分配偏好:优先消耗仓库现货,其次是最早到货的在途批次
func (b *Batch) EarlierThan(other *Batch) bool {
	if b.ETA == nil {
		return other.ETA != nil
	}
	if other.ETA == nil {
		return false
	}
	return b.ETA.Before(*other.ETA)
}

// contains 判断订单行是否已分配到本批次
func (b *Batch) contains(line OrderLine) bool {
	for _, l := range b.allocations {
		if l == line {
			return true
		}
	}
	return false
}

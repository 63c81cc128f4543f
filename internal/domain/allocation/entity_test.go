package allocation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// makeBatchAndLine 创建同SKU的批次和订单行
func makeBatchAndLine(sku string, batchQty, lineQty int) (*Batch, OrderLine) {
	batch := NewBatch("batch-001", sku, batchQty, nil)
	line := OrderLine{OrderID: "order-123", SKU: sku, Qty: lineQty}
	return batch, line
}

// TestBatch_Allocate 测试分配扣减可用数量
func TestBatch_Allocate(t *testing.T) {
	batch, line := makeBatchAndLine("SMALL-TABLE", 20, 2)

	batch.Allocate(line)

	assert.Equal(t, 18, batch.AvailableQuantity(), "分配后可用数量应该减少")
}

// TestBatch_CanAllocate 测试分配前置条件
func TestBatch_CanAllocate(t *testing.T) {
	t.Run("可用数量大于需求", func(t *testing.T) {
		batch, line := makeBatchAndLine("ELEGANT-LAMP", 20, 2)
		assert.True(t, batch.CanAllocate(line))
	})

	t.Run("可用数量小于需求", func(t *testing.T) {
		batch, line := makeBatchAndLine("ELEGANT-LAMP", 2, 20)
		assert.False(t, batch.CanAllocate(line))
	})

	t.Run("可用数量等于需求", func(t *testing.T) {
		batch, line := makeBatchAndLine("ELEGANT-LAMP", 2, 2)
		assert.True(t, batch.CanAllocate(line))
	})

	t.Run("SKU不一致", func(t *testing.T) {
		batch := NewBatch("batch-001", "UNCOMFORTABLE-CHAIR", 100, nil)
		line := OrderLine{OrderID: "order-123", SKU: "EXPENSIVE-TOASTER", Qty: 10}
		assert.False(t, batch.CanAllocate(line), "SKU不同的订单行不能分配")
	})
}

// TestBatch_AllocateIdempotent 测试重复分配幂等
func TestBatch_AllocateIdempotent(t *testing.T) {
	batch, line := makeBatchAndLine("ANGULAR-DESK", 20, 2)

	batch.Allocate(line)
	batch.Allocate(line)

	assert.Equal(t, 18, batch.AvailableQuantity(), "同一订单行重复分配不应该产生额外扣减")
}

// TestBatch_Deallocate 测试解除分配
func TestBatch_Deallocate(t *testing.T) {
	batch, line := makeBatchAndLine("EXPENSIVE-FOOTSTOOL", 20, 2)
	batch.Allocate(line)

	batch.Deallocate(line)

	assert.Equal(t, 20, batch.AvailableQuantity(), "解除分配后可用数量应该恢复")
}

// TestBatch_DeallocateUnallocated 测试解除未分配的订单行
func TestBatch_DeallocateUnallocated(t *testing.T) {
	batch, line := makeBatchAndLine("DECORATIVE-TRINKET", 20, 2)

	// 从未分配过,解除应该是no-op
	batch.Deallocate(line)

	assert.Equal(t, 20, batch.AvailableQuantity())
}

// TestBatch_DeallocateOne 测试按分配顺序逐行解除
func TestBatch_DeallocateOne(t *testing.T) {
	batch := NewBatch("batch-001", "RETRO-CLOCK", 30, nil)
	first := OrderLine{OrderID: "order-1", SKU: "RETRO-CLOCK", Qty: 10}
	second := OrderLine{OrderID: "order-2", SKU: "RETRO-CLOCK", Qty: 10}
	batch.Allocate(first)
	batch.Allocate(second)

	line, ok := batch.DeallocateOne()
	assert.True(t, ok)
	assert.Equal(t, first, line, "应该先解除最早分配的订单行")

	line, ok = batch.DeallocateOne()
	assert.True(t, ok)
	assert.Equal(t, second, line)

	_, ok = batch.DeallocateOne()
	assert.False(t, ok, "没有分配时应该返回false")
}

// TestBatch_EarlierThan 测试批次排序比较器
func TestBatch_EarlierThan(t *testing.T) {
	today := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	tomorrow := today.AddDate(0, 0, 1)

	warehouse := NewBatch("warehouse", "SPOON", 10, nil)
	early := NewBatch("early", "SPOON", 10, &today)
	late := NewBatch("late", "SPOON", 10, &tomorrow)

	assert.True(t, warehouse.EarlierThan(early), "现货应该排在在途批次之前")
	assert.False(t, early.EarlierThan(warehouse))
	assert.True(t, early.EarlierThan(late), "在途批次按ETA升序")
	assert.False(t, late.EarlierThan(early))
	assert.False(t, warehouse.EarlierThan(warehouse), "比较器必须满足严格弱序")
}

// TestBatch_Allocations 测试分配明细副本
func TestBatch_Allocations(t *testing.T) {
	batch, line := makeBatchAndLine("MIRROR", 20, 2)
	batch.Allocate(line)

	lines := batch.Allocations()
	lines[0].Qty = 999 // 修改副本不应该影响批次内部状态

	assert.Equal(t, 18, batch.AvailableQuantity())
}

package allocation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xiebiao/allocation/internal/domain/allocation"
)

// =========================================
// 内存Fake:仓储与工作单元
// =========================================

// FakeRepository 内存产品仓储
type FakeRepository struct {
	products []*allocation.Product
}

func (r *FakeRepository) Add(_ context.Context, p *allocation.Product) error {
	r.products = append(r.products, p)
	return nil
}

func (r *FakeRepository) Get(_ context.Context, sku string) (*allocation.Product, error) {
	for _, p := range r.products {
		if p.SKU == sku {
			return p, nil
		}
	}
	return nil, allocation.ErrProductNotFound
}

func (r *FakeRepository) GetByBatchRef(_ context.Context, ref string) (*allocation.Product, error) {
	for _, p := range r.products {
		if p.BatchByRef(ref) != nil {
			return p, nil
		}
	}
	return nil, allocation.ErrProductNotFound
}

func (r *FakeRepository) Save(_ context.Context, _ *allocation.Product) error {
	return nil
}

// FakeUnitOfWork 内存工作单元
// 与MySQL实现共用TrackedRepository装饰器,事件收集行为完全一致
type FakeUnitOfWork struct {
	repo      *FakeRepository
	products  *TrackedRepository
	committed bool
}

func NewFakeUnitOfWork() *FakeUnitOfWork {
	repo := &FakeRepository{}
	return &FakeUnitOfWork{
		repo:     repo,
		products: NewTrackedRepository(repo),
	}
}

func (u *FakeUnitOfWork) Products() *TrackedRepository { return u.products }

func (u *FakeUnitOfWork) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := fn(ctx); err != nil {
		return err
	}
	u.committed = true
	return nil
}

func (u *FakeUnitOfWork) CollectNewEvents() []allocation.Message {
	return u.products.DrainEvents()
}

// =========================================
// 内存Fake:协作方
// =========================================

// FakeNotifier 记录发送过的通知
type FakeNotifier struct {
	sent []string // "destination: message"
}

func (n *FakeNotifier) Send(_ context.Context, destination, message string) error {
	n.sent = append(n.sent, destination+": "+message)
	return nil
}

// FakePublisher 记录发布过的事件
type FakePublisher struct {
	published map[string][]allocation.Event
	err       error // 非nil时发布失败
}

func NewFakePublisher() *FakePublisher {
	return &FakePublisher{published: make(map[string][]allocation.Event)}
}

func (p *FakePublisher) Publish(_ context.Context, channel string, event allocation.Event) error {
	if p.err != nil {
		return p.err
	}
	p.published[channel] = append(p.published[channel], event)
	return nil
}

// FakeViewStore 内存分配读模型
type FakeViewStore struct {
	data map[string]map[string]string // orderID -> sku -> batchRef
}

func NewFakeViewStore() *FakeViewStore {
	return &FakeViewStore{data: make(map[string]map[string]string)}
}

func (s *FakeViewStore) AddAllocation(_ context.Context, orderID, sku, batchRef string) error {
	if s.data[orderID] == nil {
		s.data[orderID] = make(map[string]string)
	}
	s.data[orderID][sku] = batchRef
	return nil
}

func (s *FakeViewStore) RemoveAllocation(_ context.Context, orderID, sku string) error {
	delete(s.data[orderID], sku)
	return nil
}

func (s *FakeViewStore) Allocations(_ context.Context, orderID string) (map[string]string, error) {
	return s.data[orderID], nil
}

// =========================================
// 测试装置
// =========================================

type fixture struct {
	bus      *Bus
	uow      *FakeUnitOfWork
	notifier *FakeNotifier
	pub      *FakePublisher
	views    *FakeViewStore
}

func newFixture() *fixture {
	notifier := &FakeNotifier{}
	pub := NewFakePublisher()
	views := NewFakeViewStore()
	h := NewHandlers(notifier, pub, views, "stock@example.com")
	return &fixture{
		bus:      NewBus(h, zap.NewNop()),
		uow:      NewFakeUnitOfWork(),
		notifier: notifier,
		pub:      pub,
		views:    views,
	}
}

func (f *fixture) handle(t *testing.T, msg allocation.Message) []interface{} {
	t.Helper()
	results, err := f.bus.Handle(context.Background(), msg, f.uow)
	require.NoError(t, err)
	return results
}

// =========================================
// CreateBatch命令
// =========================================

// TestBus_AddBatch 测试创建批次
func TestBus_AddBatch(t *testing.T) {
	f := newFixture()

	f.handle(t, allocation.CreateBatch{Ref: "b1", SKU: "CRUNCHY-ARMCHAIR", Qty: 100})

	product, err := f.uow.repo.Get(context.Background(), "CRUNCHY-ARMCHAIR")
	require.NoError(t, err, "首个批次应该建立产品聚合")
	assert.NotNil(t, product.BatchByRef("b1"))
	assert.True(t, f.uow.committed, "命令处理完应该提交")
}

// TestBus_AddBatch_ExistingProduct 测试为已有产品追加批次
func TestBus_AddBatch_ExistingProduct(t *testing.T) {
	f := newFixture()

	f.handle(t, allocation.CreateBatch{Ref: "b1", SKU: "GARISH-RUG", Qty: 100})
	f.handle(t, allocation.CreateBatch{Ref: "b2", SKU: "GARISH-RUG", Qty: 99})

	product, err := f.uow.repo.Get(context.Background(), "GARISH-RUG")
	require.NoError(t, err)
	assert.Len(t, product.Batches, 2)
}

// TestBus_AddBatch_DuplicateRef 测试批次引用号重复
func TestBus_AddBatch_DuplicateRef(t *testing.T) {
	f := newFixture()
	f.handle(t, allocation.CreateBatch{Ref: "b1", SKU: "RUG", Qty: 100})

	_, err := f.bus.Handle(context.Background(), allocation.CreateBatch{Ref: "b1", SKU: "RUG", Qty: 50}, f.uow)

	assert.ErrorIs(t, err, allocation.ErrDuplicateRef)
}

// =========================================
// Allocate命令
// =========================================

// TestBus_Allocate 测试分配返回批次引用号
func TestBus_Allocate(t *testing.T) {
	f := newFixture()
	f.handle(t, allocation.CreateBatch{Ref: "batch1", SKU: "COMPLICATED-LAMP", Qty: 100})

	results := f.handle(t, allocation.Allocate{OrderID: "o1", SKU: "COMPLICATED-LAMP", Qty: 10})

	require.Len(t, results, 1)
	assert.Equal(t, "batch1", results[0], "应该返回选中的批次引用号")
	assert.True(t, f.uow.committed)
}

// TestBus_Allocate_InvalidSKU 测试无效SKU直接抛错
func TestBus_Allocate_InvalidSKU(t *testing.T) {
	f := newFixture()
	f.handle(t, allocation.CreateBatch{Ref: "b1", SKU: "AREALSKU", Qty: 100})

	_, err := f.bus.Handle(context.Background(), allocation.Allocate{OrderID: "o1", SKU: "NONEXISTENTSKU", Qty: 10}, f.uow)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "NONEXISTENTSKU", "错误信息应该带上无效的SKU")
}

// TestBus_Allocate_OutOfStock 测试缺货发通知而不报错
func TestBus_Allocate_OutOfStock(t *testing.T) {
	f := newFixture()
	f.handle(t, allocation.CreateBatch{Ref: "b1", SKU: "BUSY-STREET", Qty: 9})

	results := f.handle(t, allocation.Allocate{OrderID: "o1", SKU: "BUSY-STREET", Qty: 10})

	require.Len(t, results, 1)
	assert.Equal(t, "", results[0], "缺货时批次引用号为空")

	require.Len(t, f.notifier.sent, 1, "缺货通知应该恰好发送一次")
	assert.Equal(t, "stock@example.com: Out of stock for BUSY-STREET", f.notifier.sent[0])
}

// TestBus_Allocate_PublishesAndUpdatesReadModel 测试分配事件的下游处理
func TestBus_Allocate_PublishesAndUpdatesReadModel(t *testing.T) {
	f := newFixture()
	f.handle(t, allocation.CreateBatch{Ref: "batch1", SKU: "POSTER", Qty: 100})

	f.handle(t, allocation.Allocate{OrderID: "o1", SKU: "POSTER", Qty: 10})

	// 对外发布
	published := f.pub.published[ChannelLineAllocated]
	require.Len(t, published, 1)
	assert.Equal(t, allocation.Allocated{OrderID: "o1", SKU: "POSTER", Qty: 10, BatchRef: "batch1"}, published[0])

	// 读模型
	views, err := f.views.Allocations(context.Background(), "o1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"POSTER": "batch1"}, views)
}

// =========================================
// ChangeBatchQuantity命令
// =========================================

// TestBus_ChangeBatchQuantity 测试数量调整
func TestBus_ChangeBatchQuantity(t *testing.T) {
	f := newFixture()
	f.handle(t, allocation.CreateBatch{Ref: "batch1", SKU: "ADORABLE-SETTEE", Qty: 100})

	f.handle(t, allocation.ChangeBatchQuantity{BatchRef: "batch1", Qty: 50})

	product, err := f.uow.repo.Get(context.Background(), "ADORABLE-SETTEE")
	require.NoError(t, err)
	assert.Equal(t, 50, product.BatchByRef("batch1").AvailableQuantity())
}

// TestBus_ChangeBatchQuantity_InvalidRef 测试批次不存在
func TestBus_ChangeBatchQuantity_InvalidRef(t *testing.T) {
	f := newFixture()

	_, err := f.bus.Handle(context.Background(), allocation.ChangeBatchQuantity{BatchRef: "no-such-batch", Qty: 50}, f.uow)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no-such-batch")
}

// TestBus_ChangeBatchQuantity_Reallocates 测试下调触发级联补单
// 被挤出的订单行在同一次调用内重新分配到下一个可用批次
func TestBus_ChangeBatchQuantity_Reallocates(t *testing.T) {
	f := newFixture()
	eta := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	f.handle(t, allocation.CreateBatch{Ref: "batch1", SKU: "INDIFFERENT-TABLE", Qty: 50})
	f.handle(t, allocation.CreateBatch{Ref: "batch2", SKU: "INDIFFERENT-TABLE", Qty: 50, ETA: &eta})
	f.handle(t, allocation.Allocate{OrderID: "order1", SKU: "INDIFFERENT-TABLE", Qty: 20})
	f.handle(t, allocation.Allocate{OrderID: "order2", SKU: "INDIFFERENT-TABLE", Qty: 20})

	product, err := f.uow.repo.Get(context.Background(), "INDIFFERENT-TABLE")
	require.NoError(t, err)
	batch1 := product.BatchByRef("batch1")
	batch2 := product.BatchByRef("batch2")

	// 现货优先:两个订单行都落在batch1上
	require.Equal(t, 10, batch1.AvailableQuantity())
	require.Equal(t, 50, batch2.AvailableQuantity())

	f.handle(t, allocation.ChangeBatchQuantity{BatchRef: "batch1", Qty: 25})

	// order1(最早分配)被挤出,自动补单到batch2
	assert.Equal(t, 5, batch1.AvailableQuantity())
	assert.Equal(t, 30, batch2.AvailableQuantity())

	// 读模型跟着迁移
	views, err := f.views.Allocations(context.Background(), "order1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"INDIFFERENT-TABLE": "batch2"}, views)
}

// =========================================
// 调度语义
// =========================================

// TestBus_EventHandlerFailureIsolated 测试事件处理失败被隔离
func TestBus_EventHandlerFailureIsolated(t *testing.T) {
	f := newFixture()
	f.pub.err = errors.New("redis挂了")
	f.handle(t, allocation.CreateBatch{Ref: "batch1", SKU: "LAMP", Qty: 100})

	// 发布器失败不应该影响命令结果,也不影响后续的读模型处理器
	results, err := f.bus.Handle(context.Background(), allocation.Allocate{OrderID: "o1", SKU: "LAMP", Qty: 10}, f.uow)

	require.NoError(t, err, "事件处理失败不应该冒泡给调用方")
	require.Len(t, results, 1)
	assert.Equal(t, "batch1", results[0])

	views, verr := f.views.Allocations(context.Background(), "o1")
	require.NoError(t, verr)
	assert.Equal(t, map[string]string{"LAMP": "batch1"}, views, "同一事件的后续处理器应该照常执行")
}

// TestBus_CommandFailureAborts 测试命令失败中止调度
func TestBus_CommandFailureAborts(t *testing.T) {
	f := newFixture()

	_, err := f.bus.Handle(context.Background(), allocation.Allocate{OrderID: "o1", SKU: "UNKNOWN", Qty: 10}, f.uow)

	require.Error(t, err)
	assert.False(t, f.uow.committed, "失败的命令不应该提交")
	assert.Empty(t, f.notifier.sent)
}

// TestBus_InvalidQuantity 测试非法数量校验
func TestBus_InvalidQuantity(t *testing.T) {
	f := newFixture()

	_, err := f.bus.Handle(context.Background(), allocation.CreateBatch{Ref: "b1", SKU: "LAMP", Qty: 0}, f.uow)
	assert.ErrorIs(t, err, allocation.ErrInvalidQuantity)

	_, err = f.bus.Handle(context.Background(), allocation.Allocate{OrderID: "o1", SKU: "LAMP", Qty: -1}, f.uow)
	assert.ErrorIs(t, err, allocation.ErrInvalidQuantity)
}

package allocation

import (
	"context"

	"github.com/xiebiao/allocation/internal/domain/allocation"
)

// UnitOfWork 工作单元接口(事务边界)
// 教学要点:
// 1. 一次消息处理中对聚合的全部读写都发生在同一个工作单元作用域内,
//    提交是修改对其他工作单元可见的唯一路径
// 2. 作用域用闭包表达(闭包事务写法):fn返回nil则提交,
//    返回error则回滚——"不显式提交就回滚"由闭包契约天然保证
// 3. 提交(或回滚)之后,工作单元能交出作用域内接触过的所有聚合
//    积累的新事件,供消息总线继续投递
type UnitOfWork interface {
	// Products 本工作单元的产品仓储(带接触跟踪)
	Products() *TrackedRepository

	// Transaction 在事务边界内执行fn
	// fn返回nil时提交,返回error时回滚并原样透传该error
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error

	// CollectNewEvents 取走接触过的聚合上积累的全部新事件
	// 一次性序列:事件随取随清,绝不会重复投递
	CollectNewEvents() []allocation.Message
}

// TrackedRepository 带接触跟踪的仓储装饰器
// 教学要点:
// 1. 包装任意Repository实现,记录本工作单元取出或新增过的聚合
// 2. 事件收集只看"接触过"的聚合——没被本作用域碰过的聚合不可能有新事件
// 3. MySQL实现与测试用的内存Fake共用这一个装饰器,行为保持一致
type TrackedRepository struct {
	inner allocation.Repository
	seen  []*allocation.Product
}

// NewTrackedRepository 创建跟踪仓储
func NewTrackedRepository(inner allocation.Repository) *TrackedRepository {
	return &TrackedRepository{inner: inner}
}

// Add 新增聚合并记录接触
func (r *TrackedRepository) Add(ctx context.Context, product *allocation.Product) error {
	if err := r.inner.Add(ctx, product); err != nil {
		return err
	}
	r.mark(product)
	return nil
}

// Get 按SKU查找聚合并记录接触
func (r *TrackedRepository) Get(ctx context.Context, sku string) (*allocation.Product, error) {
	product, err := r.inner.Get(ctx, sku)
	if err != nil {
		return nil, err
	}
	r.mark(product)
	return product, nil
}

// GetByBatchRef 按批次引用号查找聚合并记录接触
func (r *TrackedRepository) GetByBatchRef(ctx context.Context, ref string) (*allocation.Product, error) {
	product, err := r.inner.GetByBatchRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	r.mark(product)
	return product, nil
}

// Save 持久化聚合
func (r *TrackedRepository) Save(ctx context.Context, product *allocation.Product) error {
	return r.inner.Save(ctx, product)
}

// DrainEvents 取走所有接触过的聚合的待发布事件
func (r *TrackedRepository) DrainEvents() []allocation.Message {
	var events []allocation.Message
	for _, p := range r.seen {
		events = append(events, p.PullEvents()...)
	}
	return events
}

// mark 记录接触过的聚合(按指针去重)
func (r *TrackedRepository) mark(product *allocation.Product) {
	for _, p := range r.seen {
		if p == product {
			return
		}
	}
	r.seen = append(r.seen, product)
}

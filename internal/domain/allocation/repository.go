package allocation

import (
	"context"
)

// Repository 产品聚合仓储接口(依赖倒置原则)
// 教学要点:
// 1. 由domain层定义接口,infrastructure层实现,存储技术不做约束
// 2. 查询都以聚合为单位:即使只关心一个批次,也要取回整个Product,
//    保证所有修改都经过聚合这个一致性边界
// 3. Save是Go实现特有的:没有ORM的脏数据跟踪,聚合的修改必须显式持久化
// 4. 支持事务操作(通过context传递事务)
type Repository interface {
	// Add 新增产品聚合
	Add(ctx context.Context, product *Product) error

	// Get 按SKU查找产品(含全部批次与已分配订单行)
	// 不存在时返回ErrProductNotFound
	Get(ctx context.Context, sku string) (*Product, error)

	// GetByBatchRef 按批次引用号反查所属产品
	// 不存在时返回ErrProductNotFound
	GetByBatchRef(ctx context.Context, ref string) (*Product, error)

	// Save 持久化聚合的全部修改(批次、分配明细、版本号)
	Save(ctx context.Context, product *Product) error
}

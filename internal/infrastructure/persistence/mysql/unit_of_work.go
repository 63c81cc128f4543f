package mysql

import (
	"context"

	"gorm.io/gorm"

	appallocation "github.com/xiebiao/allocation/internal/application/allocation"
	"github.com/xiebiao/allocation/internal/domain/allocation"
	apperrors "github.com/xiebiao/allocation/pkg/errors"
)

// UnitOfWork 工作单元实现(GORM事务)
// 教学要点:
// 1. 用闭包包裹事务边界:fn返回nil则提交,返回error则回滚
// 2. 事务DB通过context传递给仓储,仓储代码对"是否在事务中"无感知
// 3. 仓储外层套TrackedRepository,消息总线据此收集新事件
type UnitOfWork struct {
	db       *gorm.DB
	products *appallocation.TrackedRepository
}

// NewUnitOfWork 创建工作单元
func NewUnitOfWork(db *gorm.DB) *UnitOfWork {
	return &UnitOfWork{
		db:       db,
		products: appallocation.NewTrackedRepository(NewProductRepository(db)),
	}
}

// Products 返回带接触跟踪的产品仓储
func (u *UnitOfWork) Products() *appallocation.TrackedRepository {
	return u.products
}

// Transaction 在数据库事务内执行fn
func (u *UnitOfWork) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	err := u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(WithTx(ctx, tx))
	})
	if err != nil {
		// 业务错误原样透传,底层数据库错误统一包装
		if apperrors.IsAppError(err) {
			return err
		}
		return apperrors.Wrap(err, "事务执行失败")
	}
	return nil
}

// CollectNewEvents 取走本工作单元接触过的聚合上的新事件
func (u *UnitOfWork) CollectNewEvents() []allocation.Message {
	return u.products.DrainEvents()
}

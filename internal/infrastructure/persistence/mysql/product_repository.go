package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/xiebiao/allocation/internal/domain/allocation"
	apperrors "github.com/xiebiao/allocation/pkg/errors"
)

// txKey 事务DB在context中的键
// 使用私有类型避免与其他包的context键冲突
type txKey struct{}

// WithTx 把事务DB注入context(供工作单元使用)
func WithTx(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// productRepository 产品聚合仓储实现(MySQL)
// 教学要点:
// 1. 以聚合为单位读写:Get取回产品+全部批次+全部分配明细
// 2. 分配明细按自增ID升序恢复,保持"分配顺序"这一领域约束
// 3. 事务通过context传递(tx-in-context),
//    不在事务中调用时退回默认DB
type productRepository struct {
	db *gorm.DB
}

// NewProductRepository 创建产品仓储
func NewProductRepository(db *gorm.DB) allocation.Repository {
	return &productRepository{db: db}
}

// Add 新增产品聚合(只写产品行,批次与明细由Save统一写入)
func (r *productRepository) Add(ctx context.Context, p *allocation.Product) error {
	db := r.getDB(ctx)

	model := &ProductModel{
		SKU:           p.SKU,
		VersionNumber: p.VersionNumber,
	}
	if err := db.Create(model).Error; err != nil {
		return apperrors.Wrap(err, "创建产品失败")
	}
	return nil
}

// Get 按SKU取出完整聚合
func (r *productRepository) Get(ctx context.Context, sku string) (*allocation.Product, error) {
	db := r.getDB(ctx)

	var productModel ProductModel
	err := db.Where("sku = ?", sku).First(&productModel).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, allocation.ErrProductNotFound
		}
		return nil, apperrors.Wrap(err, "查询产品失败")
	}

	return r.loadAggregate(db, &productModel)
}

// GetByBatchRef 按批次引用号反查所属聚合
// 教学要点:即使调用方只关心一个批次,也要取回整个聚合——
// 数量下调引发的解除分配可能波及同SKU的其他批次
func (r *productRepository) GetByBatchRef(ctx context.Context, ref string) (*allocation.Product, error) {
	db := r.getDB(ctx)

	var batchModel BatchModel
	err := db.Where("reference = ?", ref).First(&batchModel).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, allocation.ErrProductNotFound
		}
		return nil, apperrors.Wrap(err, "查询批次失败")
	}

	return r.Get(ctx, batchModel.SKU)
}

// Save 持久化聚合的全部修改
// 教学要点:
// 1. 以聚合为单位整体重写(先清后写):分配明细行数很小,
//    换来的是与内存状态严格一致,不用逐行做差异对比
// 2. 重写时按内存切片顺序插入,自增ID天然保留分配顺序
// 3. 必须在事务中调用(命令处理器的工作单元保证这一点)
func (r *productRepository) Save(ctx context.Context, p *allocation.Product) error {
	db := r.getDB(ctx)

	// 1. 更新版本号
	// 跨实例的并发冲突检测与重试由持久化协作方(数据库隔离级别)负责
	err := db.Model(&ProductModel{}).
		Where("sku = ?", p.SKU).
		Update("version_number", p.VersionNumber).Error
	if err != nil {
		return apperrors.Wrap(err, "更新产品版本号失败")
	}

	// 2. 清除该SKU的既有批次与分配明细
	var batchIDs []uint
	if err := db.Model(&BatchModel{}).Where("sku = ?", p.SKU).Pluck("id", &batchIDs).Error; err != nil {
		return apperrors.Wrap(err, "查询批次ID失败")
	}
	if len(batchIDs) > 0 {
		if err := db.Where("batch_id IN ?", batchIDs).Delete(&AllocationModel{}).Error; err != nil {
			return apperrors.Wrap(err, "清除分配明细失败")
		}
	}
	if err := db.Where("sku = ?", p.SKU).Delete(&BatchModel{}).Error; err != nil {
		return apperrors.Wrap(err, "清除批次失败")
	}

	// 3. 重写批次与分配明细
	for _, b := range p.Batches {
		batchModel := &BatchModel{
			Reference:         b.Reference,
			SKU:               b.SKU,
			PurchasedQuantity: b.PurchasedQuantity,
			ETA:               b.ETA,
		}
		if err := db.Create(batchModel).Error; err != nil {
			return apperrors.Wrap(err, "写入批次失败")
		}

		for _, line := range b.Allocations() {
			allocModel := &AllocationModel{
				BatchID:  batchModel.ID,
				OrderID:  line.OrderID,
				SKU:      line.SKU,
				Quantity: line.Qty,
			}
			if err := db.Create(allocModel).Error; err != nil {
				return apperrors.Wrap(err, "写入分配明细失败")
			}
		}
	}

	return nil
}

// =========================================
// 辅助函数:聚合重建
// =========================================

// loadAggregate 读出批次与分配明细,重建领域聚合
func (r *productRepository) loadAggregate(db *gorm.DB, productModel *ProductModel) (*allocation.Product, error) {
	var batchModels []BatchModel
	err := db.Where("sku = ?", productModel.SKU).Order("id ASC").Find(&batchModels).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "查询批次列表失败")
	}

	batches := make([]*allocation.Batch, 0, len(batchModels))
	for _, bm := range batchModels {
		batch := allocation.NewBatch(bm.Reference, bm.SKU, bm.PurchasedQuantity, bm.ETA)

		// 按ID升序恢复分配明细 = 按原始分配顺序
		var allocModels []AllocationModel
		err := db.Where("batch_id = ?", bm.ID).Order("id ASC").Find(&allocModels).Error
		if err != nil {
			return nil, apperrors.Wrap(err, "查询分配明细失败")
		}

		lines := make([]allocation.OrderLine, len(allocModels))
		for i, am := range allocModels {
			lines[i] = allocation.OrderLine{
				OrderID: am.OrderID,
				SKU:     am.SKU,
				Qty:     am.Quantity,
			}
		}
		batch.RestoreAllocations(lines)
		batches = append(batches, batch)
	}

	product := allocation.NewProduct(productModel.SKU, batches...)
	product.VersionNumber = productModel.VersionNumber
	return product, nil
}

// getDB 从context获取事务DB,如果没有则使用默认DB
func (r *productRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return r.db
}

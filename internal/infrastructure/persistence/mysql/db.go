package mysql

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/xiebiao/allocation/internal/infrastructure/config"
)

// NewDB 创建数据库连接
// 设计说明：
// 1. 使用GORM v2作为ORM框架
// 2. 配置连接池参数（MaxOpenConns、MaxIdleConns、ConnMaxLifetime）
// 3. 开发环境开启SQL日志，生产环境关闭
// 4. 自动迁移表结构（AutoMigrate）
func NewDB(cfg *config.Config) (*gorm.DB, error) {
	dsn := cfg.Database.DSN()

	logLevel := logger.Silent
	if cfg.Server.Mode == "debug" {
		logLevel = logger.Info // 开发环境打印SQL
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
		NowFunc: func() time.Time {
			return time.Now()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取SQL DB失败: %w", err)
	}

	// 连接池配置
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("数据库连接测试失败: %w", err)
	}

	log.Println("✓ 数据库连接成功")

	// 自动迁移表结构（开发环境）
	// 注意：生产环境应使用专门的迁移工具（如golang-migrate）
	if err := autoMigrate(db); err != nil {
		return nil, fmt.Errorf("数据库迁移失败: %w", err)
	}

	return db, nil
}

// autoMigrate 自动迁移表结构
func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&ProductModel{},
		&BatchModel{},
		&AllocationModel{},
	)
}

// ProductModel GORM产品模型
// 设计说明:
// 1. 这是infrastructure层的数据模型,包含GORM tag
// 2. domain/allocation/product.go是领域聚合,不依赖GORM
// 3. Repository负责两者之间的转换
// 4. VersionNumber是乐观并发控制的版本号,每次成功分配时由聚合递增
type ProductModel struct {
	SKU           string    `gorm:"primaryKey;size:64;comment:库存单位"`
	VersionNumber int       `gorm:"not null;default:0;comment:版本号(乐观锁)"`
	CreatedAt     time.Time `gorm:"comment:创建时间"`
	UpdatedAt     time.Time `gorm:"comment:更新时间"`
}

// TableName 指定表名
func (ProductModel) TableName() string {
	return "products"
}

// BatchModel GORM批次模型
// 设计说明:
// 1. Reference有唯一索引(业务主键),GetByBatchRef靠它反查所属产品
// 2. ETA可空:NULL表示现货,排序偏好在领域层计算,不依赖SQL排序
type BatchModel struct {
	ID                uint       `gorm:"primaryKey"`
	Reference         string     `gorm:"uniqueIndex;size:64;not null;comment:批次引用号"`
	SKU               string     `gorm:"index;size:64;not null;comment:库存单位"`
	PurchasedQuantity int        `gorm:"not null;comment:采购数量"`
	ETA               *time.Time `gorm:"comment:预计到货日期(NULL=现货)"`
	CreatedAt         time.Time  `gorm:"comment:创建时间"`
}

// TableName 指定表名
func (BatchModel) TableName() string {
	return "batches"
}

// AllocationModel GORM分配明细模型
// 设计说明:
// 1. 一行 = 一个订单行到一个批次的分配
// 2. 自增ID保留分配顺序,重建聚合时按ID升序恢复
//    (批次数量下调时"先分配先解除"依赖这个顺序)
// 3. (batch_id, order_id, sku)唯一,保证同一订单行不会重复记账
type AllocationModel struct {
	ID        uint      `gorm:"primaryKey"`
	BatchID   uint      `gorm:"uniqueIndex:idx_batch_line;not null;comment:所属批次ID"`
	OrderID   string    `gorm:"uniqueIndex:idx_batch_line;size:64;not null;comment:订单号"`
	SKU       string    `gorm:"uniqueIndex:idx_batch_line;size:64;not null;comment:库存单位"`
	Quantity  int       `gorm:"not null;comment:分配数量"`
	CreatedAt time.Time `gorm:"comment:创建时间"`
}

// TableName 指定表名
func (AllocationModel) TableName() string {
	return "allocations"
}

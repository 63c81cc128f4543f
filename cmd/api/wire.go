//go:build wireinject
// +build wireinject

// Wire依赖注入配置文件
//
// 教学说明：
// 1. Wire是Google开发的编译期依赖注入工具
// 2. 与运行时反射注入不同，Wire在编译期生成代码
// 3. 优势：零运行时开销、类型安全、编译期检测循环依赖
//
// Wire工作流程：
// Step 1: 编写wire.go（本文件），定义Providers和Injector
// Step 2: 运行 `wire gen ./cmd/api`
// Step 3: Wire生成wire_gen.go，包含完整的依赖创建代码
// Step 4: main.go调用wire_gen.go中的InitializeApp()

package main

import (
	"github.com/gin-gonic/gin"
	"github.com/google/wire"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"gorm.io/gorm"

	appallocation "github.com/xiebiao/allocation/internal/application/allocation"
	"github.com/xiebiao/allocation/internal/infrastructure/config"
	"github.com/xiebiao/allocation/internal/infrastructure/notification"
	"github.com/xiebiao/allocation/internal/infrastructure/persistence/mysql"
	"github.com/xiebiao/allocation/internal/infrastructure/persistence/redis"
	"github.com/xiebiao/allocation/internal/interface/http/handler"
	"github.com/xiebiao/allocation/internal/interface/http/middleware"
	"github.com/xiebiao/allocation/pkg/jwt"
	"github.com/xiebiao/allocation/pkg/logger"
	"github.com/xiebiao/allocation/pkg/mq"
	"github.com/xiebiao/allocation/pkg/response"
)

// ========================================
// Wire Provider Sets (依赖分组)
// ========================================

// infrastructureSet 基础设施层依赖
// 包含：配置加载、数据库连接、Redis连接、RabbitMQ发布者
var infrastructureSet = wire.NewSet(
	config.Load,        // 加载配置文件
	mysql.NewDB,        // 创建MySQL连接
	redis.NewClient,    // 创建Redis连接
	provideMQPublisher, // 创建RabbitMQ发布者
	provideLogger,      // 创建zap日志器
)

// collaboratorSet 消息处理器的协作方依赖
// 包含：通知发送器、事件发布器、分配读模型
var collaboratorSet = wire.NewSet(
	notification.NewMQSender, // 缺货通知(RabbitMQ)
	redis.NewEventPublisher,  // 对外事件发布(Redis Pub/Sub)
	redis.NewViewStore,       // 分配读模型(Redis Hash)
)

// applicationSet 应用层依赖
// 包含：消息处理器集合、消息总线、工作单元工厂
var applicationSet = wire.NewSet(
	provideHandlers,      // 消息处理器集合(需要从config提取通知地址)
	appallocation.NewBus, // 消息总线
	provideUOWFactory,    // 工作单元工厂(每次分派创建新实例)
)

// middlewareSet 中间件依赖
// 包含：JWT管理器、认证中间件
var middlewareSet = wire.NewSet(
	provideJWTManager,            // JWT管理器（需要从config提取参数）
	middleware.NewAuthMiddleware, // 认证中间件
)

// handlerSet HTTP处理器依赖
var handlerSet = wire.NewSet(
	provideAllocationHandler, // 分配处理器
)

// ========================================
// Custom Providers (自定义Provider)
// ========================================
// 教学说明：
// 有些依赖的构造函数参数不是直接的类型，需要从Config中提取，
// 或者参数是接口类型，需要手动绑定具体实现

// provideLogger 从配置创建zap日志器
func provideLogger(cfg *config.Config) (*zap.Logger, error) {
	return logger.New(logger.Config{
		Level:        cfg.Log.Level,
		Format:       cfg.Log.Format,
		Output:       cfg.Log.Output,
		EnableCaller: cfg.Log.EnableCaller,
	})
}

// provideMQPublisher 从配置创建RabbitMQ发布者
func provideMQPublisher(cfg *config.Config) (*mq.Publisher, error) {
	return mq.NewPublisher(cfg.MQ.URL, cfg.MQ.Exchange, "topic")
}

// provideJWTManager 从配置创建JWT管理器
func provideJWTManager(cfg *config.Config) *jwt.Manager {
	return jwt.NewManager(cfg.JWT.Secret, cfg.JWT.TokenExpire)
}

// provideHandlers 组装消息处理器集合
// 教学要点：NewHandlers的参数是接口类型(NotificationSender等)，
// Wire无法自动把*notification.MQSender绑定到接口，所以手动组装
func provideHandlers(
	cfg *config.Config,
	notifier *notification.MQSender,
	publisher *redis.EventPublisher,
	views *redis.ViewStore,
) *appallocation.Handlers {
	return appallocation.NewHandlers(notifier, publisher, views, cfg.Notification.Destination)
}

// provideUOWFactory 工作单元工厂
// 每次分派都要独立的事务边界与事件收集,不能共享单个工作单元
func provideUOWFactory(db *gorm.DB) func() appallocation.UnitOfWork {
	return func() appallocation.UnitOfWork {
		return mysql.NewUnitOfWork(db)
	}
}

// provideAllocationHandler 创建分配HTTP处理器
func provideAllocationHandler(
	bus *appallocation.Bus,
	newUOW func() appallocation.UnitOfWork,
	views *redis.ViewStore,
) *handler.AllocationHandler {
	return handler.NewAllocationHandler(bus, newUOW, views)
}

// provideGinEngine 创建并配置Gin引擎
func provideGinEngine(
	cfg *config.Config,
	allocationHandler *handler.AllocationHandler,
	authMiddleware *middleware.AuthMiddleware,
) *gin.Engine {
	// 设置运行模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.Metrics())

	// 健康检查
	r.GET("/ping", func(c *gin.Context) {
		response.Success(c, gin.H{
			"message": "pong",
			"status":  "healthy",
		})
	})

	// Prometheus指标
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Swagger文档路由
	// 访问 http://localhost:8080/swagger/index.html 查看API文档
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// API路由组(内部服务调用,全部需要服务凭证)
	v1 := r.Group("/api/v1")
	v1.Use(authMiddleware.RequireAuth())
	{
		batches := v1.Group("/batches")
		{
			batches.POST("", allocationHandler.CreateBatch)
			batches.PATCH("/:ref", allocationHandler.ChangeBatchQuantity)
		}

		allocations := v1.Group("/allocations")
		{
			allocations.POST("", allocationHandler.Allocate)
			allocations.GET("/:order_id", allocationHandler.GetOrderAllocations)
		}
	}

	return r
}

// ========================================
// Wire Injector (依赖注入器)
// ========================================

// InitializeApp 初始化整个应用
// 返回：配置好的Gin引擎
func InitializeApp() (*gin.Engine, error) {
	wire.Build(
		infrastructureSet,
		collaboratorSet,
		applicationSet,
		middlewareSet,
		handlerSet,
		provideGinEngine,
	)

	// 返回值是占位符，实际运行时由wire_gen.go中的生成代码替代
	return nil, nil
}

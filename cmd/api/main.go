package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

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
	"github.com/xiebiao/allocation/pkg/tracing"
)

// main 主程序入口
// 说明：手动依赖注入（wire.go提供Wire版本,可用 wire gen ./cmd/api 生成）
func main() {
	// 1. 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	fmt.Printf("✓ 配置加载成功\n")
	fmt.Printf("  - 服务端口: %d\n", cfg.Server.Port)
	fmt.Printf("  - 运行模式: %s\n", cfg.Server.Mode)
	fmt.Printf("  - 数据库: %s:%d/%s\n", cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName)
	fmt.Printf("  - Redis: %s\n", cfg.Redis.Addr())

	// 2. 初始化日志
	zapLogger, err := logger.New(logger.Config{
		Level:        cfg.Log.Level,
		Format:       cfg.Log.Format,
		Output:       cfg.Log.Output,
		EnableCaller: cfg.Log.EnableCaller,
	})
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer zapLogger.Sync()

	// 3. 初始化分布式追踪(可选)
	if cfg.Tracing.Enabled {
		shutdown, err := tracing.InitTracer("allocation-api", cfg.Tracing.CollectorURL)
		if err != nil {
			log.Fatalf("初始化追踪失败: %v", err)
		}
		defer shutdown(context.Background())
	}

	// 4. 初始化数据库连接
	db, err := mysql.NewDB(cfg)
	if err != nil {
		log.Fatalf("初始化数据库失败: %v", err)
	}

	// 5. 初始化Redis连接
	redisClient, err := redis.NewClient(cfg)
	if err != nil {
		log.Fatalf("初始化Redis失败: %v", err)
	}

	// 6. 初始化RabbitMQ发布者(缺货通知通道)
	mqPublisher, err := mq.NewPublisher(cfg.MQ.URL, cfg.MQ.Exchange, "topic")
	if err != nil {
		log.Fatalf("初始化RabbitMQ失败: %v", err)
	}
	defer mqPublisher.Close()

	// 7. 依赖注入（手动组装）
	// 学习要点：依赖注入链
	// 协作方(通知/发布/视图) ← Handlers ← Bus ← HTTP Handler

	// 基础设施层
	notifier := notification.NewMQSender(mqPublisher)
	eventPublisher := redis.NewEventPublisher(redisClient)
	viewStore := redis.NewViewStore(redisClient)
	jwtManager := jwt.NewManager(cfg.JWT.Secret, cfg.JWT.TokenExpire)

	// 应用层
	handlers := appallocation.NewHandlers(notifier, eventPublisher, viewStore, cfg.Notification.Destination)
	bus := appallocation.NewBus(handlers, zapLogger)

	// 工作单元按请求创建:每次分派都要独立的事务边界与事件收集
	newUOW := func() appallocation.UnitOfWork {
		return mysql.NewUnitOfWork(db)
	}

	// 接口层
	allocationHandler := handler.NewAllocationHandler(bus, newUOW, viewStore)
	authMiddleware := middleware.NewAuthMiddleware(jwtManager)

	// 8. 初始化Gin引擎
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()
	r.Use(middleware.Metrics())

	// 9. 注册路由
	registerRoutes(r, allocationHandler, authMiddleware)

	// 10. 启动服务
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	fmt.Printf("\n🚀 服务启动成功！\n")
	fmt.Printf("   访问地址: http://localhost%s\n", addr)
	fmt.Printf("   健康检查: http://localhost%s/ping\n", addr)
	fmt.Printf("   创建批次: POST http://localhost%s/api/v1/batches\n", addr)
	fmt.Printf("   分配订单行: POST http://localhost%s/api/v1/allocations\n", addr)
	fmt.Printf("   调整批次数量: PATCH http://localhost%s/api/v1/batches/:ref\n", addr)
	fmt.Printf("   查询订单分配: GET http://localhost%s/api/v1/allocations/:order_id\n", addr)
	fmt.Printf("\n按Ctrl+C停止服务\n\n")

	zapLogger.Info("服务启动", zap.String("addr", addr))
	if err := r.Run(addr); err != nil {
		log.Fatalf("启动服务失败: %v", err)
	}
}

// registerRoutes 注册路由
func registerRoutes(r *gin.Engine, allocationHandler *handler.AllocationHandler, authMiddleware *middleware.AuthMiddleware) {
	// 健康检查
	r.GET("/ping", func(c *gin.Context) {
		response.Success(c, gin.H{
			"message": "pong",
			"status":  "healthy",
		})
	})

	// Prometheus指标
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Swagger文档
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
}

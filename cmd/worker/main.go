package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	appallocation "github.com/xiebiao/allocation/internal/application/allocation"
	"github.com/xiebiao/allocation/internal/domain/allocation"
	"github.com/xiebiao/allocation/internal/infrastructure/config"
	"github.com/xiebiao/allocation/internal/infrastructure/notification"
	"github.com/xiebiao/allocation/internal/infrastructure/persistence/mysql"
	"github.com/xiebiao/allocation/internal/infrastructure/persistence/redis"
	"github.com/xiebiao/allocation/pkg/logger"
	"github.com/xiebiao/allocation/pkg/mq"
)

// changeBatchQuantityMessage change_batch_quantity频道的消息格式
// 字段名是与采购系统的约定,勿改动
type changeBatchQuantityMessage struct {
	BatchRef string `json:"batchref"`
	Qty      int    `json:"qty"`
}

// main 批次数量调整Worker
// 设计说明:
// 1. 订阅Redis频道change_batch_quantity,把外部指令翻译成命令交给消息总线
// 2. 与HTTP进程共用同一套应用层:总线、处理器、工作单元完全一致,
//    只是命令的入口不同(HTTP请求 vs Pub/Sub消息)
// 3. 单条消息处理失败只记录日志,不中断订阅循环
func main() {
	// 1. 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

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

	// 3. 初始化数据库与Redis连接
	db, err := mysql.NewDB(cfg)
	if err != nil {
		log.Fatalf("初始化数据库失败: %v", err)
	}

	redisClient, err := redis.NewClient(cfg)
	if err != nil {
		log.Fatalf("初始化Redis失败: %v", err)
	}

	// 4. 初始化RabbitMQ发布者(缺货通知通道)
	mqPublisher, err := mq.NewPublisher(cfg.MQ.URL, cfg.MQ.Exchange, "topic")
	if err != nil {
		log.Fatalf("初始化RabbitMQ失败: %v", err)
	}
	defer mqPublisher.Close()

	// 5. 组装应用层(与cmd/api完全相同的依赖链)
	notifier := notification.NewMQSender(mqPublisher)
	eventPublisher := redis.NewEventPublisher(redisClient)
	viewStore := redis.NewViewStore(redisClient)

	handlers := appallocation.NewHandlers(notifier, eventPublisher, viewStore, cfg.Notification.Destination)
	bus := appallocation.NewBus(handlers, zapLogger)

	// 6. 订阅频道
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pubsub := redisClient.Subscribe(ctx, appallocation.ChannelChangeBatchQuantity)
	defer pubsub.Close()

	fmt.Printf("✓ Worker启动成功,订阅频道: %s\n", appallocation.ChannelChangeBatchQuantity)
	zapLogger.Info("Worker启动", zap.String("channel", appallocation.ChannelChangeBatchQuantity))

	// 7. 优雅退出:收到SIGINT/SIGTERM时停止订阅
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		zapLogger.Info("收到退出信号,Worker停止")
		cancel()
	}()

	// 8. 消费循环
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}

			var payload changeBatchQuantityMessage
			if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
				zapLogger.Error("消息格式错误", zap.String("payload", msg.Payload), zap.Error(err))
				continue
			}

			cmd := allocation.ChangeBatchQuantity{
				BatchRef: payload.BatchRef,
				Qty:      payload.Qty,
			}
			if _, err := bus.Handle(ctx, cmd, mysql.NewUnitOfWork(db)); err != nil {
				// 处理失败只记录日志,下一条消息继续
				zapLogger.Error("批次数量调整失败",
					zap.String("batch_ref", payload.BatchRef),
					zap.Int("qty", payload.Qty),
					zap.Error(err))
			}
		}
	}
}

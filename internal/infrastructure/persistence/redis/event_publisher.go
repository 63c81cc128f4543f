package redis

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/xiebiao/allocation/internal/domain/allocation"
	apperrors "github.com/xiebiao/allocation/pkg/errors"
)

// EventPublisher 事件发布器(Redis Pub/Sub)
// 设计说明:
// 1. 用Redis频道向外部服务广播领域事件,订阅方自行决定如何消费
// 2. 领域事件不带序列化标签,这里显式映射成线上格式,
//    字段名是对外契约的一部分,不能随领域模型重命名而变化
type EventPublisher struct {
	client *redis.Client
}

// NewEventPublisher 创建事件发布器
func NewEventPublisher(client *redis.Client) *EventPublisher {
	return &EventPublisher{client: client}
}

// allocatedPayload line_allocated频道的消息格式
type allocatedPayload struct {
	OrderID  string `json:"orderid"`
	SKU      string `json:"sku"`
	Qty      int    `json:"qty"`
	BatchRef string `json:"batchref"`
}

// deallocatedPayload 解除分配的消息格式
type deallocatedPayload struct {
	OrderID string `json:"orderid"`
	SKU     string `json:"sku"`
	Qty     int    `json:"qty"`
}

// Publish 把事件序列化后发布到指定频道
func (p *EventPublisher) Publish(ctx context.Context, channel string, event allocation.Event) error {
	var payload interface{}
	switch e := event.(type) {
	case allocation.Allocated:
		payload = allocatedPayload{
			OrderID:  e.OrderID,
			SKU:      e.SKU,
			Qty:      e.Qty,
			BatchRef: e.BatchRef,
		}
	case allocation.Deallocated:
		payload = deallocatedPayload{
			OrderID: e.OrderID,
			SKU:     e.SKU,
			Qty:     e.Qty,
		}
	default:
		payload = event
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return apperrors.Wrap(err, "序列化事件失败")
	}

	if err := p.client.Publish(ctx, channel, data).Err(); err != nil {
		return &apperrors.AppError{Code: apperrors.ErrCodeRedisError, Message: "发布事件失败", Err: err}
	}
	return nil
}

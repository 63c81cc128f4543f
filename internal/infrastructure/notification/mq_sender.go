package notification

import (
	"context"

	apperrors "github.com/xiebiao/allocation/pkg/errors"
	"github.com/xiebiao/allocation/pkg/mq"
)

// RoutingKeyNotification 通知消息的路由键
const RoutingKeyNotification = "notification.out_of_stock"

// notificationMessage 通知消息的线上格式
type notificationMessage struct {
	Destination string `json:"destination"`
	Message     string `json:"message"`
}

// MQSender 通知发送器(RabbitMQ)
// 设计说明:
// 1. 通知走消息队列异步投递,发送失败不影响分配主流程
//    (事件处理器的失败只记录日志,不会中断命令)
// 2. 真正的投递渠道(邮件/短信)由队列另一端的消费者决定,
//    这里只负责把"给谁发什么"可靠地放进队列
type MQSender struct {
	publisher *mq.Publisher
}

// NewMQSender 创建通知发送器
func NewMQSender(publisher *mq.Publisher) *MQSender {
	return &MQSender{publisher: publisher}
}

// Send 发送一条文本通知
func (s *MQSender) Send(ctx context.Context, destination, message string) error {
	msg := notificationMessage{
		Destination: destination,
		Message:     message,
	}
	if err := s.publisher.Publish(ctx, RoutingKeyNotification, msg); err != nil {
		return &apperrors.AppError{Code: apperrors.ErrCodeMQError, Message: "发送通知失败", Err: err}
	}
	return nil
}

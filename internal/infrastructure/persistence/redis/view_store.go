package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/xiebiao/allocation/pkg/errors"
)

// ViewStore 分配读模型(Redis Hash)
// 设计说明:
// 1. 每个订单一个Hash:key=allocations:{orderID},field=sku,value=批次引用号
// 2. 读模型由事件处理器异步维护,与聚合的写路径完全解耦,
//    查询接口只读这里,不触碰MySQL中的聚合数据
// 3. 读模型允许短暂滞后,换来查询路径的低延迟
type ViewStore struct {
	client *redis.Client
}

// NewViewStore 创建读模型存储
func NewViewStore(client *redis.Client) *ViewStore {
	return &ViewStore{client: client}
}

func viewKey(orderID string) string {
	return fmt.Sprintf("allocations:%s", orderID)
}

// AddAllocation 记录订单行的分配结果
func (s *ViewStore) AddAllocation(ctx context.Context, orderID, sku, batchRef string) error {
	if err := s.client.HSet(ctx, viewKey(orderID), sku, batchRef).Err(); err != nil {
		return &apperrors.AppError{Code: apperrors.ErrCodeRedisError, Message: "写入分配视图失败", Err: err}
	}
	return nil
}

// RemoveAllocation 移除订单行的分配记录
func (s *ViewStore) RemoveAllocation(ctx context.Context, orderID, sku string) error {
	if err := s.client.HDel(ctx, viewKey(orderID), sku).Err(); err != nil {
		return &apperrors.AppError{Code: apperrors.ErrCodeRedisError, Message: "删除分配视图失败", Err: err}
	}
	return nil
}

// Allocations 查询某订单的全部分配结果(sku -> 批次引用号)
// 订单不存在时返回空map而不是错误,由调用方决定如何呈现
func (s *ViewStore) Allocations(ctx context.Context, orderID string) (map[string]string, error) {
	result, err := s.client.HGetAll(ctx, viewKey(orderID)).Result()
	if err != nil {
		return nil, &apperrors.AppError{Code: apperrors.ErrCodeRedisError, Message: "查询分配视图失败", Err: err}
	}
	return result, nil
}

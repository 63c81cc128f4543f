package dto

import "time"

// 批次与分配的HTTP数据传输对象
// 设计说明:
// 1. DTO只服务于HTTP边界:参数绑定标签、JSON字段名都留在这一层,
//    领域对象保持纯净
// 2. ETA在线上用"2006-01-02"日期字符串表示,空字符串表示现货

// DateLayout ETA的线上日期格式
const DateLayout = "2006-01-02"

// CreateBatchRequest 创建批次请求
type CreateBatchRequest struct {
	Ref string `json:"ref" binding:"required"`
	SKU string `json:"sku" binding:"required"`
	Qty int    `json:"qty" binding:"required,gt=0"`
	ETA string `json:"eta"` // 预计到货日期(2006-01-02),空=现货
}

// ParseETA 解析ETA字段,空字符串返回nil(现货)
func (r *CreateBatchRequest) ParseETA() (*time.Time, error) {
	if r.ETA == "" {
		return nil, nil
	}
	t, err := time.Parse(DateLayout, r.ETA)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// BatchResponse 批次响应
type BatchResponse struct {
	Ref string `json:"ref"`
	SKU string `json:"sku"`
	Qty int    `json:"qty"`
	ETA string `json:"eta,omitempty"`
}

// AllocateRequest 分配订单行请求
type AllocateRequest struct {
	OrderID string `json:"order_id" binding:"required"`
	SKU     string `json:"sku" binding:"required"`
	Qty     int    `json:"qty" binding:"required,gt=0"`
}

// AllocateResponse 分配结果响应
type AllocateResponse struct {
	OrderID  string `json:"order_id"`
	SKU      string `json:"sku"`
	BatchRef string `json:"batch_ref"`
}

// ChangeBatchQuantityRequest 调整批次数量请求
type ChangeBatchQuantityRequest struct {
	Qty int `json:"qty" binding:"gte=0"`
}

// AllocationView 订单行的分配视图
type AllocationView struct {
	SKU      string `json:"sku"`
	BatchRef string `json:"batch_ref"`
}

// OrderAllocationsResponse 订单分配查询响应
type OrderAllocationsResponse struct {
	OrderID     string           `json:"order_id"`
	Allocations []AllocationView `json:"allocations"`
}

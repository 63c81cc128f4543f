package handler

import (
	"sort"

	"github.com/gin-gonic/gin"

	appallocation "github.com/xiebiao/allocation/internal/application/allocation"
	"github.com/xiebiao/allocation/internal/domain/allocation"
	"github.com/xiebiao/allocation/internal/interface/http/dto"
	apperrors "github.com/xiebiao/allocation/pkg/errors"
	"github.com/xiebiao/allocation/pkg/response"
)

// AllocationHandler 分配HTTP处理器
// 设计说明:
// 1. 写路径(创建批次/分配/调整数量)一律封装成命令交给消息总线,
//    HTTP层不直接触碰聚合
// 2. 工作单元按请求创建:每次分派都要独立的事务边界与事件收集
// 3. 查询路径绕过聚合,直接读Redis分配视图
type AllocationHandler struct {
	bus    *appallocation.Bus
	newUOW func() appallocation.UnitOfWork
	views  appallocation.ViewStore
}

// NewAllocationHandler 创建分配处理器
func NewAllocationHandler(bus *appallocation.Bus, newUOW func() appallocation.UnitOfWork, views appallocation.ViewStore) *AllocationHandler {
	return &AllocationHandler{
		bus:    bus,
		newUOW: newUOW,
		views:  views,
	}
}

// CreateBatch 创建批次
// @Summary      创建批次
// @Description  新建一个采购批次(ETA为空表示现货)
// @Tags         批次
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body dto.CreateBatchRequest true "批次信息"
// @Success      200 {object} response.Response{data=dto.BatchResponse}
// @Failure      400 {object} response.Response "参数错误"
// @Failure      409 {object} response.Response "批次引用号已存在"
// @Router       /api/v1/batches [post]
func (h *AllocationHandler) CreateBatch(c *gin.Context) {
	// 1. 参数绑定与验证
	var req dto.CreateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithCode(c, 40900, "参数错误: "+err.Error())
		return
	}

	eta, err := req.ParseETA()
	if err != nil {
		response.ErrorWithCode(c, 40900, "参数错误: eta格式应为"+dto.DateLayout)
		return
	}

	// 2. 封装命令交给消息总线
	cmd := allocation.CreateBatch{
		Ref: req.Ref,
		SKU: req.SKU,
		Qty: req.Qty,
		ETA: eta,
	}
	if _, err := h.bus.Handle(c.Request.Context(), cmd, h.newUOW()); err != nil {
		response.Error(c, err)
		return
	}

	// 3. 构建HTTP响应
	response.Success(c, &dto.BatchResponse{
		Ref: req.Ref,
		SKU: req.SKU,
		Qty: req.Qty,
		ETA: req.ETA,
	})
}

// Allocate 分配订单行
// @Summary      分配订单行
// @Description  为订单行分配批次,返回被分配的批次引用号
// @Tags         分配
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body dto.AllocateRequest true "订单行"
// @Success      200 {object} response.Response{data=dto.AllocateResponse}
// @Failure      400 {object} response.Response "参数错误或SKU无效或缺货"
// @Router       /api/v1/allocations [post]
func (h *AllocationHandler) Allocate(c *gin.Context) {
	// 1. 参数绑定与验证
	var req dto.AllocateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithCode(c, 40900, "参数错误: "+err.Error())
		return
	}

	// 2. 封装命令交给消息总线
	cmd := allocation.Allocate{
		OrderID: req.OrderID,
		SKU:     req.SKU,
		Qty:     req.Qty,
	}
	results, err := h.bus.Handle(c.Request.Context(), cmd, h.newUOW())
	if err != nil {
		response.Error(c, err)
		return
	}

	// 3. 提取分配结果
	// 命令本身成功但没有可用批次时,批次引用号为空,
	// 对HTTP调用方呈现为缺货业务错误
	batchRef := ""
	if len(results) > 0 {
		batchRef, _ = results[0].(string)
	}
	if batchRef == "" {
		response.Error(c, apperrors.ErrOutOfStock)
		return
	}

	response.Success(c, &dto.AllocateResponse{
		OrderID:  req.OrderID,
		SKU:      req.SKU,
		BatchRef: batchRef,
	})
}

// ChangeBatchQuantity 调整批次数量
// @Summary      调整批次数量
// @Description  下调批次采购数量,容量不足时自动解除最早的分配并重新分配
// @Tags         批次
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        ref path string true "批次引用号"
// @Param        request body dto.ChangeBatchQuantityRequest true "调整后的数量"
// @Success      200 {object} response.Response
// @Failure      404 {object} response.Response "批次不存在"
// @Router       /api/v1/batches/{ref} [patch]
func (h *AllocationHandler) ChangeBatchQuantity(c *gin.Context) {
	ref := c.Param("ref")

	var req dto.ChangeBatchQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithCode(c, 40900, "参数错误: "+err.Error())
		return
	}

	cmd := allocation.ChangeBatchQuantity{
		BatchRef: ref,
		Qty:      req.Qty,
	}
	if _, err := h.bus.Handle(c.Request.Context(), cmd, h.newUOW()); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, nil)
}

// GetOrderAllocations 查询订单的分配结果
// @Summary      查询订单分配
// @Description  查询某订单全部订单行的分配结果(读模型)
// @Tags         分配
// @Produce      json
// @Security     BearerAuth
// @Param        order_id path string true "订单号"
// @Success      200 {object} response.Response{data=dto.OrderAllocationsResponse}
// @Failure      404 {object} response.Response "订单没有任何分配记录"
// @Router       /api/v1/allocations/{order_id} [get]
func (h *AllocationHandler) GetOrderAllocations(c *gin.Context) {
	orderID := c.Param("order_id")

	// 查询路径直接读取读模型,不经过聚合
	allocations, err := h.views.Allocations(c.Request.Context(), orderID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if len(allocations) == 0 {
		response.ErrorWithCode(c, apperrors.ErrCodeNotFound, "订单没有任何分配记录")
		return
	}

	// map无序,按SKU排序保证响应稳定
	skus := make([]string, 0, len(allocations))
	for sku := range allocations {
		skus = append(skus, sku)
	}
	sort.Strings(skus)

	views := make([]dto.AllocationView, 0, len(skus))
	for _, sku := range skus {
		views = append(views, dto.AllocationView{SKU: sku, BatchRef: allocations[sku]})
	}

	response.Success(c, &dto.OrderAllocationsResponse{
		OrderID:     orderID,
		Allocations: views,
	})
}

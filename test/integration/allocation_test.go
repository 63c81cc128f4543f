package integration

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 教学说明：分配模块集成测试
//
// 测试场景覆盖：
// 1. 创建批次(需要服务凭证)
// 2. 分配订单行:现货优先、缺货响应
// 3. 批次数量下调触发的自动补单
// 4. 订单分配查询(读模型)
// 5. 认证与参数验证

// TestCreateBatch 测试创建批次
func TestCreateBatch(t *testing.T) {
	RequireServer(t)
	token := ServiceToken(t)

	t.Run("正常创建现货批次", func(t *testing.T) {
		ref := GenerateTestRef("batch")
		sku := GenerateTestSKU("CRUNCHY-ARMCHAIR")
		req := map[string]interface{}{
			"ref": ref,
			"sku": sku,
			"qty": 100,
		}

		resp := PostJSON(t, BaseURL+"/batches", req, token)

		assert.Equal(t, 0, resp.Code, "创建应该成功")

		var data BatchData
		err := json.Unmarshal(resp.Data, &data)
		require.NoError(t, err, "解析响应数据失败")
		assert.Equal(t, ref, data.Ref)
		assert.Equal(t, sku, data.SKU)
		assert.Equal(t, 100, data.Qty)
	})

	t.Run("创建在途批次", func(t *testing.T) {
		req := map[string]interface{}{
			"ref": GenerateTestRef("shipment"),
			"sku": GenerateTestSKU("ELEGANT-LAMP"),
			"qty": 50,
			"eta": "2026-10-01",
		}

		resp := PostJSON(t, BaseURL+"/batches", req, token)
		assert.Equal(t, 0, resp.Code)
	})

	t.Run("未携带凭证不能创建", func(t *testing.T) {
		req := map[string]interface{}{
			"ref": GenerateTestRef("batch"),
			"sku": GenerateTestSKU("LAMP"),
			"qty": 10,
		}

		resp := PostJSON(t, BaseURL+"/batches", req, "")
		assert.NotEqual(t, 0, resp.Code, "未携带凭证应该失败")
	})

	t.Run("数量必须大于0", func(t *testing.T) {
		req := map[string]interface{}{
			"ref": GenerateTestRef("batch"),
			"sku": GenerateTestSKU("LAMP"),
			"qty": 0,
		}

		resp := PostJSON(t, BaseURL+"/batches", req, token)
		assert.NotEqual(t, 0, resp.Code)
	})
}

// TestAllocate 测试分配订单行
func TestAllocate(t *testing.T) {
	RequireServer(t)
	token := ServiceToken(t)

	t.Run("现货优先于在途批次", func(t *testing.T) {
		sku := GenerateTestSKU("RETRO-CLOCK")
		warehouseRef := GenerateTestRef("in-stock")
		shipmentRef := GenerateTestRef("shipment")
		CreateTestBatch(t, token, shipmentRef, sku, 100, "2026-10-01")
		CreateTestBatch(t, token, warehouseRef, sku, 100, "")

		req := map[string]interface{}{
			"order_id": GenerateTestRef("order"),
			"sku":      sku,
			"qty":      10,
		}
		resp := PostJSON(t, BaseURL+"/allocations", req, token)

		assert.Equal(t, 0, resp.Code, "分配应该成功: %s", resp.Message)

		var data AllocationData
		err := json.Unmarshal(resp.Data, &data)
		require.NoError(t, err)
		assert.Equal(t, warehouseRef, data.BatchRef, "应该优先消耗仓库现货")
	})

	t.Run("缺货返回业务错误", func(t *testing.T) {
		sku := GenerateTestSKU("SMALL-FORK")
		CreateTestBatch(t, token, GenerateTestRef("batch"), sku, 5, "")

		req := map[string]interface{}{
			"order_id": GenerateTestRef("order"),
			"sku":      sku,
			"qty":      10,
		}
		resp := PostJSON(t, BaseURL+"/allocations", req, token)

		assert.Equal(t, 40001, resp.Code, "缺货应该返回对应的业务错误码")
	})

	t.Run("无效SKU", func(t *testing.T) {
		req := map[string]interface{}{
			"order_id": GenerateTestRef("order"),
			"sku":      GenerateTestSKU("NONEXISTENT"),
			"qty":      10,
		}
		resp := PostJSON(t, BaseURL+"/allocations", req, token)

		assert.Equal(t, 40002, resp.Code, "不存在的SKU应该返回无效SKU错误码")
	})
}

// TestChangeBatchQuantity 测试批次数量下调与自动补单
func TestChangeBatchQuantity(t *testing.T) {
	RequireServer(t)
	token := ServiceToken(t)

	sku := GenerateTestSKU("INDIFFERENT-TABLE")
	batch1 := GenerateTestRef("batch1")
	batch2 := GenerateTestRef("batch2")
	orderID := GenerateTestRef("order")

	// 现货50 + 在途50,订单行20落在现货上
	CreateTestBatch(t, token, batch1, sku, 50, "")
	CreateTestBatch(t, token, batch2, sku, 50, "2026-10-01")

	allocResp := PostJSON(t, BaseURL+"/allocations", map[string]interface{}{
		"order_id": orderID,
		"sku":      sku,
		"qty":      20,
	}, token)
	require.Equal(t, 0, allocResp.Code)

	var allocData AllocationData
	require.NoError(t, json.Unmarshal(allocResp.Data, &allocData))
	require.Equal(t, batch1, allocData.BatchRef)

	// 下调batch1到10,订单行被挤出并自动补单到batch2
	patchResp := PatchJSON(t, BaseURL+"/batches/"+batch1, map[string]interface{}{"qty": 10}, token)
	require.Equal(t, 0, patchResp.Code, "数量调整失败: %s", patchResp.Message)

	// 读模型应该看到迁移后的分配
	queryResp := GetJSON(t, BaseURL+"/allocations/"+orderID, token)
	require.Equal(t, 0, queryResp.Code)

	var queryData OrderAllocationsData
	require.NoError(t, json.Unmarshal(queryResp.Data, &queryData))
	require.Len(t, queryData.Allocations, 1)
	assert.Equal(t, sku, queryData.Allocations[0].SKU)
	assert.Equal(t, batch2, queryData.Allocations[0].BatchRef, "被挤出的订单行应该落到下一个批次")
}

// TestGetOrderAllocations 测试订单分配查询
func TestGetOrderAllocations(t *testing.T) {
	RequireServer(t)
	token := ServiceToken(t)

	t.Run("查询已分配的订单", func(t *testing.T) {
		sku := GenerateTestSKU("POSTER")
		ref := GenerateTestRef("batch")
		orderID := GenerateTestRef("order")
		CreateTestBatch(t, token, ref, sku, 100, "")

		allocResp := PostJSON(t, BaseURL+"/allocations", map[string]interface{}{
			"order_id": orderID,
			"sku":      sku,
			"qty":      10,
		}, token)
		require.Equal(t, 0, allocResp.Code)

		resp := GetJSON(t, BaseURL+"/allocations/"+orderID, token)
		assert.Equal(t, 0, resp.Code)

		var data OrderAllocationsData
		require.NoError(t, json.Unmarshal(resp.Data, &data))
		assert.Equal(t, orderID, data.OrderID)
		require.Len(t, data.Allocations, 1)
		assert.Equal(t, ref, data.Allocations[0].BatchRef)
	})

	t.Run("查询没有分配记录的订单", func(t *testing.T) {
		resp := GetJSON(t, BaseURL+"/allocations/"+GenerateTestRef("unknown-order"), token)
		assert.Equal(t, 40400, resp.Code, "没有分配记录应该返回404错误码")
	})
}

package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xiebiao/allocation/pkg/jwt"
)

// 教学说明：测试辅助工具
// 这个文件包含集成测试的通用辅助函数，遵循DRY原则（Don't Repeat Yourself）
// 将重复的代码（HTTP请求、JSON解析、凭证生成）封装成可复用的函数
//
// 集成测试需要完整的运行环境(API进程+MySQL+Redis+RabbitMQ),
// 服务不可达时自动跳过,不污染单元测试结果

const (
	// ServerURL 服务地址
	ServerURL = "http://localhost:8080"
	// BaseURL API基础URL
	BaseURL = ServerURL + "/api/v1"
	// Timeout HTTP请求超时时间
	Timeout = 10 * time.Second

	// devSecret 与config/config.yaml中的开发密钥一致
	devSecret = "dev-secret-change-me-in-production"
)

// Response 统一响应结构
type Response struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// BatchData 批次响应数据
type BatchData struct {
	Ref string `json:"ref"`
	SKU string `json:"sku"`
	Qty int    `json:"qty"`
	ETA string `json:"eta"`
}

// AllocationData 分配响应数据
type AllocationData struct {
	OrderID  string `json:"order_id"`
	SKU      string `json:"sku"`
	BatchRef string `json:"batch_ref"`
}

// OrderAllocationsData 订单分配查询响应数据
type OrderAllocationsData struct {
	OrderID     string `json:"order_id"`
	Allocations []struct {
		SKU      string `json:"sku"`
		BatchRef string `json:"batch_ref"`
	} `json:"allocations"`
}

// RequireServer 检查服务是否可达,不可达时跳过测试
func RequireServer(t *testing.T) {
	t.Helper()
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(ServerURL + "/ping")
	if err != nil {
		t.Skipf("服务不可达,跳过集成测试: %v", err)
	}
	resp.Body.Close()
}

// ServiceToken 为测试生成服务凭证Token
func ServiceToken(t *testing.T) string {
	t.Helper()
	manager := jwt.NewManager(devSecret, time.Hour)
	token, err := manager.GenerateToken("integration-test")
	require.NoError(t, err, "生成测试Token失败")
	return token
}

// doJSON 发送带JSON体的请求并解析响应
func doJSON(t *testing.T, method, url string, data interface{}, token string) *Response {
	t.Helper()

	var body io.Reader
	if data != nil {
		jsonData, err := json.Marshal(data)
		require.NoError(t, err, "JSON序列化失败")
		body = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err, "创建HTTP请求失败")

	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: Timeout}
	resp, err := client.Do(req)
	require.NoError(t, err, "发送HTTP请求失败")
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "读取响应体失败")

	var result Response
	err = json.Unmarshal(raw, &result)
	require.NoError(t, err, "解析JSON响应失败: %s", string(raw))

	return &result
}

// PostJSON 发送POST请求并解析JSON响应
func PostJSON(t *testing.T, url string, data interface{}, token string) *Response {
	return doJSON(t, "POST", url, data, token)
}

// PatchJSON 发送PATCH请求并解析JSON响应
func PatchJSON(t *testing.T, url string, data interface{}, token string) *Response {
	return doJSON(t, "PATCH", url, data, token)
}

// GetJSON 发送GET请求并解析JSON响应
func GetJSON(t *testing.T, url string, token string) *Response {
	return doJSON(t, "GET", url, nil, token)
}

// GenerateTestSKU 生成唯一的测试SKU
//
// 教学说明：
// 使用时间戳确保唯一性，避免测试重复运行时与历史数据冲突
func GenerateTestSKU(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

// GenerateTestRef 生成唯一的批次引用号
func GenerateTestRef(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

// CreateTestBatch 创建测试批次
//
// 教学说明：
// 封装了批次创建流程，eta为空字符串表示现货
func CreateTestBatch(t *testing.T, token, ref, sku string, qty int, eta string) {
	t.Helper()
	req := map[string]interface{}{
		"ref": ref,
		"sku": sku,
		"qty": qty,
	}
	if eta != "" {
		req["eta"] = eta
	}

	resp := PostJSON(t, BaseURL+"/batches", req, token)
	require.Equal(t, 0, resp.Code, "创建批次失败: %s", resp.Message)
}

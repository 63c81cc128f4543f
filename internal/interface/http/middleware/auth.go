package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xiebiao/allocation/pkg/jwt"
	"github.com/xiebiao/allocation/pkg/response"
)

// AuthMiddleware JWT认证中间件
// 设计说明：
// 1. 从Header提取Token
// 2. 验证Token有效性
// 3. 将调用方服务名注入Context
// 调用方是内部服务而非终端用户,所以没有登出/黑名单机制,
// Token作废依靠较短的有效期
type AuthMiddleware struct {
	jwtManager *jwt.Manager
}

// NewAuthMiddleware 创建认证中间件
func NewAuthMiddleware(jwtManager *jwt.Manager) *AuthMiddleware {
	return &AuthMiddleware{jwtManager: jwtManager}
}

// RequireAuth 要求携带服务凭证
// 使用方式：
//
//	authorized := r.Group("/api/v1")
//	authorized.Use(authMiddleware.RequireAuth())
//	authorized.POST("/allocations", handler.Allocate)
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. 从Header提取Token
		// 格式：Authorization: Bearer <token>
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.ErrorWithCode(c, 40100, "请先提供访问令牌")
			c.Abort()
			return
		}

		// 2. 解析Token格式
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.ErrorWithCode(c, 40101, "Token格式错误")
			c.Abort()
			return
		}

		// 3. 验证Token并解析Claims
		claims, err := m.jwtManager.ParseToken(parts[1])
		if err != nil {
			response.Error(c, err) // 自动处理ErrTokenExpired、ErrInvalidToken
			c.Abort()
			return
		}

		// 4. 将调用方信息注入到Context（后续Handler可以使用）
		c.Set("service", claims.Service)

		c.Next()
	}
}

// GetService 从Context获取调用方服务名(供Handler使用)
func GetService(c *gin.Context) string {
	if v, ok := c.Get("service"); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

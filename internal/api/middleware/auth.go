package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/isp-backoffice/internal/api/response"
	"github.com/isp-backoffice/internal/model"
	"github.com/isp-backoffice/internal/service"
)

// gin 上下文中保存的登录信息
const (
	ContextUserID = "userID"
	ContextRole   = "role"
)

// Authenticate 校验 Authorization: Bearer <token>, 用户停用后旧令牌立即失效
func Authenticate(auth *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			response.Unauthorized(c, "缺少访问令牌")
			return
		}
		user, err := auth.Authenticate(c.Request.Context(), strings.TrimSpace(token))
		if err != nil {
			_ = c.Error(err).SetType(gin.ErrorTypePrivate)
			response.Unauthorized(c, "访问令牌无效或已过期")
			return
		}
		c.Set(ContextUserID, user.ID)
		c.Set(ContextRole, user.Role)
		c.Next()
	}
}

// RequireAdmin 必须在 Authenticate 之后使用
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ContextRole) != model.RoleAdmin {
			response.Forbidden(c)
			return
		}
		c.Next()
	}
}

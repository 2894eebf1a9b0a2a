package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/isp-backoffice/internal/api/response"
	"github.com/isp-backoffice/internal/dto"
	"github.com/isp-backoffice/internal/service"
)

type AuthHandler struct {
	svc *service.AuthService
}

func NewAuthHandler(svc *service.AuthService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

// Login 邮箱密码换取访问令牌
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "", err)
		return
	}
	token, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Ok(c, dto.LoginResponse{
		Token:     token.Value,
		ExpiresAt: token.ExpiresAt,
		User:      dto.ToUserResponse(token.User),
	})
}

// Me 当前登录用户
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	u, err := h.svc.GetUser(c.Request.Context(), currentUserID(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Ok(c, dto.ToUserResponse(u))
}

// @Router /users [get]
func (h *AuthHandler) GetUsers(c *gin.Context) {
	var req dto.PaginationRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "分页参数错误", err)
		return
	}
	result, err := h.svc.GetAllUsers(c.Request.Context(), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Page(c, result, dto.MapList(result.Items, dto.ToUserResponse))
}

// @Router /users [post]
func (h *AuthHandler) CreateUser(c *gin.Context) {
	var req dto.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "", err)
		return
	}
	u, err := h.svc.CreateUser(c.Request.Context(), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, "创建用户成功", dto.ToUserResponse(u))
}

// SetActive 启用或停用用户, 不能停用自己
// @Router /users/{id}/active [put]
func (h *AuthHandler) SetActive(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.SetUserActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "", err)
		return
	}
	if id == currentUserID(c) && !*req.Active {
		response.FailConflict(c, "不能停用当前登录的用户")
		return
	}
	u, err := h.svc.SetActive(c.Request.Context(), id, *req.Active)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OkWithMessage(c, "更新成功", dto.ToUserResponse(u))
}

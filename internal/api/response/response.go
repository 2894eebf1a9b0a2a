package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/isp-backoffice/internal/service"
)

// Response 统一的JSON响应结构体
type Response struct {
	Code int         `json:"code"`           // 业务状态码 (0 表示成功)
	Msg  string      `json:"msg"`            // 响应消息
	Data interface{} `json:"data,omitempty"` // 响应数据, 为 nil 时省略
}

// 业务状态码
const (
	SuccessCode        = 0
	ErrorCode          = 1
	NotFoundCode       = 404
	ValidationCode     = 400
	ConflictCode       = 409
	UnauthorizedCode   = 401
	PaymentDeclineCode = 402
	UpstreamCode       = 502
)

func successResponse(c *gin.Context, status int, msg string, data interface{}) {
	c.JSON(status, Response{
		Code: SuccessCode,
		Msg:  msg,
		Data: data,
	})
}

func errorResponse(c *gin.Context, httpStatus int, code int, msg string) {
	c.AbortWithStatusJSON(httpStatus, Response{
		Code: code,
		Msg:  msg,
	})
}

// --- 对外暴露的辅助函数 ---

// Ok 通常用于成功返回数据
func Ok(c *gin.Context, data interface{}) {
	successResponse(c, http.StatusOK, "success", data)
}

// OkWithMessage 用于成功时返回自定义消息
func OkWithMessage(c *gin.Context, msg string, data interface{}) {
	successResponse(c, http.StatusOK, msg, data)
}

// Created 资源创建成功 (HTTP 201)
func Created(c *gin.Context, msg string, data interface{}) {
	successResponse(c, http.StatusCreated, msg, data)
}

// Accepted 异步任务已入队 (HTTP 202)
func Accepted(c *gin.Context, msg string, data interface{}) {
	successResponse(c, http.StatusAccepted, msg, data)
}

// Page 分页响应
func Page[T any](c *gin.Context, result service.PageResult[T], list interface{}) {
	Ok(c, gin.H{
		"total":    result.Total,
		"page":     result.Page.Page,
		"pageSize": result.Page.PageSize,
		"list":     list,
	})
}

// BadRequest 用于处理参数绑定或请求格式错误的响应 (HTTP 400)
func BadRequest(c *gin.Context, msg string, err error) {
	if msg == "" {
		msg = "请求参数错误"
	}
	if err != nil {
		_ = c.Error(err).SetType(gin.ErrorTypePrivate)
		msg = msg + ": " + err.Error()
	}
	errorResponse(c, http.StatusBadRequest, ValidationCode, msg)
}

// Unauthorized 未登录或令牌无效 (HTTP 401)
func Unauthorized(c *gin.Context, msg string) {
	errorResponse(c, http.StatusUnauthorized, UnauthorizedCode, msg)
}

// Forbidden 权限不足 (HTTP 403)
func Forbidden(c *gin.Context) {
	errorResponse(c, http.StatusForbidden, http.StatusForbidden, "权限不足")
}

// NotFound 用于处理资源未找到的响应 (HTTP 404)
func NotFound(c *gin.Context) {
	errorResponse(c, http.StatusNotFound, NotFoundCode, "资源未找到")
}

// FailConflict 资源冲突 (HTTP 409)
func FailConflict(c *gin.Context, msg string) {
	errorResponse(c, http.StatusConflict, ConflictCode, msg)
}

// ServerError 用于处理服务器内部错误的响应 (HTTP 500)
func ServerError(c *gin.Context, err error) {
	if err != nil {
		// 原始错误只写日志, 不返回给调用方
		_ = c.Error(err).SetType(gin.ErrorTypePrivate)
	}
	errorResponse(c, http.StatusInternalServerError, ErrorCode, "服务器内部错误")
}

// FromError 按业务层哨兵错误映射 HTTP 状态码
func FromError(c *gin.Context, err error) {
	var status, code int
	switch {
	case errors.Is(err, service.ErrNotFound):
		status, code = http.StatusNotFound, NotFoundCode
	case errors.Is(err, service.ErrValidation):
		status, code = http.StatusBadRequest, ValidationCode
	case errors.Is(err, service.ErrConflict), errors.Is(err, service.ErrInvalidState):
		status, code = http.StatusConflict, ConflictCode
	case errors.Is(err, service.ErrUnauthorized):
		status, code = http.StatusUnauthorized, UnauthorizedCode
	case errors.Is(err, service.ErrPaymentDeclined):
		status, code = http.StatusPaymentRequired, PaymentDeclineCode
	case errors.Is(err, service.ErrUpstream):
		status, code = http.StatusBadGateway, UpstreamCode
	case errors.Is(err, service.ErrNotImplemented):
		status, code = http.StatusNotImplemented, http.StatusNotImplemented
	default:
		ServerError(c, err)
		return
	}
	_ = c.Error(err).SetType(gin.ErrorTypePrivate)
	errorResponse(c, status, code, err.Error())
}

package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// 业务层统一的哨兵错误, handler 据此映射 HTTP 状态码
var (
	ErrNotFound       = errors.New("资源未找到")
	ErrConflict       = errors.New("资源冲突")
	ErrValidation     = errors.New("参数校验失败")
	ErrInvalidState   = errors.New("当前状态不允许该操作")
	ErrUnauthorized   = errors.New("认证失败")
	ErrNotImplemented = errors.New("功能未实现")
	// ErrPaymentDeclined 支付网关拒绝扣款
	ErrPaymentDeclined = errors.New("支付被拒绝")
	// ErrUpstream 注册商或主机面板调用失败
	ErrUpstream = errors.New("外部服务调用失败")
)

func notFound(what string, id interface{}) error {
	return fmt.Errorf("%s %v: %w", what, id, ErrNotFound)
}

func validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func conflictf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

func invalidStatef(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, fmt.Sprintf(format, args...))
}

// findByID 封装 First, 将 gorm.ErrRecordNotFound 转为 ErrNotFound
func findByID(db *gorm.DB, dest interface{}, id uint, what string) error {
	if err := db.First(dest, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound(what, id)
		}
		return err
	}
	return nil
}

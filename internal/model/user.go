package model

import (
	"time"

	"gorm.io/gorm"
)

const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

// User 后台操作员账号
type User struct {
	gorm.Model
	Email        string `gorm:"uniqueIndex;size:255;not null;comment:登录邮箱"`
	PasswordHash string `gorm:"size:255;not null"`
	Name         string `gorm:"size:255"`
	Role         string `gorm:"size:20;not null;comment:角色 (admin, staff)"`
	Active       bool
	LastLoginAt  *time.Time
}

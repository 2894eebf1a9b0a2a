package model

import (
	"time"

	"gorm.io/gorm"
)

const (
	EmailStatusQueued = "queued"
	EmailStatusSent   = "sent"
	EmailStatusFailed = "failed"
)

// QueuedEmail 待发送的邮件, 由 worker 异步投递
type QueuedEmail struct {
	gorm.Model
	CustomerID uint   `gorm:"index"`
	To         string `gorm:"size:255;not null"`
	Subject    string `gorm:"size:255;not null"`
	Body       string `gorm:"type:text;not null"`
	Template   string `gorm:"size:50;index"`
	Status     string `gorm:"size:20;index;not null"`
	Attempts   int    `gorm:"not null;default:0"`
	LastError  string `gorm:"type:text"`
	SentAt     *time.Time
}

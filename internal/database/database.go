package database

import (
	"fmt"

	"github.com/isp-backoffice/internal/model"
	"github.com/isp-backoffice/pkg/config"
	"github.com/isp-backoffice/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var db *gorm.DB

// Models 参与自动迁移的全部模型
func Models() []interface{} {
	return []interface{}{
		&model.User{},
		&model.Customer{},
		&model.CustomerPaymentMethod{},
		&model.Currency{},
		&model.TaxRule{},
		&model.NumberSequence{},
		&model.Invoice{},
		&model.InvoiceItem{},
		&model.InvoiceTax{},
		&model.Payment{},
		&model.PaymentIntent{},
		&model.Refund{},
		&model.CreditTransaction{},
		&model.Quote{},
		&model.QuoteItem{},
		&model.Registrar{},
		&model.Tld{},
		&model.RegistrarTldPrice{},
		&model.Domain{},
		&model.DnsZone{},
		&model.DnsRecord{},
		&model.HostingServer{},
		&model.HostingPackage{},
		&model.HostingAccount{},
		&model.HostingEmailAccount{},
		&model.HostingAddonDomain{},
		&model.QueuedEmail{},
	}
}

// Open 只建立连接, 不做迁移
func Open(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	tz := cfg.TimeZone
	if tz == "" {
		tz = "UTC"
	}
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=%s",
		cfg.Host,
		cfg.User,
		cfg.Password,
		cfg.DBName,
		cfg.Port,
		cfg.SSLMode,
		tz,
	)
	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return conn, nil
}

// Migrate 执行自动迁移
func Migrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}

func InitDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	var err error
	db, err = Open(cfg)
	if err != nil {
		return nil, err
	}
	logger.Logger.Info("连接数据库成功", zap.String("host", cfg.Host), zap.String("dbname", cfg.DBName))

	if err = Migrate(db); err != nil {
		return nil, err
	}
	logger.Logger.Info("数据库迁移成功")
	return db, nil
}

func GetDB() *gorm.DB {
	if db == nil {
		panic("数据库未初始化")
	}
	return db
}

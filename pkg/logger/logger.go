package logger

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/isp-backoffice/pkg/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger 在 InitLogger 之前为 Nop, 便于测试时直接使用
var Logger = zap.NewNop()

// InitLogger 按服务名初始化日志, 日志文件为 <path>/<service>.log
func InitLogger(cfg *config.LoggerConfig, service string) error {
	// 解析日志级别
	level := zapcore.InfoLevel
	if err := level.UnmarshalText([]byte(strings.ToLower(cfg.Level))); err != nil {
		level = zapcore.InfoLevel
	}

	writeSyncer := getLogWriter(cfg, service)
	encoder := getEncoder(cfg.Mode)

	var core zapcore.Core
	if strings.ToLower(cfg.Mode) == "dev" {
		consoleEncoder := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
		core = zapcore.NewTee(
			zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stdout), level),
			zapcore.NewCore(encoder, writeSyncer, level),
		)
	} else {
		// 生产环境只写文件
		core = zapcore.NewCore(encoder, writeSyncer, level)
	}

	Logger = zap.New(core, zap.AddCaller(), zap.Fields(zap.String("service", service)))
	zap.ReplaceGlobals(Logger)
	return nil
}

// Sync 刷新缓冲, 进程退出前调用
func Sync() {
	_ = Logger.Sync()
}

func getEncoder(mode string) zapcore.Encoder {
	encCfg := zap.NewProductionEncoderConfig()
	if strings.ToLower(mode) == "dev" {
		encCfg = zap.NewDevelopmentEncoderConfig()
	}
	encCfg.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.Format("2006-01-02 15:04:05"))
	}
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encCfg.EncodeCaller = zapcore.ShortCallerEncoder
	return zapcore.NewConsoleEncoder(encCfg)
}

func getLogWriter(cfg *config.LoggerConfig, service string) zapcore.WriteSyncer {
	dir := cfg.Path
	if dir == "" {
		dir = "log"
	}
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   filepath.Join(dir, service+".log"),
		MaxSize:    cfg.MaxSize,    // MB
		MaxBackups: cfg.MaxBackups, // 备份文件数量
		MaxAge:     cfg.MaxAge,     // 天数
		Compress:   cfg.Compress,   // 是否压缩
	})
}

// admin 是运维用的命令行工具: 迁移数据库, 创建后台用户, 导入种子数据, 手动触发周期任务
package main

import (
	"fmt"
	"os"

	"github.com/isp-backoffice/internal/database"
	"github.com/isp-backoffice/internal/service"
	"github.com/isp-backoffice/pkg/config"
	"github.com/isp-backoffice/pkg/logger"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// cli 持有命令共享的依赖, load/open 可在测试中替换
type cli struct {
	load func() (*config.Config, error)
	open func(*config.DatabaseConfig) (*gorm.DB, error)

	cfg *config.Config
	db  *gorm.DB
}

func newCLI() *cli {
	return &cli{load: config.LoadConfig, open: database.Open}
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "ISP back-office administration",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.load()
			if err != nil {
				return err
			}
			if err := logger.InitLogger(&cfg.Logger, "admin"); err != nil {
				return err
			}
			db, err := c.open(&cfg.Database)
			if err != nil {
				return err
			}
			c.cfg, c.db = cfg, db
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Sync()
		},
	}
	root.AddCommand(
		c.migrateCmd(),
		c.createUserCmd(),
		c.seedCmd(),
		c.enqueueCmd(),
	)
	return root
}

// services 命令行只做同步操作, 不需要队列和网关
func (c *cli) services() *service.Services {
	return service.New(service.Options{
		DB:      c.db,
		Billing: c.cfg.Billing,
		Auth:    c.cfg.Auth,
	})
}

func main() {
	if err := newCLI().rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

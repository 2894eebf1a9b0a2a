package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/isp-backoffice/internal/integration/panel"
	"github.com/isp-backoffice/internal/metrics"
	"github.com/isp-backoffice/internal/model"
	"github.com/isp-backoffice/pkg/logger"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// HostingSyncResult 单台或多台服务器的同步统计
type HostingSyncResult struct {
	Servers int
	Failed  int
	Created int
	Updated int
	Removed int
	Emails  int
	Domains int
}

func (r *HostingSyncResult) add(o *HostingSyncResult) {
	r.Servers += o.Servers
	r.Created += o.Created
	r.Updated += o.Updated
	r.Removed += o.Removed
	r.Emails += o.Emails
	r.Domains += o.Domains
}

// HostingSyncService 将面板上的账号、邮箱和附加域名镜像到本地
type HostingSyncService struct {
	db          *gorm.DB
	clients     PanelClientFactory
	metrics     *metrics.Metrics
	concurrency int
	now         func() time.Time
}

// panelSnapshot 面板侧的一个账号及其邮箱、域名
type panelSnapshot struct {
	account panel.Account
	emails  []panel.EmailAccount
	domains []panel.AddonDomain
}

func (s *HostingSyncService) SyncServer(ctx context.Context, serverID uint) (*HostingSyncResult, error) {
	result, err := s.syncServer(ctx, serverID)
	s.metrics.IncrementSyncRuns("hosting", err)
	return result, err
}

func (s *HostingSyncService) syncServer(ctx context.Context, serverID uint) (*HostingSyncResult, error) {
	db := s.db.WithContext(ctx)
	var srv model.HostingServer
	if err := findByID(db, &srv, serverID, "hosting server"); err != nil {
		return nil, err
	}
	if !srv.Active {
		return nil, invalidStatef("服务器 %s 已停用", srv.Name)
	}
	client, err := s.clients(&srv)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	// 1. 先把面板数据全部拉下来, 不占用事务
	snapshots, err := fetchSnapshots(ctx, client)
	if err != nil {
		return nil, fmt.Errorf("%w: 服务器 %s: %v", ErrUpstream, srv.Name, err)
	}

	// 2. 在一个事务内对比并写入
	result := &HostingSyncResult{Servers: 1}
	now := s.now()
	err = db.Transaction(func(tx *gorm.DB) error {
		var packages []model.HostingPackage
		if err := tx.Where("server_id = ?", srv.ID).Find(&packages).Error; err != nil {
			return err
		}
		planToPackage := make(map[string]uint, len(packages))
		for _, p := range packages {
			planToPackage[p.PanelPlan] = p.ID
		}

		var locals []model.HostingAccount
		if err := tx.Unscoped().Where("server_id = ?", srv.ID).Find(&locals).Error; err != nil {
			return err
		}
		byUsername := make(map[string]*model.HostingAccount, len(locals))
		for i := range locals {
			byUsername[locals[i].Username] = &locals[i]
		}

		seen := make(map[string]bool, len(snapshots))
		for _, snap := range snapshots {
			pa := snap.account
			seen[pa.Username] = true
			status := model.AccountStatusActive
			if pa.Suspended {
				status = model.AccountStatusSuspended
			}
			a, exists := byUsername[pa.Username]
			if !exists {
				a = &model.HostingAccount{ServerID: srv.ID, Username: pa.Username}
			}
			if pkgID, ok := planToPackage[pa.Plan]; ok {
				a.PackageID = pkgID
			}
			a.PrimaryDomain = pa.Domain
			a.Status = status
			a.SuspendReason = pa.SuspendReason
			a.DiskUsedMB = pa.DiskUsedMB
			a.BandwidthUsedMB = pa.BandwidthUsedMB
			a.LastSyncedAt = &now

			switch {
			case !exists:
				if err := tx.Create(a).Error; err != nil {
					return err
				}
				result.Created++
			case a.DeletedAt.Valid:
				// 本地删除过但面板上仍存在, 恢复记录
				a.DeletedAt = gorm.DeletedAt{}
				if err := tx.Unscoped().Save(a).Error; err != nil {
					return err
				}
				result.Created++
			default:
				if err := tx.Save(a).Error; err != nil {
					return err
				}
				result.Updated++
			}
			if err := replaceAccountChildren(tx, a.ID, snap); err != nil {
				return err
			}
			result.Emails += len(snap.emails)
			result.Domains += len(snap.domains)
		}

		// 面板上已不存在的在用账号标记为 removed
		for _, a := range locals {
			if seen[a.Username] || a.DeletedAt.Valid {
				continue
			}
			if a.Status != model.AccountStatusActive && a.Status != model.AccountStatusSuspended {
				continue
			}
			if err := tx.Model(&model.HostingAccount{}).Where("id = ?", a.ID).
				Updates(map[string]interface{}{"status": model.AccountStatusRemoved, "last_synced_at": now}).Error; err != nil {
				return err
			}
			result.Removed++
		}
		return tx.Model(&srv).Update("last_sync_at", now).Error
	})
	if err != nil {
		return nil, err
	}
	logger.Logger.Info("主机同步完成",
		zap.String("server", srv.Name),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("removed", result.Removed),
		zap.Int("emails", result.Emails),
		zap.Int("domains", result.Domains))
	return result, nil
}

func fetchSnapshots(ctx context.Context, client panel.Client) ([]panelSnapshot, error) {
	accounts, err := client.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]panelSnapshot, 0, len(accounts))
	for _, a := range accounts {
		emails, err := client.ListEmailAccounts(ctx, a.Username)
		if err != nil {
			return nil, fmt.Errorf("账号 %s 邮箱: %w", a.Username, err)
		}
		domains, err := client.ListDomains(ctx, a.Username)
		if err != nil {
			return nil, fmt.Errorf("账号 %s 域名: %w", a.Username, err)
		}
		out = append(out, panelSnapshot{account: a, emails: emails, domains: domains})
	}
	return out, nil
}

// replaceAccountChildren 邮箱与附加域名整体替换
func replaceAccountChildren(tx *gorm.DB, accountID uint, snap panelSnapshot) error {
	if err := tx.Where("account_id = ?", accountID).Delete(&model.HostingEmailAccount{}).Error; err != nil {
		return err
	}
	if err := tx.Where("account_id = ?", accountID).Delete(&model.HostingAddonDomain{}).Error; err != nil {
		return err
	}
	if len(snap.emails) > 0 {
		rows := make([]model.HostingEmailAccount, 0, len(snap.emails))
		for _, e := range snap.emails {
			rows = append(rows, model.HostingEmailAccount{AccountID: accountID, Address: e.Address, QuotaMB: e.QuotaMB, UsedMB: e.UsedMB})
		}
		if err := tx.Create(&rows).Error; err != nil {
			return err
		}
	}
	if len(snap.domains) > 0 {
		rows := make([]model.HostingAddonDomain, 0, len(snap.domains))
		for _, d := range snap.domains {
			kind := d.Kind
			if kind == "" {
				kind = model.AddonKindAddon
			}
			rows = append(rows, model.HostingAddonDomain{AccountID: accountID, Domain: d.Domain, Kind: kind})
		}
		if err := tx.Create(&rows).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *HostingSyncService) ActiveServerIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	err := s.db.WithContext(ctx).Model(&model.HostingServer{}).
		Where("active = ?", true).Order("id asc").Pluck("id", &ids).Error
	return ids, err
}

// SyncAll 并发同步所有启用的服务器, 单台失败计入 Failed 并汇总错误
func (s *HostingSyncService) SyncAll(ctx context.Context) (*HostingSyncResult, error) {
	ids, err := s.ActiveServerIDs(ctx)
	if err != nil {
		return nil, err
	}
	var (
		mu    sync.Mutex
		total HostingSyncResult
	)
	p := pool.New().WithErrors().WithContext(ctx).WithMaxGoroutines(s.concurrency)
	for _, id := range ids {
		p.Go(func(ctx context.Context) error {
			res, err := s.SyncServer(ctx, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				total.Servers++
				total.Failed++
				logger.Logger.Error("主机同步失败", zap.Uint("server_id", id), zap.Error(err))
				return fmt.Errorf("server %d: %w", id, err)
			}
			total.add(res)
			return nil
		})
	}
	return &total, p.Wait()
}

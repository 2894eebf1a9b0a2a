// Package seed 从 YAML 文件导入基础配置: 货币, 税率, 注册商与 TLD 价格, 主机服务器与套餐.
// 导入是幂等的, 已存在的记录按名称跳过, TLD 价格按 (注册商, TLD) 覆盖.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/isp-backoffice/internal/dto"
	"github.com/isp-backoffice/internal/model"
	"github.com/isp-backoffice/internal/service"
	tags "github.com/isp-backoffice/internal/validator"
	"github.com/isp-backoffice/pkg/logger"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type File struct {
	Currencies []Currency  `yaml:"currencies"`
	TaxRules   []TaxRule   `yaml:"tax_rules"`
	Registrars []Registrar `yaml:"registrars"`
	Servers    []Server    `yaml:"servers"`
}

type Currency struct {
	Code   string `yaml:"code"`
	Name   string `yaml:"name"`
	Symbol string `yaml:"symbol"`
	// Rate 相对基准货币的汇率, 按 model.RateScale 定点
	Rate int64 `yaml:"rate"`
	Base bool  `yaml:"base"`
}

type TaxRule struct {
	Name     string `yaml:"name"`
	Country  string `yaml:"country"`
	State    string `yaml:"state"`
	Rate     int    `yaml:"rate"`
	Priority int    `yaml:"priority"`
	Compound bool   `yaml:"compound"`
	Reverse  bool   `yaml:"reverse_charge"`
}

type Registrar struct {
	Name     string `yaml:"name"`
	Kind     string `yaml:"kind"`
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"api_key"`
	Tlds     []Tld  `yaml:"tlds"`
}

// Tld 价格为最小货币单位
type Tld struct {
	Extension string `yaml:"extension"`
	Register  int64  `yaml:"register"`
	Renew     int64  `yaml:"renew"`
	Transfer  int64  `yaml:"transfer"`
	Currency  string `yaml:"currency"`
}

type Server struct {
	Name        string    `yaml:"name"`
	Hostname    string    `yaml:"hostname"`
	Panel       string    `yaml:"panel"`
	APIUser     string    `yaml:"api_user"`
	APIToken    string    `yaml:"api_token"`
	Port        int       `yaml:"port"`
	MaxAccounts int       `yaml:"max_accounts"`
	Packages    []Package `yaml:"packages"`
}

type Package struct {
	Name         string `yaml:"name"`
	Plan         string `yaml:"plan"`
	DiskMB       int    `yaml:"disk_mb"`
	BandwidthMB  int    `yaml:"bandwidth_mb"`
	MonthlyPrice int64  `yaml:"monthly_price"`
	Currency     string `yaml:"currency"`
}

// Count 单类记录的导入结果
type Count struct {
	Created int
	Skipped int
}

type Result struct {
	Currencies Count
	TaxRules   Count
	Registrars Count
	Tlds       Count
	// Prices 每次导入都覆盖写入, 只统计 Created
	Prices   Count
	Servers  Count
	Packages Count
}

// Load 解析种子文件, 未知字段视为错误, 空文件返回空配置
func Load(r io.Reader) (*File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("解析种子文件失败: %w", err)
	}
	return &f, nil
}

type seeder struct {
	svc      *service.Services
	validate *validator.Validate
	res      Result
}

// Apply 按依赖顺序导入, 遇到第一个非冲突错误即停止
func Apply(ctx context.Context, svc *service.Services, f *File) (*Result, error) {
	v := validator.New()
	v.SetTagName("binding")
	if err := tags.Register(v); err != nil {
		return nil, err
	}
	s := &seeder{svc: svc, validate: v}

	steps := []struct {
		name string
		run  func(context.Context, *File) error
	}{
		{"currencies", s.currencies},
		{"tax_rules", s.taxRules},
		{"registrars", s.registrars},
		{"servers", s.servers},
	}
	for _, step := range steps {
		if err := step.run(ctx, f); err != nil {
			return &s.res, fmt.Errorf("%s: %w", step.name, err)
		}
	}
	logger.Logger.Info("种子数据导入完成",
		zap.Any("currencies", s.res.Currencies),
		zap.Any("tax_rules", s.res.TaxRules),
		zap.Any("registrars", s.res.Registrars),
		zap.Any("tlds", s.res.Tlds),
		zap.Any("prices", s.res.Prices),
		zap.Any("servers", s.res.Servers),
		zap.Any("packages", s.res.Packages))
	return &s.res, nil
}

func (s *seeder) check(req interface{}) error {
	if err := s.validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", service.ErrValidation, err)
	}
	return nil
}

// collect 逐页取出全部记录
func collect[T any](fetch func(dto.PaginationRequest) (service.PageResult[T], error)) ([]T, error) {
	var all []T
	for page := 1; ; page++ {
		res, err := fetch(dto.PaginationRequest{Page: page, PageSize: 100})
		if err != nil {
			return nil, err
		}
		all = append(all, res.Items...)
		if len(res.Items) == 0 || int64(len(all)) >= res.Total {
			return all, nil
		}
	}
}

func (s *seeder) currencies(ctx context.Context, f *File) error {
	// 基准货币必须先于其它货币创建
	ordered := make([]Currency, 0, len(f.Currencies))
	for _, c := range f.Currencies {
		if c.Base {
			ordered = append(ordered, c)
		}
	}
	for _, c := range f.Currencies {
		if !c.Base {
			ordered = append(ordered, c)
		}
	}
	for _, c := range ordered {
		req := dto.CreateCurrencyRequest{
			Code:         strings.ToUpper(c.Code),
			Name:         c.Name,
			Symbol:       c.Symbol,
			ExchangeRate: c.Rate,
			IsBase:       c.Base,
		}
		if err := s.check(req); err != nil {
			return fmt.Errorf("%s: %w", c.Code, err)
		}
		if _, err := s.svc.Currencies.Create(ctx, req); err != nil {
			if errors.Is(err, service.ErrConflict) {
				s.res.Currencies.Skipped++
				continue
			}
			return fmt.Errorf("%s: %w", c.Code, err)
		}
		s.res.Currencies.Created++
	}
	return nil
}

func taxKey(country, state, name string) string {
	return strings.ToUpper(country) + "|" + strings.ToLower(strings.TrimSpace(state)) + "|" + strings.ToLower(strings.TrimSpace(name))
}

func (s *seeder) taxRules(ctx context.Context, f *File) error {
	if len(f.TaxRules) == 0 {
		return nil
	}
	existing, err := collect(func(p dto.PaginationRequest) (service.PageResult[model.TaxRule], error) {
		return s.svc.Taxes.GetAll(ctx, p, "")
	})
	if err != nil {
		return err
	}
	seen := make(map[string]bool, len(existing))
	for _, r := range existing {
		seen[taxKey(r.Country, r.State, r.Name)] = true
	}
	for _, r := range f.TaxRules {
		key := taxKey(r.Country, r.State, r.Name)
		if seen[key] {
			s.res.TaxRules.Skipped++
			continue
		}
		req := dto.CreateTaxRuleRequest{
			Name:          r.Name,
			Country:       strings.ToUpper(r.Country),
			State:         r.State,
			Rate:          r.Rate,
			Priority:      r.Priority,
			Compound:      r.Compound,
			ReverseCharge: r.Reverse,
		}
		if err := s.check(req); err != nil {
			return fmt.Errorf("%s: %w", r.Name, err)
		}
		if _, err := s.svc.Taxes.Create(ctx, req); err != nil {
			return fmt.Errorf("%s: %w", r.Name, err)
		}
		seen[key] = true
		s.res.TaxRules.Created++
	}
	return nil
}

func (s *seeder) registrars(ctx context.Context, f *File) error {
	if len(f.Registrars) == 0 {
		return nil
	}
	registrars, err := collect(func(p dto.PaginationRequest) (service.PageResult[model.Registrar], error) {
		return s.svc.Registrars.GetAll(ctx, p)
	})
	if err != nil {
		return err
	}
	ids := make(map[string]uint, len(registrars))
	for _, r := range registrars {
		ids[strings.ToLower(r.Name)] = r.ID
	}
	tlds, err := collect(func(p dto.PaginationRequest) (service.PageResult[model.Tld], error) {
		return s.svc.Registrars.GetAllTlds(ctx, p, false)
	})
	if err != nil {
		return err
	}
	tldIDs := make(map[string]uint, len(tlds))
	for _, t := range tlds {
		tldIDs[t.Extension] = t.ID
	}

	for _, r := range f.Registrars {
		id, ok := ids[strings.ToLower(strings.TrimSpace(r.Name))]
		if ok {
			s.res.Registrars.Skipped++
		} else {
			req := dto.CreateRegistrarRequest{Name: r.Name, Kind: r.Kind, APIEndpoint: r.Endpoint, APIKey: r.APIKey}
			if err := s.check(req); err != nil {
				return fmt.Errorf("%s: %w", r.Name, err)
			}
			created, err := s.svc.Registrars.Create(ctx, req)
			if err != nil {
				return fmt.Errorf("%s: %w", r.Name, err)
			}
			id = created.ID
			ids[strings.ToLower(created.Name)] = id
			s.res.Registrars.Created++
		}

		for _, t := range r.Tlds {
			ext := service.NormalizeExtension(t.Extension)
			tldID, ok := tldIDs[ext]
			if ok {
				s.res.Tlds.Skipped++
			} else {
				req := dto.CreateTldRequest{Extension: ext, DefaultRegistrarID: id}
				if err := s.check(req); err != nil {
					return fmt.Errorf("%s: %w", ext, err)
				}
				created, err := s.svc.Registrars.CreateTld(ctx, req)
				if err != nil {
					return fmt.Errorf("%s: %w", ext, err)
				}
				tldID = created.ID
				tldIDs[ext] = tldID
				s.res.Tlds.Created++
			}

			price := dto.TldPriceRequest{
				RegistrarID:   id,
				TldID:         tldID,
				RegisterPrice: t.Register,
				RenewPrice:    t.Renew,
				TransferPrice: t.Transfer,
				Currency:      strings.ToUpper(t.Currency),
			}
			if err := s.check(price); err != nil {
				return fmt.Errorf("%s %s: %w", r.Name, ext, err)
			}
			if _, err := s.svc.Registrars.UpsertPrice(ctx, price); err != nil {
				return fmt.Errorf("%s %s: %w", r.Name, ext, err)
			}
			s.res.Prices.Created++
		}
	}
	return nil
}

func (s *seeder) servers(ctx context.Context, f *File) error {
	if len(f.Servers) == 0 {
		return nil
	}
	servers, err := collect(func(p dto.PaginationRequest) (service.PageResult[model.HostingServer], error) {
		return s.svc.Hosting.GetAllServers(ctx, p)
	})
	if err != nil {
		return err
	}
	ids := make(map[string]uint, len(servers))
	for _, srv := range servers {
		ids[strings.ToLower(srv.Name)] = srv.ID
	}

	for _, srv := range f.Servers {
		id, ok := ids[strings.ToLower(strings.TrimSpace(srv.Name))]
		if ok {
			s.res.Servers.Skipped++
		} else {
			req := dto.CreateHostingServerRequest{
				Name:        srv.Name,
				Hostname:    srv.Hostname,
				PanelType:   srv.Panel,
				APIUser:     srv.APIUser,
				APIToken:    srv.APIToken,
				Port:        srv.Port,
				MaxAccounts: srv.MaxAccounts,
			}
			if err := s.check(req); err != nil {
				return fmt.Errorf("%s: %w", srv.Name, err)
			}
			created, err := s.svc.Hosting.CreateServer(ctx, req)
			if err != nil {
				return fmt.Errorf("%s: %w", srv.Name, err)
			}
			id = created.ID
			ids[strings.ToLower(created.Name)] = id
			s.res.Servers.Created++
		}
		if err := s.packages(ctx, id, srv.Packages); err != nil {
			return fmt.Errorf("%s: %w", srv.Name, err)
		}
	}
	return nil
}

func (s *seeder) packages(ctx context.Context, serverID uint, pkgs []Package) error {
	if len(pkgs) == 0 {
		return nil
	}
	existing, err := collect(func(p dto.PaginationRequest) (service.PageResult[model.HostingPackage], error) {
		return s.svc.Hosting.GetAllPackages(ctx, p, serverID)
	})
	if err != nil {
		return err
	}
	seen := make(map[string]bool, len(existing))
	for _, p := range existing {
		seen[strings.ToLower(p.Name)] = true
	}
	for _, p := range pkgs {
		key := strings.ToLower(strings.TrimSpace(p.Name))
		if seen[key] {
			s.res.Packages.Skipped++
			continue
		}
		req := dto.CreateHostingPackageRequest{
			Name:         p.Name,
			ServerID:     serverID,
			PanelPlan:    p.Plan,
			DiskQuotaMB:  p.DiskMB,
			BandwidthMB:  p.BandwidthMB,
			MonthlyPrice: p.MonthlyPrice,
			Currency:     strings.ToUpper(p.Currency),
		}
		if err := s.check(req); err != nil {
			return fmt.Errorf("%s: %w", p.Name, err)
		}
		if _, err := s.svc.Hosting.CreatePackage(ctx, req); err != nil {
			return fmt.Errorf("%s: %w", p.Name, err)
		}
		seen[key] = true
		s.res.Packages.Created++
	}
	return nil
}

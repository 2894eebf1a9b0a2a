package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/isp-backoffice/internal/cache"
	"github.com/isp-backoffice/internal/dto"
	"github.com/isp-backoffice/internal/model"
	"github.com/isp-backoffice/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
	"gorm.io/gorm"
)

type CurrencyService struct {
	db    *gorm.DB
	cache cache.RateCache
	group singleflight.Group
	// 配置中的基准货币, 数据库尚未录入任何货币时作为兜底
	base string
	ttl  time.Duration
}

// ValidateCode 校验 ISO 4217 货币代码
func ValidateCode(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if _, err := currency.ParseISO(code); err != nil {
		return "", validationf("无效的货币代码 %q", code)
	}
	return code, nil
}

// minorDigits 货币最小单位的小数位数 (USD 2, JPY 0)
func minorDigits(code string) int {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return 2
	}
	scale, _ := currency.Standard.Rounding(unit)
	return scale
}

// Format 渲染金额, 例如 "USD 1,234.50"
func Format(amount int64, code string) string {
	scale := minorDigits(code)
	value := float64(amount) / math.Pow10(scale)
	p := message.NewPrinter(language.English)
	return p.Sprintf("%s %v", code, number.Decimal(value, number.Scale(scale)))
}

func (s *CurrencyService) Format(amount int64, code string) string {
	return Format(amount, code)
}

func (s *CurrencyService) GetAll(ctx context.Context, page dto.PaginationRequest) (PageResult[model.Currency], error) {
	query := s.db.WithContext(ctx).Model(&model.Currency{})
	return paginate[model.Currency](query, Page{Page: page.Page, PageSize: page.PageSize}, "is_base desc, code asc")
}

func (s *CurrencyService) GetByID(ctx context.Context, id uint) (*model.Currency, error) {
	var c model.Currency
	if err := findByID(s.db.WithContext(ctx), &c, id, "currency"); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *CurrencyService) GetByCode(ctx context.Context, code string) (*model.Currency, error) {
	var c model.Currency
	err := s.db.WithContext(ctx).Where("code = ?", strings.ToUpper(code)).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("currency", code)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *CurrencyService) Create(ctx context.Context, req dto.CreateCurrencyRequest) (*model.Currency, error) {
	code, err := ValidateCode(req.Code)
	if err != nil {
		return nil, err
	}
	c := model.Currency{
		Code:         code,
		Name:         req.Name,
		Symbol:       req.Symbol,
		ExchangeRate: req.ExchangeRate,
		IsBase:       req.IsBase,
		Active:       boolOr(req.Active, true),
	}
	if !c.IsBase && c.ExchangeRate <= 0 {
		return nil, validationf("非基准货币必须设置汇率")
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Unscoped().Model(&model.Currency{}).Where("code = ?", code).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return conflictf("货币 %s 已存在", code)
		}
		if c.IsBase {
			// 切换基准需要重算其它汇率, 只能通过 Update 完成
			var bases int64
			if err := tx.Model(&model.Currency{}).Where("is_base = ?", true).Count(&bases).Error; err != nil {
				return err
			}
			if bases > 0 {
				return conflictf("已存在基准货币, 请先创建 %s 再将其设为基准", code)
			}
			c.ExchangeRate = model.RateScale
		}
		return tx.Create(&c).Error
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, code)
	return &c, nil
}

func (s *CurrencyService) Update(ctx context.Context, id uint, req dto.UpdateCurrencyRequest) (*model.Currency, error) {
	var c model.Currency
	var rebased []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := findByID(tx, &c, id, "currency"); err != nil {
			return err
		}
		setString(&c.Name, req.Name)
		setString(&c.Symbol, req.Symbol)
		setBool(&c.Active, req.Active)
		if req.IsBase != nil && !*req.IsBase && c.IsBase {
			return invalidStatef("必须始终存在一个基准货币, 请将其它货币设为基准")
		}
		if req.ExchangeRate != nil {
			if c.IsBase && *req.ExchangeRate != model.RateScale {
				return validationf("基准货币的汇率固定为 %d", model.RateScale)
			}
			c.ExchangeRate = *req.ExchangeRate
		}
		if req.IsBase != nil && *req.IsBase && !c.IsBase {
			var err error
			if rebased, err = rebase(tx, &c); err != nil {
				return err
			}
		}
		return tx.Save(&c).Error
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, append(rebased, c.Code)...)
	return &c, nil
}

// rebase 将 c 设为基准货币, 其它货币的汇率按新基准重新折算
func rebase(tx *gorm.DB, c *model.Currency) ([]string, error) {
	if c.ExchangeRate <= 0 {
		return nil, validationf("货币 %s 没有有效汇率, 无法设为基准", c.Code)
	}
	var others []model.Currency
	if err := tx.Where("id <> ?", c.ID).Find(&others).Error; err != nil {
		return nil, err
	}
	codes := make([]string, 0, len(others))
	for _, o := range others {
		rate := mulDiv(o.ExchangeRate, model.RateScale, c.ExchangeRate)
		if err := tx.Model(&model.Currency{}).Where("id = ?", o.ID).
			Updates(map[string]interface{}{"exchange_rate": rate, "is_base": false}).Error; err != nil {
			return nil, err
		}
		codes = append(codes, o.Code)
	}
	c.ExchangeRate = model.RateScale
	c.IsBase = true
	logger.Logger.Info("基准货币已切换", zap.String("code", c.Code), zap.Int("rebased", len(codes)))
	return codes, nil
}

// Delete 基准货币和仍被客户或账单使用的货币不能删除
func (s *CurrencyService) Delete(ctx context.Context, id uint) error {
	var code string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c model.Currency
		if err := findByID(tx, &c, id, "currency"); err != nil {
			return err
		}
		if c.IsBase {
			return invalidStatef("基准货币 %s 不能删除", c.Code)
		}
		for _, m := range []interface{}{&model.Customer{}, &model.Invoice{}} {
			var count int64
			if err := tx.Model(m).Where("currency = ?", c.Code).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return conflictf("货币 %s 仍在使用中", c.Code)
			}
		}
		code = c.Code
		return tx.Unscoped().Delete(&c).Error
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, code)
	return nil
}

// Rate 读取汇率, 先查缓存, 并发的未命中请求合并为一次数据库查询
func (s *CurrencyService) Rate(ctx context.Context, code string) (int64, error) {
	code = strings.ToUpper(code)
	if rate, ok, err := s.cache.GetRate(ctx, code); err != nil {
		logger.Logger.Warn("读取汇率缓存失败", zap.String("code", code), zap.Error(err))
	} else if ok {
		return rate, nil
	}

	v, err, _ := s.group.Do(code, func() (interface{}, error) {
		var c model.Currency
		err := s.db.WithContext(ctx).Where("code = ?", code).First(&c).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if code == s.base {
				return model.RateScale, nil
			}
			return int64(0), notFound("currency", code)
		}
		if err != nil {
			return int64(0), err
		}
		if c.IsBase {
			c.ExchangeRate = model.RateScale
		}
		if err := s.cache.SetRate(ctx, code, c.ExchangeRate, s.ttl); err != nil {
			logger.Logger.Warn("写入汇率缓存失败", zap.String("code", code), zap.Error(err))
		}
		return c.ExchangeRate, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

// Convert amount * rate(to) / rate(from), 按两种货币的小数位换算最小单位
func (s *CurrencyService) Convert(ctx context.Context, amount int64, from, to string) (int64, error) {
	from, to = strings.ToUpper(from), strings.ToUpper(to)
	if from == to {
		return amount, nil
	}
	rateFrom, err := s.Rate(ctx, from)
	if err != nil {
		return 0, err
	}
	rateTo, err := s.Rate(ctx, to)
	if err != nil {
		return 0, err
	}
	if rateFrom <= 0 {
		return 0, fmt.Errorf("货币 %s 汇率无效: %w", from, ErrValidation)
	}
	return convertMinor(amount, rateFrom, rateTo, minorDigits(from), minorDigits(to)), nil
}

func (s *CurrencyService) invalidate(ctx context.Context, codes ...string) {
	for _, code := range codes {
		if code == "" {
			continue
		}
		if err := s.cache.DeleteRate(ctx, code); err != nil {
			logger.Logger.Warn("清除汇率缓存失败", zap.String("code", code), zap.Error(err))
		}
	}
}

package service

import (
	"context"
	"strings"

	"github.com/isp-backoffice/internal/dto"
	"github.com/isp-backoffice/internal/model"
	"gorm.io/gorm"
)

// TaxLine 一条税额明细
type TaxLine struct {
	Name   string
	Rate   int
	Amount int64
}

type TaxService struct {
	db          *gorm.DB
	homeCountry string
}

func (s *TaxService) GetAll(ctx context.Context, page dto.PaginationRequest, country string) (PageResult[model.TaxRule], error) {
	query := s.db.WithContext(ctx).Model(&model.TaxRule{})
	if country != "" {
		query = query.Where("country = ?", strings.ToUpper(country))
	}
	return paginate[model.TaxRule](query, Page{Page: page.Page, PageSize: page.PageSize}, "country asc, priority asc, id asc")
}

func (s *TaxService) GetByID(ctx context.Context, id uint) (*model.TaxRule, error) {
	var r model.TaxRule
	if err := findByID(s.db.WithContext(ctx), &r, id, "tax rule"); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *TaxService) Create(ctx context.Context, req dto.CreateTaxRuleRequest) (*model.TaxRule, error) {
	r := model.TaxRule{
		Name:          strings.TrimSpace(req.Name),
		Country:       strings.ToUpper(req.Country),
		State:         strings.TrimSpace(req.State),
		Rate:          req.Rate,
		Priority:      req.Priority,
		Compound:      req.Compound,
		ReverseCharge: req.ReverseCharge,
		Active:        boolOr(req.Active, true),
	}
	if err := validateTaxRule(&r); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(&r).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *TaxService) Update(ctx context.Context, id uint, req dto.UpdateTaxRuleRequest) (*model.TaxRule, error) {
	r, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	setString(&r.Name, req.Name)
	setString(&r.State, req.State)
	setInt(&r.Rate, req.Rate)
	setInt(&r.Priority, req.Priority)
	setBool(&r.Compound, req.Compound)
	setBool(&r.ReverseCharge, req.ReverseCharge)
	setBool(&r.Active, req.Active)
	if req.Country != nil {
		r.Country = strings.ToUpper(*req.Country)
	}
	if err := validateTaxRule(r); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Save(r).Error; err != nil {
		return nil, err
	}
	return r, nil
}

func (s *TaxService) Delete(ctx context.Context, id uint) error {
	r, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Delete(r).Error
}

func validateTaxRule(r *model.TaxRule) error {
	if r.Name == "" {
		return validationf("税率名称不能为空")
	}
	if len(r.Country) != 2 {
		return validationf("国家代码必须为 2 位")
	}
	if r.Rate < 0 || r.Rate > 10_000 {
		return validationf("税率必须在 0 到 10000 基点之间")
	}
	return nil
}

// CalculateTax 计算客户在给定应税小计上的各项税额
func (s *TaxService) CalculateTax(ctx context.Context, customer *model.Customer, subtotal int64) ([]TaxLine, error) {
	return s.calculate(s.db.WithContext(ctx), customer, subtotal)
}

// CalculateForCustomer 按客户 ID 计算, 供接口预览使用
func (s *TaxService) CalculateForCustomer(ctx context.Context, customerID uint, subtotal int64) ([]TaxLine, error) {
	db := s.db.WithContext(ctx)
	c, err := requireCustomer(db, customerID)
	if err != nil {
		return nil, err
	}
	return s.calculate(db, c, subtotal)
}

// calculate 按优先级依次应用规则: 普通税基于小计, 复合税基于小计加已计税额;
// 跨境且有税号的客户对反向征税规则免税
func (s *TaxService) calculate(db *gorm.DB, customer *model.Customer, subtotal int64) ([]TaxLine, error) {
	lines := []TaxLine{}
	if subtotal <= 0 || customer.Country == "" {
		return lines, nil
	}
	var rules []model.TaxRule
	err := db.Where("active = ? AND country = ?", true, strings.ToUpper(customer.Country)).
		Order("priority asc, id asc").Find(&rules).Error
	if err != nil {
		return nil, err
	}

	reverseCharge := customer.VATNumber != "" && !strings.EqualFold(customer.Country, s.homeCountry)
	var taxSoFar int64
	for _, r := range rules {
		if r.State != "" && !strings.EqualFold(r.State, customer.State) {
			continue
		}
		if r.ReverseCharge && reverseCharge {
			continue
		}
		base := subtotal
		if r.Compound {
			base += taxSoFar
		}
		amount := applyBasisPoints(base, r.Rate)
		taxSoFar += amount
		lines = append(lines, TaxLine{Name: r.Name, Rate: r.Rate, Amount: amount})
	}
	return lines, nil
}

func sumTax(lines []TaxLine) int64 {
	var total int64
	for _, l := range lines {
		total += l.Amount
	}
	return total
}

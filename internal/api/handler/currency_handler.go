package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/isp-backoffice/internal/api/response"
	"github.com/isp-backoffice/internal/dto"
	"github.com/isp-backoffice/internal/service"
)

type CurrencyHandler struct {
	currencies *service.CurrencyService
	taxes      *service.TaxService
}

func NewCurrencyHandler(svc *service.Services) *CurrencyHandler {
	return &CurrencyHandler{currencies: svc.Currencies, taxes: svc.Taxes}
}

// @Router /currencies [get]
func (h *CurrencyHandler) GetCurrencies(c *gin.Context) {
	var req dto.PaginationRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "分页参数错误", err)
		return
	}
	result, err := h.currencies.GetAll(c.Request.Context(), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Page(c, result, dto.MapList(result.Items, dto.ToCurrencyResponse))
}

// @Router /currencies/{id} [get]
func (h *CurrencyHandler) GetCurrencyByID(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	cur, err := h.currencies.GetByID(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Ok(c, dto.ToCurrencyResponse(cur))
}

// @Router /currencies [post]
func (h *CurrencyHandler) CreateCurrency(c *gin.Context) {
	var req dto.CreateCurrencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "", err)
		return
	}
	cur, err := h.currencies.Create(c.Request.Context(), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, "创建币种成功", dto.ToCurrencyResponse(cur))
}

// UpdateCurrency 修改汇率或切换基准币种
// @Router /currencies/{id} [put]
func (h *CurrencyHandler) UpdateCurrency(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateCurrencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "", err)
		return
	}
	cur, err := h.currencies.Update(c.Request.Context(), id, req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OkWithMessage(c, "更新成功", dto.ToCurrencyResponse(cur))
}

// @Router /currencies/{id} [delete]
func (h *CurrencyHandler) DeleteCurrency(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.currencies.Delete(c.Request.Context(), id); err != nil {
		response.FromError(c, err)
		return
	}
	response.OkWithMessage(c, "删除成功", nil)
}

// Convert 金额换算, amount 为最小货币单位
// @Router /currencies/convert [get]
func (h *CurrencyHandler) Convert(c *gin.Context) {
	var req dto.ConvertRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "", err)
		return
	}
	result, err := h.currencies.Convert(c.Request.Context(), req.Amount, req.From, req.To)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Ok(c, dto.ConvertResponse{
		Amount:    req.Amount,
		From:      req.From,
		To:        req.To,
		Result:    result,
		Formatted: service.Format(result, req.To),
	})
}

// --- 税率 ---

// @Router /tax-rules [get]
func (h *CurrencyHandler) GetTaxRules(c *gin.Context) {
	var req dto.TaxRuleFilter
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "查询参数错误", err)
		return
	}
	result, err := h.taxes.GetAll(c.Request.Context(), req.PaginationRequest, req.Country)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Page(c, result, dto.MapList(result.Items, dto.ToTaxRuleResponse))
}

// @Router /tax-rules/{id} [get]
func (h *CurrencyHandler) GetTaxRuleByID(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	rule, err := h.taxes.GetByID(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Ok(c, dto.ToTaxRuleResponse(rule))
}

// @Router /tax-rules [post]
func (h *CurrencyHandler) CreateTaxRule(c *gin.Context) {
	var req dto.CreateTaxRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "", err)
		return
	}
	rule, err := h.taxes.Create(c.Request.Context(), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, "创建税率成功", dto.ToTaxRuleResponse(rule))
}

// @Router /tax-rules/{id} [put]
func (h *CurrencyHandler) UpdateTaxRule(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateTaxRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "", err)
		return
	}
	rule, err := h.taxes.Update(c.Request.Context(), id, req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OkWithMessage(c, "更新成功", dto.ToTaxRuleResponse(rule))
}

// @Router /tax-rules/{id} [delete]
func (h *CurrencyHandler) DeleteTaxRule(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.taxes.Delete(c.Request.Context(), id); err != nil {
		response.FromError(c, err)
		return
	}
	response.OkWithMessage(c, "删除成功", nil)
}

// CalculateTax 按客户所在地区试算税额
// @Router /tax-rules/calculate [post]
func (h *CurrencyHandler) CalculateTax(c *gin.Context) {
	var req dto.CalculateTaxRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "", err)
		return
	}
	lines, err := h.taxes.CalculateForCustomer(c.Request.Context(), req.CustomerID, req.Subtotal)
	if err != nil {
		response.FromError(c, err)
		return
	}
	out := make([]dto.TaxLine, 0, len(lines))
	for _, l := range lines {
		out = append(out, dto.TaxLine{Name: l.Name, Rate: l.Rate, Amount: l.Amount})
	}
	response.Ok(c, out)
}

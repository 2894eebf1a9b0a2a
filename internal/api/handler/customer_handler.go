package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/isp-backoffice/internal/api/response"
	"github.com/isp-backoffice/internal/dto"
	"github.com/isp-backoffice/internal/service"
)

type CustomerHandler struct {
	customers      *service.CustomerService
	paymentMethods *service.CustomerPaymentMethodService
	credits        *service.CreditService
}

func NewCustomerHandler(svc *service.Services) *CustomerHandler {
	return &CustomerHandler{
		customers:      svc.Customers,
		paymentMethods: svc.PaymentMethods,
		credits:        svc.Credits,
	}
}

// GetCustomers 分页获取客户列表, 支持按姓名/公司/邮箱搜索
// @Router /customers [get]
func (h *CustomerHandler) GetCustomers(c *gin.Context) {
	var req dto.CustomerFilter
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "分页参数错误", err)
		return
	}
	result, err := h.customers.GetAll(c.Request.Context(), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Page(c, result, dto.MapList(result.Items, dto.ToCustomerResponse))
}

// @Router /customers/{id} [get]
func (h *CustomerHandler) GetCustomerByID(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	customer, err := h.customers.GetByID(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Ok(c, dto.ToCustomerResponse(customer))
}

// @Router /customers [post]
func (h *CustomerHandler) CreateCustomer(c *gin.Context) {
	var req dto.CreateCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "", err)
		return
	}
	customer, err := h.customers.Create(c.Request.Context(), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, "创建客户成功", dto.ToCustomerResponse(customer))
}

// @Router /customers/{id} [put]
func (h *CustomerHandler) UpdateCustomer(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "", err)
		return
	}
	customer, err := h.customers.Update(c.Request.Context(), id, req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OkWithMessage(c, "更新成功", dto.ToCustomerResponse(customer))
}

// @Router /customers/{id} [delete]
func (h *CustomerHandler) DeleteCustomer(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.customers.Delete(c.Request.Context(), id); err != nil {
		response.FromError(c, err)
		return
	}
	response.OkWithMessage(c, "删除成功", nil)
}

// --- 支付方式 ---

// @Router /customers/{id}/payment-methods [get]
func (h *CustomerHandler) GetPaymentMethods(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	methods, err := h.paymentMethods.GetAll(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Ok(c, dto.MapList(methods, dto.ToPaymentMethodResponse))
}

// @Router /customers/{id}/payment-methods [post]
func (h *CustomerHandler) CreatePaymentMethod(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.CreatePaymentMethodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "", err)
		return
	}
	m, err := h.paymentMethods.Create(c.Request.Context(), id, req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, "添加支付方式成功", dto.ToPaymentMethodResponse(m))
}

// @Router /customers/{id}/payment-methods/{methodId} [put]
func (h *CustomerHandler) UpdatePaymentMethod(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	methodID, ok := parseID(c, "methodId")
	if !ok {
		return
	}
	var req dto.UpdatePaymentMethodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "", err)
		return
	}
	m, err := h.paymentMethods.Update(c.Request.Context(), id, methodID, req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OkWithMessage(c, "更新成功", dto.ToPaymentMethodResponse(m))
}

// @Router /customers/{id}/payment-methods/{methodId}/default [post]
func (h *CustomerHandler) SetDefaultPaymentMethod(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	methodID, ok := parseID(c, "methodId")
	if !ok {
		return
	}
	m, err := h.paymentMethods.SetDefault(c.Request.Context(), id, methodID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OkWithMessage(c, "已设为默认支付方式", dto.ToPaymentMethodResponse(m))
}

// @Router /customers/{id}/payment-methods/{methodId} [delete]
func (h *CustomerHandler) DeletePaymentMethod(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	methodID, ok := parseID(c, "methodId")
	if !ok {
		return
	}
	if err := h.paymentMethods.Delete(c.Request.Context(), id, methodID); err != nil {
		response.FromError(c, err)
		return
	}
	response.OkWithMessage(c, "删除成功", nil)
}

// --- 余额 ---

func toCreditBalance(b *service.Balance) dto.CreditBalanceResponse {
	return dto.CreditBalanceResponse{CustomerID: b.CustomerID, Balance: b.Amount, Currency: b.Currency}
}

// @Router /customers/{id}/credit [get]
func (h *CustomerHandler) GetCreditBalance(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	b, err := h.credits.GetBalance(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Ok(c, toCreditBalance(b))
}

// @Router /customers/{id}/credit/transactions [get]
func (h *CustomerHandler) GetCreditTransactions(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.PaginationRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "分页参数错误", err)
		return
	}
	result, err := h.credits.GetTransactions(c.Request.Context(), id, req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Page(c, result, dto.MapList(result.Items, dto.ToCreditTransactionResponse))
}

// @Router /customers/{id}/credit [post]
func (h *CustomerHandler) AddCredit(c *gin.Context) {
	h.adjustCredit(c, h.credits.AddCredit)
}

// @Router /customers/{id}/credit/remove [post]
func (h *CustomerHandler) RemoveCredit(c *gin.Context) {
	h.adjustCredit(c, h.credits.RemoveCredit)
}

func (h *CustomerHandler) adjustCredit(c *gin.Context, fn func(ctx context.Context, customerID uint, amount int64, description string) (*service.Balance, error)) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.AddCreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "", err)
		return
	}
	b, err := fn(c.Request.Context(), id, req.Amount, req.Description)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OkWithMessage(c, "余额已更新", toCreditBalance(b))
}

// ApplyCredit 用客户余额抵扣账单, amount 为 0 表示尽量抵扣
// @Router /credits/apply [post]
func (h *CustomerHandler) ApplyCredit(c *gin.Context) {
	var req dto.ApplyCreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "", err)
		return
	}
	inv, err := h.credits.ApplyCreditToInvoice(c.Request.Context(), req.InvoiceID, req.Amount)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OkWithMessage(c, "余额抵扣成功", dto.ToInvoiceResponse(inv))
}

package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/isp-backoffice/internal/api/response"
	"github.com/isp-backoffice/internal/dto"
	"github.com/isp-backoffice/internal/model"
	"github.com/isp-backoffice/internal/service"
)

type InvoiceHandler struct {
	invoices *service.InvoiceService
	quotes   *service.QuoteService
}

func NewInvoiceHandler(svc *service.Services) *InvoiceHandler {
	return &InvoiceHandler{invoices: svc.Invoices, quotes: svc.Quotes}
}

// GetInvoices 分页获取账单, 支持按客户与状态过滤
// @Router /invoices [get]
func (h *InvoiceHandler) GetInvoices(c *gin.Context) {
	var req dto.InvoiceFilter
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "查询参数错误", err)
		return
	}
	result, err := h.invoices.GetAll(c.Request.Context(), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Page(c, result, dto.MapList(result.Items, dto.ToInvoiceResponse))
}

// @Router /invoices/{id} [get]
func (h *InvoiceHandler) GetInvoiceByID(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	inv, err := h.invoices.GetByID(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Ok(c, dto.ToInvoiceResponse(inv))
}

// @Router /invoices [post]
func (h *InvoiceHandler) CreateInvoice(c *gin.Context) {
	var req dto.CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "", err)
		return
	}
	inv, err := h.invoices.Create(c.Request.Context(), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, "创建账单成功", dto.ToInvoiceResponse(inv))
}

// UpdateInvoice 仅草稿状态可修改
// @Router /invoices/{id} [put]
func (h *InvoiceHandler) UpdateInvoice(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "", err)
		return
	}
	inv, err := h.invoices.Update(c.Request.Context(), id, req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OkWithMessage(c, "更新成功", dto.ToInvoiceResponse(inv))
}

// @Router /invoices/{id} [delete]
func (h *InvoiceHandler) DeleteInvoice(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.invoices.Delete(c.Request.Context(), id); err != nil {
		response.FromError(c, err)
		return
	}
	response.OkWithMessage(c, "删除成功", nil)
}

// @Router /invoices/{id}/recalculate [post]
func (h *InvoiceHandler) RecalculateInvoice(c *gin.Context) {
	h.invoiceAction(c, "已重新计算", h.invoices.Recalculate)
}

// @Router /invoices/{id}/issue [post]
func (h *InvoiceHandler) IssueInvoice(c *gin.Context) {
	h.invoiceAction(c, "账单已开具", h.invoices.Issue)
}

// @Router /invoices/{id}/cancel [post]
func (h *InvoiceHandler) CancelInvoice(c *gin.Context) {
	h.invoiceAction(c, "账单已作废", h.invoices.Cancel)
}

func (h *InvoiceHandler) invoiceAction(c *gin.Context, msg string, fn func(context.Context, uint) (*model.Invoice, error)) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	inv, err := fn(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OkWithMessage(c, msg, dto.ToInvoiceResponse(inv))
}

// --- 报价单 ---

// @Router /quotes [get]
func (h *InvoiceHandler) GetQuotes(c *gin.Context) {
	var req dto.QuoteFilter
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "查询参数错误", err)
		return
	}
	result, err := h.quotes.GetAll(c.Request.Context(), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Page(c, result, dto.MapList(result.Items, dto.ToQuoteResponse))
}

// @Router /quotes/{id} [get]
func (h *InvoiceHandler) GetQuoteByID(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	q, err := h.quotes.GetByID(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Ok(c, dto.ToQuoteResponse(q))
}

// @Router /quotes [post]
func (h *InvoiceHandler) CreateQuote(c *gin.Context) {
	var req dto.CreateQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "", err)
		return
	}
	q, err := h.quotes.Create(c.Request.Context(), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, "创建报价单成功", dto.ToQuoteResponse(q))
}

// @Router /quotes/{id} [put]
func (h *InvoiceHandler) UpdateQuote(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "", err)
		return
	}
	q, err := h.quotes.Update(c.Request.Context(), id, req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OkWithMessage(c, "更新成功", dto.ToQuoteResponse(q))
}

// @Router /quotes/{id} [delete]
func (h *InvoiceHandler) DeleteQuote(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.quotes.Delete(c.Request.Context(), id); err != nil {
		response.FromError(c, err)
		return
	}
	response.OkWithMessage(c, "删除成功", nil)
}

// @Router /quotes/{id}/send [post]
func (h *InvoiceHandler) SendQuote(c *gin.Context) {
	h.quoteAction(c, "报价单已发送", h.quotes.Send)
}

// @Router /quotes/{id}/accept [post]
func (h *InvoiceHandler) AcceptQuote(c *gin.Context) {
	h.quoteAction(c, "报价单已接受", h.quotes.Accept)
}

// @Router /quotes/{id}/reject [post]
func (h *InvoiceHandler) RejectQuote(c *gin.Context) {
	h.quoteAction(c, "报价单已拒绝", h.quotes.Reject)
}

func (h *InvoiceHandler) quoteAction(c *gin.Context, msg string, fn func(context.Context, uint) (*model.Quote, error)) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	q, err := fn(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OkWithMessage(c, msg, dto.ToQuoteResponse(q))
}

// ConvertQuote 已接受的报价单转为草稿账单
// @Router /quotes/{id}/convert [post]
func (h *InvoiceHandler) ConvertQuote(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	inv, err := h.quotes.ConvertToInvoice(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, "已生成账单", dto.ToInvoiceResponse(inv))
}

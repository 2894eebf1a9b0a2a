package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/isp-backoffice/internal/api/response"
	"github.com/isp-backoffice/internal/dto"
	"github.com/isp-backoffice/internal/service"
)

type PaymentHandler struct {
	payments *service.PaymentService
	intents  *service.PaymentIntentService
	refunds  *service.RefundService
}

func NewPaymentHandler(svc *service.Services) *PaymentHandler {
	return &PaymentHandler{payments: svc.Payments, intents: svc.PaymentIntents, refunds: svc.Refunds}
}

// @Router /payments [get]
func (h *PaymentHandler) GetPayments(c *gin.Context) {
	var req dto.PaymentFilter
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "查询参数错误", err)
		return
	}
	result, err := h.payments.GetAll(c.Request.Context(), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Page(c, result, dto.MapList(result.Items, dto.ToPaymentResponse))
}

// @Router /payments/{id} [get]
func (h *PaymentHandler) GetPaymentByID(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	p, err := h.payments.GetByID(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Ok(c, dto.ToPaymentResponse(p))
}

// RecordPayment 登记线下收款
// @Router /payments [post]
func (h *PaymentHandler) RecordPayment(c *gin.Context) {
	var req dto.RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "", err)
		return
	}
	p, err := h.payments.RecordPayment(c.Request.Context(), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, "收款已登记", dto.ToPaymentResponse(p))
}

// Charge 通过网关扣款, 被拒返回 402
// @Router /payments/charge [post]
func (h *PaymentHandler) Charge(c *gin.Context) {
	var req dto.ChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "", err)
		return
	}
	p, err := h.payments.ChargePaymentMethod(c.Request.Context(), req.InvoiceID, req.PaymentMethodID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, "扣款成功", dto.ToPaymentResponse(p))
}

// --- 支付意图 ---

// @Router /payment-intents [get]
func (h *PaymentHandler) GetPaymentIntents(c *gin.Context) {
	var req dto.PaymentIntentFilter
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "查询参数错误", err)
		return
	}
	result, err := h.intents.GetAll(c.Request.Context(), req.InvoiceID, req.PaginationRequest)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Page(c, result, dto.MapList(result.Items, dto.ToPaymentIntentResponse))
}

// @Router /payment-intents/{id} [get]
func (h *PaymentHandler) GetPaymentIntentByID(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	pi, err := h.intents.GetByID(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Ok(c, dto.ToPaymentIntentResponse(pi))
}

// @Router /payment-intents [post]
func (h *PaymentHandler) CreatePaymentIntent(c *gin.Context) {
	var req dto.CreatePaymentIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "", err)
		return
	}
	pi, err := h.intents.Create(c.Request.Context(), req.InvoiceID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, "支付意图已创建", dto.ToPaymentIntentResponse(pi))
}

// ConfirmPaymentIntent 网关回调确认, 会同时生成收款记录
// @Router /payment-intents/{id}/confirm [post]
func (h *PaymentHandler) ConfirmPaymentIntent(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.ConfirmPaymentIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "", err)
		return
	}
	pi, err := h.intents.Confirm(c.Request.Context(), id, req.GatewayRef)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OkWithMessage(c, "支付已确认", dto.ToPaymentIntentResponse(pi))
}

// @Router /payment-intents/{id}/cancel [post]
func (h *PaymentHandler) CancelPaymentIntent(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	pi, err := h.intents.Cancel(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OkWithMessage(c, "支付意图已取消", dto.ToPaymentIntentResponse(pi))
}

// --- 退款 ---

// @Router /refunds [get]
func (h *PaymentHandler) GetRefunds(c *gin.Context) {
	var req dto.RefundFilter
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "查询参数错误", err)
		return
	}
	result, err := h.refunds.GetAll(c.Request.Context(), req.PaymentID, req.PaginationRequest)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Page(c, result, dto.MapList(result.Items, dto.ToRefundResponse))
}

// @Router /refunds/{id} [get]
func (h *PaymentHandler) GetRefundByID(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	r, err := h.refunds.GetByID(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Ok(c, dto.ToRefundResponse(r))
}

// @Router /refunds [post]
func (h *PaymentHandler) CreateRefund(c *gin.Context) {
	var req dto.CreateRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "", err)
		return
	}
	r, err := h.refunds.CreateRefund(c.Request.Context(), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, "退款已提交", dto.ToRefundResponse(r))
}

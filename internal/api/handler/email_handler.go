package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/isp-backoffice/internal/api/response"
	"github.com/isp-backoffice/internal/dto"
	"github.com/isp-backoffice/internal/service"
)

type EmailHandler struct {
	emails    *service.EmailService
	dashboard *service.DashboardService
}

func NewEmailHandler(svc *service.Services) *EmailHandler {
	return &EmailHandler{emails: svc.Emails, dashboard: svc.Dashboard}
}

// @Router /emails [get]
func (h *EmailHandler) GetEmails(c *gin.Context) {
	var req dto.EmailFilter
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "查询参数错误", err)
		return
	}
	result, err := h.emails.GetAll(c.Request.Context(), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Page(c, result, dto.MapList(result.Items, dto.ToQueuedEmailResponse))
}

// @Router /emails/{id} [get]
func (h *EmailHandler) GetEmailByID(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	e, err := h.emails.GetByID(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Ok(c, dto.ToQueuedEmailResponse(e))
}

// Resend 失败的邮件重新入队, 已发送的返回 409
// @Router /emails/{id}/resend [post]
func (h *EmailHandler) Resend(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	e, err := h.emails.Resend(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Accepted(c, "邮件已重新入队", dto.ToQueuedEmailResponse(e))
}

// Dashboard 首页统计
// @Router /dashboard [get]
func (h *EmailHandler) Dashboard(c *gin.Context) {
	s, err := h.dashboard.GetSummary(c.Request.Context())
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Ok(c, dto.DashboardResponse{
		CustomersByStatus:     s.CustomersByStatus,
		UnpaidByCurrency:      s.UnpaidByCurrency,
		OverdueInvoices:       s.OverdueInvoices,
		DomainsExpiringSoon:   s.DomainsExpiringSoon,
		ActiveHostingAccounts: s.ActiveHostingAccounts,
		QueuedEmails:          s.QueuedEmails,
	})
}

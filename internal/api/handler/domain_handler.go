package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/isp-backoffice/internal/api/response"
	"github.com/isp-backoffice/internal/dto"
	"github.com/isp-backoffice/internal/model"
	"github.com/isp-backoffice/internal/service"
)

type DomainHandler struct {
	domains *service.DomainService
}

func NewDomainHandler(svc *service.Services) *DomainHandler {
	return &DomainHandler{domains: svc.Domains}
}

// GetDomains 分页获取域名, 支持按客户、状态与名称过滤
// @Router /domains [get]
func (h *DomainHandler) GetDomains(c *gin.Context) {
	var req dto.DomainFilter
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "查询参数错误", err)
		return
	}
	result, err := h.domains.GetAll(c.Request.Context(), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Page(c, result, dto.MapList(result.Items, dto.ToDomainResponse))
}

// @Router /domains/{id} [get]
func (h *DomainHandler) GetDomainByID(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	d, err := h.domains.GetByID(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Ok(c, dto.ToDomainResponse(d))
}

// CreateDomain 仅登记域名 (pending), 注册需再调用 register
// @Router /domains [post]
func (h *DomainHandler) CreateDomain(c *gin.Context) {
	var req dto.CreateDomainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "", err)
		return
	}
	d, err := h.domains.Create(c.Request.Context(), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, "域名已登记", dto.ToDomainResponse(d))
}

// @Router /domains/{id} [put]
func (h *DomainHandler) UpdateDomain(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateDomainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "", err)
		return
	}
	d, err := h.domains.Update(c.Request.Context(), id, req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OkWithMessage(c, "更新成功", dto.ToDomainResponse(d))
}

// @Router /domains/{id} [delete]
func (h *DomainHandler) DeleteDomain(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.domains.Delete(c.Request.Context(), id); err != nil {
		response.FromError(c, err)
		return
	}
	response.OkWithMessage(c, "删除成功", nil)
}

// CheckAvailability 向默认注册商查询域名是否可注册
// @Router /domains/availability [get]
func (h *DomainHandler) CheckAvailability(c *gin.Context) {
	var req dto.AvailabilityRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "", err)
		return
	}
	a, err := h.domains.CheckAvailability(c.Request.Context(), req.Name)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Ok(c, dto.AvailabilityResponse{
		Domain:    a.Domain,
		Available: a.Available,
		Premium:   a.Premium,
		Price:     a.Price,
		Currency:  a.Currency,
	})
}

// @Router /domains/{id}/register [post]
func (h *DomainHandler) Register(c *gin.Context) {
	h.charge(c, "域名注册成功", h.domains.Register)
}

// @Router /domains/{id}/renew [post]
func (h *DomainHandler) Renew(c *gin.Context) {
	h.charge(c, "域名续费成功", h.domains.Renew)
}

// charge 注册与续费都会生成一张草稿账单, 一并返回
func (h *DomainHandler) charge(c *gin.Context, msg string, fn func(context.Context, uint, int) (*model.Domain, *model.Invoice, error)) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.DomainYearsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "", err)
		return
	}
	d, inv, err := fn(c.Request.Context(), id, req.Years)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OkWithMessage(c, msg, dto.DomainRegistrationResponse{
		Domain:  dto.ToDomainResponse(d),
		Invoice: dto.ToInvoiceResponse(inv),
	})
}

// @Router /domains/{id}/nameservers [put]
func (h *DomainHandler) UpdateNameservers(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.NameserversRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "", err)
		return
	}
	d, err := h.domains.UpdateNameservers(c.Request.Context(), id, req.Nameservers)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OkWithMessage(c, "DNS 服务器已更新", dto.ToDomainResponse(d))
}

// GetExpiring 未来 N 天内到期的有效域名
// @Router /domains/expiring [get]
func (h *DomainHandler) GetExpiring(c *gin.Context) {
	var req dto.ExpiringRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "", err)
		return
	}
	domains, err := h.domains.GetExpiring(c.Request.Context(), req.Days)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Ok(c, dto.MapList(domains, dto.ToDomainResponse))
}

package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/isp-backoffice/internal/api/response"
	"github.com/isp-backoffice/internal/dto"
	"github.com/isp-backoffice/internal/service"
)

type DnsHandler struct {
	dns *service.DnsService
}

func NewDnsHandler(svc *service.Services) *DnsHandler {
	return &DnsHandler{dns: svc.Dns}
}

// @Router /dns-zones [get]
func (h *DnsHandler) GetZones(c *gin.Context) {
	var req dto.DnsZoneFilter
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "查询参数错误", err)
		return
	}
	result, err := h.dns.GetAll(c.Request.Context(), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Page(c, result, dto.MapList(result.Items, dto.ToDnsZoneResponse))
}

// @Router /dns-zones/{id} [get]
func (h *DnsHandler) GetZoneByID(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	z, err := h.dns.GetByID(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Ok(c, dto.ToDnsZoneResponse(z))
}

// @Router /dns-zones [post]
func (h *DnsHandler) CreateZone(c *gin.Context) {
	var req dto.CreateDnsZoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "", err)
		return
	}
	z, err := h.dns.Create(c.Request.Context(), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, "创建区域成功", dto.ToDnsZoneResponse(z))
}

// @Router /dns-zones/{id} [put]
func (h *DnsHandler) UpdateZone(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateDnsZoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "", err)
		return
	}
	z, err := h.dns.Update(c.Request.Context(), id, req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OkWithMessage(c, "更新成功", dto.ToDnsZoneResponse(z))
}

// DeleteZone 连同记录一起删除
// @Router /dns-zones/{id} [delete]
func (h *DnsHandler) DeleteZone(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.dns.Delete(c.Request.Context(), id); err != nil {
		response.FromError(c, err)
		return
	}
	response.OkWithMessage(c, "删除成功", nil)
}

// ExportZone 导出 BIND 格式的区域文件
// @Router /dns-zones/{id}/export [get]
func (h *DnsHandler) ExportZone(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	text, err := h.dns.ExportZone(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=zone-%d.txt", id))
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(text))
}

// --- 记录 ---

// @Router /dns-zones/{id}/records [get]
func (h *DnsHandler) GetRecords(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	records, err := h.dns.GetRecords(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Ok(c, dto.MapList(records, dto.ToDnsRecordResponse))
}

// CreateRecord 新增记录, 区域序列号随之递增
// @Router /dns-zones/{id}/records [post]
func (h *DnsHandler) CreateRecord(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.DnsRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "", err)
		return
	}
	r, err := h.dns.CreateRecord(c.Request.Context(), id, req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, "记录已添加", dto.ToDnsRecordResponse(r))
}

// @Router /dns-zones/{id}/records/{recordId} [put]
func (h *DnsHandler) UpdateRecord(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	recordID, ok := parseID(c, "recordId")
	if !ok {
		return
	}
	var req dto.DnsRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "", err)
		return
	}
	r, err := h.dns.UpdateRecord(c.Request.Context(), id, recordID, req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OkWithMessage(c, "更新成功", dto.ToDnsRecordResponse(r))
}

// @Router /dns-zones/{id}/records/{recordId} [delete]
func (h *DnsHandler) DeleteRecord(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	recordID, ok := parseID(c, "recordId")
	if !ok {
		return
	}
	if err := h.dns.DeleteRecord(c.Request.Context(), id, recordID); err != nil {
		response.FromError(c, err)
		return
	}
	response.OkWithMessage(c, "删除成功", nil)
}

package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/isp-backoffice/internal/api/response"
	"github.com/isp-backoffice/internal/dto"
	"github.com/isp-backoffice/internal/service"
	"github.com/isp-backoffice/internal/tasks"
)

type RegistrarHandler struct {
	registrars *service.RegistrarService
	priceSync  *service.RegistrarTldPriceSyncService
	queue      tasks.Enqueuer
}

func NewRegistrarHandler(svc *service.Services, queue tasks.Enqueuer) *RegistrarHandler {
	return &RegistrarHandler{registrars: svc.Registrars, priceSync: svc.PriceSync, queue: queue}
}

// @Router /registrars [get]
func (h *RegistrarHandler) GetRegistrars(c *gin.Context) {
	var req dto.PaginationRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "分页参数错误", err)
		return
	}
	result, err := h.registrars.GetAll(c.Request.Context(), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Page(c, result, dto.MapList(result.Items, dto.ToRegistrarResponse))
}

// @Router /registrars/{id} [get]
func (h *RegistrarHandler) GetRegistrarByID(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	r, err := h.registrars.GetByID(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Ok(c, dto.ToRegistrarResponse(r))
}

// @Router /registrars [post]
func (h *RegistrarHandler) CreateRegistrar(c *gin.Context) {
	var req dto.CreateRegistrarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "", err)
		return
	}
	r, err := h.registrars.Create(c.Request.Context(), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, "创建注册商成功", dto.ToRegistrarResponse(r))
}

// @Router /registrars/{id} [put]
func (h *RegistrarHandler) UpdateRegistrar(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateRegistrarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "", err)
		return
	}
	r, err := h.registrars.Update(c.Request.Context(), id, req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OkWithMessage(c, "更新成功", dto.ToRegistrarResponse(r))
}

// @Router /registrars/{id} [delete]
func (h *RegistrarHandler) DeleteRegistrar(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.registrars.Delete(c.Request.Context(), id); err != nil {
		response.FromError(c, err)
		return
	}
	response.OkWithMessage(c, "删除成功", nil)
}

// SyncPrices 从注册商拉取价格表; 默认入队, wait=true 时同步执行
// @Router /registrars/{id}/sync [post]
func (h *RegistrarHandler) SyncPrices(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.SyncRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "", err)
		return
	}
	if !req.Wait {
		// 先确认注册商存在, 避免把无效任务放进队列
		if _, err := h.registrars.GetByID(c.Request.Context(), id); err != nil {
			response.FromError(c, err)
			return
		}
		task, err := tasks.NewTldPriceSyncTask(id)
		if err != nil {
			response.ServerError(c, err)
			return
		}
		enqueue(c, h.queue, task)
		return
	}
	result, err := h.priceSync.SyncRegistrar(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Ok(c, toPriceSyncResponse(result))
}

// @Router /registrars/sync [post]
func (h *RegistrarHandler) SyncAllPrices(c *gin.Context) {
	enqueue(c, h.queue, tasks.NewPeriodicTask(tasks.TypeTldPriceSyncAll))
}

func toPriceSyncResponse(r *service.PriceSyncResult) dto.PriceSyncResponse {
	return dto.PriceSyncResponse{
		RegistrarID: r.RegistrarID,
		Updated:     r.Updated,
		Created:     r.Created,
		Skipped:     r.Skipped,
	}
}

// --- 顶级域 ---

// @Router /tlds [get]
func (h *RegistrarHandler) GetTlds(c *gin.Context) {
	var req dto.TldFilter
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "查询参数错误", err)
		return
	}
	result, err := h.registrars.GetAllTlds(c.Request.Context(), req.PaginationRequest, req.ActiveOnly)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Page(c, result, dto.MapList(result.Items, dto.ToTldResponse))
}

// @Router /tlds/{id} [get]
func (h *RegistrarHandler) GetTldByID(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	t, err := h.registrars.GetTld(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Ok(c, dto.ToTldResponse(t))
}

// @Router /tlds [post]
func (h *RegistrarHandler) CreateTld(c *gin.Context) {
	var req dto.CreateTldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "", err)
		return
	}
	t, err := h.registrars.CreateTld(c.Request.Context(), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, "创建顶级域成功", dto.ToTldResponse(t))
}

// @Router /tlds/{id} [put]
func (h *RegistrarHandler) UpdateTld(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateTldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "", err)
		return
	}
	t, err := h.registrars.UpdateTld(c.Request.Context(), id, req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OkWithMessage(c, "更新成功", dto.ToTldResponse(t))
}

// @Router /tlds/{id} [delete]
func (h *RegistrarHandler) DeleteTld(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.registrars.DeleteTld(c.Request.Context(), id); err != nil {
		response.FromError(c, err)
		return
	}
	response.OkWithMessage(c, "删除成功", nil)
}

// GetTldPrices 某个顶级域在各注册商处的价格
// @Router /tlds/{id}/prices [get]
func (h *RegistrarHandler) GetTldPrices(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	prices, err := h.registrars.GetPricesForTld(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Ok(c, dto.MapList(prices, dto.ToTldPriceResponse))
}

// --- 价格 ---

// @Router /tld-prices [get]
func (h *RegistrarHandler) GetPrices(c *gin.Context) {
	var req dto.TldPriceFilter
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "查询参数错误", err)
		return
	}
	result, err := h.registrars.GetAllPrices(c.Request.Context(), req.PaginationRequest, req.RegistrarID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Page(c, result, dto.MapList(result.Items, dto.ToTldPriceResponse))
}

// @Router /tld-prices/{id} [get]
func (h *RegistrarHandler) GetPriceByID(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	p, err := h.registrars.GetPrice(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Ok(c, dto.ToTldPriceResponse(p))
}

// UpsertPrice 按 (注册商, 顶级域) 新增或覆盖价格
// @Router /tld-prices [put]
func (h *RegistrarHandler) UpsertPrice(c *gin.Context) {
	var req dto.TldPriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "", err)
		return
	}
	p, err := h.registrars.UpsertPrice(c.Request.Context(), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OkWithMessage(c, "价格已保存", dto.ToTldPriceResponse(p))
}

// @Router /tld-prices/{id} [delete]
func (h *RegistrarHandler) DeletePrice(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.registrars.DeletePrice(c.Request.Context(), id); err != nil {
		response.FromError(c, err)
		return
	}
	response.OkWithMessage(c, "删除成功", nil)
}

package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/isp-backoffice/internal/api/response"
	"github.com/isp-backoffice/internal/dto"
	"github.com/isp-backoffice/internal/model"
	"github.com/isp-backoffice/internal/service"
	"github.com/isp-backoffice/internal/tasks"
)

type HostingHandler struct {
	hosting *service.HostingService
	manager *service.HostingManagerService
	sync    *service.HostingSyncService
	queue   tasks.Enqueuer
}

func NewHostingHandler(svc *service.Services, queue tasks.Enqueuer) *HostingHandler {
	return &HostingHandler{
		hosting: svc.Hosting,
		manager: svc.HostingManager,
		sync:    svc.HostingSync,
		queue:   queue,
	}
}

// --- 服务器 ---

// @Router /hosting/servers [get]
func (h *HostingHandler) GetServers(c *gin.Context) {
	var req dto.PaginationRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "分页参数错误", err)
		return
	}
	result, err := h.hosting.GetAllServers(c.Request.Context(), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Page(c, result, dto.MapList(result.Items, dto.ToHostingServerResponse))
}

// @Router /hosting/servers/{id} [get]
func (h *HostingHandler) GetServerByID(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	s, err := h.hosting.GetServer(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Ok(c, dto.ToHostingServerResponse(s))
}

// @Router /hosting/servers [post]
func (h *HostingHandler) CreateServer(c *gin.Context) {
	var req dto.CreateHostingServerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "", err)
		return
	}
	s, err := h.hosting.CreateServer(c.Request.Context(), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, "创建服务器成功", dto.ToHostingServerResponse(s))
}

// @Router /hosting/servers/{id} [put]
func (h *HostingHandler) UpdateServer(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateHostingServerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "", err)
		return
	}
	s, err := h.hosting.UpdateServer(c.Request.Context(), id, req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OkWithMessage(c, "更新成功", dto.ToHostingServerResponse(s))
}

// @Router /hosting/servers/{id} [delete]
func (h *HostingHandler) DeleteServer(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.hosting.DeleteServer(c.Request.Context(), id); err != nil {
		response.FromError(c, err)
		return
	}
	response.OkWithMessage(c, "删除成功", nil)
}

// SyncServer 与面板对账; 默认入队, wait=true 时同步执行
// @Router /hosting/servers/{id}/sync [post]
func (h *HostingHandler) SyncServer(c *gin.Context) {
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
		if _, err := h.hosting.GetServer(c.Request.Context(), id); err != nil {
			response.FromError(c, err)
			return
		}
		task, err := tasks.NewHostingSyncServerTask(id)
		if err != nil {
			response.ServerError(c, err)
			return
		}
		enqueue(c, h.queue, task)
		return
	}
	result, err := h.sync.SyncServer(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Ok(c, toSyncResultResponse(result))
}

// @Router /hosting/servers/sync [post]
func (h *HostingHandler) SyncAll(c *gin.Context) {
	var req dto.SyncRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "", err)
		return
	}
	if !req.Wait {
		enqueue(c, h.queue, tasks.NewPeriodicTask(tasks.TypeHostingSyncAll))
		return
	}
	result, err := h.sync.SyncAll(c.Request.Context())
	if err != nil && result == nil {
		response.FromError(c, err)
		return
	}
	// 部分服务器失败时仍返回统计, 失败数见 failed
	response.Ok(c, toSyncResultResponse(result))
}

func toSyncResultResponse(r *service.HostingSyncResult) dto.SyncResultResponse {
	return dto.SyncResultResponse{
		Servers: r.Servers,
		Failed:  r.Failed,
		Created: r.Created,
		Updated: r.Updated,
		Removed: r.Removed,
		Emails:  r.Emails,
		Domains: r.Domains,
	}
}

// --- 套餐 ---

// @Router /hosting/packages [get]
func (h *HostingHandler) GetPackages(c *gin.Context) {
	var req dto.HostingPackageFilter
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "查询参数错误", err)
		return
	}
	result, err := h.hosting.GetAllPackages(c.Request.Context(), req.PaginationRequest, req.ServerID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Page(c, result, dto.MapList(result.Items, dto.ToHostingPackageResponse))
}

// @Router /hosting/packages/{id} [get]
func (h *HostingHandler) GetPackageByID(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	p, err := h.hosting.GetPackage(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Ok(c, dto.ToHostingPackageResponse(p))
}

// @Router /hosting/packages [post]
func (h *HostingHandler) CreatePackage(c *gin.Context) {
	var req dto.CreateHostingPackageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "", err)
		return
	}
	p, err := h.hosting.CreatePackage(c.Request.Context(), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, "创建套餐成功", dto.ToHostingPackageResponse(p))
}

// @Router /hosting/packages/{id} [put]
func (h *HostingHandler) UpdatePackage(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateHostingPackageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "", err)
		return
	}
	p, err := h.hosting.UpdatePackage(c.Request.Context(), id, req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OkWithMessage(c, "更新成功", dto.ToHostingPackageResponse(p))
}

// @Router /hosting/packages/{id} [delete]
func (h *HostingHandler) DeletePackage(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.hosting.DeletePackage(c.Request.Context(), id); err != nil {
		response.FromError(c, err)
		return
	}
	response.OkWithMessage(c, "删除成功", nil)
}

// --- 账户 ---

// @Router /hosting/accounts [get]
func (h *HostingHandler) GetAccounts(c *gin.Context) {
	var req dto.HostingAccountFilter
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "查询参数错误", err)
		return
	}
	result, err := h.hosting.GetAllAccounts(c.Request.Context(), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Page(c, result, dto.MapList(result.Items, dto.ToHostingAccountResponse))
}

// @Router /hosting/accounts/{id} [get]
func (h *HostingHandler) GetAccountByID(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	a, err := h.hosting.GetAccount(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Ok(c, dto.ToHostingAccountResponse(a))
}

// CreateAccount 只在本地登记 (pending), 开通需调用 provision
// @Router /hosting/accounts [post]
func (h *HostingHandler) CreateAccount(c *gin.Context) {
	var req dto.CreateHostingAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "", err)
		return
	}
	a, err := h.hosting.CreateAccount(c.Request.Context(), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, "账户已登记", dto.ToHostingAccountResponse(a))
}

// @Router /hosting/accounts/{id} [put]
func (h *HostingHandler) UpdateAccount(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateHostingAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "", err)
		return
	}
	a, err := h.hosting.UpdateAccount(c.Request.Context(), id, req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OkWithMessage(c, "更新成功", dto.ToHostingAccountResponse(a))
}

// @Router /hosting/accounts/{id} [delete]
func (h *HostingHandler) DeleteAccount(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.hosting.DeleteAccount(c.Request.Context(), id); err != nil {
		response.FromError(c, err)
		return
	}
	response.OkWithMessage(c, "删除成功", nil)
}

// @Router /hosting/accounts/{id}/emails [get]
func (h *HostingHandler) GetEmailAccounts(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	emails, err := h.hosting.GetEmailAccounts(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	out := make([]dto.HostingEmailAccountResponse, 0, len(emails))
	for _, e := range emails {
		out = append(out, dto.HostingEmailAccountResponse{Address: e.Address, QuotaMB: e.QuotaMB, UsedMB: e.UsedMB})
	}
	response.Ok(c, out)
}

// @Router /hosting/accounts/{id}/domains [get]
func (h *HostingHandler) GetAddonDomains(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	domains, err := h.hosting.GetAddonDomains(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	out := make([]dto.HostingAddonDomainResponse, 0, len(domains))
	for _, d := range domains {
		out = append(out, dto.HostingAddonDomainResponse{Domain: d.Domain, Kind: d.Kind})
	}
	response.Ok(c, out)
}

// Provision 在面板创建账户并生成首期草稿账单
// @Router /hosting/accounts/{id}/provision [post]
func (h *HostingHandler) Provision(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.ProvisionAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "", err)
		return
	}
	a, inv, err := h.manager.Provision(c.Request.Context(), id, req.Password)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OkWithMessage(c, "账户已开通", dto.ProvisionResponse{
		Account: dto.ToHostingAccountResponse(a),
		Invoice: dto.ToInvoiceResponse(inv),
	})
}

// @Router /hosting/accounts/{id}/suspend [post]
func (h *HostingHandler) Suspend(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.SuspendAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "", err)
		return
	}
	a, err := h.manager.Suspend(c.Request.Context(), id, req.Reason)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OkWithMessage(c, "账户已暂停", dto.ToHostingAccountResponse(a))
}

// @Router /hosting/accounts/{id}/unsuspend [post]
func (h *HostingHandler) Unsuspend(c *gin.Context) {
	h.accountAction(c, "账户已恢复", h.manager.Unsuspend)
}

// @Router /hosting/accounts/{id}/terminate [post]
func (h *HostingHandler) Terminate(c *gin.Context) {
	h.accountAction(c, "账户已终止", h.manager.Terminate)
}

func (h *HostingHandler) accountAction(c *gin.Context, msg string, fn func(context.Context, uint) (*model.HostingAccount, error)) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	a, err := fn(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OkWithMessage(c, msg, dto.ToHostingAccountResponse(a))
}

// @Router /hosting/accounts/{id}/package [put]
func (h *HostingHandler) ChangePackage(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.ChangePackageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "", err)
		return
	}
	a, err := h.manager.ChangePackage(c.Request.Context(), id, req.PackageID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OkWithMessage(c, "套餐已变更", dto.ToHostingAccountResponse(a))
}

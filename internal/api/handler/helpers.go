// Package handler 后台 HTTP 接口, 只负责参数绑定、调用 service 与响应转换
package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/isp-backoffice/internal/api/middleware"
	"github.com/isp-backoffice/internal/api/response"
	"github.com/isp-backoffice/internal/dto"
	"github.com/isp-backoffice/internal/tasks"
)

// parseID 解析路径参数中的正整数 ID, 失败时已写入 400 响应
func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		response.BadRequest(c, "无效的ID", err)
		return 0, false
	}
	return uint(id), true
}

func currentUserID(c *gin.Context) uint {
	id, _ := c.Get(middleware.ContextUserID)
	uid, _ := id.(uint)
	return uid
}

// enqueue 投递异步任务并返回 202; 唯一任务重复投递返回 409
func enqueue(c *gin.Context, queue tasks.Enqueuer, task *asynq.Task) {
	info, err := queue.EnqueueContext(c.Request.Context(), task)
	if err != nil {
		if errors.Is(err, asynq.ErrDuplicateTask) || errors.Is(err, asynq.ErrTaskIDConflict) {
			response.FailConflict(c, "相同的任务已在队列中")
			return
		}
		response.ServerError(c, err)
		return
	}
	response.Accepted(c, "任务已入队", dto.EnqueuedResponse{TaskID: info.ID, Queue: info.Queue})
}

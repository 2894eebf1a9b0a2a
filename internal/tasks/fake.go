package tasks

import (
	"context"
	"sync"

	"github.com/hibiken/asynq"
)

// RecordingEnqueuer 记录入队任务而不连接 Redis, 供测试与 dry-run 使用
type RecordingEnqueuer struct {
	mu    sync.Mutex
	Tasks []*asynq.Task
	Err   error
}

func (r *RecordingEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	r.Tasks = append(r.Tasks, task)
	return &asynq.TaskInfo{Type: task.Type(), Payload: task.Payload()}, nil
}

// Types 返回已入队任务的类型列表
func (r *RecordingEnqueuer) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.Tasks))
	for _, t := range r.Tasks {
		out = append(out, t.Type())
	}
	return out
}

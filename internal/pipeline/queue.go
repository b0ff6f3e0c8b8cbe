package pipeline

import (
	"docvault-go/internal/model"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventKind 表示队列变化的类型。
type EventKind string

const (
	EventEnqueued EventKind = "enqueued"
	EventUpdated  EventKind = "updated"
	EventRemoved  EventKind = "removed"
)

// QueueEvent 是队列中一次变化的快照。
type QueueEvent struct {
	Kind EventKind        `json:"kind"`
	Task model.UploadTask `json:"task"`
}

// TaskUpdate 描述一次状态更新。
type TaskUpdate struct {
	Status     model.UploadStatus
	Progress   int
	Error      string
	DocumentID string
}

// UploadQueue 持有所有上传任务的状态，是任务状态的唯一所有者。
// 状态迁移必须单调，进度不会回退，终态任务只能被移除。
type UploadQueue struct {
	mu      sync.Mutex
	order   []string
	tasks   map[string]*model.UploadTask
	subs    map[int]*subscriber
	nextSub int
	now     func() time.Time
}

// NewUploadQueue 创建一个空队列。
func NewUploadQueue() *UploadQueue {
	return &UploadQueue{
		tasks: make(map[string]*model.UploadTask),
		subs:  make(map[int]*subscriber),
		now:   time.Now,
	}
}

// Enqueue 以 pending 状态加入一个任务并返回其快照。
func (q *UploadQueue) Enqueue(task model.UploadTask) model.UploadTask {
	q.mu.Lock()
	defer q.mu.Unlock()

	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	now := q.now()
	task.Status = model.UploadPending
	task.Progress = 0
	task.ErrorMessage = ""
	task.DocumentID = ""
	task.CreatedAt = now
	task.UpdatedAt = now

	stored := task
	q.tasks[task.ID] = &stored
	q.order = append(q.order, task.ID)
	q.broadcast(EventEnqueued, stored)
	return stored
}

// UpdateStatus 更新任务状态。非法迁移返回 ConflictError，任务保持不变。
func (q *UploadQueue) UpdateStatus(id string, u TaskUpdate) (model.UploadTask, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.tasks[id]
	if !ok {
		return model.UploadTask{}, model.NewNotFoundError("upload task", id)
	}
	if !model.CanTransition(task.Status, u.Status) {
		return *task, &model.ConflictError{
			Message: fmt.Sprintf("upload task %s: cannot move from %s to %s", id, task.Status, u.Status),
		}
	}

	task.Status = u.Status
	switch {
	case u.Status == model.UploadSuccess:
		task.Progress = 100
	case u.Progress > task.Progress:
		task.Progress = min(u.Progress, 100)
	}
	if u.Error != "" {
		task.ErrorMessage = u.Error
	}
	if u.DocumentID != "" {
		task.DocumentID = u.DocumentID
	}
	task.UpdatedAt = q.now()

	q.broadcast(EventUpdated, *task)
	return *task, nil
}

// Get 返回任务快照。
func (q *UploadQueue) Get(id string) (model.UploadTask, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	task, ok := q.tasks[id]
	if !ok {
		return model.UploadTask{}, false
	}
	return *task, true
}

// Tasks 按加入顺序返回 owner 的任务快照。
func (q *UploadQueue) Tasks(owner string) []model.UploadTask {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]model.UploadTask, 0, len(q.order))
	for _, id := range q.order {
		if task := q.tasks[id]; task.OwnerID == owner {
			out = append(out, *task)
		}
	}
	return out
}

// Purge 移除给定 id 中已处于终态的任务，返回移除数量。
func (q *UploadQueue) Purge(ids ...string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	removed := 0
	for _, id := range ids {
		if task, ok := q.tasks[id]; ok && task.Status.IsTerminal() {
			q.remove(id)
			removed++
		}
	}
	return removed
}

// Clear 移除 owner 的一个已结束任务。进行中的任务不能被移除，
// 其他用户的任务视为不存在。
func (q *UploadQueue) Clear(owner, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	task, ok := q.tasks[id]
	if !ok || task.OwnerID != owner {
		return model.NewNotFoundError("upload task", id)
	}
	if !task.Status.IsTerminal() {
		return &model.ConflictError{Message: fmt.Sprintf("upload task %s is still %s", id, task.Status)}
	}
	q.remove(id)
	return nil
}

// ClearFinished 移除 owner 所有已结束的任务，返回移除数量。
func (q *UploadQueue) ClearFinished(owner string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	var finished []string
	for _, id := range q.order {
		if task := q.tasks[id]; task.OwnerID == owner && task.Status.IsTerminal() {
			finished = append(finished, id)
		}
	}
	for _, id := range finished {
		q.remove(id)
	}
	return len(finished)
}

// Subscribe 订阅队列事件。事件按发生顺序投递且不会丢失，
// 消费慢时在订阅者内部排队。返回的 cancel 会关闭通道。
func (q *UploadQueue) Subscribe(buffer int) (<-chan QueueEvent, func()) {
	if buffer < 0 {
		buffer = 0
	}
	s := &subscriber{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
		out:    make(chan QueueEvent, buffer),
	}

	q.mu.Lock()
	id := q.nextSub
	q.nextSub++
	q.subs[id] = s
	q.mu.Unlock()

	go s.run()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			q.mu.Lock()
			delete(q.subs, id)
			q.mu.Unlock()
			close(s.done)
		})
	}
	return s.out, cancel
}

// remove 需要持有 q.mu。
func (q *UploadQueue) remove(id string) {
	task := q.tasks[id]
	delete(q.tasks, id)
	for i, oid := range q.order {
		if oid == id {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
	q.broadcast(EventRemoved, *task)
}

// broadcast 需要持有 q.mu，保证所有订阅者看到相同的事件顺序。
func (q *UploadQueue) broadcast(kind EventKind, task model.UploadTask) {
	ev := QueueEvent{Kind: kind, Task: task}
	for _, s := range q.subs {
		s.push(ev)
	}
}

type subscriber struct {
	mu      sync.Mutex
	pending []QueueEvent
	notify  chan struct{}
	done    chan struct{}
	out     chan QueueEvent
}

func (s *subscriber) push(ev QueueEvent) {
	s.mu.Lock()
	s.pending = append(s.pending, ev)
	s.mu.Unlock()
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *subscriber) run() {
	defer close(s.out)
	for {
		s.mu.Lock()
		batch := s.pending
		s.pending = nil
		s.mu.Unlock()

		for _, ev := range batch {
			select {
			case s.out <- ev:
			case <-s.done:
				return
			}
		}
		if len(batch) > 0 {
			continue
		}

		select {
		case <-s.notify:
		case <-s.done:
			return
		}
	}
}

package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/plastinin/identtracker/internal/domain"
)

var errTransport = errors.New("connection reset by peer")

// fakeAPI управляемая реализация RemoteTaskAPI
type fakeAPI struct {
	mu sync.Mutex

	createID  string
	createErr error

	// Ответы на опрос по порядку; последний повторяется
	statuses []statusReply
	polls    int
	// Вызывается на каждом опросе до ответа, вне блокировки
	onPoll func(n int)

	result      *domain.Result
	resultErr   error
	resultCalls int

	cancelErr   error
	cancelCalls int
	onCancel    func()
}

type statusReply struct {
	status *domain.RemoteStatus
	err    error
}

func running() statusReply {
	return statusReply{status: &domain.RemoteStatus{State: domain.RemoteStateRunning}}
}

func succeeded() statusReply {
	return statusReply{status: &domain.RemoteStatus{State: domain.RemoteStateSucceeded}}
}

func failing() statusReply {
	return statusReply{err: errTransport}
}

func (f *fakeAPI) CreateTask(_ context.Context, _ domain.Submission) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.createID, f.createErr
}

func (f *fakeAPI) GetTaskStatus(_ context.Context, _ string) (*domain.RemoteStatus, error) {
	f.mu.Lock()
	f.polls++
	n, hook := f.polls, f.onPoll
	f.mu.Unlock()

	if hook != nil {
		hook(n)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.statuses) == 0 {
		return &domain.RemoteStatus{State: domain.RemoteStateRunning}, nil
	}
	idx := n - 1
	if idx >= len(f.statuses) {
		idx = len(f.statuses) - 1
	}
	reply := f.statuses[idx]
	return reply.status, reply.err
}

func (f *fakeAPI) GetTaskResult(_ context.Context, _ string) (*domain.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resultCalls++
	return f.result, f.resultErr
}

func (f *fakeAPI) CancelTask(_ context.Context, _ string) error {
	f.mu.Lock()
	f.cancelCalls++
	hook, err := f.onCancel, f.cancelErr
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return err
}

func (f *fakeAPI) pollCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.polls
}

// fakeRepo хранилище задач в памяти
type fakeRepo struct {
	mu      sync.Mutex
	tasks   map[string]domain.TrackedTask
	saves   int
	saveErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{tasks: map[string]domain.TrackedTask{}}
}

func (r *fakeRepo) Save(_ context.Context, task *domain.TrackedTask) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	if stored, ok := r.tasks[task.ID]; ok && !stored.State.CanBeOverwrittenBy(task.State) {
		return fmt.Errorf("task %s cannot become %s: %w", task.ID, task.State, domain.ErrInvalidTransition)
	}
	r.saves++
	r.tasks[task.ID] = *task
	return nil
}

func (r *fakeRepo) GetByID(_ context.Context, id string) (*domain.TrackedTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	return &task, nil
}

func (r *fakeRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[id]; !ok {
		return domain.ErrTaskNotFound
	}
	delete(r.tasks, id)
	return nil
}

func (r *fakeRepo) List(_ context.Context, filter domain.TaskFilter, pagination domain.Pagination) (*domain.TaskListResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tasks := make([]*domain.TrackedTask, 0, len(r.tasks))
	for _, task := range r.tasks {
		if filter.State != nil && task.State != *filter.State {
			continue
		}
		task := task
		tasks = append(tasks, &task)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	return &domain.TaskListResult{Tasks: tasks, Total: len(tasks), Pagination: pagination}, nil
}

// fakePrefs хранилище настроек в памяти
type fakePrefs struct {
	prefs     map[string]domain.PollPreferences
	defaults  domain.PollPreferences
	getErr    error
	overrides map[string]domain.PreferenceOverrides
}

func newFakePrefs(defaults domain.PollPreferences) *fakePrefs {
	return &fakePrefs{
		prefs:     map[string]domain.PollPreferences{},
		defaults:  defaults,
		overrides: map[string]domain.PreferenceOverrides{},
	}
}

func (p *fakePrefs) Get(_ context.Context, profile string) (domain.PollPreferences, error) {
	if p.getErr != nil {
		return domain.PollPreferences{}, p.getErr
	}
	if o, ok := p.overrides[profile]; ok {
		return o.Apply(p.defaults), nil
	}
	return p.defaults, nil
}

func (p *fakePrefs) Save(_ context.Context, profile string, overrides domain.PreferenceOverrides) error {
	p.overrides[profile] = overrides
	return nil
}

// fakeSink приёмник экспорта в памяти
type fakeSink struct {
	exports  map[string]*domain.Result
	deleted  []string
	exportFn func() (string, error)
}

func newFakeSink() *fakeSink {
	return &fakeSink{exports: map[string]*domain.Result{}}
}

func (s *fakeSink) Export(_ context.Context, task domain.TaskSnapshot, result *domain.Result) (string, error) {
	if s.exportFn != nil {
		return s.exportFn()
	}
	key := "exports/" + task.ID
	s.exports[key] = result
	return key, nil
}

func (s *fakeSink) URLs(_ context.Context, key string) (map[string]string, error) {
	return map[string]string{"json": "https://s3/" + key + ".json"}, nil
}

func (s *fakeSink) Delete(_ context.Context, key string) error {
	s.deleted = append(s.deleted, key)
	return nil
}

// fakeQueue очередь в памяти
type fakeQueue struct {
	enqueued []string
	err      error
}

func (q *fakeQueue) Enqueue(_ context.Context, taskID string) error {
	if q.err != nil {
		return q.err
	}
	q.enqueued = append(q.enqueued, taskID)
	return nil
}

// mapCache кэш результатов в памяти
type mapCache struct {
	items map[string]*domain.Result
}

func newMapCache() *mapCache {
	return &mapCache{items: map[string]*domain.Result{}}
}

func (c *mapCache) Get(id string) (*domain.Result, bool) {
	r, ok := c.items[id]
	return r, ok
}

func (c *mapCache) Set(id string, r *domain.Result) { c.items[id] = r }

func (c *mapCache) Delete(id string) { delete(c.items, id) }

// fixedClock часы, которые двигаются только вручную
type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

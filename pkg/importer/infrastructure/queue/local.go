// Package queue runs batch tasks. LocalQueue is a pool of background workers
// per queue class. InlineQueue runs a whole chain inside Enqueue and is used
// by the one-shot CLI and by tests.
//
// Both queues hold the job key of a task from Enqueue until its chain ends,
// so at most one task per job is pending or running at any time.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/tigerroll/surfin-import/pkg/importer/core/application/port"
	config "github.com/tigerroll/surfin-import/pkg/importer/core/config"
	"github.com/tigerroll/surfin-import/pkg/importer/support/util/exception"
	"github.com/tigerroll/surfin-import/pkg/importer/support/util/logger"
)

const moduleName = "queue"

// ErrQueueFull is returned by Enqueue when the queue class has no free slot.
var ErrQueueFull = errors.New("queue is full")

// keySet tracks the job keys of pending and running chains.
type keySet struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func newKeySet() *keySet {
	return &keySet{keys: make(map[string]struct{})}
}

func (s *keySet) reserve(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.keys[key]; taken {
		return false
	}
	s.keys[key] = struct{}{}
	return true
}

func (s *keySet) release(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, key)
}

func (s *keySet) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.keys[key]
	return ok
}

func (s *keySet) reset() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.keys)
	s.keys = make(map[string]struct{})
	return n
}

// LocalQueue dispatches tasks to a fixed number of workers per queue class.
type LocalQueue struct {
	handler      port.TaskHandler
	workers      map[string]int
	bufferSize   int
	defaultClass string

	keys    *keySet
	classes map[string]chan port.Task
	running atomic.Bool

	mu      sync.Mutex
	cancel  context.CancelFunc
	group   *errgroup.Group
	pushers sync.WaitGroup
}

// NewLocalQueue creates a stopped LocalQueue. Tasks naming an unknown queue
// class run on defaultClass.
func NewLocalQueue(handler port.TaskHandler, cfg config.QueueConfig, defaultClass string) *LocalQueue {
	workers := make(map[string]int, len(cfg.Workers))
	for class, n := range cfg.Workers {
		if n > 0 {
			workers[class] = n
		}
	}
	if _, ok := workers[defaultClass]; !ok {
		workers[defaultClass] = 1
	}
	bufferSize := cfg.BufferSize
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &LocalQueue{
		handler:      handler,
		workers:      workers,
		bufferSize:   bufferSize,
		defaultClass: defaultClass,
		keys:         newKeySet(),
	}
}

// Start launches the workers. Calling Start on a running queue is a no-op.
func (q *LocalQueue) Start() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running.Load() {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	group, ctx := errgroup.WithContext(ctx)
	q.classes = make(map[string]chan port.Task, len(q.workers))

	classNames := make([]string, 0, len(q.workers))
	for class := range q.workers {
		classNames = append(classNames, class)
	}
	sort.Strings(classNames)
	for _, class := range classNames {
		ch := make(chan port.Task, q.bufferSize)
		q.classes[class] = ch
		for i := 0; i < q.workers[class]; i++ {
			class, worker := class, i
			group.Go(func() error {
				q.work(ctx, class, worker, ch)
				return nil
			})
		}
		logger.Infof("Queue '%s' started with %d workers.", class, q.workers[class])
	}
	q.cancel = cancel
	q.group = group
	q.running.Store(true)
	return nil
}

// Stop cancels running tasks and waits for the workers to exit. Pending tasks are dropped.
func (q *LocalQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.running.Load() {
		q.mu.Unlock()
		return nil
	}
	q.running.Store(false)
	q.cancel()
	group := q.group
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		_ = group.Wait()
		q.pushers.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return exception.NewImportError(moduleName, "timed out waiting for queue workers", ctx.Err())
	}
	if n := q.keys.reset(); n > 0 {
		logger.Warnf("Queue stopped with %d unfinished job chains.", n)
	}
	logger.Infof("Queue stopped.")
	return nil
}

// Enqueue schedules task on its queue class.
func (q *LocalQueue) Enqueue(ctx context.Context, task port.Task) error {
	if !q.running.Load() {
		return exception.ErrQueueInactive
	}
	if !q.keys.reserve(task.JobKey) {
		return port.ErrDuplicateTask
	}
	ch := q.channel(task.Queue)
	select {
	case ch <- task:
		logger.Debugf("Enqueued task for '%s' at offset %d on '%s'.", task.JobKey, task.Offset, task.Queue)
		return nil
	default:
		q.keys.release(task.JobKey)
		return exception.NewImportError(moduleName, fmt.Sprintf("queue '%s' is full", task.Queue), ErrQueueFull)
	}
}

// IsEnqueued reports whether a chain with jobKey is pending or running.
func (q *LocalQueue) IsEnqueued(jobKey string) bool {
	return q.keys.has(jobKey)
}

// Accepting reports whether the workers are running.
func (q *LocalQueue) Accepting() bool {
	return q.running.Load()
}

func (q *LocalQueue) channel(class string) chan port.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	if ch, ok := q.classes[class]; ok {
		return ch
	}
	return q.classes[q.defaultClass]
}

func (q *LocalQueue) work(ctx context.Context, class string, worker int, ch chan port.Task) {
	logger.Debugf("Worker %s-%d started.", class, worker)
	for {
		select {
		case <-ctx.Done():
			logger.Debugf("Worker %s-%d stopped.", class, worker)
			return
		case task := <-ch:
			next := runTask(ctx, q.handler, task)
			if next == nil || ctx.Err() != nil {
				q.keys.release(task.JobKey)
				continue
			}
			q.push(ctx, *next, ch)
		}
	}
}

// push hands a continuation back to the queue class without blocking the
// worker, which may be the only one draining ch. The job key stays reserved.
func (q *LocalQueue) push(ctx context.Context, next port.Task, fallback chan port.Task) {
	ch := q.channel(next.Queue)
	if ch == nil {
		ch = fallback
	}
	select {
	case ch <- next:
		return
	default:
	}
	q.pushers.Add(1)
	go func() {
		defer q.pushers.Done()
		select {
		case ch <- next:
		case <-ctx.Done():
			q.keys.release(next.JobKey)
		}
	}()
}

// runTask runs one task under its time budget. A panicking handler ends the chain.
func runTask(ctx context.Context, handler port.TaskHandler, task port.Task) (next *port.Task) {
	taskCtx := ctx
	if task.Timeout > 0 {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithTimeout(ctx, task.Timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("Task for '%s' panicked: %v", task.JobKey, r)
			next = nil
		}
	}()
	next, err := handler(taskCtx, task)
	if err != nil {
		logger.Errorf("Task for '%s' at offset %d failed: %v", task.JobKey, task.Offset, err)
	}
	return next
}

var _ port.JobQueue = (*LocalQueue)(nil)

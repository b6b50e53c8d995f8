package queue

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mailnotify/internal/metrics"
)

var (
	// ErrQueueFull is returned by Enqueue when no buffer slot is free.
	ErrQueueFull = errors.New("queue: full")
	// ErrStopped is returned by Enqueue after Stop was called.
	ErrStopped = errors.New("queue: stopped")
)

// Manager runs queued jobs through a Sender on a fixed pool of workers.
// Each worker handles one job at a time, so the retry sequence of a single
// message is never interleaved with itself.
type Manager struct {
	sender  Sender
	workers int
	jobs    chan Job
	log     *zap.SugaredLogger

	mu       sync.RWMutex
	started  bool
	stopped  bool
	stopping chan struct{}
	stopOnce sync.Once
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager creates a queue holding up to size pending jobs.
func NewManager(sender Sender, workers, size int, log *zap.SugaredLogger) *Manager {
	if workers < 1 {
		workers = 1
	}
	if size < 1 {
		size = 1
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		sender:  sender,
		workers: workers,
		jobs:    make(chan Job, size),
		log:      log.Named("queue"),
		ctx:      ctx,
		cancel:   cancel,
		stopping: make(chan struct{}),
	}
}

// Enqueue adds a job without blocking. Jobs without an ID get one.
func (m *Manager) Enqueue(job Job) (string, error) {
	return m.enqueue(context.Background(), job, false)
}

// EnqueueWait adds a job, waiting for a free buffer slot while the queue is
// full. It returns ctx's error when ctx ends first and ErrStopped when Stop
// is called while waiting.
func (m *Manager) EnqueueWait(ctx context.Context, job Job) (string, error) {
	return m.enqueue(ctx, job, true)
}

// enqueue holds the read lock while waiting so Stop cannot close the channel
// under a pending send.
func (m *Manager) enqueue(ctx context.Context, job Job, wait bool) (string, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.stopped {
		metrics.MessagesDropped.Inc()
		return "", ErrStopped
	}

	if !wait {
		select {
		case m.jobs <- job:
		default:
			metrics.MessagesDropped.Inc()
			m.log.Warnw("Queue full, dropping job", "id", job.ID, "kind", job.Kind)
			return "", ErrQueueFull
		}
	} else {
		select {
		case m.jobs <- job:
		case <-m.stopping:
			metrics.MessagesDropped.Inc()
			return "", ErrStopped
		case <-ctx.Done():
			metrics.MessagesDropped.Inc()
			m.log.Warnw("Gave up waiting for queue slot", "id", job.ID, "kind", job.Kind, "error", ctx.Err())
			return "", ctx.Err()
		}
	}

	metrics.MessagesQueued.Inc()
	metrics.SetQueueDepth(len(m.jobs))
	m.log.Debugw("Queued job", "id", job.ID, "kind", job.Kind, "recipients", len(job.Message.To))
	return job.ID, nil
}

// Start launches the workers. Calling it more than once has no effect.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startLocked()
}

func (m *Manager) startLocked() {
	if m.started {
		return
	}
	m.started = true
	for i := 0; i < m.workers; i++ {
		m.wg.Add(1)
		go m.work()
	}
}

// Stop rejects new jobs and waits for queued ones to finish, starting the
// workers if needed. When ctx ends first, in-flight sends are cancelled and
// ctx's error is returned.
func (m *Manager) Stop(ctx context.Context) error {
	m.stopOnce.Do(func() { close(m.stopping) })
	m.mu.Lock()
	if !m.stopped {
		m.stopped = true
		close(m.jobs)
		m.startLocked()
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.cancel()
		return nil
	case <-ctx.Done():
		m.cancel()
		<-done
		return ctx.Err()
	}
}

// Depth returns the number of jobs waiting for a worker.
func (m *Manager) Depth() int {
	return len(m.jobs)
}

func (m *Manager) work() {
	defer m.wg.Done()
	for job := range m.jobs {
		metrics.SetQueueDepth(len(m.jobs))
		m.process(job)
	}
}

func (m *Manager) process(job Job) {
	out := m.sender.Send(m.ctx, job.Message)
	if out.OK() {
		m.log.Infow("Delivered queued job", "id", job.ID, "kind", job.Kind, "attempts", out.Attempts)
	} else {
		m.log.Errorw("Queued job failed", "id", job.ID, "kind", job.Kind, "attempts", out.Attempts, "error", out.Err)
	}
	if job.Done != nil {
		job.Done(job, out)
	}
}

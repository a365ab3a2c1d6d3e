package server

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job is a unit of periodic work. It receives a context cancelled on Stop.
type Job func(ctx context.Context)

// Ticker runs named jobs, each on its own interval, as a Service.
//
// Invariant: a job never runs concurrently with itself.
type Ticker struct {
	logger *zap.Logger

	mu      sync.Mutex
	jobs    map[string]tickJob
	running bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type tickJob struct {
	interval time.Duration
	fn       Job
}

// NewTicker returns an empty Ticker.
func NewTicker(logger *zap.Logger) *Ticker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Ticker{
		logger: logger,
		jobs:   make(map[string]tickJob),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Every registers fn to run once per interval under name, replacing any
// existing job of that name. Jobs registered after Start are not scheduled.
//
// Precondition: interval must be > 0.
func (t *Ticker) Every(name string, interval time.Duration, fn Job) {
	if interval <= 0 {
		panic("server.Ticker.Every: interval must be > 0")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.jobs[name] = tickJob{interval: interval, fn: fn}
}

// Jobs lists registered job names in order.
func (t *Ticker) Jobs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	names := make([]string, 0, len(t.jobs))
	for name := range t.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Start schedules every job and blocks until Stop.
func (t *Ticker) Start() error {
	t.mu.Lock()
	if t.running || t.ctx.Err() != nil {
		t.mu.Unlock()
		<-t.ctx.Done()
		return nil
	}
	t.running = true
	for name, job := range t.jobs {
		t.wg.Add(1)
		go t.loop(name, job)
	}
	t.mu.Unlock()

	<-t.ctx.Done()
	t.wg.Wait()
	return nil
}

// Stop cancels every job and waits for in-flight runs to return.
func (t *Ticker) Stop() {
	t.cancel()
	t.mu.Lock()
	t.mu.Unlock()
	t.wg.Wait()
}

func (t *Ticker) loop(name string, job tickJob) {
	defer t.wg.Done()
	tick := time.NewTicker(job.interval)
	defer tick.Stop()
	for {
		select {
		case <-t.ctx.Done():
			return
		case <-tick.C:
			t.run(name, job.fn)
		}
	}
}

func (t *Ticker) run(name string, fn Job) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("tick job panicked", zap.String("job", name), zap.Any("panic", r))
		}
	}()
	fn(t.ctx)
}

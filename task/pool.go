package task

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// poolWorker is one dispatch-loop goroutine. retire is set by the
// auto-scale loop to ask the worker to exit after its current (or next)
// queues.pop() returns, without disturbing any sibling worker — scaling
// down one worker must not interrupt the others mid-task.
type poolWorker struct {
	id     int64
	retire int32
}

// workerPool runs Engine's dispatch loops and, optionally, the
// queue_pressure auto-scale loop described in spec.md §4.8. Grounded on
// etalazz-vsa/internal/ratelimiter/core/worker.go's Start/Stop shape
// (stopChan + sync.WaitGroup), with errgroup.Group standing in for the
// WaitGroup so Stop(wait=true) can fan in worker-loop completion the
// same way — workers here never return an error, but errgroup's Wait is
// otherwise exactly the WaitGroup.Wait the teacher uses, and leaves room
// for a worker loop to surface a panic-recovered error in the future.
type workerPool struct {
	e *Engine

	mu           sync.Mutex
	workers      map[int64]*poolWorker
	nextWorkerID int64
	workerCnt    int64
	runningCnt   int64

	g      *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc

	lastScale time.Time
}

func newWorkerPool(e *Engine) *workerPool {
	return &workerPool{e: e, workers: map[int64]*poolWorker{}}
}

func (p *workerPool) start() {
	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.g = &errgroup.Group{}

	for i := 0; i < p.e.cfg.Initial; i++ {
		p.spawn()
	}

	// A real lock-free MPMC wouldn't need this, but the mutex+cond
	// queues here can only wake a worker on push or on close — a
	// worker asked to retire while idle in queues.pop() needs a
	// periodic nudge to notice and exit. Broadcasting on the same
	// cadence as the pressure check keeps retiring workers responsive
	// without a dedicated timer per worker.
	p.g.Go(func() error {
		p.waker()
		return nil
	})

	if p.e.cfg.AutoScale {
		p.g.Go(func() error {
			p.autoScaleLoop()
			return nil
		})
	}
}

func (p *workerPool) waker() {
	t := time.NewTicker(p.wakeInterval())
	defer t.Stop()
	for {
		select {
		case <-p.ctx.Done():
			return
		case <-t.C:
			p.e.queues.cond.Broadcast()
		}
	}
}

func (p *workerPool) wakeInterval() time.Duration {
	d := p.e.cfg.ScaleCheckInterval
	if d <= 0 || d > 2*time.Second {
		d = 2 * time.Second
	}
	return d
}

func (p *workerPool) spawn() {
	p.mu.Lock()
	p.nextWorkerID++
	w := &poolWorker{id: p.nextWorkerID}
	p.workers[w.id] = w
	p.mu.Unlock()
	atomic.AddInt64(&p.workerCnt, 1)

	p.g.Go(func() error {
		p.runLoop(w)
		return nil
	})
}

func (p *workerPool) runLoop(w *poolWorker) {
	defer func() {
		p.mu.Lock()
		delete(p.workers, w.id)
		p.mu.Unlock()
		atomic.AddInt64(&p.workerCnt, -1)
	}()

	for {
		if atomic.LoadInt32(&w.retire) == 1 {
			return
		}
		rec := p.e.queues.pop()
		if rec == nil {
			return // queue set closed and drained
		}
		if atomic.LoadInt32(&w.retire) == 1 {
			// Already claimed a task when retire arrived; finish it
			// rather than dropping it, then exit.
			p.execute(rec)
			return
		}
		p.execute(rec)
	}
}

// retireOne asks exactly one worker to exit after its current task, to
// implement the auto-scale-down side of spec.md §4.8.
func (p *workerPool) retireOne() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, w := range p.workers {
		if atomic.CompareAndSwapInt32(&w.retire, 0, 1) {
			return true
		}
	}
	return false
}

func (p *workerPool) workerCount() int64  { return atomic.LoadInt64(&p.workerCnt) }
func (p *workerPool) runningCount() int64 { return atomic.LoadInt64(&p.runningCnt) }

// autoScaleLoop samples queue_pressure and scales the worker count
// between cfg.Min and cfg.Max, per spec.md §4.8's auto-scaling
// operation.
func (p *workerPool) autoScaleLoop() {
	cfg := &p.e.cfg
	t := time.NewTicker(cfg.ScaleCheckInterval)
	defer t.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-t.C:
			p.maybeScale(cfg)
		}
	}
}

func (p *workerPool) maybeScale(cfg *Config) {
	if time.Since(p.lastScale) < cfg.ScaleCooldown {
		return
	}

	workers := p.workerCount()
	if workers == 0 {
		return
	}
	pressure := float64(p.e.queues.queued()) / float64(workers*int64(cfg.TargetPerWorker))

	switch {
	case pressure > cfg.ScaleUpThreshold && workers < int64(cfg.Max):
		p.spawn()
		p.lastScale = time.Now()
	case pressure < cfg.ScaleDownThreshold && workers > int64(cfg.Min):
		if p.retireOne() {
			p.lastScale = time.Now()
		}
	}
}

// stop signals every worker to exit once the (now-closing) queue set
// drains, and optionally blocks until they have.
func (p *workerPool) stop(wait bool) {
	if p.cancel != nil {
		p.cancel()
	}
	if wait {
		p.g.Wait()
	}
}

// execute runs rec's handler to completion, applying its per-task
// timeout and the retry/backoff path on failure, per spec.md §4.8's
// failure semantics.
func (p *workerPool) execute(rec *taskRecord) {
	if rec.cancelled() {
		return
	}

	atomic.AddInt64(&p.runningCnt, 1)
	defer atomic.AddInt64(&p.runningCnt, -1)

	rec.mu.Lock()
	rec.status = Running
	rec.mu.Unlock()

	ctx := context.Background()
	var cancel context.CancelFunc
	if rec.timeoutMS > 0 {
		ctx, cancel = context.WithTimeout(ctx, time.Duration(rec.timeoutMS)*time.Millisecond)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	result, err := rec.handler(ctx, rec.payload)

	if rec.cancelled() {
		return
	}

	if err == nil {
		atomic.AddInt64(&p.e.stats.succeeded, 1)
		rec.setTerminal(Succeeded, result, nil)
		p.e.reapAfter(rec, reapGrace)
		return
	}

	rec.mu.Lock()
	rec.attempt++
	attempt := rec.attempt
	rec.mu.Unlock()

	if attempt <= rec.maxRetries {
		atomic.AddInt64(&p.e.stats.retried, 1)
		if rec.onRetry != nil {
			rec.onRetry(rec.id, attempt, err)
		}
		backoff := time.Duration(float64(retryBaseDelay) * math.Pow(p.e.cfg.RetryBackoffFactor, float64(attempt)))
		time.AfterFunc(backoff, func() {
			if rec.cancelled() {
				return
			}
			rec.mu.Lock()
			rec.status = Pending
			rec.mu.Unlock()
			p.e.queues.push(rec)
		})
		return
	}

	atomic.AddInt64(&p.e.stats.failed, 1)
	if rec.onFailure != nil {
		rec.onFailure(rec.id, err)
	}
	rec.setTerminal(Failed, nil, err)
	p.e.reapAfter(rec, reapGrace)
}

const (
	reapGrace      = 30 * time.Second
	retryBaseDelay = 100 * time.Millisecond
)

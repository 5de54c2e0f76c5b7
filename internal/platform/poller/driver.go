package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jsamuelsen/go-ambient/internal/ambient"
)

// Config holds driver settings.
type Config struct {
	// Size is the number of worker goroutines. Zero or negative uses GOMAXPROCS.
	Size int

	// QueueSize is the run queue capacity. Zero uses twice Size.
	QueueSize int

	// PollInterval delays re-queueing a task that reported pending.
	// Zero re-queues immediately.
	PollInterval time.Duration
}

// Driver is a fixed-size pool of workers polling spawned tasks.
type Driver struct {
	cfg     Config
	logger  *slog.Logger
	metrics *metrics

	ctx    context.Context
	cancel context.CancelFunc

	queue chan runnable
	stop  chan struct{}
	wg    sync.WaitGroup

	mu      sync.Mutex
	stopped bool
	live    map[uint64]runnable
	seq     atomic.Uint64
}

// New starts a driver. A nil logger uses slog.Default().
func New(cfg Config, logger *slog.Logger) *Driver {
	if cfg.Size <= 0 {
		cfg.Size = max(runtime.GOMAXPROCS(0), 1)
	}

	if cfg.QueueSize <= 0 {
		cfg.QueueSize = cfg.Size * 2
	}

	if logger == nil {
		logger = slog.Default()
	}

	m, err := newMetrics()
	if err != nil {
		logger.Warn("poller metrics disabled", slog.Any("error", err))
	}

	ctx, cancel := context.WithCancel(context.Background())

	d := &Driver{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		ctx:     ctx,
		cancel:  cancel,
		queue:   make(chan runnable, cfg.QueueSize),
		stop:    make(chan struct{}),
		live:    make(map[uint64]runnable),
	}

	d.wg.Add(cfg.Size)
	for i := range cfg.Size {
		go d.worker(i)
	}

	return d
}

// Spawn hands task to the driver. The returned handle reports its outcome.
func Spawn[T any](d *Driver, task ambient.Task[T]) (*Handle[T], error) {
	h := newHandle(d.seq.Add(1), task)

	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil, ErrStopped
	}
	d.live[h.seq] = h
	d.mu.Unlock()

	d.metrics.spawned(d.ctx)
	d.enqueue(h)

	return h, nil
}

// Active returns the number of spawned tasks without an outcome.
func (d *Driver) Active() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.live)
}

// Size returns the number of workers.
func (d *Driver) Size() int {
	return d.cfg.Size
}

// Stop halts the workers after their current poll and fails every
// unfinished task with ErrStopped. It is safe to call more than once.
func (d *Driver) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	d.mu.Unlock()

	close(d.stop)
	d.cancel()
	d.wg.Wait()

	d.mu.Lock()
	abandoned := d.live
	d.live = make(map[uint64]runnable)
	d.mu.Unlock()

	for _, r := range abandoned {
		r.abort(ErrStopped)
		d.metrics.completed(context.Background(), ErrStopped)
	}

	if len(abandoned) > 0 {
		d.logger.Warn("poller stopped with unfinished tasks", slog.Int("count", len(abandoned)))
	}
}

// Name implements ports.HealthChecker.
func (d *Driver) Name() string {
	return "poller"
}

// Check implements ports.HealthChecker.
func (d *Driver) Check(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return ErrStopped
	}

	if len(d.queue) == cap(d.queue) {
		return fmt.Errorf("poller: run queue full (%d tasks)", cap(d.queue))
	}

	return nil
}

func (d *Driver) worker(n int) {
	defer d.wg.Done()

	for {
		select {
		case <-d.stop:
			return
		case r := <-d.queue:
			d.run(n, r)
		}
	}
}

func (d *Driver) run(worker int, r runnable) {
	d.metrics.polled(d.ctx)

	finished, err := r.poll(d.ctx)
	if !finished {
		d.requeue(r)
		return
	}

	d.mu.Lock()
	delete(d.live, r.id())
	d.mu.Unlock()

	d.metrics.completed(d.ctx, err)

	var perr *PanicError
	if errors.As(err, &perr) {
		d.logger.Error("task panicked",
			slog.Uint64("task", r.id()),
			slog.Int("worker", worker),
			slog.Any("panic", perr.Value),
			slog.String("stack", string(perr.Stack)),
		)
	}
}

// requeue runs off the worker goroutine so a full queue cannot block the
// workers that drain it.
func (d *Driver) requeue(r runnable) {
	if d.cfg.PollInterval > 0 {
		time.AfterFunc(d.cfg.PollInterval, func() { d.enqueue(r) })
		return
	}

	go d.enqueue(r)
}

func (d *Driver) enqueue(r runnable) {
	select {
	case <-d.stop:
		r.abort(ErrStopped)
		return
	default:
	}

	select {
	case d.queue <- r:
	case <-d.stop:
		r.abort(ErrStopped)
	}
}

// Package executor provides a shared bounded worker pool for task execution
package executor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/querystream/metric"
)

// Task is one unit of work. Tasks are responsible for their own panic
// handling; the pool recovers as a last resort so one bad task cannot kill a
// worker.
type Task func()

// Pool is a fixed-size worker pool draining a bounded task queue
type Pool struct {
	// Configuration
	workers   int
	queueSize int

	// Runtime state
	taskChan chan Task
	metrics  *poolMetrics
	wg       *sync.WaitGroup

	// Lifecycle management
	lifecycleMu sync.Mutex
	started     bool
	stopped     bool

	// Statistics (atomic)
	submitted int64
	executed  int64
	panicked  int64
	dropped   int64

	// Metrics configuration
	metricsRegistry *metric.MetricsRegistry
	metricsPrefix   string
}

// poolMetrics holds Prometheus metrics for pool monitoring
type poolMetrics struct {
	queueDepth  prometheus.Gauge
	utilization prometheus.Gauge
	submitted   prometheus.Counter
	executed    prometheus.Counter
	panicked    prometheus.Counter
	dropped     prometheus.Counter
}

// Option represents a configuration option for the pool
type Option func(*Pool)

// WithMetricsRegistry configures the pool to register metrics with the driver's registry
func WithMetricsRegistry(registry *metric.MetricsRegistry, prefix string) Option {
	return func(p *Pool) {
		p.metricsRegistry = registry
		p.metricsPrefix = prefix
	}
}

// NewPool creates a new executor pool with optional configuration
func NewPool(workers, queueSize int, opts ...Option) *Pool {
	if workers <= 0 {
		workers = 8 // Default worker count
	}
	if queueSize <= 0 {
		queueSize = 1024 // Default queue size
	}

	pool := &Pool{
		workers:   workers,
		queueSize: queueSize,
		taskChan:  make(chan Task, queueSize),
	}

	// Apply options
	for _, opt := range opts {
		opt(pool)
	}

	// Initialize metrics if registry provided
	if pool.metricsRegistry != nil && pool.metricsPrefix != "" {
		pool.initializeMetrics()
	}

	return pool
}

// initializeMetrics creates and registers metrics with the driver's registry
func (p *Pool) initializeMetrics() {
	prefix := p.metricsPrefix

	queueDepth := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: prefix + "_queue_depth",
		Help: "Current executor pool queue depth",
	})
	utilization := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: prefix + "_utilization",
		Help: "Executor pool utilization (0-1)",
	})
	submitted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: prefix + "_submitted_total",
		Help: "Total tasks submitted",
	})
	executed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: prefix + "_executed_total",
		Help: "Total tasks executed",
	})
	panicked := prometheus.NewCounter(prometheus.CounterOpts{
		Name: prefix + "_panicked_total",
		Help: "Total tasks that panicked during execution",
	})
	dropped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: prefix + "_dropped_total",
		Help: "Total tasks dropped due to full queue",
	})

	const component = "executor_pool"
	p.metricsRegistry.RegisterGauge(component, prefix+"_queue_depth", queueDepth)
	p.metricsRegistry.RegisterGauge(component, prefix+"_utilization", utilization)
	p.metricsRegistry.RegisterCounter(component, prefix+"_submitted_total", submitted)
	p.metricsRegistry.RegisterCounter(component, prefix+"_executed_total", executed)
	p.metricsRegistry.RegisterCounter(component, prefix+"_panicked_total", panicked)
	p.metricsRegistry.RegisterCounter(component, prefix+"_dropped_total", dropped)

	p.metrics = &poolMetrics{
		queueDepth:  queueDepth,
		utilization: utilization,
		submitted:   submitted,
		executed:    executed,
		panicked:    panicked,
		dropped:     dropped,
	}
}

// Submit submits a task to the pool. Returns ErrQueueFull if the queue is at
// capacity; the caller decides whether that is fatal.
func (p *Pool) Submit(task Task) error {
	if task == nil {
		return ErrNilTask
	}

	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if !p.started {
		return ErrPoolNotStarted
	}
	if p.stopped {
		return ErrPoolStopped
	}

	// Try to submit the task (non-blocking)
	select {
	case p.taskChan <- task:
		atomic.AddInt64(&p.submitted, 1)
		if p.metrics != nil {
			p.metrics.submitted.Inc()
			p.metrics.queueDepth.Set(float64(len(p.taskChan)))
		}
		return nil
	default:
		// Queue is full - drop the task
		atomic.AddInt64(&p.dropped, 1)
		if p.metrics != nil {
			p.metrics.dropped.Inc()
		}
		return ErrQueueFull
	}
}

// Start starts the pool's workers
func (p *Pool) Start(ctx context.Context) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if p.started {
		return ErrPoolAlreadyStarted
	}

	p.wg = &sync.WaitGroup{}

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}

	// Start metrics updater if metrics enabled
	if p.metrics != nil {
		p.wg.Add(1)
		go p.metricsUpdater(ctx)
	}

	p.started = true
	return nil
}

// Stop closes the queue and waits for workers to drain it, up to timeout
func (p *Pool) Stop(timeout time.Duration) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if !p.started || p.stopped {
		return nil
	}

	// Mark stopped before closing so racing Submit calls fail cleanly
	p.stopped = true
	close(p.taskChan)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
		return ErrStopTimeout
	}
}

// Stats returns current pool statistics
func (p *Pool) Stats() PoolStats {
	return PoolStats{
		Workers:    p.workers,
		QueueSize:  p.queueSize,
		QueueDepth: len(p.taskChan),
		Submitted:  atomic.LoadInt64(&p.submitted),
		Executed:   atomic.LoadInt64(&p.executed),
		Panicked:   atomic.LoadInt64(&p.panicked),
		Dropped:    atomic.LoadInt64(&p.dropped),
	}
}

// PoolStats represents executor pool statistics
type PoolStats struct {
	Workers    int   `json:"workers"`
	QueueSize  int   `json:"queue_size"`
	QueueDepth int   `json:"queue_depth"`
	Submitted  int64 `json:"submitted"`
	Executed   int64 `json:"executed"`
	Panicked   int64 `json:"panicked"`
	Dropped    int64 `json:"dropped"`
}

// worker drains tasks from the queue until the context is cancelled or the
// queue is closed and empty
func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-p.taskChan:
			if !ok {
				return
			}
			p.run(task)
		}
	}
}

// run executes one task with last-resort panic recovery
func (p *Pool) run(task Task) {
	defer func() {
		if r := recover(); r != nil {
			atomic.AddInt64(&p.panicked, 1)
			if p.metrics != nil {
				p.metrics.panicked.Inc()
			}
		}
	}()

	task()
	atomic.AddInt64(&p.executed, 1)
	if p.metrics != nil {
		p.metrics.executed.Inc()
	}
}

// metricsUpdater periodically updates utilization and queue depth metrics
func (p *Pool) metricsUpdater(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			queueDepth := float64(len(p.taskChan))
			p.metrics.queueDepth.Set(queueDepth)
			p.metrics.utilization.Set(queueDepth / float64(p.queueSize))
		}
	}
}

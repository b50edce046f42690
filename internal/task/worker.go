package task

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/talentforge/talentforge-api/internal/config"
	"github.com/talentforge/talentforge-api/internal/store"
)

// WorkerPool runs a fixed number of polling workers against the job
// queue plus one monitor goroutine that sweeps stale processing jobs.
type WorkerPool struct {
	jobs       store.JobStore
	processor  *Processor
	cfg        config.WorkerConfig
	logger     *slog.Logger
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	started    bool
}

// NewWorkerPool creates a WorkerPool. Start must be called before any
// work happens.
func NewWorkerPool(
	jobs store.JobStore,
	processor *Processor,
	cfg config.WorkerConfig,
	logger *slog.Logger,
) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		jobs:       jobs,
		processor:  processor,
		cfg:        cfg,
		logger:     logger.With("component", "worker_pool"),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Start launches the worker and monitor goroutines.
func (p *WorkerPool) Start() {
	if p.started {
		return
	}
	p.started = true

	p.logger.Info("starting worker pool",
		"worker_count", p.cfg.Count,
		"idle_backoff", p.cfg.IdleBackoff.String(),
		"job_timeout", p.cfg.JobTimeout.String())

	for i := 0; i < p.cfg.Count; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	p.wg.Add(1)
	go p.staleMonitor()
}

// Stop signals all goroutines and waits for in-flight jobs to wind
// down. Jobs interrupted mid-step are released back to pending by the
// processor's shutdown path.
func (p *WorkerPool) Stop() {
	p.cancelFunc()
	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}

// worker claims and processes jobs until the pool shuts down.
func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	log := p.logger.With("worker_id", id)
	log.Debug("starting worker")

	for {
		if p.ctx.Err() != nil {
			log.Debug("stopping worker")
			return
		}

		job, err := p.jobs.ClaimNext(p.ctx)
		if err != nil {
			switch {
			case errors.Is(err, store.ErrJobNotFound):
				p.sleep(p.cfg.IdleBackoff)
			case p.ctx.Err() != nil:
				log.Debug("stopping worker")
				return
			default:
				log.Error("failed to claim job", "error", err)
				p.sleep(p.cfg.ErrorBackoff)
			}
			continue
		}

		log.Info("claimed job",
			"job_id", job.ID,
			"job_type", job.JobType,
			"priority", job.Priority,
			"attempt", job.RetryCount+1)

		jobCtx, cancel := context.WithTimeout(p.ctx, p.cfg.JobTimeout)
		if err := p.processor.Process(jobCtx, job); err != nil {
			log.Error("job processing bookkeeping failed",
				"job_id", job.ID,
				"error", err)
			cancel()
			p.sleep(p.cfg.ErrorBackoff)
			continue
		}
		cancel()
	}
}

// staleMonitor periodically releases processing jobs whose worker died
// without transitioning them.
func (p *WorkerPool) staleMonitor() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.StaleCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			released, err := p.jobs.ReleaseStale(p.ctx, p.cfg.JobTimeout)
			if err != nil {
				if p.ctx.Err() == nil {
					p.logger.Error("stale job sweep failed", "error", err)
				}
				continue
			}
			if released > 0 {
				p.logger.Info("stale job sweep released jobs", "count", released)
			}
		}
	}
}

// sleep waits for the duration or pool shutdown, whichever comes first.
func (p *WorkerPool) sleep(d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-p.ctx.Done():
	case <-timer.C:
	}
}

// Package poller resolves a watchlist on cron schedules and publishes the results.
package poller

import (
	"context"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/navid-fn/twradar/utils"
)

// Job is one scheduled unit of work.
type Job interface {
	Run(ctx context.Context) error
	Name() string
}

// Poller runs jobs on cron schedules. Specs take an optional leading seconds
// field and descriptors such as "@every 1m".
type Poller struct {
	cron   *cron.Cron
	logger *logrus.Logger

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a poller. A run that is still going when its next tick fires is skipped.
func New(logger *logrus.Logger) *Poller {
	ctx, cancel := context.WithCancel(context.Background())
	return &Poller{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(utils.TaipeiLocation),
			cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(logger))),
		),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// AddJob registers job under a cron schedule.
// Schedule examples:
//   - "@every 1m"     - every minute
//   - "0 0 18 * * *"  - 18:00 Taipei time every day
//   - "0 */5 9-13 * * MON-FRI" - every 5 minutes during the trading session
func (p *Poller) AddJob(schedule string, job Job) error {
	_, err := p.cron.AddFunc(schedule, func() {
		p.run(job)
	})
	if err != nil {
		return err
	}

	p.logger.WithFields(logrus.Fields{
		"schedule": schedule,
		"job":      job.Name(),
	}).Info("[poller] job registered")
	return nil
}

func (p *Poller) run(job Job) {
	p.mu.Lock()
	ctx := p.ctx
	p.mu.Unlock()

	if ctx.Err() != nil {
		return
	}

	p.logger.Debugf("[poller] running %s", job.Name())
	if err := job.Run(ctx); err != nil {
		p.logger.Errorf("[poller] %s failed: %v", job.Name(), err)
		return
	}
	p.logger.Debugf("[poller] %s completed", job.Name())
}

// Start begins scheduling. Jobs stop when ctx is cancelled or Stop is called.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	p.cancel()
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.mu.Unlock()

	p.cron.Start()
	p.logger.Info("[poller] started")
}

// Stop cancels running jobs and waits for them to return.
func (p *Poller) Stop() {
	p.mu.Lock()
	p.cancel()
	p.mu.Unlock()

	<-p.cron.Stop().Done()
	p.logger.Info("[poller] stopped")
}

// RunNow executes job immediately, outside its schedule.
func (p *Poller) RunNow(job Job) {
	p.logger.Infof("[poller] running %s immediately", job.Name())
	p.run(job)
}

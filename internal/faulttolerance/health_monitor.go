package faulttolerance

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// HealthStatus represents the health status of a component or of the whole engine
type HealthStatus string

const (
	HealthStatusHealthy     HealthStatus = "healthy"
	HealthStatusDegraded    HealthStatus = "degraded"
	HealthStatusUnavailable HealthStatus = "unavailable"
)

// HealthCheck represents a single periodic reachability probe
type HealthCheck struct {
	Name      string                          `json:"name"`
	Status    HealthStatus                    `json:"status"`
	LastCheck time.Time                       `json:"last_check"`
	Duration  time.Duration                   `json:"duration"`
	Error     string                          `json:"error,omitempty"`
	Details   map[string]interface{}          `json:"details,omitempty"`
	CheckFunc func(ctx context.Context) error `json:"-"`
}

// HealthMonitor tracks provider breakers and runs periodic probes.
// Overall health is derived from breaker state only; probes are informational.
type HealthMonitor struct {
	breakers []*CircuitBreaker
	checks   map[string]*HealthCheck
	mutex    sync.RWMutex
	logger   *logrus.Logger
	interval time.Duration
	timeout  time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	started  bool
}

// NewHealthMonitor creates a new health monitor
func NewHealthMonitor(logger *logrus.Logger, interval time.Duration) *HealthMonitor {
	if interval <= 0 {
		interval = 60 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &HealthMonitor{
		checks:   make(map[string]*HealthCheck),
		logger:   logger,
		interval: interval,
		timeout:  10 * time.Second,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// AddBreaker registers a breaker whose state feeds the overall status.
func (hm *HealthMonitor) AddBreaker(cb *CircuitBreaker) {
	hm.mutex.Lock()
	defer hm.mutex.Unlock()
	hm.breakers = append(hm.breakers, cb)
}

// AddCheck adds a health check
func (hm *HealthMonitor) AddCheck(name string, checkFunc func(ctx context.Context) error) {
	hm.mutex.Lock()
	defer hm.mutex.Unlock()

	hm.checks[name] = &HealthCheck{
		Name:      name,
		Status:    HealthStatusHealthy,
		CheckFunc: checkFunc,
		Details:   make(map[string]interface{}),
	}

	hm.logger.Debugf("Added health check: %s", name)
}

// Start starts the health monitoring
func (hm *HealthMonitor) Start() {
	hm.mutex.Lock()
	if hm.started {
		hm.mutex.Unlock()
		return
	}
	hm.started = true
	hm.mutex.Unlock()

	hm.wg.Add(1)
	go hm.monitorLoop()
	hm.logger.Info("Health monitor started")
}

// Stop stops the health monitoring
func (hm *HealthMonitor) Stop() {
	hm.cancel()
	hm.wg.Wait()
	hm.logger.Debug("Health monitor stopped")
}

// monitorLoop runs the health checks periodically
func (hm *HealthMonitor) monitorLoop() {
	defer hm.wg.Done()

	ticker := time.NewTicker(hm.interval)
	defer ticker.Stop()

	hm.RunChecks()

	for {
		select {
		case <-hm.ctx.Done():
			return
		case <-ticker.C:
			hm.RunChecks()
		}
	}
}

// RunChecks runs all registered health checks once, concurrently
func (hm *HealthMonitor) RunChecks() {
	hm.mutex.RLock()
	checks := make([]*HealthCheck, 0, len(hm.checks))
	for _, check := range hm.checks {
		checks = append(checks, check)
	}
	hm.mutex.RUnlock()

	var wg sync.WaitGroup
	for _, check := range checks {
		wg.Add(1)
		go func(check *HealthCheck) {
			defer wg.Done()
			hm.runCheck(check)
		}(check)
	}
	wg.Wait()

	hm.logger.Debugf("Health checks done, overall %s", hm.GetOverallHealth())
}

// runCheck runs a single health check
func (hm *HealthMonitor) runCheck(check *HealthCheck) {
	if check.CheckFunc == nil {
		return
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(hm.ctx, hm.timeout)
	defer cancel()

	err := check.CheckFunc(ctx)
	duration := time.Since(start)

	hm.mutex.Lock()
	defer hm.mutex.Unlock()

	check.LastCheck = start
	check.Duration = duration

	oldStatus := check.Status
	if err != nil {
		check.Status = HealthStatusUnavailable
		check.Error = err.Error()
		if oldStatus != HealthStatusUnavailable {
			hm.logger.Warnf("Health check '%s' failed: %v", check.Name, err)
		}
	} else {
		check.Status = HealthStatusHealthy
		check.Error = ""
		if oldStatus != HealthStatusHealthy {
			hm.logger.Infof("Health check '%s' recovered", check.Name)
		}
	}

	check.Details["duration_ms"] = duration.Milliseconds()
	check.Details["last_check"] = check.LastCheck.Format(time.RFC3339)
}

// GetHealth returns a copy of the latest probe results
func (hm *HealthMonitor) GetHealth() map[string]*HealthCheck {
	hm.mutex.RLock()
	defer hm.mutex.RUnlock()

	result := make(map[string]*HealthCheck, len(hm.checks))
	for name, check := range hm.checks {
		details := make(map[string]interface{}, len(check.Details))
		for k, v := range check.Details {
			details[k] = v
		}
		result[name] = &HealthCheck{
			Name:      check.Name,
			Status:    check.Status,
			LastCheck: check.LastCheck,
			Duration:  check.Duration,
			Error:     check.Error,
			Details:   details,
		}
	}

	return result
}

// GetOverallHealth is healthy when every circuit is closed, unavailable when
// none is, and degraded otherwise.
func (hm *HealthMonitor) GetOverallHealth() HealthStatus {
	hm.mutex.RLock()
	breakers := append([]*CircuitBreaker(nil), hm.breakers...)
	hm.mutex.RUnlock()

	if len(breakers) == 0 {
		return HealthStatusUnavailable
	}

	closed := 0
	for _, cb := range breakers {
		if cb.IsClosed() {
			closed++
		}
	}

	switch closed {
	case len(breakers):
		return HealthStatusHealthy
	case 0:
		return HealthStatusUnavailable
	default:
		return HealthStatusDegraded
	}
}

package monitoring

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/conneroisu/motiondeck/internal/logging"
)

// HealthStatus represents the health status of a component
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusDegraded  HealthStatus = "degraded"
)

// HealthCheck represents a single health check
type HealthCheck struct {
	Name        string                 `json:"name"`
	Status      HealthStatus           `json:"status"`
	Message     string                 `json:"message,omitempty"`
	LastChecked time.Time              `json:"last_checked"`
	Duration    time.Duration          `json:"duration"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	Critical    bool                   `json:"critical"`
}

// HealthChecker defines the interface for health check functions
type HealthChecker interface {
	Check(ctx context.Context) HealthCheck
	Name() string
	IsCritical() bool
}

// HealthCheckFunc is a function that implements HealthChecker
type HealthCheckFunc struct {
	name     string
	checkFn  func(ctx context.Context) HealthCheck
	critical bool
}

// Check executes the health check function
func (h *HealthCheckFunc) Check(ctx context.Context) HealthCheck {
	return h.checkFn(ctx)
}

// Name returns the health check name
func (h *HealthCheckFunc) Name() string {
	return h.name
}

// IsCritical returns whether this check is critical
func (h *HealthCheckFunc) IsCritical() bool {
	return h.critical
}

// NewHealthCheckFunc creates a new health check function
func NewHealthCheckFunc(
	name string,
	critical bool,
	checkFn func(ctx context.Context) HealthCheck,
) *HealthCheckFunc {
	return &HealthCheckFunc{
		name:     name,
		checkFn:  checkFn,
		critical: critical,
	}
}

// HealthReport is the outcome of running every registered check.
type HealthReport struct {
	Status HealthStatus           `json:"status"`
	Checks map[string]HealthCheck `json:"checks"`
}

// HealthMonitor runs registered health checks on demand.
type HealthMonitor struct {
	checks map[string]HealthChecker
	mutex  sync.RWMutex
	logger logging.Logger
	last   map[string]HealthStatus
}

// NewHealthMonitor creates a health monitor with no checks.
func NewHealthMonitor(logger logging.Logger) *HealthMonitor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &HealthMonitor{
		checks: make(map[string]HealthChecker),
		logger: logger.WithComponent("health"),
		last:   make(map[string]HealthStatus),
	}
}

// RegisterCheck registers a health check, replacing one of the same name.
func (hm *HealthMonitor) RegisterCheck(checker HealthChecker) {
	hm.mutex.Lock()
	defer hm.mutex.Unlock()
	hm.checks[checker.Name()] = checker
}

// Check runs every check and folds them into one report. Status changes of
// individual checks are logged.
func (hm *HealthMonitor) Check(ctx context.Context) HealthReport {
	hm.mutex.RLock()
	names := make([]string, 0, len(hm.checks))
	checkers := make(map[string]HealthChecker, len(hm.checks))
	for name, c := range hm.checks {
		names = append(names, name)
		checkers[name] = c
	}
	hm.mutex.RUnlock()
	sort.Strings(names)

	report := HealthReport{Checks: make(map[string]HealthCheck, len(names))}
	for _, name := range names {
		checker := checkers[name]
		start := time.Now()
		result := checker.Check(ctx)
		result.Name = name
		result.Critical = checker.IsCritical()
		result.LastChecked = start
		result.Duration = time.Since(start)
		if result.Status == "" {
			result.Status = HealthStatusHealthy
		}
		report.Checks[name] = result
		hm.noteTransition(ctx, result)
	}
	report.Status = overallStatus(report.Checks)
	return report
}

func (hm *HealthMonitor) noteTransition(ctx context.Context, check HealthCheck) {
	hm.mutex.Lock()
	prev, seen := hm.last[check.Name]
	hm.last[check.Name] = check.Status
	hm.mutex.Unlock()

	if seen && prev == check.Status {
		return
	}
	if check.Status == HealthStatusHealthy {
		if seen {
			hm.logger.Info(ctx, "Health check recovered", "check", check.Name)
		}
		return
	}
	hm.logger.Warn(ctx, nil, "Health check failing",
		"check", check.Name, "status", check.Status, "message", check.Message)
}

// overallStatus is unhealthy when a critical check is unhealthy, degraded
// when anything else is not healthy.
func overallStatus(checks map[string]HealthCheck) HealthStatus {
	status := HealthStatusHealthy
	for _, c := range checks {
		switch {
		case c.Status == HealthStatusUnhealthy && c.Critical:
			return HealthStatusUnhealthy
		case c.Status != HealthStatusHealthy:
			status = HealthStatusDegraded
		}
	}
	return status
}

// GoroutineHealthChecker degrades above threshold goroutines and fails
// above ten times that.
func GoroutineHealthChecker(threshold int) HealthChecker {
	return NewHealthCheckFunc("goroutines", false, func(ctx context.Context) HealthCheck {
		goroutines := runtime.NumGoroutine()
		check := HealthCheck{
			Status:   HealthStatusHealthy,
			Metadata: map[string]interface{}{"count": goroutines},
		}
		switch {
		case goroutines > threshold*10:
			check.Status = HealthStatusUnhealthy
			check.Message = fmt.Sprintf("Very high goroutine count: %d", goroutines)
		case goroutines > threshold:
			check.Status = HealthStatusDegraded
			check.Message = fmt.Sprintf("High goroutine count: %d", goroutines)
		}
		return check
	})
}

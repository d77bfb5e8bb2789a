package health

import (
	"context"
	"time"
)

// DefaultTimeout bounds a probe when no timeout is given.
const DefaultTimeout = 5 * time.Second

// Checkable is implemented by store adapters.
type Checkable interface {
	HealthCheck(ctx context.Context) error
}

// Classifier turns a probe error into a status and message. It is called with nil on success.
type Classifier func(err error) (Status, string)

// Unhealthy is the default Classifier: any error is unhealthy.
func Unhealthy(err error) (Status, string) {
	if err != nil {
		return StatusUnhealthy, ""
	}
	return StatusHealthy, "OK"
}

// ProbeChecker runs a probe under a timeout and classifies its outcome.
type ProbeChecker struct {
	name     string
	probe    func(ctx context.Context) error
	timeout  time.Duration
	classify Classifier
}

// NewProbeChecker creates a checker for probe. A zero timeout means DefaultTimeout and a nil
// classify means Unhealthy.
func NewProbeChecker(name string, probe func(ctx context.Context) error, timeout time.Duration, classify Classifier) *ProbeChecker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if classify == nil {
		classify = Unhealthy
	}
	return &ProbeChecker{name: name, probe: probe, timeout: timeout, classify: classify}
}

// NewAdapterChecker checks a store adapter: any HealthCheck error is unhealthy.
func NewAdapterChecker(name string, adapter Checkable, timeout time.Duration) *ProbeChecker {
	return NewProbeChecker(name, adapter.HealthCheck, timeout, nil)
}

// NewStaticChecker always reports status with message and err. It stands in for a dependency
// that could not be set up at all.
func NewStaticChecker(name string, status Status, message string, err error) *ProbeChecker {
	return NewProbeChecker(name, func(context.Context) error { return err }, 0, func(error) (Status, string) {
		return status, message
	})
}

func (c *ProbeChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()

	probeCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	err := c.probe(probeCtx)

	status, message := c.classify(err)
	result := CheckResult{
		Name:      c.name,
		Status:    status,
		Message:   message,
		Timestamp: time.Now(),
		Duration:  time.Since(start),
	}
	if err != nil {
		result.Error = err.Error()
	}
	return result
}

func (c *ProbeChecker) Name() string {
	return c.name
}

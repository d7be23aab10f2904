package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const defaultDependencyTimeout = 1500 * time.Millisecond

// BuildInfo captures runtime metadata exposed via health endpoints.
type BuildInfo struct {
	Version     string
	CommitSHA   string
	Environment string
	StartedAt   time.Time
}

// DependencyCheck describes a dependency probe executed during readiness checks. A failing
// Critical check marks the whole report as error, any other failure only degrades it.
type DependencyCheck struct {
	Name     string
	Critical bool
	Timeout  time.Duration
	Check    func(context.Context) error
}

// SystemServiceDeps bundles collaborators required to construct a system service.
type SystemServiceDeps struct {
	Checks  []DependencyCheck
	Timeout time.Duration
	Clock   func() time.Time
	Build   BuildInfo
}

type systemService struct {
	checks         []DependencyCheck
	defaultTimeout time.Duration
	clock          func() time.Time
	build          BuildInfo
}

var _ SystemService = (*systemService)(nil)

// NewSystemService assembles the service that runs dependency probes for /readyz.
func NewSystemService(deps SystemServiceDeps) (SystemService, error) {
	if len(deps.Checks) == 0 {
		return nil, errors.New("system service: at least one dependency check is required")
	}
	for _, check := range deps.Checks {
		if strings.TrimSpace(check.Name) == "" {
			return nil, errors.New("system service: dependency check missing name")
		}
		if check.Check == nil {
			return nil, errors.New("system service: dependency " + check.Name + " missing check function")
		}
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	timeout := deps.Timeout
	if timeout <= 0 {
		timeout = defaultDependencyTimeout
	}
	build := deps.Build
	if build.StartedAt.IsZero() {
		build.StartedAt = clock()
	}

	checks := make([]DependencyCheck, len(deps.Checks))
	copy(checks, deps.Checks)

	return &systemService{
		checks:         checks,
		defaultTimeout: timeout,
		clock: func() time.Time {
			return clock().UTC()
		},
		build: build,
	}, nil
}

// HealthReport runs every check concurrently, each under its own timeout.
func (s *systemService) HealthReport(ctx context.Context) HealthReport {
	results := make(map[string]HealthCheck, len(s.checks))
	var mu sync.Mutex

	var g errgroup.Group
	for _, check := range s.checks {
		check := check
		g.Go(func() error {
			result := s.run(ctx, check)
			mu.Lock()
			results[check.Name] = result
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	now := s.clock()
	report := HealthReport{
		Status:      deriveStatus(results),
		Checks:      results,
		Version:     s.build.Version,
		CommitSHA:   s.build.CommitSHA,
		Environment: s.build.Environment,
		GeneratedAt: now,
	}
	if !s.build.StartedAt.IsZero() {
		report.Uptime = now.Sub(s.build.StartedAt)
	}
	return report
}

func (s *systemService) run(ctx context.Context, check DependencyCheck) HealthCheck {
	timeout := check.Timeout
	if timeout <= 0 {
		timeout = s.defaultTimeout
	}
	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := s.clock()
	err := check.Check(checkCtx)
	if err == nil && checkCtx.Err() != nil {
		err = checkCtx.Err()
	}
	result := HealthCheck{
		Status:  HealthStatusOK,
		Latency: s.clock().Sub(start),
		Detail:  "ok",
	}
	if err == nil {
		return result
	}

	result.Status = HealthStatusDegraded
	if check.Critical {
		result.Status = HealthStatusError
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		result.Detail = "timeout"
	case errors.Is(err, context.Canceled):
		result.Detail = "cancelled"
	default:
		result.Detail = err.Error()
	}
	return result
}

func deriveStatus(checks map[string]HealthCheck) HealthStatus {
	status := HealthStatusOK
	for _, check := range checks {
		switch check.Status {
		case HealthStatusOK, "":
			continue
		case HealthStatusError:
			return HealthStatusError
		default:
			status = HealthStatusDegraded
		}
	}
	return status
}

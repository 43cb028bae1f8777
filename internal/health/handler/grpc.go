// Package handler reports readiness through the standard grpc.health.v1 service.
package handler

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// checkTimeout bounds one readiness probe.
const checkTimeout = 2 * time.Second

// Pinger checks database reachability (e.g. *sql.DB).
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker checks that the permission evaluator can still decide.
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Checker derives a serving status from the database and the permission evaluator.
// A nil dependency is skipped.
type Checker struct {
	pinger Pinger
	policy PolicyChecker
}

// NewChecker returns a Checker.
func NewChecker(pinger Pinger, policy PolicyChecker) *Checker {
	return &Checker{pinger: pinger, policy: policy}
}

// Check runs one readiness probe.
func (c *Checker) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	if c.pinger != nil {
		if err := c.pinger.PingContext(ctx); err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("health: database ping failed")
			return healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	if c.policy != nil {
		if err := c.policy.HealthCheck(ctx); err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("health: permission evaluator check failed")
			return healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	return healthpb.HealthCheckResponse_SERVING
}

// Run probes every interval and publishes the result on hs for the overall server ("") and each
// of services, until ctx is done.
func (c *Checker) Run(ctx context.Context, hs *health.Server, interval time.Duration, services ...string) {
	update := func() {
		st := c.Check(ctx)
		hs.SetServingStatus("", st)
		for _, name := range services {
			hs.SetServingStatus(name, st)
		}
	}
	update()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			update()
		}
	}
}

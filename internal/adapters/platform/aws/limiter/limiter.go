// Package limiter bounds the rate of provider API calls across all
// managers. One shared limiter is waited on before every attempt the
// retry wrapper makes.
package limiter

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/olusolaa/infra-deployer/internal/core/ports"
)

const (
	defaultRateLimitRPS = 20
	minRateLimitRPS     = 1
	maxRateLimitRPS     = 100
)

type Limiter struct {
	limiter *rate.Limiter
}

func New(rps int, logger ports.Logger) *Limiter {
	limitValue := defaultRateLimitRPS
	if rps >= minRateLimitRPS && rps <= maxRateLimitRPS {
		limitValue = rps
	} else if rps != 0 {
		logger.Warnf(context.Background(), "Invalid provider API RPS configured (%d), using default %d RPS. Valid range: %d-%d.",
			rps, defaultRateLimitRPS, minRateLimitRPS, maxRateLimitRPS)
	}

	return &Limiter{limiter: rate.NewLimiter(rate.Limit(limitValue), limitValue)}
}

func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

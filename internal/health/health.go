package health

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	Healthy   = "healthy"
	Unhealthy = "unhealthy"
)

// Pinger is any dependency that can report whether it is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type check struct {
	name string
	ping func(ctx context.Context) error
}

// Checker pings registered dependencies in parallel.
type Checker struct {
	checks  []check
	timeout time.Duration
	logger  zerolog.Logger
}

func NewChecker(timeout time.Duration, logger zerolog.Logger) *Checker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Checker{timeout: timeout, logger: logger}
}

// Add registers p under name; a later Add with the same name replaces it.
func (c *Checker) Add(name string, p Pinger) *Checker {
	return c.AddFunc(name, p.Ping)
}

func (c *Checker) AddFunc(name string, ping func(ctx context.Context) error) *Checker {
	for i := range c.checks {
		if c.checks[i].name == name {
			c.checks[i].ping = ping
			return c
		}
	}
	c.checks = append(c.checks, check{name: name, ping: ping})
	return c
}

// Check returns healthy or unhealthy per registered name. A failing or slow
// dependency never fails the whole check.
func (c *Checker) Check(ctx context.Context) map[string]string {
	var (
		mu     sync.Mutex
		status = make(map[string]string, len(c.checks))
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, chk := range c.checks {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(gctx, c.timeout)
			defer cancel()

			s := Healthy
			if err := chk.ping(cctx); err != nil {
				c.logger.Warn().Err(err).Str("service", chk.name).Msg("Health check failed")
				s = Unhealthy
			}
			mu.Lock()
			status[chk.name] = s
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return status
}

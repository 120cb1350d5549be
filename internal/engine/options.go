package engine

import (
	"log/slog"
	"time"

	"github.com/aretw0/weave/pkg/domain"
	"github.com/aretw0/weave/pkg/runlock"
)

// Option configures the Controller.
type Option func(*Controller)

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithHooks registers lifecycle callbacks.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(c *Controller) {
		c.hooks = hooks
	}
}

// WithLocks configures the lock manager serializing writers of a run.
func WithLocks(locks *runlock.Manager) Option {
	return func(c *Controller) {
		c.locks = locks
	}
}

// WithClock overrides the time source used for new records.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// WithIDGenerator overrides the generator of run and step IDs.
func WithIDGenerator(newID func() string) Option {
	return func(c *Controller) {
		c.newID = newID
	}
}

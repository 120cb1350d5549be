package cli

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// SignalContext is cancelled by the first SIGINT or SIGTERM, which lets the
// current step fail and leaves the run resumable. The signal is kept so the
// command can report it. Any further signal is handed to the force handler.
type SignalContext struct {
	context.Context
	cancel context.CancelFunc

	sigCh chan os.Signal
	quit  chan struct{}
	force func(os.Signal)
	once  sync.Once

	mu    sync.Mutex
	first os.Signal
}

// SignalOption configures a SignalContext.
type SignalOption func(*SignalContext)

// WithForceHandler sets what happens when a signal arrives after the context
// was already cancelled, typically an immediate exit.
func WithForceHandler(fn func(os.Signal)) SignalOption {
	return func(sc *SignalContext) {
		sc.force = fn
	}
}

// NewSignalContext derives a SignalContext from parent. Call Stop when done.
func NewSignalContext(parent context.Context, opts ...SignalOption) *SignalContext {
	ctx, cancel := context.WithCancel(parent)
	sc := &SignalContext{
		Context: ctx,
		cancel:  cancel,
		sigCh:   make(chan os.Signal, 2),
		quit:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(sc)
	}

	signal.Notify(sc.sigCh, os.Interrupt, syscall.SIGTERM)
	go sc.watch()
	return sc
}

func (sc *SignalContext) watch() {
	for {
		select {
		case sig := <-sc.sigCh:
			sc.mu.Lock()
			repeated := sc.first != nil
			if !repeated {
				sc.first = sig
			}
			sc.mu.Unlock()

			if !repeated {
				sc.cancel()
			} else if sc.force != nil {
				sc.force(sig)
			}
		case <-sc.quit:
			return
		}
	}
}

// Signal returns the signal that cancelled the context, or nil.
func (sc *SignalContext) Signal() os.Signal {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.first
}

// Stop unregisters the signal handlers and cancels the context. It is safe to
// call more than once.
func (sc *SignalContext) Stop() {
	sc.once.Do(func() {
		signal.Stop(sc.sigCh)
		close(sc.quit)
		sc.cancel()
	})
}

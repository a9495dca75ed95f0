package runner

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Runner keeps a long-running receive loop alive. When runFn returns or
// panics before Stop, it is restarted after the back-off delay.
type Runner struct {
	backoff time.Duration
	runFn   func(context.Context) error

	running  atomic.Bool
	restarts atomic.Int64

	errMu   sync.Mutex
	lastErr string

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

type Status struct {
	Running   bool   `json:"running"`
	Restarts  int64  `json:"restarts"`
	LastError string `json:"last_error,omitempty"`
}

func New(backoff time.Duration, runFn func(context.Context) error) (*Runner, error) {
	if backoff <= 0 {
		return nil, errors.New("backoff must be > 0")
	}
	if runFn == nil {
		return nil, errors.New("runFn must not be nil")
	}
	return &Runner{
		backoff: backoff,
		runFn:   runFn,
		done:    make(chan struct{}),
	}, nil
}

func (r *Runner) Start() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running.Load() {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})
	r.running.Store(true)

	go func() {
		defer close(r.done)

		slog.Info("consumer started", "backoff", r.backoff.String())

		for {
			err := r.safeRun(ctx)
			if ctx.Err() != nil {
				slog.Info("consumer stopping")
				return
			}

			if err != nil {
				r.setLastError(err.Error())
				slog.Error("consumer exited, restarting", "error", err, "backoff", r.backoff.String())
			} else {
				slog.Warn("consumer returned unexpectedly, restarting", "backoff", r.backoff.String())
			}
			r.restarts.Add(1)

			t := time.NewTimer(r.backoff)
			select {
			case <-ctx.Done():
				t.Stop()
				slog.Info("consumer stopping")
				return
			case <-t.C:
			}
		}
	}()

	return true
}

// Stop cancels the loop and waits for runFn to return.
func (r *Runner) Stop() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running.Load() {
		return false
	}

	r.cancel()
	<-r.done
	r.running.Store(false)

	slog.Info("consumer stopped")
	return true
}

func (r *Runner) IsRunning() bool {
	return r.running.Load()
}

func (r *Runner) Status() Status {
	r.errMu.Lock()
	defer r.errMu.Unlock()

	return Status{
		Running:   r.running.Load(),
		Restarts:  r.restarts.Load(),
		LastError: r.lastErr,
	}
}

func (r *Runner) setLastError(msg string) {
	r.errMu.Lock()
	r.lastErr = msg
	r.errMu.Unlock()
}

func (r *Runner) safeRun(ctx context.Context) (err error) {
	defer func() {
		if p := recover(); p != nil {
			slog.Error("consumer panic recovered", "panic", p)
			err = errors.New("consumer panicked")
		}
	}()

	start := time.Now()
	err = r.runFn(ctx)
	slog.Info("consumer run finished", "duration_ms", time.Since(start).Milliseconds())
	return err
}

// Package orchestrator runs mutating commands under the namespace execution
// lock: it acquires the lease with a bounded backoff poll, keeps it renewed
// while the command body runs, and guarantees exactly one release attempt on
// every exit path.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/telekom/k8s-quorum/pkg/lease"
)

const (
	// DefaultAcquireTimeout bounds how long an acquire poll may run before
	// giving up on a held lock.
	DefaultAcquireTimeout = 2 * time.Minute

	// releaseTimeout bounds the final release attempt, which must run even
	// when the command's own context is already cancelled.
	releaseTimeout = 10 * time.Second
)

// Dependencies is the explicit bundle handed to the orchestrator; there is no
// process-wide container.
type Dependencies struct {
	Leases *lease.Manager
	Log    *zap.SugaredLogger
}

// Options tunes lock behavior per invocation.
type Options struct {
	// HolderIdentity identifies this process instance. Defaults to
	// lease.NewHolderIdentity().
	HolderIdentity string
	// LeaseDurationSeconds is the liveness window requested on acquire.
	LeaseDurationSeconds int32
	// AcquireTimeout bounds the acquire poll loop.
	AcquireTimeout time.Duration
}

type Orchestrator struct {
	leases          *lease.Manager
	log             *zap.SugaredLogger
	holder          string
	durationSeconds int32
	acquireTimeout  time.Duration
}

func New(deps Dependencies, opts Options) *Orchestrator {
	holder := opts.HolderIdentity
	if holder == "" {
		holder = lease.NewHolderIdentity()
	}
	durationSeconds := opts.LeaseDurationSeconds
	if durationSeconds <= 0 {
		durationSeconds = lease.DefaultDurationSeconds
	}
	acquireTimeout := opts.AcquireTimeout
	if acquireTimeout <= 0 {
		acquireTimeout = DefaultAcquireTimeout
	}
	return &Orchestrator{
		leases:          deps.Leases,
		log:             deps.Log,
		holder:          holder,
		durationSeconds: durationSeconds,
		acquireTimeout:  acquireTimeout,
	}
}

// HolderIdentity returns the identity this orchestrator acquires leases under.
func (o *Orchestrator) HolderIdentity() string {
	return o.holder
}

// RunExclusive acquires the namespace lock, runs fn with a context that is
// cancelled if the lease is lost, and releases the lock afterwards. Release
// failures are logged but never mask fn's error.
func (o *Orchestrator) RunExclusive(ctx context.Context, namespace string, fn func(ctx context.Context) error) error {
	held, err := o.acquire(ctx, namespace)
	if err != nil {
		return fmt.Errorf("failed to lock namespace %q as %q: %w", namespace, o.holder, err)
	}

	released := false
	release := func() {
		if released {
			return
		}
		released = true
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		if err := o.leases.Release(releaseCtx, held); err != nil {
			o.log.Warnw("Failed to release namespace lock",
				"namespace", namespace, "holder", o.holder, "error", err)
		}
	}
	defer release()

	runCtx, cancelRun := context.WithCancelCause(ctx)
	defer cancelRun(nil)

	renewErrs := o.leases.KeepAlive(runCtx, held)
	go func() {
		if renewErr, ok := <-renewErrs; ok && renewErr != nil {
			cancelRun(renewErr)
		}
	}()

	if err := fn(runCtx); err != nil {
		// Surface a lost lease in preference to the secondary errors the
		// cancellation typically produces inside fn.
		if cause := context.Cause(runCtx); cause != nil && !errors.Is(cause, context.Canceled) {
			return fmt.Errorf("lost namespace lock %q held by %q: %w", namespace, o.holder, cause)
		}
		return fmt.Errorf("command failed in namespace %q: %w", namespace, err)
	}
	return nil
}

// acquire polls with exponential backoff while the lock is held by a live
// competitor, bounded by the configured timeout. Expired leases are taken
// over inside lease.Manager.Acquire; this loop only decides retry policy.
func (o *Orchestrator) acquire(ctx context.Context, namespace string) (*lease.Lease, error) {
	acquireCtx, cancel := context.WithTimeout(ctx, o.acquireTimeout)
	defer cancel()

	backoff := wait.Backoff{
		Duration: 500 * time.Millisecond,
		Factor:   2.0,
		Jitter:   0.1,
		Steps:    30,
		Cap:      5 * time.Second,
	}

	var held *lease.Lease
	var lastErr error
	err := wait.ExponentialBackoffWithContext(acquireCtx, backoff, func(ctx context.Context) (bool, error) {
		l, err := o.leases.Acquire(ctx, namespace, o.holder, o.durationSeconds)
		if err == nil {
			held = l
			return true, nil
		}
		var acqErr *lease.AcquisitionError
		if errors.As(err, &acqErr) {
			lastErr = err
			o.log.Debugw("Namespace lock held, retrying",
				"namespace", namespace, "currentHolder", acqErr.CurrentHolder)
			return false, nil
		}
		return false, err
	})
	if err != nil {
		if lastErr != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(err, wait.ErrWaitTimeout)) {
			return nil, lastErr
		}
		return nil, err
	}
	return held, nil
}

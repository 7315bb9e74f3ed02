package lease

import (
	"context"
	"time"

	"go.uber.org/zap"
	coordinationv1 "k8s.io/api/coordination/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// Manager creates, reads, renews, transfers and deletes the lease resource.
// It never retries a failed acquire; backoff policy belongs to the caller.
type Manager struct {
	client kubernetes.Interface
	log    *zap.SugaredLogger

	// now is injectable for tests; liveness has no heartbeat channel beyond
	// wall-clock time and the lease duration.
	now func() time.Time
}

func NewManager(client kubernetes.Interface, log *zap.SugaredLogger) *Manager {
	return &Manager{
		client: client,
		log:    log,
		now:    time.Now,
	}
}

// Acquire takes ownership of the namespace lock for holder. If no lease
// resource exists it is created. An existing live lease held by the same
// holder succeeds idempotently; one held by another holder fails with
// AcquisitionError. An expired lease proceeds as a transfer.
func (m *Manager) Acquire(ctx context.Context, namespace, holder string, durationSeconds int32) (*Lease, error) {
	current, err := m.ReadCurrent(ctx, namespace)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return m.create(ctx, namespace, holder, durationSeconds)
	}
	if current.HolderIdentity == holder && !current.Expired(m.now()) {
		m.log.Debugw("Lease already held by this holder, re-acquiring",
			"namespace", namespace, "holder", holder)
		return current, nil
	}
	if !current.Expired(m.now()) {
		return nil, &AcquisitionError{
			Namespace:     namespace,
			Holder:        holder,
			CurrentHolder: current.HolderIdentity,
		}
	}
	m.log.Infow("Existing lease expired, taking over",
		"namespace", namespace, "previousHolder", current.HolderIdentity, "holder", holder)
	taken, err := m.takeOver(ctx, current, holder, durationSeconds)
	if err != nil {
		// A concurrent-modification conflict means another contender won the
		// takeover race; the caller cannot distinguish it from a live lease.
		return nil, &AcquisitionError{
			Namespace:     namespace,
			Holder:        holder,
			CurrentHolder: current.HolderIdentity,
		}
	}
	return taken, nil
}

// Renew bumps the renew time of a held lease. It fails with RenewalError when
// the resource vanished, the holder no longer matches, or the write loses a
// concurrent-modification race.
func (m *Manager) Renew(ctx context.Context, l *Lease) (*Lease, error) {
	current, err := m.ReadCurrent(ctx, l.Namespace)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, &RenewalError{Namespace: l.Namespace, Holder: l.HolderIdentity, Reason: "lease resource no longer exists"}
	}
	if current.HolderIdentity != l.HolderIdentity {
		return nil, &RenewalError{Namespace: l.Namespace, Holder: l.HolderIdentity,
			Reason: "lease is now held by " + current.HolderIdentity}
	}
	renewed := *current
	renewed.RenewTime = m.now()
	updated, err := m.update(ctx, &renewed)
	if err != nil {
		return nil, &RenewalError{Namespace: l.Namespace, Holder: l.HolderIdentity, Reason: err.Error()}
	}
	return updated, nil
}

// Transfer hands the lease to newHolder. It is allowed only once the existing
// lease has expired; attempts against a live lease fail with TransferError.
func (m *Manager) Transfer(ctx context.Context, l *Lease, newHolder string) (*Lease, error) {
	current, err := m.ReadCurrent(ctx, l.Namespace)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, &RenewalError{Namespace: l.Namespace, Holder: newHolder, Reason: "lease resource no longer exists"}
	}
	if !current.Expired(m.now()) {
		return nil, &TransferError{
			Namespace:     l.Namespace,
			NewHolder:     newHolder,
			CurrentHolder: current.HolderIdentity,
		}
	}
	taken, err := m.takeOver(ctx, current, newHolder, current.DurationSeconds)
	if err != nil {
		return nil, &TransferError{
			Namespace:     l.Namespace,
			NewHolder:     newHolder,
			CurrentHolder: current.HolderIdentity,
		}
	}
	return taken, nil
}

// Release deletes the lease resource if the caller is still the current
// holder. An already-absent lease is a no-op, never an error.
func (m *Manager) Release(ctx context.Context, l *Lease) error {
	current, err := m.ReadCurrent(ctx, l.Namespace)
	if err != nil {
		return err
	}
	if current == nil {
		m.log.Debugw("Lease already released", "namespace", l.Namespace, "holder", l.HolderIdentity)
		return nil
	}
	if current.HolderIdentity != l.HolderIdentity {
		return &ReleaseError{
			Namespace:     l.Namespace,
			Holder:        l.HolderIdentity,
			CurrentHolder: current.HolderIdentity,
		}
	}
	opts := metav1.DeleteOptions{
		Preconditions: &metav1.Preconditions{ResourceVersion: &current.resourceVersion},
	}
	err = m.client.CoordinationV1().Leases(l.Namespace).Delete(ctx, ResourceName, opts)
	switch {
	case err == nil:
		m.log.Infow("Released lease", "namespace", l.Namespace, "holder", l.HolderIdentity)
		return nil
	case apierrors.IsNotFound(err):
		return nil
	case apierrors.IsConflict(err):
		// Lost the delete race; whoever modified the lease owns it now.
		return &ReleaseError{Namespace: l.Namespace, Holder: l.HolderIdentity, CurrentHolder: current.HolderIdentity}
	default:
		return err
	}
}

// ReadCurrent is a read-only lookup. It returns (nil, nil) when no lease
// resource exists for the namespace.
func (m *Manager) ReadCurrent(ctx context.Context, namespace string) (*Lease, error) {
	obj, err := m.client.CoordinationV1().Leases(namespace).Get(ctx, ResourceName, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return fromResource(obj), nil
}

// KeepAlive renews the lease at a third of its duration until ctx is
// cancelled. The first renewal failure is reported on the returned channel
// and the loop stops; the holder must treat it as lost ownership.
func (m *Manager) KeepAlive(ctx context.Context, l *Lease) <-chan error {
	errc := make(chan error, 1)
	interval := time.Duration(l.DurationSeconds) * time.Second / 3
	go func() {
		defer close(errc)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		current := l
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				renewed, err := m.Renew(ctx, current)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					m.log.Errorw("Lease renewal failed",
						"namespace", current.Namespace, "holder", current.HolderIdentity, "error", err)
					errc <- err
					return
				}
				current = renewed
				m.log.Debugw("Renewed lease", "namespace", current.Namespace, "holder", current.HolderIdentity)
			}
		}
	}()
	return errc
}

func (m *Manager) create(ctx context.Context, namespace, holder string, durationSeconds int32) (*Lease, error) {
	now := m.now()
	l := &Lease{
		Namespace:       namespace,
		HolderIdentity:  holder,
		DurationSeconds: durationSeconds,
		AcquireTime:     now,
		RenewTime:       now,
		Transitions:     0,
	}
	obj := &coordinationv1.Lease{
		ObjectMeta: metav1.ObjectMeta{Name: ResourceName, Namespace: namespace},
		Spec:       l.toSpec(),
	}
	created, err := m.client.CoordinationV1().Leases(namespace).Create(ctx, obj, metav1.CreateOptions{})
	if err != nil {
		if apierrors.IsAlreadyExists(err) || apierrors.IsConflict(err) {
			// Another contender created the lease between our read and write.
			return nil, &AcquisitionError{Namespace: namespace, Holder: holder}
		}
		return nil, err
	}
	m.log.Infow("Acquired lease", "namespace", namespace, "holder", holder, "durationSeconds", durationSeconds)
	return fromResource(created), nil
}

// takeOver swaps the holder on an expired lease, incrementing the transition
// counter and resetting both timestamps. The caller maps conflict errors to
// its own error kind.
func (m *Manager) takeOver(ctx context.Context, current *Lease, newHolder string, durationSeconds int32) (*Lease, error) {
	now := m.now()
	next := *current
	next.HolderIdentity = newHolder
	next.DurationSeconds = durationSeconds
	next.AcquireTime = now
	next.RenewTime = now
	next.Transitions = current.Transitions + 1
	return m.update(ctx, &next)
}

func (m *Manager) update(ctx context.Context, l *Lease) (*Lease, error) {
	obj := &coordinationv1.Lease{
		ObjectMeta: metav1.ObjectMeta{
			Name:            ResourceName,
			Namespace:       l.Namespace,
			ResourceVersion: l.resourceVersion,
		},
		Spec: l.toSpec(),
	}
	updated, err := m.client.CoordinationV1().Leases(l.Namespace).Update(ctx, obj, metav1.UpdateOptions{})
	if err != nil {
		return nil, err
	}
	return fromResource(updated), nil
}

package lease

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	coordinationv1 "k8s.io/api/coordination/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/utils/ptr"
)

const (
	// ResourceName is the name of the Lease resource guarding a namespace.
	// There is exactly one lock per deployment namespace.
	ResourceName = "quorum-deploy-lock"

	// DefaultDurationSeconds is the default liveness window for a lease.
	DefaultDurationSeconds int32 = 60
)

// Lease is the in-memory handle representing ownership state of the
// namespace-scoped mutual-exclusion resource. It carries the resource version
// observed at read time so that every mutation is a read-before-write guarded
// by the API server's concurrency token.
type Lease struct {
	Namespace       string
	HolderIdentity  string
	DurationSeconds int32
	AcquireTime     time.Time
	RenewTime       time.Time
	Transitions     int32

	resourceVersion string
}

// Expired reports whether the liveness window has elapsed at the given time.
func (l *Lease) Expired(now time.Time) bool {
	return now.Sub(l.RenewTime) >= time.Duration(l.DurationSeconds)*time.Second
}

// NewHolderIdentity returns an opaque identity unique to this process
// instance: hostname, pid and a short random suffix.
func NewHolderIdentity() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s-%d-%s", host, os.Getpid(), uuid.NewString()[:8])
}

func fromResource(obj *coordinationv1.Lease) *Lease {
	l := &Lease{
		Namespace:       obj.Namespace,
		resourceVersion: obj.ResourceVersion,
	}
	spec := obj.Spec
	if spec.HolderIdentity != nil {
		l.HolderIdentity = *spec.HolderIdentity
	}
	if spec.LeaseDurationSeconds != nil {
		l.DurationSeconds = *spec.LeaseDurationSeconds
	}
	if spec.AcquireTime != nil {
		l.AcquireTime = spec.AcquireTime.Time
	}
	if spec.RenewTime != nil {
		l.RenewTime = spec.RenewTime.Time
	}
	if spec.LeaseTransitions != nil {
		l.Transitions = *spec.LeaseTransitions
	}
	return l
}

func (l *Lease) toSpec() coordinationv1.LeaseSpec {
	return coordinationv1.LeaseSpec{
		HolderIdentity:       ptr.To(l.HolderIdentity),
		LeaseDurationSeconds: ptr.To(l.DurationSeconds),
		AcquireTime:          ptr.To(metav1.NewMicroTime(l.AcquireTime)),
		RenewTime:            ptr.To(metav1.NewMicroTime(l.RenewTime)),
		LeaseTransitions:     ptr.To(l.Transitions),
	}
}

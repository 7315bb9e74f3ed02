/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package lease

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"
)

func newTestManager(t *testing.T, client *fake.Clientset) (*Manager, *time.Time) {
	t.Helper()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := NewManager(client, zaptest.NewLogger(t).Sugar())
	m.now = func() time.Time { return now }
	return m, &now
}

func TestAcquire_CreatesLease(t *testing.T) {
	client := fake.NewClientset()
	m, _ := newTestManager(t, client)

	l, err := m.Acquire(context.Background(), "net1", "h1", 20)
	require.NoError(t, err)
	assert.Equal(t, "net1", l.Namespace)
	assert.Equal(t, "h1", l.HolderIdentity)
	assert.Equal(t, int32(20), l.DurationSeconds)
	assert.Equal(t, int32(0), l.Transitions)
	assert.Equal(t, l.AcquireTime, l.RenewTime)

	current, err := m.ReadCurrent(context.Background(), "net1")
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, "h1", current.HolderIdentity)
}

func TestAcquire_MutualExclusion(t *testing.T) {
	client := fake.NewClientset()
	m, _ := newTestManager(t, client)

	_, err := m.Acquire(context.Background(), "net1", "h1", 20)
	require.NoError(t, err)

	_, err = m.Acquire(context.Background(), "net1", "h2", 20)
	var acqErr *AcquisitionError
	require.ErrorAs(t, err, &acqErr)
	assert.Equal(t, "h1", acqErr.CurrentHolder)
	assert.Equal(t, "h2", acqErr.Holder)
}

func TestAcquire_IdempotentForSameHolder(t *testing.T) {
	client := fake.NewClientset()
	m, _ := newTestManager(t, client)

	first, err := m.Acquire(context.Background(), "net1", "h1", 20)
	require.NoError(t, err)

	again, err := m.Acquire(context.Background(), "net1", "h1", 20)
	require.NoError(t, err)
	assert.Equal(t, first.HolderIdentity, again.HolderIdentity)
	assert.Equal(t, first.Transitions, again.Transitions)
}

func TestAcquire_DistinctNamespacesAreIndependent(t *testing.T) {
	client := fake.NewClientset()
	m, _ := newTestManager(t, client)

	_, err := m.Acquire(context.Background(), "net1", "h1", 20)
	require.NoError(t, err)
	_, err = m.Acquire(context.Background(), "net2", "h2", 20)
	require.NoError(t, err)
}

func TestAcquire_TakesOverExpiredLease(t *testing.T) {
	client := fake.NewClientset()
	m, now := newTestManager(t, client)

	_, err := m.Acquire(context.Background(), "net1", "h1", 20)
	require.NoError(t, err)

	*now = now.Add(21 * time.Second)

	l, err := m.Acquire(context.Background(), "net1", "h2", 20)
	require.NoError(t, err)
	assert.Equal(t, "h2", l.HolderIdentity)
	assert.Equal(t, int32(1), l.Transitions)
}

func TestRenew_KeepsLiveness(t *testing.T) {
	client := fake.NewClientset()
	m, now := newTestManager(t, client)

	l, err := m.Acquire(context.Background(), "net1", "h1", 20)
	require.NoError(t, err)

	// Renew just before each window elapses; the holder stays eligible
	// indefinitely and no competitor can get in.
	for i := 0; i < 5; i++ {
		*now = now.Add(19 * time.Second)
		l, err = m.Renew(context.Background(), l)
		require.NoError(t, err)
		assert.Equal(t, *now, l.RenewTime)

		_, err = m.Acquire(context.Background(), "net1", "h2", 20)
		var acqErr *AcquisitionError
		require.ErrorAs(t, err, &acqErr)
	}
	assert.Equal(t, int32(0), l.Transitions)
}

func TestRenew_FailsWhenHolderChanged(t *testing.T) {
	client := fake.NewClientset()
	m, now := newTestManager(t, client)

	l1, err := m.Acquire(context.Background(), "net1", "h1", 20)
	require.NoError(t, err)

	*now = now.Add(21 * time.Second)
	_, err = m.Acquire(context.Background(), "net1", "h2", 20)
	require.NoError(t, err)

	_, err = m.Renew(context.Background(), l1)
	var renewErr *RenewalError
	require.ErrorAs(t, err, &renewErr)
	assert.Contains(t, renewErr.Reason, "h2")
}

func TestRenew_FailsWhenResourceVanished(t *testing.T) {
	client := fake.NewClientset()
	m, _ := newTestManager(t, client)

	l, err := m.Acquire(context.Background(), "net1", "h1", 20)
	require.NoError(t, err)
	require.NoError(t, m.Release(context.Background(), l))

	_, err = m.Renew(context.Background(), l)
	var renewErr *RenewalError
	require.ErrorAs(t, err, &renewErr)
}

func TestRenew_SurfacesConflictAsRenewalError(t *testing.T) {
	client := fake.NewClientset()
	m, _ := newTestManager(t, client)

	l, err := m.Acquire(context.Background(), "net1", "h1", 20)
	require.NoError(t, err)

	gr := schema.GroupResource{Group: "coordination.k8s.io", Resource: "leases"}
	client.PrependReactor("update", "leases", func(k8stesting.Action) (bool, runtime.Object, error) {
		return true, nil, apierrors.NewConflict(gr, ResourceName, errors.New("the object has been modified"))
	})

	_, err = m.Renew(context.Background(), l)
	var renewErr *RenewalError
	require.ErrorAs(t, err, &renewErr)
}

func TestTransfer_BlockedWhileLive(t *testing.T) {
	client := fake.NewClientset()
	m, _ := newTestManager(t, client)

	l, err := m.Acquire(context.Background(), "net1", "h1", 20)
	require.NoError(t, err)

	_, err = m.Transfer(context.Background(), l, "h2")
	var transferErr *TransferError
	require.ErrorAs(t, err, &transferErr)
	assert.Equal(t, "h1", transferErr.CurrentHolder)
}

func TestTransfer_SucceedsAfterExpiry(t *testing.T) {
	client := fake.NewClientset()
	m, now := newTestManager(t, client)

	l, err := m.Acquire(context.Background(), "net1", "h1", 20)
	require.NoError(t, err)

	*now = now.Add(20 * time.Second)

	got, err := m.Transfer(context.Background(), l, "h2")
	require.NoError(t, err)
	assert.Equal(t, "h2", got.HolderIdentity)
	assert.Equal(t, int32(1), got.Transitions)
	assert.Equal(t, *now, got.AcquireTime)
	assert.Equal(t, *now, got.RenewTime)
}

func TestTransfer_SurfacesConflictAsTransferError(t *testing.T) {
	client := fake.NewClientset()
	m, now := newTestManager(t, client)

	l, err := m.Acquire(context.Background(), "net1", "h1", 20)
	require.NoError(t, err)
	*now = now.Add(30 * time.Second)

	gr := schema.GroupResource{Group: "coordination.k8s.io", Resource: "leases"}
	client.PrependReactor("update", "leases", func(k8stesting.Action) (bool, runtime.Object, error) {
		return true, nil, apierrors.NewConflict(gr, ResourceName, errors.New("the object has been modified"))
	})

	_, err = m.Transfer(context.Background(), l, "h2")
	var transferErr *TransferError
	require.ErrorAs(t, err, &transferErr)
}

func TestRelease_Idempotent(t *testing.T) {
	client := fake.NewClientset()
	m, _ := newTestManager(t, client)

	l, err := m.Acquire(context.Background(), "net1", "h1", 20)
	require.NoError(t, err)

	require.NoError(t, m.Release(context.Background(), l))
	// Releasing an already-absent lease is a no-op, not an error.
	require.NoError(t, m.Release(context.Background(), l))
}

func TestRelease_FailsForNonHolder(t *testing.T) {
	client := fake.NewClientset()
	m, now := newTestManager(t, client)

	l1, err := m.Acquire(context.Background(), "net1", "h1", 20)
	require.NoError(t, err)

	*now = now.Add(21 * time.Second)
	l2, err := m.Acquire(context.Background(), "net1", "h2", 20)
	require.NoError(t, err)

	err = m.Release(context.Background(), l1)
	var releaseErr *ReleaseError
	require.ErrorAs(t, err, &releaseErr)
	assert.Equal(t, "h2", releaseErr.CurrentHolder)

	require.NoError(t, m.Release(context.Background(), l2))
}

func TestReadCurrent_AbsentIsNil(t *testing.T) {
	client := fake.NewClientset()
	m, _ := newTestManager(t, client)

	l, err := m.ReadCurrent(context.Background(), "net1")
	require.NoError(t, err)
	assert.Nil(t, l)
}

func TestEndToEnd_ExpiryTakeover(t *testing.T) {
	// Namespace net1: h1 acquires with durationSeconds=20; h2's acquire within
	// 20s fails; after 21s without renewal h2's transfer succeeds and the
	// transition counter becomes 1.
	client := fake.NewClientset()
	m, now := newTestManager(t, client)

	l1, err := m.Acquire(context.Background(), "net1", "h1", 20)
	require.NoError(t, err)

	*now = now.Add(10 * time.Second)
	_, err = m.Acquire(context.Background(), "net1", "h2", 20)
	var acqErr *AcquisitionError
	require.ErrorAs(t, err, &acqErr)

	*now = now.Add(11 * time.Second)
	l2, err := m.Transfer(context.Background(), l1, "h2")
	require.NoError(t, err)
	assert.Equal(t, "h2", l2.HolderIdentity)
	assert.Equal(t, int32(1), l2.Transitions)
}

func TestKeepAlive_RenewsUntilCancelled(t *testing.T) {
	client := fake.NewClientset()
	log := zaptest.NewLogger(t).Sugar()
	m := NewManager(client, log)

	l, err := m.Acquire(context.Background(), "net1", "h1", 1)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errc := m.KeepAlive(ctx, l)

	time.Sleep(1200 * time.Millisecond)
	cancel()

	select {
	case err, ok := <-errc:
		if ok {
			t.Fatalf("unexpected keepalive error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("keepalive did not stop after cancellation")
	}

	current, err := m.ReadCurrent(context.Background(), "net1")
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.True(t, current.RenewTime.After(l.RenewTime), "lease should have been renewed in the background")
}

func TestKeepAlive_ReportsLostLease(t *testing.T) {
	client := fake.NewClientset()
	log := zaptest.NewLogger(t).Sugar()
	m := NewManager(client, log)

	l, err := m.Acquire(context.Background(), "net1", "h1", 1)
	require.NoError(t, err)

	// Simulate another holder taking over behind our back.
	m2 := NewManager(client, log)
	m2.now = func() time.Time { return time.Now().Add(time.Hour) }
	_, err = m2.Transfer(context.Background(), l, "h2")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errc := m.KeepAlive(ctx, l)

	select {
	case err := <-errc:
		var renewErr *RenewalError
		require.ErrorAs(t, err, &renewErr)
	case <-time.After(3 * time.Second):
		t.Fatal("expected keepalive to report the lost lease")
	}
}

func TestNewHolderIdentity_Unique(t *testing.T) {
	a := NewHolderIdentity()
	b := NewHolderIdentity()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

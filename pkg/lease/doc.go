// Package lease implements the distributed execution lock that serializes
// mutating quorumctl commands per deployment namespace. The lock is backed by
// a coordination.k8s.io/v1 Lease resource; liveness is a pure function of
// wall-clock time and the lease duration, arbitrated by the API server's
// optimistic-concurrency resource version.
package lease

// Package topology derives fully resolved consensus-node identities by
// joining the cluster-persisted network configuration with the operator-local
// cluster-to-context mapping, including DNS name rendering.
package topology

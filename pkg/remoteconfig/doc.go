// Package remoteconfig loads and persists the authoritative cluster-topology
// record for a deployment namespace. The record is a YAML document stored in a
// well-known ConfigMap and is the single source of truth for which clusters
// and consensus nodes exist; read-only commands load it, topology-mutating
// commands persist it back while holding the namespace lease.
package remoteconfig

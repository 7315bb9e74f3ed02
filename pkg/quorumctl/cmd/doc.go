// Package cmd implements the quorumctl command tree: local configuration
// management, consensus-node topology inspection and mutation, and namespace
// lock inspection and recovery.
package cmd

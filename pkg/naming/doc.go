// Package naming converts arbitrary strings (cluster references, node
// aliases) to Kubernetes-compatible RFC 1123 names, handling sanitization and
// truncation.
package naming

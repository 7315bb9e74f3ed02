package topology

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/telekom/k8s-quorum/pkg/remoteconfig"
)

const (
	// DefaultDNSBaseDomain is used when a cluster entry carries no DNS base
	// domain of its own.
	DefaultDNSBaseDomain = "cluster.local"

	// DefaultNodePattern is the FQDN template used when a cluster entry
	// carries no consensus-node pattern.
	DefaultNodePattern = "network-${nodeAlias}-svc.${namespace}.svc"
)

// Node is one fully resolved consensus-node identity. Nodes are recomputed
// fresh on every request and immutable once constructed.
type Node struct {
	Alias      string `json:"alias"`
	NodeID     int    `json:"nodeId"`
	Namespace  string `json:"namespace"`
	ClusterRef string `json:"clusterRef"`
	// Context is the kubeconfig context resolved from the local cluster-ref
	// mapping. Empty when the local config has no entry for the cluster ref;
	// that gap is propagated, not defaulted.
	Context        string `json:"context,omitempty"`
	DNSBaseDomain  string `json:"dnsBaseDomain"`
	DNSNodePattern string `json:"dnsNodePattern"`
	FQDN           string `json:"fqdn"`
}

// ConfigurationError indicates derivation was requested against an unloaded
// network configuration.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s", e.Reason)
}

// Derive joins the loaded network configuration with the local cluster-ref to
// context mapping and returns one Node per consensus-node record, in the
// record key order exposed by the configuration. A configuration without any
// consensus-node component yields an empty slice; that is a freshly
// initialized deployment, not an error.
func Derive(remote *remoteconfig.RemoteConfig, clusterRefs map[string]string, log *zap.SugaredLogger) ([]Node, error) {
	if !remote.IsLoaded() {
		return nil, &ConfigurationError{Reason: "network configuration is not loaded"}
	}
	if log == nil {
		log = zap.S()
	}

	records := remote.Components().ConsensusNodes
	if len(records) == 0 {
		return []Node{}, nil
	}
	clusters := remote.Clusters()

	nodes := make([]Node, 0, len(records))
	for _, key := range remote.NodeKeys() {
		record := records[key]
		alias := record.Name
		if alias == "" {
			alias = key
		}

		cluster, hasCluster := clusters[record.Cluster]
		baseDomain := cluster.DNSBaseDomain
		if baseDomain == "" {
			baseDomain = DefaultDNSBaseDomain
			log.Warnw("Cluster entry has no DNS base domain, falling back to default",
				"node", alias, "clusterRef", record.Cluster, "default", DefaultDNSBaseDomain)
		}
		pattern := cluster.DNSConsensusNodePattern
		if pattern == "" {
			pattern = DefaultNodePattern
			log.Warnw("Cluster entry has no consensus-node DNS pattern, falling back to default",
				"node", alias, "clusterRef", record.Cluster, "default", DefaultNodePattern)
		}
		if !hasCluster {
			log.Warnw("Node references a cluster absent from the network configuration",
				"node", alias, "clusterRef", record.Cluster)
		}

		nodes = append(nodes, Node{
			Alias:          alias,
			NodeID:         record.NodeID,
			Namespace:      record.Namespace,
			ClusterRef:     record.Cluster,
			Context:        clusterRefs[record.Cluster],
			DNSBaseDomain:  baseDomain,
			DNSNodePattern: pattern,
			FQDN:           RenderFQDN(pattern, alias, record.Namespace),
		})
	}
	return nodes, nil
}

// RenderFQDN substitutes the ${nodeAlias} and ${namespace} placeholders in a
// pattern. Unknown placeholders are left verbatim.
func RenderFQDN(pattern, alias, namespace string) string {
	return strings.NewReplacer(
		"${nodeAlias}", alias,
		"${namespace}", namespace,
	).Replace(pattern)
}

// DistinctContexts returns the resolved contexts of the node sequence in
// first-seen order, de-duplicated. Nodes whose cluster ref has no local
// context entry are skipped.
func DistinctContexts(nodes []Node) []string {
	seen := make(map[string]struct{}, len(nodes))
	contexts := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if n.Context == "" {
			continue
		}
		if _, ok := seen[n.Context]; ok {
			continue
		}
		seen[n.Context] = struct{}{}
		contexts = append(contexts, n.Context)
	}
	return contexts
}

// ContextsByCluster maps each distinct cluster reference to one context; the
// first context encountered per cluster reference wins.
func ContextsByCluster(nodes []Node) map[string]string {
	result := make(map[string]string, len(nodes))
	for _, n := range nodes {
		if _, ok := result[n.ClusterRef]; ok {
			continue
		}
		result[n.ClusterRef] = n.Context
	}
	return result
}

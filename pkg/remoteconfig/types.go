package remoteconfig

import "sort"

// ClusterEntry holds the DNS metadata recorded for one target cluster.
type ClusterEntry struct {
	// DNSBaseDomain is the cluster's DNS suffix. Empty means the consumer
	// falls back to the in-cluster default.
	DNSBaseDomain string `json:"dnsBaseDomain,omitempty"`
	// DNSConsensusNodePattern is the FQDN template for consensus-node
	// services, with ${nodeAlias} and ${namespace} placeholders.
	DNSConsensusNodePattern string `json:"dnsConsensusNodePattern,omitempty"`
}

// ConsensusNodeEntry is one node record in the topology document.
type ConsensusNodeEntry struct {
	Name      string `json:"name"`
	NodeID    int    `json:"nodeId"`
	Namespace string `json:"namespace"`
	Cluster   string `json:"cluster"`
}

// Components groups the deployed component records. ConsensusNodes may be
// absent entirely; that denotes zero nodes, not an error.
type Components struct {
	ConsensusNodes map[string]ConsensusNodeEntry `json:"consensusNodes,omitempty"`
}

// Document is the persisted shape of the topology record.
type Document struct {
	Clusters   map[string]ClusterEntry `json:"clusters,omitempty"`
	Components Components              `json:"components,omitempty"`
}

// RemoteConfig wraps a loaded Document together with its origin namespace and
// the resource version observed at load time. The zero value is not loaded;
// only Manager.Load and New produce loaded instances.
type RemoteConfig struct {
	namespace string
	doc       Document
	nodeKeys  []string
	loaded    bool

	resourceVersion string
}

// New builds a loaded RemoteConfig from a document. Used by deployment-time
// commands that create the record before its first persist, and by tests.
func New(namespace string, doc Document) *RemoteConfig {
	return &RemoteConfig{
		namespace: namespace,
		doc:       doc,
		nodeKeys:  sortedNodeKeys(doc),
		loaded:    true,
	}
}

// IsLoaded reports whether this instance carries a loaded document.
func (rc *RemoteConfig) IsLoaded() bool {
	return rc != nil && rc.loaded
}

// Namespace returns the deployment namespace the record belongs to.
func (rc *RemoteConfig) Namespace() string {
	if rc == nil {
		return ""
	}
	return rc.namespace
}

// Clusters returns the cluster metadata mapping. Empty before load.
func (rc *RemoteConfig) Clusters() map[string]ClusterEntry {
	if !rc.IsLoaded() {
		return nil
	}
	return rc.doc.Clusters
}

// Components returns the component records. Zero value before load.
func (rc *RemoteConfig) Components() Components {
	if !rc.IsLoaded() {
		return Components{}
	}
	return rc.doc.Components
}

// NodeKeys returns the consensus-node record keys in stable lexical order.
// YAML maps lose their document order on decode, so the key order is fixed at
// load time; identical inputs always yield the identical sequence.
func (rc *RemoteConfig) NodeKeys() []string {
	if !rc.IsLoaded() {
		return nil
	}
	return rc.nodeKeys
}

// SetNode inserts or replaces a consensus-node record.
func (rc *RemoteConfig) SetNode(key string, entry ConsensusNodeEntry) {
	if rc.doc.Components.ConsensusNodes == nil {
		rc.doc.Components.ConsensusNodes = map[string]ConsensusNodeEntry{}
	}
	rc.doc.Components.ConsensusNodes[key] = entry
	rc.nodeKeys = sortedNodeKeys(rc.doc)
}

// DeleteNode removes a consensus-node record. Unknown keys are a no-op.
func (rc *RemoteConfig) DeleteNode(key string) {
	delete(rc.doc.Components.ConsensusNodes, key)
	rc.nodeKeys = sortedNodeKeys(rc.doc)
}

// SetCluster inserts or replaces a cluster metadata entry.
func (rc *RemoteConfig) SetCluster(ref string, entry ClusterEntry) {
	if rc.doc.Clusters == nil {
		rc.doc.Clusters = map[string]ClusterEntry{}
	}
	rc.doc.Clusters[ref] = entry
}

func sortedNodeKeys(doc Document) []string {
	keys := make([]string, 0, len(doc.Components.ConsensusNodes))
	for k := range doc.Components.ConsensusNodes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

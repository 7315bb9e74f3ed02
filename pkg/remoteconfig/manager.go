package remoteconfig

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/util/retry"
	"sigs.k8s.io/yaml"
)

const (
	// ConfigMapName is the well-known name of the topology record.
	ConfigMapName = "quorum-network-config"
	// ConfigMapKey is the data key holding the YAML document.
	ConfigMapKey = "network.yaml"
)

// NotFoundError indicates no topology record is persisted for a namespace.
type NotFoundError struct {
	Namespace string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no network configuration found in namespace %q", e.Namespace)
}

// Manager reads and writes the topology record. Topology is read far more
// often than written, so a successful Load is kept for the lifetime of the
// command and exposed through IsLoaded rather than re-fetched implicitly.
type Manager struct {
	client  kubernetes.Interface
	log     *zap.SugaredLogger
	current *RemoteConfig
}

func NewManager(client kubernetes.Interface, log *zap.SugaredLogger) *Manager {
	return &Manager{client: client, log: log}
}

// Load fetches the persisted topology record for the namespace. It fails with
// NotFoundError when no record (or no document key) exists.
func (m *Manager) Load(ctx context.Context, namespace string) (*RemoteConfig, error) {
	cm, err := m.client.CoreV1().ConfigMaps(namespace).Get(ctx, ConfigMapName, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return nil, &NotFoundError{Namespace: namespace}
		}
		return nil, fmt.Errorf("failed to read network configuration in namespace %q: %w", namespace, err)
	}
	raw, ok := cm.Data[ConfigMapKey]
	if !ok {
		return nil, &NotFoundError{Namespace: namespace}
	}
	var doc Document
	if err := yaml.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("failed to parse network configuration in namespace %q: %w", namespace, err)
	}
	rc := New(namespace, doc)
	rc.resourceVersion = cm.ResourceVersion
	m.current = rc
	m.log.Debugw("Loaded network configuration",
		"namespace", namespace,
		"clusters", len(doc.Clusters),
		"consensusNodes", len(doc.Components.ConsensusNodes))
	return rc, nil
}

// IsLoaded is true only after a successful Load in this manager's lifetime.
func (m *Manager) IsLoaded() bool {
	return m.current.IsLoaded()
}

// Current returns the last loaded record, or nil.
func (m *Manager) Current() *RemoteConfig {
	return m.current
}

// Persist writes the record back to its namespace, creating the ConfigMap on
// first use. Concurrent-modification conflicts are retried with a fresh read;
// callers are expected to hold the namespace lease, which is the sole
// concurrency control protecting topology consistency.
func (m *Manager) Persist(ctx context.Context, rc *RemoteConfig) error {
	if !rc.IsLoaded() {
		return fmt.Errorf("cannot persist network configuration for namespace %q: not loaded", rc.Namespace())
	}
	raw, err := yaml.Marshal(rc.doc)
	if err != nil {
		return fmt.Errorf("failed to encode network configuration: %w", err)
	}

	namespace := rc.Namespace()
	cms := m.client.CoreV1().ConfigMaps(namespace)
	err = retry.RetryOnConflict(retry.DefaultRetry, func() error {
		cm, getErr := cms.Get(ctx, ConfigMapName, metav1.GetOptions{})
		if apierrors.IsNotFound(getErr) {
			_, createErr := cms.Create(ctx, &corev1.ConfigMap{
				ObjectMeta: metav1.ObjectMeta{Name: ConfigMapName, Namespace: namespace},
				Data:       map[string]string{ConfigMapKey: string(raw)},
			}, metav1.CreateOptions{})
			return createErr
		}
		if getErr != nil {
			return getErr
		}
		if cm.Data == nil {
			cm.Data = map[string]string{}
		}
		cm.Data[ConfigMapKey] = string(raw)
		_, updateErr := cms.Update(ctx, cm, metav1.UpdateOptions{})
		return updateErr
	})
	if err != nil {
		return fmt.Errorf("failed to persist network configuration in namespace %q: %w", namespace, err)
	}
	m.log.Infow("Persisted network configuration",
		"namespace", namespace,
		"clusters", len(rc.doc.Clusters),
		"consensusNodes", len(rc.doc.Components.ConsensusNodes))
	return nil
}

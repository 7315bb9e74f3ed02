// Package kube builds Kubernetes clients keyed by kubeconfig context. Each
// resource-specific manager receives the narrow client surface it needs from
// here instead of sharing one catch-all wrapper.
package kube

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"
)

// ClientFactory resolves kubeconfig context names to clientsets. Clients are
// cached per context for the lifetime of the command invocation.
type ClientFactory struct {
	kubeconfig string
	log        *zap.SugaredLogger

	mu      sync.Mutex
	clients map[string]kubernetes.Interface

	// build is swappable in tests.
	build func(kubeconfig, contextName string) (kubernetes.Interface, error)
}

func NewClientFactory(kubeconfigPath string, log *zap.SugaredLogger) *ClientFactory {
	if kubeconfigPath == "" {
		kubeconfigPath = DefaultKubeconfigPath()
	}
	return &ClientFactory{
		kubeconfig: kubeconfigPath,
		log:        log,
		clients:    map[string]kubernetes.Interface{},
		build:      buildClient,
	}
}

// NewStaticClientFactory returns a factory that hands out the given clientset
// for every context. Used by tests and single-cluster tooling.
func NewStaticClientFactory(client kubernetes.Interface, log *zap.SugaredLogger) *ClientFactory {
	return &ClientFactory{
		log:     log,
		clients: map[string]kubernetes.Interface{},
		build: func(string, string) (kubernetes.Interface, error) {
			return client, nil
		},
	}
}

// ClientFor returns the clientset for a kubeconfig context. An empty context
// name selects the kubeconfig's current context.
func (f *ClientFactory) ClientFor(contextName string) (kubernetes.Interface, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if client, ok := f.clients[contextName]; ok {
		return client, nil
	}
	client, err := f.build(f.kubeconfig, contextName)
	if err != nil {
		return nil, fmt.Errorf("failed to build client for context %q: %w", contextName, err)
	}
	f.log.Debugw("Built cluster client", "context", contextName, "kubeconfig", f.kubeconfig)
	f.clients[contextName] = client
	return client, nil
}

// DefaultKubeconfigPath honors KUBECONFIG and falls back to ~/.kube/config.
func DefaultKubeconfigPath() string {
	if kubeconfig := os.Getenv("KUBECONFIG"); kubeconfig != "" {
		return kubeconfig
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return clientcmd.RecommendedHomeFile
	}
	return filepath.Join(home, ".kube", "config")
}

func buildClient(kubeconfig, contextName string) (kubernetes.Interface, error) {
	loadingRules := &clientcmd.ClientConfigLoadingRules{ExplicitPath: kubeconfig}
	overrides := &clientcmd.ConfigOverrides{CurrentContext: contextName}
	restConfig, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, overrides).ClientConfig()
	if err != nil {
		return nil, err
	}
	return kubernetes.NewForConfig(restConfig)
}

package kube

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/kubernetes/fake"
)

func TestClientFor_CachesPerContext(t *testing.T) {
	f := NewClientFactory("/tmp/kubeconfig", zaptest.NewLogger(t).Sugar())
	builds := 0
	f.build = func(kubeconfig, contextName string) (kubernetes.Interface, error) {
		builds++
		return fake.NewClientset(), nil
	}

	a1, err := f.ClientFor("ctx-a")
	require.NoError(t, err)
	a2, err := f.ClientFor("ctx-a")
	require.NoError(t, err)
	assert.Same(t, a1, a2)
	assert.Equal(t, 1, builds)

	_, err = f.ClientFor("ctx-b")
	require.NoError(t, err)
	assert.Equal(t, 2, builds)
}

func TestClientFor_BuildErrorNotCached(t *testing.T) {
	f := NewClientFactory("/tmp/kubeconfig", zaptest.NewLogger(t).Sugar())
	fail := true
	f.build = func(kubeconfig, contextName string) (kubernetes.Interface, error) {
		if fail {
			return nil, errors.New("no such context")
		}
		return fake.NewClientset(), nil
	}

	_, err := f.ClientFor("ctx-a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ctx-a")

	fail = false
	_, err = f.ClientFor("ctx-a")
	require.NoError(t, err)
}

func TestDefaultKubeconfigPath(t *testing.T) {
	t.Setenv("KUBECONFIG", "/custom/kubeconfig")
	assert.Equal(t, "/custom/kubeconfig", DefaultKubeconfigPath())

	t.Setenv("KUBECONFIG", "")
	path := DefaultKubeconfigPath()
	assert.Equal(t, "config", filepath.Base(path))
	assert.Contains(t, path, ".kube")
}

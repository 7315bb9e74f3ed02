/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSave_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.ClusterRefs = map[string]string{
		"cluster-a": "kind-a",
		"cluster-b": "kind-b",
	}
	require.NoError(t, Save(path, &cfg))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, VersionV1, loaded.Version)
	assert.Equal(t, "kind-a", loaded.ClusterRefs["cluster-a"])
	assert.Equal(t, "table", loaded.Settings.OutputFormat)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load("")
	require.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cluster-refs: [broken"), 0o600))
	_, err = Load(path)
	require.Error(t, err)
}

func TestLoad_DefaultsVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cluster-refs:\n  a: ctx-a\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, VersionV1, cfg.Version)
}

func TestContextFor(t *testing.T) {
	cfg := Config{ClusterRefs: map[string]string{"cluster-a": "kind-a"}}

	context, ok := cfg.ContextFor("cluster-a")
	assert.True(t, ok)
	assert.Equal(t, "kind-a", context)

	context, ok = cfg.ContextFor("ghost")
	assert.False(t, ok)
	assert.Empty(t, context)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"default is valid", DefaultConfig(), false},
		{"missing version", Config{}, true},
		{"empty context", Config{Version: VersionV1, ClusterRefs: map[string]string{"a": " "}}, true},
		{"empty ref", Config{Version: VersionV1, ClusterRefs: map[string]string{" ": "ctx"}}, true},
		{"bad timeout", Config{Version: VersionV1, Settings: Settings{AcquireTimeout: "soon"}}, true},
		{"negative duration", Config{Version: VersionV1, Settings: Settings{LeaseDurationSeconds: -1}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestAcquireTimeoutOrDefault(t *testing.T) {
	cfg := Config{}
	assert.Equal(t, time.Minute, cfg.AcquireTimeoutOrDefault(time.Minute))

	cfg.Settings.AcquireTimeout = "30s"
	assert.Equal(t, 30*time.Second, cfg.AcquireTimeoutOrDefault(time.Minute))

	cfg.Settings.AcquireTimeout = "bogus"
	assert.Equal(t, time.Minute, cfg.AcquireTimeoutOrDefault(time.Minute))
}

func TestDefaultConfigPath_EnvOverride(t *testing.T) {
	t.Setenv("QUORUMCTL_CONFIG", "/custom/config.yaml")
	assert.Equal(t, "/custom/config.yaml", DefaultConfigPath())

	t.Setenv("QUORUMCTL_CONFIG", "")
	assert.Equal(t, "config.yaml", filepath.Base(DefaultConfigPath()))
}

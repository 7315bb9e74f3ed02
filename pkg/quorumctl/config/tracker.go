package config

import (
	"sort"
	"sync"
	"time"
)

// Tracker wraps a Config and records which declared fields a command actually
// read, so unused configuration can be reported at the end of the run. Every
// read goes through an explicit accessor; there is no reflection involved.
type Tracker struct {
	cfg *Config

	mu   sync.Mutex
	read map[string]struct{}
}

func NewTracker(cfg *Config) *Tracker {
	return &Tracker{cfg: cfg, read: map[string]struct{}{}}
}

func (t *Tracker) mark(field string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.read[field] = struct{}{}
}

// ClusterRefs returns the whole cluster-ref mapping, marking every entry read.
func (t *Tracker) ClusterRefs() map[string]string {
	for ref := range t.cfg.ClusterRefs {
		t.mark("cluster-refs." + ref)
	}
	return t.cfg.ClusterRefs
}

// ContextFor resolves one cluster reference, marking only that entry.
func (t *Tracker) ContextFor(clusterRef string) (string, bool) {
	t.mark("cluster-refs." + clusterRef)
	return t.cfg.ContextFor(clusterRef)
}

func (t *Tracker) OutputFormat() string {
	t.mark("settings.output-format")
	return t.cfg.Settings.OutputFormat
}

func (t *Tracker) Kubeconfig() string {
	t.mark("settings.kubeconfig")
	return t.cfg.Settings.Kubeconfig
}

func (t *Tracker) LeaseDurationSeconds() int32 {
	t.mark("settings.lease-duration-seconds")
	return t.cfg.Settings.LeaseDurationSeconds
}

func (t *Tracker) AcquireTimeout(def time.Duration) time.Duration {
	t.mark("settings.acquire-timeout")
	return t.cfg.AcquireTimeoutOrDefault(def)
}

// Config exposes the underlying configuration for writes; mutations are not
// tracked.
func (t *Tracker) Config() *Config {
	return t.cfg
}

// declared returns every trackable field present in the configuration.
func (t *Tracker) declared() []string {
	fields := []string{
		"settings.output-format",
		"settings.kubeconfig",
		"settings.lease-duration-seconds",
		"settings.acquire-timeout",
	}
	for ref := range t.cfg.ClusterRefs {
		fields = append(fields, "cluster-refs."+ref)
	}
	return fields
}

// Unused returns the declared fields never read through this tracker, sorted.
func (t *Tracker) Unused() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var unused []string
	for _, field := range t.declared() {
		if _, ok := t.read[field]; !ok {
			unused = append(unused, field)
		}
	}
	sort.Strings(unused)
	return unused
}

// Copyright 2024-2026 Madhukar Beema. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package config

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestIsConfigFile(t *testing.T) {
	cases := map[string]bool{
		"/etc/perfhook/base.yaml":  true,
		"monitor.yml":              true,
		"/etc/perfhook/.env":       true,
		"/etc/perfhook/base.yaml~": false,
		"notes.txt":                false,
	}
	for name, want := range cases {
		if got := isConfigFile(name); got != want {
			t.Errorf("isConfigFile(%q) = %v, want %v", name, got, want)
		}
	}
}

type reload struct {
	cfg     *Config
	changed []string
}

func startWatcher(t *testing.T, w *Watcher, debounce time.Duration) <-chan reload {
	t.Helper()
	got := make(chan reload, 8)
	w.onChange = func(cfg *Config, changed []string) { got <- reload{cfg, changed} }
	w.debounce = debounce

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(w.Stop)
	return got
}

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
}

func waitReload(t *testing.T, got <-chan reload) reload {
	t.Helper()
	select {
	case r := <-got:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not reload within 5s")
		return reload{}
	}
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.yaml")
	writeFile(t, base, "service_name: before\n")

	w := NewWatcher(dir, nil, zap.NewNop())
	got := startWatcher(t, w, 50*time.Millisecond)
	if w.Current().ServiceName != "before" {
		t.Fatalf("baseline ServiceName = %q, want before", w.Current().ServiceName)
	}

	writeFile(t, base, "service_name: after\n")

	r := waitReload(t, got)
	if r.cfg.ServiceName != "after" {
		t.Errorf("ServiceName = %q, want after", r.cfg.ServiceName)
	}
	if !reflect.DeepEqual(r.changed, []string{"base.yaml"}) {
		t.Errorf("changed = %v, want [base.yaml]", r.changed)
	}
	if w.Current() != r.cfg {
		t.Error("Current does not return the delivered config")
	}
}

func TestWatcherBatchesFilesInOneReload(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "base.yaml"), "service_name: svc\n")

	w := NewWatcher(dir, nil, zap.NewNop())
	got := startWatcher(t, w, time.Second)

	writeFile(t, filepath.Join(dir, "monitor.yaml"), "monitor:\n  cost_time:\n    threshold: 250ms\n")
	writeFile(t, filepath.Join(dir, "base.yaml"), "service_name: svc2\n")

	r := waitReload(t, got)
	if !reflect.DeepEqual(r.changed, []string{"base.yaml", "monitor.yaml"}) {
		t.Errorf("changed = %v, want [base.yaml monitor.yaml]", r.changed)
	}
	if r.cfg.ServiceName != "svc2" || r.cfg.Monitor.CostTime.Threshold != 250*time.Millisecond {
		t.Errorf("merged config = %+v", r.cfg)
	}
}

func TestWatcherSkipsUnchangedConfig(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.yaml")
	writeFile(t, base, "service_name: same\n")

	got := startWatcher(t, NewWatcher(dir, nil, zap.NewNop()), 50*time.Millisecond)

	// Same values, different bytes.
	writeFile(t, base, "# touched\nservice_name: same\n")
	time.Sleep(300 * time.Millisecond)
	writeFile(t, base, "service_name: changed\n")

	r := waitReload(t, got)
	if r.cfg.ServiceName != "changed" {
		t.Errorf("first reload ServiceName = %q, want changed", r.cfg.ServiceName)
	}
	select {
	case extra := <-got:
		t.Errorf("unexpected extra reload: %+v", extra.cfg)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestFileWatcherIgnoresSiblings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "perfhook.yaml")
	writeFile(t, path, "service_name: one\n")

	got := startWatcher(t, NewFileWatcher(path, nil, zap.NewNop()), 50*time.Millisecond)

	writeFile(t, filepath.Join(dir, "other.yaml"), "service_name: other\n")
	time.Sleep(300 * time.Millisecond)
	select {
	case r := <-got:
		t.Fatalf("reload triggered by sibling file: %v", r.changed)
	default:
	}

	// Replace by rename, the way editors save.
	tmp := filepath.Join(dir, ".perfhook.yaml.swp")
	writeFile(t, tmp, "service_name: two\n")
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}

	r := waitReload(t, got)
	if r.cfg.ServiceName != "two" {
		t.Errorf("ServiceName = %q, want two", r.cfg.ServiceName)
	}
	if !reflect.DeepEqual(r.changed, []string{"perfhook.yaml"}) {
		t.Errorf("changed = %v, want [perfhook.yaml]", r.changed)
	}
}

package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleYAML = `
probes:
  interval_sec: 2.0
  timeout_ms: 1500
  max_outstanding: 3
helper:
  path: /usr/local/libexec/ping-helper
  verify_signature: false
hosts:
  - address: 192.0.2.1
    alias: core-router
  - address: 198.51.100.7
run:
  metrics_addr: 127.0.0.1:9815
`

func TestLoad(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "prober.yaml")

	if err := os.WriteFile(path, []byte(sampleYAML), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(ctx, path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Probes.IntervalSec != 2.0 {
		t.Fatalf("unexpected interval: %v", cfg.Probes.IntervalSec)
	}
	if cfg.Interval() != 2*time.Second {
		t.Fatalf("unexpected interval duration: %s", cfg.Interval())
	}
	if cfg.Timeout() != 1500*time.Millisecond {
		t.Fatalf("unexpected timeout duration: %s", cfg.Timeout())
	}
	if cfg.Helper.Path != "/usr/local/libexec/ping-helper" {
		t.Fatalf("unexpected helper path: %s", cfg.Helper.Path)
	}
	if len(cfg.Hosts) != 2 || cfg.Hosts[0].Alias != "core-router" {
		t.Fatalf("unexpected hosts: %#v", cfg.Hosts)
	}
	if cfg.Run.MetricsAddr != "127.0.0.1:9815" {
		t.Fatalf("unexpected metrics addr: %s", cfg.Run.MetricsAddr)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("sample config should validate: %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "prober.yaml")

	if err := os.WriteFile(path, []byte(sampleYAML), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv(envConfigPath, path)

	cfg, err := LoadFromEnv(ctx)
	if err != nil {
		t.Fatalf("LoadFromEnv returned error: %v", err)
	}
	if len(cfg.Hosts) != 2 {
		t.Fatalf("unexpected hosts: %#v", cfg.Hosts)
	}
}

func TestDefaultsApplied(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "prober.yaml")

	minimal := `
helper:
  path: /usr/local/libexec/ping-helper
hosts:
  - address: 192.0.2.1
`
	if err := os.WriteFile(path, []byte(minimal), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(ctx, path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Probes.IntervalSec != 1.0 {
		t.Fatalf("interval default not applied: %v", cfg.Probes.IntervalSec)
	}
	if cfg.Probes.TimeoutMs != 1000 {
		t.Fatalf("timeout default not applied: %v", cfg.Probes.TimeoutMs)
	}
	if cfg.Probes.MaxOutstanding != 3 {
		t.Fatalf("max_outstanding default not applied: %v", cfg.Probes.MaxOutstanding)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("minimal config should validate: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	base := func() Config {
		return Config{
			Probes: ProbeConfig{IntervalSec: 1.0, TimeoutMs: 1000, MaxOutstanding: 3},
			Helper: HelperConfig{Path: "/usr/local/libexec/ping-helper"},
			Hosts:  []HostConfig{{Address: "192.0.2.1"}},
		}
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"interval too small", func(c *Config) { c.Probes.IntervalSec = 0.05 }},
		{"interval too large", func(c *Config) { c.Probes.IntervalSec = 120 }},
		{"timeout too large", func(c *Config) { c.Probes.TimeoutMs = 90000 }},
		{"zero outstanding", func(c *Config) { c.Probes.MaxOutstanding = 0 }},
		{"no hosts", func(c *Config) { c.Hosts = nil }},
		{"blank address", func(c *Config) { c.Hosts[0].Address = "" }},
		{"no helper path", func(c *Config) { c.Helper.Path = "" }},
		{"verify without key", func(c *Config) { c.Helper.VerifySignature = true }},
		{"rate cap exceeded", func(c *Config) {
			c.Hosts = nil
			for i := 0; i < 60; i++ {
				c.Hosts = append(c.Hosts, HostConfig{Address: fmt.Sprintf("192.0.2.%d", i+1)})
			}
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestHostListDeduplicates(t *testing.T) {
	cfg := Config{
		Hosts: []HostConfig{
			{Address: "192.0.2.1", Alias: "first"},
			{Address: "192.0.2.2"},
			{Address: "192.0.2.1", Alias: "dup"},
		},
	}
	hosts := cfg.HostList()
	if len(hosts) != 2 {
		t.Fatalf("expected 2 hosts after dedup, got %d", len(hosts))
	}
	if hosts[0].Alias != "first" {
		t.Fatalf("first occurrence should win: %#v", hosts[0])
	}
	if hosts[0].ID != hosts[0].Address {
		t.Fatalf("address should be the id: %#v", hosts[0])
	}
}

package config

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hostpulsehq/prober/internal/rateguard"
	"github.com/hostpulsehq/prober/pkg/types"
)

const (
	envConfigPath     = "PROBER_CONFIG"
	DefaultConfigPath = "/etc/hostpulse/prober.yaml"

	minIntervalSec = 0.1
	maxIntervalSec = 60.0
	minTimeoutMs   = 1
	maxTimeoutMs   = 60000
)

type Config struct {
	Probes ProbeConfig  `yaml:"probes"`
	Helper HelperConfig `yaml:"helper"`
	Hosts  []HostConfig `yaml:"hosts"`
	Run    RunConfig    `yaml:"run"`
}

type ProbeConfig struct {
	IntervalSec    float64 `yaml:"interval_sec"`
	TimeoutMs      int     `yaml:"timeout_ms"`
	MaxOutstanding int     `yaml:"max_outstanding"`
}

type HelperConfig struct {
	Path            string `yaml:"path"`
	SignaturePath   string `yaml:"signature_path"`
	PublicKey       string `yaml:"public_key"`
	VerifySignature bool   `yaml:"verify_signature"`
}

type HostConfig struct {
	Address string `yaml:"address"`
	Alias   string `yaml:"alias"`
}

type RunConfig struct {
	MetricsAddr string `yaml:"metrics_addr"`
}

func Load(ctx context.Context, path string) (Config, error) {
	var cfg Config

	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return cfg, fmt.Errorf("open config %q: %w", path, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return cfg, fmt.Errorf("read config %q: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %q: %w", path, err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

func LoadFromEnv(ctx context.Context) (Config, error) {
	path := os.Getenv(envConfigPath)
	if path == "" {
		path = DefaultConfigPath
	}
	return Load(ctx, path)
}

func (c *Config) applyDefaults() {
	if c.Probes.IntervalSec == 0 {
		c.Probes.IntervalSec = 1.0
	}
	if c.Probes.TimeoutMs == 0 {
		c.Probes.TimeoutMs = 1000
	}
	if c.Probes.MaxOutstanding == 0 {
		c.Probes.MaxOutstanding = 3
	}
}

// Validate checks field ranges and runs the host count through the global
// rate cap, so a config that would be rejected at session start fails here
// first with the same message.
func (c Config) Validate() error {
	if c.Probes.IntervalSec < minIntervalSec || c.Probes.IntervalSec > maxIntervalSec {
		return fmt.Errorf("probes.interval_sec %.3f out of range [%.1f, %.1f]",
			c.Probes.IntervalSec, minIntervalSec, maxIntervalSec)
	}
	if c.Probes.TimeoutMs < minTimeoutMs || c.Probes.TimeoutMs > maxTimeoutMs {
		return fmt.Errorf("probes.timeout_ms %d out of range [%d, %d]",
			c.Probes.TimeoutMs, minTimeoutMs, maxTimeoutMs)
	}
	if c.Probes.MaxOutstanding < 1 {
		return fmt.Errorf("probes.max_outstanding must be at least 1, got %d", c.Probes.MaxOutstanding)
	}
	if len(c.Hosts) == 0 {
		return fmt.Errorf("hosts list is empty")
	}
	for i, h := range c.Hosts {
		if h.Address == "" {
			return fmt.Errorf("hosts[%d]: address is required", i)
		}
	}
	if c.Helper.Path == "" {
		return fmt.Errorf("helper.path is required")
	}
	if c.Helper.VerifySignature && c.Helper.PublicKey == "" {
		return fmt.Errorf("helper.public_key is required when helper.verify_signature is set")
	}
	if err := rateguard.Validate(len(c.Hosts), c.Interval()); err != nil {
		return err
	}
	return nil
}

func (c Config) Interval() time.Duration {
	return time.Duration(c.Probes.IntervalSec * float64(time.Second))
}

func (c Config) Timeout() time.Duration {
	return time.Duration(c.Probes.TimeoutMs) * time.Millisecond
}

// HostList materializes the configured hosts, deduplicating by address. The
// address doubles as the host id; the alias is display-only.
func (c Config) HostList() []types.Host {
	seen := make(map[string]struct{}, len(c.Hosts))
	hosts := make([]types.Host, 0, len(c.Hosts))
	for _, h := range c.Hosts {
		if _, dup := seen[h.Address]; dup {
			continue
		}
		seen[h.Address] = struct{}{}
		hosts = append(hosts, types.Host{
			ID:      h.Address,
			Address: h.Address,
			Alias:   h.Alias,
		})
	}
	return hosts
}

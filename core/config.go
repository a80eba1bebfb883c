package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultServiceName = "authbridge"
	DefaultAppID       = "com.sikwin.app"

	defaultWaveInterval = 500 * time.Millisecond
)

type TargetConfig struct {
	Name    string `koanf:"name" mapstructure:"name" toml:"name"`
	Action  string `koanf:"action" mapstructure:"action" toml:"action"`
	Payload string `koanf:"payload" mapstructure:"payload" toml:"payload"`
	Literal string `koanf:"literal" mapstructure:"literal" toml:"literal"`
}

type FallbackConfig struct {
	Enabled *bool  `koanf:"enabled" mapstructure:"enabled" toml:"enabled"`
	DelayMS int    `koanf:"delay_ms" mapstructure:"delay_ms" toml:"delay_ms"`
	Name    string `koanf:"name" mapstructure:"name" toml:"name"`
	Action  string `koanf:"action" mapstructure:"action" toml:"action"`
}

// PolicyConfig selects a preset and optionally overrides parts of it.
// DelaysMS wins over Waves/IntervalMS when both are set.
type PolicyConfig struct {
	Preset     string         `koanf:"preset" mapstructure:"preset" toml:"preset"`
	DelaysMS   []int          `koanf:"delays_ms" mapstructure:"delays_ms" toml:"delays_ms"`
	IntervalMS int            `koanf:"interval_ms" mapstructure:"interval_ms" toml:"interval_ms"`
	Waves      int            `koanf:"waves" mapstructure:"waves" toml:"waves"`
	Targets    []TargetConfig `koanf:"targets" mapstructure:"targets" toml:"targets"`
	Fallback   FallbackConfig `koanf:"fallback" mapstructure:"fallback" toml:"fallback"`
}

type Config struct {
	ServiceName        string       `koanf:"service_name" mapstructure:"service_name" toml:"service_name"`
	AppID              string       `koanf:"app_id" mapstructure:"app_id" toml:"app_id"`
	AppPrefsNamespace  string       `koanf:"app_prefs_namespace" mapstructure:"app_prefs_namespace" toml:"app_prefs_namespace"`
	RuntimePrefsSuffix string       `koanf:"runtime_prefs_suffix" mapstructure:"runtime_prefs_suffix" toml:"runtime_prefs_suffix"`
	AsyncStateWrite    bool         `koanf:"async_state_write" mapstructure:"async_state_write" toml:"async_state_write"`
	Policy             PolicyConfig `koanf:"policy" mapstructure:"policy" toml:"policy"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName:        DefaultServiceName,
		AppID:              DefaultAppID,
		AppPrefsNamespace:  DefaultAppPrefsNamespace,
		RuntimePrefsSuffix: DefaultRuntimePrefsSuffix,
		Policy: PolicyConfig{
			Preset: PolicyPresetExhaustive,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if strings.TrimSpace(c.AppID) == "" {
		return fmt.Errorf("core: app_id is required")
	}
	if strings.TrimSpace(c.AppPrefsNamespace) == "" {
		return fmt.Errorf("core: app_prefs_namespace is required")
	}
	if _, err := c.InjectionPolicy(); err != nil {
		return err
	}
	return nil
}

func (c Config) RuntimePrefsNamespace() string {
	return RuntimePrefsNamespace(c.AppID, c.RuntimePrefsSuffix)
}

// InjectionPolicy resolves the configured preset and overrides into a
// validated policy.
func (c Config) InjectionPolicy() (InjectionPolicy, error) {
	return c.Policy.Resolve()
}

func (p PolicyConfig) Resolve() (InjectionPolicy, error) {
	policy, err := PolicyPreset(p.Preset)
	if err != nil {
		return InjectionPolicy{}, err
	}

	switch {
	case len(p.DelaysMS) > 0:
		delays := make([]time.Duration, 0, len(p.DelaysMS))
		for _, ms := range p.DelaysMS {
			delays = append(delays, time.Duration(ms)*time.Millisecond)
		}
		policy.Delays = delays
	case p.Waves > 0:
		interval := defaultWaveInterval
		if p.IntervalMS > 0 {
			interval = time.Duration(p.IntervalMS) * time.Millisecond
		}
		policy.Delays = LinearDelays(p.Waves, interval)
	case p.IntervalMS > 0:
		policy.Delays = LinearDelays(len(policy.Delays), time.Duration(p.IntervalMS)*time.Millisecond)
	}

	if len(p.Targets) > 0 {
		targets := make([]InjectionTarget, 0, len(p.Targets))
		for _, cfg := range p.Targets {
			encoding, parseErr := ParsePayloadEncoding(cfg.Payload)
			if parseErr != nil {
				return InjectionPolicy{}, parseErr
			}
			targets = append(targets, InjectionTarget{
				Name:    strings.TrimSpace(cfg.Name),
				Action:  strings.TrimSpace(cfg.Action),
				Payload: encoding,
				Literal: cfg.Literal,
			})
		}
		policy.Targets = targets
	}

	if p.Fallback.Enabled != nil {
		policy.Fallback.Enabled = *p.Fallback.Enabled
	}
	if p.Fallback.DelayMS > 0 {
		policy.Fallback.Delay = time.Duration(p.Fallback.DelayMS) * time.Millisecond
	}
	if name := strings.TrimSpace(p.Fallback.Name); name != "" {
		policy.Fallback.Target.Name = name
	}
	if action := strings.TrimSpace(p.Fallback.Action); action != "" {
		policy.Fallback.Target.Action = action
	}

	if err := policy.Validate(); err != nil {
		return InjectionPolicy{}, err
	}
	return policy, nil
}

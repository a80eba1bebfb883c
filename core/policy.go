package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	PolicyPresetExhaustive   = "exhaustive"
	PolicyPresetConservative = "conservative"

	defaultFallbackDelay = 1500 * time.Millisecond
)

// InjectionPolicy is the retry timeline for one session: one wave per entry in
// Delays, each wave sending to every target.
type InjectionPolicy struct {
	Delays   []time.Duration
	Encoding PayloadEncoding
	Targets  []InjectionTarget
	Fallback FallbackPolicy
}

// FallbackPolicy drives the runtime UI to its logged-out presentation when no
// usable credential exists.
type FallbackPolicy struct {
	Enabled bool
	Delay   time.Duration
	Target  InjectionTarget
}

func (p InjectionPolicy) Validate() error {
	if len(p.Delays) == 0 {
		return fmt.Errorf("core: injection policy requires at least one wave delay")
	}
	if len(p.Targets) == 0 {
		return fmt.Errorf("core: injection policy requires at least one target")
	}
	var previous time.Duration
	for i, delay := range p.Delays {
		if delay < 0 {
			return fmt.Errorf("core: wave delay %d must be >= 0", i)
		}
		if i > 0 && delay <= previous {
			return fmt.Errorf("core: wave delays must be strictly increasing (index %d)", i)
		}
		previous = delay
	}
	if _, err := ParsePayloadEncoding(string(p.Encoding)); err != nil {
		return err
	}
	for _, target := range p.Targets {
		if err := target.Validate(); err != nil {
			return err
		}
	}
	if p.Fallback.Enabled {
		if p.Fallback.Delay < 0 {
			return fmt.Errorf("core: fallback delay must be >= 0")
		}
		if err := p.Fallback.Target.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Waves expands the policy into the ordered wave plan for a usable bundle.
func (p InjectionPolicy) Waves() []Wave {
	encoding := p.Encoding
	if encoding == PayloadDefault {
		encoding = PayloadJSONBundle
	}
	waves := make([]Wave, 0, len(p.Delays))
	for i, delay := range p.Delays {
		waves = append(waves, Wave{
			Index:    i,
			Delay:    delay,
			Encoding: encoding,
		})
	}
	return waves
}

func (p InjectionPolicy) degradedWave() Wave {
	delay := p.Fallback.Delay
	if delay <= 0 {
		delay = defaultFallbackDelay
	}
	return Wave{
		Index:    0,
		Delay:    delay,
		Encoding: PayloadEmpty,
		Degraded: true,
	}
}

func (p InjectionPolicy) clone() InjectionPolicy {
	out := p
	out.Delays = append([]time.Duration(nil), p.Delays...)
	out.Targets = append([]InjectionTarget(nil), p.Targets...)
	return out
}

// LinearDelays returns count delays starting at zero, step apart.
func LinearDelays(count int, step time.Duration) []time.Duration {
	if count <= 0 {
		return nil
	}
	if step <= 0 {
		step = time.Millisecond
	}
	delays := make([]time.Duration, 0, count)
	for i := 0; i < count; i++ {
		delays = append(delays, time.Duration(i)*step)
	}
	return delays
}

func DefaultFallbackPolicy() FallbackPolicy {
	return FallbackPolicy{
		Enabled: true,
		Delay:   defaultFallbackDelay,
		Target: InjectionTarget{
			Name:    "UIManager",
			Action:  "ShowLoginPanel",
			Payload: PayloadEmpty,
		},
	}
}

// ExhaustivePolicy reproduces the dense variant: 30 waves, 500ms apart, to
// every object the runtime build was known to expose.
func ExhaustivePolicy() InjectionPolicy {
	return InjectionPolicy{
		Delays:   LinearDelays(30, 500*time.Millisecond),
		Encoding: PayloadJSONBundle,
		Targets: []InjectionTarget{
			{Name: "GameManager", Action: "SetAccessAndRefreshTokens"},
			{Name: "GameManager", Action: "Login"},
			{Name: "GameManager", Action: "SetToken", Payload: PayloadRawToken},
			{Name: "GameManager", Action: "ReceiveToken", Payload: PayloadRawToken},

			{Name: "LoginUIManager", Action: "SetAccessAndRefreshTokens"},
			{Name: "LoginUIManager", Action: "LoginUser", Payload: PayloadUsername},
			{Name: "LoginUIManager", Action: "OnLoginSuccess"},
			{Name: "LoginUIManager", Action: "AutoLoginIfPossible", Payload: PayloadEmpty},

			{Name: "UIManager", Action: "ShowPanel", Payload: PayloadLiteral, Literal: "3"},
			{Name: "UIManager", Action: "ShowPanel", Payload: PayloadLiteral, Literal: "Gameplay"},
			{Name: "UIManager", Action: "AutoLoginIfPossible", Payload: PayloadEmpty},
			{Name: "UIManager", Action: "SetAccessAndRefreshTokens"},
			{Name: "UIManager", Action: "OnLoginSuccess"},

			{Name: "Bridge", Action: "SetToken", Payload: PayloadRawToken},
			{Name: "GameplayUIManager", Action: "SetAccessAndRefreshTokens"},
		},
		Fallback: DefaultFallbackPolicy(),
	}
}

// ConservativePolicy reproduces the sparse variant: four widely spaced waves
// to a reduced target set.
func ConservativePolicy() InjectionPolicy {
	return InjectionPolicy{
		Delays: []time.Duration{
			time.Second,
			3 * time.Second,
			6 * time.Second,
			10 * time.Second,
		},
		Encoding: PayloadJSONBundle,
		Targets: []InjectionTarget{
			{Name: "GameManager", Action: "SetAccessAndRefreshTokens"},
			{Name: "LoginUIManager", Action: "SetAccessAndRefreshTokens"},
			{Name: "UIManager", Action: "SetAccessAndRefreshTokens"},
			{Name: "Bridge", Action: "SetToken", Payload: PayloadRawToken},
		},
		Fallback: DefaultFallbackPolicy(),
	}
}

func PolicyPreset(name string) (InjectionPolicy, error) {
	switch strings.TrimSpace(strings.ToLower(name)) {
	case "", PolicyPresetExhaustive:
		return ExhaustivePolicy(), nil
	case PolicyPresetConservative:
		return ConservativePolicy(), nil
	}
	return InjectionPolicy{}, fmt.Errorf("core: invalid policy preset %q", name)
}

package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidPayloadEncoding = errors.New("core: invalid payload encoding")
	ErrInvalidTarget          = errors.New("core: invalid injection target")
	ErrSessionNotFound        = errors.New("core: injection session not found")
)

type CredentialBundle struct {
	Token        string
	RefreshToken string
	Username     string
	UserID       string
	Password     string
}

// Usable reports whether the bundle carries a token. Every other field is
// optional.
func (b CredentialBundle) Usable() bool {
	return strings.TrimSpace(b.Token) != ""
}

func (b CredentialBundle) redactedFields() map[string]any {
	return map[string]any{
		"username": strings.TrimSpace(b.Username),
		"user_id":  strings.TrimSpace(b.UserID),
		"usable":   b.Usable(),
	}
}

type PayloadEncoding string

const (
	PayloadDefault    PayloadEncoding = ""
	PayloadRawToken   PayloadEncoding = "raw_token"
	PayloadJSONBundle PayloadEncoding = "json_bundle"
	PayloadEmpty      PayloadEncoding = "empty"
	PayloadUsername   PayloadEncoding = "username"
	PayloadLiteral    PayloadEncoding = "literal"
)

func ParsePayloadEncoding(raw string) (PayloadEncoding, error) {
	value := PayloadEncoding(strings.TrimSpace(strings.ToLower(raw)))
	switch value {
	case PayloadDefault, PayloadRawToken, PayloadJSONBundle, PayloadEmpty, PayloadUsername, PayloadLiteral:
		return value, nil
	case "raw", "token":
		return PayloadRawToken, nil
	case "json":
		return PayloadJSONBundle, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPayloadEncoding, raw)
}

// InjectionTarget names one (object, message) pair in the runtime namespace.
// Payload overrides the wave encoding for this target when set.
type InjectionTarget struct {
	Name    string
	Action  string
	Payload PayloadEncoding
	Literal string
}

func (t InjectionTarget) Validate() error {
	if strings.TrimSpace(t.Name) == "" || strings.TrimSpace(t.Action) == "" {
		return fmt.Errorf("%w: name and action are required", ErrInvalidTarget)
	}
	if _, err := ParsePayloadEncoding(string(t.Payload)); err != nil {
		return err
	}
	return nil
}

func (t InjectionTarget) String() string {
	return t.Name + "." + t.Action
}

type Wave struct {
	Index    int
	Delay    time.Duration
	Encoding PayloadEncoding
	Degraded bool
}

type SessionHandle string

func (h SessionHandle) String() string {
	return string(h)
}

type SessionSnapshot struct {
	ID           SessionHandle
	Degraded     bool
	Cancelled    bool
	Planned      int
	WavesFired   int
	WavesSkipped int
	Sends        int
	SendFailures int
	StartedAt    time.Time
}

// Done reports whether no wave of the session can send anymore.
func (s SessionSnapshot) Done() bool {
	return s.Cancelled || s.WavesFired+s.WavesSkipped >= s.Planned
}

// ViewRef identifies the host view that owns an injection session.
type ViewRef struct {
	ID string
}

func (v ViewRef) key() string {
	id := strings.TrimSpace(v.ID)
	if id == "" {
		return "default"
	}
	return id
}

// LaunchPayload is the key/value extras delivered with one host activation.
type LaunchPayload map[string]string

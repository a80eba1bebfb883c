package query

import (
	"strings"

	"github.com/goliatone/go-authbridge/core"
)

const (
	TypeSessionStatus = "authbridge.query.session.status"
	TypeListSessions  = "authbridge.query.session.list"
	TypeRuntimeState  = "authbridge.query.runtime_state.load"
)

type SessionStatusMessage struct {
	View core.ViewRef
}

func (SessionStatusMessage) Type() string { return TypeSessionStatus }

func (m SessionStatusMessage) Validate() error {
	if m.View.ID != "" && strings.TrimSpace(m.View.ID) == "" {
		return core.InvalidField("query", "view.id", "view id must not be blank")
	}
	return nil
}

type ListSessionsMessage struct {
	// ActiveOnly drops sessions that are cancelled or have resolved every wave.
	ActiveOnly bool
}

func (ListSessionsMessage) Type() string { return TypeListSessions }

func (ListSessionsMessage) Validate() error { return nil }

type RuntimeStateMessage struct{}

func (RuntimeStateMessage) Type() string { return TypeRuntimeState }

func (RuntimeStateMessage) Validate() error { return nil }

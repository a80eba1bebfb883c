package command

import (
	"strings"

	"github.com/goliatone/go-authbridge/core"
)

const (
	TypeViewVisible     = "authbridge.command.view.visible"
	TypeViewTerminated  = "authbridge.command.view.terminated"
	TypeLaunchActivated = "authbridge.command.launch.activated"
)

type ViewVisibleMessage struct {
	View core.ViewRef
}

func (ViewVisibleMessage) Type() string { return TypeViewVisible }

func (m ViewVisibleMessage) Validate() error {
	return validateView(m.View)
}

type ViewTerminatedMessage struct {
	View   core.ViewRef
	Reason string
}

func (ViewTerminatedMessage) Type() string { return TypeViewTerminated }

func (m ViewTerminatedMessage) Validate() error {
	return validateView(m.View)
}

// LaunchActivatedMessage carries the key/value extras delivered with an
// activation. An empty payload is valid and still arms the slot.
type LaunchActivatedMessage struct {
	Payload core.LaunchPayload
}

func (LaunchActivatedMessage) Type() string { return TypeLaunchActivated }

func (m LaunchActivatedMessage) Validate() error {
	for key := range m.Payload {
		if strings.TrimSpace(key) == "" {
			return core.InvalidField("command", "payload", "launch payload keys must not be blank")
		}
	}
	return nil
}

func validateView(view core.ViewRef) error {
	if view.ID != "" && strings.TrimSpace(view.ID) == "" {
		return core.InvalidField("command", "view.id", "view id must not be blank")
	}
	return nil
}

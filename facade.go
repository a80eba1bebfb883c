package authbridge

import (
	"fmt"

	bridgecommand "github.com/goliatone/go-authbridge/command"
	bridgequery "github.com/goliatone/go-authbridge/query"
)

// CommandQueryService is what the facade needs from a service. *Service
// satisfies it.
type CommandQueryService interface {
	bridgecommand.LifecycleService
	bridgequery.SessionReader
	bridgequery.RuntimeStateReader
}

type Commands struct {
	ViewVisible     *bridgecommand.ViewVisibleCommand
	ViewTerminated  *bridgecommand.ViewTerminatedCommand
	LaunchActivated *bridgecommand.LaunchActivatedCommand
}

type Queries struct {
	SessionStatus *bridgequery.SessionStatusQuery
	ListSessions  *bridgequery.ListSessionsQuery
	RuntimeState  *bridgequery.RuntimeStateQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

func NewFacade(service CommandQueryService) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("authbridge: command/query service is required")
	}
	return &Facade{
		service: service,
		commands: Commands{
			ViewVisible:     bridgecommand.NewViewVisibleCommand(service),
			ViewTerminated:  bridgecommand.NewViewTerminatedCommand(service),
			LaunchActivated: bridgecommand.NewLaunchActivatedCommand(service),
		},
		queries: Queries{
			SessionStatus: bridgequery.NewSessionStatusQuery(service),
			ListSessions:  bridgequery.NewListSessionsQuery(service),
			RuntimeState:  bridgequery.NewRuntimeStateQuery(service),
		},
	}, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}

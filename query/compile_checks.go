package query

import (
	"github.com/goliatone/go-authbridge/core"
	gocmd "github.com/goliatone/go-command"
)

var (
	_ gocmd.Querier[SessionStatusMessage, core.SessionSnapshot]  = (*SessionStatusQuery)(nil)
	_ gocmd.Querier[ListSessionsMessage, []core.SessionSnapshot] = (*ListSessionsQuery)(nil)
	_ gocmd.Querier[RuntimeStateMessage, RuntimeStateView]       = (*RuntimeStateQuery)(nil)
)

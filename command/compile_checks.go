package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[ViewVisibleMessage]     = (*ViewVisibleCommand)(nil)
	_ gocmd.Commander[ViewTerminatedMessage]  = (*ViewTerminatedCommand)(nil)
	_ gocmd.Commander[LaunchActivatedMessage] = (*LaunchActivatedCommand)(nil)
)

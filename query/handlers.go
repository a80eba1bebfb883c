package query

import (
	"context"

	"github.com/goliatone/go-authbridge/core"
)

type SessionReader interface {
	SessionStatus(ctx context.Context, view core.ViewRef) (core.SessionSnapshot, error)
	Sessions(ctx context.Context) []core.SessionSnapshot
}

type RuntimeStateReader interface {
	RuntimeState(ctx context.Context) (core.CredentialBundle, error)
}

// RuntimeStateView is the redacted form of the runtime settings: secrets are
// reported by presence only.
type RuntimeStateView struct {
	HasToken        bool
	HasRefreshToken bool
	HasPassword     bool
	Username        string
	UserID          string
}

type SessionStatusQuery struct {
	reader SessionReader
}

func NewSessionStatusQuery(reader SessionReader) *SessionStatusQuery {
	return &SessionStatusQuery{reader: reader}
}

func (q *SessionStatusQuery) Query(ctx context.Context, msg SessionStatusMessage) (core.SessionSnapshot, error) {
	if q == nil || q.reader == nil {
		return core.SessionSnapshot{}, core.MissingDependency("query: session reader is required")
	}
	if err := msg.Validate(); err != nil {
		return core.SessionSnapshot{}, err
	}
	return q.reader.SessionStatus(ctx, msg.View)
}

type ListSessionsQuery struct {
	reader SessionReader
}

func NewListSessionsQuery(reader SessionReader) *ListSessionsQuery {
	return &ListSessionsQuery{reader: reader}
}

func (q *ListSessionsQuery) Query(ctx context.Context, msg ListSessionsMessage) ([]core.SessionSnapshot, error) {
	if q == nil || q.reader == nil {
		return nil, core.MissingDependency("query: session reader is required")
	}
	sessions := q.reader.Sessions(ctx)
	if !msg.ActiveOnly {
		return sessions, nil
	}
	active := make([]core.SessionSnapshot, 0, len(sessions))
	for _, session := range sessions {
		if session.Done() {
			continue
		}
		active = append(active, session)
	}
	return active, nil
}

type RuntimeStateQuery struct {
	reader RuntimeStateReader
}

func NewRuntimeStateQuery(reader RuntimeStateReader) *RuntimeStateQuery {
	return &RuntimeStateQuery{reader: reader}
}

func (q *RuntimeStateQuery) Query(ctx context.Context, _ RuntimeStateMessage) (RuntimeStateView, error) {
	if q == nil || q.reader == nil {
		return RuntimeStateView{}, core.MissingDependency("query: runtime state reader is required")
	}
	bundle, err := q.reader.RuntimeState(ctx)
	if err != nil {
		return RuntimeStateView{}, err
	}
	return RuntimeStateView{
		HasToken:        bundle.Token != "",
		HasRefreshToken: bundle.RefreshToken != "",
		HasPassword:     bundle.Password != "",
		Username:        bundle.Username,
		UserID:          bundle.UserID,
	}, nil
}

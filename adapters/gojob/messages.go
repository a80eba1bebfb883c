package gojob

import (
	"maps"
	"strings"

	"github.com/goliatone/go-authbridge/core"
	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
)

// ToExecutionMessage converts a bridge job message for go-job. Parameters
// are copied so the queue never aliases the caller's map.
func ToExecutionMessage(msg *core.JobExecutionMessage) *job.ExecutionMessage {
	if msg == nil {
		return nil
	}
	out := &job.ExecutionMessage{
		JobID:          strings.TrimSpace(msg.JobID),
		ScriptPath:     strings.TrimSpace(msg.ScriptPath),
		IdempotencyKey: strings.TrimSpace(msg.IdempotencyKey),
		DedupPolicy:    job.DeduplicationPolicy(strings.TrimSpace(msg.DedupPolicy)),
	}
	out.Parameters = cloneParams(msg.Parameters)
	return out
}

func FromExecutionMessage(msg *job.ExecutionMessage) *core.JobExecutionMessage {
	if msg == nil {
		return nil
	}
	out := &core.JobExecutionMessage{
		JobID:          strings.TrimSpace(msg.JobID),
		ScriptPath:     strings.TrimSpace(msg.ScriptPath),
		IdempotencyKey: strings.TrimSpace(msg.IdempotencyKey),
		DedupPolicy:    strings.TrimSpace(string(msg.DedupPolicy)),
	}
	out.Parameters = cloneParams(msg.Parameters)
	return out
}

func ToNackOptions(opts core.JobNackOptions) queue.NackOptions {
	var out queue.NackOptions
	out.Delay = opts.Delay
	out.Requeue = opts.Requeue
	out.DeadLetter = opts.DeadLetter
	out.Reason = opts.Reason
	return out
}

func cloneParams(in map[string]any) map[string]any {
	if in == nil {
		return map[string]any{}
	}
	return maps.Clone(in)
}

package gojob

import (
	"strings"
	"time"

	"github.com/goliatone/go-authbridge/core"
)

// JobIDStateWrite is the go-job id of a runtime state write.
const JobIDStateWrite = core.JobIDStateWrite

// RetryPolicy bounds how failed state writes go back onto the queue.
type RetryPolicy struct {
	MaxAttempts     int
	MaxDelay        time.Duration
	DeadLetterOnMax bool
}

// DefaultStateWriteRetryPolicy allows three tries with delays capped at five
// seconds, then dead-letters the write.
func DefaultStateWriteRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, MaxDelay: 5 * time.Second, DeadLetterOnMax: true}
}

// Bound clamps a nack to the policy. attempt is 1-based; 0 means unknown and
// skips the attempt ceiling. A nack always either requeues or dead-letters.
func (p RetryPolicy) Bound(opts core.JobNackOptions, attempt int) core.JobNackOptions {
	opts.Reason = strings.TrimSpace(opts.Reason)
	opts.Delay = max(opts.Delay, 0)
	if p.MaxDelay > 0 {
		opts.Delay = min(opts.Delay, p.MaxDelay)
	}

	exhausted := p.MaxAttempts > 0 && attempt >= p.MaxAttempts
	switch {
	case opts.DeadLetter:
		opts.Requeue = false
	case exhausted && p.DeadLetterOnMax:
		opts.Requeue, opts.DeadLetter = false, true
	case exhausted:
		opts.Requeue = false
	}
	if !opts.Requeue && !opts.DeadLetter {
		opts.Requeue = true
	}
	return opts
}

// WorkerConfig derives the state write worker settings from the policy.
func (p RetryPolicy) WorkerConfig() core.StateWriteWorkerConfig {
	cfg := core.DefaultStateWriteWorkerConfig()
	if p.MaxAttempts > 0 {
		cfg.MaxAttempts = p.MaxAttempts
	}
	if p.MaxDelay > 0 {
		cfg.MaxBackoff = p.MaxDelay
		cfg.RetryBackoff = min(cfg.RetryBackoff, p.MaxDelay)
	}
	return cfg
}

package core

import (
	"context"
	"sort"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

const (
	MetricSessionStarted  = "authbridge.session.started"
	MetricSessionAborted  = "authbridge.session.aborted"
	MetricSessionCanceled = "authbridge.session.cancelled"
	MetricWaveFired       = "authbridge.wave.fired"
	MetricWaveSkipped     = "authbridge.wave.skipped"
	MetricWaveSends       = "authbridge.wave.sends"
	MetricSendTotal       = "authbridge.send.total"
	MetricSendFailed      = "authbridge.send.failed"
	MetricStateWrite      = "authbridge.state.write"
)

// telemetry bundles the logger and metrics recorder shared by the bridge
// components. The zero value is usable and discards everything.
type telemetry struct {
	logger  Logger
	metrics MetricsRecorder
}

func newTelemetry(logger Logger, metrics MetricsRecorder) telemetry {
	if metrics == nil {
		metrics = NopMetricsRecorder{}
	}
	return telemetry{
		logger:  glog.Ensure(logger),
		metrics: metrics,
	}
}

func (t telemetry) debug(ctx context.Context, message string, fields map[string]any) {
	t.logWithLevel(ctx, "debug", message, fields)
}

func (t telemetry) info(ctx context.Context, message string, fields map[string]any) {
	t.logWithLevel(ctx, "info", message, fields)
}

func (t telemetry) warn(ctx context.Context, message string, fields map[string]any) {
	t.logWithLevel(ctx, "warn", message, fields)
}

func (t telemetry) error(ctx context.Context, message string, fields map[string]any) {
	t.logWithLevel(ctx, "error", message, fields)
}

func (t telemetry) logWithLevel(ctx context.Context, level string, message string, fields map[string]any) {
	if t.logger == nil {
		return
	}
	logger := t.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	safe := RedactSensitiveMap(fields)
	if fieldsLogger, ok := logger.(FieldsLogger); ok {
		logger = fieldsLogger.WithFields(cloneFields(safe))
	}
	args := flattenFields(safe)
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "error":
		logger.Error(message, args...)
	case "warn":
		logger.Warn(message, args...)
	case "debug":
		logger.Debug(message, args...)
	default:
		logger.Info(message, args...)
	}
}

func (t telemetry) count(ctx context.Context, name string, value int64, tags map[string]string) {
	if t.metrics == nil {
		return
	}
	t.metrics.IncCounter(ctx, strings.TrimSpace(name), value, cloneTags(tags))
}

func (t telemetry) observe(ctx context.Context, name string, value float64, tags map[string]string) {
	if t.metrics == nil {
		return
	}
	t.metrics.ObserveHistogram(ctx, strings.TrimSpace(name), value, cloneTags(tags))
}

// errorFields flattens a rich error into log fields. Metadata is redacted by
// the logging path like any other field.
func errorFields(err error) map[string]any {
	if err == nil {
		return map[string]any{}
	}
	fields := map[string]any{"error": err.Error()}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return fields
	}
	fields["error_category"] = richErr.Category.String()
	if code := strings.TrimSpace(richErr.TextCode); code != "" {
		fields["error_text_code"] = code
	}
	fields["error_severity"] = richErr.Severity.String()
	if len(richErr.Metadata) > 0 {
		fields["error_metadata"] = cloneFields(richErr.Metadata)
		for _, key := range []string{"trace_id", "request_id"} {
			if value, ok := richErr.Metadata[key]; ok {
				fields[key] = value
			}
		}
	}
	if requestID := strings.TrimSpace(richErr.RequestID); requestID != "" {
		fields["request_id"] = requestID
	}
	return fields
}

func cloneFields(fields map[string]any) map[string]any {
	if len(fields) == 0 {
		return map[string]any{}
	}
	copied := make(map[string]any, len(fields))
	for key, value := range fields {
		copied[key] = value
	}
	return copied
}

func mergeFields(base map[string]any, extra map[string]any) map[string]any {
	out := cloneFields(base)
	for key, value := range extra {
		out[key] = value
	}
	return out
}

func flattenFields(fields map[string]any) []any {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	args := make([]any, 0, len(keys)*2)
	for _, key := range keys {
		args = append(args, key, fields[key])
	}
	return args
}

type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

func cloneTags(tags map[string]string) map[string]string {
	copied := make(map[string]string, len(tags))
	for key, value := range tags {
		copied[key] = value
	}
	return copied
}

var _ MetricsRecorder = NopMetricsRecorder{}

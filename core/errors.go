package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	BridgeErrorBadInput        = "AUTHBRIDGE_BAD_INPUT"
	BridgeErrorEncodingFailure = "AUTHBRIDGE_ENCODING_FAILURE"
	BridgeErrorStorageFailure  = "AUTHBRIDGE_STORAGE_FAILURE"
	BridgeErrorSinkFailure     = "AUTHBRIDGE_SINK_FAILURE"
	BridgeErrorSessionNotFound = "AUTHBRIDGE_SESSION_NOT_FOUND"
	BridgeErrorInternal        = "AUTHBRIDGE_INTERNAL_ERROR"
)

func bridgeErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureBridgeErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "session not found"):
		return newBridgeError(err.Error(), goerrors.CategoryNotFound, BridgeErrorSessionNotFound)
	case strings.Contains(msg, "encode"):
		return newBridgeError(err.Error(), goerrors.CategoryInternal, BridgeErrorEncodingFailure)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "must be"):
		return newBridgeError(err.Error(), goerrors.CategoryBadInput, BridgeErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureBridgeErrorEnvelope(mapped)
}

func newBridgeError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureBridgeErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func wrapBridgeError(source error, category goerrors.Category, textCode string, message string) *goerrors.Error {
	if source == nil {
		return newBridgeError(message, category, textCode)
	}
	return ensureBridgeErrorEnvelope(
		goerrors.Wrap(source, category, message).
			WithTextCode(textCode),
	)
}

// EncodingFailure aborts the injection session it occurred in.
func EncodingFailure(source error) *goerrors.Error {
	return wrapBridgeError(source, goerrors.CategoryInternal, BridgeErrorEncodingFailure, "core: encode injection payload failed")
}

// StorageFailure is logged and degrades to "absent" for reads.
func StorageFailure(source error, namespace string) *goerrors.Error {
	return wrapBridgeError(source, goerrors.CategoryExternal, BridgeErrorStorageFailure, "core: preference storage failed").
		WithMetadata(map[string]any{"namespace": namespace})
}

// SinkFailure is isolated to the single send that produced it.
func SinkFailure(source error, target InjectionTarget) *goerrors.Error {
	return wrapBridgeError(source, goerrors.CategoryExternal, BridgeErrorSinkFailure, "core: message sink send failed").
		WithMetadata(map[string]any{"target": target.Name, "action": target.Action})
}

func IsBridgeError(err error, textCode string) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(richErr.TextCode), textCode)
}

func ensureBridgeErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = bridgeHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultBridgeTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultBridgeTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return BridgeErrorBadInput
	case goerrors.CategoryNotFound:
		return BridgeErrorSessionNotFound
	case goerrors.CategoryExternal:
		return BridgeErrorStorageFailure
	default:
		return BridgeErrorInternal
	}
}

func bridgeHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// MissingDependency reports a nil collaborator behind a command or query
// handler.
func MissingDependency(message string) *goerrors.Error {
	return newBridgeError(message, goerrors.CategoryInternal, BridgeErrorInternal)
}

// InvalidField reports one rejected message field. scope prefixes the
// summary, as in "command: validation failed".
func InvalidField(scope string, field string, message string) *goerrors.Error {
	return ensureBridgeErrorEnvelope(
		goerrors.NewValidation(scope+": validation failed", goerrors.FieldError{Field: field, Message: message}).
			WithTextCode(BridgeErrorBadInput).
			WithSeverity(goerrors.SeverityError),
	)
}

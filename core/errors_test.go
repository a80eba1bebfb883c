package core

import (
	stderrors "errors"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestBridgeErrorMapper_AssignsStableCodes(t *testing.T) {
	mapped := bridgeErrorMapper(stderrors.New("core: message sink is required"))
	if mapped.TextCode != BridgeErrorBadInput {
		t.Fatalf("expected bad input text code, got %q", mapped.TextCode)
	}
	if mapped.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", mapped.Code)
	}

	mapped = bridgeErrorMapper(ErrSessionNotFound)
	if mapped.TextCode != BridgeErrorSessionNotFound || mapped.Category != goerrors.CategoryNotFound {
		t.Fatalf("expected session not found mapping, got %q %q", mapped.TextCode, mapped.Category)
	}

	mapped = bridgeErrorMapper(stderrors.New("core: encode credential payload: bad value"))
	if mapped.TextCode != BridgeErrorEncodingFailure {
		t.Fatalf("expected encoding failure text code, got %q", mapped.TextCode)
	}

	if bridgeErrorMapper(nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
}

func TestBridgeErrorMapper_PreservesRichErrors(t *testing.T) {
	rich := goerrors.New("sink gone", goerrors.CategoryExternal).WithTextCode(BridgeErrorSinkFailure)
	mapped := bridgeErrorMapper(rich)
	if mapped.TextCode != BridgeErrorSinkFailure {
		t.Fatalf("expected rich text code preserved, got %q", mapped.TextCode)
	}
	if mapped.Code != http.StatusBadGateway {
		t.Fatalf("expected envelope status 502, got %d", mapped.Code)
	}
}

func TestBridgeFailureConstructors(t *testing.T) {
	cause := stderrors.New("disk full")

	storage := StorageFailure(cause, "gunduata_prefs")
	if !IsBridgeError(storage, BridgeErrorStorageFailure) {
		t.Fatalf("expected storage failure code, got %v", storage)
	}
	if storage.Metadata["namespace"] != "gunduata_prefs" {
		t.Fatalf("expected namespace metadata, got %#v", storage.Metadata)
	}
	if !stderrors.Is(storage, cause) {
		t.Fatalf("expected storage failure to wrap its cause")
	}

	sink := SinkFailure(cause, InjectionTarget{Name: "GameManager", Action: "Login"})
	if !IsBridgeError(sink, BridgeErrorSinkFailure) {
		t.Fatalf("expected sink failure code, got %v", sink)
	}
	if sink.Metadata["target"] != "GameManager" || sink.Metadata["action"] != "Login" {
		t.Fatalf("expected target metadata, got %#v", sink.Metadata)
	}

	encoding := EncodingFailure(nil)
	if encoding == nil || !IsBridgeError(encoding, BridgeErrorEncodingFailure) {
		t.Fatalf("expected encoding failure even without a cause, got %v", encoding)
	}
	if IsBridgeError(cause, BridgeErrorStorageFailure) {
		t.Fatalf("expected plain error not to match a bridge code")
	}
}

func TestHandlerErrorConstructors(t *testing.T) {
	missing := MissingDependency("command: lifecycle service is required")
	if missing.Category != goerrors.CategoryInternal || missing.Code != http.StatusInternalServerError {
		t.Fatalf("unexpected dependency envelope %q %d", missing.Category, missing.Code)
	}

	invalid := InvalidField("query", "view.id", "view id must not be blank")
	if invalid.Category != goerrors.CategoryValidation || invalid.TextCode != BridgeErrorBadInput {
		t.Fatalf("unexpected validation envelope %q %q", invalid.Category, invalid.TextCode)
	}
	if invalid.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", invalid.Code)
	}
	fields := invalid.AllValidationErrors()
	if len(fields) != 1 || fields[0].Field != "view.id" {
		t.Fatalf("unexpected field errors %#v", fields)
	}
}

package command

import (
	"context"
	"testing"

	"github.com/goliatone/go-authbridge/core"
	goerrors "github.com/goliatone/go-errors"
)

func TestViewTerminatedMessage_ValidateReturnsRichError(t *testing.T) {
	err := (ViewTerminatedMessage{View: core.ViewRef{ID: "   "}}).Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryValidation {
		t.Fatalf("expected validation category, got %q", rich.Category)
	}
	if rich.TextCode != core.BridgeErrorBadInput {
		t.Fatalf("expected %q text code, got %q", core.BridgeErrorBadInput, rich.TextCode)
	}
}

func TestViewVisibleCommand_NilServiceReturnsRichError(t *testing.T) {
	var cmd *ViewVisibleCommand
	err := cmd.Execute(context.Background(), ViewVisibleMessage{})
	if err == nil {
		t.Fatalf("expected command dependency error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal category, got %q", rich.Category)
	}
}

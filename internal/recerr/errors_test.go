package recerr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestError_MessageFormat(t *testing.T) {
	plain := New(KindNotFound, "track missing")
	if got, want := plain.Error(), "not_found: track missing"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	wrapped := Wrap(KindStore, "query tracks", errors.New("connection refused"))
	if got, want := wrapped.Error(), "store_error: query tracks: connection refused"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestWrap_UnwrapChain(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(KindPipeline, "compose", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is should reach the wrapped cause")
	}

	// A further fmt.Errorf layer must not hide the kind.
	outer := fmt.Errorf("handler: %w", err)
	var e *Error
	if !errors.As(outer, &e) {
		t.Fatal("errors.As should find *Error through the wrap chain")
	}
	if e.Kind != KindPipeline {
		t.Errorf("Kind = %q, want %q", e.Kind, KindPipeline)
	}
}

func TestValidationf(t *testing.T) {
	err := Validationf("limit %d out of range", 99)
	if err.Kind != KindValidation {
		t.Errorf("Kind = %q, want %q", err.Kind, KindValidation)
	}
	if got, want := err.Msg, "limit 99 out of range"; got != want {
		t.Errorf("Msg = %q, want %q", got, want)
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"direct", New(KindUnauthorized, "no identity"), KindUnauthorized},
		{"wrapped once", fmt.Errorf("api: %w", New(KindValidation, "bad limit")), KindValidation},
		{"deadline", context.DeadlineExceeded, KindTimeout},
		{"wrapped deadline", fmt.Errorf("store: %w", context.DeadlineExceeded), KindTimeout},
		{"unclassified", errors.New("who knows"), KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKindOf_ExplicitKindBeatsDeadline(t *testing.T) {
	// A kinded error wrapping a deadline keeps its own kind.
	err := Wrap(KindStore, "slow query", context.DeadlineExceeded)
	if got := KindOf(err); got != KindStore {
		t.Errorf("KindOf() = %q, want %q", got, KindStore)
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindValidation, http.StatusBadRequest},
		{KindUnauthorized, http.StatusUnauthorized},
		{KindNotFound, http.StatusNotFound},
		{KindStore, http.StatusServiceUnavailable},
		{KindTimeout, http.StatusGatewayTimeout},
		{KindPipeline, http.StatusInternalServerError},
		{KindInternal, http.StatusInternalServerError},
		{Kind("unknown"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			if got := HTTPStatus(tt.kind); got != tt.want {
				t.Errorf("HTTPStatus(%q) = %d, want %d", tt.kind, got, tt.want)
			}
		})
	}
}

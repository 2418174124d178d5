// SPDX-License-Identifier: MIT

package log

import (
	"context"
	"testing"
)

func TestTraceIDRoundTrip(t *testing.T) {
	ctx := ContextWithTraceID(context.Background(), "abc-123")
	if got := TraceIDFromContext(ctx); got != "abc-123" {
		t.Fatalf("expected abc-123, got %q", got)
	}
}

func TestTraceIDAbsent(t *testing.T) {
	if got := TraceIDFromContext(context.Background()); got != "" {
		t.Fatalf("expected empty trace id, got %q", got)
	}
	if got := TraceIDFromContext(nil); got != "" { //nolint:staticcheck
		t.Fatalf("expected empty trace id for nil ctx, got %q", got)
	}
}

func TestContextWithTraceIDNilContext(t *testing.T) {
	ctx := ContextWithTraceID(nil, "t-1") //nolint:staticcheck
	if got := TraceIDFromContext(ctx); got != "t-1" {
		t.Fatalf("expected t-1, got %q", got)
	}
}

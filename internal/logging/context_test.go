package logging

import (
	"bytes"
	"context"
	"testing"
)

func TestRunIDRoundTrip(t *testing.T) {
	ctx := WithRunIDCtx(context.Background(), "run-1")
	if got := RunIDFromCtx(ctx); got != "run-1" {
		t.Errorf("RunIDFromCtx = %q, want run-1", got)
	}
	if got := RunIDFromCtx(context.Background()); got != "" {
		t.Errorf("RunIDFromCtx on empty ctx = %q, want empty", got)
	}
}

func TestFromCtxPrefersAttachedLogger(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelInfo, Format: FormatJSON, Output: &buf})

	ctx := WithLoggerCtx(context.Background(), l)
	if got := FromCtx(ctx); got != l {
		t.Error("FromCtx should return the attached logger")
	}
}

func TestFromCtxTagsGlobalWithRunID(t *testing.T) {
	prev := Global()
	defer SetGlobal(prev)
	SetGlobal(DefaultLogger())

	ctx := WithRunIDCtx(context.Background(), "run-7")
	l := FromCtx(ctx)
	if l.RunID() != "run-7" {
		t.Errorf("FromCtx run ID = %q, want run-7", l.RunID())
	}
}

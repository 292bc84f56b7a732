package services

import (
	"context"
	"testing"
)

func TestRunIDRoundTrip(t *testing.T) {
	ctx := WithRunID(context.Background(), "abc")
	if id, ok := RunIDFromContext(ctx); !ok || id != "abc" {
		t.Fatalf("RunIDFromContext = %q, %v", id, ok)
	}
	if _, ok := RunIDFromContext(context.Background()); ok {
		t.Fatal("expected no run id on empty context")
	}
	if WithRunID(ctx, "") != ctx {
		t.Fatal("empty run id should leave context untouched")
	}
}

func TestPhaseRoundTrip(t *testing.T) {
	ctx := WithPhase(context.Background(), "folders")
	if phase, ok := PhaseFromContext(ctx); !ok || phase != "folders" {
		t.Fatalf("PhaseFromContext = %q, %v", phase, ok)
	}
}

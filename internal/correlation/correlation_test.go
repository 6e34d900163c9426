package correlation

import (
	"context"
	"strings"
	"testing"
)

func TestSetAndID(t *testing.T) {
	ctx := Set(context.Background(), "req-42")
	if got := ID(ctx); got != "req-42" {
		t.Fatalf("id %q", got)
	}
}

func TestEnsureGeneratesOnce(t *testing.T) {
	ctx, id := Ensure(context.Background())
	if id == "" {
		t.Fatalf("expected generated id")
	}
	ctx2, id2 := Ensure(ctx)
	if id2 != id {
		t.Fatalf("ensure regenerated: %q vs %q", id2, id)
	}
	if ctx2 != ctx {
		t.Fatalf("ensure must not rewrap a carrying context")
	}
}

func TestNormalize(t *testing.T) {
	if _, ok := Normalize("  "); ok {
		t.Fatalf("blank id accepted")
	}
	if _, ok := Normalize(strings.Repeat("x", MaxIDLength+1)); ok {
		t.Fatalf("oversized id accepted")
	}
	if _, ok := Normalize("tab\tseparated"); ok {
		t.Fatalf("control characters accepted")
	}
	got, ok := Normalize("  trace-1  ")
	if !ok || got != "trace-1" {
		t.Fatalf("normalize returned %q, %v", got, ok)
	}
}

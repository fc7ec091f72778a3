package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/custodia-labs/sercha-chat/internal/core/ports/driven/mocks"
)

func TestCachedEmbedding_EmbedQuery(t *testing.T) {
	inner := mocks.NewMockEmbeddingService()
	c := NewCachedEmbedding(inner, 16, 0)
	ctx := context.Background()

	first, err := c.EmbedQuery(ctx, "", "refund policy")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := c.EmbedQuery(ctx, "mock-embedding-model", "refund policy")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if inner.QueryCalls() != 1 {
		t.Errorf("expected 1 upstream call, got %d", inner.QueryCalls())
	}
	if len(first) != len(second) || first[0] != second[0] {
		t.Error("expected cached vector")
	}

	hits, misses := c.Stats()
	if hits != 1 || misses != 1 {
		t.Errorf("expected 1 hit and 1 miss, got %d/%d", hits, misses)
	}
}

func TestCachedEmbedding_KeyedByModel(t *testing.T) {
	inner := mocks.NewMockEmbeddingService()
	c := NewCachedEmbedding(inner, 16, 0)
	ctx := context.Background()

	_, _ = c.EmbedQuery(ctx, "small", "q")
	_, _ = c.EmbedQuery(ctx, "large", "q")

	if inner.QueryCalls() != 2 {
		t.Errorf("expected a miss per model, got %d upstream calls", inner.QueryCalls())
	}
}

func TestCachedEmbedding_ErrorsNotCached(t *testing.T) {
	inner := mocks.NewMockEmbeddingService()
	c := NewCachedEmbedding(inner, 16, 0)
	ctx := context.Background()

	inner.SetFailNext(errors.New("timeout"))
	if _, err := c.EmbedQuery(ctx, "", "q"); err == nil {
		t.Fatal("expected error")
	}
	if _, err := c.EmbedQuery(ctx, "", "q"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.QueryCalls() != 2 {
		t.Errorf("expected 2 upstream calls, got %d", inner.QueryCalls())
	}
}

func TestCachedEmbedding_TTL(t *testing.T) {
	inner := mocks.NewMockEmbeddingService()
	c := NewCachedEmbedding(inner, 16, 20*time.Millisecond)
	ctx := context.Background()

	_, _ = c.EmbedQuery(ctx, "", "q")
	time.Sleep(60 * time.Millisecond)
	_, _ = c.EmbedQuery(ctx, "", "q")

	if inner.QueryCalls() != 2 {
		t.Errorf("expected expired entry to be re-fetched, got %d upstream calls", inner.QueryCalls())
	}
}

func TestCachedEmbedding_BatchBypassesCache(t *testing.T) {
	inner := mocks.NewMockEmbeddingService()
	c := NewCachedEmbedding(inner, 16, 0)

	_, _ = c.Embed(context.Background(), "", []string{"a", "b"})
	_, _ = c.Embed(context.Background(), "", []string{"a", "b"})

	if inner.EmbedCalls() != 2 {
		t.Errorf("expected 2 batch calls, got %d", inner.EmbedCalls())
	}
}

func TestCachedEmbedding_Delegates(t *testing.T) {
	inner := mocks.NewMockEmbeddingService()
	inner.HealthCheckErr = errors.New("down")
	c := NewCachedEmbedding(inner, 16, 0)

	if c.Model() != "mock-embedding-model" {
		t.Errorf("unexpected model %s", c.Model())
	}
	if err := c.HealthCheck(context.Background()); err == nil {
		t.Error("expected health check error")
	}
	if err := c.Close(); err != nil {
		t.Errorf("unexpected close error: %v", err)
	}
	if !inner.Closed {
		t.Error("expected inner service to be closed")
	}
}

package chain

import (
	"context"
	"errors"
	"testing"
)

type fakeProvider struct {
	name      string
	dim       int
	fail      bool
	available bool
	calls     int
}

func (f *fakeProvider) Name() string         { return f.name }
func (f *fakeProvider) Dimension() int       { return f.dim }
func (f *fakeProvider) MaxBatchSize() int    { return 10 }
func (f *fakeProvider) Available(ctx context.Context) bool { return f.available }

func (f *fakeProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.fail {
		return nil, errors.New("boom")
	}
	return []float32{1, 2, 3}, nil
}

func (f *fakeProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		v, err := f.Embed(ctx, texts[i])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func TestChain_FallsThroughOnFailure(t *testing.T) {
	primary := &fakeProvider{name: "primary", dim: 768, fail: true, available: true}
	backup := &fakeProvider{name: "backup", dim: 768, available: true}
	c := New(primary, backup)

	vec, err := c.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != 3 {
		t.Fatalf("expected embedding from backup, got %v", vec)
	}
	if c.ActiveProvider() != "backup" {
		t.Fatalf("expected backup to become active, got %q", c.ActiveProvider())
	}
}

func TestChain_SkipsUnavailableProvider(t *testing.T) {
	primary := &fakeProvider{name: "primary", dim: 768, available: false}
	backup := &fakeProvider{name: "backup", dim: 768, available: true}
	c := New(primary, backup)

	_, err := c.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if primary.calls != 0 {
		t.Fatalf("expected unavailable primary to never be called, got %d calls", primary.calls)
	}
}

func TestChain_DimensionFollowsActiveProvider(t *testing.T) {
	primary := &fakeProvider{name: "primary", dim: 1536, available: true}
	backup := &fakeProvider{name: "backup", dim: 768, available: true}
	c := New(primary, backup)

	if _, err := c.Embed(context.Background(), "hi"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Dimension() != 1536 {
		t.Fatalf("expected dimension 1536 from active primary, got %d", c.Dimension())
	}
}

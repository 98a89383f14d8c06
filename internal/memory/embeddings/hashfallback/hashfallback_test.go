package hashfallback

import "testing"

func TestHashEmbedding_DeterministicAndBounded(t *testing.T) {
	a := HashEmbedding("hello world", 768)
	b := HashEmbedding("hello world", 768)
	if len(a) != 768 {
		t.Fatalf("expected 768 dims, got %d", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("expected deterministic output, differed at %d: %f != %f", i, a[i], b[i])
		}
		if a[i] < -1 || a[i] > 1 {
			t.Fatalf("expected value in [-1, 1], got %f at %d", a[i], i)
		}
	}
}

func TestHashEmbedding_DifferentTextsDiffer(t *testing.T) {
	a := HashEmbedding("hello", 64)
	b := HashEmbedding("goodbye", 64)
	same := true
	for i := range a {
		if a[i] != b[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatal("expected different texts to produce different embeddings")
	}
}

func TestProvider_EmbedBatch(t *testing.T) {
	p := New(Config{Dimension: 32})
	out, err := p.EmbedBatch(nil, []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 || len(out[0]) != 32 {
		t.Fatalf("unexpected batch shape: %v", out)
	}
}

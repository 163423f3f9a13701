package retrieval

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func writeCorpus(t *testing.T, docs map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, text := range docs {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(text), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func TestChunkText_ParagraphsAndWindows(t *testing.T) {
	short := "First paragraph.\n\nSecond paragraph."
	chunks := chunkText(short, 100, 20)
	if len(chunks) != 2 {
		t.Fatalf("len(chunks) = %d, want 2", len(chunks))
	}

	long := strings.Repeat("abcde ", 60) // 360 bytes, one paragraph
	chunks = chunkText(long, 100, 20)
	if len(chunks) < 4 {
		t.Errorf("len(chunks) = %d, want sliding windows over long paragraph", len(chunks))
	}
	for _, c := range chunks {
		if len(c) > 100 {
			t.Errorf("chunk longer than size: %d bytes", len(c))
		}
	}
}

func TestChunkDocument_IDs(t *testing.T) {
	chunks := chunkDocument("docs/product_policy.md", "A.\n\nB.", 100, 20)
	if len(chunks) != 2 {
		t.Fatalf("len(chunks) = %d, want 2", len(chunks))
	}
	if chunks[0].ChunkID != "product_policy::chunk0" {
		t.Errorf("ChunkID = %q, want product_policy::chunk0", chunks[0].ChunkID)
	}
	if chunks[1].ChunkID != "product_policy::chunk1" {
		t.Errorf("ChunkID = %q, want product_policy::chunk1", chunks[1].ChunkID)
	}
	if chunks[0].Source != "product_policy.md" {
		t.Errorf("Source = %q, want product_policy.md", chunks[0].Source)
	}
}

func TestRetrieve_RanksRelevantFirst(t *testing.T) {
	dir := writeCorpus(t, map[string]string{
		"product_policy.md":  "Returns policy. Beverages unopened: 14 days return window.",
		"kpi_definitions.md": "AOV is average order value computed as revenue over distinct orders.",
		"marketing.md":       "Summer Beverages 1997 campaign ran in June.",
	})

	r, err := NewFromDir(dir, Options{})
	if err != nil {
		t.Fatalf("NewFromDir: %v", err)
	}

	got := r.Retrieve("return window for unopened beverages", 2)
	if len(got) == 0 {
		t.Fatal("Retrieve returned no results")
	}
	if got[0].Source != "product_policy.md" {
		t.Errorf("top result = %s, want product_policy.md", got[0].Source)
	}
	if len(got) > 2 {
		t.Errorf("len(results) = %d, want <= 2", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Score > got[i-1].Score {
			t.Errorf("results not sorted by score: %v", got)
		}
	}
}

func TestRetrieve_Deterministic(t *testing.T) {
	dir := writeCorpus(t, map[string]string{
		"a.md": "beverages beverages beverages",
		"b.md": "beverages and seafood",
		"c.md": "unrelated text about shipping",
	})

	r, err := NewFromDir(dir, Options{})
	if err != nil {
		t.Fatalf("NewFromDir: %v", err)
	}

	first := r.Retrieve("beverages", 3)
	second := r.Retrieve("beverages", 3)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Retrieve is not deterministic:\n%v\n%v", first, second)
	}
}

func TestRetrieve_KCap(t *testing.T) {
	dir := writeCorpus(t, map[string]string{
		"a.md": "alpha one.\n\nalpha two.\n\nalpha three.\n\nalpha four.",
	})
	r, err := NewFromDir(dir, Options{})
	if err != nil {
		t.Fatalf("NewFromDir: %v", err)
	}
	if got := r.Retrieve("alpha", 2); len(got) != 2 {
		t.Errorf("len(results) = %d, want 2", len(got))
	}
	if got := r.Retrieve("alpha", 0); got != nil {
		t.Errorf("Retrieve with k=0 = %v, want nil", got)
	}
}

func TestNewFromDir_EmptyCorpus(t *testing.T) {
	dir := t.TempDir()
	if _, err := NewFromDir(dir, Options{}); err == nil {
		t.Error("expected error for empty corpus")
	}
}

func TestRetrieve_UnknownTerms(t *testing.T) {
	dir := writeCorpus(t, map[string]string{
		"a.md": "alpha beta gamma",
	})
	r, err := NewFromDir(dir, Options{})
	if err != nil {
		t.Fatalf("NewFromDir: %v", err)
	}
	// Query with no indexed terms still returns capped, deterministic
	// output rather than failing.
	got := r.Retrieve("zzz qqq", 2)
	if len(got) == 0 {
		t.Error("expected at least one zero-score result")
	}
}

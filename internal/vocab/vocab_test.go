package vocab

import (
	"errors"
	"path/filepath"
	"testing"

	apperrors "github.com/wikitopics/topic-platform/pkg/errors"
)

func addAll(b *Builder, docs [][]string) {
	for _, doc := range docs {
		b.AddDocument(doc)
	}
}

func TestFilterExtremesOrder(t *testing.T) {
	// "a" appears in every document and is killed by the frequency
	// ceiling; "c" appears once and is killed by the floor; "b" survives
	// both and is the only term left after the size cap.
	b := NewBuilder()
	addAll(b, [][]string{
		{"a", "b"},
		{"a", "c"},
		{"a", "b"},
		{"a"},
	})

	v, err := b.FilterExtremes(2, 0.5, 1)
	if err != nil {
		t.Fatalf("FilterExtremes: %v", err)
	}
	if v.Size() != 1 {
		t.Fatalf("expected vocabulary of 1 term, got %d", v.Size())
	}
	id, ok := v.ID("b")
	if !ok || id != 0 {
		t.Errorf("expected b at id 0, got id=%d ok=%v", id, ok)
	}
	if _, ok := v.ID("a"); ok {
		t.Error("a should have been dropped by the frequency ceiling")
	}
	if _, ok := v.ID("c"); ok {
		t.Error("c should have been dropped by the frequency floor")
	}
}

func TestFilterExtremesIDAssignment(t *testing.T) {
	// Dense ids follow descending document frequency; ties break on
	// encounter order.
	b := NewBuilder()
	addAll(b, [][]string{
		{"rare", "common", "middling"},
		{"common", "middling"},
		{"common"},
	})

	v, err := b.FilterExtremes(1, 1.0, 0)
	if err != nil {
		t.Fatalf("FilterExtremes: %v", err)
	}
	wantOrder := []string{"common", "middling", "rare"}
	for id, word := range wantOrder {
		got, ok := v.Word(id)
		if !ok || got != word {
			t.Errorf("id %d: got %q ok=%v, want %q", id, got, ok, word)
		}
	}
}

func TestFilterExtremesTieBreak(t *testing.T) {
	b := NewBuilder()
	addAll(b, [][]string{
		{"zebra", "apple"},
		{"zebra", "apple"},
	})

	v, err := b.FilterExtremes(1, 1.0, 0)
	if err != nil {
		t.Fatalf("FilterExtremes: %v", err)
	}
	// Equal frequency: first-encountered wins the lower id.
	if id, _ := v.ID("zebra"); id != 0 {
		t.Errorf("zebra should take id 0 on tie, got %d", id)
	}
	if id, _ := v.ID("apple"); id != 1 {
		t.Errorf("apple should take id 1 on tie, got %d", id)
	}
}

func TestFilterExtremesDocFreqCountsOncePerDoc(t *testing.T) {
	b := NewBuilder()
	b.AddDocument([]string{"echo", "echo", "echo"})
	b.AddDocument([]string{"echo"})

	v, err := b.FilterExtremes(2, 1.0, 0)
	if err != nil {
		t.Fatalf("FilterExtremes: %v", err)
	}
	id, ok := v.ID("echo")
	if !ok {
		t.Fatal("echo missing from vocabulary")
	}
	if df := v.DocFreq(id); df != 2 {
		t.Errorf("document frequency = %d, want 2 (counted once per document)", df)
	}
}

func TestFilterExtremesEmptyResult(t *testing.T) {
	b := NewBuilder()
	b.AddDocument([]string{"only"})

	_, err := b.FilterExtremes(5, 1.0, 0)
	if !errors.Is(err, apperrors.ErrEmptyVocabulary) {
		t.Errorf("expected ErrEmptyVocabulary, got %v", err)
	}
}

func TestVocabularyLookupsAreInverse(t *testing.T) {
	b := NewBuilder()
	addAll(b, [][]string{
		{"alpha", "beta", "gamma"},
		{"alpha", "beta"},
		{"alpha"},
	})
	v, err := b.FilterExtremes(1, 1.0, 0)
	if err != nil {
		t.Fatalf("FilterExtremes: %v", err)
	}

	for id := 0; id < v.Size(); id++ {
		word, ok := v.Word(id)
		if !ok {
			t.Fatalf("Word(%d) missing", id)
		}
		back, ok := v.ID(word)
		if !ok || back != id {
			t.Errorf("ID(Word(%d)) = %d ok=%v, want %d", id, back, ok, id)
		}
	}
	if _, ok := v.Word(v.Size()); ok {
		t.Error("Word past the end should report not-ok")
	}
	if _, ok := v.ID("never-seen"); ok {
		t.Error("unknown word should report not-ok")
	}
}

func TestSaveLoadRoundtrip(t *testing.T) {
	b := NewBuilder()
	addAll(b, [][]string{
		{"north", "south", "east"},
		{"north", "south"},
		{"north"},
	})
	v, err := b.FilterExtremes(1, 1.0, 0)
	if err != nil {
		t.Fatalf("FilterExtremes: %v", err)
	}

	path := filepath.Join(t.TempDir(), "vocab_wordids.txt.gz")
	if err := v.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Size() != v.Size() {
		t.Fatalf("size after roundtrip = %d, want %d", loaded.Size(), v.Size())
	}
	if loaded.TotalDocs() != v.TotalDocs() {
		t.Errorf("total docs after roundtrip = %d, want %d", loaded.TotalDocs(), v.TotalDocs())
	}
	for id := 0; id < v.Size(); id++ {
		origWord, _ := v.Word(id)
		gotWord, ok := loaded.Word(id)
		if !ok || gotWord != origWord {
			t.Errorf("id %d: word %q ok=%v, want %q", id, gotWord, ok, origWord)
		}
		if loaded.DocFreq(id) != v.DocFreq(id) {
			t.Errorf("id %d: docfreq %d, want %d", id, loaded.DocFreq(id), v.DocFreq(id))
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.txt.gz"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestFilterExtremesIdempotentInput(t *testing.T) {
	// Filtering twice from the same builder state yields the same
	// vocabulary.
	b := NewBuilder()
	addAll(b, [][]string{
		{"one", "two", "three"},
		{"one", "two"},
		{"one"},
	})
	first, err := b.FilterExtremes(1, 1.0, 2)
	if err != nil {
		t.Fatalf("first FilterExtremes: %v", err)
	}
	second, err := b.FilterExtremes(1, 1.0, 2)
	if err != nil {
		t.Fatalf("second FilterExtremes: %v", err)
	}
	if first.Size() != second.Size() {
		t.Fatalf("sizes differ: %d vs %d", first.Size(), second.Size())
	}
	for id := 0; id < first.Size(); id++ {
		a, _ := first.Word(id)
		c, _ := second.Word(id)
		if a != c {
			t.Errorf("id %d differs between runs: %q vs %q", id, a, c)
		}
	}
}

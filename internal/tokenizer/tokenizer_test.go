package tokenizer

import (
	"reflect"
	"testing"
)

func TestTokenize(t *testing.T) {
	tok := New(Options{})

	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "lowercases and splits on punctuation",
			text: "The Cat, runs! Fast.",
			want: []string{"the", "cat", "runs", "fast"},
		},
		{
			name: "drops single letter tokens",
			text: "a I x go",
			want: []string{"go"},
		},
		{
			name: "digits are separators",
			text: "covid19 cases in 2020",
			want: []string{"covid", "cases", "in"},
		},
		{
			name: "empty input",
			text: "",
			want: []string{},
		},
		{
			name: "only punctuation",
			text: "!!! ... ---",
			want: []string{},
		},
		{
			name: "unicode letters survive",
			text: "Zürich naïve",
			want: []string{"zürich", "naïve"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tok.Tokenize(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Tokenize(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestTokenizeMinLength(t *testing.T) {
	tok := New(Options{MinTokenLen: 4})
	got := tok.Tokenize("one two three four five")
	want := []string{"three", "four", "five"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tokenize with min length 4 = %v, want %v", got, want)
	}
}

func TestTokenizeMinLengthCountsRunes(t *testing.T) {
	// "åä" is 4 bytes but 2 runes; it must survive the default minimum.
	tok := New(Options{})
	got := tok.Tokenize("åä")
	if len(got) != 1 || got[0] != "åä" {
		t.Errorf("Tokenize(%q) = %v, want [åä]", "åä", got)
	}
}

func TestTokenizeDeterministic(t *testing.T) {
	tok := New(Options{})
	text := "Repeated runs must yield identical tokens every time"
	first := tok.Tokenize(text)
	for i := 0; i < 5; i++ {
		if got := tok.Tokenize(text); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d produced %v, first run produced %v", i, got, first)
		}
	}
}

func TestStemmerNormalizer(t *testing.T) {
	tok := New(Options{Normalizer: Stemmer{}})
	// Both inflections must map to the same token so they share a
	// vocabulary id.
	a := tok.Tokenize("jumped")
	b := tok.Tokenize("jumps")
	if len(a) != 1 || len(b) != 1 {
		t.Fatalf("expected single tokens, got %v and %v", a, b)
	}
	if a[0] != b[0] {
		t.Errorf("stemmer did not conflate inflections: %q vs %q", a[0], b[0])
	}
}

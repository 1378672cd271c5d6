package keyword

import (
	"reflect"
	"testing"
)

func TestExtractor_Extract(t *testing.T) {
	e := NewExtractor()
	tests := []struct {
		name     string
		question string
		want     []string
	}{
		{"deadline question", "What is the TDS assignment deadline?", []string{"what", "tds", "assignment", "deadline"}},
		{"stop words only", "Is it the and or but", []string{}},
		{"short tokens dropped", "Is GA1 ok to do?", []string{"ga1"}},
		{"capped at five", "docker podman kubernetes helm terraform ansible", []string{"docker", "podman", "kubernetes", "helm", "terraform"}},
		{"punctuation splits", "gpt-4o-mini vs. gpt-3.5-turbo", []string{"gpt", "mini", "gpt", "turbo"}},
		{"underscore is a word rune", "what does snake_case mean", []string{"what", "does", "snake_case", "mean"}},
		{"empty", "", []string{}},
		{"unicode letters", "Qué pasó with über?", []string{"qué", "pasó", "über"}},
		{"numeric runes are word runes", "co₂ level ² test", []string{"co₂", "level", "test"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Extract(tt.question)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Extract(%q) = %v, want %v", tt.question, got, tt.want)
			}
		})
	}
}

func TestExtractor_Deterministic(t *testing.T) {
	e := NewExtractor()
	q := "How do I submit the project with Docker?"
	first := e.Extract(q)
	for i := 0; i < 5; i++ {
		if got := e.Extract(q); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d: %v != %v", i, got, first)
		}
	}
}

func TestExtractor_Options(t *testing.T) {
	e := NewExtractor(WithMaxKeywords(2), WithMinLength(5))
	got := e.Extract("explain docker volumes and networking")
	want := []string{"explain", "docker"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	e = NewExtractor(WithMaxKeywords(0), WithMinLength(-1))
	if e.maxKeywords != DefaultMaxKeywords || e.minLength != DefaultMinLength {
		t.Errorf("invalid options should keep defaults, got %d/%d", e.maxKeywords, e.minLength)
	}
}

package retrieval

import (
	"context"
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"
)

var docs = []Document{
	{ID: 1, SubjectID: 1, Title: "Photosynthesis", Content: "Plants convert light energy into chemical energy stored in glucose."},
	{ID: 2, SubjectID: 1, Title: "Osmosis", Content: "Water moves across a partially permeable membrane."},
	{ID: 3, SubjectID: 2, Title: "Kinetics", Content: "Reaction rate increases with temperature and concentration."},
}

// wordEmbedder maps text onto a vector of concept hits so tests can make
// documents semantically close without sharing words.
type wordEmbedder struct {
	concepts [][]string
	err      error
}

func (e wordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	text = strings.ToLower(text)
	v := make([]float32, len(e.concepts))
	for i, words := range e.concepts {
		for _, w := range words {
			if strings.Contains(text, w) {
				v[i]++
			}
		}
	}
	return v, nil
}

func TestTokenize(t *testing.T) {
	got := Tokenize("What is the RATE of a reaction? It's CO2-driven!")
	want := []string{"rate", "reaction", "co2", "driven"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected tokens %v, but got %v", want, got)
	}
}

func TestKeywordOnly(t *testing.T) {
	ctx := context.Background()
	r, err := New(ctx, docs, nil)
	if err != nil {
		t.Fatal(err)
	}
	if r.Capability() != CapabilityKeyword {
		t.Fatalf("Expected keyword capability, but got %s", r.Capability())
	}

	results, err := r.Search(ctx, "membrane water", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].ID != 2 {
		t.Fatalf("Expected only the osmosis card, but got %+v", results)
	}
	if results[0].SemanticScore != 0 {
		t.Errorf("Expected no semantic score, but got %v", results[0].SemanticScore)
	}

	results, err = r.Search(ctx, "energy rate", Options{SubjectID: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].ID != 3 {
		t.Errorf("Expected the subject filter to keep only kinetics, but got %+v", results)
	}

	results, err = r.Search(ctx, "how plants make food", Options{Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].ID != 1 {
		t.Errorf("Expected photosynthesis for a plants query, but got %+v", results)
	}
}

func TestKeywordPlusSemantic(t *testing.T) {
	ctx := context.Background()
	embedder := wordEmbedder{concepts: [][]string{
		{"plant", "light", "glucose", "sugar", "food", "leaf"},
		{"water", "membrane"},
		{"reaction", "temperature"},
	}}
	r, err := New(ctx, docs, embedder)
	if err != nil {
		t.Fatal(err)
	}
	if r.Capability() != CapabilityKeywordSemantic {
		t.Fatalf("Expected semantic capability, but got %s", r.Capability())
	}

	// No keyword overlap with the photosynthesis card, only concept overlap.
	results, err := r.Search(ctx, "sugar leaf", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) == 0 || results[0].ID != 1 {
		t.Fatalf("Expected photosynthesis first, but got %+v", results)
	}
	if results[0].KeywordScore != 0 || results[0].Score != results[0].SemanticScore*semanticScale {
		t.Errorf("Expected a purely semantic score, but got %+v", results[0])
	}
}

func TestNewPropagatesEmbedderErrors(t *testing.T) {
	boom := errors.New("model unavailable")
	_, err := New(context.Background(), docs, wordEmbedder{err: boom})
	if !errors.Is(err, boom) {
		t.Errorf("Expected embedder error, but got %v", err)
	}
}

func TestBlend(t *testing.T) {
	testCases := []struct {
		name     string
		keyword  float64
		semantic float64
		want     float64
	}{
		{"both", 2, 0.5, 0.4*2 + 0.6*5},
		{"keyword only", 1.7, 0, 1.7},
		{"semantic above threshold", 0, 0.5, 5},
		{"semantic below threshold", 0, 0.2, 0},
		{"nothing", 0, 0, 0},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := blend(tc.keyword, tc.semantic); math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("Expected %v, but got %v", tc.want, got)
			}
		})
	}
}

func TestContextFor(t *testing.T) {
	results := []Result{
		{Document: Document{Title: "Osmosis", Content: "Water moves."}},
		{Document: Document{Title: "Kinetics", Content: strings.Repeat("x", 500)}},
	}
	got := ContextFor(results, 100)
	if !strings.Contains(got, "[Flashcard] Osmosis") {
		t.Errorf("Expected the first result in the context, got %q", got)
	}
	if strings.Contains(got, "Kinetics") {
		t.Errorf("Expected the oversized result to be dropped, got %q", got)
	}
	if ContextFor(nil, 100) != "" {
		t.Error("Expected empty context without results")
	}
}

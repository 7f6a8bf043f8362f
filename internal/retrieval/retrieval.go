// Package retrieval searches flashcards to ground AI prompts. Keyword search
// is always available; semantic search is added when an Embedder is wired in
// at startup.
package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/conorfennell/revise/internal/domain"
)

// Capability names the search strategy a Retriever implements.
type Capability int

const (
	CapabilityKeyword Capability = iota
	CapabilityKeywordSemantic
)

func (c Capability) String() string {
	switch c {
	case CapabilityKeyword:
		return "keyword"
	case CapabilityKeywordSemantic:
		return "keyword+semantic"
	default:
		return fmt.Sprintf("capability(%d)", int(c))
	}
}

// Document is a searchable unit.
type Document struct {
	ID        int64
	SubjectID int64
	Title     string
	Content   string
}

// Result is a scored match.
type Result struct {
	Document
	Score         float64
	KeywordScore  float64
	SemanticScore float64
}

// Options narrows a search. A zero SubjectID searches every subject and a
// zero Limit defaults to DefaultLimit.
type Options struct {
	SubjectID int64
	Limit     int
}

const DefaultLimit = 5

// Retriever searches an index built at startup.
type Retriever interface {
	Search(ctx context.Context, query string, opts Options) ([]Result, error)
	Capability() Capability
}

// Embedder turns text into a dense vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// New indexes docs and picks the strongest strategy available: with a nil
// embedder the result is keyword only.
func New(ctx context.Context, docs []Document, embedder Embedder) (Retriever, error) {
	idx := newIndex(docs)
	if embedder == nil {
		return &KeywordOnly{idx: idx}, nil
	}

	vectors := make([][]float32, len(docs))
	for i, d := range docs {
		v, err := embedder.Embed(ctx, d.Title+"\n"+d.Content)
		if err != nil {
			return nil, fmt.Errorf("failed to embed document %d: %w", d.ID, err)
		}
		vectors[i] = v
	}
	return &KeywordPlusSemantic{idx: idx, embedder: embedder, vectors: vectors}, nil
}

// DocumentsFromCards turns cards into searchable documents.
func DocumentsFromCards(cards []domain.Card) []Document {
	docs := make([]Document, 0, len(cards))
	for _, c := range cards {
		title := c.Question
		if c.Topic != "" {
			title = c.Topic + ": " + c.Question
		}
		docs = append(docs, Document{
			ID:        c.ID,
			SubjectID: c.SubjectID,
			Title:     title,
			Content:   c.Question + "\n" + c.Answer,
		})
	}
	return docs
}

// KeywordOnly ranks documents by BM25.
type KeywordOnly struct {
	idx *index
}

func (k *KeywordOnly) Capability() Capability { return CapabilityKeyword }

func (k *KeywordOnly) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	terms := Tokenize(query)
	var results []Result
	for i, d := range k.idx.docs {
		if opts.SubjectID != 0 && d.SubjectID != opts.SubjectID {
			continue
		}
		kw := k.idx.bm25(terms, i)
		if kw > minScore {
			results = append(results, Result{Document: d, Score: kw, KeywordScore: kw})
		}
	}
	return rank(results, opts.Limit), nil
}

// KeywordPlusSemantic blends BM25 with cosine similarity of embeddings so a
// query can match documents that share no words with it.
type KeywordPlusSemantic struct {
	idx      *index
	embedder Embedder
	vectors  [][]float32
}

func (k *KeywordPlusSemantic) Capability() Capability { return CapabilityKeywordSemantic }

func (k *KeywordPlusSemantic) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	qv, err := k.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	terms := Tokenize(query)

	var results []Result
	for i, d := range k.idx.docs {
		if opts.SubjectID != 0 && d.SubjectID != opts.SubjectID {
			continue
		}
		kw := k.idx.bm25(terms, i)
		sem := cosine(qv, k.vectors[i])
		score := blend(kw, sem)
		if score > minScore {
			results = append(results, Result{Document: d, Score: score, KeywordScore: kw, SemanticScore: sem})
		}
	}
	return rank(results, opts.Limit), nil
}

const (
	minScore          = 0.1
	semanticThreshold = 0.3
	semanticScale     = 10
	keywordWeight     = 0.4
	semanticWeight    = 0.6
)

// blend combines the two scores. When both strategies match they are mixed;
// otherwise whichever matched is used, semantic only above its threshold.
func blend(keyword, semantic float64) float64 {
	switch {
	case keyword > 0 && semantic > 0:
		return keywordWeight*keyword + semanticWeight*semantic*semanticScale
	case keyword > 0:
		return keyword
	case semantic > semanticThreshold:
		return semantic * semanticScale
	default:
		return 0
	}
}

func rank(results []Result, limit int) []Result {
	if limit <= 0 {
		limit = DefaultLimit
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// ContextFor formats results as a prompt preamble, stopping before maxChars
// would be exceeded. It returns an empty string when nothing fits.
func ContextFor(results []Result, maxChars int) string {
	var parts []string
	used := 0
	for _, r := range results {
		entry := fmt.Sprintf("[Flashcard] %s\n%s\n", r.Title, r.Content)
		if used+len(entry) > maxChars {
			break
		}
		parts = append(parts, entry)
		used += len(entry)
	}
	if len(parts) == 0 {
		return ""
	}
	return "Here is relevant information from your study materials:\n\n" +
		strings.Join(parts, "---\n") +
		"\n---\n\nUse this information to help answer the question."
}

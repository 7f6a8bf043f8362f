package retrieval

import (
	"math"
	"strings"
)

var stopWords = map[string]bool{}

func init() {
	for _, w := range strings.Fields(`a an the and or but in on at to for of with by from is are was
		were be been being have has had do does did will would could should may might must shall
		can need this that these those i you he she it we they what which who whom where when why
		how all each every both few more most other some such no not only same so than too very just`) {
		stopWords[w] = true
	}
}

// Tokenize lowercases text, splits it on anything that is not an ASCII
// letter or digit and drops stop words and words of two characters or fewer.
func Tokenize(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	tokens := words[:0]
	for _, w := range words {
		if len(w) > 2 && !stopWords[w] {
			tokens = append(tokens, w)
		}
	}
	return tokens
}

const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

type index struct {
	docs   []Document
	counts []map[string]int
	lens   []int
	df     map[string]int
	avgLen float64
}

func newIndex(docs []Document) *index {
	idx := &index{
		docs:   docs,
		counts: make([]map[string]int, len(docs)),
		lens:   make([]int, len(docs)),
		df:     make(map[string]int),
	}
	total := 0
	for i, d := range docs {
		tokens := Tokenize(d.Title + " " + d.Content)
		tf := make(map[string]int, len(tokens))
		for _, t := range tokens {
			tf[t]++
		}
		for t := range tf {
			idx.df[t]++
		}
		idx.counts[i] = tf
		idx.lens[i] = len(tokens)
		total += len(tokens)
	}
	if len(docs) > 0 {
		idx.avgLen = float64(total) / float64(len(docs))
	}
	return idx
}

// bm25 scores document i against the query terms.
func (idx *index) bm25(terms []string, i int) float64 {
	if idx.avgLen == 0 {
		return 0
	}
	n := float64(len(idx.docs))
	norm := 1 - bm25B + bm25B*float64(idx.lens[i])/idx.avgLen

	score := 0.0
	for _, t := range terms {
		tf := float64(idx.counts[i][t])
		if tf == 0 {
			continue
		}
		df := float64(idx.df[t])
		idf := math.Log((n-df+0.5)/(df+0.5) + 1)
		score += idf * tf * (bm25K1 + 1) / (tf + bm25K1*norm)
	}
	return score
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

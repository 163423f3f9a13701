// Package retrieval implements a deterministic TF-IDF retriever over a
// markdown document corpus.
//
// The index is built once at startup and is read-only afterwards, so a
// single Retriever is safe to share across concurrent pipeline runs.
package retrieval

import (
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/datadesk/retail-copilot/internal/domain"
)

const (
	defaultChunkSize    = 800
	defaultChunkOverlap = 160
)

var tokenRe = regexp.MustCompile(`[a-z0-9]+`)

// Options control corpus chunking.
type Options struct {
	ChunkSize    int
	ChunkOverlap int
}

// Retriever holds the chunked corpus and its TF-IDF index.
type Retriever struct {
	chunks  []Chunk
	idf     map[string]float64
	vectors []map[string]float64
}

// NewFromDir builds a retriever from every *.md file in dir, in sorted
// filename order so chunk IDs and scores are stable across runs.
func NewFromDir(dir string, opts Options) (*Retriever, error) {
	entries, err := filepath.Glob(filepath.Join(dir, "*.md"))
	if err != nil {
		return nil, domain.WrapCopilotError(domain.ErrCorpusMissing.Code, "scan corpus dir", err)
	}
	if len(entries) == 0 {
		return nil, domain.NewCopilotError(domain.ErrCorpusEmpty.Code, "no markdown documents in "+dir)
	}
	sort.Strings(entries)

	var chunks []Chunk
	for _, path := range entries {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, domain.WrapCopilotError(domain.ErrCorpusMissing.Code, "read document", err)
		}
		chunks = append(chunks, chunkDocument(path, string(data), opts.ChunkSize, opts.ChunkOverlap)...)
	}
	return NewFromChunks(chunks)
}

// NewFromChunks builds a retriever over pre-chunked documents.
func NewFromChunks(chunks []Chunk) (*Retriever, error) {
	if len(chunks) == 0 {
		return nil, domain.NewCopilotError(domain.ErrCorpusEmpty.Code, domain.ErrCorpusEmpty.Message)
	}

	r := &Retriever{chunks: chunks}
	r.buildIndex()
	return r, nil
}

// buildIndex computes smoothed IDF weights and an L2-normalized TF-IDF
// vector per chunk.
func (r *Retriever) buildIndex() {
	df := make(map[string]int)
	termCounts := make([]map[string]int, len(r.chunks))
	for i, c := range r.chunks {
		counts := make(map[string]int)
		for _, tok := range tokenize(c.Text) {
			counts[tok]++
		}
		termCounts[i] = counts
		for tok := range counts {
			df[tok]++
		}
	}

	n := float64(len(r.chunks))
	r.idf = make(map[string]float64, len(df))
	for tok, d := range df {
		r.idf[tok] = math.Log((1+n)/(1+float64(d))) + 1
	}

	r.vectors = make([]map[string]float64, len(r.chunks))
	for i, counts := range termCounts {
		vec := make(map[string]float64, len(counts))
		var norm float64
		for tok, tf := range counts {
			w := float64(tf) * r.idf[tok]
			vec[tok] = w
			norm += w * w
		}
		if norm > 0 {
			norm = math.Sqrt(norm)
			for tok := range vec {
				vec[tok] /= norm
			}
		}
		r.vectors[i] = vec
	}
}

// Retrieve returns the top k chunks for the query by cosine similarity,
// ordered by score descending with chunk ID as the deterministic
// tie-break. Results are capped at k; zero-score chunks are dropped
// unless nothing scored.
func (r *Retriever) Retrieve(query string, k int) []domain.Evidence {
	if k <= 0 {
		return nil
	}

	qCounts := make(map[string]int)
	for _, tok := range tokenize(query) {
		qCounts[tok]++
	}
	qVec := make(map[string]float64, len(qCounts))
	var qNorm float64
	for tok, tf := range qCounts {
		idf, ok := r.idf[tok]
		if !ok {
			continue
		}
		w := float64(tf) * idf
		qVec[tok] = w
		qNorm += w * w
	}
	if qNorm > 0 {
		qNorm = math.Sqrt(qNorm)
		for tok := range qVec {
			qVec[tok] /= qNorm
		}
	}

	type scored struct {
		idx   int
		score float64
	}
	results := make([]scored, len(r.chunks))
	for i := range r.chunks {
		var dot float64
		for tok, w := range qVec {
			dot += w * r.vectors[i][tok]
		}
		results[i] = scored{idx: i, score: dot}
	}

	sort.Slice(results, func(a, b int) bool {
		if results[a].score != results[b].score {
			return results[a].score > results[b].score
		}
		return r.chunks[results[a].idx].ChunkID < r.chunks[results[b].idx].ChunkID
	})

	out := make([]domain.Evidence, 0, k)
	for _, s := range results {
		if len(out) >= k {
			break
		}
		if s.score <= 0 && len(out) > 0 {
			break
		}
		c := r.chunks[s.idx]
		out = append(out, domain.Evidence{
			ChunkID: c.ChunkID,
			Source:  c.Source,
			Text:    c.Text,
			Score:   s.score,
		})
	}
	return out
}

// Len reports the number of indexed chunks.
func (r *Retriever) Len() int {
	return len(r.chunks)
}

func tokenize(text string) []string {
	return tokenRe.FindAllString(strings.ToLower(text), -1)
}

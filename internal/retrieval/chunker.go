package retrieval

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

var paragraphSplit = regexp.MustCompile(`\n{2,}`)

// Chunk is one indexed slice of a source document.
type Chunk struct {
	ChunkID string
	Source  string
	Index   int
	Text    string
}

// chunkText splits document text into paragraphs, breaking paragraphs
// longer than size into sliding windows with the given overlap. The
// split is deterministic for a fixed input.
func chunkText(text string, size, overlap int) []string {
	if size <= 0 {
		size = defaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 5
	}

	var chunks []string
	for _, para := range paragraphSplit.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if len(para) <= size {
			chunks = append(chunks, para)
			continue
		}
		step := size - overlap
		for i := 0; i < len(para); i += step {
			end := i + size
			if end > len(para) {
				end = len(para)
			}
			chunks = append(chunks, strings.TrimSpace(para[i:end]))
			if end == len(para) {
				break
			}
		}
	}
	return chunks
}

// chunkDocument splits one document into identified chunks. Chunk IDs
// follow the <file-stem>::chunk<idx> convention.
func chunkDocument(source, text string, size, overlap int) []Chunk {
	stem := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	parts := chunkText(text, size, overlap)
	chunks := make([]Chunk, 0, len(parts))
	for i, p := range parts {
		chunks = append(chunks, Chunk{
			ChunkID: fmt.Sprintf("%s::chunk%d", stem, i),
			Source:  filepath.Base(source),
			Index:   i,
			Text:    p,
		})
	}
	return chunks
}

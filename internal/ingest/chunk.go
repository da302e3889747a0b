package ingest

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jdkato/prose/v2"
)

// DefaultTargetLength is the soft per-chunk character target spec.md
// §4.8 names ("≈1000 characters").
const DefaultTargetLength = 1000

// Chunk is one paragraph- and sentence-aligned slice of a document
// (spec.md §4.8). Index/TotalChunks let a reader reassemble document
// order; OriginalID/OriginalFilename trace a chunk back to its source.
type Chunk struct {
	Text             string
	Index            int
	TotalChunks      int
	OriginalID       string
	OriginalFilename string
}

var paragraphSplitter = regexp.MustCompile(`\n\s*\n+`)

// Chunker splits document text into Chunks on paragraph boundaries,
// falling back to sentence boundaries only when a single paragraph
// already exceeds TargetLength, so a chunk boundary never lands
// mid-sentence.
type Chunker struct {
	TargetLength int
}

// NewChunker returns a Chunker using DefaultTargetLength.
func NewChunker() *Chunker {
	return &Chunker{TargetLength: DefaultTargetLength}
}

// Chunk splits text into chunks tagged with originalID/originalFilename.
func (c *Chunker) Chunk(text, originalID, originalFilename string) ([]Chunk, error) {
	target := c.TargetLength
	if target <= 0 {
		target = DefaultTargetLength
	}

	var texts []string
	var builder strings.Builder

	flush := func() {
		if builder.Len() == 0 {
			return
		}
		texts = append(texts, strings.TrimSpace(builder.String()))
		builder.Reset()
	}

	for _, para := range splitParagraphs(text) {
		if builder.Len() > 0 && builder.Len()+len(para) > target {
			flush()
		}
		if len(para) <= target {
			if builder.Len() > 0 {
				builder.WriteString("\n\n")
			}
			builder.WriteString(para)
			continue
		}

		// The paragraph alone exceeds the target: fall back to
		// sentence boundaries so it is never split mid-sentence.
		flush()
		sentences, err := splitSentences(para)
		if err != nil {
			return nil, fmt.Errorf("ingest: chunk %q: %w", originalID, err)
		}
		for _, s := range sentences {
			if builder.Len() > 0 && builder.Len()+len(s) > target {
				flush()
			}
			if builder.Len() > 0 {
				builder.WriteString(" ")
			}
			builder.WriteString(s)
		}
	}
	flush()

	chunks := make([]Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = Chunk{
			Text:             t,
			Index:            i,
			TotalChunks:      len(texts),
			OriginalID:       originalID,
			OriginalFilename: originalFilename,
		}
	}
	return chunks, nil
}

func splitParagraphs(text string) []string {
	var out []string
	for _, p := range paragraphSplitter.Split(text, -1) {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func splitSentences(text string) ([]string, error) {
	doc, err := prose.NewDocument(text, prose.WithTagging(false), prose.WithExtraction(false))
	if err != nil {
		return nil, err
	}
	sentences := doc.Sentences()
	out := make([]string, 0, len(sentences))
	for _, s := range sentences {
		t := strings.TrimSpace(s.Text)
		if t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		out = []string{strings.TrimSpace(text)}
	}
	return out, nil
}

package ingest

import (
	"context"
	"fmt"

	"github.com/noumenal/ckg/internal/graphstore"
	"github.com/noumenal/ckg/internal/memory"
)

// SourceDocument is one parsed input to the pipeline: plain text (or
// markdown, for section extraction) plus the identifiers a chunk and
// its citations carry through to the graph (spec.md §4.8).
type SourceDocument struct {
	ID         string
	Filename   string
	Text       string
	Title      string
	Source     string
	Category   string
	Tags       []string
	Collection string
	Markdown   bool

	// CitationKey is the key other documents' citations resolve against
	// to point at this one (a bibtex key, "Smith2020", a numbered
	// reference, or a wiki page title). Optional.
	CitationKey string
}

// Result summarises one Ingest call.
type Result struct {
	ChunkIDs      []string
	ChunkErrors   []error
	SectionIDs    []string
	CitationEdges int
	DeferredCites []Citation
}

// Pipeline is the C8 transducer: it turns a SourceDocument into
// UnifiedMemory calls (addDocument per chunk, addRelationship per
// resolved citation, a raw graph node per markdown section), reporting
// progress to an optional Reporter.
type Pipeline struct {
	memory  *memory.UnifiedMemory
	chunker *Chunker
}

// NewPipeline builds a Pipeline over an already-open UnifiedMemory.
func NewPipeline(m *memory.UnifiedMemory) *Pipeline {
	return &Pipeline{memory: m, chunker: NewChunker()}
}

// Ingest runs the full pipeline: parse (section extraction), chunk,
// embed+insert (via UnifiedMemory.AddDocument), then a learning pass
// that resolves each chunk's citations against already-ingested
// documents in the same collection and builds the markdown section
// tree.
func (p *Pipeline) Ingest(ctx context.Context, doc SourceDocument, reporter Reporter) (Result, error) {
	var result Result

	report(ctx, reporter, StageParsing, 0)
	var sections []Section
	if doc.Markdown {
		sections = ParseSections(doc.ID, doc.Text)
	}
	report(ctx, reporter, StageParsing, 100)

	report(ctx, reporter, StageChunking, 0)
	chunks, err := p.chunker.Chunk(doc.Text, doc.ID, doc.Filename)
	if err != nil {
		return result, fmt.Errorf("ingest: %w", err)
	}
	report(ctx, reporter, StageChunking, 100)

	type insertedChunk struct {
		id        string
		citations []Citation
	}
	var inserted []insertedChunk

	report(ctx, reporter, StageEmbedding, 0)
	for i, chunk := range chunks {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		localID := fmt.Sprintf("%s#chunk%d", doc.ID, chunk.Index)
		extra := map[string]any{
			"originalId":       doc.ID,
			"originalFilename": doc.Filename,
			"chunkIndex":       chunk.Index,
			"totalChunks":      chunk.TotalChunks,
		}
		if i == 0 && doc.CitationKey != "" {
			// The first chunk anchors the whole document for citation
			// resolution: a multi-chunk document is still one
			// citable thing.
			extra["citationKey"] = doc.CitationKey
		}

		id, err := p.memory.AddDocument(ctx, memory.Document{
			ID:       localID,
			Text:     chunk.Text,
			Title:    doc.Title,
			Source:   doc.Source,
			Category: doc.Category,
			Tags:     doc.Tags,
			Extra:    extra,
		}, doc.Collection)
		if err != nil {
			result.ChunkErrors = append(result.ChunkErrors, fmt.Errorf("chunk %d: %w", chunk.Index, err))
			report(ctx, reporter, StageEmbedding, percentOf(i+1, len(chunks)))
			continue
		}
		result.ChunkIDs = append(result.ChunkIDs, id)
		inserted = append(inserted, insertedChunk{id: id, citations: ExtractCitations(chunk.Text)})
		report(ctx, reporter, StageEmbedding, percentOf(i+1, len(chunks)))
	}
	report(ctx, reporter, StageInserting, 100)

	report(ctx, reporter, StageLearning, 0)
	for _, section := range sections {
		node := graphstore.Node{
			ID:   section.ID,
			Type: "Section",
			Properties: map[string]any{
				"title":      section.Title,
				"level":      section.Level,
				"originalId": doc.ID,
			},
		}
		if err := p.memory.CreateGraphNode(doc.Collection, node); err != nil {
			continue // best-effort: a malformed heading tree should not abort ingestion
		}
		result.SectionIDs = append(result.SectionIDs, section.ID)
		if section.ParentID != "" {
			p.memory.AddRelationship(doc.Collection, section.ParentID, section.ID, "PARENT_OF", nil)
		}
	}

	for _, ic := range inserted {
		for _, cit := range ic.citations {
			if cit.Kind == CitationWikiLink {
				p.resolveByTitle(doc.Collection, ic.id, cit, &result)
				continue
			}
			p.resolveByCitationKey(doc.Collection, ic.id, cit, &result)
		}
	}
	report(ctx, reporter, StageLearning, 100)

	return result, nil
}

// resolveByCitationKey looks up a Document node carrying a matching
// citationKey property, deferring the citation if none is found yet
// (spec.md §4.8 "deferred if target does not yet exist — resolved in a
// second pass"). A later Ingest call for the cited document tags its
// own first chunk with the same key, at which point re-running
// ResolveDeferred against the now-complete graph links it.
func (p *Pipeline) resolveByCitationKey(collection, fromID string, cit Citation, result *Result) {
	cypher := fmt.Sprintf(`MATCH (n:Document) WHERE n.citationKey = "%s" RETURN n`, cit.Target)
	rows, err := p.memory.GraphQuery(collection, cypher)
	if err != nil || len(rows) == 0 {
		result.DeferredCites = append(result.DeferredCites, cit)
		return
	}
	node, ok := rows[0]["n"].(graphstore.Node)
	if !ok || node.ID == fromID {
		result.DeferredCites = append(result.DeferredCites, cit)
		return
	}
	if err := p.memory.AddRelationship(collection, fromID, node.ID, "CITES", map[string]any{
		"kind": string(cit.Kind),
		"raw":  cit.Raw,
	}); err == nil {
		result.CitationEdges++
	}
}

// resolveByTitle links a wiki-style `[[Target]]` citation to whichever
// Document node carries a matching title property.
func (p *Pipeline) resolveByTitle(collection, fromID string, cit Citation, result *Result) {
	cypher := fmt.Sprintf(`MATCH (n:Document) WHERE n.title = "%s" RETURN n`, cit.Target)
	rows, err := p.memory.GraphQuery(collection, cypher)
	if err != nil || len(rows) == 0 {
		result.DeferredCites = append(result.DeferredCites, cit)
		return
	}
	node, ok := rows[0]["n"].(graphstore.Node)
	if !ok || node.ID == fromID {
		result.DeferredCites = append(result.DeferredCites, cit)
		return
	}
	if err := p.memory.AddRelationship(collection, fromID, node.ID, "CITES", map[string]any{
		"kind": string(cit.Kind),
		"raw":  cit.Raw,
	}); err == nil {
		result.CitationEdges++
	}
}

// ResolveDeferred retries a batch of previously deferred citations,
// e.g. after ingesting the documents they point at. fromID is the
// chunk the citations were extracted from.
func (p *Pipeline) ResolveDeferred(collection, fromID string, deferred []Citation) Result {
	var result Result
	for _, cit := range deferred {
		if cit.Kind == CitationWikiLink {
			p.resolveByTitle(collection, fromID, cit, &result)
			continue
		}
		p.resolveByCitationKey(collection, fromID, cit, &result)
	}
	return result
}

func percentOf(done, total int) int {
	if total <= 0 {
		return 100
	}
	return done * 100 / total
}

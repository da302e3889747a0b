package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractCitations_Numeric(t *testing.T) {
	cits := ExtractCitations("Caching improves latency [12] significantly.")
	assert.Len(t, cits, 1)
	assert.Equal(t, CitationNumeric, cits[0].Kind)
	assert.Equal(t, "12", cits[0].Target)
}

func TestExtractCitations_AuthorYear(t *testing.T) {
	cits := ExtractCitations("As shown by (Smith, 2020), caching helps.")
	assert.Len(t, cits, 1)
	assert.Equal(t, CitationAuthorYear, cits[0].Kind)
	assert.Equal(t, "Smith2020", cits[0].Target)
}

func TestExtractCitations_Bibtex(t *testing.T) {
	cits := ExtractCitations("See [@smith2020] for details.")
	assert.Len(t, cits, 1)
	assert.Equal(t, CitationBibtex, cits[0].Kind)
	assert.Equal(t, "smith2020", cits[0].Target)
}

func TestExtractCitations_WikiLink(t *testing.T) {
	cits := ExtractCitations("Related to [[Caching Strategies]] and [[Other Page|alias]].")
	assert.Len(t, cits, 2)
	assert.Equal(t, "Caching Strategies", cits[0].Target)
	assert.Equal(t, "Other Page", cits[1].Target)
}

func TestExtractCitations_DedupesRepeats(t *testing.T) {
	cits := ExtractCitations("[12] appears twice: [12].")
	assert.Len(t, cits, 1)
}

func TestExtractCitations_NoneFound(t *testing.T) {
	cits := ExtractCitations("Nothing to see here.")
	assert.Empty(t, cits)
}

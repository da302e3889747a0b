package ingest

import "regexp"

// CitationKind distinguishes the citation surface forms spec.md §4.8
// names.
type CitationKind string

const (
	CitationNumeric    CitationKind = "numeric"     // [12]
	CitationAuthorYear CitationKind = "author_year" // (Smith, 2020)
	CitationBibtex     CitationKind = "bibtex"      // [@smith2020]
	CitationWikiLink   CitationKind = "wiki_link"   // [[Target]]
)

// Citation is one extracted reference token, not yet resolved to a
// Document node (spec.md §4.8 "deferred if target does not yet exist").
type Citation struct {
	Kind CitationKind
	Raw  string
	// Target is the key a second resolution pass matches against a
	// Document node's identifying property: the citation number for
	// CitationNumeric, "Author2020" for CitationAuthorYear, the bibtex
	// key for CitationBibtex, the link text for CitationWikiLink.
	Target string
}

var (
	numericCitationRe    = regexp.MustCompile(`\[(\d{1,3})\]`)
	authorYearCitationRe = regexp.MustCompile(`\(([A-Z][\p{L}'-]+)(?:\s(?:&|and|et al\.)\s[A-Z][\p{L}'-]+)?,\s*(\d{4}[a-z]?)\)`)
	bibtexCitationRe     = regexp.MustCompile(`\[@([A-Za-z][A-Za-z0-9_:-]*)\]`)
	wikiLinkCitationRe   = regexp.MustCompile(`\[\[([^\]|]+?)(?:\|[^\]]*)?\]\]`)
)

// ExtractCitations scans text for every recognized citation surface
// form. Results are grouped by kind (numeric, author-year, bibtex,
// wiki-link), each group in order of first occurrence in text;
// duplicates of the same (kind, target) are collapsed.
func ExtractCitations(text string) []Citation {
	var out []Citation
	seen := make(map[string]bool)

	add := func(kind CitationKind, raw, target string) {
		key := string(kind) + "\x00" + target
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, Citation{Kind: kind, Raw: raw, Target: target})
	}

	for _, m := range numericCitationRe.FindAllStringSubmatch(text, -1) {
		add(CitationNumeric, m[0], m[1])
	}
	for _, m := range authorYearCitationRe.FindAllStringSubmatch(text, -1) {
		add(CitationAuthorYear, m[0], m[1]+m[2])
	}
	for _, m := range bibtexCitationRe.FindAllStringSubmatch(text, -1) {
		add(CitationBibtex, m[0], m[1])
	}
	for _, m := range wikiLinkCitationRe.FindAllStringSubmatch(text, -1) {
		add(CitationWikiLink, m[0], m[1])
	}
	return out
}

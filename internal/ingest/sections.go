package ingest

import (
	"regexp"
	"strconv"
	"strings"
)

// Section is one markdown heading and the text beneath it up to the
// next heading of any depth (spec.md §4.8 "Section hierarchy"); a
// subsection's text is not repeated in its parent's Text.
type Section struct {
	ID       string
	Title    string
	Level    int // 1 for "#", 2 for "##", ...
	Text     string
	ParentID string // "" for a top-level section
}

var headingRe = regexp.MustCompile(`(?m)^(#{1,6})\s+(.+?)\s*$`)

// ParseSections splits markdown text into a heading tree. docID
// namespaces generated section ids so two documents never collide.
func ParseSections(docID, text string) []Section {
	matches := headingRe.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return nil
	}

	type raw struct {
		level int
		title string
		start int // body start offset
		end   int // body end offset, set once the next heading is known
	}
	raws := make([]raw, len(matches))
	for i, m := range matches {
		level := m[3] - m[2]
		title := strings.TrimSpace(text[m[4]:m[5]])
		bodyStart := m[1]
		raws[i] = raw{level: level, title: title, start: bodyStart}
	}
	for i := range raws {
		if i+1 < len(raws) {
			raws[i].end = matches[i+1][0]
		} else {
			raws[i].end = len(text)
		}
	}

	sections := make([]Section, len(raws))
	var stack []int // indices into sections, one per currently-open ancestor level
	for i, r := range raws {
		sections[i] = Section{
			ID:    sectionID(docID, i),
			Title: r.title,
			Level: r.level,
			Text:  strings.TrimSpace(text[r.start:r.end]),
		}

		for len(stack) > 0 && sections[stack[len(stack)-1]].Level >= r.level {
			stack = stack[:len(stack)-1]
		}
		if len(stack) > 0 {
			sections[i].ParentID = sections[stack[len(stack)-1]].ID
		}
		stack = append(stack, i)
	}
	return sections
}

func sectionID(docID string, index int) string {
	return docID + "#section" + strconv.Itoa(index)
}

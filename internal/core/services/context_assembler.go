package services

import (
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/sercha-chat/internal/core/domain"
	"github.com/custodia-labs/sercha-chat/internal/core/ports/driving"
)

// Verify interface compliance
var _ driving.ContextAssembler = (*ContextAssembler)(nil)

// Markers delimiting the retrieved context inside the prompt
const (
	ContextBeginMarker = "<<<KNOWLEDGE BASE CONTEXT>>>"
	ContextEndMarker   = "<<<END KNOWLEDGE BASE CONTEXT>>>"
)

// sectionSeparator sits between chunk sections and counts toward MaxChars
const sectionSeparator = "\n\n"

// ContextAssembler renders scored chunks as a delimited block.
type ContextAssembler struct {
	// MaxChars bounds the chunk sections and their separators (markers
	// excluded). The top-ranked section is truncated to fit; later sections
	// that would cross the bound are dropped. 0 means unbounded.
	MaxChars int
}

// NewContextAssembler creates an assembler with the given character budget
func NewContextAssembler(maxChars int) *ContextAssembler {
	return &ContextAssembler{MaxChars: maxChars}
}

// Assemble returns the block and the number of chunk sections in it, or ""
// and 0 for no chunks. The block has the form
//
//	<<<KNOWLEDGE BASE CONTEXT>>>
//	[source: a.md]
//	...text...
//
//	[source: b.md]
//	...text...
//	<<<END KNOWLEDGE BASE CONTEXT>>>
func (a *ContextAssembler) Assemble(scored []*domain.ScoredChunk) (string, int) {
	sepLen := utf8.RuneCountInString(sectionSeparator)
	sections := make([]string, 0, len(scored))
	used := 0
	for _, sc := range scored {
		if sc == nil || sc.Chunk == nil {
			continue
		}
		label := "[source: " + sc.Chunk.SourceID + "]\n"
		section := label + sc.Chunk.Content
		n := utf8.RuneCountInString(section)
		if len(sections) > 0 {
			n += sepLen
		}

		if a.MaxChars > 0 && used+n > a.MaxChars {
			if len(sections) > 0 {
				break
			}
			room := a.MaxChars - utf8.RuneCountInString(label)
			if room <= 0 {
				break
			}
			section = label + truncateRunes(sc.Chunk.Content, room)
			n = utf8.RuneCountInString(section)
		}
		used += n
		sections = append(sections, section)
	}

	if len(sections) == 0 {
		return "", 0
	}

	var b strings.Builder
	b.WriteString(ContextBeginMarker)
	b.WriteByte('\n')
	b.WriteString(strings.Join(sections, sectionSeparator))
	b.WriteByte('\n')
	b.WriteString(ContextEndMarker)
	return b.String(), len(sections)
}

func truncateRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

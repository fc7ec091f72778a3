package postprocessors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/custodia-labs/sercha-chat/internal/core/domain"
	"github.com/custodia-labs/sercha-chat/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.Chunker = (*Pipeline)(nil)

// DefaultChunkSize is the window size in characters used when none is configured
const DefaultChunkSize = 800

// Pipeline implements Chunker.
// It splits every document into fixed windows and then runs the registered
// post-processors over each document's windows.
type Pipeline struct {
	mu         sync.RWMutex
	processors []driven.PostProcessor
	sorted     bool
}

// NewPipeline creates a new pipeline with no post-processors.
func NewPipeline() *Pipeline {
	return &Pipeline{
		processors: make([]driven.PostProcessor, 0),
	}
}

// Add adds a processor to the pipeline.
// Processors are sorted by Order() before processing.
func (p *Pipeline) Add(processor driven.PostProcessor) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.processors = append(p.processors, processor)
	p.sorted = false
}

// List returns processor names in order.
func (p *Pipeline) List() []string {
	processors := p.ordered()
	names := make([]string, len(processors))
	for i, proc := range processors {
		names[i] = proc.Name()
	}
	return names
}

// Chunk splits documents into windows of size characters.
// Documents with an empty ID or invalid UTF-8 text are skipped; each one
// contributes an ErrInvalidDocument to the joined error.
func (p *Pipeline) Chunk(docs []domain.Document, size int) ([]domain.Chunk, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrInvalidInput, size)
	}

	processors := p.ordered()

	var (
		result []domain.Chunk
		errs   []error
	)
	for i, doc := range docs {
		if err := validateDocument(doc); err != nil {
			errs = append(errs, fmt.Errorf("document %d: %w", i, err))
			continue
		}

		chunks := Windows(doc, size)
		for _, proc := range processors {
			chunks = proc.Process(chunks)
		}
		result = append(result, chunks...)
	}

	return result, errors.Join(errs...)
}

func (p *Pipeline) ordered() []driven.PostProcessor {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.sorted {
		sort.SliceStable(p.processors, func(i, j int) bool {
			return p.processors[i].Order() < p.processors[j].Order()
		})
		p.sorted = true
	}

	processors := make([]driven.PostProcessor, len(p.processors))
	copy(processors, p.processors)
	return processors
}

func validateDocument(doc domain.Document) error {
	if strings.TrimSpace(doc.ID) == "" {
		return fmt.Errorf("%w: empty identity", domain.ErrInvalidDocument)
	}
	if !utf8.ValidString(doc.Text) {
		return fmt.Errorf("%w: %s: text is not valid UTF-8", domain.ErrInvalidDocument, doc.ID)
	}
	return nil
}

// DefaultPipeline creates a pipeline that drops whitespace-only windows.
func DefaultPipeline() *Pipeline {
	p := NewPipeline()
	p.Add(NewBlankWindowFilter())
	return p
}

// Windows splits a document into contiguous, non-overlapping windows of
// exactly size runes. The last window may be shorter. Nothing is dropped.
func Windows(doc domain.Document, size int) []domain.Chunk {
	if size <= 0 || doc.Text == "" {
		return nil
	}

	var (
		chunks    []domain.Chunk
		start     int // byte offset of the current window
		runeStart int
		n         int
	)
	for i := range doc.Text {
		if n == size {
			chunks = append(chunks, window(doc.ID, doc.Text[start:i], len(chunks), runeStart, n))
			start = i
			runeStart += n
			n = 0
		}
		n++
	}
	if n > 0 {
		chunks = append(chunks, window(doc.ID, doc.Text[start:], len(chunks), runeStart, n))
	}
	return chunks
}

func window(sourceID, content string, position, runeStart, runes int) domain.Chunk {
	return domain.Chunk{
		SourceID:  sourceID,
		Content:   content,
		Position:  position,
		StartChar: runeStart,
		EndChar:   runeStart + runes,
	}
}

// BlankWindowFilter drops windows whose content is only whitespace.
type BlankWindowFilter struct{}

// Verify interface compliance
var _ driven.PostProcessor = (*BlankWindowFilter)(nil)

// NewBlankWindowFilter creates a new blank window filter.
func NewBlankWindowFilter() *BlankWindowFilter {
	return &BlankWindowFilter{}
}

// Process removes whitespace-only windows, keeping positions unchanged.
func (f *BlankWindowFilter) Process(chunks []domain.Chunk) []domain.Chunk {
	result := make([]domain.Chunk, 0, len(chunks))
	for _, chunk := range chunks {
		if strings.TrimSpace(chunk.Content) == "" {
			continue
		}
		result = append(result, chunk)
	}
	return result
}

// Name returns the processor name.
func (f *BlankWindowFilter) Name() string {
	return "blank-window-filter"
}

// Order returns 10 - runs right after splitting.
func (f *BlankWindowFilter) Order() int {
	return 10
}

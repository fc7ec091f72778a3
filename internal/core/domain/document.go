package domain

// Document is a named knowledge-base entry as returned by a knowledge source
type Document struct {
	ID   string `json:"id"` // filename or logical name
	Text string `json:"text"`
}

// Chunk is a fixed-size window of a document's text
type Chunk struct {
	SourceID  string    `json:"source_id"` // ID of the owning Document
	Content   string    `json:"content"`
	Embedding []float32 `json:"-"`
	Position  int       `json:"position"`   // Window index within the document
	StartChar int       `json:"start_char"` // Rune offset of the window start
	EndChar   int       `json:"end_char"`
}

// HasEmbedding reports whether the chunk carries a vector
func (c *Chunk) HasEmbedding() bool {
	return len(c.Embedding) > 0
}

// Len returns the length of the chunk content in runes
func (c *Chunk) Len() int {
	return c.EndChar - c.StartChar
}

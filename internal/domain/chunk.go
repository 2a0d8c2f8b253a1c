package domain

// Chunk is a page-tagged slice of cleaned document text, the unit of retrieval
// and of citation granularity. Chunks live only in a session's in-memory corpus.
type Chunk struct {
	Content  string
	Page     int
	SourceID string
}

// ScoredChunk pairs a chunk with its lexical score for one ranking call.
// Index is the chunk's position in the corpus and breaks score ties.
type ScoredChunk struct {
	Chunk
	Score float64
	Index int
}

// Citation points a generated answer back to evidence on a specific page.
type Citation struct {
	Page     int    `json:"page"`
	Snippet  string `json:"snippet"`
	SourceID string `json:"source_id"`
}

// CitationKey identifies a page within a source.
type CitationKey struct {
	Page     int
	SourceID string
}

// Key returns the (page, source) pair citations are deduplicated on.
func (c Citation) Key() CitationKey {
	return CitationKey{Page: c.Page, SourceID: c.SourceID}
}

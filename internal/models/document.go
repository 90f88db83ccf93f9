package models

// Page is the extracted text of one physical page, numbered from 1.
type Page struct {
	Number int
	Text   string
}

// Section is a heading together with the body text that follows it.
type Section struct {
	Heading string
	Body    string
}

// Chunk is a bounded slice of a section body, the unit of embedding and retrieval.
type Chunk struct {
	ID       string
	Text     string
	Section  string
	Position int
	Metadata map[string]interface{}
}

// SearchResult is a chunk together with its vector similarity and, when the
// reranker ran, its relevance score.
type SearchResult struct {
	Chunk       Chunk
	Score       float64
	RerankScore float64
	Reranked    bool
}

// Evidence is what a caller sees for each grounding chunk.
type Evidence struct {
	Text        string   `json:"text"`
	Section     string   `json:"section"`
	Score       float64  `json:"score"`
	RerankScore *float64 `json:"rerank_score,omitempty"`
}

// Result is the outcome of a single query.
type Result struct {
	Question string     `json:"question"`
	Answer   string     `json:"answer"`
	Evidence []Evidence `json:"evidence"`
}

// SectionStats summarises one section for browsing.
type SectionStats struct {
	Heading    string `json:"heading"`
	Characters int    `json:"characters"`
	Words      int    `json:"words"`
	Paragraphs int    `json:"paragraphs"`
}

// Overview summarises an indexed document.
type Overview struct {
	Pages      int            `json:"pages"`
	Sections   []SectionStats `json:"sections"`
	Characters int            `json:"characters"`
	Words      int            `json:"words"`
	Records    int            `json:"records"`
	Model      string         `json:"model"`
}

// NewEvidence converts a search result into caller-facing evidence.
func NewEvidence(r SearchResult) Evidence {
	ev := Evidence{
		Text:    r.Chunk.Text,
		Section: r.Chunk.Section,
		Score:   r.Score,
	}
	if r.Reranked {
		s := r.RerankScore
		ev.RerankScore = &s
	}
	return ev
}

package models

// Page is one extracted page of a source document.
type Page struct {
	PageNumber int    `json:"page_number"`
	Text       string `json:"text"`
	ImageCount int    `json:"image_count"`
}

// Document is a source book read once at pipeline start.
type Document struct {
	Name  string `json:"name"`
	Pages []Page `json:"pages"`
}

// MergedChunk is the output of the similarity merge, with provenance.
type MergedChunk struct {
	Text             string    `json:"text"`
	OriginalIndices  []int     `json:"original_indices"`
	SimilarityScores []float64 `json:"similarity_scores"`
}

// ChunkRecord is one entry of a book's semantic chunk file.
type ChunkRecord struct {
	ChunkID          int       `json:"chunk_id"`
	Text             string    `json:"text"`
	WordCount        int       `json:"word_count"`
	CharCount        int       `json:"char_count"`
	OriginalIndices  []int     `json:"original_indices"`
	SimilarityScores []float64 `json:"similarity_scores"`
}

// BookChunks is the on-disk layout of <stem>_semantic_chunks.json.
type BookChunks struct {
	BookName       string        `json:"book_name"`
	TotalChunks    int           `json:"total_chunks"`
	ChunkingMethod string        `json:"chunking_method,omitempty"`
	Chunks         []ChunkRecord `json:"chunks"`
}

// PersistedDocument is a chunk as written to the vector store.
type PersistedDocument struct {
	ID        string         `json:"id"`
	Text      string         `json:"text"`
	Embedding []float32      `json:"embedding,omitempty"`
	Metadata  map[string]any `json:"metadata"`
}

// SearchResult is one ranked hit from a vector store query.
type SearchResult struct {
	ID       string         `json:"id"`
	Document string         `json:"document"`
	Metadata map[string]any `json:"metadata"`
	Distance float64        `json:"distance"`
}

// Similarity converts a cosine distance back into a similarity score.
func (r SearchResult) Similarity() float64 {
	return 1 - r.Distance
}

type PromptResponse struct {
	Query   string
	Source  string
	Content string
}

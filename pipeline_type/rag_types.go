package pipeline_type

import (
	"fmt"

	"github.com/google/uuid"
)

// Corpus names used for logging, persistence and the combined answer.
const (
	CorpusPolicy = "policy"
	CorpusData   = "data"
	SourceWeb    = "web"
)

// DocumentUnit is one page of a source PDF.
type DocumentUnit struct {
	Text   string
	Source string
	Page   int
}

// LoadedFile groups the pages read from a single PDF.
type LoadedFile struct {
	Name  string
	Path  string
	Size  int64
	Units []DocumentUnit
}

// Chunk is a span of page text produced by a splitter.
type Chunk struct {
	Content      string `json:"content"`
	Source       string `json:"source"`
	Page         int    `json:"page"`
	Position     int    `json:"position"`
	ChunkSize    int    `json:"chunk_size"`
	ChunkOverlap int    `json:"chunk_overlap"`
}

// ID derives a stable identifier from the chunk's origin, so rebuilding an
// index from the same documents yields the same ids.
func (c Chunk) ID() string {
	name := fmt.Sprintf("%s#%d#%d#%d", c.Source, c.Page, c.Position, c.ChunkSize)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}

// IndexEntry is a chunk with its embedding, as persisted.
type IndexEntry struct {
	ID        string
	Chunk     Chunk
	Embedding []float32
}

func NewIndexEntry(chunk Chunk, embedding []float32) IndexEntry {
	return IndexEntry{
		ID:        chunk.ID(),
		Chunk:     chunk,
		Embedding: embedding,
	}
}

// IndexMetadata is stored alongside every persisted index.
type IndexMetadata struct {
	Name           string `json:"name"`
	EmbeddingModel string `json:"embedding_model"`
	Dimension      int    `json:"dimension"`
}

type ProcessingStats struct {
	LoadTime   float64 `json:"load_time"`
	SplitTime  float64 `json:"split_time"`
	EmbedTime  float64 `json:"embed_time"`
	TotalTime  float64 `json:"total_time"`
	Files      int     `json:"files"`
	Pages      int     `json:"pages"`
	Chunks     int     `json:"chunks"`
	Batches    int     `json:"batches"`
	LoadedFrom string  `json:"loaded_from,omitempty"`
}

// QuestionRequest is the body of every answer endpoint.
type QuestionRequest struct {
	Question *string `json:"question"`
}

// AnswerResult carries the answer text. Err is set when the answer text is a
// failure description rather than a model answer.
type AnswerResult struct {
	Answer string
	Err    error
}

type AnswerResponse struct {
	Answer string `json:"answer"`
}

type CombinedResponse struct {
	PolicyAnswer string `json:"policy_answer"`
	WebAnswer    string `json:"web_answer"`
	DataAnswer   string `json:"data_answer"`
}

// SearchResult is one hit returned by the web search provider.
type SearchResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

package domain

// Entry is one timestamped span of text extracted from a source document.
// StartSec is zero for documents without time information. Entries keep
// document order and are never reordered.
type Entry struct {
	StartSec float64
	Text     string
}

// Chunk is a size-bounded concatenation of one or more entries. StartSec is
// the start offset of the first entry folded into the chunk.
type Chunk struct {
	Text     string
	StartSec float64
}

// Passage is the unit persisted in a knowledge base: one embedded chunk plus
// its source metadata.
type Passage struct {
	DocID    string
	Vector   []float32
	Text     string
	FileName string
	FileType string
	FilePath string
	FileHash string
	VideoID  string
	StartSec float64
}

// SearchResult is a retrieved passage with its similarity score.
type SearchResult struct {
	Passage Passage
	Score   float64
}

// Citation ties a numbered context block to a retrievable source position.
// It is scoped to a single query/response pair.
type Citation struct {
	Ref     int    `json:"ref"`
	VideoID string `json:"video_id,omitempty"`
	Seconds int    `json:"time"`
	Locator string `json:"url"`
}

// Stats summarizes the contents of one knowledge base.
type Stats struct {
	Rows           int64            `json:"row_count"`
	ByFileType     map[string]int64 `json:"by_file_type"`
	BySourceFile   map[string]int64 `json:"by_source_file"`
	DistinctVideos int64            `json:"distinct_videos"`
}

package schema

// Media types recognised by the loaders and the media index.
const (
	MediaTypeImage = "image"
	MediaTypeTable = "table"
	MediaTypeChart = "chart"
)

// MediaDescriptor records a piece of non-text content extracted from a
// document. Media is never embedded; at query time it is joined to search
// results by Source.
type MediaDescriptor struct {
	Type    string `json:"type"` // one of MediaTypeImage, MediaTypeTable, MediaTypeChart
	URL     string `json:"url"`
	Caption string `json:"caption,omitempty"`
	Source  string `json:"source"` // path of the document the media came from
}

// Document is a fully loaded source file: its plain text plus any media
// descriptors the loader extracted. Documents are immutable once loaded and
// re-created on re-upload.
type Document struct {
	ID     string            // unique identifier for this load
	Source string            // path of the source file
	Format string            // file extension, lower case, including the dot
	Text   string            // plain text content
	Media  []MediaDescriptor // extracted media, possibly empty
}

// Chunk is a bounded span of a document's text. Chunks are the unit of
// embedding and retrieval.
type Chunk struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	Source     string    `json:"source"`               // path of the originating document
	Seq        int       `json:"seq"`                  // position within the document
	Algorithms []string  `json:"algorithms,omitempty"` // named procedures mentioned in the chunk
	Embedding  []float32 `json:"-"`                    // persisted separately by the vector store
}

// SearchResult pairs a retrieved chunk with its similarity score.
type SearchResult struct {
	Chunk Chunk   `json:"chunk"`
	Score float32 `json:"score"`
}

// GenParams are the generation parameters forwarded to a backend. They map
// onto the sampling options of the Ollama API.
type GenParams struct {
	Temperature      float32  `json:"temperature"`
	MaxTokens        int      `json:"max_tokens"`
	TopP             float32  `json:"top_p"`
	FrequencyPenalty float32  `json:"frequency_penalty"`
	PresencePenalty  float32  `json:"presence_penalty"`
	Stop             []string `json:"stop,omitempty"`
}

// DefaultGenParams returns the parameter set used when a query does not
// override them.
func DefaultGenParams() GenParams {
	return GenParams{
		Temperature: 0.2,
		MaxTokens:   512,
		TopP:        1.0,
	}
}

package schema

const (
	// MetadataKeySource is the absolute path of the source document. It is
	// the primary key used when retrieval must be scoped to one document.
	MetadataKeySource = "source"
	// MetadataKeyFilePath mirrors MetadataKeySource. Older index contents may
	// carry only one of the two keys, so per-document retrieval tries both.
	MetadataKeyFilePath = "file_path"
	// MetadataKeyFileName is the human-readable base name of the source file.
	MetadataKeyFileName = "file_name"
	// MetadataKeyPageLabel is the zero-based page number from the source
	// document, stored as a string. Callers converting it for display are
	// responsible for the shift to one-based numbering.
	MetadataKeyPageLabel = "page_label"
)

// Document is the central data structure representing a span of text and its
// associated data. It carries a full page when produced by a loader and a
// bounded chunk after splitting; chunks are the unit embedded and retrieved.
type Document struct {
	// ID is the unique identifier for this document chunk.
	ID string

	// Text is the string content. It is already PII-masked by the time it
	// reaches the splitter, so a chunk boundary can never split a placeholder.
	Text string

	// Embedding is the vector representation of the text.
	Embedding []float32

	// Metadata holds arbitrary data about the document, such as source path
	// and page label.
	Metadata map[string]interface{}
}

// Generation is the result of one model call, including the provider-reported
// token usage consumed by the query token report.
type Generation struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

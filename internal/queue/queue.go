package queue

// Queue names. Each name is bound to exactly one payload type; the
// typed publish/consume wrappers in the broker package enforce the
// mapping at compile time.
const (
	NewFileExtract  = "NEW_FILE_EXTRACT"
	OllamaModelPull = "OLLAMA_MODEL_PULL"
)

// Output formats for processed documents.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Extraction engines.
const (
	EngineTesseract = "tesseract"
	EngineOllama    = "ollama"
)

// FileExtractMessage is the payload for NEW_FILE_EXTRACT. File is the
// uploaded file's name relative to the shared upload directory; the
// uploader guarantees it exists before dispatch. PageCount 0 means all
// pages from StartPage onward.
type FileExtractMessage struct {
	File      string `json:"file"`
	StartPage int    `json:"start_page"`
	PageCount int    `json:"page_count"`
	Priority  int    `json:"priority,omitempty"`
	Format    string `json:"format"`
	Engine    string `json:"engine"`
	Model     string `json:"model,omitempty"`
}

// ModelPullMessage is the payload for OLLAMA_MODEL_PULL.
type ModelPullMessage struct {
	Name string `json:"name"`
}

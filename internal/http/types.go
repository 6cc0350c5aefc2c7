package http

// Response envelopes. Success carries a message plus payload; failures
// add a machine-readable code.

type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Error   string `json:"error"`
}

// UploadData is returned by POST /upload. ID is the job identifier
// used by every later call.
type UploadData struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Path     string `json:"path"`
	Size     int64  `json:"size"`
}

// ProcessOptions is the body of POST /process/:id.
type ProcessOptions struct {
	StartPage int    `json:"start_page"`
	PageCount int    `json:"page_count"`
	Priority  int    `json:"priority"`
	Format    string `json:"format"`
	Engine    string `json:"engine"`
	Model     string `json:"model"`
}

// ProcessData is returned by POST /process/:id.
type ProcessData struct {
	ID       string `json:"id"`
	File     string `json:"file"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
}

// ProgressData is returned by the progress endpoints. Status is
// "unknown" when no tracking entry exists (never started or expired).
type ProgressData struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
}

// ModelPullRequest is the body of POST /model/pull.
type ModelPullRequest struct {
	Name string `json:"name"`
}

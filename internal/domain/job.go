package domain

// OperationError mirrors the error object a long-running operation carries
// once it has finished unsuccessfully.
type OperationError struct {
	Code    int    `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Status  string `json:"status,omitempty"`
}

// GenerationJob is one in-flight or completed video generation request.
// Each status check returns a fresh value that replaces the previous one.
type GenerationJob struct {
	Handle        string          `json:"handle"`
	Done          bool            `json:"done"`
	ResultLocator string          `json:"result_locator,omitempty"`
	Err           *OperationError `json:"error,omitempty"`
}

// Succeeded reports whether the job finished with a downloadable result.
func (j *GenerationJob) Succeeded() bool {
	return j != nil && j.Done && j.Err == nil && j.ResultLocator != ""
}

// RunState enumerates the states a video run moves through.
type RunState string

const (
	RunStateSubmitting  RunState = "submitting"
	RunStatePolling     RunState = "polling"
	RunStateDownloading RunState = "downloading"
	RunStateSucceeded   RunState = "succeeded"
	RunStateFailed      RunState = "failed"
	RunStateCancelled   RunState = "cancelled"
)

// Terminal reports whether no further transitions are possible.
func (s RunState) Terminal() bool {
	switch s {
	case RunStateSucceeded, RunStateFailed, RunStateCancelled:
		return true
	default:
		return false
	}
}

package domain

import (
	"strings"

	"github.com/google/uuid"
)

// DownloadMode selects how a request is fulfilled.
type DownloadMode string

const (
	// ModeOriginal forwards the source URL to the download sink verbatim.
	ModeOriginal DownloadMode = "original"
	// ModeConvert routes the source through the transcoding engine.
	ModeConvert DownloadMode = "convert"
)

// DownloadRequest is one unit of caller intent, consumed once by the
// coordinator. PageTitle is provenance only; it never influences dispatch.
type DownloadRequest struct {
	PageTitle        string
	SourceURL        string
	OriginalFilename string
	Mode             DownloadMode
}

// TranscodeJob is one request to transcode a single source to normalized WAV.
// The coordinator owns it from dispatch until completion or terminal failure.
type TranscodeJob struct {
	ID             string
	SourceURL      string
	OutputBaseName string
}

// NewTranscodeJob builds a job from a request. The output base name is the
// original filename with its extension stripped, then sanitized; ids are
// unique per dispatch so a late completion can never be matched to a newer
// job.
func NewTranscodeJob(req DownloadRequest) TranscodeJob {
	base := req.OriginalFilename
	if idx := strings.LastIndex(base, "."); idx > 0 {
		base = base[:idx]
	}
	return TranscodeJob{
		ID:             uuid.NewString(),
		SourceURL:      req.SourceURL,
		OutputBaseName: SanitizeFilename(base),
	}
}

// TranscodeResult is produced exactly once per job and delivered
// asynchronously on the completion broadcast. ErrKind preserves the failure
// classification across the message boundary, where only strings travel.
type TranscodeResult struct {
	JobID    string
	OK       bool
	Filename string
	Bytes    []byte
	Err      string
	ErrKind  ErrorKind
}

// SessionState is the engine session lifecycle. Failed is transient: any load
// failure resets the session to Uninitialized so the next EnsureReady retries.
type SessionState int

const (
	StateUninitialized SessionState = iota
	StateLoading
	StateReady
	StateFailed
)

func (s SessionState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ItemOutcome is the per-request outcome inside a batch report.
type ItemOutcome struct {
	Request  DownloadRequest
	Err      error
	Filename string
}

// BatchReport aggregates a sequential batch dispatch. Attempted always equals
// the number of requests; one failure never aborts the remaining items.
type BatchReport struct {
	Attempted int
	Succeeded int
	Failed    int
	Items     []ItemOutcome
}

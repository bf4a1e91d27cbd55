package port

import (
	"time"

	"wikiaudio/internal/domain"
)

// DispatchRecord is one row of dispatch history.
type DispatchRecord struct {
	ID          int64
	PageTitle   string
	SourceURL   string
	Mode        domain.DownloadMode
	Status      string
	Filename    string
	ByteSize    int64
	ErrorKind   string
	ErrorDetail string
	CreatedAt   time.Time
	CompletedAt time.Time
}

// DispatchLedger records dispatch outcomes for auditing. It is optional: the
// coordinator treats a nil ledger as "do not record".
type DispatchLedger interface {
	RecordStart(pageTitle, sourceURL string, mode domain.DownloadMode) (int64, error)
	RecordOutcome(id int64, filename string, byteSize int64, dispatchErr error) error
	Recent(limit int) ([]DispatchRecord, error)
}

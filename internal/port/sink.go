package port

import "context"

// Delivery is what reaches the download sink: either a source URL to fetch or
// inline bytes, never both, plus a sanitized filename.
type Delivery struct {
	SourceURL string
	Bytes     []byte
	Filename  string
}

// DownloadSink persists one delivery and returns an opaque identifier for it.
// The sink is an external collaborator; the coordinator invokes it exactly
// once per successful dispatch.
type DownloadSink interface {
	Deliver(ctx context.Context, d Delivery) (string, error)
}

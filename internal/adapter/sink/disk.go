// Package sink provides the concrete download sink used by the CLI: incoming
// deliveries land as files in an output directory.
package sink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"wikiaudio/internal/domain"
	"wikiaudio/internal/port"
)

var ErrEmptyDelivery = errors.New("delivery has neither bytes nor source URL")

type Disk struct {
	outputDir string
	http      *http.Client
}

// NewDisk builds a sink writing to outputDir. A nil httpClient gets a
// 60 second default timeout for URL deliveries.
func NewDisk(outputDir string, httpClient *http.Client) *Disk {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Disk{outputDir: outputDir, http: httpClient}
}

// Deliver writes inline bytes, or streams the source URL, into the output
// directory under the sanitized filename. The returned identifier is the
// final path.
func (d *Disk) Deliver(ctx context.Context, del port.Delivery) (string, error) {
	if len(del.Bytes) == 0 && del.SourceURL == "" {
		return "", domain.E(domain.KindDownloadSink, "sink.Deliver", ErrEmptyDelivery)
	}

	if err := os.MkdirAll(d.outputDir, 0o755); err != nil {
		return "", domain.E(domain.KindDownloadSink, "sink.Deliver", err)
	}

	dest := filepath.Join(d.outputDir, domain.SanitizeFilename(del.Filename))

	if len(del.Bytes) > 0 {
		if err := os.WriteFile(dest, del.Bytes, 0o644); err != nil {
			return "", domain.E(domain.KindDownloadSink, "sink.Deliver", err)
		}
		return dest, nil
	}

	if err := d.stream(ctx, del.SourceURL, dest); err != nil {
		return "", domain.E(domain.KindDownloadSink, "sink.Deliver", err)
	}
	return dest, nil
}

func (d *Disk) stream(ctx context.Context, sourceURL, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return err
	}
	resp, err := d.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch source: unexpected status %d", resp.StatusCode)
	}

	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		_ = f.Close()
		_ = os.Remove(dest)
		return err
	}
	return f.Close()
}

var _ port.DownloadSink = (*Disk)(nil)

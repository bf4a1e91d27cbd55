package service

import (
	"context"
	"time"

	"wikiaudio/internal/domain"
	"wikiaudio/internal/infrastructure/logger"
	"wikiaudio/internal/port"
	"wikiaudio/internal/protocol"
)

// Coordinator turns download requests into sink deliveries. Original mode
// goes straight to the sink; convert mode rides the session/channel/bus
// pipeline. The coordinator never retries and never falls back to original
// mode on its own; that is caller policy.
type Coordinator struct {
	session  *EngineSession
	sink     port.DownloadSink
	bus      *CompletionBus
	ledger   port.DispatchLedger
	timeouts Timeouts
}

// NewCoordinator wires the pipeline. ledger may be nil to skip history.
func NewCoordinator(session *EngineSession, sink port.DownloadSink, bus *CompletionBus, ledger port.DispatchLedger, timeouts Timeouts) *Coordinator {
	return &Coordinator{
		session:  session,
		sink:     sink,
		bus:      bus,
		ledger:   ledger,
		timeouts: timeouts,
	}
}

// Dispatch fulfills one request and returns the delivered filename. On
// success the sink was invoked exactly once; on failure the error carries a
// taxonomy kind.
func (c *Coordinator) Dispatch(ctx context.Context, req domain.DownloadRequest) (string, error) {
	ledgerID := c.recordStart(req)

	filename, size, err := c.dispatch(ctx, req)
	c.recordOutcome(ledgerID, filename, size, err)
	return filename, err
}

func (c *Coordinator) dispatch(ctx context.Context, req domain.DownloadRequest) (string, int64, error) {
	switch req.Mode {
	case domain.ModeOriginal:
		filename := domain.SanitizeFilename(req.OriginalFilename)
		if _, err := c.sink.Deliver(ctx, port.Delivery{SourceURL: req.SourceURL, Filename: filename}); err != nil {
			return "", 0, err
		}
		return filename, 0, nil

	case domain.ModeConvert:
		return c.dispatchConvert(ctx, req)

	default:
		return "", 0, domain.Errorf(domain.KindDownloadSink, "coordinator.Dispatch", "unknown mode %q", req.Mode)
	}
}

func (c *Coordinator) dispatchConvert(ctx context.Context, req domain.DownloadRequest) (string, int64, error) {
	if err := c.session.EnsureReady(ctx); err != nil {
		return "", 0, err
	}

	// Verify the session is alive and responsive before opening a channel.
	ready, err := c.session.Probe(ctx)
	if err != nil {
		return "", 0, err
	}
	if !ready {
		return "", 0, domain.Errorf(domain.KindWorkerUnavailable, "coordinator.dispatchConvert",
			"session answered probe but reports not ready")
	}

	job := domain.NewTranscodeJob(req)
	deadline := c.timeouts.SteadyJob
	if c.session.FirstJobSinceLoad() {
		deadline = c.timeouts.FirstJob
	}

	// Subscribe before submitting so the completion cannot slip past.
	sub := c.bus.Subscribe()
	defer c.bus.Unsubscribe(sub)

	channel := c.session.OpenChannel()
	defer channel.Close()

	if err := channel.Submit(ctx, job); err != nil {
		return "", 0, err
	}

	res, err := c.awaitCompletion(ctx, sub, job.ID, deadline)
	if err != nil {
		return "", 0, err
	}
	if !res.OK {
		kind := res.ErrKind
		if kind == "" {
			kind = domain.KindTranscode
		}
		return "", 0, domain.Errorf(kind, "coordinator.dispatchConvert", "%s", res.Err)
	}

	if _, err := c.sink.Deliver(ctx, port.Delivery{Bytes: res.Bytes, Filename: res.Filename}); err != nil {
		return "", 0, err
	}
	return res.Filename, int64(len(res.Bytes)), nil
}

// awaitCompletion listens on the broadcast bus for the completion matching
// jobID. Completions for other jobs, including late ones for abandoned
// waits, are discarded without effect.
func (c *Coordinator) awaitCompletion(ctx context.Context, sub chan []byte, jobID string, deadline time.Duration) (domain.TranscodeResult, error) {
	timer := time.NewTimer(deadline)
	defer timer.Stop()

	for {
		select {
		case data := <-sub:
			res, err := protocol.DecodeComplete(data)
			if err != nil {
				return domain.TranscodeResult{}, err
			}
			if res.JobID != jobID {
				logger.Warn.Printf("discarding completion for job %s (waiting on %s)", res.JobID, jobID)
				continue
			}
			return res, nil

		case <-timer.C:
			return domain.TranscodeResult{}, domain.E(domain.KindTranscode, "coordinator.awaitCompletion",
				domain.ErrDeadlineExceeded)

		case <-ctx.Done():
			return domain.TranscodeResult{}, domain.E(domain.KindTranscode, "coordinator.awaitCompletion", ctx.Err())
		}
	}
}

// DispatchBatch processes requests strictly sequentially: one dispatch fully
// resolves before the next begins, and a failed item never aborts the rest.
func (c *Coordinator) DispatchBatch(ctx context.Context, reqs []domain.DownloadRequest) domain.BatchReport {
	report := domain.BatchReport{
		Attempted: len(reqs),
		Items:     make([]domain.ItemOutcome, 0, len(reqs)),
	}

	for _, req := range reqs {
		filename, err := c.Dispatch(ctx, req)
		if err != nil {
			report.Failed++
			logger.Warn.Printf("batch item %s failed: %v", logger.SanitizeForLog(req.OriginalFilename), err)
		} else {
			report.Succeeded++
		}
		report.Items = append(report.Items, domain.ItemOutcome{Request: req, Err: err, Filename: filename})
	}
	return report
}

func (c *Coordinator) recordStart(req domain.DownloadRequest) int64 {
	if c.ledger == nil {
		return 0
	}
	id, err := c.ledger.RecordStart(req.PageTitle, req.SourceURL, req.Mode)
	if err != nil {
		logger.Warn.Printf("ledger: record start: %v", err)
		return 0
	}
	return id
}

func (c *Coordinator) recordOutcome(id int64, filename string, size int64, dispatchErr error) {
	if c.ledger == nil || id == 0 {
		return
	}
	if err := c.ledger.RecordOutcome(id, filename, size, dispatchErr); err != nil {
		logger.Warn.Printf("ledger: record outcome: %v", err)
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"wikiaudio/internal/domain"
	"wikiaudio/internal/infrastructure/logger"
	"wikiaudio/internal/port"
	"wikiaudio/internal/protocol"
)

// Timeouts bounds every cross-boundary wait in the pipeline. Injectable so
// tests run in milliseconds.
type Timeouts struct {
	// Load bounds the engine load routine.
	Load time.Duration
	// FirstJob bounds the completion wait for the first job after a load,
	// which may still be paying cold-start cost when load and transcode are
	// pipelined by the caller.
	FirstJob time.Duration
	// SteadyJob bounds the completion wait for every later job.
	SteadyJob time.Duration
	// Probe bounds the readiness probe round trip.
	Probe time.Duration
}

func DefaultTimeouts() Timeouts {
	return Timeouts{
		Load:      60 * time.Second,
		FirstJob:  120 * time.Second,
		SteadyJob: 90 * time.Second,
		Probe:     5 * time.Second,
	}
}

// inbound is one message crossing into the session: marshaled envelope plus,
// for probe round trips, a reply channel.
type inbound struct {
	data  []byte
	reply chan []byte
}

// loadAttempt ties waiters to one specific load. err is written before done
// is closed and never after.
type loadAttempt struct {
	done chan struct{}
	err  error
}

// EngineSession owns the transcoding engine's lifecycle and execution
// context. Exactly one session exists per process; its state is mutated only
// here and observed by the coordinator through EnsureReady and the readiness
// probe. The session loop consumes one envelope at a time, which is what
// serializes jobs on the engine's single working storage.
type EngineSession struct {
	engine   port.Engine
	fetch    *http.Client
	bus      *CompletionBus
	timeouts Timeouts

	mu            sync.Mutex
	state         domain.SessionState
	attempt       *loadAttempt
	jobsSinceLoad int

	inbox chan inbound
}

func NewEngineSession(engine port.Engine, fetchClient *http.Client, bus *CompletionBus, timeouts Timeouts) *EngineSession {
	if fetchClient == nil {
		fetchClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &EngineSession{
		engine:   engine,
		fetch:    fetchClient,
		bus:      bus,
		timeouts: timeouts,
		state:    domain.StateUninitialized,
		inbox:    make(chan inbound, 4),
	}
}

// Start launches the session loop. The session answers probes from the moment
// it starts, reporting not-ready until a load succeeds.
func (s *EngineSession) Start(ctx context.Context) {
	go s.run(ctx)
}

func (s *EngineSession) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// FirstJobSinceLoad reports whether the next job would be the first one after
// the most recent successful load.
func (s *EngineSession) FirstJobSinceLoad() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == domain.StateReady && s.jobsSinceLoad == 0
}

// EnsureReady drives the state machine to Ready. The Uninitialized→Loading
// transition is atomic and single-flight: concurrent callers never start a
// second load, they wait on the in-flight attempt and observe its outcome.
func (s *EngineSession) EnsureReady(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case domain.StateReady:
		s.mu.Unlock()
		return nil

	case domain.StateLoading:
		attempt := s.attempt
		s.mu.Unlock()
		return awaitLoad(ctx, attempt)

	default:
		attempt := &loadAttempt{done: make(chan struct{})}
		s.attempt = attempt
		s.state = domain.StateLoading
		s.mu.Unlock()

		go s.runLoad(attempt)
		return awaitLoad(ctx, attempt)
	}
}

func awaitLoad(ctx context.Context, attempt *loadAttempt) error {
	select {
	case <-attempt.done:
		return attempt.err
	case <-ctx.Done():
		// The load itself keeps running; only this caller gives up.
		return domain.E(domain.KindWorkerLoadFailure, "session.EnsureReady", ctx.Err())
	}
}

// runLoad performs one load under its own deadline, detached from any caller
// context, and settles the attempt all waiters share.
func (s *EngineSession) runLoad(attempt *loadAttempt) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeouts.Load)
	defer cancel()

	err := s.load(ctx)

	s.mu.Lock()
	if err != nil {
		// Loading → Failed → Uninitialized: a failed load is never sticky,
		// the next EnsureReady starts a fresh one.
		s.state = domain.StateUninitialized
		logger.Warn.Printf("engine load failed, state reset: %v", err)
	} else {
		s.state = domain.StateReady
		s.jobsSinceLoad = 0
		logger.Info.Printf("engine session ready")
	}
	s.attempt = nil
	s.mu.Unlock()

	attempt.err = err
	close(attempt.done)
}

func (s *EngineSession) load(ctx context.Context) error {
	// Pre-flight: every engine artifact must be reachable before anything is
	// instantiated.
	for _, artifact := range s.engine.Artifacts() {
		if err := checkArtifact(artifact); err != nil {
			return domain.E(domain.KindWorkerLoadFailure, "session.load", err)
		}
	}

	// Pre-flight: validate the engine binary in isolation so a corrupt
	// installation fails here, not with a confusing error downstream.
	if err := s.engine.Verify(ctx); err != nil {
		return domain.E(domain.KindWorkerLoadFailure, "session.load", fmt.Errorf("engine verification: %w", err))
	}

	if err := s.engine.Load(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return domain.E(domain.KindWorkerLoadTimeout, "session.load", domain.ErrDeadlineExceeded)
		}
		return domain.E(domain.KindWorkerLoadFailure, "session.load", err)
	}
	return nil
}

// checkArtifact verifies one engine resource is reachable: a bare command
// name through PATH lookup, anything else as a file path.
func checkArtifact(artifact string) error {
	if strings.ContainsRune(artifact, os.PathSeparator) {
		if _, err := os.Stat(artifact); err != nil {
			return fmt.Errorf("artifact %s unreachable: %w", artifact, err)
		}
		return nil
	}
	if _, err := exec.LookPath(artifact); err != nil {
		return fmt.Errorf("artifact %s unreachable: %w", artifact, err)
	}
	return nil
}

// Probe sends the readiness probe and waits up to the probe deadline for the
// round trip. A session that does not answer in time (busy or not started)
// reports an error; a session that answers reports its Ready flag.
func (s *EngineSession) Probe(ctx context.Context) (bool, error) {
	ping, err := protocol.EncodePing()
	if err != nil {
		return false, err
	}

	timer := time.NewTimer(s.timeouts.Probe)
	defer timer.Stop()
	reply := make(chan []byte, 1)

	select {
	case s.inbox <- inbound{data: ping, reply: reply}:
	case <-timer.C:
		return false, domain.E(domain.KindWorkerUnavailable, "session.Probe", domain.ErrDeadlineExceeded)
	case <-ctx.Done():
		return false, domain.E(domain.KindWorkerUnavailable, "session.Probe", ctx.Err())
	}

	select {
	case data := <-reply:
		pong, err := protocol.DecodePong(data)
		if err != nil {
			return false, err
		}
		return pong.Ready, nil
	case <-timer.C:
		return false, domain.E(domain.KindWorkerUnavailable, "session.Probe", domain.ErrDeadlineExceeded)
	case <-ctx.Done():
		return false, domain.E(domain.KindWorkerUnavailable, "session.Probe", ctx.Err())
	}
}

func (s *EngineSession) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			logger.Info.Printf("engine session loop shutting down")
			return
		case msg := <-s.inbox:
			s.handle(ctx, msg)
		}
	}
}

func (s *EngineSession) handle(ctx context.Context, msg inbound) {
	typ, err := protocol.PeekType(msg.data)
	if err != nil {
		logger.Error.Printf("session: dropping malformed envelope: %v", err)
		return
	}

	switch typ {
	case protocol.TypePing:
		if msg.reply == nil {
			return
		}
		pong, err := protocol.EncodePong(s.State() == domain.StateReady)
		if err != nil {
			logger.Error.Printf("session: encode pong: %v", err)
			return
		}
		select {
		case msg.reply <- pong:
		default:
		}

	case protocol.TypeTranscodeRequest:
		job, err := protocol.DecodeRequest(msg.data)
		if err != nil {
			logger.Error.Printf("session: dropping undecodable job: %v", err)
			return
		}
		res := s.runJob(ctx, job)

		s.mu.Lock()
		s.jobsSinceLoad++
		s.mu.Unlock()

		// The result is emitted regardless of outcome; the coordinator owns
		// the deadline and discards anything it no longer waits for.
		data, err := protocol.EncodeComplete(res)
		if err != nil {
			logger.Error.Printf("session: encode completion for job %s: %v", job.ID, err)
			return
		}
		s.bus.Publish(data)

	default:
		logger.Warn.Printf("session: unknown message type %q", logger.SanitizeForLog(typ))
	}
}

// runJob executes one job: fetch the source, hand the bytes to the engine,
// name the output. Never returns without a result.
func (s *EngineSession) runJob(ctx context.Context, job domain.TranscodeJob) domain.TranscodeResult {
	fail := func(kind domain.ErrorKind, err error) domain.TranscodeResult {
		logger.Warn.Printf("job %s failed (%s): %v", job.ID, kind, err)
		return domain.TranscodeResult{JobID: job.ID, Err: err.Error(), ErrKind: kind}
	}

	if s.State() != domain.StateReady {
		return fail(domain.KindWorkerUnavailable, errors.New("engine session not ready"))
	}

	input, err := s.fetchSource(ctx, job.SourceURL)
	if err != nil {
		return fail(domain.KindFetch, err)
	}

	output, err := s.engine.Transcode(ctx, input)
	if err != nil {
		return fail(domain.KindTranscode, err)
	}

	return domain.TranscodeResult{
		JobID:    job.ID,
		OK:       true,
		Filename: job.OutputBaseName + ".wav",
		Bytes:    output,
	}
}

func (s *EngineSession) fetchSource(ctx context.Context, sourceURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.fetch.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", logger.RedactURL(sourceURL), err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", logger.RedactURL(sourceURL), resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", logger.RedactURL(sourceURL), err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("fetch %s: zero-length payload", logger.RedactURL(sourceURL))
	}
	return data, nil
}

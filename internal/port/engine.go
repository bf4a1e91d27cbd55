package port

import "context"

// Engine is the transcoding engine behind the session. The engine owns a
// single working storage and execution context, so Transcode is not safe for
// concurrent calls; callers must serialize (the engine session's loop does).
type Engine interface {
	// Artifacts lists the engine's resource artifacts checked during pre-flight.
	Artifacts() []string
	// Verify runs the engine's binary in isolation to validate it before the
	// load path is ever invoked.
	Verify(ctx context.Context) error
	// Load brings the engine up. Called once per successful session load.
	Load(ctx context.Context) error
	// Transcode materializes input under a fixed temporary name, runs the
	// fixed normalization (strip video, mono, 48 kHz, s16 PCM, WAV), reads the
	// output back and cleans up both temporaries best-effort.
	Transcode(ctx context.Context, input []byte) ([]byte, error)
}

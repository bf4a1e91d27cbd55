package domain

import (
	"path/filepath"
	"strings"
)

// AudioCandidate is one discovered audio resource with enough metadata to
// attempt a download. Candidates are immutable and unique by Title within one
// resolution result.
type AudioCandidate struct {
	Title           string
	URL             string
	Filename        string
	LicenseMetadata map[string]string
}

// audioExts is the known audio extension set, consulted when an endpoint omits
// the MIME type and when filtering bare file titles in the list stage.
var audioExts = map[string]bool{
	".ogg": true, ".oga": true, ".opus": true,
	".mp3": true, ".wav": true, ".flac": true,
	".m4a": true, ".aac": true, ".spx": true,
	".mid": true, ".webm": true,
}

// audioMIMEs is the resolver's MIME allowlist. It takes precedence over
// extension matching when the endpoint reports a MIME type.
var audioMIMEs = map[string]bool{
	"audio/ogg":       true,
	"application/ogg": true,
	"audio/mpeg":      true,
	"audio/mp4":       true,
	"audio/wav":       true,
	"audio/wave":      true,
	"audio/x-wav":     true,
	"audio/flac":      true,
	"audio/x-flac":    true,
	"audio/webm":      true,
	"audio/midi":      true,
	"audio/aac":       true,
}

// HasAudioExtension reports whether name ends in a known audio extension.
func HasAudioExtension(name string) bool {
	return audioExts[strings.ToLower(filepath.Ext(name))]
}

// IsAudioMIME reports whether mime is in the audio allowlist. Parameters after
// a semicolon (e.g. "audio/ogg; codecs=vorbis") are ignored.
func IsAudioMIME(mime string) bool {
	if idx := strings.Index(mime, ";"); idx != -1 {
		mime = mime[:idx]
	}
	return audioMIMEs[strings.TrimSpace(strings.ToLower(mime))]
}

// AcceptAudio applies the resolver filter: the MIME allowlist decides when a
// MIME type is present; otherwise the extension set decides.
func AcceptAudio(mime, name string) bool {
	if strings.TrimSpace(mime) != "" {
		return IsAudioMIME(mime)
	}
	return HasAudioExtension(name)
}

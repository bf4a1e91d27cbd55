// Package protocol defines the envelope contract between the job coordinator
// and the engine session. Every message crosses the boundary as marshaled
// bytes: requests travel on a per-job channel, completions on a broadcast
// channel, and the readiness probe on its own round trip. Payload bytes ride
// inside the completion envelope base64-encoded by encoding/json and are
// reconstructed verbatim on the far side.
package protocol

import (
	"encoding/json"
	"fmt"

	"wikiaudio/internal/domain"
)

// Message type tags.
const (
	TypeTranscodeRequest  = "TRANSCODE_REQUEST"
	TypeTranscodeComplete = "TRANSCODE_COMPLETE"
	TypePing              = "PING"
	TypePong              = "PONG"
)

// Envelope carries the type tag; the concrete message is decoded in a second
// pass once the tag is known.
type Envelope struct {
	Type string `json:"type"`
}

// TranscodeRequest is the single job descriptor sent on a job channel.
type TranscodeRequest struct {
	Type           string `json:"type"`
	JobID          string `json:"jobId"`
	SourceURL      string `json:"sourceUrl"`
	OutputBaseName string `json:"outputBaseName"`
}

// TranscodeComplete is broadcast for every job, success or failure. ErrorKind
// rides along so the coordinator can surface the right typed failure without
// parsing the error string.
type TranscodeComplete struct {
	Type      string `json:"type"`
	JobID     string `json:"jobId"`
	OK        bool   `json:"ok"`
	Filename  string `json:"filename,omitempty"`
	Bytes     []byte `json:"bytes,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"errorKind,omitempty"`
}

// Ping is the readiness probe request.
type Ping struct {
	Type string `json:"type"`
}

// Pong is the readiness probe response. Ready is false while the session has
// not finished loading.
type Pong struct {
	Type  string `json:"type"`
	Ready bool   `json:"ready"`
}

// EncodeRequest marshals a job into a request envelope.
func EncodeRequest(job domain.TranscodeJob) ([]byte, error) {
	data, err := json.Marshal(TranscodeRequest{
		Type:           TypeTranscodeRequest,
		JobID:          job.ID,
		SourceURL:      job.SourceURL,
		OutputBaseName: job.OutputBaseName,
	})
	if err != nil {
		return nil, domain.E(domain.KindSerialization, "protocol.EncodeRequest", err)
	}
	return data, nil
}

// DecodeRequest unmarshals a request envelope back into a job.
func DecodeRequest(data []byte) (domain.TranscodeJob, error) {
	var req TranscodeRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return domain.TranscodeJob{}, domain.E(domain.KindSerialization, "protocol.DecodeRequest", err)
	}
	if req.Type != TypeTranscodeRequest {
		return domain.TranscodeJob{}, domain.Errorf(domain.KindSerialization, "protocol.DecodeRequest",
			"unexpected message type %q", req.Type)
	}
	return domain.TranscodeJob{
		ID:             req.JobID,
		SourceURL:      req.SourceURL,
		OutputBaseName: req.OutputBaseName,
	}, nil
}

// EncodeComplete marshals a result into a completion envelope.
func EncodeComplete(res domain.TranscodeResult) ([]byte, error) {
	data, err := json.Marshal(TranscodeComplete{
		Type:      TypeTranscodeComplete,
		JobID:     res.JobID,
		OK:        res.OK,
		Filename:  res.Filename,
		Bytes:     res.Bytes,
		Error:     res.Err,
		ErrorKind: string(res.ErrKind),
	})
	if err != nil {
		return nil, domain.E(domain.KindSerialization, "protocol.EncodeComplete", err)
	}
	return data, nil
}

// DecodeComplete reconstructs a result, payload bytes included, from a
// completion envelope.
func DecodeComplete(data []byte) (domain.TranscodeResult, error) {
	var msg TranscodeComplete
	if err := json.Unmarshal(data, &msg); err != nil {
		return domain.TranscodeResult{}, domain.E(domain.KindSerialization, "protocol.DecodeComplete", err)
	}
	if msg.Type != TypeTranscodeComplete {
		return domain.TranscodeResult{}, domain.Errorf(domain.KindSerialization, "protocol.DecodeComplete",
			"unexpected message type %q", msg.Type)
	}
	return domain.TranscodeResult{
		JobID:    msg.JobID,
		OK:       msg.OK,
		Filename: msg.Filename,
		Bytes:    msg.Bytes,
		Err:      msg.Error,
		ErrKind:  domain.ErrorKind(msg.ErrorKind),
	}, nil
}

// EncodePing marshals the readiness probe request.
func EncodePing() ([]byte, error) {
	data, err := json.Marshal(Ping{Type: TypePing})
	if err != nil {
		return nil, domain.E(domain.KindSerialization, "protocol.EncodePing", err)
	}
	return data, nil
}

// EncodePong marshals the readiness probe response.
func EncodePong(ready bool) ([]byte, error) {
	data, err := json.Marshal(Pong{Type: TypePong, Ready: ready})
	if err != nil {
		return nil, domain.E(domain.KindSerialization, "protocol.EncodePong", err)
	}
	return data, nil
}

// DecodePong unmarshals a readiness probe response.
func DecodePong(data []byte) (Pong, error) {
	var pong Pong
	if err := json.Unmarshal(data, &pong); err != nil {
		return Pong{}, domain.E(domain.KindSerialization, "protocol.DecodePong", err)
	}
	if pong.Type != TypePong {
		return Pong{}, domain.Errorf(domain.KindSerialization, "protocol.DecodePong",
			"unexpected message type %q", pong.Type)
	}
	return pong, nil
}

// PeekType reads only the type tag of an incoming envelope.
func PeekType(data []byte) (string, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", domain.E(domain.KindSerialization, "protocol.PeekType",
			fmt.Errorf("malformed envelope: %w", err))
	}
	return env.Type, nil
}

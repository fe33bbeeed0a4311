// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_type

import (
	"context"
	"time"
)

// =============================================================================
// Utterance
// =============================================================================

// Utterance is one speakable fragment of a bot reply. It is created by the
// segmenter, synthesized as a unit and played as a unit. Never mutated after
// creation.
type Utterance struct {
	// Index is monotonically increasing per reply, starting at 0 (or 1 when
	// a pre-rendered filler occupies slot 0).
	Index int
	Text  string
	// Final marks the trailing remainder of a reply that had no closing
	// delimiter.
	Final bool
}

// =============================================================================
// Remote service contracts
// =============================================================================

// Synthesizer converts a short text into a complete audio buffer
// (16-bit PCM WAV at the telephony sample rate).
type Synthesizer interface {
	Name() string
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Transcriber converts a recorded audio file into a transcript. An empty
// string is a valid, non-error result.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// ReplyStream is a lazy, finite, non-restartable sequence of text fragments
// that concatenate into a natural-language reply. Next returns io.EOF when
// the stream is exhausted.
type ReplyStream interface {
	Next() (string, error)
	Close() error
}

// ReplyGenerator produces a reply stream for normalized caller text,
// correlated with the conversation's memory via conversationID.
type ReplyGenerator interface {
	Generate(ctx context.Context, text string, conversationID string) (ReplyStream, error)
}

// =============================================================================
// Telephony control plane
// =============================================================================

// Telephony is the session-oriented control channel for a single call leg.
// All operations carry bounded timeouts via ctx.
type Telephony interface {
	Answer(ctx context.Context, channelID string) error
	// EnableTalkDetect arms caller speech detection on the channel; the
	// control plane then raises talking events that drive speech-end
	// detection and interruption.
	EnableTalkDetect(ctx context.Context, channelID string) error
	// Play starts playback of a previously dropped sound file and returns
	// the control plane's playback id.
	Play(ctx context.Context, channelID string, soundID string) (string, error)
	StopPlayback(ctx context.Context, playbackID string) error
	// Record starts recording caller audio and returns the recording name.
	Record(ctx context.Context, channelID string, name string, maxDuration time.Duration) (string, error)
	StopRecording(ctx context.Context, recordingID string) error
	Hangup(ctx context.Context, channelID string) error
}

// =============================================================================
// Transcript
// =============================================================================

type Speaker string

const (
	SpeakerBot  Speaker = "bot"
	SpeakerUser Speaker = "user"
)

// TranscriptEntry is one ordered line of the per-call transcript.
type TranscriptEntry struct {
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

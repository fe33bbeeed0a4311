// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_session

import (
	"sync"
	"time"

	internal_type "github.com/Askhat-cmd/langchain-vox-bot/internal/type"
)

// Transcript accumulates what was said on a call, in order. Bot entries are
// recorded when playback is committed, not when text is generated, so an
// interrupted reply never shows lines the caller did not hear.
type Transcript struct {
	mu      sync.Mutex
	entries []internal_type.TranscriptEntry
	clock   func() time.Time
}

func NewTranscript() *Transcript {
	return &Transcript{clock: time.Now}
}

func (t *Transcript) Append(speaker internal_type.Speaker, text string) {
	if text == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, internal_type.TranscriptEntry{
		Speaker:   speaker,
		Text:      text,
		Timestamp: t.clock(),
	})
}

func (t *Transcript) Snapshot() []internal_type.TranscriptEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]internal_type.TranscriptEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

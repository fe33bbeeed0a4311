// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_filler

import (
	"context"
	"math/rand"
	"sync"

	internal_type "github.com/Askhat-cmd/langchain-vox-bot/internal/type"
	"github.com/Askhat-cmd/langchain-vox-bot/pkg/commons"
)

// DefaultPhrases are short acknowledgments played immediately after the
// caller stops speaking, masking reply generation latency.
var DefaultPhrases = []string{"Хм,", "Так,", "Сейчас,"}

// Cache holds pre-rendered filler audio so picking one costs nothing at
// call time. Phrases that fail to render are skipped; an empty cache just
// means no filler is played.
type Cache struct {
	logger commons.Logger

	mu      sync.RWMutex
	entries []entry
}

type entry struct {
	text  string
	audio []byte
}

func NewCache(logger commons.Logger) *Cache {
	return &Cache{logger: logger}
}

// Warm renders every phrase through the synthesizer. Safe to call again to
// re-render after a synthesizer change.
func (c *Cache) Warm(ctx context.Context, synth internal_type.Synthesizer, phrases []string) {
	if len(phrases) == 0 {
		phrases = DefaultPhrases
	}
	entries := make([]entry, 0, len(phrases))
	for _, text := range phrases {
		audio, err := synth.Synthesize(ctx, text)
		if err != nil {
			c.logger.Warnw("skipping filler phrase, synthesis failed", "text", text, "error", err)
			continue
		}
		entries = append(entries, entry{text: text, audio: audio})
	}
	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()
	c.logger.Infow("filler cache warmed", "phrases", len(entries))
}

// Pick returns a random pre-rendered filler, or ok=false when the cache is
// empty.
func (c *Cache) Pick() (text string, audio []byte, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.entries) == 0 {
		return "", nil, false
	}
	e := c.entries[rand.Intn(len(c.entries))]
	return e.text, e.audio, true
}

// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_assembler

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internal_type "github.com/Askhat-cmd/langchain-vox-bot/internal/type"
	"github.com/Askhat-cmd/langchain-vox-bot/pkg/commons"
)

func newTestLogger() commons.Logger {
	l, _ := commons.NewApplicationLogger()
	return l
}

type collector struct {
	utterances []internal_type.Utterance
}

func (c *collector) emit(u internal_type.Utterance) {
	c.utterances = append(c.utterances, u)
}

func newTestSegmenter(cfg Config) (*Segmenter, *collector) {
	c := &collector{}
	return NewSegmenter(newTestLogger(), cfg, c.emit), c
}

func syncConfig() Config {
	cfg := DefaultConfig()
	cfg.FlushDebounce = 0
	return cfg
}

// --- Delimiter Tests ---

func TestFeed_DelimiterCutsUtterance(t *testing.T) {
	s, c := newTestSegmenter(syncConfig())
	s.Feed("Привет!|Как дела?|")

	require.Len(t, c.utterances, 2)
	assert.Equal(t, "Привет!", c.utterances[0].Text)
	assert.Equal(t, "Как дела?", c.utterances[1].Text)
	assert.Equal(t, 0, c.utterances[0].Index)
	assert.Equal(t, 1, c.utterances[1].Index)
	assert.False(t, c.utterances[0].Final)
}

func TestFeed_DelimiterSplitAcrossFragments(t *testing.T) {
	s, c := newTestSegmenter(syncConfig())
	s.Feed("Hello ")
	s.Feed("world")
	require.Empty(t, c.utterances)

	s.Feed("|next")
	require.Len(t, c.utterances, 1)
	assert.Equal(t, "Hello world", c.utterances[0].Text)
}

func TestFeed_EmptySegmentDoesNotBurnIndex(t *testing.T) {
	s, c := newTestSegmenter(syncConfig())
	s.Feed("one|| |two|")

	require.Len(t, c.utterances, 2)
	assert.Equal(t, 0, c.utterances[0].Index)
	assert.Equal(t, 1, c.utterances[1].Index)
	assert.Equal(t, 2, s.NextIndex())
}

func TestFeed_WhitespaceTrimmed(t *testing.T) {
	s, c := newTestSegmenter(syncConfig())
	s.Feed("  padded text  |")

	require.Len(t, c.utterances, 1)
	assert.Equal(t, "padded text", c.utterances[0].Text)
}

// --- Max Chunk Tests ---

func TestFeed_MaxChunkCutsAtPunctuation(t *testing.T) {
	cfg := syncConfig()
	cfg.MaxChunk = 20
	cfg.Tolerance = 10
	s, c := newTestSegmenter(cfg)

	// Comma at rune 14, inside the back-search window [10, 30).
	s.Feed("aaaa bbbb cccc, dddd eeee ffff gggg")

	require.NotEmpty(t, c.utterances)
	assert.Equal(t, "aaaa bbbb cccc,", c.utterances[0].Text)
}

func TestFeed_MaxChunkHardCutWithoutPunctuation(t *testing.T) {
	cfg := syncConfig()
	cfg.MaxChunk = 10
	cfg.Tolerance = 3
	s, c := newTestSegmenter(cfg)

	s.Feed(strings.Repeat("x", 25))

	require.Len(t, c.utterances, 2)
	assert.Equal(t, strings.Repeat("x", 10), c.utterances[0].Text)
	assert.Equal(t, strings.Repeat("x", 10), c.utterances[1].Text)
}

// --- Flush Tests ---

func TestFlush_EmitsTailAsFinal(t *testing.T) {
	s, c := newTestSegmenter(syncConfig())
	s.Feed("first|tail without delimiter")

	flushed := false
	s.Flush(func() { flushed = true })

	require.Len(t, c.utterances, 2)
	assert.Equal(t, "tail without delimiter", c.utterances[1].Text)
	assert.True(t, c.utterances[1].Final)
	assert.True(t, flushed)
}

func TestFlush_EmptyTailStillSignalsCompletion(t *testing.T) {
	s, c := newTestSegmenter(syncConfig())
	s.Feed("complete|")

	flushed := false
	s.Flush(func() { flushed = true })

	assert.Len(t, c.utterances, 1)
	assert.True(t, flushed)
}

func TestFlush_DebounceDelaysEmission(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FlushDebounce = 50 * time.Millisecond
	s, c := newTestSegmenter(cfg)
	s.Feed("tail")

	done := make(chan struct{})
	s.Flush(func() { close(done) })
	assert.Empty(t, c.utterances)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("flush never fired")
	}
	require.Len(t, c.utterances, 1)
	assert.Equal(t, "tail", c.utterances[0].Text)
}

func TestFlush_CancelledByLateFragment(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FlushDebounce = 60 * time.Millisecond
	s, c := newTestSegmenter(cfg)
	s.Feed("partial")

	s.Flush(func() { t.Error("flush fired despite a late fragment") })
	s.Feed(" sentence|")

	time.Sleep(150 * time.Millisecond)
	require.Len(t, c.utterances, 1)
	assert.Equal(t, "partial sentence", c.utterances[0].Text)
	assert.False(t, c.utterances[0].Final)
}

// --- Reset Tests ---

func TestReset_DiscardsBufferAndRestartsIndex(t *testing.T) {
	s, c := newTestSegmenter(syncConfig())
	s.Feed("spoken|buffered partial")
	require.Len(t, c.utterances, 1)

	s.Reset(1)
	s.Feed("fresh|")

	require.Len(t, c.utterances, 2)
	assert.Equal(t, "fresh", c.utterances[1].Text)
	assert.Equal(t, 1, c.utterances[1].Index)
}

// --- Round Trip ---

func TestFeed_ConcatenationPreservesText(t *testing.T) {
	s, c := newTestSegmenter(syncConfig())
	reply := "Здравствуйте!|Сегодня отличная погода, солнечно и тепло.|Чем ещё я могу помочь?"
	for _, fragment := range strings.SplitAfter(reply, " ") {
		s.Feed(fragment)
	}
	s.Flush(nil)

	var joined []string
	for _, u := range c.utterances {
		joined = append(joined, u.Text)
	}
	expected := strings.Join(strings.Fields(strings.ReplaceAll(reply, "|", " ")), " ")
	assert.Equal(t, expected, strings.Join(strings.Fields(strings.Join(joined, " ")), " "))
}

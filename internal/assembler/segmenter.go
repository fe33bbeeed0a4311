// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_assembler

import (
	"strings"
	"sync"
	"time"

	internal_type "github.com/Askhat-cmd/langchain-vox-bot/internal/type"
	"github.com/Askhat-cmd/langchain-vox-bot/pkg/commons"
)

// sentencePunctuation is what the max-length back-search accepts as a cut
// point when no explicit delimiter has arrived yet.
const sentencePunctuation = ".!?,;:…"

type Config struct {
	// Delimiter is the explicit utterance separator the reply generator is
	// prompted to produce at the end of every sentence.
	Delimiter rune
	// MaxChunk caps utterance length (in runes). Reaching it triggers a
	// back-search for punctuation within Tolerance, then a hard cut.
	MaxChunk  int
	Tolerance int
	// FlushDebounce delays the stream-end flush so a trailing delimiter
	// still in flight can land first.
	FlushDebounce time.Duration
}

func DefaultConfig() Config {
	return Config{
		Delimiter:     '|',
		MaxChunk:      75,
		Tolerance:     20,
		FlushDebounce: 200 * time.Millisecond,
	}
}

// Segmenter accumulates reply-stream fragments and cuts them into discrete
// utterances: eagerly on the explicit delimiter, defensively at MaxChunk so
// first audio is never delayed by a run-on sentence. Emission is a
// synchronous callback; the segmenter performs no I/O of its own.
type Segmenter struct {
	mu     sync.Mutex
	cfg    Config
	logger commons.Logger
	emit   func(internal_type.Utterance)

	buf        []rune
	next       int
	flushTimer *time.Timer
	onFlushed  func()
}

func NewSegmenter(logger commons.Logger, cfg Config, emit func(internal_type.Utterance)) *Segmenter {
	if cfg.Delimiter == 0 {
		cfg.Delimiter = '|'
	}
	if cfg.MaxChunk <= 0 {
		cfg.MaxChunk = DefaultConfig().MaxChunk
	}
	return &Segmenter{cfg: cfg, logger: logger, emit: emit}
}

// Feed appends a fragment and emits every utterance that became complete.
// A fragment arriving cancels a pending stream-end flush.
func (s *Segmenter) Feed(fragment string) {
	s.mu.Lock()
	s.stopFlushTimerLocked()
	s.buf = append(s.buf, []rune(fragment)...)
	out := s.drainLocked()
	s.mu.Unlock()

	for _, u := range out {
		s.emit(u)
	}
}

// Flush signals end of the reply stream. After the debounce window the
// remaining buffer (if any) is emitted as the final utterance and onFlushed
// is invoked. Feed or Reset before the timer fires cancels the flush.
func (s *Segmenter) Flush(onFlushed func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopFlushTimerLocked()
	s.onFlushed = onFlushed
	if s.cfg.FlushDebounce <= 0 {
		s.fireFlushLocked()
		return
	}
	s.flushTimer = time.AfterFunc(s.cfg.FlushDebounce, func() {
		s.mu.Lock()
		s.fireFlushLocked()
		s.mu.Unlock()
	})
}

// Reset discards any buffered partial utterance and restarts indexing at
// startIndex (1 when a pre-rendered filler occupies slot 0, otherwise 0).
// Used on interruption and at the start of every new reply.
func (s *Segmenter) Reset(startIndex int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.buf) > 0 {
		s.logger.Debugf("segmenter: discarding %d buffered runes", len(s.buf))
	}
	s.stopFlushTimerLocked()
	s.onFlushed = nil
	s.buf = nil
	s.next = startIndex
}

// NextIndex reports the index the next emitted utterance will carry.
func (s *Segmenter) NextIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

func (s *Segmenter) stopFlushTimerLocked() {
	if s.flushTimer != nil {
		s.flushTimer.Stop()
		s.flushTimer = nil
	}
}

func (s *Segmenter) fireFlushLocked() {
	s.flushTimer = nil
	tail := strings.TrimSpace(string(s.buf))
	s.buf = nil

	var final *internal_type.Utterance
	if tail != "" {
		final = &internal_type.Utterance{Index: s.next, Text: tail, Final: true}
		s.next++
	}
	done := s.onFlushed
	s.onFlushed = nil

	// Emit outside the lock.
	s.mu.Unlock()
	if final != nil {
		s.emit(*final)
	}
	if done != nil {
		done()
	}
	s.mu.Lock()
}

// drainLocked cuts every complete utterance out of the buffer.
func (s *Segmenter) drainLocked() []internal_type.Utterance {
	var out []internal_type.Utterance
	for {
		if i := indexRune(s.buf, s.cfg.Delimiter); i >= 0 {
			out = s.appendUtterance(out, string(s.buf[:i]), false)
			s.buf = s.buf[i+1:]
			continue
		}
		if len(s.buf) >= s.cfg.MaxChunk {
			cut := s.cutPoint()
			out = s.appendUtterance(out, string(s.buf[:cut]), false)
			s.buf = s.buf[cut:]
			continue
		}
		return out
	}
}

// cutPoint searches backward from MaxChunk for the nearest sentence-level
// punctuation within the tolerance window; without one, it hard-cuts at
// MaxChunk.
func (s *Segmenter) cutPoint() int {
	upper := s.cfg.MaxChunk + s.cfg.Tolerance
	if upper > len(s.buf) {
		upper = len(s.buf)
	}
	lower := s.cfg.MaxChunk - s.cfg.Tolerance
	if lower < 1 {
		lower = 1
	}
	for i := upper - 1; i >= lower; i-- {
		if strings.ContainsRune(sentencePunctuation, s.buf[i]) {
			return i + 1
		}
	}
	return s.cfg.MaxChunk
}

func (s *Segmenter) appendUtterance(out []internal_type.Utterance, text string, final bool) []internal_type.Utterance {
	text = strings.TrimSpace(text)
	if text == "" {
		// Consumed but nothing speakable; the index is not burned.
		return out
	}
	u := internal_type.Utterance{Index: s.next, Text: text, Final: final}
	s.next++
	return append(out, u)
}

func indexRune(rs []rune, r rune) int {
	for i, c := range rs {
		if c == r {
			return i
		}
	}
	return -1
}

// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_playback

import (
	"sync"

	"github.com/Askhat-cmd/langchain-vox-bot/pkg/commons"
)

// PlayFunc hands one audio buffer to the telephony control plane and
// returns the control plane's playback id.
type PlayFunc func(index int, audio []byte) (playbackID string, err error)

// Queue buffers completed (utterance index, audio) pairs and releases them
// to the control plane strictly in increasing index order, one playback at
// a time, regardless of the order synthesis jobs complete in.
type Queue struct {
	// mu guards the buffered state and is never held across a control-plane
	// call; releaseMu serializes those calls against each other and against
	// Clear, so a playback started mid-release cannot escape a reset.
	mu        sync.Mutex
	releaseMu sync.Mutex

	logger commons.Logger
	play   PlayFunc
	// onIdle fires (outside the locks) whenever a playback finishes and
	// nothing is buffered or playing.
	onIdle func()

	next      int
	buffered  map[int][]byte
	skipped   map[int]bool
	playing   bool
	currentID string
}

func NewQueue(logger commons.Logger, play PlayFunc, onIdle func()) *Queue {
	return &Queue{
		logger:   logger,
		play:     play,
		onIdle:   onIdle,
		buffered: make(map[int][]byte),
		skipped:  make(map[int]bool),
	}
}

// Enqueue registers completed audio for an utterance index. An index below
// the next expected one is stale (it predates a cancellation reset) and is
// discarded rather than released out of order.
func (q *Queue) Enqueue(index int, audio []byte) {
	q.mu.Lock()
	if index < q.next {
		q.logger.Warnf("playback: discarding stale entry index=%d next=%d", index, q.next)
		q.mu.Unlock()
		return
	}
	q.buffered[index] = audio
	q.mu.Unlock()
	q.release()
}

// Skip marks an index as permanently absent (its synthesis job failed) so
// ordering can advance past it.
func (q *Queue) Skip(index int) {
	q.mu.Lock()
	if index < q.next {
		q.mu.Unlock()
		return
	}
	q.skipped[index] = true
	q.mu.Unlock()
	q.release()
}

// OnPlaybackFinished is fed every playback-finished notification for the
// call; ids that do not match the queue's active playback (e.g. one stopped
// by a barge-in before the notification landed) are ignored.
func (q *Queue) OnPlaybackFinished(playbackID string) {
	q.mu.Lock()
	if !q.playing || playbackID != q.currentID {
		q.mu.Unlock()
		return
	}
	q.playing = false
	q.currentID = ""
	q.mu.Unlock()

	q.release()
	if q.Idle() && q.onIdle != nil {
		q.onIdle()
	}
}

// Clear discards all buffered entries and resets the expected-index counter
// so a fresh reply restarts at 0. It waits out any release in flight and
// returns the id of the playback that was active, if any, so the caller can
// stop it. Used exclusively on interruption; calling it with nothing
// pending is a no-op.
func (q *Queue) Clear() string {
	q.releaseMu.Lock()
	defer q.releaseMu.Unlock()
	q.mu.Lock()
	defer q.mu.Unlock()

	id := q.currentID
	q.buffered = make(map[int][]byte)
	q.skipped = make(map[int]bool)
	q.next = 0
	q.playing = false
	q.currentID = ""
	return id
}

// CurrentPlaybackID returns the id of the active playback, or "".
func (q *Queue) CurrentPlaybackID() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.currentID
}

// Idle reports whether nothing is buffered or playing.
func (q *Queue) Idle() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.idleLocked()
}

func (q *Queue) idleLocked() bool {
	return !q.playing && len(q.buffered) == 0
}

// release advances past skipped indices and, when not already playing,
// releases the next expected entry and nothing beyond it; the following
// entry waits for this one's playback-finished notification. The playing
// flag is reserved before the control-plane call so concurrent callers
// cannot double-release, and the data lock is dropped while the call runs.
func (q *Queue) release() {
	// A release already in flight either starts a playback (making any
	// newly buffered entry wait for playback-finished) or loops and picks
	// the new entry up itself, so contention here means nothing to do.
	if !q.releaseMu.TryLock() {
		return
	}
	defer q.releaseMu.Unlock()

	for {
		q.mu.Lock()
		for q.skipped[q.next] {
			delete(q.skipped, q.next)
			q.next++
		}
		if q.playing {
			q.mu.Unlock()
			return
		}
		audio, ok := q.buffered[q.next]
		if !ok {
			q.mu.Unlock()
			return
		}
		delete(q.buffered, q.next)
		index := q.next
		q.next++
		q.playing = true
		q.mu.Unlock()

		id, err := q.play(index, audio)

		q.mu.Lock()
		if err != nil {
			q.logger.Errorf("playback: release of index %d failed: %v", index, err)
			q.playing = false
			q.mu.Unlock()
			continue
		}
		q.currentID = id
		q.mu.Unlock()
		return
	}
}

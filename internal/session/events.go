// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_session

import (
	internal_speechend "github.com/Askhat-cmd/langchain-vox-bot/internal/speechend"
)

// event is the session inbox message. Telephony notifications and internal
// pipeline completions arrive through the same channel so every state
// transition happens on the session's own goroutine.
type event interface{ isEvent() }

type evPlaybackStarted struct{ playbackID string }

type evPlaybackFinished struct{ playbackID string }

type evRecordingFinished struct{ name string }

type evTalkingStarted struct{}

type evTalkingStopped struct{}

// evHangup carries channel teardown, whether caller initiated or our own.
type evHangup struct{ reason string }

// evSpeechEnd is posted by the speech-end detector. seq identifies the
// recording attempt so a late timer from a stopped detector is ignored.
type evSpeechEnd struct {
	seq    int
	reason internal_speechend.Reason
}

type evTranscriptReady struct {
	name string
	text string
	err  error
}

// evReplyFinished marks the end of one reply stream. seq identifies the
// reply generation so a cancelled drain cannot close out its successor.
type evReplyFinished struct {
	seq int
	err error
}

// evJobSettled wakes the loop after any synthesis job delivers or fails.
type evJobSettled struct{}

type evQueueIdle struct{}

type evInactivity struct{}

func (evPlaybackStarted) isEvent()  {}
func (evPlaybackFinished) isEvent() {}
func (evRecordingFinished) isEvent() {}
func (evTalkingStarted) isEvent()   {}
func (evTalkingStopped) isEvent()   {}
func (evHangup) isEvent()           {}
func (evSpeechEnd) isEvent()        {}
func (evTranscriptReady) isEvent()  {}
func (evReplyFinished) isEvent()    {}
func (evJobSettled) isEvent()       {}
func (evQueueIdle) isEvent()        {}
func (evInactivity) isEvent()       {}

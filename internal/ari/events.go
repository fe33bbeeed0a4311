// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_ari

import "strings"

// Event types delivered over the ARI websocket that the pipeline reacts to.
const (
	EventStasisStart           = "StasisStart"
	EventStasisEnd             = "StasisEnd"
	EventChannelDestroyed      = "ChannelDestroyed"
	EventChannelTalkingStarted = "ChannelTalkingStarted"
	EventChannelTalkingStopped = "ChannelTalkingStopped"
	EventPlaybackStarted       = "PlaybackStarted"
	EventPlaybackFinished      = "PlaybackFinished"
	EventRecordingFinished     = "RecordingFinished"
	EventRecordingFailed       = "RecordingFailed"
)

type Caller struct {
	Name   string `json:"name"`
	Number string `json:"number"`
}

type Channel struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	State  string `json:"state"`
	Caller Caller `json:"caller"`
}

type Playback struct {
	ID        string `json:"id"`
	MediaURI  string `json:"media_uri"`
	TargetURI string `json:"target_uri"`
	State     string `json:"state"`
}

type Recording struct {
	Name      string `json:"name"`
	Format    string `json:"format"`
	State     string `json:"state"`
	TargetURI string `json:"target_uri"`
	Cause     string `json:"cause"`
}

// Event is the subset of the ARI event envelope the pipeline consumes.
// Exactly one of Channel, Playback or Recording is set depending on Type.
type Event struct {
	Type      string     `json:"type"`
	Timestamp string     `json:"timestamp"`
	Channel   *Channel   `json:"channel,omitempty"`
	Playback  *Playback  `json:"playback,omitempty"`
	Recording *Recording `json:"recording,omitempty"`
}

// ChannelID resolves the channel an event belongs to. Playback and
// recording events carry it inside a "channel:<id>" target URI.
func (e *Event) ChannelID() string {
	if e.Channel != nil {
		return e.Channel.ID
	}
	if e.Playback != nil {
		return strings.TrimPrefix(e.Playback.TargetURI, "channel:")
	}
	if e.Recording != nil {
		return strings.TrimPrefix(e.Recording.TargetURI, "channel:")
	}
	return ""
}

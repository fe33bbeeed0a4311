// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_session

import (
	"context"
	"strings"
	"sync"

	internal_ari "github.com/Askhat-cmd/langchain-vox-bot/internal/ari"
	"github.com/Askhat-cmd/langchain-vox-bot/pkg/commons"
)

// Registry tracks live call sessions and routes telephony events to the
// session owning the channel. Events for unknown channels are dropped.
type Registry struct {
	logger commons.Logger
	cfg    Config
	deps   Deps
	parent context.Context

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry(parent context.Context, logger commons.Logger, cfg Config, deps Deps) *Registry {
	return &Registry{
		logger:   logger,
		cfg:      cfg,
		deps:     deps,
		parent:   parent,
		sessions: make(map[string]*Session),
	}
}

// Dispatch routes one parsed ARI event. Called from the websocket read
// goroutine.
func (r *Registry) Dispatch(e internal_ari.Event) {
	channelID := e.ChannelID()

	if e.Type == internal_ari.EventStasisStart {
		r.startSession(e)
		return
	}

	r.mu.RLock()
	session := r.sessions[channelID]
	r.mu.RUnlock()
	if session == nil {
		return
	}

	switch e.Type {
	case internal_ari.EventPlaybackStarted:
		session.Deliver(evPlaybackStarted{playbackID: e.Playback.ID})
	case internal_ari.EventPlaybackFinished:
		session.Deliver(evPlaybackFinished{playbackID: e.Playback.ID})
	case internal_ari.EventRecordingFinished, internal_ari.EventRecordingFailed:
		session.Deliver(evRecordingFinished{name: e.Recording.Name})
	case internal_ari.EventChannelTalkingStarted:
		session.Deliver(evTalkingStarted{})
	case internal_ari.EventChannelTalkingStopped:
		session.Deliver(evTalkingStopped{})
	case internal_ari.EventStasisEnd, internal_ari.EventChannelDestroyed:
		session.Deliver(evHangup{reason: "hangup"})
	}
}

func (r *Registry) startSession(e internal_ari.Event) {
	if e.Channel == nil {
		return
	}
	channelID := e.Channel.ID

	// Snoop and playback helper channels also enter the application; only
	// real caller legs get a session.
	if strings.HasPrefix(e.Channel.Name, "UnicastRTP") || strings.HasPrefix(e.Channel.Name, "Snoop") {
		return
	}

	r.mu.Lock()
	if _, exists := r.sessions[channelID]; exists {
		r.mu.Unlock()
		return
	}
	session := NewSession(r.parent, r.cfg, r.deps, channelID, e.Channel.Caller.Number, r.remove)
	r.sessions[channelID] = session
	count := len(r.sessions)
	r.mu.Unlock()

	r.logger.Infow("new call", "channel", channelID, "caller", e.Channel.Caller.Number, "active", count)
	session.Start()
}

func (r *Registry) remove(channelID string) {
	r.mu.Lock()
	delete(r.sessions, channelID)
	count := len(r.sessions)
	r.mu.Unlock()
	r.logger.Infow("call removed", "channel", channelID, "active", count)
}

// Count reports how many calls are live.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Greeting returns the greeting spoken to new calls.
func (r *Registry) Greeting() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cfg.Greeting
}

// SetGreeting changes the greeting for calls answered from now on; live
// calls are unaffected.
func (r *Registry) SetGreeting(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg.Greeting = text
}

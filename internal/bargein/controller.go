// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_bargein

import (
	"sync"
	"time"

	"github.com/Askhat-cmd/langchain-vox-bot/pkg/commons"
)

type Config struct {
	// Guard rejects interruption signals arriving too soon after playback
	// starts; the bot's own audio leaking back in looks like caller
	// activity for the first few hundred milliseconds.
	Guard time.Duration
	// Debounce collapses repeated interruption signals into one
	// cancellation instead of a cascade.
	Debounce time.Duration
}

func DefaultConfig() Config {
	return Config{
		Guard:    400 * time.Millisecond,
		Debounce: 200 * time.Millisecond,
	}
}

// Controller is the barge-in acceptance policy. It only decides; the call
// session executes the cancellation sequence for accepted interruptions.
type Controller struct {
	mu     sync.Mutex
	cfg    Config
	logger commons.Logger
	clock  func() time.Time

	playbackStart time.Time
	lastAccepted  time.Time
}

func NewController(logger commons.Logger, cfg Config) *Controller {
	return &Controller{cfg: cfg, logger: logger, clock: time.Now}
}

// OnPlaybackStarted records the start of the current bot playback, opening a
// fresh guard window.
func (c *Controller) OnPlaybackStarted() {
	c.mu.Lock()
	c.playbackStart = c.clock()
	c.mu.Unlock()
}

// Offer evaluates one caller-activity signal observed while the bot is
// speaking. It returns true when the interruption is accepted, at most once
// per debounce window.
func (c *Controller) Offer(reason string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock()
	if !c.playbackStart.IsZero() {
		if since := now.Sub(c.playbackStart); since < c.cfg.Guard {
			c.logger.Debugf("bargein: ignoring %s, %s into guard window", reason, since)
			return false
		}
	}
	if !c.lastAccepted.IsZero() && now.Sub(c.lastAccepted) < c.cfg.Debounce {
		c.logger.Debugf("bargein: ignoring %s, within debounce window", reason)
		return false
	}

	c.lastAccepted = now
	c.logger.Infof("bargein: accepted, reason=%s", reason)
	return true
}

// Reset clears playback tracking when a reply ends normally, so a stale
// guard window cannot affect the next reply.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.playbackStart = time.Time{}
	c.mu.Unlock()
}

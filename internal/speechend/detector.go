// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_speechend

import (
	"sync"
	"time"

	"github.com/Askhat-cmd/langchain-vox-bot/pkg/commons"
)

// Reason records which edge moved the detector to Finished.
type Reason string

const (
	// ReasonSilence: the caller stopped talking long enough.
	ReasonSilence Reason = "silence"
	// ReasonTimeout: the maximum recording duration elapsed. Safety net for
	// activity signals the upstream never reports.
	ReasonTimeout Reason = "timeout"
)

type Config struct {
	// SilenceTimeout is how long after the last activity signal the caller
	// is considered done talking.
	SilenceTimeout time.Duration
	// MinSpeech guards against treating a short noise burst as an
	// utterance; silence before this much recording time never finishes.
	MinSpeech time.Duration
	// MaxDuration hard-caps one recording attempt.
	MaxDuration time.Duration
}

func DefaultConfig() Config {
	return Config{
		SilenceTimeout: 1200 * time.Millisecond,
		MinSpeech:      500 * time.Millisecond,
		MaxDuration:    15 * time.Second,
	}
}

// Detector decides when the caller has stopped talking during one recording
// attempt. Idle → Recording → Finished; a fresh instance is constructed for
// every recording. onFinished is invoked exactly once, from a timer
// goroutine.
type Detector struct {
	cfg        Config
	logger     commons.Logger
	onFinished func(Reason)
	clock      func() time.Time

	mu           sync.Mutex
	started      time.Time
	lastActivity time.Time
	sawActivity  bool
	finished     bool
	silenceTimer *time.Timer
	maxTimer     *time.Timer
}

func NewDetector(logger commons.Logger, cfg Config, onFinished func(Reason)) *Detector {
	return &Detector{
		cfg:        cfg,
		logger:     logger,
		onFinished: onFinished,
		clock:      time.Now,
	}
}

// Start enters the Recording state and arms the maximum-duration edge.
func (d *Detector) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.clock()
	d.started = now
	d.lastActivity = now
	d.maxTimer = time.AfterFunc(d.cfg.MaxDuration, func() { d.finish(ReasonTimeout) })
	d.armSilenceTimerLocked(d.cfg.SilenceTimeout)
}

// Activity is fed every caller-activity signal (talking-started pulses,
// partial transcripts). It resets the silence window.
func (d *Detector) Activity() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.finished {
		return
	}
	d.lastActivity = d.clock()
	d.sawActivity = true
	d.armSilenceTimerLocked(d.cfg.SilenceTimeout)
}

// Stop cancels the detector without finishing (the recording ended some
// other way, or the call terminated).
func (d *Detector) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.finished = true
	d.stopTimersLocked()
}

func (d *Detector) armSilenceTimerLocked(after time.Duration) {
	if d.silenceTimer != nil {
		d.silenceTimer.Stop()
	}
	d.silenceTimer = time.AfterFunc(after, d.checkSilence)
}

func (d *Detector) checkSilence() {
	d.mu.Lock()
	if d.finished {
		d.mu.Unlock()
		return
	}
	now := d.clock()
	sinceActivity := now.Sub(d.lastActivity)
	elapsed := now.Sub(d.started)

	// The silence edge only ever fires after real caller activity; a caller
	// who never spoke runs into the maximum-duration edge instead.
	if d.sawActivity && sinceActivity >= d.cfg.SilenceTimeout && elapsed >= d.cfg.MinSpeech {
		d.mu.Unlock()
		d.finish(ReasonSilence)
		return
	}

	// Not there yet: re-arm for whichever condition is still pending.
	next := d.cfg.SilenceTimeout - sinceActivity
	if wait := d.cfg.MinSpeech - elapsed; wait > next {
		next = wait
	}
	if next < 50*time.Millisecond {
		next = 50 * time.Millisecond
	}
	d.armSilenceTimerLocked(next)
	d.mu.Unlock()
}

func (d *Detector) finish(reason Reason) {
	d.mu.Lock()
	if d.finished {
		d.mu.Unlock()
		return
	}
	d.finished = true
	d.stopTimersLocked()
	elapsed := d.clock().Sub(d.started)
	d.mu.Unlock()

	d.logger.Debugf("speechend: finished reason=%s elapsed=%s", reason, elapsed)
	d.onFinished(reason)
}

func (d *Detector) stopTimersLocked() {
	if d.silenceTimer != nil {
		d.silenceTimer.Stop()
		d.silenceTimer = nil
	}
	if d.maxTimer != nil {
		d.maxTimer.Stop()
		d.maxTimer = nil
	}
}

// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_synthesizer

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	internal_type "github.com/Askhat-cmd/langchain-vox-bot/internal/type"
	"github.com/Askhat-cmd/langchain-vox-bot/pkg/commons"
	"github.com/Askhat-cmd/langchain-vox-bot/pkg/utils"
)

// DeliverFunc receives the audio of a successfully synthesized utterance.
type DeliverFunc func(index int, audio []byte)

// FailFunc receives utterances whose synthesis failed after all attempts.
// The audio for these indices never arrives.
type FailFunc func(index int, err error)

// Scheduler runs synthesis jobs concurrently under a fixed worker budget.
// Jobs for one reply may complete out of order; delivery order is the
// playback queue's problem, not the scheduler's.
//
// CancelAll abandons every in-flight job of the current reply generation.
// A job that completes after its generation was cancelled is discarded
// without delivery.
type Scheduler struct {
	logger commons.Logger
	synth  internal_type.Synthesizer
	sem    *semaphore.Weighted

	deliver DeliverFunc
	fail    FailFunc

	mu         sync.Mutex
	generation uint64
	ctx        context.Context
	cancel     context.CancelFunc
	inflight   int
	closed     bool
}

func NewScheduler(
	logger commons.Logger,
	synth internal_type.Synthesizer,
	workers int,
	deliver DeliverFunc,
	fail FailFunc,
) *Scheduler {
	if workers <= 0 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		logger:  logger,
		synth:   synth,
		sem:     semaphore.NewWeighted(int64(workers)),
		deliver: deliver,
		fail:    fail,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Submit schedules synthesis of one utterance. It never blocks the caller;
// worker-budget waiting happens on the job goroutine.
func (s *Scheduler) Submit(u internal_type.Utterance) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	gen := s.generation
	ctx := s.ctx
	s.inflight++
	s.mu.Unlock()

	utils.Go(ctx, func() {
		s.run(ctx, gen, u)
	})
}

func (s *Scheduler) run(ctx context.Context, gen uint64, u internal_type.Utterance) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		s.settle(gen, u.Index, nil, nil, true)
		return
	}
	audio, err := s.synth.Synthesize(ctx, u.Text)
	s.sem.Release(1)

	s.settle(gen, u.Index, audio, err, ctx.Err() != nil)
}

// settle decrements the in-flight count and routes the job outcome. Jobs
// finishing under a cancelled or superseded generation are dropped silently.
func (s *Scheduler) settle(gen uint64, index int, audio []byte, err error, cancelled bool) {
	s.mu.Lock()
	s.inflight--
	stale := cancelled || gen != s.generation || s.closed
	s.mu.Unlock()

	if stale {
		s.logger.Debugw("discarding synthesis result for cancelled reply", "index", index)
		return
	}
	if err != nil {
		s.logger.Errorw("synthesis job failed", "index", index, "error", err)
		s.fail(index, err)
		return
	}
	s.deliver(index, audio)
}

// CancelAll abandons every pending and running job and starts a fresh
// generation for subsequent Submit calls.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.cancel()
	s.generation++
	s.ctx, s.cancel = context.WithCancel(context.Background())
}

// InFlight reports how many submitted jobs have not settled yet, including
// jobs of cancelled generations still unwinding.
func (s *Scheduler) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight
}

// Close cancels everything and rejects further submissions.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.cancel()
}

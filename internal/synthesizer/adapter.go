// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_synthesizer

import (
	"context"
	"errors"
	"fmt"
	"time"

	internal_normalizer "github.com/Askhat-cmd/langchain-vox-bot/internal/normalizer"
	internal_type "github.com/Askhat-cmd/langchain-vox-bot/internal/type"
	"github.com/Askhat-cmd/langchain-vox-bot/pkg/commons"
)

// ErrEmptyAudio is returned when a backend answers successfully but with no
// audio payload. It is treated the same as a transport failure.
var ErrEmptyAudio = errors.New("synthesizer: backend returned empty audio")

// FallbackSynthesizer normalizes reply text and synthesizes it against a
// fast primary backend, retrying exactly once against a reliable fallback
// backend when the primary attempt fails. Each backend attempt runs under
// its own timeout.
type FallbackSynthesizer struct {
	logger   commons.Logger
	fast     internal_type.Synthesizer
	reliable internal_type.Synthesizer
	pipeline *internal_normalizer.Pipeline
	timeout  time.Duration
}

// NewFallbackSynthesizer wires the synthesis chain. reliable may be nil; in
// that case fast failures are terminal.
func NewFallbackSynthesizer(
	logger commons.Logger,
	fast internal_type.Synthesizer,
	reliable internal_type.Synthesizer,
	pipeline *internal_normalizer.Pipeline,
	timeout time.Duration,
) *FallbackSynthesizer {
	return &FallbackSynthesizer{
		logger:   logger,
		fast:     fast,
		reliable: reliable,
		pipeline: pipeline,
		timeout:  timeout,
	}
}

func (s *FallbackSynthesizer) Name() string { return "fallback" }

func (s *FallbackSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if s.pipeline != nil {
		text = s.pipeline.Normalize(ctx, text)
	}

	audio, err := s.attempt(ctx, s.fast, text)
	if err == nil {
		return audio, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if s.reliable == nil {
		return nil, fmt.Errorf("synthesizer: %s failed, no fallback configured: %w", s.fast.Name(), err)
	}

	s.logger.Warnw("synthesis fell back to reliable backend",
		"fast", s.fast.Name(), "reliable", s.reliable.Name(), "error", err)

	audio, err = s.attempt(ctx, s.reliable, text)
	if err != nil {
		return nil, fmt.Errorf("synthesizer: %s fallback failed: %w", s.reliable.Name(), err)
	}
	return audio, nil
}

func (s *FallbackSynthesizer) attempt(ctx context.Context, backend internal_type.Synthesizer, text string) ([]byte, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	audio, err := backend.Synthesize(attemptCtx, text)
	if err != nil {
		return nil, err
	}
	if len(audio) == 0 {
		return nil, ErrEmptyAudio
	}
	return audio, nil
}

// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_synthesizer

import (
	"context"
	"fmt"
	"sync"
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

// fakeSynth answers with canned audio or a canned error.
type fakeSynth struct {
	name  string
	audio []byte
	err   error
	delay time.Duration

	mu    sync.Mutex
	calls []string
}

func (f *fakeSynth) Name() string { return f.name }

func (f *fakeSynth) Synthesize(ctx context.Context, text string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, text)
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.audio, nil
}

func (f *fakeSynth) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// --- Fallback Tests ---

func TestFallback_FastSuccessSkipsReliable(t *testing.T) {
	fast := &fakeSynth{name: "fast", audio: []byte("fast-audio")}
	reliable := &fakeSynth{name: "reliable", audio: []byte("reliable-audio")}
	s := NewFallbackSynthesizer(newTestLogger(), fast, reliable, nil, time.Second)

	audio, err := s.Synthesize(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []byte("fast-audio"), audio)
	assert.Zero(t, reliable.callCount())
}

func TestFallback_FastFailureUsesReliable(t *testing.T) {
	fast := &fakeSynth{name: "fast", err: fmt.Errorf("quota exhausted")}
	reliable := &fakeSynth{name: "reliable", audio: []byte("reliable-audio")}
	s := NewFallbackSynthesizer(newTestLogger(), fast, reliable, nil, time.Second)

	audio, err := s.Synthesize(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []byte("reliable-audio"), audio)
	assert.Equal(t, 1, fast.callCount())
	assert.Equal(t, 1, reliable.callCount())
}

func TestFallback_EmptyAudioCountsAsFailure(t *testing.T) {
	fast := &fakeSynth{name: "fast", audio: nil}
	reliable := &fakeSynth{name: "reliable", audio: []byte("ok")}
	s := NewFallbackSynthesizer(newTestLogger(), fast, reliable, nil, time.Second)

	audio, err := s.Synthesize(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), audio)
}

func TestFallback_BothFailReturnsError(t *testing.T) {
	fast := &fakeSynth{name: "fast", err: fmt.Errorf("down")}
	reliable := &fakeSynth{name: "reliable", err: fmt.Errorf("also down")}
	s := NewFallbackSynthesizer(newTestLogger(), fast, reliable, nil, time.Second)

	_, err := s.Synthesize(context.Background(), "hello")
	assert.Error(t, err)
}

func TestFallback_NoReliableConfigured(t *testing.T) {
	fast := &fakeSynth{name: "fast", err: fmt.Errorf("down")}
	s := NewFallbackSynthesizer(newTestLogger(), fast, nil, nil, time.Second)

	_, err := s.Synthesize(context.Background(), "hello")
	assert.Error(t, err)
}

func TestFallback_AttemptTimeoutTriggersFallback(t *testing.T) {
	fast := &fakeSynth{name: "fast", audio: []byte("slow"), delay: 500 * time.Millisecond}
	reliable := &fakeSynth{name: "reliable", audio: []byte("ok")}
	s := NewFallbackSynthesizer(newTestLogger(), fast, reliable, nil, 50*time.Millisecond)

	audio, err := s.Synthesize(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), audio)
}

// --- Scheduler Tests ---

type sink struct {
	mu        sync.Mutex
	delivered map[int][]byte
	failed    map[int]error
	settled   chan struct{}
}

func newSink() *sink {
	return &sink{
		delivered: make(map[int][]byte),
		failed:    make(map[int]error),
		settled:   make(chan struct{}, 64),
	}
}

func (s *sink) deliver(index int, audio []byte) {
	s.mu.Lock()
	s.delivered[index] = audio
	s.mu.Unlock()
	s.settled <- struct{}{}
}

func (s *sink) fail(index int, err error) {
	s.mu.Lock()
	s.failed[index] = err
	s.mu.Unlock()
	s.settled <- struct{}{}
}

func (s *sink) waitSettled(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-s.settled:
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d of %d jobs settled", i, n)
		}
	}
}

func TestScheduler_DeliversCompletedJobs(t *testing.T) {
	synth := &fakeSynth{name: "ok", audio: []byte("audio")}
	out := newSink()
	sched := NewScheduler(newTestLogger(), synth, 2, out.deliver, out.fail)
	defer sched.Close()

	for i := 0; i < 4; i++ {
		sched.Submit(internal_type.Utterance{Index: i, Text: fmt.Sprintf("chunk %d", i)})
	}
	out.waitSettled(t, 4)

	assert.Len(t, out.delivered, 4)
	assert.Empty(t, out.failed)
	assert.Zero(t, sched.InFlight())
}

func TestScheduler_RoutesFailures(t *testing.T) {
	synth := &fakeSynth{name: "broken", err: fmt.Errorf("no audio today")}
	out := newSink()
	sched := NewScheduler(newTestLogger(), synth, 2, out.deliver, out.fail)
	defer sched.Close()

	sched.Submit(internal_type.Utterance{Index: 0, Text: "chunk"})
	out.waitSettled(t, 1)

	assert.Empty(t, out.delivered)
	require.Contains(t, out.failed, 0)
}

func TestScheduler_CancelAllDiscardsInFlight(t *testing.T) {
	synth := &fakeSynth{name: "slow", audio: []byte("audio"), delay: 200 * time.Millisecond}
	out := newSink()
	sched := NewScheduler(newTestLogger(), synth, 4, out.deliver, out.fail)
	defer sched.Close()

	for i := 0; i < 3; i++ {
		sched.Submit(internal_type.Utterance{Index: i, Text: "doomed"})
	}
	time.Sleep(20 * time.Millisecond)
	sched.CancelAll()

	// Jobs unwind without delivering or failing.
	deadline := time.After(2 * time.Second)
	for sched.InFlight() > 0 {
		select {
		case <-deadline:
			t.Fatal("cancelled jobs never settled")
		case <-time.After(10 * time.Millisecond):
		}
	}
	assert.Empty(t, out.delivered)
	assert.Empty(t, out.failed)
}

func TestScheduler_SubmitAfterCancelStartsFreshGeneration(t *testing.T) {
	synth := &fakeSynth{name: "ok", audio: []byte("audio")}
	out := newSink()
	sched := NewScheduler(newTestLogger(), synth, 2, out.deliver, out.fail)
	defer sched.Close()

	sched.CancelAll()
	sched.Submit(internal_type.Utterance{Index: 0, Text: "fresh"})
	out.waitSettled(t, 1)

	assert.Contains(t, out.delivered, 0)
}

func TestScheduler_SubmitAfterCloseIsNoop(t *testing.T) {
	synth := &fakeSynth{name: "ok", audio: []byte("audio")}
	out := newSink()
	sched := NewScheduler(newTestLogger(), synth, 2, out.deliver, out.fail)

	sched.Close()
	sched.Submit(internal_type.Utterance{Index: 0, Text: "late"})

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, out.delivered)
	assert.Zero(t, sched.InFlight())
}

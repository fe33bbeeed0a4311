// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_session

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internal_audio "github.com/Askhat-cmd/langchain-vox-bot/internal/audio"
	internal_bargein "github.com/Askhat-cmd/langchain-vox-bot/internal/bargein"
	internal_speechend "github.com/Askhat-cmd/langchain-vox-bot/internal/speechend"
	internal_type "github.com/Askhat-cmd/langchain-vox-bot/internal/type"
	"github.com/Askhat-cmd/langchain-vox-bot/pkg/commons"
)

func newTestLogger() commons.Logger {
	l, _ := commons.NewApplicationLogger()
	return l
}

// fakeTelephony signals every control-plane call on a channel so tests can
// wait for them instead of sleeping.
type fakeTelephony struct {
	mu     sync.Mutex
	seq    int
	played []string

	answered     chan struct{}
	talkDetects  chan struct{}
	playbacks    chan string
	recordings   chan string
	stoppedPlays chan string
	stoppedRecs  chan string
	hangups      chan struct{}
}

func newFakeTelephony() *fakeTelephony {
	return &fakeTelephony{
		answered:     make(chan struct{}, 4),
		talkDetects:  make(chan struct{}, 4),
		playbacks:    make(chan string, 16),
		recordings:   make(chan string, 16),
		stoppedPlays: make(chan string, 16),
		stoppedRecs:  make(chan string, 16),
		hangups:      make(chan struct{}, 4),
	}
}

func (f *fakeTelephony) Answer(ctx context.Context, channelID string) error {
	f.answered <- struct{}{}
	return nil
}

func (f *fakeTelephony) EnableTalkDetect(ctx context.Context, channelID string) error {
	f.talkDetects <- struct{}{}
	return nil
}

func (f *fakeTelephony) Play(ctx context.Context, channelID, soundID string) (string, error) {
	f.mu.Lock()
	f.seq++
	id := fmt.Sprintf("pb-%d", f.seq)
	f.played = append(f.played, soundID)
	f.mu.Unlock()
	f.playbacks <- id
	return id, nil
}

func (f *fakeTelephony) StopPlayback(ctx context.Context, playbackID string) error {
	f.stoppedPlays <- playbackID
	return nil
}

func (f *fakeTelephony) Record(ctx context.Context, channelID, name string, maxDuration time.Duration) (string, error) {
	f.recordings <- name
	return name, nil
}

func (f *fakeTelephony) StopRecording(ctx context.Context, recordingID string) error {
	f.stoppedRecs <- recordingID
	return nil
}

func (f *fakeTelephony) Hangup(ctx context.Context, channelID string) error {
	f.hangups <- struct{}{}
	return nil
}

type instantSynth struct{}

func (instantSynth) Name() string { return "instant" }
func (instantSynth) Synthesize(_ context.Context, text string) ([]byte, error) {
	return []byte("audio:" + text), nil
}

// scriptedTranscriber returns its answers in order, then empty strings.
type scriptedTranscriber struct {
	mu      sync.Mutex
	answers []string
}

func (s *scriptedTranscriber) Transcribe(_ context.Context, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.answers) == 0 {
		return "", nil
	}
	out := s.answers[0]
	s.answers = s.answers[1:]
	return out, nil
}

// sliceStream replays fixed fragments.
type sliceStream struct {
	fragments []string
	pos       int
}

func (s *sliceStream) Next() (string, error) {
	if s.pos >= len(s.fragments) {
		return "", io.EOF
	}
	out := s.fragments[s.pos]
	s.pos++
	return out, nil
}

func (s *sliceStream) Close() error { return nil }

type fakeReplies struct {
	fragments []string
}

func (f *fakeReplies) Generate(_ context.Context, _ string, _ string) (internal_type.ReplyStream, error) {
	return &sliceStream{fragments: f.fragments}, nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Assembler.FlushDebounce = 0
	cfg.Speech = internal_speechend.Config{
		SilenceTimeout: 60 * time.Millisecond,
		MinSpeech:      10 * time.Millisecond,
		MaxDuration:    2 * time.Second,
	}
	cfg.BargeIn = internal_bargein.Config{Guard: time.Millisecond, Debounce: 50 * time.Millisecond}
	cfg.STTTimeout = time.Second
	return cfg
}

type fixture struct {
	session   *Session
	telephony *fakeTelephony
	closed    chan string
}

func newFixture(t *testing.T, cfg Config, stt *scriptedTranscriber, replies internal_type.ReplyGenerator) *fixture {
	t.Helper()
	sounds, err := internal_audio.NewSoundStore(t.TempDir(), newTestLogger())
	require.NoError(t, err)

	telephony := newFakeTelephony()
	closed := make(chan string, 1)
	deps := Deps{
		Logger:      newTestLogger(),
		Telephony:   telephony,
		Synthesizer: instantSynth{},
		Transcriber: stt,
		Replies:     replies,
		Sounds:      sounds,
	}
	session := NewSession(context.Background(), cfg, deps, "chan-1", "+70000000000", func(id string) { closed <- id })
	return &fixture{session: session, telephony: telephony, closed: closed}
}

func waitString(t *testing.T, ch <-chan string, what string) string {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
		return ""
	}
}

func waitSignal(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

// finishPlayback acknowledges one playback the way the control plane would.
func (f *fixture) finishPlayback(id string) {
	f.session.Deliver(evPlaybackStarted{playbackID: id})
	f.session.Deliver(evPlaybackFinished{playbackID: id})
}

// --- Scenarios ---

func TestSession_GreetingThenListening(t *testing.T) {
	f := newFixture(t, testConfig(), &scriptedTranscriber{}, &fakeReplies{})
	f.session.Start()

	waitSignal(t, f.telephony.answered, "answer")
	// Talk detection is armed right after answering; without it the channel
	// never raises the talking events everything downstream relies on.
	waitSignal(t, f.telephony.talkDetects, "talk detect")
	greeting := waitString(t, f.telephony.playbacks, "greeting playback")
	f.finishPlayback(greeting)

	rec := waitString(t, f.telephony.recordings, "first recording")
	assert.Contains(t, rec, "rec-chan-1-")
}

func TestSession_FullTurn(t *testing.T) {
	stt := &scriptedTranscriber{answers: []string{"какой график работы"}}
	replies := &fakeReplies{fragments: []string{"Мы работаем ", "с девяти|", "до шести."}}
	f := newFixture(t, testConfig(), stt, replies)
	f.session.Start()

	waitSignal(t, f.telephony.answered, "answer")
	f.finishPlayback(waitString(t, f.telephony.playbacks, "greeting"))

	rec := waitString(t, f.telephony.recordings, "recording")

	// Caller speaks; the detector's silence edge stops the recording.
	f.session.Deliver(evTalkingStarted{})
	waitString(t, f.telephony.stoppedRecs, "stop recording")
	f.session.Deliver(evRecordingFinished{name: rec})

	// Both reply chunks play in order.
	f.finishPlayback(waitString(t, f.telephony.playbacks, "first chunk"))
	f.finishPlayback(waitString(t, f.telephony.playbacks, "second chunk"))

	// The turn over, listening resumes.
	waitString(t, f.telephony.recordings, "next recording")

	entries := f.session.transcript.Snapshot()
	require.GreaterOrEqual(t, len(entries), 3)
	assert.Equal(t, internal_type.SpeakerBot, entries[0].Speaker)
	assert.Equal(t, internal_type.SpeakerUser, entries[1].Speaker)
	assert.Equal(t, "какой график работы", entries[1].Text)
	assert.Equal(t, "Мы работаем с девяти", entries[2].Text)
}

func TestSession_BargeInStopsPlayback(t *testing.T) {
	cfg := testConfig()
	f := newFixture(t, cfg, &scriptedTranscriber{}, &fakeReplies{})
	f.session.Start()

	waitSignal(t, f.telephony.answered, "answer")
	greeting := waitString(t, f.telephony.playbacks, "greeting")
	f.session.Deliver(evPlaybackStarted{playbackID: greeting})

	// Past the (tiny) guard window, the caller talks over the bot.
	time.Sleep(20 * time.Millisecond)
	f.session.Deliver(evTalkingStarted{})

	stopped := waitString(t, f.telephony.stoppedPlays, "stop playback")
	assert.Equal(t, greeting, stopped)
	waitString(t, f.telephony.recordings, "listening after barge-in")
}

func TestSession_EmptyTranscriptKeepsListening(t *testing.T) {
	f := newFixture(t, testConfig(), &scriptedTranscriber{}, &fakeReplies{})
	f.session.Start()

	waitSignal(t, f.telephony.answered, "answer")
	f.finishPlayback(waitString(t, f.telephony.playbacks, "greeting"))

	rec := waitString(t, f.telephony.recordings, "recording")

	// The caller says nothing; the max-duration edge ends the attempt and
	// transcription comes back empty. That is noise, not a reason to end
	// the call: a fresh listening turn starts.
	f.session.Deliver(evRecordingFinished{name: rec})
	next := waitString(t, f.telephony.recordings, "next recording")
	assert.NotEqual(t, rec, next)

	select {
	case <-f.telephony.hangups:
		t.Fatal("hung up on a merely silent caller")
	default:
	}
}

func TestSession_InactivityEndsSilentCall(t *testing.T) {
	cfg := testConfig()
	cfg.Inactivity = 200 * time.Millisecond
	f := newFixture(t, cfg, &scriptedTranscriber{}, &fakeReplies{})
	f.session.Start()

	waitSignal(t, f.telephony.answered, "answer")
	f.finishPlayback(waitString(t, f.telephony.playbacks, "greeting"))
	waitString(t, f.telephony.recordings, "recording")

	// No caller activity at all; the watchdog speaks the farewell and the
	// call is hung up once it has played out.
	f.finishPlayback(waitString(t, f.telephony.playbacks, "farewell"))
	waitSignal(t, f.telephony.hangups, "hangup")

	f.session.Deliver(evHangup{reason: "hangup"})
	closedID := waitString(t, f.closed, "session close")
	assert.Equal(t, "chan-1", closedID)
}

func TestSession_BotPlaybackDefersInactivity(t *testing.T) {
	cfg := testConfig()
	cfg.Inactivity = time.Second
	f := newFixture(t, cfg, &scriptedTranscriber{}, &fakeReplies{})
	f.session.Start()

	waitSignal(t, f.telephony.answered, "answer")
	greeting := waitString(t, f.telephony.playbacks, "greeting")
	f.session.Deliver(evPlaybackStarted{playbackID: greeting})

	// The playback outlives the original watchdog deadline; its start and
	// finish events count as activity and push the deadline out.
	time.Sleep(700 * time.Millisecond)
	f.session.Deliver(evPlaybackFinished{playbackID: greeting})
	waitString(t, f.telephony.recordings, "listening after long playback")

	time.Sleep(500 * time.Millisecond)
	select {
	case <-f.telephony.playbacks:
		t.Fatal("watchdog fired while the bot was speaking")
	default:
	}

	// With silence from here on the watchdog still ends the call.
	waitString(t, f.telephony.playbacks, "farewell after idle")
}

// --- Config Plumbing ---

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "Здравствуйте! Чем могу помочь?", cfg.Greeting)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, 30*time.Second, cfg.Inactivity)
	assert.Equal(t, '|', cfg.Assembler.Delimiter)
	assert.Equal(t, 1200*time.Millisecond, cfg.Speech.SilenceTimeout)
	assert.Equal(t, 400*time.Millisecond, internal_bargein.DefaultConfig().Guard)
}

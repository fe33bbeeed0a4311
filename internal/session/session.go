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
	"time"

	"github.com/google/uuid"

	internal_assembler "github.com/Askhat-cmd/langchain-vox-bot/internal/assembler"
	internal_audio "github.com/Askhat-cmd/langchain-vox-bot/internal/audio"
	internal_bargein "github.com/Askhat-cmd/langchain-vox-bot/internal/bargein"
	internal_callstore "github.com/Askhat-cmd/langchain-vox-bot/internal/callstore"
	internal_filler "github.com/Askhat-cmd/langchain-vox-bot/internal/filler"
	internal_playback "github.com/Askhat-cmd/langchain-vox-bot/internal/playback"
	internal_speechend "github.com/Askhat-cmd/langchain-vox-bot/internal/speechend"
	internal_synthesizer "github.com/Askhat-cmd/langchain-vox-bot/internal/synthesizer"
	internal_type "github.com/Askhat-cmd/langchain-vox-bot/internal/type"
	"github.com/Askhat-cmd/langchain-vox-bot/pkg/commons"
	"github.com/Askhat-cmd/langchain-vox-bot/pkg/utils"
)

// State is the call session lifecycle phase.
type State string

const (
	StateGreeting     State = "greeting"
	StateListening    State = "listening"
	StateTranscribing State = "transcribing"
	StateResponding   State = "responding"
	StateEnded        State = "ended"
)

const inboxSize = 64

type Config struct {
	Greeting string
	// Apology is spoken when a reply could not be produced at all.
	Apology string
	Farewell   string
	STTTimeout time.Duration
	// Inactivity hangs up after this long without caller speech.
	Inactivity time.Duration
	Workers    int

	Assembler internal_assembler.Config
	Speech    internal_speechend.Config
	BargeIn   internal_bargein.Config
}

func DefaultConfig() Config {
	return Config{
		Greeting:    "Здравствуйте! Чем могу помочь?",
		Apology:     "Извините, произошла ошибка. Повторите, пожалуйста, ваш вопрос.",
		Farewell:   "Всего доброго, до свидания!",
		STTTimeout: 10 * time.Second,
		Inactivity: 30 * time.Second,
		Workers:    3,
		Assembler:   internal_assembler.DefaultConfig(),
		Speech:      internal_speechend.DefaultConfig(),
		BargeIn:     internal_bargein.DefaultConfig(),
	}
}

// Deps are the shared services one session borrows from the application.
type Deps struct {
	Logger      commons.Logger
	Telephony   internal_type.Telephony
	Synthesizer internal_type.Synthesizer
	Transcriber internal_type.Transcriber
	Replies     internal_type.ReplyGenerator
	Sounds      *internal_audio.SoundStore
	Filler      *internal_filler.Cache
	Store       *internal_callstore.Store
}

// Session runs one phone call. All state transitions happen on the run
// goroutine, fed by a single inbox channel; pipeline callbacks only post
// events into it.
type Session struct {
	logger    commons.Logger
	cfg       Config
	deps      Deps
	channelID string
	caller    string

	ctx      context.Context
	cancel   context.CancelFunc
	inbox    chan event
	onClosed func(channelID string)

	queue      *internal_playback.Queue
	scheduler  *internal_synthesizer.Scheduler
	interrupts *internal_bargein.Controller
	transcript *Transcript

	// run-loop owned
	state         State
	detector      *internal_speechend.Detector
	recSeq        int
	recordingName string
	startedAt     time.Time
	endReason     string
	hangingUp     bool
	inactivity    *time.Timer

	// reply bookkeeping, shared with pipeline callbacks
	mu          sync.Mutex
	replySeq    int
	replyCancel context.CancelFunc
	streamEnded bool
	replyErr    error
	delivered   int
	apologized  bool
	textByIndex map[int]string
}

func NewSession(parent context.Context, cfg Config, deps Deps, channelID, caller string, onClosed func(string)) *Session {
	ctx, cancel := context.WithCancel(parent)
	s := &Session{
		logger:      deps.Logger,
		cfg:         cfg,
		deps:        deps,
		channelID:   channelID,
		caller:      caller,
		ctx:         ctx,
		cancel:      cancel,
		inbox:       make(chan event, inboxSize),
		onClosed:    onClosed,
		interrupts:  internal_bargein.NewController(deps.Logger, cfg.BargeIn),
		transcript:  NewTranscript(),
		state:       StateGreeting,
		startedAt:   time.Now(),
		textByIndex: make(map[int]string),
	}
	s.queue = internal_playback.NewQueue(deps.Logger, s.playEntry, func() { s.post(evQueueIdle{}) })
	s.scheduler = internal_synthesizer.NewScheduler(deps.Logger, deps.Synthesizer, cfg.Workers, s.onAudioReady, s.onJobFailed)
	return s
}

// Start answers the call and begins the greeting. The run loop keeps going
// until the channel is destroyed.
func (s *Session) Start() {
	utils.Go(s.ctx, s.run)
}

// post drops the event rather than block a producer when the inbox is full;
// a full inbox means the session is already wedged or tearing down.
func (s *Session) post(e event) {
	select {
	case s.inbox <- e:
	default:
		s.logger.Warnw("session inbox full, dropping event", "channel", s.channelID, "event", fmt.Sprintf("%T", e))
	}
}

func (s *Session) run() {
	s.logger.Infow("call session started", "channel", s.channelID, "caller", s.caller)

	if err := s.deps.Telephony.Answer(s.ctx, s.channelID); err != nil {
		s.logger.Errorw("answering call failed", "channel", s.channelID, "error", err)
		s.teardown("error")
		return
	}
	// Without talk detection there are no talking events, so neither the
	// speech-end silence edge nor barge-in can ever trigger.
	if err := s.deps.Telephony.EnableTalkDetect(s.ctx, s.channelID); err != nil {
		s.logger.Errorw("enabling talk detect failed", "channel", s.channelID, "error", err)
	}
	s.inactivity = time.AfterFunc(s.cfg.Inactivity, func() { s.post(evInactivity{}) })
	s.speakScripted(s.cfg.Greeting)

	for {
		select {
		case <-s.ctx.Done():
			s.teardown("shutdown")
			return
		case e := <-s.inbox:
			if done := s.handle(e); done {
				return
			}
		}
	}
}

func (s *Session) handle(e event) bool {
	switch ev := e.(type) {
	case evPlaybackStarted:
		s.interrupts.OnPlaybackStarted()
		// Bot speech counts as call activity; a long reply must not trip
		// the watchdog mid-playback.
		s.resetInactivity()

	case evPlaybackFinished:
		s.resetInactivity()
		s.queue.OnPlaybackFinished(ev.playbackID)

	case evTalkingStarted:
		s.onTalking()

	case evTalkingStopped:
		s.logger.Debugw("caller stopped talking", "channel", s.channelID)

	case evSpeechEnd:
		s.onSpeechEnd(ev)

	case evRecordingFinished:
		s.onRecordingFinished(ev.name)

	case evTranscriptReady:
		s.onTranscript(ev)

	case evReplyFinished:
		s.onReplyFinished(ev)

	case evJobSettled, evQueueIdle:
		s.maybeFinishResponding()

	case evInactivity:
		s.onInactivity()

	case evHangup:
		s.teardown(ev.reason)
		return true
	}
	return false
}

// =============================================================================
// Listening
// =============================================================================

func (s *Session) startListening() {
	s.state = StateListening
	s.interrupts.Reset()
	s.recSeq++
	seq := s.recSeq
	s.recordingName = fmt.Sprintf("rec-%s-%d", s.channelID, seq)

	if s.detector != nil {
		s.detector.Stop()
	}
	s.detector = internal_speechend.NewDetector(s.logger, s.cfg.Speech, func(reason internal_speechend.Reason) {
		s.post(evSpeechEnd{seq: seq, reason: reason})
	})

	if _, err := s.deps.Telephony.Record(s.ctx, s.channelID, s.recordingName, s.cfg.Speech.MaxDuration); err != nil {
		s.logger.Errorw("starting recording failed", "channel", s.channelID, "error", err)
		s.hangup("error")
		return
	}
	s.detector.Start()
	s.logger.Debugw("listening", "channel", s.channelID, "recording", s.recordingName)
}

func (s *Session) onTalking() {
	switch s.state {
	case StateListening:
		if s.detector != nil {
			s.detector.Activity()
		}
		s.resetInactivity()
	case StateTranscribing:
		s.resetInactivity()
	case StateGreeting, StateResponding:
		if s.interrupts.Offer("talking") {
			s.bargeIn()
		}
	}
}

func (s *Session) onSpeechEnd(ev evSpeechEnd) {
	if s.state != StateListening || ev.seq != s.recSeq {
		return
	}
	s.logger.Debugw("speech ended", "channel", s.channelID, "reason", string(ev.reason))
	// Stopping an already-finished recording is fine; Asterisk answers 404
	// when the maximum duration beat us to it.
	if err := s.deps.Telephony.StopRecording(s.ctx, s.recordingName); err != nil {
		s.logger.Debugw("stop recording", "channel", s.channelID, "error", err)
	}
	s.state = StateTranscribing
}

// onRecordingFinished may arrive while still Listening when Asterisk cut the
// recording at its maximum duration before the detector spoke up.
func (s *Session) onRecordingFinished(name string) {
	if (s.state != StateListening && s.state != StateTranscribing) || name != s.recordingName {
		return
	}
	s.state = StateTranscribing
	transcriber := s.deps.Transcriber
	timeout := s.cfg.STTTimeout
	ctx := s.ctx
	utils.Go(s.ctx, func() {
		tctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		text, err := transcriber.Transcribe(tctx, s.recordingPath(name))
		s.post(evTranscriptReady{name: name, text: text, err: err})
	})
}

func (s *Session) onTranscript(ev evTranscriptReady) {
	if s.state != StateTranscribing || ev.name != s.recordingName {
		return
	}
	if ev.err != nil {
		s.logger.Errorw("transcription failed", "channel", s.channelID, "error", ev.err)
		s.startListening()
		return
	}
	if ev.text == "" {
		// Noise, not an error: keep listening. The inactivity watchdog is
		// the only thing that ends a silent call.
		s.logger.Debugw("empty transcription", "channel", s.channelID)
		s.startListening()
		return
	}
	s.resetInactivity()
	s.transcript.Append(internal_type.SpeakerUser, ev.text)
	s.logger.Infow("caller said", "channel", s.channelID, "text", ev.text)
	s.respond(ev.text)
}

// =============================================================================
// Responding
// =============================================================================

// respond starts a streamed reply. A filler acknowledgment occupies index 0
// when available so the caller hears something while the model thinks; real
// utterances then start at index 1.
func (s *Session) respond(userText string) {
	s.state = StateResponding

	s.mu.Lock()
	s.replySeq++
	seq := s.replySeq
	s.streamEnded = false
	s.replyErr = nil
	s.delivered = 0
	s.apologized = false
	s.textByIndex = make(map[int]string)
	s.mu.Unlock()

	s.queue.Clear()

	firstIndex := 0
	if s.deps.Filler != nil {
		// The filler does not count as delivered reply audio; a reply whose
		// every real utterance failed still deserves the apology.
		if text, audio, ok := s.deps.Filler.Pick(); ok {
			s.mu.Lock()
			s.textByIndex[0] = text
			s.mu.Unlock()
			s.queue.Enqueue(0, audio)
			firstIndex = 1
		}
	}

	segmenter := internal_assembler.NewSegmenter(s.logger, s.cfg.Assembler, func(u internal_type.Utterance) {
		s.submitUtterance(seq, u)
	})
	segmenter.Reset(firstIndex)

	replyCtx, cancel := context.WithCancel(s.ctx)
	s.mu.Lock()
	s.replyCancel = cancel
	s.mu.Unlock()

	utils.Go(replyCtx, func() {
		s.drainReply(replyCtx, seq, segmenter, userText)
	})
}

func (s *Session) drainReply(ctx context.Context, seq int, segmenter *internal_assembler.Segmenter, userText string) {
	stream, err := s.deps.Replies.Generate(ctx, userText, s.channelID)
	if err != nil {
		s.post(evReplyFinished{seq: seq, err: err})
		return
	}
	defer stream.Close()

	for {
		fragment, err := stream.Next()
		if err == io.EOF {
			segmenter.Flush(func() {
				s.post(evReplyFinished{seq: seq})
			})
			return
		}
		if err != nil {
			s.post(evReplyFinished{seq: seq, err: err})
			return
		}
		segmenter.Feed(fragment)
	}
}

// submitUtterance hands one segment to the synthesis scheduler, unless the
// reply it belongs to has been superseded.
func (s *Session) submitUtterance(seq int, u internal_type.Utterance) {
	s.mu.Lock()
	if seq != s.replySeq {
		s.mu.Unlock()
		return
	}
	s.textByIndex[u.Index] = u.Text
	s.mu.Unlock()
	s.scheduler.Submit(u)
}

// onAudioReady runs on a scheduler goroutine.
func (s *Session) onAudioReady(index int, audio []byte) {
	s.mu.Lock()
	s.delivered++
	s.mu.Unlock()
	s.queue.Enqueue(index, audio)
	s.post(evJobSettled{})
}

// onJobFailed runs on a scheduler goroutine. Skipping the index keeps the
// ordered release moving past the hole.
func (s *Session) onJobFailed(index int, err error) {
	s.mu.Lock()
	s.replyErr = err
	delete(s.textByIndex, index)
	s.mu.Unlock()
	s.queue.Skip(index)
	s.post(evJobSettled{})
}

// playEntry is the queue's release hook: stage the audio as a sound and ask
// the control plane to play it. Runs wherever the queue advances.
func (s *Session) playEntry(index int, audio []byte) (string, error) {
	soundID := fmt.Sprintf("say-%s", uuid.NewString())
	if _, err := s.deps.Sounds.Drop(s.ctx, soundID, audio); err != nil {
		return "", err
	}
	playbackID, err := s.deps.Telephony.Play(s.ctx, s.channelID, soundID)
	if err != nil {
		return "", err
	}
	s.interrupts.OnPlaybackStarted()

	s.mu.Lock()
	text := s.textByIndex[index]
	delete(s.textByIndex, index)
	s.mu.Unlock()
	s.transcript.Append(internal_type.SpeakerBot, text)
	return playbackID, nil
}

func (s *Session) onReplyFinished(ev evReplyFinished) {
	s.mu.Lock()
	if ev.seq != s.replySeq {
		s.mu.Unlock()
		return
	}
	s.streamEnded = true
	if ev.err != nil && s.replyErr == nil {
		s.replyErr = ev.err
	}
	s.mu.Unlock()

	if ev.err != nil {
		s.logger.Errorw("reply stream failed", "channel", s.channelID, "error", ev.err)
	}
	s.maybeFinishResponding()
}

// maybeFinishResponding moves back to Listening once the reply is fully
// spoken: the stream ended, no synthesis is in flight and the queue
// drained. A reply that produced no audio at all gets one apology.
func (s *Session) maybeFinishResponding() {
	if s.state != StateGreeting && s.state != StateResponding {
		return
	}
	s.mu.Lock()
	streamEnded := s.streamEnded
	delivered := s.delivered
	failed := s.replyErr
	apologized := s.apologized
	s.mu.Unlock()

	if !streamEnded || s.scheduler.InFlight() > 0 || !s.queue.Idle() {
		return
	}

	if delivered == 0 && failed != nil && !apologized {
		s.logger.Warnw("reply produced no audio, apologizing", "channel", s.channelID, "error", failed)
		s.speakScripted(s.cfg.Apology)
		s.mu.Lock()
		s.apologized = true
		s.mu.Unlock()
		return
	}

	if s.hangingUp {
		s.hangup(s.endReason)
		return
	}
	s.startListening()
}

// speakScripted plays a fixed phrase (greeting, apology, farewell) through
// the same synthesis and playback path as generated replies.
func (s *Session) speakScripted(text string) {
	if s.state != StateGreeting {
		s.state = StateResponding
	}
	s.mu.Lock()
	s.replySeq++
	s.streamEnded = true
	s.replyErr = nil
	s.delivered = 0
	s.textByIndex = map[int]string{0: text}
	s.mu.Unlock()

	s.queue.Clear()
	s.scheduler.Submit(internal_type.Utterance{Index: 0, Text: text, Final: true})
}

// =============================================================================
// Interruption
// =============================================================================

// bargeIn stops the in-progress reply and flips straight to listening. The
// caller is already talking, so the fresh detector gets an immediate
// activity signal.
func (s *Session) bargeIn() {
	s.logger.Infow("barge-in, interrupting reply", "channel", s.channelID)

	s.scheduler.CancelAll()
	// Clear waits out any in-flight release and reports the playback that
	// was active, so the stop can never miss one that started mid-reset.
	if id := s.queue.Clear(); id != "" {
		if err := s.deps.Telephony.StopPlayback(s.ctx, id); err != nil {
			s.logger.Debugw("stop playback", "channel", s.channelID, "error", err)
		}
	}

	s.mu.Lock()
	s.replySeq++
	s.streamEnded = true
	s.replyErr = nil
	s.textByIndex = make(map[int]string)
	cancel := s.replyCancel
	s.replyCancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	s.startListening()
	s.detector.Activity()
}

// =============================================================================
// Termination
// =============================================================================

func (s *Session) onInactivity() {
	if s.state == StateEnded || s.hangingUp {
		return
	}
	since := time.Since(s.startedAt)
	s.logger.Infow("inactivity limit reached", "channel", s.channelID, "elapsed", since)
	s.sayGoodbye("inactivity")
}

// sayGoodbye speaks the farewell and hangs up once it has played out.
func (s *Session) sayGoodbye(reason string) {
	s.hangingUp = true
	s.endReason = reason
	if s.detector != nil {
		s.detector.Stop()
	}
	s.speakScripted(s.cfg.Farewell)
}

func (s *Session) hangup(reason string) {
	s.endReason = reason
	if err := s.deps.Telephony.Hangup(s.ctx, s.channelID); err != nil {
		s.logger.Debugw("hangup", "channel", s.channelID, "error", err)
		// No ChannelDestroyed will come if the request failed outright.
		s.post(evHangup{reason: reason})
	}
}

// Deliver posts a mapped telephony event into the session inbox. Called
// from the registry's dispatch goroutine.
func (s *Session) Deliver(e event) {
	s.post(e)
}

func (s *Session) teardown(reason string) {
	if s.state == StateEnded {
		return
	}
	s.state = StateEnded
	if s.endReason != "" {
		reason = s.endReason
	}
	s.logger.Infow("call session ended", "channel", s.channelID, "reason", reason, "duration", time.Since(s.startedAt))

	if s.detector != nil {
		s.detector.Stop()
	}
	if s.inactivity != nil {
		s.inactivity.Stop()
	}
	s.mu.Lock()
	cancel := s.replyCancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.scheduler.Close()
	s.persist(reason)
	s.cancel()
	if s.onClosed != nil {
		s.onClosed(s.channelID)
	}
}

func (s *Session) persist(reason string) {
	if s.deps.Store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	log := &internal_callstore.CallLog{
		ChannelID:    s.channelID,
		CallerNumber: s.caller,
		StartedAt:    s.startedAt,
		EndedAt:      time.Now(),
		EndReason:    reason,
	}
	if err := s.deps.Store.Save(ctx, log, s.transcript.Snapshot()); err != nil {
		s.logger.Errorw("persisting call log failed", "channel", s.channelID, "error", err)
	}
}

func (s *Session) resetInactivity() {
	if s.inactivity != nil {
		s.inactivity.Reset(s.cfg.Inactivity)
	}
}

func (s *Session) recordingPath(name string) string {
	type pather interface{ RecordingPath(string) string }
	if p, ok := s.deps.Telephony.(pather); ok {
		return p.RecordingPath(name)
	}
	return name
}

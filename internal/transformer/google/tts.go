// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_transformer_google

import (
	"context"
	"fmt"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"google.golang.org/api/option"

	internal_audio "github.com/Askhat-cmd/langchain-vox-bot/internal/audio"
	"github.com/Askhat-cmd/langchain-vox-bot/pkg/commons"
	"github.com/Askhat-cmd/langchain-vox-bot/pkg/utils"
)

const (
	DefaultLanguageCode = "ru-RU"
	DefaultVoice        = "ru-RU-Wavenet-C"
)

// speechSynthesizer is the reliable synthesis backend. LINEAR16 responses
// arrive as complete WAV containers, so no re-wrapping is needed.
type speechSynthesizer struct {
	logger       commons.Logger
	client       *texttospeech.Client
	languageCode string
	voice        string
}

// NewSpeechSynthesizer builds the Cloud Text-to-Speech backend. Credentials
// come either from an API key or a service account JSON blob. Recognized
// options: "speak.voice.id", "speak.language".
func NewSpeechSynthesizer(ctx context.Context, logger commons.Logger, apiKey, serviceAccountJSON string, opts utils.Option) (*speechSynthesizer, error) {
	co := make([]option.ClientOption, 0)
	if apiKey != "" {
		co = append(co, option.WithAPIKey(apiKey))
	}
	if serviceAccountJSON != "" {
		co = append(co, option.WithCredentialsJSON([]byte(serviceAccountJSON)))
	}

	client, err := texttospeech.NewClient(ctx, co...)
	if err != nil {
		return nil, fmt.Errorf("google: creating texttospeech client: %w", err)
	}

	s := &speechSynthesizer{
		logger:       logger,
		client:       client,
		languageCode: DefaultLanguageCode,
		voice:        DefaultVoice,
	}
	if v, err := opts.GetString("speak.voice.id"); err == nil {
		s.voice = v
	} else {
		logger.Warn("Voice not specified, defaulting to " + DefaultVoice)
	}
	if v, err := opts.GetString("speak.language"); err == nil {
		s.languageCode = v
	}
	return s, nil
}

func (s *speechSynthesizer) Name() string { return "google-tts" }

func (s *speechSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	resp, err := s.client.SynthesizeSpeech(ctx, &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: s.languageCode,
			Name:         s.voice,
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding:   texttospeechpb.AudioEncoding_LINEAR16,
			SampleRateHertz: internal_audio.TelephonySampleRate,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("google: synthesis failed: %w", err)
	}
	if len(resp.GetAudioContent()) == 0 {
		return nil, fmt.Errorf("google: synthesis returned no audio")
	}
	return resp.GetAudioContent(), nil
}

func (s *speechSynthesizer) Close() error {
	return s.client.Close()
}

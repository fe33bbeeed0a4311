// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_transformer_yandex

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-resty/resty/v2"

	internal_audio "github.com/Askhat-cmd/langchain-vox-bot/internal/audio"
	"github.com/Askhat-cmd/langchain-vox-bot/pkg/commons"
	"github.com/Askhat-cmd/langchain-vox-bot/pkg/utils"
)

const (
	DefaultTTSEndpoint = "https://tts.api.cloud.yandex.net/speech/v1/tts:synthesize"
	DefaultLanguage    = "ru-RU"
	DefaultVoice       = "alena"
)

// speechSynthesizer talks to the SpeechKit v1 synthesis endpoint. It asks
// for raw LPCM at the telephony sample rate and wraps the response into a
// playable WAV container.
type speechSynthesizer struct {
	logger   commons.Logger
	client   *resty.Client
	endpoint string
	apiKey   string
	folderID string
	language string
	voice    string
}

// NewSpeechSynthesizer builds the SpeechKit TTS backend. Recognized options:
// "speak.voice.id", "speak.language", "speak.endpoint".
func NewSpeechSynthesizer(logger commons.Logger, apiKey, folderID string, opts utils.Option) (*speechSynthesizer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("yandex: api key is required for synthesis")
	}
	s := &speechSynthesizer{
		logger:   logger,
		client:   resty.New(),
		endpoint: DefaultTTSEndpoint,
		apiKey:   apiKey,
		folderID: folderID,
		language: DefaultLanguage,
		voice:    DefaultVoice,
	}
	if v, err := opts.GetString("speak.voice.id"); err == nil {
		s.voice = v
	}
	if v, err := opts.GetString("speak.language"); err == nil {
		s.language = v
	}
	if v, err := opts.GetString("speak.endpoint"); err == nil {
		s.endpoint = v
	}
	return s, nil
}

func (s *speechSynthesizer) Name() string { return "yandex-speechkit" }

func (s *speechSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Api-Key "+s.apiKey).
		SetFormData(map[string]string{
			"text":            text,
			"lang":            s.language,
			"voice":           s.voice,
			"format":          "lpcm",
			"sampleRateHertz": strconv.Itoa(internal_audio.TelephonySampleRate),
			"folderId":        s.folderID,
		}).
		Post(s.endpoint)
	if err != nil {
		return nil, fmt.Errorf("yandex: synthesis request failed: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("yandex: synthesis returned %d: %s", resp.StatusCode(), resp.String())
	}
	pcm := resp.Body()
	if len(pcm) == 0 {
		return nil, fmt.Errorf("yandex: synthesis returned no audio")
	}
	return internal_audio.EncodeWAV(pcm, internal_audio.TelephonySampleRate), nil
}

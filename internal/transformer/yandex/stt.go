// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_transformer_yandex

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"

	internal_audio "github.com/Askhat-cmd/langchain-vox-bot/internal/audio"
	"github.com/Askhat-cmd/langchain-vox-bot/pkg/commons"
	"github.com/Askhat-cmd/langchain-vox-bot/pkg/utils"
)

const DefaultSTTEndpoint = "https://stt.api.cloud.yandex.net/speech/v1/stt:recognize"

// speechRecognizer transcribes a finished recording through the SpeechKit v1
// recognition endpoint. Recordings arrive as WAV files from the telephony
// layer; the container is stripped before upload.
type speechRecognizer struct {
	logger   commons.Logger
	client   *resty.Client
	endpoint string
	apiKey   string
	folderID string
	language string
}

// NewSpeechRecognizer builds the SpeechKit STT backend. Recognized options:
// "listen.language", "listen.endpoint".
func NewSpeechRecognizer(logger commons.Logger, apiKey, folderID string, opts utils.Option) (*speechRecognizer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("yandex: api key is required for recognition")
	}
	r := &speechRecognizer{
		logger:   logger,
		client:   resty.New(),
		endpoint: DefaultSTTEndpoint,
		apiKey:   apiKey,
		folderID: folderID,
		language: DefaultLanguage,
	}
	if v, err := opts.GetString("listen.language"); err == nil {
		r.language = v
	}
	if v, err := opts.GetString("listen.endpoint"); err == nil {
		r.endpoint = v
	}
	return r, nil
}

func (r *speechRecognizer) Transcribe(ctx context.Context, audioPath string) (string, error) {
	data, err := os.ReadFile(audioPath)
	if err != nil {
		return "", fmt.Errorf("yandex: reading recording %s: %w", audioPath, err)
	}
	pcm, sampleRate, err := internal_audio.DecodeWAV(data)
	if err != nil {
		// Not a WAV container, upload as-is at the telephony rate.
		r.logger.Warnw("recording is not a wav container, sending raw", "path", audioPath, "error", err)
		pcm = data
		sampleRate = internal_audio.TelephonySampleRate
	}
	if len(pcm) == 0 {
		return "", nil
	}

	resp, err := r.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Api-Key "+r.apiKey).
		SetQueryParams(map[string]string{
			"lang":            r.language,
			"folderId":        r.folderID,
			"format":          "lpcm",
			"sampleRateHertz": strconv.Itoa(sampleRate),
		}).
		SetBody(pcm).
		Post(r.endpoint)
	if err != nil {
		return "", fmt.Errorf("yandex: recognition request failed: %w", err)
	}
	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("yandex: recognition returned %d: %s", resp.StatusCode(), resp.String())
	}

	var body struct {
		Result string `json:"result"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return "", fmt.Errorf("yandex: decoding recognition response: %w", err)
	}
	return strings.TrimSpace(body.Result), nil
}

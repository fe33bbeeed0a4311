// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_ari

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Askhat-cmd/langchain-vox-bot/pkg/commons"
)

const reconnectBackoff = 2 * time.Second

// Client drives Asterisk over its REST interface and consumes its event
// stream over a websocket. One client serves every concurrent call.
type Client struct {
	logger   commons.Logger
	http     *resty.Client
	baseURL  string
	username string
	password string
	appName  string

	// directory where Asterisk stores live recordings
	recordingDir string
}

func NewClient(logger commons.Logger, baseURL, username, password, appName, recordingDir string) *Client {
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetBasicAuth(username, password).
		SetTimeout(10 * time.Second)

	return &Client{
		logger:       logger,
		http:         httpClient,
		baseURL:      baseURL,
		username:     username,
		password:     password,
		appName:      appName,
		recordingDir: recordingDir,
	}
}

// =============================================================================
// Channel operations
// =============================================================================

func (c *Client) Answer(ctx context.Context, channelID string) error {
	resp, err := c.http.R().SetContext(ctx).
		Post("/channels/" + url.PathEscape(channelID) + "/answer")
	return c.check("answer", resp, err)
}

func (c *Client) Hangup(ctx context.Context, channelID string) error {
	resp, err := c.http.R().SetContext(ctx).
		Delete("/channels/" + url.PathEscape(channelID))
	return c.check("hangup", resp, err)
}

// EnableTalkDetect turns on Asterisk's DSP talk detection for a channel so
// caller speech during playback raises ChannelTalkingStarted events.
func (c *Client) EnableTalkDetect(ctx context.Context, channelID string) error {
	resp, err := c.http.R().SetContext(ctx).
		SetQueryParam("variable", "TALK_DETECT(set)").
		SetQueryParam("value", "").
		Post("/channels/" + url.PathEscape(channelID) + "/variable")
	return c.check("talk detect", resp, err)
}

// Play starts playback of a stored sound. The playback id is assigned
// client side so PlaybackStarted and PlaybackFinished events correlate
// without an extra round trip.
func (c *Client) Play(ctx context.Context, channelID, soundID string) (string, error) {
	playbackID := uuid.NewString()
	resp, err := c.http.R().SetContext(ctx).
		SetQueryParam("media", "sound:"+soundID).
		Post("/channels/" + url.PathEscape(channelID) + "/play/" + playbackID)
	if err := c.check("play", resp, err); err != nil {
		return "", err
	}
	return playbackID, nil
}

func (c *Client) StopPlayback(ctx context.Context, playbackID string) error {
	resp, err := c.http.R().SetContext(ctx).
		Delete("/playbacks/" + url.PathEscape(playbackID))
	return c.check("stop playback", resp, err)
}

// Record starts a live channel recording. The returned name identifies the
// recording both for StopRecording and in the RecordingFinished event.
func (c *Client) Record(ctx context.Context, channelID, name string, maxDuration time.Duration) (string, error) {
	resp, err := c.http.R().SetContext(ctx).
		SetQueryParams(map[string]string{
			"name":               name,
			"format":             "wav",
			"maxDurationSeconds": strconv.Itoa(int(maxDuration.Seconds())),
			"ifExists":           "overwrite",
			"beep":               "false",
		}).
		Post("/channels/" + url.PathEscape(channelID) + "/record")
	if err := c.check("record", resp, err); err != nil {
		return "", err
	}
	return name, nil
}

func (c *Client) StopRecording(ctx context.Context, name string) error {
	resp, err := c.http.R().SetContext(ctx).
		Post("/recordings/live/" + url.PathEscape(name) + "/stop")
	return c.check("stop recording", resp, err)
}

// RecordingPath maps a recording name to the file Asterisk wrote.
func (c *Client) RecordingPath(name string) string {
	return filepath.Join(c.recordingDir, name+".wav")
}

func (c *Client) check(op string, resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("ari: %s request failed: %w", op, err)
	}
	if resp.StatusCode() >= 300 {
		return fmt.Errorf("ari: %s returned %d: %s", op, resp.StatusCode(), resp.String())
	}
	return nil
}

// =============================================================================
// Event stream
// =============================================================================

// Listen connects to the ARI websocket and invokes handler for every parsed
// event. It reconnects on transport errors and returns only when ctx is
// cancelled.
func (c *Client) Listen(ctx context.Context, handler func(Event)) error {
	wsURL, err := c.websocketURL()
	if err != nil {
		return err
	}
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := c.readLoop(ctx, wsURL, handler); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warnw("ari websocket disconnected, reconnecting", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectBackoff):
		}
	}
}

func (c *Client) readLoop(ctx context.Context, wsURL string, handler func(Event)) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("ari: websocket dial: %w", err)
	}
	defer conn.Close()
	c.logger.Infow("ari websocket connected", "app", c.appName)

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var event Event
		if err := json.Unmarshal(payload, &event); err != nil {
			c.logger.Warnw("skipping malformed ari event", "error", err)
			continue
		}
		handler(event)
	}
}

func (c *Client) websocketURL() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("ari: invalid base url %q: %w", c.baseURL, err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/events"
	q := u.Query()
	q.Set("app", c.appName)
	q.Set("api_key", c.username+":"+c.password)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Askhat-cmd/langchain-vox-bot/pkg/commons"
	"github.com/Askhat-cmd/langchain-vox-bot/pkg/utils"
)

// cleanupDelay leaves a dropped sound file on disk long enough for the
// control plane to open it before it is removed.
const cleanupDelay = 30 * time.Second

// SoundStore drops synthesized audio buffers into the directory the
// telephony control plane reads sound files from, and removes them again
// once playback must have finished.
type SoundStore struct {
	dir    string
	logger commons.Logger
}

func NewSoundStore(dir string, logger commons.Logger) (*SoundStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("sound dir %s: %w", dir, err)
	}
	return &SoundStore{dir: dir, logger: logger}, nil
}

// Drop writes audio under the given sound id and schedules a delayed
// removal. It returns the id the control plane should reference.
func (s *SoundStore) Drop(ctx context.Context, soundID string, wav []byte) (string, error) {
	path := filepath.Join(s.dir, soundID+".wav")
	if err := os.WriteFile(path, wav, 0o644); err != nil {
		return "", fmt.Errorf("write sound %s: %w", path, err)
	}
	s.logger.Debugf("sounds: dropped %s (%d bytes)", path, len(wav))

	utils.Go(ctx, func() {
		select {
		case <-time.After(cleanupDelay):
		case <-ctx.Done():
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.logger.Warnf("sounds: cleanup of %s failed: %v", path, err)
		}
	})
	return soundID, nil
}

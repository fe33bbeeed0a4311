// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_filler

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Askhat-cmd/langchain-vox-bot/pkg/commons"
)

func newTestLogger() commons.Logger {
	l, _ := commons.NewApplicationLogger()
	return l
}

type fakeSynth struct {
	failOn map[string]bool
}

func (f *fakeSynth) Name() string { return "fake" }

func (f *fakeSynth) Synthesize(_ context.Context, text string) ([]byte, error) {
	if f.failOn[text] {
		return nil, fmt.Errorf("synthesis failed")
	}
	return []byte("audio:" + text), nil
}

func TestCache_WarmAndPick(t *testing.T) {
	cache := NewCache(newTestLogger())
	cache.Warm(context.Background(), &fakeSynth{}, []string{"Хм,", "Так,"})

	text, audio, ok := cache.Pick()
	require.True(t, ok)
	assert.Contains(t, []string{"Хм,", "Так,"}, text)
	assert.Equal(t, []byte("audio:"+text), audio)
}

func TestCache_WarmSkipsFailedPhrases(t *testing.T) {
	cache := NewCache(newTestLogger())
	cache.Warm(context.Background(), &fakeSynth{failOn: map[string]bool{"Так,": true}}, []string{"Хм,", "Так,"})

	for i := 0; i < 20; i++ {
		text, _, ok := cache.Pick()
		require.True(t, ok)
		assert.Equal(t, "Хм,", text)
	}
}

func TestCache_EmptyCacheReportsNotOK(t *testing.T) {
	cache := NewCache(newTestLogger())
	_, _, ok := cache.Pick()
	assert.False(t, ok)

	cache.Warm(context.Background(), &fakeSynth{failOn: map[string]bool{"Хм,": true}}, []string{"Хм,"})
	_, _, ok = cache.Pick()
	assert.False(t, ok)
}

func TestCache_WarmDefaultsPhrases(t *testing.T) {
	cache := NewCache(newTestLogger())
	cache.Warm(context.Background(), &fakeSynth{}, nil)

	text, _, ok := cache.Pick()
	require.True(t, ok)
	assert.Contains(t, DefaultPhrases, text)
}

// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internal_type "github.com/Askhat-cmd/langchain-vox-bot/internal/type"
)

func TestTranscript_AppendKeepsOrder(t *testing.T) {
	tr := NewTranscript()
	tr.Append(internal_type.SpeakerBot, "Здравствуйте!")
	tr.Append(internal_type.SpeakerUser, "Добрый день")
	tr.Append(internal_type.SpeakerBot, "Чем могу помочь?")

	entries := tr.Snapshot()
	require.Len(t, entries, 3)
	assert.Equal(t, internal_type.SpeakerBot, entries[0].Speaker)
	assert.Equal(t, "Добрый день", entries[1].Text)
	assert.False(t, entries[0].Timestamp.IsZero())
}

func TestTranscript_EmptyTextIgnored(t *testing.T) {
	tr := NewTranscript()
	tr.Append(internal_type.SpeakerBot, "")
	assert.Empty(t, tr.Snapshot())
}

func TestTranscript_SnapshotIsACopy(t *testing.T) {
	tr := NewTranscript()
	tr.Append(internal_type.SpeakerUser, "original")

	snap := tr.Snapshot()
	snap[0].Text = "mutated"

	assert.Equal(t, "original", tr.Snapshot()[0].Text)
}

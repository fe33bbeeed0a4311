// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_agent

import (
	"io"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/packages/ssestream"
)

// replyStream adapts the SSE completion stream to ReplyStream. Next skips
// empty deltas and returns io.EOF once the model is done; onComplete fires
// exactly once with the accumulated reply.
type replyStream struct {
	stream     *ssestream.Stream[openai.ChatCompletionChunk]
	onComplete func(full string)
	full       strings.Builder
	done       bool
}

func (r *replyStream) Next() (string, error) {
	if r.done {
		return "", io.EOF
	}
	for r.stream.Next() {
		chunk := r.stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		r.full.WriteString(delta)
		return delta, nil
	}
	r.done = true
	if err := r.stream.Err(); err != nil {
		return "", err
	}
	if r.onComplete != nil {
		r.onComplete(r.full.String())
	}
	return "", io.EOF
}

func (r *replyStream) Close() error {
	r.done = true
	return r.stream.Close()
}

// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_agent

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	internal_type "github.com/Askhat-cmd/langchain-vox-bot/internal/type"
	"github.com/Askhat-cmd/langchain-vox-bot/pkg/commons"
)

// DefaultSystemPrompt instructs the model to slice its answer into short
// spoken phrases separated by "|" so synthesis can start before the full
// reply exists.
const DefaultSystemPrompt = `Ты голосовой помощник. Отвечай кратко и разговорно, как по телефону.
Разбивай ответ на короткие фразы и разделяй их символом | после каждой фразы.
Не используй markdown, списки и специальные символы.`

const defaultMaxHistory = 20

// Agent generates streaming replies with per-conversation history. The
// system prompt and knowledge base are mutable at runtime through the
// admin surface.
type Agent struct {
	logger commons.Logger
	client openai.Client
	model  string

	mu            sync.RWMutex
	systemPrompt  string
	knowledgeBase string
	maxHistory    int
	conversations map[string][]openai.ChatCompletionMessageParamUnion
}

func NewAgent(logger commons.Logger, apiKey, model, systemPrompt string) (*Agent, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("agent: openai api key is required")
	}
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	return &Agent{
		logger:        logger,
		client:        openai.NewClient(option.WithAPIKey(apiKey)),
		model:         model,
		systemPrompt:  systemPrompt,
		maxHistory:    defaultMaxHistory,
		conversations: make(map[string][]openai.ChatCompletionMessageParamUnion),
	}, nil
}

// SystemPrompt returns the active system prompt.
func (a *Agent) SystemPrompt() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.systemPrompt
}

// SetSystemPrompt replaces the system prompt for subsequent replies.
// Existing conversation history is kept.
func (a *Agent) SetSystemPrompt(prompt string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.systemPrompt = prompt
	a.logger.Infow("system prompt updated", "length", len(prompt))
}

// SetKnowledgeBase replaces the reference text appended to the system
// prompt.
func (a *Agent) SetKnowledgeBase(text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.knowledgeBase = text
	a.logger.Infow("knowledge base updated", "length", len(text))
}

// Forget drops the history of one conversation.
func (a *Agent) Forget(conversationID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.conversations, conversationID)
}

// Generate starts a streaming completion for the user's utterance. The
// user message is recorded immediately; the assistant message is recorded
// once the stream is fully drained.
func (a *Agent) Generate(ctx context.Context, text, conversationID string) (internal_type.ReplyStream, error) {
	a.mu.Lock()
	history := a.conversations[conversationID]
	history = append(history, openai.UserMessage(text))
	if len(history) > a.maxHistory {
		history = history[len(history)-a.maxHistory:]
	}
	a.conversations[conversationID] = history

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+1)
	messages = append(messages, openai.SystemMessage(a.composedPromptLocked()))
	messages = append(messages, history...)
	a.mu.Unlock()

	stream := a.client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(a.model),
		Messages: messages,
	})

	return &replyStream{
		stream: stream,
		onComplete: func(full string) {
			a.recordAssistant(conversationID, full)
		},
	}, nil
}

func (a *Agent) composedPromptLocked() string {
	if a.knowledgeBase == "" {
		return a.systemPrompt
	}
	return a.systemPrompt + "\n\nСправочная информация:\n" + a.knowledgeBase
}

func (a *Agent) recordAssistant(conversationID, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	history := append(a.conversations[conversationID], openai.AssistantMessage(text))
	if len(history) > a.maxHistory {
		history = history[len(history)-a.maxHistory:]
	}
	a.conversations[conversationID] = history
}

// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_normalizer

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/Askhat-cmd/langchain-vox-bot/pkg/commons"
	ntw "moul.io/number-to-words"
)

// Normalizer transforms reply text for better TTS prosody. Normalizers are
// composed into a pipeline and applied in order.
type Normalizer interface {
	Name() string
	Normalize(ctx context.Context, text string) string
}

// =============================================================================
// Symbol normalizer
// =============================================================================

// symbolNormalizer strips markup and control characters the reply generator
// occasionally leaks (stray delimiters, markdown asterisks) and collapses
// whitespace runs.
type symbolNormalizer struct {
	logger commons.Logger
}

func NewSymbolNormalizer(logger commons.Logger) Normalizer {
	return &symbolNormalizer{logger: logger}
}

func (n *symbolNormalizer) Name() string { return "symbol" }

func (n *symbolNormalizer) Normalize(_ context.Context, text string) string {
	replacer := strings.NewReplacer("|", " ", "*", " ", "#", " ", "`", " ", "_", " ")
	text = replacer.Replace(text)
	return strings.Join(strings.Fields(text), " ")
}

// =============================================================================
// Number-to-word normalizer
// =============================================================================

var integerToken = regexp.MustCompile(`\b\d+\b`)

// numberNormalizer spells out standalone integers so the synthesizer does
// not have to guess digit grouping. Very large numbers are left as-is.
type numberNormalizer struct {
	logger   commons.Logger
	language string
}

func NewNumberToWordNormalizer(logger commons.Logger, language string) Normalizer {
	return &numberNormalizer{logger: logger, language: language}
}

func (n *numberNormalizer) Name() string { return "number-to-word" }

func (n *numberNormalizer) Normalize(_ context.Context, text string) string {
	return integerToken.ReplaceAllStringFunc(text, func(tok string) string {
		v, err := strconv.Atoi(tok)
		if err != nil || v > 999_999_999 {
			return tok
		}
		var words string
		switch strings.ToLower(n.language) {
		case "ru", "ru-ru":
			words = ntw.IntegerToRuRu(v)
		default:
			words = ntw.IntegerToEnUs(v)
		}
		if words == "" {
			return tok
		}
		return words
	})
}

// =============================================================================
// Pipeline
// =============================================================================

// Pipeline applies a fixed ordered set of normalizers.
type Pipeline struct {
	normalizers []Normalizer
}

// NewPipeline builds the default reply-text pipeline: symbol cleanup first,
// then number expansion for the configured language.
func NewPipeline(logger commons.Logger, language string) *Pipeline {
	return &Pipeline{normalizers: []Normalizer{
		NewSymbolNormalizer(logger),
		NewNumberToWordNormalizer(logger, language),
	}}
}

func (p *Pipeline) Normalize(ctx context.Context, text string) string {
	for _, n := range p.normalizers {
		text = n.Normalize(ctx, text)
	}
	return text
}

// Copyright 2026 The triage Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package llm provides the production Invoker implementation backed by the
// Anthropic Messages API.
package llm

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	log "github.com/sirupsen/logrus"
)

const systemPrompt = "You are a precise customer-message classification engine. " +
	"You only ever respond with the single JSON object requested, with no surrounding text."

// AnthropicInvoker calls the Anthropic Messages API with the instruction
// payload as the user turn. The caller owns the deadline via ctx.
type AnthropicInvoker struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// NewAnthropicInvoker builds an invoker for the given model.
func NewAnthropicInvoker(apiKey, model string, maxTokens int64) *AnthropicInvoker {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &AnthropicInvoker{
		client:    anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:     anthropic.Model(model),
		maxTokens: maxTokens,
	}
}

// Invoke sends the payload and returns the first text block of the response.
func (a *AnthropicInvoker) Invoke(ctx context.Context, payload string) (string, error) {
	message, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt, CacheControl: anthropic.NewCacheControlEphemeralParam()},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(payload)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API error: %w", err)
	}

	log.Debugf("Model response received | tokens_in=%d tokens_out=%d",
		message.Usage.InputTokens, message.Usage.OutputTokens)

	for _, block := range message.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("no text content in model response")
}

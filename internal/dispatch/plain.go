package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/nulzo/polly/internal/llm"
	"github.com/nulzo/polly/pkg/api"
)

const chatTemplate = `You are a helpful AI assistant. Provide clear, accurate, and helpful responses.

Current conversation:
%s

User: %s
AI:`

// Chat runs plain chat mode: the conversation is rendered into a single
// prompt and the completion streams back in generation order.
func (d *Dispatcher) Chat(ctx context.Context, req *api.ChatRequest) (<-chan llm.StreamResult, error) {
	client, err := d.resolve(req)
	if err != nil {
		return nil, err
	}

	history := req.Messages[:len(req.Messages)-1]
	input := req.Messages[len(req.Messages)-1].Content
	prompt := fmt.Sprintf(chatTemplate, renderHistory(history), input)

	stream, err := client.Stream(ctx, &llm.Request{
		Messages: []llm.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return nil, mapUpstream(err)
	}

	out := make(chan llm.StreamResult)
	go func() {
		defer close(out)
		for res := range stream {
			if res.Err != nil {
				res.Err = mapUpstream(res.Err)
			}
			if !emit(ctx, out, res) {
				return
			}
		}
	}()
	return out, nil
}

// renderHistory flattens prior turns into "role: content" lines.
func renderHistory(messages []api.ChatMessage) string {
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		lines = append(lines, fmt.Sprintf("%s: %s", m.Role, m.Content))
	}
	return strings.Join(lines, "\n")
}

package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/nulzo/polly/internal/llm"
	"github.com/nulzo/polly/internal/tools"
	"github.com/nulzo/polly/pkg/api"
)

const defaultAgentSystemPrompt = `You are a talking parrot named Polly. All final responses must be how a talking parrot would respond. Squawk often!

Tool policy to ensure a final answer:
- For factual, current, or location-based questions (e.g., weather/time), first try exa_answer with the original question.
- If exa_answer refuses, returns no value, or is uncertain, then call exa_search_with_content to fetch content and synthesize the answer. Use exa_search to collect and cross-check citations when helpful.
- After tool calls, ALWAYS provide a short, concrete answer to the user's question (not just commentary about results).`

// maxToolRounds bounds the agent loop. When the model is still asking for
// tools after this many rounds, the last content wins.
const maxToolRounds = 8

// AgentStream runs agent mode and streams only the user-visible text. Chunks
// that carry nothing but tool-call fragments never reach the caller; between
// rounds the requested tools run and their observations feed the next turn.
func (d *Dispatcher) AgentStream(ctx context.Context, req *api.ChatRequest) (<-chan llm.StreamResult, error) {
	client, err := d.resolve(req)
	if err != nil {
		return nil, err
	}

	run := d.newAgentRun(req)
	out := make(chan llm.StreamResult)

	go func() {
		defer close(out)

		conv := run.conversation
		for round := 0; round < maxToolRounds; round++ {
			stream, err := client.Stream(ctx, &llm.Request{
				Messages: conv,
				System:   run.system,
				Tools:    run.specs,
			})
			if err != nil {
				emit(ctx, out, llm.StreamResult{Err: mapUpstream(err)})
				return
			}

			var content strings.Builder
			calls := newCallAccumulator()
			for res := range stream {
				if res.Err != nil {
					emit(ctx, out, llm.StreamResult{Err: mapUpstream(res.Err)})
					return
				}
				calls.add(res.Chunk.ToolCalls)
				if res.Chunk.HasContent() {
					content.WriteString(res.Chunk.Content)
					if !emit(ctx, out, llm.StreamResult{Chunk: &llm.Chunk{Content: res.Chunk.Content}}) {
						return
					}
				}
			}

			requested := calls.calls()
			if len(requested) == 0 {
				return
			}

			conv = append(conv, llm.Message{
				Role:      "assistant",
				Content:   content.String(),
				ToolCalls: requested,
			})
			conv = append(conv, run.invokeAll(ctx, requested)...)
		}
	}()

	return out, nil
}

// AgentTranscript runs agent mode without streaming and returns the full run:
// the cleaned input conversation, every assistant turn with its tool-call
// decisions, and every tool observation, in generation order.
func (d *Dispatcher) AgentTranscript(ctx context.Context, req *api.ChatRequest) (*api.TranscriptResponse, error) {
	client, err := d.resolve(req)
	if err != nil {
		return nil, err
	}

	run := d.newAgentRun(req)
	transcript := run.inputMessages

	conv := run.conversation
	for round := 0; round < maxToolRounds; round++ {
		resp, err := client.Chat(ctx, &llm.Request{
			Messages: conv,
			System:   run.system,
			Tools:    run.specs,
		})
		if err != nil {
			return nil, mapUpstream(err)
		}

		transcript = append(transcript, api.ChatMessage{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: toAPIToolCalls(resp.ToolCalls),
		})
		if len(resp.ToolCalls) == 0 {
			break
		}

		conv = append(conv, llm.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		results := run.invokeAll(ctx, resp.ToolCalls)
		conv = append(conv, results...)
		for _, r := range results {
			transcript = append(transcript, api.ChatMessage{
				Role:       "tool",
				Content:    r.Content,
				ToolCallID: r.ToolCallID,
				Name:       r.Name,
			})
		}
	}

	return &api.TranscriptResponse{Messages: transcript}, nil
}

// agentRun is the per-request agent state: cleaned history, system prompt,
// and the assembled toolset.
type agentRun struct {
	system        string
	specs         []llm.ToolSpec
	byName        map[string]tools.Tool
	conversation  []llm.Message
	inputMessages []api.ChatMessage
}

func (d *Dispatcher) newAgentRun(req *api.ChatRequest) *agentRun {
	system := req.SystemPrompt
	if system == "" {
		system = defaultAgentSystemPrompt
	}

	exaKey := req.ExaAPIKey
	if exaKey == "" {
		exaKey = d.tools.ExaAPIKey
	}
	toolset := tools.Toolkit(tools.Config{
		ExaAPIKey:        exaKey,
		TavilyAPIKey:     d.tools.TavilyAPIKey,
		CoinGeckoDemoKey: d.tools.CoinGeckoDemoKey,
		HTTPClient:       d.toolClient,
	})

	// Intermediate steps from earlier runs come back as system/tool
	// messages for display; only the real dialogue feeds the model.
	var input []api.ChatMessage
	var conv []llm.Message
	for _, m := range req.Messages {
		if m.Role != "user" && m.Role != "assistant" {
			continue
		}
		input = append(input, api.ChatMessage{Role: m.Role, Content: m.Content})
		conv = append(conv, llm.Message{Role: m.Role, Content: m.Content})
	}

	return &agentRun{
		system:        system,
		specs:         tools.Specs(toolset),
		byName:        tools.ByName(toolset),
		conversation:  conv,
		inputMessages: input,
	}
}

// invokeAll runs every requested tool and wraps the observations as tool
// messages. Tools never fail; an unknown name yields a textual observation
// the model can recover from.
func (r *agentRun) invokeAll(ctx context.Context, calls []llm.ToolCall) []llm.Message {
	results := make([]llm.Message, 0, len(calls))
	for _, call := range calls {
		var observation string
		if tool, ok := r.byName[call.Name]; ok {
			observation = tool.Invoke(ctx, toolInput(call.Arguments))
		} else {
			observation = fmt.Sprintf("Unknown tool: %s", call.Name)
		}
		results = append(results, llm.Message{
			Role:       "tool",
			Content:    observation,
			ToolCallID: call.ID,
			Name:       call.Name,
		})
	}
	return results
}

// toolInput unwraps the shared {"input": "..."} argument shape. Arguments
// that are not that shape pass through raw, so a model improvising its
// argument format still reaches the tool.
func toolInput(arguments string) string {
	var parsed struct {
		Input string `json:"input"`
	}
	if err := json.Unmarshal([]byte(arguments), &parsed); err == nil && parsed.Input != "" {
		return parsed.Input
	}
	return arguments
}

// emit delivers one stream item unless the caller is gone.
func emit(ctx context.Context, out chan<- llm.StreamResult, res llm.StreamResult) bool {
	select {
	case out <- res:
		return true
	case <-ctx.Done():
		return false
	}
}

// callAccumulator assembles streamed tool-call fragments into complete
// calls. Fragments share an Index; arguments concatenate in arrival order.
type callAccumulator struct {
	byIndex map[int]*llm.ToolCall
	order   []int
}

func newCallAccumulator() *callAccumulator {
	return &callAccumulator{byIndex: make(map[int]*llm.ToolCall)}
}

func (a *callAccumulator) add(deltas []llm.ToolCallDelta) {
	for _, delta := range deltas {
		call, ok := a.byIndex[delta.Index]
		if !ok {
			call = &llm.ToolCall{}
			a.byIndex[delta.Index] = call
			a.order = append(a.order, delta.Index)
		}
		if delta.ID != "" {
			call.ID = delta.ID
		}
		if delta.Name != "" {
			call.Name = delta.Name
		}
		call.Arguments += delta.Arguments
	}
}

func (a *callAccumulator) calls() []llm.ToolCall {
	sort.Ints(a.order)
	out := make([]llm.ToolCall, 0, len(a.order))
	for _, idx := range a.order {
		call := a.byIndex[idx]
		if call.ID == "" {
			call.ID = "call_" + uuid.NewString()
		}
		out = append(out, *call)
	}
	return out
}

func toAPIToolCalls(calls []llm.ToolCall) []api.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]api.ToolCall, 0, len(calls))
	for _, c := range calls {
		out = append(out, api.ToolCall{ID: c.ID, Name: c.Name, Arguments: c.Arguments})
	}
	return out
}

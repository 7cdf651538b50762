package v1

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nulzo/polly/internal/analytics"
	"github.com/nulzo/polly/internal/config"
	"github.com/nulzo/polly/internal/dispatch"
	"github.com/nulzo/polly/internal/llm"
	"github.com/nulzo/polly/internal/server/validator"
	"github.com/nulzo/polly/internal/store/model"
	"github.com/nulzo/polly/pkg/api"
)

type ChatHandler struct {
	dispatcher *dispatch.Dispatcher
	ingestor   analytics.Ingestor
	defaults   config.DefaultsConfig
}

func NewChatHandler(d *dispatch.Dispatcher, ingestor analytics.Ingestor, defaults config.DefaultsConfig) *ChatHandler {
	return &ChatHandler{
		dispatcher: d,
		ingestor:   ingestor,
		defaults:   defaults,
	}
}

// Chat handles plain chat mode and streams the completion as text.
func (h *ChatHandler) Chat(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}

	start := time.Now()
	stream, err := h.dispatcher.Chat(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	result := streamText(c, stream)
	h.record(req, model.ModeChat, start, result)
}

// Agents handles agent mode: streamed text by default, the full transcript
// as JSON when intermediate steps were requested.
func (h *ChatHandler) Agents(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}

	start := time.Now()
	if req.ShowIntermediateSteps {
		resp, err := h.dispatcher.AgentTranscript(c.Request.Context(), req)
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, resp)
		h.record(req, model.ModeAgent, start, streamOutcome{status: http.StatusOK})
		return
	}

	stream, err := h.dispatcher.AgentStream(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	result := streamText(c, stream)
	h.record(req, model.ModeAgent, start, result)
}

// StructuredOutput handles structured mode and returns the validated object
// unwrapped.
func (h *ChatHandler) StructuredOutput(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}

	start := time.Now()
	out, err := h.dispatcher.Structured(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, out)
	h.record(req, model.ModeStructured, start, streamOutcome{status: http.StatusOK})
}

func (h *ChatHandler) bind(c *gin.Context) (*api.ChatRequest, bool) {
	var req api.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(api.BadRequest(validator.Message(err)))
		return nil, false
	}
	return &req, true
}

func (h *ChatHandler) record(req *api.ChatRequest, mode string, start time.Time, result streamOutcome) {
	provider := req.Provider
	if provider == "" {
		provider = h.defaults.Provider
	}
	modelID := req.Model
	if modelID == "" {
		modelID = h.defaults.Model
	}

	entry := &model.RequestLog{
		ID:         uuid.NewString(),
		Provider:   provider,
		Model:      modelID,
		Mode:       mode,
		StatusCode: result.status,
		LatencyMS:  time.Since(start).Milliseconds(),
		TTFTMS:     result.ttft,
		IsStreamed: result.streamed,
		CreatedAt:  time.Now().UTC(),
	}
	if result.usage != nil {
		entry.InputTokens = result.usage.PromptTokens
		entry.OutputTokens = result.usage.CompletionTokens
	}
	h.ingestor.Log(entry)
}

// streamOutcome is what a finished stream leaves behind for analytics.
type streamOutcome struct {
	status   int
	ttft     sql.NullInt64
	usage    *llm.Usage
	streamed bool
}

// streamText forwards content chunks to the client as a plain text body.
// Errors before the first byte become a normal JSON error response; once the
// stream is committed, forwarding simply stops.
func streamText(c *gin.Context, stream <-chan llm.StreamResult) streamOutcome {
	start := time.Now()
	out := streamOutcome{status: http.StatusOK, streamed: true}
	committed := false

	commit := func() {
		c.Header("Content-Type", "text/plain; charset=utf-8")
		c.Header("Cache-Control", "no-cache")
		c.Writer.WriteHeader(http.StatusOK)
		committed = true
	}

	for res := range stream {
		if res.Err != nil {
			if !committed {
				out.status = api.StatusOf(res.Err)
				c.JSON(out.status, api.ErrorResponse{Error: res.Err.Error()})
			}
			return out
		}
		if res.Chunk.Usage != nil {
			out.usage = res.Chunk.Usage
		}
		if !res.Chunk.HasContent() {
			continue
		}
		if !committed {
			commit()
			out.ttft = sql.NullInt64{Int64: time.Since(start).Milliseconds(), Valid: true}
		}
		if _, err := c.Writer.WriteString(res.Chunk.Content); err != nil {
			return out
		}
		c.Writer.Flush()
	}

	if !committed {
		commit()
	}
	return out
}

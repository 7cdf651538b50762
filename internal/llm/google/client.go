package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/nulzo/polly/internal/httpclient"
	"github.com/nulzo/polly/internal/llm"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

type Options struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient httpclient.HTTPClient
}

// Client speaks the Gemini generateContent dialect.
type Client struct {
	opts   Options
	client httpclient.HTTPClient
}

func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	c := opts.HTTPClient
	if c == nil {
		c = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{opts: opts, client: c}
}

type wirePart struct {
	Text             string            `json:"text,omitempty"`
	FunctionCall     *wireFunctionCall `json:"functionCall,omitempty"`
	FunctionResponse *wireFunctionResp `json:"functionResponse,omitempty"`
}

type wireFunctionCall struct {
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args"`
}

type wireFunctionResp struct {
	Name     string                 `json:"name"`
	Response map[string]interface{} `json:"response"`
}

type wireContent struct {
	Role  string     `json:"role,omitempty"`
	Parts []wirePart `json:"parts"`
}

type wireFunctionDecl struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

type wireRequest struct {
	Contents          []wireContent `json:"contents"`
	SystemInstruction *wireContent  `json:"systemInstruction,omitempty"`
	Tools             []struct {
		FunctionDeclarations []wireFunctionDecl `json:"functionDeclarations"`
	} `json:"tools,omitempty"`
	ToolConfig *struct {
		FunctionCallingConfig struct {
			Mode                 string   `json:"mode"`
			AllowedFunctionNames []string `json:"allowedFunctionNames,omitempty"`
		} `json:"functionCallingConfig"`
	} `json:"toolConfig,omitempty"`
	GenerationConfig *struct {
		MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
		Temperature     float64 `json:"temperature,omitempty"`
	} `json:"generationConfig,omitempty"`
}

type wireResponse struct {
	Candidates []struct {
		Content      wireContent `json:"content"`
		FinishReason string      `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata,omitempty"`
}

func (c *Client) buildRequest(req *llm.Request) wireRequest {
	var wr wireRequest

	if req.System != "" {
		wr.SystemInstruction = &wireContent{Parts: []wirePart{{Text: req.System}}}
	}

	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			if wr.SystemInstruction == nil {
				wr.SystemInstruction = &wireContent{}
			}
			wr.SystemInstruction.Parts = append(wr.SystemInstruction.Parts, wirePart{Text: m.Content})
		case "assistant":
			parts := []wirePart{}
			if m.Content != "" {
				parts = append(parts, wirePart{Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				var args map[string]interface{}
				if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
					args = map[string]interface{}{}
				}
				parts = append(parts, wirePart{FunctionCall: &wireFunctionCall{Name: tc.Name, Args: args}})
			}
			wr.Contents = append(wr.Contents, wireContent{Role: "model", Parts: parts})
		case "tool":
			wr.Contents = append(wr.Contents, wireContent{
				Role: "user",
				Parts: []wirePart{{FunctionResponse: &wireFunctionResp{
					Name:     m.Name,
					Response: map[string]interface{}{"result": m.Content},
				}}},
			})
		default:
			wr.Contents = append(wr.Contents, wireContent{Role: "user", Parts: []wirePart{{Text: m.Content}}})
		}
	}

	decls := make([]wireFunctionDecl, 0, len(req.Tools)+1)
	for _, t := range req.Tools {
		decls = append(decls, wireFunctionDecl{Name: t.Name, Description: t.Description, Parameters: t.Parameters})
	}
	if req.ResponseSchema != nil {
		decls = append(decls, wireFunctionDecl{Name: req.ResponseSchema.Name, Parameters: req.ResponseSchema.Schema})
		wr.ToolConfig = &struct {
			FunctionCallingConfig struct {
				Mode                 string   `json:"mode"`
				AllowedFunctionNames []string `json:"allowedFunctionNames,omitempty"`
			} `json:"functionCallingConfig"`
		}{}
		wr.ToolConfig.FunctionCallingConfig.Mode = "ANY"
		wr.ToolConfig.FunctionCallingConfig.AllowedFunctionNames = []string{req.ResponseSchema.Name}
	}
	if len(decls) > 0 {
		wr.Tools = append(wr.Tools, struct {
			FunctionDeclarations []wireFunctionDecl `json:"functionDeclarations"`
		}{FunctionDeclarations: decls})
	}

	if req.MaxTokens > 0 || req.Temperature > 0 {
		wr.GenerationConfig = &struct {
			MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
			Temperature     float64 `json:"temperature,omitempty"`
		}{MaxOutputTokens: req.MaxTokens, Temperature: req.Temperature}
	}

	return wr
}

func (c *Client) Chat(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		strings.TrimRight(c.opts.BaseURL, "/"), c.opts.Model, c.opts.APIKey)

	var resp wireResponse
	if err := httpclient.SendRequest(ctx, c.client, "POST", url, nil, c.buildRequest(req), &resp); err != nil {
		return nil, normalizeError(err)
	}

	if len(resp.Candidates) == 0 {
		return nil, errors.New("no candidates from gemini")
	}

	out, callIndex := &llm.Response{FinishReason: strings.ToLower(resp.Candidates[0].FinishReason)}, 0
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			out.Content += part.Text
		}
		if part.FunctionCall != nil {
			args, _ := json.Marshal(part.FunctionCall.Args)
			out.ToolCalls = append(out.ToolCalls, llm.ToolCall{
				// Gemini does not assign call ids; synthesize stable ones.
				ID:        fmt.Sprintf("call_%d", callIndex),
				Name:      part.FunctionCall.Name,
				Arguments: string(args),
			})
			callIndex++
		}
	}
	if req.ResponseSchema != nil && len(out.ToolCalls) > 0 {
		out.Content = out.ToolCalls[0].Arguments
		out.ToolCalls = nil
	}
	if resp.UsageMetadata != nil {
		out.Usage = &llm.Usage{
			PromptTokens:     resp.UsageMetadata.PromptTokenCount,
			CompletionTokens: resp.UsageMetadata.CandidatesTokenCount,
		}
	}

	return out, nil
}

func (c *Client) Stream(ctx context.Context, req *llm.Request) (<-chan llm.StreamResult, error) {
	ch := make(chan llm.StreamResult)

	url := fmt.Sprintf("%s/models/%s:streamGenerateContent?key=%s&alt=sse",
		strings.TrimRight(c.opts.BaseURL, "/"), c.opts.Model, c.opts.APIKey)

	go func() {
		defer close(ch)

		callIndex := 0
		err := httpclient.StreamRequest(ctx, c.client, "POST", url, nil, c.buildRequest(req), func(line string) error {
			if !strings.HasPrefix(line, "data: ") {
				return nil
			}

			var resp wireResponse
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &resp); err != nil {
				return nil
			}
			if len(resp.Candidates) == 0 {
				return nil
			}

			chunk := &llm.Chunk{}
			for _, part := range resp.Candidates[0].Content.Parts {
				if part.Text != "" {
					chunk.Content += part.Text
				}
				if part.FunctionCall != nil {
					// Gemini streams whole function calls, not fragments.
					args, _ := json.Marshal(part.FunctionCall.Args)
					chunk.ToolCalls = append(chunk.ToolCalls, llm.ToolCallDelta{
						Index:     callIndex,
						ID:        fmt.Sprintf("call_%d", callIndex),
						Name:      part.FunctionCall.Name,
						Arguments: string(args),
					})
					callIndex++
				}
			}
			if resp.Candidates[0].FinishReason != "" {
				chunk.FinishReason = strings.ToLower(resp.Candidates[0].FinishReason)
			}

			select {
			case ch <- llm.StreamResult{Chunk: chunk}:
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		})

		if err != nil {
			// The consumer may already be gone; never block on the
			// final send.
			select {
			case ch <- llm.StreamResult{Err: normalizeError(err)}:
			case <-ctx.Done():
			}
		}
	}()

	return ch, nil
}

type upstreamErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func normalizeError(err error) error {
	var upstreamErr *httpclient.UpstreamError
	if !errors.As(err, &upstreamErr) {
		return err
	}

	var apiErr upstreamErrorResponse
	if jsonErr := json.Unmarshal(upstreamErr.Body, &apiErr); jsonErr == nil && apiErr.Error.Message != "" {
		return &httpclient.UpstreamError{
			StatusCode: upstreamErr.StatusCode,
			Body:       []byte(apiErr.Error.Message),
			URL:        upstreamErr.URL,
		}
	}
	return err
}

package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"

	"github.com/nulzo/polly/internal/llm"
	"github.com/nulzo/polly/pkg/api"
)

const structuredTemplate = `Extract the requested fields from the input.

The field "entity" refers to the first mentioned entity in the input.

Input:

%s`

// structuredFunctionName is the function the model is forced to call; its
// arguments are the structured answer.
const structuredFunctionName = "output_formatter"

// StructuredResponse is the declared output shape for structured mode. The
// model's answer must decode into it exactly.
type StructuredResponse struct {
	Tone             string   `json:"tone"             validate:"required,oneof=positive negative neutral" jsonschema:"enum=positive,enum=negative,enum=neutral" jsonschema_description:"The overall tone of the input"`
	Entity           string   `json:"entity"           validate:"required"                                 jsonschema_description:"The entity mentioned in the input"`
	WordCount        *float64 `json:"word_count"       validate:"required"                                 jsonschema:"type=number" jsonschema_description:"The number of words in the input"`
	ChatResponse     string   `json:"chat_response"    validate:"required"                                 jsonschema_description:"A response to the human's input"`
	FinalPunctuation *string  `json:"final_punctuation,omitempty"                                          jsonschema_description:"The final punctuation mark in the input, if any."`
}

var (
	structuredSchemaOnce sync.Once
	structuredSchema     map[string]interface{}
	structuredValidate   = validator.New()
)

// structuredOutputSchema reflects the response struct into a plain JSON
// Schema object, computed once.
func structuredOutputSchema() map[string]interface{} {
	structuredSchemaOnce.Do(func() {
		reflector := jsonschema.Reflector{
			DoNotReference: true,
			ExpandedStruct: true,
		}
		data, err := json.Marshal(reflector.Reflect(&StructuredResponse{}))
		if err != nil {
			panic(fmt.Sprintf("reflecting structured output schema: %v", err))
		}
		var m map[string]interface{}
		if err := json.Unmarshal(data, &m); err != nil {
			panic(fmt.Sprintf("decoding structured output schema: %v", err))
		}
		delete(m, "$schema")
		structuredSchema = m
	})
	return structuredSchema
}

// Structured runs structured-output mode: one non-streaming invocation with
// the output schema bound, answer coerced and validated before it leaves.
func (d *Dispatcher) Structured(ctx context.Context, req *api.ChatRequest) (*StructuredResponse, error) {
	client, err := d.resolve(req)
	if err != nil {
		return nil, err
	}

	input := req.Messages[len(req.Messages)-1].Content
	resp, err := client.Chat(ctx, &llm.Request{
		Messages: []llm.Message{{Role: "user", Content: fmt.Sprintf(structuredTemplate, input)}},
		ResponseSchema: &llm.ResponseSchema{
			Name:   structuredFunctionName,
			Schema: structuredOutputSchema(),
		},
	})
	if err != nil {
		return nil, mapUpstream(err)
	}

	return decodeStructured(resp.Content)
}

// decodeStructured enforces the declared shape. Unknown fields, wrong types
// (a word_count arriving as a string), and enum violations all fail the same
// way: the answer never reaches the caller half-valid.
func decodeStructured(content string) (*StructuredResponse, error) {
	dec := json.NewDecoder(strings.NewReader(content))
	dec.DisallowUnknownFields()

	var out StructuredResponse
	if err := dec.Decode(&out); err != nil {
		return nil, api.SchemaViolation(err)
	}
	if err := structuredValidate.Struct(&out); err != nil {
		return nil, api.SchemaViolation(err)
	}
	return &out, nil
}

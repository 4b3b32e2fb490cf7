// Package llm wraps the upstream text-generation provider: a small Client
// interface, an OpenAI-compatible HTTP implementation (blocking and
// streaming), and the structured-output call wrapper that turns free-form
// model text into validated JSON with one bounded retry.
package llm

import (
	"context"
	"errors"
)

// Sentinel errors surfaced to gateway callers.
var (
	// ErrEmptyResponse indicates the model returned no text at all.
	// It is fatal: the wrapper does not retry an empty response.
	ErrEmptyResponse = errors.New("model returned empty response")

	// ErrInvalidModelOutput indicates the model output could not be
	// parsed as JSON after the one permitted retry, or failed semantic
	// validation in a caller.
	ErrInvalidModelOutput = errors.New("model returned invalid structured output")
)

// Usage is the token accounting reported by the provider. A nil *Usage
// means the provider reported nothing (unknown, not zero).
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Request is one assembled model invocation.
type Request struct {
	Model       string   // override of the client default; empty keeps it
	System      string   // system instruction; empty omits the message
	Prompt      string   // user prompt
	ImageURL    string   // optional image payload attached to the prompt
	JSONMode    bool     // ask the provider for a JSON-object response
	Temperature *float64 // nil keeps the client default
	MaxTokens   int      // 0 keeps the client default
}

// Response is the provider's reply to a single call.
type Response struct {
	Text  string
	Usage *Usage // nil when the provider reported no usage
}

// Client is the opaque model-invocation capability: send a structured
// prompt, receive text. Implementations must honor ctx for cancellation
// and deadlines; model calls are expensive and may hang.
type Client interface {
	Send(ctx context.Context, req Request) (*Response, error)

	// SendStream delivers incremental text deltas to onDelta as they
	// arrive and returns the full accumulated response once the stream
	// completes.
	SendStream(ctx context.Context, req Request, onDelta func(string)) (*Response, error)
}

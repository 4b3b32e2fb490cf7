package llm

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
)

// CallConfig describes one structured model call. All fields except Prompt
// are optional; zero values fall back to the client defaults.
type CallConfig struct {
	// System is the system instruction prepended to the conversation.
	System string
	// Prompt is the user prompt.
	Prompt string
	// ImageURL optionally attaches an image payload to the prompt.
	ImageURL string
	// SchemaHint describes the expected JSON shape. It is appended to the
	// system instruction so the model knows what to emit; the provider's
	// JSON response mode is enabled regardless.
	SchemaHint string
	// Model overrides the client's default model when non-empty.
	Model string
	// Temperature overrides the client default when non-nil.
	Temperature *float64
	// MaxTokens overrides the client default when > 0.
	MaxTokens int
}

func (c CallConfig) request() Request {
	system := c.System
	if c.SchemaHint != "" {
		if system != "" {
			system += "\n\n"
		}
		system += "Respond with a single JSON object matching this schema:\n" + c.SchemaHint
	}
	return Request{
		Model:       c.Model,
		System:      system,
		Prompt:      c.Prompt,
		ImageURL:    c.ImageURL,
		JSONMode:    true,
		Temperature: c.Temperature,
		MaxTokens:   c.MaxTokens,
	}
}

// maxRawLogRunes caps how much raw model output is logged on parse failure.
const maxRawLogRunes = 500

// CallStructured issues one model call and extracts a JSON payload from the
// response text.
//
// An empty response fails immediately with ErrEmptyResponse. A JSON parse
// failure, and only a parse failure, triggers exactly one more call; a
// second parse failure returns ErrInvalidModelOutput. Token usage is summed
// across the attempts that reported it, or nil when no attempt did.
func CallStructured(ctx context.Context, client Client, cfg CallConfig) (json.RawMessage, *Usage, error) {
	var usage *Usage

	for attempt := 1; attempt <= 2; attempt++ {
		resp, err := client.Send(ctx, cfg.request())
		if err != nil {
			return nil, usage, err
		}
		usage = addUsage(usage, resp.Usage)

		text := strings.TrimSpace(resp.Text)
		if text == "" {
			return nil, usage, ErrEmptyResponse
		}

		cleaned := StripCodeFences(text)
		if json.Valid([]byte(cleaned)) {
			return json.RawMessage(cleaned), usage, nil
		}

		log.Warn().
			Int("attempt", attempt).
			Str("raw", truncateRunes(text, maxRawLogRunes)).
			Msg("model output failed JSON parse")
	}

	return nil, usage, ErrInvalidModelOutput
}

// CallStructuredStream is the incremental variant: text deltas are forwarded
// to sink as they arrive, then the accumulated text goes through the same
// fence-stripping and parse step. There is no retry on this path: the
// deltas have already been delivered and a second stream would duplicate
// them at the sink.
func CallStructuredStream(ctx context.Context, client Client, cfg CallConfig, sink func(delta string)) (json.RawMessage, *Usage, error) {
	resp, err := client.SendStream(ctx, cfg.request(), sink)
	if err != nil {
		return nil, nil, err
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return nil, resp.Usage, ErrEmptyResponse
	}

	cleaned := StripCodeFences(text)
	if !json.Valid([]byte(cleaned)) {
		log.Warn().
			Str("raw", truncateRunes(text, maxRawLogRunes)).
			Msg("streamed model output failed JSON parse")
		return nil, resp.Usage, ErrInvalidModelOutput
	}
	return json.RawMessage(cleaned), resp.Usage, nil
}

// fenceRE matches a whole response wrapped in a Markdown code fence with an
// optional language tag, e.g. ```json ... ```.
var fenceRE = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")

// StripCodeFences removes a Markdown code-fence wrapper when the entire
// text is fenced; anything else is returned trimmed but untouched.
func StripCodeFences(s string) string {
	t := strings.TrimSpace(s)
	if m := fenceRE.FindStringSubmatch(t); m != nil {
		return strings.TrimSpace(m[1])
	}
	return t
}

func addUsage(a, b *Usage) *Usage {
	if b == nil {
		return a
	}
	if a == nil {
		cp := *b
		return &cp
	}
	return &Usage{
		PromptTokens:     a.PromptTokens + b.PromptTokens,
		CompletionTokens: a.CompletionTokens + b.CompletionTokens,
		TotalTokens:      a.TotalTokens + b.TotalTokens,
	}
}

func truncateRunes(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max]) + "…"
}

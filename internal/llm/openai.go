package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Options configures the OpenAI-compatible client.
type Options struct {
	BaseURL     string // e.g. "https://api.openai.com/v1"
	APIKey      string
	Model       string // default model for requests that do not override it
	MaxTokens   int    // default max_tokens; 0 omits the field
	Temperature float64
	HTTPClient  *http.Client // nil uses http.DefaultClient; deadlines come from ctx
}

// OpenAI talks to any OpenAI-compatible chat-completions endpoint.
type OpenAI struct {
	opts Options
	hc   *http.Client
}

// NewOpenAI constructs a client. The caller is responsible for bounding
// individual calls via context deadlines.
func NewOpenAI(opts Options) *OpenAI {
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	hc := opts.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	return &OpenAI{opts: opts, hc: hc}
}

// --- wire types (chat completions) ---

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string         `json:"type"`
	Text     string         `json:"text,omitempty"`
	ImageURL *imagePartURL  `json:"image_url,omitempty"`
}

type imagePartURL struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	MaxTokens      int           `json:"max_tokens,omitempty"`
	Temperature    *float64      `json:"temperature,omitempty"`
	ResponseFormat *respFormat   `json:"response_format,omitempty"`
	Stream         bool          `json:"stream,omitempty"`
	StreamOptions  *streamOpts   `json:"stream_options,omitempty"`
}

type respFormat struct {
	Type string `json:"type"`
}

type streamOpts struct {
	IncludeUsage bool `json:"include_usage"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *chatUsage `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type chatStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Usage *chatUsage `json:"usage"`
}

func (o *OpenAI) buildRequest(req Request, stream bool) chatRequest {
	model := req.Model
	if model == "" {
		model = o.opts.Model
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = o.opts.MaxTokens
	}
	temp := req.Temperature
	if temp == nil {
		t := o.opts.Temperature
		temp = &t
	}

	msgs := make([]chatMessage, 0, 2)
	if req.System != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: req.System})
	}
	if req.ImageURL != "" {
		msgs = append(msgs, chatMessage{Role: "user", Content: []contentPart{
			{Type: "text", Text: req.Prompt},
			{Type: "image_url", ImageURL: &imagePartURL{URL: req.ImageURL}},
		}})
	} else {
		msgs = append(msgs, chatMessage{Role: "user", Content: req.Prompt})
	}

	out := chatRequest{
		Model:       model,
		Messages:    msgs,
		MaxTokens:   maxTokens,
		Temperature: temp,
		Stream:      stream,
	}
	if req.JSONMode {
		out.ResponseFormat = &respFormat{Type: "json_object"}
	}
	if stream {
		out.StreamOptions = &streamOpts{IncludeUsage: true}
	}
	return out
}

func (o *OpenAI) newHTTPRequest(ctx context.Context, body any) (*http.Request, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.opts.BaseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if o.opts.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.opts.APIKey)
	}
	return req, nil
}

// Send implements Client.
func (o *OpenAI) Send(ctx context.Context, req Request) (*Response, error) {
	httpReq, err := o.newHTTPRequest(ctx, o.buildRequest(req, false))
	if err != nil {
		return nil, err
	}

	resp, err := o.hc.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var decoded chatResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decode model response (status %d): %w", resp.StatusCode, err)
	}
	if decoded.Error != nil {
		return nil, fmt.Errorf("model API error: %s", decoded.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model API status %d", resp.StatusCode)
	}
	if len(decoded.Choices) == 0 {
		return &Response{Text: "", Usage: toUsage(decoded.Usage)}, nil
	}
	return &Response{
		Text:  decoded.Choices[0].Message.Content,
		Usage: toUsage(decoded.Usage),
	}, nil
}

// SendStream implements Client. Deltas are forwarded to onDelta in arrival
// order; the accumulated text and the final usage (when the provider emits
// one in the terminal chunk) are returned after the stream ends.
func (o *OpenAI) SendStream(ctx context.Context, req Request, onDelta func(string)) (*Response, error) {
	httpReq, err := o.newHTTPRequest(ctx, o.buildRequest(req, true))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := o.hc.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("model API status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var (
		full  strings.Builder
		usage *Usage
	)
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" || data == "[DONE]" {
			continue
		}
		var chunk chatStreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		if chunk.Usage != nil {
			usage = toUsage(chunk.Usage)
		}
		if len(chunk.Choices) > 0 {
			if delta := chunk.Choices[0].Delta.Content; delta != "" {
				full.WriteString(delta)
				if onDelta != nil {
					onDelta(delta)
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return &Response{Text: full.String(), Usage: usage}, nil
}

func toUsage(u *chatUsage) *Usage {
	if u == nil {
		return nil
	}
	return &Usage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
	}
}

var _ Client = (*OpenAI)(nil)

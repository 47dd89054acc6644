// Package anthropic wraps the Messages API for short, deterministic
// extraction prompts: one cached system prompt, one user turn, JSON out.
package anthropic

import (
	"context"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Client sends a Messages API request.
type Client interface {
	CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error)
}

// MessageRequest is a Messages API request.
type MessageRequest struct {
	Model       string
	MaxTokens   int64
	System      []SystemBlock
	Messages    []Message
	Temperature *float64
}

// SystemBlock is one system prompt block. Cached blocks carry an ephemeral
// cache breakpoint with the API's default TTL.
type SystemBlock struct {
	Text   string
	Cached bool
}

// Message is a single conversational turn.
type Message struct {
	Role    string // "user" or "assistant"
	Content string
}

// ExtractionRequest returns a single-turn request with a cached system
// prompt and temperature 0, so repeated questions get the same answer.
func ExtractionRequest(model string, maxTokens int64, system, question string) MessageRequest {
	temp := 0.0
	return MessageRequest{
		Model:       model,
		MaxTokens:   maxTokens,
		System:      []SystemBlock{{Text: system, Cached: true}},
		Messages:    []Message{{Role: "user", Content: question}},
		Temperature: &temp,
	}
}

// MessageResponse is the part of a Messages API reply fredqa reads.
type MessageResponse struct {
	ID         string
	Model      string
	Content    []ContentBlock
	StopReason string
	Usage      Usage
}

// ContentBlock is one block of reply content.
type ContentBlock struct {
	Type string
	Text string
}

// Text concatenates the text blocks of the response.
func (r *MessageResponse) Text() string {
	var b strings.Builder
	for _, c := range r.Content {
		if c.Type == "text" {
			b.WriteString(c.Text)
		}
	}
	return b.String()
}

// Truncated reports whether the reply hit the max_tokens budget.
func (r *MessageResponse) Truncated() bool {
	return r.StopReason == string(sdk.StopReasonMaxTokens)
}

// Usage is the token accounting of one call.
type Usage struct {
	InputTokens      int64
	OutputTokens     int64
	CacheWriteTokens int64
	CacheReadTokens  int64
}

// price is USD per million input and output tokens.
type price struct {
	input, output float64
}

// Only the hint models are priced.
var pricing = map[string]price{
	string(sdk.ModelClaudeHaiku4_5):          {1.00, 5.00},
	string(sdk.ModelClaudeHaiku4_5_20251001): {1.00, 5.00},
}

// Cost estimates the USD cost of u on model. Cache writes bill at 1.25x and
// cache reads at 0.1x the input rate. ok is false for unpriced models.
func (u Usage) Cost(model string) (usd float64, ok bool) {
	p, ok := pricing[model]
	if !ok {
		return 0, false
	}
	const perM = 1e6
	usd = float64(u.InputTokens)/perM*p.input +
		float64(u.OutputTokens)/perM*p.output +
		float64(u.CacheWriteTokens)/perM*p.input*1.25 +
		float64(u.CacheReadTokens)/perM*p.input*0.1
	return usd, true
}

// Log records u at debug level, with the estimated cost when model is priced.
func (u Usage) Log(model, phase string) {
	fields := []zap.Field{
		zap.String("model", model),
		zap.String("phase", phase),
		zap.Int64("input_tokens", u.InputTokens),
		zap.Int64("output_tokens", u.OutputTokens),
		zap.Int64("cache_write_tokens", u.CacheWriteTokens),
		zap.Int64("cache_read_tokens", u.CacheReadTokens),
	}
	if usd, ok := u.Cost(model); ok {
		fields = append(fields, zap.Float64("estimated_cost_usd", usd))
	}
	zap.L().Debug("anthropic: usage", fields...)
}

// Option configures the SDK client.
type Option = option.RequestOption

// WithBaseURL points the client at another API host.
func WithBaseURL(url string) Option { return option.WithBaseURL(url) }

// WithMaxRetries sets the SDK's retry count for 429 and 5xx replies.
func WithMaxRetries(n int) Option { return option.WithMaxRetries(n) }

// WithTimeout bounds each request attempt.
func WithTimeout(d time.Duration) Option { return option.WithRequestTimeout(d) }

type sdkClient struct {
	client sdk.Client
}

// NewClient returns a Client backed by the official SDK.
func NewClient(apiKey string, opts ...Option) Client {
	return &sdkClient{
		client: sdk.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...),
	}
}

func (c *sdkClient) CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	params := sdk.MessageNewParams{
		Model:     sdk.Model(req.Model),
		MaxTokens: req.MaxTokens,
		Messages:  messageParams(req.Messages),
	}
	if len(req.System) > 0 {
		params.System = systemParams(req.System)
	}
	if req.Temperature != nil {
		params.Temperature = sdk.Float(*req.Temperature)
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, eris.Wrapf(err, "anthropic: create message (%s)", req.Model)
	}
	return responseFrom(msg), nil
}

func messageParams(msgs []Message) []sdk.MessageParam {
	out := make([]sdk.MessageParam, len(msgs))
	for i, m := range msgs {
		block := sdk.NewTextBlock(m.Content)
		if m.Role == "assistant" {
			out[i] = sdk.NewAssistantMessage(block)
		} else {
			out[i] = sdk.NewUserMessage(block)
		}
	}
	return out
}

func systemParams(blocks []SystemBlock) []sdk.TextBlockParam {
	out := make([]sdk.TextBlockParam, len(blocks))
	for i, b := range blocks {
		out[i] = sdk.TextBlockParam{Text: b.Text}
		if b.Cached {
			out[i].CacheControl = sdk.NewCacheControlEphemeralParam()
		}
	}
	return out
}

func responseFrom(msg *sdk.Message) *MessageResponse {
	blocks := make([]ContentBlock, 0, len(msg.Content))
	for _, b := range msg.Content {
		blocks = append(blocks, ContentBlock{Type: b.Type, Text: b.Text})
	}
	return &MessageResponse{
		ID:         msg.ID,
		Model:      string(msg.Model),
		Content:    blocks,
		StopReason: string(msg.StopReason),
		Usage: Usage{
			InputTokens:      msg.Usage.InputTokens,
			OutputTokens:     msg.Usage.OutputTokens,
			CacheWriteTokens: msg.Usage.CacheCreationInputTokens,
			CacheReadTokens:  msg.Usage.CacheReadInputTokens,
		},
	}
}

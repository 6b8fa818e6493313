package anthropic

import (
	"context"
	"encoding/json"
	"errors"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
)

// Client defines the Anthropic API operations used by the extraction
// pipeline. CreateMessage returns free-form text; ParseMessage forces the
// model to produce a JSON object conforming to the supplied schema.
type Client interface {
	CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error)
	ParseMessage(ctx context.Context, req MessageRequest, schema ToolSchema) (*ParseResponse, error)
}

// MessageRequest is our own request type for both call modes.
type MessageRequest struct {
	Model       string
	MaxTokens   int64
	System      string
	Messages    []Message
	Temperature *float64
}

// Message represents a single conversational message. Content is a sequence
// of text and/or base64 image parts.
type Message struct {
	Role    string // "user" or "assistant"
	Content []ContentPart
}

// ContentPart is one block of message content.
type ContentPart struct {
	Type      string // "text" or "image"
	Text      string
	MediaType string // image only, e.g. "image/png"
	Data      string // image only, base64-encoded bytes
}

// Text builds a text content part.
func Text(s string) ContentPart {
	return ContentPart{Type: "text", Text: s}
}

// Image builds a base64 image content part.
func Image(mediaType, data string) ContentPart {
	return ContentPart{Type: "image", MediaType: mediaType, Data: data}
}

// ToolSchema describes the forced-output JSON schema for ParseMessage.
type ToolSchema struct {
	Name        string
	Description string
	Properties  map[string]any
	Required    []string
}

// MessageResponse is our own response type from CreateMessage.
type MessageResponse struct {
	ID         string
	Model      string
	Text       string
	StopReason string
	Usage      TokenUsage
}

// ParseResponse carries the schema-constrained JSON object from ParseMessage.
type ParseResponse struct {
	ID    string
	Model string
	JSON  json.RawMessage
	Usage TokenUsage
}

// TokenUsage tracks token consumption.
type TokenUsage struct {
	InputTokens  int64
	OutputTokens int64
}

// APIError is the normalized upstream failure surfaced by this package.
// StatusCode is the raw vendor status (may be nonstandard, e.g. 529);
// callers are expected to classify it rather than show Message to users.
type APIError struct {
	StatusCode int
	RequestID  string
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// sdkClient implements Client using the official anthropic-sdk-go.
type sdkClient struct {
	client sdk.Client
}

// NewClient creates a new Anthropic client backed by the SDK. maxRetries
// controls SDK-level retries; the pipeline does its own fallback handling,
// so it is normally 0.
func NewClient(apiKey string, maxRetries int) Client {
	return &sdkClient{
		client: sdk.NewClient(
			option.WithAPIKey(apiKey),
			option.WithMaxRetries(maxRetries),
		),
	}
}

func (c *sdkClient) CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	msg, err := c.client.Messages.New(ctx, toSDKParams(req))
	if err != nil {
		return nil, normalizeSDKError(err, "anthropic: create message")
	}

	return &MessageResponse{
		ID:         msg.ID,
		Model:      string(msg.Model),
		Text:       collectText(msg),
		StopReason: string(msg.StopReason),
		Usage: TokenUsage{
			InputTokens:  msg.Usage.InputTokens,
			OutputTokens: msg.Usage.OutputTokens,
		},
	}, nil
}

func (c *sdkClient) ParseMessage(ctx context.Context, req MessageRequest, schema ToolSchema) (*ParseResponse, error) {
	params := toSDKParams(req)
	params.Tools = []sdk.ToolUnionParam{{
		OfTool: &sdk.ToolParam{
			Name:        schema.Name,
			Description: sdk.String(schema.Description),
			InputSchema: sdk.ToolInputSchemaParam{
				Properties: schema.Properties,
				Required:   schema.Required,
			},
		},
	}}
	params.ToolChoice = sdk.ToolChoiceUnionParam{
		OfTool: &sdk.ToolChoiceToolParam{Name: schema.Name},
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, normalizeSDKError(err, "anthropic: parse message")
	}

	for _, block := range msg.Content {
		if variant, ok := block.AsAny().(sdk.ToolUseBlock); ok {
			return &ParseResponse{
				ID:    msg.ID,
				Model: string(msg.Model),
				JSON:  json.RawMessage(variant.JSON.Input.Raw()),
				Usage: TokenUsage{
					InputTokens:  msg.Usage.InputTokens,
					OutputTokens: msg.Usage.OutputTokens,
				},
			}, nil
		}
	}

	return nil, eris.New("anthropic: parse message: no tool_use block in response")
}

// normalizeSDKError converts SDK failures into *APIError so the pipeline's
// classifier never has to reach into vendor types.
func normalizeSDKError(err error, wrap string) error {
	var apierr *sdk.Error
	if errors.As(err, &apierr) {
		out := &APIError{
			StatusCode: apierr.StatusCode,
			Message:    apierr.Error(),
		}
		if apierr.Response != nil {
			out.RequestID = apierr.Response.Header.Get("request-id")
		}
		return out
	}
	return eris.Wrap(err, wrap)
}

// --- SDK type conversion helpers ---

func toSDKParams(req MessageRequest) sdk.MessageNewParams {
	params := sdk.MessageNewParams{
		Model:     sdk.Model(req.Model),
		MaxTokens: req.MaxTokens,
		Messages:  toSDKMessages(req.Messages),
	}
	if req.System != "" {
		params.System = []sdk.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature != nil {
		params.Temperature = sdk.Float(*req.Temperature)
	}
	return params
}

func toSDKMessages(msgs []Message) []sdk.MessageParam {
	out := make([]sdk.MessageParam, len(msgs))
	for i, m := range msgs {
		blocks := make([]sdk.ContentBlockParamUnion, 0, len(m.Content))
		for _, p := range m.Content {
			switch p.Type {
			case "image":
				blocks = append(blocks, sdk.NewImageBlockBase64(p.MediaType, p.Data))
			default:
				blocks = append(blocks, sdk.NewTextBlock(p.Text))
			}
		}
		switch m.Role {
		case "assistant":
			out[i] = sdk.NewAssistantMessage(blocks...)
		default:
			out[i] = sdk.NewUserMessage(blocks...)
		}
	}
	return out
}

func collectText(msg *sdk.Message) string {
	var out string
	for _, b := range msg.Content {
		if b.Type == "text" {
			if out != "" {
				out += "\n"
			}
			out += b.Text
		}
	}
	return out
}

package anthropic

import (
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentPartBuilders(t *testing.T) {
	txt := Text("привет")
	assert.Equal(t, "text", txt.Type)
	assert.Equal(t, "привет", txt.Text)

	img := Image("image/png", "aGVsbG8=")
	assert.Equal(t, "image", img.Type)
	assert.Equal(t, "image/png", img.MediaType)
	assert.Equal(t, "aGVsbG8=", img.Data)
}

func TestToSDKParams(t *testing.T) {
	temp := 0.0
	req := MessageRequest{
		Model:       "claude-sonnet-4-6",
		MaxTokens:   1024,
		System:      "системная инструкция",
		Temperature: &temp,
		Messages: []Message{{
			Role: "user",
			Content: []ContentPart{
				Image("image/png", "aGVsbG8="),
				Text("расшифруй"),
			},
		}},
	}

	params := toSDKParams(req)

	assert.Equal(t, sdk.Model("claude-sonnet-4-6"), params.Model)
	assert.Equal(t, int64(1024), params.MaxTokens)
	require.Len(t, params.System, 1)
	assert.Equal(t, "системная инструкция", params.System[0].Text)
	require.Len(t, params.Messages, 1)
	require.Len(t, params.Messages[0].Content, 2)
	assert.True(t, params.Temperature.Valid())
}

func TestToSDKParamsOmitsEmptySystemAndTemperature(t *testing.T) {
	params := toSDKParams(MessageRequest{Model: "m", MaxTokens: 16})
	assert.Empty(t, params.System)
	assert.False(t, params.Temperature.Valid())
}

func TestCollectTextJoinsBlocks(t *testing.T) {
	msg := &sdk.Message{
		Content: []sdk.ContentBlockUnion{
			{Type: "text", Text: "первая"},
			{Type: "tool_use"},
			{Type: "text", Text: "вторая"},
		},
	}
	assert.Equal(t, "первая\nвторая", collectText(msg))
}

func TestNormalizeSDKErrorWrapsNonAPIFailures(t *testing.T) {
	cause := eris.New("connection refused")
	err := normalizeSDKError(cause, "anthropic: create message")
	require.Error(t, err)

	var apierr *APIError
	assert.False(t, eris.As(err, &apierr))
	assert.Contains(t, err.Error(), "anthropic: create message")
}

func TestAPIErrorMessage(t *testing.T) {
	err := &APIError{StatusCode: 429, RequestID: "req_1", Message: "rate limited"}
	assert.Equal(t, "rate limited", err.Error())
}

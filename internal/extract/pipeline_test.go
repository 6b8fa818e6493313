package extract

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kadry-group/leave-cli/pkg/anthropic"
)

func TestRunHappyPath(t *testing.T) {
	cfg := testConfig()
	client := new(mockClient)
	renderer := new(mockRenderer)

	blocks, info := testRenderOutput()
	renderer.On("Render", mock.Anything, mock.Anything).Return(blocks, info, nil).Once()

	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(&anthropic.MessageResponse{ID: "req_vis", Text: "TRANSCRIPTION:\nЗаявление на отпуск"}, nil).Once()
	client.On("ParseMessage", mock.Anything, mock.Anything, mock.Anything).
		Return(&anthropic.ParseResponse{ID: "req_parse", JSON: json.RawMessage(testRecordJSON)}, nil).Once()

	p := New(cfg, client, renderer)
	res, err := p.Run(context.Background(), []byte("%PDF"), "form.pdf", "")
	require.NoError(t, err)

	require.NotNil(t, res.Record.Employee.FullName)
	assert.Equal(t, "Иванов Иван Иванович", *res.Record.Employee.FullName)
	assert.Equal(t, "annual_paid", string(res.Record.Leave.LeaveType))

	// Render metadata lands in quality notes; the create fallback never ran.
	require.NotEmpty(t, res.Record.Quality.Notes)
	assert.Contains(t, res.Record.Quality.Notes[len(res.Record.Quality.Notes)-1], "render: pages_sent=1/1")
	for _, n := range res.Record.Quality.Notes {
		assert.NotContains(t, n, "structured_fallback")
	}

	assert.NotEmpty(t, res.Trace.RequestID)
	assert.Equal(t, "req_vis", res.Trace.UpstreamRequestIDs[StepVision])
	assert.Equal(t, "req_parse", res.Trace.UpstreamRequestIDs[StepStructuredParse])
	assert.Contains(t, res.Trace.TimingsMS, "total_ms")

	client.AssertExpectations(t)
	renderer.AssertExpectations(t)
}

// Vision hits an overloaded upstream, recovers on the auto-resolved lighter
// model, and the strict parse succeeds: exactly two create calls, one parse.
func TestRunVisionOverloadedFallsBackToSecondModel(t *testing.T) {
	cfg := testConfig()
	cfg.Anthropic.VisionModel = "claude-opus-4-1"
	client := new(mockClient)
	renderer := new(mockRenderer)

	blocks, info := testRenderOutput()
	renderer.On("Render", mock.Anything, mock.Anything).Return(blocks, info, nil).Once()

	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(nil, &anthropic.APIError{StatusCode: 529, RequestID: "req_err", Message: "Overloaded"}).Once()
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(&anthropic.MessageResponse{ID: "req_vis2", Text: "TRANSCRIPTION:\nтекст"}, nil).Once()
	client.On("ParseMessage", mock.Anything, mock.Anything, mock.Anything).
		Return(&anthropic.ParseResponse{ID: "req_parse", JSON: json.RawMessage(testRecordJSON)}, nil).Once()

	p := New(cfg, client, renderer)
	res, err := p.Run(context.Background(), []byte("%PDF"), "form.pdf", "")
	require.NoError(t, err)

	// The fallback model is the lighter default, not the opus primary.
	secondReq := client.Calls[1].Arguments.Get(1).(anthropic.MessageRequest)
	assert.Equal(t, autoFallbackModel, secondReq.Model)

	assert.Equal(t, "req_vis2", res.Trace.UpstreamRequestIDs[StepVisionFallback])
	client.AssertNumberOfCalls(t, "CreateMessage", 2)
	client.AssertNumberOfCalls(t, "ParseMessage", 1)
	client.AssertExpectations(t)
}

// Strict parse times out on both models; the free-text create path delivers
// the record, normalized and flagged in quality notes.
func TestRunParseTimeoutTwiceCreateFallbackSucceeds(t *testing.T) {
	cfg := testConfig()
	cfg.Anthropic.StructuredModel = "claude-opus-4-1"
	client := new(mockClient)
	renderer := new(mockRenderer)

	blocks, info := testRenderOutput()
	renderer.On("Render", mock.Anything, mock.Anything).Return(blocks, info, nil).Once()

	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(&anthropic.MessageResponse{ID: "req_vis", Text: "TRANSCRIPTION:\nтекст"}, nil).Once()

	stall := func(args mock.Arguments) { time.Sleep(1500 * time.Millisecond) }
	client.On("ParseMessage", mock.Anything, mock.Anything, mock.Anything).
		Run(stall).Return(nil, eris.New("abandoned")).Twice()

	fallbackText := "Вот результат:\n" + strings.Replace(testRecordJSON,
		`"leave_type": "annual_paid"`, `"leave_type": "ежегодный оплачиваемый отпуск"`, 1)
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(&anthropic.MessageResponse{ID: "req_create", Text: fallbackText}, nil).Once()

	p := New(cfg, client, renderer)
	res, err := p.Run(context.Background(), []byte("%PDF"), "form.pdf", "")
	require.NoError(t, err)

	assert.Equal(t, "annual_paid", string(res.Record.Leave.LeaveType))
	assert.Contains(t, res.Record.Quality.Notes, "structured_fallback=create+json")

	client.AssertNumberOfCalls(t, "ParseMessage", 2)
	client.AssertNumberOfCalls(t, "CreateMessage", 2)
}

// A 422 rejection of the draft is terminal: no fallback model, no create
// path.
func TestRunParseRejected422IsTerminal(t *testing.T) {
	cfg := testConfig()
	client := new(mockClient)
	renderer := new(mockRenderer)

	blocks, info := testRenderOutput()
	renderer.On("Render", mock.Anything, mock.Anything).Return(blocks, info, nil).Once()

	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(&anthropic.MessageResponse{ID: "req_vis", Text: "TRANSCRIPTION:\nтекст"}, nil).Once()
	client.On("ParseMessage", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, &anthropic.APIError{StatusCode: 422, RequestID: "req_rej", Message: "unprocessable"}).Once()

	p := New(cfg, client, renderer)
	_, err := p.Run(context.Background(), []byte("%PDF"), "form.pdf", "")
	require.Error(t, err)

	var ue *UpstreamError
	require.True(t, eris.As(err, &ue))
	assert.Equal(t, 422, ue.Status)
	assert.Equal(t, StepStructuredParse, ue.Step)
	assert.Equal(t, "req_rej", ue.UpstreamID)

	client.AssertNumberOfCalls(t, "ParseMessage", 1)
	client.AssertNumberOfCalls(t, "CreateMessage", 1) // vision only
}

// A render failure is a local document error: 422, and the AI client is
// never touched.
func TestRunRenderFailureIsDocumentErrorBeforeAnyNetworkCall(t *testing.T) {
	cfg := testConfig()
	client := new(mockClient)
	renderer := new(mockRenderer)

	renderer.On("Render", mock.Anything, mock.Anything).
		Return(nil, nil, eris.New("render: images too large for request")).Once()

	p := New(cfg, client, renderer)
	_, err := p.Run(context.Background(), []byte("%PDF"), "big.pdf", "")
	require.Error(t, err)

	var ue *UpstreamError
	require.True(t, eris.As(err, &ue))
	assert.Equal(t, 422, ue.Status)
	assert.Equal(t, StepRender, ue.Step)

	client.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
	client.AssertNotCalled(t, "ParseMessage", mock.Anything, mock.Anything, mock.Anything)
}

// An empty vision response is replaced by the placeholder so the structured
// stage still runs.
func TestRunEmptyDraftUsesPlaceholder(t *testing.T) {
	cfg := testConfig()
	client := new(mockClient)
	renderer := new(mockRenderer)

	blocks, info := testRenderOutput()
	renderer.On("Render", mock.Anything, mock.Anything).Return(blocks, info, nil).Once()

	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(&anthropic.MessageResponse{ID: "req_vis", Text: "   \n"}, nil).Once()
	client.On("ParseMessage", mock.Anything, mock.Anything, mock.Anything).
		Return(&anthropic.ParseResponse{ID: "req_parse", JSON: json.RawMessage(testRecordJSON)}, nil).Once()

	p := New(cfg, client, renderer)
	_, err := p.Run(context.Background(), []byte("%PDF"), "form.pdf", "")
	require.NoError(t, err)

	parseReq := client.Calls[1].Arguments.Get(1).(anthropic.MessageRequest)
	assert.Contains(t, parseReq.Messages[0].Content[0].Text, "(null)")
}

func TestRunMissingKeyFailsBeforeRender(t *testing.T) {
	cfg := testConfig()
	cfg.Anthropic.Key = ""
	client := new(mockClient)
	renderer := new(mockRenderer)

	p := New(cfg, client, renderer)
	_, err := p.Run(context.Background(), []byte("%PDF"), "form.pdf", "")
	require.Error(t, err)

	var ue *UpstreamError
	require.True(t, eris.As(err, &ue))
	assert.Equal(t, 500, ue.Status)
	assert.Equal(t, StepConfig, ue.Step)
	renderer.AssertNotCalled(t, "Render", mock.Anything, mock.Anything)
}

func TestRunMockModeReturnsFixedRecord(t *testing.T) {
	cfg := testConfig()
	cfg.MockMode = true
	client := new(mockClient)
	renderer := new(mockRenderer)

	p := New(cfg, client, renderer)
	res, err := p.Run(context.Background(), []byte("%PDF"), "demo.pdf", "")
	require.NoError(t, err)

	assert.Equal(t, "annual_paid", string(res.Record.Leave.LeaveType))
	assert.Contains(t, res.Record.Quality.Notes, "mock_mode")
	renderer.AssertNotCalled(t, "Render", mock.Anything, mock.Anything)
}

// The model override replaces the configured vision model for one run.
func TestRunModelOverride(t *testing.T) {
	cfg := testConfig()
	client := new(mockClient)
	renderer := new(mockRenderer)

	blocks, info := testRenderOutput()
	renderer.On("Render", mock.Anything, mock.Anything).Return(blocks, info, nil).Once()

	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(&anthropic.MessageResponse{ID: "req_vis", Text: "TRANSCRIPTION:\nтекст"}, nil).Once()
	client.On("ParseMessage", mock.Anything, mock.Anything, mock.Anything).
		Return(&anthropic.ParseResponse{ID: "req_parse", JSON: json.RawMessage(testRecordJSON)}, nil).Once()

	p := New(cfg, client, renderer)
	_, err := p.Run(context.Background(), []byte("%PDF"), "form.pdf", "claude-haiku-4-5")
	require.NoError(t, err)

	visionReq := client.Calls[0].Arguments.Get(1).(anthropic.MessageRequest)
	assert.Equal(t, "claude-haiku-4-5", visionReq.Model)
}

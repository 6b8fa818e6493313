package extract

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/kadry-group/leave-cli/internal/config"
	"github.com/kadry-group/leave-cli/internal/render"
	"github.com/kadry-group/leave-cli/pkg/anthropic"
)

// --- Anthropic Mock ---

type mockClient struct {
	mock.Mock
}

func (m *mockClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

func (m *mockClient) ParseMessage(ctx context.Context, req anthropic.MessageRequest, schema anthropic.ToolSchema) (*anthropic.ParseResponse, error) {
	args := m.Called(ctx, req, schema)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.ParseResponse), args.Error(1)
}

// --- Renderer Mock ---

type mockRenderer struct {
	mock.Mock
}

func (m *mockRenderer) Render(ctx context.Context, pdf []byte) ([]render.ImageBlock, *render.Info, error) {
	args := m.Called(ctx, pdf)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).([]render.ImageBlock), args.Get(1).(*render.Info), args.Error(2)
}

func testConfig() *config.Config {
	return &config.Config{
		Anthropic: config.AnthropicConfig{
			Key:                           "test-key",
			Model:                         "claude-sonnet-4-6",
			VisionTimeoutSecs:             2,
			StructuredParseTimeoutSecs:    1,
			StructuredFallbackTimeoutSecs: 1,
			DraftMaxTokens:                1024,
			MaxTokens:                     1024,
			DraftMaxChars:                 12000,
		},
		PDF: config.PDFConfig{
			MaxPages:         2,
			TargetLongEdge:   1568,
			ColorMode:        "gray",
			MaxImageB64Chars: 4_000_000,
			MaxUploadMB:      15,
		},
	}
}

func testRenderOutput() ([]render.ImageBlock, *render.Info) {
	blocks := []render.ImageBlock{{MediaType: "image/png", Data: "aGVsbG8="}}
	info := &render.Info{
		TotalPages:     1,
		PagesSent:      1,
		TargetLongEdge: 1568,
		ColorMode:      "gray",
		ApproxB64Chars: 8,
	}
	return blocks, info
}

const testRecordJSON = `{
	"schema_version": "1.0",
	"employer_name": "ООО Ромашка",
	"employee": {"full_name": "Иванов Иван Иванович", "position": null, "department": null, "personnel_number": null},
	"manager": {"full_name": "Петров П. П.", "position": null},
	"request_date": "2025-06-10",
	"leave": {"leave_type": "annual_paid", "start_date": "2025-07-01", "end_date": "2025-07-14", "days_count": 14, "comment": null},
	"signature_present": true,
	"signature_confidence": 0.9,
	"raw_text": "Прошу предоставить отпуск",
	"quality": {"overall_confidence": 0.9, "missing_fields": [], "notes": []}
}`

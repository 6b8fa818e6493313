// Package extract runs the two-stage AI extraction pipeline: vision
// transcription of rendered page scans, then structured parsing of the
// transcript into the canonical record. Each stage gets one bounded call
// plus at most one fallback attempt; failed runs surface as *UpstreamError
// with a normalized status and a redacted debug trail.
package extract

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/kadry-group/leave-cli/internal/config"
	"github.com/kadry-group/leave-cli/internal/model"
	"github.com/kadry-group/leave-cli/internal/render"
	"github.com/kadry-group/leave-cli/internal/schema"
	"github.com/kadry-group/leave-cli/pkg/anthropic"
)

// toolName identifies the strict-parse tool the structured stage forces.
const toolName = "record_leave_request"

// base64MarkerWarnLen is the draft length above which a literal "base64"
// substring suggests the vision model echoed image payload into the text.
const base64MarkerWarnLen = 4000

// Result is the output of a successful pipeline run.
type Result struct {
	Record *model.ExtractedRecord
	// DebugTrail is the full redacted step log. Callers decide whether to
	// expose it (config.AnthropicConfig.DebugSteps).
	DebugTrail []string
	Trace      model.Trace
}

// Pipeline wires the renderer and the AI client under one configuration.
// Safe for concurrent use; all per-run state lives in Run.
type Pipeline struct {
	cfg      *config.Config
	client   anthropic.Client
	renderer render.Renderer
}

// New builds a Pipeline.
func New(cfg *config.Config, client anthropic.Client, renderer render.Renderer) *Pipeline {
	return &Pipeline{cfg: cfg, client: client, renderer: renderer}
}

// Run executes the full extraction for one uploaded PDF. modelOverride, when
// non-empty, replaces the configured vision model for this run only. On
// failure the returned error is always an *UpstreamError.
func (p *Pipeline) Run(ctx context.Context, pdf []byte, filename, modelOverride string) (*Result, error) {
	requestID := uuid.NewString()
	trail := newTrail()
	timings := map[string]int64{}
	started := time.Now()

	trail.Addf("Запрос %s: файл %s (%d байт)", requestID, filename, len(pdf))

	if p.cfg.MockMode {
		trail.Add("Шаг config: mock_mode=true, возвращаю фиксированный ответ")
		return &Result{
			Record:     mockRecord(filename),
			DebugTrail: trail.Steps(),
			Trace: model.Trace{
				RequestID:          requestID,
				TimingsMS:          timings,
				UpstreamRequestIDs: trail.UpstreamIDs(),
			},
		}, nil
	}

	if p.cfg.Anthropic.Key == "" {
		trail.Add("Шаг config: отсутствует ключ API")
		return nil, upstreamError(StepConfig, 500,
			"AI-сервис не настроен: не задан ключ API (LEAVECLI_ANTHROPIC_KEY).",
			trail, nil)
	}

	// --- Stage 1: render the PDF into page images. ---
	renderStart := time.Now()
	images, info, err := p.renderer.Render(ctx, pdf)
	timings["render_ms"] = time.Since(renderStart).Milliseconds()
	if err != nil {
		trail.Addf("Шаг render: ошибка: %s", shortError(err))
		return nil, upstreamError(StepRender, 422,
			"Не удалось подготовить страницы PDF для распознавания. "+
				"Убедитесь, что файл — корректный скан заявления.",
			trail, err)
	}
	trail.Add(info.Note())

	// --- Stage 2: vision transcription, one fallback on timeout/outage. ---
	visionModel := p.cfg.Anthropic.ResolvedVisionModel(modelOverride)
	visionStart := time.Now()
	draft, err := p.visionStage(ctx, trail, visionModel, images)
	timings["vision_ms"] = time.Since(visionStart).Milliseconds()
	if err != nil {
		var ue *UpstreamError
		if eris.As(err, &ue) {
			return nil, ue
		}
		return nil, upstreamError(StepVision, 502, "Не удалось распознать документ.", trail, err)
	}

	draft = cleanDraft(draft)
	if draft == "" {
		trail.Add("Шаг vision: пустой ответ, подставляю заглушку")
		draft = emptyDraftPlaceholder
	}
	if len(draft) > base64MarkerWarnLen && strings.Contains(draft, "base64") {
		trail.Add("Шаг vision: предупреждение — ответ похож на сырой base64")
	}
	if trimmed, wasTrimmed := trimDraft(draft, p.cfg.Anthropic.DraftMaxChars); wasTrimmed {
		trail.Addf("Шаг vision: текст сокращён до %d символов", len(trimmed))
		draft = trimmed
	}
	trail.Addf("Шаг vision: получен текст, %d символов", len(draft))

	// --- Stage 3: structured parse with the two-level fallback chain. ---
	structStart := time.Now()
	record, usedCreateFallback, err := p.structuredStage(ctx, trail, draft)
	timings["structured_ms"] = time.Since(structStart).Milliseconds()
	if err != nil {
		var ue *UpstreamError
		if eris.As(err, &ue) {
			return nil, ue
		}
		return nil, upstreamError(StepStructured, 502, "Не удалось структурировать документ.", trail, err)
	}

	finalizeRecord(record, info, usedCreateFallback)
	timings["total_ms"] = time.Since(started).Milliseconds()
	trail.Addf("Готово за %d мс", timings["total_ms"])

	zap.L().Info("extraction complete",
		zap.String("request_id", requestID),
		zap.Int64("total_ms", timings["total_ms"]),
		zap.Bool("create_fallback", usedCreateFallback),
	)

	return &Result{
		Record:     record,
		DebugTrail: trail.Steps(),
		Trace: model.Trace{
			RequestID:          requestID,
			TimingsMS:          timings,
			UpstreamRequestIDs: trail.UpstreamIDs(),
		},
	}, nil
}

// visionStage runs the transcription call against the primary model and, on
// a timeout/outage class failure, once against the resolved fallback model.
func (p *Pipeline) visionStage(ctx context.Context, trail *Trail, primary string, images []render.ImageBlock) (string, error) {
	call := func(step, mdl string) (string, error) {
		trail.Addf("Шаг %s: модель %s, таймаут %s", step, mdl, p.cfg.Anthropic.VisionTimeout())
		resp, err := callWithTimeout(ctx, p.cfg.Anthropic.VisionTimeout(), step,
			func() (*anthropic.MessageResponse, error) {
				return p.client.CreateMessage(ctx, p.visionRequest(mdl, images))
			})
		if err != nil {
			return "", err
		}
		trail.RecordUpstreamID(step, resp.ID)
		return resp.Text, nil
	}

	draft, err := call(StepVision, primary)
	if err == nil {
		return draft, nil
	}

	c := classify(err)
	trail.Addf("Шаг vision: ошибка (%d): %s", c.Status, shortError(err))
	trail.RecordUpstreamErrorID(StepVision, c.RequestID)

	if fallbackEligible(c) {
		if fb := resolveFallbackModel(primary, p.cfg.Anthropic.VisionFallbackModel); fb != "" {
			trail.Addf("Шаг vision: fallback на модель %s", fb)
			draft, err = call(StepVisionFallback, fb)
			if err == nil {
				return draft, nil
			}
			c = classify(err)
			trail.Addf("Шаг vision.fallback: ошибка (%d): %s", c.Status, shortError(err))
			trail.RecordUpstreamErrorID(StepVisionFallback, c.RequestID)
		} else {
			trail.Add("Шаг vision: fallback-модель не определена")
		}
	}

	return "", classifiedError(StepVision, c, trail, err)
}

// structuredStage turns the draft into a validated record. Order of
// attempts: strict parse on the primary model, strict parse on the fallback
// model (timeout/outage only), then the free-text create+JSON path. A 422
// rejection of the draft is terminal at any point in the chain.
func (p *Pipeline) structuredStage(ctx context.Context, trail *Trail, draft string) (*model.ExtractedRecord, bool, error) {
	structuredModel := p.cfg.Anthropic.ResolvedStructuredModel()

	record, parseErr := p.strictParse(ctx, trail, StepStructuredParse, structuredModel,
		draft, p.cfg.Anthropic.StructuredParseTimeout())
	if parseErr == nil {
		return record, false, nil
	}

	c := classify(parseErr)
	trail.Addf("Шаг structured.parse: ошибка (%d): %s", c.Status, shortError(parseErr))
	trail.RecordUpstreamErrorID(StepStructuredParse, c.RequestID)

	// A draft rejection is final and a rate limit is the caller's cool-down;
	// neither warrants burning another call.
	if (c.Kind == KindRejected && c.Status == 422) || c.Kind == KindRateLimited {
		return nil, false, classifiedError(StepStructuredParse, c, trail, parseErr)
	}

	if fallbackEligible(c) {
		if fb := resolveFallbackModel(structuredModel, p.cfg.Anthropic.StructuredFallbackModel); fb != "" {
			trail.Addf("Шаг structured.parse: fallback на модель %s", fb)
			record, fbErr := p.strictParse(ctx, trail, StepStructuredParse, fb,
				draft, p.cfg.Anthropic.StructuredFallbackTimeout())
			if fbErr == nil {
				return record, false, nil
			}
			fc := classify(fbErr)
			trail.Addf("Шаг structured.parse: ошибка fallback-модели (%d): %s", fc.Status, shortError(fbErr))
			trail.RecordUpstreamErrorID(StepStructuredParse, fc.RequestID)
			if (fc.Kind == KindRejected && fc.Status == 422) || fc.Kind == KindRateLimited {
				return nil, false, classifiedError(StepStructuredParse, fc, trail, fbErr)
			}
			parseErr = fbErr
		}
	}

	record, err := p.createFallback(ctx, trail, structuredModel, draft, parseErr)
	if err != nil {
		return nil, false, err
	}
	return record, true, nil
}

// strictParse is one schema-forced parse call.
func (p *Pipeline) strictParse(ctx context.Context, trail *Trail, step, mdl, draft string, timeout time.Duration) (*model.ExtractedRecord, error) {
	resp, err := callWithTimeout(ctx, timeout, step,
		func() (*anthropic.ParseResponse, error) {
			return p.client.ParseMessage(ctx, p.parseRequest(mdl, draft), anthropic.ToolSchema{
				Name:        toolName,
				Description: "Структурированные поля заявления на отпуск",
				Properties:  schema.Properties,
				Required:    schema.Required,
			})
		})
	if err != nil {
		return nil, err
	}
	trail.RecordUpstreamID(step, resp.ID)

	var rec model.ExtractedRecord
	if err := json.Unmarshal(resp.JSON, &rec); err != nil {
		return nil, eris.Wrap(err, "extract: decode strict-parse output")
	}
	return &rec, nil
}

// createFallback is the last resort: a plain create call asking for
// JSON-only output, followed by JSON scavenging, normalization, and schema
// validation. Error precedence on failure: a schema mismatch is a terminal
// 422; otherwise the terminal classification comes from the create-call
// error when it is an API/timeout failure, else from the original parse
// error that brought us here.
func (p *Pipeline) createFallback(ctx context.Context, trail *Trail, mdl, draft string, parseErr error) (*model.ExtractedRecord, error) {
	trail.Addf("Шаг %s: свободный вызов модели %s", StepStructuredCreate, mdl)

	resp, err := callWithTimeout(ctx, p.cfg.Anthropic.StructuredFallbackTimeout(), StepStructuredCreate,
		func() (*anthropic.MessageResponse, error) {
			return p.client.CreateMessage(ctx, p.parseRequest(mdl, draft))
		})
	if err != nil {
		return nil, p.createFallbackError(trail, err, parseErr)
	}
	trail.RecordUpstreamID(StepStructuredCreate, resp.ID)

	payload, err := firstJSONObject(resp.Text)
	if err != nil {
		trail.Addf("Шаг %s: %s", StepStructuredCreate, shortError(err))
		return nil, p.createFallbackError(trail, err, parseErr)
	}

	payload = normalizeFallbackPayload(payload, trail)

	if err := schema.Validate(payload); err != nil {
		trail.Addf("Шаг %s: ответ не прошёл валидацию схемы: %s", StepStructuredCreate, shortError(err))
		return nil, upstreamError(StepStructuredCreate, 422,
			"Ответ AI получен, но не соответствует схеме данных. "+
				"Проверьте тип отпуска/даты в документе.",
			trail, err)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, p.createFallbackError(trail, eris.Wrap(err, "extract: re-encode fallback payload"), parseErr)
	}
	var rec model.ExtractedRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, p.createFallbackError(trail, eris.Wrap(err, "extract: decode fallback payload"), parseErr)
	}

	trail.Addf("Шаг %s: JSON получен и проверен", StepStructuredCreate)
	return &rec, nil
}

// createFallbackError picks the failure that decides the terminal status: the
// fallback call's own API/timeout error wins, otherwise the parse error the
// fallback was compensating for; a plain processing slip maps to 500.
func (p *Pipeline) createFallbackError(trail *Trail, fbErr, parseErr error) *UpstreamError {
	source := parseErr
	var apierr *anthropic.APIError
	var te *TimeoutError
	if eris.As(fbErr, &apierr) || eris.As(fbErr, &te) {
		source = fbErr
	}

	c := classify(source)
	if c.Kind == KindGeneric {
		isAPI := eris.As(source, &apierr)
		isTimeout := eris.As(source, &te)
		if !isAPI && !isTimeout {
			return upstreamError(StepStructuredCreate, 500,
				"Ошибка структуризации ответа AI-сервиса.", trail, fbErr)
		}
	}
	trail.RecordUpstreamErrorID(StepStructuredCreate, c.RequestID)
	return classifiedError(StepStructuredCreate, c, trail, source)
}

// visionRequest builds the transcription request: page images followed by
// the draft instruction.
func (p *Pipeline) visionRequest(mdl string, images []render.ImageBlock) anthropic.MessageRequest {
	parts := make([]anthropic.ContentPart, 0, len(images)+1)
	for _, img := range images {
		parts = append(parts, anthropic.Image(img.MediaType, img.Data))
	}
	parts = append(parts, anthropic.Text(draftPrompt))

	return anthropic.MessageRequest{
		Model:     mdl,
		MaxTokens: p.cfg.Anthropic.DraftMaxTokens,
		System:    systemPrompt,
		Messages:  []anthropic.Message{{Role: "user", Content: parts}},
	}
}

// parseRequest builds the structured-stage request around the draft text.
// Used both for the strict parse and the create fallback.
func (p *Pipeline) parseRequest(mdl, draft string) anthropic.MessageRequest {
	zero := 0.0
	return anthropic.MessageRequest{
		Model:       mdl,
		MaxTokens:   p.cfg.Anthropic.MaxTokens,
		System:      systemPrompt,
		Messages:    []anthropic.Message{{Role: "user", Content: []anthropic.ContentPart{anthropic.Text(parsePrompt(draft))}}},
		Temperature: &zero,
	}
}

// finalizeRecord stamps run metadata onto the extracted record.
func finalizeRecord(rec *model.ExtractedRecord, info *render.Info, usedCreateFallback bool) {
	if rec.SchemaVersion == "" {
		rec.SchemaVersion = model.SchemaVersion
	}
	if !rec.Leave.LeaveType.Valid() {
		rec.Leave.LeaveType = normalizeLeaveType(string(rec.Leave.LeaveType))
	}
	rec.Quality.Notes = append(rec.Quality.Notes, info.Note())
	if usedCreateFallback {
		rec.Quality.Notes = append(rec.Quality.Notes, "structured_fallback=create+json")
	}
}

// mockRecord is the fixed response served when mock mode is on, used for
// demos and offline checks of the serving layer.
func mockRecord(filename string) *model.ExtractedRecord {
	full := "Иванов Иван Иванович"
	mgr := "Петров П. П."
	start := "2025-07-01"
	end := "2025-07-14"
	days := 14
	reqDate := "2025-06-10"
	sig := true
	sigConf := 0.9
	raw := "MOCK: " + filename

	return &model.ExtractedRecord{
		SchemaVersion: model.SchemaVersion,
		Employee:      model.Employee{FullName: &full},
		Manager:       model.Manager{FullName: &mgr},
		RequestDate:   &reqDate,
		Leave: model.LeaveInfo{
			LeaveType: model.LeaveAnnualPaid,
			StartDate: &start,
			EndDate:   &end,
			DaysCount: &days,
		},
		SignaturePresent:    &sig,
		SignatureConfidence: &sigConf,
		RawText:             &raw,
		Quality: model.Quality{
			OverallConfidence: 0.95,
			MissingFields:     []string{},
			Notes:             []string{"mock_mode"},
		},
	}
}

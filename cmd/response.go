package main

import (
	"github.com/kadry-group/leave-cli/internal/compliance"
	"github.com/kadry-group/leave-cli/internal/extract"
	"github.com/kadry-group/leave-cli/internal/model"
	"github.com/kadry-group/leave-cli/internal/render"
	"github.com/kadry-group/leave-cli/pkg/anthropic"
)

// apiResponse is the combined output shape, shared by the extract command
// and the HTTP endpoint: the record plus both finding lists, the rollup
// decision, and the run trace.
type apiResponse struct {
	Extract                *model.ExtractedRecord `json:"extract"`
	Validation             []model.Finding        `json:"validation"`
	Compliance             []model.Finding        `json:"compliance"`
	Decision               model.Decision         `json:"decision"`
	NeedsRewrite           bool                   `json:"needs_rewrite"`
	ComplianceRulesVersion string                 `json:"compliance_rules_version"`
	Trace                  model.Trace            `json:"trace"`
	DebugSteps             []string               `json:"debug_steps,omitempty"`
}

// buildResponse runs validation and compliance over a finished extraction
// and assembles the response. The decision is computed over the merged
// finding list so a validation error alone still rolls up to "error".
func buildResponse(res *extract.Result, includeDebug bool) apiResponse {
	validation := compliance.ValidateRecord(res.Record)
	report := compliance.Check(res.Record)

	merged := make([]model.Finding, 0, len(validation)+len(report.Findings))
	merged = append(merged, validation...)
	merged = append(merged, report.Findings...)

	resp := apiResponse{
		Extract:                res.Record,
		Validation:             validation,
		Compliance:             report.Findings,
		Decision:               model.BuildDecision(merged),
		NeedsRewrite:           report.NeedsRewrite,
		ComplianceRulesVersion: compliance.RulesVersion,
		Trace:                  res.Trace,
	}
	if includeDebug {
		resp.DebugSteps = res.DebugTrail
	}
	return resp
}

// newPipeline wires the production pipeline from the loaded config.
func newPipeline() *extract.Pipeline {
	client := anthropic.NewClient(cfg.Anthropic.Key, cfg.Anthropic.MaxRetries)
	renderer := render.NewRenderer(cfg.PDF)
	return extract.New(cfg, client, renderer)
}

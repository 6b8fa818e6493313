// Package compliance evaluates an extracted leave-request record against
// HR document rules. The checker is advisory: it annotates, it never blocks
// extraction output.
package compliance

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/kadry-group/leave-cli/internal/model"
)

// Report is the result of a full rule evaluation.
type Report struct {
	Findings []model.Finding `json:"findings"`
	// NeedsRewrite is true when any error-severity finding exists: the
	// document should be corrected and re-submitted.
	NeedsRewrite bool `json:"needs_rewrite"`
}

// Check runs every rule against the record. A panicking rule degrades to a
// warn finding instead of failing the run; remaining rules still execute.
func Check(rec *model.ExtractedRecord) Report {
	var findings []model.Finding

	for _, rule := range Rules {
		out, err := runRule(rule, rec)
		if err != nil {
			zap.L().Warn("compliance rule panicked", zap.Error(err))
			findings = append(findings, finding(model.SeverityWarn,
				"compliance_internal_error", "",
				fmt.Sprintf("Внутренняя ошибка проверки соответствия: %v", err), nil))
			continue
		}
		findings = append(findings, out...)
	}

	needsRewrite := false
	for _, f := range findings {
		if f.Severity == model.SeverityError {
			needsRewrite = true
			break
		}
	}

	return Report{Findings: findings, NeedsRewrite: needsRewrite}
}

func runRule(rule Rule, rec *model.ExtractedRecord) (out []model.Finding, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("%v", r)
		}
	}()
	return rule(rec), nil
}

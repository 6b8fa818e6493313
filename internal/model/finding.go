package model

// Severity levels for compliance and validation findings.
const (
	SeverityError = "error"
	SeverityWarn  = "warn"
	SeverityInfo  = "info"
)

// Finding is one rule result: a stable code, a human message, and optional
// structured detail (expected/actual values live in Details).
type Finding struct {
	Severity   string         `json:"severity"`
	Code       string         `json:"code"`
	Field      string         `json:"field,omitempty"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	RuleID     string         `json:"rule_id,omitempty"`
	LegalBasis string         `json:"legal_basis,omitempty"`
	ActionHint string         `json:"action_hint,omitempty"`
}

// Decision is the severity rollup over all findings.
type Decision struct {
	Status       string `json:"status"` // ok | warn | error
	NeedsRewrite bool   `json:"needs_rewrite"`
	Summary      string `json:"summary"`
}

// BuildDecision derives the overall decision from a merged finding list.
// An error-severity finding forces needs_rewrite.
func BuildDecision(findings []Finding) Decision {
	var hasError, hasWarn bool
	for _, f := range findings {
		switch f.Severity {
		case SeverityError:
			hasError = true
		case SeverityWarn:
			hasWarn = true
		}
	}
	switch {
	case hasError:
		return Decision{
			Status:       "error",
			NeedsRewrite: true,
			Summary:      "Найдены критичные проблемы: заявление нужно исправить.",
		}
	case hasWarn:
		return Decision{
			Status:  "warn",
			Summary: "Есть замечания. Проверьте поля перед отправкой в кадровую службу.",
		}
	case len(findings) > 0:
		return Decision{
			Status:  "ok",
			Summary: "Извлечение завершено. Есть информационные подсказки.",
		}
	default:
		return Decision{Status: "ok", Summary: "Ошибок не найдено."}
	}
}

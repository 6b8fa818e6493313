package extract

import (
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/kadry-group/leave-cli/internal/model"
)

// leaveTypeAliases maps exact lowercased tokens (canonical English values
// and their Russian natural-language equivalents) to the closed enum.
var leaveTypeAliases = map[string]model.LeaveType{
	"annual_paid":                     model.LeaveAnnualPaid,
	"ежегодный оплачиваемый отпуск":   model.LeaveAnnualPaid,
	"ежегодный оплачиваемый":          model.LeaveAnnualPaid,
	"оплачиваемый отпуск":             model.LeaveAnnualPaid,
	"unpaid":                          model.LeaveUnpaid,
	"без сохранения":                  model.LeaveUnpaid,
	"без сохранения заработной платы": model.LeaveUnpaid,
	"study":                           model.LeaveStudy,
	"учебный":                         model.LeaveStudy,
	"maternity":                       model.LeaveMaternity,
	"беременности и родам":            model.LeaveMaternity,
	"childcare":                       model.LeaveChildcare,
	"по уходу за ребенком":            model.LeaveChildcare,
	"по уходу за ребёнком":            model.LeaveChildcare,
	"other":                           model.LeaveOther,
	"unknown":                         model.LeaveUnknown,
}

// normalizeLeaveType folds a raw model-emitted leave type into the canonical
// enum. Exact aliases first, then substring heuristics, then unknown.
// Idempotent for canonical values.
func normalizeLeaveType(raw string) model.LeaveType {
	value := strings.ToLower(strings.TrimSpace(norm.NFC.String(raw)))
	if value == "" {
		return model.LeaveUnknown
	}

	if t, ok := leaveTypeAliases[value]; ok {
		return t
	}

	switch {
	case strings.Contains(value, "оплач") && strings.Contains(value, "отпуск"):
		return model.LeaveAnnualPaid
	case strings.Contains(value, "без сохран"):
		return model.LeaveUnpaid
	case strings.Contains(value, "учеб"):
		return model.LeaveStudy
	case strings.Contains(value, "беремен") || strings.Contains(value, "родам"):
		return model.LeaveMaternity
	case strings.Contains(value, "уход") &&
		(strings.Contains(value, "ребен") || strings.Contains(value, "ребён")):
		return model.LeaveChildcare
	}
	return model.LeaveUnknown
}

// qualitative signature-confidence anchors, both languages.
var signatureAnchors = map[string]float64{
	"high": 0.9, "высокая": 0.9, "высокий": 0.9,
	"medium": 0.6, "средняя": 0.6, "средний": 0.6,
	"low": 0.3, "низкая": 0.3, "низкий": 0.3,
}

// normalizeSignatureConfidence coerces whatever the model emitted for
// signature_confidence into a float in [0,1] or nil. Numeric strings
// tolerate a decimal comma.
func normalizeSignatureConfidence(raw any) *float64 {
	switch v := raw.(type) {
	case float64:
		return clip01(v)
	case int:
		return clip01(float64(v))
	case string:
		s := strings.ToLower(strings.TrimSpace(v))
		if anchor, ok := signatureAnchors[s]; ok {
			return &anchor
		}
		f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
		if err != nil {
			return nil
		}
		return clip01(f)
	default:
		return nil
	}
}

func clip01(f float64) *float64 {
	if f < 0 {
		f = 0
	}
	if f > 1 {
		f = 1
	}
	return &f
}

// normalizeFallbackPayload post-processes a free-form-JSON payload into
// canonical field values before schema validation. Strict-parse output is
// already schema-conformant and skips this. Every change is recorded as a
// trail note.
func normalizeFallbackPayload(payload map[string]any, trail *Trail) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = v
	}

	if leave, ok := out["leave"].(map[string]any); ok {
		original, _ := leave["leave_type"].(string)
		normalized := normalizeLeaveType(original)
		if original != string(normalized) {
			leave["leave_type"] = string(normalized)
			trail.Addf("Шаг structured.fallback.normalize: leave_type '%s' -> '%s'", original, normalized)
		}
	}

	if raw, ok := out["signature_confidence"]; ok && raw != nil {
		normalized := normalizeSignatureConfidence(raw)
		if normalized == nil {
			out["signature_confidence"] = nil
			trail.Addf("Шаг structured.fallback.normalize: signature_confidence '%v' -> null", raw)
		} else {
			if f, isNum := raw.(float64); !isNum || f != *normalized {
				trail.Addf("Шаг structured.fallback.normalize: signature_confidence '%v' -> %v", raw, *normalized)
			}
			out["signature_confidence"] = *normalized
		}
	}

	return out
}

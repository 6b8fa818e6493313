package compliance

import (
	"strings"
	"time"

	"github.com/kadry-group/leave-cli/internal/model"
)

// ruleMeta carries the stable identification attached to every finding a
// rule emits: catalog id, legal basis, and what the employee should do.
type ruleMeta struct {
	ruleID     string
	legalBasis string
	actionHint string
}

// metaByCode is the rule catalog. Codes are the stable API; everything else
// here is advisory text shown alongside the finding.
var metaByCode = map[string]ruleMeta{
	"missing_employer_name": {
		ruleID:     "DOC-REQ-001",
		legalBasis: "ТК РФ (практика документооборота): реквизиты заявления должны однозначно идентифицировать работодателя.",
		actionHint: "Добавьте полное наименование организации в шапке заявления.",
	},
	"missing_employee_name": {
		ruleID:     "DOC-REQ-002",
		legalBasis: "ТК РФ: заявление должно позволять идентифицировать работника.",
		actionHint: "Укажите полные ФИО сотрудника без сокращений.",
	},
	"missing_manager_name": {
		ruleID:     "DOC-REQ-003",
		legalBasis: "Локальные практики кадрового делопроизводства: адресат заявления должен быть определён.",
		actionHint: "Добавьте ФИО адресата (руководителя/уполномоченного лица).",
	},
	"missing_request_date": {
		ruleID:     "DOC-REQ-004",
		legalBasis: "ТК РФ и кадровая практика: дата заявления нужна для фиксации волеизъявления.",
		actionHint: "Проставьте дату составления заявления в формате YYYY-MM-DD.",
	},
	"missing_leave_start_date": {
		ruleID:     "DOC-REQ-005",
		legalBasis: "ТК РФ: период отпуска должен быть определён датами.",
		actionHint: "Укажите дату начала отпуска.",
	},
	"missing_leave_end_date": {
		ruleID:     "DOC-REQ-006",
		legalBasis: "ТК РФ: период отпуска должен быть определён датами.",
		actionHint: "Укажите дату окончания отпуска.",
	},
	"missing_signature": {
		ruleID:     "DOC-SIGN-001",
		legalBasis: "Кадровая практика: заявление работника подписывается заявителем.",
		actionHint: "Подпишите заявление и загрузите PDF повторно.",
	},
	"low_signature_confidence": {
		ruleID:     "OCR-SIGN-002",
		legalBasis: "Техническая проверка OCR/vision: низкая уверенность требует ручного подтверждения.",
		actionHint: "Проверьте визуально наличие подписи в скане.",
	},
	"invalid_date_range": {
		ruleID:     "DATE-001",
		legalBasis: "ТК РФ: период отпуска не может иметь обратный диапазон дат.",
		actionHint: "Исправьте даты начала и окончания отпуска.",
	},
	"request_after_start": {
		ruleID:     "DATE-002",
		legalBasis: "Кадровая практика: заявление обычно подаётся до начала отпуска.",
		actionHint: "Проверьте дату заявления и дату начала отпуска.",
	},
	"short_notice": {
		ruleID:     "DATE-003",
		legalBasis: "Ст. 123 ТК РФ (график отпусков) и локальные процедуры согласования.",
		actionHint: "Проверьте необходимость дополнительного согласования с работодателем.",
	},
	"invalid_days_count": {
		ruleID:     "COUNT-001",
		legalBasis: "Логическая проверка кадрового документа: длительность отпуска должна быть положительной.",
		actionHint: "Укажите корректное количество календарных дней.",
	},
	"days_count_mismatch": {
		ruleID:     "COUNT-002",
		legalBasis: "Период отпуска и число календарных дней должны быть согласованы.",
		actionHint: "Скорректируйте даты или количество дней, чтобы значения совпали.",
	},
	"missing_days_count": {
		ruleID:     "COUNT-003",
		legalBasis: "Кадровая практика: явное указание длительности снижает риск ошибок в приказе.",
		actionHint: "Добавьте количество календарных дней отпуска.",
	},
	"annual_paid_part_lt14": {
		ruleID:     "LAW-122-001",
		legalBasis: "Ст. 125 ТК РФ: одна из частей ежегодного оплачиваемого отпуска — не менее 14 календарных дней.",
		actionHint: "Проверьте суммарное планирование частей отпуска и подтвердите наличие части 14+ дней.",
	},
	"unpaid_no_reason": {
		ruleID:     "LAW-128-001",
		legalBasis: "Ст. 128 ТК РФ: отпуск без сохранения предоставляется по заявлению работника, как правило с указанием причины.",
		actionHint: "Добавьте краткое основание (например, семейные обстоятельства).",
	},
	"needs_human_check": {
		ruleID:     "OCR-QUALITY-001",
		legalBasis: "Техническое ограничение OCR/LLM: неоднозначный распознанный текст требует ручной валидации.",
		actionHint: "Сверьте извлечённые поля с исходным PDF вручную.",
	},
	"compliance_internal_error": {
		ruleID: "ENGINE-001",
	},
}

// finding assembles one Finding with its catalog metadata.
func finding(severity, code, field, message string, details map[string]any) model.Finding {
	meta := metaByCode[code]
	return model.Finding{
		Severity:   severity,
		Code:       code,
		Field:      field,
		Message:    message,
		Details:    details,
		RuleID:     meta.ruleID,
		LegalBasis: meta.legalBasis,
		ActionHint: meta.actionHint,
	}
}

func text(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

// parseISO parses a YYYY-MM-DD string, nil on absence or malformation.
// Schema validation already shapes the string; this guards against
// calendar-impossible dates like 2025-02-30.
func parseISO(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", *s)
	if err != nil {
		return nil
	}
	return &t
}

// shortNoticeDays is the advance-notice threshold below which the run gets
// an informational flag.
const shortNoticeDays = 14

// minAnnualPartDays is the statutory minimum for one part of a split annual
// paid leave.
const minAnnualPartDays = 14

// lowSignatureThreshold flags a detected but uncertain signature.
const lowSignatureThreshold = 0.6

// unpaidReasonMarkers are phrases in the raw text that count as a stated
// reason for unpaid leave.
var unpaidReasonMarkers = []string{
	"по семейным обстоятельствам",
	"по состоянию здоровья",
	"по уходу",
	"по причине",
}

// Rule checks one aspect of the record and returns zero or more findings.
// Rules are pure: no IO, no mutation of the record.
type Rule func(rec *model.ExtractedRecord) []model.Finding

// Rules is the ordered evaluation set.
var Rules = []Rule{
	requiredFieldsRule,
	signatureRule,
	datesAndCountsRule,
	leaveTypeHintsRule,
	qualityHintsRule,
}

func requiredFieldsRule(rec *model.ExtractedRecord) []model.Finding {
	var out []model.Finding
	if text(rec.EmployerName) == "" {
		out = append(out, finding(model.SeverityError, "missing_employer_name",
			"employer_name", "Не указана организация работодателя.", nil))
	}
	if text(rec.Employee.FullName) == "" {
		out = append(out, finding(model.SeverityError, "missing_employee_name",
			"employee.full_name", "Не указано ФИО сотрудника.", nil))
	}
	if text(rec.Manager.FullName) == "" {
		out = append(out, finding(model.SeverityWarn, "missing_manager_name",
			"manager.full_name", "Не указано ФИО руководителя/адресата заявления.", nil))
	}
	if text(rec.RequestDate) == "" {
		out = append(out, finding(model.SeverityError, "missing_request_date",
			"request_date", "Не указана дата заявления.", nil))
	}
	if text(rec.Leave.StartDate) == "" {
		out = append(out, finding(model.SeverityError, "missing_leave_start_date",
			"leave.start_date", "Не указана дата начала отпуска.", nil))
	}
	if text(rec.Leave.EndDate) == "" {
		out = append(out, finding(model.SeverityError, "missing_leave_end_date",
			"leave.end_date", "Не указана дата окончания отпуска.", nil))
	}
	return out
}

func signatureRule(rec *model.ExtractedRecord) []model.Finding {
	var out []model.Finding
	if rec.SignaturePresent != nil && !*rec.SignaturePresent {
		out = append(out, finding(model.SeverityError, "missing_signature",
			"signature_present", "В заявлении не обнаружена подпись сотрудника.", nil))
	}
	if rec.SignaturePresent != nil && *rec.SignaturePresent &&
		rec.SignatureConfidence != nil && *rec.SignatureConfidence < lowSignatureThreshold {
		out = append(out, finding(model.SeverityWarn, "low_signature_confidence",
			"signature_confidence",
			"Подпись найдена, но уверенность низкая. Желательна ручная проверка.", nil))
	}
	return out
}

func datesAndCountsRule(rec *model.ExtractedRecord) []model.Finding {
	var out []model.Finding

	sd := parseISO(rec.Leave.StartDate)
	ed := parseISO(rec.Leave.EndDate)
	rd := parseISO(rec.RequestDate)

	if sd != nil && ed != nil && sd.After(*ed) {
		out = append(out, finding(model.SeverityError, "invalid_date_range",
			"leave", "Дата начала отпуска позже даты окончания.", nil))
	}

	if rd != nil && sd != nil {
		if rd.After(*sd) {
			out = append(out, finding(model.SeverityWarn, "request_after_start",
				"request_date", "Дата заявления позже даты начала отпуска.", nil))
		}
		delta := int(sd.Sub(*rd).Hours() / 24)
		if delta >= 0 && delta < shortNoticeDays {
			out = append(out, finding(model.SeverityInfo, "short_notice",
				"request_date",
				"До начала отпуска меньше 14 дней. По практике/графику отпусков может потребоваться согласование.",
				map[string]any{"days_before_start": delta}))
		}
	}

	var expectedDays *int
	if sd != nil && ed != nil {
		d := int(ed.Sub(*sd).Hours()/24) + 1
		expectedDays = &d
	}

	switch {
	case rec.Leave.DaysCount != nil:
		if *rec.Leave.DaysCount <= 0 {
			out = append(out, finding(model.SeverityError, "invalid_days_count",
				"leave.days_count", "Количество дней должно быть больше 0.", nil))
		}
		if expectedDays != nil && *expectedDays != *rec.Leave.DaysCount {
			out = append(out, finding(model.SeverityError, "days_count_mismatch",
				"leave.days_count",
				"Количество дней не совпадает с диапазоном дат (инклюзивно).",
				map[string]any{"expected": *expectedDays, "actual": *rec.Leave.DaysCount}))
		}
	case expectedDays != nil:
		out = append(out, finding(model.SeverityWarn, "missing_days_count",
			"leave.days_count",
			"Лучше указать количество календарных дней, чтобы не было разночтений.",
			map[string]any{"expected": *expectedDays}))
	}

	return out
}

func leaveTypeHintsRule(rec *model.ExtractedRecord) []model.Finding {
	var out []model.Finding

	if rec.Leave.LeaveType == model.LeaveAnnualPaid &&
		rec.Leave.DaysCount != nil && *rec.Leave.DaysCount < minAnnualPartDays {
		out = append(out, finding(model.SeverityWarn, "annual_paid_part_lt14",
			"leave.days_count",
			"Если ежегодный отпуск делится на части, одна часть должна быть не менее 14 календарных дней. "+
				"Убедитесь, что в другом периоде есть 14+ дней.", nil))
	}

	if rec.Leave.LeaveType == model.LeaveUnpaid {
		comment := strings.ToLower(text(rec.Leave.Comment))
		raw := strings.ToLower(text(rec.RawText))
		hasMarker := false
		for _, m := range unpaidReasonMarkers {
			if strings.Contains(raw, m) {
				hasMarker = true
				break
			}
		}
		if comment == "" && !hasMarker {
			out = append(out, finding(model.SeverityInfo, "unpaid_no_reason",
				"leave.comment",
				"Для отпуска без сохранения обычно указывают причину. "+
					"Добавьте формулировку, если это необходимо.", nil))
		}
	}

	return out
}

func qualityHintsRule(rec *model.ExtractedRecord) []model.Finding {
	for _, n := range rec.Quality.Notes {
		note := strings.ToLower(n)
		if strings.Contains(note, "возможно искажение") || strings.Contains(note, "требует уточнения") {
			return []model.Finding{finding(model.SeverityInfo, "needs_human_check",
				"quality.notes",
				"В распознавании есть неоднозначности. Рекомендуется ручная проверка полей.", nil)}
		}
	}
	return nil
}

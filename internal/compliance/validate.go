package compliance

import (
	"fmt"

	"github.com/kadry-group/leave-cli/internal/model"
)

// RulesVersion tags the rule catalog in API responses so clients can detect
// catalog changes.
const RulesVersion = "tkrf-mvp-1"

// lowConfidenceThreshold flags overall extraction confidence worth a
// manual look.
const lowConfidenceThreshold = 0.6

// ValidateRecord runs the extraction sanity checks that precede the
// compliance rules: field presence and date coherence of the record itself,
// independent of HR policy. Kept separate from Rules so API responses can
// report extraction quality and document compliance as distinct lists.
func ValidateRecord(rec *model.ExtractedRecord) []model.Finding {
	var out []model.Finding
	add := func(severity, code, message string) {
		out = append(out, model.Finding{Severity: severity, Code: code, Message: message})
	}

	if text(rec.Employee.FullName) == "" {
		add(model.SeverityError, "missing_employee_full_name", "Не найдено ФИО сотрудника.")
	}
	if text(rec.Leave.StartDate) == "" {
		add(model.SeverityError, "missing_leave_start_date", "Не найдена дата начала отпуска.")
	}
	if text(rec.Leave.EndDate) == "" && rec.Leave.DaysCount == nil {
		add(model.SeverityWarn, "missing_end_or_days",
			"Нет даты окончания и нет количества дней (нужно хотя бы одно).")
	}

	sd := parseISO(rec.Leave.StartDate)
	ed := parseISO(rec.Leave.EndDate)
	if text(rec.Leave.StartDate) != "" && sd == nil {
		add(model.SeverityError, "bad_start_date", "start_date не в формате YYYY-MM-DD.")
	}
	if text(rec.Leave.EndDate) != "" && ed == nil {
		add(model.SeverityError, "bad_end_date", "end_date не в формате YYYY-MM-DD.")
	}
	if sd != nil && ed != nil && ed.Before(*sd) {
		add(model.SeverityError, "dates_inverted", "Дата окончания раньше даты начала.")
	}

	if rec.Quality.OverallConfidence < lowConfidenceThreshold {
		add(model.SeverityWarn, "low_confidence",
			fmt.Sprintf("Низкая уверенность распознавания: %.2f", rec.Quality.OverallConfidence))
	}

	return out
}

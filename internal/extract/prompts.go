package extract

// The prompts are deliberately terse and fixed: the form layout is known,
// the output contract is carried by the strict-parse schema, and anything
// the model cannot see must come back as null rather than a guess.

const systemPrompt = "Ты — помощник кадровика. Тебе дают изображения страниц заявления на отпуск (скан, возможно рукописный).\n" +
	"Нельзя выдумывать: если не видно/не уверен — null.\n" +
	"Даты только YYYY-MM-DD. Если год не указан — null и отметь в quality.notes.\n"

const draftPrompt = "Считай заявление по изображениям.\n" +
	"Сделай:\n" +
	"1) Блок TRANSCRIPTION: построчная расшифровка видимого текста (как есть).\n" +
	"2) Блок CANDIDATE_FIELDS: key:value для полей employee.full_name, leave.start_date, leave.end_date, " +
	"leave.days_count, leave.leave_type, request_date, manager.full_name, подпись.\n" +
	"Если не уверен — null.\n"

// emptyDraftPlaceholder replaces an empty vision response so the structured
// stage still runs and reports missing fields instead of failing the run.
const emptyDraftPlaceholder = "TRANSCRIPTION:\n(null)\nCANDIDATE_FIELDS:\n(null)"

// parsePrompt frames the draft text for the structured stage. The same text
// is used for the strict parse and the free-text create fallback; the latter
// relies on the JSON-only instruction.
func parsePrompt(draftText string) string {
	return "На основе распознанного текста верни ТОЛЬКО валидный JSON-объект без markdown и пояснений.\n" +
		"Критично: поле leave.leave_type верни только одним из canonical значений: " +
		"annual_paid | unpaid | study | maternity | childcare | other | unknown.\n" +
		"Если поле не подтверждается текстом — null.\n" +
		"Структура: schema_version, employer_name, employee, manager, request_date, leave, " +
		"signature_present, signature_confidence, raw_text, quality.\n\n" +
		"РАСПОЗНАННЫЙ ТЕКСТ:\n" + draftText + "\n"
}

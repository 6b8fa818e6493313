package extract

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

const trimMarker = "\n... [TRIMMED] ...\n"

// cleanDraft NFC-normalizes the vision output (handwriting transcriptions
// arrive with mixed composed/decomposed diacritics), strips NULs, and trims
// surrounding whitespace.
func cleanDraft(draft string) string {
	draft = norm.NFC.String(draft)
	draft = strings.ReplaceAll(draft, "\x00", "")
	return strings.TrimSpace(draft)
}

// trimDraft bounds the draft text to maxChars before the structured stage.
// When truncation is needed it keeps the head two thirds and the tail third
// around a marker, so both the transcription start and the candidate-field
// block at the end survive. The marker counts against the budget: output is
// never longer than maxChars. Returns the trimmed text and whether
// truncation occurred.
func trimDraft(draft string, maxChars int) (string, bool) {
	if maxChars <= 0 || len(draft) <= maxChars {
		return draft, false
	}

	avail := maxChars - len(trimMarker)
	if avail < 2 {
		return draft[:maxChars], true
	}

	head := avail * 2 / 3
	tail := avail - head
	return draft[:head] + trimMarker + draft[len(draft)-tail:], true
}

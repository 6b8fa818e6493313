package extract

import (
	"fmt"
	"regexp"

	"go.uber.org/zap"
)

var (
	nameRe     = regexp.MustCompile(`name=[^,]+`)
	fullNameRe = regexp.MustCompile(`(?i)full_name['"]?:\s*[^,}]+`)
)

// redact masks personal-name-shaped substrings. Applied to every trail line
// before it is stored, so no unredacted line can reach logs or callers.
func redact(msg string) string {
	msg = nameRe.ReplaceAllString(msg, "name=<masked>")
	msg = fullNameRe.ReplaceAllString(msg, "full_name:<masked>")
	return msg
}

// Trail is the ordered, append-only debug log for one pipeline run. It also
// collects upstream request ids per step so operators can correlate with
// vendor-side logs. Not safe for concurrent use; each run owns its own.
type Trail struct {
	steps       []string
	upstreamIDs map[string]string
}

func newTrail() *Trail {
	return &Trail{upstreamIDs: map[string]string{}}
}

// Add appends a redacted entry and mirrors it to the structured log.
func (t *Trail) Add(msg string) {
	msg = redact(msg)
	t.steps = append(t.steps, msg)
	zap.L().Info("[extract] " + msg)
}

// Addf is Add with fmt-style formatting.
func (t *Trail) Addf(format string, args ...any) {
	t.Add(fmt.Sprintf(format, args...))
}

// RecordUpstreamID tags a step with the vendor request id observed in a
// response or error, and notes it in the trail.
func (t *Trail) RecordUpstreamID(step, id string) {
	if id == "" {
		return
	}
	t.upstreamIDs[step] = id
	t.Addf("Шаг %s: request_id=%s", step, id)
}

// RecordUpstreamErrorID is RecordUpstreamID for ids observed on error
// responses; kept distinguishable in the trail for support escalation.
func (t *Trail) RecordUpstreamErrorID(step, id string) {
	if id == "" {
		return
	}
	t.upstreamIDs[step] = id
	t.Addf("Шаг %s: error_request_id=%s", step, id)
}

// Steps returns a copy of the accumulated entries.
func (t *Trail) Steps() []string {
	out := make([]string, len(t.steps))
	copy(out, t.steps)
	return out
}

// UpstreamIDs returns a copy of the step → request-id mapping.
func (t *Trail) UpstreamIDs() map[string]string {
	out := make(map[string]string, len(t.upstreamIDs))
	for k, v := range t.upstreamIDs {
		out[k] = v
	}
	return out
}

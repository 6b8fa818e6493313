package extract

// Pipeline step names, used in trail entries, trace correlation, and
// terminal errors.
const (
	StepConfig           = "config"
	StepRender           = "render"
	StepVision           = "vision"
	StepVisionFallback   = "vision.fallback"
	StepStructured       = "structured"
	StepStructuredParse  = "structured.parse"
	StepStructuredCreate = "structured.fallback.create"
)

// UpstreamError is the terminal artifact of a failed run: a step name, a
// normalized HTTP-like status, a safe user-facing message, and the redacted
// debug trail accumulated up to the failure point. Constructed once per
// failure; never mutated after construction.
type UpstreamError struct {
	Step       string
	Status     int
	Message    string
	UpstreamID string
	Trail      []string
	cause      error
}

func (e *UpstreamError) Error() string {
	return e.Message
}

func (e *UpstreamError) Unwrap() error {
	return e.cause
}

func upstreamError(step string, status int, msg string, trail *Trail, cause error) *UpstreamError {
	e := &UpstreamError{
		Step:    step,
		Status:  status,
		Message: msg,
		Trail:   trail.Steps(),
		cause:   cause,
	}
	if id, ok := trail.UpstreamIDs()[step]; ok {
		e.UpstreamID = id
	}
	return e
}

// classifiedError builds the terminal error for a failure already run
// through the classifier.
func classifiedError(step string, c Classification, trail *Trail, cause error) *UpstreamError {
	e := upstreamError(step, c.Status, c.SafeMessage, trail, cause)
	if e.UpstreamID == "" {
		e.UpstreamID = c.RequestID
	}
	return e
}

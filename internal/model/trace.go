package model

// Trace correlates one extraction run with vendor-side logs: our request id,
// per-stage wall-clock timings, and any upstream request ids observed.
type Trace struct {
	RequestID          string            `json:"request_id"`
	TimingsMS          map[string]int64  `json:"timings_ms"`
	UpstreamRequestIDs map[string]string `json:"upstream_request_ids"`
}

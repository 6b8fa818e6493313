package extract

import (
	"errors"
	"strings"

	"github.com/kadry-group/leave-cli/pkg/anthropic"
)

// Kind is the closed set of normalized upstream failure classes.
type Kind int

const (
	// KindGeneric is any upstream failure that fits no other class.
	KindGeneric Kind = iota
	// KindTimeout is a stage call that hit its wall-clock budget.
	KindTimeout
	// KindRateLimited is HTTP 429.
	KindRateLimited
	// KindRejected is a 4xx content rejection (400/413/422). Never retried.
	KindRejected
	// KindUnavailable is 5xx, the vendor's nonstandard 529, or an
	// overloaded/gateway error marker in the message text.
	KindUnavailable
)

// Classification is the normalized view of an upstream failure: an outward
// HTTP-like status and a safe localized message that never echoes vendor
// text or request payload content.
type Classification struct {
	Kind        Kind
	Status      int
	SafeMessage string
	RequestID   string
}

// autoFallbackModel is substituted when a known heavyweight model fails and
// no explicit fallback is configured.
const autoFallbackModel = "claude-sonnet-4-6"

// classify maps a raw upstream failure to its normalized class. Status is
// extracted defensively; when absent, message text patterns decide.
func classify(err error) Classification {
	var te *TimeoutError
	if errors.As(err, &te) {
		return Classification{
			Kind:   KindTimeout,
			Status: 504,
			SafeMessage: "AI-сервис не ответил вовремя. Повторите попытку позже " +
				"или уменьшите размер PDF.",
		}
	}

	status := 0
	requestID := ""
	var apierr *anthropic.APIError
	if errors.As(err, &apierr) {
		status = apierr.StatusCode
		requestID = apierr.RequestID
	}

	text := strings.ToLower(errText(err))

	switch {
	case status == 429:
		return Classification{
			Kind:   KindRateLimited,
			Status: 429,
			SafeMessage: "AI-сервис временно перегружен (rate limit). " +
				"Повторите попытку через минуту.",
			RequestID: requestID,
		}
	case status == 401:
		return Classification{
			Kind:        KindRejected,
			Status:      401,
			SafeMessage: "AI-сервис отклонил ключ доступа. Проверьте настройку ANTHROPIC_API_KEY.",
			RequestID:   requestID,
		}
	case status == 403:
		return Classification{
			Kind:        KindRejected,
			Status:      403,
			SafeMessage: "Нет доступа к AI-сервису для этого ключа или модели.",
			RequestID:   requestID,
		}
	case status == 404:
		return Classification{
			Kind:        KindRejected,
			Status:      404,
			SafeMessage: "Указанная модель AI-сервиса не найдена. Проверьте идентификатор модели.",
			RequestID:   requestID,
		}
	case status == 413:
		return Classification{
			Kind:        KindRejected,
			Status:      413,
			SafeMessage: "Документ слишком большой для AI-сервиса. Уменьшите размер PDF.",
			RequestID:   requestID,
		}
	case status == 400 || status == 422:
		return Classification{
			Kind:   KindRejected,
			Status: status,
			SafeMessage: "AI-сервис отклонил запрос к документу. " +
				"Попробуйте другой PDF или уменьшите его размер.",
			RequestID: requestID,
		}
	case status == 529 || strings.Contains(text, "overloaded"):
		// Nonstandard upstream code; normalized to 503 downstream.
		return Classification{
			Kind:        KindUnavailable,
			Status:      503,
			SafeMessage: "AI-сервис временно перегружен. Повторите попытку позже.",
			RequestID:   requestID,
		}
	case status >= 500,
		strings.Contains(text, "internal server error"),
		strings.Contains(text, "bad gateway"):
		outward := status
		if outward < 500 {
			outward = 503
		}
		return Classification{
			Kind:        KindUnavailable,
			Status:      outward,
			SafeMessage: "AI-сервис временно недоступен. Повторите попытку позже.",
			RequestID:   requestID,
		}
	default:
		return Classification{
			Kind:        KindGeneric,
			Status:      502,
			SafeMessage: "Не удалось обработать документ во внешнем AI-сервисе.",
			RequestID:   requestID,
		}
	}
}

// fallbackEligible reports whether a failure class warrants the single
// per-stage fallback attempt. Rate limits are left to the caller's cool-down
// and content rejections are final.
func fallbackEligible(c Classification) bool {
	return c.Kind == KindTimeout || c.Kind == KindUnavailable
}

// resolveFallbackModel picks the alternate model for a retry. A configured
// fallback wins when it differs from the primary; otherwise a known
// heavyweight model falls back to the default lighter one; otherwise there
// is no fallback.
func resolveFallbackModel(primary, configured string) string {
	if configured != "" && configured != primary {
		return configured
	}
	if strings.Contains(primary, "opus") && primary != autoFallbackModel {
		return autoFallbackModel
	}
	return ""
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// shortError compacts an error message for trail entries: whitespace
// collapsed and capped so raw vendor text never dominates the trail.
func shortError(err error) string {
	if err == nil {
		return ""
	}
	text := strings.Join(strings.Fields(err.Error()), " ")
	if text == "" {
		return "unknown error"
	}
	if len(text) > 220 {
		text = text[:220]
	}
	return text
}

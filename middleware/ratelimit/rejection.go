package ratelimit

import (
	"encoding/json"
	"net/http"

	"portfolio-backend/middleware/ratelimit/application"
	"portfolio-backend/middleware/ratelimit/domain"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// RejectionBody é o JSON das recusas do gate.
type RejectionBody struct {
	Error      string           `json:"error"`
	Message    string           `json:"message"`
	RetryAfter int              `json:"retry_after"`
	LimitType  domain.LimitType `json:"limit_type"`
}

// NewRejectionBody traduz a decisão para o corpo da resposta (retry_after em segundos).
func NewRejectionBody(dec domain.Decision) RejectionBody {
	body := RejectionBody{
		RetryAfter: seconds(dec.RetryAfter),
		LimitType:  dec.LimitType(),
	}

	switch dec.Kind {
	case domain.RejectInputTooLong:
		body.Error = "input_too_long"
		body.Message = "Message too long. Please keep it under " + formatInt(dec.Limit) + " characters."
	case domain.RejectDailyTokensExhausted:
		body.Error = "daily_tokens_exhausted"
		body.Message = "The assistant has reached its daily usage limit. Please try again later."
	case domain.RejectRateLimited:
		body.Error = "rate_limit_exceeded"
		if dec.Scope == domain.ScopeDaily {
			body.Message = "Daily request limit reached (" + formatInt(dec.Limit) + " per day). Please come back tomorrow."
		} else {
			body.Message = "Too many requests (" + formatInt(dec.Limit) + " per minute). Please wait before trying again."
		}
	default:
		body.Error = "rejected"
		body.Message = "Request rejected."
	}
	return body
}

// StatusFor devolve 400 para entrada longa demais e 429 para as demais recusas.
func StatusFor(dec domain.Decision) int {
	if dec.Kind == domain.RejectInputTooLong {
		return http.StatusBadRequest
	}
	return http.StatusTooManyRequests
}

// WriteRejection escreve a resposta de recusa com Retry-After e X-RateLimit-*.
func WriteRejection(w http.ResponseWriter, dec domain.Decision) {
	body := NewRejectionBody(dec)

	h := w.Header()
	if body.RetryAfter > 0 {
		h.Set("Retry-After", formatInt(body.RetryAfter))
	}
	h.Set("X-RateLimit-Limit", formatInt(dec.Limit))
	remaining := 0
	if dec.Kind == domain.RejectDailyTokensExhausted {
		remaining = dec.TokensRemaining
	}
	h.Set("X-RateLimit-Remaining", formatInt(remaining))
	h.Set("X-RateLimit-Scope", string(body.LimitType))

	writeJSON(w, StatusFor(dec), body)
}

// SetLimitHeaders anexa o retrato dos limites numa resposta bem-sucedida.
func SetLimitHeaders(w http.ResponseWriter, v application.LimitsView) {
	h := w.Header()
	h.Set("X-RateLimit-Limit", formatInt(v.MinuteLimit))
	h.Set("X-RateLimit-Remaining", formatInt(v.MinuteRemaining))
	h.Set("X-RateLimit-Daily-Limit", formatInt(v.DailyLimit))
	h.Set("X-RateLimit-Daily-Remaining", formatInt(v.DailyRemaining))
	h.Set("X-RateLimit-Tokens-Remaining", formatInt(v.TokensRemaining))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

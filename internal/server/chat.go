package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"portfolio-backend/internal/llm"
	"portfolio-backend/internal/portfolio"
	"portfolio-backend/middleware/ratelimit"
	"portfolio-backend/middleware/ratelimit/application"
)

const (
	emptyMessageReply  = "Please enter a message."
	providerErrorReply = "Sorry, something went wrong while generating the response."

	maxChatBody = 64 << 10
)

type chatRequest struct {
	Message   string `json:"message"`
	MaxTokens *int   `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Response        string `json:"response"`
	TokensUsed      *int   `json:"tokens_used,omitempty"`
	TokensRemaining *int   `json:"tokens_remaining,omitempty"`
}

type limitsResponse struct {
	MinuteLimit           int `json:"minute_limit"`
	MinuteRemaining       int `json:"minute_remaining"`
	DailyLimit            int `json:"daily_limit"`
	DailyRemaining        int `json:"daily_remaining"`
	MaxTokensPerRequest   int `json:"max_tokens_per_request"`
	MaxInputLength        int `json:"max_input_length"`
	GlobalTokensRemaining int `json:"global_tokens_remaining"`
}

func (h *handlers) chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxChatBody))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_request", Message: "Request body must be JSON with a message field."})
		return
	}

	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusOK, chatResponse{Response: emptyMessageReply})
		return
	}

	requested := 0
	if req.MaxTokens != nil {
		if *req.MaxTokens < 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_request", Message: "max_tokens must not be negative."})
			return
		}
		requested = *req.MaxTokens
	}

	key := ratelimit.KeyFromRequest(r, h.KeyHeader)
	if h.Gate == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "unavailable", Message: "Chat is not configured."})
		return
	}

	adm, decision, err := h.Gate.Admit(r.Context(), application.GateRequest{
		Key:             key,
		RequestedTokens: requested,
		InputLength:     utf8.RuneCountInString(req.Message),
		Method:          r.Method,
		Path:            "/api/chat",
	})
	if err != nil {
		h.Logger.Error("gate contract violation", "error", err, "request_id", RequestIDFromContext(r.Context()))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal_error", Message: "Internal server error"})
		return
	}
	if !decision.Allowed {
		ratelimit.WriteRejection(w, decision)
		return
	}

	doc := h.Portfolio.Current()
	llmReq := llm.Request{
		System:      portfolio.Prompt(doc.BuildContext(req.Message)),
		User:        req.Message,
		MaxTokens:   adm.Tokens(),
		Temperature: llm.DefaultTemperature,
	}
	if h.Estimator != nil {
		h.Logger.Debug("chat prompt", "prompt_tokens", h.Estimator.PromptTokens(llmReq), "max_tokens", llmReq.MaxTokens)
	}

	out, err := h.Provider.Complete(r.Context(), llmReq)
	if err != nil {
		// nada é registrado no orçamento: a chamada falhou ou o cliente desistiu
		var perr *llm.ProviderError
		if errors.As(err, &perr) {
			h.Logger.Error("llm provider failed", "provider", perr.Provider, "status", perr.StatusCode, "error", perr.Err, "request_id", RequestIDFromContext(r.Context()))
		} else {
			h.Logger.Error("llm provider failed", "error", err, "request_id", RequestIDFromContext(r.Context()))
		}
		h.Metrics.providerError()
		writeJSON(w, http.StatusOK, chatResponse{Response: providerErrorReply})
		return
	}

	if out.Demo {
		h.Metrics.demoReply()
		writeJSON(w, http.StatusOK, chatResponse{Response: out.Text})
		return
	}

	used := out.TokensUsed
	if used <= 0 && h.Estimator != nil {
		used = h.Estimator.PromptTokens(llmReq) + h.Estimator.Count(out.Text)
	}
	if used <= 0 {
		used = adm.Tokens()
	}
	if err := adm.Complete(used); err != nil {
		h.Logger.Error("record token usage", "error", err)
	}
	h.Metrics.tokensUsed(used)

	view := h.Gate.View(key)
	ratelimit.SetLimitHeaders(w, view)

	remaining := view.TokensRemaining
	writeJSON(w, http.StatusOK, chatResponse{
		Response:        out.Text,
		TokensUsed:      &used,
		TokensRemaining: &remaining,
	})
}

func (h *handlers) limits(w http.ResponseWriter, r *http.Request) {
	if h.Gate == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "unavailable", Message: "Chat is not configured."})
		return
	}
	v := h.Gate.View(ratelimit.KeyFromRequest(r, h.KeyHeader))
	writeJSON(w, http.StatusOK, limitsResponse{
		MinuteLimit:           v.MinuteLimit,
		MinuteRemaining:       v.MinuteRemaining,
		DailyLimit:            v.DailyLimit,
		DailyRemaining:        v.DailyRemaining,
		MaxTokensPerRequest:   v.MaxTokensPerRequest,
		MaxInputLength:        v.MaxInputLength,
		GlobalTokensRemaining: v.TokensRemaining,
	})
}

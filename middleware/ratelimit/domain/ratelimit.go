package domain

// Camada de domínio do rate limit.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import (
	"errors"
	"time"
)

// Key identifica quem faz a requisição (IP derivado de headers ou do peer).
// Não é autenticada: qualquer cliente que controle os headers pode forjá-la.
type Key string

// Scope é o tipo de janela deslizante.
type Scope string

const (
	ScopeMinute Scope = "minute"
	ScopeDaily  Scope = "daily"
)

// LimitType é o valor exposto em limit_type nas respostas 429.
type LimitType string

const (
	LimitMinute LimitType = "minute"
	LimitDaily  LimitType = "daily"
	LimitTokens LimitType = "tokens"
	LimitInput  LimitType = "input"
)

// WindowRule limita quantas requisições aceitas cabem em uma janela.
type WindowRule struct {
	Scope  Scope
	Limit  int
	Window time.Duration
}

// RejectKind classifica o motivo de uma recusa do gate.
type RejectKind int

const (
	RejectNone RejectKind = iota
	RejectInputTooLong
	RejectRateLimited
	RejectDailyTokensExhausted
)

func (k RejectKind) String() string {
	switch k {
	case RejectNone:
		return "none"
	case RejectInputTooLong:
		return "input_too_long"
	case RejectRateLimited:
		return "rate_limited"
	case RejectDailyTokensExhausted:
		return "daily_tokens_exhausted"
	default:
		return "unknown"
	}
}

// Decision é o resultado de uma avaliação do gate.
//
// Recusas são valores, nunca erros: o chamador traduz Kind/Scope para a resposta.
type Decision struct {
	Allowed bool
	Kind    RejectKind
	// Scope só é preenchido quando Kind == RejectRateLimited.
	Scope Scope
	// Limit é o teto da regra que recusou (requisições por janela, tokens ou caracteres).
	Limit int
	// RetryAfter é o valor a ser retornado em Retry-After quando bloquear.
	// Se 0, não há recomendação.
	RetryAfter time.Duration
	// TokensRemaining é o saldo global de tokens no momento da decisão.
	TokensRemaining int
	// Tokens é a quantidade de tokens reservada (já limitada ao teto por requisição).
	Tokens int
}

// LimitType traduz a decisão para o valor de limit_type.
func (d Decision) LimitType() LimitType {
	switch d.Kind {
	case RejectInputTooLong:
		return LimitInput
	case RejectDailyTokensExhausted:
		return LimitTokens
	case RejectRateLimited:
		if d.Scope == ScopeDaily {
			return LimitDaily
		}
		return LimitMinute
	default:
		return ""
	}
}

// Violações de contrato (bug do chamador), nunca recusas esperadas.
var (
	ErrNegativeTokens = errors.New("token count must not be negative")
	ErrNegativeLength = errors.New("input length must not be negative")
)

// Clock é a fonte de tempo usada nos cálculos de janela.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapta uma função para Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock usa time.Now.
var SystemClock Clock = ClockFunc(time.Now)

// WindowStore guarda os logs de timestamps por chave (janela curta e longa).
//
// Admit avalia a janela diária antes da de minuto e só registra o evento
// nas duas quando ambas permitem.
type WindowStore interface {
	Admit(key Key, now time.Time) (allowed bool, scope Scope)
	Remaining(key Key, now time.Time) (minute, daily int)
	Rules() (minute, daily WindowRule)
}

// TokenBudget é o contador global de tokens com reset preguiçoso.
type TokenBudget interface {
	CheckAllowance(requested int, now time.Time) (ok bool, remaining int)
	RecordUsage(actual int, now time.Time) error
	Snapshot(now time.Time) (remaining int, resetAt time.Time)
	Ceiling() int
}

// Exemptions diz quais chaves não passam pelas janelas deslizantes.
// Chaves isentas continuam consumindo o orçamento global de tokens.
type Exemptions interface {
	IsExempt(key Key) bool
}

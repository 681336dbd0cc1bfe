package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"portfolio-backend/middleware/ratelimit/domain"
)

// Limits são os tetos por requisição aplicados antes de qualquer janela.
type Limits struct {
	MaxInputLength      int
	MaxTokensPerRequest int
}

// GateRequest descreve uma chamada ao chat já decodificada.
type GateRequest struct {
	Key domain.Key
	// RequestedTokens <= 0 significa "não informado": usa o teto por requisição.
	RequestedTokens int
	InputLength     int

	// Method/Path só alimentam estatísticas.
	Method string
	Path   string
}

// Gate combina validação de entrada, orçamento global de tokens e as duas janelas
// deslizantes por cliente, nessa ordem.
type Gate struct {
	Windows domain.WindowStore
	Budget  domain.TokenBudget
	Limits  Limits

	Clock  domain.Clock
	Stats  domain.StatsStore
	Exempt domain.Exemptions
	Logger *slog.Logger
}

// Admission é o direito de chamar o provedor, obtido de um Admit permitido.
type Admission struct {
	gate   *Gate
	tokens int
	done   bool
}

// Tokens devolve a estimativa reservada (já limitada ao teto por requisição).
func (a *Admission) Tokens() int { return a.tokens }

// Complete registra o uso real no orçamento global. actual <= 0 (provedor não
// informou) usa a estimativa. Chamadas repetidas não contam de novo.
//
// Não chame quando o provedor falhou ou o cliente desistiu: nada é registrado nesses casos.
func (a *Admission) Complete(actual int) error {
	if a == nil || a.done {
		return nil
	}
	a.done = true

	if actual <= 0 {
		actual = a.tokens
	}
	return a.gate.Budget.RecordUsage(actual, a.gate.now())
}

func (g *Gate) now() time.Time {
	if g.Clock == nil {
		return time.Now()
	}
	return g.Clock.Now()
}

func (g *Gate) logger() *slog.Logger {
	if g.Logger == nil {
		return slog.Default()
	}
	return g.Logger
}

// ClampTokens aplica o teto por requisição; ausente ou zero vira o próprio teto.
func (g *Gate) ClampTokens(requested int) int {
	max := g.Limits.MaxTokensPerRequest
	if requested <= 0 || (max > 0 && requested > max) {
		return max
	}
	return requested
}

// Admit decide se a requisição pode seguir para o provedor.
//
// Recusas voltam como Decision com Allowed=false e Admission nil. error só
// aparece para violação de contrato (contagens negativas).
func (g *Gate) Admit(ctx context.Context, req GateRequest) (*Admission, domain.Decision, error) {
	if req.InputLength < 0 {
		return nil, domain.Decision{}, fmt.Errorf("admit %q: %w", req.Key, domain.ErrNegativeLength)
	}
	if req.RequestedTokens < 0 {
		return nil, domain.Decision{}, fmt.Errorf("admit %q: %w", req.Key, domain.ErrNegativeTokens)
	}

	now := g.now()
	dec := g.decide(req, now)
	g.report(ctx, req, dec, now)

	if !dec.Allowed {
		return nil, dec, nil
	}
	return &Admission{gate: g, tokens: dec.Tokens}, dec, nil
}

func (g *Gate) decide(req GateRequest, now time.Time) domain.Decision {
	if req.InputLength > g.Limits.MaxInputLength {
		return domain.Decision{
			Kind:  domain.RejectInputTooLong,
			Limit: g.Limits.MaxInputLength,
		}
	}

	tokens := g.ClampTokens(req.RequestedTokens)

	// Pré-checagem com a estimativa; o uso real só é somado em Admission.Complete.
	ok, remaining := g.Budget.CheckAllowance(tokens, now)
	if !ok {
		_, resetAt := g.Budget.Snapshot(now)
		retry := resetAt.Sub(now)
		if retry < 0 {
			retry = 0
		}
		if remaining < 0 {
			remaining = 0
		}
		return domain.Decision{
			Kind:            domain.RejectDailyTokensExhausted,
			Limit:           g.Budget.Ceiling(),
			RetryAfter:      retry,
			TokensRemaining: remaining,
			Tokens:          tokens,
		}
	}

	if g.Exempt == nil || !g.Exempt.IsExempt(req.Key) {
		if allowed, scope := g.Windows.Admit(req.Key, now); !allowed {
			minute, daily := g.Windows.Rules()
			rule := minute
			if scope == domain.ScopeDaily {
				rule = daily
			}
			return domain.Decision{
				Kind:            domain.RejectRateLimited,
				Scope:           scope,
				Limit:           rule.Limit,
				RetryAfter:      rule.Window,
				TokensRemaining: remaining,
				Tokens:          tokens,
			}
		}
	}

	return domain.Decision{
		Allowed:         true,
		TokensRemaining: remaining,
		Tokens:          tokens,
	}
}

func (g *Gate) report(ctx context.Context, req GateRequest, dec domain.Decision, now time.Time) {
	if !dec.Allowed {
		g.logger().Info("chat request rejected",
			"key", string(req.Key),
			"reason", dec.Kind.String(),
			"limit_type", string(dec.LimitType()),
			"retry_after", dec.RetryAfter,
		)
	}

	if g.Stats == nil {
		return
	}
	err := g.Stats.Record(ctx, domain.StatsEvent{
		Key:     req.Key,
		Allowed: dec.Allowed,
		Reason:  dec.LimitType(),
		Method:  req.Method,
		Path:    req.Path,
		At:      now,
	})
	if err != nil {
		g.logger().Debug("gate stats record failed", "error", err)
	}
}

// LimitsView é o retrato dos limites vistos por um cliente.
type LimitsView struct {
	MinuteLimit     int
	MinuteRemaining int
	MinuteWindow    time.Duration
	DailyLimit      int
	DailyRemaining  int
	DailyWindow     time.Duration

	MaxTokensPerRequest int
	MaxInputLength      int

	TokensCeiling   int
	TokensRemaining int
	TokensResetAt   time.Time

	Exempt bool
}

// View monta o retrato dos limites para key sem consumir nada.
func (g *Gate) View(key domain.Key) LimitsView {
	now := g.now()
	minuteRule, dailyRule := g.Windows.Rules()
	minute, daily := g.Windows.Remaining(key, now)
	remaining, resetAt := g.Budget.Snapshot(now)

	return LimitsView{
		MinuteLimit:         minuteRule.Limit,
		MinuteRemaining:     minute,
		MinuteWindow:        minuteRule.Window,
		DailyLimit:          dailyRule.Limit,
		DailyRemaining:      daily,
		DailyWindow:         dailyRule.Window,
		MaxTokensPerRequest: g.Limits.MaxTokensPerRequest,
		MaxInputLength:      g.Limits.MaxInputLength,
		TokensCeiling:       g.Budget.Ceiling(),
		TokensRemaining:     remaining,
		TokensResetAt:       resetAt,
		Exempt:              g.Exempt != nil && g.Exempt.IsExempt(key),
	}
}

package llm

import (
	"context"

	"golang.org/x/time/rate"
)

// Paced limita o ritmo de chamadas de saída ao provedor (token bucket compartilhado),
// independente das janelas por cliente.
type Paced struct {
	Provider Provider
	Limiter  *rate.Limiter
}

// NewPaced devolve p sem embrulho quando rps <= 0.
func NewPaced(p Provider, rps float64, burst int) Provider {
	if rps <= 0 {
		return p
	}
	if burst <= 0 {
		burst = 1
	}
	return &Paced{Provider: p, Limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (p *Paced) Complete(ctx context.Context, req Request) (Completion, error) {
	if err := p.Limiter.Wait(ctx); err != nil {
		return Completion{}, &ProviderError{Provider: "pacer", Err: err}
	}
	return p.Provider.Complete(ctx, req)
}

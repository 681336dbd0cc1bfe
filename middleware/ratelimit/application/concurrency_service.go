package application

import (
	"context"
	"time"

	"portfolio-backend/middleware/ratelimit/domain"
)

// ConcurrencyService limita chamadas simultâneas ao provedor de LLM com timeout de espera.
// Não sabe nada de HTTP.
type ConcurrencyService struct {
	Pool           domain.SlotPool
	AcquireTimeout time.Duration

	// OnReject é chamado quando a vaga não sai dentro do timeout (métrica de "busy").
	OnReject func()
}

// Acquire devolve (release, ok). AcquireTimeout <= 0 espera até o ctx encerrar.
// Com ok=false nenhuma vaga foi ocupada.
func (s ConcurrencyService) Acquire(ctx context.Context) (func(), bool) {
	if s.Pool == nil {
		return func() {}, true
	}

	acqCtx := ctx
	if s.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		acqCtx, cancel = context.WithTimeout(ctx, s.AcquireTimeout)
		defer cancel()
	}

	release, ok := s.Pool.Acquire(acqCtx)
	if !ok {
		// cliente que desistiu não conta como rejeição
		if ctx.Err() == nil && s.OnReject != nil {
			s.OnReject()
		}
		return nil, false
	}
	return release, true
}

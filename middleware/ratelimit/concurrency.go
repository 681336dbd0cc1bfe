package ratelimit

import (
	"net/http"
	"time"

	"portfolio-backend/middleware/ratelimit/application"
	"portfolio-backend/middleware/ratelimit/domain"
	"portfolio-backend/middleware/ratelimit/infra"
)

// ConcurrencyOptions limita quantas chamadas ao provedor ficam em voo ao mesmo tempo.
type ConcurrencyOptions struct {
	Max            int
	RejectStatus   int
	AcquireTimeout time.Duration

	// Pool opcional; nil cria um infra.ChanPool com capacidade Max.
	Pool     domain.SlotPool
	OnReject func()
}

// ConcurrencyMiddleware segura uma vaga do pool durante o handler; sem vaga até o
// timeout, responde RejectStatus (503 por padrão) em JSON.
func ConcurrencyMiddleware(opts ConcurrencyOptions) func(next http.Handler) http.Handler {
	if opts.Max <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusServiceUnavailable
	}

	pool := opts.Pool
	if pool == nil {
		pool = infra.NewChanPool(opts.Max)
	}
	svc := application.ConcurrencyService{
		Pool:           pool,
		AcquireTimeout: opts.AcquireTimeout,
		OnReject:       opts.OnReject,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			release, ok := svc.Acquire(r.Context())
			if !ok {
				writeJSON(w, opts.RejectStatus, errorBody{
					Error:   "server_busy",
					Message: "The assistant is busy right now. Please try again in a moment.",
				})
				return
			}
			defer release()

			next.ServeHTTP(w, r)
		})
	}
}

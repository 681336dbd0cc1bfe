package ratelimit

import (
	"context"
	"net"
	"net/http"
	"strings"

	"portfolio-backend/middleware/ratelimit/domain"
)

// KeyFunc deriva a chave do cliente a partir da requisição.
type KeyFunc func(r *http.Request) domain.Key

// UnknownKey é usada quando nada identifica o cliente.
const UnknownKey domain.Key = "unknown"

// DefaultKeyFunc segue a ordem: header explícito (se configurado), primeiro item
// de X-Forwarded-For, X-Real-IP, host do RemoteAddr e por fim "unknown".
//
// Nada é validado como IP: os headers vêm do cliente e podem ser forjados.
func DefaultKeyFunc(keyHeader string) KeyFunc {
	return func(r *http.Request) domain.Key {
		if keyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
				return domain.Key(v)
			}
		}

		// pega o primeiro IP do X-Forwarded-For (cliente original)
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return domain.Key(ip)
			}
		}

		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return domain.Key(xri)
		}

		// fallback: RemoteAddr
		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return domain.Key(host)
		}
		if r.RemoteAddr != "" {
			return domain.Key(r.RemoteAddr)
		}
		return UnknownKey
	}
}

type keyCtx struct{}

// KeyMiddleware resolve a chave uma vez por requisição e guarda no contexto.
func KeyMiddleware(fn KeyFunc) func(next http.Handler) http.Handler {
	if fn == nil {
		fn = DefaultKeyFunc("")
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), keyCtx{}, fn(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// KeyFromContext devolve a chave gravada por KeyMiddleware.
func KeyFromContext(ctx context.Context) (domain.Key, bool) {
	k, ok := ctx.Value(keyCtx{}).(domain.Key)
	return k, ok
}

// KeyFromRequest usa a chave do contexto ou, sem ela, resolve com DefaultKeyFunc.
func KeyFromRequest(r *http.Request, keyHeader string) domain.Key {
	if k, ok := KeyFromContext(r.Context()); ok {
		return k
	}
	return DefaultKeyFunc(keyHeader)(r)
}

// Package llm fala com o provedor de linguagem usado pelo chat.
//
// Todos os provedores devolvem o texto e o uso real de tokens informado pelo
// provedor (0 quando ele não informa).
package llm

import (
	"context"
	"fmt"
)

// Request é uma única troca system + user.
type Request struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float64
}

// Completion é a resposta do provedor.
type Completion struct {
	Text       string
	TokensUsed int
	// Demo indica resposta enlatada (sem chamada real, nada a registrar no orçamento).
	Demo bool
}

// Provider gera uma resposta para Request.
type Provider interface {
	Complete(ctx context.Context, req Request) (Completion, error)
}

// ProviderError embrulha qualquer falha do provedor. Nunca é exposta ao cliente.
type ProviderError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: HTTP %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// DefaultTemperature é a temperatura usada nas respostas do chat.
const DefaultTemperature = 0.5

package infra

import (
	"fmt"
	"sync"
	"time"

	"portfolio-backend/middleware/ratelimit/domain"
)

// Budget é o orçamento global de tokens compartilhado por todos os clientes.
//
// O reset é preguiçoso: nenhuma goroutine de timer, toda operação chama
// resetIfElapsed antes de olhar o contador.
type Budget struct {
	mu      sync.Mutex
	ceiling int
	window  time.Duration
	used    int
	resetAt time.Time
}

// NewBudget cria o orçamento com o primeiro ciclo terminando em now+window.
func NewBudget(ceiling int, window time.Duration, now time.Time) *Budget {
	return &Budget{
		ceiling: ceiling,
		window:  window,
		resetAt: now.Add(window),
	}
}

func (b *Budget) Ceiling() int { return b.ceiling }

// ResetIfElapsed zera o contador quando now >= resetAt. O novo ciclo começa em now,
// sem acumular ciclos perdidos.
func (b *Budget) ResetIfElapsed(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetIfElapsed(now)
}

func (b *Budget) resetIfElapsed(now time.Time) {
	if now.Before(b.resetAt) {
		return
	}
	b.used = 0
	b.resetAt = now.Add(b.window)
}

// CheckAllowance é a checagem prévia com a quantidade pedida (estimativa, não uso real).
// remaining pode ficar negativo quando chamadas concorrentes passaram do teto.
func (b *Budget) CheckAllowance(requested int, now time.Time) (bool, int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.resetIfElapsed(now)
	remaining := b.ceiling - b.used
	return requested <= remaining, remaining
}

// RecordUsage soma o uso real depois de uma chamada bem-sucedida ao provedor.
func (b *Budget) RecordUsage(actual int, now time.Time) error {
	if actual < 0 {
		return fmt.Errorf("record usage %d: %w", actual, domain.ErrNegativeTokens)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.resetIfElapsed(now)
	b.used += actual
	return nil
}

// Snapshot devolve o saldo (nunca negativo) e o fim do ciclo atual.
func (b *Budget) Snapshot(now time.Time) (int, time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.resetIfElapsed(now)
	remaining := b.ceiling - b.used
	if remaining < 0 {
		remaining = 0
	}
	return remaining, b.resetAt
}

// Used devolve o total consumido no ciclo atual.
func (b *Budget) Used(now time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.resetIfElapsed(now)
	return b.used
}

package domain

import (
	"context"
	"time"
)

// StatsEvent representa um evento de decisão do gate.
//
// Ele é propositalmente "agnóstico de HTTP": Method/Path são strings genéricas.
//
// Observação: cuidado com cardinalidade (ex.: salvar Key/Path sem controle pode
// explodir o número de séries/chaves em uma base como Redis/Prometheus).
type StatsEvent struct {
	Key     Key
	Allowed bool
	// Reason é o limit_type da recusa; vazio quando Allowed.
	Reason LimitType

	Method string
	Path   string

	At time.Time
}

// StatsStore é a estratégia de persistência para estatísticas do gate.
//
// Implementações podem armazenar em Redis, Prometheus, etc.
// O chamador deve tratar erro como best-effort (não derrubar request).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}

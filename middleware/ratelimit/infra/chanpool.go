package infra

import (
	"context"
	"sync"
)

// ChanPool é um semáforo em channel; InUse alimenta o gauge de chamadas em voo.
type ChanPool struct {
	sem chan struct{}
}

// NewChanPool cria o pool com capacidade `max` (mínimo 1).
func NewChanPool(max int) *ChanPool {
	if max < 1 {
		max = 1
	}
	return &ChanPool{sem: make(chan struct{}, max)}
}

// Acquire bloqueia até haver vaga ou ctx encerrar. O release pode ser chamado mais de
// uma vez; só a primeira chamada devolve a vaga.
func (p *ChanPool) Acquire(ctx context.Context) (func(), bool) {
	select {
	case p.sem <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-p.sem }) }, true
	case <-ctx.Done():
		return nil, false
	}
}

func (p *ChanPool) InUse() int { return len(p.sem) }
func (p *ChanPool) Cap() int   { return cap(p.sem) }

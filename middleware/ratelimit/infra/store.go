package infra

import (
	"sync"
	"time"

	"portfolio-backend/middleware/ratelimit/domain"
)

// WindowStore guarda, por chave, dois logs independentes (minuto e dia)
// com cache por chave e limpeza periódica.
type WindowStore struct {
	mu           sync.Mutex
	entries      map[string]*storeEntry
	minute       domain.WindowRule
	daily        domain.WindowRule
	cleanupEvery time.Duration
	clock        domain.Clock
}

type storeEntry struct {
	// mu serializa poda, avaliação e registro da mesma chave.
	mu       sync.Mutex
	minute   *SlidingWindow
	daily    *SlidingWindow
	lastSeen time.Time
}

type StoreOption func(*WindowStore)

func WithCleanupEvery(d time.Duration) StoreOption {
	return func(s *WindowStore) { s.cleanupEvery = d }
}

// WithStoreClock define o relógio usado pelo janitor.
func WithStoreClock(c domain.Clock) StoreOption {
	return func(s *WindowStore) { s.clock = c }
}

func NewWindowStore(minute, daily domain.WindowRule, opts ...StoreOption) *WindowStore {
	minute.Scope = domain.ScopeMinute
	daily.Scope = domain.ScopeDaily
	s := &WindowStore{
		entries:      make(map[string]*storeEntry),
		minute:       minute,
		daily:        daily,
		cleanupEvery: 10 * time.Minute,
		clock:        domain.SystemClock,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *WindowStore) Rules() (domain.WindowRule, domain.WindowRule) { return s.minute, s.daily }
func (s *WindowStore) CleanupEvery() time.Duration                   { return s.cleanupEvery }

// Admit implementa domain.WindowStore.
//
// A janela diária é avaliada primeiro: se ela recusa, a recusa é "daily" mesmo que
// a de minuto também fosse recusar. O evento só entra nos logs quando as duas permitem.
func (s *WindowStore) Admit(key domain.Key, now time.Time) (bool, domain.Scope) {
	ent := s.entry(string(key), now)

	ent.mu.Lock()
	defer ent.mu.Unlock()

	if !ent.daily.Evaluate(now) {
		return false, domain.ScopeDaily
	}
	if !ent.minute.Evaluate(now) {
		return false, domain.ScopeMinute
	}
	ent.daily.Record(now)
	ent.minute.Record(now)
	return true, ""
}

// Remaining implementa domain.WindowStore. Chaves desconhecidas têm a cota cheia
// e não são criadas.
func (s *WindowStore) Remaining(key domain.Key, now time.Time) (int, int) {
	s.mu.Lock()
	ent, ok := s.entries[string(key)]
	s.mu.Unlock()
	if !ok {
		return s.minute.Limit, s.daily.Limit
	}

	ent.mu.Lock()
	defer ent.mu.Unlock()
	return ent.minute.Remaining(now), ent.daily.Remaining(now)
}

func (s *WindowStore) entry(key string, now time.Time) *storeEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ent, ok := s.entries[key]; ok {
		ent.lastSeen = now
		return ent
	}

	ent := &storeEntry{
		minute:   NewSlidingWindow(s.minute.Window, s.minute.Limit),
		daily:    NewSlidingWindow(s.daily.Window, s.daily.Limit),
		lastSeen: now,
	}
	s.entries[key] = ent
	return ent
}

// Len devolve quantas chaves estão em memória.
func (s *WindowStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Cleanup remove chaves inativas há mais que a maior janela e cujos dois logs já
// esvaziaram. Uma chave só some quando nenhum timestamp dela ainda conta, então a
// limpeza não muda decisões futuras.
func (s *WindowStore) Cleanup(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	idle := s.daily.Window
	if s.minute.Window > idle {
		idle = s.minute.Window
	}

	removed := 0
	for k, ent := range s.entries {
		if now.Sub(ent.lastSeen) < idle {
			continue
		}
		ent.mu.Lock()
		empty := ent.daily.Count(now) == 0 && ent.minute.Count(now) == 0
		ent.mu.Unlock()
		if empty {
			delete(s.entries, k)
			removed++
		}
	}
	return removed
}

// StartJanitor inicia uma goroutine que limpa chaves inativas periodicamente.
// Pare cancelando o contexto.
func (s *WindowStore) StartJanitor(ctx DoneContext) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup(s.clock.Now())
			}
		}
	}()
}

// DoneContext é o mínimo necessário para aceitar context.Context sem importar context aqui.
// (Permite reuso em libs sem acoplar.)
type DoneContext interface {
	Done() <-chan struct{}
}

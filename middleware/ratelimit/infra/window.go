package infra

import "time"

// SlidingWindow é o log de timestamps de uma chave para uma única janela.
//
// Não é thread-safe: o WindowStore serializa o acesso pelo lock da entrada.
type SlidingWindow struct {
	timestamps []time.Time
	window     time.Duration
	limit      int
}

func NewSlidingWindow(window time.Duration, limit int) *SlidingWindow {
	return &SlidingWindow{window: window, limit: limit}
}

// Prune remove todo t com now - t >= window. O log é ordenado, então basta
// achar o primeiro timestamp ainda dentro da janela.
func (w *SlidingWindow) Prune(now time.Time) {
	cut := 0
	for cut < len(w.timestamps) && now.Sub(w.timestamps[cut]) >= w.window {
		cut++
	}
	if cut == 0 {
		return
	}
	// copia para não segurar o array antigo indefinidamente
	w.timestamps = append(w.timestamps[:0:0], w.timestamps[cut:]...)
}

// Evaluate poda e responde se ainda cabe mais uma requisição (< limit, não <=).
func (w *SlidingWindow) Evaluate(now time.Time) bool {
	w.Prune(now)
	return len(w.timestamps) < w.limit
}

// Record adiciona now ao log.
func (w *SlidingWindow) Record(now time.Time) {
	w.timestamps = append(w.timestamps, now)
}

// Count poda e devolve quantas requisições aceitas estão na janela.
func (w *SlidingWindow) Count(now time.Time) int {
	w.Prune(now)
	return len(w.timestamps)
}

// Remaining devolve quantas requisições ainda cabem na janela.
func (w *SlidingWindow) Remaining(now time.Time) int {
	n := w.limit - w.Count(now)
	if n < 0 {
		return 0
	}
	return n
}

func (w *SlidingWindow) Len() int { return len(w.timestamps) }

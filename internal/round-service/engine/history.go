package engine

import (
	"sync"
	"time"
)

const (
	// HistoryCapacity é o número máximo de rodadas mantidas em memória
	HistoryCapacity = 10
	// BroadcastHistory é quantas entradas recentes acompanham cada broadcast
	BroadcastHistory = 5
)

// HistoryEntry é o resumo imutável de uma rodada liquidada
type HistoryEntry struct {
	RoundID    string
	Outcome    Choice
	Totals     Totals
	ResolvedAt time.Time
}

// History é um ring buffer de capacidade fixa; ao exceder a capacidade descarta a mais antiga
type History struct {
	mu    sync.RWMutex
	buf   []HistoryEntry
	start int
	size  int
}

// NewHistory cria um buffer com a capacidade informada
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = HistoryCapacity
	}
	return &History{buf: make([]HistoryEntry, capacity)}
}

// Append adiciona a entrada, sobrescrevendo a mais antiga quando cheio
func (h *History) Append(e HistoryEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.size < len(h.buf) {
		h.buf[(h.start+h.size)%len(h.buf)] = e
		h.size++
		return
	}
	h.buf[h.start] = e
	h.start = (h.start + 1) % len(h.buf)
}

// Len retorna quantas entradas estão armazenadas
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.size
}

// Recent retorna as últimas n entradas em ordem cronológica (mais recente por último)
func (h *History) Recent(n int) []HistoryEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if n > h.size {
		n = h.size
	}
	if n <= 0 {
		return []HistoryEntry{}
	}
	out := make([]HistoryEntry, n)
	first := h.size - n
	for i := 0; i < n; i++ {
		out[i] = h.buf[(h.start+first+i)%len(h.buf)]
	}
	return out
}

package engine

import (
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Choice é o palpite do participante: "up" ou "down"
type Choice string

const (
	ChoiceUp   Choice = "up"
	ChoiceDown Choice = "down"
)

// ParseChoice aceita somente os valores exatos "up" e "down"
func ParseChoice(s string) (Choice, bool) {
	switch Choice(s) {
	case ChoiceUp, ChoiceDown:
		return Choice(s), true
	}
	return "", false
}

// Status do ciclo de vida de uma rodada
type Status string

const (
	StatusOpen      Status = "OPEN"
	StatusResolving Status = "RESOLVING"
	StatusSettled   Status = "SETTLED"
)

// Totals acumula o total apostado em cada lado
type Totals struct {
	Up   decimal.Decimal `json:"up"`
	Down decimal.Decimal `json:"down"`
}

// Sum retorna o total apostado na rodada
func (t Totals) Sum() decimal.Decimal { return t.Up.Add(t.Down) }

func (t *Totals) add(c Choice, amount decimal.Decimal) {
	if c == ChoiceUp {
		t.Up = t.Up.Add(amount)
		return
	}
	t.Down = t.Down.Add(amount)
}

// Participant é uma aposta aceita na rodada em memória
type Participant struct {
	UserID string
	BetID  string
	Choice Choice
	Amount decimal.Decimal
}

// Round é a rodada aberta em memória.
//
// gate serializa a transição OPEN→RESOLVING contra apostas em andamento:
// cada aposta segura gate.RLock do check de status até registrar o participante;
// a resolução segura gate.Lock para fechar a rodada.
type Round struct {
	ID        string
	CreatedAt time.Time

	gate sync.RWMutex
	mu   sync.Mutex

	status       Status
	totals       Totals
	participants []Participant
	outcome      Choice
	resolvedAt   time.Time
}

func newRound(id string, now time.Time) *Round {
	return &Round{
		ID:        id,
		CreatedAt: now,
		status:    StatusOpen,
		totals:    Totals{Up: decimal.Zero, Down: decimal.Zero},
	}
}

// acquire entra no gate de apostas; retorna false se a rodada já não está OPEN.
// Quem recebe true deve chamar release.
func (r *Round) acquire() bool {
	r.gate.RLock()
	r.mu.Lock()
	open := r.status == StatusOpen
	r.mu.Unlock()
	if !open {
		r.gate.RUnlock()
	}
	return open
}

func (r *Round) release() { r.gate.RUnlock() }

// record adiciona o participante e incrementa o total do lado escolhido.
// Só pode ser chamado entre acquire e release.
func (r *Round) record(p Participant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.participants = append(r.participants, p)
	r.totals.add(p.Choice, p.Amount)
}

// close faz a transição OPEN→RESOLVING uma única vez; chamadas seguintes retornam false
func (r *Round) close(outcome Choice, now time.Time) bool {
	r.gate.Lock()
	defer r.gate.Unlock()
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != StatusOpen {
		return false
	}
	r.status = StatusResolving
	r.outcome = outcome
	r.resolvedAt = now
	return true
}

func (r *Round) markSettled() {
	r.mu.Lock()
	r.status = StatusSettled
	r.mu.Unlock()
}

// RoundView é um snapshot somente leitura da rodada
type RoundView struct {
	ID           string
	CreatedAt    time.Time
	Status       Status
	Totals       Totals
	Participants []Participant
	Outcome      Choice
	ResolvedAt   time.Time
}

// View copia o estado atual da rodada
func (r *Round) View() RoundView {
	r.mu.Lock()
	defer r.mu.Unlock()
	ps := make([]Participant, len(r.participants))
	copy(ps, r.participants)
	return RoundView{
		ID:           r.ID,
		CreatedAt:    r.CreatedAt,
		Status:       r.status,
		Totals:       r.totals,
		Participants: ps,
		Outcome:      r.outcome,
		ResolvedAt:   r.resolvedAt,
	}
}

// roundIDs gera ids derivados do horário de criação, estritamente crescentes
type roundIDs struct {
	mu   sync.Mutex
	last int64
}

func (g *roundIDs) next(now time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := now.UnixMilli()
	if id <= g.last {
		id = g.last + 1
	}
	g.last = id
	return strconv.FormatInt(id, 10)
}

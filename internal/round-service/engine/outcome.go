package engine

import (
	"math/rand"
	"sync"
	"time"
)

// OutcomeSource sorteia o resultado de uma rodada
type OutcomeSource interface {
	Draw() Choice
}

// RandomOutcome sorteia up/down com probabilidade 50/50
type RandomOutcome struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewRandomOutcome() *RandomOutcome {
	return &RandomOutcome{rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (o *RandomOutcome) Draw() Choice {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.rnd.Intn(2) == 0 {
		return ChoiceUp
	}
	return ChoiceDown
}

// FixedOutcome sempre retorna o mesmo lado
type FixedOutcome Choice

func (f FixedOutcome) Draw() Choice { return Choice(f) }

package runner

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/climate-controller/internal/thermostat"
)

// ErrInvalidRequest wraps control requests rejected by validation.
var ErrInvalidRequest = errors.New("invalid climate request")

// Subscribe returns a channel receiving every state notification and a
// function that cancels the subscription. Slow subscribers miss updates
// rather than stalling the controller.
func (r *Runner) Subscribe() (<-chan thermostat.State, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID
	r.nextID++
	ch := make(chan thermostat.State, subscriberBuffer)
	r.subs[id] = ch

	cancel := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if sub, ok := r.subs[id]; ok {
			delete(r.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

func (r *Runner) broadcast(state thermostat.State) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, ch := range r.subs {
		select {
		case ch <- state:
		default:
			log.Debug().Int("subscriber", id).Msg("Dropping climate state for slow subscriber")
		}
	}
}

func (r *Runner) closeSubscribers() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, ch := range r.subs {
		delete(r.subs, id)
		close(ch)
	}
}

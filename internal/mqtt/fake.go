package mqtt

import (
	"sync"
	"time"

	"github.com/thatsimonsguy/climate-controller/internal/thermostat"
)

// FakePublisher records published states for test assertions.
type FakePublisher struct {
	mu sync.Mutex

	// States contains every state that was published.
	States []thermostat.State

	// Payloads contains the JSON payloads that were published.
	Payloads [][]byte

	// PublishError, if set, will be returned by PublishState.
	PublishError error

	// Closed tracks if Close was called.
	Closed bool
}

func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

func (f *FakePublisher) PublishState(state thermostat.State) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}

	payload, err := FormatState(state, time.Now())
	if err != nil {
		return err
	}
	f.States = append(f.States, state)
	f.Payloads = append(f.Payloads, payload)
	return nil
}

func (f *FakePublisher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// Published returns a copy of the recorded states.
func (f *FakePublisher) Published() []thermostat.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]thermostat.State(nil), f.States...)
}

// Package relay drives the output lines behind each climate action.
// A Relay implements thermostat.Trigger: Fire energises every line, Stop
// releases them.
package relay

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/climate-controller/internal/model"
	"github.com/thatsimonsguy/climate-controller/system/shutdown"
)

// Driver sets the logical state of a single output line.
type Driver interface {
	Set(pin model.GPIOPin, active bool) error
	Close() error
}

var (
	safeModeMu sync.RWMutex
	safeMode   bool
)

// SetSafeMode disables every line write system-wide.
func SetSafeMode(enabled bool) {
	safeModeMu.Lock()
	defer safeModeMu.Unlock()
	safeMode = enabled
}

func inSafeMode() bool {
	safeModeMu.RLock()
	defer safeModeMu.RUnlock()
	return safeMode
}

type Relay struct {
	name   string
	pins   []model.GPIOPin
	driver Driver
	active bool
}

func New(name string, pins []model.GPIOPin, driver Driver) *Relay {
	return &Relay{name: name, pins: pins, driver: driver}
}

func (r *Relay) Name() string {
	return r.name
}

func (r *Relay) Pins() []model.GPIOPin {
	return r.pins
}

func (r *Relay) Active() bool {
	return r.active
}

func (r *Relay) Fire() {
	if err := r.set(true); err != nil {
		shutdown.ShutdownWithError(err, fmt.Sprintf("Failed to energise %s relay", r.name))
	}
}

func (r *Relay) Stop() {
	if err := r.set(false); err != nil {
		shutdown.ShutdownWithError(err, fmt.Sprintf("Failed to release %s relay", r.name))
	}
}

// Release drives every line inactive, logging instead of escalating failures.
func (r *Relay) Release() {
	if err := r.set(false); err != nil {
		log.Error().Err(err).Str("relay", r.name).Msg("Failed to release relay")
	}
}

func (r *Relay) set(active bool) error {
	if inSafeMode() {
		log.Debug().Str("relay", r.name).Bool("active", active).Msg("Safe mode, relay write skipped")
		r.active = active
		return nil
	}

	for _, pin := range r.pins {
		if err := r.driver.Set(pin, active); err != nil {
			return fmt.Errorf("set pin %d active=%t: %w", pin.Number, active, err)
		}
	}
	r.active = active

	log.Info().Str("relay", r.name).Bool("active", active).Int("pins", len(r.pins)).Msg("Relay switched")
	return nil
}

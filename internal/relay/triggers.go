package relay

import (
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/climate-controller/internal/config"
	"github.com/thatsimonsguy/climate-controller/internal/thermostat"
)

// Set holds the relays for each action. Unconfigured actions are nil.
type Set struct {
	Idle *Relay
	Cool *Relay
	Heat *Relay

	driver Driver
}

// Build creates one relay per configured action on driver.
func Build(cfg *config.Config, driver Driver) *Set {
	s := &Set{driver: driver}
	for _, named := range cfg.NamedRelays() {
		r := New(named.Name, named.Relay.Pins, driver)
		switch named.Name {
		case "idle":
			s.Idle = r
		case "cool":
			s.Cool = r
		case "heat":
			s.Heat = r
		}
	}
	return s
}

// Triggers adapts the set for the controller, leaving missing relays as no-ops.
func (s *Set) Triggers() thermostat.Triggers {
	var t thermostat.Triggers
	if s.Idle != nil {
		t.Idle = s.Idle
	}
	if s.Cool != nil {
		t.Cool = s.Cool
	}
	if s.Heat != nil {
		t.Heat = s.Heat
	}
	return t
}

func (s *Set) All() []*Relay {
	var out []*Relay
	for _, r := range []*Relay{s.Idle, s.Cool, s.Heat} {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

// ReleaseAll drives every relay inactive. Heat and cool go first.
func (s *Set) ReleaseAll() {
	all := s.All()
	for i := len(all) - 1; i >= 0; i-- {
		all[i].Release()
	}
	log.Info().Int("relays", len(all)).Msg("All relays released")
}

func (s *Set) Close() error {
	return s.driver.Close()
}

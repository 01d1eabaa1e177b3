package mqtt

import (
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/climate-controller/internal/thermostat"
)

// Forward publishes every state from states until the channel closes.
// Publish failures are logged and never stop the loop.
func Forward(states <-chan thermostat.State, pub Publisher) {
	for st := range states {
		if err := pub.PublishState(st); err != nil {
			log.Warn().Err(err).Msg("Failed to publish climate state")
		}
	}
}

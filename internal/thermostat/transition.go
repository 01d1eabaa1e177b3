package thermostat

import (
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/climate-controller/internal/model"
)

type slot int

const (
	slotNone slot = iota
	slotIdle
	slotCool
	slotHeat
	slotCount
)

func slotFor(action model.Action) slot {
	switch action {
	case model.ActionCooling:
		return slotCool
	case model.ActionHeating:
		return slotHeat
	default:
		return slotIdle
	}
}

type noopTrigger struct{}

func (noopTrigger) Fire() {}
func (noopTrigger) Stop() {}

func orNoop(t Trigger) Trigger {
	if t == nil {
		return noopTrigger{}
	}
	return t
}

// switchTo moves the controller to action and reports whether it changed.
// OFF and IDLE differ only visually, so moving between them never touches a trigger.
func (c *Controller) switchTo(action model.Action) bool {
	if action == c.action {
		return false
	}

	prev := c.action
	if isOffIdle(prev, action) {
		c.action = action
		log.Info().Str("from", string(prev)).Str("to", string(action)).Msg("Climate action changed")
		c.publish()
		return true
	}

	// old trigger is always stopped before the new one fires
	if c.active != slotNone {
		c.triggers[c.active].Stop()
		c.active = slotNone
	}
	next := slotFor(action)
	c.triggers[next].Fire()
	c.active = next
	c.action = action

	log.Info().Str("from", string(prev)).Str("to", string(action)).Msg("Climate action changed")
	c.publish()
	return true
}

func isOffIdle(a, b model.Action) bool {
	return (a == model.ActionOff && b == model.ActionIdle) ||
		(a == model.ActionIdle && b == model.ActionOff)
}

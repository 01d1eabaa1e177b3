package thermostat

import (
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/climate-controller/internal/model"
)

type Reason string

const (
	ReasonMode        Reason = "mode"
	ReasonMissingData Reason = "missing_data"
	ReasonTooCold     Reason = "too_cold"
	ReasonTooHot      Reason = "too_hot"
	ReasonInRange     Reason = "in_range"
	ReasonDeadband    Reason = "deadband"
)

type Decision struct {
	Action  model.Action
	Reason  Reason
	Changed bool
}

// Evaluate derives the target action from the current state and applies it.
func (c *Controller) Evaluate() Decision {
	action, reason := c.derive()
	changed := c.switchTo(action)

	log.Debug().
		Str("mode", string(c.mode)).
		Str("action", string(action)).
		Str("reason", string(reason)).
		Bool("changed", changed).
		Msg("Climate evaluation")

	return Decision{Action: action, Reason: reason, Changed: changed}
}

// bounds resolves the effective low/high set points for AUTO mode.
func (c *Controller) bounds() (low, high *float64) {
	switch c.kind {
	case TwoPoint:
		return c.targetLow, c.targetHigh
	case SinglePointCool:
		return nil, c.target
	case SinglePointHeat:
		return c.target, nil
	default:
		return nil, nil
	}
}

func (c *Controller) derive() (model.Action, Reason) {
	if c.mode != model.ModeAuto {
		return actionForMode(c.mode), ReasonMode
	}

	low, high := c.bounds()
	h := c.hysteresis

	// OFF rather than IDLE: nothing could be evaluated
	if c.current == nil ||
		(c.supportsHeat && low == nil) ||
		(c.supportsCool && high == nil) ||
		(h <= 0 && (low == nil || high == nil)) {
		return model.ActionOff, ReasonMissingData
	}

	t := *c.current
	lowTooCold, lowTooHot := false, true
	highTooCold, highTooHot := true, false

	if h > 0 || (c.supportsHeat && c.supportsCool) {
		if c.supportsHeat {
			lowTooCold = t < *low-h
			lowTooHot = t > *low+h
		}
		if c.supportsCool {
			highTooCold = t < *high-h
			highTooHot = t > *high+h
		}
	} else {
		// legacy: low and high are the band edges themselves
		if c.supportsHeat {
			lowTooCold = t < *low
			lowTooHot = t > *high
		}
		if c.supportsCool {
			highTooCold = t < *low
			highTooHot = t > *high
		}
	}

	switch {
	case lowTooCold:
		return model.ActionHeating, ReasonTooCold
	case highTooHot:
		return model.ActionCooling, ReasonTooHot
	case lowTooHot && highTooCold:
		return model.ActionIdle, ReasonInRange
	default:
		return c.action, ReasonDeadband
	}
}

func actionForMode(mode model.Mode) model.Action {
	switch mode {
	case model.ModeHeat:
		return model.ActionHeating
	case model.ModeCool:
		return model.ActionCooling
	default:
		return model.ActionOff
	}
}

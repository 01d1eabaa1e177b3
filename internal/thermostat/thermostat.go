// Package thermostat decides a discrete HVAC action from the current
// temperature, the user's mode and set points, and a hysteresis band.
//
// A Controller is not safe for concurrent use. Every entry point runs to
// completion without blocking; callers serialise events (see internal/runner).
package thermostat

import (
	"github.com/thatsimonsguy/climate-controller/internal/model"
)

// Trigger is an externally owned action handle, e.g. a set of relays.
type Trigger interface {
	Fire()
	Stop()
}

// Triggers holds one handle per action. Idle also serves the OFF action.
// A nil handle behaves as a no-op.
type Triggers struct {
	Idle Trigger
	Cool Trigger
	Heat Trigger
}

// Restorer supplies previously persisted user state at startup.
type Restorer interface {
	Restore() (model.ClimateState, bool, error)
}

type Options struct {
	SupportsHeat bool
	SupportsCool bool
	Hysteresis   float64
	Normal       model.TargetConfig
	// Away is nil when the device has no away profile.
	Away     *model.TargetConfig
	Triggers Triggers
}

// TargetKind says which set-point fields are meaningful. It is fixed at
// construction from the capabilities and the hysteresis.
type TargetKind int

const (
	TwoPoint TargetKind = iota
	SinglePointCool
	SinglePointHeat
	NoTarget
)

func (k TargetKind) String() string {
	switch k {
	case TwoPoint:
		return "two_point"
	case SinglePointCool:
		return "single_point_cool"
	case SinglePointHeat:
		return "single_point_heat"
	default:
		return "none"
	}
}

func targetKind(supportsHeat, supportsCool bool, hysteresis float64) TargetKind {
	// hysteresis of 0 reuses low/high as the band edges, so both are always needed
	if hysteresis <= 0 || (supportsHeat && supportsCool) {
		return TwoPoint
	}
	if supportsCool {
		return SinglePointCool
	}
	if supportsHeat {
		return SinglePointHeat
	}
	return NoTarget
}

// State is the externally visible controller state.
type State struct {
	Mode               model.Mode   `json:"mode"`
	Action             model.Action `json:"action"`
	CurrentTemperature *float64     `json:"current_temperature"`
	Target             *float64     `json:"target_temperature,omitempty"`
	TargetLow          *float64     `json:"target_temperature_low,omitempty"`
	TargetHigh         *float64     `json:"target_temperature_high,omitempty"`
	Away               bool         `json:"away"`
}

// Persisted returns the part of the state written to the restoration store.
func (s State) Persisted() model.ClimateState {
	return model.ClimateState{
		Mode:       s.Mode,
		Target:     s.Target,
		TargetLow:  s.TargetLow,
		TargetHigh: s.TargetHigh,
		Away:       s.Away,
	}
}

type Traits struct {
	SupportsCurrentTemperature bool `json:"supports_current_temperature"`
	SupportsAutoMode           bool `json:"supports_auto_mode"`
	SupportsCoolMode           bool `json:"supports_cool_mode"`
	SupportsHeatMode           bool `json:"supports_heat_mode"`
	SupportsTwoPointTarget     bool `json:"supports_two_point_target_temperature"`
	SupportsAway               bool `json:"supports_away"`
	SupportsAction             bool `json:"supports_action"`
}

func clone(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

package thermostat

import (
	"fmt"
	"math"

	"github.com/thatsimonsguy/climate-controller/internal/model"
)

// Call is a batched control request. Nil fields are left unchanged.
// Target applies to single-point devices, TargetLow/TargetHigh to two-point ones.
type Call struct {
	Mode       *model.Mode `json:"mode,omitempty"`
	Target     *float64    `json:"target_temperature,omitempty"`
	TargetLow  *float64    `json:"target_temperature_low,omitempty"`
	TargetHigh *float64    `json:"target_temperature_high,omitempty"`
	Away       *bool       `json:"away,omitempty"`
}

func (c Call) Empty() bool {
	return c.Mode == nil && c.Target == nil && c.TargetLow == nil && c.TargetHigh == nil && c.Away == nil
}

// Validate checks the call against the device's traits and the accepted
// set-point range. The controller itself accepts anything.
func (c Call) Validate(traits Traits, minTemp, maxTemp float64) error {
	if c.Mode != nil {
		if !c.Mode.Valid() {
			return fmt.Errorf("invalid mode %q. Valid modes: off, heat, cool, auto", *c.Mode)
		}
		if *c.Mode == model.ModeHeat && !traits.SupportsHeatMode {
			return fmt.Errorf("heat mode is not supported")
		}
		if *c.Mode == model.ModeCool && !traits.SupportsCoolMode {
			return fmt.Errorf("cool mode is not supported")
		}
	}

	if traits.SupportsTwoPointTarget && c.Target != nil {
		return fmt.Errorf("target_temperature is not allowed, use target_temperature_low and target_temperature_high")
	}
	if !traits.SupportsTwoPointTarget && (c.TargetLow != nil || c.TargetHigh != nil) {
		return fmt.Errorf("target_temperature_low and target_temperature_high are not allowed, use target_temperature")
	}

	setpoints := []struct {
		name  string
		value *float64
	}{
		{"target_temperature", c.Target},
		{"target_temperature_low", c.TargetLow},
		{"target_temperature_high", c.TargetHigh},
	}
	for _, sp := range setpoints {
		if sp.value != nil && (math.IsNaN(*sp.value) || math.IsInf(*sp.value, 0)) {
			return fmt.Errorf("invalid %s. Must be a finite number", sp.name)
		}
		if sp.value != nil && (*sp.value < minTemp || *sp.value > maxTemp) {
			return fmt.Errorf("invalid %s. Must be between %.1f°C and %.1f°C", sp.name, minTemp, maxTemp)
		}
	}

	if c.Away != nil && !traits.SupportsAway {
		return fmt.Errorf("away mode is not supported")
	}
	return nil
}

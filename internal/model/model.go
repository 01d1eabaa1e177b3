package model

type Mode string

const (
	ModeOff  Mode = "off"
	ModeHeat Mode = "heat"
	ModeCool Mode = "cool"
	ModeAuto Mode = "auto"
)

func (m Mode) Valid() bool {
	switch m {
	case ModeOff, ModeHeat, ModeCool, ModeAuto:
		return true
	default:
		return false
	}
}

type Action string

const (
	ActionOff     Action = "off"
	ActionIdle    Action = "idle"
	ActionCooling Action = "cooling"
	ActionHeating Action = "heating"
)

// TargetConfig is a set-point profile. Single-point configs carry the value
// in DefaultLow (heat) or DefaultHigh (cool).
type TargetConfig struct {
	DefaultLow  *float64 `json:"default_target_temperature_low,omitempty"`
	DefaultHigh *float64 `json:"default_target_temperature_high,omitempty"`
}

// ClimateState is the persisted part of the controller: user intent only.
type ClimateState struct {
	Mode       Mode     `json:"mode"`
	Target     *float64 `json:"target_temperature,omitempty"`
	TargetLow  *float64 `json:"target_temperature_low,omitempty"`
	TargetHigh *float64 `json:"target_temperature_high,omitempty"`
	Away       bool     `json:"away"`
}

type GPIOPin struct {
	Number     int  `json:"pin"`
	ActiveHigh bool `json:"active_high"`
}

type Sensor struct {
	ID  string `json:"id"`
	Bus string `json:"bus"`
}

func Float(v float64) *float64 {
	return &v
}

// Package mqtt publishes climate state and accepts control commands over MQTT.
package mqtt

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/thatsimonsguy/climate-controller/internal/model"
	"github.com/thatsimonsguy/climate-controller/internal/thermostat"
)

// Publisher pushes state updates to the broker.
type Publisher interface {
	PublishState(state thermostat.State) error
	Close() error
}

// CommandHandler applies a control request received from the broker.
type CommandHandler func(call thermostat.Call)

// Topics are derived from a prefix such as "climate/living_room".
type Topics struct {
	prefix string
}

func NewTopics(prefix string) Topics {
	return Topics{prefix: strings.TrimSuffix(prefix, "/")}
}

func (t Topics) State() string        { return t.prefix + "/state" }
func (t Topics) Availability() string { return t.prefix + "/availability" }
func (t Topics) Traits() string       { return t.prefix + "/traits" }

// Field is the per-attribute state topic, e.g. <prefix>/mode.
func (t Topics) Field(name string) string { return t.prefix + "/" + name }

// Command is the topic a field is set through, e.g. <prefix>/mode/set.
func (t Topics) Command(name string) string { return t.prefix + "/" + name + "/set" }

const (
	FieldCurrentTemperature = "current_temperature"
	FieldMode               = "mode"
	FieldAction             = "action"
	FieldTarget             = "target_temperature"
	FieldTargetLow          = "target_temperature_low"
	FieldTargetHigh         = "target_temperature_high"
	FieldAway               = "away"
)

// CommandFields lists the settable fields.
var CommandFields = []string{FieldMode, FieldTarget, FieldTargetLow, FieldTargetHigh, FieldAway}

// StatePayload is the retained JSON document on the state topic.
type StatePayload struct {
	Timestamp string `json:"timestamp"`
	thermostat.State
}

func FormatState(state thermostat.State, now time.Time) ([]byte, error) {
	return json.Marshal(StatePayload{
		Timestamp: now.UTC().Format(time.RFC3339),
		State:     state,
	})
}

// FieldValues renders the per-field topic payloads. Unset set points are
// published as an empty string so retained values get cleared.
func FieldValues(state thermostat.State) map[string]string {
	return map[string]string{
		FieldCurrentTemperature: formatFloat(state.CurrentTemperature),
		FieldMode:               string(state.Mode),
		FieldAction:             string(state.Action),
		FieldTarget:             formatFloat(state.Target),
		FieldTargetLow:          formatFloat(state.TargetLow),
		FieldTargetHigh:         formatFloat(state.TargetHigh),
		FieldAway:               formatBool(state.Away),
	}
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 1, 64)
}

func formatBool(v bool) string {
	if v {
		return "ON"
	}
	return "OFF"
}

// ParseCommand turns a payload received on a field's command topic into a call.
func ParseCommand(field string, payload []byte) (thermostat.Call, error) {
	value := strings.TrimSpace(string(payload))
	var call thermostat.Call

	switch field {
	case FieldMode:
		mode := model.Mode(strings.ToLower(value))
		call.Mode = &mode
	case FieldTarget, FieldTargetLow, FieldTargetHigh:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return call, fmt.Errorf("invalid %s %q: %w", field, value, err)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return call, fmt.Errorf("invalid %s %q: not a finite number", field, value)
		}
		switch field {
		case FieldTarget:
			call.Target = &f
		case FieldTargetLow:
			call.TargetLow = &f
		default:
			call.TargetHigh = &f
		}
	case FieldAway:
		away, err := parseSwitch(value)
		if err != nil {
			return call, err
		}
		call.Away = &away
	default:
		return call, fmt.Errorf("unknown command field %q", field)
	}
	return call, nil
}

func parseSwitch(value string) (bool, error) {
	switch strings.ToLower(value) {
	case "on", "true", "1":
		return true, nil
	case "off", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid away value %q, expected ON or OFF", value)
	}
}

// FieldFromCommandTopic extracts the field name from <prefix>/<field>/set.
func (t Topics) FieldFromCommandTopic(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, t.prefix+"/")
	if !ok {
		return "", false
	}
	field, ok := strings.CutSuffix(rest, "/set")
	if !ok || field == "" || strings.Contains(field, "/") {
		return "", false
	}
	return field, true
}

package datadog

import (
	"github.com/DataDog/datadog-go/statsd"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/climate-controller/internal/env"
	"github.com/thatsimonsguy/climate-controller/internal/model"
	"github.com/thatsimonsguy/climate-controller/internal/thermostat"
)

// Client is the subset of statsd.ClientInterface the controller emits through.
type Client interface {
	Gauge(name string, value float64, tags []string, rate float64) error
	Count(name string, value int64, tags []string, rate float64) error
}

var dogstatsd Client

func InitMetrics() {
	if !env.Cfg.EnableDatadog {
		log.Info().Msg("Datadog metrics disabled")
		return
	}

	client, err := statsd.New(env.Cfg.DDAgentAddr)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create DogStatsD client")
		return
	}

	client.Namespace = env.Cfg.DDNamespace
	client.Tags = env.Cfg.DDTags
	dogstatsd = client

	log.Info().
		Str("addr", env.Cfg.DDAgentAddr).
		Str("namespace", env.Cfg.DDNamespace).
		Strs("tags", env.Cfg.DDTags).
		Msg("Datadog metrics initialized")
}

// SetClient swaps the client, nil disables emission.
func SetClient(c Client) {
	dogstatsd = c
}

func Gauge(name string, value float64, tags ...string) {
	if dogstatsd != nil {
		if err := dogstatsd.Gauge(name, value, tags, 1); err != nil {
			log.Warn().Err(err).Str("metric", name).Msg("Failed to emit gauge metric")
		}
	}
}

func Count(name string, value int64, tags ...string) {
	if dogstatsd != nil {
		if err := dogstatsd.Count(name, value, tags, 1); err != nil {
			log.Warn().Err(err).Str("metric", name).Msg("Failed to emit count metric")
		}
	}
}

// ActionValue maps an action to a gauge value: off 0, idle 1, cooling 2, heating 3.
func ActionValue(a model.Action) float64 {
	switch a {
	case model.ActionIdle:
		return 1
	case model.ActionCooling:
		return 2
	case model.ActionHeating:
		return 3
	default:
		return 0
	}
}

// Recorder turns state notifications into metrics.
type Recorder struct {
	last model.Action
	seen bool
}

func (r *Recorder) Record(st thermostat.State) {
	if st.CurrentTemperature != nil {
		Gauge("climate.temperature", *st.CurrentTemperature)
	}
	low, high := st.TargetLow, st.TargetHigh
	if st.Target != nil {
		low, high = st.Target, st.Target
	}
	if low != nil {
		Gauge("climate.target_low", *low)
	}
	if high != nil {
		Gauge("climate.target_high", *high)
	}
	Gauge("climate.action", ActionValue(st.Action), "mode:"+string(st.Mode))

	if r.seen && st.Action != r.last {
		Count("climate.transition", 1, "from:"+string(r.last), "to:"+string(st.Action))
	}
	r.last = st.Action
	r.seen = true
}

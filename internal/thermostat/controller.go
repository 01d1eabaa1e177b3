package thermostat

import (
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/climate-controller/internal/model"
)

type Controller struct {
	supportsHeat bool
	supportsCool bool
	supportsAway bool
	hysteresis   float64
	kind         TargetKind

	normal model.TargetConfig
	away   model.TargetConfig

	mode       model.Mode
	current    *float64
	target     *float64
	targetLow  *float64
	targetHigh *float64
	awayActive bool

	action   model.Action
	triggers [slotCount]Trigger
	active   slot

	listeners []func(State)
}

func New(opts Options) *Controller {
	hysteresis := opts.Hysteresis
	if hysteresis < 0 {
		hysteresis = 0
	}

	c := &Controller{
		supportsHeat: opts.SupportsHeat,
		supportsCool: opts.SupportsCool,
		supportsAway: opts.Away != nil,
		hysteresis:   hysteresis,
		kind:         targetKind(opts.SupportsHeat, opts.SupportsCool, hysteresis),
		normal:       opts.Normal,
		mode:         model.ModeOff,
		action:       model.ActionOff,
		active:       slotNone,
	}
	if opts.Away != nil {
		c.away = *opts.Away
	}

	c.triggers[slotNone] = noopTrigger{}
	c.triggers[slotIdle] = orNoop(opts.Triggers.Idle)
	c.triggers[slotCool] = orNoop(opts.Triggers.Cool)
	c.triggers[slotHeat] = orNoop(opts.Triggers.Heat)

	return c
}

// AddListener registers fn to receive every state notification.
func (c *Controller) AddListener(fn func(State)) {
	c.listeners = append(c.listeners, fn)
}

// Setup seeds the current temperature and restores user state. Without a
// saved state the controller starts in AUTO with the normal profile.
func (c *Controller) Setup(reading *float64, restorer Restorer) {
	c.current = clone(reading)

	if restorer != nil {
		saved, ok, err := restorer.Restore()
		if err != nil {
			log.Warn().Err(err).Msg("Failed to restore climate state, starting with defaults")
		}
		if err == nil && ok {
			log.Info().
				Str("mode", string(saved.Mode)).
				Bool("away", saved.Away).
				Msg("Restored climate state")
			c.Control(c.callFromState(saved))
			return
		}
	}

	c.mode = model.ModeAuto
	c.SetAway(false)
	c.Evaluate()
	c.publish()
}

// UpdateTemperature handles a new sensor reading. nil means the reading is unknown.
func (c *Controller) UpdateTemperature(reading *float64) {
	c.current = clone(reading)
	c.Evaluate()
	c.publish()
}

// Control applies a batched user request and always re-evaluates.
func (c *Controller) Control(call Call) {
	if call.Mode != nil {
		c.mode = *call.Mode
	}
	if c.kind == TwoPoint {
		if call.TargetLow != nil {
			c.targetLow = clone(call.TargetLow)
		}
		if call.TargetHigh != nil {
			c.targetHigh = clone(call.TargetHigh)
		}
	} else if call.Target != nil {
		c.target = clone(call.Target)
	}
	if call.Away != nil {
		if c.supportsAway {
			c.SetAway(*call.Away)
		} else {
			log.Warn().Bool("away", *call.Away).Msg("Away requested but no away profile is configured")
		}
	}

	c.Evaluate()
	c.publish()
}

func (c *Controller) HasTwoPointTarget() bool {
	return c.kind == TwoPoint
}

func (c *Controller) Kind() TargetKind {
	return c.kind
}

func (c *Controller) Action() model.Action {
	return c.action
}

func (c *Controller) Mode() model.Mode {
	return c.mode
}

func (c *Controller) State() State {
	return State{
		Mode:               c.mode,
		Action:             c.action,
		CurrentTemperature: clone(c.current),
		Target:             clone(c.target),
		TargetLow:          clone(c.targetLow),
		TargetHigh:         clone(c.targetHigh),
		Away:               c.awayActive,
	}
}

func (c *Controller) Traits() Traits {
	return Traits{
		SupportsCurrentTemperature: true,
		SupportsAutoMode:           true,
		SupportsCoolMode:           c.supportsCool,
		SupportsHeatMode:           c.supportsHeat,
		SupportsTwoPointTarget:     c.HasTwoPointTarget(),
		SupportsAway:               c.supportsAway,
		SupportsAction:             true,
	}
}

func (c *Controller) LogConfig() {
	ev := log.Info().
		Bool("supports_heat", c.supportsHeat).
		Bool("supports_cool", c.supportsCool).
		Bool("supports_away", c.supportsAway).
		Float64("hysteresis", c.hysteresis).
		Str("target_kind", c.kind.String())
	if c.normal.DefaultLow != nil {
		ev = ev.Float64("default_target_low", *c.normal.DefaultLow)
	}
	if c.normal.DefaultHigh != nil {
		ev = ev.Float64("default_target_high", *c.normal.DefaultHigh)
	}
	ev.Msg("Bang-bang climate controller configured")
}

func (c *Controller) callFromState(s model.ClimateState) Call {
	call := Call{
		Target:     s.Target,
		TargetLow:  s.TargetLow,
		TargetHigh: s.TargetHigh,
	}
	if s.Mode.Valid() {
		mode := s.Mode
		call.Mode = &mode
	}
	// away=false is left out so the saved set points survive the restore
	if c.supportsAway && s.Away {
		away := true
		call.Away = &away
	}
	return call
}

func (c *Controller) publish() {
	st := c.State()
	for _, fn := range c.listeners {
		fn(st)
	}
}

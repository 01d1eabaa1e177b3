package thermostat

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/climate-controller/internal/model"
)

type recorder struct {
	events []string
}

type fakeTrigger struct {
	name string
	rec  *recorder
}

func (f fakeTrigger) Fire() { f.rec.events = append(f.rec.events, "fire:"+f.name) }
func (f fakeTrigger) Stop() { f.rec.events = append(f.rec.events, "stop:"+f.name) }

func newTestController(opts Options) (*Controller, *recorder, *[]State) {
	rec := &recorder{}
	opts.Triggers = Triggers{
		Idle: fakeTrigger{"idle", rec},
		Cool: fakeTrigger{"cool", rec},
		Heat: fakeTrigger{"heat", rec},
	}
	c := New(opts)
	var states []State
	c.AddListener(func(s State) { states = append(states, s) })
	return c, rec, &states
}

func heatCoolOptions() Options {
	return Options{
		SupportsHeat: true,
		SupportsCool: true,
		Hysteresis:   1,
		Normal:       model.TargetConfig{DefaultLow: model.Float(18), DefaultHigh: model.Float(24)},
		Away:         &model.TargetConfig{DefaultLow: model.Float(12), DefaultHigh: model.Float(30)},
	}
}

type fakeRestorer struct {
	state model.ClimateState
	ok    bool
	err   error
}

func (f fakeRestorer) Restore() (model.ClimateState, bool, error) {
	return f.state, f.ok, f.err
}

func TestTargetKind(t *testing.T) {
	tests := []struct {
		name       string
		heat, cool bool
		hysteresis float64
		expected   TargetKind
	}{
		{"heat and cool with hysteresis", true, true, 0.5, TwoPoint},
		{"heat only with hysteresis", true, false, 0.5, SinglePointHeat},
		{"cool only with hysteresis", false, true, 0.5, SinglePointCool},
		{"heat only legacy", true, false, 0, TwoPoint},
		{"cool only legacy", false, true, 0, TwoPoint},
		{"heat and cool legacy", true, true, 0, TwoPoint},
		{"nothing supported", false, false, 1, NoTarget},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, targetKind(tt.heat, tt.cool, tt.hysteresis))
		})
	}
}

func TestNegativeHysteresisIsClampedToLegacy(t *testing.T) {
	c := New(Options{SupportsHeat: true, Hysteresis: -2})
	assert.True(t, c.HasTwoPointTarget())
	assert.Equal(t, TwoPoint, c.Kind())
}

func TestSetup_DefaultsToAutoAndNormalProfile(t *testing.T) {
	c, rec, states := newTestController(heatCoolOptions())

	c.Setup(nil, nil)

	st := c.State()
	assert.Equal(t, model.ModeAuto, st.Mode)
	assert.Equal(t, model.ActionOff, st.Action, "unknown temperature keeps the action OFF")
	assert.False(t, st.Away)
	require.NotNil(t, st.TargetLow)
	require.NotNil(t, st.TargetHigh)
	assert.Equal(t, 18.0, *st.TargetLow)
	assert.Equal(t, 24.0, *st.TargetHigh)
	assert.Empty(t, rec.events)
	assert.NotEmpty(t, *states)
}

func TestSetup_RestoresSavedState(t *testing.T) {
	c, _, _ := newTestController(heatCoolOptions())

	c.Setup(model.Float(21), fakeRestorer{
		ok: true,
		state: model.ClimateState{
			Mode:       model.ModeHeat,
			TargetLow:  model.Float(19),
			TargetHigh: model.Float(23),
		},
	})

	st := c.State()
	assert.Equal(t, model.ModeHeat, st.Mode)
	assert.Equal(t, model.ActionHeating, st.Action)
	assert.Equal(t, 19.0, *st.TargetLow)
	assert.Equal(t, 23.0, *st.TargetHigh)
	assert.Equal(t, 21.0, *st.CurrentTemperature)
}

func TestSetup_RestoredAwayAppliesAwayProfile(t *testing.T) {
	c, _, _ := newTestController(heatCoolOptions())

	c.Setup(model.Float(21), fakeRestorer{
		ok: true,
		state: model.ClimateState{
			Mode:       model.ModeAuto,
			TargetLow:  model.Float(19),
			TargetHigh: model.Float(23),
			Away:       true,
		},
	})

	st := c.State()
	assert.True(t, st.Away)
	assert.Equal(t, 12.0, *st.TargetLow)
	assert.Equal(t, 30.0, *st.TargetHigh)
}

func TestSetup_RestoredHomeKeepsSavedTargets(t *testing.T) {
	c, _, _ := newTestController(heatCoolOptions())

	c.Setup(model.Float(21), fakeRestorer{
		ok: true,
		state: model.ClimateState{
			Mode:       model.ModeAuto,
			TargetLow:  model.Float(19),
			TargetHigh: model.Float(25),
			Away:       false,
		},
	})

	st := c.State()
	assert.False(t, st.Away)
	// the normal profile (18/24) must not overwrite what the user saved
	assert.Equal(t, 19.0, *st.TargetLow)
	assert.Equal(t, 25.0, *st.TargetHigh)
	assert.Equal(t, model.ActionIdle, st.Action)
}

func TestSetup_RestoreErrorFallsBackToDefaults(t *testing.T) {
	c, _, _ := newTestController(heatCoolOptions())

	c.Setup(model.Float(21), fakeRestorer{err: errors.New("disk on fire")})

	st := c.State()
	assert.Equal(t, model.ModeAuto, st.Mode)
	assert.Equal(t, model.ActionIdle, st.Action)
	assert.Equal(t, 18.0, *st.TargetLow)
}

func TestEvaluate_TwoPointHysteresis(t *testing.T) {
	c, rec, _ := newTestController(heatCoolOptions())
	c.Setup(nil, nil)

	steps := []struct {
		temp     float64
		expected model.Action
		events   []string
	}{
		{21, model.ActionIdle, nil},
		{16.9, model.ActionHeating, []string{"fire:heat"}},
		{18.5, model.ActionHeating, nil},
		{19.5, model.ActionIdle, []string{"stop:heat", "fire:idle"}},
		{24.9, model.ActionIdle, nil},
		{25.1, model.ActionCooling, []string{"stop:idle", "fire:cool"}},
		{23.5, model.ActionCooling, nil},
		{22.9, model.ActionIdle, []string{"stop:cool", "fire:idle"}},
	}

	for _, step := range steps {
		rec.events = nil
		c.UpdateTemperature(model.Float(step.temp))
		assert.Equal(t, step.expected, c.Action(), "temp %.1f", step.temp)
		assert.Equal(t, step.events, rec.events, "temp %.1f", step.temp)
	}
}

func TestEvaluate_DeadbandHoldsIdleFromEitherDirection(t *testing.T) {
	for _, approach := range []float64{17.5, 24.5} {
		c, _, _ := newTestController(heatCoolOptions())
		c.Setup(model.Float(21), nil)
		require.Equal(t, model.ActionIdle, c.Action())

		c.UpdateTemperature(model.Float(approach))
		assert.Equal(t, model.ActionIdle, c.Action())

		c.UpdateTemperature(model.Float(21))
		assert.Equal(t, model.ActionIdle, c.Action())
	}
}

func TestEvaluate_HeatingWinsTieBreak(t *testing.T) {
	c, rec, _ := newTestController(heatCoolOptions())
	c.Setup(nil, nil)

	// low above high: too cold for heating and too hot for cooling at once
	c.Control(Call{TargetLow: model.Float(26), TargetHigh: model.Float(20)})
	c.UpdateTemperature(model.Float(23))

	assert.Equal(t, model.ActionHeating, c.Action())
	assert.Equal(t, []string{"fire:heat"}, rec.events)
}

func TestEvaluate_Idempotent(t *testing.T) {
	c, rec, _ := newTestController(heatCoolOptions())
	c.Setup(model.Float(16), nil)
	require.Equal(t, model.ActionHeating, c.Action())

	rec.events = nil
	for i := 0; i < 3; i++ {
		d := c.Evaluate()
		assert.False(t, d.Changed)
		assert.Equal(t, model.ActionHeating, d.Action)
	}
	assert.Empty(t, rec.events)
}

func TestSwitchTo_OffIdleNeverTouchesTriggers(t *testing.T) {
	c, rec, states := newTestController(heatCoolOptions())
	c.Setup(nil, nil)
	*states = nil

	c.UpdateTemperature(model.Float(21))
	assert.Equal(t, model.ActionIdle, c.Action())
	assert.Empty(t, rec.events)
	assert.Contains(t, *states, c.State())

	*states = nil
	mode := model.ModeOff
	c.Control(Call{Mode: &mode})
	assert.Equal(t, model.ActionOff, c.Action())
	assert.Empty(t, rec.events)
	require.NotEmpty(t, *states)
	assert.Equal(t, model.ActionOff, (*states)[0].Action)
}

func TestSwitchTo_StopsBeforeFire(t *testing.T) {
	c, rec, _ := newTestController(heatCoolOptions())
	c.Setup(model.Float(10), nil)

	mode := model.ModeCool
	c.Control(Call{Mode: &mode})

	assert.Equal(t, []string{"fire:heat", "stop:heat", "fire:cool"}, rec.events)
	assert.Equal(t, slotCool, c.active)
}

func TestSwitchTo_RunningToOffFiresIdle(t *testing.T) {
	c, rec, _ := newTestController(heatCoolOptions())
	c.Setup(model.Float(10), nil)
	rec.events = nil

	c.UpdateTemperature(nil)

	assert.Equal(t, model.ActionOff, c.Action())
	assert.Equal(t, []string{"stop:heat", "fire:idle"}, rec.events)
}

func TestEvaluate_NonAutoShortCircuit(t *testing.T) {
	tests := []struct {
		mode     model.Mode
		temp     *float64
		expected model.Action
	}{
		{model.ModeCool, model.Float(5), model.ActionCooling},
		{model.ModeCool, nil, model.ActionCooling},
		{model.ModeHeat, model.Float(40), model.ActionHeating},
		{model.ModeHeat, nil, model.ActionHeating},
		{model.ModeOff, model.Float(10), model.ActionOff},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			c, _, _ := newTestController(heatCoolOptions())
			c.Setup(tt.temp, nil)
			mode := tt.mode
			c.Control(Call{Mode: &mode})

			d := c.Evaluate()
			assert.Equal(t, tt.expected, c.Action())
			assert.Equal(t, ReasonMode, d.Reason)
		})
	}
}

func TestEvaluate_MissingData(t *testing.T) {
	t.Run("unknown temperature", func(t *testing.T) {
		c, _, _ := newTestController(heatCoolOptions())
		c.Setup(nil, nil)
		d := c.Evaluate()
		assert.Equal(t, model.ActionOff, d.Action)
		assert.Equal(t, ReasonMissingData, d.Reason)
	})

	t.Run("heat-only without set point", func(t *testing.T) {
		c, _, _ := newTestController(Options{SupportsHeat: true, Hysteresis: 0.5})
		c.Setup(model.Float(15), nil)
		assert.Equal(t, model.ActionOff, c.Action())
		assert.Equal(t, ReasonMissingData, c.Evaluate().Reason)
	})

	t.Run("legacy without high bound", func(t *testing.T) {
		c, _, _ := newTestController(Options{
			SupportsHeat: true,
			Normal:       model.TargetConfig{DefaultLow: model.Float(18)},
		})
		c.Setup(model.Float(15), nil)
		assert.Equal(t, model.ActionOff, c.Action())
	})
}

func TestEvaluate_SinglePoint(t *testing.T) {
	t.Run("heat only", func(t *testing.T) {
		c, _, _ := newTestController(Options{
			SupportsHeat: true,
			Hysteresis:   0.5,
			Normal:       model.TargetConfig{DefaultLow: model.Float(20)},
		})
		c.Setup(model.Float(19.4), nil)
		assert.Equal(t, model.ActionHeating, c.Action())
		assert.Equal(t, 20.0, *c.State().Target)

		c.UpdateTemperature(model.Float(20.3))
		assert.Equal(t, model.ActionHeating, c.Action())

		c.UpdateTemperature(model.Float(20.6))
		assert.Equal(t, model.ActionIdle, c.Action())
	})

	t.Run("cool only", func(t *testing.T) {
		c, _, _ := newTestController(Options{
			SupportsCool: true,
			Hysteresis:   0.5,
			Normal:       model.TargetConfig{DefaultHigh: model.Float(24)},
		})
		c.Setup(model.Float(24.6), nil)
		assert.Equal(t, model.ActionCooling, c.Action())

		c.UpdateTemperature(model.Float(23.6))
		assert.Equal(t, model.ActionCooling, c.Action())

		c.UpdateTemperature(model.Float(23.4))
		assert.Equal(t, model.ActionIdle, c.Action())
	})
}

func TestEvaluate_LegacyHeatOnly(t *testing.T) {
	c, _, _ := newTestController(Options{
		SupportsHeat: true,
		Normal:       model.TargetConfig{DefaultLow: model.Float(18), DefaultHigh: model.Float(20)},
	})
	c.Setup(nil, nil)

	steps := []struct {
		temp     float64
		expected model.Action
	}{
		{17, model.ActionHeating},
		{19, model.ActionHeating}, // between the edges the previous action holds
		{21, model.ActionIdle},
		{19, model.ActionIdle},
		{17.9, model.ActionHeating},
	}
	for _, step := range steps {
		c.UpdateTemperature(model.Float(step.temp))
		assert.Equal(t, step.expected, c.Action(), "temp %.1f", step.temp)
	}
}

func TestEvaluate_LegacyCoolOnly(t *testing.T) {
	c, _, _ := newTestController(Options{
		SupportsCool: true,
		Normal:       model.TargetConfig{DefaultLow: model.Float(22), DefaultHigh: model.Float(24)},
	})
	c.Setup(nil, nil)

	steps := []struct {
		temp     float64
		expected model.Action
	}{
		{25, model.ActionCooling},
		{23, model.ActionCooling},
		{21, model.ActionIdle},
		{23, model.ActionIdle},
	}
	for _, step := range steps {
		c.UpdateTemperature(model.Float(step.temp))
		assert.Equal(t, step.expected, c.Action(), "temp %.1f", step.temp)
	}
}

func TestSetAway_RoundTrip(t *testing.T) {
	c, _, _ := newTestController(heatCoolOptions())
	c.Setup(model.Float(21), nil)
	before := c.State()

	c.SetAway(true)
	away := c.State()
	assert.True(t, away.Away)
	assert.Equal(t, 12.0, *away.TargetLow)
	assert.Equal(t, 30.0, *away.TargetHigh)
	assert.Equal(t, before.Action, away.Action, "SetAway does not re-evaluate")

	c.SetAway(false)
	after := c.State()
	assert.Equal(t, before.TargetLow, after.TargetLow)
	assert.Equal(t, before.TargetHigh, after.TargetHigh)
	assert.False(t, after.Away)
}

func TestSetAway_SinglePointCoolUsesHigh(t *testing.T) {
	c, _, _ := newTestController(Options{
		SupportsCool: true,
		Hysteresis:   1,
		Normal:       model.TargetConfig{DefaultHigh: model.Float(24)},
		Away:         &model.TargetConfig{DefaultHigh: model.Float(29)},
	})
	c.Setup(nil, nil)

	c.SetAway(true)
	assert.Equal(t, 29.0, *c.State().Target)
	assert.Nil(t, c.State().TargetLow)
	c.SetAway(false)
	assert.Equal(t, 24.0, *c.State().Target)
}

func TestControl(t *testing.T) {
	t.Run("two-point ignores single target", func(t *testing.T) {
		c, _, _ := newTestController(heatCoolOptions())
		c.Setup(model.Float(21), nil)
		c.Control(Call{Target: model.Float(30), TargetHigh: model.Float(22)})

		st := c.State()
		assert.Nil(t, st.Target)
		assert.Equal(t, 18.0, *st.TargetLow)
		assert.Equal(t, 22.0, *st.TargetHigh)
	})

	t.Run("single-point ignores low and high", func(t *testing.T) {
		c, _, _ := newTestController(Options{
			SupportsHeat: true,
			Hysteresis:   1,
			Normal:       model.TargetConfig{DefaultLow: model.Float(20)},
		})
		c.Setup(model.Float(21), nil)
		c.Control(Call{Target: model.Float(23), TargetLow: model.Float(10)})

		st := c.State()
		assert.Equal(t, 23.0, *st.Target)
		assert.Nil(t, st.TargetLow)
		assert.Equal(t, model.ActionHeating, st.Action)
	})

	t.Run("away overrides targets in the same call", func(t *testing.T) {
		c, _, _ := newTestController(heatCoolOptions())
		c.Setup(model.Float(21), nil)
		away := true
		c.Control(Call{TargetLow: model.Float(20), Away: &away})

		st := c.State()
		assert.Equal(t, 12.0, *st.TargetLow)
		assert.True(t, st.Away)
	})

	t.Run("away ignored without profile", func(t *testing.T) {
		opts := heatCoolOptions()
		opts.Away = nil
		c, _, _ := newTestController(opts)
		c.Setup(model.Float(21), nil)
		away := true
		c.Control(Call{Away: &away})

		st := c.State()
		assert.False(t, st.Away)
		assert.Equal(t, 18.0, *st.TargetLow)
	})

	t.Run("state is a copy", func(t *testing.T) {
		c, _, _ := newTestController(heatCoolOptions())
		c.Setup(model.Float(21), nil)
		st := c.State()
		*st.TargetLow = 5
		assert.Equal(t, 18.0, *c.State().TargetLow)
	})
}

func TestNilTriggersAreNoops(t *testing.T) {
	c := New(Options{SupportsHeat: true, Hysteresis: 1, Normal: model.TargetConfig{DefaultLow: model.Float(20)}})
	c.Setup(model.Float(10), nil)
	assert.Equal(t, model.ActionHeating, c.Action())

	c.UpdateTemperature(model.Float(25))
	assert.Equal(t, model.ActionIdle, c.Action())
}

func TestTraits(t *testing.T) {
	c := New(heatCoolOptions())
	traits := c.Traits()

	assert.True(t, traits.SupportsCurrentTemperature)
	assert.True(t, traits.SupportsAutoMode)
	assert.True(t, traits.SupportsHeatMode)
	assert.True(t, traits.SupportsCoolMode)
	assert.True(t, traits.SupportsTwoPointTarget)
	assert.True(t, traits.SupportsAway)
	assert.True(t, traits.SupportsAction)

	heatOnly := New(Options{SupportsHeat: true, Hysteresis: 1})
	assert.False(t, heatOnly.Traits().SupportsTwoPointTarget)
	assert.False(t, heatOnly.Traits().SupportsCoolMode)
	assert.False(t, heatOnly.Traits().SupportsAway)
}

// Package runner owns the thermostat controller and serialises every event
// that reaches it: sensor readings, control requests and state snapshots.
package runner

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/climate-controller/internal/model"
	"github.com/thatsimonsguy/climate-controller/internal/thermostat"
)

const subscriberBuffer = 8

// Saver persists the user-owned part of the state after control requests.
type Saver interface {
	SaveClimateState(state model.ClimateState) error
}

type Options struct {
	Saver          Saver
	MinTemperature float64
	MaxTemperature float64
}

type controlRequest struct {
	call  thermostat.Call
	reply chan controlReply
}

type controlReply struct {
	state thermostat.State
	err   error
}

type Runner struct {
	ctrl   *thermostat.Controller
	traits thermostat.Traits
	opts   Options

	readings  chan *float64
	controls  chan controlRequest
	snapshots chan chan thermostat.State

	mu     sync.Mutex
	subs   map[int]chan thermostat.State
	nextID int
}

func New(ctrl *thermostat.Controller, opts Options) *Runner {
	r := &Runner{
		ctrl:      ctrl,
		traits:    ctrl.Traits(),
		opts:      opts,
		readings:  make(chan *float64),
		controls:  make(chan controlRequest),
		snapshots: make(chan chan thermostat.State),
		subs:      make(map[int]chan thermostat.State),
	}
	ctrl.AddListener(r.broadcast)
	return r
}

// Setup restores the controller. It must be called before Run.
func (r *Runner) Setup(reading *float64, restorer thermostat.Restorer) {
	r.ctrl.Setup(reading, restorer)
	r.ctrl.LogConfig()
}

// Run processes events until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	log.Info().Msg("Climate runner started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Climate runner stopped")
			r.closeSubscribers()
			return ctx.Err()

		case reading := <-r.readings:
			r.ctrl.UpdateTemperature(reading)

		case req := <-r.controls:
			req.reply <- r.handleControl(req.call)

		case reply := <-r.snapshots:
			reply <- r.ctrl.State()
		}
	}
}

func (r *Runner) handleControl(call thermostat.Call) controlReply {
	if err := call.Validate(r.traits, r.opts.MinTemperature, r.opts.MaxTemperature); err != nil {
		return controlReply{state: r.ctrl.State(), err: err}
	}

	r.ctrl.Control(call)
	state := r.ctrl.State()

	if r.opts.Saver != nil {
		if err := r.opts.Saver.SaveClimateState(state.Persisted()); err != nil {
			log.Error().Err(err).Msg("Failed to persist climate state")
		}
	}
	return controlReply{state: state}
}

// UpdateTemperature hands a reading to the controller. nil marks the sensor unavailable.
func (r *Runner) UpdateTemperature(ctx context.Context, reading *float64) error {
	select {
	case r.readings <- reading:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Control validates and applies call, returning the resulting state.
func (r *Runner) Control(ctx context.Context, call thermostat.Call) (thermostat.State, error) {
	req := controlRequest{call: call, reply: make(chan controlReply, 1)}
	select {
	case r.controls <- req:
	case <-ctx.Done():
		return thermostat.State{}, ctx.Err()
	}

	select {
	case rep := <-req.reply:
		if rep.err != nil {
			return rep.state, fmt.Errorf("%w: %v", ErrInvalidRequest, rep.err)
		}
		return rep.state, nil
	case <-ctx.Done():
		return thermostat.State{}, ctx.Err()
	}
}

func (r *Runner) Snapshot(ctx context.Context) (thermostat.State, error) {
	reply := make(chan thermostat.State, 1)
	select {
	case r.snapshots <- reply:
	case <-ctx.Done():
		return thermostat.State{}, ctx.Err()
	}

	select {
	case st := <-reply:
		return st, nil
	case <-ctx.Done():
		return thermostat.State{}, ctx.Err()
	}
}

func (r *Runner) Traits() thermostat.Traits {
	return r.traits
}

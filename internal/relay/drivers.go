package relay

import (
	"fmt"
	"sync"

	"github.com/thatsimonsguy/climate-controller/internal/config"
	"github.com/thatsimonsguy/climate-controller/internal/model"
	"github.com/thatsimonsguy/climate-controller/internal/pinctrl"
)

// PinctrlDriver shells out to the Raspberry Pi pinctrl tool.
type PinctrlDriver struct{}

func (PinctrlDriver) Set(pin model.GPIOPin, active bool) error {
	return pinctrl.SetOutput(pin.Number, pin.ActiveHigh == active)
}

func (PinctrlDriver) Close() error {
	return nil
}

// FakeDriver records line writes for tests and dry runs.
type FakeDriver struct {
	mu     sync.Mutex
	States map[int]bool
	Writes []Write
	// SetError, if set, will be returned by Set.
	SetError error
	Closed   bool
}

type Write struct {
	Pin    int
	Active bool
}

func NewFakeDriver() *FakeDriver {
	return &FakeDriver{States: map[int]bool{}}
}

func (f *FakeDriver) Set(pin model.GPIOPin, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SetError != nil {
		return f.SetError
	}
	f.States[pin.Number] = active
	f.Writes = append(f.Writes, Write{Pin: pin.Number, Active: active})
	return nil
}

func (f *FakeDriver) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

func (f *FakeDriver) IsActive(pin int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.States[pin]
}

// NewDriver opens the driver named in the relay config.
func NewDriver(cfg *config.Config) (Driver, error) {
	switch cfg.Relays.Driver {
	case config.DriverGPIOCDev:
		var pins []model.GPIOPin
		for _, named := range cfg.NamedRelays() {
			pins = append(pins, named.Relay.Pins...)
		}
		d, err := NewGPIOCDevDriver(cfg.Relays.Chip, pins)
		if err != nil {
			return nil, err
		}
		return d, nil
	case config.DriverPinctrl:
		return PinctrlDriver{}, nil
	case config.DriverFake:
		return NewFakeDriver(), nil
	default:
		return nil, fmt.Errorf("unknown relay driver %q", cfg.Relays.Driver)
	}
}

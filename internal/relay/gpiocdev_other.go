//go:build !linux

package relay

import (
	"errors"

	"github.com/thatsimonsguy/climate-controller/internal/model"
)

// GPIOCDevDriver is not available on non-Linux platforms.
type GPIOCDevDriver struct{}

func NewGPIOCDevDriver(chipName string, pins []model.GPIOPin) (*GPIOCDevDriver, error) {
	return nil, errors.New("relay: gpiocdev requires Linux")
}

func (d *GPIOCDevDriver) Set(pin model.GPIOPin, active bool) error {
	return errors.New("relay: gpiocdev not supported")
}

func (d *GPIOCDevDriver) Close() error {
	return nil
}

//go:build linux

package relay

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"

	"github.com/thatsimonsguy/climate-controller/internal/model"
)

// GPIOCDevDriver drives lines through the Linux GPIO character device.
type GPIOCDevDriver struct {
	chip  *gpiocdev.Chip
	lines map[int]*gpiocdev.Line
}

// NewGPIOCDevDriver requests every pin as an output held inactive.
func NewGPIOCDevDriver(chipName string, pins []model.GPIOPin) (*GPIOCDevDriver, error) {
	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer("climate-controller"))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	d := &GPIOCDevDriver{chip: chip, lines: map[int]*gpiocdev.Line{}}
	for _, pin := range pins {
		opts := []gpiocdev.LineReqOption{gpiocdev.AsOutput(0)}
		if !pin.ActiveHigh {
			opts = append(opts, gpiocdev.AsActiveLow)
		}
		line, err := chip.RequestLine(pin.Number, opts...)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("request pin %d: %w", pin.Number, err)
		}
		d.lines[pin.Number] = line
	}
	return d, nil
}

func (d *GPIOCDevDriver) Set(pin model.GPIOPin, active bool) error {
	line, ok := d.lines[pin.Number]
	if !ok {
		return fmt.Errorf("pin %d was not requested", pin.Number)
	}
	value := 0
	if active {
		value = 1
	}
	return line.SetValue(value)
}

// Close drives every line inactive before releasing it.
func (d *GPIOCDevDriver) Close() error {
	var errs []error
	for n, line := range d.lines {
		if err := line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("release pin %d: %w", n, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin %d: %w", n, err))
		}
	}
	if d.chip != nil {
		if err := d.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

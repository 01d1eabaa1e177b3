package relay

import (
	"fmt"

	"github.com/thatsimonsguy/climate-controller/internal/model"
	"github.com/thatsimonsguy/climate-controller/internal/pinctrl"
)

// ReadLevel reads the raw level of a pin; replaced in tests.
var ReadLevel = pinctrl.ReadLevel

// ValidateStartupPins refuses to start when a relay line is already
// energised, which usually means the boot script did not run.
func ValidateStartupPins(relays []*Relay) error {
	for _, r := range relays {
		for _, pin := range r.Pins() {
			level, err := ReadLevel(pin.Number)
			if err != nil {
				return fmt.Errorf("failed to read pin level for %s (GPIO %d): %w", r.Name(), pin.Number, err)
			}
			if isActive(pin, level) {
				return fmt.Errorf("pin %d (%s) is active at startup, expected inactive", pin.Number, r.Name())
			}
		}
	}
	return nil
}

func isActive(pin model.GPIOPin, level bool) bool {
	return pin.ActiveHigh == level
}

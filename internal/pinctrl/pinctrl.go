// Package pinctrl wraps the Raspberry Pi pinctrl tool for relay output
// lines: driving them, reading their level and inspecting their setup.
package pinctrl

import (
	"bufio"
	"bytes"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// PinState is one line of `pinctrl get` output, e.g.
// "17: op dh pn | hi // GPIO17 = output".
type PinState struct {
	Pin     int
	Mode    string // ip, op, no, a0..a5
	Pull    string // pu, pd, pn
	Drive   string // dh, dl, or empty for inputs
	Level   string // hi, lo, --
	Comment string
}

// High reports whether the line currently reads high.
func (p PinState) High() bool {
	return p.Level == "hi"
}

// Energised reports whether a relay wired with the given polarity is on.
func (p PinState) Energised(activeHigh bool) bool {
	return p.High() == activeHigh
}

// run executes pinctrl; replaced in tests.
var run = func(combined bool, args ...string) ([]byte, error) {
	cmd := exec.Command("pinctrl", args...)
	if combined {
		return cmd.CombinedOutput()
	}
	return cmd.Output()
}

// Get returns the state of the listed pins, or of every pin when none are given.
func Get(pins ...int) (map[int]PinState, error) {
	args := []string{"get"}
	for _, p := range pins {
		args = append(args, strconv.Itoa(p))
	}
	out, err := run(false, args...)
	if err != nil {
		return nil, fmt.Errorf("pinctrl get: %w", err)
	}
	return parseGet(out)
}

// ReadPin returns the state of a single pin.
func ReadPin(pin int) (PinState, error) {
	states, err := Get(pin)
	if err != nil {
		return PinState{}, err
	}
	st, ok := states[pin]
	if !ok {
		return PinState{}, fmt.Errorf("pin %d not found in pinctrl output", pin)
	}
	return st, nil
}

func parseGet(out []byte) (map[int]PinState, error) {
	states := make(map[int]PinState)
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		if st, ok := parseGetLine(scanner.Text()); ok {
			states[st.Pin] = st
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan pinctrl output: %w", err)
	}
	return states, nil
}

// parseGetLine splits "<pin>: <mode> [opts...] | <level> // <comment>".
func parseGetLine(line string) (PinState, bool) {
	head, rest, ok := strings.Cut(line, "|")
	if !ok {
		return PinState{}, false
	}
	num, opts, ok := strings.Cut(head, ":")
	if !ok {
		return PinState{}, false
	}
	pin, err := strconv.Atoi(strings.TrimSpace(num))
	if err != nil {
		return PinState{}, false
	}

	fields := strings.Fields(opts)
	if len(fields) == 0 {
		return PinState{}, false
	}
	st := PinState{Pin: pin, Mode: fields[0]}
	for _, opt := range fields[1:] {
		switch opt {
		case "pu", "pd", "pn":
			st.Pull = opt
		case "dh", "dl":
			st.Drive = opt
		}
	}

	level, comment, _ := strings.Cut(rest, "//")
	st.Level = strings.TrimSpace(level)
	st.Comment = strings.TrimSpace(comment)
	return st, st.Level != ""
}

// ReadLevel reads the logic level of a pin with `pinctrl lev`.
func ReadLevel(pin int) (bool, error) {
	out, err := run(false, "lev", strconv.Itoa(pin))
	if err != nil {
		return false, fmt.Errorf("read level of pin %d: %w", pin, err)
	}
	return parseLevel(string(out))
}

func parseLevel(out string) (bool, error) {
	switch v := strings.TrimSpace(out); v {
	case "1":
		return true, nil
	case "0":
		return false, nil
	default:
		return false, fmt.Errorf("unexpected pinctrl lev output %q", v)
	}
}

// SetOutput configures pin as an output without pull and drives it high or low.
func SetOutput(pin int, high bool) error {
	drive := "dl"
	if high {
		drive = "dh"
	}
	out, err := run(true, "set", strconv.Itoa(pin), "op", "pn", drive)
	if err != nil {
		return fmt.Errorf("pinctrl set %d %s: %w (output: %s)", pin, drive, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// DriveArg returns the drive option that puts a relay of the given polarity
// in the requested state.
func DriveArg(activeHigh, active bool) string {
	if activeHigh == active {
		return "dh"
	}
	return "dl"
}

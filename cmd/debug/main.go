package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/thatsimonsguy/climate-controller/db"
	"github.com/thatsimonsguy/climate-controller/internal/config"
	"github.com/thatsimonsguy/climate-controller/internal/env"
	"github.com/thatsimonsguy/climate-controller/internal/pinctrl"
	"github.com/thatsimonsguy/climate-controller/system/startup"
)

func main() {
	DebugCLI()
}

func DebugCLI() {
	var dbPath, configFile, command, mode, target, low, high, away, binary string
	flag.StringVar(&dbPath, "db", "data/climate.db", "Path to the SQLite database file")
	flag.StringVar(&configFile, "config-file", "config.json", "Controller config, used by write-boot-script and install-services")
	flag.StringVar(&command, "cmd", "", "Command to run: show, show-pins, set-mode, set-targets, set-away, write-boot-script, install-services")
	flag.StringVar(&mode, "mode", "", "Mode for set-mode (off, heat, cool, auto)")
	flag.StringVar(&target, "target", "", "Single set point for set-targets")
	flag.StringVar(&low, "low", "", "Low set point for set-targets")
	flag.StringVar(&high, "high", "", "High set point for set-targets")
	flag.StringVar(&away, "away", "", "on or off for set-away")
	flag.StringVar(&binary, "binary", "", "Controller binary for install-services (default: this executable)")
	help := flag.Bool("help", false, "Show help")
	flag.Parse()

	if *help || command == "" {
		fmt.Println("\nUsage of climate-debug:")
		flag.PrintDefaults()
		fmt.Println("\nChanges to the database apply the next time the controller starts.")
		os.Exit(0)
	}

	var err error
	switch command {
	case "show":
		err = db.ShowStateCLI(dbPath, os.Stdout)
	case "show-pins":
		loadConfig(configFile, dbPath)
		err = showPins()
	case "set-mode":
		err = db.SetModeCLI(dbPath, mode)
	case "set-targets":
		var t, l, h *float64
		if t, err = parseTemp("target", target); err != nil {
			break
		}
		if l, err = parseTemp("low", low); err != nil {
			break
		}
		if h, err = parseTemp("high", high); err != nil {
			break
		}
		if t == nil && l == nil && h == nil {
			err = fmt.Errorf("at least one of -target, -low or -high is required")
			break
		}
		err = db.SetTargetsCLI(dbPath, t, l, h)
	case "set-away":
		switch away {
		case "on", "true":
			err = db.SetAwayCLI(dbPath, true)
		case "off", "false":
			err = db.SetAwayCLI(dbPath, false)
		default:
			err = fmt.Errorf("-away must be on or off, got %q", away)
		}
	case "write-boot-script":
		loadConfig(configFile, dbPath)
		err = startup.WriteStartupScript()
	case "install-services":
		loadConfig(configFile, dbPath)
		if err = startup.WriteStartupScript(); err != nil {
			break
		}
		if err = startup.InstallStartupService(); err != nil {
			break
		}
		err = startup.InstallClimateService(binary)
	default:
		fmt.Println("Invalid command")
		os.Exit(1)
	}

	if err != nil {
		fmt.Printf("Command %s failed: %v\n", command, err)
		os.Exit(1)
	}
	fmt.Printf("Command %s completed successfully\n", command)
}

// showPins prints each relay pin as pinctrl reports it, with the logical
// relay state derived from its polarity.
func showPins() error {
	for _, named := range env.Cfg.NamedRelays() {
		for _, pin := range named.Relay.Pins {
			st, err := pinctrl.ReadPin(pin.Number)
			if err != nil {
				return err
			}
			fmt.Printf("%-5s gpio%-3d mode=%s pull=%s drive=%s level=%s energised=%t\n",
				named.Name, pin.Number, st.Mode, st.Pull, st.Drive, st.Level, st.Energised(pin.ActiveHigh))
		}
	}
	return nil
}

func parseTemp(name, value string) (*float64, error) {
	if value == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid -%s %q: %w", name, value, err)
	}
	return &v, nil
}

func loadConfig(path, dbPath string) {
	file, err := os.Open(path)
	if err != nil {
		fmt.Printf("Failed to open config file: %v\n", err)
		os.Exit(1)
	}
	defer file.Close()

	cfg := config.Parse(file)
	cfg.ConfigFile = path
	cfg.DBPath = dbPath
	env.Cfg = &cfg
}
